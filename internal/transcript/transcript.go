package transcript

import (
	"encoding/json"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// CreatedAtLayout is the timestamp layout used in the metadata block.
const CreatedAtLayout = "2006-01-02 15:04:05"

// Segment is one timestamped fragment of recognized speech. Times are
// relative to the start of the original, unsplit recording.
type Segment struct {
	Text  string
	Start time.Duration
	End   time.Duration
}

// Duration returns End minus Start.
func (s Segment) Duration() time.Duration {
	return s.End - s.Start
}

// Sentence is a merged Segment plus its translation and synthesized clip.
// Clip is a path inside the run's scratch directory and is empty when
// synthesis failed or has not run.
type Sentence struct {
	Segment
	Translation       string
	Clip              string
	TranslationFailed bool
	SynthesisFailed   bool
}

// Transcript is the persisted record of a run.
type Transcript struct {
	Sentences []Sentence
	CreatedAt time.Time
}

type wireTranscript struct {
	Metadata  wireMetadata   `json:"metadata"`
	Sentences []wireSentence `json:"sentences"`
}

type wireMetadata struct {
	TotalSentences int    `json:"total_sentences"`
	CreatedAt      string `json:"created_at"`
}

type wireSentence struct {
	Text              string  `json:"text"`
	StartTime         float64 `json:"start_time"`
	EndTime           float64 `json:"end_time"`
	English           string  `json:"english"`
	TranslationFailed bool    `json:"translation_failed,omitempty"`
	SynthesisFailed   bool    `json:"synthesis_failed,omitempty"`
}

// MarshalJSON renders the transcript in its on-disk form.
func (t Transcript) MarshalJSON() ([]byte, error) {
	wire := wireTranscript{
		Metadata: wireMetadata{
			TotalSentences: len(t.Sentences),
			CreatedAt:      t.CreatedAt.Format(CreatedAtLayout),
		},
		Sentences: make([]wireSentence, 0, len(t.Sentences)),
	}
	for _, s := range t.Sentences {
		wire.Sentences = append(wire.Sentences, wireSentence{
			Text:              s.Text,
			StartTime:         Seconds(s.Start),
			EndTime:           Seconds(s.End),
			English:           s.Translation,
			TranslationFailed: s.TranslationFailed,
			SynthesisFailed:   s.SynthesisFailed,
		})
	}
	return json.Marshal(wire)
}

// UnmarshalJSON parses the on-disk form.
func (t *Transcript) UnmarshalJSON(data []byte) error {
	var wire wireTranscript
	if err := json.Unmarshal(data, &wire); err != nil {
		return err
	}
	created := time.Time{}
	if value := strings.TrimSpace(wire.Metadata.CreatedAt); value != "" {
		parsed, err := time.ParseInLocation(CreatedAtLayout, value, time.Local)
		if err != nil {
			return fmt.Errorf("metadata.created_at: %w", err)
		}
		created = parsed
	}
	sentences := make([]Sentence, 0, len(wire.Sentences))
	for _, s := range wire.Sentences {
		sentences = append(sentences, Sentence{
			Segment: Segment{
				Text:  s.Text,
				Start: FromSeconds(s.StartTime),
				End:   FromSeconds(s.EndTime),
			},
			Translation:       s.English,
			TranslationFailed: s.TranslationFailed,
			SynthesisFailed:   s.SynthesisFailed,
		})
	}
	t.Sentences = sentences
	t.CreatedAt = created
	return nil
}

// Save writes the transcript as indented JSON, replacing path atomically.
func Save(path string, t Transcript) error {
	data, err := json.MarshalIndent(t, "", "  ")
	if err != nil {
		return fmt.Errorf("encode transcript: %w", err)
	}
	data = append(data, '\n')
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("ensure transcript dir: %w", err)
	}
	tmp, err := os.CreateTemp(dir, ".transcript-*.json")
	if err != nil {
		return fmt.Errorf("create temp transcript: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("write transcript: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("close transcript: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("rename transcript: %w", err)
	}
	return nil
}

// Load reads a transcript written by Save.
func Load(path string) (Transcript, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Transcript{}, fmt.Errorf("read transcript: %w", err)
	}
	var t Transcript
	if err := json.Unmarshal(data, &t); err != nil {
		return Transcript{}, fmt.Errorf("parse transcript %s: %w", filepath.Base(path), err)
	}
	return t, nil
}

// Seconds converts a duration to float seconds rounded to the millisecond.
func Seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}

// FromSeconds converts float seconds to a duration rounded to the millisecond.
func FromSeconds(value float64) time.Duration {
	return time.Duration(math.Round(value*1000)) * time.Millisecond
}
