// Package timeline lays out the bilingual track as an ordered list of audio
// pieces. Rendering the plan to a file is left to the media/ffmpeg package.
package timeline

import (
	"time"

	"kotoba/internal/transcript"
)

// Kind identifies the source of a piece.
type Kind int

const (
	// KindOriginal is a [Start, End) slice of the original recording.
	KindOriginal Kind = iota
	// KindClip is a synthesized speech clip.
	KindClip
	// KindSilence is generated silence.
	KindSilence
	// KindTone is a generated sine tone.
	KindTone
)

func (k Kind) String() string {
	switch k {
	case KindOriginal:
		return "original"
	case KindClip:
		return "clip"
	case KindSilence:
		return "silence"
	case KindTone:
		return "tone"
	default:
		return "unknown"
	}
}

// Piece is one element of the output track.
type Piece struct {
	Kind Kind
	// Start and End bound an original slice.
	Start time.Duration
	End   time.Duration
	// Path is the clip file for KindClip.
	Path string
	// Length is the duration of a clip, silence, or tone.
	Length time.Duration
	// Frequency is the tone pitch in hertz.
	Frequency int
}

// Duration returns the playback length of the piece.
func (p Piece) Duration() time.Duration {
	if p.Kind == KindOriginal {
		return p.End - p.Start
	}
	return p.Length
}

// Plan is the ordered list of pieces for one output file.
type Plan struct {
	Pieces   []Piece
	Original time.Duration
}

// Duration returns the sum of piece durations.
func (p Plan) Duration() time.Duration {
	var total time.Duration
	for _, piece := range p.Pieces {
		total += piece.Duration()
	}
	return total
}

// Options control pauses and the combined-mode cue.
type Options struct {
	ClipPause     time.Duration
	OriginalPause time.Duration
	// Combined appends CueSilence, a CueTone beep at CueToneHz, CueSilence
	// again, and then the entire original recording.
	Combined   bool
	CueSilence time.Duration
	CueTone    time.Duration
	CueToneHz  int
	// ClipDurations maps clip paths to their probed lengths.
	ClipDurations map[string]time.Duration
}

// DefaultOptions returns the standard pauses and cue.
func DefaultOptions() Options {
	return Options{
		ClipPause:     300 * time.Millisecond,
		OriginalPause: 500 * time.Millisecond,
		Combined:      true,
		CueSilence:    time.Second,
		CueTone:       500 * time.Millisecond,
		CueToneHz:     880,
	}
}

// Build walks sentences in order. For each one it emits the untranslated gap
// since the previous sentence, the synthesized clip and its pause when a clip
// is present, and then the original utterance and its pause. Trailing
// original audio follows the last sentence.
//
// Sentences are expected in start order. A sentence that starts before the
// previous one ended is trimmed so no audio is repeated, and spans are
// clamped to original.
func Build(sentences []transcript.Sentence, original time.Duration, opts Options) Plan {
	plan := Plan{Original: original}
	cursor := time.Duration(0)

	for _, s := range sentences {
		start, end := clampSpan(s.Start, s.End, original)
		if start < cursor {
			start = cursor
		}
		if end < start {
			end = start
		}
		if start > cursor {
			plan.Pieces = append(plan.Pieces, originalPiece(cursor, start))
		}
		if s.Clip != "" && !s.SynthesisFailed {
			plan.Pieces = append(plan.Pieces, Piece{Kind: KindClip, Path: s.Clip, Length: opts.ClipDurations[s.Clip]})
			plan.Pieces = appendSilence(plan.Pieces, opts.ClipPause)
		}
		if end > start {
			plan.Pieces = append(plan.Pieces, originalPiece(start, end))
		}
		plan.Pieces = appendSilence(plan.Pieces, opts.OriginalPause)
		if end > cursor {
			cursor = end
		}
	}
	if original > cursor {
		plan.Pieces = append(plan.Pieces, originalPiece(cursor, original))
	}

	if opts.Combined {
		plan.Pieces = appendSilence(plan.Pieces, opts.CueSilence)
		if opts.CueTone > 0 && opts.CueToneHz > 0 {
			plan.Pieces = append(plan.Pieces, Piece{Kind: KindTone, Length: opts.CueTone, Frequency: opts.CueToneHz})
		}
		plan.Pieces = appendSilence(plan.Pieces, opts.CueSilence)
		if original > 0 {
			plan.Pieces = append(plan.Pieces, originalPiece(0, original))
		}
	}
	return plan
}

func originalPiece(start, end time.Duration) Piece {
	return Piece{Kind: KindOriginal, Start: start, End: end}
}

func appendSilence(pieces []Piece, d time.Duration) []Piece {
	if d <= 0 {
		return pieces
	}
	return append(pieces, Piece{Kind: KindSilence, Length: d})
}

func clampSpan(start, end, original time.Duration) (time.Duration, time.Duration) {
	if start < 0 {
		start = 0
	}
	if original > 0 {
		if start > original {
			start = original
		}
		if end > original {
			end = original
		}
	}
	return start, end
}
