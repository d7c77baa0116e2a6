package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"os"
	"path/filepath"
	"strings"
	"time"

	"kotoba/internal/logging"
	"kotoba/internal/services"
	"kotoba/internal/transcript"
)

type verboseTranscription struct {
	Text     string            `json:"text"`
	Language string            `json:"language"`
	Duration float64           `json:"duration"`
	Segments []json.RawMessage `json:"segments"`
}

type fieldSegment struct {
	Start *float64 `json:"start"`
	End   *float64 `json:"end"`
	Text  *string  `json:"text"`
}

// Transcribe uploads one audio file and returns its timestamped fragments.
// Times are relative to the start of the uploaded file. Segments that match
// neither the field-style nor the indexed-style shape are logged and skipped.
func (c *Client) Transcribe(ctx context.Context, path string) ([]transcript.Segment, error) {
	endpoint, err := c.endpoint("audio/transcriptions")
	if err != nil {
		return nil, services.Wrap(services.ErrConfiguration, "openai", "transcribe", "build url", err)
	}
	if _, err := os.Stat(path); err != nil {
		return nil, services.Wrap(services.ErrValidation, "openai", "transcribe", "audio file unavailable", err)
	}

	body, err := c.do(ctx, "transcribe", func(ctx context.Context) (*http.Request, error) {
		payload, contentType, err := c.multipartBody(path)
		if err != nil {
			return nil, err
		}
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, payload)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", contentType)
		return req, nil
	})
	if err != nil {
		return nil, err
	}

	var parsed verboseTranscription
	if err := json.Unmarshal(body, &parsed); err != nil {
		return nil, services.Wrap(services.ErrTransient, "openai", "transcribe",
			fmt.Sprintf("decode response (snippet=%s)", summarizePayloadSnippet(string(body))), err)
	}

	segments := make([]transcript.Segment, 0, len(parsed.Segments))
	for idx, raw := range parsed.Segments {
		segment, err := parseSegment(raw)
		if err != nil {
			logging.WarnWithContext(c.logger, "skipping unparseable segment", "segment_unparseable",
				logging.Int("segment_index", idx),
				logging.String("snippet", summarizePayloadSnippet(string(raw))),
				logging.Error(err),
				logging.String(logging.FieldImpact, "one fragment missing from transcript"),
				logging.String(logging.FieldErrorHint, "check the transcription model response format"),
			)
			continue
		}
		if strings.TrimSpace(segment.Text) == "" {
			continue
		}
		segments = append(segments, segment)
	}
	return segments, nil
}

func (c *Client) multipartBody(path string) (io.Reader, string, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, "", err
	}
	defer file.Close()

	var buf bytes.Buffer
	writer := multipart.NewWriter(&buf)
	fields := [][2]string{
		{"model", c.cfg.TranscriptionModel},
		{"language", c.cfg.Language},
		{"response_format", "verbose_json"},
	}
	for _, field := range fields {
		if err := writer.WriteField(field[0], field[1]); err != nil {
			return nil, "", err
		}
	}
	part, err := writer.CreateFormFile("file", filepath.Base(path))
	if err != nil {
		return nil, "", err
	}
	if _, err := io.Copy(part, file); err != nil {
		return nil, "", err
	}
	if err := writer.Close(); err != nil {
		return nil, "", err
	}
	return &buf, writer.FormDataContentType(), nil
}

// parseSegment accepts {"start":..,"end":..,"text":..} and [start, end, text].
func parseSegment(raw json.RawMessage) (transcript.Segment, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 {
		return transcript.Segment{}, fmt.Errorf("empty segment")
	}
	switch trimmed[0] {
	case '{':
		var fs fieldSegment
		if err := json.Unmarshal(trimmed, &fs); err != nil {
			return transcript.Segment{}, err
		}
		if fs.Start == nil || fs.End == nil || fs.Text == nil {
			return transcript.Segment{}, fmt.Errorf("segment missing start, end, or text")
		}
		return buildSegment(*fs.Start, *fs.End, *fs.Text)
	case '[':
		var parts []json.RawMessage
		if err := json.Unmarshal(trimmed, &parts); err != nil {
			return transcript.Segment{}, err
		}
		if len(parts) < 3 {
			return transcript.Segment{}, fmt.Errorf("indexed segment has %d elements", len(parts))
		}
		var start, end float64
		var text string
		if err := json.Unmarshal(parts[0], &start); err != nil {
			return transcript.Segment{}, fmt.Errorf("indexed start: %w", err)
		}
		if err := json.Unmarshal(parts[1], &end); err != nil {
			return transcript.Segment{}, fmt.Errorf("indexed end: %w", err)
		}
		if err := json.Unmarshal(parts[2], &text); err != nil {
			return transcript.Segment{}, fmt.Errorf("indexed text: %w", err)
		}
		return buildSegment(start, end, text)
	default:
		return transcript.Segment{}, fmt.Errorf("unexpected segment shape")
	}
}

func buildSegment(start, end float64, text string) (transcript.Segment, error) {
	if start < 0 || end < 0 {
		return transcript.Segment{}, fmt.Errorf("negative timestamp")
	}
	if end < start {
		end = start
	}
	return transcript.Segment{
		Text:  strings.TrimSpace(text),
		Start: seconds(start),
		End:   seconds(end),
	}, nil
}

func seconds(value float64) time.Duration {
	return time.Duration(value * float64(time.Second)).Round(time.Millisecond)
}
