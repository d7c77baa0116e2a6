package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"kotoba/internal/services"
)

type speechRequest struct {
	Model          string `json:"model"`
	Voice          string `json:"voice"`
	Input          string `json:"input"`
	ResponseFormat string `json:"response_format"`
}

// Synthesize renders text as MP3 speech and writes it to dest. A partially
// written file is removed on failure.
func (c *Client) Synthesize(ctx context.Context, text, dest string) error {
	text = strings.TrimSpace(text)
	if text == "" {
		return services.Wrap(services.ErrValidation, "openai", "synthesize", "text required", nil)
	}
	endpoint, err := c.endpoint("audio/speech")
	if err != nil {
		return services.Wrap(services.ErrConfiguration, "openai", "synthesize", "build url", err)
	}
	encoded, err := json.Marshal(speechRequest{
		Model:          c.cfg.TTSModel,
		Voice:          c.cfg.TTSVoice,
		Input:          text,
		ResponseFormat: "mp3",
	})
	if err != nil {
		return fmt.Errorf("synthesize: encode body: %w", err)
	}

	audio, err := c.do(ctx, "synthesize", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return err
	}
	if len(audio) == 0 {
		return services.Wrap(services.ErrTransient, "openai", "synthesize", "empty audio response", nil)
	}

	if err := os.MkdirAll(filepath.Dir(dest), 0o755); err != nil {
		return fmt.Errorf("synthesize: ensure clip directory: %w", err)
	}
	if err := os.WriteFile(dest, audio, 0o644); err != nil {
		_ = os.Remove(dest)
		return fmt.Errorf("synthesize: write clip: %w", err)
	}
	return nil
}
