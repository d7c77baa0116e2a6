package openai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"kotoba/internal/services"
)

// TranslationPrompt is the system prompt sent with every translation request.
const TranslationPrompt = "You are a professional Japanese to English translator. " +
	"Translate the given Japanese text to natural, fluent English. " +
	"Only return the English translation, nothing else."

const (
	translationTemperature = 0.3
	translationMaxTokens   = 200
)

type chatCompletionRequest struct {
	Model       string        `json:"model"`
	Messages    []chatMessage `json:"messages"`
	Temperature float64       `json:"temperature"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
}

type chatMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type chatCompletionResponse struct {
	Choices []struct {
		Message      chatMessage `json:"message"`
		Text         string      `json:"text"`
		FinishReason string      `json:"finish_reason"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error"`
}

// Translate returns the English rendering of a single Japanese sentence.
func (c *Client) Translate(ctx context.Context, text string) (string, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return "", services.Wrap(services.ErrValidation, "openai", "translate", "text required", nil)
	}
	endpoint, err := c.endpoint("chat/completions")
	if err != nil {
		return "", services.Wrap(services.ErrConfiguration, "openai", "translate", "build url", err)
	}
	encoded, err := json.Marshal(chatCompletionRequest{
		Model: c.cfg.TranslationModel,
		Messages: []chatMessage{
			{Role: "system", Content: TranslationPrompt},
			{Role: "user", Content: text},
		},
		Temperature: translationTemperature,
		MaxTokens:   translationMaxTokens,
	})
	if err != nil {
		return "", fmt.Errorf("translate: encode body: %w", err)
	}

	body, err := c.do(ctx, "translate", func(ctx context.Context) (*http.Request, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, bytes.NewReader(encoded))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")
		return req, nil
	})
	if err != nil {
		return "", err
	}

	var completion chatCompletionResponse
	if err := json.Unmarshal(body, &completion); err != nil {
		return "", services.Wrap(services.ErrTransient, "openai", "translate", "decode response", err)
	}
	if completion.Error != nil {
		return "", services.Wrap(services.ErrTransient, "openai", "translate", strings.TrimSpace(completion.Error.Message), nil)
	}
	for _, choice := range completion.Choices {
		if content := firstNonEmpty(choice.Message.Content, choice.Text); content != "" {
			return content, nil
		}
	}
	return "", services.Wrap(services.ErrTransient, "openai", "translate",
		fmt.Sprintf("empty content (response_snippet=%s)", summarizePayloadSnippet(string(body))), nil)
}

func firstNonEmpty(values ...string) string {
	for _, value := range values {
		if trimmed := strings.TrimSpace(value); trimmed != "" {
			return trimmed
		}
	}
	return ""
}
