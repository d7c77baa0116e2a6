package openai

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"

	"kotoba/internal/logging"
	"kotoba/internal/services"
)

const (
	defaultBaseURL        = "https://api.openai.com/v1"
	defaultHTTPTimeout    = 120 * time.Second
	defaultRetryBaseDelay = 1 * time.Second
	defaultRetryMaxDelay  = 30 * time.Second
	defaultRetryAttempts  = 4
	maxErrorBody          = 64 * 1024
)

// Config captures the runtime settings required to talk to an
// OpenAI-compatible endpoint.
type Config struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	TranslationModel   string
	TTSModel           string
	TTSVoice           string
	Language           string
	TimeoutSeconds     int
}

// Client wraps the transcription, chat completion, and speech endpoints.
type Client struct {
	cfg        Config
	httpClient *http.Client
	logger     *slog.Logger

	retryMaxAttempts int
	retryBaseDelay   time.Duration
	retryMaxDelay    time.Duration
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithRetryMaxAttempts overrides the number of attempts per request (defaults to 4).
func WithRetryMaxAttempts(attempts int) Option {
	return func(c *Client) {
		c.retryMaxAttempts = attempts
	}
}

// WithRetryBackoff overrides the retry backoff delays.
func WithRetryBackoff(baseDelay, maxDelay time.Duration) Option {
	return func(c *Client) {
		c.retryBaseDelay = baseDelay
		c.retryMaxDelay = maxDelay
	}
}

// WithLogger attaches a logger for retry diagnostics.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient constructs a client using the supplied configuration.
func NewClient(cfg Config, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.TimeoutSeconds > 0 {
		timeout = time.Duration(cfg.TimeoutSeconds) * time.Second
	}
	client := &Client{
		cfg: Config{
			APIKey:             strings.TrimSpace(cfg.APIKey),
			BaseURL:            strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
			TranscriptionModel: strings.TrimSpace(cfg.TranscriptionModel),
			TranslationModel:   strings.TrimSpace(cfg.TranslationModel),
			TTSModel:           strings.TrimSpace(cfg.TTSModel),
			TTSVoice:           strings.TrimSpace(cfg.TTSVoice),
			Language:           strings.TrimSpace(cfg.Language),
			TimeoutSeconds:     cfg.TimeoutSeconds,
		},
		httpClient:       &http.Client{Timeout: timeout},
		retryMaxAttempts: defaultRetryAttempts,
		retryBaseDelay:   defaultRetryBaseDelay,
		retryMaxDelay:    defaultRetryMaxDelay,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.cfg.BaseURL == "" {
		client.cfg.BaseURL = defaultBaseURL
	}
	if client.cfg.TranscriptionModel == "" {
		client.cfg.TranscriptionModel = "whisper-1"
	}
	if client.cfg.TranslationModel == "" {
		client.cfg.TranslationModel = "gpt-3.5-turbo"
	}
	if client.cfg.TTSModel == "" {
		client.cfg.TTSModel = "tts-1"
	}
	if client.cfg.TTSVoice == "" {
		client.cfg.TTSVoice = "alloy"
	}
	if client.cfg.Language == "" {
		client.cfg.Language = "ja"
	}
	client.logger = logging.NewComponentLogger(client.logger, "openai")
	return client
}

type httpStatusError struct {
	StatusCode int
	Body       string
	RetryAfter time.Duration
}

func (e *httpStatusError) Error() string {
	return fmt.Sprintf("http %d: %s", e.StatusCode, summarizePayloadSnippet(e.Body))
}

// requestBuilder produces a fresh request per attempt so bodies can be replayed.
type requestBuilder func(ctx context.Context) (*http.Request, error)

// do executes a request with exponential backoff on rate limits, server
// errors, and timeouts. Other failures are returned on the first attempt.
func (c *Client) do(ctx context.Context, op string, build requestBuilder) ([]byte, error) {
	if c.cfg.APIKey == "" {
		return nil, services.Wrap(services.ErrConfiguration, "openai", op, "api key required", nil)
	}

	hint := &retryAfterBackOff{delegate: c.newBackOff(), max: c.capDelay()}
	policy := backoff.WithContext(backoff.WithMaxRetries(hint, uint64(c.retries())), ctx)

	var body []byte
	attempt := 0
	operation := func() error {
		attempt++
		req, err := build(ctx)
		if err != nil {
			return backoff.Permanent(err)
		}
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
		data, err := c.sendOnce(req)
		if err == nil {
			body = data
			return nil
		}
		if !isRetryable(ctx, err) {
			return backoff.Permanent(err)
		}
		var statusErr *httpStatusError
		if errors.As(err, &statusErr) {
			hint.next = statusErr.RetryAfter
		}
		return err
	}
	notify := func(err error, delay time.Duration) {
		c.logger.Debug("retrying request",
			logging.String("operation", op),
			logging.Int("attempt", attempt),
			logging.Duration("delay", delay),
			logging.Error(err),
		)
	}

	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("%s: %w", op, ctxErr)
		}
		return nil, classify(op, attempt, err)
	}
	return body, nil
}

func (c *Client) sendOnce(req *http.Request) ([]byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("http error (timeout=%s): %w", c.timeoutDuration(), err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		retryAfter, _ := parseRetryAfter(resp.Header.Get("Retry-After"))
		return nil, &httpStatusError{
			StatusCode: resp.StatusCode,
			Body:       strings.TrimSpace(string(snippet)),
			RetryAfter: retryAfter,
		}
	}
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body (timeout=%s): %w", c.timeoutDuration(), err)
	}
	return body, nil
}

// classify tags a final request error with the marker the pipeline acts on.
func classify(op string, attempts int, err error) error {
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		switch {
		case statusErr.StatusCode == http.StatusUnauthorized, statusErr.StatusCode == http.StatusForbidden:
			return services.Wrap(services.ErrConfiguration, "openai", op, "credentials rejected", err)
		case statusErr.StatusCode == http.StatusRequestEntityTooLarge:
			return services.Wrap(services.ErrOversize, "openai", op, "payload rejected", err)
		case statusErr.StatusCode == http.StatusBadRequest && looksLikeSizeOrFormat(statusErr.Body):
			return services.Wrap(services.ErrOversize, "openai", op, "payload rejected", err)
		case retryableStatus(statusErr.StatusCode):
			return services.Wrap(services.ErrTransient, "openai", op, fmt.Sprintf("failed after %d attempts", attempts), err)
		default:
			return services.Wrap(services.ErrValidation, "openai", op, "request rejected", err)
		}
	}
	if isTimeout(err) {
		return services.Wrap(services.ErrTransient, "openai", op, fmt.Sprintf("failed after %d attempts", attempts), err)
	}
	return services.Wrap(services.ErrTransient, "openai", op, "request failed", err)
}

func looksLikeSizeOrFormat(body string) bool {
	lower := strings.ToLower(body)
	for _, needle := range []string{
		"maximum content size",
		"too large",
		"file size",
		"invalid file format",
		"could not be decoded",
		"unsupported file",
	} {
		if strings.Contains(lower, needle) {
			return true
		}
	}
	return false
}

func retryableStatus(code int) bool {
	return code == http.StatusRequestTimeout ||
		code == http.StatusTooManyRequests ||
		code >= http.StatusInternalServerError
}

func isRetryable(ctx context.Context, err error) bool {
	if err == nil || ctx.Err() != nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	var statusErr *httpStatusError
	if errors.As(err, &statusErr) {
		return retryableStatus(statusErr.StatusCode)
	}
	return isTimeout(err)
}

func isTimeout(err error) bool {
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}
	var urlErr *url.Error
	return errors.As(err, &urlErr) && urlErr.Timeout()
}

func (c *Client) newBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = c.retryBaseDelay
	b.MaxInterval = c.capDelay()
	b.MaxElapsedTime = 0
	b.Multiplier = 2
	b.RandomizationFactor = 0.2
	return b
}

func (c *Client) retries() int {
	if c.retryMaxAttempts <= 1 {
		return 0
	}
	return c.retryMaxAttempts - 1
}

func (c *Client) capDelay() time.Duration {
	if c.retryMaxDelay > 0 {
		return c.retryMaxDelay
	}
	return defaultRetryMaxDelay
}

func (c *Client) timeoutDuration() time.Duration {
	if c.httpClient == nil || c.httpClient.Timeout <= 0 {
		return defaultHTTPTimeout
	}
	return c.httpClient.Timeout
}

func (c *Client) endpoint(path string) (string, error) {
	return url.JoinPath(c.cfg.BaseURL, path)
}

// retryAfterBackOff prefers a server-provided Retry-After hint over the
// exponential schedule for the next wait only.
type retryAfterBackOff struct {
	delegate backoff.BackOff
	next     time.Duration
	max      time.Duration
}

func (b *retryAfterBackOff) NextBackOff() time.Duration {
	computed := b.delegate.NextBackOff()
	if b.next <= 0 || computed == backoff.Stop {
		return computed
	}
	hint := b.next
	b.next = 0
	if b.max > 0 && hint > b.max {
		hint = b.max
	}
	return hint
}

func (b *retryAfterBackOff) Reset() {
	b.next = 0
	b.delegate.Reset()
}

func parseRetryAfter(value string) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.Atoi(value); err == nil {
		if seconds < 0 {
			return 0, false
		}
		return time.Duration(seconds) * time.Second, true
	}
	if when, err := http.ParseTime(value); err == nil {
		delay := time.Until(when)
		if delay < 0 {
			return 0, false
		}
		return delay, true
	}
	return 0, false
}

func summarizePayloadSnippet(content string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return "<empty>"
	}
	clean := strings.Join(strings.Fields(trimmed), " ")
	const limit = 160
	runes := []rune(clean)
	if len(runes) > limit {
		clean = string(runes[:limit]) + "..."
	}
	return clean
}
