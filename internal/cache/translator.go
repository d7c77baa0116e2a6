package cache

import (
	"context"
	"log/slog"

	"kotoba/internal/logging"
)

// Translator is the remote translation call the cache sits in front of.
type Translator interface {
	Translate(ctx context.Context, text string) (string, error)
}

// CachedTranslator consults the store before calling the wrapped Translator
// and records successful results. Cache read or write failures are logged and
// never fail the translation.
type CachedTranslator struct {
	store  *Store
	model  string
	next   Translator
	logger *slog.Logger
	onHit  func()
}

// NewTranslator wraps next with store. onHit, when set, runs on every cache hit.
func NewTranslator(store *Store, model string, next Translator, logger *slog.Logger, onHit func()) *CachedTranslator {
	return &CachedTranslator{
		store:  store,
		model:  model,
		next:   next,
		logger: logging.NewComponentLogger(logger, "cache"),
		onHit:  onHit,
	}
}

// Translate returns the cached translation of text or fetches and stores it.
func (c *CachedTranslator) Translate(ctx context.Context, text string) (string, error) {
	if c.store != nil {
		cached, ok, err := c.store.Get(ctx, c.model, text)
		switch {
		case err != nil:
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "translation cache read failed", "cache_read_failed",
				logging.Error(err),
				logging.String(logging.FieldErrorHint, "run 'kotoba cache clear' if the database is corrupt"),
				logging.String(logging.FieldImpact, "translation fetched from the remote service"),
			)
		case ok:
			if c.onHit != nil {
				c.onHit()
			}
			return cached, nil
		}
	}

	translation, err := c.next.Translate(ctx, text)
	if err != nil {
		return "", err
	}
	if c.store != nil {
		if err := c.store.Put(ctx, c.model, text, translation); err != nil {
			logging.WarnWithContext(logging.WithContext(ctx, c.logger), "translation cache write failed", "cache_write_failed",
				logging.Error(err),
				logging.String(logging.FieldImpact, "translation will be fetched again on the next run"),
			)
		}
	}
	return translation, nil
}
