package pipeline

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"kotoba/internal/logging"
	"kotoba/internal/services"
)

// stage runs fn with the phase recorded on the context and logs its start,
// completion, or failure.
func (p *Pipeline) stage(ctx context.Context, name string, fn func(context.Context, *slog.Logger) error) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	stageCtx := services.WithPhase(ctx, name)
	logger := logging.WithContext(stageCtx, p.logger)
	logger.Info("stage started", logging.String(logging.FieldEventType, "stage_start"))

	started := time.Now()
	err := fn(stageCtx, logger)
	elapsed := time.Since(started)
	p.deps.Metrics.ObservePhase(name, elapsed)

	switch {
	case err == nil:
		logger.Info("stage completed",
			logging.String(logging.FieldEventType, "stage_complete"),
			logging.Duration("elapsed", elapsed),
		)
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		logger.Info("stage interrupted",
			logging.String(logging.FieldEventType, "stage_cancelled"),
			logging.Duration("elapsed", elapsed),
		)
	default:
		logging.ErrorWithContext(logger, "stage failed", "stage_failure",
			logging.String("error_class", services.Classify(err)),
			logging.Error(err),
			logging.String(logging.FieldErrorHint, services.FailureHint(err)),
		)
	}
	return err
}
