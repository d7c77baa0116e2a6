package main

import (
	"io"
	"log/slog"
	"sync"

	"github.com/schollz/progressbar/v3"

	"kotoba/internal/logging"
	"kotoba/internal/progress"
)

// progressRenderer draws aggregator events as a bar on a terminal and as
// sampled log lines everywhere else.
type progressRenderer struct {
	mu      sync.Mutex
	bar     *progressbar.ProgressBar
	sampler *logging.ProgressSampler
	logger  *slog.Logger
	closed  bool
}

func newProgressRenderer(w io.Writer, logger *slog.Logger) *progressRenderer {
	r := &progressRenderer{logger: logging.NewComponentLogger(logger, "progress")}
	if shouldColorize(w) {
		r.bar = progressbar.NewOptions(100,
			progressbar.OptionSetWriter(w),
			progressbar.OptionSetDescription("Starting"),
			progressbar.OptionSetWidth(30),
			progressbar.OptionShowBytes(false),
			progressbar.OptionSetPredictTime(false),
			progressbar.OptionClearOnFinish(),
		)
		return r
	}
	r.sampler = logging.NewProgressSampler(5)
	return r
}

// Handle is a progress.Listener.
func (r *progressRenderer) Handle(event progress.Event) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	if r.bar != nil {
		if event.Status != "" {
			r.bar.Describe(event.Status)
		}
		_ = r.bar.Set(int(event.Overall))
		if event.Done {
			_ = r.bar.Finish()
		}
		return
	}
	if !event.Done && !r.sampler.ShouldLog(event.Overall, string(event.Phase)) {
		return
	}
	r.logger.Info("progress",
		logging.String(logging.FieldPhase, string(event.Phase)),
		logging.Float64("percent", event.Overall),
		logging.String("status", event.Status),
	)
}

// Close stops drawing. It is safe to call more than once.
func (r *progressRenderer) Close() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.closed {
		return
	}
	r.closed = true
	if r.bar != nil && !r.bar.IsFinished() {
		_ = r.bar.Clear()
	}
}
