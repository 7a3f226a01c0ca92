// Package governor enforces the global iteration ceiling. Every attempt in
// every phase passes through IncrementAndCheck; when the persisted counter
// reaches the ceiling the calling phase blocks, polling the state store,
// until an operator raises max_iterations. The governor never raises the
// ceiling itself.
package governor

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/autoresearchlab/autolab/internal/runner/state"
)

type Governor struct {
	store        *state.Store
	pollInterval time.Duration
	logger       *slog.Logger
}

func New(store *state.Store, pollInterval time.Duration, logger *slog.Logger) *Governor {
	if pollInterval <= 0 {
		pollInterval = 5 * time.Second
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Governor{store: store, pollInterval: pollInterval, logger: logger}
}

// IncrementAndCheck consumes one iteration from the global budget. State is
// reloaded from disk on every call and every poll tick, so a restarted
// engine resumes the correct count and an operator's concurrent ceiling edit
// is observed without any signal beyond the file itself.
func (g *Governor) IncrementAndCheck(ctx context.Context) error {
	rec, err := g.store.CompareAndSwap(func(r *state.Record) {
		r.CurrentIterations++
	})
	if err != nil {
		return fmt.Errorf("governor: %w", err)
	}
	if rec.MaxIterations <= 0 || rec.CurrentIterations < rec.MaxIterations {
		return nil
	}

	g.logger.Warn("iteration ceiling reached, pausing for operator approval",
		"current_iterations", rec.CurrentIterations,
		"max_iterations", rec.MaxIterations)
	if _, err := g.store.CompareAndSwap(func(r *state.Record) {
		r.Status = state.PhasePaused
		r.Details = fmt.Sprintf("Iteration limit reached (%d/%d). Raise max_iterations to resume.",
			rec.CurrentIterations, rec.MaxIterations)
	}); err != nil {
		return fmt.Errorf("governor: persist pause: %w", err)
	}

	ticker := time.NewTicker(g.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return context.Cause(ctx)
		case <-ticker.C:
		}
		cur, err := g.store.Load()
		if err != nil {
			return fmt.Errorf("governor: reload: %w", err)
		}
		if cur.MaxIterations <= 0 || cur.CurrentIterations < cur.MaxIterations {
			g.logger.Info("iteration ceiling raised, resuming",
				"current_iterations", cur.CurrentIterations,
				"max_iterations", cur.MaxIterations)
			if _, err := g.store.CompareAndSwap(func(r *state.Record) {
				r.Status = state.PhaseRunning
				r.Details = "Resumed after iteration ceiling raise."
			}); err != nil {
				return fmt.Errorf("governor: persist resume: %w", err)
			}
			return nil
		}
	}
}
