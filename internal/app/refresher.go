package app

import (
	"context"
	"time"

	"github.com/charmbracelet/log"

	"github.com/five82/tabby/internal/coord"
	"github.com/five82/tabby/internal/logging"
)

const maxBackoff = 30 * time.Second

// Refresher repeats the active list operation. *view.ListScreen implements it.
type Refresher interface {
	Refresh() *coord.Task
}

// StartRefresher launches a background goroutine that calls target.Refresh
// every interval until ctx is cancelled. After failures the delay grows
// exponentially up to maxBackoff. It returns immediately; a non-positive
// interval starts nothing.
func StartRefresher(ctx context.Context, target Refresher, interval time.Duration, logger *log.Logger) {
	if interval <= 0 || target == nil {
		return
	}
	logger = logging.OrDiscard(logger).With("component", "refresher")

	go func() {
		failures := 0
		timer := time.NewTimer(interval)
		defer timer.Stop()

		for {
			select {
			case <-ctx.Done():
				return
			case <-timer.C:
			}

			task := target.Refresh()
			if err := task.Wait(ctx); err != nil {
				if ctx.Err() != nil {
					return
				}
				failures++
				logger.Warn("background refresh failed", "failures", failures, "error", err)
			} else {
				if failures > 0 {
					logger.Info("background refresh recovered", "after_failures", failures)
				}
				failures = 0
			}
			timer.Reset(calculateBackoff(failures, interval))
		}
	}()
}

// calculateBackoff doubles base for every consecutive failure. The result is
// capped at maxBackoff, or at base when base is longer.
func calculateBackoff(failures int, base time.Duration) time.Duration {
	if failures <= 0 {
		return base
	}
	limit := max(maxBackoff, base)
	delay := base
	for i := 0; i < failures; i++ {
		delay *= 2
		if delay >= limit {
			return limit
		}
	}
	return delay
}
