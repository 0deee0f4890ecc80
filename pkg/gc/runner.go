package gc

import (
	"context"
	"time"
)

// DefaultInterval is how often the background runner sweeps.
const DefaultInterval = time.Hour

// Runner sweeps on a fixed interval until its context is canceled.
type Runner struct {
	sweeper  *Sweeper
	interval time.Duration
}

// NewRunner wraps a Sweeper in a periodic loop. A non-positive interval
// falls back to DefaultInterval.
func NewRunner(sweeper *Sweeper, interval time.Duration) *Runner {
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Runner{
		sweeper:  sweeper,
		interval: interval,
	}
}

// Run blocks, sweeping every interval, until ctx is canceled. Sweep errors
// are logged and the loop continues; the only exit is context cancellation.
func (r *Runner) Run(ctx context.Context) error {
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
			if _, err := r.sweeper.Sweep(ctx); err != nil {
				r.sweeper.log.Error("content sweep failed", "error", err)
			}
		}
	}
}
