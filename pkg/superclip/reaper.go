package superclip

import (
	"context"
	"log/slog"
	"sync"
	"time"
)

// Reaper periodically purges inactive clips. It wraps a single
// recurring purge so overlapping sweeps cannot happen; the repository's
// own write discipline serializes the purge against request traffic.
type Reaper struct {
	service  Service
	interval time.Duration
	logger   *slog.Logger

	stopOnce sync.Once
	stop     chan struct{}
	done     chan struct{}
}

// NewReaper creates a reaper sweeping at the given interval. A zero or
// negative interval falls back to five minutes.
func NewReaper(service Service, interval time.Duration, logger *slog.Logger) *Reaper {
	if interval <= 0 {
		interval = 5 * time.Minute
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Reaper{
		service:  service,
		interval: interval,
		logger:   logger,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
}

// Start sweeps once synchronously, clearing leftovers from a previous
// run, then launches the background loop. The context is used for each
// purge call; cancelling it stops the loop just like Stop does.
func (r *Reaper) Start(ctx context.Context) {
	r.sweep(ctx)
	go r.run(ctx)
}

func (r *Reaper) run(ctx context.Context) {
	defer close(r.done)
	ticker := time.NewTicker(r.interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			r.sweep(ctx)
		case <-r.stop:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (r *Reaper) sweep(ctx context.Context) {
	count, err := r.service.PurgeInactive(ctx)
	if err != nil {
		r.logger.Error("purge of inactive clips failed", "error", err)
		return
	}
	if count > 0 {
		r.logger.Info("purged inactive clips", "count", count)
	}
}

// Stop signals the sweep to end and waits for any in-flight purge to
// finish. Safe to call more than once.
func (r *Reaper) Stop() {
	r.stopOnce.Do(func() {
		close(r.stop)
	})
	<-r.done
}
