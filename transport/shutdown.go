package transport

import (
	"context"
	"sync/atomic"
	"time"
)

// ShutdownConfig configures graceful shutdown for the HTTP bindings.
type ShutdownConfig struct {
	// Timeout is the maximum time to wait for in-flight requests to
	// complete. Default: 10 seconds.
	Timeout time.Duration

	// DrainDelay is the time to wait before draining begins, giving load
	// balancers a chance to remove the server from the pool. Default: 0.
	DrainDelay time.Duration
}

// DefaultShutdownConfig returns the default shutdown behavior.
func DefaultShutdownConfig() ShutdownConfig {
	return ShutdownConfig{Timeout: 10 * time.Second}
}

// drainTracker counts in-flight requests so Close can wait for them.
type drainTracker struct {
	draining atomic.Bool
	inFlight atomic.Int64
}

// enter registers an in-flight request. It reports false when the
// binding is draining and the request should be rejected.
func (d *drainTracker) enter() bool {
	if d.draining.Load() {
		return false
	}
	d.inFlight.Add(1)
	return true
}

func (d *drainTracker) exit() {
	d.inFlight.Add(-1)
}

// drain flips the tracker into draining mode and waits for in-flight
// requests to finish, up to cfg.Timeout.
func (d *drainTracker) drain(ctx context.Context, cfg ShutdownConfig) error {
	if cfg.DrainDelay > 0 {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(cfg.DrainDelay):
		}
	}
	d.draining.Store(true)

	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultShutdownConfig().Timeout
	}
	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(20 * time.Millisecond)
	defer tick.Stop()

	for {
		if d.inFlight.Load() == 0 {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-deadline.C:
			return context.DeadlineExceeded
		case <-tick.C:
		}
	}
}
