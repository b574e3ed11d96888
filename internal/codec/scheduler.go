package codec

import (
	"context"
	"sync"
	"time"
)

// DefaultPollInterval is used when StartPolling is given a non-positive interval.
const DefaultPollInterval = 2000 * time.Millisecond

// Scheduler runs a callback on a fixed cadence with at most one active timer.
//
// States are Idle and Polling. Start while Polling replaces the running loop;
// Stop while Idle is a no-op. Ticks are serialized: if a callback overruns the
// interval, the missed ticks are dropped rather than queued.
//
// Thread Safety: Start, Stop and Running are safe for concurrent use. Stop
// waits for the loop to exit, so it must not be called from the callback.
type Scheduler struct {
	mu       sync.Mutex
	cancel   context.CancelFunc
	done     chan struct{}
	interval time.Duration
}

// NewScheduler returns an idle scheduler.
func NewScheduler() *Scheduler {
	return &Scheduler{}
}

// Start begins invoking fn every interval. The context passed to fn is
// cancelled when the scheduler is stopped or restarted, which aborts any
// request the callback has in flight.
//
// Parameters:
//   - interval: Tick cadence; values <= 0 use DefaultPollInterval
//   - fn: Tick callback, called from the scheduler goroutine
func (s *Scheduler) Start(interval time.Duration, fn func(ctx context.Context)) {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.stopLocked()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	s.interval = interval

	go s.run(ctx, done, interval, fn)
}

// Stop cancels the timer and waits for the loop to exit.
// Safe to call multiple times.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stopLocked()
}

// Running reports whether a loop is active.
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cancel != nil
}

// Interval returns the cadence of the active loop, or 0 when idle.
func (s *Scheduler) Interval() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.interval
}

// stopLocked tears down the active loop. Caller must hold s.mu.
func (s *Scheduler) stopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done

	s.cancel = nil
	s.done = nil
	s.interval = 0
}

func (s *Scheduler) run(ctx context.Context, done chan struct{}, interval time.Duration, fn func(ctx context.Context)) {
	defer close(done)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if ctx.Err() != nil {
				return
			}
			fn(ctx)
		}
	}
}
