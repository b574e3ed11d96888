package codec

import (
	"context"
	"sync/atomic"
	"testing"
	"time"
)

func TestScheduler_StartStop(t *testing.T) {
	s := NewScheduler()
	var ticks atomic.Int32

	s.Start(10*time.Millisecond, func(context.Context) { ticks.Add(1) })
	if !s.Running() {
		t.Fatal("Running() = false after Start")
	}

	time.Sleep(55 * time.Millisecond)
	s.Stop()

	if s.Running() {
		t.Error("Running() = true after Stop")
	}
	if ticks.Load() == 0 {
		t.Error("callback never ran")
	}

	// No ticks after Stop returns
	after := ticks.Load()
	time.Sleep(30 * time.Millisecond)
	if got := ticks.Load(); got != after {
		t.Errorf("ticks after Stop = %d, want %d", got, after)
	}
}

func TestScheduler_StartTwiceReplacesTimer(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	var first, second atomic.Int32
	s.Start(5*time.Millisecond, func(context.Context) { first.Add(1) })
	time.Sleep(20 * time.Millisecond)

	s.Start(40*time.Millisecond, func(context.Context) { second.Add(1) })
	firstAtRestart := first.Load()

	time.Sleep(190 * time.Millisecond)

	if got := first.Load(); got != firstAtRestart {
		t.Errorf("first loop ticked %d more times after restart", got-firstAtRestart)
	}
	// ~4 ticks at 40ms; a stray 5ms timer would give dozens
	if got := second.Load(); got < 2 || got > 6 {
		t.Errorf("second loop ticks = %d, want 2..6", got)
	}
	if got := s.Interval(); got != 40*time.Millisecond {
		t.Errorf("Interval() = %v, want 40ms", got)
	}
}

func TestScheduler_DoubleStop(t *testing.T) {
	s := NewScheduler()

	// Stop on an idle scheduler is a no-op
	s.Stop()

	s.Start(time.Hour, func(context.Context) {})
	s.Stop()
	s.Stop()

	if s.Running() {
		t.Error("Running() = true after double Stop")
	}
	if got := s.Interval(); got != 0 {
		t.Errorf("Interval() = %v, want 0 when idle", got)
	}
}

func TestScheduler_DefaultInterval(t *testing.T) {
	s := NewScheduler()
	defer s.Stop()

	s.Start(0, func(context.Context) {})
	if got := s.Interval(); got != DefaultPollInterval {
		t.Errorf("Interval() = %v, want %v", got, DefaultPollInterval)
	}
}

func TestScheduler_StopCancelsInFlightTick(t *testing.T) {
	s := NewScheduler()
	entered := make(chan struct{})
	var cancelled atomic.Bool

	s.Start(5*time.Millisecond, func(ctx context.Context) {
		select {
		case entered <- struct{}{}:
		default:
		}
		<-ctx.Done()
		cancelled.Store(true)
	})

	select {
	case <-entered:
	case <-time.After(time.Second):
		t.Fatal("tick never started")
	}

	s.Stop()
	if !cancelled.Load() {
		t.Error("in-flight tick context was not cancelled before Stop returned")
	}
}

func TestScheduler_SlowTickDropsMissedTicks(t *testing.T) {
	s := NewScheduler()
	var ticks, active, overlap atomic.Int32

	s.Start(5*time.Millisecond, func(context.Context) {
		if active.Add(1) > 1 {
			overlap.Add(1)
		}
		ticks.Add(1)
		time.Sleep(30 * time.Millisecond)
		active.Add(-1)
	})
	time.Sleep(100 * time.Millisecond)
	s.Stop()

	if overlap.Load() != 0 {
		t.Error("ticks overlapped")
	}
	// 100ms of 30ms ticks allows at most 4, far fewer than the 20 scheduled
	if got := ticks.Load(); got > 5 {
		t.Errorf("ticks = %d, want missed ticks dropped", got)
	}
}
