package sched

import (
	"context"
	"sync"
	"time"
)

// Scheduler runs recurring and one-shot callbacks on its own goroutines.
// Callbacks must not block on I/O; outcomes of anything they start arrive
// later as asynchronous events.
type Scheduler struct {
	clock Clock
	wg    sync.WaitGroup
}

// New creates a scheduler on the given clock. A nil clock means wall time.
func New(clock Clock) *Scheduler {
	if clock == nil {
		clock = RealClock{}
	}
	return &Scheduler{clock: clock}
}

// Clock returns the scheduler's time source.
func (s *Scheduler) Clock() Clock {
	return s.clock
}

// Every invokes fn at a fixed cadence until the context is done or the
// returned stop function is called. Stopping twice is safe.
func (s *Scheduler) Every(ctx context.Context, interval time.Duration, fn func(now time.Time)) (stop func()) {
	jobCtx, cancel := context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-jobCtx.Done():
				return
			case now := <-s.clock.After(interval):
				fn(now)
			}
		}
	}()
	return cancel
}

// Once invokes fn a single time after the delay, unless stopped first.
func (s *Scheduler) Once(ctx context.Context, delay time.Duration, fn func(now time.Time)) (stop func()) {
	jobCtx, cancel := context.WithCancel(ctx)
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		select {
		case <-jobCtx.Done():
		case now := <-s.clock.After(delay):
			fn(now)
		}
	}()
	return cancel
}

// Wait blocks until every scheduled job has exited.
func (s *Scheduler) Wait() {
	s.wg.Wait()
}
