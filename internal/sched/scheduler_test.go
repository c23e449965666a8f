package sched

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func waitFired(t *testing.T, clock *FakeClock, step time.Duration, fired <-chan time.Time) time.Time {
	t.Helper()
	deadline := time.After(3 * time.Second)
	for {
		clock.Advance(step)
		select {
		case now := <-fired:
			return now
		case <-deadline:
			t.Fatal("callback never fired")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestEveryFiresOnClockAdvance(t *testing.T) {
	start := time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC)
	clock := NewFakeClock(start)
	s := New(clock)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	fired := make(chan time.Time, 16)
	stop := s.Every(ctx, time.Second, func(now time.Time) { fired <- now })
	defer stop()

	first := waitFired(t, clock, time.Second, fired)
	assert.False(t, first.Before(start.Add(time.Second)))

	second := waitFired(t, clock, time.Second, fired)
	assert.True(t, second.After(first))
}

func TestEveryStops(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	s := New(clock)

	fired := make(chan time.Time, 16)
	stop := s.Every(context.Background(), time.Second, func(now time.Time) { fired <- now })
	stop()
	stop() // stopping twice is safe

	s.Wait()
	clock.Advance(10 * time.Second)
	select {
	case <-fired:
		t.Fatal("callback fired after stop")
	default:
	}
}

func TestOnceFiresOnceThenExits(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	s := New(clock)

	fired := make(chan time.Time, 16)
	stop := s.Once(context.Background(), 5*time.Second, func(now time.Time) { fired <- now })
	defer stop()

	waitFired(t, clock, 5*time.Second, fired)
	s.Wait()

	clock.Advance(time.Minute)
	select {
	case <-fired:
		t.Fatal("one-shot fired twice")
	default:
	}
}

func TestOnceCancelledByContext(t *testing.T) {
	clock := NewFakeClock(time.Unix(0, 0))
	s := New(clock)
	ctx, cancel := context.WithCancel(context.Background())

	fired := make(chan time.Time, 1)
	s.Once(ctx, time.Hour, func(now time.Time) { fired <- now })
	cancel()
	s.Wait()

	select {
	case <-fired:
		t.Fatal("cancelled one-shot still fired")
	default:
	}
}

func TestFakeClockAdvance(t *testing.T) {
	clock := NewFakeClock(time.Unix(100, 0))
	ch := clock.After(10 * time.Second)

	clock.Advance(5 * time.Second)
	select {
	case <-ch:
		t.Fatal("waiter fired early")
	default:
	}

	clock.Advance(5 * time.Second)
	select {
	case now := <-ch:
		assert.Equal(t, time.Unix(110, 0), now)
	default:
		t.Fatal("waiter did not fire at its deadline")
	}

	require.Equal(t, time.Unix(110, 0), clock.Now())
}
