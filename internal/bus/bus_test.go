package bus

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestTryPublishNeverBlocks(t *testing.T) {
	q := NewQueue(2)
	require.NoError(t, q.TryPublish(Event{Type: EventStateChange}))
	require.NoError(t, q.TryPublish(Event{Type: EventQuoteUpdate}))

	err := q.TryPublish(Event{Type: EventOrderUpdate})
	assert.ErrorIs(t, err, ErrQueueFull, "a full queue drops instead of blocking the core")
}

func TestPublishAfterClose(t *testing.T) {
	q := NewQueue(1)
	q.Close()
	q.Close() // closing twice is safe
	assert.ErrorIs(t, q.TryPublish(Event{}), ErrQueueClosed)
}

func TestRunDrainsInOrder(t *testing.T) {
	q := NewQueue(8)
	require.NoError(t, q.TryPublish(Event{Type: EventStateChange}))
	require.NoError(t, q.TryPublish(Event{Type: EventOrderUpdate}))
	q.Close()

	var got []EventType
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(context.Background(), func(e Event) {
			got = append(got, e.Type)
		})
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after Close")
	}
	assert.Equal(t, []EventType{EventStateChange, EventOrderUpdate}, got)
}

func TestRunStopsOnContext(t *testing.T) {
	q := NewQueue(1)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		q.Run(ctx, func(Event) {})
	}()

	cancel()
	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after context cancel")
	}
}

func TestZeroCapacityIsClamped(t *testing.T) {
	q := NewQueue(0)
	assert.NoError(t, q.TryPublish(Event{}))
}
