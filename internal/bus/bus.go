// Package bus carries core events to presentation subscribers. The core
// never blocks on a slow consumer: publishing is non-blocking and drops are
// counted instead.
package bus

import (
	"context"
	"errors"
	"sync/atomic"
	"time"

	"github.com/shopspring/decimal"

	"main/internal/schema"
)

var (
	ErrQueueFull   = errors.New("event queue full")
	ErrQueueClosed = errors.New("event queue closed")
)

// EventType defines the category of a core event.
type EventType uint16

const (
	EventUnknown EventType = iota
	EventStateChange
	EventQuoteUpdate
	EventOrderUpdate
	EventPositionChange
)

// Event is the unit delivered to presentation subscribers. Only the fields
// relevant to the event type are populated.
type Event struct {
	Type EventType
	Time time.Time

	// EventStateChange
	State schema.ConnectionState

	// EventQuoteUpdate, EventOrderUpdate, EventPositionChange
	Instrument schema.InstrumentKey

	// EventOrderUpdate
	OrderID    uint64
	OrderState schema.OrderState
	Side       schema.OrderSide
	Qty        schema.Quantity
	LimitPrice schema.Price

	// EventPositionChange
	PositionQty schema.Quantity
	AverageCost decimal.Decimal
	RealizedPnL decimal.Decimal
}

// Queue is a bounded, non-blocking event queue.
type Queue struct {
	ch     chan Event
	closed uint32
}

// NewQueue allocates a queue with the given capacity.
func NewQueue(capacity int) *Queue {
	if capacity <= 0 {
		capacity = 1
	}
	return &Queue{ch: make(chan Event, capacity)}
}

// TryPublish enqueues an event without blocking.
func (q *Queue) TryPublish(e Event) error {
	if atomic.LoadUint32(&q.closed) != 0 {
		return ErrQueueClosed
	}
	select {
	case q.ch <- e:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops the queue from accepting new events.
func (q *Queue) Close() {
	if atomic.CompareAndSwapUint32(&q.closed, 0, 1) {
		close(q.ch)
	}
}

// Run consumes events until the context is done or the queue is closed.
func (q *Queue) Run(ctx context.Context, handler func(Event)) {
	for {
		select {
		case <-ctx.Done():
			return
		case e, ok := <-q.ch:
			if !ok {
				return
			}
			handler(e)
		}
	}
}
