// Package sim is an in-process venue used by package tests and the paper
// trading command. It honors the callback contract of the real session:
// events are delivered strictly serialized in emission order, and commands
// never block on delivery.
package sim

import (
	"math/rand"
	"sync"
	"time"

	"github.com/yanun0323/errors"

	"main/internal/schema"
	"main/internal/venue"
)

var (
	ErrNotBound     = errors.New("sim: no event sink bound")
	ErrNotConnected = errors.New("sim: not connected")
	ErrBadOrder     = errors.New("sim: invalid order payload")
)

// Config controls identity conflicts and fault injection.
type Config struct {
	// Seed fixes the fault-injection rng; zero means current time.
	Seed int64
	// UsedIdentities are client ids that conflict on connect.
	UsedIdentities []int
	// ConnectFailures makes the first N connect attempts fail with a
	// transport error after the identity check passes.
	ConnectFailures int
	// DropRate and DuplicateRate apply chaos to emitted callbacks.
	DropRate      float64
	DuplicateRate float64
}

type bookOrder struct {
	order     venue.Order
	remaining schema.Quantity
}

// Venue implements venue.Commander and drives a venue.Events sink.
type Venue struct {
	cfg Config

	mu          sync.Mutex
	events      venue.Events
	rng         *rand.Rand
	connected   bool
	failures    int
	used        map[int]bool
	orders      map[uint64]*bookOrder
	subs        map[uint64]schema.InstrumentKey
	submissions []venue.Order
	cancels     []uint64

	// emission queue; drained by the first emitter so that reentrant
	// commands issued from inside a callback cannot deadlock or reorder.
	queue       []func(venue.Events)
	dispatching bool
}

// New creates a simulated venue.
func New(cfg Config) *Venue {
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}
	used := make(map[int]bool, len(cfg.UsedIdentities))
	for _, id := range cfg.UsedIdentities {
		used[id] = true
	}
	return &Venue{
		cfg:      cfg,
		rng:      rand.New(rand.NewSource(cfg.Seed)),
		failures: cfg.ConnectFailures,
		used:     used,
		orders:   make(map[uint64]*bookOrder),
		subs:     make(map[uint64]schema.InstrumentKey),
	}
}

// Bind attaches the callback sink. Must happen before any command.
func (v *Venue) Bind(events venue.Events) {
	v.mu.Lock()
	v.events = events
	v.mu.Unlock()
}

// Connect simulates identity negotiation.
func (v *Venue) Connect(identity int) error {
	v.mu.Lock()
	if v.events == nil {
		v.mu.Unlock()
		return ErrNotBound
	}
	if v.used[identity] {
		v.enqueue(func(e venue.Events) {
			e.OnError(venue.CodeIdentityInUse, 0, "client id is already in use")
		})
		v.drain()
		return nil
	}
	if v.failures > 0 {
		v.failures--
		v.enqueue(func(e venue.Events) {
			e.OnError(venue.CodeCannotConnect, 0, "couldn't connect to venue")
		})
		v.drain()
		return nil
	}
	v.connected = true
	v.enqueue(func(e venue.Events) { e.OnConnected() })
	v.drain()
	return nil
}

// Disconnect closes the session cleanly.
func (v *Venue) Disconnect() error {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return nil
	}
	v.connected = false
	// Tick streams are session-scoped; resting orders survive until the
	// owner cancels them.
	v.subs = make(map[uint64]schema.InstrumentKey)
	v.enqueue(func(e venue.Events) { e.OnDisconnected() })
	v.drain()
	return nil
}

// SubmitOrder accepts a fully populated order payload.
func (v *Venue) SubmitOrder(order venue.Order) error {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return ErrNotConnected
	}
	if order.Qty <= 0 || order.LimitPrice <= 0 || order.TimeInForce == "" || order.Type == "" {
		v.mu.Unlock()
		return ErrBadOrder
	}
	v.orders[order.OrderID] = &bookOrder{order: order, remaining: order.Qty}
	v.submissions = append(v.submissions, order)
	id := order.OrderID
	v.enqueue(func(e venue.Events) {
		e.OnOrderStatus(id, schema.VenueStatusSubmitted, 0, venue.NoPrice)
	})
	v.drain()
	return nil
}

// CancelOrder cancels a resting order: the venue confirms with the benign
// cancel notice followed by the terminal status. Cancels racing a fill on
// an already-gone order are tolerated silently.
func (v *Venue) CancelOrder(orderID uint64) error {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return ErrNotConnected
	}
	v.cancels = append(v.cancels, orderID)
	if _, ok := v.orders[orderID]; !ok {
		v.mu.Unlock()
		return nil
	}
	delete(v.orders, orderID)
	v.enqueue(func(e venue.Events) {
		e.OnError(venue.CodeOrderCancelled, orderID, "order cancelled")
		e.OnOrderStatus(orderID, schema.VenueStatusCancelled, 0, venue.NoPrice)
	})
	v.drain()
	return nil
}

// SubscribeQuotes starts a tick stream binding.
func (v *Venue) SubscribeQuotes(correlationID uint64, key schema.InstrumentKey) error {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return ErrNotConnected
	}
	v.subs[correlationID] = key
	v.mu.Unlock()
	return nil
}

// UnsubscribeQuotes removes a tick stream binding.
func (v *Venue) UnsubscribeQuotes(correlationID uint64) error {
	v.mu.Lock()
	delete(v.subs, correlationID)
	v.mu.Unlock()
	return nil
}

// enqueue appends an emission; the caller must hold v.mu.
func (v *Venue) enqueue(fn func(venue.Events)) {
	if v.cfg.DropRate > 0 && v.rng.Float64() < v.cfg.DropRate {
		return
	}
	v.queue = append(v.queue, fn)
	if v.cfg.DuplicateRate > 0 && v.rng.Float64() < v.cfg.DuplicateRate {
		v.queue = append(v.queue, fn)
	}
}

// drain delivers queued emissions in order without holding the lock, so a
// callback may issue venue commands reentrantly. The caller must hold
// v.mu; drain releases it. Only the outermost caller actually drains.
func (v *Venue) drain() {
	if v.dispatching {
		v.mu.Unlock()
		return
	}
	v.dispatching = true
	for len(v.queue) > 0 {
		fn := v.queue[0]
		v.queue = v.queue[1:]
		events := v.events
		v.mu.Unlock()
		if events != nil {
			fn(events)
		}
		v.mu.Lock()
	}
	v.dispatching = false
	v.mu.Unlock()
}
