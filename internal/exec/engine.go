// Package exec submits orders and runs the mid-price-chasing protocol:
// work the order at the rounded mid, then concede one tick toward the
// opposing side for every ten seconds the order stays unfilled, using
// cancel-then-replace since the venue offers no native modify.
package exec

import (
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/quote"
	"main/internal/risk"
	"main/internal/sched"
	"main/internal/schema"
	"main/internal/venue"
)

var (
	ErrNotConnected    = errors.New("exec: session not connected")
	ErrInvalidQuantity = errors.New("exec: quantity must be > 0")
	ErrNoQuote         = errors.New("exec: no usable quote for instrument")
	ErrUnknownOrder    = errors.New("exec: order not found")
	ErrDuplicateOrder  = errors.New("exec: order id already live")
)

// StateSource reports the current session connection state.
type StateSource interface {
	State() schema.ConnectionState
}

// Recorder persists fills and terminal order outcomes for the audit trail.
type Recorder interface {
	RecordFill(fill schema.Fill)
	RecordOutcome(o Outcome)
}

// Outcome describes one order reaching a terminal state.
type Outcome struct {
	OrderID      uint64
	Instrument   schema.InstrumentKey
	Side         schema.OrderSide
	State        schema.OrderState
	RemainingQty schema.Quantity
	LimitPrice   schema.Price
	RepriceCount int
	Time         time.Time
}

// Config wires the engine's collaborators and tunables.
type Config struct {
	Commander venue.Commander
	Quotes    *quote.Cache
	Ledger    *ledger.Ledger
	Risk      *risk.Engine
	Session   StateSource
	Clock     sched.Clock
	Events    *bus.Queue
	Metrics   *obs.Metrics
	Journal   Recorder

	// ChaseInterval is the repricing cadence.
	ChaseInterval time.Duration
	// ConcessionGrace is how long the order works at the plain mid before
	// each further interval of the same length adds one tick of concession.
	ConcessionGrace time.Duration
}

// PendingOrder is the engine's view of one live order. There is exactly
// one entry per live order id; the entry is removed on any terminal state.
type PendingOrder struct {
	OrderID         uint64
	Instrument      schema.InstrumentKey
	Side            schema.OrderSide
	Quantity        schema.Quantity
	Mode            schema.OrderMode
	SubmittedMid    schema.Price
	CurrentLimit    schema.Price
	SubmitTime      time.Time
	LastRepriceTime time.Time
	RepriceCount    int
	State           schema.OrderState

	// replacePending marks an in-flight cancel issued by the chasing
	// loop. CurrentLimit only moves after that cancel is confirmed.
	replacePending bool
	replaceTarget  schema.Price
	// cancelRequested marks an operator-issued cancel.
	cancelRequested bool
}

// Engine owns pending orders and the chasing loop.
type Engine struct {
	cfg   Config
	clock sched.Clock

	mu      sync.Mutex
	pending map[uint64]*PendingOrder
	nextID  uint64
}

// NewEngine validates config and builds an engine.
func NewEngine(cfg Config) (*Engine, error) {
	if cfg.Commander == nil || cfg.Quotes == nil || cfg.Ledger == nil || cfg.Session == nil {
		return nil, errors.New("exec: missing collaborator")
	}
	if cfg.Clock == nil {
		cfg.Clock = sched.RealClock{}
	}
	if cfg.ChaseInterval <= 0 {
		cfg.ChaseInterval = time.Second
	}
	if cfg.ConcessionGrace <= 0 {
		cfg.ConcessionGrace = 10 * time.Second
	}
	return &Engine{
		cfg:     cfg,
		clock:   cfg.Clock,
		pending: make(map[uint64]*PendingOrder),
		nextID:  1,
	}, nil
}

// SetNextOrderID seeds order id allocation from the venue's next valid id.
// Ids only move forward; a stale seed is ignored.
func (e *Engine) SetNextOrderID(id uint64) {
	e.mu.Lock()
	if id > e.nextID {
		e.nextID = id
	}
	e.mu.Unlock()
}

// Submit places a limit order at the rounded mid and returns the generated
// order id immediately. All further progress arrives via venue callbacks.
// referencePrice is the fallback limit when the book is one-sided; pass 0
// to require a live mid.
func (e *Engine) Submit(key schema.InstrumentKey, side schema.OrderSide, qty schema.Quantity, referencePrice schema.Price, mode schema.OrderMode) (uint64, error) {
	if e.cfg.Session.State() != schema.ConnectionConnected {
		return 0, ErrNotConnected
	}
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}
	if side != schema.OrderSideBuy && side != schema.OrderSideSell {
		return 0, ErrInvalidQuantity
	}
	if mode == schema.OrderModeUnknown {
		mode = schema.OrderModeChaseMid
	}

	mid, ok := e.cfg.Quotes.Mid(key)
	if !ok {
		if referencePrice <= 0 {
			return 0, ErrNoQuote
		}
		mid = quote.RoundToTick(referencePrice)
	}

	now := e.clock.Now()
	if e.cfg.Risk != nil {
		var pos schema.Quantity
		if held, ok := e.cfg.Ledger.Get(key); ok {
			pos = held.Quantity
		}
		if err := e.cfg.Risk.Evaluate(
			risk.Intent{Instrument: key, Side: side, Qty: qty, LimitPrice: mid},
			risk.StateView{Position: pos, ReferencePrice: mid, Now: now},
		); err != nil {
			return 0, err
		}
	}

	e.mu.Lock()
	id := e.nextID
	e.nextID++
	if _, exists := e.pending[id]; exists {
		e.mu.Unlock()
		return 0, ErrDuplicateOrder
	}
	po := &PendingOrder{
		OrderID:      id,
		Instrument:   key,
		Side:         side,
		Quantity:     qty,
		Mode:         mode,
		SubmittedMid: mid,
		CurrentLimit: mid,
		SubmitTime:   now,
		State:        schema.OrderStateWorking,
	}
	e.pending[id] = po
	snapshot := *po
	e.mu.Unlock()

	if err := e.cfg.Commander.SubmitOrder(venue.NewLimitOrder(id, key, side, qty, mid)); err != nil {
		e.mu.Lock()
		delete(e.pending, id)
		e.mu.Unlock()
		return 0, err
	}

	logs.Infof("order %d submitted: %s %d %s @ %.2f (mode=%d)",
		id, side, qty, key, mid.Float64(), mode)
	e.publishOrder(snapshot, now)
	return id, nil
}

// Cancel requests cancellation of a live order. The order enters the
// Cancelling sub-state until the venue confirms.
func (e *Engine) Cancel(orderID uint64) error {
	e.mu.Lock()
	po, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return ErrUnknownOrder
	}
	po.cancelRequested = true
	po.State = schema.OrderStateCancelling
	snapshot := *po
	e.mu.Unlock()

	if err := e.cfg.Commander.CancelOrder(orderID); err != nil {
		logs.Warnf("order %d cancel send failed: %v", orderID, err)
		return err
	}
	logs.Infof("order %d cancel requested (%s %s)", orderID, snapshot.Side, snapshot.Instrument)
	e.publishOrder(snapshot, e.clock.Now())
	return nil
}

// CancelAll issues a cancel for every live order, best-effort. Used on
// disconnect and shutdown; safe to call repeatedly or on an empty engine.
func (e *Engine) CancelAll() {
	e.mu.Lock()
	ids := make([]uint64, 0, len(e.pending))
	for id, po := range e.pending {
		if !po.cancelRequested {
			po.cancelRequested = true
			po.State = schema.OrderStateCancelling
		}
		ids = append(ids, id)
	}
	e.mu.Unlock()

	for _, id := range ids {
		if err := e.cfg.Commander.CancelOrder(id); err != nil {
			// The session is going down regardless; log and move on.
			logs.Warnf("order %d teardown cancel failed: %v", id, err)
		}
	}
	if len(ids) > 0 {
		logs.Infof("cancel-all issued for %d orders", len(ids))
	}
}

// Orders returns a snapshot of every pending order.
func (e *Engine) Orders() []PendingOrder {
	e.mu.Lock()
	out := make([]PendingOrder, 0, len(e.pending))
	for _, po := range e.pending {
		out = append(out, *po)
	}
	e.mu.Unlock()
	return out
}

// Order returns a snapshot of one pending order.
func (e *Engine) Order(orderID uint64) (PendingOrder, bool) {
	e.mu.Lock()
	po, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		return PendingOrder{}, false
	}
	out := *po
	e.mu.Unlock()
	return out, true
}

func (e *Engine) publishOrder(po PendingOrder, now time.Time) {
	if e.cfg.Events == nil {
		return
	}
	err := e.cfg.Events.TryPublish(bus.Event{
		Type:       bus.EventOrderUpdate,
		Time:       now,
		Instrument: po.Instrument,
		OrderID:    po.OrderID,
		OrderState: po.State,
		Side:       po.Side,
		Qty:        po.Quantity,
		LimitPrice: po.CurrentLimit,
	})
	if err != nil {
		e.cfg.Metrics.Inc(obs.CounterBusDrops)
	}
}

func (e *Engine) publishPosition(pos ledger.Position, now time.Time) {
	if e.cfg.Events == nil {
		return
	}
	err := e.cfg.Events.TryPublish(bus.Event{
		Type:        bus.EventPositionChange,
		Time:        now,
		Instrument:  pos.Instrument,
		PositionQty: pos.Quantity,
		AverageCost: pos.AverageCost,
		RealizedPnL: pos.RealizedPnL,
	})
	if err != nil {
		e.cfg.Metrics.Inc(obs.CounterBusDrops)
	}
}

func (e *Engine) recordOutcome(po PendingOrder, now time.Time) {
	if e.cfg.Journal == nil {
		return
	}
	e.cfg.Journal.RecordOutcome(Outcome{
		OrderID:      po.OrderID,
		Instrument:   po.Instrument,
		Side:         po.Side,
		State:        po.State,
		RemainingQty: po.Quantity,
		LimitPrice:   po.CurrentLimit,
		RepriceCount: po.RepriceCount,
		Time:         now,
	})
}
