package exec

import (
	"github.com/yanun0323/logs"

	"main/internal/obs"
	"main/internal/schema"
	"main/internal/venue"
)

// HandleFill applies one execution report. Fills are authoritative: they
// update the ledger even when the order is no longer tracked, and they win
// any race with an in-flight cancel/replace.
func (e *Engine) HandleFill(fill schema.Fill) {
	now := e.clock.Now()

	e.mu.Lock()
	po, ok := e.pending[fill.OrderID]
	var snapshot PendingOrder
	var terminal bool
	if ok {
		po.Quantity -= fill.Qty
		if po.Quantity <= 0 {
			po.Quantity = 0
			po.State = schema.OrderStateFilled
			delete(e.pending, fill.OrderID)
			terminal = true
		}
		snapshot = *po
	}
	e.mu.Unlock()

	e.cfg.Metrics.Inc(obs.CounterFills)
	if !ok {
		// Late fill for an order already cleaned up locally. The money
		// still moved, so the ledger must see it.
		e.cfg.Metrics.Inc(obs.CounterLateCallbacks)
		logs.Warnf("fill for untracked order %d: %s %d %s @ %.2f",
			fill.OrderID, fill.Side, fill.Qty, fill.Instrument, fill.Price.Float64())
	} else {
		logs.Infof("order %d filled %d @ %.2f, remaining %d",
			fill.OrderID, fill.Qty, fill.Price.Float64(), snapshot.Quantity)
	}

	pos, err := e.cfg.Ledger.ApplyFill(fill)
	if err != nil {
		logs.Errorf("fill for order %d not applied to ledger: %v", fill.OrderID, err)
	} else {
		e.publishPosition(pos, now)
	}
	if e.cfg.Journal != nil {
		e.cfg.Journal.RecordFill(fill)
	}

	if ok {
		e.publishOrder(snapshot, now)
		if terminal {
			e.cfg.Metrics.ObserveOrderLifetime(now.Sub(snapshot.SubmitTime))
			e.recordOutcome(snapshot, now)
		}
	}
}

// HandleOrderStatus applies one venue order status callback. Cancelled
// confirmations are the only point where a chased order's limit price may
// move: the replacement order is submitted here, never speculatively.
func (e *Engine) HandleOrderStatus(orderID uint64, status schema.VenueOrderStatus, filledQty schema.Quantity, avgFillPrice schema.Price) {
	now := e.clock.Now()

	e.mu.Lock()
	po, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		e.cfg.Metrics.Inc(obs.CounterLateCallbacks)
		logs.Debugf("status %d for untracked order %d", status, orderID)
		return
	}

	var submit *venue.Order
	var terminal bool
	switch status {
	case schema.VenueStatusSubmitted, schema.VenueStatusPartFilled:
		// Lifecycle is driven by fills; nothing to do here.
		e.mu.Unlock()
		return
	case schema.VenueStatusFilled:
		po.State = schema.OrderStateFilled
		delete(e.pending, orderID)
		terminal = true
	case schema.VenueStatusRejected:
		po.State = schema.OrderStateRejected
		delete(e.pending, orderID)
		terminal = true
	case schema.VenueStatusCancelled:
		if po.replacePending && !po.cancelRequested {
			// Reprice cancel confirmed: re-key the entry under a fresh
			// order id and resubmit the remainder at the target.
			replacement := *po
			delete(e.pending, orderID)
			replacement.OrderID = e.nextID
			e.nextID++
			replacement.CurrentLimit = po.replaceTarget
			replacement.LastRepriceTime = now
			replacement.RepriceCount++
			replacement.replacePending = false
			replacement.replaceTarget = 0
			e.pending[replacement.OrderID] = &replacement
			po = &replacement
			order := venue.NewLimitOrder(replacement.OrderID, replacement.Instrument,
				replacement.Side, replacement.Quantity, replacement.CurrentLimit)
			submit = &order
		} else {
			po.State = schema.OrderStateCancelled
			delete(e.pending, orderID)
			terminal = true
		}
	default:
		e.mu.Unlock()
		logs.Warnf("order %d: unknown venue status %d", orderID, status)
		return
	}
	snapshot := *po
	e.mu.Unlock()

	if submit != nil {
		if err := e.cfg.Commander.SubmitOrder(*submit); err != nil {
			// The replacement never left the process: the order is gone at
			// the venue, so drop it locally too.
			logs.Errorf("order %d replace submit failed: %v", snapshot.OrderID, err)
			e.mu.Lock()
			if po, ok := e.pending[snapshot.OrderID]; ok {
				po.State = schema.OrderStateCancelled
				snapshot = *po
				delete(e.pending, snapshot.OrderID)
			}
			e.mu.Unlock()
			terminal = true
		} else {
			e.cfg.Metrics.Inc(obs.CounterReprices)
			logs.Infof("order %d repriced to %.2f as order %d (reprice #%d)",
				orderID, snapshot.CurrentLimit.Float64(), snapshot.OrderID, snapshot.RepriceCount)
		}
	}

	if terminal {
		logs.Infof("order %d terminal: %s (%s %s, remaining %d, limit %.2f)",
			snapshot.OrderID, snapshot.State, snapshot.Side, snapshot.Instrument,
			snapshot.Quantity, snapshot.CurrentLimit.Float64())
		if snapshot.State == schema.OrderStateRejected {
			e.cfg.Metrics.Inc(obs.CounterRejectedOrders)
		}
		e.cfg.Metrics.ObserveOrderLifetime(now.Sub(snapshot.SubmitTime))
		e.recordOutcome(snapshot, now)
	}
	e.publishOrder(snapshot, now)
}

// HandleOrderError applies an order-scoped error callback. A cancel
// confirmation for a cancel the engine itself issued is benign and
// suppressed; the same code for anything else is a real error.
func (e *Engine) HandleOrderError(orderID uint64, code int32, message string) {
	now := e.clock.Now()

	e.mu.Lock()
	po, ok := e.pending[orderID]
	if !ok {
		e.mu.Unlock()
		e.cfg.Metrics.Inc(obs.CounterLateCallbacks)
		logs.Debugf("error %d for untracked order %d: %s", code, orderID, message)
		return
	}

	if code == venue.CodeOrderCancelled {
		benign := po.replacePending || po.cancelRequested
		e.mu.Unlock()
		if benign {
			logs.Debugf("order %d cancel confirmation: %s", orderID, message)
		} else {
			logs.Warnf("order %d cancelled by venue: %s", orderID, message)
		}
		return
	}

	po.State = schema.OrderStateRejected
	delete(e.pending, orderID)
	snapshot := *po
	e.mu.Unlock()

	e.cfg.Metrics.Inc(obs.CounterRejectedOrders)
	logs.Errorf("order %d rejected (code %d): %s", orderID, code, message)
	e.cfg.Metrics.ObserveOrderLifetime(now.Sub(snapshot.SubmitTime))
	e.recordOutcome(snapshot, now)
	e.publishOrder(snapshot, now)
}

// HandleSessionDown tears down every pending order locally. The venue-side
// orders are already being cancelled (or are gone with the session); acting
// on stale local state would be worse than double-cancelling.
func (e *Engine) HandleSessionDown() {
	now := e.clock.Now()

	e.mu.Lock()
	dropped := make([]PendingOrder, 0, len(e.pending))
	for id, po := range e.pending {
		po.State = schema.OrderStateCancelled
		dropped = append(dropped, *po)
		delete(e.pending, id)
	}
	e.mu.Unlock()

	for _, po := range dropped {
		logs.Warnf("order %d torn down locally on session loss (%s %s)",
			po.OrderID, po.Side, po.Instrument)
		e.recordOutcome(po, now)
		e.publishOrder(po, now)
	}
}
