package sim

import (
	"time"

	"main/internal/schema"
	"main/internal/venue"
)

// Tick pushes a single market data field to a subscription.
func (v *Venue) Tick(correlationID uint64, field schema.TickField, value int64) {
	v.mu.Lock()
	v.enqueue(func(e venue.Events) { e.OnTick(correlationID, field, value) })
	v.drain()
}

// TickQuote pushes a bid/ask pair in one call.
func (v *Venue) TickQuote(correlationID uint64, bid, ask schema.Price) {
	v.mu.Lock()
	v.enqueue(func(e venue.Events) {
		e.OnTick(correlationID, schema.TickBid, int64(bid))
		e.OnTick(correlationID, schema.TickAsk, int64(ask))
	})
	v.drain()
}

// Fill executes qty of a resting order at price. Partial fills leave the
// order on the book; the final fill removes it and reports terminal status.
func (v *Venue) Fill(orderID uint64, qty schema.Quantity, price schema.Price) bool {
	v.mu.Lock()
	bo, ok := v.orders[orderID]
	if !ok || qty <= 0 {
		v.mu.Unlock()
		return false
	}
	if qty > bo.remaining {
		qty = bo.remaining
	}
	bo.remaining -= qty
	filled := bo.order.Qty - bo.remaining
	fill := schema.Fill{
		OrderID:    orderID,
		Instrument: bo.order.Instrument,
		Side:       bo.order.Side,
		Qty:        qty,
		Price:      price,
		Time:       time.Now(),
	}
	status := schema.VenueStatusPartFilled
	if bo.remaining <= 0 {
		status = schema.VenueStatusFilled
		delete(v.orders, orderID)
	}
	v.enqueue(func(e venue.Events) {
		e.OnFill(fill)
		e.OnOrderStatus(orderID, status, filled, price)
	})
	v.drain()
	return true
}

// Reject kills a resting order with a venue rejection.
func (v *Venue) Reject(orderID uint64, reason string) bool {
	v.mu.Lock()
	if _, ok := v.orders[orderID]; !ok {
		v.mu.Unlock()
		return false
	}
	delete(v.orders, orderID)
	v.enqueue(func(e venue.Events) {
		e.OnError(venue.CodeOrderRejected, orderID, reason)
	})
	v.drain()
	return true
}

// DropConnection simulates an unexpected transport loss.
func (v *Venue) DropConnection() {
	v.mu.Lock()
	if !v.connected {
		v.mu.Unlock()
		return
	}
	v.connected = false
	v.subs = make(map[uint64]schema.InstrumentKey)
	v.enqueue(func(e venue.Events) {
		e.OnError(venue.CodeConnectivityLost, 0, "connectivity between venue and gateway has been lost")
		e.OnDisconnected()
	})
	v.drain()
}

// EmitError injects an arbitrary venue notice.
func (v *Venue) EmitError(code int32, correlationID uint64, message string) {
	v.mu.Lock()
	v.enqueue(func(e venue.Events) { e.OnError(code, correlationID, message) })
	v.drain()
}

// RestingOrders returns a snapshot of orders currently on the book.
func (v *Venue) RestingOrders() []venue.Order {
	v.mu.Lock()
	out := make([]venue.Order, 0, len(v.orders))
	for _, bo := range v.orders {
		out = append(out, bo.order)
	}
	v.mu.Unlock()
	return out
}

// Resting reports whether orderID is still on the book.
func (v *Venue) Resting(orderID uint64) (venue.Order, bool) {
	v.mu.Lock()
	bo, ok := v.orders[orderID]
	v.mu.Unlock()
	if !ok {
		return venue.Order{}, false
	}
	return bo.order, true
}

// Submissions returns every order payload accepted so far, in order.
func (v *Venue) Submissions() []venue.Order {
	v.mu.Lock()
	out := make([]venue.Order, len(v.submissions))
	copy(out, v.submissions)
	v.mu.Unlock()
	return out
}

// Cancels returns every cancel request received so far, in order.
func (v *Venue) Cancels() []uint64 {
	v.mu.Lock()
	out := make([]uint64, len(v.cancels))
	copy(out, v.cancels)
	v.mu.Unlock()
	return out
}

// Subscriptions returns the live correlation id bindings.
func (v *Venue) Subscriptions() map[uint64]schema.InstrumentKey {
	v.mu.Lock()
	out := make(map[uint64]schema.InstrumentKey, len(v.subs))
	for id, key := range v.subs {
		out[id] = key
	}
	v.mu.Unlock()
	return out
}

// Connected reports the simulated transport state.
func (v *Venue) Connected() bool {
	v.mu.Lock()
	ok := v.connected
	v.mu.Unlock()
	return ok
}
