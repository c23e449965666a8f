package session

import (
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/correlator"
	"main/internal/obs"
	"main/internal/schema"
)

// quoteSubscription routes one instrument's tick stream into the quote
// cache. It is the semantic owner of its correlation id.
type quoteSubscription struct {
	manager *Manager
	key     schema.InstrumentKey
	corrID  uint64
}

// OnTick updates the cache and notifies presentation subscribers.
func (s *quoteSubscription) OnTick(field schema.TickField, value int64) {
	s.manager.cfg.Quotes.OnTick(s.key, field, value)
	if s.manager.cfg.Events == nil {
		return
	}
	err := s.manager.cfg.Events.TryPublish(bus.Event{
		Type:       bus.EventQuoteUpdate,
		Time:       time.Now(),
		Instrument: s.key,
	})
	if err != nil {
		s.manager.cfg.Metrics.Inc(obs.CounterBusDrops)
	}
}

// OnVenueError surfaces data-stream errors for this instrument.
func (s *quoteSubscription) OnVenueError(code int32, message string) {
	logs.Warnf("market data error %d for %s: %s", code, s.key, message)
}

// SubscribeQuotes starts the tick stream for an instrument. Subscribing an
// already subscribed instrument is a no-op.
func (m *Manager) SubscribeQuotes(key schema.InstrumentKey) error {
	m.mu.Lock()
	if _, ok := m.subs[key]; ok {
		m.mu.Unlock()
		return nil
	}
	sub := &quoteSubscription{manager: m, key: key, corrID: m.cfg.Correlator.NewID()}
	m.subs[key] = sub
	m.cfg.Correlator.Register(sub.corrID, sub)
	connected := m.state == schema.ConnectionConnected
	m.mu.Unlock()

	if !connected {
		// Desired subscription is remembered and sent on (re)connect.
		return nil
	}
	if err := m.cfg.Commander.SubscribeQuotes(sub.corrID, key); err != nil {
		m.mu.Lock()
		delete(m.subs, key)
		m.mu.Unlock()
		m.cfg.Correlator.Release(sub.corrID)
		return err
	}
	return nil
}

// UnsubscribeQuotes stops the tick stream and drops the cached quote.
func (m *Manager) UnsubscribeQuotes(key schema.InstrumentKey) {
	m.mu.Lock()
	sub, ok := m.subs[key]
	if !ok {
		m.mu.Unlock()
		return
	}
	delete(m.subs, key)
	connected := m.state == schema.ConnectionConnected
	m.mu.Unlock()

	m.cfg.Correlator.Release(sub.corrID)
	m.cfg.Quotes.Drop(key)
	if connected {
		if err := m.cfg.Commander.UnsubscribeQuotes(sub.corrID); err != nil {
			logs.Warnf("unsubscribe %s: %v", key, err)
		}
	}
}

// OnTick routes one market data tick to its subscription. A miss is a
// late callback for a released id and is ignored quietly.
func (m *Manager) OnTick(correlationID uint64, field schema.TickField, value int64) {
	sub, ok := m.cfg.Correlator.Resolve(correlationID)
	if !ok {
		m.cfg.Metrics.Inc(obs.CounterLateCallbacks)
		return
	}
	ticker, ok := sub.(correlator.TickSubscriber)
	if !ok {
		return
	}
	ticker.OnTick(field, value)
}

// OnOrderStatus forwards a status callback to the execution engine.
func (m *Manager) OnOrderStatus(orderID uint64, status schema.VenueOrderStatus, filledQty schema.Quantity, avgFillPrice schema.Price) {
	m.mu.Lock()
	orders := m.orders
	m.mu.Unlock()
	if orders == nil {
		return
	}
	orders.HandleOrderStatus(orderID, status, filledQty, avgFillPrice)
}

// OnFill forwards an execution report to the execution engine.
func (m *Manager) OnFill(fill schema.Fill) {
	m.mu.Lock()
	orders := m.orders
	m.mu.Unlock()
	if orders == nil {
		logs.Errorf("fill for order %d arrived with no order handler bound", fill.OrderID)
		return
	}
	orders.HandleFill(fill)
}

// resubscribe re-sends every desired subscription with a fresh correlation
// id after a (re)connect.
func (m *Manager) resubscribe() {
	m.mu.Lock()
	pending := make([]*quoteSubscription, 0, len(m.subs))
	for _, sub := range m.subs {
		m.cfg.Correlator.Release(sub.corrID)
		sub.corrID = m.cfg.Correlator.NewID()
		m.cfg.Correlator.Register(sub.corrID, sub)
		pending = append(pending, sub)
	}
	m.mu.Unlock()

	for _, sub := range pending {
		if err := m.cfg.Commander.SubscribeQuotes(sub.corrID, sub.key); err != nil {
			logs.Warnf("resubscribe %s: %v", sub.key, err)
		}
	}
}

// releaseSubscriptions drops every correlation id binding. When forget is
// true the desired set is cleared too (operator disconnect); otherwise the
// subscriptions are re-established on the next connect.
func (m *Manager) releaseSubscriptions(forget bool) {
	m.mu.Lock()
	subs := make([]*quoteSubscription, 0, len(m.subs))
	for key, sub := range m.subs {
		subs = append(subs, sub)
		if forget {
			delete(m.subs, key)
		}
	}
	connected := m.state == schema.ConnectionConnected
	m.mu.Unlock()

	for _, sub := range subs {
		m.cfg.Correlator.Release(sub.corrID)
		if forget {
			m.cfg.Quotes.Drop(sub.key)
			if connected {
				if err := m.cfg.Commander.UnsubscribeQuotes(sub.corrID); err != nil {
					logs.Warnf("unsubscribe %s: %v", sub.key, err)
				}
			}
		}
	}
}
