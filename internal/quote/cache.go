// Package quote stores the latest two-sided market per instrument and owns
// the venue tick-size policy.
package quote

import (
	"sync"
	"time"

	"main/internal/schema"
)

const (
	// tickCoarseThreshold is the price at which the venue switches from
	// nickel to dime increments.
	tickCoarseThreshold = schema.Price(300)
	tickFine            = schema.Price(5)
	tickCoarse          = schema.Price(10)
)

// MinTick is the smallest increment the venue accepts at any price.
const MinTick = tickFine

// Cache holds the latest quote per instrument, overwritten in place on each
// tick. No history is retained here.
type Cache struct {
	mu     sync.Mutex
	quotes map[schema.InstrumentKey]*schema.Quote
	now    func() time.Time
}

// NewCache creates an empty quote cache.
func NewCache() *Cache {
	return &Cache{
		quotes: make(map[schema.InstrumentKey]*schema.Quote),
		now:    time.Now,
	}
}

// SetNowFunc overrides the timestamp source, used by tests.
func (c *Cache) SetNowFunc(now func() time.Time) {
	if now == nil {
		return
	}
	c.mu.Lock()
	c.now = now
	c.mu.Unlock()
}

// OnTick updates one quote field and stamps the update time. Non-positive
// values are the venue's "no data" markers and are ignored.
func (c *Cache) OnTick(key schema.InstrumentKey, field schema.TickField, value int64) {
	if value <= 0 {
		return
	}
	c.mu.Lock()
	q, ok := c.quotes[key]
	if !ok {
		q = &schema.Quote{}
		c.quotes[key] = q
	}
	switch field {
	case schema.TickBid:
		q.Bid = schema.Price(value)
	case schema.TickAsk:
		q.Ask = schema.Price(value)
	case schema.TickLast:
		q.Last = schema.Price(value)
	case schema.TickBidSize:
		q.BidSize = schema.Quantity(value)
	case schema.TickAskSize:
		q.AskSize = schema.Quantity(value)
	default:
		c.mu.Unlock()
		return
	}
	q.LastUpdated = c.now()
	c.mu.Unlock()
}

// Get returns a copy of the latest quote for an instrument.
func (c *Cache) Get(key schema.InstrumentKey) (schema.Quote, bool) {
	c.mu.Lock()
	q, ok := c.quotes[key]
	if !ok {
		c.mu.Unlock()
		return schema.Quote{}, false
	}
	out := *q
	c.mu.Unlock()
	return out, true
}

// Mid returns the tick-rounded mid price. It requires both sides of the
// book; with only one side it falls back to the last trade, and with
// neither it reports ok=false. An unavailable mid is a normal condition
// that callers handle by deferring, not by failing.
func (c *Cache) Mid(key schema.InstrumentKey) (schema.Price, bool) {
	q, ok := c.Get(key)
	if !ok {
		return 0, false
	}
	if q.Bid > 0 && q.Ask > 0 {
		return RoundToTick((q.Bid + q.Ask) / 2), true
	}
	if q.Last > 0 {
		return RoundToTick(q.Last), true
	}
	return 0, false
}

// Drop removes the quote for an instrument, used when its subscription is
// torn down.
func (c *Cache) Drop(key schema.InstrumentKey) {
	c.mu.Lock()
	delete(c.quotes, key)
	c.mu.Unlock()
}

// Count returns the number of instruments with a cached quote.
func (c *Cache) Count() int {
	c.mu.Lock()
	n := len(c.quotes)
	c.mu.Unlock()
	return n
}

// TickIncrement returns the minimum price increment for the band the given
// price falls in: a nickel below 3.00 and a dime at or above.
func TickIncrement(p schema.Price) schema.Price {
	if p >= tickCoarseThreshold {
		return tickCoarse
	}
	return tickFine
}

// RoundToTick rounds a price to the nearest venue increment. The result is
// idempotent and within one half increment of the input.
func RoundToTick(p schema.Price) schema.Price {
	return roundToIncrement(p, TickIncrement(p))
}

func roundToIncrement(p, inc schema.Price) schema.Price {
	if inc <= 0 {
		return p
	}
	if p < 0 {
		return -roundToIncrement(-p, inc)
	}
	return (p + inc/2) / inc * inc
}
