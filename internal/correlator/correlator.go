// Package correlator matches asynchronous venue callbacks to the logical
// subscriber that requested them. The venue multiplexes every response over
// one channel, so ids are the only routing information available.
package correlator

import (
	"sync"

	"main/internal/schema"
)

// Subscriber is the semantic owner of an in-flight request. Errors the
// session cannot classify are forwarded here un-interpreted.
type Subscriber interface {
	OnVenueError(code int32, message string)
}

// TickSubscriber is implemented by subscribers that consume market data.
type TickSubscriber interface {
	Subscriber
	OnTick(field schema.TickField, value int64)
}

// Correlator allocates correlation ids and tracks id ownership until the
// owner releases it. A Resolve miss is a normal condition: late or duplicate
// callbacks for released ids must be ignored, not treated as failures.
type Correlator struct {
	mu   sync.Mutex
	next uint64
	subs map[uint64]Subscriber
}

// New creates a correlator whose ids start above reservedMax, leaving the
// low range free for fixed singleton streams.
func New(reservedMax uint64) *Correlator {
	return &Correlator{
		next: reservedMax,
		subs: make(map[uint64]Subscriber),
	}
}

// NewID returns the next correlation id. Ids are monotonically increasing
// and never reused within a session.
func (c *Correlator) NewID() uint64 {
	c.mu.Lock()
	c.next++
	id := c.next
	c.mu.Unlock()
	return id
}

// Register binds an id to its subscriber.
func (c *Correlator) Register(id uint64, sub Subscriber) {
	if sub == nil {
		return
	}
	c.mu.Lock()
	c.subs[id] = sub
	c.mu.Unlock()
}

// Resolve returns the subscriber owning an id.
// ok is false for unknown or already released ids.
func (c *Correlator) Resolve(id uint64) (Subscriber, bool) {
	c.mu.Lock()
	sub, ok := c.subs[id]
	c.mu.Unlock()
	return sub, ok
}

// Release removes an id binding. Releasing an unknown id is a no-op.
func (c *Correlator) Release(id uint64) {
	c.mu.Lock()
	delete(c.subs, id)
	c.mu.Unlock()
}

// ReleaseAll drops every binding, used on session teardown.
func (c *Correlator) ReleaseAll() {
	c.mu.Lock()
	for id := range c.subs {
		delete(c.subs, id)
	}
	c.mu.Unlock()
}

// Count returns the number of live bindings.
func (c *Correlator) Count() int {
	c.mu.Lock()
	n := len(c.subs)
	c.mu.Unlock()
	return n
}
