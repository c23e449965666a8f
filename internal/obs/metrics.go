// Package obs collects lightweight counters and latency stats for the
// session and execution engine.
package obs

import (
	"sync/atomic"
	"time"
)

// Counter identifies one monotonic event counter.
type Counter uint16

const (
	CounterReconnectAttempts Counter = iota
	CounterIdentityRotations
	CounterReprices
	CounterFills
	CounterRejectedOrders
	CounterLateCallbacks
	CounterBusDrops
	counterCount
)

// Metrics collects atomic counters and latency stats.
type Metrics struct {
	counters [counterCount]uint64

	orderLifetime LatencyStats
}

// LatencyStats aggregates duration samples in nanoseconds.
type LatencyStats struct {
	count uint64
	sum   uint64
	min   uint64
	max   uint64
}

// LatencySnapshot is a point-in-time view of latency stats.
type LatencySnapshot struct {
	Count uint64
	Min   time.Duration
	Max   time.Duration
	Avg   time.Duration
}

// Snapshot captures the current metrics values.
type Snapshot struct {
	ReconnectAttempts uint64
	IdentityRotations uint64
	Reprices          uint64
	Fills             uint64
	RejectedOrders    uint64
	LateCallbacks     uint64
	BusDrops          uint64
	OrderLifetime     LatencySnapshot
}

// NewMetrics allocates a metrics container.
func NewMetrics() *Metrics {
	return &Metrics{}
}

// Inc increments a counter.
func (m *Metrics) Inc(c Counter) {
	if m == nil || int(c) >= len(m.counters) {
		return
	}
	atomic.AddUint64(&m.counters[c], 1)
}

// Get returns the current value of a counter.
func (m *Metrics) Get(c Counter) uint64 {
	if m == nil || int(c) >= len(m.counters) {
		return 0
	}
	return atomic.LoadUint64(&m.counters[c])
}

// ObserveOrderLifetime measures submit-to-terminal latency for one order.
func (m *Metrics) ObserveOrderLifetime(d time.Duration) {
	if m == nil {
		return
	}
	m.orderLifetime.Observe(d)
}

// Snapshot returns a copy of the current metrics values.
func (m *Metrics) Snapshot() Snapshot {
	if m == nil {
		return Snapshot{}
	}
	return Snapshot{
		ReconnectAttempts: m.Get(CounterReconnectAttempts),
		IdentityRotations: m.Get(CounterIdentityRotations),
		Reprices:          m.Get(CounterReprices),
		Fills:             m.Get(CounterFills),
		RejectedOrders:    m.Get(CounterRejectedOrders),
		LateCallbacks:     m.Get(CounterLateCallbacks),
		BusDrops:          m.Get(CounterBusDrops),
		OrderLifetime:     m.orderLifetime.Snapshot(),
	}
}

// Observe records a duration sample.
func (l *LatencyStats) Observe(d time.Duration) {
	if d < 0 {
		return
	}
	nanos := uint64(d)
	atomic.AddUint64(&l.count, 1)
	atomic.AddUint64(&l.sum, nanos)

	for {
		min := atomic.LoadUint64(&l.min)
		if min != 0 && nanos >= min {
			break
		}
		if atomic.CompareAndSwapUint64(&l.min, min, nanos) {
			break
		}
	}

	for {
		max := atomic.LoadUint64(&l.max)
		if nanos <= max {
			break
		}
		if atomic.CompareAndSwapUint64(&l.max, max, nanos) {
			break
		}
	}
}

// Snapshot returns the aggregated latency stats.
func (l *LatencyStats) Snapshot() LatencySnapshot {
	count := atomic.LoadUint64(&l.count)
	if count == 0 {
		return LatencySnapshot{}
	}
	sum := atomic.LoadUint64(&l.sum)
	min := atomic.LoadUint64(&l.min)
	max := atomic.LoadUint64(&l.max)
	return LatencySnapshot{
		Count: count,
		Min:   time.Duration(min),
		Max:   time.Duration(max),
		Avg:   time.Duration(sum / count),
	}
}
