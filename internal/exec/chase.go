package exec

import (
	"context"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/quote"
	"main/internal/sched"
	"main/internal/schema"
)

// Start registers the chasing loop with the scheduler at the configured
// cadence. The loop runs independently of any UI refresh.
func (e *Engine) Start(ctx context.Context, s *sched.Scheduler) (stop func()) {
	return s.Every(ctx, e.cfg.ChaseInterval, e.Chase)
}

// Chase runs one pass of the mid-price-chasing protocol over every working
// order. Venue commands are issued after the order map is released; the
// loop never blocks the lock on I/O.
func (e *Engine) Chase(now time.Time) {
	type reprice struct {
		orderID uint64
		target  schema.Price
	}
	var cancels []reprice

	e.mu.Lock()
	for _, po := range e.pending {
		if po.State != schema.OrderStateWorking || po.Mode != schema.OrderModeChaseMid {
			continue
		}
		if po.replacePending || po.cancelRequested {
			continue
		}
		mid, ok := e.cfg.Quotes.Mid(po.Instrument)
		if !ok {
			// Stale quote: keep the last limit and resume once data does.
			continue
		}
		target := chaseTarget(po.Side, mid, e.concessionSteps(now.Sub(po.SubmitTime)))
		if priceDistance(target, po.CurrentLimit) < quote.TickIncrement(mid) {
			continue
		}
		po.replacePending = true
		po.replaceTarget = target
		cancels = append(cancels, reprice{orderID: po.OrderID, target: target})
	}
	e.mu.Unlock()

	for _, c := range cancels {
		logs.Infof("order %d chasing: cancel for replace @ %.2f", c.orderID, c.target.Float64())
		if err := e.cfg.Commander.CancelOrder(c.orderID); err != nil {
			logs.Warnf("order %d reprice cancel failed: %v", c.orderID, err)
			e.mu.Lock()
			if po, ok := e.pending[c.orderID]; ok {
				po.replacePending = false
			}
			e.mu.Unlock()
		}
	}
}

// concessionSteps maps time-in-market to tick concessions: none within the
// grace interval, then one more for every further interval.
func (e *Engine) concessionSteps(elapsed time.Duration) int64 {
	if elapsed < 0 {
		return 0
	}
	intervals := int64(elapsed / e.cfg.ConcessionGrace)
	if intervals <= 1 {
		return 0
	}
	return intervals - 1
}

// chaseTarget computes the reprice target. Concessions always move toward
// the opposing side of the book, never away from it; a sell never drops
// below the minimum tick.
func chaseTarget(side schema.OrderSide, mid schema.Price, steps int64) schema.Price {
	concession := schema.Price(steps) * quote.TickIncrement(mid)
	var target schema.Price
	if side == schema.OrderSideBuy {
		target = mid + concession
	} else {
		target = mid - concession
		if target < quote.MinTick {
			target = quote.MinTick
		}
	}
	return quote.RoundToTick(target)
}

func priceDistance(a, b schema.Price) schema.Price {
	if a >= b {
		return a - b
	}
	return b - a
}
