// Package risk applies pre-trade checks before an order reaches the venue.
// Denials are synchronous: the caller gets the reason before any state
// mutates.
package risk

import (
	"errors"
	"sync"
	"time"

	"main/internal/schema"
)

var (
	ErrKillSwitch  = errors.New("risk: kill switch engaged")
	ErrMaxQty      = errors.New("risk: order quantity exceeds limit")
	ErrMaxPosition = errors.New("risk: resulting position exceeds limit")
	ErrRateLimit   = errors.New("risk: order rate limit exceeded")
	ErrPriceBand   = errors.New("risk: limit price outside allowed band")
)

// Config defines static risk limits, supplied at construction and immutable
// for the life of the engine. Zero values disable the corresponding check.
type Config struct {
	KillSwitch           bool            `json:"killSwitch"`
	MaxOrderQty          schema.Quantity `json:"maxOrderQty"`
	MaxPosition          schema.Quantity `json:"maxPosition"`
	OrderRateLimit       int             `json:"orderRateLimit"`
	OrderRateWindow      time.Duration   `json:"orderRateWindow"`
	MaxPriceDeviationBps int64           `json:"maxPriceDeviationBps"`
}

// Intent is the order under evaluation.
type Intent struct {
	Instrument schema.InstrumentKey
	Side       schema.OrderSide
	Qty        schema.Quantity
	LimitPrice schema.Price
}

// StateView provides the current book context for the instrument.
type StateView struct {
	Position       schema.Quantity
	ReferencePrice schema.Price
	Now            time.Time
}

// Engine evaluates intents against the configured limits.
type Engine struct {
	cfg Config

	mu              sync.Mutex
	rateWindowStart time.Time
	rateCount       int
}

// NewEngine creates a risk engine with static limits.
func NewEngine(cfg Config) *Engine {
	return &Engine{cfg: cfg}
}

// Evaluate returns nil when the intent may proceed, or the sentinel error
// naming the violated limit.
func (e *Engine) Evaluate(intent Intent, state StateView) error {
	if e == nil {
		return nil
	}
	if e.cfg.KillSwitch {
		return ErrKillSwitch
	}

	now := state.Now
	if now.IsZero() {
		now = time.Now()
	}
	if e.cfg.OrderRateLimit > 0 && e.cfg.OrderRateWindow > 0 {
		if err := e.observeRate(now); err != nil {
			return err
		}
	}

	if e.cfg.MaxOrderQty > 0 && intent.Qty > e.cfg.MaxOrderQty {
		return ErrMaxQty
	}

	if e.cfg.MaxPosition > 0 {
		next := int64(state.Position) + intent.Side.Sign()*int64(intent.Qty)
		if next < 0 {
			next = -next
		}
		if schema.Quantity(next) > e.cfg.MaxPosition {
			return ErrMaxPosition
		}
	}

	if e.cfg.MaxPriceDeviationBps > 0 && intent.LimitPrice > 0 && state.ReferencePrice > 0 {
		diff := int64(intent.LimitPrice) - int64(state.ReferencePrice)
		if diff < 0 {
			diff = -diff
		}
		if diff*10000 > int64(state.ReferencePrice)*e.cfg.MaxPriceDeviationBps {
			return ErrPriceBand
		}
	}

	return nil
}

func (e *Engine) observeRate(now time.Time) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.rateWindowStart.IsZero() || now.Sub(e.rateWindowStart) >= e.cfg.OrderRateWindow {
		e.rateWindowStart = now
		e.rateCount = 0
	}
	e.rateCount++
	if e.rateCount > e.cfg.OrderRateLimit {
		return ErrRateLimit
	}
	return nil
}
