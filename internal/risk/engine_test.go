package risk

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"main/internal/schema"
)

func intent(side schema.OrderSide, qty schema.Quantity, limit schema.Price) Intent {
	return Intent{
		Instrument: schema.NewInstrumentKey("SPX", 450000, schema.RightCall, "20260829"),
		Side:       side,
		Qty:        qty,
		LimitPrice: limit,
	}
}

func TestZeroConfigAllowsEverything(t *testing.T) {
	e := NewEngine(Config{})
	err := e.Evaluate(intent(schema.OrderSideBuy, 1_000_000, 999999), StateView{})
	assert.NoError(t, err)
}

func TestKillSwitch(t *testing.T) {
	e := NewEngine(Config{KillSwitch: true})
	err := e.Evaluate(intent(schema.OrderSideBuy, 1, 250), StateView{})
	assert.ErrorIs(t, err, ErrKillSwitch)
}

func TestMaxOrderQty(t *testing.T) {
	e := NewEngine(Config{MaxOrderQty: 10})
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 10, 250), StateView{}))
	assert.ErrorIs(t, e.Evaluate(intent(schema.OrderSideBuy, 11, 250), StateView{}), ErrMaxQty)
}

func TestMaxPositionCountsBothDirections(t *testing.T) {
	e := NewEngine(Config{MaxPosition: 5})

	// Long 4, buying 2 more would breach.
	err := e.Evaluate(intent(schema.OrderSideBuy, 2, 250), StateView{Position: 4})
	assert.ErrorIs(t, err, ErrMaxPosition)

	// Long 4, selling 2 reduces toward flat.
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideSell, 2, 250), StateView{Position: 4}))

	// Short 4, selling 2 more breaches on the short side.
	err = e.Evaluate(intent(schema.OrderSideSell, 2, 250), StateView{Position: -4})
	assert.ErrorIs(t, err, ErrMaxPosition)
}

func TestOrderRateLimit(t *testing.T) {
	e := NewEngine(Config{OrderRateLimit: 2, OrderRateWindow: time.Second})
	now := time.Unix(1000, 0)

	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 250), StateView{Now: now}))
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 250), StateView{Now: now}))
	assert.ErrorIs(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 250), StateView{Now: now}), ErrRateLimit)

	// A fresh window resets the count.
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 250), StateView{Now: now.Add(time.Second)}))
}

func TestPriceBand(t *testing.T) {
	e := NewEngine(Config{MaxPriceDeviationBps: 1000}) // 10%

	view := StateView{ReferencePrice: 300}
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 330), view))
	assert.ErrorIs(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 331), view), ErrPriceBand)
	assert.ErrorIs(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 269), view), ErrPriceBand)

	// No reference price means the band cannot be evaluated.
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 999), StateView{}))
}

func TestNilEngineAllows(t *testing.T) {
	var e *Engine
	assert.NoError(t, e.Evaluate(intent(schema.OrderSideBuy, 1, 250), StateView{}))
}
