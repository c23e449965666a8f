package exec

import (
	"context"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/correlator"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/quote"
	"main/internal/risk"
	"main/internal/sched"
	"main/internal/schema"
	"main/internal/session"
	"main/internal/venue/sim"
)

// TestChaseLifecycleEndToEnd drives the full stack through one chased buy:
// submit at the mid, concede a tick after the grace period, fill at the
// conceded price, and verify the resulting position.
func TestChaseLifecycleEndToEnd(t *testing.T) {
	gateway := sim.New(sim.Config{})
	clock := sched.NewFakeClock(time.Date(2026, 8, 29, 9, 30, 0, 0, time.UTC))
	quotes := quote.NewCache()
	book := ledger.New(quotes)
	metrics := obs.NewMetrics()
	scheduler := sched.New(clock)

	manager, err := session.NewManager(session.Config{
		Commander:    gateway,
		Correlator:   correlator.New(1000),
		Quotes:       quotes,
		Scheduler:    scheduler,
		Metrics:      metrics,
		IdentityPool: []int{1},
	})
	require.NoError(t, err)

	engine, err := NewEngine(Config{
		Commander: gateway,
		Quotes:    quotes,
		Ledger:    book,
		Risk:      risk.NewEngine(risk.Config{}),
		Session:   manager,
		Clock:     clock,
		Metrics:   metrics,
	})
	require.NoError(t, err)
	manager.SetOrderHandler(engine)
	gateway.Bind(manager)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	manager.Start(ctx)
	require.NoError(t, manager.Connect())

	key := schema.NewInstrumentKey("SPX", 450000, schema.RightCall, "20260829")
	require.NoError(t, manager.SubscribeQuotes(key))
	var corrID uint64
	for id := range gateway.Subscriptions() {
		corrID = id
	}
	gateway.TickQuote(corrID, 245, 255) // mid 2.50, nickel band

	id, err := engine.Submit(key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)
	po, ok := engine.Order(id)
	require.True(t, ok)
	assert.Equal(t, schema.Price(250), po.CurrentLimit)

	// Within the grace window nothing moves.
	clock.Advance(9 * time.Second)
	engine.Chase(clock.Now())
	assert.Empty(t, gateway.Cancels())

	// Past one full interval beyond the grace period the buy concedes one
	// tick: the venue sees a cancel and a fresh order at 2.55.
	clock.Advance(16 * time.Second)
	engine.Chase(clock.Now())
	require.Equal(t, []uint64{id}, gateway.Cancels())

	subs := gateway.Submissions()
	require.Len(t, subs, 2)
	replacement := subs[1]
	assert.Greater(t, replacement.OrderID, id)
	assert.Equal(t, schema.Price(255), replacement.LimitPrice)
	assert.Equal(t, uint64(1), metrics.Get(obs.CounterReprices))

	_, ok = engine.Order(id)
	assert.False(t, ok)
	po, ok = engine.Order(replacement.OrderID)
	require.True(t, ok)
	assert.Equal(t, 1, po.RepriceCount)

	// The venue fills the replacement at the conceded price.
	require.True(t, gateway.Fill(replacement.OrderID, 1, 255))
	assert.Empty(t, engine.Orders(), "filled order leaves the engine")

	pos, ok := book.Get(key)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(1), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("2.55")),
		"got %s", pos.AverageCost)
	assert.Equal(t, uint64(1), metrics.Get(obs.CounterFills))
}
