package ledger

import (
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
)

type fixedMid struct {
	mid schema.Price
	ok  bool
}

func (f fixedMid) Mid(schema.InstrumentKey) (schema.Price, bool) {
	return f.mid, f.ok
}

func fill(key schema.InstrumentKey, side schema.OrderSide, qty schema.Quantity, price schema.Price) schema.Fill {
	return schema.Fill{OrderID: 1, Instrument: key, Side: side, Qty: qty, Price: price}
}

func key() schema.InstrumentKey {
	return schema.NewInstrumentKey("SPX", 450000, schema.RightPut, "20260829")
}

func TestApplyFillRejectsBadInput(t *testing.T) {
	l := New(nil)
	_, err := l.ApplyFill(fill(key(), schema.OrderSideBuy, 0, 250))
	assert.ErrorIs(t, err, ErrInvalidFill)

	_, err = l.ApplyFill(fill(key(), schema.OrderSideUnknown, 1, 250))
	assert.ErrorIs(t, err, ErrUnknownSide)
}

func TestIncreaseReweightsAverageCost(t *testing.T) {
	l := New(nil)
	k := key()

	pos, err := l.ApplyFill(fill(k, schema.OrderSideBuy, 10, 200))
	require.NoError(t, err)
	assert.Equal(t, schema.Quantity(10), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("2.00")))

	// 10 @ 2.00 + 5 @ 2.30 -> 15 @ 2.10
	pos, err = l.ApplyFill(fill(k, schema.OrderSideBuy, 5, 230))
	require.NoError(t, err)
	assert.Equal(t, schema.Quantity(15), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("2.10")),
		"got %s", pos.AverageCost)
	assert.True(t, pos.RealizedPnL.IsZero(), "increasing fills realize nothing")
}

func TestReduceRealizesAgainstAverageCost(t *testing.T) {
	l := New(nil)
	k := key()

	_, err := l.ApplyFill(fill(k, schema.OrderSideBuy, 10, 200))
	require.NoError(t, err)

	// Sell 4 @ 2.50 off a 2.00 basis: (2.50-2.00)*4*100 = 200.
	pos, err := l.ApplyFill(fill(k, schema.OrderSideSell, 4, 250))
	require.NoError(t, err)
	assert.Equal(t, schema.Quantity(6), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("2.00")),
		"reducing must not move the basis, got %s", pos.AverageCost)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(200)),
		"got %s", pos.RealizedPnL)
	assert.True(t, l.TotalRealized().Equal(decimal.NewFromInt(200)))
}

func TestShortSideRealization(t *testing.T) {
	l := New(nil)
	k := key()

	// Short 5 @ 2.20, cover 5 @ 2.00: (2.20-2.00)*5*100 = 100 gain.
	_, err := l.ApplyFill(fill(k, schema.OrderSideSell, 5, 220))
	require.NoError(t, err)
	pos, err := l.ApplyFill(fill(k, schema.OrderSideBuy, 5, 200))
	require.NoError(t, err)

	assert.Equal(t, schema.Quantity(0), pos.Quantity)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(100)), "got %s", pos.RealizedPnL)
	_, ok := l.Get(k)
	assert.False(t, ok, "flat position must be removed")
	assert.True(t, l.TotalRealized().Equal(decimal.NewFromInt(100)),
		"realized survives the position closing")
}

func TestFlipThroughZeroSplitsTheFill(t *testing.T) {
	l := New(nil)
	k := key()

	_, err := l.ApplyFill(fill(k, schema.OrderSideBuy, 5, 200))
	require.NoError(t, err)

	// Sell 8 @ 2.20 against 5 long: realize (2.20-2.00)*5*100 = 100, then
	// open 3 short at the fill price.
	pos, err := l.ApplyFill(fill(k, schema.OrderSideSell, 8, 220))
	require.NoError(t, err)
	assert.Equal(t, schema.Quantity(-3), pos.Quantity)
	assert.True(t, pos.AverageCost.Equal(decimal.RequireFromString("2.20")),
		"reversed side opens at the fill price, got %s", pos.AverageCost)
	assert.True(t, pos.RealizedPnL.Equal(decimal.NewFromInt(100)), "got %s", pos.RealizedPnL)

	held, ok := l.Get(k)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(-3), held.Quantity)
}

func TestUnrealizedPnL(t *testing.T) {
	k := key()
	l := New(fixedMid{mid: 260, ok: true})

	_, err := l.ApplyFill(fill(k, schema.OrderSideBuy, 2, 250))
	require.NoError(t, err)

	// (2.60 - 2.50) * 2 * 100 = 20
	pnl, ok := l.UnrealizedPnL(k)
	require.True(t, ok)
	assert.True(t, pnl.Equal(decimal.NewFromInt(20)), "got %s", pnl)
}

func TestUnrealizedPnLUnavailableWithoutMark(t *testing.T) {
	k := key()
	l := New(fixedMid{ok: false})

	_, err := l.ApplyFill(fill(k, schema.OrderSideBuy, 2, 250))
	require.NoError(t, err)

	_, ok := l.UnrealizedPnL(k)
	assert.False(t, ok)

	_, ok = l.UnrealizedPnL(schema.NewInstrumentKey("SPX", 1, schema.RightCall, "20260829"))
	assert.False(t, ok, "no position means no unrealized")
}

func TestPositionsSnapshot(t *testing.T) {
	l := New(nil)
	a := schema.NewInstrumentKey("SPX", 450000, schema.RightCall, "20260829")
	b := schema.NewInstrumentKey("SPX", 455000, schema.RightPut, "20260829")

	_, err := l.ApplyFill(fill(a, schema.OrderSideBuy, 1, 250))
	require.NoError(t, err)
	_, err = l.ApplyFill(fill(b, schema.OrderSideSell, 2, 310))
	require.NoError(t, err)

	assert.Len(t, l.Positions(), 2)
}
