package schema

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInstrumentKeyNormalization(t *testing.T) {
	a := NewInstrumentKey("spx ", 450000, RightCall, "2026-08-29")
	b := NewInstrumentKey("SPX", 450000, RightCall, "20260829")
	assert.Equal(t, a, b, "different spellings of the same contract must compare equal")
	assert.Equal(t, "SPX_4500.00_C_20260829", a.String())
	assert.Equal(t, Price(450000), a.StrikePrice())
}

func TestParseInstrumentKeyRoundTrip(t *testing.T) {
	key := NewInstrumentKey("SPX", 452550, RightPut, "20260829")
	parsed, err := ParseInstrumentKey(key.String())
	require.NoError(t, err)
	assert.Equal(t, key, parsed)
}

func TestParseInstrumentKeyRejectsMalformed(t *testing.T) {
	for _, raw := range []string{
		"",
		"SPX_4500.00_C",
		"SPX_4500.00_X_20260829",
		"SPX_abc_C_20260829",
		"_4500.00_C_20260829",
	} {
		_, err := ParseInstrumentKey(raw)
		assert.Error(t, err, "input %q", raw)
	}
}

func TestParseRight(t *testing.T) {
	assert.Equal(t, RightCall, ParseRight("c"))
	assert.Equal(t, RightCall, ParseRight("CALL"))
	assert.Equal(t, RightPut, ParseRight(" P "))
	assert.Equal(t, RightUnknown, ParseRight("straddle"))
}

func TestPriceConversions(t *testing.T) {
	assert.Equal(t, 2.55, Price(255).Float64())
	assert.Equal(t, Price(255), PriceFromFloat(2.55))
	assert.Equal(t, Price(255), PriceFromDecimal(Price(255).Decimal()))
	assert.Equal(t, "2.55", Price(255).Decimal().String())
}

func TestOrderSide(t *testing.T) {
	assert.Equal(t, int64(1), OrderSideBuy.Sign())
	assert.Equal(t, int64(-1), OrderSideSell.Sign())
	assert.Equal(t, OrderSideSell, OrderSideBuy.Opposite())
	assert.Equal(t, OrderSideBuy, OrderSideSell.Opposite())
	assert.Equal(t, "BUY", OrderSideBuy.String())
}

func TestOrderStateTerminal(t *testing.T) {
	assert.False(t, OrderStateWorking.Terminal())
	assert.False(t, OrderStateCancelling.Terminal())
	assert.True(t, OrderStateFilled.Terminal())
	assert.True(t, OrderStateCancelled.Terminal())
	assert.True(t, OrderStateRejected.Terminal())
}
