package exec

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"main/internal/schema"
	"main/internal/venue"
)

func TestConcessionStepsEscalation(t *testing.T) {
	h := newHarness(t)

	testCases := []struct {
		elapsed time.Duration
		steps   int64
	}{
		{0, 0},
		{5 * time.Second, 0},
		{12 * time.Second, 0},
		{19 * time.Second, 0},
		{20 * time.Second, 1},
		{25 * time.Second, 1},
		{30 * time.Second, 2},
		{65 * time.Second, 5},
	}

	prev := int64(0)
	for _, tc := range testCases {
		got := h.engine.concessionSteps(tc.elapsed)
		assert.Equal(t, tc.steps, got, "elapsed %s", tc.elapsed)
		assert.GreaterOrEqual(t, got, prev, "concessions never decrease as time passes")
		prev = got
	}
	assert.Zero(t, h.engine.concessionSteps(-time.Second))
}

func TestChaseTargetDirection(t *testing.T) {
	// Buys concede upward toward the ask, sells downward toward the bid.
	assert.Equal(t, schema.Price(255), chaseTarget(schema.OrderSideBuy, 250, 1))
	assert.Equal(t, schema.Price(245), chaseTarget(schema.OrderSideSell, 250, 1))
	assert.Equal(t, schema.Price(320), chaseTarget(schema.OrderSideBuy, 300, 2))

	// A sell concession never crosses below the minimum tick.
	assert.Equal(t, schema.Price(5), chaseTarget(schema.OrderSideSell, 10, 4))
}

func TestChaseHoldsWithinGrace(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	_, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)

	h.clock.Advance(12 * time.Second)
	h.engine.Chase(h.clock.Now())
	assert.Empty(t, h.commander.cancelled(),
		"no concession is due until a full interval beyond the grace period")
}

func TestChaseRepricesWithNewOrderID(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	id, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)
	submitTime := h.clock.Now()

	h.clock.Advance(25 * time.Second)
	h.engine.Chase(h.clock.Now())
	require.Equal(t, []uint64{id}, h.commander.cancelled(), "reprice starts with a cancel")

	// Until the venue confirms the cancel, the limit must not move.
	po, ok := h.engine.Order(id)
	require.True(t, ok)
	assert.Equal(t, schema.Price(250), po.CurrentLimit)

	// Further chase passes must not stack cancels on the same order.
	h.engine.Chase(h.clock.Now())
	assert.Len(t, h.commander.cancelled(), 1)

	h.engine.HandleOrderError(id, venue.CodeOrderCancelled, "order cancelled")
	h.engine.HandleOrderStatus(id, schema.VenueStatusCancelled, 0, venue.NoPrice)

	_, ok = h.engine.Order(id)
	assert.False(t, ok, "the old id is gone for good")

	subs := h.commander.submitted()
	require.Len(t, subs, 2)
	replacement := subs[1]
	assert.Greater(t, replacement.OrderID, id, "replacement gets a fresh id")
	assert.Equal(t, schema.Price(255), replacement.LimitPrice, "buy concedes one tick upward")

	po, ok = h.engine.Order(replacement.OrderID)
	require.True(t, ok)
	assert.Equal(t, schema.OrderStateWorking, po.State)
	assert.Equal(t, 1, po.RepriceCount)
	assert.Equal(t, submitTime, po.SubmitTime,
		"concession clock keeps running from the original submit")
}

func TestChaseFollowsMovedMid(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	id, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)

	// Mid moves a full tick within the grace period: still reprices,
	// because the target tracks the mid even with zero concessions.
	h.setMid(260)
	h.clock.Advance(2 * time.Second)
	h.engine.Chase(h.clock.Now())
	require.Equal(t, []uint64{id}, h.commander.cancelled())

	h.engine.HandleOrderStatus(id, schema.VenueStatusCancelled, 0, venue.NoPrice)
	subs := h.commander.submitted()
	require.Len(t, subs, 2)
	assert.Equal(t, schema.Price(260), subs[1].LimitPrice)
}

func TestChasePausesOnStaleQuote(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	id, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)

	h.quotes.Drop(h.key)
	h.clock.Advance(40 * time.Second)
	h.engine.Chase(h.clock.Now())
	assert.Empty(t, h.commander.cancelled(), "no quote means hold the last limit")

	po, ok := h.engine.Order(id)
	require.True(t, ok)
	assert.Equal(t, schema.Price(250), po.CurrentLimit)

	// Quotes resume and chasing picks up where the clock says it should.
	h.setMid(250)
	h.engine.Chase(h.clock.Now())
	assert.Equal(t, []uint64{id}, h.commander.cancelled())
}

func TestChaseSkipsPassiveOrders(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	_, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModePassive)
	require.NoError(t, err)

	h.clock.Advance(time.Minute)
	h.engine.Chase(h.clock.Now())
	assert.Empty(t, h.commander.cancelled())
}

func TestFillBeatsReplaceRace(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	id, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)

	h.clock.Advance(25 * time.Second)
	h.engine.Chase(h.clock.Now())
	require.Equal(t, []uint64{id}, h.commander.cancelled())

	// The fill lands before the cancel confirmation: it wins.
	h.engine.HandleFill(schema.Fill{
		OrderID: id, Instrument: h.key, Side: schema.OrderSideBuy,
		Qty: 1, Price: 250, Time: h.clock.Now(),
	})
	_, ok := h.engine.Order(id)
	assert.False(t, ok)

	// The cancel confirmation then refers to an untracked order and must
	// not resurrect it as a replacement.
	h.engine.HandleOrderStatus(id, schema.VenueStatusCancelled, 0, venue.NoPrice)
	assert.Len(t, h.commander.submitted(), 1, "no replacement after a fill won the race")
	assert.Empty(t, h.engine.Orders())

	pos, ok := h.book.Get(h.key)
	require.True(t, ok)
	assert.Equal(t, schema.Quantity(1), pos.Quantity)
}

func TestReplaceSubmitFailureDropsOrder(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	id, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)

	h.clock.Advance(25 * time.Second)
	h.engine.Chase(h.clock.Now())
	require.Equal(t, []uint64{id}, h.commander.cancelled())

	h.commander.submitErr = assert.AnError
	h.engine.HandleOrderStatus(id, schema.VenueStatusCancelled, 0, venue.NoPrice)
	assert.Empty(t, h.engine.Orders(),
		"order is gone at the venue and the replacement never left the process")
}

func TestChaseCancelFailureRetriesNextPass(t *testing.T) {
	h := newHarness(t)
	h.setMid(250)
	_, err := h.engine.Submit(h.key, schema.OrderSideBuy, 1, 0, schema.OrderModeChaseMid)
	require.NoError(t, err)

	h.commander.cancelErr = assert.AnError
	h.clock.Advance(25 * time.Second)
	h.engine.Chase(h.clock.Now())
	assert.Empty(t, h.commander.cancelled())

	// The failed cancel cleared the in-flight flag, so the next pass tries
	// again once the venue accepts commands.
	h.commander.cancelErr = nil
	h.engine.Chase(h.clock.Now())
	assert.Len(t, h.commander.cancelled(), 1)
}
