// Command paper runs the full stack against the simulated venue with a
// random-walk options market: it submits chase orders, lets the venue fill
// whatever crosses, and prints the resulting book and metrics.
package main

import (
	"context"
	"errors"
	"flag"
	"math/rand"
	"os"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/correlator"
	"main/internal/exec"
	"main/internal/ledger"
	"main/internal/obs"
	"main/internal/ops"
	"main/internal/quote"
	"main/internal/risk"
	"main/internal/sched"
	"main/internal/schema"
	"main/internal/session"
	"main/internal/venue/sim"
)

const reservedIDs = 1_000_000

func main() {
	if err := run(); err != nil {
		logs.Errorf("paper: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	duration := flag.Duration("duration", 30*time.Second, "How long to run the market")
	tickEvery := flag.Duration("tick-interval", 200*time.Millisecond, "Market tick cadence")
	orderEvery := flag.Duration("order-interval", 5*time.Second, "Cadence of new chase orders")
	qty := flag.Int64("qty", 2, "Contracts per order")
	seed := flag.Int64("seed", 0, "Market rng seed (0=time)")
	flag.Parse()

	loaded, err := ops.Resolve(ops.FileConfig{})
	if err != nil {
		return err
	}
	if *seed == 0 {
		*seed = time.Now().UnixNano()
	}
	rng := rand.New(rand.NewSource(*seed))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quotes := quote.NewCache()
	book := ledger.New(quotes)
	metrics := obs.NewMetrics()
	events := bus.NewQueue(loaded.BusCapacity)
	scheduler := sched.New(sched.RealClock{})
	gateway := sim.New(sim.Config{Seed: *seed})

	manager, err := session.NewManager(session.Config{
		Commander:            gateway,
		Correlator:           correlator.New(reservedIDs),
		Quotes:               quotes,
		Scheduler:            scheduler,
		Events:               events,
		Metrics:              metrics,
		IdentityPool:         loaded.IdentityPool,
		ReconnectBackoff:     loaded.ReconnectBackoff,
		MaxReconnectAttempts: loaded.MaxReconnectAttempts,
	})
	if err != nil {
		return err
	}
	engine, err := exec.NewEngine(exec.Config{
		Commander:       gateway,
		Quotes:          quotes,
		Ledger:          book,
		Risk:            risk.NewEngine(loaded.Risk),
		Session:         manager,
		Clock:           scheduler.Clock(),
		Events:          events,
		Metrics:         metrics,
		ChaseInterval:   loaded.ChaseInterval,
		ConcessionGrace: loaded.ConcessionGrace,
	})
	if err != nil {
		return err
	}
	manager.SetOrderHandler(engine)
	gateway.Bind(manager)

	go events.Run(ctx, func(bus.Event) {})

	manager.Start(ctx)
	stopChase := engine.Start(ctx, scheduler)
	defer stopChase()

	if err := manager.Connect(); err != nil {
		return err
	}

	key := schema.NewInstrumentKey("SPX", 450000, schema.RightCall, time.Now().Format("20060102"))
	if err := manager.SubscribeQuotes(key); err != nil {
		return err
	}
	corrID := subscriptionID(gateway, key)
	if corrID == 0 {
		return errors.New("quote subscription did not reach the venue")
	}

	market := newMarket(rng, 250)
	side := schema.OrderSideBuy
	deadline := time.Now().Add(*duration)
	nextOrder := time.Now()

	for time.Now().Before(deadline) {
		bid, ask := market.step()
		gateway.TickQuote(corrID, bid, ask)
		fillCrossing(gateway, bid, ask)

		if !time.Now().Before(nextOrder) {
			if _, err := engine.Submit(key, side, schema.Quantity(*qty), 0, schema.OrderModeChaseMid); err != nil {
				logs.Warnf("submit skipped: %v", err)
			}
			side = side.Opposite()
			nextOrder = time.Now().Add(*orderEvery)
		}
		time.Sleep(*tickEvery)
	}

	engine.CancelAll()
	manager.Disconnect()
	cancel()
	events.Close()
	scheduler.Wait()

	for _, pos := range book.Positions() {
		logs.Infof("position %s: qty=%d avgCost=%s realized=%s",
			pos.Instrument, pos.Quantity, pos.AverageCost.StringFixed(4), pos.RealizedPnL.StringFixed(2))
	}
	logs.Infof("total realized: %s", book.TotalRealized().StringFixed(2))
	snap := metrics.Snapshot()
	logs.Infof("metrics: reprices=%d fills=%d rejects=%d late=%d drops=%d lifetime=%+v",
		snap.Reprices, snap.Fills, snap.RejectedOrders, snap.LateCallbacks, snap.BusDrops, snap.OrderLifetime)
	return nil
}

// market is a clamped random walk quoted one tick wide.
type market struct {
	rng *rand.Rand
	mid schema.Price
}

func newMarket(rng *rand.Rand, start schema.Price) *market {
	return &market{rng: rng, mid: start}
}

func (m *market) step() (bid, ask schema.Price) {
	inc := quote.TickIncrement(m.mid)
	switch m.rng.Intn(3) {
	case 0:
		m.mid += inc
	case 1:
		if m.mid > inc*2 {
			m.mid -= inc
		}
	}
	half := quote.TickIncrement(m.mid)
	return m.mid - half, m.mid + half
}

// fillCrossing executes resting orders whose limit crosses the market.
func fillCrossing(gateway *sim.Venue, bid, ask schema.Price) {
	for _, order := range gateway.RestingOrders() {
		switch {
		case order.Side == schema.OrderSideBuy && order.LimitPrice >= ask:
			gateway.Fill(order.OrderID, order.Qty, ask)
		case order.Side == schema.OrderSideSell && order.LimitPrice <= bid:
			gateway.Fill(order.OrderID, order.Qty, bid)
		}
	}
}

func subscriptionID(gateway *sim.Venue, key schema.InstrumentKey) uint64 {
	for id, bound := range gateway.Subscriptions() {
		if bound == key {
			return id
		}
	}
	return 0
}
