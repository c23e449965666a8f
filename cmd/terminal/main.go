package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"

	pyroscope "github.com/grafana/pyroscope-go"
	"github.com/yanun0323/logs"
	"github.com/yanun0323/pkg/sys"

	"main/internal/bus"
	"main/internal/correlator"
	"main/internal/exec"
	"main/internal/journal"
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

// reservedIDs keeps correlation ids clear of the order id space so a
// venue callback keyed by either can be routed unambiguously.
const reservedIDs = 1_000_000

func main() {
	if err := run(); err != nil {
		logs.Errorf("terminal: %+v", err)
		os.Exit(1)
	}
}

func run() error {
	configPath := flag.String("config", "", "Path to JSON config")
	instruments := flag.String("instruments", "", "Comma-separated instruments to watch, e.g. SPX_4500.00_C_20260829")
	profile := flag.Bool("profile", false, "Enable pyroscope profiling")
	profileServer := flag.String("profile-server", "http://localhost:4040", "Pyroscope server address")
	flag.Parse()

	loaded, err := loadConfig(*configPath)
	if err != nil {
		return err
	}

	if *profile {
		profiler, err := pyroscope.Start(pyroscope.Config{
			ApplicationName: "options/terminal",
			ServerAddress:   *profileServer,
			Tags:            map[string]string{"env": "local"},
			ProfileTypes: []pyroscope.ProfileType{
				pyroscope.ProfileCPU,
				pyroscope.ProfileAllocObjects,
				pyroscope.ProfileAllocSpace,
				pyroscope.ProfileInuseObjects,
				pyroscope.ProfileInuseSpace,
			},
		})
		if err != nil {
			return err
		}
		defer func() {
			_ = profiler.Stop()
		}()
	}

	trail, err := journal.Open(loaded.JournalDSN)
	if err != nil {
		return err
	}
	defer func() {
		_ = trail.Close()
	}()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	quotes := quote.NewCache()
	book := ledger.New(quotes)
	metrics := obs.NewMetrics()
	events := bus.NewQueue(loaded.BusCapacity)
	scheduler := sched.New(sched.RealClock{})
	gateway := sim.New(sim.Config{})

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
		Journal:         trail,
		ChaseInterval:   loaded.ChaseInterval,
		ConcessionGrace: loaded.ConcessionGrace,
	})
	if err != nil {
		return err
	}
	manager.SetOrderHandler(engine)
	gateway.Bind(manager)

	go events.Run(ctx, logEvent)

	manager.Start(ctx)
	stopChase := engine.Start(ctx, scheduler)
	defer stopChase()

	if err := manager.Connect(); err != nil {
		return err
	}

	keys, err := parseInstruments(*instruments)
	if err != nil {
		return err
	}
	for _, key := range keys {
		if err := manager.SubscribeQuotes(key); err != nil {
			logs.Warnf("subscribe %s failed: %v", key, err)
		}
	}

	logs.Infof("terminal up, venue %s:%d, identities %v", loaded.Host, loaded.Port, loaded.IdentityPool)
	<-sys.Shutdown()

	logs.Infof("shutting down")
	manager.Disconnect()
	cancel()
	events.Close()
	scheduler.Wait()

	snap := metrics.Snapshot()
	logs.Infof("metrics: reconnects=%d rotations=%d reprices=%d fills=%d rejects=%d late=%d drops=%d",
		snap.ReconnectAttempts, snap.IdentityRotations, snap.Reprices,
		snap.Fills, snap.RejectedOrders, snap.LateCallbacks, snap.BusDrops)
	return nil
}

func loadConfig(path string) (ops.Loaded, error) {
	if path == "" {
		return ops.Resolve(ops.FileConfig{})
	}
	return ops.Load(path)
}

func parseInstruments(raw string) ([]schema.InstrumentKey, error) {
	if raw == "" {
		return nil, nil
	}
	parts := strings.Split(raw, ",")
	keys := make([]schema.InstrumentKey, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		key, err := schema.ParseInstrumentKey(part)
		if err != nil {
			return nil, fmt.Errorf("invalid instrument %q: %w", part, err)
		}
		keys = append(keys, key)
	}
	return keys, nil
}

func logEvent(e bus.Event) {
	switch e.Type {
	case bus.EventStateChange:
		logs.Infof("session state: %s", e.State)
	case bus.EventQuoteUpdate:
		// Tick volume makes per-quote logging noise; skip.
	case bus.EventOrderUpdate:
		logs.Infof("order %d %s: %s %d %s @ %.2f",
			e.OrderID, e.OrderState, e.Side, e.Qty, e.Instrument, e.LimitPrice.Float64())
	case bus.EventPositionChange:
		logs.Infof("position %s: qty=%d avgCost=%s realized=%s",
			e.Instrument, e.PositionQty, e.AverageCost.StringFixed(4), e.RealizedPnL.StringFixed(2))
	}
}
