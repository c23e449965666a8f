// Package ops loads and resolves the runtime configuration for the
// trading terminal. Raw file values carry durations as seconds and leave
// optional fields as pointers; Load resolves them into typed settings
// with defaults applied and limits validated.
package ops

import (
	"encoding/json"
	"fmt"
	"os"
	"time"

	"main/internal/risk"
	"main/internal/schema"
)

// FileConfig mirrors the JSON config layout.
type FileConfig struct {
	Session SessionConfig `json:"session"`
	Exec    ExecConfig    `json:"exec"`
	Risk    RiskConfig    `json:"risk"`
	Journal JournalConfig `json:"journal"`
	Bus     BusConfig     `json:"bus"`
}

// RiskConfig carries the pre-trade limits with durations in seconds.
type RiskConfig struct {
	KillSwitch             bool            `json:"killSwitch"`
	MaxOrderQty            schema.Quantity `json:"maxOrderQty"`
	MaxPosition            schema.Quantity `json:"maxPosition"`
	OrderRateLimit         int             `json:"orderRateLimit"`
	OrderRateWindowSeconds int             `json:"orderRateWindowSeconds"`
	MaxPriceDeviationBps   int64           `json:"maxPriceDeviationBps"`
}

// SessionConfig describes the venue session: the identity pool used for
// client id rotation and the reconnect policy.
type SessionConfig struct {
	Host                 string `json:"host"`
	Port                 int    `json:"port"`
	IdentityBase         int    `json:"identityBase"`
	IdentityPoolSize     int    `json:"identityPoolSize"`
	ReconnectSeconds     *int   `json:"reconnectSeconds"`
	MaxReconnectAttempts *int   `json:"maxReconnectAttempts"`
}

// ExecConfig tunes the order chase loop.
type ExecConfig struct {
	ChaseIntervalSeconds   *int `json:"chaseIntervalSeconds"`
	ConcessionGraceSeconds *int `json:"concessionGraceSeconds"`
}

// JournalConfig points at the trade journal database. An empty DSN
// disables journaling.
type JournalConfig struct {
	DSN string `json:"dsn"`
}

// BusConfig sizes the in-process event queue.
type BusConfig struct {
	Capacity *int `json:"capacity"`
}

// Loaded is the resolved configuration ready for use.
type Loaded struct {
	Host                 string
	Port                 int
	IdentityPool         []int
	ReconnectBackoff     time.Duration
	MaxReconnectAttempts int
	ChaseInterval        time.Duration
	ConcessionGrace      time.Duration
	Risk                 risk.Config
	JournalDSN           string
	BusCapacity          int
}

const (
	defaultPort                 = 4002
	defaultIdentityBase         = 1
	defaultIdentityPoolSize     = 10
	defaultReconnectSeconds     = 5
	defaultMaxReconnectAttempts = 10
	defaultChaseSeconds         = 1
	defaultGraceSeconds         = 10
	defaultBusCapacity          = 1024
)

// Load reads a JSON config file and resolves it.
func Load(path string) (Loaded, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Loaded{}, err
	}
	var cfg FileConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return Loaded{}, err
	}
	return Resolve(cfg)
}

// Resolve applies defaults and validates a parsed config.
func Resolve(cfg FileConfig) (Loaded, error) {
	session, err := resolveSession(cfg.Session)
	if err != nil {
		return Loaded{}, err
	}
	execCfg, err := resolveExec(cfg.Exec)
	if err != nil {
		return Loaded{}, err
	}
	riskCfg, err := resolveRisk(cfg.Risk)
	if err != nil {
		return Loaded{}, err
	}
	capacity := defaultBusCapacity
	if cfg.Bus.Capacity != nil {
		if *cfg.Bus.Capacity <= 0 {
			return Loaded{}, fmt.Errorf("bus capacity must be > 0, got %d", *cfg.Bus.Capacity)
		}
		capacity = *cfg.Bus.Capacity
	}
	return Loaded{
		Host:                 session.host,
		Port:                 session.port,
		IdentityPool:         session.pool,
		ReconnectBackoff:     session.backoff,
		MaxReconnectAttempts: session.maxAttempts,
		ChaseInterval:        execCfg.interval,
		ConcessionGrace:      execCfg.grace,
		Risk:                 riskCfg,
		JournalDSN:           cfg.Journal.DSN,
		BusCapacity:          capacity,
	}, nil
}

type resolvedSession struct {
	host        string
	port        int
	pool        []int
	backoff     time.Duration
	maxAttempts int
}

func resolveSession(cfg SessionConfig) (resolvedSession, error) {
	out := resolvedSession{
		host:        cfg.Host,
		port:        cfg.Port,
		backoff:     defaultReconnectSeconds * time.Second,
		maxAttempts: defaultMaxReconnectAttempts,
	}
	if out.host == "" {
		out.host = "127.0.0.1"
	}
	if out.port == 0 {
		out.port = defaultPort
	}
	if out.port < 0 || out.port > 65535 {
		return resolvedSession{}, fmt.Errorf("session port out of range: %d", cfg.Port)
	}
	base := cfg.IdentityBase
	if base == 0 {
		base = defaultIdentityBase
	}
	if base < 0 {
		return resolvedSession{}, fmt.Errorf("identity base must be >= 0, got %d", cfg.IdentityBase)
	}
	size := cfg.IdentityPoolSize
	if size == 0 {
		size = defaultIdentityPoolSize
	}
	if size < 1 {
		return resolvedSession{}, fmt.Errorf("identity pool size must be >= 1, got %d", cfg.IdentityPoolSize)
	}
	out.pool = make([]int, size)
	for i := range out.pool {
		out.pool[i] = base + i
	}
	if cfg.ReconnectSeconds != nil {
		if *cfg.ReconnectSeconds < 1 {
			return resolvedSession{}, fmt.Errorf("reconnect seconds must be >= 1, got %d", *cfg.ReconnectSeconds)
		}
		out.backoff = time.Duration(*cfg.ReconnectSeconds) * time.Second
	}
	if cfg.MaxReconnectAttempts != nil {
		if *cfg.MaxReconnectAttempts < 1 {
			return resolvedSession{}, fmt.Errorf("max reconnect attempts must be >= 1, got %d", *cfg.MaxReconnectAttempts)
		}
		out.maxAttempts = *cfg.MaxReconnectAttempts
	}
	return out, nil
}

type resolvedExec struct {
	interval time.Duration
	grace    time.Duration
}

func resolveExec(cfg ExecConfig) (resolvedExec, error) {
	out := resolvedExec{
		interval: defaultChaseSeconds * time.Second,
		grace:    defaultGraceSeconds * time.Second,
	}
	if cfg.ChaseIntervalSeconds != nil {
		if *cfg.ChaseIntervalSeconds < 1 {
			return resolvedExec{}, fmt.Errorf("chase interval seconds must be >= 1, got %d", *cfg.ChaseIntervalSeconds)
		}
		out.interval = time.Duration(*cfg.ChaseIntervalSeconds) * time.Second
	}
	if cfg.ConcessionGraceSeconds != nil {
		if *cfg.ConcessionGraceSeconds < 1 {
			return resolvedExec{}, fmt.Errorf("concession grace seconds must be >= 1, got %d", *cfg.ConcessionGraceSeconds)
		}
		out.grace = time.Duration(*cfg.ConcessionGraceSeconds) * time.Second
	}
	return out, nil
}

func resolveRisk(cfg RiskConfig) (risk.Config, error) {
	if cfg.MaxOrderQty < 0 {
		return risk.Config{}, fmt.Errorf("risk maxOrderQty must be >= 0, got %d", cfg.MaxOrderQty)
	}
	if cfg.MaxPosition < 0 {
		return risk.Config{}, fmt.Errorf("risk maxPosition must be >= 0, got %d", cfg.MaxPosition)
	}
	if cfg.OrderRateLimit < 0 || cfg.OrderRateWindowSeconds < 0 {
		return risk.Config{}, fmt.Errorf("risk order rate settings must be >= 0")
	}
	if cfg.OrderRateLimit > 0 && cfg.OrderRateWindowSeconds == 0 {
		cfg.OrderRateWindowSeconds = 1
	}
	if cfg.MaxPriceDeviationBps < 0 {
		return risk.Config{}, fmt.Errorf("risk maxPriceDeviationBps must be >= 0, got %d", cfg.MaxPriceDeviationBps)
	}
	return risk.Config{
		KillSwitch:           cfg.KillSwitch,
		MaxOrderQty:          cfg.MaxOrderQty,
		MaxPosition:          cfg.MaxPosition,
		OrderRateLimit:       cfg.OrderRateLimit,
		OrderRateWindow:      time.Duration(cfg.OrderRateWindowSeconds) * time.Second,
		MaxPriceDeviationBps: cfg.MaxPriceDeviationBps,
	}, nil
}
