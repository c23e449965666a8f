// Package session owns the one logical connection to the venue: the
// connection state machine, identity negotiation, bounded reconnection,
// and the routing of inbound callbacks to their logical subscribers.
package session

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/yanun0323/logs"

	"main/internal/bus"
	"main/internal/correlator"
	"main/internal/obs"
	"main/internal/quote"
	"main/internal/sched"
	"main/internal/schema"
	"main/internal/venue"
)

var (
	ErrNoIdentities = errors.New("session: identity pool is empty")
	ErrNotStarted   = errors.New("session: Start was not called")
)

// OrderHandler is the execution engine's callback surface. The session
// forwards every order-scoped venue event here.
type OrderHandler interface {
	HandleOrderStatus(orderID uint64, status schema.VenueOrderStatus, filledQty schema.Quantity, avgFillPrice schema.Price)
	HandleFill(fill schema.Fill)
	HandleOrderError(orderID uint64, code int32, message string)
	HandleSessionDown()
	CancelAll()
}

// Config wires the session manager's collaborators and policy.
type Config struct {
	Commander  venue.Commander
	Correlator *correlator.Correlator
	Quotes     *quote.Cache
	Scheduler  *sched.Scheduler
	Events     *bus.Queue
	Metrics    *obs.Metrics

	// IdentityPool is the bounded set of candidate client ids tried in
	// order when the venue reports an identity conflict.
	IdentityPool []int
	// ReconnectBackoff is the fixed delay before an automatic reconnect.
	ReconnectBackoff time.Duration
	// MaxReconnectAttempts bounds consecutive automatic reconnects.
	// Beyond it the session stays Disconnected until operator action.
	MaxReconnectAttempts int
}

// Manager drives the connection state machine. It composes the two venue
// roles: it holds a Commander and implements the Events callback sink.
type Manager struct {
	cfg Config

	mu             sync.Mutex
	ctx            context.Context
	state          schema.ConnectionState
	identityIdx    int
	attempts       int
	userDisconnect bool
	orders         OrderHandler
	subs           map[schema.InstrumentKey]*quoteSubscription
	cancelPending  func()
}

// NewManager validates config and builds a disconnected manager.
func NewManager(cfg Config) (*Manager, error) {
	if cfg.Commander == nil || cfg.Correlator == nil || cfg.Quotes == nil || cfg.Scheduler == nil {
		return nil, errors.New("session: missing collaborator")
	}
	if len(cfg.IdentityPool) == 0 {
		return nil, ErrNoIdentities
	}
	if cfg.ReconnectBackoff <= 0 {
		cfg.ReconnectBackoff = 5 * time.Second
	}
	if cfg.MaxReconnectAttempts <= 0 {
		cfg.MaxReconnectAttempts = 10
	}
	return &Manager{
		cfg:   cfg,
		state: schema.ConnectionDisconnected,
		subs:  make(map[schema.InstrumentKey]*quoteSubscription),
	}, nil
}

// SetOrderHandler binds the execution engine. Must be called before
// Connect; kept separate from config to break the construction cycle
// between session and engine.
func (m *Manager) SetOrderHandler(h OrderHandler) {
	m.mu.Lock()
	m.orders = h
	m.mu.Unlock()
}

// Start stows the lifetime context for scheduled reconnects.
func (m *Manager) Start(ctx context.Context) {
	m.mu.Lock()
	m.ctx = ctx
	m.mu.Unlock()
}

// State returns the current connection state. Only the manager mutates it.
func (m *Manager) State() schema.ConnectionState {
	m.mu.Lock()
	s := m.state
	m.mu.Unlock()
	return s
}

// Connect begins connecting with the current candidate identity. Calling
// it while already Connecting or Connected is a no-op; an operator call
// also resets the automatic-reconnect budget.
func (m *Manager) Connect() error {
	m.mu.Lock()
	if m.ctx == nil {
		m.mu.Unlock()
		return ErrNotStarted
	}
	if m.state != schema.ConnectionDisconnected {
		m.mu.Unlock()
		return nil
	}
	m.userDisconnect = false
	m.attempts = 0
	m.state = schema.ConnectionConnecting
	identity := m.cfg.IdentityPool[m.identityIdx]
	m.mu.Unlock()

	m.publishState(schema.ConnectionConnecting)
	logs.Infof("session connecting with client id %d", identity)
	if err := m.cfg.Commander.Connect(identity); err != nil {
		logs.Warnf("session connect failed: %v", err)
		m.toDisconnected(true)
	}
	return nil
}

// Disconnect tears the session down on operator request: open orders are
// cancelled and subscriptions released first, and no automatic reconnect
// is scheduled. Safe to invoke on an already-torn-down session.
func (m *Manager) Disconnect() {
	m.mu.Lock()
	m.userDisconnect = true
	if m.cancelPending != nil {
		m.cancelPending()
		m.cancelPending = nil
	}
	orders := m.orders
	m.mu.Unlock()

	if orders != nil {
		orders.CancelAll()
	}
	m.releaseSubscriptions(true)
	if err := m.cfg.Commander.Disconnect(); err != nil {
		logs.Warnf("session disconnect: %v", err)
	}
	m.toDisconnected(false)
}

// OnConnected is the venue's identity-accepted callback.
func (m *Manager) OnConnected() {
	m.mu.Lock()
	m.state = schema.ConnectionConnected
	m.attempts = 0
	m.mu.Unlock()

	logs.Infof("session connected")
	m.publishState(schema.ConnectionConnected)
	m.resubscribe()
}

// OnDisconnected is the venue's session-lost callback.
func (m *Manager) OnDisconnected() {
	m.mu.Lock()
	wasDown := m.state == schema.ConnectionDisconnected
	user := m.userDisconnect
	m.mu.Unlock()
	if wasDown {
		return
	}
	logs.Warnf("session lost")
	m.toDisconnected(!user)
}

// OnError classifies a venue error code. Identity and network classes
// drive the state machine; informational codes are suppressed; everything
// else is routed to the owning subscriber through the correlator, falling
// through to the order engine since order correlation ids are order ids.
func (m *Manager) OnError(code int32, correlationID uint64, message string) {
	switch classify(code) {
	case classIdentity:
		m.rotateIdentity(message)
	case classTransient:
		logs.Warnf("session error %d: %s", code, message)
		m.mu.Lock()
		down := m.state == schema.ConnectionDisconnected
		user := m.userDisconnect
		m.mu.Unlock()
		if !down {
			m.toDisconnected(!user)
		}
	case classBenign:
		logs.Debugf("venue notice %d: %s", code, message)
	default:
		if sub, ok := m.cfg.Correlator.Resolve(correlationID); ok {
			sub.OnVenueError(code, message)
			return
		}
		m.mu.Lock()
		orders := m.orders
		m.mu.Unlock()
		if orders != nil && correlationID > 0 {
			orders.HandleOrderError(correlationID, code, message)
			return
		}
		logs.Errorf("venue error %d: %s", code, message)
	}
}

// rotateIdentity retries the connection with the next candidate client id.
// Exhausting the pool is fatal: the session stays Disconnected.
func (m *Manager) rotateIdentity(message string) {
	m.mu.Lock()
	if m.state != schema.ConnectionConnecting {
		m.mu.Unlock()
		logs.Warnf("identity conflict outside connect: %s", message)
		return
	}
	m.identityIdx++
	if m.identityIdx >= len(m.cfg.IdentityPool) {
		m.identityIdx = 0
		m.state = schema.ConnectionDisconnected
		m.mu.Unlock()
		logs.Errorf("identity pool exhausted (%d candidates), giving up: %s",
			len(m.cfg.IdentityPool), message)
		m.publishState(schema.ConnectionDisconnected)
		return
	}
	identity := m.cfg.IdentityPool[m.identityIdx]
	m.mu.Unlock()

	m.cfg.Metrics.Inc(obs.CounterIdentityRotations)
	logs.Warnf("client id in use, retrying with %d: %s", identity, message)
	if err := m.cfg.Commander.Connect(identity); err != nil {
		logs.Warnf("session connect failed: %v", err)
		m.toDisconnected(true)
	}
}

// toDisconnected transitions to Disconnected, tears down local state, and
// optionally schedules an automatic reconnect.
func (m *Manager) toDisconnected(reconnect bool) {
	m.mu.Lock()
	already := m.state == schema.ConnectionDisconnected
	m.state = schema.ConnectionDisconnected
	orders := m.orders
	m.mu.Unlock()

	if !already {
		m.publishState(schema.ConnectionDisconnected)
		// Local state first: acting on stale orders or quotes after a
		// session loss is worse than re-establishing from scratch.
		if orders != nil {
			orders.HandleSessionDown()
		}
		m.releaseSubscriptions(false)
	}
	if reconnect {
		m.scheduleReconnect()
	}
}

func (m *Manager) scheduleReconnect() {
	m.mu.Lock()
	if m.ctx == nil || m.userDisconnect {
		m.mu.Unlock()
		return
	}
	m.attempts++
	attempts := m.attempts
	if attempts > m.cfg.MaxReconnectAttempts {
		m.mu.Unlock()
		logs.Errorf("reconnect budget exhausted after %d attempts, operator action required",
			m.cfg.MaxReconnectAttempts)
		return
	}
	if m.cancelPending != nil {
		m.cancelPending()
	}
	ctx := m.ctx
	m.cancelPending = m.cfg.Scheduler.Once(ctx, m.cfg.ReconnectBackoff, m.reconnect)
	m.mu.Unlock()

	m.cfg.Metrics.Inc(obs.CounterReconnectAttempts)
	logs.Infof("reconnect %d/%d scheduled in %s",
		attempts, m.cfg.MaxReconnectAttempts, m.cfg.ReconnectBackoff)
}

func (m *Manager) reconnect(time.Time) {
	m.mu.Lock()
	if m.state != schema.ConnectionDisconnected || m.userDisconnect {
		m.mu.Unlock()
		return
	}
	m.state = schema.ConnectionConnecting
	m.cancelPending = nil
	identity := m.cfg.IdentityPool[m.identityIdx]
	m.mu.Unlock()

	m.publishState(schema.ConnectionConnecting)
	logs.Infof("session reconnecting with client id %d", identity)
	if err := m.cfg.Commander.Connect(identity); err != nil {
		logs.Warnf("session reconnect failed: %v", err)
		m.toDisconnected(true)
	}
}

func (m *Manager) publishState(s schema.ConnectionState) {
	if m.cfg.Events == nil {
		return
	}
	err := m.cfg.Events.TryPublish(bus.Event{
		Type:  bus.EventStateChange,
		Time:  time.Now(),
		State: s,
	})
	if err != nil {
		m.cfg.Metrics.Inc(obs.CounterBusDrops)
	}
}

// errorClass buckets venue error codes for the state machine.
type errorClass uint16

const (
	classOther errorClass = iota
	classIdentity
	classTransient
	classBenign
)

func classify(code int32) errorClass {
	switch code {
	case venue.CodeIdentityInUse:
		return classIdentity
	case venue.CodeCannotConnect, venue.CodePortInUse, venue.CodeNotConnected,
		venue.CodeConnectivityLost, venue.CodeUpstreamBroken:
		return classTransient
	case venue.CodeMarketFarmOK, venue.CodeHistFarmOK, venue.CodeSecDefFarmOK:
		return classBenign
	default:
		return classOther
	}
}
