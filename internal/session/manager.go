package session

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/skiffterm/skiff/internal/capacity"
	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/sshclient"
	"github.com/skiffterm/skiff/internal/terminal"
)

var (
	// ErrCapacityExceeded is returned by Open/SplitPane when the caller is
	// over its concurrent-session quota. Not retried automatically.
	ErrCapacityExceeded = errors.New("session capacity exceeded")
	// ErrServerLocked is returned when the target server is
	// administratively locked. Never retried.
	ErrServerLocked = errors.New("server is locked")
	// ErrSessionNotFound is returned for operations on an unknown session.
	ErrSessionNotFound = errors.New("session not found")
)

// DefaultCacheCeiling is the default cap on resident terminal surfaces.
const DefaultCacheCeiling = 20

// Reconnection defaults.
const (
	DefaultReconnectBaseDelay   = 1 * time.Second
	DefaultReconnectMaxAttempts = 5
)

// ClientFactory produces SSH clients. Every call returns a fresh,
// unconnected client; connections are never shared between sessions or
// panes, in any transport mode.
type ClientFactory interface {
	NewClient(server *serverstore.Server, transport sshclient.Transport) sshclient.Client
}

// hostFactory is the production ClientFactory.
type hostFactory struct{}

func (hostFactory) NewClient(server *serverstore.Server, transport sshclient.Transport) sshclient.Client {
	return sshclient.NewHostClient(server, transport)
}

// NewHostFactory returns a ClientFactory backed by sshclient.HostClient.
func NewHostFactory() ClientFactory {
	return hostFactory{}
}

// Config carries the manager's collaborators and tunables.
type Config struct {
	// Store resolves server IDs to saved server records.
	Store *serverstore.Store
	// Factory creates SSH clients. Defaults to the host implementation.
	Factory ClientFactory
	// Capacity is the entitlement predicate consulted before opening.
	// Nil means unlimited.
	Capacity capacity.Checker
	// CacheCeiling caps resident terminal surfaces (default 20).
	CacheCeiling int
	// ScrollbackBytes sizes each surface's scrollback buffer.
	ScrollbackBytes int
	// ReconnectBaseDelay is the first backoff delay (default 1s).
	ReconnectBaseDelay time.Duration
	// ReconnectMaxAttempts bounds the reconnection loop (default 5).
	ReconnectMaxAttempts int
	// AutoReconnect is applied to newly created sessions.
	AutoReconnect bool
}

// pendingAttempt marks one in-flight shell start. At most one exists per
// session ID at any time.
type pendingAttempt struct {
	client sshclient.Client
}

// binding is the durable ownership record for a bound client.
type binding struct {
	client     sshclient.Client
	shellID    string
	serverID   string
	manageTmux bool // kill the remote tmux session on unbind
}

// Manager owns all session, ownership, and cache state. A single mutex
// serializes every mutation, giving a total order over changes to the
// session list, the arbiter maps, and the LRU order.
type Manager struct {
	store   *serverstore.Store
	factory ClientFactory
	checker capacity.Checker

	cacheCeiling    int
	scrollbackBytes int
	baseDelay       time.Duration
	maxAttempts     int
	autoReconnect   bool

	mu       sync.Mutex
	sessions []*Session          // ordered, UI tab order
	byID     map[string]*Session // session/pane ID → session
	activeID string

	pending map[string]*pendingAttempt // arbiter: in-flight attempts
	bound   map[string]*binding        // arbiter: durable owners

	surfaces map[string]*terminal.Surface // LRU cache
	order    []string                     // LRU access order, oldest first

	cancels map[string]func() // per-session cancel handlers

	reconnecting map[string]context.CancelFunc // in-flight supervisors
	attempts     map[string]int                // reconnect attempt counters

	transitions map[string][]StateTransition
	callbacks   []StateCallback
	events      map[string][]Event
	eventHooks  []EventHook

	// disconnects tracks fire-and-forget background disconnect
	// goroutines so ResetForTesting can drain them.
	disconnects sync.WaitGroup
}

// NewManager creates a manager from the given config.
func NewManager(cfg Config) *Manager {
	if cfg.Factory == nil {
		cfg.Factory = hostFactory{}
	}
	if cfg.CacheCeiling <= 0 {
		cfg.CacheCeiling = DefaultCacheCeiling
	}
	if cfg.ReconnectBaseDelay <= 0 {
		cfg.ReconnectBaseDelay = DefaultReconnectBaseDelay
	}
	if cfg.ReconnectMaxAttempts <= 0 {
		cfg.ReconnectMaxAttempts = DefaultReconnectMaxAttempts
	}
	return &Manager{
		store:           cfg.Store,
		factory:         cfg.Factory,
		checker:         cfg.Capacity,
		cacheCeiling:    cfg.CacheCeiling,
		scrollbackBytes: cfg.ScrollbackBytes,
		baseDelay:       cfg.ReconnectBaseDelay,
		maxAttempts:     cfg.ReconnectMaxAttempts,
		autoReconnect:   cfg.AutoReconnect,
		byID:            make(map[string]*Session),
		pending:         make(map[string]*pendingAttempt),
		bound:           make(map[string]*binding),
		surfaces:        make(map[string]*terminal.Surface),
		cancels:         make(map[string]func()),
		reconnecting:    make(map[string]context.CancelFunc),
		attempts:        make(map[string]int),
		transitions:     make(map[string][]StateTransition),
		events:          make(map[string][]Event),
	}
}

// Sessions returns a copy of the ordered session list.
func (m *Manager) Sessions() []*Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	result := make([]*Session, len(m.sessions))
	copy(result, m.sessions)
	return result
}

// Get returns the session with the given ID, or nil.
func (m *Manager) Get(id string) *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[id]
}

// ActiveSession returns the currently selected session, or nil.
func (m *Manager) ActiveSession() *Session {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.byID[m.activeID]
}

// SessionCount returns the number of live sessions.
func (m *Manager) SessionCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sessions)
}

// SelectNext moves the active selection to the next session in order.
// No-op at the end of the list or when the list is empty.
func (m *Manager) SelectNext() {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOfLocked(m.activeID)
	if idx < 0 || idx+1 >= len(m.sessions) {
		return
	}
	m.activeID = m.sessions[idx+1].ID
}

// SelectPrevious moves the active selection to the previous session in
// order. No-op at the start of the list or when the list is empty.
func (m *Manager) SelectPrevious() {
	m.mu.Lock()
	defer m.mu.Unlock()
	idx := m.indexOfLocked(m.activeID)
	if idx <= 0 {
		return
	}
	m.activeID = m.sessions[idx-1].ID
}

// SelectAt selects the session at the given index. Out-of-range indices
// are no-ops.
func (m *Manager) SelectAt(index int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if index < 0 || index >= len(m.sessions) {
		return
	}
	m.activeID = m.sessions[index].ID
}

// SetCancelHandler registers the cancel handler invoked when the session
// closes or its surface is evicted. Replaces any previous handler.
func (m *Manager) SetCancelHandler(id string, fn func()) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.cancels[id] = fn
}

// OnStateChange registers a callback fired on every session state change.
func (m *Manager) OnStateChange(cb StateCallback) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.callbacks = append(m.callbacks, cb)
}

// Transitions returns a copy of the state transition history for a session.
func (m *Manager) Transitions(id string) []StateTransition {
	m.mu.Lock()
	defer m.mu.Unlock()
	transitions := m.transitions[id]
	result := make([]StateTransition, len(transitions))
	copy(result, transitions)
	return result
}

// indexOfLocked returns the position of id in the ordered list, or -1.
// Caller holds m.mu.
func (m *Manager) indexOfLocked(id string) int {
	for i, s := range m.sessions {
		if s.ID == id {
			return i
		}
	}
	return -1
}

// setState transitions a session's connection state, records the
// transition, and fires callbacks outside the lock.
func (m *Manager) setState(s *Session, state ConnectionState, attempt int, reason string) {
	old := s.setState(state, attempt, reason)
	if old == state {
		return
	}

	m.mu.Lock()
	trans := StateTransition{From: old, To: state, Timestamp: time.Now(), Detail: reason}
	history := append(m.transitions[s.ID], trans)
	if len(history) > maxTransitionsPerSession {
		history = history[len(history)-maxTransitionsPerSession:]
	}
	m.transitions[s.ID] = history

	cbs := make([]StateCallback, len(m.callbacks))
	copy(cbs, m.callbacks)
	m.mu.Unlock()

	// Fire callbacks outside the lock to avoid deadlocks
	for _, cb := range cbs {
		cb(s.ID, old, state)
	}
}

// ResetForTesting cancels all in-flight reconnections, waits for every
// outstanding background disconnect, and clears all state. The manager
// holds process-wide maps, so tests need this to isolate runs.
func (m *Manager) ResetForTesting() {
	m.mu.Lock()
	for id, cancel := range m.reconnecting {
		cancel()
		delete(m.reconnecting, id)
	}
	bindings := make([]*binding, 0, len(m.bound))
	for _, b := range m.bound {
		bindings = append(bindings, b)
	}
	surfaces := make([]*terminal.Surface, 0, len(m.surfaces))
	for _, surf := range m.surfaces {
		surfaces = append(surfaces, surf)
	}
	m.sessions = nil
	m.byID = make(map[string]*Session)
	m.activeID = ""
	m.pending = make(map[string]*pendingAttempt)
	m.bound = make(map[string]*binding)
	m.surfaces = make(map[string]*terminal.Surface)
	m.order = nil
	m.cancels = make(map[string]func())
	m.attempts = make(map[string]int)
	m.transitions = make(map[string][]StateTransition)
	m.events = make(map[string][]Event)
	m.mu.Unlock()

	for _, b := range bindings {
		m.disconnectAsync(b)
	}
	for _, surf := range surfaces {
		surf.Release()
	}

	m.disconnects.Wait()
	log.Printf("[session] manager reset")
}
