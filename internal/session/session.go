package session

import (
	"sync"
	"time"

	"github.com/skiffterm/skiff/internal/sshclient"
)

// ConnectionState represents the lifecycle state of a session's connection.
type ConnectionState string

const (
	StateIdle         ConnectionState = "idle"
	StateConnecting   ConnectionState = "connecting"
	StateConnected    ConnectionState = "connected"
	StateReconnecting ConnectionState = "reconnecting"
	StateDisconnected ConnectionState = "disconnected"
	StateFailed       ConnectionState = "failed"
)

// String returns the string representation of a ConnectionState.
func (s ConnectionState) String() string {
	return string(s)
}

// IsValid returns true if the state is one of the defined constants.
func (s ConnectionState) IsValid() bool {
	switch s {
	case StateIdle, StateConnecting, StateConnected, StateReconnecting, StateDisconnected, StateFailed:
		return true
	default:
		return false
	}
}

// StateTransition records a state change for debugging.
type StateTransition struct {
	From      ConnectionState `json:"from"`
	To        ConnectionState `json:"to"`
	Timestamp time.Time       `json:"timestamp"`
	Detail    string          `json:"detail,omitempty"`
}

// StateCallback is called when a session's connection state changes.
type StateCallback func(sessionID string, from, to ConnectionState)

// maxTransitionsPerSession limits stored state transitions per session.
const maxTransitionsPerSession = 50

// Session is one logical terminal tab, or one pane of a split tab,
// bound to a server. The session holds only the server's ID; the record
// itself lives in the server store.
type Session struct {
	// ID is the unique session identifier (UUID), immutable.
	ID string `json:"id"`
	// ServerID references the saved server configuration.
	ServerID string `json:"server_id"`
	// TabID is set for panes: the tab the pane belongs to.
	TabID string `json:"tab_id,omitempty"`
	// SplitPath is the pane's position in the split tree (empty for tabs).
	SplitPath []int `json:"split_path,omitempty"`
	// Transport selects how the remote shell runs (direct or tmux).
	Transport sshclient.Transport `json:"transport"`
	// AutoReconnect enables the reconnection supervisor, set at creation.
	AutoReconnect bool `json:"auto_reconnect"`
	// CreatedAt is when the session was created.
	CreatedAt time.Time `json:"created_at"`

	mu         sync.Mutex
	title      string
	state      ConnectionState
	attempt    int    // reconnect attempt, meaningful in StateReconnecting
	failReason string // meaningful in StateFailed
	shellID    string // last bound shell ID, kept for tmux reattach
}

// Title returns the display title.
func (s *Session) Title() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.title
}

// SetTitle updates the display title.
func (s *Session) SetTitle(title string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.title = title
}

// State returns the current connection state.
func (s *Session) State() ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Attempt returns the reconnect attempt counter reported with
// StateReconnecting.
func (s *Session) Attempt() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.attempt
}

// FailReason returns the failure reason reported with StateFailed.
func (s *Session) FailReason() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.failReason
}

// IsPane reports whether this session is a split pane rather than a tab.
func (s *Session) IsPane() bool {
	return s.TabID != ""
}

func (s *Session) setState(state ConnectionState, attempt int, reason string) ConnectionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	old := s.state
	s.state = state
	s.attempt = attempt
	s.failReason = reason
	return old
}

func (s *Session) lastShellID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.shellID
}

func (s *Session) rememberShellID(id string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shellID = id
}
