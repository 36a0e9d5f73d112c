package session

import (
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/sshclient"
)

// Open returns a session for the given server. When forceNew is false and
// a connected session for the server already exists, that session is
// returned unchanged with no new network activity. Otherwise a new
// session is created in the connected state, ready for a client to bind.
//
// Returns ErrCapacityExceeded when the capacity predicate denies another
// session, and ErrServerLocked when the server is administratively locked.
func (m *Manager) Open(server *serverstore.Server, transport sshclient.Transport, forceNew bool) (*Session, error) {
	m.mu.Lock()
	if !forceNew {
		for _, s := range m.sessions {
			if s.ServerID == server.ID && s.State() == StateConnected {
				m.activeID = s.ID
				m.mu.Unlock()
				return s, nil
			}
		}
	}
	// Quota check and insert share one critical section; concurrent
	// opens each see the count including prior winners.
	if m.checker != nil && !m.checker.AllowSession(len(m.sessions)) {
		m.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	if server.Locked {
		m.mu.Unlock()
		return nil, ErrServerLocked
	}
	s := m.addSessionLocked(server, transport, "", nil)
	m.mu.Unlock()

	m.emitEvent(s.ID, EventOpened, "server "+server.ID)
	log.Printf("[session] opened %s for server %s (%s)", s.ID, server.ID, server.Name)
	return s, nil
}

// SplitPane creates a pane-mode session inside the given tab. Panes are
// always fresh: many panes may target the same server, each with its own
// client. splitPath records the pane's position in the tab's split tree.
func (m *Manager) SplitPane(server *serverstore.Server, transport sshclient.Transport, tabID string, splitPath []int) (*Session, error) {
	m.mu.Lock()
	if m.checker != nil && !m.checker.AllowSession(len(m.sessions)) {
		m.mu.Unlock()
		return nil, ErrCapacityExceeded
	}
	if server.Locked {
		m.mu.Unlock()
		return nil, ErrServerLocked
	}
	s := m.addSessionLocked(server, transport, tabID, splitPath)
	m.mu.Unlock()

	m.emitEvent(s.ID, EventOpened, "server "+server.ID)
	log.Printf("[session] opened pane %s in tab %s for server %s", s.ID, tabID, server.ID)
	return s, nil
}

// addSessionLocked constructs and registers a new session record. The
// state machine treats "connected" as ready for the view layer to attach
// a client; the actual network connect happens when a client binds.
// Caller holds m.mu.
func (m *Manager) addSessionLocked(server *serverstore.Server, transport sshclient.Transport, tabID string, splitPath []int) *Session {
	s := &Session{
		ID:            uuid.New().String(),
		ServerID:      server.ID,
		TabID:         tabID,
		SplitPath:     splitPath,
		Transport:     transport,
		AutoReconnect: m.autoReconnect,
		CreatedAt:     time.Now(),
		title:         server.Name,
		state:         StateConnected,
	}

	m.sessions = append(m.sessions, s)
	m.byID[s.ID] = s
	m.activeID = s.ID
	return s
}

// Close removes the session. The registered cancel handler runs first,
// synchronously, so in-flight async work is told to stop before any
// teardown. The bound client's disconnect is dispatched to a background
// goroutine; a surface still attached to a visible window is paused
// instead of released. Closing an already-removed session is a no-op.
func (m *Manager) Close(id string) {
	m.mu.Lock()
	if _, ok := m.byID[id]; !ok {
		m.mu.Unlock()
		return
	}
	fn := m.cancels[id]
	delete(m.cancels, id)
	m.mu.Unlock()

	if fn != nil {
		fn()
	}

	m.mu.Lock()
	s, ok := m.byID[id]
	if !ok {
		// Lost a race with a concurrent Close while the handler ran.
		m.mu.Unlock()
		return
	}

	idx := m.indexOfLocked(id)
	m.sessions = append(m.sessions[:idx], m.sessions[idx+1:]...)
	delete(m.byID, id)
	if m.activeID == id {
		m.activeID = m.replacementActiveLocked(idx, s.ServerID)
	}

	if cancel, inFlight := m.reconnecting[id]; inFlight {
		cancel()
		delete(m.reconnecting, id)
	}
	delete(m.attempts, id)

	delete(m.pending, id)
	b := m.bound[id]
	delete(m.bound, id)

	surf := m.surfaces[id]
	releaseSurface := false
	if surf != nil && !surf.Visible() {
		delete(m.surfaces, id)
		m.removeFromOrderLocked(id)
		releaseSurface = true
	}
	m.mu.Unlock()

	if surf != nil {
		if releaseSurface {
			surf.Release()
		} else {
			surf.Pause()
		}
	}
	if b != nil {
		m.disconnectAsync(b)
	}

	m.emitEventFor(id, s.ServerID, EventClosed, "")
	log.Printf("[session] closed %s", id)
}

// replacementActiveLocked picks the next active session after closing the
// session that was at idx (already removed from the list): prefer the
// next session for the same server, else the previous one for the same
// server, else any remaining session. Caller holds m.mu.
//
// This tie-break mirrors how users expect focus to move between tabs on
// the same host; it is a policy choice, not a correctness requirement.
func (m *Manager) replacementActiveLocked(idx int, serverID string) string {
	for i := idx; i < len(m.sessions); i++ {
		if m.sessions[i].ServerID == serverID {
			return m.sessions[i].ID
		}
	}
	for i := idx - 1; i >= 0; i-- {
		if m.sessions[i].ServerID == serverID {
			return m.sessions[i].ID
		}
	}
	if len(m.sessions) > 0 {
		if idx >= len(m.sessions) {
			idx = len(m.sessions) - 1
		}
		return m.sessions[idx].ID
	}
	return ""
}

// CloseAll closes every session. Each is closed individually; no ordering
// guarantee beyond that.
func (m *Manager) CloseAll() {
	m.mu.Lock()
	ids := make([]string, 0, len(m.sessions))
	for _, s := range m.sessions {
		ids = append(ids, s.ID)
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}

// CloseForServer closes every session targeting the given server.
func (m *Manager) CloseForServer(serverID string) {
	m.mu.Lock()
	var ids []string
	for _, s := range m.sessions {
		if s.ServerID == serverID {
			ids = append(ids, s.ID)
		}
	}
	m.mu.Unlock()

	for _, id := range ids {
		m.Close(id)
	}
}
