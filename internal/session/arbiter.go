package session

import (
	"context"
	"log"
	"time"

	"github.com/skiffterm/skiff/internal/sshclient"
)

// tmuxKillTimeout bounds the best-effort tmux session cleanup on unbind.
const tmuxKillTimeout = 5 * time.Second

// TryBeginShellStart claims the right to start a shell for the given
// session or pane ID. It succeeds only when no attempt is pending and no
// client is bound for the ID; of several concurrent attempts, exactly one
// passes. Losing callers must discard their clients.
func (m *Manager) TryBeginShellStart(id string, client sshclient.Client) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, inFlight := m.pending[id]; inFlight {
		return false
	}
	if _, isBound := m.bound[id]; isBound {
		return false
	}
	m.pending[id] = &pendingAttempt{client: client}
	return true
}

// RegisterSSHClient completes a successful connect, making client the
// durable owner of the session ID. Registration from any client that is
// not the current pending holder is rejected: a client that lost the
// race, or was superseded by a newer attempt, can never bind no matter
// when its connect sequence finishes. Returns whether the client became
// the owner; on false the caller still owns the client and must discard
// it.
//
// skipTmuxLifecycle suppresses remote tmux session bookkeeping for
// tmux-transport sessions whose remote lifetime is managed externally.
func (m *Manager) RegisterSSHClient(client sshclient.Client, shellID, id, serverID string, skipTmuxLifecycle bool) bool {
	m.mu.Lock()
	p, inFlight := m.pending[id]
	if !inFlight || p.client != client {
		m.mu.Unlock()
		log.Printf("[arbiter] dropping stale registration for %s (shell %s)", id, shellID)
		return false
	}
	delete(m.pending, id)

	manageTmux := false
	s := m.byID[id]
	if s != nil && s.Transport == sshclient.TransportTmux && !skipTmuxLifecycle {
		manageTmux = true
	}
	m.bound[id] = &binding{
		client:     client,
		shellID:    shellID,
		serverID:   serverID,
		manageTmux: manageTmux,
	}
	m.mu.Unlock()

	if s != nil {
		s.rememberShellID(shellID)
		m.setState(s, StateConnected, 0, "")
	}
	m.emitEvent(id, EventClientBound, "shell "+shellID)
	return true
}

// FinishShellStart clears the pending marker, but only when client still
// holds it. A stale attempt's completion callback can therefore fire
// without disturbing a newer pending attempt that has taken its place.
func (m *Manager) FinishShellStart(id string, client sshclient.Client) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if p, inFlight := m.pending[id]; inFlight && p.client == client {
		delete(m.pending, id)
	}
}

// UnregisterSSHClient clears both pending and bound state for the ID and
// disconnects the previously bound client exactly once, on a background
// goroutine. This is the only path that returns an ID to the unbound
// state.
func (m *Manager) UnregisterSSHClient(id string) {
	m.mu.Lock()
	delete(m.pending, id)
	b := m.bound[id]
	delete(m.bound, id)
	m.mu.Unlock()

	if b == nil {
		return
	}
	m.disconnectAsync(b)
	m.emitEvent(id, EventClientUnbound, "shell "+b.shellID)
}

// IsShellStartInFlight reports whether a shell start attempt is pending
// for the ID.
func (m *Manager) IsShellStartInFlight(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, inFlight := m.pending[id]
	return inFlight
}

// ShellID returns the shell ID of the bound client for the session, if
// one is bound.
func (m *Manager) ShellID(id string) (string, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, isBound := m.bound[id]
	if !isBound {
		return "", false
	}
	return b.shellID, true
}

// disconnectAsync tears down a binding's client on a background goroutine
// tracked by the disconnect wait group. Production callers never wait on
// it; ResetForTesting drains it.
func (m *Manager) disconnectAsync(b *binding) {
	m.disconnects.Add(1)
	go func() {
		defer m.disconnects.Done()
		if b.manageTmux {
			ctx, cancel := context.WithTimeout(context.Background(), tmuxKillTimeout)
			if _, err := b.client.Execute(ctx, "tmux kill-session -t "+b.shellID); err != nil {
				log.Printf("[arbiter] tmux cleanup for shell %s: %v", b.shellID, err)
			}
			cancel()
		}
		if err := b.client.Disconnect(); err != nil {
			log.Printf("[arbiter] disconnect shell %s: %v", b.shellID, err)
		}
	}()
}
