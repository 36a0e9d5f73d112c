package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/sshclient"
)

// shellStarter is implemented by clients that can run an interactive
// PTY shell. Fakes used in tests may omit it.
type shellStarter interface {
	StartShell(shellID string, cols, rows int) error
}

// shellStreamer exposes the running shell's output stream.
type shellStreamer interface {
	Stdout() io.Reader
}

// StartShell establishes the SSH client and shell for the session. The
// arbiter gate makes concurrent calls for the same session safe: all but
// one fail the gate and return nil without side effects.
func (m *Manager) StartShell(ctx context.Context, id string) error {
	s := m.Get(id)
	if s == nil {
		return ErrSessionNotFound
	}
	if _, isBound := m.ShellID(id); isBound {
		return nil
	}

	srv, err := m.store.Get(s.ServerID)
	if err != nil {
		return fmt.Errorf("start shell for %s: %w", id, err)
	}

	client := m.factory.NewClient(srv, s.Transport)
	if !m.TryBeginShellStart(id, client) {
		log.Printf("[arbiter] shell start already in flight for %s", id)
		return nil
	}

	if err := m.connectAndBind(ctx, s, srv, client); err != nil {
		m.HandleDisconnect(id, err)
		return err
	}
	return nil
}

// connectAndBind drives one client through connect, shell start, and
// registration. The caller must already hold the pending slot for the
// session with this client.
func (m *Manager) connectAndBind(ctx context.Context, s *Session, srv *serverstore.Server, client sshclient.Client) error {
	if err := client.Connect(ctx); err != nil {
		m.FinishShellStart(s.ID, client)
		m.discardClient(client)
		return err
	}

	shellID := s.lastShellID()
	if shellID == "" {
		shellID = uuid.New().String()
	}
	cols, rows := 80, 24
	if surf, ok := m.Terminal(s.ID); ok {
		cols, rows = surf.Size()
	}

	if starter, ok := client.(shellStarter); ok {
		if err := starter.StartShell(shellID, cols, rows); err != nil {
			m.FinishShellStart(s.ID, client)
			m.discardClient(client)
			return err
		}
	}

	if !m.RegisterSSHClient(client, shellID, s.ID, srv.ID, false) {
		// The pending slot was cleared while the dial ran, most likely
		// because the session closed. The shell is live but ownerless.
		m.discardClient(client)
		return nil
	}

	if streamer, ok := client.(shellStreamer); ok {
		if surf, surfOK := m.Terminal(s.ID); surfOK {
			if out := streamer.Stdout(); out != nil {
				go surf.RelayOutput(out)
			}
		}
	}
	return nil
}

// discardClient disconnects a client that never became (or no longer is)
// the bound owner, on a tracked background goroutine.
func (m *Manager) discardClient(client sshclient.Client) {
	m.disconnects.Add(1)
	go func() {
		defer m.disconnects.Done()
		if err := client.Disconnect(); err != nil {
			log.Printf("[session] discard client: %v", err)
		}
	}()
}

// HandleDisconnect reacts to an unexpected transport failure for the
// session. With auto-reconnect enabled it starts the reconnection
// supervisor (one per session at most); otherwise the session settles
// into its terminal state.
func (m *Manager) HandleDisconnect(id string, reason error) {
	s := m.Get(id)
	if s == nil {
		return
	}

	if !s.AutoReconnect {
		if reason != nil {
			m.setState(s, StateFailed, 0, reason.Error())
		} else {
			m.setState(s, StateDisconnected, 0, "")
		}
		return
	}

	m.mu.Lock()
	if _, inFlight := m.reconnecting[id]; inFlight {
		m.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	m.reconnecting[id] = cancel
	m.mu.Unlock()

	detail := ""
	if reason != nil {
		detail = reason.Error()
	}
	go m.reconnectLoop(ctx, id, detail)
}

// reconnectLoop retries the session's connection with exponential backoff
// until it succeeds, the attempt budget is exhausted, or the session is
// closed. On success the attempt counter resets to zero; on exhaustion it
// stays where it is and the session keeps its last observed state.
func (m *Manager) reconnectLoop(ctx context.Context, id, reason string) {
	defer func() {
		m.mu.Lock()
		delete(m.reconnecting, id)
		m.mu.Unlock()
	}()

	for {
		m.mu.Lock()
		attempt := m.attempts[id]
		if attempt >= m.maxAttempts {
			m.mu.Unlock()
			log.Printf("[session] giving up on %s after %d attempt(s)", id, attempt)
			m.emitEvent(id, EventReconnectGivenUp, fmt.Sprintf("after %d attempt(s)", attempt))
			return
		}
		attempt++
		m.attempts[id] = attempt
		m.mu.Unlock()

		delay := m.baseDelay << (attempt - 1)
		select {
		case <-ctx.Done():
			return
		case <-time.After(delay):
		}

		err := m.Reconnect(ctx, id)
		if err == nil {
			m.mu.Lock()
			m.attempts[id] = 0
			m.mu.Unlock()
			m.emitEvent(id, EventReconnectSuccess, fmt.Sprintf("after %d attempt(s) (reason: %s)", attempt, reason))
			return
		}
		if errors.Is(err, ErrSessionNotFound) || ctx.Err() != nil {
			return
		}
		log.Printf("[session] reconnect attempt %d/%d for %s: %v", attempt, m.maxAttempts, id, err)
		m.emitEvent(id, EventReconnectFailed, fmt.Sprintf("attempt %d: %v", attempt, err))
	}
}

// Reconnect replaces the session's client: the stale binding is cleared,
// a fresh client is dialed, and the bind goes back through the arbiter
// gate. Returns serverstore.ErrServerNotFound (wrapped) when the server
// record has been deleted; that counts as a failed attempt.
func (m *Manager) Reconnect(ctx context.Context, id string) error {
	s := m.Get(id)
	if s == nil {
		return ErrSessionNotFound
	}

	m.mu.Lock()
	attempt := m.attempts[id]
	m.mu.Unlock()

	m.UnregisterSSHClient(id)
	m.setState(s, StateReconnecting, attempt, "")
	m.emitEvent(id, EventReconnecting, fmt.Sprintf("attempt %d", attempt))

	srv, err := m.store.Get(s.ServerID)
	if err != nil {
		m.setState(s, StateFailed, 0, err.Error())
		return fmt.Errorf("reconnect %s: %w", id, err)
	}

	client := m.factory.NewClient(srv, s.Transport)
	if !m.TryBeginShellStart(id, client) {
		return fmt.Errorf("reconnect %s: shell start already in flight", id)
	}

	if err := m.connectAndBind(ctx, s, srv, client); err != nil {
		m.setState(s, StateFailed, 0, err.Error())
		return fmt.Errorf("reconnect %s: %w", id, err)
	}
	return nil
}
