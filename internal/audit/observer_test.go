package audit

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/session"
	"github.com/skiffterm/skiff/internal/sshclient"
)

// stubClient satisfies sshclient.Client; the observer tests only need a
// bindable handle.
type stubClient struct{}

func (stubClient) Connect(ctx context.Context) error                       { return nil }
func (stubClient) Execute(ctx context.Context, cmd string) (string, error) { return "", nil }
func (stubClient) Resize(cols, rows int) error                             { return nil }
func (stubClient) Disconnect() error                                       { return nil }

func TestObserveSessionsRecordsLifecycle(t *testing.T) {
	a := newTestAuditor(t, 90)
	mgr := session.NewManager(session.Config{})
	t.Cleanup(mgr.ResetForTesting)
	a.ObserveSessions(mgr)

	srv := &serverstore.Server{ID: "srv-1", Name: "build-box", Host: "build.example.com"}
	s, err := mgr.Open(srv, sshclient.TransportDirect, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	c := stubClient{}
	if !mgr.TryBeginShellStart(s.ID, c) {
		t.Fatal("gate should be open")
	}
	mgr.RegisterSSHClient(c, "shell-1", s.ID, srv.ID, false)
	mgr.UnregisterSSHClient(s.ID)
	mgr.Close(s.ID)

	entries, err := a.Query(QueryOptions{SessionID: s.ID})
	if err != nil {
		t.Fatalf("Query: %v", err)
	}
	got := map[string]bool{}
	for _, e := range entries {
		got[e.EventType] = true
		if e.ServerID != srv.ID {
			t.Errorf("entry %s server = %q, want %q", e.EventType, e.ServerID, srv.ID)
		}
	}
	for _, want := range []string{EventSessionOpened, EventClientBound, EventClientUnbound, EventSessionClosed} {
		if !got[want] {
			t.Errorf("missing audit record for %s (have %v)", want, got)
		}
	}
}

func TestObserveSessionsRecordsReconnectFailures(t *testing.T) {
	a := newTestAuditor(t, 90)
	store, err := serverstore.OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	mgr := session.NewManager(session.Config{
		Store:                store,
		AutoReconnect:        true,
		ReconnectBaseDelay:   time.Millisecond,
		ReconnectMaxAttempts: 2,
	})
	t.Cleanup(mgr.ResetForTesting)
	a.ObserveSessions(mgr)

	// The server record is never saved, so every reconnect attempt
	// fails to resolve it.
	srv := &serverstore.Server{ID: "ghost", Name: "gone", Host: "gone.example.com"}
	s, err := mgr.Open(srv, sshclient.TransportDirect, false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	mgr.HandleDisconnect(s.ID, errors.New("link down"))

	deadline := time.Now().Add(2 * time.Second)
	for {
		entries, err := a.Query(QueryOptions{SessionID: s.ID, EventType: EventReconnectGivenUp})
		if err != nil {
			t.Fatalf("Query: %v", err)
		}
		if len(entries) > 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("timed out waiting for the give-up audit record")
		}
		time.Sleep(2 * time.Millisecond)
	}

	for _, eventType := range []string{EventReconnectStarted, EventReconnectFailed} {
		entries, err := a.Query(QueryOptions{SessionID: s.ID, EventType: eventType})
		if err != nil {
			t.Fatalf("Query %s: %v", eventType, err)
		}
		if len(entries) != 2 {
			t.Errorf("%s records = %d, want 2", eventType, len(entries))
		}
	}
}
