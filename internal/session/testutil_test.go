package session

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/skiffterm/skiff/internal/serverstore"
	"github.com/skiffterm/skiff/internal/sshclient"
)

// fakeClient is a scriptable sshclient.Client for tests.
type fakeClient struct {
	name        string
	connectErr  error
	connectGate chan struct{} // when set, Connect blocks until closed
	connects    int32
	disconnects int32

	mu       sync.Mutex
	executed []string
}

func (c *fakeClient) Connect(ctx context.Context) error {
	atomic.AddInt32(&c.connects, 1)
	if c.connectGate != nil {
		<-c.connectGate
	}
	return c.connectErr
}

func (c *fakeClient) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.executed = append(c.executed, command)
	return "", nil
}

func (c *fakeClient) Resize(cols, rows int) error {
	return nil
}

func (c *fakeClient) Disconnect() error {
	atomic.AddInt32(&c.disconnects, 1)
	return nil
}

func (c *fakeClient) disconnectCount() int {
	return int(atomic.LoadInt32(&c.disconnects))
}

func (c *fakeClient) connectCount() int {
	return int(atomic.LoadInt32(&c.connects))
}

// fakeFactory hands out fakeClients, optionally failing the first
// failConnects of them at Connect time. When gate is set, every client
// blocks in Connect until the gate channel is closed.
type fakeFactory struct {
	mu           sync.Mutex
	created      []*fakeClient
	failConnects int
	failAll      bool
	gate         chan struct{}
}

func (f *fakeFactory) NewClient(server *serverstore.Server, transport sshclient.Transport) sshclient.Client {
	f.mu.Lock()
	defer f.mu.Unlock()
	c := &fakeClient{name: fmt.Sprintf("client-%d", len(f.created)), connectGate: f.gate}
	if f.failAll || len(f.created) < f.failConnects {
		c.connectErr = fmt.Errorf("connect refused (%s)", c.name)
	}
	f.created = append(f.created, c)
	return c
}

func (f *fakeFactory) clients() []*fakeClient {
	f.mu.Lock()
	defer f.mu.Unlock()
	result := make([]*fakeClient, len(f.created))
	copy(result, f.created)
	return result
}

// newTestStore returns an in-memory store seeded with n servers named
// srv-0..srv-(n-1).
func newTestStore(t *testing.T, n int) (*serverstore.Store, []*serverstore.Server) {
	t.Helper()
	store, err := serverstore.OpenMemory()
	if err != nil {
		t.Fatalf("open in-memory store: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	servers := make([]*serverstore.Server, n)
	for i := 0; i < n; i++ {
		srv := &serverstore.Server{
			Name: fmt.Sprintf("srv-%d", i),
			Host: fmt.Sprintf("10.0.0.%d", i+1),
			Port: 22,
		}
		if err := store.Create(srv); err != nil {
			t.Fatalf("seed server %d: %v", i, err)
		}
		servers[i] = srv
	}
	return store, servers
}

// newTestManager builds a manager over an in-memory store and a fake
// factory, with fast backoff so reconnection tests finish quickly.
func newTestManager(t *testing.T, cfg Config) (*Manager, *fakeFactory) {
	t.Helper()
	factory := &fakeFactory{}
	cfg.Factory = factory
	if cfg.ReconnectBaseDelay == 0 {
		cfg.ReconnectBaseDelay = time.Millisecond
	}
	m := NewManager(cfg)
	t.Cleanup(m.ResetForTesting)
	return m, factory
}

// waitFor polls cond until it returns true or the deadline passes.
func waitFor(t *testing.T, d time.Duration, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(d)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
