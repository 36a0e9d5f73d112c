package session

import (
	"sync"
	"testing"
	"time"
)

func arbiterTestManager(t *testing.T) (*Manager, *fakeFactory) {
	t.Helper()
	store, _ := newTestStore(t, 1)
	return newTestManager(t, Config{Store: store})
}

func TestTryBeginShellStartGate(t *testing.T) {
	m, _ := arbiterTestManager(t)

	a := &fakeClient{name: "a"}
	b := &fakeClient{name: "b"}

	if !m.TryBeginShellStart("term-1", a) {
		t.Fatal("first attempt should win the gate")
	}
	if m.TryBeginShellStart("term-1", b) {
		t.Error("second attempt should fail while first is pending")
	}
	if !m.IsShellStartInFlight("term-1") {
		t.Error("attempt should be in flight")
	}

	// A different id is unaffected.
	if !m.TryBeginShellStart("term-2", b) {
		t.Error("gate for a different id should be independent")
	}
}

func TestTryBeginShellStartBlockedByBinding(t *testing.T) {
	m, _ := arbiterTestManager(t)

	a := &fakeClient{name: "a"}
	if !m.TryBeginShellStart("term-1", a) {
		t.Fatal("gate should be open")
	}
	m.RegisterSSHClient(a, "shell-a", "term-1", "srv", false)

	if m.TryBeginShellStart("term-1", &fakeClient{name: "b"}) {
		t.Error("gate should stay closed while a client is bound")
	}
}

func TestRegisterRejectsStaleClient(t *testing.T) {
	m, _ := arbiterTestManager(t)

	a := &fakeClient{name: "a"}
	b := &fakeClient{name: "b"}

	if !m.TryBeginShellStart("term-1", a) {
		t.Fatal("A should win the gate")
	}

	// B lost the race but its connect sequence completes anyway.
	m.RegisterSSHClient(b, "shell-b", "term-1", "srv", false)

	if _, bound := m.ShellID("term-1"); bound {
		t.Error("stale registration must not bind")
	}
	if !m.IsShellStartInFlight("term-1") {
		t.Error("A's pending attempt must survive B's stale registration")
	}

	// A's own registration still lands.
	m.RegisterSSHClient(a, "shell-a", "term-1", "srv", false)
	shellID, bound := m.ShellID("term-1")
	if !bound || shellID != "shell-a" {
		t.Errorf("expected winner's shell-a bound, got %q (bound=%v)", shellID, bound)
	}
	if m.IsShellStartInFlight("term-1") {
		t.Error("registration should clear the pending marker")
	}
}

func TestFinishShellStartOnlyClearsOwnAttempt(t *testing.T) {
	m, _ := arbiterTestManager(t)

	a := &fakeClient{name: "a"}
	if !m.TryBeginShellStart("term-1", a) {
		t.Fatal("A should win the gate")
	}
	m.UnregisterSSHClient("term-1")

	// A newer attempt takes the slot; A's completion callback fires late.
	c := &fakeClient{name: "c"}
	if !m.TryBeginShellStart("term-1", c) {
		t.Fatal("gate should reopen after unregister")
	}
	m.FinishShellStart("term-1", a)
	if !m.IsShellStartInFlight("term-1") {
		t.Error("stale finish must not disturb the newer pending attempt")
	}

	m.FinishShellStart("term-1", c)
	if m.IsShellStartInFlight("term-1") {
		t.Error("matching finish should clear the pending marker")
	}
}

func TestUnregisterClearsPendingAndBound(t *testing.T) {
	m, _ := arbiterTestManager(t)

	a := &fakeClient{name: "a"}
	if !m.TryBeginShellStart("term-1", a) {
		t.Fatal("A should win the gate")
	}
	m.UnregisterSSHClient("term-1")

	if m.IsShellStartInFlight("term-1") {
		t.Error("unregister should clear the pending marker")
	}
	if _, bound := m.ShellID("term-1"); bound {
		t.Error("unregister should clear any binding")
	}
	if !m.TryBeginShellStart("term-1", &fakeClient{name: "c"}) {
		t.Error("a fresh attempt should succeed after unregister")
	}
}

func TestUnregisterDisconnectsExactlyOnce(t *testing.T) {
	m, _ := arbiterTestManager(t)

	a := &fakeClient{name: "a"}
	if !m.TryBeginShellStart("term-1", a) {
		t.Fatal("gate should be open")
	}
	m.RegisterSSHClient(a, "shell-a", "term-1", "srv", false)

	m.UnregisterSSHClient("term-1")
	m.UnregisterSSHClient("term-1")

	waitFor(t, time.Second, "background disconnect", func() bool {
		return a.disconnectCount() == 1
	})
	// A second unregister must not disconnect again.
	time.Sleep(10 * time.Millisecond)
	if got := a.disconnectCount(); got != 1 {
		t.Errorf("expected exactly 1 disconnect, got %d", got)
	}
}

func TestConcurrentShellStartsSingleWinner(t *testing.T) {
	m, _ := arbiterTestManager(t)

	const contenders = 32
	clients := make([]*fakeClient, contenders)
	winners := make([]bool, contenders)

	var wg sync.WaitGroup
	for i := 0; i < contenders; i++ {
		clients[i] = &fakeClient{name: "c"}
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			if m.TryBeginShellStart("term-1", clients[i]) {
				winners[i] = true
				m.RegisterSSHClient(clients[i], "shell", "term-1", "srv", false)
			} else {
				// Losers try to register anyway; all must be rejected.
				m.RegisterSSHClient(clients[i], "shell-stale", "term-1", "srv", false)
			}
		}(i)
	}
	wg.Wait()

	winCount := 0
	for _, won := range winners {
		if won {
			winCount++
		}
	}
	if winCount != 1 {
		t.Fatalf("expected exactly one gate winner, got %d", winCount)
	}

	shellID, bound := m.ShellID("term-1")
	if !bound || shellID != "shell" {
		t.Errorf("expected winner's binding, got %q (bound=%v)", shellID, bound)
	}
}

func TestRegisterTmuxLifecycleCleanup(t *testing.T) {
	store, servers := newTestStore(t, 1)
	m, _ := newTestManager(t, Config{Store: store})

	s, err := m.Open(servers[0], "tmux", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a := &fakeClient{name: "a"}
	if !m.TryBeginShellStart(s.ID, a) {
		t.Fatal("gate should be open")
	}
	m.RegisterSSHClient(a, "shell-a", s.ID, servers[0].ID, false)
	m.UnregisterSSHClient(s.ID)

	waitFor(t, time.Second, "tmux kill-session", func() bool {
		a.mu.Lock()
		defer a.mu.Unlock()
		return len(a.executed) == 1
	})
	a.mu.Lock()
	cmd := a.executed[0]
	a.mu.Unlock()
	if cmd != "tmux kill-session -t shell-a" {
		t.Errorf("unexpected cleanup command %q", cmd)
	}
}

func TestRegisterTmuxLifecycleSkipped(t *testing.T) {
	store, servers := newTestStore(t, 1)
	m, _ := newTestManager(t, Config{Store: store})

	s, err := m.Open(servers[0], "tmux", false)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}

	a := &fakeClient{name: "a"}
	if !m.TryBeginShellStart(s.ID, a) {
		t.Fatal("gate should be open")
	}
	m.RegisterSSHClient(a, "shell-a", s.ID, servers[0].ID, true)
	m.UnregisterSSHClient(s.ID)

	waitFor(t, time.Second, "background disconnect", func() bool {
		return a.disconnectCount() == 1
	})
	a.mu.Lock()
	defer a.mu.Unlock()
	if len(a.executed) != 0 {
		t.Errorf("skipTmuxLifecycle should suppress cleanup, ran %v", a.executed)
	}
}
