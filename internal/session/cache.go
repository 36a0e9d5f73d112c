package session

import (
	"log"

	"github.com/skiffterm/skiff/internal/terminal"
)

// RegisterTerminal stores a surface for the session ID, marking it most
// recently used. The eviction sweep runs before insertion, so the cache
// never momentarily exceeds its ceiling.
func (m *Manager) RegisterTerminal(surface *terminal.Surface, id string) {
	m.mu.Lock()
	evicted, cancels := m.sweepLocked()
	prev := m.surfaces[id]
	if prev == surface {
		prev = nil
	}
	m.surfaces[id] = surface
	m.removeFromOrderLocked(id)
	m.order = append(m.order, id)
	m.mu.Unlock()

	// A surface has exactly one owner per ID; a replaced one is released.
	if prev != nil {
		prev.Release()
	}
	for _, fn := range cancels {
		fn()
	}
	for _, evictedID := range evicted {
		m.emitEvent(evictedID, EventSurfaceEvicted, "")
	}
}

// TouchTerminal re-marks the session's surface as most recently used.
// Call whenever a surface is fetched for active use.
func (m *Manager) TouchTerminal(id string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.surfaces[id]; !ok {
		return
	}
	m.removeFromOrderLocked(id)
	m.order = append(m.order, id)
}

// UnregisterTerminal releases the session's surface and removes it from
// the cache.
func (m *Manager) UnregisterTerminal(id string) {
	m.mu.Lock()
	surf := m.surfaces[id]
	delete(m.surfaces, id)
	m.removeFromOrderLocked(id)
	m.mu.Unlock()

	if surf != nil {
		surf.Release()
	}
}

// Terminal returns the surface registered for the session, if any.
func (m *Manager) Terminal(id string) (*terminal.Surface, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	surf, ok := m.surfaces[id]
	return surf, ok
}

// TerminalCount returns the number of resident surfaces.
func (m *Manager) TerminalCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.surfaces)
}

// sweepLocked evicts least-recently-used surfaces until the cache is
// under its ceiling. The currently active session's surface is never
// evicted: it is rotated to the most-recently-used end instead, so
// pressure is relieved by the next-oldest eligible entry. When only
// protected entries remain, the sweep terminates without evicting; this
// is the single allowed exception to the ceiling.
//
// Caller holds m.mu. Returns the evicted IDs and their cancel handlers;
// the handlers must be invoked after the lock is released.
func (m *Manager) sweepLocked() ([]string, []func()) {
	var evicted []string
	var cancels []func()
	for len(m.surfaces) >= m.cacheCeiling && len(m.order) > 0 {
		lru := m.order[0]
		if lru == m.activeID {
			if len(m.order) == 1 {
				break
			}
			m.order = append(m.order[1:], lru)
			continue
		}

		m.order = m.order[1:]
		surf := m.surfaces[lru]
		delete(m.surfaces, lru)

		if surf != nil {
			surf.Release()
		}
		if b := m.bound[lru]; b != nil {
			delete(m.pending, lru)
			delete(m.bound, lru)
			m.disconnectAsync(b)
		}
		if fn := m.cancels[lru]; fn != nil {
			cancels = append(cancels, fn)
			delete(m.cancels, lru)
		}

		log.Printf("[cache] evicted surface for %s", lru)
		evicted = append(evicted, lru)
	}
	return evicted, cancels
}

// SweepPausedSurfaces releases paused surfaces that are no longer
// attached to a visible window. A surface is paused instead of released
// when its session closes while still on screen; once the window goes
// away this reclaims it. Run periodically. Returns the number released.
func (m *Manager) SweepPausedSurfaces() int {
	m.mu.Lock()
	var stale []*terminal.Surface
	for id, surf := range m.surfaces {
		if surf.Paused() && !surf.Visible() {
			delete(m.surfaces, id)
			m.removeFromOrderLocked(id)
			stale = append(stale, surf)
		}
	}
	m.mu.Unlock()

	for _, surf := range stale {
		surf.Release()
	}
	if len(stale) > 0 {
		log.Printf("[cache] released %d paused surface(s)", len(stale))
	}
	return len(stale)
}

// removeFromOrderLocked removes id from the access-order list if present.
// Caller holds m.mu.
func (m *Manager) removeFromOrderLocked(id string) {
	for i, v := range m.order {
		if v == id {
			m.order = append(m.order[:i], m.order[i+1:]...)
			return
		}
	}
}
