// Package terminal holds the terminal surface: the expensive per-session
// rendering resource (scrollback, dimensions) bounded by the session
// core's LRU cache.
//
// A Surface is bound 1:1 to one session or pane ID and is owned
// exclusively by the cache once registered. Nothing else may release it.
package terminal

import (
	"io"
	"log"
	"sync"
)

// Surface is the backing resource for one terminal view. It accumulates
// shell output in a scrollback buffer and carries the current dimensions.
type Surface struct {
	// SessionID is the owning session or pane ID, immutable.
	SessionID string

	mu       sync.Mutex
	cols     int
	rows     int
	visible  bool
	paused   bool
	released bool

	scrollback *ScrollbackBuffer
}

// NewSurface creates a surface for the given session with the given
// scrollback capacity in bytes.
func NewSurface(sessionID string, scrollbackBytes int) *Surface {
	return &Surface{
		SessionID:  sessionID,
		cols:       80,
		rows:       24,
		scrollback: NewScrollbackBuffer(scrollbackBytes),
	}
}

// Scrollback returns the surface's scrollback buffer.
func (s *Surface) Scrollback() *ScrollbackBuffer {
	return s.scrollback
}

// Size returns the current dimensions.
func (s *Surface) Size() (cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.cols, s.rows
}

// SetSize records new dimensions.
func (s *Surface) SetSize(cols, rows int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if cols > 0 {
		s.cols = cols
	}
	if rows > 0 {
		s.rows = rows
	}
}

// SetVisible marks whether the surface is attached to a visible window.
// A visible surface is paused, not released, when its session closes.
func (s *Surface) SetVisible(visible bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.visible = visible
}

// Visible reports whether the surface is attached to a visible window.
func (s *Surface) Visible() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.visible
}

// Pause stops accepting output without releasing the backing buffer. Used
// when the owning session closes while the surface is still on screen.
func (s *Surface) Pause() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.paused = true
}

// Paused reports whether the surface is paused.
func (s *Surface) Paused() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.paused
}

// Release frees the backing resources. Repeated calls are no-ops.
func (s *Surface) Release() {
	s.mu.Lock()
	if s.released {
		s.mu.Unlock()
		return
	}
	s.released = true
	s.mu.Unlock()

	s.scrollback.Close()
}

// Released reports whether Release has been called.
func (s *Surface) Released() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.released
}

// RelayOutput copies shell output into the scrollback until the reader
// ends. Runs for the lifetime of the shell; paused surfaces drop output.
func (s *Surface) RelayOutput(r io.Reader) {
	buf := make([]byte, 32*1024)
	for {
		n, err := r.Read(buf)
		if n > 0 && !s.Paused() {
			s.scrollback.Write(buf[:n])
		}
		if err != nil {
			log.Printf("[terminal] surface %s output ended: %v", s.SessionID, err)
			return
		}
	}
}
