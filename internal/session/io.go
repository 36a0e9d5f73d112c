package session

import (
	"io"
)

// shellWriter exposes the running shell's input stream.
type shellWriter interface {
	Stdin() io.Writer
}

// ShellStdin returns the bound client's shell input stream, when the
// session has a bound client that exposes one.
func (m *Manager) ShellStdin(id string) (io.Writer, bool) {
	m.mu.Lock()
	b := m.bound[id]
	m.mu.Unlock()
	if b == nil {
		return nil, false
	}
	w, ok := b.client.(shellWriter)
	if !ok {
		return nil, false
	}
	stdin := w.Stdin()
	if stdin == nil {
		return nil, false
	}
	return stdin, true
}

// ResizeTerminal records new dimensions on the session's surface and
// propagates them to the bound client's PTY, if any.
func (m *Manager) ResizeTerminal(id string, cols, rows int) error {
	if surf, ok := m.Terminal(id); ok {
		surf.SetSize(cols, rows)
	}

	m.mu.Lock()
	b := m.bound[id]
	m.mu.Unlock()
	if b == nil {
		return nil
	}
	return b.client.Resize(cols, rows)
}
