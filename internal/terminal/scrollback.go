package terminal

import (
	"io"
	"sync"
)

// defaultScrollbackSize caps scrollback at 1 MB unless configured.
const defaultScrollbackSize = 1024 * 1024

// ScrollbackBuffer accumulates terminal output for replay when a viewer
// attaches. It keeps at most maxLen bytes, discarding the oldest output
// first, and wakes readers through a non-blocking notify channel.
type ScrollbackBuffer struct {
	mu       sync.Mutex
	data     []byte
	maxLen   int
	closed   bool
	notify   chan struct{}
	sinks    map[int]io.Writer
	nextSink int
}

// NewScrollbackBuffer creates a buffer keeping up to maxLen bytes.
// maxLen <= 0 selects the default size.
func NewScrollbackBuffer(maxLen int) *ScrollbackBuffer {
	if maxLen <= 0 {
		maxLen = defaultScrollbackSize
	}
	return &ScrollbackBuffer{
		maxLen: maxLen,
		notify: make(chan struct{}, 1),
	}
}

// Write appends output, discarding the oldest bytes once the buffer is
// full, forwards the chunk to every attached sink, and wakes readers.
// Implements io.Writer; it never fails. A sink whose Write errors is
// detached.
func (b *ScrollbackBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	b.data = append(b.data, p...)
	if excess := len(b.data) - b.maxLen; excess > 0 {
		// Shift in place so capacity stays bounded.
		b.data = append(b.data[:0], b.data[excess:]...)
	}
	for id, w := range b.sinks {
		if _, err := w.Write(p); err != nil {
			delete(b.sinks, id)
		}
	}
	b.mu.Unlock()

	b.wake()
	return len(p), nil
}

// Attach registers w as a live sink for subsequent output, replaying the
// buffered scrollback to it first. Replay and registration happen under
// one lock acquisition, so the sink sees every byte exactly once even
// while the shell keeps writing. The returned func detaches the sink.
// Attaching to a closed buffer replays the history only.
func (b *ScrollbackBuffer) Attach(w io.Writer) func() {
	b.mu.Lock()
	defer b.mu.Unlock()
	if len(b.data) > 0 {
		if _, err := w.Write(b.data); err != nil {
			return func() {}
		}
	}
	if b.closed {
		return func() {}
	}
	if b.sinks == nil {
		b.sinks = make(map[int]io.Writer)
	}
	id := b.nextSink
	b.nextSink++
	b.sinks[id] = w
	return func() {
		b.mu.Lock()
		delete(b.sinks, id)
		b.mu.Unlock()
	}
}

// Close marks the buffer closed, drops all sinks, and wakes readers one
// last time.
func (b *ScrollbackBuffer) Close() {
	b.mu.Lock()
	b.closed = true
	b.sinks = nil
	b.mu.Unlock()
	b.wake()
}

func (b *ScrollbackBuffer) wake() {
	select {
	case b.notify <- struct{}{}:
	default:
	}
}

// Snapshot returns a copy of the buffered output.
func (b *ScrollbackBuffer) Snapshot() []byte {
	b.mu.Lock()
	defer b.mu.Unlock()
	result := make([]byte, len(b.data))
	copy(result, b.data)
	return result
}

// Len returns the number of buffered bytes.
func (b *ScrollbackBuffer) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.data)
}

// IsClosed reports whether Close has been called.
func (b *ScrollbackBuffer) IsClosed() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.closed
}

// Notify returns the wake channel. Readers select on it, then call
// Snapshot or Len for the data.
func (b *ScrollbackBuffer) Notify() <-chan struct{} {
	return b.notify
}
