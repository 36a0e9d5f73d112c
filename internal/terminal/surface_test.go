package terminal

import (
	"bytes"
	"io"
	"testing"
	"time"
)

func TestSurfaceDefaultsAndResize(t *testing.T) {
	s := NewSurface("sess-1", 1024)

	cols, rows := s.Size()
	if cols != 80 || rows != 24 {
		t.Errorf("default size = %dx%d, want 80x24", cols, rows)
	}

	s.SetSize(120, 40)
	cols, rows = s.Size()
	if cols != 120 || rows != 40 {
		t.Errorf("size = %dx%d, want 120x40", cols, rows)
	}

	// Non-positive dimensions leave the current value alone.
	s.SetSize(0, -1)
	cols, rows = s.Size()
	if cols != 120 || rows != 40 {
		t.Errorf("size after bad resize = %dx%d, want 120x40", cols, rows)
	}
}

func TestSurfaceReleaseClosesScrollback(t *testing.T) {
	s := NewSurface("sess-1", 1024)

	s.Release()
	if !s.Released() {
		t.Error("expected released surface")
	}
	if !s.Scrollback().IsClosed() {
		t.Error("release should close the scrollback buffer")
	}

	// Releasing twice is a no-op.
	s.Release()
}

func TestSurfaceVisibilityAndPause(t *testing.T) {
	s := NewSurface("sess-1", 1024)

	if s.Visible() {
		t.Error("surfaces start invisible")
	}
	s.SetVisible(true)
	if !s.Visible() {
		t.Error("expected visible surface")
	}

	s.Pause()
	if !s.Paused() {
		t.Error("expected paused surface")
	}
	if s.Released() {
		t.Error("pausing must not release")
	}
}

func TestSurfaceRelayOutput(t *testing.T) {
	s := NewSurface("sess-1", 1024)

	pr, pw := io.Pipe()
	done := make(chan struct{})
	go func() {
		s.RelayOutput(pr)
		close(done)
	}()

	pw.Write([]byte("shell output"))
	waitForLen(t, s, 12)

	if got := s.Scrollback().Snapshot(); !bytes.Equal(got, []byte("shell output")) {
		t.Errorf("scrollback = %q, want %q", got, "shell output")
	}

	// A paused surface drops further output.
	s.Pause()
	pw.Write([]byte("ignored"))
	time.Sleep(10 * time.Millisecond)
	if got := s.Scrollback().Len(); got != 12 {
		t.Errorf("paused surface accumulated output, len = %d", got)
	}

	pw.Close()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("relay did not stop when the reader ended")
	}
}

func waitForLen(t *testing.T, s *Surface, n int) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if s.Scrollback().Len() >= n {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %d scrollback bytes", n)
}
