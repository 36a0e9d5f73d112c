package terminal

import (
	"bytes"
	"errors"
	"testing"
	"time"
)

func TestScrollbackWriteAndSnapshot(t *testing.T) {
	buf := NewScrollbackBuffer(1024)

	buf.Write([]byte("hello "))
	buf.Write([]byte("world"))

	if got := buf.Snapshot(); !bytes.Equal(got, []byte("hello world")) {
		t.Errorf("snapshot = %q, want %q", got, "hello world")
	}
	if got := buf.Len(); got != 11 {
		t.Errorf("len = %d, want 11", got)
	}
}

func TestScrollbackTrimsFromFront(t *testing.T) {
	buf := NewScrollbackBuffer(8)

	buf.Write([]byte("abcdefgh"))
	buf.Write([]byte("ij"))

	if got := buf.Snapshot(); !bytes.Equal(got, []byte("cdefghij")) {
		t.Errorf("snapshot = %q, want %q", got, "cdefghij")
	}
	if got := buf.Len(); got != 8 {
		t.Errorf("len = %d, want 8", got)
	}
}

func TestScrollbackSnapshotIsACopy(t *testing.T) {
	buf := NewScrollbackBuffer(1024)
	buf.Write([]byte("abc"))

	snap := buf.Snapshot()
	snap[0] = 'X'
	if got := buf.Snapshot(); !bytes.Equal(got, []byte("abc")) {
		t.Errorf("mutating a snapshot changed the buffer: %q", got)
	}
}

func TestScrollbackNotify(t *testing.T) {
	buf := NewScrollbackBuffer(1024)

	buf.Write([]byte("x"))
	select {
	case <-buf.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a notify signal after Write")
	}

	// The channel never blocks the writer even with no reader.
	for i := 0; i < 10; i++ {
		buf.Write([]byte("y"))
	}

	buf.Close()
	if !buf.IsClosed() {
		t.Error("expected closed buffer")
	}
	select {
	case <-buf.Notify():
	case <-time.After(time.Second):
		t.Fatal("expected a notify signal after Close")
	}
}

func TestScrollbackDefaultSize(t *testing.T) {
	buf := NewScrollbackBuffer(0)
	if buf.maxLen != defaultScrollbackSize {
		t.Errorf("maxLen = %d, want %d", buf.maxLen, defaultScrollbackSize)
	}
}

func TestScrollbackAttachReplaysThenStreams(t *testing.T) {
	buf := NewScrollbackBuffer(8)
	buf.Write([]byte("history!"))

	var sink bytes.Buffer
	detach := buf.Attach(&sink)

	// Writes past capacity trim the buffer but still reach the sink in
	// full.
	buf.Write([]byte("morebyte"))
	buf.Write([]byte("s"))

	if got := sink.String(); got != "history!morebytes" {
		t.Errorf("sink saw %q, want %q", got, "history!morebytes")
	}
	if got := buf.Snapshot(); !bytes.Equal(got, []byte("orebytes")) {
		t.Errorf("snapshot = %q, want %q", got, "orebytes")
	}

	detach()
	buf.Write([]byte("after"))
	if got := sink.String(); got != "history!morebytes" {
		t.Errorf("detached sink saw %q", got)
	}
}

func TestScrollbackAttachAfterCloseReplaysOnly(t *testing.T) {
	buf := NewScrollbackBuffer(64)
	buf.Write([]byte("tail"))
	buf.Close()

	var sink bytes.Buffer
	detach := buf.Attach(&sink)
	detach()

	if got := sink.String(); got != "tail" {
		t.Errorf("sink saw %q, want %q", got, "tail")
	}
}

// errWriter fails every write.
type errWriter struct{}

func (errWriter) Write(p []byte) (int, error) {
	return 0, errors.New("sink gone")
}

func TestScrollbackDropsFailingSink(t *testing.T) {
	buf := NewScrollbackBuffer(64)
	buf.Attach(errWriter{})
	var good bytes.Buffer
	buf.Attach(&good)

	buf.Write([]byte("one"))
	buf.Write([]byte("two"))

	if got := good.String(); got != "onetwo" {
		t.Errorf("healthy sink saw %q, want %q", got, "onetwo")
	}
}
