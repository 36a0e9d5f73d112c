package sshclient

import (
	"context"
	"testing"

	"github.com/skiffterm/skiff/internal/serverstore"
)

func TestHostClientRequiresConnect(t *testing.T) {
	c := NewHostClient(&serverstore.Server{Host: "h.example.com", Port: 22}, TransportDirect)

	if err := c.StartShell("shell-1", 80, 24); err == nil {
		t.Error("StartShell before Connect should fail")
	}
	if _, err := c.Execute(context.Background(), "true"); err == nil {
		t.Error("Execute before Connect should fail")
	}
	if err := c.Resize(80, 24); err == nil {
		t.Error("Resize before StartShell should fail")
	}
	if c.Stdin() != nil || c.Stdout() != nil {
		t.Error("streams should be nil before a shell starts")
	}
}

func TestHostClientDisconnectIdempotent(t *testing.T) {
	c := NewHostClient(&serverstore.Server{Host: "h.example.com", Port: 22}, TransportDirect)

	if err := c.Disconnect(); err != nil {
		t.Errorf("disconnect of never-connected client: %v", err)
	}
	if err := c.Disconnect(); err != nil {
		t.Errorf("second disconnect: %v", err)
	}
}

func TestConnectMissingKey(t *testing.T) {
	c := NewHostClient(&serverstore.Server{
		Host:    "h.example.com",
		Port:    22,
		KeyPath: "/nonexistent/key",
	}, TransportDirect)

	if err := c.Connect(context.Background()); err == nil {
		t.Error("expected an error for a missing key file")
	}
}
