// Package sshclient provides the SSH connection handle owned by the
// session core.
//
// Each session or pane gets its own isolated Client, even when several
// target the same host, so that closing one never disconnects another.
// The core only sees the Client interface; the concrete implementation
// wraps golang.org/x/crypto/ssh with a PTY-backed shell.
package sshclient

import (
	"context"
	"fmt"
	"io"
	"net"
	"os"
	"sync"
	"time"

	"golang.org/x/crypto/ssh"

	"github.com/skiffterm/skiff/internal/logutil"
	"github.com/skiffterm/skiff/internal/serverstore"
)

// Transport selects how the remote shell is run.
type Transport string

const (
	// TransportDirect runs the login shell directly on the SSH session.
	TransportDirect Transport = "direct"
	// TransportTmux runs the shell inside a named tmux session on the
	// remote host, so it survives network drops and can be reattached.
	TransportTmux Transport = "tmux"
)

// dialTimeout bounds the TCP+handshake phase of Connect.
const dialTimeout = 10 * time.Second

// Client is one network connection to one server. The session core owns
// its lifecycle: Connect is called once after creation, Disconnect exactly
// once at the end of life.
type Client interface {
	Connect(ctx context.Context) error
	Execute(ctx context.Context, command string) (string, error)
	Resize(cols, rows int) error
	Disconnect() error
}

// HostClient is the production Client backed by golang.org/x/crypto/ssh.
type HostClient struct {
	server    *serverstore.Server
	transport Transport

	mu     sync.Mutex
	conn   *ssh.Client
	sess   *ssh.Session
	stdin  io.WriteCloser
	stdout io.Reader
	closed bool
}

// NewHostClient creates an unconnected client for the given server.
func NewHostClient(server *serverstore.Server, transport Transport) *HostClient {
	return &HostClient{server: server, transport: transport}
}

// Connect dials the server and completes the SSH handshake. It does not
// start a shell; see StartShell.
func (c *HostClient) Connect(ctx context.Context) error {
	keyData, err := os.ReadFile(c.server.KeyPath)
	if err != nil {
		return fmt.Errorf("connect: read private key %s: %w", logutil.SanitizeForLog(c.server.KeyPath), err)
	}

	signer, err := ssh.ParsePrivateKey(keyData)
	if err != nil {
		return fmt.Errorf("connect: parse private key: %w", err)
	}

	user := c.server.Username
	if user == "" {
		user = "root"
	}
	config := &ssh.ClientConfig{
		User: user,
		Auth: []ssh.AuthMethod{
			ssh.PublicKeys(signer),
		},
		HostKeyCallback: ssh.InsecureIgnoreHostKey(),
		Timeout:         dialTimeout,
	}

	addr := net.JoinHostPort(c.server.Host, fmt.Sprintf("%d", c.server.Port))

	var conn *ssh.Client
	dialDone := make(chan struct{})
	var dialErr error

	go func() {
		defer close(dialDone)
		conn, dialErr = ssh.Dial("tcp", addr, config)
	}()

	select {
	case <-ctx.Done():
		return fmt.Errorf("connect: context cancelled: %w", ctx.Err())
	case <-dialDone:
		if dialErr != nil {
			return fmt.Errorf("connect to %s: %w", logutil.SanitizeForLog(addr), dialErr)
		}
	}

	c.mu.Lock()
	c.conn = conn
	c.mu.Unlock()
	return nil
}

// StartShell opens a PTY-backed shell session. Under TransportTmux the
// shell attaches to (creating if needed) the named tmux session, so the
// remote shell survives this client's death.
func (c *HostClient) StartShell(shellID string, cols, rows int) error {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return fmt.Errorf("start shell: not connected")
	}

	sess, err := conn.NewSession()
	if err != nil {
		return fmt.Errorf("create ssh session: %w", err)
	}

	modes := ssh.TerminalModes{
		ssh.ECHO:          1,
		ssh.TTY_OP_ISPEED: 14400,
		ssh.TTY_OP_OSPEED: 14400,
	}
	if err := sess.RequestPty("xterm-256color", rows, cols, modes); err != nil {
		sess.Close()
		return fmt.Errorf("request pty: %w", err)
	}

	stdin, err := sess.StdinPipe()
	if err != nil {
		sess.Close()
		return fmt.Errorf("stdin pipe: %w", err)
	}
	stdout, err := sess.StdoutPipe()
	if err != nil {
		sess.Close()
		return fmt.Errorf("stdout pipe: %w", err)
	}

	switch c.transport {
	case TransportTmux:
		cmd := fmt.Sprintf("tmux new-session -A -s %s", shellID)
		if err := sess.Start(cmd); err != nil {
			sess.Close()
			return fmt.Errorf("start tmux shell: %w", err)
		}
	default:
		if err := sess.Shell(); err != nil {
			sess.Close()
			return fmt.Errorf("start shell: %w", err)
		}
	}

	c.mu.Lock()
	c.sess = sess
	c.stdin = stdin
	c.stdout = stdout
	c.mu.Unlock()
	return nil
}

// Execute runs a single command over a fresh SSH session and returns its
// combined output.
func (c *HostClient) Execute(ctx context.Context, command string) (string, error) {
	c.mu.Lock()
	conn := c.conn
	c.mu.Unlock()
	if conn == nil {
		return "", fmt.Errorf("execute: not connected")
	}

	sess, err := conn.NewSession()
	if err != nil {
		return "", fmt.Errorf("execute: create session: %w", err)
	}
	defer sess.Close()

	type result struct {
		out []byte
		err error
	}
	done := make(chan result, 1)
	go func() {
		out, err := sess.CombinedOutput(command)
		done <- result{out, err}
	}()

	select {
	case <-ctx.Done():
		return "", fmt.Errorf("execute: context cancelled: %w", ctx.Err())
	case res := <-done:
		if res.err != nil {
			return string(res.out), fmt.Errorf("execute %q: %w", logutil.SanitizeForLog(command), res.err)
		}
		return string(res.out), nil
	}
}

// Resize changes the PTY dimensions of the running shell.
func (c *HostClient) Resize(cols, rows int) error {
	c.mu.Lock()
	sess := c.sess
	c.mu.Unlock()
	if sess == nil {
		return fmt.Errorf("resize: no shell started")
	}
	return sess.WindowChange(rows, cols)
}

// Disconnect tears down the shell session and the underlying connection.
// Safe to call on a never-connected client; repeated calls are no-ops.
func (c *HostClient) Disconnect() error {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return nil
	}
	c.closed = true
	sess := c.sess
	conn := c.conn
	c.sess = nil
	c.conn = nil
	c.mu.Unlock()

	if sess != nil {
		sess.Close()
	}
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// Stdin returns the shell's input stream, or nil if no shell is running.
func (c *HostClient) Stdin() io.Writer {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdin
}

// Stdout returns the shell's output stream, or nil if no shell is running.
func (c *HostClient) Stdout() io.Reader {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stdout
}
