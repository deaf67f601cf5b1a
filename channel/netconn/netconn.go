// Package netconn adapts a net.Conn (TCP, Unix socket, serial-over-IP
// bridge) to the link.Channel interface.
package netconn

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"sync"
	"time"
)

// Defaults for the network backend.
const (
	DefaultDialTimeout  = 3 * time.Second
	DefaultWriteTimeout = 3 * time.Second
)

// Conn wraps a net.Conn with a per-read timeout.
type Conn struct {
	conn         net.Conn
	mu           sync.Mutex
	readTimeout  time.Duration
	writeTimeout time.Duration
}

// New wraps conn. Reads block until data arrives until SetReadTimeout is called.
func New(conn net.Conn) *Conn {
	if tcp, ok := conn.(*net.TCPConn); ok {
		// Frames are tiny and latency bound.
		_ = tcp.SetNoDelay(true)
	}

	return &Conn{conn: conn, readTimeout: -1, writeTimeout: DefaultWriteTimeout}
}

// Dial connects to address on the named network.
func Dial(ctx context.Context, network, address string) (*Conn, error) {
	dialer := &net.Dialer{KeepAlive: 30 * time.Second}

	dialCtx, cancel := context.WithTimeout(ctx, DefaultDialTimeout)
	defer cancel()

	conn, err := dialer.DialContext(dialCtx, network, address)
	if err != nil {
		return nil, fmt.Errorf("netconn: dial %s: %w", address, err)
	}

	return New(conn), nil
}

// Accept listens on address and returns the first connection accepted.
// The listener is closed before Accept returns.
func Accept(ctx context.Context, network, address string) (*Conn, error) {
	var lc net.ListenConfig

	listener, err := lc.Listen(ctx, network, address)
	if err != nil {
		return nil, fmt.Errorf("netconn: listen %s: %w", address, err)
	}
	defer listener.Close()

	stop := context.AfterFunc(ctx, func() { _ = listener.Close() })
	defer stop()

	conn, err := listener.Accept()
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}

		return nil, fmt.Errorf("netconn: accept on %s: %w", address, err)
	}

	return New(conn), nil
}

// NetConn returns the wrapped connection.
func (c *Conn) NetConn() net.Conn { return c.conn }

// String returns the remote address.
func (c *Conn) String() string { return "net:" + c.conn.RemoteAddr().String() }

// SetReadTimeout bounds every subsequent Read. A negative value blocks.
func (c *Conn) SetReadTimeout(t time.Duration) error {
	c.mu.Lock()
	c.readTimeout = t
	c.mu.Unlock()

	return nil
}

// SetWriteTimeout bounds every subsequent Write. Zero or negative disables it.
func (c *Conn) SetWriteTimeout(t time.Duration) {
	c.mu.Lock()
	c.writeTimeout = t
	c.mu.Unlock()
}

// Read reads into p, returning (0, nil) when the read timeout elapses.
func (c *Conn) Read(p []byte) (int, error) {
	c.mu.Lock()
	timeout := c.readTimeout
	c.mu.Unlock()

	deadline := time.Time{}
	if timeout >= 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetReadDeadline(deadline); err != nil {
		return 0, err
	}

	n, err := c.conn.Read(p)
	if err != nil && isTimeout(err) {
		return n, nil
	}

	return n, err
}

// Write writes p, failing if the peer does not drain it within the write timeout.
func (c *Conn) Write(p []byte) (int, error) {
	c.mu.Lock()
	timeout := c.writeTimeout
	c.mu.Unlock()

	deadline := time.Time{}
	if timeout > 0 {
		deadline = time.Now().Add(timeout)
	}
	if err := c.conn.SetWriteDeadline(deadline); err != nil {
		return 0, err
	}

	return c.conn.Write(p)
}

// Close closes the connection.
func (c *Conn) Close() error {
	return c.conn.Close()
}

func isTimeout(err error) bool {
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}

	var netErr net.Error

	return errors.As(err, &netErr) && netErr.Timeout()
}
