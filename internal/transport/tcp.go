package transport

import (
	"context"
	"errors"
	"net"
	"time"
)

// TCPDialer dials plain TCP connections.
type TCPDialer struct{}

// Dial implements Dialer.
func (TCPDialer) Dial(ctx context.Context, address string) (Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, classifyDialError(err)
	}
	return NewTCPConn(conn), nil
}

// TCPConn adapts net.Conn to Conn.
type TCPConn struct {
	conn net.Conn
}

// NewTCPConn wraps a net.Conn.
func NewTCPConn(conn net.Conn) *TCPConn {
	return &TCPConn{conn: conn}
}

// Read implements Conn.
func (c *TCPConn) Read(buf []byte) (int, error) {
	return c.conn.Read(buf)
}

// Write implements Conn.
func (c *TCPConn) Write(data []byte) (int, error) {
	return c.conn.Write(data)
}

// SetReadDeadline implements Conn.
func (c *TCPConn) SetReadDeadline(t time.Time) error {
	return c.conn.SetReadDeadline(t)
}

// Shutdown implements Conn.
// Connections that cannot half-close (net.Pipe in tests) are left to Close.
func (c *TCPConn) Shutdown() error {
	tc, ok := c.conn.(*net.TCPConn)
	if !ok {
		return nil
	}
	return errors.Join(tc.CloseWrite(), tc.CloseRead())
}

// Close implements Conn.
func (c *TCPConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements Conn.
func (c *TCPConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}
