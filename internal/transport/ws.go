package transport

import (
	"context"
	"errors"
	"io"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/ws"
)

// WSDialer dials ws:// endpoints and exposes the WebSocket as a byte stream.
type WSDialer struct {
	dialer ws.Dialer
}

// Dial implements Dialer. The handshake is bounded by ctx.
func (d WSDialer) Dial(ctx context.Context, address string) (Conn, error) {
	conn, br, _, err := d.dialer.Dial(ctx, address)
	if err != nil {
		return nil, classifyDialError(err)
	}
	var src io.Reader = conn
	if br != nil {
		// The server may have sent frames right behind the handshake response.
		src = br
	}
	return newWSConn(conn, src, ws.StateClientSide), nil
}

// IsWebSocketAddress reports whether address selects the WebSocket transport.
func IsWebSocketAddress(address string) bool {
	return strings.HasPrefix(strings.ToLower(address), "ws://")
}

// DialerFor picks the transport matching address.
func DialerFor(address string) Dialer {
	if IsWebSocketAddress(address) {
		return WSDialer{}
	}
	return TCPDialer{}
}

// WSConn adapts a WebSocket connection using gobwas/ws to Conn.
// Payloads of text, binary and continuation frames are concatenated into one
// stream, so message boundaries carry no meaning; only the line protocol does.
type WSConn struct {
	conn  net.Conn
	src   io.Reader
	state ws.State

	readMu  sync.Mutex
	pending []byte

	// Each frame is compiled up front and written with a single Write under
	// writeMu so pong and close replies never interleave with data frames.
	writeMu sync.Mutex
}

// NewWSClientConn wraps a connection whose client-side handshake already completed.
func NewWSClientConn(conn net.Conn) *WSConn {
	return newWSConn(conn, conn, ws.StateClientSide)
}

// NewWSServerConn wraps a connection whose server-side upgrade already completed.
// src must be the reader the upgrade consumed the request from.
func NewWSServerConn(conn net.Conn, src io.Reader) *WSConn {
	return newWSConn(conn, src, ws.StateServerSide)
}

func newWSConn(conn net.Conn, src io.Reader, state ws.State) *WSConn {
	return &WSConn{conn: conn, src: src, state: state}
}

// Read implements Conn. A close frame from the peer is answered and reported as io.EOF.
func (c *WSConn) Read(buf []byte) (int, error) {
	c.readMu.Lock()
	defer c.readMu.Unlock()

	for len(c.pending) == 0 {
		frame, err := ws.ReadFrame(c.src)
		if err != nil {
			if errors.Is(err, io.ErrUnexpectedEOF) {
				return 0, io.EOF
			}
			return 0, err
		}
		if frame.Header.Masked {
			ws.Cipher(frame.Payload, frame.Header.Mask, 0)
		}

		switch frame.Header.OpCode {
		case ws.OpPing:
			if err := c.writeControl(ws.NewPongFrame(frame.Payload)); err != nil && !errors.Is(err, ErrWriteBusy) {
				return 0, err
			}
		case ws.OpPong:
		case ws.OpClose:
			_ = c.writeControl(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
			return 0, io.EOF
		default:
			c.pending = frame.Payload
		}
	}

	n := copy(buf, c.pending)
	c.pending = c.pending[n:]
	return n, nil
}

// Write implements Conn. data is sent as one text frame.
func (c *WSConn) Write(data []byte) (int, error) {
	payload := make([]byte, len(data))
	copy(payload, data)
	if err := c.writeFrame(ws.NewTextFrame(payload)); err != nil {
		return 0, err
	}
	return len(data), nil
}

// SetReadDeadline implements Conn as a no-op: a deadline firing in the middle
// of a frame would leave the stream desynchronized. Close unblocks a pending Read.
func (c *WSConn) SetReadDeadline(time.Time) error {
	return nil
}

// Shutdown implements Conn by sending a normal-closure close frame.
// The frame is skipped when a Write is blocked, so Shutdown never waits on the peer.
func (c *WSConn) Shutdown() error {
	return c.writeControl(ws.NewCloseFrame(ws.NewCloseFrameBody(ws.StatusNormalClosure, "")))
}

// Close implements Conn.
func (c *WSConn) Close() error {
	return c.conn.Close()
}

// RemoteAddr implements Conn.
func (c *WSConn) RemoteAddr() string {
	return c.conn.RemoteAddr().String()
}

func (c *WSConn) writeFrame(frame ws.Frame) error {
	data, err := c.compile(frame)
	if err != nil {
		return err
	}

	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

// writeControl sends a control frame unless a data frame is being written.
// It never waits for a blocked Write, so the reader keeps draining the socket.
func (c *WSConn) writeControl(frame ws.Frame) error {
	data, err := c.compile(frame)
	if err != nil {
		return err
	}

	if !c.writeMu.TryLock() {
		return ErrWriteBusy
	}
	defer c.writeMu.Unlock()
	_, err = c.conn.Write(data)
	return err
}

func (c *WSConn) compile(frame ws.Frame) ([]byte, error) {
	if c.state.ClientSide() {
		frame = ws.MaskFrameInPlace(frame)
	}
	return ws.CompileFrame(frame)
}

var (
	_ Conn = (*WSConn)(nil)
	_ Conn = (*TCPConn)(nil)
)
