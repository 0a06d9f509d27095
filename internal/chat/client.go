// Package chat implements the client side of the line chat: one connection to the
// service, a background frame reader that prints every received line, and a sender
// that frames outgoing messages.
//
// A single mutex guards the connection handle and the lifecycle state and is only
// held for bookkeeping, never across network I/O. Writes are serialized by their
// own mutex. The frame reader checks that its connection is still current through
// an atomic generation counter, so a blocked write can never stall it.
package chat

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/omochice/toy-line-chat/internal/config"
	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/transport"
	"github.com/omochice/toy-line-chat/pkg/protocol"
)

// Display receives everything the client wants to show the user.
// Implementations must be safe for concurrent use.
type Display interface {
	// Notice shows a timestamped status line.
	Notice(format string, args ...any)
	// Frame shows one received line.
	Frame(line string)
	// Raw shows a chunk that was not valid text.
	Raw(data []byte)
}

// Client represents a line chat client
type Client struct {
	address  string
	dialer   transport.Dialer
	display  Display
	log      *logger.Logger
	timeouts config.Timeouts

	mu           sync.Mutex
	conn         transport.Conn
	state        State
	epoch        string
	listenerDone chan struct{}

	// generation changes whenever the live connection is set or torn down.
	generation atomic.Uint64
	writeMu    sync.Mutex

	running atomic.Bool
}

// New creates a new Client for address. The client is running but not connected.
func New(address string, dialer transport.Dialer, display Display, log *logger.Logger, timeouts config.Timeouts) *Client {
	defaults := config.DefaultTimeouts()
	if timeouts.Poll <= 0 {
		timeouts.Poll = defaults.Poll
	}
	if timeouts.ReadChunk <= 0 {
		timeouts.ReadChunk = defaults.ReadChunk
	}
	if log == nil {
		log = logger.Nop()
	}

	c := &Client{
		address:  address,
		dialer:   dialer,
		display:  display,
		log:      log,
		timeouts: timeouts,
		state:    StateDisconnected,
	}
	c.running.Store(true)

	return c
}

// Address returns the endpoint the client dials.
func (c *Client) Address() string {
	return c.address
}

// State returns the current lifecycle state.
func (c *Client) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// IsConnected returns whether the client is connected
func (c *Client) IsConnected() bool {
	return c.State() == StateConnected
}

// Running reports whether Stop has not been called yet.
func (c *Client) Running() bool {
	return c.running.Load()
}

// Connect establishes a connection and starts the frame reader.
// Failures are reported on the display and returned.
func (c *Client) Connect(ctx context.Context) error {
	if !c.running.Load() {
		return ErrStopped
	}

	c.mu.Lock()
	if c.state != StateDisconnected {
		c.mu.Unlock()
		return ErrAlreadyConnected
	}
	c.state = StateConnecting
	previous := c.listenerDone
	c.mu.Unlock()

	// At most one frame reader runs at a time.
	if previous != nil {
		select {
		case <-previous:
		case <-ctx.Done():
			c.setState(StateDisconnected)
			return ctx.Err()
		}
	}

	dialCtx := ctx
	if c.timeouts.Connect > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeouts.Connect)
		defer cancel()
	}

	conn, err := c.dialer.Dial(dialCtx, c.address)
	if err != nil {
		c.setState(StateDisconnected)
		c.reportConnectError(err)
		return err
	}

	done := make(chan struct{})
	epoch := uuid.NewString()

	c.mu.Lock()
	if !c.running.Load() {
		c.state = StateDisconnected
		c.mu.Unlock()
		_ = conn.Close()
		return ErrStopped
	}
	c.conn = conn
	c.state = StateConnected
	c.epoch = epoch
	c.listenerDone = done
	generation := c.generation.Add(1)
	c.mu.Unlock()

	c.log.Info().Str("address", c.address).Str("epoch", epoch).Msg("connected")
	c.display.Notice("Connected to chat server at %s", c.address)

	go c.listen(conn, generation, c.log.WithStr("epoch", epoch), done)

	return nil
}

func (c *Client) reportConnectError(err error) {
	c.log.Error().Err(err).Str("address", c.address).Msg("connect failed")

	switch {
	case errors.Is(err, transport.ErrConnectionRefused):
		c.display.Notice("Connection refused. Is the chat server running?")
	case errors.Is(err, transport.ErrConnectTimeout):
		c.display.Notice("Connection timed out.")
	default:
		c.display.Notice("Connection error: %v", err)
	}
}

// Disconnect tears the connection down. It is idempotent and never fails.
func (c *Client) Disconnect() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.disconnectLocked()
}

func (c *Client) disconnectLocked() {
	if c.conn != nil {
		c.generation.Add(1)
		if err := c.conn.Shutdown(); err != nil {
			c.log.Debug().Err(err).Msg("shutdown")
		}
		if err := c.conn.Close(); err != nil {
			c.log.Debug().Err(err).Msg("close")
		}
		c.log.Info().Str("epoch", c.epoch).Msg("disconnected")
	}
	c.conn = nil
	c.state = StateDisconnected
}

// dropConnection tears down conn after an I/O failure, unless it has already
// been replaced or closed. The notice is printed only by the caller that
// actually performs the teardown.
func (c *Client) dropConnection(conn transport.Conn, reason string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.dropLocked(conn, reason)
}

func (c *Client) dropLocked(conn transport.Conn, reason string) bool {
	if c.conn != conn || c.state != StateConnected {
		return false
	}

	c.log.Warn().Str("epoch", c.epoch).Str("reason", reason).Msg("connection lost")
	c.display.Notice("Disconnected: %s", reason)
	c.disconnectLocked()

	return true
}

// current reports without locking whether generation still names the live connection.
func (c *Client) current(generation uint64) bool {
	return c.generation.Load() == generation
}

func (c *Client) setState(state State) {
	c.mu.Lock()
	c.state = state
	c.mu.Unlock()
}

// Send frames message and writes it in full. Concurrent sends are written one
// after another. Disconnect or Stop unblocks a send stuck on a full socket.
func (c *Client) Send(message string) error {
	data := protocol.Normalize(message)

	c.mu.Lock()
	conn := c.conn
	connected := conn != nil && c.state == StateConnected
	generation := c.generation.Load()
	c.mu.Unlock()

	if !connected {
		c.display.Notice("Not connected to server")
		return ErrNotConnected
	}

	c.writeMu.Lock()
	err := writeFull(conn, data)
	c.writeMu.Unlock()

	if err != nil {
		if !c.current(generation) {
			// Torn down while writing; whoever did it has already reported.
			return fmt.Errorf("%w: %w", ErrNotConnected, err)
		}
		if transport.IsBrokenPipe(err) {
			c.dropConnection(conn, "Broken pipe")
			return fmt.Errorf("%w: %w", ErrBrokenPipe, err)
		}
		c.log.Error().Err(err).Msg("send failed")
		c.display.Notice("Send error: %v", err)
		return fmt.Errorf("failed to send message: %w", err)
	}

	c.log.Debug().Int("bytes", len(data)).Msg("sent")

	return nil
}

func writeFull(conn transport.Conn, data []byte) error {
	for len(data) > 0 {
		n, err := conn.Write(data)
		if err != nil {
			return err
		}
		data = data[n:]
	}
	return nil
}

// Reconnect drops the current connection, pauses, and connects again.
func (c *Client) Reconnect(ctx context.Context) error {
	c.Disconnect()

	if c.timeouts.ReconnectPause > 0 {
		timer := time.NewTimer(c.timeouts.ReconnectPause)
		defer timer.Stop()

		select {
		case <-timer.C:
		case <-ctx.Done():
			return ctx.Err()
		}
	}

	return c.Connect(ctx)
}

// Stop clears the run flag, disconnects, and waits a bounded time for the
// frame reader to exit.
func (c *Client) Stop() {
	c.running.Store(false)

	c.mu.Lock()
	c.disconnectLocked()
	done := c.listenerDone
	c.mu.Unlock()

	if done == nil {
		return
	}

	wait := c.timeouts.ShutdownWait
	if wait <= 0 {
		<-done
		return
	}

	timer := time.NewTimer(wait)
	defer timer.Stop()

	select {
	case <-done:
	case <-timer.C:
		c.log.Warn().Dur("wait", wait).Msg("frame reader did not stop in time")
	}
}
