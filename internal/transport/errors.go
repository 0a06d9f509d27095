package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"os"
	"syscall"
)

var (
	// ErrConnectionRefused means nothing is listening at the endpoint.
	ErrConnectionRefused = errors.New("connection refused")
	// ErrConnectTimeout means the dial did not complete in time.
	ErrConnectTimeout = errors.New("connection timed out")
	// ErrWriteBusy means a control frame was skipped because a data frame was in flight.
	ErrWriteBusy = errors.New("websocket write in progress")
)

// classifyDialError maps a dial failure onto ErrConnectionRefused or
// ErrConnectTimeout where possible. The cause stays reachable through errors.Is.
func classifyDialError(err error) error {
	switch {
	case errors.Is(err, syscall.ECONNREFUSED):
		return fmt.Errorf("%w: %w", ErrConnectionRefused, err)
	case errors.Is(err, context.DeadlineExceeded), IsTimeout(err):
		return fmt.Errorf("%w: %w", ErrConnectTimeout, err)
	default:
		return fmt.Errorf("failed to connect to server: %w", err)
	}
}

// IsTimeout reports whether err is a deadline expiry rather than a failure.
func IsTimeout(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, os.ErrDeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

// IsBrokenPipe reports whether a write failed because the connection is gone.
func IsBrokenPipe(err error) bool {
	return errors.Is(err, syscall.EPIPE) ||
		errors.Is(err, syscall.ECONNRESET) ||
		errors.Is(err, net.ErrClosed) ||
		errors.Is(err, io.ErrClosedPipe)
}
