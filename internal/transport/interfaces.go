// Package transport provides the byte-stream connections the chat client talks over.
//
// Two implementations exist: plain TCP and a WebSocket stream whose binary or text
// messages are concatenated into one byte stream. Both carry the same line protocol.
package transport

//go:generate mockgen -source=interfaces.go -destination=../mock/transport_mock.go -package=mock

import (
	"context"
	"time"
)

// Conn is an established connection to the chat service.
// Read and Write may be called concurrently from different goroutines.
type Conn interface {
	// Read reads raw bytes. It returns io.EOF once the peer has closed its side.
	Read(buf []byte) (int, error)

	// Write sends data. A nil error means every byte was accepted.
	Write(data []byte) (int, error)

	// SetReadDeadline bounds the next Read. A Read that hits the deadline
	// returns an error for which IsTimeout reports true.
	SetReadDeadline(t time.Time) error

	// Shutdown performs an orderly shutdown of both directions without
	// releasing the connection.
	Shutdown() error

	// Close releases the connection and unblocks any pending Read.
	Close() error

	// RemoteAddr returns the remote address for logging.
	RemoteAddr() string
}

// Dialer opens connections. The dial is bounded by ctx; the returned Conn
// carries no deadline.
type Dialer interface {
	Dial(ctx context.Context, address string) (Conn, error)
}
