package chat

import "errors"

var (
	// ErrNotConnected is returned by Send when there is no established connection.
	ErrNotConnected = errors.New("not connected to server")
	// ErrAlreadyConnected is returned by Connect while a connection is up or being opened.
	ErrAlreadyConnected = errors.New("already connected")
	// ErrStopped is returned by Connect after Stop.
	ErrStopped = errors.New("client stopped")
	// ErrBrokenPipe wraps write failures caused by a vanished connection.
	ErrBrokenPipe = errors.New("broken pipe")
)
