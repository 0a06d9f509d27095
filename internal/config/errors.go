package config

import "errors"

var (
	// ErrInvalidPort is returned for a port argument that is not an integer in 1..65535.
	ErrInvalidPort = errors.New("invalid port")
	// ErrInvalidLogLevel is returned for an unknown CHAT_LOG_LEVEL.
	ErrInvalidLogLevel = errors.New("invalid log level")
	// ErrEmptyLogFile is returned when the log file path resolves to nothing.
	ErrEmptyLogFile = errors.New("empty log file path")
)
