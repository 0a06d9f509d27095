// Package config assembles the settings of the chat programs.
//
// The chat behaviour itself has no configuration file: the endpoint comes from
// positional arguments and every timeout is compiled in. Only the ambient log
// settings can be overridden through the environment.
package config

import (
	"net"
	"strconv"
	"time"

	"github.com/omochice/toy-line-chat/internal/transport"
)

// Compiled-in defaults.
const (
	DefaultHost           = "127.0.0.1"
	DefaultPort           = 56789
	DefaultConnectTimeout = 10 * time.Second
	DefaultPollInterval   = time.Second
	DefaultReadChunk      = 4096
	DefaultReconnectPause = time.Second
	DefaultShutdownWait   = 2 * time.Second

	DefaultEchoAddress   = ":20480"
	DefaultProbeMessage  = "Hello xv6!"
	DefaultProbeReplyMax = 1024

	DefaultLogLevel      = "info"
	DefaultLogFile       = "chat-client.log"
	DefaultLogMaxSizeMB  = 5
	DefaultLogMaxBackups = 3
)

// Endpoint identifies the chat service. It is fixed for the life of the process.
type Endpoint struct {
	Host string
	Port int
}

// Address returns the dial address. A ws:// host is used verbatim.
func (e Endpoint) Address() string {
	if transport.IsWebSocketAddress(e.Host) {
		return e.Host
	}
	return net.JoinHostPort(e.Host, strconv.Itoa(e.Port))
}

// String implements fmt.Stringer.
func (e Endpoint) String() string {
	return e.Address()
}

// Timeouts holds the compiled-in timing of the client.
type Timeouts struct {
	// Connect bounds a single dial.
	Connect time.Duration
	// Poll is how long the frame reader waits for data before re-checking
	// whether it should keep running.
	Poll time.Duration
	// ReconnectPause is slept between dropping and re-opening the connection.
	ReconnectPause time.Duration
	// ShutdownWait bounds how long shutdown waits for the frame reader.
	ShutdownWait time.Duration
	// ReadChunk is the maximum number of bytes read at once.
	ReadChunk int
}

// Log holds the ambient logging settings.
type Log struct {
	Level      string `env:"LEVEL"`
	File       string `env:"FILE"`
	MaxSizeMB  int    `env:"MAX_SIZE_MB"`
	MaxBackups int    `env:"MAX_BACKUPS"`
}

// ClientConfig is everything the interactive client needs.
type ClientConfig struct {
	Endpoint Endpoint
	Timeouts Timeouts
	Log      Log `envPrefix:"CHAT_LOG_"`

	// Warnings lists ambient settings that were rejected and replaced by defaults.
	Warnings []error `env:"-"`
}

// DefaultTimeouts returns the compiled-in timing.
func DefaultTimeouts() Timeouts {
	return Timeouts{
		Connect:        DefaultConnectTimeout,
		Poll:           DefaultPollInterval,
		ReconnectPause: DefaultReconnectPause,
		ShutdownWait:   DefaultShutdownWait,
		ReadChunk:      DefaultReadChunk,
	}
}

func defaultLog() Log {
	return Log{
		Level:      DefaultLogLevel,
		File:       DefaultLogFile,
		MaxSizeMB:  DefaultLogMaxSizeMB,
		MaxBackups: DefaultLogMaxBackups,
	}
}

// GetClientConfig builds the client configuration from the positional
// arguments (without the program name) and the environment.
func GetClientConfig(args []string) (*ClientConfig, error) {
	endpoint, err := ParseArgs(args)
	if err != nil {
		return nil, err
	}

	return newConfigBuilder(endpoint).
		withDefaults().
		withEnv().
		build()
}
