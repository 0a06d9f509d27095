package config

import (
	"fmt"
	"strconv"
	"strings"
)

// ParseArgs reads the optional positional [host] [port] arguments.
// Missing arguments fall back to DefaultHost and DefaultPort; extra ones are ignored.
// The host is taken as given; an unusable one is reported by the connect attempt.
// Only an invalid port is an error.
func ParseArgs(args []string) (Endpoint, error) {
	endpoint := Endpoint{Host: DefaultHost, Port: DefaultPort}

	if len(args) >= 1 {
		endpoint.Host = args[0]
	}
	if len(args) >= 2 {
		port, err := ParsePort(args[1])
		if err != nil {
			return Endpoint{}, err
		}
		endpoint.Port = port
	}

	return endpoint, nil
}

// ParsePort validates a TCP port given as text.
func ParsePort(s string) (int, error) {
	port, err := strconv.Atoi(strings.TrimSpace(s))
	if err != nil || port < 1 || port > 65535 {
		return 0, fmt.Errorf("%w: %s", ErrInvalidPort, s)
	}
	return port, nil
}
