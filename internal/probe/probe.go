// Package probe performs a single request/reply exchange with a line service,
// which is handy for checking that an endpoint is reachable before chatting.
package probe

import (
	"context"
	"errors"
	"fmt"
	"io"
	"unicode/utf8"

	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/transport"
)

// Prober sends one message and prints one reply.
type Prober struct {
	dialer   transport.Dialer
	out      io.Writer
	log      *logger.Logger
	maxReply int
}

// New creates a Prober printing to out. Replies longer than maxReply bytes are truncated.
func New(dialer transport.Dialer, out io.Writer, log *logger.Logger, maxReply int) *Prober {
	if log == nil {
		log = logger.Nop()
	}
	return &Prober{dialer: dialer, out: out, log: log, maxReply: maxReply}
}

// Run connects to address, sends message as is, and prints the first reply chunk.
// ctx bounds the whole exchange.
func (p *Prober) Run(ctx context.Context, address, message string) ([]byte, error) {
	p.printf("Attempting to connect to %s...\n", address)

	conn, err := p.dialer.Dial(ctx, address)
	if err != nil {
		p.log.Error().Err(err).Str("address", address).Msg("dial failed")
		if errors.Is(err, transport.ErrConnectionRefused) {
			p.printf("Error: Connection refused.\n")
			p.printf("Check: Is the server running? Is the port forwarded?\n")
		} else {
			p.printf("An error occurred: %v\n", err)
		}
		return nil, err
	}
	defer conn.Close()

	p.printf("Connected!\n")

	if deadline, ok := ctx.Deadline(); ok {
		if err := conn.SetReadDeadline(deadline); err != nil {
			return nil, fmt.Errorf("failed to set read deadline: %w", err)
		}
	}

	p.printf("Sending: %s\n", message)
	if _, err := conn.Write([]byte(message)); err != nil {
		p.printf("An error occurred: %v\n", err)
		return nil, fmt.Errorf("failed to send message: %w", err)
	}

	reply := make([]byte, p.maxReply)
	n, err := conn.Read(reply)
	if n == 0 && err != nil {
		if errors.Is(err, io.EOF) {
			err = errors.New("connection closed before reply")
		}
		p.printf("An error occurred: %v\n", err)
		return nil, fmt.Errorf("failed to read reply: %w", err)
	}
	reply = reply[:n]

	if utf8.Valid(reply) {
		p.printf("Received: %s\n", reply)
	} else {
		p.printf("Received (raw): %q\n", reply)
	}
	p.log.Info().Int("bytes", n).Msg("reply received")

	return reply, nil
}

func (p *Prober) printf(format string, a ...any) {
	_, _ = fmt.Fprintf(p.out, format, a...)
}
