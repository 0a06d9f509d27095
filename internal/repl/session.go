package repl

import (
	"bufio"
	"context"
	"errors"
	"io"
	"strings"

	"github.com/omochice/toy-line-chat/internal/logger"
)

// Chat is the connection side the session drives.
type Chat interface {
	Connect(ctx context.Context) error
	Reconnect(ctx context.Context) error
	Send(message string) error
	Stop()
}

// Screen is where the session prints.
type Screen interface {
	Prompt()
	Println(a ...any)
}

const rule = "=================================================="

// Session is the read-dispatch loop of the interactive client.
type Session struct {
	chat     Chat
	screen   Screen
	in       io.Reader
	endpoint string
	log      *logger.Logger
}

// NewSession creates a Session reading user input from in.
func NewSession(chat Chat, screen Screen, in io.Reader, endpoint string, log *logger.Logger) *Session {
	if log == nil {
		log = logger.Nop()
	}
	return &Session{
		chat:     chat,
		screen:   screen,
		in:       in,
		endpoint: endpoint,
		log:      log,
	}
}

// Run prints the banner, connects, and processes input until /quit, end of
// input, or ctx is cancelled. The chat is stopped before Run returns.
func (s *Session) Run(ctx context.Context) error {
	s.banner()

	defer s.chat.Stop()

	if err := s.chat.Connect(ctx); err != nil {
		s.screen.Println("Failed to connect. Use /reconnect to try again.")
	}

	stop := make(chan struct{})
	defer close(stop)

	lines, readErr := s.readLines(stop)

	for {
		s.screen.Prompt()

		var (
			line string
			ok   bool
		)
		select {
		case <-ctx.Done():
			s.screen.Println("\nInterrupted. Goodbye!")
			s.log.Info().Msg("interrupted")
			return nil
		case line, ok = <-lines:
		}

		if !ok {
			s.screen.Println("\nGoodbye!")
			if err := <-readErr; err != nil {
				s.log.Error().Err(err).Msg("reading input")
				return err
			}
			return nil
		}

		if !s.dispatch(ctx, Parse(line)) {
			return nil
		}
	}
}

// dispatch handles one command and reports whether the loop should continue.
func (s *Session) dispatch(ctx context.Context, cmd Command) bool {
	switch cmd.Kind {
	case KindEmpty:
	case KindQuit:
		s.screen.Println("Goodbye!")
		s.log.Info().Msg("quit requested")
		return false
	case KindReconnect:
		s.screen.Println("Attempting to reconnect...")
		if err := s.chat.Reconnect(ctx); err != nil {
			s.log.Warn().Err(err).Msg("reconnect failed")
		}
	case KindHelp:
		s.screen.Println(HelpText)
	case KindMessage:
		if err := s.chat.Send(cmd.Payload); err != nil {
			s.screen.Println("Message not sent. Try /reconnect")
		}
	}
	return true
}

func (s *Session) banner() {
	s.screen.Println(rule)
	s.screen.Println("   Multiclient Chat Client")
	s.screen.Println(rule)
	s.screen.Println("Connecting to " + s.endpoint + "...")
	s.screen.Println("Commands: /name <newname>, /list, /quit, /reconnect")
	s.screen.Println(strings.Repeat("-", len(rule)))
}

// readLines delivers input lines without their terminator. The channel is
// closed at end of input; the error channel then yields the read error, if any.
func (s *Session) readLines(stop <-chan struct{}) (<-chan string, <-chan error) {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		defer close(errc)
		defer close(lines)

		r := bufio.NewReader(s.in)
		for {
			line, err := r.ReadString('\n')
			if line != "" {
				select {
				case lines <- strings.TrimSuffix(strings.TrimSuffix(line, "\n"), "\r"):
				case <-stop:
					return
				}
			}
			if err != nil {
				if !errors.Is(err, io.EOF) {
					errc <- err
				}
				return
			}
		}
	}()

	return lines, errc
}
