// Package repl runs the foreground side of the chat client: it reads lines typed
// by the user, handles the local directives, and forwards everything else to the
// chat service.
package repl

import "strings"

// Kind classifies a line of user input.
type Kind int

const (
	KindEmpty Kind = iota
	KindMessage
	KindQuit
	KindReconnect
	KindHelp
)

// String returns the string representation of Kind
func (k Kind) String() string {
	switch k {
	case KindEmpty:
		return "empty"
	case KindMessage:
		return "message"
	case KindQuit:
		return "quit"
	case KindReconnect:
		return "reconnect"
	case KindHelp:
		return "help"
	default:
		return "unknown"
	}
}

// Local directives. Matching ignores case and surrounding whitespace.
const (
	DirectiveQuit      = "/quit"
	DirectiveReconnect = "/reconnect"
	DirectiveHelp      = "/help"
)

// HelpText lists the directives, including the ones interpreted by the service.
const HelpText = `Commands:
  /name <newname> - Change your nickname
  /list           - List connected users
  /quit           - Exit the chat
  /reconnect      - Reconnect to server
  /help           - Show this help`

// Command is a classified line of input.
type Command struct {
	Kind Kind
	// Payload is the text to send for KindMessage, exactly as typed.
	Payload string
}

// Parse classifies one line of input. The line must not contain its terminator.
func Parse(line string) Command {
	if line == "" {
		return Command{Kind: KindEmpty}
	}

	switch strings.ToLower(strings.TrimSpace(line)) {
	case DirectiveQuit:
		return Command{Kind: KindQuit}
	case DirectiveReconnect:
		return Command{Kind: KindReconnect}
	case DirectiveHelp:
		return Command{Kind: KindHelp}
	}

	return Command{Kind: KindMessage, Payload: line}
}
