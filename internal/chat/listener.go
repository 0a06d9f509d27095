package chat

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/omochice/toy-line-chat/internal/logger"
	"github.com/omochice/toy-line-chat/internal/transport"
	"github.com/omochice/toy-line-chat/pkg/protocol"
)

const reasonServerClosed = "Server closed connection"

// listen reads from conn until it is replaced, closed, or the client stops.
// Every complete line is shown once, in arrival order.
func (c *Client) listen(conn transport.Conn, generation uint64, log *logger.Logger, done chan<- struct{}) {
	defer close(done)
	defer c.display.Notice("Listener stopped")

	log.Debug().Str("remote", conn.RemoteAddr()).Msg("frame reader started")

	var frames protocol.Buffer
	chunk := make([]byte, c.timeouts.ReadChunk)

	for c.running.Load() && c.current(generation) {
		if err := conn.SetReadDeadline(time.Now().Add(c.timeouts.Poll)); err != nil {
			c.dropConnection(conn, fmt.Sprintf("Socket error: %v", err))
			break
		}

		n, err := conn.Read(chunk)
		if n > 0 {
			c.deliver(&frames, chunk[:n], log)
		}

		if err == nil {
			if n == 0 {
				c.dropConnection(conn, reasonServerClosed)
				break
			}
			continue
		}

		if transport.IsTimeout(err) {
			continue
		}

		if errors.Is(err, io.EOF) {
			c.dropConnection(conn, reasonServerClosed)
		} else {
			c.dropConnection(conn, fmt.Sprintf("Socket error: %v", err))
		}
		break
	}

	if frames.Len() > 0 {
		log.Debug().Int("bytes", frames.Len()).Msg("discarding unterminated data")
	}
	log.Debug().Msg("frame reader stopped")
}

func (c *Client) deliver(frames *protocol.Buffer, data []byte, log *logger.Logger) {
	lines, err := frames.Feed(data)
	if err != nil {
		log.Warn().Err(err).Int("bytes", len(data)).Msg("dropping chunk")
		c.display.Raw(data)
		return
	}

	for _, line := range lines {
		c.display.Frame(line)
	}
}
