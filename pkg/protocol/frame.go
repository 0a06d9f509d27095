// Package protocol defines the line-oriented wire contract spoken with the chat service.
//
// A frame is one line of UTF-8 text terminated by '\n'. A '\r' directly before the
// terminator is tolerated and stripped. There is no length prefix and no acknowledgement.
package protocol

import (
	"bytes"
	"errors"
	"strings"
	"unicode/utf8"
)

// Terminator ends every frame on the wire.
const Terminator = '\n'

// ErrInvalidText is returned by Buffer.Feed for chunks that are not valid UTF-8.
var ErrInvalidText = errors.New("received non-UTF8 data")

// Normalize returns message encoded for the wire with exactly one trailing terminator.
// A message that already ends in '\n' is sent as is.
func Normalize(message string) []byte {
	if strings.HasSuffix(message, string(Terminator)) {
		return []byte(message)
	}
	data := make([]byte, 0, len(message)+1)
	data = append(data, message...)
	return append(data, Terminator)
}

// Buffer accumulates received bytes and splits them into frames.
// It never holds a terminator: complete frames are extracted as soon as they arrive.
// A Buffer is not safe for concurrent use.
type Buffer struct {
	pending []byte
}

// Feed appends chunk and returns every frame it completes, in arrival order.
// Frames that are empty or whitespace-only are dropped.
//
// A chunk that is not valid UTF-8 is rejected with ErrInvalidText and is not
// appended, so a frame straddling it loses those bytes.
func (b *Buffer) Feed(chunk []byte) ([]string, error) {
	if !utf8.Valid(chunk) {
		return nil, ErrInvalidText
	}
	// Bytes already pending hold no terminator, so only the new chunk is scanned.
	scanned := len(b.pending)
	b.pending = append(b.pending, chunk...)

	var frames []string
	start := 0
	for {
		from := max(start, scanned)
		idx := bytes.IndexByte(b.pending[from:], Terminator)
		if idx < 0 {
			break
		}
		end := from + idx
		line := b.pending[start:end]
		start = end + 1

		line = bytes.TrimSuffix(line, []byte{'\r'})
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		frames = append(frames, string(line))
	}

	if start > 0 {
		b.pending = append(b.pending[:0], b.pending[start:]...)
	}
	return frames, nil
}

// Pending returns the partial frame received so far.
func (b *Buffer) Pending() string {
	return string(b.pending)
}

// Len returns the number of buffered bytes.
func (b *Buffer) Len() int {
	return len(b.pending)
}

// Reset drops any partial frame.
func (b *Buffer) Reset() {
	b.pending = b.pending[:0]
}
