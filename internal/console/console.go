// Package console renders the chat on a terminal shared by two goroutines:
// the REPL drawing its prompt and the frame reader printing incoming lines.
package console

import (
	"fmt"
	"io"
	"sync"
	"time"
)

// Prompt is drawn before every line of user input.
const Prompt = "> "

// Console serializes all terminal output so a frame never splits a prompt or another frame.
type Console struct {
	mu    sync.Mutex
	out   io.Writer
	clock func() time.Time
}

// New returns a Console writing to out.
func New(out io.Writer) *Console {
	return &Console{out: out, clock: time.Now}
}

// Prompt draws the input prompt.
func (c *Console) Prompt() {
	c.write(Prompt)
}

// Println prints a plain line.
func (c *Console) Println(a ...any) {
	c.write(fmt.Sprintln(a...))
}

// Printf prints formatted text as is.
func (c *Console) Printf(format string, a ...any) {
	c.write(fmt.Sprintf(format, a...))
}

// Notice prints a timestamped status line on its own line.
func (c *Console) Notice(format string, a ...any) {
	c.write(fmt.Sprintf("\n[%s] %s\n", c.timestamp(), fmt.Sprintf(format, a...)))
}

// Frame prints a received line over the current prompt and redraws the prompt.
func (c *Console) Frame(line string) {
	c.write("\r" + line + "\n" + Prompt)
}

// Raw reports a chunk that could not be decoded as text.
func (c *Console) Raw(data []byte) {
	c.write(fmt.Sprintf("\r[%s] Received non-UTF8 data: %q\n%s", c.timestamp(), data, Prompt))
}

func (c *Console) timestamp() string {
	return c.clock().Format("15:04:05")
}

func (c *Console) write(s string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, _ = io.WriteString(c.out, s)
}
