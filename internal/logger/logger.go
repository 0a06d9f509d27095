// Package logger wraps zerolog.Logger with the constructors used by the chat
// programs.
//
// The interactive client owns the terminal, so its log goes to a rotating file
// instead of stdout. The companion programs log to a writer of their choice.
package logger

import (
	"io"
	"runtime"
	"strings"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

// Logger is a thin wrapper around zerolog.Logger.
type Logger struct {
	zerolog.Logger
}

// FileOptions configures the rotating log file of the interactive client.
type FileOptions struct {
	Path       string
	Level      string
	MaxSizeMB  int
	MaxBackups int
}

// NewLogger returns a JSON logger for role writing to w.
func NewLogger(role string, w io.Writer, level string) *Logger {
	setupCaller()

	l := zerolog.New(w).Level(ParseLevel(level)).With().
		Str("role", role).
		Timestamp().
		Caller().
		Logger()

	return &Logger{l}
}

// NewClientLogger returns a logger for role writing to a lumberjack-rotated file.
func NewClientLogger(role string, opts FileOptions) *Logger {
	return NewLogger(role, &lumberjack.Logger{
		Filename:   opts.Path,
		MaxSize:    opts.MaxSizeMB,
		MaxBackups: opts.MaxBackups,
	}, opts.Level)
}

// Nop returns a *Logger that discards all output.
func Nop() *Logger {
	return &Logger{zerolog.Nop()}
}

// GetChildLogger returns a copy that can be enriched without touching the receiver.
func (l *Logger) GetChildLogger() *Logger {
	return &Logger{l.With().Logger()}
}

// WithStr returns a child logger carrying key=value on every entry.
func (l *Logger) WithStr(key, value string) *Logger {
	child := l.GetChildLogger()
	child.UpdateContext(func(c zerolog.Context) zerolog.Context {
		return c.Str(key, value)
	})
	return child
}

// ParseLevel converts a level name to a zerolog level, defaulting to info.
func ParseLevel(level string) zerolog.Level {
	level = strings.ToLower(strings.TrimSpace(level))
	lvl, err := zerolog.ParseLevel(level)
	if err != nil || level == "" {
		return zerolog.InfoLevel
	}
	return lvl
}

func setupCaller() {
	zerolog.CallerFieldName = "func"
	zerolog.CallerMarshalFunc = func(pc uintptr, file string, line int) string {
		return runtime.FuncForPC(pc).Name()
	}
}
