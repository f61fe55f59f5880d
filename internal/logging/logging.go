// Package logging configures the process-wide zerolog logger and hands out
// per-component child loggers.
package logging

import (
	"io"
	"os"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

var (
	mu      sync.Mutex
	base    zerolog.Logger
	initted bool
)

// Options controls how the base logger is constructed.
type Options struct {
	// Pretty enables a human-readable console writer (development mode).
	// When false, logs are emitted as newline-delimited JSON.
	Pretty bool
	Level  zerolog.Level
	Output io.Writer
}

// Init configures the process-wide base logger. Safe to call once at
// startup; later calls are ignored so tests and the daemon entrypoint can
// both call Init without racing each other.
func Init(opts Options) {
	mu.Lock()
	defer mu.Unlock()
	if initted {
		return
	}

	out := opts.Output
	if out == nil {
		out = os.Stderr
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	zerolog.SetGlobalLevel(opts.Level)
	base = zerolog.New(out).With().Timestamp().Logger()
	initted = true
}

// WithComponent returns a logger tagged with the given component name,
// initializing the base logger with sane defaults if Init was never called.
func WithComponent(name string) zerolog.Logger {
	mu.Lock()
	if !initted {
		base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, TimeFormat: time.RFC3339}).
			With().Timestamp().Logger()
		initted = true
	}
	l := base
	mu.Unlock()
	return l.With().Str("component", name).Logger()
}
