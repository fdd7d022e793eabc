// Package logging builds the structured logger shared by the flow engine
// and the relay.
package logging

import (
	"log/slog"
	"os"
)

// Logger is the structured logger type used throughout flowgen.
type Logger = *slog.Logger

// New returns a text-handler logger writing to stdout at info level.
func New() *slog.Logger {
	return NewWithLevel(false)
}

// NewWithLevel returns a text-handler logger at debug level when verbose is
// true, info level otherwise.
func NewWithLevel(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{
		Level: level,
	}))
}
