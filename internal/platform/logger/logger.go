package logger

import (
	"log/slog"
	"os"
)

// New returns the process logger. The debug flag is the API logging
// toggle: when on, operations log raw requests and intermediate payloads.
func New(debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}
	return slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: level}))
}
