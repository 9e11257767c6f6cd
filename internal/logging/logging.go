// Package logging configures the process-wide log/slog logger once at CLI startup.
package logging

import (
	"io"
	"log/slog"
)

// Setup installs a text handler writing to out. verbose lowers the level to Debug.
func Setup(out io.Writer, verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}
	handler := slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
