// Package logging provides structured logging setup for openhouse.
package logging

import (
	"log/slog"
	"os"
)

// Setup installs the process-wide slog logger. Dev mode logs readable text
// at debug level; otherwise JSON at info level for log collectors.
func Setup(devMode bool) {
	opts := &slog.HandlerOptions{Level: slog.LevelInfo}

	var handler slog.Handler
	if devMode {
		opts.Level = slog.LevelDebug
		handler = slog.NewTextHandler(os.Stdout, opts)
	} else {
		handler = slog.NewJSONHandler(os.Stdout, opts)
	}

	slog.SetDefault(slog.New(handler))
}
