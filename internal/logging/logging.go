// Package logging configures the process-wide slog handler: JSON for
// production, or a colorized handler backed by github.com/lmittmann/tint
// for local development.
package logging

import (
	"io"
	"log/slog"
	"os"

	"github.com/lmittmann/tint"
)

// Config selects the logging handler.
type Config struct {
	// Format is "json" or "pretty". Empty means "json".
	Format string

	// Level is the minimum level logged ("debug", "info", "warn", "error").
	// Empty means "info".
	Level string
}

// Init builds the configured slog handler and installs it as the
// process default.
func Init(cfg Config, w io.Writer) {
	if w == nil {
		w = os.Stderr
	}

	level := parseLevel(cfg.Level)

	var handler slog.Handler
	switch cfg.Format {
	case "pretty":
		handler = tint.NewHandler(w, &tint.Options{Level: level})
	default:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level})
	}

	slog.SetDefault(slog.New(handler))
}

func parseLevel(s string) slog.Level {
	switch s {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
