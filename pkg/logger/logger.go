package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

// New creates a slog logger configured with the provided level. LOG_FORMAT=json
// switches to the JSON handler for log shippers.
func New(level string) *slog.Logger {
	return NewWithWriter(os.Stdout, level, os.Getenv("LOG_FORMAT"))
}

// NewWithWriter builds a logger writing to w in "text" or "json" format.
func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: parseLevel(level),
	}
	var handler slog.Handler
	if strings.EqualFold(strings.TrimSpace(format), "json") {
		handler = slog.NewJSONHandler(w, opts)
	} else {
		handler = slog.NewTextHandler(w, opts)
	}
	return slog.New(handler)
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func parseLevel(raw string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(raw)) {
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
