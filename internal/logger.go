package internal

import (
	"io"
	"log/slog"
)

// ServiceName is attached to every record so log shippers can route
// dashboard output without parsing messages.
const ServiceName = "tsfwatch"

// ParseLevel maps LOG_LEVEL values onto slog levels. Unknown values fall
// back to info.
func ParseLevel(level string) slog.Level {
	switch level {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func NewLogger(w io.Writer, env string, level string) *slog.Logger {
	opts := &slog.HandlerOptions{
		Level: ParseLevel(level),
	}

	var handler slog.Handler
	if env == "development" {
		handler = slog.NewTextHandler(w, opts)
	} else {
		handler = slog.NewJSONHandler(w, opts)
	}

	return slog.New(handler).With("service", ServiceName)
}
