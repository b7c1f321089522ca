package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// New builds the process logger. format "json" writes structured lines,
// anything else uses the colored text handler meant for terminals.
func New(level, format string) *slog.Logger {
	return NewWithWriter(os.Stderr, level, format)
}

func NewWithWriter(w io.Writer, level, format string) *slog.Logger {
	lvl := ParseLevel(level)

	var handler slog.Handler
	switch strings.ToLower(format) {
	case "json":
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{Level: lvl})
	default:
		handler = tint.NewHandler(w, &tint.Options{
			Level:      lvl,
			TimeFormat: time.Kitchen,
		})
	}

	return slog.New(handler)
}

func ParseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
