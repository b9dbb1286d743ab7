package app

import (
	"io"
	"log/slog"

	"github.com/charmbracelet/log"
)

// Log formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// NewLogger returns a leveled logger writing to w. The text format uses the
// charm handler for terminals, json emits one object per line.
func NewLogger(w io.Writer, format string, debug bool) *slog.Logger {
	level := slog.LevelInfo
	if debug {
		level = slog.LevelDebug
	}

	if format == LogFormatJSON {
		return slog.New(slog.NewJSONHandler(w, &slog.HandlerOptions{Level: level}))
	}

	handler := log.NewWithOptions(w, log.Options{
		ReportTimestamp: true,
		Level:           log.InfoLevel,
	})
	if debug {
		handler.SetLevel(log.DebugLevel)
	}
	return slog.New(handler)
}
