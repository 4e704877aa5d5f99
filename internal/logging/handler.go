package logging

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/lmittmann/tint"
)

// Log output formats.
const (
	FormatText = "text"
	FormatJSON = "json"
)

// New builds a logger writing to w. format is FormatText (colored console
// output) or FormatJSON.
func New(w io.Writer, level slog.Level, format string, noColor bool) (*slog.Logger, error) {
	var handler slog.Handler

	switch format {
	case FormatJSON:
		handler = slog.NewJSONHandler(w, &slog.HandlerOptions{
			Level: level,
		})
	case FormatText, "":
		handler = tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.TimeOnly,
			NoColor:    noColor,
		})
	default:
		return nil, fmt.Errorf("unsupported log format %q, must be one of: text, json", format)
	}

	return slog.New(handler), nil
}

// ParseLevel maps a level name to a slog.Level. Unknown names map to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToLower(level) {
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
