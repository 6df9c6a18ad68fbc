package logging

import (
	"io"
	"log/slog"
	"strings"

	"github.com/ethereum/go-ethereum/log"
)

// New returns a terminal logger writing to w at the named level.
func New(w io.Writer, level string, color bool) log.Logger {
	return log.NewLogger(log.NewTerminalHandlerWithLevel(w, ParseLevel(level), color))
}

// Discard returns a logger that drops every record.
func Discard() log.Logger {
	return log.NewLogger(log.DiscardHandler())
}

// ParseLevel maps a level name to its slog level. Unknown names yield info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "trace":
		return log.LevelTrace
	case "debug":
		return log.LevelDebug
	case "info":
		return log.LevelInfo
	case "warn", "warning":
		return log.LevelWarn
	case "error":
		return log.LevelError
	case "crit":
		return log.LevelCrit
	default:
		return log.LevelInfo
	}
}
