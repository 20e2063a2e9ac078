// Package logging maps the eight syslog-style levels .pygmalion.conf
// accepts onto slog's four, and builds the daemon's default logger.
package logging

import (
	"log/slog"
	"os"
)

// Level converts one of the eight config-file level names into an
// slog.Level. debug and notice map below info; critical, alert and
// emergency all map to error, since slog has nothing above it. Unknown
// names fall back to info.
func Level(name string) slog.Level {
	switch name {
	case "debug":
		return slog.LevelDebug
	case "notice":
		return slog.LevelInfo - 1
	case "info":
		return slog.LevelInfo
	case "warning":
		return slog.LevelWarn
	case "error", "critical", "alert", "emergency":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// New builds a text-handler logger writing to stderr at the level
// named by logLevel, and installs it as slog's default.
func New(logLevel string) *slog.Logger {
	handler := slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: Level(logLevel)})
	logger := slog.New(handler)
	slog.SetDefault(logger)
	return logger
}
