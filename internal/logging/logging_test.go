package logging

import (
	"log/slog"
	"testing"
)

func TestLevelMapping(t *testing.T) {
	cases := map[string]slog.Level{
		"debug":     slog.LevelDebug,
		"info":      slog.LevelInfo,
		"warning":   slog.LevelWarn,
		"error":     slog.LevelError,
		"critical":  slog.LevelError,
		"alert":     slog.LevelError,
		"emergency": slog.LevelError,
	}
	for name, want := range cases {
		if got := Level(name); got != want {
			t.Errorf("Level(%q) = %v, want %v", name, got, want)
		}
	}
	if Level("notice") >= slog.LevelInfo {
		t.Errorf("notice should map below info, got %v", Level("notice"))
	}
	if Level("unknown") != slog.LevelInfo {
		t.Errorf("unknown level should default to info, got %v", Level("unknown"))
	}
}
