package logging

import (
	"log/slog"
	"testing"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]slog.Level{
		"debug": slog.LevelDebug,
		"info":  slog.LevelInfo,
		"warn":  slog.LevelWarn,
		"error": slog.LevelError,
		"bogus": slog.LevelInfo,
		"":      slog.LevelInfo,
	}
	for in, want := range cases {
		if got := parseLevel(in); got != want {
			t.Errorf("parseLevel(%q) = %v, want %v", in, got, want)
		}
	}
}

func TestReconfigureLevel(t *testing.T) {
	m, logger := NewManager(Config{Level: "info", Format: "text"})
	defer m.Close() //nolint:errcheck

	if logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug should be disabled at info level")
	}

	m.Reconfigure(Config{Level: "debug", Format: "text"})
	if !logger.Enabled(t.Context(), slog.LevelDebug) {
		t.Error("debug should be enabled after reconfigure")
	}
}

func TestConfigSnapshot(t *testing.T) {
	m, _ := NewManager(Config{Level: "warn", Format: "json"})
	defer m.Close() //nolint:errcheck

	cfg := m.Config()
	if cfg.Level != "warn" || cfg.Format != "json" {
		t.Errorf("unexpected snapshot: %+v", cfg)
	}
}
