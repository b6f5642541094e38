// Package logging provides the application's slog-based logger with runtime
// reconfiguration and optional rotating file output.
package logging

import (
	"context"
	"io"
	"log/slog"
	"os"
	"sync"
	"sync/atomic"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Config describes the desired logging configuration.
type Config struct {
	Level    string
	Format   string
	FilePath string
}

// File rotation policy when FilePath is set.
const (
	fileMaxSizeMB  = 50
	fileMaxBackups = 3
	fileMaxAgeDays = 30
)

// swappableHandler is a thread-safe slog.Handler that delegates to an inner
// handler which can be atomically swapped at runtime.
type swappableHandler struct {
	inner atomic.Pointer[slog.Handler]
}

func newSwappableHandler(h slog.Handler) *swappableHandler {
	s := &swappableHandler{}
	s.inner.Store(&h)
	return s
}

func (s *swappableHandler) swap(h slog.Handler) {
	s.inner.Store(&h)
}

func (s *swappableHandler) Enabled(ctx context.Context, level slog.Level) bool {
	return (*s.inner.Load()).Enabled(ctx, level)
}

func (s *swappableHandler) Handle(ctx context.Context, r slog.Record) error {
	return (*s.inner.Load()).Handle(ctx, r)
}

func (s *swappableHandler) WithAttrs(attrs []slog.Attr) slog.Handler {
	return newSwappableHandler((*s.inner.Load()).WithAttrs(attrs))
}

func (s *swappableHandler) WithGroup(name string) slog.Handler {
	return newSwappableHandler((*s.inner.Load()).WithGroup(name))
}

// Manager owns the logger lifecycle and supports runtime reconfiguration.
type Manager struct {
	levelVar *slog.LevelVar
	handler  *swappableHandler
	config   Config
	mu       sync.Mutex
	closer   io.Closer // lumberjack writer, if any
}

// NewManager creates a Manager and returns it along with a ready-to-use logger.
func NewManager(cfg Config) (*Manager, *slog.Logger) {
	lvl := &slog.LevelVar{}
	lvl.Set(parseLevel(cfg.Level))

	writer, closer := buildWriter(cfg)
	handler := newSwappableHandler(buildHandler(writer, lvl, cfg.Format))

	m := &Manager{
		levelVar: lvl,
		handler:  handler,
		config:   cfg,
		closer:   closer,
	}

	return m, slog.New(handler)
}

// Reconfigure applies a new configuration at runtime. Level-only changes are
// instant via LevelVar; format or output changes rebuild the handler.
func (m *Manager) Reconfigure(cfg Config) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.levelVar.Set(parseLevel(cfg.Level))

	if cfg.Format != m.config.Format || cfg.FilePath != m.config.FilePath {
		if m.closer != nil {
			m.closer.Close() //nolint:errcheck
			m.closer = nil
		}

		writer, closer := buildWriter(cfg)
		m.handler.swap(buildHandler(writer, m.levelVar, cfg.Format))
		m.closer = closer
	}

	m.config = cfg
}

// Config returns the current configuration snapshot.
func (m *Manager) Config() Config {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.config
}

// Close releases resources (e.g. the log file writer).
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closer != nil {
		err := m.closer.Close()
		m.closer = nil
		return err
	}
	return nil
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

// buildWriter creates the io.Writer for log output. If a file path is
// configured, it returns a MultiWriter (stdout + lumberjack) and the
// lumberjack logger as the closer.
func buildWriter(cfg Config) (io.Writer, io.Closer) {
	if cfg.FilePath == "" {
		return os.Stdout, nil
	}

	lj := &lumberjack.Logger{
		Filename:   cfg.FilePath,
		MaxSize:    fileMaxSizeMB,
		MaxBackups: fileMaxBackups,
		MaxAge:     fileMaxAgeDays,
	}
	return io.MultiWriter(os.Stdout, lj), lj
}

func buildHandler(w io.Writer, leveler slog.Leveler, format string) slog.Handler {
	opts := &slog.HandlerOptions{Level: leveler}
	if format == "text" {
		return slog.NewTextHandler(w, opts)
	}
	return slog.NewJSONHandler(w, opts)
}
