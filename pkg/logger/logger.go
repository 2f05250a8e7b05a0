package logger

import (
	"io"
	"log/slog"
	"os"
)

// Logger takes a message followed by alternating key/value pairs.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
	Fatal(msg string, args ...any)
	With(args ...any) Logger
}

type Config struct {
	ServiceName string
	Environment string
	Level       string
}

type slogLogger struct {
	l *slog.Logger
}

// New builds a JSON logger on stdout.
func New(cfg Config) Logger {
	return NewWithWriter(cfg, os.Stdout)
}

func NewWithWriter(cfg Config, w io.Writer) Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: level,
	})

	l := slog.New(handler)
	if cfg.ServiceName != "" {
		l = l.With(slog.String("service", cfg.ServiceName))
	}
	if cfg.Environment != "" {
		l = l.With(slog.String("env", cfg.Environment))
	}
	return &slogLogger{l: l}
}

// Nop discards everything. Used by tests.
func Nop() Logger {
	return &slogLogger{l: slog.New(slog.NewJSONHandler(io.Discard, nil))}
}

func ParseLevel(s string) slog.Level {
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

func (s *slogLogger) Debug(msg string, args ...any) { s.l.Debug(msg, args...) }
func (s *slogLogger) Info(msg string, args ...any)  { s.l.Info(msg, args...) }
func (s *slogLogger) Warn(msg string, args ...any)  { s.l.Warn(msg, args...) }
func (s *slogLogger) Error(msg string, args ...any) { s.l.Error(msg, args...) }

func (s *slogLogger) Fatal(msg string, args ...any) {
	s.l.Error(msg, args...)
	os.Exit(1)
}

func (s *slogLogger) With(args ...any) Logger {
	return &slogLogger{l: s.l.With(args...)}
}
