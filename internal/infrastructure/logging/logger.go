package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/nerrad567/openvibe-core/internal/infrastructure/config"
)

const serviceName = "openvibe"

// Logger is the agent's structured logger. Every entry carries service and
// version. The level can be changed at runtime with SetLevel, and the
// change applies to every logger derived through With.
type Logger struct {
	*slog.Logger
	level *slog.LevelVar
}

// New builds a logger from the logging section of config.yaml.
func New(cfg config.LoggingConfig, version string) *Logger {
	return newWithWriter(cfg, version, outputFor(cfg.Output))
}

func outputFor(name string) io.Writer {
	if strings.EqualFold(name, "stderr") {
		return os.Stderr
	}
	return os.Stdout
}

func newWithWriter(cfg config.LoggingConfig, version string, w io.Writer) *Logger {
	level := new(slog.LevelVar)
	level.Set(ParseLevel(cfg.Level))

	opts := &slog.HandlerOptions{Level: level}
	var h slog.Handler
	if strings.EqualFold(cfg.Format, "text") {
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	base := slog.New(h).With("service", serviceName, "version", version)
	return &Logger{Logger: base, level: level}
}

// ParseLevel maps debug, info, warn(ing) and error to slog levels,
// case-insensitively. Anything else is info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}

// With returns a child logger sharing the parent's level.
//
//	attachLog := logger.With("component", "netattach")
func (l *Logger) With(args ...any) *Logger {
	return &Logger{Logger: l.Logger.With(args...), level: l.level}
}

// SetLevel changes the minimum level for this logger and all its children.
func (l *Logger) SetLevel(level slog.Level) {
	if l.level != nil {
		l.level.Set(level)
	}
}

// Level reports the current minimum level.
func (l *Logger) Level() slog.Level {
	if l.level == nil {
		return slog.LevelInfo
	}
	return l.level.Level()
}

// Default is the bootstrap logger used until config.yaml has been read:
// JSON on stdout at info.
func Default() *Logger {
	return New(config.LoggingConfig{Level: "info", Format: "json", Output: "stdout"}, "dev")
}

// Discard drops everything.
func Discard() *Logger {
	return &Logger{Logger: slog.New(slog.NewTextHandler(io.Discard, nil)), level: new(slog.LevelVar)}
}
