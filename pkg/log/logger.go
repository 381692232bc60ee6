package log

import (
	"io"
	"log/slog"
	"os"
)

var levels = map[string]slog.Level{
	"debug": slog.LevelDebug,
	"info":  slog.LevelInfo,
	"warn":  slog.LevelWarn,
	"error": slog.LevelError,
}

// New constructs a JSON slog.Logger preconfigured at info level
func New(service, env, version string) *slog.Logger {
	return NewWithLevel(service, env, version, slog.LevelInfo)
}

// NewWithLevel constructs a JSON slog.Logger at the provided level
func NewWithLevel(service, env, version string, lvl slog.Level) *slog.Logger {
	return NewWithWriter(os.Stdout, service, env, version, lvl)
}

// NewWithWriter constructs a JSON slog.Logger that writes to w
func NewWithWriter(
	w io.Writer, service, env, version string, lvl slog.Level,
) *slog.Logger {
	handler := slog.NewJSONHandler(w, &slog.HandlerOptions{
		Level: lvl,
	})

	return slog.New(handler).With(
		slog.String("service", service),
		slog.String("env", env),
		slog.String("version", version))
}

// ParseLevel maps a configured level name to a slog.Level, falling back to
// info for unknown names
func ParseLevel(name string) slog.Level {
	if lvl, ok := levels[name]; ok {
		return lvl
	}
	return slog.LevelInfo
}

// Setup installs a JSON logger as the process default and returns it
func Setup(service, env, version, level string) *slog.Logger {
	return SetupWithWriter(os.Stdout, service, env, version, level)
}

// SetupWithWriter installs a JSON logger writing to w as the process
// default and returns it
func SetupWithWriter(
	w io.Writer, service, env, version, level string,
) *slog.Logger {
	lvl := ParseLevel(level)
	logger := NewWithWriter(w, service, env, version, lvl)
	slog.SetDefault(logger)
	slog.SetLogLoggerLevel(lvl)
	return logger
}
