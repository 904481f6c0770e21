package logger

import (
	"io"
	"log/slog"
	"os"
	"strings"
)

const ansiReset = "\033[0m"

var levelColors = map[slog.Level]string{
	slog.LevelDebug: "\033[36m",
	slog.LevelInfo:  "\033[32m",
	slog.LevelWarn:  "\033[33m",
	slog.LevelError: "\033[31m",
}

// New builds the process logger on stdout. Format "auto" means text for
// local/dev/development environments and JSON everywhere else. Text output
// gets colored levels when stdout is a terminal.
func New(appName, level, format, environment string) *slog.Logger {
	return NewWithWriter(os.Stdout, appName, level, format, environment)
}

// NewWithWriter is New with an explicit destination.
func NewWithWriter(w io.Writer, appName, level, format, environment string) *slog.Logger {
	lvl := parseLevel(level)
	opts := &slog.HandlerOptions{
		Level:     lvl,
		AddSource: lvl.Level() <= slog.LevelDebug,
	}

	var h slog.Handler
	if resolveFormat(format, environment) == "text" {
		if isTerminal(w) {
			opts.ReplaceAttr = colorizeLevel
		}
		h = slog.NewTextHandler(w, opts)
	} else {
		h = slog.NewJSONHandler(w, opts)
	}

	return slog.New(h).With(slog.String("app", appName))
}

// Component tags a child logger with the part of the process emitting it.
func Component(log *slog.Logger, name string) *slog.Logger {
	return log.With(slog.String("component", name))
}

func colorizeLevel(groups []string, a slog.Attr) slog.Attr {
	if len(groups) > 0 || a.Key != slog.LevelKey {
		return a
	}
	lvl, ok := a.Value.Any().(slog.Level)
	if !ok {
		return a
	}
	if color, ok := levelColors[lvl]; ok {
		a.Value = slog.StringValue(color + lvl.String() + ansiReset)
	}
	return a
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	if !ok {
		return false
	}
	info, err := f.Stat()
	return err == nil && info.Mode()&os.ModeCharDevice != 0
}

func resolveFormat(format, environment string) string {
	switch f := strings.ToLower(strings.TrimSpace(format)); f {
	case "text", "json":
		return f
	}

	switch strings.ToLower(strings.TrimSpace(environment)) {
	case "local", "dev", "development":
		return "text"
	}
	return "json"
}

func parseLevel(level string) slog.Leveler {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	}
	return slog.LevelInfo
}
