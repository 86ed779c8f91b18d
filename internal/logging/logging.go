package logging

import (
	"io"
	"log/slog"
	"os"
)

// Logger receives diagnostics. Until Setup runs only warnings reach stderr.
var Logger = newLogger(os.Stderr, slog.LevelWarn, false)

func newLogger(w io.Writer, level slog.Level, jsonOutput bool) *slog.Logger {
	opts := &slog.HandlerOptions{Level: level}
	if jsonOutput {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}

// Setup replaces Logger. Info and debug records are written only in verbose
// mode; w defaults to stderr.
func Setup(verbose bool, jsonOutput bool, w io.Writer) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	if w == nil {
		w = os.Stderr
	}
	Logger = newLogger(w, level, jsonOutput)
}

func Debug(msg string, args ...any) {
	Logger.Debug(msg, args...)
}

func Info(msg string, args ...any) {
	Logger.Info(msg, args...)
}

func Warn(msg string, args ...any) {
	Logger.Warn(msg, args...)
}
