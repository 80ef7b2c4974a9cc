// Package logging configures the one process-wide slog.Logger Galois
// passes into every component as a field, never as a package-level
// global — matching the teacher's "no globals, no magic" style.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/natefinch/lumberjack.v2"
)

// Options controls New's output: a production process wants rotated
// JSON on disk plus stdout, while a test wants a single deterministic
// text stream.
type Options struct {
	Level  string // "debug", "info" (default), "warn", "error"
	LogDir string // if empty, logging is stdout-only (used by tests)
	JSON   bool   // JSON handler vs text handler
}

// New builds a *slog.Logger per opts. When LogDir is set, output is
// duplicated to stdout and a size/age-rotated file under it — matching
// chycee-cryptoGo's logger.go, which never lets an unrotated log file
// grow without bound on a long-running process.
func New(opts Options) *slog.Logger {
	level := parseLevel(opts.Level)
	handlerOpts := &slog.HandlerOptions{Level: level}

	var writer io.Writer = os.Stdout
	if opts.LogDir != "" {
		if err := os.MkdirAll(opts.LogDir, 0o755); err != nil {
			// Fall back to stdout-only rather than fail startup over a
			// log directory that couldn't be created.
			return newHandlerLogger(os.Stdout, handlerOpts, opts.JSON)
		}
		fileLogger := &lumberjack.Logger{
			Filename:   filepath.Join(opts.LogDir, "galois.log"),
			MaxSize:    100,
			MaxBackups: 5,
			MaxAge:     28,
			Compress:   true,
		}
		writer = io.MultiWriter(os.Stdout, fileLogger)
	}

	return newHandlerLogger(writer, handlerOpts, opts.JSON)
}

func newHandlerLogger(w io.Writer, opts *slog.HandlerOptions, asJSON bool) *slog.Logger {
	if asJSON {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
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
