// Package logging builds the slog logger used by every report command.
package logging

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"

	"golang.org/x/term"
	"gopkg.in/natefinch/lumberjack.v2"

	"finnastats/internal/config"
)

// LogFileName is the rotating log file written when a log directory is set.
const LogFileName = "finnastats.log"

// New creates the process logger. Console output is human readable on a
// terminal or in development and JSON otherwise; a rotating file is added
// when log.dir is set. The level can be changed at runtime through the
// returned LevelVar and the closer flushes and closes the file.
func New(cfg *config.Config) (*slog.Logger, *slog.LevelVar, io.Closer) {
	return newLogger(cfg.Log, os.Stderr, humanReadable(cfg, term.IsTerminal(int(os.Stderr.Fd()))))
}

func humanReadable(cfg *config.Config, terminal bool) bool {
	return terminal || cfg.IsDevelopment()
}

func newLogger(cfg config.Log, console io.Writer, interactive bool) (*slog.Logger, *slog.LevelVar, io.Closer) {
	level := new(slog.LevelVar)
	level.Set(Level(cfg.Level))
	opts := &slog.HandlerOptions{Level: level}

	var closer io.Closer = nopCloser{}
	out := console
	if cfg.Directory != "" {
		rotator := &lumberjack.Logger{
			Filename:   filepath.Join(cfg.Directory, LogFileName),
			MaxSize:    cfg.MaxSizeMB,
			MaxBackups: cfg.MaxBackups,
			MaxAge:     cfg.MaxAgeDays,
			Compress:   true,
		}
		closer = rotator
		out = io.MultiWriter(console, rotator)
	}

	var handler slog.Handler
	if interactive && cfg.Directory == "" {
		handler = slog.NewTextHandler(out, opts)
	} else {
		handler = slog.NewJSONHandler(out, opts)
	}

	return slog.New(handler), level, closer
}

// Level maps a configured level onto slog; unknown values fall back to info.
func Level(level config.LogLevel) slog.Level {
	switch level {
	case config.LogLevelDebug:
		return slog.LevelDebug
	case config.LogLevelWarn:
		return slog.LevelWarn
	case config.LogLevelError:
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Discard returns a logger that drops every record.
func Discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, &slog.HandlerOptions{Level: slog.LevelError + 1}))
}

type nopCloser struct{}

func (nopCloser) Close() error { return nil }
