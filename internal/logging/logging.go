// Package logging provides the structured logger of the ppview binary.
//
// It wraps [log/slog] with a single initialization point so every component
// shares one handler and level. The level is read from PPVIEW_LOG_LEVEL
// (debug, info, warn, error) and defaults to INFO.
//
//	log := logging.New("player")
//	log.Info("loaded", "frames", n)
//
// Output goes to stderr unless Init chose another writer first; the
// interactive player logs to a file so the terminal stays clean.
package logging

import (
	"io"
	"log/slog"
	"os"
	"strings"
	"sync"
)

// LevelEnv names the environment variable holding the log level.
const LevelEnv = "PPVIEW_LOG_LEVEL"

var (
	initLogger sync.Once
	baseLogger *slog.Logger
)

// Init sets the writer of the base logger. It only has an effect before the
// first call to New or Init and reports whether it took effect.
func Init(w io.Writer) bool {
	done := false
	initLogger.Do(func() {
		baseLogger = newBase(w)
		done = true
	})
	return done
}

// New returns a logger tagged with component="<component>". An empty
// component returns the base logger.
func New(component string) *slog.Logger {
	initLogger.Do(func() {
		baseLogger = newBase(os.Stderr)
	})
	if component == "" {
		return baseLogger
	}
	return baseLogger.With("component", component)
}

func newBase(w io.Writer) *slog.Logger {
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{
		Level: parseLevel(os.Getenv(LevelEnv)),
	}))
}

// parseLevel converts a level name, case-insensitively, to a slog.Level.
// Unknown values map to slog.LevelInfo.
func parseLevel(value string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
