// Package logging provides one structured zerolog sub-logger per internal
// subsystem, in the style of peiman-changie's internal/logger package
// (logger.Version.Debug().Str(...).Msg(...)). The level is controlled by
// WORKSPACE_LOG_LEVEL and an optional rotating file sink is installed when
// a log file path is configured.
package logging

import (
	"io"
	"os"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	mu   sync.RWMutex
	base = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor()}).
		With().Timestamp().Logger().Level(zerolog.WarnLevel)

	// Workspace, Git, Changeset, Planner, Applier, Config are per-subsystem
	// loggers. Configure() rebuilds them in place so callers can hold the
	// package-level variables without re-fetching after configuration.
	Workspace  = base.With().Str("component", "workspace").Logger()
	Git        = base.With().Str("component", "git").Logger()
	Changeset  = base.With().Str("component", "changeset").Logger()
	Planner    = base.With().Str("component", "planner").Logger()
	Applier    = base.With().Str("component", "applier").Logger()
	ConfigLog  = base.With().Str("component", "config").Logger()
)

// Options configures the logging subsystem. Either field may be left zero.
type Options struct {
	// Level is one of silent, error, warn, info, debug, trace (spec.md §6.5).
	Level string
	// FilePath, if set, also writes JSON logs to a rotating file via lumberjack.
	FilePath string
}

func noColor() bool {
	_, noColorEnv := os.LookupEnv("NO_COLOR")
	_, wsNoColorEnv := os.LookupEnv("WORKSPACE_NO_COLOR")
	return noColorEnv || wsNoColorEnv
}

// ParseLevel maps the spec's level vocabulary onto zerolog levels.
// "silent" maps to zerolog.Disabled, which is not one of zerolog's named
// levels but is the correct behavior for a level that must suppress all output.
func ParseLevel(level string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "silent":
		return zerolog.Disabled
	case "error":
		return zerolog.ErrorLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "info":
		return zerolog.InfoLevel
	case "debug":
		return zerolog.DebugLevel
	case "trace":
		return zerolog.TraceLevel
	default:
		return zerolog.WarnLevel
	}
}

// Configure rebuilds the package loggers from opts. Call once at process
// startup, after the config loader has resolved WORKSPACE_LOG_LEVEL.
func Configure(opts Options) {
	mu.Lock()
	defer mu.Unlock()

	var writers []io.Writer
	writers = append(writers, zerolog.ConsoleWriter{Out: os.Stderr, NoColor: noColor()})
	if opts.FilePath != "" {
		writers = append(writers, &lumberjack.Logger{
			Filename:   opts.FilePath,
			MaxSize:    10, // megabytes
			MaxBackups: 3,
			MaxAge:     28, // days
		})
	}

	level := ParseLevel(opts.Level)
	multi := zerolog.MultiLevelWriter(writers...)
	base = zerolog.New(multi).With().Timestamp().Logger().Level(level)

	Workspace = base.With().Str("component", "workspace").Logger()
	Git = base.With().Str("component", "git").Logger()
	Changeset = base.With().Str("component", "changeset").Logger()
	Planner = base.With().Str("component", "planner").Logger()
	Applier = base.With().Str("component", "applier").Logger()
	ConfigLog = base.With().Str("component", "config").Logger()
}
