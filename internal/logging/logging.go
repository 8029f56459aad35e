// Package logging configures the structured logger shared by every package
// in the sink. It wraps zerolog so the rest of the codebase depends only on
// this package, not on zerolog directly.
package logging

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
)

// Format selects the on-disk/console encoding of log records.
type Format string

const (
	FormatConsole Format = "console"
	FormatJSON    Format = "json"
)

// Config controls how New builds a logger.
type Config struct {
	Level  string // "debug", "info", "warn", "error"
	Format Format
	Output io.Writer // defaults to os.Stderr when nil
}

// New builds a zerolog.Logger honoring cfg, falling back to sane defaults
// for any zero-valued field.
func New(cfg Config) zerolog.Logger {
	level, err := zerolog.ParseLevel(strings.ToLower(cfg.Level))
	if err != nil || level == zerolog.NoLevel {
		level = zerolog.InfoLevel
	}

	out := cfg.Output
	if out == nil {
		out = os.Stderr
	}
	if cfg.Format == FormatConsole {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}

	return zerolog.New(out).Level(level).With().Timestamp().Logger()
}

// Nop returns a logger that discards everything, used by tests that don't
// care about log output.
func Nop() zerolog.Logger {
	return zerolog.Nop()
}
