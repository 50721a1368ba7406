package config

import (
	"io"
	"time"

	"github.com/rs/zerolog"
)

// NewLogger builds a zerolog logger for the logging section.
// An unparsable level falls back to info; debug forces the debug level.
func (lc LoggingConfig) NewLogger(out io.Writer, debug bool) zerolog.Logger {
	lvl, err := zerolog.ParseLevel(lc.Level)
	if err != nil || lc.Level == "" {
		lvl = zerolog.InfoLevel
	}

	if debug {
		lvl = zerolog.DebugLevel
	}

	w := out
	if lc.Format != "json" {
		w = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
	}

	return zerolog.New(w).
		Level(lvl).
		With().
		Timestamp().
		Logger()
}
