// Package logging builds the zerolog logger shared by every binary.
package logging

import (
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New returns a logger writing to stdout. The "dev" environment enables
// debug output and human-readable console formatting.
func New(appEnv string) zerolog.Logger {
	zerolog.TimeFieldFormat = time.RFC3339

	level := zerolog.InfoLevel
	if appEnv == "dev" {
		level = zerolog.DebugLevel
	}

	var logger zerolog.Logger
	if appEnv == "dev" {
		logger = zerolog.New(zerolog.ConsoleWriter{Out: os.Stdout})
	} else {
		logger = zerolog.New(os.Stdout)
	}
	return logger.With().Timestamp().Logger().Level(level)
}
