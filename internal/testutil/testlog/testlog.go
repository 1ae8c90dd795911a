// Package testlog hands tests a logger that stays quiet unless log
// output was asked for through the environment.
package testlog

import (
	"os"
	"testing"

	"github.com/rs/zerolog"

	"github.com/kofany/nexus-sub000/internal/logging"
)

// New returns the logger for one test. Without NEXUS_LOG_LEVEL set it
// discards everything, keeping test output readable; with it, lines
// carry the test name.
func New(t *testing.T) zerolog.Logger {
	t.Helper()
	logging.ConfigureTests()
	if os.Getenv(logging.EnvLevel) == "" {
		return zerolog.Nop()
	}
	out := zerolog.ConsoleWriter{Out: os.Stderr, NoColor: logging.NoColor()}
	return zerolog.New(out).With().Timestamp().Str("test", t.Name()).Logger()
}
