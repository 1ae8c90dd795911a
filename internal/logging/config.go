// Package logging applies the process-wide zerolog configuration.
// Profiles pick sane defaults; NEXUS_LOG_* environment variables
// override them.
package logging

import (
	"os"
	"strconv"
	"strings"
	"sync"

	"github.com/rs/zerolog"
)

const (
	EnvLevel     = "NEXUS_LOG_LEVEL"
	EnvTimestamp = "NEXUS_LOG_TIMESTAMP"
	EnvNoColor   = "NEXUS_LOG_NOCOLOR"
	EnvJSON      = "NEXUS_LOG_JSON"
)

type Profile int

const (
	ProfileRuntime Profile = iota
	ProfileTest
)

var configureOnce sync.Once

func ConfigureRuntime() {
	Configure(ProfileRuntime)
}

func ConfigureTests() {
	Configure(ProfileTest)
}

// Configure applies the global zerolog level once per process. Later
// calls with a different profile are no-ops, so tests and the runtime
// cannot fight over the global.
func Configure(profile Profile) {
	configureOnce.Do(func() {
		zerolog.SetGlobalLevel(levelFor(profile))
	})
}

func levelFor(profile Profile) zerolog.Level {
	level := zerolog.InfoLevel
	if profile == ProfileTest {
		level = zerolog.WarnLevel
	}
	if raw := os.Getenv(EnvLevel); raw != "" {
		if parsed, err := zerolog.ParseLevel(strings.ToLower(strings.TrimSpace(raw))); err == nil {
			level = parsed
		}
	}
	return level
}

// JSON reports whether raw JSON output was requested over the console
// writer.
func JSON() bool {
	return envBool(EnvJSON)
}

// NoColor reports whether console color output is disabled.
func NoColor() bool {
	return envBool(EnvNoColor)
}

func envBool(key string) bool {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return false
	}
	v, err := strconv.ParseBool(raw)
	if err != nil {
		return false
	}
	return v
}
