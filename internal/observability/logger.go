package observability

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/kofany/nexus-sub000/internal/logging"
)

// InitLogger builds the process logger and installs it as the zerolog
// global. Level and output format follow the logging package's
// runtime profile and NEXUS_LOG_* overrides.
func InitLogger(app string) zerolog.Logger {
	logging.ConfigureRuntime()

	var out io.Writer = zerolog.ConsoleWriter{
		Out:        os.Stdout,
		TimeFormat: time.RFC3339,
		NoColor:    logging.NoColor(),
	}
	if logging.JSON() {
		out = os.Stdout
	}
	logger := zerolog.New(out).With().Timestamp().Str("app", app).Logger()
	log.Logger = logger
	return logger
}
