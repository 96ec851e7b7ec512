package logger

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New initializes the service logger.
// 'devMode' enables human-readable console logging at debug level.
func New(devMode bool) zerolog.Logger {
	return newWithWriter(os.Stderr, devMode)
}

func newWithWriter(out io.Writer, devMode bool) zerolog.Logger {
	level := zerolog.InfoLevel
	if devMode {
		out = zerolog.ConsoleWriter{
			Out:        out,
			TimeFormat: time.RFC3339,
		}
		level = zerolog.DebugLevel
	}

	return zerolog.New(out).
		Level(level).
		With().
		Timestamp().
		Str("service", "casabid").
		Logger()
}
