package logging

import (
	"io"
	"os"
	"time"

	"github.com/rs/zerolog"
)

// New constructs the service logger. Development environments get debug level and
// human-readable console output; everything else logs JSON at info level.
func New(env, component string) zerolog.Logger {
	return NewWithWriter(os.Stderr, env, component)
}

// NewWithWriter is New with an explicit sink.
func NewWithWriter(w io.Writer, env, component string) zerolog.Logger {
	level := zerolog.InfoLevel
	if env == "dev" || env == "development" {
		level = zerolog.DebugLevel
		w = zerolog.ConsoleWriter{Out: w, TimeFormat: time.RFC3339}
	}
	ctx := zerolog.New(w).Level(level).With().Timestamp()
	if component != "" {
		ctx = ctx.Str("component", component)
	}
	return ctx.Logger()
}
