// Package sysutil bootstraps process-wide concerns for the server binary,
// chiefly the global zerolog logger.
package sysutil

import (
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// LoggerOptions controls how NewLogger builds the process logger.
type LoggerOptions struct {
	Level   string    // debug|info|warn|error|fatal|panic
	Pretty  bool      // console writer instead of JSON lines
	Service string    // added as "service" on every event
	Version string    // added as "version" when non-empty
	Out     io.Writer // defaults to os.Stdout
}

// ParseLevel maps a level name to a zerolog level. Unknown and empty values
// resolve to info.
func ParseLevel(lvl string) zerolog.Level {
	switch strings.ToLower(strings.TrimSpace(lvl)) {
	case "debug":
		return zerolog.DebugLevel
	case "warn", "warning":
		return zerolog.WarnLevel
	case "error":
		return zerolog.ErrorLevel
	case "fatal":
		return zerolog.FatalLevel
	case "panic":
		return zerolog.PanicLevel
	default:
		return zerolog.InfoLevel
	}
}

// SetLogLevel sets the global zerolog level from a level name.
func SetLogLevel(lvl string) {
	zerolog.SetGlobalLevel(ParseLevel(lvl))
}

// NewLogger builds the process logger, applies its level globally and
// installs it as the zerolog default so log.Ctx falls back to it.
func NewLogger(opts LoggerOptions) zerolog.Logger {
	out := opts.Out
	if out == nil {
		out = os.Stdout
	}
	if opts.Pretty {
		out = zerolog.ConsoleWriter{Out: out, TimeFormat: time.RFC3339}
	}
	zerolog.TimeFieldFormat = time.RFC3339Nano
	SetLogLevel(opts.Level)

	ctx := zerolog.New(out).With().Timestamp()
	if s := strings.TrimSpace(opts.Service); s != "" {
		ctx = ctx.Str("service", s)
	}
	if v := strings.TrimSpace(opts.Version); v != "" {
		ctx = ctx.Str("version", v)
	}
	logger := ctx.Logger()

	log.Logger = logger
	zerolog.DefaultContextLogger = &log.Logger
	return logger
}

// FirstNonEmpty returns the first value that is not blank, or "".
func FirstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if strings.TrimSpace(v) != "" {
			return v
		}
	}
	return ""
}
