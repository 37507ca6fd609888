// Package logging builds the application logger for a deployment environment.
package logging

import (
	"io"
	"log/slog"
)

// Environment names understood by New.
const (
	EnvLocal = "local"
	EnvDev   = "development"
	EnvProd  = "production"
)

// New returns a logger writing to out with a handler chosen by env.
// Unknown environments get a minimal error-level logger and a warning about it.
func New(env string, out io.Writer) *slog.Logger {
	var log *slog.Logger

	switch env {
	case EnvLocal:
		log = slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{
			Level:     slog.LevelDebug,
			AddSource: true,
		}))
	case EnvDev:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level: slog.LevelInfo,
		}))
	case EnvProd:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       slog.LevelWarn,
			ReplaceAttr: dropTime,
		}))
	default:
		log = slog.New(slog.NewJSONHandler(out, &slog.HandlerOptions{
			Level:       slog.LevelError,
			ReplaceAttr: dropTime,
		}))

		log.Error(
			"The env parameter was not specified or was invalid. Logging will be minimal, by default.",
			slog.String("available_envs", "local, development, production"))
	}

	return log
}

func dropTime(_ []string, a slog.Attr) slog.Attr {
	if a.Key == slog.TimeKey {
		return slog.Attr{}
	}
	return a
}
