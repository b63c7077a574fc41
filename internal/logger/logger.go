// Package logger is the process-wide structured logger. It writes to stderr
// because stdout belongs to the LSP transport.
package logger

import (
	"io"
	"os"

	"github.com/rs/zerolog"
)

var std = zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr, NoColor: true}).
	With().Timestamp().Logger().Level(zerolog.InfoLevel)

func SetOutput(w io.Writer) {
	std = std.Output(w)
}

// SetLevel accepts zerolog level names ("debug", "info", "warn", "error").
// Unknown names keep the current level.
func SetLevel(level string) {
	if lvl, err := zerolog.ParseLevel(level); err == nil {
		std = std.Level(lvl)
	}
}

func Debugf(format string, v ...any) {
	std.Debug().Msgf(format, v...)
}

func Printf(format string, v ...any) {
	std.Info().Msgf(format, v...)
}

func Warnf(format string, v ...any) {
	std.Warn().Msgf(format, v...)
}

func Errorf(format string, v ...any) {
	std.Error().Msgf(format, v...)
}

func Fatalf(format string, v ...any) {
	std.Fatal().Msgf(format, v...)
}
