package main

import "github.com/rs/zerolog"

// conformedLogger lets packages that only know Printf log through zerolog.
type conformedLogger struct {
	logger zerolog.Logger
}

func (c conformedLogger) Printf(format string, v ...any) {
	c.logger.Info().Msgf(format, v...)
}
