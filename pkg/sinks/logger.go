package sinks

import "github.com/Adda-Baaj/cine-khobor/internal/logger"

// Logger defines the logging surface sinks rely on.
type Logger = logger.Logger

func ensureLogger(log Logger) Logger {
	return logger.Ensure(log)
}
