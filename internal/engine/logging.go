package engine

import "github.com/tphakala/sightline-go/internal/logger"

// GetLogger returns the engine module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("engine")
}
