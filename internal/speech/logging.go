package speech

import "github.com/tphakala/sightline-go/internal/logger"

// GetLogger returns the speech module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("speech")
}
