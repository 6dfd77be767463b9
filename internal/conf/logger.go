package conf

import "github.com/tphakala/sightline-go/internal/logger"

// GetLogger returns the config module logger. It is fetched on every call
// so it follows logger.SetGlobal.
func GetLogger() logger.Logger {
	return logger.Global().Module("config")
}
