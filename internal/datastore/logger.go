package datastore

import (
	"time"

	gormlogger "gorm.io/gorm/logger"

	"github.com/tphakala/sightline-go/internal/logger"
)

const slowQueryThreshold = 200 * time.Millisecond

// GetLogger returns the datastore module logger.
func GetLogger() logger.Logger {
	return logger.Global().Module("datastore")
}

func createGormLogger() gormlogger.Interface {
	return logger.NewGormLoggerAdapter(GetLogger().Module("gorm"), slowQueryThreshold)
}
