package datastore

import (
	"fmt"

	"gorm.io/driver/mysql"
	"gorm.io/gorm"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
)

// MySQLConfig holds the MySQL connection settings.
type MySQLConfig struct {
	Username string
	Password string
	Host     string
	Port     string
	Database string
}

func (c MySQLConfig) dsn() string {
	return fmt.Sprintf("%s:%s@tcp(%s:%s)/%s?charset=utf8mb4&parseTime=True&loc=UTC",
		c.Username, c.Password, c.Host, c.Port, c.Database)
}

func (c MySQLConfig) validate() error {
	if c.Host == "" || c.Database == "" || c.Username == "" {
		return errors.Newf("mysql requires host, database and username").
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
	return nil
}

// MySQLStore implements Interface for MySQL.
type MySQLStore struct {
	DataStore
	Config MySQLConfig
	Debug  bool
}

// Open connects and migrates.
func (store *MySQLStore) Open() error {
	if err := store.Config.validate(); err != nil {
		return err
	}

	db, err := gorm.Open(mysql.Open(store.Config.dsn()), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		GetLogger().Error("failed to open MySQL database",
			logger.String("host", store.Config.Host),
			logger.String("port", store.Config.Port),
			logger.String("database", store.Config.Database),
			logger.Error(err))
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_mysql").
			Build()
	}

	store.DB = db
	return performAutoMigration(db, store.Debug, "MySQL",
		fmt.Sprintf("%s:%s/%s", store.Config.Host, store.Config.Port, store.Config.Database))
}

// Close releases the connection pool.
func (store *MySQLStore) Close() error {
	return store.close()
}
