package datastore

import (
	"os"
	"path/filepath"

	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/tphakala/sightline-go/internal/errors"
)

// MemoryPath opens a private in-memory database.
const MemoryPath = ":memory:"

// SQLiteConfig locates the SQLite file.
type SQLiteConfig struct {
	Path string
}

// SQLiteStore implements Interface for SQLite.
type SQLiteStore struct {
	DataStore
	Config SQLiteConfig
	Debug  bool
}

// Open creates the parent directory if needed, connects and migrates.
func (store *SQLiteStore) Open() error {
	path := store.Config.Path
	if path == "" {
		path = MemoryPath
	}
	if path != MemoryPath {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return errors.New(err).
				Component("datastore").
				Category(errors.CategoryFileIO).
				Context("path", path).
				Build()
		}
	}

	db, err := gorm.Open(sqlite.Open(path), &gorm.Config{Logger: createGormLogger()})
	if err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "open_sqlite").
			Build()
	}
	if path == MemoryPath {
		// every pooled connection would otherwise see its own empty database
		sqlDB, err := db.DB()
		if err != nil {
			return err
		}
		sqlDB.SetMaxOpenConns(1)
	}

	store.DB = db
	return performAutoMigration(db, store.Debug, "SQLite", path)
}

// Close releases the connection pool.
func (store *SQLiteStore) Close() error {
	return store.close()
}
