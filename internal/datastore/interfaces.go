// Package datastore journals sessions and spoken alerts with GORM.
package datastore

import (
	"time"

	"gorm.io/gorm"

	"github.com/tphakala/sightline-go/internal/errors"
	"github.com/tphakala/sightline-go/internal/logger"
	"github.com/tphakala/sightline-go/internal/observability/metrics"
)

// DefaultRecentLimit caps RecentAlerts when no limit is given.
const DefaultRecentLimit = 50

// Interface abstracts the journal backend.
type Interface interface {
	Open() error
	Close() error
	SaveSession(s *Session) error
	EndSession(id string, endedAt time.Time, reason string) error
	GetSession(id string) (Session, error)
	SaveAlert(a *Alert) error
	RecentAlerts(limit int) ([]Alert, error)
	CountAlerts(sessionID string) (int64, error)
}

// Config selects and configures the backend.
type Config struct {
	Type   string // "sqlite" or "mysql"
	SQLite SQLiteConfig
	MySQL  MySQLConfig
	Debug  bool
}

// DataStore implements the queries shared by every backend.
type DataStore struct {
	DB       *gorm.DB
	Recorder metrics.Recorder
}

// New returns the store selected by cfg. It is not opened.
func New(cfg Config, recorder metrics.Recorder) (Interface, error) {
	if recorder == nil {
		recorder = metrics.NoopRecorder{}
	}
	base := DataStore{Recorder: recorder}
	switch cfg.Type {
	case "", "sqlite":
		return &SQLiteStore{DataStore: base, Config: cfg.SQLite, Debug: cfg.Debug}, nil
	case "mysql":
		return &MySQLStore{DataStore: base, Config: cfg.MySQL, Debug: cfg.Debug}, nil
	default:
		return nil, errors.Newf("unknown database type %q", cfg.Type).
			Component("datastore").
			Category(errors.CategoryConfiguration).
			Build()
	}
}

func (ds *DataStore) ready(op string) error {
	if ds.DB == nil {
		return errors.Newf("database connection is not initialized").
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", op).
			Build()
	}
	return nil
}

// track records the outcome and latency of op and wraps err.
func (ds *DataStore) track(op string, start time.Time, err error) error {
	ds.Recorder.RecordDuration(op, time.Since(start).Seconds())
	if err == nil {
		ds.Recorder.RecordOperation(op, metrics.StatusSuccess)
		return nil
	}
	ds.Recorder.RecordOperation(op, metrics.StatusError)
	ds.Recorder.RecordError(op, string(errors.CategoryDatabase))
	return errors.New(err).
		Component("datastore").
		Category(errors.CategoryDatabase).
		Context("operation", op).
		Build()
}

// SaveSession inserts s.
func (ds *DataStore) SaveSession(s *Session) error {
	if err := ds.ready("save_session"); err != nil {
		return err
	}
	start := time.Now()
	return ds.track(metrics.OpJournalWrite, start, ds.DB.Create(s).Error)
}

// EndSession stamps the end time and reason of session id.
func (ds *DataStore) EndSession(id string, endedAt time.Time, reason string) error {
	if err := ds.ready("end_session"); err != nil {
		return err
	}
	start := time.Now()
	res := ds.DB.Model(&Session{}).Where("id = ?", id).
		Updates(map[string]any{"ended_at": endedAt, "end_reason": reason})
	err := res.Error
	if err == nil && res.RowsAffected == 0 {
		err = gorm.ErrRecordNotFound
	}
	return ds.track(metrics.OpJournalWrite, start, err)
}

// GetSession loads one session by id.
func (ds *DataStore) GetSession(id string) (Session, error) {
	var s Session
	if err := ds.ready("get_session"); err != nil {
		return s, err
	}
	start := time.Now()
	err := ds.DB.First(&s, "id = ?", id).Error
	return s, ds.track(metrics.OpJournalQuery, start, err)
}

// SaveAlert inserts a.
func (ds *DataStore) SaveAlert(a *Alert) error {
	if err := ds.ready("save_alert"); err != nil {
		return err
	}
	start := time.Now()
	return ds.track(metrics.OpJournalWrite, start, ds.DB.Create(a).Error)
}

// RecentAlerts returns up to limit alerts, newest first.
func (ds *DataStore) RecentAlerts(limit int) ([]Alert, error) {
	if err := ds.ready("recent_alerts"); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = DefaultRecentLimit
	}
	var alerts []Alert
	start := time.Now()
	err := ds.DB.Order("spoken_at DESC").Order("id DESC").Limit(limit).Find(&alerts).Error
	return alerts, ds.track(metrics.OpJournalQuery, start, err)
}

// CountAlerts counts the alerts spoken in sessionID.
func (ds *DataStore) CountAlerts(sessionID string) (int64, error) {
	if err := ds.ready("count_alerts"); err != nil {
		return 0, err
	}
	var n int64
	start := time.Now()
	err := ds.DB.Model(&Alert{}).Where("session_id = ?", sessionID).Count(&n).Error
	return n, ds.track(metrics.OpJournalQuery, start, err)
}

func (ds *DataStore) close() error {
	if ds.DB == nil {
		return nil
	}
	sqlDB, err := ds.DB.DB()
	if err != nil {
		return err
	}
	ds.DB = nil
	return sqlDB.Close()
}

func performAutoMigration(db *gorm.DB, debug bool, dbType, connectionInfo string) error {
	if err := db.AutoMigrate(&Session{}, &Alert{}); err != nil {
		return errors.New(err).
			Component("datastore").
			Category(errors.CategoryDatabase).
			Context("operation", "auto_migrate").
			Context("db_type", dbType).
			Build()
	}
	if debug {
		GetLogger().Debug("database connection initialized",
			logger.String("db_type", dbType),
			logger.String("connection", connectionInfo))
	}
	return nil
}
