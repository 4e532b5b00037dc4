// Package indexstore keeps a queryable SQL index of the samples merged
// into timing databases.
package indexstore

import (
	"context"
	"fmt"

	"github.com/ethpandaops/timingtree/pkg/config"
	"github.com/glebarez/sqlite"
	"github.com/sirupsen/logrus"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"
)

// Store provides persistence for indexed samples.
type Store interface {
	Start(ctx context.Context) error
	Stop() error

	UpsertSample(ctx context.Context, sample *Sample) error
	ListSamples(ctx context.Context, store string) ([]Sample, error)
	HasSample(ctx context.Context, store, finishTime, revision string) (bool, error)

	BulkInsertTimerValues(ctx context.Context, values []*TimerValue) error
	DeleteTimerValuesForSample(ctx context.Context, store, finishTime, revision string) error
	ListTimerSeries(
		ctx context.Context, store string, table int, name, column string,
	) ([]TimerValue, error)
}

// Compile-time interface check.
var _ Store = (*store)(nil)

type store struct {
	log logrus.FieldLogger
	cfg *config.IndexConfig
	db  *gorm.DB
}

// NewStore creates a new index Store backed by the configured database driver.
func NewStore(log logrus.FieldLogger, cfg *config.IndexConfig) Store {
	return &store{
		log: log.WithField("component", "indexstore"),
		cfg: cfg,
	}
}

// Start opens the database connection and runs migrations.
func (s *store) Start(ctx context.Context) error {
	var dialector gorm.Dialector

	gormCfg := &gorm.Config{
		Logger: logger.Discard,
	}

	switch s.cfg.Driver {
	case config.DriverSQLite:
		dialector = sqlite.Open(s.cfg.SQLite.Path)
	case config.DriverPostgres:
		dsn := fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			s.cfg.Postgres.Host,
			s.cfg.Postgres.Port,
			s.cfg.Postgres.User,
			s.cfg.Postgres.Password,
			s.cfg.Postgres.Database,
			s.cfg.Postgres.SSLMode,
		)
		dialector = postgres.Open(dsn)
	default:
		return fmt.Errorf("unsupported database driver: %s", s.cfg.Driver)
	}

	db, err := gorm.Open(dialector, gormCfg)
	if err != nil {
		return fmt.Errorf("opening index database: %w", err)
	}

	s.db = db

	// SQLite serializes writers, and ":memory:" databases exist per
	// connection.
	if s.cfg.Driver == config.DriverSQLite {
		sqlDB, err := db.DB()
		if err != nil {
			return fmt.Errorf("getting underlying db: %w", err)
		}

		sqlDB.SetMaxOpenConns(1)
	}

	if err := s.db.WithContext(ctx).AutoMigrate(
		&Sample{},
		&TimerValue{},
	); err != nil {
		return fmt.Errorf("running index migrations: %w", err)
	}

	s.log.WithField("driver", s.cfg.Driver).
		Info("Index database connected")

	return nil
}

// Stop closes the underlying database connection.
func (s *store) Stop() error {
	if s.db == nil {
		return nil
	}

	sqlDB, err := s.db.DB()
	if err != nil {
		return fmt.Errorf("getting underlying db: %w", err)
	}

	return sqlDB.Close()
}

// UpsertSample inserts a sample, or updates the stored one with the same
// store, finish time and revision. The last write wins.
func (s *store) UpsertSample(ctx context.Context, sample *Sample) error {
	if err := s.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{
				{Name: "store"}, {Name: "finish_time"}, {Name: "revision"},
			},
			DoUpdates: clause.AssignmentColumns([]string{
				"start_time", "branch", "n_tables", "entries_json", "indexed_at",
			}),
		}).
		Create(sample).Error; err != nil {
		return fmt.Errorf("upserting sample: %w", err)
	}

	return nil
}

// ListSamples returns the samples of a store ordered by finish time.
func (s *store) ListSamples(ctx context.Context, storeName string) ([]Sample, error) {
	var samples []Sample
	if err := s.db.WithContext(ctx).
		Where("store = ?", storeName).
		Order("finish_time ASC").
		Find(&samples).Error; err != nil {
		return nil, fmt.Errorf("listing samples: %w", err)
	}

	return samples, nil
}

// HasSample reports whether a sample is indexed.
func (s *store) HasSample(
	ctx context.Context, storeName, finishTime, revision string,
) (bool, error) {
	var count int64
	if err := s.db.WithContext(ctx).
		Model(&Sample{}).
		Where("store = ? AND finish_time = ? AND revision = ?",
			storeName, finishTime, revision).
		Count(&count).Error; err != nil {
		return false, fmt.Errorf("counting samples: %w", err)
	}

	return count > 0, nil
}

// BulkInsertTimerValues inserts timer values in batches within a single
// transaction.
func (s *store) BulkInsertTimerValues(ctx context.Context, values []*TimerValue) error {
	if len(values) == 0 {
		return nil
	}

	const batchSize = 100

	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for i := 0; i < len(values); i += batchSize {
			end := min(i+batchSize, len(values))

			batch := values[i:end]

			if err := tx.CreateInBatches(batch, len(batch)).Error; err != nil {
				return fmt.Errorf("bulk inserting timer values: %w", err)
			}
		}

		return nil
	})
}

// DeleteTimerValuesForSample removes all timer values of one sample.
func (s *store) DeleteTimerValuesForSample(
	ctx context.Context, storeName, finishTime, revision string,
) error {
	if err := s.db.WithContext(ctx).
		Where("store = ? AND finish_time = ? AND revision = ?",
			storeName, finishTime, revision).
		Delete(&TimerValue{}).Error; err != nil {
		return fmt.Errorf("deleting timer values for sample: %w", err)
	}

	return nil
}

// ListTimerSeries returns the values of one timer column ordered by finish
// time.
func (s *store) ListTimerSeries(
	ctx context.Context, storeName string, table int, name, column string,
) ([]TimerValue, error) {
	var values []TimerValue
	if err := s.db.WithContext(ctx).
		Where("store = ? AND table_index = ? AND name = ? AND column_name = ?",
			storeName, table, name, column).
		Order("finish_time ASC").
		Find(&values).Error; err != nil {
		return nil, fmt.Errorf("listing timer series: %w", err)
	}

	return values, nil
}
