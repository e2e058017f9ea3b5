// Package store persists simulation reports in SQLite through gorm.
package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/glebarez/sqlite"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"github.com/tchin/transit-timing-variation/internal/runner"
)

// ErrNotFound is returned when no run has the requested ID.
var ErrNotFound = errors.New("run not found")

// RunRecord is one persisted run. Summary columns are queryable; the full report
// is kept as JSON.
type RunRecord struct {
	ID         string `gorm:"primaryKey;size:36"`
	System     string `gorm:"index;size:128"`
	Status     string `gorm:"size:32"`
	Goal       int
	Transits   int
	Steps      int
	MeanPeriod float64
	TTVRMS     float64
	CreatedAt  time.Time `gorm:"index"`
	Report     datatypes.JSON
}

// Summary is the listing view of a run.
type Summary struct {
	ID         string    `json:"id"`
	System     string    `json:"system"`
	Status     string    `json:"status"`
	Goal       int       `json:"goal"`
	Transits   int       `json:"transits"`
	Steps      int       `json:"steps"`
	MeanPeriod float64   `json:"mean_period"`
	TTVRMS     float64   `json:"ttv_rms"`
	CreatedAt  time.Time `json:"created_at"`
}

// Store is the run history database.
type Store struct {
	db     *gorm.DB
	logger *slog.Logger
}

// Open connects to the SQLite database at path and migrates the schema. An empty
// path uses a private in-memory database.
func Open(path string, log *slog.Logger) (*Store, error) {
	dsn := path
	if dsn == "" {
		dsn = "file::memory:"
	}

	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{
		SkipDefaultTransaction: true,
		Logger:                 logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite %q: %w", dsn, err)
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("accessing sql interface: %w", err)
	}
	// One connection keeps an in-memory database alive and serializes writers.
	sqlDB.SetMaxOpenConns(1)

	for _, pragma := range []string{
		"PRAGMA journal_mode = WAL;",
		"PRAGMA synchronous = NORMAL;",
	} {
		if err := db.Exec(pragma).Error; err != nil {
			return nil, fmt.Errorf("setting pragma: %w", err)
		}
	}

	if err := db.AutoMigrate(&RunRecord{}); err != nil {
		return nil, fmt.Errorf("migrating schema: %w", err)
	}

	if path == "" {
		log.Info("run store opened", "path", "memory")
	} else {
		log.Info("run store opened", "path", path)
	}
	return &Store{db: db, logger: log}, nil
}

// Close releases the database connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping checks the database connection.
func (s *Store) Ping(ctx context.Context) error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.PingContext(ctx)
}

// Save inserts or replaces a report.
func (s *Store) Save(ctx context.Context, r *runner.Report) error {
	if r == nil || r.ID == "" {
		return errors.New("report has no id")
	}
	body, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encoding report %s: %w", r.ID, err)
	}

	rec := RunRecord{
		ID:         r.ID,
		System:     r.System,
		Status:     r.Status,
		Goal:       r.Goal,
		Transits:   len(r.Transits),
		Steps:      r.Steps,
		MeanPeriod: r.Analysis.MeanPeriod,
		TTVRMS:     r.Analysis.RMS,
		CreatedAt:  r.CreatedAt,
		Report:     datatypes.JSON(body),
	}
	if err := s.db.WithContext(ctx).Save(&rec).Error; err != nil {
		return fmt.Errorf("saving run %s: %w", r.ID, err)
	}
	s.logger.Debug("run saved", "run_id", r.ID, "bytes", len(body))
	return nil
}

// Get loads the full report for id.
func (s *Store) Get(ctx context.Context, id string) (*runner.Report, error) {
	var rec RunRecord
	err := s.db.WithContext(ctx).First(&rec, "id = ?", id).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, id)
	}
	if err != nil {
		return nil, fmt.Errorf("loading run %s: %w", id, err)
	}

	var r runner.Report
	if err := json.Unmarshal(rec.Report, &r); err != nil {
		return nil, fmt.Errorf("decoding run %s: %w", id, err)
	}
	return &r, nil
}

// List returns the newest runs first, optionally filtered by system name.
func (s *Store) List(ctx context.Context, system string, limit int) ([]Summary, error) {
	if limit <= 0 {
		limit = 50
	}
	q := s.db.WithContext(ctx).Model(&RunRecord{}).Order("created_at DESC").Limit(limit)
	if system != "" {
		q = q.Where("system = ?", system)
	}

	var recs []RunRecord
	if err := q.Omit("report").Find(&recs).Error; err != nil {
		return nil, fmt.Errorf("listing runs: %w", err)
	}

	out := make([]Summary, len(recs))
	for i, rec := range recs {
		out[i] = Summary{
			ID:         rec.ID,
			System:     rec.System,
			Status:     rec.Status,
			Goal:       rec.Goal,
			Transits:   rec.Transits,
			Steps:      rec.Steps,
			MeanPeriod: rec.MeanPeriod,
			TTVRMS:     rec.TTVRMS,
			CreatedAt:  rec.CreatedAt,
		}
	}
	return out, nil
}
