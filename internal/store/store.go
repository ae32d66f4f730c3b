// Package store persists analysis results in SQLite so that downstream
// services can join heatmaps and kinematic profiles to their own records.
//
// The schema is managed by golang-migrate from migrations embedded in the
// binary. A Store is a pipeline sink: every Write records one run.
package store

import (
	"context"
	"database/sql"
	"embed"
	"errors"
	"fmt"
	"path"
	"time"

	"github.com/banshee-data/fieldheat/internal/monitoring"
	"github.com/banshee-data/fieldheat/internal/report"
	"github.com/banshee-data/fieldheat/internal/timeutil"
	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/sqlite"
	"github.com/golang-migrate/migrate/v4/source/iofs"
	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

//go:embed migrations/*.sql
var migrationsFS embed.FS

var pragmas = []string{
	"PRAGMA journal_mode=WAL",
	"PRAGMA busy_timeout=5000",
	"PRAGMA synchronous=NORMAL",
	"PRAGMA temp_store=MEMORY",
	"PRAGMA foreign_keys=ON",
}

// Store is a SQLite-backed result store.
type Store struct {
	db    *sql.DB
	clock timeutil.Clock
}

// Open opens (creating if needed) the database at path and migrates it to
// the latest schema. A nil clock uses the wall clock.
func Open(path string, clock timeutil.Clock) (*Store, error) {
	if clock == nil {
		clock = timeutil.RealClock{}
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	// PRAGMAs are per connection.
	db.SetMaxOpenConns(1)

	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			db.Close()
			return nil, fmt.Errorf("failed to execute %q: %w", pragma, err)
		}
	}

	s := &Store{db: db, clock: clock}
	if err := s.MigrateUp(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// MigrateUp applies all pending migrations.
func (s *Store) MigrateUp() error {
	m, err := s.newMigrate()
	if err != nil {
		return err
	}
	// m is not closed: closing it would close the shared *sql.DB.
	if err := m.Up(); err != nil && !errors.Is(err, migrate.ErrNoChange) {
		return fmt.Errorf("migration up failed: %w", err)
	}
	return nil
}

// MigrateVersion returns the applied schema version. It is 0 when no
// migration has run.
func (s *Store) MigrateVersion() (version uint, dirty bool, err error) {
	m, err := s.newMigrate()
	if err != nil {
		return 0, false, err
	}
	version, dirty, err = m.Version()
	if errors.Is(err, migrate.ErrNilVersion) {
		return 0, false, nil
	}
	return version, dirty, err
}

func (s *Store) newMigrate() (*migrate.Migrate, error) {
	src, err := iofs.New(migrationsFS, "migrations")
	if err != nil {
		return nil, fmt.Errorf("failed to open embedded migrations: %w", err)
	}
	driver, err := sqlite.WithInstance(s.db, &sqlite.Config{})
	if err != nil {
		return nil, fmt.Errorf("failed to create sqlite driver: %w", err)
	}
	m, err := migrate.NewWithInstance("iofs", src, "sqlite", driver)
	if err != nil {
		return nil, fmt.Errorf("failed to create migrate instance: %w", err)
	}
	m.Log = &migrateLogger{}
	return m, nil
}

// migrateLogger implements migrate.Logger.
type migrateLogger struct{}

func (l *migrateLogger) Printf(format string, v ...interface{}) {
	monitoring.Logf("[migrate] "+format, v...)
}

func (l *migrateLogger) Verbose() bool {
	return false
}

// Name identifies the store in stage metrics.
func (s *Store) Name() string { return "store" }

// Write records a as a new run.
func (s *Store) Write(ctx context.Context, a *report.Analytics) error {
	_, err := s.RecordRun(ctx, a)
	return err
}

// RecordRun inserts one analysis_runs row, one entity_stats row per
// profile and one heatmaps row per grid, all in a single transaction.
// It returns the new run id.
func (s *Store) RecordRun(ctx context.Context, a *report.Analytics) (string, error) {
	if a == nil {
		return "", errors.New("nil analytics")
	}
	runID := uuid.New().String()
	createdAt := s.clock.Now().UTC().Format(time.RFC3339Nano)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO analysis_runs (
			run_id, label, mode, schema_kind, input_rows, records, dropped_rows,
			entities, max_frame_id, semi_major_m, semi_minor_m, grid_nx, grid_ny,
			sigma, created_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, a.Label, string(a.Mode), a.Summary.Schema, a.Summary.InputRows,
		a.Summary.Records, a.Summary.DroppedRows, a.Summary.Entities,
		a.Summary.MaxFrameID, a.Field.A, a.Field.B, a.Field.NX, a.Field.NY,
		a.Field.Sigma, createdAt,
	)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	statStmt, err := tx.PrepareContext(ctx, `
		INSERT INTO entity_stats (
			run_id, entity_id, units, frame_count, total_time_s, total_distance,
			average_speed, max_speed, participation_score, confidence_mean,
			speed_units, average_speed_converted, max_speed_converted,
			accepted_steps, rejected_steps
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return "", fmt.Errorf("prepare entity stats: %w", err)
	}
	defer statStmt.Close()

	for _, p := range a.Profiles {
		var confMean sql.NullFloat64
		if p.Confidence != nil {
			confMean = sql.NullFloat64{Float64: p.Confidence.Mean, Valid: true}
		}
		_, err := statStmt.ExecContext(ctx,
			runID, p.EntityID, string(p.Units), p.FrameCount, p.TotalTimeS,
			p.TotalDistance, p.AverageSpeed, p.MaxSpeed, nullFloat(p.Participation),
			confMean, nullString(p.SpeedUnits), nullFloat(p.AverageSpeedConverted),
			nullFloat(p.MaxSpeedConverted),
			p.AcceptedSteps, p.RejectedSteps,
		)
		if err != nil {
			return "", fmt.Errorf("insert stats for entity %d: %w", p.EntityID, err)
		}
	}

	if !a.Empty() {
		for _, ref := range a.Refs() {
			points := gridPoints(a, ref)
			_, err := tx.ExecContext(ctx,
				`INSERT INTO heatmaps (run_id, kind, key, path, points) VALUES (?, ?, ?, ?, ?)`,
				runID, string(ref.Kind), ref.Key, path.Join(a.Label, ref.Stem), points,
			)
			if err != nil {
				return "", fmt.Errorf("insert heatmap %s: %w", ref.Stem, err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit run: %w", err)
	}
	monitoring.Debugf("[store] recorded run %s for %s (%d profiles)", runID, a.Label, len(a.Profiles))
	return runID, nil
}

func gridPoints(a *report.Analytics, ref report.HeatmapRef) int {
	switch ref.Kind {
	case report.KindOverall:
		if a.Overall != nil {
			return a.Overall.Points
		}
	case report.KindEntity:
		for _, eg := range a.Entities {
			if report.EntityRef(eg.EntityID) == ref && eg.Grid != nil {
				return eg.Grid.Points
			}
		}
	case report.KindZone:
		for _, zg := range a.Zones {
			if report.ZoneRef(zg.Zone) == ref && zg.Grid != nil {
				return zg.Grid.Points
			}
		}
	}
	return 0
}

func nullString(v string) sql.NullString {
	return sql.NullString{String: v, Valid: v != ""}
}

func nullFloat(v *float64) sql.NullFloat64 {
	if v == nil {
		return sql.NullFloat64{}
	}
	return sql.NullFloat64{Float64: *v, Valid: true}
}
