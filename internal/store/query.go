package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"
)

// Run is one stored analysis_runs row.
type Run struct {
	RunID       string    `json:"run_id"`
	Label       string    `json:"label"`
	Mode        string    `json:"mode"`
	Schema      string    `json:"schema"`
	InputRows   int       `json:"input_rows"`
	Records     int       `json:"records"`
	DroppedRows int       `json:"dropped_rows"`
	Entities    int       `json:"entities"`
	MaxFrameID  int64     `json:"max_frame_id"`
	SemiMajorM  float64   `json:"semi_major_m"`
	SemiMinorM  float64   `json:"semi_minor_m"`
	GridNX      int       `json:"grid_nx"`
	GridNY      int       `json:"grid_ny"`
	Sigma       float64   `json:"sigma"`
	CreatedAt   time.Time `json:"created_at"`
}

// EntityStat is one stored entity_stats row. Mode-specific values are nil
// when the run's mode does not produce them.
type EntityStat struct {
	EntityID              int64    `json:"entity_id"`
	Units                 string   `json:"units"`
	FrameCount            int      `json:"frame_count"`
	TotalTimeS            float64  `json:"total_time_s"`
	TotalDistance         float64  `json:"total_distance"`
	AverageSpeed          float64  `json:"average_speed"`
	MaxSpeed              float64  `json:"max_speed"`
	Participation         *float64 `json:"participation_score,omitempty"`
	ConfidenceMean        *float64 `json:"confidence_mean,omitempty"`
	SpeedUnits            string   `json:"speed_units,omitempty"`
	AverageSpeedConverted *float64 `json:"average_speed_converted,omitempty"`
	MaxSpeedConverted     *float64 `json:"max_speed_converted,omitempty"`
	AcceptedSteps         int      `json:"accepted_steps"`
	RejectedSteps         int      `json:"rejected_steps"`
}

// Heatmap is one stored heatmaps row. Path is the output stem relative to
// the output directory, without extension.
type Heatmap struct {
	Kind   string `json:"kind"`
	Key    string `json:"key"`
	Path   string `json:"path"`
	Points int    `json:"points"`
}

// ListRuns returns stored runs, newest first. An empty label lists all.
func (s *Store) ListRuns(ctx context.Context, label string) ([]Run, error) {
	query := `
		SELECT run_id, label, mode, schema_kind, input_rows, records, dropped_rows,
		       entities, max_frame_id, semi_major_m, semi_minor_m, grid_nx, grid_ny,
		       sigma, created_at
		  FROM analysis_runs`
	var args []interface{}
	if label != "" {
		query += ` WHERE label = ?`
		args = append(args, label)
	}
	query += ` ORDER BY created_at DESC, rowid DESC`

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		var r Run
		var maxFrame sql.NullInt64
		var created string
		if err := rows.Scan(&r.RunID, &r.Label, &r.Mode, &r.Schema, &r.InputRows,
			&r.Records, &r.DroppedRows, &r.Entities, &maxFrame, &r.SemiMajorM,
			&r.SemiMinorM, &r.GridNX, &r.GridNY, &r.Sigma, &created); err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		r.MaxFrameID = maxFrame.Int64
		if r.CreatedAt, err = time.Parse(time.RFC3339Nano, created); err != nil {
			return nil, fmt.Errorf("parse created_at of run %s: %w", r.RunID, err)
		}
		runs = append(runs, r)
	}
	return runs, rows.Err()
}

// EntityStats returns the profiles stored for a run in entity order.
func (s *Store) EntityStats(ctx context.Context, runID string) ([]EntityStat, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT entity_id, units, frame_count, total_time_s, total_distance,
		       average_speed, max_speed, participation_score, confidence_mean,
		       speed_units, average_speed_converted, max_speed_converted,
		       accepted_steps, rejected_steps
		  FROM entity_stats
		 WHERE run_id = ?
		 ORDER BY entity_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("query entity stats: %w", err)
	}
	defer rows.Close()

	var stats []EntityStat
	for rows.Next() {
		var e EntityStat
		var participation, confMean, avgConv, maxConv sql.NullFloat64
		var speedUnits sql.NullString
		if err := rows.Scan(&e.EntityID, &e.Units, &e.FrameCount, &e.TotalTimeS,
			&e.TotalDistance, &e.AverageSpeed, &e.MaxSpeed, &participation,
			&confMean, &speedUnits, &avgConv, &maxConv,
			&e.AcceptedSteps, &e.RejectedSteps); err != nil {
			return nil, fmt.Errorf("scan entity stats: %w", err)
		}
		e.Participation = floatPtr(participation)
		e.ConfidenceMean = floatPtr(confMean)
		e.SpeedUnits = speedUnits.String
		e.AverageSpeedConverted = floatPtr(avgConv)
		e.MaxSpeedConverted = floatPtr(maxConv)
		stats = append(stats, e)
	}
	return stats, rows.Err()
}

// Heatmaps returns the grids stored for a run: overall, entities, zones.
func (s *Store) Heatmaps(ctx context.Context, runID string) ([]Heatmap, error) {
	rows, err := s.db.QueryContext(ctx, `
		SELECT kind, key, path, points
		  FROM heatmaps
		 WHERE run_id = ?
		 ORDER BY rowid`, runID)
	if err != nil {
		return nil, fmt.Errorf("query heatmaps: %w", err)
	}
	defer rows.Close()

	var maps []Heatmap
	for rows.Next() {
		var h Heatmap
		if err := rows.Scan(&h.Kind, &h.Key, &h.Path, &h.Points); err != nil {
			return nil, fmt.Errorf("scan heatmap: %w", err)
		}
		maps = append(maps, h)
	}
	return maps, rows.Err()
}

// DeleteRun removes a run and, by cascade, its stats and heatmaps.
func (s *Store) DeleteRun(ctx context.Context, runID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM analysis_runs WHERE run_id = ?`, runID)
	if err != nil {
		return fmt.Errorf("delete run: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return fmt.Errorf("run %s: %w", runID, sql.ErrNoRows)
	}
	return nil
}

func floatPtr(v sql.NullFloat64) *float64 {
	if !v.Valid {
		return nil
	}
	f := v.Float64
	return &f
}
