// Package auditdb persists analysis results to sqlite for post-hoc
// auditing: pre-cap volumes, calibration fallbacks and merge decisions
// stay queryable after the run. Persistence failures are the caller's to
// log; nothing here is on the analysis hot path.
package auditdb

import (
	"context"
	"database/sql"
	"embed"
	"fmt"
	"io/fs"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/plated-ai/nutrition.report/internal/foodvision"
)

//go:embed migrations/*.sql
var migrationFiles embed.FS

// DB wraps the sqlite connection used for audit storage.
type DB struct {
	*sql.DB
}

// Open opens (or creates) the audit database at path and applies pending
// migrations.
func Open(path string) (*DB, error) {
	conn, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open audit db: %w", err)
	}
	// Single writer; modernc sqlite misbehaves with concurrent writes.
	conn.SetMaxOpenConns(1)
	if _, err := conn.Exec(`PRAGMA journal_mode=WAL; PRAGMA foreign_keys=ON;`); err != nil {
		conn.Close()
		return nil, fmt.Errorf("set pragmas: %w", err)
	}

	db := &DB{conn}
	sub, err := fs.Sub(migrationFiles, "migrations")
	if err != nil {
		conn.Close()
		return nil, err
	}
	if err := db.MigrateUp(sub); err != nil {
		conn.Close()
		return nil, err
	}
	return db, nil
}

// RunSummary is one stored run, as listed by RecentRuns.
type RunSummary struct {
	RunID           string
	JobID           string
	CreatedAt       time.Time
	FrameCount      int
	NumFoodItems    int
	TotalCaloriesKC float64
	TotalMassG      float64
}

// SaveResult stores one analysis result and returns its run ID. Everything
// writes in a single transaction so a crashed save leaves no partial run.
func (db *DB) SaveResult(ctx context.Context, res *foodvision.Result) (string, error) {
	runID := uuid.NewString()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx, `
		INSERT INTO runs (
			run_id, job_id, frame_count,
			pixels_per_cm, ref_plane_depth_m, calibration_source,
			total_volume_ml, total_mass_g, total_calories_kcal, num_food_items
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, res.JobID, res.FrameCount,
		res.Calibration.PixelsPerCM, res.Calibration.ReferencePlaneDepthM,
		string(res.Calibration.Source),
		res.Summary.TotalVolumeML, res.Summary.TotalMassG,
		res.Summary.TotalCaloriesKC, res.Summary.NumFoodItems)
	if err != nil {
		return "", fmt.Errorf("insert run: %w", err)
	}

	for _, obj := range res.Objects {
		if err := insertObject(ctx, tx, runID, obj); err != nil {
			return "", err
		}
	}
	for _, m := range res.Merges {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO merge_events (run_id, kept_id, dropped_id, label, iou, center_distance, samples_absorbed)
			VALUES (?, ?, ?, ?, ?, ?, ?)`,
			runID, m.KeptID, m.DroppedID, m.Label, m.IoU, m.CenterDistance, m.SamplesAbsorbed)
		if err != nil {
			return "", fmt.Errorf("insert merge event: %w", err)
		}
	}
	for _, ev := range res.Detections {
		for _, d := range ev.Detections {
			_, err := tx.ExecContext(ctx, `
				INSERT INTO detection_log (run_id, frame_index, label, x1, y1, x2, y2, box_area)
				VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
				runID, ev.FrameIndex, d.Label,
				d.Box.X1, d.Box.Y1, d.Box.X2, d.Box.Y2, d.Area)
			if err != nil {
				return "", fmt.Errorf("insert detection: %w", err)
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit: %w", err)
	}
	return runID, nil
}

func insertObject(ctx context.Context, tx *sql.Tx, runID string, obj *foodvision.ObjectResult) error {
	var (
		matched  sql.NullString
		massG    sql.NullFloat64
		calories sql.NullFloat64
		source   sql.NullString
	)
	if obj.Nutrition != nil {
		matched = sql.NullString{String: obj.Nutrition.MatchedFood, Valid: obj.Nutrition.MatchedFood != ""}
		massG = sql.NullFloat64{Float64: obj.Nutrition.MassG, Valid: true}
		calories = sql.NullFloat64{Float64: obj.Nutrition.TotalCalories, Valid: true}
		source = sql.NullString{String: string(obj.Nutrition.Source), Valid: true}
	}
	_, err := tx.ExecContext(ctx, `
		INSERT INTO objects (
			run_id, object_id, label, first_seen_frame, last_seen_frame,
			max_volume_ml, median_volume_ml, mean_volume_ml, num_samples, estimated,
			matched_food, mass_g, total_calories, nutrition_source
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		runID, obj.Object.ID, obj.Object.Label,
		obj.Object.FirstSeenFrame, obj.Object.LastSeenFrame,
		obj.Statistics.MaxVolumeML, obj.Statistics.MedianVolumeML,
		obj.Statistics.MeanVolumeML, obj.Statistics.NumSamples,
		obj.Statistics.Estimated,
		matched, massG, calories, source)
	if err != nil {
		return fmt.Errorf("insert object %d: %w", obj.Object.ID, err)
	}

	for _, s := range obj.History {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO volume_samples (
				run_id, object_id, frame_index,
				volume_ml, pre_cap_volume_ml, capped, cap_reason,
				height_cm, area_cm2, diameter_cm
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
			runID, obj.Object.ID, s.FrameIndex,
			s.VolumeML, s.PreCapVolumeML, s.Capped, s.CapReason,
			s.HeightCM, s.AreaCM2, s.DiameterCM)
		if err != nil {
			return fmt.Errorf("insert sample for object %d: %w", obj.Object.ID, err)
		}
	}
	return nil
}

// RecentRuns lists stored runs, newest first.
func (db *DB) RecentRuns(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := db.QueryContext(ctx, `
		SELECT run_id, job_id, created_at, frame_count,
		       num_food_items, total_calories_kcal, total_mass_g
		FROM runs ORDER BY created_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []RunSummary
	for rows.Next() {
		var r RunSummary
		if err := rows.Scan(&r.RunID, &r.JobID, &r.CreatedAt, &r.FrameCount,
			&r.NumFoodItems, &r.TotalCaloriesKC, &r.TotalMassG); err != nil {
			return nil, err
		}
		out = append(out, r)
	}
	return out, rows.Err()
}

// CappedSample is one audited volume cap.
type CappedSample struct {
	ObjectID       int64
	Label          string
	FrameIndex     int
	VolumeML       float64
	PreCapVolumeML float64
	CapReason      string
}

// CappedSamples returns every capped volume sample of a run, the audit
// trail for the safety-cap heuristics.
func (db *DB) CappedSamples(ctx context.Context, runID string) ([]CappedSample, error) {
	rows, err := db.QueryContext(ctx, `
		SELECT s.object_id, o.label, s.frame_index,
		       s.volume_ml, s.pre_cap_volume_ml, s.cap_reason
		FROM volume_samples s
		JOIN objects o ON o.run_id = s.run_id AND o.object_id = s.object_id
		WHERE s.run_id = ? AND s.capped
		ORDER BY s.object_id, s.frame_index`, runID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []CappedSample
	for rows.Next() {
		var c CappedSample
		if err := rows.Scan(&c.ObjectID, &c.Label, &c.FrameIndex,
			&c.VolumeML, &c.PreCapVolumeML, &c.CapReason); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

// MergeCount returns the number of merge events recorded for a run.
func (db *DB) MergeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM merge_events WHERE run_id = ?`, runID).Scan(&n)
	return n, err
}
