// Package audit is the relational audit-log gateway: one row per run,
// upserted by updated_at so task retries never produce duplicates.
package audit

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS matopiba_runs (
	run_label     TEXT NOT NULL,
	updated_at    DATETIME NOT NULL UNIQUE,
	n_cities      INTEGER NOT NULL,
	r2            REAL,
	rmse          REAL,
	bias          REAL,
	mae           REAL,
	success_rate  REAL NOT NULL,
	quality       TEXT NOT NULL,
	metadata_json TEXT NOT NULL,
	created_at    DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_matopiba_runs_updated_at ON matopiba_runs (updated_at DESC);
CREATE INDEX IF NOT EXISTS idx_matopiba_runs_quality ON matopiba_runs (quality);
CREATE INDEX IF NOT EXISTS idx_matopiba_runs_run_label ON matopiba_runs (run_label);
`

// Gateway writes run records to a sqlite-backed audit log.
type Gateway struct {
	db *sql.DB
}

// Open connects to dbURL (a sqlite DSN, e.g. a file path or ":memory:")
// and ensures the schema exists.
func Open(dbURL string) (*Gateway, error) {
	db, err := sql.Open("sqlite", dbURL)
	if err != nil {
		return nil, fmt.Errorf("audit: opening database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("audit: applying schema: %w", err)
	}
	return &Gateway{db: db}, nil
}

// Close releases the underlying database handle.
func (g *Gateway) Close() error {
	return g.db.Close()
}

// Row is one run's audit record.
type Row struct {
	RunLabel     string
	UpdatedAt    time.Time
	NCities      int
	R2           sql.NullFloat64
	RMSE         sql.NullFloat64
	Bias         sql.NullFloat64
	MAE          sql.NullFloat64
	SuccessRate  float64
	Quality      string
	MetadataJSON string
}

// UpsertRun inserts a new row, or replaces the metric columns in place
// if a row with the same UpdatedAt already exists. This is what makes
// Phase 5 idempotent under at-least-once scheduler delivery.
func (g *Gateway) UpsertRun(ctx context.Context, row Row) error {
	const stmt = `
INSERT INTO matopiba_runs (run_label, updated_at, n_cities, r2, rmse, bias, mae, success_rate, quality, metadata_json)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(updated_at) DO UPDATE SET
	run_label = excluded.run_label,
	n_cities = excluded.n_cities,
	r2 = excluded.r2,
	rmse = excluded.rmse,
	bias = excluded.bias,
	mae = excluded.mae,
	success_rate = excluded.success_rate,
	quality = excluded.quality,
	metadata_json = excluded.metadata_json
`
	_, err := g.db.ExecContext(ctx, stmt,
		row.RunLabel, row.UpdatedAt.UTC(), row.NCities,
		row.R2, row.RMSE, row.Bias, row.MAE,
		row.SuccessRate, row.Quality, row.MetadataJSON,
	)
	if err != nil {
		return fmt.Errorf("audit: upserting run: %w", err)
	}
	return nil
}

// LatestRuns returns the n most recent rows, newest first.
func (g *Gateway) LatestRuns(ctx context.Context, n int) ([]Row, error) {
	rows, err := g.db.QueryContext(ctx,
		`SELECT run_label, updated_at, n_cities, r2, rmse, bias, mae, success_rate, quality, metadata_json
		 FROM matopiba_runs ORDER BY updated_at DESC LIMIT ?`, n)
	if err != nil {
		return nil, fmt.Errorf("audit: querying latest runs: %w", err)
	}
	defer rows.Close()

	var out []Row
	for rows.Next() {
		var r Row
		if err := rows.Scan(&r.RunLabel, &r.UpdatedAt, &r.NCities, &r.R2, &r.RMSE, &r.Bias, &r.MAE, &r.SuccessRate, &r.Quality, &r.MetadataJSON); err != nil {
			return nil, fmt.Errorf("audit: scanning row: %w", err)
		}
		out = append(out, r)
	}
	return out, rows.Err()
}
