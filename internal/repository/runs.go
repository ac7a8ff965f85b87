// Package repository persists assessment runs in the SQLite run store.
package repository

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"sqlbridge/internal/assess"
	"sqlbridge/internal/domain"
	"sqlbridge/internal/plan"
)

// RunSummary is the lightweight listing row for one stored run.
type RunSummary struct {
	ID             string    `json:"id"`
	StartedAt      time.Time `json:"started_at"`
	FinishedAt     time.Time `json:"finished_at"`
	CatalogVersion string    `json:"catalog_version"`
	QueryCount     int       `json:"query_count"`
	TotalHours     float64   `json:"total_hours"`
}

// Runs stores and retrieves assessment reports over the write/read pool
// pair. Per-query assessments are stored as JSON rows so a report can be
// rebuilt exactly, while the scalar columns support listing and filtering.
type Runs struct {
	write *sql.DB
	read  *sql.DB
}

// NewRuns creates a run repository.
func NewRuns(write, read *sql.DB) *Runs {
	return &Runs{write: write, read: read}
}

// Save stores a complete report in one transaction.
func (r *Runs) Save(ctx context.Context, rep *assess.Report) error {
	tx, err := r.write.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin save run: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	// Waves are stored as layout only; items are rebuilt from the
	// assessment rows on load.
	layout := make([]domain.MigrationWave, len(rep.Waves))
	for i, w := range rep.Waves {
		layout[i] = domain.MigrationWave{Name: w.Name, MinScore: w.MinScore, MaxScore: w.MaxScore}
	}
	wavesBlob, err := json.Marshal(layout)
	if err != nil {
		return fmt.Errorf("marshal wave layout: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		INSERT INTO assessment_runs (id, started_at, finished_at, catalog_version, query_count, total_hours, waves)
		VALUES (?, ?, ?, ?, ?, ?, ?)`,
		rep.RunID, rep.StartedAt, rep.FinishedAt, rep.CatalogVersion,
		len(rep.Assessments), rep.TotalHours, wavesBlob,
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", rep.RunID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO assessment_queries
			(run_id, query_id, score, category, estimated_hours, requires_manual_review, partial, assessment)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("prepare query insert: %w", err)
	}
	defer func() { _ = stmt.Close() }()

	for _, a := range rep.Assessments {
		blob, err := json.Marshal(a)
		if err != nil {
			return fmt.Errorf("marshal assessment %s: %w", a.Query.ID, err)
		}
		if _, err := stmt.ExecContext(ctx,
			rep.RunID, a.Query.ID, a.Score.Value, string(a.Score.Category),
			a.Score.EstimatedHours, a.Rewrite.RequiresManualReview,
			a.Features.Partial, blob,
		); err != nil {
			return fmt.Errorf("insert assessment %s: %w", a.Query.ID, err)
		}
	}

	return tx.Commit()
}

// Get rebuilds a stored report by run ID.
func (r *Runs) Get(ctx context.Context, runID string) (*assess.Report, error) {
	rep := &assess.Report{RunID: runID}
	var queryCount int
	var wavesBlob []byte
	err := r.read.QueryRowContext(ctx, `
		SELECT started_at, finished_at, catalog_version, query_count, total_hours, waves
		FROM assessment_runs WHERE id = ?`, runID,
	).Scan(&rep.StartedAt, &rep.FinishedAt, &rep.CatalogVersion, &queryCount, &rep.TotalHours, &wavesBlob)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound("assessment run %s not found", runID)
	}
	if err != nil {
		return nil, fmt.Errorf("load run %s: %w", runID, err)
	}

	rows, err := r.read.QueryContext(ctx, `
		SELECT assessment FROM assessment_queries
		WHERE run_id = ? ORDER BY score, query_id`, runID)
	if err != nil {
		return nil, fmt.Errorf("load run %s queries: %w", runID, err)
	}
	defer func() { _ = rows.Close() }()

	for rows.Next() {
		var blob []byte
		if err := rows.Scan(&blob); err != nil {
			return nil, fmt.Errorf("scan assessment row: %w", err)
		}
		var a domain.Assessment
		if err := json.Unmarshal(blob, &a); err != nil {
			return nil, fmt.Errorf("unmarshal assessment: %w", err)
		}
		rep.Assessments = append(rep.Assessments, &a)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate run %s queries: %w", runID, err)
	}

	var layout []domain.MigrationWave
	if err := json.Unmarshal(wavesBlob, &layout); err != nil {
		return nil, fmt.Errorf("unmarshal wave layout: %w", err)
	}
	rep.Waves = plan.Assign(layout, rep.Assessments)
	return rep, nil
}

// List returns the most recent run summaries, newest first.
func (r *Runs) List(ctx context.Context, limit int) ([]RunSummary, error) {
	if limit <= 0 {
		limit = 50
	}
	rows, err := r.read.QueryContext(ctx, `
		SELECT id, started_at, finished_at, catalog_version, query_count, total_hours
		FROM assessment_runs ORDER BY started_at DESC LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var out []RunSummary
	for rows.Next() {
		var s RunSummary
		if err := rows.Scan(&s.ID, &s.StartedAt, &s.FinishedAt,
			&s.CatalogVersion, &s.QueryCount, &s.TotalHours); err != nil {
			return nil, fmt.Errorf("scan run summary: %w", err)
		}
		out = append(out, s)
	}
	return out, rows.Err()
}
