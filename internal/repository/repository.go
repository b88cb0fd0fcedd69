package repository

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/septivank/meter-reconciler/internal/db"
)

// Execer is the subset of pgx used by the repository
type Execer interface {
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

var _ Execer = (*pgxpool.Pool)(nil)

// Repository handles run journal operations
type Repository struct {
	conn Execer
}

// NewRepository creates a new repository
func NewRepository(conn Execer) *Repository {
	return &Repository{conn: conn}
}

const schema = `
	CREATE TABLE IF NOT EXISTS reconciliation_runs (
		id              UUID PRIMARY KEY,
		request_id      TEXT,
		site_id         BIGINT,
		status          TEXT NOT NULL,
		failed_stage    TEXT,
		error_message   TEXT,
		total_records   INTEGER NOT NULL DEFAULT 0,
		matched_records INTEGER NOT NULL DEFAULT 0,
		anomaly_count   INTEGER NOT NULL DEFAULT 0,
		started_at      TIMESTAMPTZ NOT NULL,
		finished_at     TIMESTAMPTZ NOT NULL
	)
`

// EnsureSchema creates the run journal table if it does not exist
func (r *Repository) EnsureSchema(ctx context.Context) error {
	if _, err := r.conn.Exec(ctx, schema); err != nil {
		return fmt.Errorf("failed to create reconciliation_runs table: %w", err)
	}
	return nil
}

// InsertRun records a finished run
func (r *Repository) InsertRun(ctx context.Context, run *db.ReconciliationRun) error {
	query := `
		INSERT INTO reconciliation_runs (
			id, request_id, site_id, status, failed_stage, error_message,
			total_records, matched_records, anomaly_count, started_at, finished_at
		)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`

	_, err := r.conn.Exec(ctx, query,
		run.ID,
		run.RequestID,
		run.SiteID,
		run.Status,
		run.FailedStage,
		run.ErrorMessage,
		run.TotalRecords,
		run.MatchedRecords,
		run.AnomalyCount,
		run.StartedAt,
		run.FinishedAt,
	)

	if err != nil {
		return fmt.Errorf("failed to insert reconciliation run: %w", err)
	}

	return nil
}

// LastSucceededRun returns the most recent successful run for a site, or nil
// when the site has never been reconciled
func (r *Repository) LastSucceededRun(ctx context.Context, siteID int64) (*db.ReconciliationRun, error) {
	query := `
		SELECT id, request_id, site_id, status, failed_stage, error_message,
		       total_records, matched_records, anomaly_count, started_at, finished_at
		FROM reconciliation_runs
		WHERE site_id = $1 AND status = $2
		ORDER BY finished_at DESC
		LIMIT 1
	`

	var run db.ReconciliationRun
	err := r.conn.QueryRow(ctx, query, siteID, db.RunStatusSucceeded).Scan(
		&run.ID,
		&run.RequestID,
		&run.SiteID,
		&run.Status,
		&run.FailedStage,
		&run.ErrorMessage,
		&run.TotalRecords,
		&run.MatchedRecords,
		&run.AnomalyCount,
		&run.StartedAt,
		&run.FinishedAt,
	)
	if err == pgx.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to query last run: %w", err)
	}

	return &run, nil
}
