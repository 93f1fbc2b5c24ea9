package data

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data/database"
	"github.com/tdxstock/ingestd/internal/data/pgxutil"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

const (
	defaultIngestionRunLimit = 20
	defaultErrorSampleLimit  = 20
	defaultRecentErrorLimit  = 50
)

// IngestionRunRepo reads the run, error, and checkpoint rows written by the
// external ingestion scripts. Nothing here writes; the scripts own these
// tables and this repo only surfaces them for status reporting.
type IngestionRunRepo struct {
	DB *sql.DB
}

// NewIngestionRunRepo creates a new IngestionRunRepo.
func NewIngestionRunRepo(db *sql.DB) *IngestionRunRepo {
	return &IngestionRunRepo{DB: db}
}

func ingestionRunColumns() []string {
	return []string{
		"run_id",
		"mode",
		"dataset",
		"status",
		"created_at",
		"started_at",
		"finished_at",
		"params",
		"summary",
	}
}

func ingestionErrorColumns() []string {
	return []string{
		"error_id",
		"run_id",
		"dataset",
		"ts_code",
		"error_at",
		"message",
		"detail",
	}
}

// ListRecent retrieves recent runs, optionally filtered to one dataset.
func (r *IngestionRunRepo) ListRecent(
	ctx context.Context,
	params core.ListIngestionRunsParams,
) ([]model.IngestionRun, error) {
	limit := params.Limit
	if limit <= 0 {
		limit = defaultIngestionRunLimit
	}

	queryOpts := []database.ListQueryOption{
		database.WithColumns(ingestionRunColumns()...),
		database.WithOrderBy("created_at", "DESC"),
		database.WithLimit(limit),
	}
	if params.Dataset != "" {
		queryOpts = append(queryOpts, database.WithCondition(
			database.WhereCond("dataset", database.Equal, params.Dataset),
		))
	}
	query, args := database.BuildListQuery(database.NewListQueryOptions("market.ingestion_runs", queryOpts...))

	var out []model.IngestionRun
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionRun])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list ingestion runs: %w", err)
	}
	return out, nil
}

// ErrorSamplesForJob retrieves error rows for a job by joining through the
// runs whose params document carries the job id.
func (r *IngestionRunRepo) ErrorSamplesForJob(
	ctx context.Context,
	jobID string,
	limit int,
) ([]model.IngestionError, error) {
	if limit <= 0 {
		limit = defaultErrorSampleLimit
	}

	query := `
		SELECT e.error_id, e.run_id, e.dataset, e.ts_code, e.error_at, e.message, e.detail
		FROM market.ingestion_errors e
		JOIN market.ingestion_runs r ON r.run_id = e.run_id
		WHERE r.params->>'job_id' = $1
		ORDER BY e.error_at DESC
		LIMIT $2`

	var out []model.IngestionError
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID, limit)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionError])
		return err
	}); err != nil {
		return nil, fmt.Errorf("sample errors for job: %w", err)
	}
	return out, nil
}

// RecentErrors retrieves the most recent error rows across all runs.
func (r *IngestionRunRepo) RecentErrors(ctx context.Context, limit int) ([]model.IngestionError, error) {
	if limit <= 0 {
		limit = defaultRecentErrorLimit
	}

	opts := database.NewListQueryOptions("market.ingestion_errors",
		database.WithColumns(ingestionErrorColumns()...),
		database.WithOrderBy("error_at", "DESC"),
		database.WithLimit(limit),
	)
	query, args := database.BuildListQuery(opts)

	var out []model.IngestionError
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionError])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list recent errors: %w", err)
	}
	return out, nil
}

// CheckpointsForRun retrieves the resume cursors recorded for one run.
func (r *IngestionRunRepo) CheckpointsForRun(ctx context.Context, runID string) ([]model.IngestionCheckpoint, error) {
	query := `
		SELECT run_id, dataset, ts_code, cursor_date, cursor_time, extra
		FROM market.ingestion_checkpoints
		WHERE run_id = $1
		ORDER BY dataset, ts_code`

	var out []model.IngestionCheckpoint
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, runID)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionCheckpoint])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list checkpoints for run: %w", err)
	}
	return out, nil
}

// CountSince counts runs created at or after the given instant.
func (r *IngestionRunRepo) CountSince(ctx context.Context, since time.Time) (int, error) {
	opts := database.NewListQueryOptions("market.ingestion_runs",
		database.WithCountOnly(),
		database.WithCondition(database.WhereCond("created_at", database.GreaterThanOrEqual, since.UTC())),
	)
	query, args := database.BuildListQuery(opts)

	var count int
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		return conn.QueryRow(ctx, query, args...).Scan(&count)
	})
	if err != nil {
		return 0, fmt.Errorf("count recent ingestion runs: %w", err)
	}
	return count, nil
}

var _ core.IngestionRunRepository = (*IngestionRunRepo)(nil)
