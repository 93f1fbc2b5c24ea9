package data

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data/database"
	"github.com/tdxstock/ingestd/internal/data/pgxutil"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

const defaultLogTailLimit = 50

// IngestionLogRepo implements core.IngestionLogRepository against the shared
// market.ingestion_logs stream. Both the scheduler and the external scripts
// append here, so the schema stays a flat (job_id, ts, level, message) tail.
type IngestionLogRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewIngestionLogRepo creates a new IngestionLogRepo.
func NewIngestionLogRepo(db *sql.DB) *IngestionLogRepo {
	return NewIngestionLogRepoWithTimeProvider(db, &RealTimeProvider{})
}

// NewIngestionLogRepoWithTimeProvider creates a new IngestionLogRepo with a
// custom time provider for testing.
func NewIngestionLogRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *IngestionLogRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &IngestionLogRepo{DB: db, timeProvider: tp}
}

func ingestionLogColumns() []string {
	return []string{"job_id", "ts", "level", "message"}
}

// Append writes one log line. A zero TS falls back to the repo clock so
// callers may omit it.
func (r *IngestionLogRepo) Append(ctx context.Context, params core.AppendIngestionLogParams) error {
	ts := params.TS
	if ts.IsZero() {
		ts = r.timeProvider.Now()
	}
	level := params.Level
	if level == "" {
		level = "INFO"
	}

	query := `
		INSERT INTO market.ingestion_logs (job_id, ts, level, message)
		VALUES ($1, $2, $3, $4)`

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, query, params.JobID, ts, level, params.Message)
		return err
	}); err != nil {
		return apperrors.MapDBError(fmt.Errorf("append ingestion log: %w", err))
	}
	return nil
}

// Tail retrieves the most recent log lines across all jobs, newest first.
func (r *IngestionLogRepo) Tail(ctx context.Context, limit int) ([]model.IngestionLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogTailLimit
	}

	opts := database.NewListQueryOptions("market.ingestion_logs",
		database.WithColumns(ingestionLogColumns()...),
		database.WithOrderBy("ts", "DESC"),
		database.WithLimit(limit),
	)
	query, args := database.BuildListQuery(opts)

	return r.collectLogs(ctx, query, args...)
}

// TailForJob retrieves the most recent log lines for one job id, newest first.
func (r *IngestionLogRepo) TailForJob(
	ctx context.Context,
	jobID string,
	limit int,
) ([]model.IngestionLogEntry, error) {
	if limit <= 0 {
		limit = defaultLogTailLimit
	}

	opts := database.NewListQueryOptions("market.ingestion_logs",
		database.WithColumns(ingestionLogColumns()...),
		database.WithCondition(database.WhereCond("job_id", database.Equal, jobID)),
		database.WithOrderBy("ts", "DESC"),
		database.WithLimit(limit),
	)
	query, args := database.BuildListQuery(opts)

	return r.collectLogs(ctx, query, args...)
}

func (r *IngestionLogRepo) collectLogs(
	ctx context.Context,
	query string,
	args ...any,
) ([]model.IngestionLogEntry, error) {
	var out []model.IngestionLogEntry
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionLogEntry])
		return err
	}); err != nil {
		return nil, fmt.Errorf("tail ingestion logs: %w", err)
	}
	return out, nil
}

// Ensure IngestionLogRepo satisfies the interface.
var _ core.IngestionLogRepository = (*IngestionLogRepo)(nil)
