package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data/database"
	"github.com/tdxstock/ingestd/internal/data/pgxutil"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

const defaultTestingRunLimit = 20

// TestingRunRepo provides database operations for testing run rows.
type TestingRunRepo struct {
	DB *sql.DB
}

// NewTestingRunRepo creates a new TestingRunRepo.
func NewTestingRunRepo(db *sql.DB) *TestingRunRepo {
	return &TestingRunRepo{DB: db}
}

func testingRunColumns() []string {
	return []string{
		"run_id",
		"schedule_id",
		"triggered_by",
		"status",
		"started_at",
		"finished_at",
		"summary",
		"detail",
		"log",
	}
}

// Insert records a run the moment its worker starts executing.
func (r *TestingRunRepo) Insert(ctx context.Context, params core.InsertTestingRunParams) error {
	query := `
		INSERT INTO market.testing_runs (run_id, schedule_id, triggered_by, status, started_at)
		VALUES ($1, $2, $3, $4, $5)`

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, query,
			params.RunID,
			params.ScheduleID,
			params.TriggeredBy,
			string(params.Status),
			params.StartedAt.UTC(),
		)
		return err
	}); err != nil {
		return apperrors.MapDBError(fmt.Errorf("insert testing run: %w", err))
	}
	return nil
}

// Complete writes the terminal state of a run.
func (r *TestingRunRepo) Complete(ctx context.Context, params core.CompleteTestingRunParams) error {
	summary, err := json.Marshal(params.Summary)
	if err != nil {
		return fmt.Errorf("marshal testing run summary: %w", err)
	}
	detail, err := json.Marshal(params.Detail)
	if err != nil {
		return fmt.Errorf("marshal testing run detail: %w", err)
	}

	query := `
		UPDATE market.testing_runs
		SET status = $2,
		    finished_at = $3,
		    summary = $4,
		    detail = $5,
		    log = $6
		WHERE run_id = $1`

	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		_, err := conn.Exec(ctx, query,
			params.RunID,
			string(params.Status),
			params.FinishedAt.UTC(),
			summary,
			detail,
			params.Log,
		)
		return err
	}); err != nil {
		return apperrors.MapDBError(fmt.Errorf("complete testing run: %w", err))
	}
	return nil
}

// ListRecent retrieves the most recently started runs.
func (r *TestingRunRepo) ListRecent(ctx context.Context, limit int) ([]model.TestingRun, error) {
	if limit <= 0 {
		limit = defaultTestingRunLimit
	}

	opts := database.NewListQueryOptions("market.testing_runs",
		database.WithColumns(testingRunColumns()...),
		database.WithOrderBy("started_at", "DESC"),
		database.WithLimit(limit),
	)
	query, args := database.BuildListQuery(opts)

	var out []model.TestingRun
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.TestingRun])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list testing runs: %w", err)
	}
	return out, nil
}

var _ core.TestingRunRepository = (*TestingRunRepo)(nil)
