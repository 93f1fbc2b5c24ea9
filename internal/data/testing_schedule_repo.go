package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data/pgxutil"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

// TestingScheduleRepo provides database operations for testing schedules.
type TestingScheduleRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewTestingScheduleRepo creates a new TestingScheduleRepo with real time provider.
func NewTestingScheduleRepo(db *sql.DB) *TestingScheduleRepo {
	return &TestingScheduleRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewTestingScheduleRepoWithTimeProvider creates a TestingScheduleRepo with a
// custom time provider (useful for tests).
func NewTestingScheduleRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *TestingScheduleRepo {
	return &TestingScheduleRepo{DB: db, timeProvider: tp}
}

const testingScheduleColumns = `
  schedule_id,
  enabled,
  frequency,
  options,
  last_run_at,
  next_run_at,
  last_status,
  last_error,
  created_at,
  updated_at
`

// SQL query constants for static queries.
const (
	testingScheduleGetByIDQuery = `
		SELECT ` + testingScheduleColumns + `
		FROM market.testing_schedules
		WHERE schedule_id = $1`

	testingScheduleListQuery = `
		SELECT ` + testingScheduleColumns + `
		FROM market.testing_schedules
		ORDER BY created_at ASC`

	testingScheduleListEnabledQuery = `
		SELECT ` + testingScheduleColumns + `
		FROM market.testing_schedules
		WHERE enabled = TRUE
		ORDER BY created_at ASC`
)

// Upsert inserts or updates a testing schedule. A blank schedule id means a
// new schedule; the generated id comes back on the returned row.
func (r *TestingScheduleRepo) Upsert(
	ctx context.Context,
	params core.UpsertTestingScheduleParams,
) (*model.TestingSchedule, error) {
	scheduleID := strings.TrimSpace(params.ScheduleID)
	if scheduleID == "" {
		scheduleID = uuid.NewString()
	}
	options := params.Options
	if len(options) == 0 {
		options = []byte("{}")
	}
	now := r.timeProvider.Now().UTC()

	query := `
		INSERT INTO market.testing_schedules (
			schedule_id, enabled, frequency, options, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $5)
		ON CONFLICT (schedule_id)
		DO UPDATE SET enabled = EXCLUDED.enabled,
		              frequency = EXCLUDED.frequency,
		              options = EXCLUDED.options,
		              updated_at = EXCLUDED.updated_at
		RETURNING ` + testingScheduleColumns

	var out model.TestingSchedule
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, scheduleID, params.Enabled, params.Frequency, options, now)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestingSchedule])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a testing schedule by ID.
func (r *TestingScheduleRepo) GetByID(ctx context.Context, id string) (*model.TestingSchedule, error) {
	var out model.TestingSchedule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, testingScheduleGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestingSchedule])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Testing schedule not found")
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get testing schedule: %w", err))
	}
	return &out, nil
}

// List retrieves all testing schedules ordered by creation time.
func (r *TestingScheduleRepo) List(ctx context.Context) ([]model.TestingSchedule, error) {
	return r.listByQuery(ctx, testingScheduleListQuery, "list testing schedules")
}

// ListEnabled retrieves enabled testing schedules for the reconciler.
func (r *TestingScheduleRepo) ListEnabled(ctx context.Context) ([]model.TestingSchedule, error) {
	return r.listByQuery(ctx, testingScheduleListEnabledQuery, "list enabled testing schedules")
}

// SetEnabled toggles a testing schedule and returns the updated row.
func (r *TestingScheduleRepo) SetEnabled(
	ctx context.Context,
	id string,
	enabled bool,
) (*model.TestingSchedule, error) {
	query := `
		UPDATE market.testing_schedules
		SET enabled = $2, updated_at = $3
		WHERE schedule_id = $1
		RETURNING ` + testingScheduleColumns

	var out model.TestingSchedule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, id, enabled, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.TestingSchedule])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Testing schedule not found")
		}
		return nil, apperrors.MapDBError(fmt.Errorf("toggle testing schedule: %w", err))
	}
	return &out, nil
}

// UpdateRunState writes the run-tracking columns named by the update. Nil
// fields are left unchanged; updated_at always advances.
func (r *TestingScheduleRepo) UpdateRunState(ctx context.Context, update core.ScheduleRunStateUpdate) error {
	clauses := []string{"updated_at = $2"}
	args := []any{update.ScheduleID, r.timeProvider.Now().UTC()}
	clauses, args = appendRunStateClauses(clauses, args, update)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE market.testing_schedules SET ")
	queryBuilder.WriteString(strings.Join(clauses, ", "))
	queryBuilder.WriteString(" WHERE schedule_id = $1")

	res, err := r.DB.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("update testing schedule run state: %w", err))
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("Testing schedule not found")
	}
	return nil
}

func (r *TestingScheduleRepo) listByQuery(
	ctx context.Context,
	query string,
	errMsg string,
) ([]model.TestingSchedule, error) {
	var out []model.TestingSchedule
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.TestingSchedule])
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return out, nil
}

// appendRunStateClauses appends SET clauses for the non-nil run-state fields.
// Shared by the testing and ingestion schedule repos; both tables carry the
// same run-tracking columns.
func appendRunStateClauses(
	clauses []string,
	args []any,
	update core.ScheduleRunStateUpdate,
) ([]string, []any) {
	if update.LastRunAt != nil {
		clauses = append(clauses, fmt.Sprintf("last_run_at = $%d", len(args)+1))
		args = append(args, update.LastRunAt.UTC())
	}
	switch {
	case update.ClearNextRunAt:
		clauses = append(clauses, "next_run_at = NULL")
	case update.NextRunAt != nil:
		clauses = append(clauses, fmt.Sprintf("next_run_at = $%d", len(args)+1))
		args = append(args, update.NextRunAt.UTC())
	}
	if update.LastStatus != nil {
		clauses = append(clauses, fmt.Sprintf("last_status = $%d", len(args)+1))
		args = append(args, string(*update.LastStatus))
	}
	if update.LastError != nil {
		clauses = append(clauses, fmt.Sprintf("last_error = $%d", len(args)+1))
		args = append(args, *update.LastError)
	}
	return clauses, args
}

var _ core.TestingScheduleRepository = (*TestingScheduleRepo)(nil)
