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

// IngestionScheduleRepo provides database operations for ingestion schedules.
type IngestionScheduleRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewIngestionScheduleRepo creates a new IngestionScheduleRepo with real time provider.
func NewIngestionScheduleRepo(db *sql.DB) *IngestionScheduleRepo {
	return &IngestionScheduleRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewIngestionScheduleRepoWithTimeProvider creates an IngestionScheduleRepo
// with a custom time provider (useful for tests).
func NewIngestionScheduleRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *IngestionScheduleRepo {
	return &IngestionScheduleRepo{DB: db, timeProvider: tp}
}

const ingestionScheduleColumns = `
  schedule_id,
  dataset,
  mode,
  frequency,
  enabled,
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
	ingestionScheduleGetByIDQuery = `
		SELECT ` + ingestionScheduleColumns + `
		FROM market.ingestion_schedules
		WHERE schedule_id = $1`

	ingestionScheduleFindByTargetQuery = `
		SELECT ` + ingestionScheduleColumns + `
		FROM market.ingestion_schedules
		WHERE dataset = $1 AND mode = $2`

	ingestionScheduleListQuery = `
		SELECT ` + ingestionScheduleColumns + `
		FROM market.ingestion_schedules
		ORDER BY dataset, mode`

	ingestionScheduleListEnabledQuery = `
		SELECT ` + ingestionScheduleColumns + `
		FROM market.ingestion_schedules
		WHERE enabled = TRUE
		ORDER BY dataset, mode`

	ingestionScheduleUpsertQuery = `
		INSERT INTO market.ingestion_schedules (
			schedule_id, dataset, mode, enabled, frequency, options, created_at, updated_at
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $7)
		ON CONFLICT (schedule_id)
		DO UPDATE SET dataset = EXCLUDED.dataset,
		              mode = EXCLUDED.mode,
		              enabled = EXCLUDED.enabled,
		              frequency = EXCLUDED.frequency,
		              options = EXCLUDED.options,
		              updated_at = EXCLUDED.updated_at
		RETURNING ` + ingestionScheduleColumns
)

// Upsert inserts or updates an ingestion schedule. A blank schedule id is
// resolved against the existing (dataset, mode) row inside the transaction so
// repeated upserts for the same target update in place instead of tripping
// the unique constraint. Moving an explicit schedule id onto a pair owned by
// another row still surfaces as a conflict.
func (r *IngestionScheduleRepo) Upsert(
	ctx context.Context,
	params core.UpsertIngestionScheduleParams,
) (*model.IngestionSchedule, error) {
	options := params.Options
	if len(options) == 0 {
		options = []byte("{}")
	}
	now := r.timeProvider.Now().UTC()

	var out model.IngestionSchedule
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			scheduleID := strings.TrimSpace(params.ScheduleID)
			if scheduleID == "" {
				existing, err := findScheduleIDByTarget(ctx, tx, params.Dataset, params.Mode)
				if err != nil {
					return err
				}
				scheduleID = existing
			}
			if scheduleID == "" {
				scheduleID = uuid.NewString()
			}

			rows, err := tx.Query(ctx, ingestionScheduleUpsertQuery,
				scheduleID,
				params.Dataset,
				string(params.Mode),
				params.Enabled,
				params.Frequency,
				options,
				now,
			)
			if err != nil {
				return err
			}
			defer rows.Close()
			out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.IngestionSchedule])
			return err
		},
	})
	if err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// findScheduleIDByTarget looks up the schedule id owning (dataset, mode),
// returning empty string when no row exists.
func findScheduleIDByTarget(ctx context.Context, tx pgx.Tx, dataset string, mode model.IngestMode) (string, error) {
	var id string
	err := tx.QueryRow(ctx,
		`SELECT schedule_id FROM market.ingestion_schedules WHERE dataset = $1 AND mode = $2`,
		dataset, string(mode),
	).Scan(&id)
	if errors.Is(err, pgx.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("resolve schedule for dataset=%s mode=%s: %w", dataset, mode, err)
	}
	return id, nil
}

// GetByID retrieves an ingestion schedule by ID.
func (r *IngestionScheduleRepo) GetByID(ctx context.Context, id string) (*model.IngestionSchedule, error) {
	return r.getByQuery(ctx, ingestionScheduleGetByIDQuery, "get ingestion schedule", id)
}

// FindByTarget resolves the unique (dataset, mode) schedule row.
func (r *IngestionScheduleRepo) FindByTarget(
	ctx context.Context,
	dataset string,
	mode model.IngestMode,
) (*model.IngestionSchedule, error) {
	return r.getByQuery(ctx, ingestionScheduleFindByTargetQuery, "find ingestion schedule by target", dataset, string(mode))
}

// List retrieves all ingestion schedules ordered by dataset and mode.
func (r *IngestionScheduleRepo) List(ctx context.Context) ([]model.IngestionSchedule, error) {
	return r.listByQuery(ctx, ingestionScheduleListQuery, "list ingestion schedules")
}

// ListEnabled retrieves enabled ingestion schedules for the reconciler.
func (r *IngestionScheduleRepo) ListEnabled(ctx context.Context) ([]model.IngestionSchedule, error) {
	return r.listByQuery(ctx, ingestionScheduleListEnabledQuery, "list enabled ingestion schedules")
}

// SetEnabled toggles an ingestion schedule and returns the updated row.
func (r *IngestionScheduleRepo) SetEnabled(
	ctx context.Context,
	id string,
	enabled bool,
) (*model.IngestionSchedule, error) {
	query := `
		UPDATE market.ingestion_schedules
		SET enabled = $2, updated_at = $3
		WHERE schedule_id = $1
		RETURNING ` + ingestionScheduleColumns

	var out model.IngestionSchedule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, id, enabled, r.timeProvider.Now().UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.IngestionSchedule])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Ingestion schedule not found")
		}
		return nil, apperrors.MapDBError(fmt.Errorf("toggle ingestion schedule: %w", err))
	}
	return &out, nil
}

// UpdateRunState writes the run-tracking columns named by the update. Nil
// fields are left unchanged; updated_at always advances.
func (r *IngestionScheduleRepo) UpdateRunState(ctx context.Context, update core.ScheduleRunStateUpdate) error {
	clauses := []string{"updated_at = $2"}
	args := []any{update.ScheduleID, r.timeProvider.Now().UTC()}
	clauses, args = appendRunStateClauses(clauses, args, update)

	var queryBuilder strings.Builder
	queryBuilder.WriteString("UPDATE market.ingestion_schedules SET ")
	queryBuilder.WriteString(strings.Join(clauses, ", "))
	queryBuilder.WriteString(" WHERE schedule_id = $1")

	res, err := r.DB.ExecContext(ctx, queryBuilder.String(), args...)
	if err != nil {
		return apperrors.MapDBError(fmt.Errorf("update ingestion schedule run state: %w", err))
	}
	rowsAffected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return apperrors.NotFound("Ingestion schedule not found")
	}
	return nil
}

func (r *IngestionScheduleRepo) getByQuery(
	ctx context.Context,
	query string,
	errMsg string,
	args ...any,
) (*model.IngestionSchedule, error) {
	var out model.IngestionSchedule
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.IngestionSchedule])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Ingestion schedule not found")
		}
		return nil, apperrors.MapDBError(fmt.Errorf("%s: %w", errMsg, err))
	}
	return &out, nil
}

func (r *IngestionScheduleRepo) listByQuery(
	ctx context.Context,
	query string,
	errMsg string,
) ([]model.IngestionSchedule, error) {
	var out []model.IngestionSchedule
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionSchedule])
		return err
	}); err != nil {
		return nil, fmt.Errorf("%s: %w", errMsg, err)
	}
	return out, nil
}

var _ core.IngestionScheduleRepository = (*IngestionScheduleRepo)(nil)
