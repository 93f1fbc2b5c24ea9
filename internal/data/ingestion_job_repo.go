package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data/database"
	"github.com/tdxstock/ingestd/internal/data/pgxutil"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

const defaultJobTaskLimit = 50

// IngestionJobRepo provides database operations for ingestion jobs and their
// task rows. Jobs are created here; task rows are written by the external
// ingestion scripts and only read back.
type IngestionJobRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewIngestionJobRepo creates a new IngestionJobRepo with real time provider.
func NewIngestionJobRepo(db *sql.DB) *IngestionJobRepo {
	return &IngestionJobRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewIngestionJobRepoWithTimeProvider creates an IngestionJobRepo with a
// custom time provider (useful for tests).
func NewIngestionJobRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *IngestionJobRepo {
	return &IngestionJobRepo{DB: db, timeProvider: tp}
}

const ingestionJobColumns = `
  job_id,
  job_type,
  status,
  created_at,
  started_at,
  finished_at,
  summary
`

const ingestionJobGetByIDQuery = `
	SELECT ` + ingestionJobColumns + `
	FROM market.ingestion_jobs
	WHERE job_id = $1`

func ingestionJobTaskColumns() []string {
	return []string{
		"task_id",
		"job_id",
		"dataset",
		"ts_code",
		"date_from",
		"date_to",
		"status",
		"progress",
		"retries",
		"last_error",
		"updated_at",
	}
}

// Create pre-creates a job row so clients can poll it before the external
// process has started.
func (r *IngestionJobRepo) Create(
	ctx context.Context,
	params core.CreateIngestionJobParams,
) (*model.IngestionJob, error) {
	jobID := params.JobID
	if jobID == "" {
		jobID = uuid.NewString()
	}
	createdAt := params.CreatedAt
	if createdAt.IsZero() {
		createdAt = r.timeProvider.Now()
	}

	query := `
		INSERT INTO market.ingestion_jobs (job_id, job_type, status, created_at)
		VALUES ($1, $2, $3, $4)
		RETURNING ` + ingestionJobColumns

	var out model.IngestionJob
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, jobID, string(params.JobType), string(params.Status), createdAt.UTC())
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.IngestionJob])
		return err
	}); err != nil {
		return nil, apperrors.MapDBError(err)
	}
	return &out, nil
}

// GetByID retrieves a job by ID.
func (r *IngestionJobRepo) GetByID(ctx context.Context, id string) (*model.IngestionJob, error) {
	var out model.IngestionJob
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, ingestionJobGetByIDQuery, id)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectOneRow(rows, pgx.RowToStructByName[model.IngestionJob])
		return err
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, apperrors.NotFound("Ingestion job not found")
		}
		return nil, apperrors.MapDBError(fmt.Errorf("get ingestion job: %w", err))
	}
	return &out, nil
}

// Finalize merges the caller's summary entries into the stored summary and
// writes a terminal status. The row is locked for the merge; a terminal
// status already written by the ingestion script is left in place, in which
// case only the summary merge lands and Finalize reports false.
func (r *IngestionJobRepo) Finalize(ctx context.Context, params core.FinalizeIngestionJobParams) (bool, error) {
	var changed bool
	err := pgxutil.WithPgxTx(ctx, r.DB, pgxutil.TxConfig{
		Fn: func(tx pgx.Tx) error {
			var storedSummary []byte
			var status string
			err := tx.QueryRow(ctx,
				`SELECT summary, status FROM market.ingestion_jobs WHERE job_id = $1 FOR UPDATE`,
				params.JobID,
			).Scan(&storedSummary, &status)
			if err != nil {
				return err
			}

			merged, err := mergeSummary(storedSummary, params.Summary)
			if err != nil {
				return err
			}

			if status == string(model.RunStatusQueued) || status == string(model.RunStatusRunning) {
				_, err = tx.Exec(ctx,
					`UPDATE market.ingestion_jobs SET status = $2, finished_at = $3, summary = $4 WHERE job_id = $1`,
					params.JobID, string(params.Status), params.FinishedAt.UTC(), merged,
				)
				changed = err == nil
				return err
			}

			_, err = tx.Exec(ctx,
				`UPDATE market.ingestion_jobs SET summary = $2 WHERE job_id = $1`,
				params.JobID, merged,
			)
			return err
		},
	})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return false, apperrors.NotFound("Ingestion job not found")
		}
		return false, apperrors.MapDBError(fmt.Errorf("finalize ingestion job: %w", err))
	}
	return changed, nil
}

// mergeSummary folds updates into a stored summary document. Values that are
// numeric on both sides add together; anything else overwrites.
func mergeSummary(stored []byte, updates map[string]any) ([]byte, error) {
	merged := map[string]any{}
	if len(stored) > 0 {
		if err := json.Unmarshal(stored, &merged); err != nil {
			// A malformed stored document should not block the terminal
			// write; start over from the updates.
			merged = map[string]any{}
		}
	}
	for key, value := range updates {
		prev, ok := merged[key]
		if !ok {
			merged[key] = value
			continue
		}
		prevNum, prevIsNum := toFloat(prev)
		nextNum, nextIsNum := toFloat(value)
		if prevIsNum && nextIsNum {
			merged[key] = prevNum + nextNum
			continue
		}
		merged[key] = value
	}
	out, err := json.Marshal(merged)
	if err != nil {
		return nil, fmt.Errorf("marshal merged summary: %w", err)
	}
	return out, nil
}

func toFloat(value any) (float64, bool) {
	switch v := value.(type) {
	case float64:
		return v, true
	case float32:
		return float64(v), true
	case int:
		return float64(v), true
	case int32:
		return float64(v), true
	case int64:
		return float64(v), true
	case json.Number:
		f, err := v.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

// TaskStats aggregates the job's task rows for progress reporting.
func (r *IngestionJobRepo) TaskStats(ctx context.Context, jobID string) (*model.JobTaskStats, error) {
	var stats model.JobTaskStats
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		query := `
			SELECT
				COUNT(*) AS total,
				COUNT(*) FILTER (WHERE status = 'success') AS success,
				COUNT(*) FILTER (WHERE status = 'failed') AS failed,
				COUNT(*) FILTER (WHERE status = 'running') AS running,
				COALESCE(AVG(progress), 0)::float8 AS avg_progress
			FROM market.ingestion_job_tasks
			WHERE job_id = $1
		`
		row := conn.QueryRow(ctx, query, jobID)
		return row.Scan(&stats.Total, &stats.Success, &stats.Failed, &stats.Running, &stats.AvgProgress)
	})
	if err != nil {
		return nil, fmt.Errorf("aggregate job task stats: %w", err)
	}
	return &stats, nil
}

// ListTasks retrieves the most recently updated task rows for a job.
func (r *IngestionJobRepo) ListTasks(
	ctx context.Context,
	jobID string,
	limit int,
) ([]model.IngestionJobTask, error) {
	if limit <= 0 {
		limit = defaultJobTaskLimit
	}

	opts := database.NewListQueryOptions("market.ingestion_job_tasks",
		database.WithColumns(ingestionJobTaskColumns()...),
		database.WithCondition(database.WhereCond("job_id", database.Equal, jobID)),
		database.WithOrderBy("updated_at", "DESC"),
		database.WithLimit(limit),
	)
	query, args := database.BuildListQuery(opts)

	var out []model.IngestionJobTask
	if err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, query, args...)
		if err != nil {
			return err
		}
		defer rows.Close()
		out, err = pgx.CollectRows(rows, pgx.RowToStructByName[model.IngestionJobTask])
		return err
	}); err != nil {
		return nil, fmt.Errorf("list job tasks: %w", err)
	}
	return out, nil
}

// StatusCounts returns the number of jobs per status across all jobs.
func (r *IngestionJobRepo) StatusCounts(ctx context.Context) (map[string]int, error) {
	counts := map[string]int{}
	err := pgxutil.WithPgxConn(ctx, r.DB, func(conn *pgx.Conn) error {
		rows, err := conn.Query(ctx, `SELECT status, COUNT(*) FROM market.ingestion_jobs GROUP BY status`)
		if err != nil {
			return err
		}
		defer rows.Close()
		for rows.Next() {
			var status string
			var count int
			if err := rows.Scan(&status, &count); err != nil {
				return err
			}
			counts[status] = count
		}
		return rows.Err()
	})
	if err != nil {
		return nil, fmt.Errorf("count jobs by status: %w", err)
	}
	return counts, nil
}

var _ core.IngestionJobRepository = (*IngestionJobRepo)(nil)
