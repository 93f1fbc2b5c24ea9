package data

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data/pgxutil"
)

// Advisory lock namespace for reaper operations.
// Using two-arg pg_try_advisory_xact_lock(major, minor) for proper namespacing.
// Major key 1000 is reserved for ingestd reaper operations.
const (
	advisoryLockReaperMajor               = 1000
	advisoryLockReaperFailTestingRuns     = 1 // minor key for FailStaleTestingRuns
	advisoryLockReaperFailIngestionJobs   = 2 // minor key for FailStaleIngestionJobs
	advisoryLockReaperDeleteTestingRuns   = 3 // minor key for DeleteOldTestingRuns
	advisoryLockReaperDeleteIngestionJobs = 4 // minor key for DeleteOldIngestionJobs
	advisoryLockReaperDeleteLogs          = 5 // minor key for DeleteOldIngestionLogs
)

// ReaperRepo provides the cleanup operations for run, job, and log rows.
// It spans the tables other repos own because every operation is the same
// shape: batch up stale rows and repair or remove them.
type ReaperRepo struct {
	DB           *sql.DB
	timeProvider TimeProvider
}

// NewReaperRepo creates a new ReaperRepo.
func NewReaperRepo(db *sql.DB) *ReaperRepo {
	return &ReaperRepo{DB: db, timeProvider: &RealTimeProvider{}}
}

// NewReaperRepoWithTimeProvider creates a ReaperRepo with a custom time
// provider (useful for tests).
func NewReaperRepoWithTimeProvider(db *sql.DB, tp TimeProvider) *ReaperRepo {
	if tp == nil {
		tp = &RealTimeProvider{}
	}
	return &ReaperRepo{DB: db, timeProvider: tp}
}

// FailStaleTestingRuns marks running testing runs older than maxAge as failed.
// A run still in running status past maxAge belongs to a scheduler process
// that died before writing its terminal state.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of runs marked as failed.
func (r *ReaperRepo) FailStaleTestingRuns(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperFailTestingRuns).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-maxAge)

			res, err := tx.ExecContext(ctx, `
				UPDATE market.testing_runs
				SET status = 'failed',
					finished_at = $1,
					summary = COALESCE(summary, '{}'::jsonb) || jsonb_build_object('error', 'Run timed out in running status')
				WHERE run_id IN (
					SELECT run_id FROM market.testing_runs
					WHERE status = 'running'
					  AND started_at < $2
					ORDER BY started_at
					LIMIT $3
				)
			`, currentTime.UTC(), cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("fail stale testing runs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// FailStaleIngestionJobs marks queued and running ingestion jobs older than
// maxAge as failed. Jobs that never started age from created_at.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of jobs marked as failed.
func (r *ReaperRepo) FailStaleIngestionJobs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperFailIngestionJobs).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			currentTime := r.timeProvider.Now()
			cutoffTime := currentTime.Add(-maxAge)

			res, err := tx.ExecContext(ctx, `
				UPDATE market.ingestion_jobs
				SET status = 'failed',
					finished_at = $1,
					summary = COALESCE(summary, '{}'::jsonb) || jsonb_build_object('error', 'Job timed out before completion')
				WHERE job_id IN (
					SELECT job_id FROM market.ingestion_jobs
					WHERE status IN ('queued', 'running')
					  AND COALESCE(started_at, created_at) < $2
					ORDER BY COALESCE(started_at, created_at)
					LIMIT $3
				)
			`, currentTime.UTC(), cutoffTime.UTC(), batchSize)
			if err != nil {
				return fmt.Errorf("fail stale ingestion jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// DeleteOldTestingRuns deletes testing runs with the given status older than maxAge.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of runs deleted.
func (r *ReaperRepo) DeleteOldTestingRuns(ctx context.Context, params core.DeleteOldRunsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid run status: %s", params.Status)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDeleteTestingRuns).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-params.MaxAge)

			res, err := tx.ExecContext(ctx, `
				DELETE FROM market.testing_runs
				WHERE run_id IN (
					SELECT run_id FROM market.testing_runs
					WHERE status = $1
					  AND (finished_at < $2 OR (finished_at IS NULL AND started_at < $2))
					ORDER BY COALESCE(finished_at, started_at)
					LIMIT $3
				)
			`, params.Status, cutoffTime.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete old testing runs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// DeleteOldIngestionJobs deletes ingestion jobs with the given status older
// than maxAge. Task rows cascade with the job.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
// Returns the number of jobs deleted.
func (r *ReaperRepo) DeleteOldIngestionJobs(ctx context.Context, params core.DeleteOldRunsParams) (int64, error) {
	if !params.Status.Valid() {
		return 0, fmt.Errorf("invalid run status: %s", params.Status)
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDeleteIngestionJobs).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-params.MaxAge)

			res, err := tx.ExecContext(ctx, `
				DELETE FROM market.ingestion_jobs
				WHERE job_id IN (
					SELECT job_id FROM market.ingestion_jobs
					WHERE status = $1
					  AND (finished_at < $2 OR (finished_at IS NULL AND created_at < $2))
					ORDER BY COALESCE(finished_at, created_at)
					LIMIT $3
				)
			`, params.Status, cutoffTime.UTC(), params.BatchSize)
			if err != nil {
				return fmt.Errorf("delete old ingestion jobs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

// DeleteOldIngestionLogs deletes shared log lines older than maxAge. The logs
// table has no primary key, so rows are addressed by ctid.
// Processes up to batchSize rows per call to prevent long locks and I/O spikes.
// Uses advisory locks to prevent concurrent reaper instances from conflicting.
func (r *ReaperRepo) DeleteOldIngestionLogs(ctx context.Context, maxAge time.Duration, batchSize int) (int64, error) {
	if batchSize <= 0 {
		return 0, errors.New("batch size must be greater than zero")
	}
	if maxAge <= 0 {
		return 0, errors.New("max age must be greater than zero")
	}

	var rowsAffected int64
	err := pgxutil.WithSQLTx(ctx, r.DB, pgxutil.SQLTxConfig{
		Fn: func(tx *sql.Tx) error {
			var locked bool
			if err := tx.QueryRowContext(ctx, "SELECT pg_try_advisory_xact_lock($1, $2)", advisoryLockReaperMajor, advisoryLockReaperDeleteLogs).Scan(&locked); err != nil {
				return fmt.Errorf("acquire advisory lock: %w", err)
			}
			if !locked {
				rowsAffected = 0
				return nil
			}

			cutoffTime := r.timeProvider.Now().Add(-maxAge).UTC()

			res, err := tx.ExecContext(ctx, `
				DELETE FROM market.ingestion_logs
				USING (
					SELECT ctid
					FROM market.ingestion_logs
					WHERE ts < $1
					ORDER BY ts
					LIMIT $2
				) sub
				WHERE market.ingestion_logs.ctid = sub.ctid
			`, cutoffTime, batchSize)
			if err != nil {
				return fmt.Errorf("delete old ingestion logs: %w", err)
			}

			ra, err := res.RowsAffected()
			if err != nil {
				return fmt.Errorf("rows affected: %w", err)
			}
			rowsAffected = ra
			return nil
		},
	})
	if err != nil {
		return 0, err
	}
	return rowsAffected, nil
}

var _ core.ReaperRepository = (*ReaperRepo)(nil)
