package data

import (
	"context"
	"database/sql"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
	"github.com/tdxstock/ingestd/internal/testutil"
)

func seedTask(t *testing.T, db *sql.DB, jobID string, status model.RunStatus, progress float64, updatedAt time.Time) string {
	t.Helper()
	return testutil.SeedJobTask(t, db, testutil.JobTaskSeed{
		JobID:     jobID,
		Status:    status,
		Progress:  progress,
		UpdatedAt: updatedAt,
	})
}

func TestIngestionJobRepo_CreateAndGet(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("creates a queued job with generated id", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			job, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobType: model.IngestModeIncremental,
				Status:  model.RunStatusQueued,
			})
			require.NoError(t, err)
			assert.NotEmpty(t, job.JobID)
			assert.Equal(t, model.IngestModeIncremental, job.JobType)
			assert.Equal(t, model.RunStatusQueued, job.Status)
			assert.Nil(t, job.StartedAt)
			assert.Nil(t, job.FinishedAt)

			got, err := repo.GetByID(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, job.JobID, got.JobID)
		})
	})

	t.Run("missing job is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)

			_, err := repo.GetByID(context.Background(), uuid.NewString())
			assert.True(t, apperrors.IsNotFound(err))
		})
	})

	t.Run("duplicate job id conflicts", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			id := uuid.NewString()
			_, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobID:   id,
				JobType: model.IngestModeInit,
				Status:  model.RunStatusQueued,
			})
			require.NoError(t, err)

			_, err = repo.Create(ctx, core.CreateIngestionJobParams{
				JobID:   id,
				JobType: model.IngestModeInit,
				Status:  model.RunStatusQueued,
			})
			assert.True(t, apperrors.IsConflict(err))
		})
	})
}

func TestIngestionJobRepo_Finalize(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("writes the terminal status for a live job", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			job, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobType: model.IngestModeIncremental,
				Status:  model.RunStatusRunning,
			})
			require.NoError(t, err)

			finishedAt := time.Now()
			changed, err := repo.Finalize(ctx, core.FinalizeIngestionJobParams{
				JobID:      job.JobID,
				Status:     model.RunStatusSuccess,
				FinishedAt: finishedAt,
				Summary:    map[string]any{"exit_code": 0},
			})
			require.NoError(t, err)
			assert.True(t, changed)

			got, err := repo.GetByID(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, model.RunStatusSuccess, got.Status)
			require.NotNil(t, got.FinishedAt)

			var summary map[string]any
			require.NoError(t, json.Unmarshal(got.Summary, &summary))
			assert.EqualValues(t, 0, summary["exit_code"])
		})
	})

	t.Run("script-written terminal status is not clobbered", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			job, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobType: model.IngestModeIncremental,
				Status:  model.RunStatusRunning,
			})
			require.NoError(t, err)

			// The script finished the job before the coordinator's write.
			_, err = db.ExecContext(ctx, `
				UPDATE market.ingestion_jobs
				SET status = 'success', summary = '{"rows": 120}'
				WHERE job_id = $1
			`, job.JobID)
			require.NoError(t, err)

			changed, err := repo.Finalize(ctx, core.FinalizeIngestionJobParams{
				JobID:      job.JobID,
				Status:     model.RunStatusFailed,
				FinishedAt: time.Now(),
				Summary:    map[string]any{"rows": 30, "exit_code": 1},
			})
			require.NoError(t, err)
			assert.False(t, changed)

			got, err := repo.GetByID(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, model.RunStatusSuccess, got.Status)

			// The summary merge still lands; numeric entries add.
			var summary map[string]any
			require.NoError(t, json.Unmarshal(got.Summary, &summary))
			assert.EqualValues(t, 150, summary["rows"])
			assert.EqualValues(t, 1, summary["exit_code"])
		})
	})

	t.Run("missing job is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)

			_, err := repo.Finalize(context.Background(), core.FinalizeIngestionJobParams{
				JobID:      uuid.NewString(),
				Status:     model.RunStatusFailed,
				FinishedAt: time.Now(),
			})
			assert.True(t, apperrors.IsNotFound(err))
		})
	})
}

func TestMergeSummary(t *testing.T) {
	t.Run("numeric values add and others overwrite", func(t *testing.T) {
		merged, err := mergeSummary([]byte(`{"rows": 10, "dataset": "kline_daily_qfq"}`), map[string]any{
			"rows":    5,
			"dataset": "board_moneyflow",
			"note":    "retried",
		})
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(merged, &out))
		assert.EqualValues(t, 15, out["rows"])
		assert.Equal(t, "board_moneyflow", out["dataset"])
		assert.Equal(t, "retried", out["note"])
	})

	t.Run("malformed stored summary starts over from updates", func(t *testing.T) {
		merged, err := mergeSummary([]byte(`{not json`), map[string]any{"rows": 5})
		require.NoError(t, err)

		var out map[string]any
		require.NoError(t, json.Unmarshal(merged, &out))
		assert.EqualValues(t, 5, out["rows"])
	})

	t.Run("empty stored summary keeps updates", func(t *testing.T) {
		merged, err := mergeSummary(nil, map[string]any{"exit_code": 0})
		require.NoError(t, err)
		assert.JSONEq(t, `{"exit_code": 0}`, string(merged))
	})
}

func TestIngestionJobRepo_TaskStats(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("aggregates task counters", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			job, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobType: model.IngestModeInit,
				Status:  model.RunStatusRunning,
			})
			require.NoError(t, err)

			now := time.Now()
			seedTask(t, db, job.JobID, model.RunStatusSuccess, 100, now)
			seedTask(t, db, job.JobID, model.RunStatusSuccess, 100, now)
			seedTask(t, db, job.JobID, model.RunStatusFailed, 40, now)
			seedTask(t, db, job.JobID, model.RunStatusRunning, 60, now)

			stats, err := repo.TaskStats(ctx, job.JobID)
			require.NoError(t, err)
			assert.Equal(t, 4, stats.Total)
			assert.Equal(t, 2, stats.Success)
			assert.Equal(t, 1, stats.Failed)
			assert.Equal(t, 1, stats.Running)
			assert.InDelta(t, 75.0, stats.AvgProgress, 0.01)
		})
	})

	t.Run("job without tasks reports zeros", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)

			stats, err := repo.TaskStats(context.Background(), uuid.NewString())
			require.NoError(t, err)
			assert.Equal(t, 0, stats.Total)
			assert.Zero(t, stats.AvgProgress)
		})
	})
}

func TestIngestionJobRepo_ListTasks(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("returns most recently updated first", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			job, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobType: model.IngestModeInit,
				Status:  model.RunStatusRunning,
			})
			require.NoError(t, err)

			base := time.Now().Add(-time.Hour)
			oldest := seedTask(t, db, job.JobID, model.RunStatusSuccess, 100, base)
			newest := seedTask(t, db, job.JobID, model.RunStatusRunning, 50, base.Add(10*time.Minute))

			tasks, err := repo.ListTasks(ctx, job.JobID, 10)
			require.NoError(t, err)
			require.Len(t, tasks, 2)
			assert.Equal(t, newest, tasks[0].TaskID)
			assert.Equal(t, oldest, tasks[1].TaskID)

			limited, err := repo.ListTasks(ctx, job.JobID, 1)
			require.NoError(t, err)
			require.Len(t, limited, 1)
			assert.Equal(t, newest, limited[0].TaskID)
		})
	})
}

func TestIngestionJobRepo_StatusCounts(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("counts jobs per status", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionJobRepo(db)
			ctx := context.Background()

			for range 2 {
				_, err := repo.Create(ctx, core.CreateIngestionJobParams{
					JobType: model.IngestModeIncremental,
					Status:  model.RunStatusQueued,
				})
				require.NoError(t, err)
			}
			_, err := repo.Create(ctx, core.CreateIngestionJobParams{
				JobType: model.IngestModeInit,
				Status:  model.RunStatusRunning,
			})
			require.NoError(t, err)

			counts, err := repo.StatusCounts(ctx)
			require.NoError(t, err)
			assert.Equal(t, 2, counts[string(model.RunStatusQueued)])
			assert.Equal(t, 1, counts[string(model.RunStatusRunning)])
		})
	})
}
