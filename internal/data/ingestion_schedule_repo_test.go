package data

import (
	"context"
	"database/sql"
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

func TestIngestionScheduleRepo_Upsert(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("blank id creates the target's row", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)

			sched, err := repo.Upsert(context.Background(), core.UpsertIngestionScheduleParams{
				Dataset:   "kline_daily_qfq",
				Mode:      model.IngestModeIncremental,
				Enabled:   true,
				Frequency: "daily",
				Options:   []byte(`{"at":"17:30"}`),
			})
			require.NoError(t, err)
			assert.NotEmpty(t, sched.ScheduleID)
			assert.Equal(t, "kline_daily_qfq", sched.Dataset)
			assert.Equal(t, model.IngestModeIncremental, sched.Mode)
			assert.JSONEq(t, `{"at":"17:30"}`, string(sched.Options))
		})
	})

	t.Run("blank id resolves to the existing target row", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)
			ctx := context.Background()

			first, err := repo.Upsert(ctx, core.UpsertIngestionScheduleParams{
				Dataset:   "kline_daily_qfq",
				Mode:      model.IngestModeIncremental,
				Enabled:   true,
				Frequency: "daily",
			})
			require.NoError(t, err)

			second, err := repo.Upsert(ctx, core.UpsertIngestionScheduleParams{
				Dataset:   "kline_daily_qfq",
				Mode:      model.IngestModeIncremental,
				Enabled:   false,
				Frequency: "weekly",
			})
			require.NoError(t, err)
			assert.Equal(t, first.ScheduleID, second.ScheduleID)
			assert.Equal(t, "weekly", second.Frequency)
			assert.False(t, second.Enabled)

			all, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	})

	t.Run("explicit id moving onto an owned target conflicts", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)
			ctx := context.Background()

			_, err := repo.Upsert(ctx, core.UpsertIngestionScheduleParams{
				Dataset:   "kline_daily_qfq",
				Mode:      model.IngestModeIncremental,
				Enabled:   true,
				Frequency: "daily",
			})
			require.NoError(t, err)

			other, err := repo.Upsert(ctx, core.UpsertIngestionScheduleParams{
				Dataset:   "board_moneyflow",
				Mode:      model.IngestModeIncremental,
				Enabled:   true,
				Frequency: "1h",
			})
			require.NoError(t, err)

			_, err = repo.Upsert(ctx, testutil.NewIngestionSchedule().
				WithID(other.ScheduleID).
				WithDataset("kline_daily_qfq").
				Build())
			assert.True(t, apperrors.IsConflict(err))
		})
	})
}

func TestIngestionScheduleRepo_FindByTarget(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("resolves the unique dataset and mode pair", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, testutil.BackfillSchedule())
			require.NoError(t, err)

			// Same dataset under the other mode must not shadow the lookup.
			_, err = repo.Upsert(ctx, testutil.DailyKlineSchedule())
			require.NoError(t, err)

			got, err := repo.FindByTarget(ctx, "kline_daily_qfq", model.IngestModeInit)
			require.NoError(t, err)
			assert.Equal(t, created.ScheduleID, got.ScheduleID)
		})
	})

	t.Run("missing target is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)

			_, err := repo.FindByTarget(context.Background(), "no_such_dataset", model.IngestModeIncremental)
			assert.True(t, apperrors.IsNotFound(err))
		})
	})
}

func TestIngestionScheduleRepo_List(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("orders by dataset then mode and filters enabled", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)
			ctx := context.Background()

			_, err := repo.Upsert(ctx, testutil.NewIngestionSchedule().WithEnabled(false).Build())
			require.NoError(t, err)
			_, err = repo.Upsert(ctx, testutil.MinuteKlineSchedule())
			require.NoError(t, err)
			_, err = repo.Upsert(ctx, testutil.NewIngestionSchedule().
				WithDataset("board_moneyflow").
				WithFrequency("1h").
				Build())
			require.NoError(t, err)

			all, err := repo.List(ctx)
			require.NoError(t, err)
			require.Len(t, all, 3)
			assert.Equal(t, "board_moneyflow", all[0].Dataset)
			assert.Equal(t, "kline_daily_qfq", all[1].Dataset)
			assert.Equal(t, "kline_minute_raw", all[2].Dataset)

			active, err := repo.ListEnabled(ctx)
			require.NoError(t, err)
			require.Len(t, active, 2)
			assert.Equal(t, "board_moneyflow", active[0].Dataset)
			assert.Equal(t, "kline_minute_raw", active[1].Dataset)
		})
	})
}

func TestIngestionScheduleRepo_RunState(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("set enabled and run state writes land", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, testutil.NewIngestionSchedule().WithFrequency("5m").Build())
			require.NoError(t, err)

			toggled, err := repo.SetEnabled(ctx, created.ScheduleID, false)
			require.NoError(t, err)
			assert.False(t, toggled.Enabled)

			lastRun := time.Date(2026, 3, 2, 9, 35, 0, 0, time.UTC)
			status := model.RunStatusFailed
			lastErr := "script exited with code 2"
			require.NoError(t, repo.UpdateRunState(ctx, core.ScheduleRunStateUpdate{
				ScheduleID: created.ScheduleID,
				LastRunAt:  &lastRun,
				LastStatus: &status,
				LastError:  &lastErr,
			}))

			got, err := repo.GetByID(ctx, created.ScheduleID)
			require.NoError(t, err)
			require.NotNil(t, got.LastRunAt)
			assert.True(t, got.LastRunAt.Equal(lastRun))
			require.NotNil(t, got.LastStatus)
			assert.Equal(t, string(model.RunStatusFailed), *got.LastStatus)
			require.NotNil(t, got.LastError)
			assert.Equal(t, lastErr, *got.LastError)
		})
	})

	t.Run("missing schedule is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionScheduleRepo(db)
			ctx := context.Background()

			_, err := repo.SetEnabled(ctx, uuid.NewString(), true)
			assert.True(t, apperrors.IsNotFound(err))

			err = repo.UpdateRunState(ctx, core.ScheduleRunStateUpdate{ScheduleID: uuid.NewString()})
			assert.True(t, apperrors.IsNotFound(err))
		})
	})
}
