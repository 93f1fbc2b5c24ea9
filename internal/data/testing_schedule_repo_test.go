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

func TestTestingScheduleRepo_Upsert(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("blank id generates a new schedule", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)

			sched, err := repo.Upsert(context.Background(), core.UpsertTestingScheduleParams{
				Enabled:   true,
				Frequency: "daily",
				Options:   []byte(`{"at":"17:30"}`),
			})
			require.NoError(t, err)
			assert.NotEmpty(t, sched.ScheduleID)
			assert.True(t, sched.Enabled)
			assert.Equal(t, "daily", sched.Frequency)
			assert.JSONEq(t, `{"at":"17:30"}`, string(sched.Options))
			assert.Nil(t, sched.LastRunAt)
			assert.Nil(t, sched.NextRunAt)
		})
	})

	t.Run("existing id updates in place", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, core.UpsertTestingScheduleParams{
				Enabled:   true,
				Frequency: "daily",
			})
			require.NoError(t, err)

			updated, err := repo.Upsert(ctx, testutil.NewTestingSchedule().
				WithID(created.ScheduleID).
				WithEnabled(false).
				WithFrequency("weekly").
				Build())
			require.NoError(t, err)
			assert.Equal(t, created.ScheduleID, updated.ScheduleID)
			assert.False(t, updated.Enabled)
			assert.Equal(t, "weekly", updated.Frequency)

			all, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 1)
		})
	})

	t.Run("empty options default to an empty document", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)

			sched, err := repo.Upsert(context.Background(), core.UpsertTestingScheduleParams{
				Enabled:   true,
				Frequency: "manual",
			})
			require.NoError(t, err)
			assert.JSONEq(t, `{}`, string(sched.Options))
		})
	})
}

func TestTestingScheduleRepo_GetAndList(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("get by id round trips", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, testutil.NewTestingSchedule().
				WithFrequency("5m").
				WithOptions(`{"at": "09:15"}`).
				Build())
			require.NoError(t, err)

			got, err := repo.GetByID(ctx, created.ScheduleID)
			require.NoError(t, err)
			assert.Equal(t, created.ScheduleID, got.ScheduleID)
			assert.Equal(t, "5m", got.Frequency)
			assert.JSONEq(t, `{"at": "09:15"}`, string(got.Options))
		})
	})

	t.Run("missing schedule is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)

			_, err := repo.GetByID(context.Background(), uuid.NewString())
			assert.True(t, apperrors.IsNotFound(err))
		})
	})

	t.Run("list enabled filters disabled rows", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			clock := NewFixedTimeProvider(time.Date(2026, 3, 2, 9, 0, 0, 0, time.UTC))
			repo := NewTestingScheduleRepoWithTimeProvider(db, clock)
			ctx := context.Background()

			enabled, err := repo.Upsert(ctx, core.UpsertTestingScheduleParams{
				Enabled:   true,
				Frequency: "daily",
			})
			require.NoError(t, err)

			clock.AddTime(time.Second)
			_, err = repo.Upsert(ctx, core.UpsertTestingScheduleParams{
				Enabled:   false,
				Frequency: "weekly",
			})
			require.NoError(t, err)

			all, err := repo.List(ctx)
			require.NoError(t, err)
			assert.Len(t, all, 2)
			// created_at ascending, so the enabled row comes first.
			assert.Equal(t, enabled.ScheduleID, all[0].ScheduleID)

			active, err := repo.ListEnabled(ctx)
			require.NoError(t, err)
			require.Len(t, active, 1)
			assert.Equal(t, enabled.ScheduleID, active[0].ScheduleID)
		})
	})
}

func TestTestingScheduleRepo_SetEnabled(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("toggles and returns the updated row", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, testutil.NewTestingSchedule().WithFrequency("1h").Build())
			require.NoError(t, err)

			toggled, err := repo.SetEnabled(ctx, created.ScheduleID, false)
			require.NoError(t, err)
			assert.False(t, toggled.Enabled)

			got, err := repo.GetByID(ctx, created.ScheduleID)
			require.NoError(t, err)
			assert.False(t, got.Enabled)
		})
	})

	t.Run("missing schedule is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)

			_, err := repo.SetEnabled(context.Background(), uuid.NewString(), true)
			assert.True(t, apperrors.IsNotFound(err))
		})
	})
}

func TestTestingScheduleRepo_UpdateRunState(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("writes only the named fields", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, testutil.NewTestingSchedule().Build())
			require.NoError(t, err)

			lastRun := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
			nextRun := lastRun.Add(24 * time.Hour)
			status := model.RunStatusSuccess
			require.NoError(t, repo.UpdateRunState(ctx, core.ScheduleRunStateUpdate{
				ScheduleID: created.ScheduleID,
				LastRunAt:  &lastRun,
				NextRunAt:  &nextRun,
				LastStatus: &status,
			}))

			got, err := repo.GetByID(ctx, created.ScheduleID)
			require.NoError(t, err)
			require.NotNil(t, got.LastRunAt)
			assert.True(t, got.LastRunAt.Equal(lastRun))
			require.NotNil(t, got.NextRunAt)
			assert.True(t, got.NextRunAt.Equal(nextRun))
			require.NotNil(t, got.LastStatus)
			assert.Equal(t, string(model.RunStatusSuccess), *got.LastStatus)
			assert.Nil(t, got.LastError)
		})
	})

	t.Run("clear wins over a next run value", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)
			ctx := context.Background()

			created, err := repo.Upsert(ctx, core.UpsertTestingScheduleParams{
				Enabled:   true,
				Frequency: "manual",
			})
			require.NoError(t, err)

			nextRun := time.Now().Add(time.Hour)
			require.NoError(t, repo.UpdateRunState(ctx, core.ScheduleRunStateUpdate{
				ScheduleID: created.ScheduleID,
				NextRunAt:  &nextRun,
			}))

			require.NoError(t, repo.UpdateRunState(ctx, core.ScheduleRunStateUpdate{
				ScheduleID:     created.ScheduleID,
				NextRunAt:      &nextRun,
				ClearNextRunAt: true,
			}))

			got, err := repo.GetByID(ctx, created.ScheduleID)
			require.NoError(t, err)
			assert.Nil(t, got.NextRunAt)
		})
	})

	t.Run("missing schedule is not found", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewTestingScheduleRepo(db)

			err := repo.UpdateRunState(context.Background(), core.ScheduleRunStateUpdate{
				ScheduleID: uuid.NewString(),
			})
			assert.True(t, apperrors.IsNotFound(err))
		})
	})
}
