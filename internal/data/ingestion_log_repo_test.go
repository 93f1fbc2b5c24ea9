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
	"github.com/tdxstock/ingestd/internal/testutil"
)

func TestIngestionLogRepo_Append(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("zero timestamp falls back to the repo clock", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			clock := NewFixedTimeProvider(time.Date(2026, 3, 2, 9, 30, 0, 0, time.UTC))
			repo := NewIngestionLogRepoWithTimeProvider(db, clock)
			ctx := context.Background()

			jobID := uuid.NewString()
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID:   jobID,
				Message: "run started",
			}))

			lines, err := repo.TailForJob(ctx, jobID, 10)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.True(t, lines[0].TS.Equal(clock.Now()))
			// Level defaults when the caller leaves it blank.
			assert.Equal(t, "INFO", lines[0].Level)
			assert.Equal(t, "run started", lines[0].Message)
		})
	})

	t.Run("explicit timestamp and level are preserved", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionLogRepo(db)
			ctx := context.Background()

			jobID := uuid.NewString()
			ts := time.Date(2026, 3, 2, 10, 0, 0, 0, time.UTC)
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID:   jobID,
				TS:      ts,
				Level:   "ERROR",
				Message: "script exited with code 2",
			}))

			lines, err := repo.TailForJob(ctx, jobID, 10)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.True(t, lines[0].TS.Equal(ts))
			assert.Equal(t, "ERROR", lines[0].Level)
		})
	})
}

func TestIngestionLogRepo_Tail(t *testing.T) {
	testutil.SkipIfNoTestDB(t)

	t.Run("tails across jobs newest first", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionLogRepo(db)
			ctx := context.Background()

			base := time.Now().Add(-time.Hour)
			jobA := uuid.NewString()
			jobB := uuid.NewString()
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID: jobA, TS: base, Level: "INFO", Message: "first",
			}))
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID: jobB, TS: base.Add(time.Minute), Level: "INFO", Message: "second",
			}))
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID: jobA, TS: base.Add(2 * time.Minute), Level: "WARN", Message: "third",
			}))

			lines, err := repo.Tail(ctx, 2)
			require.NoError(t, err)
			require.Len(t, lines, 2)
			assert.Equal(t, "third", lines[0].Message)
			assert.Equal(t, "second", lines[1].Message)
		})
	})

	t.Run("tail for job filters the stream", func(t *testing.T) {
		testutil.WithTestDB(t, func(db *sql.DB) {
			repo := NewIngestionLogRepo(db)
			ctx := context.Background()

			base := time.Now().Add(-time.Hour)
			jobA := uuid.NewString()
			jobB := uuid.NewString()
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID: jobA, TS: base, Level: "INFO", Message: "mine",
			}))
			require.NoError(t, repo.Append(ctx, core.AppendIngestionLogParams{
				JobID: jobB, TS: base.Add(time.Minute), Level: "INFO", Message: "other",
			}))

			lines, err := repo.TailForJob(ctx, jobA, 10)
			require.NoError(t, err)
			require.Len(t, lines, 1)
			assert.Equal(t, "mine", lines[0].Message)
			assert.Equal(t, jobA, lines[0].JobID)
		})
	})
}
