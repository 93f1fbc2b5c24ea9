package service

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdxstock/ingestd/config"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

// mockReaperRepo is a simple mock implementation for testing.
type mockReaperRepo struct {
	failTestingRunsCalled int
	failTestingRunsCount  int64
	failTestingRunsMaxAge time.Duration
	failTestingRunsError  error

	failIngestionJobsCalled int
	failIngestionJobsCount  int64
	failIngestionJobsMaxAge time.Duration
	failIngestionJobsError  error

	deleteTestingRunsCalls  map[model.RunStatus]int
	deleteTestingRunsCounts map[model.RunStatus]int64
	deleteTestingRunsError  error

	deleteIngestionJobsCalls  map[model.RunStatus]int
	deleteIngestionJobsCounts map[model.RunStatus]int64
	deleteIngestionJobsError  error

	deleteLogsCalled int
	deleteLogsCount  int64
	deleteLogsError  error
}

func (m *mockReaperRepo) FailStaleTestingRuns(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	m.failTestingRunsCalled++
	m.failTestingRunsMaxAge = maxAge
	if m.failTestingRunsError != nil {
		return 0, m.failTestingRunsError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.failTestingRunsCalled == 1 {
		return m.failTestingRunsCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) FailStaleIngestionJobs(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	m.failIngestionJobsCalled++
	m.failIngestionJobsMaxAge = maxAge
	if m.failIngestionJobsError != nil {
		return 0, m.failIngestionJobsError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.failIngestionJobsCalled == 1 {
		return m.failIngestionJobsCount, nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldTestingRuns(
	ctx context.Context,
	params core.DeleteOldRunsParams,
) (int64, error) {
	if m.deleteTestingRunsCalls == nil {
		m.deleteTestingRunsCalls = make(map[model.RunStatus]int)
	}
	if m.deleteTestingRunsCounts == nil {
		m.deleteTestingRunsCounts = make(map[model.RunStatus]int64)
	}

	m.deleteTestingRunsCalls[params.Status]++
	if m.deleteTestingRunsError != nil {
		return 0, m.deleteTestingRunsError
	}

	// Return count on the first call per status, then 0 to simulate batch exhaustion
	if m.deleteTestingRunsCalls[params.Status] == 1 {
		return m.deleteTestingRunsCounts[params.Status], nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldIngestionJobs(
	ctx context.Context,
	params core.DeleteOldRunsParams,
) (int64, error) {
	if m.deleteIngestionJobsCalls == nil {
		m.deleteIngestionJobsCalls = make(map[model.RunStatus]int)
	}
	if m.deleteIngestionJobsCounts == nil {
		m.deleteIngestionJobsCounts = make(map[model.RunStatus]int64)
	}

	m.deleteIngestionJobsCalls[params.Status]++
	if m.deleteIngestionJobsError != nil {
		return 0, m.deleteIngestionJobsError
	}

	// Return count on the first call per status, then 0 to simulate batch exhaustion
	if m.deleteIngestionJobsCalls[params.Status] == 1 {
		return m.deleteIngestionJobsCounts[params.Status], nil
	}
	return 0, nil
}

func (m *mockReaperRepo) DeleteOldIngestionLogs(
	ctx context.Context,
	maxAge time.Duration,
	batchSize int,
) (int64, error) {
	m.deleteLogsCalled++
	if m.deleteLogsError != nil {
		return 0, m.deleteLogsError
	}
	// Return count on first call, then 0 to simulate batch exhaustion
	if m.deleteLogsCalled == 1 {
		return m.deleteLogsCount, nil
	}
	return 0, nil
}

func reaperTestConfig() config.ReaperConfig {
	return config.ReaperConfig{
		Interval:        5 * time.Minute,
		StaleRunMaxAge:  6 * time.Hour,
		CompletedMaxAge: 30 * 24 * time.Hour,
		FailedMaxAge:    30 * 24 * time.Hour,
		LogsMaxAge:      15 * 24 * time.Hour,
		BatchSize:       1000,
	}
}

func TestNewReaperService(t *testing.T) {
	t.Run("creates service with valid options", func(t *testing.T) {
		svc, err := NewReaperService(ReaperServiceOptions{
			Repo:   &mockReaperRepo{},
			Config: reaperTestConfig(),
			Logger: slog.Default(),
		})

		require.NoError(t, err)
		assert.NotNil(t, svc)
	})

	t.Run("returns error when repo is nil", func(t *testing.T) {
		_, err := NewReaperService(ReaperServiceOptions{
			Repo:   nil,
			Config: reaperTestConfig(),
		})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "ReaperRepository is required")
	})
}

func TestReaperService_runCleanup(t *testing.T) {
	t.Run("runs all cleanup operations successfully", func(t *testing.T) {
		repo := &mockReaperRepo{
			failTestingRunsCount:   5,
			failIngestionJobsCount: 3,
			deleteTestingRunsCounts: map[model.RunStatus]int64{
				model.RunStatusSuccess: 10,
				model.RunStatusFailed:  4,
			},
			deleteIngestionJobsCounts: map[model.RunStatus]int64{
				model.RunStatusSuccess: 7,
				model.RunStatusFailed:  2,
			},
			deleteLogsCount: 100,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})

		ctx := context.Background()
		err := svc.runCleanup(ctx)

		require.NoError(t, err)
		// Each operation is called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.failTestingRunsCalled)
		assert.Equal(t, 2, repo.failIngestionJobsCalled)
		assert.Equal(t, 2, repo.deleteTestingRunsCalls[model.RunStatusSuccess])
		assert.Equal(t, 2, repo.deleteTestingRunsCalls[model.RunStatusFailed])
		assert.Equal(t, 2, repo.deleteIngestionJobsCalls[model.RunStatusSuccess])
		assert.Equal(t, 2, repo.deleteIngestionJobsCalls[model.RunStatusFailed])
		assert.Equal(t, 2, repo.deleteLogsCalled)
	})

	t.Run("continues on partial errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			failTestingRunsError:   errors.New("fail error"),
			failIngestionJobsCount: 3,
			deleteLogsCount:        10,
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})

		ctx := context.Background()
		err := svc.runCleanup(ctx)

		// Should return error but still call the remaining cleanup methods
		require.Error(t, err)
		// FailStaleTestingRuns called once (returns error immediately)
		assert.Equal(t, 1, repo.failTestingRunsCalled)
		assert.Equal(t, 2, repo.failIngestionJobsCalled)
		assert.Equal(t, 1, repo.deleteTestingRunsCalls[model.RunStatusSuccess])
		assert.Equal(t, 1, repo.deleteTestingRunsCalls[model.RunStatusFailed])
		assert.Equal(t, 2, repo.deleteLogsCalled)
	})
}

func TestReaperService_Run(t *testing.T) {
	t.Run("stops on context cancellation", func(t *testing.T) {
		repo := &mockReaperRepo{}
		cfg := reaperTestConfig()
		cfg.Interval = 100 * time.Millisecond

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx, cancel := context.WithCancel(context.Background())

		// Run in goroutine
		done := make(chan error, 1)
		go func() {
			done <- svc.Run(ctx)
		}()

		// Wait a bit to ensure at least one cleanup runs
		time.Sleep(150 * time.Millisecond)

		// Cancel context
		cancel()

		// Wait for Run to return
		select {
		case err := <-done:
			// Should return nil on graceful shutdown
			require.NoError(t, err)
		case <-time.After(1 * time.Second):
			t.Fatal("Run did not stop after context cancellation")
		}

		// Verify cleanup was called at least once (initial + maybe one tick)
		assert.GreaterOrEqual(t, repo.failTestingRunsCalled, 1)
	})

	t.Run("continues running despite cleanup errors", func(t *testing.T) {
		repo := &mockReaperRepo{
			failTestingRunsError: errors.New("test error"),
		}
		cfg := reaperTestConfig()
		cfg.Interval = 50 * time.Millisecond

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
		defer cancel()

		err := svc.Run(ctx)

		// Should return context deadline exceeded, not the cleanup error
		require.Error(t, err)
		require.ErrorIs(t, err, context.DeadlineExceeded)

		// Verify cleanup was called multiple times despite errors
		assert.GreaterOrEqual(t, repo.failTestingRunsCalled, 2)
	})
}

func TestReaperService_failStaleTestingRuns(t *testing.T) {
	t.Run("calls repo with configured max age", func(t *testing.T) {
		repo := &mockReaperRepo{
			failTestingRunsCount: 3,
		}
		cfg := reaperTestConfig()
		cfg.StaleRunMaxAge = 2 * time.Hour

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx := context.Background()
		count, err := svc.failStaleTestingRuns(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(3), count)
		assert.Equal(t, 2*time.Hour, repo.failTestingRunsMaxAge)
		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.failTestingRunsCalled)
	})
}

func TestReaperService_failStaleIngestionJobs(t *testing.T) {
	t.Run("calls repo with configured max age", func(t *testing.T) {
		repo := &mockReaperRepo{
			failIngestionJobsCount: 4,
		}
		cfg := reaperTestConfig()
		cfg.StaleRunMaxAge = 3 * time.Hour

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: cfg,
		})

		ctx := context.Background()
		count, err := svc.failStaleIngestionJobs(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(4), count)
		assert.Equal(t, 3*time.Hour, repo.failIngestionJobsMaxAge)
		// Called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.failIngestionJobsCalled)
	})
}

func TestReaperService_deleteOldCompletedRuns(t *testing.T) {
	t.Run("sums deletions across tables", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteTestingRunsCounts: map[model.RunStatus]int64{
				model.RunStatusSuccess: 5,
			},
			deleteIngestionJobsCounts: map[model.RunStatus]int64{
				model.RunStatusSuccess: 3,
			},
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})

		ctx := context.Background()
		count, err := svc.deleteOldCompletedRuns(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(8), count)
		// Each table called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.deleteTestingRunsCalls[model.RunStatusSuccess])
		assert.Equal(t, 2, repo.deleteIngestionJobsCalls[model.RunStatusSuccess])
		// The failed retention window is a separate step
		assert.Equal(t, 0, repo.deleteTestingRunsCalls[model.RunStatusFailed])
	})
}

func TestReaperService_deleteOldFailedRuns(t *testing.T) {
	t.Run("sums deletions across tables", func(t *testing.T) {
		repo := &mockReaperRepo{
			deleteTestingRunsCounts: map[model.RunStatus]int64{
				model.RunStatusFailed: 6,
			},
			deleteIngestionJobsCounts: map[model.RunStatus]int64{
				model.RunStatusFailed: 2,
			},
		}

		svc := MustNewReaperService(ReaperServiceOptions{
			Repo:   repo,
			Config: reaperTestConfig(),
		})

		ctx := context.Background()
		count, err := svc.deleteOldFailedRuns(ctx)

		require.NoError(t, err)
		assert.Equal(t, int64(8), count)
		// Each table called twice: once returning count, once returning 0
		assert.Equal(t, 2, repo.deleteTestingRunsCalls[model.RunStatusFailed])
		assert.Equal(t, 2, repo.deleteIngestionJobsCalls[model.RunStatusFailed])
	})
}
