package schedrunner

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdxstock/ingestd/internal/data"
)

var runnerTestTime = time.Date(2024, 5, 6, 7, 8, 9, 0, time.UTC)

type stubReconciler struct {
	mu         sync.Mutex
	refreshes  int
	ticks      int
	tickTimes  []time.Time
	refreshErr error
	tickErr    error
	fired      int
}

func (s *stubReconciler) Refresh(context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.refreshes++
	return s.refreshErr
}

func (s *stubReconciler) Tick(_ context.Context, now time.Time) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ticks++
	s.tickTimes = append(s.tickTimes, now)
	return s.fired, s.tickErr
}

func (s *stubReconciler) counts() (refreshes, ticks int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.refreshes, s.ticks
}

type stubCoordinator struct {
	mu          sync.Mutex
	started     int
	shutdowns   int
	hadDeadline bool
	shutdownErr error
}

func (s *stubCoordinator) Start(context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.started++
}

func (s *stubCoordinator) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.shutdowns++
	_, s.hadDeadline = ctx.Deadline()
	return s.shutdownErr
}

type recordingSink struct {
	mu     sync.Mutex
	counts map[string]int64
}

func (r *recordingSink) Count(name string, value int64, _ map[string]string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.counts == nil {
		r.counts = make(map[string]int64)
	}
	r.counts[name] += value
}

func (r *recordingSink) Gauge(string, float64, map[string]string)        {}
func (r *recordingSink) Timing(string, time.Duration, map[string]string) {}

func (r *recordingSink) count(name string) int64 {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.counts[name]
}

func runInBackground(t *testing.T, r *Runner, ctx context.Context) <-chan error {
	t.Helper()
	done := make(chan error, 1)
	go func() { done <- r.Run(ctx) }()
	return done
}

func waitRun(t *testing.T, done <-chan error) error {
	t.Helper()
	select {
	case err := <-done:
		return err
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for runner to stop")
		return nil
	}
}

func TestNewRunner(t *testing.T) {
	t.Run("requires a reconciler", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{Coordinator: &stubCoordinator{}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "schedule reconciler is required")
	})

	t.Run("requires a coordinator", func(t *testing.T) {
		_, err := NewRunner(RunnerOptions{Reconciler: &stubReconciler{}})

		require.Error(t, err)
		assert.Contains(t, err.Error(), "run coordinator is required")
	})

	t.Run("applies interval defaults", func(t *testing.T) {
		r, err := NewRunner(RunnerOptions{
			Reconciler:  &stubReconciler{},
			Coordinator: &stubCoordinator{},
		})

		require.NoError(t, err)
		assert.Equal(t, defaultTickInterval, r.tickInterval)
		assert.Equal(t, defaultRefreshInterval, r.refreshInterval)
		assert.Equal(t, defaultShutdownWait, r.shutdownWait)
	})
}

func TestRunnerRun_RefreshesBeforeFirstTick(t *testing.T) {
	reconciler := &stubReconciler{}
	coordinator := &stubCoordinator{}
	r, err := NewRunner(RunnerOptions{
		Reconciler:      reconciler,
		Coordinator:     coordinator,
		TickInterval:    time.Hour,
		RefreshInterval: time.Hour,
		ShutdownWait:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(t, r, ctx)

	require.Eventually(t, func() bool {
		refreshes, _ := reconciler.counts()
		return refreshes == 1
	}, 2*time.Second, 5*time.Millisecond, "initial refresh should happen without waiting for the interval")

	cancel()
	require.NoError(t, waitRun(t, done))

	refreshes, ticks := reconciler.counts()
	assert.Equal(t, 1, refreshes)
	assert.Zero(t, ticks, "hour-long tick interval should never fire in this test")
	assert.Equal(t, 1, coordinator.started)
	assert.Equal(t, 1, coordinator.shutdowns)
	assert.True(t, coordinator.hadDeadline, "shutdown wait should be bounded")
}

func TestRunnerRun_TicksWithProvidedClock(t *testing.T) {
	reconciler := &stubReconciler{fired: 2}
	sink := &recordingSink{}
	r, err := NewRunner(RunnerOptions{
		Reconciler:      reconciler,
		Coordinator:     &stubCoordinator{},
		TickInterval:    10 * time.Millisecond,
		RefreshInterval: time.Hour,
		ShutdownWait:    100 * time.Millisecond,
		TimeProvider:    data.NewFixedTimeProvider(runnerTestTime),
		Metrics:         sink,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(t, r, ctx)

	require.Eventually(t, func() bool {
		_, ticks := reconciler.counts()
		return ticks >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, done))

	reconciler.mu.Lock()
	defer reconciler.mu.Unlock()
	for _, now := range reconciler.tickTimes {
		assert.True(t, now.Equal(runnerTestTime), "tick should pass the provider's clock, got %v", now)
	}
	assert.GreaterOrEqual(t, sink.count("scheduler.tick"), int64(3))
	assert.GreaterOrEqual(t, sink.count("scheduler.tick.fired"), int64(6), "fired count rides its own counter")
}

func TestRunnerRun_PeriodicRefresh(t *testing.T) {
	reconciler := &stubReconciler{}
	r, err := NewRunner(RunnerOptions{
		Reconciler:      reconciler,
		Coordinator:     &stubCoordinator{},
		TickInterval:    time.Hour,
		RefreshInterval: 10 * time.Millisecond,
		ShutdownWait:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(t, r, ctx)

	require.Eventually(t, func() bool {
		refreshes, _ := reconciler.counts()
		return refreshes >= 3
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, done))
}

func TestRunnerRun_SurvivesStoreErrors(t *testing.T) {
	reconciler := &stubReconciler{
		refreshErr: errors.New("db down"),
		tickErr:    errors.New("db still down"),
	}
	r, err := NewRunner(RunnerOptions{
		Reconciler:      reconciler,
		Coordinator:     &stubCoordinator{},
		TickInterval:    10 * time.Millisecond,
		RefreshInterval: 10 * time.Millisecond,
		ShutdownWait:    100 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(t, r, ctx)

	// Both loops keep going after failures instead of stranding schedules.
	require.Eventually(t, func() bool {
		refreshes, ticks := reconciler.counts()
		return refreshes >= 2 && ticks >= 2
	}, 2*time.Second, 5*time.Millisecond)

	cancel()
	require.NoError(t, waitRun(t, done))
}

func TestRunnerRun_CancelReturnsNil(t *testing.T) {
	coordinator := &stubCoordinator{shutdownErr: errors.New("two runs never finished")}
	r, err := NewRunner(RunnerOptions{
		Reconciler:      &stubReconciler{},
		Coordinator:     coordinator,
		TickInterval:    time.Hour,
		RefreshInterval: time.Hour,
		ShutdownWait:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	done := runInBackground(t, r, ctx)
	cancel()

	assert.NoError(t, waitRun(t, done), "plain cancellation is a clean stop even when the drain is incomplete")
	assert.Equal(t, 1, coordinator.shutdowns)
}

func TestRunnerRun_DeadlinePropagates(t *testing.T) {
	r, err := NewRunner(RunnerOptions{
		Reconciler:      &stubReconciler{},
		Coordinator:     &stubCoordinator{},
		TickInterval:    time.Hour,
		RefreshInterval: time.Hour,
		ShutdownWait:    50 * time.Millisecond,
	})
	require.NoError(t, err)

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err = waitRun(t, runInBackground(t, r, ctx))

	assert.ErrorIs(t, err, context.DeadlineExceeded)
}
