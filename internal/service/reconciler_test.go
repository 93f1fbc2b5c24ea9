package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/model"
	"github.com/tdxstock/ingestd/internal/mocks"
	"go.uber.org/mock/gomock"
)

// 09:00 UTC, so a daily 08:45 anchor has already passed for the day.
var reconTestTime = time.Date(2024, 1, 2, 9, 0, 0, 0, time.UTC)

// stubSubmitter records fired schedules in place of the coordinator.
type stubSubmitter struct {
	mu        sync.Mutex
	err       error
	attempts  int
	testing   []model.TestingSchedule
	ingestion []model.IngestionSchedule
}

func (s *stubSubmitter) FireScheduledTesting(_ context.Context, sched model.TestingSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.testing = append(s.testing, sched)
	return nil
}

func (s *stubSubmitter) FireScheduledIngestion(_ context.Context, sched model.IngestionSchedule) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.attempts++
	if s.err != nil {
		return s.err
	}
	s.ingestion = append(s.ingestion, sched)
	return nil
}

func (s *stubSubmitter) fired() (testing, ingestion int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.testing), len(s.ingestion)
}

type reconcilerFixture struct {
	svc       *ReconcilerService
	testing   *mocks.MockTestingScheduleRepository
	ingestion *mocks.MockIngestionScheduleRepository
	submitter *stubSubmitter
}

func newReconcilerFixture(t *testing.T, ctrl *gomock.Controller) *reconcilerFixture {
	t.Helper()
	f := &reconcilerFixture{
		testing:   mocks.NewMockTestingScheduleRepository(ctrl),
		ingestion: mocks.NewMockIngestionScheduleRepository(ctrl),
		submitter: &stubSubmitter{},
	}
	f.svc = MustNewReconcilerService(ReconcilerOptions{
		TestingSchedules:   f.testing,
		IngestionSchedules: f.ingestion,
		Submitter:          f.submitter,
		TimeProvider:       data.NewFixedTimeProvider(reconTestTime),
	})
	return f
}

func TestNewReconcilerService_MissingDependencies(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	testingRepo := mocks.NewMockTestingScheduleRepository(ctrl)
	ingestionRepo := mocks.NewMockIngestionScheduleRepository(ctrl)
	sub := &stubSubmitter{}

	tests := []struct {
		name string
		opts ReconcilerOptions
		want string
	}{
		{
			name: "testing schedules",
			opts: ReconcilerOptions{IngestionSchedules: ingestionRepo, Submitter: sub},
			want: "TestingScheduleRepository is required",
		},
		{
			name: "ingestion schedules",
			opts: ReconcilerOptions{TestingSchedules: testingRepo, Submitter: sub},
			want: "IngestionScheduleRepository is required",
		},
		{
			name: "submitter",
			opts: ReconcilerOptions{TestingSchedules: testingRepo, IngestionSchedules: ingestionRepo},
			want: "RunSubmitter is required",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, err := NewReconcilerService(tt.opts)
			require.Error(t, err)
			assert.Nil(t, svc)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestReconcilerService_Refresh_RegistersEnabledSchedules(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	testingRows := []model.TestingSchedule{{
		ScheduleID: "ts-1",
		Enabled:    true,
		Frequency:  "daily",
		Options:    json.RawMessage(`{"at": "08:45"}`),
	}}
	ingestionRows := []model.IngestionSchedule{{
		ScheduleID: "is-1",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeIncremental,
		Frequency:  "5m",
		Enabled:    true,
	}}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(testingRows, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return(ingestionRows, nil)
	f.testing.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, update core.ScheduleRunStateUpdate) error {
			assert.Equal(t, "ts-1", update.ScheduleID)
			// The 08:45 anchor already passed today, so the first fire is
			// tomorrow at the anchor.
			if assert.NotNil(t, update.NextRunAt) {
				assert.True(t, update.NextRunAt.Equal(time.Date(2024, 1, 3, 8, 45, 0, 0, time.UTC)))
			}
			return nil
		})
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, update core.ScheduleRunStateUpdate) error {
			assert.Equal(t, "is-1", update.ScheduleID)
			if assert.NotNil(t, update.NextRunAt) {
				assert.True(t, update.NextRunAt.Equal(reconTestTime.Add(5*time.Minute)))
			}
			return nil
		})

	require.NoError(t, f.svc.Refresh(context.Background()))
	assert.Equal(t, 2, f.svc.Triggers())
}

func TestReconcilerService_Refresh_UnchangedRowsKeepTriggers(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.IngestionSchedule{
		ScheduleID: "is-1",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeIncremental,
		Frequency:  "5m",
		Enabled:    true,
		Options:    json.RawMessage(`{"batch_size": 500}`),
	}
	// Same definition, different formatting. The snapshot canonicalizes the
	// options document, so this must not churn the trigger.
	reformatted := row
	reformatted.Options = json.RawMessage(`{ "batch_size" :  500 }`)

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil).Times(2)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{row}, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{reformatted}, nil)
	// Registration writes next_run_at exactly once across both refreshes.
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).Return(nil).Times(1)

	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))
	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, 1, f.svc.Triggers())

	// The original firing time survived the second refresh.
	fired, err := f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestReconcilerService_Refresh_ChangedRowRecreatesTrigger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.IngestionSchedule{
		ScheduleID: "is-1",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeIncremental,
		Frequency:  "5m",
		Enabled:    true,
	}
	edited := row
	edited.Frequency = "1h"

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil).Times(2)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{row}, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{edited}, nil)
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).Return(nil)
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, update core.ScheduleRunStateUpdate) error {
			if assert.NotNil(t, update.NextRunAt) {
				assert.True(t, update.NextRunAt.Equal(reconTestTime.Add(time.Hour)))
			}
			return nil
		})

	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))
	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, 1, f.svc.Triggers())

	// The 5m firing time is gone with the old trigger.
	fired, err := f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	fired, err = f.svc.Tick(ctx, reconTestTime.Add(time.Hour))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)
}

func TestReconcilerService_Refresh_InvalidFrequencyMarksInvalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.IngestionSchedule{
		ScheduleID: "is-1",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeIncremental,
		Frequency:  "fortnightly",
		Enabled:    true,
	}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{row}, nil)
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, update core.ScheduleRunStateUpdate) error {
			assert.Equal(t, "is-1", update.ScheduleID)
			if assert.NotNil(t, update.LastStatus) {
				assert.Equal(t, model.RunStatusInvalid, *update.LastStatus)
			}
			if assert.NotNil(t, update.LastError) {
				assert.Contains(t, *update.LastError, `invalid frequency "fortnightly"`)
			}
			assert.True(t, update.ClearNextRunAt)
			return nil
		})

	require.NoError(t, f.svc.Refresh(context.Background()))
	assert.Equal(t, 0, f.svc.Triggers())
}

func TestReconcilerService_Refresh_InvalidOptionsMarksInvalid(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.TestingSchedule{
		ScheduleID: "ts-1",
		Enabled:    true,
		Frequency:  "daily",
		Options:    json.RawMessage(`{"unknown_flag": 1}`),
	}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return([]model.TestingSchedule{row}, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.testing.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, update core.ScheduleRunStateUpdate) error {
			if assert.NotNil(t, update.LastStatus) {
				assert.Equal(t, model.RunStatusInvalid, *update.LastStatus)
			}
			if assert.NotNil(t, update.LastError) {
				assert.Contains(t, *update.LastError, "invalid options")
			}
			return nil
		})

	require.NoError(t, f.svc.Refresh(context.Background()))
	assert.Equal(t, 0, f.svc.Triggers())
}

func TestReconcilerService_Refresh_ManualFrequencyClearsNextRun(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.IngestionSchedule{
		ScheduleID: "is-backfill",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeInit,
		Frequency:  "manual",
		Enabled:    true,
		Options:    json.RawMessage(`{"start_date": "20200101"}`),
	}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{row}, nil)
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).DoAndReturn(
		func(_ context.Context, update core.ScheduleRunStateUpdate) error {
			assert.Equal(t, "is-backfill", update.ScheduleID)
			assert.True(t, update.ClearNextRunAt)
			assert.Nil(t, update.LastStatus)
			return nil
		})

	require.NoError(t, f.svc.Refresh(context.Background()))
	assert.Equal(t, 0, f.svc.Triggers())
}

func TestReconcilerService_Refresh_VanishedScheduleLosesTrigger(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.IngestionSchedule{
		ScheduleID: "is-1",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeIncremental,
		Frequency:  "5m",
		Enabled:    true,
	}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil).Times(2)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{row}, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).Return(nil)

	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, 1, f.svc.Triggers())

	// Row disabled or deleted: the next refresh cancels its trigger.
	require.NoError(t, f.svc.Refresh(ctx))
	assert.Equal(t, 0, f.svc.Triggers())

	fired, err := f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
}

func TestReconcilerService_Refresh_ListErrorPropagates(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	t.Run("testing listing", func(t *testing.T) {
		f := newReconcilerFixture(t, ctrl)
		f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, errors.New("db down"))

		err := f.svc.Refresh(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "list testing schedules")
	})

	t.Run("ingestion listing", func(t *testing.T) {
		f := newReconcilerFixture(t, ctrl)
		f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
		f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return(nil, errors.New("db down"))

		err := f.svc.Refresh(context.Background())

		require.Error(t, err)
		assert.Contains(t, err.Error(), "list ingestion schedules")
	})
}

func TestReconcilerService_Tick_FiresDueTriggersOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.IngestionSchedule{
		ScheduleID: "is-1",
		Dataset:    "kline_daily_qfq",
		Mode:       model.IngestModeIncremental,
		Frequency:  "5m",
		Enabled:    true,
	}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return([]model.IngestionSchedule{row}, nil)
	f.ingestion.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).Return(nil)

	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))

	fired, err := f.svc.Tick(ctx, reconTestTime.Add(4*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	fired, err = f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	// Already advanced: the same tick time fires nothing more.
	fired, err = f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)

	fired, err = f.svc.Tick(ctx, reconTestTime.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 1, fired)

	_, ingestionFired := f.submitter.fired()
	assert.Equal(t, 2, ingestionFired)
	require.Len(t, f.submitter.ingestion, 2)
	assert.Equal(t, "is-1", f.submitter.ingestion[0].ScheduleID)
	assert.Equal(t, "kline_daily_qfq", f.submitter.ingestion[0].Dataset)
	assert.Equal(t, model.IngestModeIncremental, f.submitter.ingestion[0].Mode)
}

func TestReconcilerService_Tick_FireErrorStillAdvances(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)
	f.submitter.err = errors.New("coordinator refused")

	row := model.TestingSchedule{
		ScheduleID: "ts-1",
		Enabled:    true,
		Frequency:  "5m",
	}

	f.testing.EXPECT().ListEnabled(gomock.Any()).Return([]model.TestingSchedule{row}, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.testing.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).Return(nil)

	ctx := context.Background()
	require.NoError(t, f.svc.Refresh(ctx))

	// The fire fails but the trigger still advances, so a broken schedule
	// retries on its cadence instead of every tick.
	fired, err := f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, f.submitter.attempts)

	fired, err = f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 1, f.submitter.attempts)

	fired, err = f.svc.Tick(ctx, reconTestTime.Add(10*time.Minute))
	require.NoError(t, err)
	assert.Equal(t, 0, fired)
	assert.Equal(t, 2, f.submitter.attempts)
}

func TestReconcilerService_Tick_ContextCanceled(t *testing.T) {
	ctrl := gomock.NewController(t)
	defer ctrl.Finish()

	f := newReconcilerFixture(t, ctrl)

	row := model.TestingSchedule{ScheduleID: "ts-1", Enabled: true, Frequency: "5m"}
	f.testing.EXPECT().ListEnabled(gomock.Any()).Return([]model.TestingSchedule{row}, nil)
	f.ingestion.EXPECT().ListEnabled(gomock.Any()).Return(nil, nil)
	f.testing.EXPECT().UpdateRunState(gomock.Any(), gomock.Any()).Return(nil)

	require.NoError(t, f.svc.Refresh(context.Background()))

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	fired, err := f.svc.Tick(ctx, reconTestTime.Add(5*time.Minute))

	assert.ErrorIs(t, err, context.Canceled)
	assert.Equal(t, 0, fired)
}
