package service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"math"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

// StatsCacheKey is the cache key the aggregate stats snapshot is stored
// under. Operational tooling deletes it to force a recompute.
const StatsCacheKey = "ingestd:stats"

const (
	statusLogLimit   = 5
	statusErrorLimit = 20

	statsWindow = 24 * time.Hour
)

// JobStatusService aggregates job progress for UI polling. Every call
// recomputes from the store; the UI polls a few times per second and the
// queries are cheap single-job aggregates.
type JobStatusService struct {
	jobs         core.IngestionJobRepository
	runs         core.IngestionRunRepository
	logs         core.IngestionLogRepository
	cache        core.CacheRepository
	statsTTL     time.Duration
	timeProvider data.TimeProvider
	logger       *slog.Logger
}

// JobStatusOptions holds the dependencies for creating a JobStatusService.
// Cache is optional; when set, the aggregate stats view is served through it
// with StatsTTL.
type JobStatusOptions struct {
	Jobs         core.IngestionJobRepository
	Runs         core.IngestionRunRepository
	Logs         core.IngestionLogRepository
	Cache        core.CacheRepository
	StatsTTL     time.Duration
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// NewJobStatusService constructs a new JobStatusService.
func NewJobStatusService(opts JobStatusOptions) (*JobStatusService, error) {
	switch {
	case opts.Jobs == nil:
		return nil, errors.New("IngestionJobRepository is required")
	case opts.Runs == nil:
		return nil, errors.New("IngestionRunRepository is required")
	case opts.Logs == nil:
		return nil, errors.New("IngestionLogRepository is required")
	}

	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	if opts.StatsTTL <= 0 {
		opts.StatsTTL = 30 * time.Second
	}

	return &JobStatusService{
		jobs:         opts.Jobs,
		runs:         opts.Runs,
		logs:         opts.Logs,
		cache:        opts.Cache,
		statsTTL:     opts.StatsTTL,
		timeProvider: opts.TimeProvider,
		logger:       opts.Logger,
	}, nil
}

// MustNewJobStatusService constructs a new JobStatusService and panics on
// error.
func MustNewJobStatusService(opts JobStatusOptions) *JobStatusService {
	svc, err := NewJobStatusService(opts)
	if err != nil {
		panic(err) //nolint:forbidigo // Must constructor fails fast when dependencies are invalid during startup
	}
	return svc
}

// GetJobStatus builds the polling document for one job: terminalness, a
// single percent figure, counters, recent logs, and sampled errors. The
// independent reads run concurrently.
func (s *JobStatusService) GetJobStatus(ctx context.Context, jobID string) (*model.JobStatusReport, error) {
	var (
		job     *model.IngestionJob
		stats   *model.JobTaskStats
		logs    []model.IngestionLogEntry
		samples []model.IngestionError
	)

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		job, err = s.jobs.GetByID(gctx, jobID)
		return err
	})
	g.Go(func() error {
		var err error
		stats, err = s.jobs.TaskStats(gctx, jobID)
		return err
	})
	g.Go(func() error {
		var err error
		logs, err = s.logs.TailForJob(gctx, jobID, statusLogLimit)
		return err
	})
	g.Go(func() error {
		var err error
		samples, err = s.runs.ErrorSamplesForJob(gctx, jobID, statusErrorLimit)
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, err
	}

	summary := decodeSummary(job.Summary)
	report := &model.JobStatusReport{
		JobID:      job.JobID,
		Status:     job.Status,
		Percent:    computePercent(stats, summary),
		Counters:   buildCounters(stats, summary),
		Summary:    summary,
		Logs:       logs,
		Errors:     samples,
		CreatedAt:  job.CreatedAt,
		StartedAt:  job.StartedAt,
		FinishedAt: job.FinishedAt,
	}
	return report, nil
}

// Stats builds the aggregate jobs view: per-status counts plus the run
// count over the trailing 24 hours. When a cache is configured the view is
// served read-through; cache trouble falls back to the store.
func (s *JobStatusService) Stats(ctx context.Context) (*model.JobStats, error) {
	if s.cache != nil {
		if cached, err := s.cache.Get(ctx, StatsCacheKey); err != nil {
			s.logger.WarnContext(ctx, "stats cache read failed", "error", err)
		} else if cached != nil {
			var stats model.JobStats
			if err := json.Unmarshal(cached, &stats); err == nil {
				return &stats, nil
			}
			s.logger.WarnContext(ctx, "stats cache entry malformed, recomputing")
		}
	}

	stats, err := s.computeStats(ctx)
	if err != nil {
		return nil, err
	}

	if s.cache != nil {
		if raw, err := json.Marshal(stats); err == nil {
			if err := s.cache.Set(ctx, StatsCacheKey, raw, s.statsTTL); err != nil {
				s.logger.WarnContext(ctx, "stats cache write failed", "error", err)
			}
		}
	}
	return stats, nil
}

func (s *JobStatusService) computeStats(ctx context.Context) (*model.JobStats, error) {
	now := s.timeProvider.Now()

	var (
		counts map[string]int
		runs   int
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		counts, err = s.jobs.StatusCounts(gctx)
		return err
	})
	g.Go(func() error {
		var err error
		runs, err = s.runs.CountSince(gctx, now.Add(-statsWindow))
		return err
	})
	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("compute job stats: %w", err)
	}

	return &model.JobStats{
		Jobs:        counts,
		RunsLast24h: runs,
		GeneratedAt: now,
	}, nil
}

// computePercent resolves a single progress figure for a job.
//
// Precedence: task counts win once any task is done; otherwise the average
// task progress; otherwise the summary's code counters; otherwise its day
// counters; otherwise zero.
func computePercent(stats *model.JobTaskStats, summary map[string]any) int {
	if stats != nil && stats.Total > 0 {
		if done := stats.Done(); done > 0 {
			return int(math.Round(100 * float64(done) / float64(stats.Total)))
		}
		return int(math.Round(stats.AvgProgress))
	}

	if totalCodes := summaryCodeCounter(summary, "total_codes"); totalCodes > 0 {
		done := summaryCodeCounter(summary, "success_codes") + summaryCodeCounter(summary, "failed_codes")
		return int(math.Round(100 * done / totalCodes))
	}

	if totalDays := summaryNumber(summary, "total_days"); totalDays > 0 {
		return int(math.Round(100 * summaryNumber(summary, "done_days") / totalDays))
	}

	return 0
}

// buildCounters derives the counters block: task-derived whenever task rows
// exist, summary-derived otherwise. Row and code totals always come from
// the summary since task rows do not carry them.
func buildCounters(stats *model.JobTaskStats, summary map[string]any) model.JobCounters {
	var counters model.JobCounters
	if stats != nil && stats.Total > 0 {
		counters.Total = stats.Total
		counters.Success = stats.Success
		counters.Failed = stats.Failed
		counters.Running = stats.Running
		counters.Done = stats.Done()
	} else {
		counters.Total = int(summaryCodeCounter(summary, "total_codes"))
		counters.Success = int(summaryCodeCounter(summary, "success_codes"))
		counters.Failed = int(summaryCodeCounter(summary, "failed_codes"))
		counters.Done = counters.Success + counters.Failed
	}
	if pending := counters.Total - counters.Done - counters.Running; pending > 0 {
		counters.Pending = pending
	}
	counters.InsertedRows = int64(summaryNumber(summary, "inserted_rows"))
	counters.SuccessCodes = int64(summaryCodeCounter(summary, "success_codes"))
	return counters
}

func decodeSummary(raw json.RawMessage) map[string]any {
	if len(raw) == 0 {
		return nil
	}
	var summary map[string]any
	if err := json.Unmarshal(raw, &summary); err != nil {
		return nil
	}
	return summary
}

// summaryCodeCounter reads a code counter from the summary, falling back to
// the nested stats object the ingestion scripts sometimes report under.
func summaryCodeCounter(summary map[string]any, key string) float64 {
	if v := summaryNumber(summary, key); v != 0 {
		return v
	}
	if nested, ok := summary["stats"].(map[string]any); ok {
		return summaryNumber(nested, key)
	}
	return 0
}

func summaryNumber(summary map[string]any, key string) float64 {
	switch v := summary[key].(type) {
	case float64:
		return v
	case int:
		return float64(v)
	case int64:
		return float64(v)
	case json.Number:
		f, _ := v.Float64()
		return f
	default:
		return 0
	}
}
