package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"
	"time"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
)

type statusOptions struct {
	Dataset         string
	Limit           int
	ShowJobs        bool
	ShowTasks       bool
	ShowErrors      bool
	ShowCheckpoints bool
}

const taskDisplayLimit = 50

func parseStatusFlags(args []string) (statusOptions, error) {
	fs := flag.NewFlagSet("status", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts statusOptions
	fs.StringVar(&opts.Dataset, "dataset", "", "Filter runs by dataset")
	fs.IntVar(&opts.Limit, "limit", 20, "Maximum runs to display")
	fs.BoolVar(&opts.ShowJobs, "show-jobs", false, "Include the job rows referenced by the listed runs")
	fs.BoolVar(&opts.ShowTasks, "show-tasks", false, "Include per-security task rows (implies --show-jobs)")
	fs.BoolVar(&opts.ShowErrors, "show-errors", false, "Include recent error samples")
	fs.BoolVar(&opts.ShowCheckpoints, "show-checkpoints", false, "Include resume checkpoints for the listed runs")

	if err := fs.Parse(args); err != nil {
		return statusOptions{}, err
	}

	if opts.Limit <= 0 {
		return statusOptions{}, errors.New("--limit must be greater than zero")
	}
	if opts.ShowTasks {
		opts.ShowJobs = true
	}

	return opts, nil
}

func runStatus(cmdCtx *commandContext, args []string) error {
	opts, err := parseStatusFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultQueryTimeout, func(ctx context.Context, db *sql.DB) error {
		runRepo := data.NewIngestionRunRepo(db)
		runs, listErr := runRepo.ListRecent(ctx, core.ListIngestionRunsParams{
			Dataset: opts.Dataset,
			Limit:   opts.Limit,
		})
		if listErr != nil {
			return fmt.Errorf("list ingestion runs: %w", listErr)
		}

		if printErr := printIngestionRuns(runs, opts.Dataset); printErr != nil {
			return printErr
		}

		if opts.ShowJobs {
			jobIDs := collectJobIDs(runs)
			if jobsErr := printRunJobs(ctx, data.NewIngestionJobRepo(db), jobIDs, opts.ShowTasks); jobsErr != nil {
				return jobsErr
			}
		}

		if opts.ShowErrors {
			if errsErr := printRecentErrors(ctx, runRepo, opts.Limit); errsErr != nil {
				return errsErr
			}
		}

		if opts.ShowCheckpoints {
			if cpErr := printRunCheckpoints(ctx, runRepo, runs); cpErr != nil {
				return cpErr
			}
		}

		return nil
	})
}

func printIngestionRuns(runs []model.IngestionRun, dataset string) error {
	title := "Recent Ingestion Runs"
	if dataset != "" {
		title = fmt.Sprintf("Recent Ingestion Runs (dataset %s)", dataset)
	}
	if err := writef(os.Stdout, "\n%s\n", title); err != nil {
		return fmt.Errorf("write runs title: %w", err)
	}
	if len(runs) == 0 {
		if err := writeln(os.Stdout, "(no runs found)"); err != nil {
			return fmt.Errorf("write empty runs notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Run\tMode\tDataset\tStatus\tStarted\tDuration"); err != nil {
		return fmt.Errorf("write runs header: %w", err)
	}
	for _, run := range runs {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\t%s\n",
			run.RunID,
			run.Mode,
			renderStringPtr(run.Dataset),
			run.Status,
			renderTimePtr(run.StartedAt),
			renderRunDuration(run.StartedAt, run.FinishedAt),
		); err != nil {
			return fmt.Errorf("write run row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush runs table: %w", err)
	}
	return nil
}

// collectJobIDs extracts the distinct job ids carried in run params,
// preserving run order.
func collectJobIDs(runs []model.IngestionRun) []string {
	seen := make(map[string]bool, len(runs))
	ids := make([]string, 0, len(runs))
	for _, run := range runs {
		id, ok := jobIDFromParams(run.Params)
		if !ok || seen[id] {
			continue
		}
		seen[id] = true
		ids = append(ids, id)
	}
	return ids
}

func jobIDFromParams(raw json.RawMessage) (string, bool) {
	if len(raw) == 0 {
		return "", false
	}
	var params struct {
		JobID string `json:"job_id"`
	}
	if err := json.Unmarshal(raw, &params); err != nil {
		return "", false
	}
	id := strings.TrimSpace(params.JobID)
	return id, id != ""
}

func printRunJobs(ctx context.Context, repo *data.IngestionJobRepo, jobIDs []string, showTasks bool) error {
	if err := writef(os.Stdout, "\nReferenced Jobs\n"); err != nil {
		return fmt.Errorf("write jobs title: %w", err)
	}
	if len(jobIDs) == 0 {
		if err := writeln(os.Stdout, "(no runs carry a job id)"); err != nil {
			return fmt.Errorf("write empty jobs notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Job\tType\tStatus\tCreated\tFinished"); err != nil {
		return fmt.Errorf("write jobs header: %w", err)
	}
	jobs := make([]*model.IngestionJob, 0, len(jobIDs))
	for _, id := range jobIDs {
		job, err := repo.GetByID(ctx, id)
		if err != nil {
			if apperrors.IsNotFound(err) {
				if writeErr := writef(w, "%s\t(missing)\t\t\t\n", id); writeErr != nil {
					return fmt.Errorf("write missing job row: %w", writeErr)
				}
				continue
			}
			return fmt.Errorf("get job %s: %w", id, err)
		}
		jobs = append(jobs, job)
		if writeErr := writef(w, "%s\t%s\t%s\t%s\t%s\n",
			job.JobID,
			job.JobType,
			job.Status,
			renderTime(job.CreatedAt),
			renderTimePtr(job.FinishedAt),
		); writeErr != nil {
			return fmt.Errorf("write job row: %w", writeErr)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush jobs table: %w", err)
	}

	if !showTasks {
		return nil
	}
	for _, job := range jobs {
		if err := printJobTasks(ctx, repo, job.JobID); err != nil {
			return err
		}
	}
	return nil
}

func printJobTasks(ctx context.Context, repo *data.IngestionJobRepo, jobID string) error {
	tasks, err := repo.ListTasks(ctx, jobID, taskDisplayLimit)
	if err != nil {
		return fmt.Errorf("list tasks for job %s: %w", jobID, err)
	}

	if err := writef(os.Stdout, "\nTasks for Job %s\n", jobID); err != nil {
		return fmt.Errorf("write tasks title: %w", err)
	}
	if len(tasks) == 0 {
		if err := writeln(os.Stdout, "(no task rows)"); err != nil {
			return fmt.Errorf("write empty tasks notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Task\tDataset\tCode\tStatus\tProgress\tRetries\tLast Error"); err != nil {
		return fmt.Errorf("write tasks header: %w", err)
	}
	for _, task := range tasks {
		if err := writef(w, "%s\t%s\t%s\t%s\t%.0f%%\t%d\t%s\n",
			task.TaskID,
			task.Dataset,
			renderStringPtr(task.TsCode),
			task.Status,
			task.Progress*100,
			task.Retries,
			truncate(renderStringPtr(task.LastError), 60),
		); err != nil {
			return fmt.Errorf("write task row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush tasks table: %w", err)
	}
	return nil
}

func printRecentErrors(ctx context.Context, repo *data.IngestionRunRepo, limit int) error {
	samples, err := repo.RecentErrors(ctx, limit)
	if err != nil {
		return fmt.Errorf("list recent errors: %w", err)
	}

	if err := writef(os.Stdout, "\nRecent Error Samples\n"); err != nil {
		return fmt.Errorf("write errors title: %w", err)
	}
	if len(samples) == 0 {
		if err := writeln(os.Stdout, "(no errors recorded)"); err != nil {
			return fmt.Errorf("write empty errors notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Run\tDataset\tCode\tAt\tMessage"); err != nil {
		return fmt.Errorf("write errors header: %w", err)
	}
	for _, sample := range samples {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\n",
			sample.RunID,
			renderStringPtr(sample.Dataset),
			renderStringPtr(sample.TsCode),
			renderTime(sample.ErrorAt),
			truncate(renderStringPtr(sample.Message), 80),
		); err != nil {
			return fmt.Errorf("write error row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush errors table: %w", err)
	}
	return nil
}

func printRunCheckpoints(ctx context.Context, repo *data.IngestionRunRepo, runs []model.IngestionRun) error {
	if err := writef(os.Stdout, "\nResume Checkpoints\n"); err != nil {
		return fmt.Errorf("write checkpoints title: %w", err)
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Run\tDataset\tCode\tCursor Date\tCursor Time"); err != nil {
		return fmt.Errorf("write checkpoints header: %w", err)
	}
	total := 0
	for _, run := range runs {
		checkpoints, err := repo.CheckpointsForRun(ctx, run.RunID)
		if err != nil {
			return fmt.Errorf("list checkpoints for run %s: %w", run.RunID, err)
		}
		for _, cp := range checkpoints {
			total++
			if writeErr := writef(w, "%s\t%s\t%s\t%s\t%s\n",
				cp.RunID,
				cp.Dataset,
				renderStringPtr(cp.TsCode),
				renderDatePtr(cp.CursorDate),
				renderTimePtr(cp.CursorTime),
			); writeErr != nil {
				return fmt.Errorf("write checkpoint row: %w", writeErr)
			}
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush checkpoints table: %w", err)
	}
	if total == 0 {
		if err := writeln(os.Stdout, "(no checkpoints recorded)"); err != nil {
			return fmt.Errorf("write empty checkpoints notice: %w", err)
		}
	}
	return nil
}

func runSchedules(cmdCtx *commandContext, _ []string) error {
	return withDatabase(cmdCtx, defaultQueryTimeout, func(ctx context.Context, db *sql.DB) error {
		testing, err := data.NewTestingScheduleRepo(db).List(ctx)
		if err != nil {
			return fmt.Errorf("list testing schedules: %w", err)
		}
		ingestion, err := data.NewIngestionScheduleRepo(db).List(ctx)
		if err != nil {
			return fmt.Errorf("list ingestion schedules: %w", err)
		}

		if printErr := printTestingSchedules(testing); printErr != nil {
			return printErr
		}
		return printIngestionSchedules(ingestion)
	})
}

func printTestingSchedules(schedules []model.TestingSchedule) error {
	if err := writef(os.Stdout, "\nTesting Schedules\n"); err != nil {
		return fmt.Errorf("write testing schedules title: %w", err)
	}
	if len(schedules) == 0 {
		if err := writeln(os.Stdout, "(none configured)"); err != nil {
			return fmt.Errorf("write empty testing schedules notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Schedule\tEnabled\tFrequency\tNext Run\tLast Run\tLast Status\tLast Error"); err != nil {
		return fmt.Errorf("write testing schedules header: %w", err)
	}
	for _, s := range schedules {
		if err := writef(w, "%s\t%t\t%s\t%s\t%s\t%s\t%s\n",
			s.ScheduleID,
			s.Enabled,
			s.Frequency,
			renderTimePtr(s.NextRunAt),
			renderTimePtr(s.LastRunAt),
			renderStringPtr(s.LastStatus),
			truncate(renderStringPtr(s.LastError), 60),
		); err != nil {
			return fmt.Errorf("write testing schedule row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush testing schedules table: %w", err)
	}
	return nil
}

func printIngestionSchedules(schedules []model.IngestionSchedule) error {
	if err := writef(os.Stdout, "\nIngestion Schedules\n"); err != nil {
		return fmt.Errorf("write ingestion schedules title: %w", err)
	}
	if len(schedules) == 0 {
		if err := writeln(os.Stdout, "(none configured)"); err != nil {
			return fmt.Errorf("write empty ingestion schedules notice: %w", err)
		}
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Schedule\tDataset\tMode\tEnabled\tFrequency\tNext Run\tLast Run\tLast Status"); err != nil {
		return fmt.Errorf("write ingestion schedules header: %w", err)
	}
	for _, s := range schedules {
		if err := writef(w, "%s\t%s\t%s\t%t\t%s\t%s\t%s\t%s\n",
			s.ScheduleID,
			s.Dataset,
			s.Mode,
			s.Enabled,
			s.Frequency,
			renderTimePtr(s.NextRunAt),
			renderTimePtr(s.LastRunAt),
			renderStringPtr(s.LastStatus),
		); err != nil {
			return fmt.Errorf("write ingestion schedule row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush ingestion schedules table: %w", err)
	}
	return nil
}

func renderTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04:05")
}

func renderTimePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return renderTime(*t)
}

func renderDatePtr(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Format("2006-01-02")
}

func renderStringPtr(s *string) string {
	if s == nil || *s == "" {
		return "-"
	}
	return *s
}

func renderRunDuration(started, finished *time.Time) string {
	if started == nil {
		return "-"
	}
	if finished == nil {
		return "running"
	}
	return finished.Sub(*started).Round(time.Second).String()
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	return s[:max] + "..."
}
