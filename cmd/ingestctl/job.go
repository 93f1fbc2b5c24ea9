package main

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"flag"
	"fmt"
	"os"
	"sort"
	"strings"
	"text/tabwriter"

	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/model"
	apperrors "github.com/tdxstock/ingestd/internal/errors"
	"github.com/tdxstock/ingestd/internal/service"
)

type jobOptions struct {
	JobID   string
	RawJSON bool
}

func parseJobFlags(args []string) (jobOptions, error) {
	fs := flag.NewFlagSet("job", flag.ContinueOnError)
	fs.SetOutput(os.Stderr)

	var opts jobOptions
	fs.StringVar(&opts.JobID, "id", "", "Job ID to inspect (required)")
	fs.BoolVar(&opts.RawJSON, "json", false, "Print the status document as JSON")

	if err := fs.Parse(args); err != nil {
		return jobOptions{}, err
	}

	opts.JobID = strings.TrimSpace(opts.JobID)
	if opts.JobID == "" {
		return jobOptions{}, errors.New("--id is required")
	}

	return opts, nil
}

func runJob(cmdCtx *commandContext, args []string) error {
	opts, err := parseJobFlags(args)
	if err != nil {
		return err
	}

	return withDatabase(cmdCtx, defaultQueryTimeout, func(ctx context.Context, db *sql.DB) error {
		statusService := service.MustNewJobStatusService(service.JobStatusOptions{
			Jobs:   data.NewIngestionJobRepo(db),
			Runs:   data.NewIngestionRunRepo(db),
			Logs:   data.NewIngestionLogRepo(db),
			Logger: cmdCtx.Logger,
		})

		report, statusErr := statusService.GetJobStatus(ctx, opts.JobID)
		if statusErr != nil {
			if apperrors.IsNotFound(statusErr) {
				if writeErr := writef(os.Stdout, "No job found with id %s\n", opts.JobID); writeErr != nil {
					return fmt.Errorf("print missing job notice: %w", writeErr)
				}
				return nil
			}
			return fmt.Errorf("get job status: %w", statusErr)
		}

		if opts.RawJSON {
			return printJobReportJSON(report)
		}
		return printJobReport(report)
	})
}

func printJobReportJSON(report *model.JobStatusReport) error {
	payload, err := json.MarshalIndent(report, "", "  ")
	if err != nil {
		return fmt.Errorf("encode status document: %w", err)
	}
	if err := writef(os.Stdout, "%s\n", payload); err != nil {
		return fmt.Errorf("print status document: %w", err)
	}
	return nil
}

func printJobReport(report *model.JobStatusReport) error {
	if err := printJobHeader(report); err != nil {
		return err
	}
	if err := printJobCounters(report.Counters); err != nil {
		return err
	}
	if err := printJobSummary(report.Summary); err != nil {
		return err
	}
	if err := printJobLogs(report.Logs); err != nil {
		return err
	}
	return printJobErrors(report.Errors)
}

func printJobHeader(report *model.JobStatusReport) error {
	if err := writef(os.Stdout, "\nIngestion Job Status\n"); err != nil {
		return fmt.Errorf("write header title: %w", err)
	}
	if err := writef(os.Stdout, "Job ID:   %s\n", report.JobID); err != nil {
		return fmt.Errorf("write header job id: %w", err)
	}
	if err := writef(os.Stdout, "Status:   %s (%d%%)\n", report.Status, report.Percent); err != nil {
		return fmt.Errorf("write header status: %w", err)
	}
	if err := writef(os.Stdout, "Created:  %s\n", renderTime(report.CreatedAt)); err != nil {
		return fmt.Errorf("write header created: %w", err)
	}
	if err := writef(os.Stdout, "Started:  %s\n", renderTimePtr(report.StartedAt)); err != nil {
		return fmt.Errorf("write header started: %w", err)
	}
	if err := writef(os.Stdout, "Finished: %s\n", renderTimePtr(report.FinishedAt)); err != nil {
		return fmt.Errorf("write header finished: %w", err)
	}
	if err := writeln(os.Stdout); err != nil {
		return fmt.Errorf("write header newline: %w", err)
	}
	return nil
}

func printJobCounters(counters model.JobCounters) error {
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Counter\tValue"); err != nil {
		return fmt.Errorf("write counters header: %w", err)
	}
	if err := writef(w, "Total\t%d\n", counters.Total); err != nil {
		return fmt.Errorf("write total: %w", err)
	}
	if err := writef(w, "Done\t%d\n", counters.Done); err != nil {
		return fmt.Errorf("write done: %w", err)
	}
	if err := writef(w, "Running\t%d\n", counters.Running); err != nil {
		return fmt.Errorf("write running: %w", err)
	}
	if err := writef(w, "Pending\t%d\n", counters.Pending); err != nil {
		return fmt.Errorf("write pending: %w", err)
	}
	if err := writef(w, "Success\t%d\n", counters.Success); err != nil {
		return fmt.Errorf("write success: %w", err)
	}
	if err := writef(w, "Failed\t%d\n", counters.Failed); err != nil {
		return fmt.Errorf("write failed: %w", err)
	}
	if err := writef(w, "Inserted Rows\t%d\n", counters.InsertedRows); err != nil {
		return fmt.Errorf("write inserted rows: %w", err)
	}
	if err := writef(w, "Success Codes\t%d\n", counters.SuccessCodes); err != nil {
		return fmt.Errorf("write success codes: %w", err)
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush counters: %w", err)
	}
	return nil
}

func printJobSummary(summary map[string]any) error {
	if len(summary) == 0 {
		return nil
	}

	keys := make([]string, 0, len(summary))
	for k := range summary {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	if err := writef(os.Stdout, "\nSummary\n"); err != nil {
		return fmt.Errorf("write summary title: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	for _, k := range keys {
		if err := writef(w, "%s\t%v\n", k, summary[k]); err != nil {
			return fmt.Errorf("write summary row %q: %w", k, err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush summary: %w", err)
	}
	return nil
}

func printJobLogs(logs []model.IngestionLogEntry) error {
	if len(logs) == 0 {
		return nil
	}

	if err := writef(os.Stdout, "\nRecent Logs\n"); err != nil {
		return fmt.Errorf("write logs title: %w", err)
	}
	for _, entry := range logs {
		if err := writef(os.Stdout, "  [%s] %s %s\n",
			renderTime(entry.TS),
			strings.ToUpper(entry.Level),
			entry.Message,
		); err != nil {
			return fmt.Errorf("write log line: %w", err)
		}
	}
	return nil
}

func printJobErrors(samples []model.IngestionError) error {
	if len(samples) == 0 {
		return nil
	}

	if err := writef(os.Stdout, "\nError Samples\n"); err != nil {
		return fmt.Errorf("write error samples title: %w", err)
	}
	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	if err := writeln(w, "Run\tDataset\tCode\tAt\tMessage"); err != nil {
		return fmt.Errorf("write error samples header: %w", err)
	}
	for _, sample := range samples {
		if err := writef(w, "%s\t%s\t%s\t%s\t%s\n",
			sample.RunID,
			renderStringPtr(sample.Dataset),
			renderStringPtr(sample.TsCode),
			renderTime(sample.ErrorAt),
			truncate(renderStringPtr(sample.Message), 80),
		); err != nil {
			return fmt.Errorf("write error sample row: %w", err)
		}
	}
	if err := w.Flush(); err != nil {
		return fmt.Errorf("flush error samples: %w", err)
	}
	return nil
}
