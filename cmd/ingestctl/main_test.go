package main

import (
	"encoding/json"
	"io"
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/tdxstock/ingestd/internal/domain/model"
)

func captureStdout(t *testing.T, fn func() error) string {
	t.Helper()

	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)

	defer func() {
		os.Stdout = oldStdout
	}()

	os.Stdout = w
	runErr := fn()

	require.NoError(t, w.Close())
	os.Stdout = oldStdout
	require.NoError(t, runErr)

	output, err := io.ReadAll(r)
	require.NoError(t, err)
	require.NoError(t, r.Close())

	return string(output)
}

func TestPrintJobReportShowsPercentAndCounters(t *testing.T) {
	started := time.Date(2026, 3, 2, 17, 30, 0, 0, time.UTC)
	report := &model.JobStatusReport{
		JobID:     "job-123",
		Status:    model.RunStatusRunning,
		Percent:   40,
		Counters:  model.JobCounters{Total: 10, Done: 4, Running: 2, Pending: 4, Success: 3, Failed: 1},
		CreatedAt: started,
		StartedAt: &started,
	}

	out := captureStdout(t, func() error {
		return printJobReport(report)
	})

	require.Contains(t, out, "Job ID:   job-123")
	require.Contains(t, out, "(40%)")
	require.Contains(t, out, "Total")
	require.Contains(t, out, "Finished: -")
}

func TestPrintJobReportIncludesSummaryAndErrors(t *testing.T) {
	report := &model.JobStatusReport{
		JobID:   "job-456",
		Status:  model.RunStatusFailed,
		Percent: 100,
		Summary: map[string]any{"inserted_rows": float64(1200), "message": "partial"},
		Errors: []model.IngestionError{
			{RunID: "run-1", ErrorAt: time.Date(2026, 3, 2, 18, 0, 0, 0, time.UTC)},
		},
	}

	out := captureStdout(t, func() error {
		return printJobReport(report)
	})

	require.Contains(t, out, "Summary")
	require.Contains(t, out, "inserted_rows")
	require.Contains(t, out, "Error Samples")
	require.Contains(t, out, "run-1")
}

func TestCollectJobIDsDeduplicates(t *testing.T) {
	params := func(jobID string) json.RawMessage {
		raw, err := json.Marshal(map[string]string{"job_id": jobID})
		require.NoError(t, err)
		return raw
	}

	runs := []model.IngestionRun{
		{RunID: "r1", Params: params("job-a")},
		{RunID: "r2", Params: params("job-b")},
		{RunID: "r3", Params: params("job-a")},
		{RunID: "r4"},
		{RunID: "r5", Params: json.RawMessage(`not json`)},
	}

	require.Equal(t, []string{"job-a", "job-b"}, collectJobIDs(runs))
}

func TestParseStatusFlagsShowTasksImpliesShowJobs(t *testing.T) {
	opts, err := parseStatusFlags([]string{"-show-tasks"})
	require.NoError(t, err)
	require.True(t, opts.ShowJobs)
	require.True(t, opts.ShowTasks)
}

func TestParseJobFlagsRequiresID(t *testing.T) {
	_, err := parseJobFlags(nil)
	require.Error(t, err)

	opts, err := parseJobFlags([]string{"-id", "  job-9  "})
	require.NoError(t, err)
	require.Equal(t, "job-9", opts.JobID)
}
