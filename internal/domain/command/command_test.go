package command

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

func TestBuilderTestingOutputPath(t *testing.T) {
	t.Run("defaults under the output dir", func(t *testing.T) {
		b := NewBuilder(Paths{})

		got := b.TestingOutputPath(model.TestingParams{}, "run-1")

		assert.Equal(t, filepath.Join(DefaultOutputDir, "testing_run-1.json"), got)
	})

	t.Run("explicit override wins", func(t *testing.T) {
		b := NewBuilder(Paths{})

		got := b.TestingOutputPath(model.TestingParams{OutputPath: "/tmp/results.json"}, "run-1")

		assert.Equal(t, "/tmp/results.json", got)
	})

	t.Run("respects a custom output dir", func(t *testing.T) {
		b := NewBuilder(Paths{OutputDir: "/var/lib/ingestd/results"})

		got := b.TestingOutputPath(model.TestingParams{}, "run-2")

		assert.Equal(t, filepath.Join("/var/lib/ingestd/results", "testing_run-2.json"), got)
	})
}

func TestBuilderTesting(t *testing.T) {
	tests := []struct {
		name   string
		paths  Paths
		params model.TestingParams
		output string
		want   []string
	}{
		{
			name:   "defaults",
			output: "tmp/out.json",
			want: []string{
				"python3", filepath.Join("scripts", DefaultTestingScript),
				"--output", "tmp/out.json",
			},
		},
		{
			name: "all flags in declaration order",
			params: model.TestingParams{
				BaseURL:     "http://127.0.0.1:8811",
				Codes:       "000001.SZ,600000.SH",
				IndexCode:   "000300.SH",
				Timeout:     2.5,
				BulkTimeout: floatPtr(0),
				NoTasks:     true,
				Verbose:     true,
			},
			output: "tmp/out.json",
			want: []string{
				"python3", filepath.Join("scripts", DefaultTestingScript),
				"--base-url", "http://127.0.0.1:8811",
				"--codes", "000001.SZ,600000.SH",
				"--index-code", "000300.SH",
				"--timeout", "2.5",
				"--bulk-timeout", "0",
				"--no-tasks",
				"--verbose",
				"--output", "tmp/out.json",
			},
		},
		{
			name:   "zero timeout omitted but zero bulk timeout kept",
			params: model.TestingParams{Timeout: 0, BulkTimeout: floatPtr(0)},
			output: "o.json",
			want: []string{
				"python3", filepath.Join("scripts", DefaultTestingScript),
				"--bulk-timeout", "0",
				"--output", "o.json",
			},
		},
		{
			name:   "script override bypasses the scripts dir",
			params: model.TestingParams{Script: "/opt/custom/smoke.py"},
			output: "o.json",
			want:   []string{"python3", "/opt/custom/smoke.py", "--output", "o.json"},
		},
		{
			name: "custom interpreter and scripts dir",
			paths: Paths{
				Python:        "/usr/bin/python3.11",
				ScriptsDir:    "/opt/ingest",
				TestingScript: "check_api.py",
			},
			output: "o.json",
			want: []string{
				"/usr/bin/python3.11", filepath.Join("/opt/ingest", "check_api.py"),
				"--output", "o.json",
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.paths)

			got := b.Testing(tt.params, tt.output)

			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilderIngestion(t *testing.T) {
	tests := []struct {
		name    string
		paths   Paths
		target  model.IngestionTarget
		want    []string
		wantErr string
	}{
		{
			name: "incremental with just datasets",
			target: model.IngestionTarget{
				Dataset: "kline_daily_qfq",
				Mode:    model.IngestModeIncremental,
				Args:    model.IncrementalArgs{Datasets: "kline_daily_qfq"},
			},
			want: []string{
				"python3", filepath.Join("scripts", DefaultIncrementalScript),
				"--datasets", "kline_daily_qfq",
			},
		},
		{
			name: "incremental with every flag",
			target: model.IngestionTarget{
				Dataset: "kline_daily_qfq",
				Mode:    model.IngestModeIncremental,
				Args: model.IncrementalArgs{
					Datasets:  "kline_daily_qfq,adj_factor",
					Date:      "20240105",
					StartDate: "20240101",
					Exchanges: []string{"SSE", "SZSE"},
					BatchSize: 500,
					MaxEmpty:  30,
					JobID:     "job-9",
				},
			},
			want: []string{
				"python3", filepath.Join("scripts", DefaultIncrementalScript),
				"--datasets", "kline_daily_qfq,adj_factor",
				"--date", "20240105",
				"--start-date", "20240101",
				"--exchanges", "SSE,SZSE",
				"--batch-size", "500",
				"--max-empty", "30",
				"--job-id", "job-9",
			},
		},
		{
			name: "init on a daily dataset uses the daily backfill script",
			target: model.IngestionTarget{
				Dataset: "kline_daily",
				Mode:    model.IngestModeInit,
				Args: model.BackfillArgs{
					Exchanges:  []string{"SSE"},
					StartDate:  "20100101",
					EndDate:    "20231231",
					BatchSize:  200,
					LimitCodes: 50,
					JobID:      "job-3",
				},
			},
			want: []string{
				"python3", filepath.Join("scripts", DefaultFullDailyScript),
				"--exchanges", "SSE",
				"--start-date", "20100101",
				"--end-date", "20231231",
				"--batch-size", "200",
				"--limit-codes", "50",
				"--job-id", "job-3",
			},
		},
		{
			name: "init on a minute dataset uses the minute backfill script",
			target: model.IngestionTarget{
				Dataset: "minute_1m",
				Mode:    model.IngestModeInit,
				Args:    model.BackfillArgs{StartDate: "20240101"},
			},
			want: []string{
				"python3", filepath.Join("scripts", DefaultFullMinuteScript),
				"--start-date", "20240101",
			},
		},
		{
			name: "verbatim args pass through untouched",
			target: model.IngestionTarget{
				Dataset: "kline_daily_qfq",
				Mode:    model.IngestModeIncremental,
				Args:    model.RawArgs{"--datasets", "kline_daily_qfq", "--force"},
			},
			want: []string{
				"python3", filepath.Join("scripts", DefaultIncrementalScript),
				"--datasets", "kline_daily_qfq", "--force",
			},
		},
		{
			name: "script override unlocks datasets without a default entry point",
			target: model.IngestionTarget{
				Dataset: "fundamentals_quarterly",
				Mode:    model.IngestModeInit,
				Script:  "scripts_extra/backfill_fundamentals.py",
				Args:    model.BackfillArgs{StartDate: "20200101"},
			},
			want: []string{
				"python3", "scripts_extra/backfill_fundamentals.py",
				"--start-date", "20200101",
			},
		},
		{
			name: "init without a known script fails",
			target: model.IngestionTarget{
				Dataset: "fundamentals_quarterly",
				Mode:    model.IngestModeInit,
				Args:    model.BackfillArgs{},
			},
			wantErr: `no ingestion script defined for dataset="fundamentals_quarterly" mode="init"`,
		},
		{
			name: "missing args fail",
			target: model.IngestionTarget{
				Dataset: "kline_daily_qfq",
				Mode:    model.IngestModeIncremental,
			},
			wantErr: "has no args",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := NewBuilder(tt.paths)

			got, err := b.Ingestion(tt.target)

			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				assert.Nil(t, got)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestBuilderIngestion_NoScriptSentinel(t *testing.T) {
	b := NewBuilder(Paths{})

	_, err := b.Ingestion(model.IngestionTarget{
		Dataset: "fundamentals_quarterly",
		Mode:    model.IngestModeInit,
		Args:    model.BackfillArgs{},
	})

	assert.ErrorIs(t, err, ErrNoScript)
}

func floatPtr(v float64) *float64 { return &v }
