// Package command builds the argv for external testing and ingestion
// processes from typed options.
package command

import (
	"errors"
	"fmt"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/tdxstock/ingestd/internal/domain/model"
)

// ErrNoScript is wrapped when no entry point is defined for a dataset/mode
// pair and no override is given.
var ErrNoScript = errors.New("no ingestion script defined")

// Default entry points, resolved under Paths.ScriptsDir.
const (
	DefaultTestingScript     = "test_tdx_all_api.py"
	DefaultIncrementalScript = "ingest_incremental.py"
	DefaultFullDailyScript   = "ingest_full_daily.py"
	DefaultFullMinuteScript  = "ingest_full_minute.py"
	DefaultOutputDir         = "tmp/testing_runs"
)

// Datasets served by the full-history daily and minute backfill scripts.
var (
	fullDailyDatasets  = map[string]bool{"kline_daily_qfq": true, "kline_daily": true}
	fullMinuteDatasets = map[string]bool{"kline_minute_raw": true, "minute_1m": true}
)

// Paths locates the interpreter and the scripts the scheduler launches.
type Paths struct {
	// Python is the interpreter binary, e.g. "python3".
	Python string
	// ScriptsDir holds the default entry points.
	ScriptsDir string
	// OutputDir receives testing result files.
	OutputDir string

	TestingScript     string
	IncrementalScript string
	FullDailyScript   string
	FullMinuteScript  string
}

// Builder assembles process argvs. The zero value is unusable; construct
// with NewBuilder so defaults apply.
type Builder struct {
	paths Paths
}

// NewBuilder creates a Builder, filling unset paths with defaults.
func NewBuilder(paths Paths) *Builder {
	if paths.Python == "" {
		paths.Python = "python3"
	}
	if paths.ScriptsDir == "" {
		paths.ScriptsDir = "scripts"
	}
	if paths.OutputDir == "" {
		paths.OutputDir = DefaultOutputDir
	}
	if paths.TestingScript == "" {
		paths.TestingScript = DefaultTestingScript
	}
	if paths.IncrementalScript == "" {
		paths.IncrementalScript = DefaultIncrementalScript
	}
	if paths.FullDailyScript == "" {
		paths.FullDailyScript = DefaultFullDailyScript
	}
	if paths.FullMinuteScript == "" {
		paths.FullMinuteScript = DefaultFullMinuteScript
	}
	return &Builder{paths: paths}
}

// TestingOutputPath resolves where a testing run writes its results file.
func (b *Builder) TestingOutputPath(params model.TestingParams, runID string) string {
	if params.OutputPath != "" {
		return params.OutputPath
	}
	return filepath.Join(b.paths.OutputDir, "testing_"+runID+".json")
}

// Testing builds the argv for one API testing run. The results path is
// always appended last so the harness can merge the summary afterwards.
func (b *Builder) Testing(params model.TestingParams, outputPath string) []string {
	script := params.Script
	if script == "" {
		script = filepath.Join(b.paths.ScriptsDir, b.paths.TestingScript)
	}

	argv := []string{b.paths.Python, script}
	if params.BaseURL != "" {
		argv = append(argv, "--base-url", params.BaseURL)
	}
	if params.Codes != "" {
		argv = append(argv, "--codes", params.Codes)
	}
	if params.IndexCode != "" {
		argv = append(argv, "--index-code", params.IndexCode)
	}
	if params.Timeout > 0 {
		argv = append(argv, "--timeout", formatFloat(params.Timeout))
	}
	if params.BulkTimeout != nil {
		argv = append(argv, "--bulk-timeout", formatFloat(*params.BulkTimeout))
	}
	if params.NoTasks {
		argv = append(argv, "--no-tasks")
	}
	if params.Verbose {
		argv = append(argv, "--verbose")
	}
	return append(argv, "--output", outputPath)
}

// Ingestion builds the argv for one ingestion run. Verbatim args bypass
// flag synthesis; otherwise flags follow the target's mode.
func (b *Builder) Ingestion(target model.IngestionTarget) ([]string, error) {
	script, err := b.resolveIngestionScript(target)
	if err != nil {
		return nil, err
	}

	argv := []string{b.paths.Python, script}
	switch args := target.Args.(type) {
	case model.RawArgs:
		argv = append(argv, args...)
	case model.IncrementalArgs:
		argv = appendIncrementalFlags(argv, args)
	case model.BackfillArgs:
		argv = appendBackfillFlags(argv, args)
	case nil:
		return nil, fmt.Errorf("ingestion target for %q has no args", target.Dataset)
	default:
		return nil, fmt.Errorf("unsupported ingestion args %T", target.Args)
	}
	return argv, nil
}

func (b *Builder) resolveIngestionScript(target model.IngestionTarget) (string, error) {
	if target.Script != "" {
		return target.Script, nil
	}

	switch {
	case target.Mode == model.IngestModeIncremental:
		return filepath.Join(b.paths.ScriptsDir, b.paths.IncrementalScript), nil
	case target.Mode == model.IngestModeInit && fullDailyDatasets[target.Dataset]:
		return filepath.Join(b.paths.ScriptsDir, b.paths.FullDailyScript), nil
	case target.Mode == model.IngestModeInit && fullMinuteDatasets[target.Dataset]:
		return filepath.Join(b.paths.ScriptsDir, b.paths.FullMinuteScript), nil
	}
	return "", fmt.Errorf("%w for dataset=%q mode=%q", ErrNoScript, target.Dataset, target.Mode)
}

func appendIncrementalFlags(argv []string, args model.IncrementalArgs) []string {
	if args.Datasets != "" {
		argv = append(argv, "--datasets", args.Datasets)
	}
	if args.Date != "" {
		argv = append(argv, "--date", args.Date)
	}
	if args.StartDate != "" {
		argv = append(argv, "--start-date", args.StartDate)
	}
	if len(args.Exchanges) > 0 {
		argv = append(argv, "--exchanges", strings.Join(args.Exchanges, ","))
	}
	if args.BatchSize > 0 {
		argv = append(argv, "--batch-size", strconv.Itoa(args.BatchSize))
	}
	if args.MaxEmpty > 0 {
		argv = append(argv, "--max-empty", strconv.Itoa(args.MaxEmpty))
	}
	if args.JobID != "" {
		argv = append(argv, "--job-id", args.JobID)
	}
	return argv
}

func appendBackfillFlags(argv []string, args model.BackfillArgs) []string {
	if len(args.Exchanges) > 0 {
		argv = append(argv, "--exchanges", strings.Join(args.Exchanges, ","))
	}
	if args.StartDate != "" {
		argv = append(argv, "--start-date", args.StartDate)
	}
	if args.EndDate != "" {
		argv = append(argv, "--end-date", args.EndDate)
	}
	if args.BatchSize > 0 {
		argv = append(argv, "--batch-size", strconv.Itoa(args.BatchSize))
	}
	if args.LimitCodes > 0 {
		argv = append(argv, "--limit-codes", strconv.Itoa(args.LimitCodes))
	}
	if args.JobID != "" {
		argv = append(argv, "--job-id", args.JobID)
	}
	return argv
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}
