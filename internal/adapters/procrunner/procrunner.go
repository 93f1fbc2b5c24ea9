// Package procrunner launches ingestion and testing scripts as child
// processes and reports their exit state back to the scheduler.
package procrunner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"time"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

// maxCapturedOutputBytes bounds how much combined stdout/stderr is retained
// per run. Scripts stream their real logs to the database; this capture only
// feeds run summaries and failure messages.
const maxCapturedOutputBytes = 64 * 1024

// RunnerOptions configures the process runner adapter.
type RunnerOptions struct {
	// WorkDir is the working directory for launched processes. Empty means
	// inherit the scheduler's working directory.
	WorkDir string
	// Env entries are appended to the inherited environment ("KEY=value").
	Env    []string
	Logger *slog.Logger
}

// Runner implements core.ProcessRunner using os/exec. One process per Run
// call; the process group dies with the context.
type Runner struct {
	workDir string
	env     []string
	logger  *slog.Logger
}

// NewRunner creates a process runner with the given options.
func NewRunner(opts RunnerOptions) *Runner {
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &Runner{
		workDir: opts.WorkDir,
		env:     opts.Env,
		logger:  opts.Logger,
	}
}

// Run launches argv[0] with the remaining arguments and waits for it to
// finish. A non-zero exit code is reported in the result, not as an error;
// errors mean the process never ran (bad binary, vanished workdir) or could
// not be waited on.
func (r *Runner) Run(ctx context.Context, argv []string) (model.ProcessResult, error) {
	if len(argv) == 0 {
		return model.ProcessResult{}, errors.New("empty command")
	}

	start := time.Now()
	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	if r.workDir != "" {
		cmd.Dir = r.workDir
	}
	if len(r.env) > 0 {
		cmd.Env = append(os.Environ(), r.env...)
	}

	var output bytes.Buffer
	capture := &truncatingWriter{buf: &output, limit: maxCapturedOutputBytes}
	cmd.Stdout = capture
	cmd.Stderr = capture

	err := cmd.Run()
	duration := time.Since(start)

	result := model.ProcessResult{Output: output.String()}
	switch {
	case err == nil:
		result.ExitCode = 0
	default:
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The process never produced an exit status: spawn failure,
			// or killed before Wait could observe it.
			if ctxErr := ctx.Err(); ctxErr != nil {
				return result, fmt.Errorf("run %s: %w", argv[0], ctxErr)
			}
			return result, fmt.Errorf("run %s: %w", argv[0], err)
		}
		result.ExitCode = exitErr.ExitCode()
	}

	r.logger.DebugContext(ctx, "process finished",
		slog.String("command", argv[0]),
		slog.Int("exit_code", result.ExitCode),
		slog.Duration("duration", duration),
	)
	return result, nil
}

// truncatingWriter keeps the first limit bytes and discards the rest. Write
// never errors so the child process is not disturbed by a full capture.
type truncatingWriter struct {
	buf     *bytes.Buffer
	limit   int
	dropped bool
}

func (w *truncatingWriter) Write(p []byte) (int, error) {
	remaining := w.limit - w.buf.Len()
	if remaining <= 0 {
		w.markDropped()
		return len(p), nil
	}
	if len(p) > remaining {
		w.buf.Write(p[:remaining])
		w.markDropped()
		return len(p), nil
	}
	w.buf.Write(p)
	return len(p), nil
}

func (w *truncatingWriter) markDropped() {
	if w.dropped {
		return
	}
	w.dropped = true
	w.buf.WriteString("\n... output truncated ...\n")
}

// Ensure Runner satisfies the interface.
var _ core.ProcessRunner = (*Runner)(nil)
