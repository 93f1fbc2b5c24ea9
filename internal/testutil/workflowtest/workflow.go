// Package workflowtest provides end-to-end workflow testing utilities for the
// ingestd job store. The harness wires real repositories and services over a
// test database, swaps the external ingestion scripts for an in-process stub,
// and serves the real API router so workflow tests cover the actual wire
// surface.
package workflowtest

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/command"
	"github.com/tdxstock/ingestd/internal/domain/model"
	httpx "github.com/tdxstock/ingestd/internal/http"
	"github.com/tdxstock/ingestd/internal/service"
	"github.com/tdxstock/ingestd/internal/testutil"
)

// ScriptRunnerStub replaces the external Python scripts with an in-process
// fake. Each Run records its argv; the result is configurable per stub or
// per call via Hook.
type ScriptRunnerStub struct {
	mu       sync.Mutex
	ExitCode int
	Output   string
	// Delay holds each Run open, which is how tests keep a dedup key
	// occupied while submitting duplicates.
	Delay time.Duration
	// Hook, when set, computes the result instead of ExitCode/Output.
	Hook  func(ctx context.Context, argv []string) (model.ProcessResult, error)
	calls [][]string
}

// Run implements core.ProcessRunner.
func (s *ScriptRunnerStub) Run(ctx context.Context, argv []string) (model.ProcessResult, error) {
	s.mu.Lock()
	s.calls = append(s.calls, append([]string(nil), argv...))
	hook := s.Hook
	delay := s.Delay
	result := model.ProcessResult{ExitCode: s.ExitCode, Output: s.Output}
	s.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return model.ProcessResult{ExitCode: -1}, ctx.Err()
		}
	}
	if hook != nil {
		return hook(ctx, argv)
	}
	return result, nil
}

// Calls returns a copy of every argv passed to Run so far.
func (s *ScriptRunnerStub) Calls() [][]string {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([][]string, len(s.calls))
	copy(out, s.calls)
	return out
}

// CallCount returns how many times Run was invoked.
func (s *ScriptRunnerStub) CallCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.calls)
}

// WorkflowTestHarness provides utilities for end-to-end workflow testing.
//
//nolint:revive // WorkflowTestHarness is intentionally verbose for clarity in test code.
type WorkflowTestHarness struct {
	t      testutil.TestingTB
	db     *sql.DB
	ts     *httptest.Server
	cancel context.CancelFunc

	// Repositories
	TestingSchedules   core.TestingScheduleRepository
	IngestionSchedules core.IngestionScheduleRepository
	TestingRuns        core.TestingRunRepository
	IngestionRuns      core.IngestionRunRepository
	Jobs               core.IngestionJobRepository
	Logs               core.IngestionLogRepository

	// Services
	Schedules   *service.ScheduleService
	Coordinator *service.CoordinatorService
	Reconciler  *service.ReconcilerService
	JobStatus   *service.JobStatusService

	// Scripts is the stand-in for the external ingestion scripts.
	Scripts *ScriptRunnerStub

	// Optional Redis components
	RedisClient *redis.Client
	CacheRepo   core.CacheRepository
}

// WorkflowTestOptions configures the workflow test harness.
//
//nolint:revive // WorkflowTestOptions is intentionally verbose for clarity in test code.
type WorkflowTestOptions struct {
	// EnableRedis wires the Redis cache into the job status service.
	EnableRedis bool
	// RedisAddr overrides the default Redis test address
	RedisAddr string
	// Workers sets the coordinator pool size
	Workers int
	// StatsTTL sets the stats cache TTL
	StatsTTL time.Duration
	// Scripts overrides the default script stub
	Scripts *ScriptRunnerStub
}

// NewWorkflowTestHarness creates a new workflow test harness with all components wired up.
func NewWorkflowTestHarness(t testutil.TestingTB, db *sql.DB, opts WorkflowTestOptions) *WorkflowTestHarness {
	t.Helper()

	// Set defaults
	if opts.Workers == 0 {
		opts.Workers = 2
	}
	if opts.Scripts == nil {
		opts.Scripts = &ScriptRunnerStub{}
	}

	h := &WorkflowTestHarness{
		t:       t,
		db:      db,
		Scripts: opts.Scripts,
	}

	// Wire repositories against the test database
	h.TestingSchedules = data.NewTestingScheduleRepo(db)
	h.IngestionSchedules = data.NewIngestionScheduleRepo(db)
	h.TestingRuns = data.NewTestingRunRepo(db)
	h.IngestionRuns = data.NewIngestionRunRepo(db)
	h.Jobs = data.NewIngestionJobRepo(db)
	h.Logs = data.NewIngestionLogRepo(db)

	if opts.EnableRedis {
		h.setupRedis(opts.RedisAddr)
	}

	// Wire services
	commands := command.NewBuilder(command.Paths{})
	h.Coordinator = service.MustNewCoordinatorService(service.CoordinatorOptions{
		TestingRuns:        h.TestingRuns,
		TestingSchedules:   h.TestingSchedules,
		IngestionSchedules: h.IngestionSchedules,
		Jobs:               h.Jobs,
		Logs:               h.Logs,
		Processes:          h.Scripts,
		Commands:           commands,
		Workers:            opts.Workers,
	})
	h.Reconciler = service.MustNewReconcilerService(service.ReconcilerOptions{
		TestingSchedules:   h.TestingSchedules,
		IngestionSchedules: h.IngestionSchedules,
		Submitter:          h.Coordinator,
	})
	h.Schedules = service.MustNewScheduleService(service.ScheduleServiceOptions{
		TestingSchedules:   h.TestingSchedules,
		IngestionSchedules: h.IngestionSchedules,
		Commands:           commands,
		Refresher:          h.Reconciler,
	})
	h.JobStatus = service.MustNewJobStatusService(service.JobStatusOptions{
		Jobs:     h.Jobs,
		Runs:     h.IngestionRuns,
		Logs:     h.Logs,
		Cache:    h.CacheRepo,
		StatsTTL: opts.StatsTTL,
	})

	// Start the worker pool and serve the real router
	ctx, cancel := context.WithCancel(context.Background())
	h.cancel = cancel
	h.Coordinator.Start(ctx)
	h.setupHTTPServer()

	return h
}

// setupRedis initializes the Redis-backed cache repository.
func (h *WorkflowTestHarness) setupRedis(addr string) {
	h.t.Helper()

	if addr == "" {
		client := testutil.SetupTestRedis(h.t)
		h.RedisClient = client
		h.CacheRepo = data.NewRedisCacheRepo(client)
		return
	}

	// Use specific address for custom setups
	client := redis.NewClient(&redis.Options{Addr: addr})
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		h.t.Logf("redis not available at %s: %v", addr, err)
		if closeErr := client.Close(); closeErr != nil {
			h.t.Logf("warning: failed to close redis client: %v", closeErr)
		}
		h.t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		return
	}

	h.RedisClient = client
	h.CacheRepo = data.NewRedisCacheRepo(client)
}

// setupHTTPServer starts an HTTP test server around the production router.
func (h *WorkflowTestHarness) setupHTTPServer() {
	h.t.Helper()

	router := httpx.NewRouter(httpx.RouterServices{
		Schedules:     h.Schedules,
		Coordinator:   h.Coordinator,
		JobStatus:     h.JobStatus,
		Refresher:     h.Reconciler,
		TestingRuns:   h.TestingRuns,
		IngestionRuns: h.IngestionRuns,
		Logs:          h.Logs,
	})
	h.ts = httptest.NewServer(router)
}

// Close cleans up all resources.
func (h *WorkflowTestHarness) Close() {
	h.t.Helper()

	if h.ts != nil {
		h.ts.Close()
	}
	if h.Coordinator != nil {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		if err := h.Coordinator.Shutdown(ctx); err != nil {
			h.t.Logf("warning: coordinator shutdown: %v", err)
		}
		cancel()
	}
	if h.cancel != nil {
		h.cancel()
	}
	if h.RedisClient != nil {
		if err := h.RedisClient.Close(); err != nil {
			h.t.Logf("warning: failed to close redis client: %v", err)
		}
	}
}

// BaseURL returns the base URL of the test HTTP server.
func (h *WorkflowTestHarness) BaseURL() string {
	return h.ts.URL
}

// HTTPClient provides utilities for making HTTP requests to the test server.
type HTTPClient struct {
	t       testutil.TestingTB
	baseURL string
	client  *http.Client
}

// NewHTTPClient creates a new HTTP client for testing.
func (h *WorkflowTestHarness) NewHTTPClient() *HTTPClient {
	return &HTTPClient{
		t:       h.t,
		baseURL: h.BaseURL(),
		client: &http.Client{
			Timeout: 10 * time.Second,
		},
	}
}

// DoJSON creates a request with context and performs it using the harness client.
func (c *HTTPClient) DoJSON(method, path string, payload any) *http.Response {
	c.t.Helper()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var body *bytes.Reader
	if payload != nil {
		b, err := json.Marshal(payload)
		if err != nil {
			c.t.Fatalf("marshal payload: %v", err)
		}
		body = bytes.NewReader(b)
	} else {
		body = bytes.NewReader(nil)
	}

	url := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, url, body)
	if err != nil {
		c.t.Fatalf("new request: %v", err)
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.client.Do(req)
	if err != nil {
		c.t.Fatalf("do request: %v", err)
	}
	return resp
}

// decodeJSON decodes the response body into out, failing the test on any
// unexpected status.
func (c *HTTPClient) decodeJSON(resp *http.Response, wantStatus int, out any) {
	c.t.Helper()

	defer func() {
		if err := resp.Body.Close(); err != nil {
			c.t.Logf("warning: failed to close response body: %v", err)
		}
	}()

	if resp.StatusCode != wantStatus {
		body, err := io.ReadAll(resp.Body)
		if err != nil {
			c.t.Fatalf("status %d (want %d), failed to read response: %v", resp.StatusCode, wantStatus, err)
		}
		c.t.Fatalf("status %d (want %d), response: %s", resp.StatusCode, wantStatus, string(body))
	}
	if out == nil {
		return
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.t.Fatalf("decode response: %v", err)
	}
}

// UpsertIngestionSchedule creates or replaces an ingestion schedule via the API.
func (c *HTTPClient) UpsertIngestionSchedule(req model.UpsertIngestionScheduleRequest) model.IngestionSchedule {
	c.t.Helper()

	var sched model.IngestionSchedule
	resp := c.DoJSON(http.MethodPost, "/api/ingestion/schedule", req)
	c.decodeJSON(resp, http.StatusOK, &sched)
	return sched
}

// UpsertTestingSchedule creates or replaces a testing schedule via the API.
func (c *HTTPClient) UpsertTestingSchedule(req model.UpsertTestingScheduleRequest) model.TestingSchedule {
	c.t.Helper()

	var sched model.TestingSchedule
	resp := c.DoJSON(http.MethodPost, "/api/testing/schedule", req)
	c.decodeJSON(resp, http.StatusOK, &sched)
	return sched
}

// RunIngestionNow launches a one-off ingestion run via the API and returns
// the run and job ids.
func (c *HTTPClient) RunIngestionNow(req model.RunIngestionRequest) (runID, jobID string) {
	c.t.Helper()

	var accepted struct {
		RunID string `json:"run_id"`
		JobID string `json:"job_id"`
	}
	resp := c.DoJSON(http.MethodPost, "/api/ingestion/run", req)
	c.decodeJSON(resp, http.StatusAccepted, &accepted)
	return accepted.RunID, accepted.JobID
}

// RunTestingNow launches a one-off testing run via the API and returns the run id.
func (c *HTTPClient) RunTestingNow(req model.RunTestingRequest) string {
	c.t.Helper()

	var accepted struct {
		RunID string `json:"run_id"`
	}
	resp := c.DoJSON(http.MethodPost, "/api/testing/run", req)
	c.decodeJSON(resp, http.StatusAccepted, &accepted)
	return accepted.RunID
}

// GetJobStatus fetches the aggregated status document for one job.
func (c *HTTPClient) GetJobStatus(jobID string) model.JobStatusReport {
	c.t.Helper()

	var report model.JobStatusReport
	resp := c.DoJSON(http.MethodGet, "/api/ingestion/jobs/"+jobID+"/status", nil)
	c.decodeJSON(resp, http.StatusOK, &report)
	return report
}

// ListTestingRuns fetches recent testing runs.
func (c *HTTPClient) ListTestingRuns() []model.TestingRun {
	c.t.Helper()

	var runs []model.TestingRun
	resp := c.DoJSON(http.MethodGet, "/api/testing/runs", nil)
	c.decodeJSON(resp, http.StatusOK, &runs)
	return runs
}

// WorkflowHelpers provides high-level workflow testing utilities.
type WorkflowHelpers struct {
	harness *WorkflowTestHarness
	client  *HTTPClient
}

// NewWorkflowHelpers creates workflow helpers for the given harness.
func (h *WorkflowTestHarness) NewWorkflowHelpers() *WorkflowHelpers {
	return &WorkflowHelpers{
		harness: h,
		client:  h.NewHTTPClient(),
	}
}

// Client returns the underlying HTTP client.
func (w *WorkflowHelpers) Client() *HTTPClient {
	return w.client
}

// WaitForJobTerminal polls the job status endpoint until the job reaches a
// terminal status or the timeout elapses.
func (w *WorkflowHelpers) WaitForJobTerminal(jobID string, timeout time.Duration) model.JobStatusReport {
	w.harness.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		report := w.client.GetJobStatus(jobID)
		if report.Status.Terminal() {
			return report
		}
		if time.Now().After(deadline) {
			w.harness.t.Fatalf("job %s not terminal after %v (status %s)", jobID, timeout, report.Status)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// WaitForTestingRunTerminal polls the testing runs listing until the run
// reaches a terminal status or the timeout elapses.
func (w *WorkflowHelpers) WaitForTestingRunTerminal(runID string, timeout time.Duration) model.TestingRun {
	w.harness.t.Helper()

	deadline := time.Now().Add(timeout)
	for {
		for _, run := range w.client.ListTestingRuns() {
			if run.RunID == runID && run.Status.Terminal() {
				return run
			}
		}
		if time.Now().After(deadline) {
			w.harness.t.Fatalf("testing run %s not terminal after %v", runID, timeout)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// RunCompleteIngestionWorkflow runs a complete workflow: launch a one-off
// ingestion run, wait for the job to finish, and return the final status
// report.
func (w *WorkflowHelpers) RunCompleteIngestionWorkflow(dataset string, mode model.IngestMode) model.JobStatusReport {
	w.harness.t.Helper()

	before := w.harness.Scripts.CallCount()
	_, jobID := w.client.RunIngestionNow(model.RunIngestionRequest{
		Dataset:     dataset,
		Mode:        mode,
		TriggeredBy: "workflowtest",
	})

	report := w.WaitForJobTerminal(jobID, 5*time.Second)
	if w.harness.Scripts.CallCount() == before {
		w.harness.t.Fatalf("ingestion job %s finished without launching a script", jobID)
	}
	return report
}

// RunCompleteTestingWorkflow runs a complete workflow: launch a one-off
// testing run, wait for it to finish, and return the final run row.
func (w *WorkflowHelpers) RunCompleteTestingWorkflow() model.TestingRun {
	w.harness.t.Helper()

	runID := w.client.RunTestingNow(model.RunTestingRequest{TriggeredBy: "workflowtest"})
	return w.WaitForTestingRunTerminal(runID, 5*time.Second)
}

// skipIfRedisUnavailable skips the test if Redis is required but unavailable.
func skipIfRedisUnavailable(t testutil.TestingTB, opts WorkflowTestOptions) {
	t.Helper()

	if !opts.EnableRedis {
		return
	}

	if opts.RedisAddr == "" {
		// Use centralized Redis address detection
		if _, ok := testutil.GetTestRedisAddr(t); !ok {
			t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
		}
		return
	}

	// Test specific address by trying to connect
	client := redis.NewClient(&redis.Options{Addr: opts.RedisAddr})
	defer func() {
		if err := client.Close(); err != nil {
			t.Logf("warning: failed to close redis client: %v", err)
		}
	}()
	if err := client.Ping(context.Background()).Err(); err != nil {
		t.Skip("redis test instance unavailable; run docker-compose profile 'test'")
	}
}

// WithWorkflowHarness is a helper that sets up and tears down a workflow test harness.
func WithWorkflowHarness(t testutil.TestingTB, opts WorkflowTestOptions, fn func(*WorkflowTestHarness)) {
	t.Helper()

	testutil.SkipIfNoTestDB(t)
	skipIfRedisUnavailable(t, opts)

	testutil.WithTestDB(t, func(db *sql.DB) {
		harness := NewWorkflowTestHarness(t, db, opts)
		defer harness.Close()
		fn(harness)
	})
}

// DefaultWorkflowOptions returns default options for workflow testing.
func DefaultWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis: false,
		Workers:     2,
	}
}

// RedisWorkflowOptions returns options for workflow testing with Redis enabled.
func RedisWorkflowOptions() WorkflowTestOptions {
	return WorkflowTestOptions{
		EnableRedis: true,
		Workers:     2,
	}
}
