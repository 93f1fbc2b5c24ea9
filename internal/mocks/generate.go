// Package mocks provides mock implementations for testing the ingestd job store.
//
// This package uses go.uber.org/mock (gomock) to generate type-safe mocks for our repository interfaces.
// The mocks are generated using go:generate directives and provide a fluent API for setting up test expectations.
//
// To regenerate mocks after interface changes, run:
//
//	go generate ./internal/mocks
//
// Usage in tests:
//
//	ctrl := gomock.NewController(t)
//	defer ctrl.Finish()
//	mockJobs := mocks.NewMockIngestionJobRepository(ctrl)
//	mockJobs.EXPECT().GetByID(gomock.Any(), "job-1").Return(job, nil)
package mocks

// Generate mock for TestingScheduleRepository interface from internal/core package.
// This creates MockTestingScheduleRepository with methods for all TestingScheduleRepository interface methods:
// Upsert, GetByID, List, ListEnabled, SetEnabled, UpdateRunState
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=testing_schedule_repository_mock.go github.com/tdxstock/ingestd/internal/core TestingScheduleRepository

// Generate mock for IngestionScheduleRepository interface from internal/core package.
// This creates MockIngestionScheduleRepository with methods for all IngestionScheduleRepository interface methods:
// Upsert, GetByID, FindByTarget, List, ListEnabled, SetEnabled, UpdateRunState
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ingestion_schedule_repository_mock.go github.com/tdxstock/ingestd/internal/core IngestionScheduleRepository

// Generate mock for TestingRunRepository interface from internal/core package.
// This creates MockTestingRunRepository with methods for all TestingRunRepository interface methods:
// Insert, Complete, ListRecent
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=testing_run_repository_mock.go github.com/tdxstock/ingestd/internal/core TestingRunRepository

// Generate mock for IngestionJobRepository interface from internal/core package.
// This creates MockIngestionJobRepository with methods for all IngestionJobRepository interface methods:
// Create, GetByID, Finalize, TaskStats, ListTasks, StatusCounts
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ingestion_job_repository_mock.go github.com/tdxstock/ingestd/internal/core IngestionJobRepository

// Generate mock for IngestionRunRepository interface from internal/core package.
// This creates MockIngestionRunRepository with methods for all IngestionRunRepository interface methods:
// ListRecent, ErrorSamplesForJob, RecentErrors, CheckpointsForRun, CountSince
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ingestion_run_repository_mock.go github.com/tdxstock/ingestd/internal/core IngestionRunRepository

// Generate mock for IngestionLogRepository interface from internal/core package.
// This creates MockIngestionLogRepository with methods for all IngestionLogRepository interface methods:
// Append, Tail, TailForJob
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=ingestion_log_repository_mock.go github.com/tdxstock/ingestd/internal/core IngestionLogRepository

// Generate mock for ProcessRunner interface from internal/core package.
// This creates MockProcessRunner with methods for all ProcessRunner interface methods:
// Run
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=process_runner_mock.go github.com/tdxstock/ingestd/internal/core ProcessRunner

// Generate mock for CacheRepository interface from internal/core package.
// This creates MockCacheRepository with methods for all CacheRepository interface methods:
// Set, Get, Delete, SetIfNotExists, Health
//go:generate go run go.uber.org/mock/mockgen -package=mocks -destination=cache_repository_mock.go github.com/tdxstock/ingestd/internal/core CacheRepository
