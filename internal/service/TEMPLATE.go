// This file is a documentation template and should not be compiled.
// It uses placeholder types (DatasetCatalogService, DatasetCatalogRepository,
// etc.) that don't exist. Use this as a reference when creating new services.
//
//go:build ignore

package service

// TEMPLATE.go - Service Layer Pattern Template
//
// This file demonstrates the standard pattern for all services in the service
// layer. schedules.go is the smallest complete example; coordinator.go shows
// the background-worker variant of the same shape.
//
// KEY PRINCIPLES:
// 1. All services use Options struct pattern for dependency injection
// 2. Required dependencies come first; optional ones follow a blank line
// 3. Constructors are NewXService(opts XOptions) (*XService, error) with a
//    MustNewXService wrapper for startup wiring
// 4. Services reach storage only through port interfaces in internal/core,
//    never through concrete repositories
// 5. Required dependencies are validated in the constructor (error, not panic)
// 6. Optional Logger defaults to slog.Default(); optional clock defaults to
//    data.RealTimeProvider
// 7. All methods accept context.Context as first parameter
// 8. Errors are wrapped with context using fmt.Errorf("operation: %w", err)
//    so apperrors classification survives the service layer
// 9. Business logic and orchestration belong in the service layer
// 10. Services never import from internal/http or internal/adapters; those
//     layers depend on services, not vice versa

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/tdxstock/ingestd/internal/core"
	"github.com/tdxstock/ingestd/internal/data"
	"github.com/tdxstock/ingestd/internal/domain/model"
)

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 1: Options Struct
// ═══════════════════════════════════════════════════════════════════════════

// DatasetCatalogOptions groups dependencies for DatasetCatalogService.
//
// RULES:
// - Required dependencies are repository interfaces from internal/core
// - Optional dependencies sit after a blank line with a comment saying they
//   are optional and what happens when they are nil
// - When config values pile up (pool sizes, timeouts), group them in a
//   nested config struct rather than growing the options flat
type DatasetCatalogOptions struct {
	Catalog core.DatasetCatalogRepository

	// Cache holds rendered catalog snapshots; optional.
	Cache datasetCache
	// TimeProvider defaults to the wall clock.
	TimeProvider data.TimeProvider
	Logger       *slog.Logger
}

// Example with nested config struct (when tunables accumulate):
//
// type DatasetCatalogConfig struct {
//     SnapshotTTL   time.Duration
//     MaxBatchSize  int
// }
//
// type DatasetCatalogOptions struct {
//     Catalog core.DatasetCatalogRepository
//     Config  DatasetCatalogConfig
//     Logger  *slog.Logger
// }

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 2: Optional Interface Dependencies
// ═══════════════════════════════════════════════════════════════════════════

// datasetCache defines the minimal behavior required from a cache. Define a
// small local interface for optional collaborators instead of depending on
// the full core.CacheRepository; schedules.go does the same with its
// ScheduleRefresher.
type datasetCache interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 3: Service Struct (private fields)
// ═══════════════════════════════════════════════════════════════════════════

// DatasetCatalogService provides business logic for dataset catalog
// operations.
//
// RESPONSIBILITIES:
// - Validation before anything touches the store
// - Cross-repository orchestration
// - Caching strategies
// - Background work (worker pools, tickers) when the service owns any
//
// DOES NOT:
// - Import internal/http or internal/adapters
// - Hold concrete repository types; ports only
type DatasetCatalogService struct {
	catalog core.DatasetCatalogRepository
	cache   datasetCache
	clock   data.TimeProvider
	logger  *slog.Logger
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 4: Constructor with Validation
// ═══════════════════════════════════════════════════════════════════════════

// NewDatasetCatalogService constructs a new DatasetCatalogService.
//
// RULES:
// - Validate required dependencies in a switch; return an error naming the
//   missing one
// - Default optional dependencies here, not at every call site
// - Keep the constructor simple; no I/O
func NewDatasetCatalogService(opts DatasetCatalogOptions) (*DatasetCatalogService, error) {
	if opts.Catalog == nil {
		return nil, errors.New("DatasetCatalogRepository is required")
	}
	if opts.TimeProvider == nil {
		opts.TimeProvider = &data.RealTimeProvider{}
	}
	if opts.Logger == nil {
		opts.Logger = slog.Default()
	}
	return &DatasetCatalogService{
		catalog: opts.Catalog,
		cache:   opts.Cache,
		clock:   opts.TimeProvider,
		logger:  opts.Logger,
	}, nil
}

// MustNewDatasetCatalogService constructs the service and panics on error.
// Use only in startup wiring where a missing dependency is a programming
// mistake, never in request paths.
func MustNewDatasetCatalogService(opts DatasetCatalogOptions) *DatasetCatalogService {
	svc, err := NewDatasetCatalogService(opts)
	if err != nil {
		panic(err)
	}
	return svc
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 5: Simple Operations
// ═══════════════════════════════════════════════════════════════════════════

// Register validates and writes a dataset descriptor.
//
// RULES:
// - Accept context.Context as first parameter
// - Use request types from internal/domain/model
// - Validate before the store sees the row; a row that made it in always
//   parses (see ScheduleService for the real version of this rule)
// - Wrap errors with the operation name: fmt.Errorf("operation: %w", err)
func (s *DatasetCatalogService) Register(
	ctx context.Context,
	req model.RegisterDatasetRequest,
) (*model.Dataset, error) {
	if err := req.Validate(); err != nil {
		return nil, fmt.Errorf("validate dataset: %w", err)
	}

	ds, err := s.catalog.Upsert(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("upsert dataset: %w", err)
	}

	s.logger.Info("dataset registered", "dataset", ds.Name, "mode", ds.Mode)
	return ds, nil
}

// Get retrieves a dataset descriptor by name, preferring the cache.
func (s *DatasetCatalogService) Get(ctx context.Context, name string) (*model.Dataset, error) {
	if s.cache != nil {
		if cached, err := s.getCached(ctx, name); err == nil && cached != nil {
			return cached, nil
		}
	}

	ds, err := s.catalog.GetByName(ctx, name)
	if err != nil {
		// Pass apperrors through untouched; handlers map them to status
		// codes by classification.
		return nil, fmt.Errorf("get dataset: %w", err)
	}

	if s.cache != nil {
		_ = s.setCached(ctx, ds) // best effort
	}
	return ds, nil
}

// List retrieves dataset descriptors with normalized pagination.
func (s *DatasetCatalogService) List(
	ctx context.Context,
	limit int,
) ([]model.Dataset, error) {
	if limit <= 0 {
		limit = 50
	}
	if limit > 500 {
		limit = 500
	}
	return s.catalog.List(ctx, limit)
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 6: Orchestration Across Multiple Repositories
// ═══════════════════════════════════════════════════════════════════════════

// RegisterWithSchedule creates a dataset and its default schedule in one
// call. Coordinating writes across stores is the reason the service layer
// exists; CoordinatorService.SubmitIngestion is the production-weight
// version of this shape.
func (s *DatasetCatalogService) RegisterWithSchedule(
	ctx context.Context,
	req model.RegisterDatasetRequest,
) (*model.Dataset, error) {
	ds, err := s.Register(ctx, req)
	if err != nil {
		return nil, err
	}

	if req.DefaultFrequency != "" {
		if err := s.createDefaultSchedule(ctx, ds, req.DefaultFrequency); err != nil {
			return nil, fmt.Errorf("create default schedule: %w", err)
		}
	}
	return ds, nil
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 7: Private Helper Methods
// ═══════════════════════════════════════════════════════════════════════════

// Helpers are lowercase and single-purpose. Cache plumbing and JSON
// round-trips live here so the public methods read as the business rule.

func (s *DatasetCatalogService) getCached(ctx context.Context, name string) (*model.Dataset, error) {
	return nil, nil // placeholder
}

func (s *DatasetCatalogService) setCached(ctx context.Context, ds *model.Dataset) error {
	return nil // placeholder
}

func (s *DatasetCatalogService) createDefaultSchedule(
	ctx context.Context,
	ds *model.Dataset,
	frequency string,
) error {
	return nil // placeholder
}

// ═══════════════════════════════════════════════════════════════════════════
// PATTERN 8: Clock Injection
// ═══════════════════════════════════════════════════════════════════════════

// Anything that compares timestamps or schedules future work takes the time
// from the injected clock, never from time.Now directly. Tests then pin the
// clock with data.NewFixedTimeProvider and step it with AddTime; see the
// coordinator and job status tests.

// Stale reports whether the descriptor has not been refreshed inside ttl.
func (s *DatasetCatalogService) Stale(ds *model.Dataset, ttl time.Duration) bool {
	return s.clock.Now().Sub(ds.RefreshedAt) > ttl
}

// ═══════════════════════════════════════════════════════════════════════════
// NOTES FOR ADDING A SERVICE
// ═══════════════════════════════════════════════════════════════════════════
//
// 1. Define the port interface in internal/core and implement it in
//    internal/data
// 2. Add a mockgen directive to internal/mocks/generate.go for the new port
// 3. Write the service here following the patterns above
// 4. Wire it in internal/bootstrap and, if it serves HTTP, add it to
//    httpx.RouterServices
// 5. Unit tests mock the ports; integration tests go through
//    testutil.WithTestDB
//
// Common pitfalls:
// - Validating in the handler instead of the service
// - Wrapping errors without the operation name
// - Reading time.Now in code a test will want to pin
// - Checking optional dependencies at call sites instead of defaulting them
//   in the constructor
