package database

import (
	"testing"
	"time"
)

func TestBuildListQuery_BasicSelect(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_runs")
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "market"."ingestion_runs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_WithColumns(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_runs",
		WithColumns("run_id", "dataset", "status"),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT "run_id", "dataset", "status" FROM "market"."ingestion_runs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_QualifiedTableIsSplitOnDots(t *testing.T) {
	opts := NewListQueryOptions("market.testing_runs",
		WithColumns("run_id"),
	)
	query, _ := BuildListQuery(opts)

	expected := `SELECT "run_id" FROM "market"."testing_runs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
}

func TestBuildListQuery_CountOnly(t *testing.T) {
	since := time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)
	opts := NewListQueryOptions("market.ingestion_runs",
		WithCountOnly(),
		WithCondition(WhereCond("created_at", GreaterThanOrEqual, since)),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT COUNT(*) FROM "market"."ingestion_runs" WHERE "created_at" >= $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != since {
		t.Errorf("Expected args [%v], got %v", since, args)
	}
}

func TestBuildListQuery_CountOnlySkipsPagination(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_runs",
		WithCountOnly(),
		WithOrderBy("created_at", "DESC"),
		WithLimit(10),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT COUNT(*) FROM "market"."ingestion_runs"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 0 {
		t.Errorf("Expected 0 args, got %d", len(args))
	}
}

func TestBuildListQuery_WhereConditions(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_runs",
		WithCondition(WhereCond("dataset", Equal, "kline_daily")),
		WithCondition(WhereCond("created_at", GreaterThanOrEqual, "2024-06-01")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "market"."ingestion_runs" WHERE "dataset" = $1 AND "created_at" >= $2`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 2 || args[0] != "kline_daily" || args[1] != "2024-06-01" {
		t.Errorf("Expected args [kline_daily, 2024-06-01], got %v", args)
	}
}

func TestBuildListQuery_EmptyFieldSkipped(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_runs",
		WithCondition(WhereCond("", Equal, "ignored")),
		WithCondition(WhereCond("status", Equal, "failed")),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "market"."ingestion_runs" WHERE "status" = $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != "failed" {
		t.Errorf("Expected args [failed], got %v", args)
	}
}

func TestBuildListQuery_OrderLimitOffset(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_logs",
		WithCondition(WhereCond("job_id", Equal, "abc")),
		WithOrderBy("ts", "DESC"),
		WithLimit(50),
		WithOffset(100),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "market"."ingestion_logs" WHERE "job_id" = $1 ORDER BY "ts" DESC LIMIT $2 OFFSET $3`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 3 || args[0] != "abc" || args[1] != 50 || args[2] != 100 {
		t.Errorf("Expected args [abc, 50, 100], got %v", args)
	}
}

func TestBuildListQuery_InvalidOrderDirOmitted(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_logs",
		WithOrderBy("ts", "sideways"),
	)
	query, _ := BuildListQuery(opts)

	expected := `SELECT * FROM "market"."ingestion_logs" ORDER BY "ts"`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
}

func TestBuildListQuery_ZeroLimitIsExplicit(t *testing.T) {
	opts := NewListQueryOptions("market.ingestion_logs",
		WithLimit(0),
	)
	query, args := BuildListQuery(opts)

	expected := `SELECT * FROM "market"."ingestion_logs" LIMIT $1`
	if query != expected {
		t.Errorf("Expected query %q, got %q", expected, query)
	}
	if len(args) != 1 || args[0] != 0 {
		t.Errorf("Expected args [0], got %v", args)
	}
}

func TestBuildListQuery_NilOptions(t *testing.T) {
	query, args := BuildListQuery(nil)
	if query != "" {
		t.Errorf("Expected empty query, got %q", query)
	}
	if args != nil {
		t.Errorf("Expected nil args, got %v", args)
	}
}

func TestSanitizeIdentifier_QuotesEmbeddedQuotes(t *testing.T) {
	got := sanitizeIdentifier(`bad"name`)
	expected := `"bad""name"`
	if got != expected {
		t.Errorf("Expected %q, got %q", expected, got)
	}
}
