package errors

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/jackc/pgerrcode"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Regular expressions for parsing PgError.Detail messages.
var (
	// reKeyField extracts field name from unique violation detail: "Key (field)=(value) already exists.".
	reKeyField = regexp.MustCompile(`Key \(([^)]+)\)=`)
	// reReferencedFrom detects parent deletion: "... is still referenced from table ...".
	reReferencedFrom = regexp.MustCompile(`is still referenced from table "?([^"]+)"?`)
	// reNotPresent detects missing parent: "... is not present in table ...".
	reNotPresent = regexp.MustCompile(`is not present in table "?([^"]+)"?`)
)

// MapDBError maps database errors to AppError instances:
// - pgx.ErrNoRows → NotFound
// - Unique constraint violations → Conflict
// - Foreign key violations → ForeignKey
// - Check and NOT NULL violations → Validation
// - Context timeouts/cancellations → Timeout/Canceled
//
// Unrecognized errors are returned unchanged.
func MapDBError(err error) error {
	if err == nil {
		return nil
	}

	if errors.Is(err, context.DeadlineExceeded) {
		return &AppError{
			Code:    ErrCodeTimeout,
			Message: "Request timed out. Please try again.",
			Cause:   err,
		}
	}
	if errors.Is(err, context.Canceled) {
		return &AppError{
			Code:    ErrCodeCanceled,
			Message: "Request was canceled.",
			Cause:   err,
		}
	}

	if errors.Is(err, pgx.ErrNoRows) {
		return &AppError{
			Code:    ErrCodeNotFound,
			Message: "Resource not found",
			Cause:   err,
		}
	}

	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		return mapPgError(pgErr)
	}

	return err
}

func mapPgError(pgErr *pgconn.PgError) error {
	switch pgErr.Code {
	case pgerrcode.UniqueViolation:
		return mapUniqueViolation(pgErr)
	case pgerrcode.ForeignKeyViolation:
		return mapForeignKeyViolation(pgErr)
	case pgerrcode.CheckViolation:
		return mapCheckViolation(pgErr)
	case pgerrcode.NotNullViolation:
		return mapNotNullViolation(pgErr)
	default:
		return &AppError{
			Code:    ErrCodeInternal,
			Message: "A database error occurred. Please try again.",
			Cause:   pgErr,
		}
	}
}

// mapUniqueViolation maps unique constraint violations to Conflict errors.
// The one multi-column unique constraint in the job store is
// ingestion_schedules(dataset, mode), which gets a targeted message.
func mapUniqueViolation(pgErr *pgconn.PgError) error {
	if strings.Contains(pgErr.ConstraintName, "dataset") && strings.Contains(pgErr.ConstraintName, "mode") {
		return &AppError{
			Code:    ErrCodeConflict,
			Message: "An ingestion schedule for this dataset and mode already exists.",
			Cause:   pgErr,
		}
	}

	var field string
	if pgErr.ColumnName != "" {
		field = pgErr.ColumnName
	}
	// Detail is more reliable than constraint-name inference for
	// non-standard constraint names.
	if field == "" && pgErr.Detail != "" {
		if m := reKeyField.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			field = m[1]
		}
	}
	if field == "" {
		field = inferFieldFromConstraint(pgErr.ConstraintName)
	}

	return &AppError{
		Code:    ErrCodeConflict,
		Message: "This value already exists. Please choose a different one.",
		Field:   field,
		Cause:   pgErr,
	}
}

// mapForeignKeyViolation maps foreign key constraint violations to
// ForeignKey errors. Detail distinguishes deleting a referenced parent from
// inserting a child whose parent is missing.
func mapForeignKeyViolation(pgErr *pgconn.PgError) error {
	var message string

	if pgErr.Detail != "" {
		if m := reReferencedFrom.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "Cannot delete because this item is in use by " + tableDisplayName(m[1]) + "."
		} else if m := reNotPresent.FindStringSubmatch(pgErr.Detail); len(m) == 2 {
			message = "Cannot complete operation because the referenced " + tableDisplayName(m[1]) + " does not exist."
		}
	}

	if message == "" && pgErr.TableName != "" {
		message = "Cannot complete operation because this item is in use by " + tableDisplayName(pgErr.TableName) + "."
	}
	if message == "" {
		message = "Cannot complete operation because this item is in use."
	}

	return &AppError{
		Code:    ErrCodeForeignKey,
		Message: message,
		Cause:   pgErr,
	}
}

func mapNotNullViolation(pgErr *pgconn.PgError) error {
	if pgErr.ColumnName != "" {
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field is required.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	}
	return &AppError{
		Code:    ErrCodeValidation,
		Message: "Required field is missing. Please check your input.",
		Cause:   pgErr,
	}
}

func mapCheckViolation(pgErr *pgconn.PgError) error {
	if pgErr.ColumnName != "" {
		return &AppError{
			Code:    ErrCodeValidation,
			Message: "This field has an invalid value.",
			Field:   pgErr.ColumnName,
			Cause:   pgErr,
		}
	}
	return &AppError{
		Code:    ErrCodeValidation,
		Message: "Invalid data. Please check your input.",
		Cause:   pgErr,
	}
}

// inferFieldFromConstraint attempts to infer the field name from a
// constraint name like "testing_schedules_frequency_key" → "frequency".
// Returns empty string if inference fails or is ambiguous.
func inferFieldFromConstraint(constraintName string) string {
	if constraintName == "" {
		return ""
	}
	parts := strings.Split(constraintName, "_")
	if len(parts) < 3 {
		return ""
	}
	// Expect "<table>_<field>_<suffix>" where the table name itself can be
	// multi-word (testing_schedules, ingestion_job_tasks). Match against
	// known tables longest-first and take the remainder before the suffix.
	joined := strings.Join(parts[:len(parts)-1], "_")
	for _, table := range jobStoreTables {
		if strings.HasPrefix(joined, table+"_") {
			field := strings.TrimPrefix(joined, table+"_")
			if field != "" && !strings.Contains(field, "_") {
				return field
			}
			return ""
		}
	}
	return ""
}

// jobStoreTables is ordered longest-first so prefix matching is unambiguous.
var jobStoreTables = []string{
	"ingestion_checkpoints",
	"ingestion_job_tasks",
	"ingestion_schedules",
	"testing_schedules",
	"ingestion_errors",
	"ingestion_state",
	"ingestion_jobs",
	"ingestion_logs",
	"ingestion_runs",
	"testing_runs",
}

// tableDisplayName maps job store table names to operator-friendly names.
func tableDisplayName(tableName string) string {
	tableName = strings.ToLower(strings.TrimSpace(tableName))
	// FK targets may arrive schema-qualified.
	tableName = strings.TrimPrefix(tableName, "market.")

	names := map[string]string{
		"testing_schedules":     "a testing schedule",
		"testing_runs":          "a testing run",
		"ingestion_schedules":   "an ingestion schedule",
		"ingestion_jobs":        "an ingestion job",
		"ingestion_job_tasks":   "an ingestion task",
		"ingestion_runs":        "an ingestion run",
		"ingestion_errors":      "an ingestion error record",
		"ingestion_checkpoints": "an ingestion checkpoint",
	}
	if name, ok := names[tableName]; ok {
		return name
	}
	return strings.ReplaceAll(tableName, "_", " ")
}
