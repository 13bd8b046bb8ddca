package logging

import (
	"context"
	"log/slog"

	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

const (
	// FieldComponent is the standardized structured logging key for component names.
	FieldComponent = "component"
	// FieldRunID identifies one import or stamping run.
	FieldRunID = "run_id"
	// FieldRow is the 1-based CSV data row number (header excluded).
	FieldRow = "row"
	// FieldCatalogNumber is the row's component identifier.
	FieldCatalogNumber = "catalog_number"
	// FieldURI is a repository record reference.
	FieldURI = "uri"
	// FieldStatus is a row or directory outcome.
	FieldStatus = "status"
	// FieldAttempt is the 1-based request attempt.
	FieldAttempt = "attempt"
	// FieldEventType classifies a log line for filtering.
	FieldEventType = "event_type"
	// FieldErrorHint tells the operator what to check next.
	FieldErrorHint = "error_hint"
	// FieldImpact is the user-facing consequence of a warning.
	FieldImpact = "impact"
	// FieldAlert flags warnings or anomalies that should stand out in structured logs.
	FieldAlert = "alert"
)

// ContextFields extracts standardized slog attributes from the provided context.
func ContextFields(ctx context.Context) []slog.Attr {
	if ctx == nil {
		return nil
	}
	fields := make([]slog.Attr, 0, 3)
	if id, ok := services.RunIDFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldRunID, id))
	}
	if row, ok := services.RowFromContext(ctx); ok {
		fields = append(fields, slog.Int(FieldRow, row))
	}
	if catalog, ok := services.CatalogNumberFromContext(ctx); ok {
		fields = append(fields, slog.String(FieldCatalogNumber, catalog))
	}
	return fields
}

// WithContext returns a logger augmented with structured fields derived from the supplied context.
func WithContext(ctx context.Context, logger *slog.Logger) *slog.Logger {
	if logger == nil {
		logger = NewNop()
	}
	fields := ContextFields(ctx)
	if len(fields) == 0 {
		return logger
	}
	args := make([]any, 0, len(fields))
	for _, field := range fields {
		args = append(args, field)
	}
	return logger.With(args...)
}
