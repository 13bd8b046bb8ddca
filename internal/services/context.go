package services

import "context"

type contextKey string

const (
	runIDKey         contextKey = "run_id"
	rowKey           contextKey = "row"
	catalogNumberKey contextKey = "catalog_number"
)

// WithRunID annotates context with the run identifier.
func WithRunID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, runIDKey, id)
}

// RunIDFromContext extracts the run identifier if present.
func RunIDFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(runIDKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}

// WithRow annotates context with the 1-based CSV data row number.
func WithRow(ctx context.Context, row int) context.Context {
	if row <= 0 {
		return ctx
	}
	return context.WithValue(ctx, rowKey, row)
}

// RowFromContext extracts the CSV row number if present.
func RowFromContext(ctx context.Context) (int, bool) {
	v, ok := ctx.Value(rowKey).(int)
	if !ok || v <= 0 {
		return 0, false
	}
	return v, true
}

// WithCatalogNumber annotates context with the row's catalog number.
func WithCatalogNumber(ctx context.Context, catalog string) context.Context {
	if catalog == "" {
		return ctx
	}
	return context.WithValue(ctx, catalogNumberKey, catalog)
}

// CatalogNumberFromContext returns the catalog number if present.
func CatalogNumberFromContext(ctx context.Context) (string, bool) {
	if v, ok := ctx.Value(catalogNumberKey).(string); ok && v != "" {
		return v, true
	}
	return "", false
}
