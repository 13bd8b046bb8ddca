package history

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/JPC-AV/aspace-jpc-av/internal/importer"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/stamping"
)

// Recorder writes Batch Driver results into the ledger. Storage failures are
// logged and never interrupt the import.
type Recorder struct {
	store  *Store
	runID  string
	logger *slog.Logger
	failed bool
}

// NewRecorder inserts the run and returns an Observer for it.
func NewRecorder(ctx context.Context, store *Store, run Run, logger *slog.Logger) (*Recorder, error) {
	if err := store.BeginRun(ctx, run); err != nil {
		return nil, err
	}
	return &Recorder{
		store:  store,
		runID:  run.ID,
		logger: logging.NewComponentLogger(logger, "history"),
	}, nil
}

// RowCompleted stores one row outcome.
func (r *Recorder) RowCompleted(ctx context.Context, result importer.Result) {
	rec := RowRecord{
		RunID:         r.runID,
		RowNumber:     result.RowNumber,
		CatalogNumber: result.CatalogNumber,
		Title:         result.Title,
		Status:        string(result.Status),
		Message:       result.Message,
		URI:           result.URI,
		ErrorKind:     result.ErrorKind,
		Patch:         result.Patch,
		Elapsed:       result.Elapsed,
	}
	if !result.Changes.Empty() {
		if data, err := json.Marshal(result.Changes); err == nil {
			rec.Changes = data
		}
	}
	if err := r.store.RecordRow(context.WithoutCancel(ctx), rec); err != nil {
		r.warn("history row not recorded", err, logging.Int(logging.FieldRow, result.RowNumber))
	}
}

// RunCompleted stores the final summary.
func (r *Recorder) RunCompleted(ctx context.Context, summary importer.Summary) {
	counts := make(map[string]int, len(summary.Counts))
	for status, n := range summary.Counts {
		counts[string(status)] = n
	}
	err := r.store.FinishRun(context.WithoutCancel(ctx), Run{
		ID:          r.runID,
		FinishedAt:  summary.FinishedAt,
		TotalRows:   summary.TotalRows,
		Counts:      counts,
		Aborted:     summary.Aborted,
		AbortReason: summary.AbortReason,
	})
	if err != nil {
		r.warn("history run not finalized", err)
	}
}

// warn logs the first storage failure at warn level and later ones at debug
// so a broken ledger does not flood the console.
func (r *Recorder) warn(msg string, err error, attrs ...logging.Attr) {
	attrs = append(attrs,
		logging.String(logging.FieldRunID, r.runID),
		logging.Error(err),
		logging.String(logging.FieldErrorHint, "check permissions on "+r.store.Path()),
		logging.String(logging.FieldImpact, "history for this run is incomplete"),
	)
	if r.failed {
		r.logger.Debug(msg, logging.Args(attrs...)...)
		return
	}
	r.failed = true
	logging.WarnWithContext(r.logger, msg, "history_write_failed", attrs...)
}

// RecordStamp stores a finished stamping run. Each directory is one row,
// numbered in processing order and keyed by its component id.
func RecordStamp(ctx context.Context, store *Store, summary stamping.Summary, results []stamping.Result) error {
	ctx = context.WithoutCancel(ctx)
	if err := store.BeginRun(ctx, Run{
		ID:        summary.RunID,
		Kind:      KindStamp,
		Source:    summary.Root,
		DryRun:    summary.DryRun,
		StartedAt: summary.StartedAt,
	}); err != nil {
		return err
	}
	for _, result := range results {
		title := result.Directory
		if result.NewDirectory != "" {
			title = result.NewDirectory
		}
		if err := store.RecordRow(ctx, RowRecord{
			RunID:         summary.RunID,
			RowNumber:     result.Index,
			CatalogNumber: result.ComponentID,
			Title:         title,
			Status:        string(result.Status),
			Message:       result.Message,
			URI:           result.URI,
			ErrorKind:     result.ErrorKind,
			Patch:         result.Patch,
			Elapsed:       result.Elapsed,
		}); err != nil {
			return err
		}
	}
	counts := make(map[string]int, len(summary.Counts))
	for status, n := range summary.Counts {
		counts[string(status)] = n
	}
	return store.FinishRun(ctx, Run{
		ID:         summary.RunID,
		FinishedAt: summary.FinishedAt,
		TotalRows:  summary.Total,
		Counts:     counts,
	})
}
