package importer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"runtime/debug"
	"time"

	"github.com/google/uuid"

	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// RowSource yields rows in file order. Next returns io.EOF after the last row.
type RowSource interface {
	Next() (int, mapping.Row, error)
}

// RowProcessor handles one row. *Processor implements it.
type RowProcessor interface {
	Process(ctx context.Context, rowNumber int, row mapping.Row) (Result, error)
}

// Observer receives results as the run progresses.
type Observer interface {
	RowCompleted(ctx context.Context, result Result)
	RunCompleted(ctx context.Context, summary Summary)
}

// DriverOptions controls batch pacing and reporting.
type DriverOptions struct {
	RunID            string
	Source           string
	Mode             Mode
	DryRun           bool
	BatchSize        int
	Pause            time.Duration
	ProgressInterval int
	Observers        []Observer
}

// Driver runs every row of a source through a RowProcessor.
type Driver struct {
	processor RowProcessor
	opts      DriverOptions
	logger    *slog.Logger
	sleep     func(context.Context, time.Duration) error
	now       func() time.Time
}

// DriverOption customizes a Driver.
type DriverOption func(*Driver)

// WithSleeper replaces the pacing sleep, mainly for tests.
func WithSleeper(sleep func(context.Context, time.Duration) error) DriverOption {
	return func(d *Driver) {
		if sleep != nil {
			d.sleep = sleep
		}
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) DriverOption {
	return func(d *Driver) {
		if now != nil {
			d.now = now
		}
	}
}

// NewDriver constructs a Driver.
func NewDriver(processor RowProcessor, opts DriverOptions, logger *slog.Logger, options ...DriverOption) *Driver {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if opts.Mode == "" {
		opts.Mode = ModeSkip
	}
	if opts.BatchSize <= 0 {
		opts.BatchSize = 10
	}
	d := &Driver{
		processor: processor,
		opts:      opts,
		logger:    logging.NewComponentLogger(logger, "importer"),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range options {
		opt(d)
	}
	return d
}

// RunID returns the identifier stamped on the run.
func (d *Driver) RunID() string {
	return d.opts.RunID
}

// Run processes rows until the source is exhausted, a fail-mode duplicate
// aborts the batch, or ctx is cancelled. The summary is always finalized.
// The returned error is non-nil only when rows could not be read or the run
// was cancelled; row failures are reported through results.
func (d *Driver) Run(ctx context.Context, source RowSource) (Summary, []Result, error) {
	ctx = services.WithRunID(ctx, d.opts.RunID)
	logger := logging.WithContext(ctx, d.logger)

	summary := NewSummary(d.opts.RunID, d.opts.Mode, d.opts.DryRun, d.now())
	summary.Source = d.opts.Source
	var results []Result

	logger.Info("import started",
		logging.String("source", d.opts.Source),
		logging.String("mode", string(d.opts.Mode)),
		logging.Bool("dry_run", d.opts.DryRun),
	)

	var runErr error
	paced := 0
	for {
		if err := ctx.Err(); err != nil {
			summary.Aborted = true
			summary.AbortReason = "interrupted"
			runErr = services.Wrap(services.ErrTimeout, "importer", "run", "run cancelled", err)
			break
		}

		rowNumber, row, err := source.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			summary.Aborted = true
			summary.AbortReason = "input could not be read"
			runErr = services.Wrap(services.ErrValidation, "importer", "read rows", "read input", err)
			logging.ErrorWithContext(logger, "input read failed; stopping", "input_read_failed",
				logging.Error(err),
				logging.Int(logging.FieldRow, rowNumber),
				logging.String(logging.FieldErrorHint, "check the CSV encoding and quoting"),
			)
			break
		}

		if paced > 0 && paced%d.opts.BatchSize == 0 && d.opts.Pause > 0 && !d.opts.DryRun {
			if err := d.sleep(ctx, d.opts.Pause); err != nil {
				summary.Aborted = true
				summary.AbortReason = "interrupted"
				runErr = services.Wrap(services.ErrTimeout, "importer", "run", "run cancelled", err)
				break
			}
		}

		result, procErr := d.processRow(ctx, rowNumber, row)
		results = append(results, result)
		summary.Add(result)
		paced++
		for _, obs := range d.opts.Observers {
			obs.RowCompleted(ctx, result)
		}

		var dup *DuplicateError
		if errors.As(procErr, &dup) {
			summary.Aborted = true
			summary.AbortReason = dup.Error()
			logging.ErrorWithContext(logger, "duplicate found in fail mode; run aborted", "duplicate_abort",
				logging.Int(logging.FieldRow, rowNumber),
				logging.String(logging.FieldCatalogNumber, dup.CatalogNumber),
				logging.String(logging.FieldURI, dup.URI),
				logging.String(logging.FieldErrorHint, "rerun with --duplicates skip or update"),
			)
			break
		}

		if d.opts.ProgressInterval > 0 && summary.TotalRows%d.opts.ProgressInterval == 0 {
			logger.Info("progress",
				logging.Int("processed", summary.TotalRows),
				logging.Int("created", summary.Count(StatusCreated)),
				logging.Int("updated", summary.Count(StatusUpdated)),
				logging.Int("unchanged", summary.Count(StatusUnchanged)),
				logging.Int("skipped", summary.Count(StatusSkipped)),
				logging.Int("errors", summary.Count(StatusError)),
			)
		}
	}

	summary.FinishedAt = d.now()
	logger.Info("import finished",
		logging.Int("rows", summary.TotalRows),
		logging.Int("created", summary.Count(StatusCreated)),
		logging.Int("updated", summary.Count(StatusUpdated)),
		logging.Int("unchanged", summary.Count(StatusUnchanged)),
		logging.Int("skipped", summary.Count(StatusSkipped)),
		logging.Int("errors", summary.Count(StatusError)),
		logging.Bool("aborted", summary.Aborted),
		logging.Duration("elapsed", summary.Duration()),
	)
	for _, obs := range d.opts.Observers {
		obs.RunCompleted(ctx, summary)
	}
	return summary, results, runErr
}

// processRow isolates a row: a panic becomes an error result.
func (d *Driver) processRow(ctx context.Context, rowNumber int, row mapping.Row) (result Result, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = Result{
				RowNumber:     rowNumber,
				CatalogNumber: row.CatalogNumber(),
				Title:         row.Title(),
				Status:        StatusError,
				Message:       fmt.Sprintf("Unexpected error: %v", r),
				ErrorKind:     "error",
			}
			err = nil
			logging.ErrorWithContext(logging.WithContext(services.WithRow(ctx, rowNumber), d.logger), "row panicked", "row_panic",
				logging.Any("panic", r),
				logging.String("stack", string(debug.Stack())),
			)
		}
	}()
	return d.processor.Process(ctx, rowNumber, row)
}

func sleepContext(ctx context.Context, delay time.Duration) error {
	timer := time.NewTimer(delay)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
