package importer

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/changes"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
	"github.com/JPC-AV/aspace-jpc-av/internal/vocab"
)

const dryRunPrefix = "[DRY RUN] "

// Repository is the subset of the repository client the processor needs.
type Repository interface {
	FindByIdentifier(ctx context.Context, kind, value string) (aspace.Match, error)
	GetArchivalObject(ctx context.Context, uri string) (aspace.Record, error)
	CreateArchivalObject(ctx context.Context, obj aspace.ArchivalObject) (aspace.WriteResult, error)
	UpdateArchivalObject(ctx context.Context, uri string, body json.RawMessage) (aspace.WriteResult, error)
	CreateTopContainer(ctx context.Context, indicator string) (string, error)
	ResourceURI() string
}

// Options configures row processing.
type Options struct {
	Mode   Mode
	DryRun bool
	// Extents, when set, rejects rows whose Original Format is not a term.
	Extents *vocab.Checker
}

// Processor turns one row into one repository operation.
type Processor struct {
	repo   Repository
	mapper *mapping.Mapper
	opts   Options
	logger *slog.Logger
}

// NewProcessor wires a processor.
func NewProcessor(repo Repository, mapper *mapping.Mapper, opts Options, logger *slog.Logger) *Processor {
	if opts.Mode == "" {
		opts.Mode = ModeSkip
	}
	if mapper == nil {
		mapper = mapping.New(mapping.DefaultOptions(), logger)
	}
	return &Processor{
		repo:   repo,
		mapper: mapper,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "importer"),
	}
}

// Process handles one row and always returns its Result. The error is
// non-nil only for a fail-mode duplicate, which must stop the batch.
func (p *Processor) Process(ctx context.Context, rowNumber int, row mapping.Row) (Result, error) {
	started := time.Now()
	result := Result{
		RowNumber:     rowNumber,
		CatalogNumber: row.CatalogNumber(),
		Title:         row.Title(),
	}
	ctx = services.WithRow(ctx, rowNumber)
	if result.CatalogNumber != "" {
		ctx = services.WithCatalogNumber(ctx, result.CatalogNumber)
	}

	result, err := p.process(ctx, row, result)
	result.Elapsed = time.Since(started)
	p.logResult(ctx, result)
	return result, err
}

func (p *Processor) process(ctx context.Context, row mapping.Row, result Result) (Result, error) {
	if result.CatalogNumber == "" {
		return skip(result, "Missing CATALOG_NUMBER"), nil
	}

	if p.opts.Extents != nil {
		if format := row.Get(mapping.ColumnOriginalFormat); format != "" && !p.opts.Extents.Contains(format) {
			msg := fmt.Sprintf("Invalid extent type %q", format)
			if suggestions := p.opts.Extents.Suggest(format, 3); len(suggestions) > 0 {
				msg += "; did you mean: " + strings.Join(suggestions, ", ")
			}
			return fail(result, services.Wrap(services.ErrValidation, "importer", "validate extent", msg, nil), msg), nil
		}
	}

	match, err := p.repo.FindByIdentifier(ctx, aspace.IdentifierComponentID, result.CatalogNumber)
	if err != nil {
		return fail(result, err, "Duplicate check failed: "+err.Error()), nil
	}
	p.warnMultiple(ctx, match)

	return p.dispatch(ctx, row, result, match, false)
}

// dispatch applies the duplicate policy. recheck marks a match that appeared
// between the first search and the write.
func (p *Processor) dispatch(ctx context.Context, row mapping.Row, result Result, match aspace.Match, recheck bool) (Result, error) {
	action := p.opts.Mode.Resolve(match)
	switch action {
	case ActionSkip:
		result.URI = match.URI
		if recheck {
			return skip(result, "Created by another run before write (skipped)"), nil
		}
		return skip(result, "Already exists (skipped)"), nil
	case ActionFail:
		dup := &DuplicateError{CatalogNumber: result.CatalogNumber, URI: match.URI, RowNumber: result.RowNumber}
		result.URI = match.URI
		return fail(result, dup, dup.Error()), dup
	case ActionUpdate:
		return p.update(ctx, row, result, match)
	default:
		return p.create(ctx, row, result)
	}
}

func (p *Processor) update(ctx context.Context, row mapping.Row, result Result, match aspace.Match) (Result, error) {
	result.URI = match.URI
	record, err := p.repo.GetArchivalObject(ctx, match.URI)
	if err != nil {
		return fail(result, err, "Failed to fetch existing record: "+err.Error()), nil
	}
	if result.Title == "" {
		result.Title = record.Object.Title
	}

	fields := p.mapper.Fields(ctx, row)
	diff := changes.Detect(record.Object, fields)
	if diff.Empty() {
		result.Status = StatusUnchanged
		result.Message = "No changes detected"
		return result, nil
	}
	result.Changes = diff

	body, err := changes.Merge(record, fields)
	if err != nil {
		return fail(result, err, "Failed to build update: "+err.Error()), nil
	}
	if patch, err := changes.AuditPatch(record.Raw, body); err == nil {
		result.Patch = patch
		logging.WithContext(ctx, p.logger).Debug("update patch", logging.String("patch", string(patch)))
	}

	if p.opts.DryRun {
		result.Status = StatusUpdated
		result.Message = dryRunPrefix + "Would update existing record: " + strings.Join(diff.Fields(), ", ")
		return result, nil
	}

	written, err := p.repo.UpdateArchivalObject(ctx, match.URI, body)
	if err != nil {
		return fail(result, err, "Update failed: "+err.Error()), nil
	}
	if written.URI != "" {
		result.URI = written.URI
	}
	result.Status = StatusUpdated
	result.Message = "Updated: " + strings.Join(diff.Fields(), ", ")
	return result, nil
}

func (p *Processor) create(ctx context.Context, row mapping.Row, result Result) (Result, error) {
	parentRef := row.ParentRefID()
	if parentRef == "" {
		err := services.Wrap(services.ErrValidation, "importer", "create", "missing parent ref id", nil)
		return fail(result, err, "Missing "+mapping.ColumnParentRefID), nil
	}
	parent, err := p.repo.FindByIdentifier(ctx, aspace.IdentifierRefID, parentRef)
	if err != nil {
		return fail(result, err, "Parent lookup failed: "+err.Error()), nil
	}
	if !parent.Exists {
		err := services.Wrap(services.ErrNotFound, "importer", "create", "parent "+parentRef+" not found", nil)
		return fail(result, err, "Parent not found: "+parentRef), nil
	}

	fields := p.mapper.Fields(ctx, row)
	if p.opts.DryRun {
		obj := p.mapper.ArchivalObject(row, fields, parent.URI, p.repo.ResourceURI(), nil)
		result.Title = obj.Title
		result.Status = StatusCreated
		result.URI = "/dry_run/" + result.CatalogNumber
		result.Message = dryRunPrefix + "Would be created"
		return result, nil
	}

	recheck, err := p.repo.FindByIdentifier(ctx, aspace.IdentifierComponentID, result.CatalogNumber)
	if err != nil {
		return fail(result, err, "Duplicate re-check failed: "+err.Error()), nil
	}
	if recheck.Exists {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "record appeared before write", "duplicate_race",
			logging.String(logging.FieldURI, recheck.URI),
			logging.String(logging.FieldImpact, "row handled as an existing record"),
			logging.String(logging.FieldErrorHint, "avoid concurrent runs against the same resource"),
		)
		return p.dispatch(ctx, row, result, recheck, true)
	}

	instances, err := p.mapper.Instances(ctx, row, p.repo)
	if err != nil {
		logging.WarnWithContext(logging.WithContext(ctx, p.logger), "top container not created; record created without instance", "container_create_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "item has no container link"),
			logging.String(logging.FieldErrorHint, "link a top container manually"),
		)
		instances = nil
	}

	obj := p.mapper.ArchivalObject(row, fields, parent.URI, p.repo.ResourceURI(), instances)
	result.Title = obj.Title
	written, err := p.repo.CreateArchivalObject(ctx, obj)
	if err != nil {
		return fail(result, err, "Create failed: "+err.Error()), nil
	}
	result.Status = StatusCreated
	result.URI = written.URI
	result.Message = "Created"
	return result, nil
}

func (p *Processor) warnMultiple(ctx context.Context, match aspace.Match) {
	if !match.Multiple() {
		return
	}
	logging.WarnWithContext(logging.WithContext(ctx, p.logger), "multiple records share this catalog number; using first", "duplicate_matches",
		logging.Int("matches", match.Total),
		logging.String(logging.FieldURI, match.URI),
		logging.String(logging.FieldImpact, "only the first match is compared or skipped"),
		logging.String(logging.FieldErrorHint, "merge or renumber the duplicate records"),
	)
}

func (p *Processor) logResult(ctx context.Context, result Result) {
	logger := logging.WithContext(ctx, p.logger)
	attrs := []logging.Attr{
		logging.String(logging.FieldStatus, string(result.Status)),
		logging.String("message", result.Message),
	}
	if result.URI != "" {
		attrs = append(attrs, logging.String(logging.FieldURI, result.URI))
	}
	if result.Status == StatusError {
		if result.ErrorKind == "duplicate" {
			// The driver logs the abort.
			return
		}
		logging.ErrorWithContext(logger, "row failed", "row_failed",
			append(attrs, logging.String("error_kind", result.ErrorKind))...)
		return
	}
	logger.Info("row "+string(result.Status), logging.Args(attrs...)...)
}

func skip(result Result, message string) Result {
	result.Status = StatusSkipped
	result.Message = message
	return result
}

func fail(result Result, err error, message string) Result {
	result.Status = StatusError
	result.Message = message
	result.ErrorKind = services.Kind(err)
	return result
}
