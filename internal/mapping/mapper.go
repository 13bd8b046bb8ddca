package mapping

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/config"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
)

// Note types and labels written by the mapper.
const (
	NoteTypeScopeContent = "scopecontent"
	NoteTypePhysTech     = "phystech"
	NoteTypeODD          = "odd"

	LabelScopeContent = "Scope and Contents"
	LabelPhysTech     = "Physical Characteristics and Technical Requirements"
	LabelDuration     = "Duration"
)

// IsoDate is the layout every parsed date is normalized to.
const IsoDate = "2006-01-02"

// DefaultDateLayouts are tried in order; the first that parses wins.
// Month/day/year is preferred over day/month/year for ambiguous values.
func DefaultDateLayouts() []string {
	return []string{
		"1/2/2006",
		"1/2/06",
		"2006-1-2",
		"2006/1/2",
		"2/1/2006",
	}
}

// Options controls how rows become record fields.
type Options struct {
	DateLayouts   []string
	ExtentPortion string
	ExtentNumber  string
	InstanceType  string
	Level         string
	Publish       bool
}

// DefaultOptions returns the standard mapping settings.
func DefaultOptions() Options {
	return Options{
		DateLayouts:   DefaultDateLayouts(),
		ExtentPortion: "whole",
		ExtentNumber:  "1",
		InstanceType:  "Moving Images (Video)",
		Level:         "item",
		Publish:       true,
	}
}

// OptionsFrom derives mapping options from the application configuration.
func OptionsFrom(cfg *config.Config) Options {
	opts := DefaultOptions()
	if cfg == nil {
		return opts
	}
	if v := strings.TrimSpace(cfg.Import.InstanceType); v != "" {
		opts.InstanceType = v
	}
	if v := strings.TrimSpace(cfg.Import.Level); v != "" {
		opts.Level = v
	}
	opts.Publish = cfg.Import.Publish
	return opts
}

// ContainerMinter creates top containers for new records.
type ContainerMinter interface {
	CreateTopContainer(ctx context.Context, indicator string) (string, error)
}

// Fields is the set of record fields mapped from one row. Empty values mean
// the row supplied nothing for that field.
type Fields struct {
	Title          string
	Dates          []aspace.Date
	Extents        []aspace.Extent
	Notes          aspace.Notes
	Description    string
	TechnicalNotes string
}

// NoteTypes lists the note types this mapping replaces on update.
func (f Fields) NoteTypes() []string {
	return f.Notes.Types()
}

// Mapper converts CSV rows into record fields.
type Mapper struct {
	opts   Options
	logger *slog.Logger
}

// New constructs a Mapper.
func New(opts Options, logger *slog.Logger) *Mapper {
	if len(opts.DateLayouts) == 0 {
		opts.DateLayouts = DefaultDateLayouts()
	}
	if opts.ExtentPortion == "" {
		opts.ExtentPortion = "whole"
	}
	if opts.ExtentNumber == "" {
		opts.ExtentNumber = "1"
	}
	return &Mapper{opts: opts, logger: logging.NewComponentLogger(logger, "mapping")}
}

// ParseDate normalizes a date string to YYYY-MM-DD using the default layouts.
func ParseDate(value string) (string, bool) {
	return parseDate(value, DefaultDateLayouts())
}

func parseDate(value string, layouts []string) (string, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return "", false
	}
	for _, layout := range layouts {
		if parsed, err := time.Parse(layout, value); err == nil {
			return parsed.Format(IsoDate), true
		}
	}
	return "", false
}

// Dates maps the three date columns. Unparsable values are dropped with a
// warning.
func (m *Mapper) Dates(ctx context.Context, row Row) []aspace.Date {
	var dates []aspace.Date
	for _, col := range DateColumns() {
		raw := row.Get(col.Column)
		if raw == "" {
			continue
		}
		iso, ok := parseDate(raw, m.opts.DateLayouts)
		if !ok {
			logging.WarnWithContext(logging.WithContext(ctx, m.logger), "date could not be parsed; omitted", "date_unparsable",
				logging.String("column", col.Column),
				logging.String("value", raw),
				logging.String(logging.FieldImpact, "record is written without this date"),
				logging.String(logging.FieldErrorHint, "use M/D/YYYY or YYYY-MM-DD"),
			)
			continue
		}
		dates = append(dates, aspace.Date{
			DateType:   "single",
			Label:      col.Label,
			Begin:      iso,
			Expression: iso,
		})
	}
	return dates
}

// Extents maps the Original Format column to a single extent.
func (m *Mapper) Extents(ctx context.Context, row Row) []aspace.Extent {
	format := row.Get(ColumnOriginalFormat)
	if format == "" {
		logging.WarnWithContext(logging.WithContext(ctx, m.logger), "no original format; extent omitted", "extent_missing",
			logging.String(logging.FieldImpact, "record is written without an extent"),
			logging.String(logging.FieldErrorHint, "fill the Original Format column"),
		)
		return nil
	}
	return []aspace.Extent{{
		Portion:    m.opts.ExtentPortion,
		Number:     m.opts.ExtentNumber,
		ExtentType: format,
	}}
}

// Notes builds the scope and contents note from DESCRIPTION and the technical
// note from _TRANSFER_NOTES. Empty source text produces no note.
func (m *Mapper) Notes(ctx context.Context, row Row) aspace.Notes {
	var notes aspace.Notes
	if description := row.Get(ColumnDescription); description != "" {
		notes = append(notes, textNote(NoteTypeScopeContent, LabelScopeContent, description))
	} else {
		logging.WithContext(ctx, m.logger).Debug("no description; scope note omitted")
	}
	if transfer := row.Get(ColumnTransferNotes); transfer != "" {
		notes = append(notes, textNote(NoteTypePhysTech, LabelPhysTech, transfer))
	}
	return notes
}

func textNote(noteType, label, content string) aspace.MultipartNote {
	return aspace.MultipartNote{
		Type:     noteType,
		Label:    label,
		Publish:  true,
		Subnotes: aspace.Subnotes{aspace.TextSubnote{Content: content}},
	}
}

// Instances mints a top container named after the catalog number and links
// it as the record's instance. It is the only mapper with a side effect and
// must not be called in dry runs.
func (m *Mapper) Instances(ctx context.Context, row Row, minter ContainerMinter) ([]aspace.Instance, error) {
	catalog := row.CatalogNumber()
	if catalog == "" || minter == nil {
		return nil, nil
	}
	uri, err := minter.CreateTopContainer(ctx, catalog)
	if err != nil {
		return nil, err
	}
	return []aspace.Instance{{
		InstanceType: m.opts.InstanceType,
		SubContainer: &aspace.SubContainer{TopContainer: aspace.Ref{Ref: uri}},
	}}, nil
}

// Fields maps every comparable field of a row.
func (m *Mapper) Fields(ctx context.Context, row Row) Fields {
	return Fields{
		Title:          row.Title(),
		Dates:          m.Dates(ctx, row),
		Extents:        m.Extents(ctx, row),
		Notes:          m.Notes(ctx, row),
		Description:    row.Get(ColumnDescription),
		TechnicalNotes: row.Get(ColumnTransferNotes),
	}
}

// ArchivalObject builds the create payload. The title falls back to the
// catalog number when TITLE is empty.
func (m *Mapper) ArchivalObject(row Row, fields Fields, parentURI, resourceURI string, instances []aspace.Instance) aspace.ArchivalObject {
	title := fields.Title
	if title == "" {
		title = row.CatalogNumber()
	}
	if title == "" {
		title = "Untitled"
	}
	obj := aspace.ArchivalObject{
		Title:       title,
		ComponentID: row.CatalogNumber(),
		Level:       m.opts.Level,
		Publish:     m.opts.Publish,
		Resource:    &aspace.Ref{Ref: resourceURI},
		Dates:       fields.Dates,
		Extents:     fields.Extents,
		Notes:       fields.Notes,
		Instances:   instances,
	}
	if parentURI != "" {
		obj.Parent = &aspace.Ref{Ref: parentURI}
	}
	return obj
}

// DurationNote builds the ODD note holding a media runtime.
func DurationNote(runtime string) aspace.MultipartNote {
	return aspace.MultipartNote{
		Type:  NoteTypeODD,
		Label: "",
		Subnotes: aspace.Subnotes{aspace.DefinedListSubnote{
			Items: []aspace.DefinedListItem{{Label: LabelDuration, Value: runtime}},
		}},
	}
}

// ApplyDurationNote replaces the first multipart ODD note with a duration
// note, or appends one. It reports whether an existing note was replaced.
func ApplyDurationNote(notes aspace.Notes, runtime string) (aspace.Notes, bool) {
	out := make(aspace.Notes, 0, len(notes)+1)
	replaced := false
	for _, note := range notes {
		if mp, ok := note.(aspace.MultipartNote); ok && mp.Type == NoteTypeODD && !replaced {
			out = append(out, DurationNote(runtime))
			replaced = true
			continue
		}
		out = append(out, note)
	}
	if !replaced {
		out = append(out, DurationNote(runtime))
	}
	return out, replaced
}
