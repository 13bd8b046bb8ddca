package csvsource

import (
	"errors"
	"fmt"
	"io"
	"sort"

	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
)

// Severity grades a validation issue.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Issue is one validation finding. Row is 0 for file-level findings.
type Issue struct {
	Severity Severity `json:"severity"`
	Row      int      `json:"row,omitempty"`
	Column   string   `json:"column,omitempty"`
	Message  string   `json:"message"`
}

func (i Issue) String() string {
	if i.Row > 0 {
		return fmt.Sprintf("Row %d: %s", i.Row, i.Message)
	}
	return i.Message
}

// Stats summarizes the file contents.
type Stats struct {
	TotalRows         int            `json:"total_rows"`
	UniqueCatalog     int            `json:"unique_catalog_numbers"`
	DuplicateCatalog  int            `json:"duplicate_catalog_numbers"`
	EmptyTitles       int            `json:"empty_titles"`
	InvalidDates      int            `json:"invalid_dates"`
	MissingParentRefs int            `json:"missing_parent_refs"`
	UniqueParentRefs  int            `json:"unique_parent_refs"`
	Formats           map[string]int `json:"formats"`
}

// Report is the outcome of validating one CSV file.
type Report struct {
	Header       []string `json:"header"`
	Issues       []Issue  `json:"issues"`
	Stats        Stats    `json:"statistics"`
	DuplicateIDs []string `json:"duplicate_ids,omitempty"`
	parentRefs   map[string]int
}

// Valid reports whether the file has no errors. Warnings do not block an
// import.
func (r Report) Valid() bool {
	return len(r.Errors()) == 0
}

// Errors returns the error-level issues.
func (r Report) Errors() []Issue {
	return r.filter(SeverityError)
}

// Warnings returns the warning-level issues.
func (r Report) Warnings() []Issue {
	return r.filter(SeverityWarning)
}

func (r Report) filter(sev Severity) []Issue {
	var out []Issue
	for _, issue := range r.Issues {
		if issue.Severity == sev {
			out = append(out, issue)
		}
	}
	return out
}

// ParentRefs returns the distinct parent ref_ids in sorted order.
func (r Report) ParentRefs() []string {
	refs := make([]string, 0, len(r.parentRefs))
	for ref := range r.parentRefs {
		refs = append(refs, ref)
	}
	sort.Strings(refs)
	return refs
}

// ParentRefRows returns how many rows name each parent ref_id.
func (r Report) ParentRefRows(ref string) int {
	return r.parentRefs[ref]
}

// Validate reads every row of src and checks column layout, catalog number
// uniqueness, date syntax, and parent references. A read failure is returned
// with the partial report.
func Validate(src *Reader) (Report, error) {
	report := Report{
		Header:     src.Header(),
		parentRefs: map[string]int{},
		Stats:      Stats{Formats: map[string]int{}},
	}
	report.checkHeader()

	seen := map[string]int{}
	for {
		rowNumber, row, err := src.Next()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			report.add(SeverityError, rowNumber, "", "Error reading CSV: "+err.Error())
			return report.finish(seen), err
		}
		report.checkRow(rowNumber, row, seen)
	}
	return report.finish(seen), nil
}

func (r *Report) add(sev Severity, row int, column, message string) {
	r.Issues = append(r.Issues, Issue{Severity: sev, Row: row, Column: column, Message: message})
}

func (r *Report) checkHeader() {
	present := make(map[string]bool, len(r.Header))
	for _, name := range r.Header {
		present[name] = true
	}
	for _, col := range mapping.RequiredColumns() {
		if !present[col] {
			r.add(SeverityError, 0, col, "Missing required column: "+col)
		}
	}
	for _, col := range mapping.MappedColumns() {
		if !present[col] {
			r.add(SeverityWarning, 0, col, "Missing column: "+col+" (field will not be written)")
		}
	}
	for _, name := range r.Header {
		if name != "" && !mapping.KnownColumn(name) {
			r.add(SeverityWarning, 0, name, "Unexpected column: "+name)
		}
	}
}

func (r *Report) checkRow(rowNumber int, row mapping.Row, seen map[string]int) {
	r.Stats.TotalRows++

	catalog := row.CatalogNumber()
	switch {
	case catalog == "":
		r.add(SeverityError, rowNumber, mapping.ColumnCatalogNumber, "Missing catalog number")
	case seen[catalog] > 0:
		r.DuplicateIDs = append(r.DuplicateIDs, catalog)
		r.add(SeverityError, rowNumber, mapping.ColumnCatalogNumber,
			fmt.Sprintf("Duplicate catalog number: %s (first seen in row %d)", catalog, seen[catalog]))
	default:
		seen[catalog] = rowNumber
	}

	if row.Title() == "" {
		r.Stats.EmptyTitles++
		r.add(SeverityWarning, rowNumber, mapping.ColumnTitle, "Empty title (will use catalog number)")
	}

	for _, col := range mapping.DateColumns() {
		value := row.Get(col.Column)
		if value == "" {
			continue
		}
		if _, ok := mapping.ParseDate(value); !ok {
			r.Stats.InvalidDates++
			r.add(SeverityError, rowNumber, col.Column, fmt.Sprintf("Invalid date in %s: %s", col.Column, value))
		}
	}

	if ref := row.ParentRefID(); ref != "" {
		r.parentRefs[ref]++
	} else {
		r.Stats.MissingParentRefs++
		r.add(SeverityError, rowNumber, mapping.ColumnParentRefID, "Missing ASpace Parent RefID (required)")
	}

	if format := row.Get(mapping.ColumnOriginalFormat); format != "" {
		r.Stats.Formats[format]++
	}
}

func (r Report) finish(seen map[string]int) Report {
	r.Stats.UniqueCatalog = len(seen)
	r.Stats.DuplicateCatalog = len(r.DuplicateIDs)
	r.Stats.UniqueParentRefs = len(r.parentRefs)
	return r
}
