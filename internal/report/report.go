package report

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/importer"
)

// TimestampLayout names report files, e.g. import_report_20260102_150405.csv.
const TimestampLayout = "20060102_150405"

// Set is one report rendered in several formats. JSON is written from Doc;
// CSV uses the first table; XLSX gets every table as a worksheet.
type Set struct {
	Dir     string
	Prefix  string
	Started time.Time
	RunID   string
	Tables  []Table
	Doc     any
}

// Write renders the set in each format and returns the written paths.
func (s Set) Write(formats []Format) ([]string, error) {
	if len(formats) == 0 {
		return nil, nil
	}
	if len(s.Tables) == 0 {
		return nil, fmt.Errorf("report %s: no tables", s.Prefix)
	}
	base := s.baseName(formats)
	var (
		paths []string
		errs  []error
	)
	for _, format := range formats {
		path := filepath.Join(s.Dir, base+"."+string(format))
		var err error
		switch format {
		case FormatCSV:
			err = WriteCSV(path, s.Tables[0])
		case FormatJSON:
			doc := s.Doc
			if doc == nil {
				doc = s.Tables
			}
			err = WriteJSON(path, doc)
		case FormatXLSX:
			err = WriteXLSX(path, s.Tables...)
		default:
			err = fmt.Errorf("unsupported report format %q", format)
		}
		if err != nil {
			errs = append(errs, fmt.Errorf("write %s: %w", path, err))
			continue
		}
		paths = append(paths, path)
	}
	return paths, errors.Join(errs...)
}

// baseName avoids clobbering a report from another run started in the same
// second.
func (s Set) baseName(formats []Format) string {
	base := s.Prefix + "_" + s.Started.Format(TimestampLayout)
	if !s.exists(base, formats) {
		return base
	}
	if len(s.RunID) >= 8 {
		if candidate := base + "_" + s.RunID[:8]; !s.exists(candidate, formats) {
			return candidate
		}
	}
	for i := 2; ; i++ {
		candidate := base + "_" + strconv.Itoa(i)
		if !s.exists(candidate, formats) {
			return candidate
		}
	}
}

func (s Set) exists(base string, formats []Format) bool {
	for _, format := range formats {
		if _, err := os.Stat(filepath.Join(s.Dir, base+"."+string(format))); err == nil {
			return true
		}
	}
	return false
}

// ResultHeader is the column layout of the import results table.
var ResultHeader = []string{"row_number", "catalog_number", "title", "status", "message", "uri", "changes"}

// ImportTables renders results and the run summary as tables.
func ImportTables(summary importer.Summary, results []importer.Result) []Table {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			strconv.Itoa(r.RowNumber),
			r.CatalogNumber,
			r.Title,
			string(r.Status),
			r.Message,
			r.URI,
			r.Changes.String(),
		})
	}

	summaryRows := [][]string{
		{"run_id", summary.RunID},
		{"source", summary.Source},
		{"mode", string(summary.Mode)},
		{"dry_run", strconv.FormatBool(summary.DryRun)},
		{"started_at", summary.StartedAt.Format(time.RFC3339)},
		{"finished_at", summary.FinishedAt.Format(time.RFC3339)},
		{"total_rows", strconv.Itoa(summary.TotalRows)},
	}
	for _, st := range importer.Statuses() {
		summaryRows = append(summaryRows, []string{string(st), strconv.Itoa(summary.Count(st))})
	}
	summaryRows = append(summaryRows, []string{"aborted", strconv.FormatBool(summary.Aborted)})
	if summary.AbortReason != "" {
		summaryRows = append(summaryRows, []string{"abort_reason", summary.AbortReason})
	}

	return []Table{
		{Name: "Results", Header: ResultHeader, Rows: rows},
		{Name: "Summary", Header: []string{"field", "value"}, Rows: summaryRows},
	}
}

// ImportDoc is the JSON import report.
type ImportDoc struct {
	Summary importer.Summary  `json:"summary"`
	Results []importer.Result `json:"results"`
}

// WriteImport writes <dir>/import_report_<timestamp>.<format> for each format.
func WriteImport(dir string, formats []Format, summary importer.Summary, results []importer.Result) ([]string, error) {
	if results == nil {
		results = []importer.Result{}
	}
	set := Set{
		Dir:     dir,
		Prefix:  "import_report",
		Started: summary.StartedAt,
		RunID:   summary.RunID,
		Tables:  ImportTables(summary, results),
		Doc:     ImportDoc{Summary: summary, Results: results},
	}
	return set.Write(formats)
}
