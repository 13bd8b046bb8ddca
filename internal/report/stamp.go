package report

import (
	"strconv"
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/stamping"
)

// StampHeader is the column layout of the stamping results table.
var StampHeader = []string{"directory", "new_directory", "component_id", "ref_id", "uri", "media_file", "duration", "status", "message"}

// StampTables renders a stamping run as tables.
func StampTables(summary stamping.Summary, results []stamping.Result) []Table {
	rows := make([][]string, 0, len(results))
	for _, r := range results {
		rows = append(rows, []string{
			r.Directory, r.NewDirectory, r.ComponentID, r.RefID, r.URI,
			r.MediaFile, r.Duration, string(r.Status), r.Message,
		})
	}
	summaryRows := [][]string{
		{"run_id", summary.RunID},
		{"root", summary.Root},
		{"dry_run", strconv.FormatBool(summary.DryRun)},
		{"started_at", summary.StartedAt.Format(time.RFC3339)},
		{"finished_at", summary.FinishedAt.Format(time.RFC3339)},
		{"directories", strconv.Itoa(summary.Total)},
	}
	for _, st := range stamping.Statuses() {
		summaryRows = append(summaryRows, []string{string(st), strconv.Itoa(summary.Count(st))})
	}
	return []Table{
		{Name: "Directories", Header: StampHeader, Rows: rows},
		{Name: "Summary", Header: []string{"field", "value"}, Rows: summaryRows},
	}
}

// StampDoc is the JSON stamping report.
type StampDoc struct {
	Summary stamping.Summary  `json:"summary"`
	Results []stamping.Result `json:"results"`
}

// WriteStamp writes <dir>/stamp_report_<timestamp>.<format> for each format.
func WriteStamp(dir string, formats []Format, summary stamping.Summary, results []stamping.Result) ([]string, error) {
	if results == nil {
		results = []stamping.Result{}
	}
	set := Set{
		Dir:     dir,
		Prefix:  "stamp_report",
		Started: summary.StartedAt,
		RunID:   summary.RunID,
		Tables:  StampTables(summary, results),
		Doc:     StampDoc{Summary: summary, Results: results},
	}
	return set.Write(formats)
}
