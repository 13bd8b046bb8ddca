package importer

import (
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/changes"
)

// Status is the outcome of one row.
type Status string

const (
	StatusCreated   Status = "created"
	StatusUpdated   Status = "updated"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Statuses lists every status in report order.
func Statuses() []Status {
	return []Status{StatusCreated, StatusUpdated, StatusUnchanged, StatusSkipped, StatusError}
}

// Result is the outcome of processing one CSV row.
type Result struct {
	RowNumber     int           `json:"row_number"`
	CatalogNumber string        `json:"catalog_number"`
	Title         string        `json:"title"`
	Status        Status        `json:"status"`
	Message       string        `json:"message"`
	URI           string        `json:"uri,omitempty"`
	Changes       changes.Diff  `json:"changes,omitempty"`
	ErrorKind     string        `json:"error_kind,omitempty"`
	Patch         []byte        `json:"-"`
	Elapsed       time.Duration `json:"-"`
}

// Summary aggregates a run.
type Summary struct {
	RunID       string         `json:"run_id"`
	Source      string         `json:"source,omitempty"`
	Mode        Mode           `json:"mode"`
	DryRun      bool           `json:"dry_run"`
	TotalRows   int            `json:"total_rows"`
	Counts      map[Status]int `json:"counts"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	Aborted     bool           `json:"aborted"`
	AbortReason string         `json:"abort_reason,omitempty"`
}

// NewSummary starts a summary with zeroed counters.
func NewSummary(runID string, mode Mode, dryRun bool, started time.Time) Summary {
	counts := make(map[Status]int, len(Statuses()))
	for _, st := range Statuses() {
		counts[st] = 0
	}
	return Summary{RunID: runID, Mode: mode, DryRun: dryRun, Counts: counts, StartedAt: started}
}

// Add counts one result.
func (s *Summary) Add(r Result) {
	if s.Counts == nil {
		s.Counts = map[Status]int{}
	}
	s.TotalRows++
	s.Counts[r.Status]++
}

// Count returns the number of rows with status st.
func (s Summary) Count(st Status) int {
	return s.Counts[st]
}

// Duration is the wall time of the run.
func (s Summary) Duration() time.Duration {
	if s.FinishedAt.IsZero() {
		return 0
	}
	return s.FinishedAt.Sub(s.StartedAt)
}

// HasErrors reports whether any row failed or the run was aborted.
func (s Summary) HasErrors() bool {
	return s.Aborted || s.Counts[StatusError] > 0
}

// ExitCode is 0 for a clean run and 2 when rows failed or the run aborted.
func (s Summary) ExitCode() int {
	if s.HasErrors() {
		return 2
	}
	return 0
}
