package history

import (
	"database/sql"
	"encoding/json"
	"errors"
	"strings"
	"time"
)

// Run kinds.
const (
	KindImport = "import"
	KindStamp  = "stamp"
)

var (
	// ErrRunNotFound is returned when no run matches an id.
	ErrRunNotFound = errors.New("run not found")
	// ErrAmbiguousRun is returned when an id prefix matches several runs.
	ErrAmbiguousRun = errors.New("run id prefix is ambiguous")
)

// Run is one import or stamping invocation.
type Run struct {
	ID          string         `json:"id"`
	Kind        string         `json:"kind"`
	Source      string         `json:"source,omitempty"`
	Mode        string         `json:"mode,omitempty"`
	DryRun      bool           `json:"dry_run"`
	StartedAt   time.Time      `json:"started_at"`
	FinishedAt  time.Time      `json:"finished_at"`
	TotalRows   int            `json:"total_rows"`
	Counts      map[string]int `json:"counts"`
	Aborted     bool           `json:"aborted"`
	AbortReason string         `json:"abort_reason,omitempty"`
}

// Finished reports whether the run recorded its final counters. Runs that
// crashed or were killed stay unfinished.
func (r Run) Finished() bool {
	return !r.FinishedAt.IsZero()
}

// RowRecord is one stored row outcome.
type RowRecord struct {
	RunID         string          `json:"run_id"`
	RowNumber     int             `json:"row_number"`
	CatalogNumber string          `json:"catalog_number"`
	Title         string          `json:"title,omitempty"`
	Status        string          `json:"status"`
	Message       string          `json:"message"`
	URI           string          `json:"uri,omitempty"`
	ErrorKind     string          `json:"error_kind,omitempty"`
	Changes       json.RawMessage `json:"changes,omitempty"`
	Patch         json.RawMessage `json:"patch,omitempty"`
	Elapsed       time.Duration   `json:"elapsed_ns"`
	RecordedAt    time.Time       `json:"recorded_at"`
}

const runColumns = "id, kind, source, mode, dry_run, started_at, finished_at, total_rows, counts_json, aborted, abort_reason"

const rowColumns = "run_id, row_number, catalog_number, title, status, message, uri, error_kind, changes_json, patch_json, elapsed_ms, recorded_at"

type scanner interface{ Scan(dest ...any) error }

func scanRun(row scanner) (Run, error) {
	var (
		run         Run
		source      sql.NullString
		mode        sql.NullString
		dryRun      int
		startedRaw  string
		finishedRaw sql.NullString
		countsRaw   sql.NullString
		aborted     int
		abortReason sql.NullString
	)
	if err := row.Scan(
		&run.ID,
		&run.Kind,
		&source,
		&mode,
		&dryRun,
		&startedRaw,
		&finishedRaw,
		&run.TotalRows,
		&countsRaw,
		&aborted,
		&abortReason,
	); err != nil {
		return Run{}, err
	}
	run.Source = source.String
	run.Mode = mode.String
	run.DryRun = dryRun != 0
	run.Aborted = aborted != 0
	run.AbortReason = abortReason.String
	if t, err := parseTime(startedRaw); err == nil {
		run.StartedAt = t
	}
	if finishedRaw.Valid {
		if t, err := parseTime(finishedRaw.String); err == nil {
			run.FinishedAt = t
		}
	}
	if countsRaw.Valid && countsRaw.String != "" {
		if err := json.Unmarshal([]byte(countsRaw.String), &run.Counts); err != nil {
			return Run{}, err
		}
	}
	return run, nil
}

func scanRow(row scanner) (RowRecord, error) {
	var (
		rec         RowRecord
		catalog     sql.NullString
		title       sql.NullString
		message     sql.NullString
		uri         sql.NullString
		errorKind   sql.NullString
		changes     sql.NullString
		patch       sql.NullString
		elapsedMS   int64
		recordedRaw string
	)
	if err := row.Scan(
		&rec.RunID,
		&rec.RowNumber,
		&catalog,
		&title,
		&rec.Status,
		&message,
		&uri,
		&errorKind,
		&changes,
		&patch,
		&elapsedMS,
		&recordedRaw,
	); err != nil {
		return RowRecord{}, err
	}
	rec.CatalogNumber = catalog.String
	rec.Title = title.String
	rec.Message = message.String
	rec.URI = uri.String
	rec.ErrorKind = errorKind.String
	if changes.Valid {
		rec.Changes = json.RawMessage(changes.String)
	}
	if patch.Valid {
		rec.Patch = json.RawMessage(patch.String)
	}
	rec.Elapsed = time.Duration(elapsedMS) * time.Millisecond
	if t, err := parseTime(recordedRaw); err == nil {
		rec.RecordedAt = t
	}
	return rec, nil
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

func nullableRaw(value json.RawMessage) any {
	trimmed := strings.TrimSpace(string(value))
	if trimmed == "" || trimmed == "null" {
		return nil
	}
	return trimmed
}

func boolToInt(value bool) int {
	if value {
		return 1
	}
	return 0
}

// timeLayout has fixed width so stored timestamps sort lexically.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(value string) (time.Time, error) {
	if value == "" {
		return time.Time{}, errors.New("empty")
	}
	return time.Parse(time.RFC3339Nano, value)
}

func escapeLike(value string) string {
	return strings.NewReplacer(`\`, `\\`, "%", `\%`, "_", `\_`).Replace(value)
}
