package history

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Store persists run history in SQLite.
type Store struct {
	db   *sql.DB
	path string
}

const (
	sqliteBusyCode          = 5
	busyRetryAttempts       = 5
	busyRetryInitialBackoff = 10 * time.Millisecond
	busyRetryMaxBackoff     = 200 * time.Millisecond
)

// Open creates or opens the ledger at path.
func Open(path string) (*Store, error) {
	if strings.TrimSpace(path) == "" {
		return nil, errors.New("history path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create history directory: %w", err)
	}
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite db: %w", err)
	}
	// Connection-scoped pragmas must hold for every query.
	db.SetMaxOpenConns(1)

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys = ON",
		"PRAGMA busy_timeout = 5000",
	}
	for _, pragma := range pragmas {
		if _, execErr := db.Exec(pragma); execErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("apply pragma %q: %w", pragma, execErr)
		}
	}

	store := &Store{db: db, path: path}
	if err := store.initSchema(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return store, nil
}

// Path returns the database file location.
func (s *Store) Path() string {
	return s.path
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

// BeginRun inserts a run with no finish time.
func (s *Store) BeginRun(ctx context.Context, run Run) error {
	if strings.TrimSpace(run.ID) == "" {
		return errors.New("run id is empty")
	}
	if run.Kind == "" {
		run.Kind = KindImport
	}
	if run.StartedAt.IsZero() {
		run.StartedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO runs (id, kind, source, mode, dry_run, started_at) VALUES (?, ?, ?, ?, ?, ?)`,
		run.ID,
		run.Kind,
		nullableString(run.Source),
		nullableString(run.Mode),
		boolToInt(run.DryRun),
		formatTime(run.StartedAt),
	)
}

// FinishRun stores the final counters of a run.
func (s *Store) FinishRun(ctx context.Context, run Run) error {
	counts, err := json.Marshal(run.Counts)
	if err != nil {
		return fmt.Errorf("marshal counts: %w", err)
	}
	if run.FinishedAt.IsZero() {
		run.FinishedAt = time.Now()
	}
	return s.exec(ctx,
		`UPDATE runs
         SET finished_at = ?, total_rows = ?, counts_json = ?, aborted = ?, abort_reason = ?
         WHERE id = ?`,
		formatTime(run.FinishedAt),
		run.TotalRows,
		string(counts),
		boolToInt(run.Aborted),
		nullableString(run.AbortReason),
		run.ID,
	)
}

// RecordRow appends one row outcome to a run.
func (s *Store) RecordRow(ctx context.Context, row RowRecord) error {
	if row.RecordedAt.IsZero() {
		row.RecordedAt = time.Now()
	}
	return s.exec(ctx,
		`INSERT INTO row_results (
            run_id, row_number, catalog_number, title, status, message, uri,
            error_kind, changes_json, patch_json, elapsed_ms, recorded_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		row.RunID,
		row.RowNumber,
		nullableString(row.CatalogNumber),
		nullableString(row.Title),
		row.Status,
		nullableString(row.Message),
		nullableString(row.URI),
		nullableString(row.ErrorKind),
		nullableRaw(row.Changes),
		nullableRaw(row.Patch),
		row.Elapsed.Milliseconds(),
		formatTime(row.RecordedAt),
	)
}

// ListRuns returns the most recent runs, newest first.
func (s *Store) ListRuns(ctx context.Context, limit int) ([]Run, error) {
	if limit <= 0 {
		limit = 20
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs ORDER BY started_at DESC, id LIMIT ?`, limit)
	if err != nil {
		return nil, fmt.Errorf("list runs: %w", err)
	}
	defer rows.Close()

	var runs []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return nil, fmt.Errorf("scan run: %w", err)
		}
		runs = append(runs, run)
	}
	return runs, rows.Err()
}

// GetRun resolves a run by id or unique id prefix. It returns ErrRunNotFound
// when nothing matches and ErrAmbiguousRun when a prefix matches several runs.
func (s *Store) GetRun(ctx context.Context, idOrPrefix string) (Run, error) {
	idOrPrefix = strings.TrimSpace(idOrPrefix)
	if idOrPrefix == "" {
		return Run{}, ErrRunNotFound
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+runColumns+` FROM runs WHERE id = ? OR id LIKE ? ESCAPE '\' ORDER BY id = ? DESC, started_at DESC LIMIT 2`,
		idOrPrefix, escapeLike(idOrPrefix)+"%", idOrPrefix)
	if err != nil {
		return Run{}, fmt.Errorf("get run: %w", err)
	}
	defer rows.Close()

	var found []Run
	for rows.Next() {
		run, err := scanRun(rows)
		if err != nil {
			return Run{}, fmt.Errorf("scan run: %w", err)
		}
		if run.ID == idOrPrefix {
			return run, nil
		}
		found = append(found, run)
	}
	if err := rows.Err(); err != nil {
		return Run{}, err
	}
	switch len(found) {
	case 0:
		return Run{}, fmt.Errorf("%w: %s", ErrRunNotFound, idOrPrefix)
	case 1:
		return found[0], nil
	default:
		return Run{}, fmt.Errorf("%w: %s", ErrAmbiguousRun, idOrPrefix)
	}
}

// RowResults returns the rows of one run in file order.
func (s *Store) RowResults(ctx context.Context, runID string) ([]RowRecord, error) {
	return s.queryRows(ctx,
		`SELECT `+rowColumns+` FROM row_results WHERE run_id = ? ORDER BY row_number, id`, runID)
}

// CatalogHistory returns every recorded outcome for one catalog number,
// newest first.
func (s *Store) CatalogHistory(ctx context.Context, catalogNumber string) ([]RowRecord, error) {
	return s.queryRows(ctx,
		`SELECT `+rowColumns+` FROM row_results WHERE catalog_number = ? ORDER BY recorded_at DESC, id DESC`,
		strings.TrimSpace(catalogNumber))
}

// Prune deletes runs started before cutoff along with their rows.
func (s *Store) Prune(ctx context.Context, cutoff time.Time) (int64, error) {
	var removed int64
	err := retryOnBusy(ctx, func() error {
		res, err := s.db.ExecContext(ctx, `DELETE FROM runs WHERE started_at < ?`, formatTime(cutoff))
		if err != nil {
			return err
		}
		removed, err = res.RowsAffected()
		return err
	})
	if err != nil {
		return 0, fmt.Errorf("prune history: %w", err)
	}
	return removed, nil
}

func (s *Store) queryRows(ctx context.Context, query string, args ...any) ([]RowRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("query row results: %w", err)
	}
	defer rows.Close()

	var out []RowRecord
	for rows.Next() {
		rec, err := scanRow(rows)
		if err != nil {
			return nil, fmt.Errorf("scan row result: %w", err)
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func (s *Store) exec(ctx context.Context, query string, args ...any) error {
	if ctx == nil {
		ctx = context.Background()
	}
	return retryOnBusy(ctx, func() error {
		_, err := s.db.ExecContext(ctx, query, args...)
		return err
	})
}

func isSQLiteBusy(err error) bool {
	if err == nil {
		return false
	}
	var coder interface{ Code() int }
	if errors.As(err, &coder) && coder.Code() == sqliteBusyCode {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "SQLITE_BUSY") || strings.Contains(msg, "database is locked")
}

func retryOnBusy(ctx context.Context, op func() error) error {
	delay := busyRetryInitialBackoff
	var lastErr error
	for attempt := 0; attempt < busyRetryAttempts; attempt++ {
		lastErr = op()
		if lastErr == nil {
			return nil
		}
		if !isSQLiteBusy(lastErr) || attempt == busyRetryAttempts-1 {
			break
		}
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
		if next := delay * 2; next <= busyRetryMaxBackoff {
			delay = next
		}
	}
	return lastErr
}
