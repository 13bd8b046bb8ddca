package stamping

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/gabriel-vasile/mimetype"
	"github.com/google/uuid"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/changes"
	"github.com/JPC-AV/aspace-jpc-av/internal/fileutil"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
	"github.com/JPC-AV/aspace-jpc-av/internal/textutil"
)

// RefIDMarker separates the original directory name from the ref id.
const RefIDMarker = "_refid_"

// Repository is the subset of the repository client stamping needs.
type Repository interface {
	FindItem(ctx context.Context, componentID string) (aspace.Match, error)
	GetArchivalObject(ctx context.Context, uri string) (aspace.Record, error)
	UpdateArchivalObject(ctx context.Context, uri string, body json.RawMessage) (aspace.WriteResult, error)
}

// Prober reads a media runtime as hh:mm:ss.
type Prober interface {
	Duration(ctx context.Context, path string) (string, error)
}

// Options controls a stamping run.
type Options struct {
	RunID          string
	DirectoryMatch string
	MediaExtension string
	DryRun         bool
	NoUpdate       bool
	NoRename       bool
	RenameMedia    bool
}

// Status is the outcome for one directory.
type Status string

const (
	StatusStamped   Status = "stamped"
	StatusUnchanged Status = "unchanged"
	StatusSkipped   Status = "skipped"
	StatusError     Status = "error"
)

// Statuses lists every status in report order.
func Statuses() []Status {
	return []Status{StatusStamped, StatusUnchanged, StatusSkipped, StatusError}
}

// Result describes what happened to one directory.
type Result struct {
	Index        int           `json:"index"`
	Directory    string        `json:"directory"`
	NewDirectory string        `json:"new_directory,omitempty"`
	ComponentID  string        `json:"component_id"`
	RefID        string        `json:"ref_id,omitempty"`
	URI          string        `json:"uri,omitempty"`
	MediaFile    string        `json:"media_file,omitempty"`
	Duration     string        `json:"duration,omitempty"`
	Status       Status        `json:"status"`
	Message      string        `json:"message"`
	ErrorKind    string        `json:"error_kind,omitempty"`
	Patch        []byte        `json:"-"`
	Elapsed      time.Duration `json:"-"`
}

// Summary aggregates a stamping run.
type Summary struct {
	RunID      string         `json:"run_id"`
	Root       string         `json:"root"`
	DryRun     bool           `json:"dry_run"`
	Total      int            `json:"total"`
	Counts     map[Status]int `json:"counts"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
}

// Count returns the number of directories with status st.
func (s Summary) Count(st Status) int {
	return s.Counts[st]
}

// ExitCode is 0 unless some directory failed.
func (s Summary) ExitCode() int {
	if s.Counts[StatusError] > 0 {
		return 2
	}
	return 0
}

// Stamper runs the stamping workflow.
type Stamper struct {
	repo   Repository
	prober Prober
	opts   Options
	logger *slog.Logger
	now    func() time.Time
}

// New constructs a Stamper.
func New(repo Repository, prober Prober, opts Options, logger *slog.Logger) *Stamper {
	if opts.RunID == "" {
		opts.RunID = uuid.NewString()
	}
	if strings.TrimSpace(opts.DirectoryMatch) == "" {
		opts.DirectoryMatch = "JPC_AV"
	}
	opts.MediaExtension = strings.ToLower(strings.TrimSpace(opts.MediaExtension))
	if opts.MediaExtension == "" {
		opts.MediaExtension = ".mkv"
	}
	if !strings.HasPrefix(opts.MediaExtension, ".") {
		opts.MediaExtension = "." + opts.MediaExtension
	}
	return &Stamper{
		repo:   repo,
		prober: prober,
		opts:   opts,
		logger: logging.NewComponentLogger(logger, "stamping"),
		now:    time.Now,
	}
}

// RunID returns the identifier of this run.
func (s *Stamper) RunID() string {
	return s.opts.RunID
}

// Discover lists the directories under root that still need stamping.
func (s *Stamper) Discover(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, services.Wrap(services.ErrValidation, "stamping", "discover", "read directory "+root, err)
	}
	var dirs []string
	for _, entry := range entries {
		name := entry.Name()
		if !entry.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		if strings.Contains(name, RefIDMarker) || !strings.Contains(name, s.opts.DirectoryMatch) {
			continue
		}
		dirs = append(dirs, name)
	}
	sort.Strings(dirs)
	return dirs, nil
}

// Run stamps every pending directory under root.
func (s *Stamper) Run(ctx context.Context, root string) (Summary, []Result, error) {
	ctx = services.WithRunID(ctx, s.opts.RunID)
	logger := logging.WithContext(ctx, s.logger)

	summary := Summary{
		RunID:     s.opts.RunID,
		Root:      root,
		DryRun:    s.opts.DryRun,
		Counts:    map[Status]int{},
		StartedAt: s.now(),
	}
	for _, st := range Statuses() {
		summary.Counts[st] = 0
	}

	dirs, err := s.Discover(root)
	if err != nil {
		summary.FinishedAt = s.now()
		return summary, nil, err
	}
	logger.Info("stamping started",
		logging.String("root", root),
		logging.Int("directories", len(dirs)),
		logging.Bool("dry_run", s.opts.DryRun),
	)

	results := make([]Result, 0, len(dirs))
	for i, name := range dirs {
		if err := ctx.Err(); err != nil {
			summary.FinishedAt = s.now()
			return summary, results, services.Wrap(services.ErrTimeout, "stamping", "run", "interrupted", err)
		}
		started := s.now()
		result := s.stamp(ctx, root, name)
		result.Index = i + 1
		result.Elapsed = s.now().Sub(started)
		results = append(results, result)
		summary.Total++
		summary.Counts[result.Status]++
	}

	summary.FinishedAt = s.now()
	logger.Info("stamping finished",
		logging.Int("directories", summary.Total),
		logging.Int("stamped", summary.Count(StatusStamped)),
		logging.Int("unchanged", summary.Count(StatusUnchanged)),
		logging.Int("skipped", summary.Count(StatusSkipped)),
		logging.Int("errors", summary.Count(StatusError)),
		logging.Duration("elapsed", summary.FinishedAt.Sub(summary.StartedAt)),
	)
	return summary, results, nil
}

func (s *Stamper) stamp(ctx context.Context, root, name string) (result Result) {
	componentID := strings.TrimSpace(name)
	result = Result{Directory: name, ComponentID: componentID}
	ctx = services.WithCatalogNumber(ctx, componentID)
	logger := logging.WithContext(ctx, s.logger)

	defer func() {
		if recovered := recover(); recovered != nil {
			result.Status = StatusError
			result.Message = fmt.Sprintf("Unexpected error: %v", recovered)
		}
		s.log(logger, result)
	}()

	match, err := s.repo.FindItem(ctx, componentID)
	if err != nil && !errors.Is(err, services.ErrNotFound) {
		return s.fail(result, err, "Search failed")
	}
	if err != nil || !match.Exists {
		result.Status = StatusSkipped
		result.Message = "No matching archival object"
		return result
	}
	if match.Multiple() {
		logging.WarnWithContext(logger, "multiple items share component id", "duplicate_identifier",
			logging.Int("matches", match.Total),
			logging.String(logging.FieldURI, match.URI),
			logging.String(logging.FieldImpact, "first match stamped"),
			logging.String(logging.FieldErrorHint, "make component ids unique in the resource"),
		)
	}
	result.URI = match.URI
	result.RefID = match.RefID
	if strings.TrimSpace(match.RefID) == "" {
		return s.fail(result, services.Wrap(services.ErrValidation, "stamping", "stamp", "record has no ref_id", nil), "Record has no ref_id")
	}

	dir := filepath.Join(root, name)
	media, err := s.findMedia(dir)
	if err != nil {
		return s.fail(result, err, "Could not list directory")
	}
	if media == "" {
		result.Status = StatusSkipped
		result.Message = fmt.Sprintf("No %s file found", s.opts.MediaExtension)
		return result
	}
	result.MediaFile = media
	mediaPath := filepath.Join(dir, media)

	if kind, ok := isMedia(mediaPath); !ok {
		result.Status = StatusSkipped
		result.Message = fmt.Sprintf("Not a media file (detected %s)", kind)
		return result
	}

	changed := false
	if !s.opts.NoUpdate {
		duration, err := s.prober.Duration(ctx, mediaPath)
		if err != nil {
			return s.fail(result, services.Wrap(services.ErrExternalTool, "stamping", "probe", media, err), "Could not read duration")
		}
		result.Duration = duration
		changed, err = s.writeDuration(ctx, &result)
		if err != nil {
			return s.fail(result, err, "Failed to update record")
		}
	}

	renamed, err := s.rename(root, &result)
	if err != nil {
		return s.fail(result, err, "Rename failed")
	}

	result.Status = StatusStamped
	if !changed && !renamed {
		result.Status = StatusUnchanged
	}
	result.Message = s.message(changed, renamed)
	return result
}

func (s *Stamper) writeDuration(ctx context.Context, result *Result) (bool, error) {
	record, err := s.repo.GetArchivalObject(ctx, result.URI)
	if err != nil {
		return false, err
	}
	if odd, ok := record.Object.Notes.FirstMultipart(mapping.NoteTypeODD); ok {
		if current, ok := odd.DefinedListValue(mapping.LabelDuration); ok && strings.TrimSpace(current) == result.Duration {
			return false, nil
		}
	}
	notes, _ := mapping.ApplyDurationNote(record.Object.Notes, result.Duration)
	body, err := changes.ReplaceNotes(record.Raw, notes)
	if err != nil {
		return false, err
	}
	if patch, err := changes.AuditPatch(record.Raw, body); err == nil {
		result.Patch = patch
	}
	if s.opts.DryRun {
		return true, nil
	}
	if _, err := s.repo.UpdateArchivalObject(ctx, result.URI, body); err != nil {
		return false, err
	}
	return true, nil
}

func (s *Stamper) rename(root string, result *Result) (bool, error) {
	if s.opts.NoRename {
		return false, nil
	}
	newName := result.Directory + RefIDMarker + textutil.SanitizeFileName(result.RefID)
	result.NewDirectory = newName
	if s.opts.DryRun {
		return true, nil
	}
	oldDir := filepath.Join(root, result.Directory)
	newDir := filepath.Join(root, newName)
	if err := fileutil.RenameNoClobber(oldDir, newDir); err != nil {
		return false, err
	}
	if s.opts.RenameMedia && result.MediaFile != "" {
		ext := filepath.Ext(result.MediaFile)
		base := strings.TrimSuffix(result.MediaFile, ext)
		if !strings.Contains(base, RefIDMarker) {
			target := base + RefIDMarker + textutil.SanitizeFileName(result.RefID) + ext
			if err := fileutil.RenameNoClobber(filepath.Join(newDir, result.MediaFile), filepath.Join(newDir, target)); err != nil {
				return true, err
			}
			result.MediaFile = target
		}
	}
	return true, nil
}

func (s *Stamper) message(changed, renamed bool) string {
	var done, planned []string
	if changed {
		done = append(done, "duration recorded")
		planned = append(planned, "record duration")
	}
	if renamed {
		done = append(done, "directory renamed")
		planned = append(planned, "rename directory")
	}
	switch {
	case len(done) == 0 && s.opts.NoUpdate && s.opts.NoRename:
		return "Nothing to do"
	case len(done) == 0:
		return "Duration already recorded"
	case s.opts.DryRun:
		return "[DRY RUN] Would " + strings.Join(planned, ", ")
	}
	msg := strings.Join(done, ", ")
	return strings.ToUpper(msg[:1]) + msg[1:]
}

// findMedia returns the first file, in name order, with the media extension.
func (s *Stamper) findMedia(dir string) (string, error) {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return "", err
	}
	for _, entry := range entries {
		if entry.Type().IsRegular() && strings.EqualFold(filepath.Ext(entry.Name()), s.opts.MediaExtension) {
			return entry.Name(), nil
		}
	}
	return "", nil
}

func (s *Stamper) fail(result Result, err error, msg string) Result {
	result.Status = StatusError
	result.Message = fmt.Sprintf("%s: %v", msg, err)
	result.ErrorKind = services.Kind(err)
	return result
}

func (s *Stamper) log(logger *slog.Logger, result Result) {
	attrs := []logging.Attr{
		logging.String("directory", result.Directory),
		logging.String(logging.FieldStatus, string(result.Status)),
		logging.String("message", result.Message),
	}
	if result.URI != "" {
		attrs = append(attrs, logging.String(logging.FieldURI, result.URI))
	}
	if result.Duration != "" {
		attrs = append(attrs, logging.String("duration", result.Duration))
	}
	switch result.Status {
	case StatusError:
		logging.ErrorWithContext(logger, "directory not stamped", "stamp_failed", attrs...)
	case StatusSkipped:
		logging.WarnWithContext(logger, "directory skipped", "stamp_skipped",
			append(attrs, logging.String(logging.FieldImpact, "directory left unchanged"))...)
	default:
		logger.Info("directory stamped", logging.Args(attrs...)...)
	}
}

// isMedia sniffs the file header; extension alone is not trusted.
func isMedia(path string) (string, bool) {
	mtype, err := mimetype.DetectFile(path)
	if err != nil {
		return "unreadable file", false
	}
	for m := mtype; m != nil; m = m.Parent() {
		if strings.HasPrefix(m.String(), "video/") || strings.HasPrefix(m.String(), "audio/") {
			return mtype.String(), true
		}
	}
	return mtype.String(), false
}
