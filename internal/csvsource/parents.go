package csvsource

import (
	"context"
	"log/slog"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
)

// ParentFinder resolves ref_ids against the repository.
type ParentFinder interface {
	FindByIdentifier(ctx context.Context, kind, value string) (aspace.Match, error)
}

// ParentStatus is the lookup outcome for one parent ref_id.
type ParentStatus struct {
	RefID  string `json:"ref_id"`
	Exists bool   `json:"exists"`
	URI    string `json:"uri,omitempty"`
	Title  string `json:"title,omitempty"`
	Rows   int    `json:"rows"`
	Error  string `json:"error,omitempty"`
}

// Status renders the lookup outcome for reports.
func (p ParentStatus) Status() string {
	switch {
	case p.Error != "":
		return "Lookup failed"
	case p.Exists:
		return "Found"
	default:
		return "Not found"
	}
}

// CheckParents resolves every distinct parent ref_id named by the report.
func CheckParents(ctx context.Context, finder ParentFinder, report Report, logger *slog.Logger) []ParentStatus {
	logger = logging.NewComponentLogger(logger, "csvsource")
	refs := report.ParentRefs()
	statuses := make([]ParentStatus, 0, len(refs))
	for _, ref := range refs {
		status := ParentStatus{RefID: ref, Rows: report.ParentRefRows(ref)}
		match, err := finder.FindByIdentifier(ctx, aspace.IdentifierRefID, ref)
		if err != nil {
			status.Error = err.Error()
			logging.WarnWithContext(logger, "parent lookup failed", "parent_lookup_failed",
				logging.String("ref_id", ref),
				logging.Error(err),
				logging.String(logging.FieldImpact, "parent existence unknown"),
			)
		} else if match.Exists {
			status.Exists = true
			status.URI = match.URI
			status.Title = match.Title
		}
		statuses = append(statuses, status)
		if ctx.Err() != nil {
			break
		}
	}
	return statuses
}
