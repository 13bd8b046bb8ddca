package changes

import (
	"encoding/json"
	"fmt"

	jsonpatch "github.com/evanphx/json-patch/v5"
	"github.com/wI2L/jsondiff"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
)

// Merge applies mapped fields to the record exactly as fetched. Each mapped
// kind replaces the existing values of that kind; notes of other types and
// every field the mapper does not produce are carried over unchanged.
func Merge(record aspace.Record, fields mapping.Fields) (json.RawMessage, error) {
	patch := map[string]any{}
	if fields.Title != "" {
		patch["title"] = fields.Title
	}
	if len(fields.Dates) > 0 {
		patch["dates"] = fields.Dates
	}
	if len(fields.Extents) > 0 {
		patch["extents"] = fields.Extents
	}
	if len(fields.Notes) > 0 {
		kept := record.Object.Notes.Without(fields.NoteTypes()...)
		patch["notes"] = append(kept, fields.Notes...)
	}
	return apply(record.Raw, patch)
}

// ReplaceNotes swaps the record's notes list for notes, leaving the rest of
// the raw record untouched.
func ReplaceNotes(raw json.RawMessage, notes aspace.Notes) (json.RawMessage, error) {
	return apply(raw, map[string]any{"notes": notes})
}

func apply(raw json.RawMessage, patch map[string]any) (json.RawMessage, error) {
	if len(raw) == 0 {
		return nil, fmt.Errorf("merge: record has no body")
	}
	encoded, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("merge: encode patch: %w", err)
	}
	merged, err := jsonpatch.MergePatch(raw, encoded)
	if err != nil {
		return nil, fmt.Errorf("merge: apply patch: %w", err)
	}
	return merged, nil
}

// AuditPatch returns the RFC 6902 operations that turn before into after.
func AuditPatch(before, after []byte) (json.RawMessage, error) {
	patch, err := jsondiff.CompareJSON(before, after)
	if err != nil {
		return nil, fmt.Errorf("audit patch: %w", err)
	}
	if len(patch) == 0 {
		return json.RawMessage("[]"), nil
	}
	encoded, err := json.Marshal(patch)
	if err != nil {
		return nil, fmt.Errorf("audit patch: encode: %w", err)
	}
	return encoded, nil
}
