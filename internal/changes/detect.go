package changes

import (
	"fmt"
	"slices"
	"sort"
	"strings"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/textutil"
)

// Field names reported in a Diff.
const (
	FieldTitle          = "title"
	FieldDates          = "dates"
	FieldExtents        = "extents"
	FieldDescription    = "description"
	FieldTechnicalNotes = "technical_notes"
)

// Change is the old and new rendering of one field.
type Change struct {
	Old string `json:"old"`
	New string `json:"new"`
}

// Diff maps field names to the values that differ. An empty Diff means the
// update would not change the record.
type Diff map[string]Change

// Empty reports whether nothing differs.
func (d Diff) Empty() bool {
	return len(d) == 0
}

// Fields returns the differing field names in sorted order.
func (d Diff) Fields() []string {
	names := make([]string, 0, len(d))
	for name := range d {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// String renders the diff as "field: old -> new" entries joined by "; ".
func (d Diff) String() string {
	parts := make([]string, 0, len(d))
	for _, name := range d.Fields() {
		change := d[name]
		parts = append(parts, fmt.Sprintf("%s: %q -> %q", name, textutil.Truncate(change.Old, 60), textutil.Truncate(change.New, 60)))
	}
	return strings.Join(parts, "; ")
}

// Detect compares an existing record with freshly mapped fields. Fields the
// row leaves empty are not compared because the update would not write them.
// Title and extent types must match exactly after trimming; the free-text
// notes compare under textutil.Equal.
func Detect(existing aspace.ArchivalObject, fields mapping.Fields) Diff {
	diff := Diff{}

	if fields.Title != "" && strings.TrimSpace(existing.Title) != strings.TrimSpace(fields.Title) {
		diff[FieldTitle] = Change{Old: existing.Title, New: fields.Title}
	}

	if len(fields.Dates) > 0 {
		oldDates, newDates := datesKey(existing.Dates), datesKey(fields.Dates)
		if oldDates != newDates {
			diff[FieldDates] = Change{Old: oldDates, New: newDates}
		}
	}

	if len(fields.Extents) > 0 {
		oldExtents, newExtents := extentTypes(existing.Extents), extentTypes(fields.Extents)
		if !slices.Equal(oldExtents, newExtents) {
			diff[FieldExtents] = Change{Old: strings.Join(oldExtents, ", "), New: strings.Join(newExtents, ", ")}
		}
	}

	if fields.Description != "" {
		old := noteText(existing.Notes, mapping.NoteTypeScopeContent)
		if !textutil.Equal(old, fields.Description) {
			diff[FieldDescription] = Change{Old: old, New: fields.Description}
		}
	}

	if fields.TechnicalNotes != "" {
		old := noteText(existing.Notes, mapping.NoteTypePhysTech)
		if !textutil.Equal(old, fields.TechnicalNotes) {
			diff[FieldTechnicalNotes] = Change{Old: old, New: fields.TechnicalNotes}
		}
	}

	return diff
}

// datesKey renders dates as a sorted label=begin set so ordering on the
// server does not register as a change.
func datesKey(dates []aspace.Date) string {
	entries := make([]string, 0, len(dates))
	for _, d := range dates {
		begin := strings.TrimSpace(d.Begin)
		if begin == "" {
			begin = strings.TrimSpace(d.Expression)
		}
		entries = append(entries, strings.ToLower(strings.TrimSpace(d.Label))+"="+begin)
	}
	sort.Strings(entries)
	return strings.Join(entries, ", ")
}

func extentTypes(extents []aspace.Extent) []string {
	types := make([]string, 0, len(extents))
	for _, e := range extents {
		types = append(types, strings.TrimSpace(e.ExtentType))
	}
	return types
}

func noteText(notes aspace.Notes, noteType string) string {
	note, ok := notes.FirstMultipart(noteType)
	if !ok {
		return ""
	}
	return note.Text()
}
