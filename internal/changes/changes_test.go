package changes_test

import (
	"context"
	"encoding/json"
	"strings"
	"testing"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/changes"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
)

func sampleRow() mapping.Row {
	return mapping.Row{
		mapping.ColumnCatalogNumber:  "JPC_AV_00001",
		mapping.ColumnTitle:          "Test Reel",
		mapping.ColumnParentRefID:    "abc123",
		mapping.ColumnOriginalFormat: "VHS",
		mapping.ColumnCreationDate:   "8/1/1982",
		mapping.ColumnDescription:    "Interview footage.",
		mapping.ColumnTransferNotes:  "Baked before transfer.",
	}
}

func recordFrom(t *testing.T, obj aspace.ArchivalObject) aspace.Record {
	t.Helper()
	raw, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("encode record: %v", err)
	}
	var decoded aspace.ArchivalObject
	if err := json.Unmarshal(raw, &decoded); err != nil {
		t.Fatalf("decode record: %v", err)
	}
	return aspace.Record{Object: decoded, Raw: raw}
}

func TestDetectRoundTripIsEmpty(t *testing.T) {
	m := mapping.New(mapping.DefaultOptions(), nil)
	row := sampleRow()
	fields := m.Fields(context.Background(), row)
	existing := recordFrom(t, m.ArchivalObject(row, fields, "/repositories/2/archival_objects/1", "/repositories/2/resources/7", nil))

	if diff := changes.Detect(existing.Object, fields); !diff.Empty() {
		t.Fatalf("expected empty diff, got %v", diff)
	}
}

func TestDetectReportsOnlyDifferingFields(t *testing.T) {
	m := mapping.New(mapping.DefaultOptions(), nil)
	row := sampleRow()
	fields := m.Fields(context.Background(), row)
	existing := m.ArchivalObject(row, fields, "", "/repositories/2/resources/7", nil)

	row[mapping.ColumnTitle] = "Retitled Reel"
	updated := m.Fields(context.Background(), row)
	diff := changes.Detect(existing, updated)
	if len(diff) != 1 {
		t.Fatalf("expected only title to differ, got %v", diff)
	}
	if diff[changes.FieldTitle] != (changes.Change{Old: "Test Reel", New: "Retitled Reel"}) {
		t.Fatalf("unexpected title change %+v", diff[changes.FieldTitle])
	}
}

func TestDetectComparesEachField(t *testing.T) {
	existing := aspace.ArchivalObject{
		Title:   "Reel",
		Dates:   []aspace.Date{{Label: "creation", Begin: "1980-01-01"}},
		Extents: []aspace.Extent{{ExtentType: "U-matic"}},
		Notes: aspace.Notes{
			aspace.MultipartNote{Type: "scopecontent", Subnotes: aspace.Subnotes{aspace.TextSubnote{Content: "Old text."}}},
		},
	}
	m := mapping.New(mapping.DefaultOptions(), nil)
	fields := m.Fields(context.Background(), sampleRow())
	diff := changes.Detect(existing, fields)

	want := []string{"dates", "description", "extents", "technical_notes", "title"}
	if got := diff.Fields(); strings.Join(got, ",") != strings.Join(want, ",") {
		t.Fatalf("unexpected changed fields %v", got)
	}
	if diff[changes.FieldDates].Old != "creation=1980-01-01" || diff[changes.FieldDates].New != "creation=1982-08-01" {
		t.Fatalf("unexpected dates change %+v", diff[changes.FieldDates])
	}
	if diff[changes.FieldTechnicalNotes].Old != "" {
		t.Fatalf("expected missing technical note to read as empty, got %+v", diff[changes.FieldTechnicalNotes])
	}
	if !strings.Contains(diff.String(), `title: "Reel" -> "Test Reel"`) {
		t.Fatalf("unexpected diff rendering %s", diff.String())
	}
}

func TestDetectIgnoresOrderingAndEmptyColumns(t *testing.T) {
	existing := aspace.ArchivalObject{
		Title: " Test Reel",
		Dates: []aspace.Date{
			{Label: "broadcast", Begin: "1983-02-03"},
			{Label: "creation", Begin: "1982-08-01"},
		},
		Extents: []aspace.Extent{{ExtentType: "VHS"}},
		Notes: aspace.Notes{
			aspace.MultipartNote{Type: "scopecontent", Subnotes: aspace.Subnotes{aspace.TextSubnote{Content: "Interview\n footage."}}},
		},
	}
	fields := mapping.Fields{
		Title: "Test Reel",
		Dates: []aspace.Date{
			{Label: "creation", Begin: "1982-08-01"},
			{Label: "broadcast", Begin: "1983-02-03"},
		},
		Extents:     []aspace.Extent{{ExtentType: "VHS "}},
		Description: "Interview footage.",
	}
	if diff := changes.Detect(existing, fields); !diff.Empty() {
		t.Fatalf("expected empty diff, got %v", diff)
	}
}

func TestDetectReportsCaseAndInnerSpacingChanges(t *testing.T) {
	existing := aspace.ArchivalObject{
		Title:   "Test  Reel",
		Extents: []aspace.Extent{{ExtentType: "vhs"}},
	}
	fields := mapping.Fields{
		Title:   "Test Reel",
		Extents: []aspace.Extent{{ExtentType: "VHS"}},
	}
	diff := changes.Detect(existing, fields)
	if diff[changes.FieldTitle] != (changes.Change{Old: "Test  Reel", New: "Test Reel"}) {
		t.Fatalf("expected title spacing change, got %v", diff)
	}
	if diff[changes.FieldExtents] != (changes.Change{Old: "vhs", New: "VHS"}) {
		t.Fatalf("expected extent case change, got %v", diff)
	}
}

const fetched = `{
  "jsonmodel_type": "archival_object",
  "uri": "/repositories/2/archival_objects/5",
  "title": "Old Title",
  "component_id": "JPC_AV_00001",
  "lock_version": 3,
  "subjects": [{"ref": "/subjects/9"}],
  "extents": [{"jsonmodel_type": "extent", "portion": "whole", "number": "1", "extent_type": "U-matic"}],
  "notes": [
    {"jsonmodel_type": "note_multipart", "type": "scopecontent", "label": "Scope and Contents", "publish": true,
     "subnotes": [{"jsonmodel_type": "note_text", "content": "Old text."}]},
    {"jsonmodel_type": "note_multipart", "type": "odd", "label": "", "persistent_id": "keepme",
     "subnotes": [{"jsonmodel_type": "note_definedlist", "items": [{"jsonmodel_type": "note_definedlist_item", "label": "Duration", "value": "00:10:00"}]}]}
  ]
}`

func decodeRecord(t *testing.T, raw string) aspace.Record {
	t.Helper()
	var obj aspace.ArchivalObject
	if err := json.Unmarshal([]byte(raw), &obj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	return aspace.Record{Object: obj, Raw: json.RawMessage(raw)}
}

func TestMergeReplacesMappedKindsAndPreservesOthers(t *testing.T) {
	record := decodeRecord(t, fetched)
	m := mapping.New(mapping.DefaultOptions(), nil)
	fields := m.Fields(context.Background(), mapping.Row{
		mapping.ColumnTitle:          "New Title",
		mapping.ColumnOriginalFormat: "VHS",
		mapping.ColumnDescription:    "New text.",
	})

	merged, err := changes.Merge(record, fields)
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	var out struct {
		Title       string            `json:"title"`
		LockVersion int               `json:"lock_version"`
		Subjects    []json.RawMessage `json:"subjects"`
		Extents     []aspace.Extent   `json:"extents"`
		Notes       aspace.Notes      `json:"notes"`
	}
	if err := json.Unmarshal(merged, &out); err != nil {
		t.Fatalf("decode merged: %v", err)
	}
	if out.Title != "New Title" || out.LockVersion != 3 || len(out.Subjects) != 1 {
		t.Fatalf("unexpected merged record %s", merged)
	}
	if len(out.Extents) != 1 || out.Extents[0].ExtentType != "VHS" {
		t.Fatalf("unexpected extents %+v", out.Extents)
	}
	if len(out.Notes) != 2 {
		t.Fatalf("expected odd plus new scope note, got %d", len(out.Notes))
	}
	if out.Notes[0].NoteType() != "odd" || !strings.Contains(string(merged), `"persistent_id":"keepme"`) {
		t.Fatalf("expected odd note preserved verbatim, got %s", merged)
	}
	scope, ok := out.Notes.FirstMultipart("scopecontent")
	if !ok || scope.Text() != "New text." {
		t.Fatalf("unexpected scope note %+v", scope)
	}
}

func TestMergeLeavesNotesWhenRowHasNone(t *testing.T) {
	record := decodeRecord(t, fetched)
	merged, err := changes.Merge(record, mapping.Fields{Title: "Only Title"})
	if err != nil {
		t.Fatalf("Merge: %v", err)
	}
	if !strings.Contains(string(merged), "Old text.") || !strings.Contains(string(merged), "U-matic") {
		t.Fatalf("expected untouched notes and extents, got %s", merged)
	}
}

func TestReplaceNotesAndAuditPatch(t *testing.T) {
	record := decodeRecord(t, fetched)
	notes, replaced := mapping.ApplyDurationNote(record.Object.Notes, "01:02:03")
	if !replaced {
		t.Fatal("expected existing odd note replaced")
	}
	updated, err := changes.ReplaceNotes(record.Raw, notes)
	if err != nil {
		t.Fatalf("ReplaceNotes: %v", err)
	}
	if !strings.Contains(string(updated), "01:02:03") || strings.Contains(string(updated), "00:10:00") {
		t.Fatalf("unexpected notes after replace: %s", updated)
	}

	patch, err := changes.AuditPatch(record.Raw, updated)
	if err != nil {
		t.Fatalf("AuditPatch: %v", err)
	}
	if !strings.Contains(string(patch), "/notes/1") {
		t.Fatalf("expected patch to touch the odd note, got %s", patch)
	}

	same, err := changes.AuditPatch(record.Raw, record.Raw)
	if err != nil || string(same) != "[]" {
		t.Fatalf("expected empty patch, got %s (%v)", same, err)
	}
}

func TestMergeRequiresBody(t *testing.T) {
	if _, err := changes.Merge(aspace.Record{}, mapping.Fields{Title: "x"}); err == nil {
		t.Fatal("expected error for empty record body")
	}
}
