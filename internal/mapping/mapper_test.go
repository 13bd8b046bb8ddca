package mapping_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"strings"
	"testing"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
)

func TestParseDate(t *testing.T) {
	cases := []struct {
		in   string
		want string
		ok   bool
	}{
		{"8/1/1982", "1982-08-01", true},
		{"08/01/1982", "1982-08-01", true},
		{"8/1/82", "1982-08-01", true},
		{"1/5/05", "2005-01-05", true},
		{"1982-08-01", "1982-08-01", true},
		{"1982/8/1", "1982-08-01", true},
		{"25/12/1999", "1999-12-25", true},
		{" 12/31/1999 ", "1999-12-31", true},
		{"not-a-date", "", false},
		{"", "", false},
		{"2/30/1999", "", false},
	}
	for _, tc := range cases {
		got, ok := mapping.ParseDate(tc.in)
		if ok != tc.ok || got != tc.want {
			t.Fatalf("ParseDate(%q) = %q,%v want %q,%v", tc.in, got, ok, tc.want, tc.ok)
		}
	}
}

func TestDatesDropUnparsableWithWarning(t *testing.T) {
	var buf bytes.Buffer
	logger, err := logging.New(logging.Options{Format: "json", Level: "info", Console: &buf})
	if err != nil {
		t.Fatalf("logger: %v", err)
	}
	m := mapping.New(mapping.DefaultOptions(), logger)
	row := mapping.Row{
		mapping.ColumnCreationDate:  "8/1/1982",
		mapping.ColumnEditDate:      "not-a-date",
		mapping.ColumnBroadcastDate: "1983-02-03",
	}
	dates := m.Dates(context.Background(), row)
	if len(dates) != 2 {
		t.Fatalf("expected 2 dates, got %+v", dates)
	}
	if dates[0].Label != "creation" || dates[0].Begin != "1982-08-01" || dates[0].Expression != "1982-08-01" || dates[0].DateType != "single" {
		t.Fatalf("unexpected creation date %+v", dates[0])
	}
	if dates[1].Label != "broadcast" || dates[1].Begin != "1983-02-03" {
		t.Fatalf("unexpected broadcast date %+v", dates[1])
	}
	if !strings.Contains(buf.String(), "date_unparsable") || !strings.Contains(buf.String(), "not-a-date") {
		t.Fatalf("expected unparsable date warning, got %s", buf.String())
	}
}

func TestExtentsFromOriginalFormat(t *testing.T) {
	m := mapping.New(mapping.DefaultOptions(), nil)
	extents := m.Extents(context.Background(), mapping.Row{mapping.ColumnOriginalFormat: " VHS "})
	if len(extents) != 1 {
		t.Fatalf("expected one extent, got %+v", extents)
	}
	if extents[0] != (aspace.Extent{Portion: "whole", Number: "1", ExtentType: "VHS"}) {
		t.Fatalf("unexpected extent %+v", extents[0])
	}
	if got := m.Extents(context.Background(), mapping.Row{}); got != nil {
		t.Fatalf("expected no extent for empty format, got %+v", got)
	}
}

func TestNotesFromDescriptionAndTransferNotes(t *testing.T) {
	m := mapping.New(mapping.DefaultOptions(), nil)
	notes := m.Notes(context.Background(), mapping.Row{
		mapping.ColumnDescription:   "Interview footage.",
		mapping.ColumnTransferNotes: "Tape shed; baked 8h.",
	})
	if len(notes) != 2 {
		t.Fatalf("expected 2 notes, got %d", len(notes))
	}
	scope, ok := notes.FirstMultipart(mapping.NoteTypeScopeContent)
	if !ok || scope.Label != mapping.LabelScopeContent || !scope.Publish || scope.Text() != "Interview footage." {
		t.Fatalf("unexpected scope note %+v", scope)
	}
	tech, ok := notes.FirstMultipart(mapping.NoteTypePhysTech)
	if !ok || tech.Label != mapping.LabelPhysTech || tech.Text() != "Tape shed; baked 8h." {
		t.Fatalf("unexpected technical note %+v", tech)
	}

	encoded, err := json.Marshal(notes[0])
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `{"jsonmodel_type":"note_multipart","type":"scopecontent","label":"Scope and Contents","publish":true,"subnotes":[{"jsonmodel_type":"note_text","content":"Interview footage."}]}`
	if string(encoded) != want {
		t.Fatalf("unexpected note json\n got %s\nwant %s", encoded, want)
	}

	if empty := m.Notes(context.Background(), mapping.Row{}); len(empty) != 0 {
		t.Fatalf("expected no notes for empty row, got %d", len(empty))
	}
}

type recordingMinter struct {
	indicators []string
	err        error
}

func (r *recordingMinter) CreateTopContainer(_ context.Context, indicator string) (string, error) {
	r.indicators = append(r.indicators, indicator)
	if r.err != nil {
		return "", r.err
	}
	return "/repositories/2/top_containers/11", nil
}

func TestInstancesMintContainer(t *testing.T) {
	m := mapping.New(mapping.DefaultOptions(), nil)
	minter := &recordingMinter{}
	instances, err := m.Instances(context.Background(), mapping.Row{mapping.ColumnCatalogNumber: "JPC_AV_00001"}, minter)
	if err != nil {
		t.Fatalf("Instances: %v", err)
	}
	if len(minter.indicators) != 1 || minter.indicators[0] != "JPC_AV_00001" {
		t.Fatalf("unexpected minter calls %v", minter.indicators)
	}
	if len(instances) != 1 || instances[0].InstanceType != "Moving Images (Video)" ||
		instances[0].SubContainer.TopContainer.Ref != "/repositories/2/top_containers/11" {
		t.Fatalf("unexpected instances %+v", instances)
	}

	failing := &recordingMinter{err: errors.New("boom")}
	if _, err := m.Instances(context.Background(), mapping.Row{mapping.ColumnCatalogNumber: "X"}, failing); err == nil {
		t.Fatal("expected minter error")
	}
}

func TestArchivalObjectTitleFallback(t *testing.T) {
	m := mapping.New(mapping.DefaultOptions(), nil)
	row := mapping.Row{
		mapping.ColumnCatalogNumber:  "JPC_AV_00001",
		mapping.ColumnOriginalFormat: "VHS",
	}
	fields := m.Fields(context.Background(), row)
	obj := m.ArchivalObject(row, fields, "/repositories/2/archival_objects/1", "/repositories/2/resources/7", nil)
	if obj.Title != "JPC_AV_00001" {
		t.Fatalf("expected catalog number title fallback, got %q", obj.Title)
	}
	if obj.ComponentID != "JPC_AV_00001" || obj.Level != "item" || !obj.Publish {
		t.Fatalf("unexpected object %+v", obj)
	}
	if obj.Parent == nil || obj.Parent.Ref != "/repositories/2/archival_objects/1" || obj.Resource.Ref != "/repositories/2/resources/7" {
		t.Fatalf("unexpected links %+v %+v", obj.Parent, obj.Resource)
	}
	if len(obj.Extents) != 1 || obj.Extents[0].ExtentType != "VHS" {
		t.Fatalf("unexpected extents %+v", obj.Extents)
	}
}

func TestApplyDurationNoteReplacesOrAppends(t *testing.T) {
	existing := aspace.Notes{
		aspace.MultipartNote{Type: "scopecontent", Subnotes: aspace.Subnotes{aspace.TextSubnote{Content: "x"}}},
		aspace.MultipartNote{Type: "odd", Label: "Old", Subnotes: aspace.Subnotes{aspace.TextSubnote{Content: "old"}}},
	}
	updated, replaced := mapping.ApplyDurationNote(existing, "01:02:03")
	if !replaced || len(updated) != 2 {
		t.Fatalf("expected replacement in place, got replaced=%v len=%d", replaced, len(updated))
	}
	odd, _ := updated.FirstMultipart("odd")
	if value, ok := odd.DefinedListValue("Duration"); !ok || value != "01:02:03" || odd.Label != "" {
		t.Fatalf("unexpected odd note %+v", odd)
	}

	appended, replaced := mapping.ApplyDurationNote(existing[:1], "00:00:10")
	if replaced || len(appended) != 2 {
		t.Fatalf("expected append, got replaced=%v len=%d", replaced, len(appended))
	}
	if appended[1].NoteType() != "odd" {
		t.Fatalf("expected odd note appended, got %s", appended[1].NoteType())
	}
}

func TestKnownColumns(t *testing.T) {
	if !mapping.KnownColumn("ASpace Parent RefID") || !mapping.KnownColumn("_TRANSFER_NOTES") {
		t.Fatal("expected known columns")
	}
	if mapping.KnownColumn("Notes") {
		t.Fatal("expected unknown column")
	}
}
