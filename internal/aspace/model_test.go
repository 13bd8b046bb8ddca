package aspace_test

import (
	"encoding/json"
	"strings"
	"testing"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
)

const recordWithNotes = `{
  "jsonmodel_type": "archival_object",
  "uri": "/repositories/2/archival_objects/5",
  "title": "Reel",
  "publish": true,
  "notes": [
    {"jsonmodel_type": "note_multipart", "type": "scopecontent", "label": "Scope and Contents", "publish": true,
     "persistent_id": "abc", "subnotes": [{"jsonmodel_type": "note_text", "content": "A reel.", "publish": true}]},
    {"jsonmodel_type": "note_multipart", "type": "odd", "label": "",
     "subnotes": [{"jsonmodel_type": "note_definedlist", "items": [{"jsonmodel_type": "note_definedlist_item", "label": "Duration", "value": "00:12:00"}]},
                  {"jsonmodel_type": "note_chronology", "items": []}]},
    {"jsonmodel_type": "note_singlepart", "type": "abstract", "content": ["Short."]},
    {"jsonmodel_type": "note_bibliography", "type": "bibliography", "items": ["x"]}
  ]
}`

func TestNotesDecodeIntoTypedKinds(t *testing.T) {
	var obj aspace.ArchivalObject
	if err := json.Unmarshal([]byte(recordWithNotes), &obj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(obj.Notes) != 4 {
		t.Fatalf("expected 4 notes, got %d", len(obj.Notes))
	}
	scope, ok := obj.Notes.FirstMultipart("scopecontent")
	if !ok || scope.Text() != "A reel." {
		t.Fatalf("unexpected scope note %+v", scope)
	}
	odd, ok := obj.Notes.FirstMultipart("odd")
	if !ok {
		t.Fatal("expected odd note")
	}
	if value, ok := odd.DefinedListValue("duration"); !ok || value != "00:12:00" {
		t.Fatalf("unexpected duration %q", value)
	}
	if _, ok := obj.Notes[2].(aspace.SinglepartNote); !ok {
		t.Fatalf("expected singlepart note, got %T", obj.Notes[2])
	}
	other, ok := obj.Notes[3].(aspace.OtherNote)
	if !ok || other.Model() != "note_bibliography" || other.NoteType() != "bibliography" {
		t.Fatalf("expected preserved bibliography note, got %#v", obj.Notes[3])
	}
	if got := obj.Notes.Types(); strings.Join(got, ",") != "scopecontent,odd,abstract,bibliography" {
		t.Fatalf("unexpected note types %v", got)
	}
}

func TestDecodedNotesReencodeVerbatim(t *testing.T) {
	var obj aspace.ArchivalObject
	if err := json.Unmarshal([]byte(recordWithNotes), &obj); err != nil {
		t.Fatalf("decode: %v", err)
	}
	kept := obj.Notes.Without("scopecontent")
	encoded, err := json.Marshal(kept)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, fragment := range []string{`"note_chronology"`, `"note_bibliography"`, `"Short."`} {
		if !strings.Contains(string(encoded), fragment) {
			t.Fatalf("expected %s preserved in %s", fragment, encoded)
		}
	}
	if strings.Contains(string(encoded), "scopecontent") {
		t.Fatalf("expected scope note removed, got %s", encoded)
	}
}

func TestConstructedNotesCarryDiscriminants(t *testing.T) {
	note := aspace.MultipartNote{
		Type:     "odd",
		Subnotes: aspace.Subnotes{aspace.DefinedListSubnote{Items: []aspace.DefinedListItem{{Label: "Duration", Value: "01:00:00"}}}},
	}
	encoded, err := json.Marshal(aspace.Notes{note})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	want := `[{"jsonmodel_type":"note_multipart","type":"odd","label":"","publish":false,"subnotes":[{"jsonmodel_type":"note_definedlist","items":[{"jsonmodel_type":"note_definedlist_item","label":"Duration","value":"01:00:00"}]}]}]`
	if string(encoded) != want {
		t.Fatalf("unexpected encoding\n got %s\nwant %s", encoded, want)
	}
}

func TestArchivalObjectEncodesSubrecords(t *testing.T) {
	obj := aspace.ArchivalObject{
		Title:       "Reel",
		ComponentID: "JPC_AV_00001",
		Level:       "item",
		Publish:     true,
		Parent:      &aspace.Ref{Ref: "/repositories/2/archival_objects/1"},
		Dates:       []aspace.Date{{DateType: "single", Label: "creation", Begin: "1982-08-01", Expression: "1982-08-01"}},
		Extents:     []aspace.Extent{{Portion: "whole", Number: "1", ExtentType: "VHS"}},
		Instances: []aspace.Instance{{
			InstanceType: "Moving Images (Video)",
			SubContainer: &aspace.SubContainer{TopContainer: aspace.Ref{Ref: "/repositories/2/top_containers/3"}},
		}},
	}
	encoded, err := json.Marshal(obj)
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	for _, fragment := range []string{
		`"jsonmodel_type":"archival_object"`,
		`"jsonmodel_type":"date"`,
		`"jsonmodel_type":"extent"`,
		`"jsonmodel_type":"instance"`,
		`"jsonmodel_type":"sub_container"`,
		`"extent_type":"VHS"`,
		`"parent":{"ref":"/repositories/2/archival_objects/1"}`,
	} {
		if !strings.Contains(string(encoded), fragment) {
			t.Fatalf("expected %s in %s", fragment, encoded)
		}
	}
	if strings.Contains(string(encoded), `"notes"`) {
		t.Fatalf("expected empty notes omitted, got %s", encoded)
	}
}
