package importer_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/importer"
	"github.com/JPC-AV/aspace-jpc-av/internal/mapping"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
	"github.com/JPC-AV/aspace-jpc-av/internal/testsupport"
	"github.com/JPC-AV/aspace-jpc-av/internal/vocab"
)

type sliceSource struct {
	rows  []mapping.Row
	next  int
	errAt int
}

func (s *sliceSource) Next() (int, mapping.Row, error) {
	if s.errAt > 0 && s.next+1 == s.errAt {
		return s.errAt, nil, errors.New("bare \" in non-quoted field")
	}
	if s.next >= len(s.rows) {
		return 0, nil, io.EOF
	}
	s.next++
	return s.next, s.rows[s.next-1], nil
}

func newClient(t *testing.T, fake *testsupport.FakeArchivesSpace) *aspace.Client {
	t.Helper()
	client := aspace.New(aspace.Config{
		BaseURL:      fake.URL(),
		Username:     testsupport.FakeUsername,
		Password:     testsupport.FakePassword,
		RepositoryID: testsupport.FakeRepositoryID,
		ResourceID:   testsupport.FakeResourceID,
	}, aspace.WithSleeper(func(time.Duration) {}))
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	return client
}

func newProcessor(client *aspace.Client, opts importer.Options) *importer.Processor {
	return importer.NewProcessor(client, mapping.New(mapping.DefaultOptions(), nil), opts, nil)
}

func reelRow() mapping.Row {
	return mapping.Row{
		mapping.ColumnCatalogNumber:  "JPC_AV_00001",
		mapping.ColumnTitle:          "Test Reel",
		mapping.ColumnParentRefID:    "abc123",
		mapping.ColumnOriginalFormat: "VHS",
	}
}

func TestCreatesNewRecordUnderParent(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	parentURI := fake.AddParent("abc123")
	proc := newProcessor(newClient(t, fake), importer.Options{Mode: importer.ModeSkip})

	result, err := proc.Process(context.Background(), 1, reelRow())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusCreated || result.URI == "" || result.Title != "Test Reel" {
		t.Fatalf("unexpected result %+v", result)
	}

	if containers := fake.Containers(); len(containers) != 1 || containers[0] != "JPC_AV_00001" {
		t.Fatalf("expected one container named after the catalog number, got %v", containers)
	}
	created := fake.Object(result.URI)
	if created["component_id"] != "JPC_AV_00001" || created["level"] != "item" || created["publish"] != true {
		t.Fatalf("unexpected created record %v", created)
	}
	parent, _ := created["parent"].(map[string]any)
	if parent["ref"] != parentURI {
		t.Fatalf("expected parent %s, got %v", parentURI, created["parent"])
	}
	extents, _ := created["extents"].([]any)
	if len(extents) != 1 || extents[0].(map[string]any)["extent_type"] != "VHS" {
		t.Fatalf("unexpected extents %v", created["extents"])
	}
	instances, _ := created["instances"].([]any)
	if len(instances) != 1 {
		t.Fatalf("expected one instance, got %v", created["instances"])
	}
}

func TestEmptyCatalogNumberIsSkippedWithoutRequests(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	proc := newProcessor(newClient(t, fake), importer.Options{})
	before := len(fake.Requests())

	result, err := proc.Process(context.Background(), 3, mapping.Row{mapping.ColumnTitle: "No id"})
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusSkipped || result.RowNumber != 3 {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(fake.Requests()) != before {
		t.Fatal("expected no requests for a row without catalog number")
	}
}

func TestSkipModeDoesNotFetchExisting(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	uri := fake.AddObject(map[string]any{"title": "Existing", "component_id": "JPC_AV_00001", "level": "item"})
	proc := newProcessor(newClient(t, fake), importer.Options{Mode: importer.ModeSkip})

	result, err := proc.Process(context.Background(), 1, reelRow())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusSkipped || result.URI != uri {
		t.Fatalf("unexpected result %+v", result)
	}
	for _, req := range fake.Requests() {
		if req.Path == uri {
			t.Fatalf("expected record not fetched, saw %s %s", req.Method, req.Path)
		}
	}
	if len(fake.Writes()) != 0 {
		t.Fatalf("expected no writes, got %d", len(fake.Writes()))
	}
}

func existingReel() map[string]any {
	return map[string]any{
		"title":        "Test Reel",
		"component_id": "JPC_AV_00001",
		"level":        "item",
		"extents": []any{
			map[string]any{"jsonmodel_type": "extent", "portion": "whole", "number": "1", "extent_type": "VHS"},
		},
		"notes": []any{
			map[string]any{
				"jsonmodel_type": "note_multipart", "type": "scopecontent", "label": "Scope and Contents", "publish": true,
				"subnotes": []any{map[string]any{"jsonmodel_type": "note_text", "content": "Reel of interviews."}},
			},
			map[string]any{
				"jsonmodel_type": "note_multipart", "type": "odd", "label": "", "persistent_id": "odd1",
				"subnotes": []any{map[string]any{"jsonmodel_type": "note_definedlist", "items": []any{
					map[string]any{"jsonmodel_type": "note_definedlist_item", "label": "Duration", "value": "00:42:00"},
				}}},
			},
		},
	}
}

func TestUpdateModeIsIdempotent(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	uri := fake.AddObject(existingReel())
	proc := newProcessor(newClient(t, fake), importer.Options{Mode: importer.ModeUpdate})

	row := reelRow()
	row[mapping.ColumnDescription] = "Reel of interviews."
	result, err := proc.Process(context.Background(), 1, row)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusUnchanged || len(result.Changes) != 0 {
		t.Fatalf("expected unchanged, got %+v", result)
	}
	if len(fake.Writes()) != 0 {
		t.Fatalf("expected no writes for unchanged row, got %d", len(fake.Writes()))
	}

	row[mapping.ColumnTitle] = "Retitled Reel"
	result, err = proc.Process(context.Background(), 1, row)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusUpdated || result.URI != uri {
		t.Fatalf("expected updated, got %+v", result)
	}
	if fields := result.Changes.Fields(); len(fields) != 1 || fields[0] != "title" {
		t.Fatalf("expected only title changed, got %v", fields)
	}
	if result.Changes["title"].Old != "Test Reel" || result.Changes["title"].New != "Retitled Reel" {
		t.Fatalf("unexpected title change %+v", result.Changes["title"])
	}
	if len(result.Patch) == 0 {
		t.Fatal("expected audit patch recorded")
	}

	stored := fake.Object(uri)
	if stored["title"] != "Retitled Reel" || stored["lock_version"] != float64(1) {
		t.Fatalf("unexpected stored record %v", stored)
	}
	encoded, _ := json.Marshal(stored["notes"])
	if !strings.Contains(string(encoded), `"persistent_id":"odd1"`) || !strings.Contains(string(encoded), "00:42:00") {
		t.Fatalf("expected odd note preserved, got %s", encoded)
	}

	result, err = proc.Process(context.Background(), 1, row)
	if err != nil || result.Status != importer.StatusUnchanged {
		t.Fatalf("expected second pass unchanged, got %+v (%v)", result, err)
	}
}

func TestMultipleMatchesUseFirstAndWarn(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	first := fake.AddObject(existingReel())
	second := fake.AddObject(map[string]any{"title": "Other Reel", "component_id": "JPC_AV_00001", "level": "item"})

	var logs bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&logs, &slog.HandlerOptions{Level: slog.LevelDebug}))
	proc := importer.NewProcessor(newClient(t, fake), mapping.New(mapping.DefaultOptions(), nil), importer.Options{Mode: importer.ModeUpdate}, logger)

	result, err := proc.Process(context.Background(), 1, reelRow())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.URI != first || result.Status != importer.StatusUnchanged {
		t.Fatalf("expected first match %s used, got %+v", first, result)
	}
	if len(fake.Writes()) != 0 {
		t.Fatalf("expected no writes, got %d", len(fake.Writes()))
	}
	if fake.Object(second)["title"] != "Other Reel" {
		t.Fatalf("second match modified: %v", fake.Object(second))
	}

	var warned bool
	for _, line := range strings.Split(strings.TrimSpace(logs.String()), "\n") {
		var entry map[string]any
		if err := json.Unmarshal([]byte(line), &entry); err != nil {
			t.Fatalf("decode log line %q: %v", line, err)
		}
		if entry["event_type"] == "duplicate_matches" {
			warned = true
			if entry["level"] != "WARN" || entry["matches"] != float64(2) || entry["uri"] != first {
				t.Fatalf("unexpected warning %v", entry)
			}
		}
	}
	if !warned {
		t.Fatalf("expected duplicate_matches warning, got %s", logs.String())
	}
}

func TestFailModeReturnsDuplicateError(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	fake.AddObject(map[string]any{"title": "Existing", "component_id": "JPC_AV_00001"})
	proc := newProcessor(newClient(t, fake), importer.Options{Mode: importer.ModeFail})

	result, err := proc.Process(context.Background(), 1, reelRow())
	var dup *importer.DuplicateError
	if !errors.As(err, &dup) || dup.CatalogNumber != "JPC_AV_00001" {
		t.Fatalf("expected duplicate error, got %v", err)
	}
	if !errors.Is(err, services.ErrDuplicate) || err.Error() != "Duplicate component ID: JPC_AV_00001" {
		t.Fatalf("unexpected error %v", err)
	}
	if result.Status != importer.StatusError || result.ErrorKind != "duplicate" {
		t.Fatalf("unexpected result %+v", result)
	}
}

func TestDryRunPerformsNoWrites(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	fake.AddParent("abc123")
	fake.AddObject(existingReel())
	client := newClient(t, fake)

	create := newProcessor(client, importer.Options{Mode: importer.ModeUpdate, DryRun: true})
	row := reelRow()
	row[mapping.ColumnCatalogNumber] = "JPC_AV_00002"
	row[mapping.ColumnTitle] = ""
	result, err := create.Process(context.Background(), 1, row)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusCreated || result.URI != "/dry_run/JPC_AV_00002" ||
		result.Message != "[DRY RUN] Would be created" || result.Title != "JPC_AV_00002" {
		t.Fatalf("unexpected dry-run create %+v", result)
	}

	update := reelRow()
	update[mapping.ColumnTitle] = "Retitled"
	result, err = create.Process(context.Background(), 2, update)
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusUpdated || !strings.HasPrefix(result.Message, "[DRY RUN] Would update existing record") {
		t.Fatalf("unexpected dry-run update %+v", result)
	}

	if len(fake.Writes()) != 0 || len(fake.Containers()) != 0 {
		t.Fatalf("expected no writes in dry run, got %d writes", len(fake.Writes()))
	}
}

func TestCreateValidationErrors(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	proc := newProcessor(newClient(t, fake), importer.Options{})

	missingParent := reelRow()
	delete(missingParent, mapping.ColumnParentRefID)
	result, _ := proc.Process(context.Background(), 1, missingParent)
	if result.Status != importer.StatusError || result.Message != "Missing ASpace Parent RefID" || result.ErrorKind != "validation" {
		t.Fatalf("unexpected result %+v", result)
	}

	result, _ = proc.Process(context.Background(), 2, reelRow())
	if result.Status != importer.StatusError || result.Message != "Parent not found: abc123" || result.ErrorKind != "not_found" {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(fake.Writes()) != 0 {
		t.Fatal("expected no writes for invalid rows")
	}
}

func TestInvalidExtentTypeIsRejected(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	checker := vocab.New("extent_extent_type", []string{"VHS", "Betacam"}, true)
	proc := newProcessor(newClient(t, fake), importer.Options{Extents: checker})
	before := len(fake.Requests())

	row := reelRow()
	row[mapping.ColumnOriginalFormat] = "VHS tape"
	result, _ := proc.Process(context.Background(), 1, row)
	if result.Status != importer.StatusError || !strings.Contains(result.Message, `Invalid extent type "VHS tape"; did you mean: VHS`) {
		t.Fatalf("unexpected result %+v", result)
	}
	if len(fake.Requests()) != before {
		t.Fatal("expected vocabulary check before any search")
	}
}

func TestContainerFailureStillCreatesRecord(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	fake.AddParent("abc123")
	proc := newProcessor(newClient(t, fake), importer.Options{})
	fake.FailNext(fake.RepositoryURI()+"/top_containers", 1, http.StatusBadRequest)

	result, err := proc.Process(context.Background(), 1, reelRow())
	if err != nil {
		t.Fatalf("Process: %v", err)
	}
	if result.Status != importer.StatusCreated {
		t.Fatalf("expected created, got %+v", result)
	}
	if _, ok := fake.Object(result.URI)["instances"]; ok {
		t.Fatal("expected record without instances")
	}
}

func TestSessionExpiryIsTransparent(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	fake.AddParent("abc123")
	proc := newProcessor(newClient(t, fake), importer.Options{})
	fake.ExpireSession(1)

	result, err := proc.Process(context.Background(), 1, reelRow())
	if err != nil || result.Status != importer.StatusCreated {
		t.Fatalf("expected created after re-login, got %+v (%v)", result, err)
	}
	if fake.Logins() != 2 {
		t.Fatalf("expected exactly one additional login, got %d logins", fake.Logins())
	}
}

func TestParseMode(t *testing.T) {
	for in, want := range map[string]importer.Mode{"": importer.ModeSkip, "SKIP": importer.ModeSkip, " update ": importer.ModeUpdate, "fail": importer.ModeFail} {
		got, err := importer.ParseMode(in)
		if err != nil || got != want {
			t.Fatalf("ParseMode(%q) = %q, %v", in, got, err)
		}
	}
	if _, err := importer.ParseMode("overwrite"); !errors.Is(err, services.ErrConfiguration) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestResolve(t *testing.T) {
	found := aspace.Match{Exists: true}
	cases := []struct {
		mode  importer.Mode
		match aspace.Match
		want  importer.Action
	}{
		{importer.ModeSkip, aspace.Match{}, importer.ActionCreate},
		{importer.ModeFail, aspace.Match{}, importer.ActionCreate},
		{importer.ModeSkip, found, importer.ActionSkip},
		{importer.ModeUpdate, found, importer.ActionUpdate},
		{importer.ModeFail, found, importer.ActionFail},
	}
	for _, tc := range cases {
		if got := tc.mode.Resolve(tc.match); got != tc.want {
			t.Fatalf("%s.Resolve(exists=%v) = %s, want %s", tc.mode, tc.match.Exists, got, tc.want)
		}
	}
}
