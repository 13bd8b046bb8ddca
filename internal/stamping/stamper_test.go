package stamping_test

import (
	"context"
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/stamping"
	"github.com/JPC-AV/aspace-jpc-av/internal/testsupport"
)

type fixedProber struct {
	duration string
	err      error
	calls    []string
}

func (p *fixedProber) Duration(_ context.Context, path string) (string, error) {
	p.calls = append(p.calls, filepath.Base(path))
	return p.duration, p.err
}

func newClient(t *testing.T, fake *testsupport.FakeArchivesSpace) *aspace.Client {
	t.Helper()
	client := aspace.New(aspace.Config{
		BaseURL:      fake.URL(),
		Username:     testsupport.FakeUsername,
		Password:     testsupport.FakePassword,
		RepositoryID: testsupport.FakeRepositoryID,
		ResourceID:   testsupport.FakeResourceID,
	})
	if err := client.Login(context.Background()); err != nil {
		t.Fatalf("login: %v", err)
	}
	return client
}

func addItem(fake *testsupport.FakeArchivesSpace, componentID, refID string, notes ...map[string]any) string {
	obj := map[string]any{
		"title":        "Reel " + componentID,
		"component_id": componentID,
		"ref_id":       refID,
		"level":        "item",
	}
	if len(notes) > 0 {
		list := make([]any, 0, len(notes))
		for _, n := range notes {
			list = append(list, n)
		}
		obj["notes"] = list
	}
	return fake.AddObject(obj)
}

func TestDiscoverSkipsStampedAndUnrelated(t *testing.T) {
	root := t.TempDir()
	for _, name := range []string{"JPC_AV_00002", "JPC_AV_00001", "JPC_AV_00003_refid_abc", "misc", ".JPC_AV_hidden"} {
		if err := os.MkdirAll(filepath.Join(root, name), 0o755); err != nil {
			t.Fatalf("mkdir: %v", err)
		}
	}
	testsupport.WriteFile(t, filepath.Join(root, "JPC_AV_00004.txt"), 1)

	s := stamping.New(nil, nil, stamping.Options{}, nil)
	dirs, err := s.Discover(root)
	if err != nil {
		t.Fatalf("Discover: %v", err)
	}
	if strings.Join(dirs, ",") != "JPC_AV_00001,JPC_AV_00002" {
		t.Fatalf("unexpected directories %v", dirs)
	}
}

func TestRunStampsDurationAndRenames(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	uri := addItem(fake, "JPC_AV_00001", "f00d", map[string]any{
		"jsonmodel_type": "note_multipart",
		"type":           "scopecontent",
		"persistent_id":  "keep",
		"subnotes":       []any{map[string]any{"jsonmodel_type": "note_text", "content": "Interview."}},
	})
	root := t.TempDir()
	testsupport.WriteMatroska(t, filepath.Join(root, "JPC_AV_00001", "b.mkv"))
	testsupport.WriteMatroska(t, filepath.Join(root, "JPC_AV_00001", "a.MKV"))

	prober := &fixedProber{duration: "01:02:05"}
	s := stamping.New(newClient(t, fake), prober, stamping.Options{RenameMedia: true}, nil)
	summary, results, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Count(stamping.StatusStamped) != 1 || summary.ExitCode() != 0 {
		t.Fatalf("unexpected summary %+v", summary)
	}
	r := results[0]
	if r.Status != stamping.StatusStamped || r.Message != "Duration recorded, directory renamed" || r.URI != uri {
		t.Fatalf("unexpected result %+v", r)
	}
	if len(prober.calls) != 1 || prober.calls[0] != "a.MKV" {
		t.Fatalf("expected first media file probed, got %v", prober.calls)
	}

	newDir := filepath.Join(root, "JPC_AV_00001_refid_f00d")
	if _, err := os.Stat(filepath.Join(newDir, "a_refid_f00d.MKV")); err != nil {
		t.Fatalf("expected renamed media: %v", err)
	}
	if _, err := os.Stat(filepath.Join(root, "JPC_AV_00001")); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("old directory still present: %v", err)
	}

	notes, _ := fake.Object(uri)["notes"].([]any)
	if len(notes) != 2 {
		t.Fatalf("expected scope note kept and odd note added, got %v", notes)
	}
	first, _ := notes[0].(map[string]any)
	if first["persistent_id"] != "keep" {
		t.Fatalf("scope note rewritten: %v", first)
	}
	odd, _ := notes[1].(map[string]any)
	subnotes, _ := odd["subnotes"].([]any)
	list, _ := subnotes[0].(map[string]any)
	items, _ := list["items"].([]any)
	item, _ := items[0].(map[string]any)
	if odd["type"] != "odd" || item["label"] != "Duration" || item["value"] != "01:02:05" {
		t.Fatalf("unexpected duration note %v", odd)
	}
	var ops []struct {
		Op   string `json:"op"`
		Path string `json:"path"`
	}
	if err := json.Unmarshal(r.Patch, &ops); err != nil {
		t.Fatalf("decode audit patch: %v", err)
	}
	added := false
	for _, op := range ops {
		if op.Op == "add" && strings.HasPrefix(op.Path, "/notes/") {
			added = true
		}
	}
	if !added {
		t.Fatalf("expected audit patch to add note, got %s", r.Patch)
	}
}

func TestRunLeavesMatchingDurationAlone(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	addItem(fake, "JPC_AV_00001", "f00d", map[string]any{
		"jsonmodel_type": "note_multipart",
		"type":           "odd",
		"subnotes": []any{map[string]any{
			"jsonmodel_type": "note_definedlist",
			"items":          []any{map[string]any{"jsonmodel_type": "note_definedlist_item", "label": "Duration", "value": "00:30:00"}},
		}},
	})
	root := t.TempDir()
	testsupport.WriteMatroska(t, filepath.Join(root, "JPC_AV_00001", "reel.mkv"))

	s := stamping.New(newClient(t, fake), &fixedProber{duration: "00:30:00"}, stamping.Options{NoRename: true}, nil)
	_, results, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if results[0].Status != stamping.StatusUnchanged || results[0].Message != "Duration already recorded" {
		t.Fatalf("unexpected result %+v", results[0])
	}
	if len(fake.Writes()) != 0 {
		t.Fatalf("expected no writes, got %d", len(fake.Writes()))
	}
}

func TestRunIsolatesDirectoryFailures(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	addItem(fake, "JPC_AV_00001", "aaa")
	addItem(fake, "JPC_AV_00003", "ccc")
	addItem(fake, "JPC_AV_00004", "ddd")
	root := t.TempDir()
	testsupport.WriteMatroska(t, filepath.Join(root, "JPC_AV_00001", "reel.mkv"))
	testsupport.WriteMatroska(t, filepath.Join(root, "JPC_AV_00002", "reel.mkv"))
	if err := os.MkdirAll(filepath.Join(root, "JPC_AV_00003"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.MkdirAll(filepath.Join(root, "JPC_AV_00004"), 0o755); err != nil {
		t.Fatalf("mkdir: %v", err)
	}
	if err := os.WriteFile(filepath.Join(root, "JPC_AV_00004", "notes.mkv"), []byte("plain text, not video\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}

	prober := &fixedProber{err: errors.New("exit status 1")}
	s := stamping.New(newClient(t, fake), prober, stamping.Options{}, nil)
	summary, results, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if len(results) != 4 {
		t.Fatalf("expected four results, got %+v", results)
	}
	want := []struct {
		status stamping.Status
		prefix string
	}{
		{stamping.StatusError, "Could not read duration"},
		{stamping.StatusSkipped, "No matching archival object"},
		{stamping.StatusSkipped, "No .mkv file found"},
		{stamping.StatusSkipped, "Not a media file (detected text/plain"},
	}
	for i, w := range want {
		if results[i].Status != w.status || !strings.HasPrefix(results[i].Message, w.prefix) {
			t.Fatalf("result %d: got %s %q, want %s %q", i, results[i].Status, results[i].Message, w.status, w.prefix)
		}
	}
	if results[0].ErrorKind != "external_tool" {
		t.Fatalf("unexpected error kind %q", results[0].ErrorKind)
	}
	if summary.ExitCode() != 2 {
		t.Fatalf("expected exit code 2, got %d", summary.ExitCode())
	}
	if _, err := os.Stat(filepath.Join(root, "JPC_AV_00001")); err != nil {
		t.Fatalf("failed directory should not be renamed: %v", err)
	}
}

func TestRunDryRunTouchesNothing(t *testing.T) {
	fake := testsupport.NewFakeArchivesSpace(t)
	addItem(fake, "JPC_AV_00001", "f00d")
	root := t.TempDir()
	testsupport.WriteMatroska(t, filepath.Join(root, "JPC_AV_00001", "reel.mkv"))

	s := stamping.New(newClient(t, fake), &fixedProber{duration: "00:01:00"}, stamping.Options{DryRun: true}, nil)
	_, results, err := s.Run(context.Background(), root)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	r := results[0]
	if r.Status != stamping.StatusStamped || r.Message != "[DRY RUN] Would record duration, rename directory" || r.NewDirectory != "JPC_AV_00001_refid_f00d" {
		t.Fatalf("unexpected dry-run result %+v", r)
	}
	if len(fake.Writes()) != 0 {
		t.Fatalf("dry run wrote %d requests", len(fake.Writes()))
	}
	if _, err := os.Stat(filepath.Join(root, "JPC_AV_00001")); err != nil {
		t.Fatalf("dry run renamed directory: %v", err)
	}
}
