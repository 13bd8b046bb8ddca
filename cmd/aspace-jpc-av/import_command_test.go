package main

import (
	"path/filepath"
	"testing"
)

func TestImportCreatesRecordsAndWritesReports(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.AddParent("abc123")
	csvPath := writeCatalog(t, env,
		[]string{"JPC_AV_00001", "abc123", "Reel one", "8/1/1982", "VHS", "Interview"},
		[]string{"JPC_AV_00002", "abc123", "Reel two", "", "U-matic", ""},
	)

	stdout, _, err := runCLI(t, env.configPath, "import", csvPath)
	if err != nil {
		t.Fatalf("import: %v\n%s", err, stdout)
	}
	requireContains(t, stdout, "JPC_AV_00001")
	requireContains(t, stdout, "Import summary")
	requireContains(t, stdout, "created")

	if containers := env.fake.Containers(); len(containers) != 2 {
		t.Fatalf("expected two containers, got %v", containers)
	}
	if logins, logouts := env.fake.Logins(), env.fake.Logouts(); logins != 1 || logouts != 1 {
		t.Fatalf("expected one login and logout, got %d/%d", logins, logouts)
	}
	if reports := globFiles(t, filepath.Join(env.cfg.Paths.ReportDir, "import_report_*.csv")); len(reports) != 1 {
		t.Fatalf("expected one CSV report, got %v", reports)
	}
	if logs := globFiles(t, filepath.Join(env.cfg.Paths.LogDir, "import_*.log")); len(logs) != 1 {
		t.Fatalf("expected one run log, got %v", logs)
	}

	history, _, err := runCLI(t, env.configPath, "history")
	if err != nil {
		t.Fatalf("history: %v", err)
	}
	requireContains(t, history, "import")
	requireContains(t, history, "created 2")
}

func TestImportDryRunWritesNothing(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.AddParent("abc123")
	csvPath := writeCatalog(t, env, []string{"JPC_AV_00001", "abc123", "Reel one", "", "VHS", ""})

	stdout, _, err := runCLI(t, env.configPath, "import", "--dry-run", "--no-reports", csvPath)
	if err != nil {
		t.Fatalf("import: %v", err)
	}
	requireContains(t, stdout, "[DRY RUN] Would be created")
	requireContains(t, stdout, "(dry run)")
	if writes := env.fake.Writes(); len(writes) != 0 {
		t.Fatalf("dry run wrote %d request(s)", len(writes))
	}
	if reports := globFiles(t, filepath.Join(env.cfg.Paths.ReportDir, "*")); len(reports) != 0 {
		t.Fatalf("expected no reports, got %v", reports)
	}
}

func TestImportFailModeExitsWithStatusTwo(t *testing.T) {
	env := setupCLITestEnv(t)
	env.fake.AddParent("abc123")
	env.fake.AddObject(map[string]any{"title": "Existing", "component_id": "JPC_AV_00001", "level": "item"})
	csvPath := writeCatalog(t, env,
		[]string{"JPC_AV_00001", "abc123", "Reel one", "", "VHS", ""},
		[]string{"JPC_AV_00002", "abc123", "Reel two", "", "VHS", ""},
	)

	stdout, _, err := runCLI(t, env.configPath, "import", "--duplicates", "fail", csvPath)
	if code := exitCode(err); code != 2 {
		t.Fatalf("expected exit 2, got %d (%v)", code, err)
	}
	requireContains(t, stdout, "Aborted: Duplicate component ID: JPC_AV_00001")
	if writes := env.fake.Writes(); len(writes) != 0 {
		t.Fatalf("aborted run wrote %d request(s)", len(writes))
	}
}

func TestImportRejectsUnknownMode(t *testing.T) {
	env := setupCLITestEnv(t)
	csvPath := writeCatalog(t, env, []string{"JPC_AV_00001", "abc123", "Reel one", "", "VHS", ""})
	if _, _, err := runCLI(t, env.configPath, "import", "--duplicates", "merge", csvPath); exitCode(err) != 1 {
		t.Fatalf("expected configuration failure, got %v", err)
	}
	if env.fake.Logins() != 0 {
		t.Fatal("expected no login for a bad mode")
	}
}

func writeCatalog(t *testing.T, env *cliTestEnv, rows ...[]string) string {
	t.Helper()
	return writeCatalogCSV(t, filepath.Join(env.baseDir, "catalog.csv"), rows...)
}
