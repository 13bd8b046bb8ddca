package config_test

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/pelletier/go-toml/v2"

	"github.com/JPC-AV/aspace-jpc-av/internal/config"
)

func clearCredentialEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"ASPACE_BASE_URL", "ASPACE_USERNAME", "ASPACE_PASSWORD", "ASPACE_REPOSITORY_ID", "ASPACE_RESOURCE_ID"} {
		t.Setenv(key, "")
		if err := os.Unsetenv(key); err != nil {
			t.Fatalf("unset %s: %v", key, err)
		}
	}
}

func TestLoadDefaultConfigExpandsPaths(t *testing.T) {
	clearCredentialEnv(t)
	tempHome := t.TempDir()
	t.Setenv("HOME", tempHome)

	cfg, resolved, exists, err := config.Load("")
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if resolved == "" {
		t.Fatal("expected resolved path")
	}
	if exists {
		t.Fatal("expected config file to be absent in temp HOME")
	}

	wantReports := filepath.Join(tempHome, "aspace_import_reports")
	if cfg.Paths.ReportDir != wantReports {
		t.Fatalf("unexpected report dir: got %q want %q", cfg.Paths.ReportDir, wantReports)
	}
	if cfg.Paths.StateDir != filepath.Join(tempHome, ".local", "share", "aspace-jpc-av") {
		t.Fatalf("unexpected state dir: %q", cfg.Paths.StateDir)
	}
	if cfg.ArchivesSpace.RepositoryID != "2" {
		t.Fatalf("expected default repository 2, got %q", cfg.ArchivesSpace.RepositoryID)
	}
	if cfg.Import.DuplicateMode != "skip" {
		t.Fatalf("expected skip duplicate mode, got %q", cfg.Import.DuplicateMode)
	}
	if cfg.Import.BatchSize != 10 || cfg.BatchPause().Seconds() != 1 {
		t.Fatalf("unexpected pacing defaults: batch=%d pause=%s", cfg.Import.BatchSize, cfg.BatchPause())
	}
	if cfg.ArchivesSpace.RetryAttempts != 3 || cfg.RetryDelay().Seconds() != 2 {
		t.Fatalf("unexpected retry defaults: attempts=%d delay=%s", cfg.ArchivesSpace.RetryAttempts, cfg.RetryDelay())
	}
	if len(cfg.Import.FallbackExtentTypes) != len(config.DefaultExtentTypes()) {
		t.Fatalf("expected default fallback extent types, got %v", cfg.Import.FallbackExtentTypes)
	}
	if err := cfg.EnsureDirectories(); err != nil {
		t.Fatalf("EnsureDirectories failed: %v", err)
	}
	for _, dir := range []string{cfg.Paths.ReportDir, cfg.Paths.StampReportDir, cfg.Paths.LogDir, cfg.Paths.StateDir} {
		info, err := os.Stat(dir)
		if err != nil {
			t.Fatalf("expected directory %q to exist: %v", dir, err)
		}
		if !info.IsDir() {
			t.Fatalf("expected %q to be directory", dir)
		}
	}
}

func TestLoadCustomPath(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	tempDir := t.TempDir()
	configPath := filepath.Join(tempDir, "aspace.toml")

	type payload struct {
		ArchivesSpace struct {
			BaseURL    string `toml:"base_url"`
			ResourceID string `toml:"resource_id"`
		} `toml:"archivesspace"`
		Import struct {
			DuplicateMode string `toml:"duplicate_mode"`
			BatchSize     int    `toml:"batch_size"`
		} `toml:"import"`
	}
	custom := payload{}
	custom.ArchivesSpace.BaseURL = "https://aspace.example.org/api/"
	custom.ArchivesSpace.ResourceID = "/7/"
	custom.Import.DuplicateMode = "UPDATE"
	custom.Import.BatchSize = 25
	data, err := toml.Marshal(custom)
	if err != nil {
		t.Fatalf("marshal custom config: %v", err)
	}
	if err := os.WriteFile(configPath, data, 0o644); err != nil {
		t.Fatalf("write custom config: %v", err)
	}

	cfg, resolved, exists, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected exists to be true")
	}
	if resolved != configPath {
		t.Fatalf("unexpected resolved path: got %q want %q", resolved, configPath)
	}
	if cfg.ArchivesSpace.BaseURL != "https://aspace.example.org/api" {
		t.Fatalf("expected trailing slash trimmed, got %q", cfg.ArchivesSpace.BaseURL)
	}
	if cfg.ResourceURI() != "/repositories/2/resources/7" {
		t.Fatalf("unexpected resource uri %q", cfg.ResourceURI())
	}
	if cfg.Import.DuplicateMode != "update" {
		t.Fatalf("expected duplicate mode lowercased, got %q", cfg.Import.DuplicateMode)
	}
	if cfg.Import.BatchSize != 25 {
		t.Fatalf("expected batch size 25, got %d", cfg.Import.BatchSize)
	}
}

func TestEnvFillsMissingCredentials(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	t.Setenv("ASPACE_BASE_URL", "https://env.example.org")
	t.Setenv("ASPACE_USERNAME", "env-user")
	t.Setenv("ASPACE_PASSWORD", "env-pass")
	t.Setenv("ASPACE_RESOURCE_ID", "9")

	configPath := filepath.Join(t.TempDir(), "aspace.toml")
	content := "[archivesspace]\nusername = \"file-user\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ArchivesSpace.Username != "file-user" {
		t.Fatalf("expected config file username to win, got %q", cfg.ArchivesSpace.Username)
	}
	if cfg.ArchivesSpace.Password != "env-pass" {
		t.Fatalf("expected password from env, got %q", cfg.ArchivesSpace.Password)
	}
	if cfg.ArchivesSpace.BaseURL != "https://env.example.org" {
		t.Fatalf("expected base url from env, got %q", cfg.ArchivesSpace.BaseURL)
	}
	if cfg.ArchivesSpace.ResourceID != "9" {
		t.Fatalf("expected resource from env, got %q", cfg.ArchivesSpace.ResourceID)
	}
	if err := cfg.ValidateRepository(); err != nil {
		t.Fatalf("ValidateRepository returned error: %v", err)
	}
}

func TestDotEnvFileSuppliesCredentials(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	envPath := filepath.Join(t.TempDir(), "credentials.env")
	if err := os.WriteFile(envPath, []byte("ASPACE_PASSWORD=dotenv-pass\nASPACE_RESOURCE_ID=11\n"), 0o600); err != nil {
		t.Fatalf("write env file: %v", err)
	}
	configPath := filepath.Join(t.TempDir(), "aspace.toml")
	content := "[archivesspace]\nenv_file = \"" + envPath + "\"\n"
	if err := os.WriteFile(configPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}

	cfg, _, _, err := config.Load(configPath)
	if err != nil {
		t.Fatalf("Load returned error: %v", err)
	}
	if cfg.ArchivesSpace.Password != "dotenv-pass" {
		t.Fatalf("expected password from dotenv, got %q", cfg.ArchivesSpace.Password)
	}
	if cfg.ArchivesSpace.ResourceID != "11" {
		t.Fatalf("expected resource from dotenv, got %q", cfg.ArchivesSpace.ResourceID)
	}
}

func TestValidateRejectsUnknownDuplicateMode(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	configPath := filepath.Join(t.TempDir(), "aspace.toml")
	if err := os.WriteFile(configPath, []byte("[import]\nduplicate_mode = \"merge\"\n"), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	_, _, _, err := config.Load(configPath)
	if err == nil {
		t.Fatal("expected invalid duplicate mode to fail")
	}
	if !strings.Contains(err.Error(), "import.duplicate_mode") {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestValidateRepositoryRequiresCredentials(t *testing.T) {
	cfg := config.Default()
	cfg.ArchivesSpace.RepositoryID = "2"
	if err := cfg.ValidateRepository(); err == nil || !strings.Contains(err.Error(), "base_url") {
		t.Fatalf("expected base_url error, got %v", err)
	}
	cfg.ArchivesSpace.BaseURL = "aspace.example.org"
	if err := cfg.ValidateRepository(); err == nil || !strings.Contains(err.Error(), "http") {
		t.Fatalf("expected scheme error, got %v", err)
	}
	cfg.ArchivesSpace.BaseURL = "https://aspace.example.org"
	cfg.ArchivesSpace.Username = "archivist"
	if err := cfg.ValidateRepository(); err == nil || !strings.Contains(err.Error(), "password") {
		t.Fatalf("expected password error, got %v", err)
	}
	cfg.ArchivesSpace.Password = "secret"
	cfg.ArchivesSpace.ResourceID = "7"
	if err := cfg.ValidateRepository(); err != nil {
		t.Fatalf("expected valid repository settings, got %v", err)
	}
}

func TestSampleConfigLoads(t *testing.T) {
	clearCredentialEnv(t)
	t.Setenv("HOME", t.TempDir())
	target := filepath.Join(t.TempDir(), "config.toml")
	if err := config.CreateSample(target); err != nil {
		t.Fatalf("CreateSample returned error: %v", err)
	}
	cfg, _, exists, err := config.Load(target)
	if err != nil {
		t.Fatalf("Load sample returned error: %v", err)
	}
	if !exists {
		t.Fatal("expected sample to exist")
	}
	if cfg.Import.TopContainerType != "AV Case" {
		t.Fatalf("unexpected container type %q", cfg.Import.TopContainerType)
	}
	if cfg.Stamp.MediaExtension != ".mkv" {
		t.Fatalf("unexpected media extension %q", cfg.Stamp.MediaExtension)
	}
}

func TestRedactedMasksPassword(t *testing.T) {
	cfg := config.Default()
	cfg.ArchivesSpace.Password = "secret"
	redacted := cfg.Redacted()
	if redacted.ArchivesSpace.Password == "secret" {
		t.Fatal("expected password to be masked")
	}
	if cfg.ArchivesSpace.Password != "secret" {
		t.Fatal("expected original config untouched")
	}
}
