package testsupport

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/JPC-AV/aspace-jpc-av/internal/config"
)

// ConfigOption allows callers to customize the generated test configuration.
type ConfigOption func(*configBuilder)

type configBuilder struct {
	t       testing.TB
	baseDir string
	cfg     *config.Config
}

// NewConfig produces a config seeded with unique temp directories per test.
// It defaults common fields and applies any provided options.
func NewConfig(t testing.TB, opts ...ConfigOption) *config.Config {
	t.Helper()

	base := t.TempDir()
	cfgVal := config.Default()
	cfgVal.ArchivesSpace.BaseURL = "http://127.0.0.1:0"
	cfgVal.ArchivesSpace.Username = FakeUsername
	cfgVal.ArchivesSpace.Password = FakePassword
	cfgVal.ArchivesSpace.RepositoryID = FakeRepositoryID
	cfgVal.ArchivesSpace.ResourceID = FakeResourceID
	cfgVal.ArchivesSpace.EnvFile = ""
	cfgVal.ArchivesSpace.RetryDelaySeconds = 0
	cfgVal.Import.BatchPauseMillis = 0
	cfgVal.Paths.ReportDir = filepath.Join(base, "reports")
	cfgVal.Paths.StampReportDir = filepath.Join(base, "stamp_reports")
	cfgVal.Paths.LogDir = filepath.Join(base, "logs")
	cfgVal.Paths.StateDir = filepath.Join(base, "state")

	builder := &configBuilder{
		t:       t,
		baseDir: base,
		cfg:     &cfgVal,
	}

	for _, opt := range opts {
		opt(builder)
	}

	return builder.cfg
}

// WithBaseURL points the config at a test server.
func WithBaseURL(url string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.ArchivesSpace.BaseURL = url
	}
}

// WithDuplicateMode overrides the duplicate handling mode.
func WithDuplicateMode(mode string) ConfigOption {
	return func(b *configBuilder) {
		b.cfg.Import.DuplicateMode = mode
	}
}

// WithStubbedBinaries writes stub executables for the provided names and
// prepends them to PATH. If names is empty, ffprobe and mediainfo are stubbed.
func WithStubbedBinaries(names ...string) ConfigOption {
	return func(b *configBuilder) {
		if len(names) == 0 {
			names = []string{"ffprobe", "mediainfo"}
		}
		binDir := filepath.Join(b.baseDir, "bin")
		if err := os.MkdirAll(binDir, 0o755); err != nil {
			b.t.Fatalf("mkdir bin dir: %v", err)
		}
		script := []byte("#!/bin/sh\nexit 0\n")
		for _, name := range names {
			target := filepath.Join(binDir, name)
			if err := os.WriteFile(target, script, 0o755); err != nil {
				b.t.Fatalf("write stub %s: %v", name, err)
			}
		}

		oldPath := os.Getenv("PATH")
		if err := os.Setenv("PATH", binDir+string(os.PathListSeparator)+oldPath); err != nil {
			b.t.Fatalf("set PATH: %v", err)
		}
		b.t.Cleanup(func() {
			_ = os.Setenv("PATH", oldPath)
		})
	}
}

// BaseDir returns the root temp directory backing the generated config.
func BaseDir(cfg *config.Config) string {
	return filepath.Dir(cfg.Paths.StateDir)
}
