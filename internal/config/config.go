package config

import (
	_ "embed"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/pelletier/go-toml/v2"
)

//go:embed sample_config.toml
var sampleConfig string

// ArchivesSpace contains connection settings for the repository API.
type ArchivesSpace struct {
	BaseURL           string `toml:"base_url"`
	Username          string `toml:"username"`
	Password          string `toml:"password"`
	RepositoryID      string `toml:"repository_id"`
	ResourceID        string `toml:"resource_id"`
	EnvFile           string `toml:"env_file"`
	TimeoutSeconds    int    `toml:"timeout_seconds"`
	RetryAttempts     int    `toml:"retry_attempts"`
	RetryDelaySeconds int    `toml:"retry_delay_seconds"`
}

// Import contains settings for CSV synchronization runs.
type Import struct {
	DuplicateMode         string   `toml:"duplicate_mode"`
	BatchSize             int      `toml:"batch_size"`
	BatchPauseMillis      int      `toml:"batch_pause_ms"`
	ProgressInterval      int      `toml:"progress_interval"`
	ValidateExtentTypes   bool     `toml:"validate_extent_types"`
	ExtentTypeEnumeration string   `toml:"extent_type_enumeration"`
	FallbackExtentTypes   []string `toml:"fallback_extent_types"`
	TopContainerType      string   `toml:"top_container_type"`
	InstanceType          string   `toml:"instance_type"`
	Level                 string   `toml:"level"`
	Publish               bool     `toml:"publish"`
	CSVEncoding           string   `toml:"csv_encoding"`
}

// Stamp contains settings for directory stamping.
type Stamp struct {
	DirectoryMatch  string `toml:"directory_match"`
	MediaExtension  string `toml:"media_extension"`
	DurationTool    string `toml:"duration_tool"`
	FFprobeBinary   string `toml:"ffprobe_binary"`
	MediainfoBinary string `toml:"mediainfo_binary"`
	RenameMedia     bool   `toml:"rename_media"`
}

// Paths contains directory configuration.
type Paths struct {
	ReportDir      string `toml:"report_dir"`
	StampReportDir string `toml:"stamp_report_dir"`
	LogDir         string `toml:"log_dir"`
	StateDir       string `toml:"state_dir"`
}

// Reports controls which report artifacts a run writes.
type Reports struct {
	Formats         []string `toml:"formats"`
	MetricsTextfile string   `toml:"metrics_textfile"`
}

// Logging contains configuration for log output.
type Logging struct {
	Format        string `toml:"format"`
	Level         string `toml:"level"`
	RetentionDays int    `toml:"retention_days"`
}

// Config encapsulates all configuration values for aspace-jpc-av.
//
// Configuration sections by subsystem:
//   - ArchivesSpace: API endpoint, credentials, repository/resource scope, retry policy
//   - Import: duplicate handling, pacing, and record construction defaults
//   - Stamp: directory stamping and media duration probing
//   - Paths: report, log, and state directories
//   - Reports: report formats and metrics textfile
//   - Logging: log format, level, and retention
type Config struct {
	ArchivesSpace ArchivesSpace `toml:"archivesspace"`
	Import        Import        `toml:"import"`
	Stamp         Stamp         `toml:"stamp"`
	Paths         Paths         `toml:"paths"`
	Reports       Reports       `toml:"reports"`
	Logging       Logging       `toml:"logging"`
}

// DefaultConfigPath returns the absolute path to the default configuration file location.
func DefaultConfigPath() (string, error) {
	return expandPath(defaultConfigPath)
}

// Load locates, parses, and validates a configuration file. The returned config has all
// path fields expanded and normalized.
func Load(path string) (*Config, string, bool, error) {
	cfg := Default()

	resolvedPath, exists, err := resolveConfigPath(path)
	if err != nil {
		return nil, "", false, err
	}

	if exists {
		file, err := os.Open(resolvedPath)
		if err != nil {
			return nil, "", false, fmt.Errorf("open config: %w", err)
		}
		defer file.Close()

		decoder := toml.NewDecoder(file)
		if err := decoder.Decode(&cfg); err != nil {
			return nil, "", false, fmt.Errorf("parse config: %w", err)
		}
	}

	if err := cfg.normalize(); err != nil {
		return nil, "", false, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, "", false, err
	}

	return &cfg, resolvedPath, exists, nil
}

func resolveConfigPath(path string) (string, bool, error) {
	if path != "" {
		expanded, err := expandPath(path)
		if err != nil {
			return "", false, err
		}
		_, err = os.Stat(expanded)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return expanded, false, nil
			}
			return "", false, fmt.Errorf("stat config: %w", err)
		}
		return expanded, true, nil
	}

	defaultPath, err := expandPath(defaultConfigPath)
	if err != nil {
		return "", false, err
	}

	projectPath, err := filepath.Abs(projectConfigName)
	if err != nil {
		return "", false, err
	}

	if info, err := os.Stat(defaultPath); err == nil && !info.IsDir() {
		return defaultPath, true, nil
	}
	if info, err := os.Stat(projectPath); err == nil && !info.IsDir() {
		return projectPath, true, nil
	}

	return defaultPath, false, nil
}

// EnsureDirectories creates the report, log, and state directories.
func (c *Config) EnsureDirectories() error {
	for _, dir := range []string{c.Paths.ReportDir, c.Paths.StampReportDir, c.Paths.LogDir, c.Paths.StateDir} {
		if strings.TrimSpace(dir) == "" {
			continue
		}
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create directory %q: %w", dir, err)
		}
	}
	return nil
}

// RequestTimeout returns the HTTP timeout applied to repository calls.
func (c *Config) RequestTimeout() time.Duration {
	return time.Duration(c.ArchivesSpace.TimeoutSeconds) * time.Second
}

// RetryDelay returns the fixed delay between repository request attempts.
func (c *Config) RetryDelay() time.Duration {
	return time.Duration(c.ArchivesSpace.RetryDelaySeconds) * time.Second
}

// BatchPause returns the pacing delay inserted after each batch of rows.
func (c *Config) BatchPause() time.Duration {
	return time.Duration(c.Import.BatchPauseMillis) * time.Millisecond
}

// RepositoryURI returns the repository reference, e.g. /repositories/2.
func (c *Config) RepositoryURI() string {
	return "/repositories/" + c.ArchivesSpace.RepositoryID
}

// ResourceURI returns the resource reference records are attached to.
func (c *Config) ResourceURI() string {
	return c.RepositoryURI() + "/resources/" + c.ArchivesSpace.ResourceID
}

// HistoryPath returns the SQLite ledger location.
func (c *Config) HistoryPath() string {
	return filepath.Join(c.Paths.StateDir, "history.db")
}

// LockPath returns the advisory lock file guarding writes to the configured resource.
func (c *Config) LockPath() string {
	name := fmt.Sprintf("repo-%s-resource-%s.lock", c.ArchivesSpace.RepositoryID, c.ArchivesSpace.ResourceID)
	return filepath.Join(c.Paths.StateDir, name)
}

func expandPath(pathValue string) (string, error) {
	if pathValue == "" {
		return pathValue, nil
	}
	if strings.HasPrefix(pathValue, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("resolve home directory: %w", err)
		}
		if pathValue == "~" {
			pathValue = home
		} else if len(pathValue) > 1 && (pathValue[1] == '/' || pathValue[1] == '\\') {
			pathValue = filepath.Join(home, pathValue[2:])
		}
	}
	cleaned := filepath.Clean(pathValue)
	absolute, err := filepath.Abs(cleaned)
	if err != nil {
		return "", fmt.Errorf("resolve absolute path for %q: %w", cleaned, err)
	}
	return absolute, nil
}

// ExpandPath exposes the repository path expansion rules for other packages.
func ExpandPath(pathValue string) (string, error) {
	return expandPath(pathValue)
}

// CreateSample writes a sample configuration file to the specified location.
func CreateSample(path string) error {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("create config directory: %w", err)
		}
	}

	if err := os.WriteFile(path, []byte(sampleConfig), 0o600); err != nil {
		return fmt.Errorf("write sample config: %w", err)
	}
	return nil
}

// Redacted returns a copy safe for display, with the password masked.
func (c Config) Redacted() Config {
	if c.ArchivesSpace.Password != "" {
		c.ArchivesSpace.Password = "********"
	}
	c.Import.FallbackExtentTypes = append([]string(nil), c.Import.FallbackExtentTypes...)
	c.Reports.Formats = append([]string(nil), c.Reports.Formats...)
	return c
}
