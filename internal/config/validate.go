package config

import (
	"errors"
	"fmt"
	"strings"
)

// Validate ensures the configuration is usable for offline commands.
// Commands that talk to the repository also call ValidateRepository.
func (c *Config) Validate() error {
	if err := c.validateImport(); err != nil {
		return err
	}
	if err := c.validateStamp(); err != nil {
		return err
	}
	if err := c.validateReports(); err != nil {
		return err
	}
	if err := ensurePositiveMap(map[string]int{
		"archivesspace.timeout_seconds": c.ArchivesSpace.TimeoutSeconds,
		"import.batch_size":             c.Import.BatchSize,
		"import.progress_interval":      c.Import.ProgressInterval,
	}); err != nil {
		return err
	}
	return nil
}

// ValidateRepository ensures connection settings are present.
func (c *Config) ValidateRepository() error {
	defaultPath, err := DefaultConfigPath()
	if err != nil {
		defaultPath = defaultConfigPath
	}
	if c.ArchivesSpace.BaseURL == "" {
		return fmt.Errorf("archivesspace.base_url is required. Set ASPACE_BASE_URL or edit %s (create with 'aspace-jpc-av config init')", defaultPath)
	}
	if !strings.HasPrefix(c.ArchivesSpace.BaseURL, "http://") && !strings.HasPrefix(c.ArchivesSpace.BaseURL, "https://") {
		return fmt.Errorf("archivesspace.base_url must start with http:// or https:// (got %q)", c.ArchivesSpace.BaseURL)
	}
	if c.ArchivesSpace.Username == "" {
		return errors.New("archivesspace.username is required (or set ASPACE_USERNAME)")
	}
	if c.ArchivesSpace.Password == "" {
		return errors.New("archivesspace.password is required (or set ASPACE_PASSWORD)")
	}
	if c.ArchivesSpace.RepositoryID == "" {
		return errors.New("archivesspace.repository_id must be set")
	}
	if c.ArchivesSpace.ResourceID == "" {
		return errors.New("archivesspace.resource_id is required (or set ASPACE_RESOURCE_ID)")
	}
	return nil
}

func (c *Config) validateImport() error {
	switch c.Import.DuplicateMode {
	case "skip", "update", "fail":
	default:
		return fmt.Errorf("import.duplicate_mode must be one of skip, update, fail (got %q)", c.Import.DuplicateMode)
	}
	switch c.Import.CSVEncoding {
	case "utf-8", "utf8", "windows-1252", "cp1252", "latin1", "iso-8859-1":
	default:
		return fmt.Errorf("import.csv_encoding: unsupported value %q", c.Import.CSVEncoding)
	}
	return nil
}

func (c *Config) validateStamp() error {
	switch c.Stamp.DurationTool {
	case "ffprobe", "mediainfo":
	default:
		return fmt.Errorf("stamp.duration_tool must be ffprobe or mediainfo (got %q)", c.Stamp.DurationTool)
	}
	return nil
}

func (c *Config) validateReports() error {
	for _, format := range c.Reports.Formats {
		switch format {
		case "csv", "json", "xlsx":
		default:
			return fmt.Errorf("reports.formats: unsupported format %q", format)
		}
	}
	return nil
}

func ensurePositiveMap(values map[string]int) error {
	for key, value := range values {
		if value <= 0 {
			return fmt.Errorf("%s must be positive", key)
		}
	}
	return nil
}
