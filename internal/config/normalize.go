package config

import (
	"fmt"
	"strings"
)

func (c *Config) normalize() error {
	if err := c.normalizeArchivesSpace(); err != nil {
		return err
	}
	c.normalizeImport()
	c.normalizeStamp()
	if err := c.normalizePaths(); err != nil {
		return err
	}
	c.normalizeReports()
	c.normalizeLogging()
	return nil
}

func (c *Config) normalizeArchivesSpace() error {
	var err error
	if strings.TrimSpace(c.ArchivesSpace.EnvFile) != "" {
		if c.ArchivesSpace.EnvFile, err = expandPath(strings.TrimSpace(c.ArchivesSpace.EnvFile)); err != nil {
			return fmt.Errorf("archivesspace.env_file: %w", err)
		}
	}
	if err := c.applyCredentialEnv(); err != nil {
		return err
	}
	c.ArchivesSpace.BaseURL = strings.TrimRight(strings.TrimSpace(c.ArchivesSpace.BaseURL), "/")
	c.ArchivesSpace.Username = strings.TrimSpace(c.ArchivesSpace.Username)
	c.ArchivesSpace.RepositoryID = strings.Trim(strings.TrimSpace(c.ArchivesSpace.RepositoryID), "/")
	if c.ArchivesSpace.RepositoryID == "" {
		c.ArchivesSpace.RepositoryID = defaultRepositoryID
	}
	c.ArchivesSpace.ResourceID = strings.Trim(strings.TrimSpace(c.ArchivesSpace.ResourceID), "/")
	if c.ArchivesSpace.TimeoutSeconds <= 0 {
		c.ArchivesSpace.TimeoutSeconds = defaultTimeoutSeconds
	}
	if c.ArchivesSpace.RetryAttempts < 0 {
		c.ArchivesSpace.RetryAttempts = 0
	}
	if c.ArchivesSpace.RetryDelaySeconds < 0 {
		c.ArchivesSpace.RetryDelaySeconds = 0
	}
	return nil
}

func (c *Config) normalizeImport() {
	c.Import.DuplicateMode = strings.ToLower(strings.TrimSpace(c.Import.DuplicateMode))
	if c.Import.DuplicateMode == "" {
		c.Import.DuplicateMode = defaultDuplicateMode
	}
	if c.Import.BatchSize <= 0 {
		c.Import.BatchSize = defaultBatchSize
	}
	if c.Import.BatchPauseMillis < 0 {
		c.Import.BatchPauseMillis = 0
	}
	if c.Import.ProgressInterval <= 0 {
		c.Import.ProgressInterval = defaultProgressInterval
	}
	c.Import.ExtentTypeEnumeration = strings.TrimSpace(c.Import.ExtentTypeEnumeration)
	if c.Import.ExtentTypeEnumeration == "" {
		c.Import.ExtentTypeEnumeration = defaultExtentTypeEnumeration
	}
	c.Import.FallbackExtentTypes = dedupeTrimmed(c.Import.FallbackExtentTypes)
	if len(c.Import.FallbackExtentTypes) == 0 {
		c.Import.FallbackExtentTypes = DefaultExtentTypes()
	}
	c.Import.TopContainerType = strings.TrimSpace(c.Import.TopContainerType)
	if c.Import.TopContainerType == "" {
		c.Import.TopContainerType = defaultTopContainerType
	}
	c.Import.InstanceType = strings.TrimSpace(c.Import.InstanceType)
	if c.Import.InstanceType == "" {
		c.Import.InstanceType = defaultInstanceType
	}
	c.Import.Level = strings.TrimSpace(c.Import.Level)
	if c.Import.Level == "" {
		c.Import.Level = defaultLevel
	}
	c.Import.CSVEncoding = strings.ToLower(strings.TrimSpace(c.Import.CSVEncoding))
	if c.Import.CSVEncoding == "" {
		c.Import.CSVEncoding = defaultCSVEncoding
	}
}

func (c *Config) normalizeStamp() {
	c.Stamp.DirectoryMatch = strings.TrimSpace(c.Stamp.DirectoryMatch)
	if c.Stamp.DirectoryMatch == "" {
		c.Stamp.DirectoryMatch = defaultDirectoryMatch
	}
	c.Stamp.MediaExtension = strings.ToLower(strings.TrimSpace(c.Stamp.MediaExtension))
	if c.Stamp.MediaExtension == "" {
		c.Stamp.MediaExtension = defaultMediaExtension
	}
	if !strings.HasPrefix(c.Stamp.MediaExtension, ".") {
		c.Stamp.MediaExtension = "." + c.Stamp.MediaExtension
	}
	c.Stamp.DurationTool = strings.ToLower(strings.TrimSpace(c.Stamp.DurationTool))
	if c.Stamp.DurationTool == "" {
		c.Stamp.DurationTool = defaultDurationTool
	}
	c.Stamp.FFprobeBinary = strings.TrimSpace(c.Stamp.FFprobeBinary)
	if c.Stamp.FFprobeBinary == "" {
		c.Stamp.FFprobeBinary = defaultFFprobeBinary
	}
	c.Stamp.MediainfoBinary = strings.TrimSpace(c.Stamp.MediainfoBinary)
	if c.Stamp.MediainfoBinary == "" {
		c.Stamp.MediainfoBinary = defaultMediainfoBinary
	}
}

func (c *Config) normalizePaths() error {
	var err error
	if strings.TrimSpace(c.Paths.ReportDir) == "" {
		c.Paths.ReportDir = defaultReportDir
	}
	if c.Paths.ReportDir, err = expandPath(c.Paths.ReportDir); err != nil {
		return fmt.Errorf("paths.report_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StampReportDir) == "" {
		c.Paths.StampReportDir = defaultStampReportDir
	}
	if c.Paths.StampReportDir, err = expandPath(c.Paths.StampReportDir); err != nil {
		return fmt.Errorf("paths.stamp_report_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.LogDir) == "" {
		c.Paths.LogDir = defaultLogDir
	}
	if c.Paths.LogDir, err = expandPath(c.Paths.LogDir); err != nil {
		return fmt.Errorf("paths.log_dir: %w", err)
	}
	if strings.TrimSpace(c.Paths.StateDir) == "" {
		c.Paths.StateDir = defaultStateDir
	}
	if c.Paths.StateDir, err = expandPath(c.Paths.StateDir); err != nil {
		return fmt.Errorf("paths.state_dir: %w", err)
	}
	return nil
}

func (c *Config) normalizeReports() {
	formats := make([]string, 0, len(c.Reports.Formats))
	for _, format := range dedupeTrimmed(c.Reports.Formats) {
		formats = append(formats, strings.ToLower(format))
	}
	c.Reports.Formats = formats
	if path := strings.TrimSpace(c.Reports.MetricsTextfile); path != "" {
		if expanded, err := expandPath(path); err == nil {
			c.Reports.MetricsTextfile = expanded
		}
	}
}

func (c *Config) normalizeLogging() {
	c.Logging.Format = strings.ToLower(strings.TrimSpace(c.Logging.Format))
	switch c.Logging.Format {
	case "", "console":
		c.Logging.Format = "console"
	case "json":
	default:
		c.Logging.Format = "console"
	}
	c.Logging.Level = strings.ToLower(strings.TrimSpace(c.Logging.Level))
	if c.Logging.Level == "" {
		c.Logging.Level = defaultLogLevel
	}
	if c.Logging.RetentionDays < 0 {
		c.Logging.RetentionDays = 0
	}
}

func dedupeTrimmed(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]struct{}, len(values))
	for _, value := range values {
		trimmed := strings.TrimSpace(value)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		out = append(out, trimmed)
	}
	return out
}
