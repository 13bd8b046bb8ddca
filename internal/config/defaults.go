package config

const (
	defaultConfigPath            = "~/.config/aspace-jpc-av/config.toml"
	projectConfigName            = "aspace-jpc-av.toml"
	defaultEnvFile               = "~/.config/aspace-jpc-av/credentials.env"
	defaultRepositoryID          = "2"
	defaultTimeoutSeconds        = 30
	defaultRetryAttempts         = 3
	defaultRetryDelaySeconds     = 2
	defaultDuplicateMode         = "skip"
	defaultBatchSize             = 10
	defaultBatchPauseMillis      = 1000
	defaultProgressInterval      = 10
	defaultExtentTypeEnumeration = "extent_extent_type"
	defaultTopContainerType      = "AV Case"
	defaultInstanceType          = "Moving Images (Video)"
	defaultLevel                 = "item"
	defaultCSVEncoding           = "utf-8"
	defaultDirectoryMatch        = "JPC_AV"
	defaultMediaExtension        = ".mkv"
	defaultDurationTool          = "ffprobe"
	defaultFFprobeBinary         = "ffprobe"
	defaultMediainfoBinary       = "mediainfo"
	defaultReportDir             = "~/aspace_import_reports"
	defaultStampReportDir        = "~/aspace_rename_reports"
	defaultLogDir                = "~/.local/share/aspace-jpc-av/logs"
	defaultStateDir              = "~/.local/share/aspace-jpc-av"
	defaultLogFormat             = "console"
	defaultLogLevel              = "info"
	defaultLogRetentionDays      = 90
)

// DefaultExtentTypes is the extent vocabulary used when the live enumeration
// cannot be fetched.
func DefaultExtentTypes() []string {
	return []string{
		"1 inch videotape",
		"2 inch videotape",
		"3/4 inch videotape",
		"1/2 inch videotape",
		"Betacam",
		"Betamax",
		"VHS",
		"U-matic",
		"MiniDV",
		"videocassettes",
		"videoreels",
		"videotapes",
	}
}

// Default returns a Config populated with repository defaults.
func Default() Config {
	return Config{
		ArchivesSpace: ArchivesSpace{
			EnvFile:           defaultEnvFile,
			TimeoutSeconds:    defaultTimeoutSeconds,
			RetryAttempts:     defaultRetryAttempts,
			RetryDelaySeconds: defaultRetryDelaySeconds,
		},
		Import: Import{
			DuplicateMode:         defaultDuplicateMode,
			BatchSize:             defaultBatchSize,
			BatchPauseMillis:      defaultBatchPauseMillis,
			ProgressInterval:      defaultProgressInterval,
			ValidateExtentTypes:   true,
			ExtentTypeEnumeration: defaultExtentTypeEnumeration,
			FallbackExtentTypes:   DefaultExtentTypes(),
			TopContainerType:      defaultTopContainerType,
			InstanceType:          defaultInstanceType,
			Level:                 defaultLevel,
			Publish:               true,
			CSVEncoding:           defaultCSVEncoding,
		},
		Stamp: Stamp{
			DirectoryMatch:  defaultDirectoryMatch,
			MediaExtension:  defaultMediaExtension,
			DurationTool:    defaultDurationTool,
			FFprobeBinary:   defaultFFprobeBinary,
			MediainfoBinary: defaultMediainfoBinary,
		},
		Paths: Paths{
			ReportDir:      defaultReportDir,
			StampReportDir: defaultStampReportDir,
			LogDir:         defaultLogDir,
			StateDir:       defaultStateDir,
		},
		Reports: Reports{
			Formats: []string{"csv", "json"},
		},
		Logging: Logging{
			Format:        defaultLogFormat,
			Level:         defaultLogLevel,
			RetentionDays: defaultLogRetentionDays,
		},
	}
}
