package aspace

import "github.com/JPC-AV/aspace-jpc-av/internal/config"

// ConfigFrom derives client settings from the application configuration.
func ConfigFrom(cfg *config.Config) Config {
	if cfg == nil {
		return Config{}
	}
	as := cfg.ArchivesSpace
	return Config{
		BaseURL:          as.BaseURL,
		Username:         as.Username,
		Password:         as.Password,
		RepositoryID:     as.RepositoryID,
		ResourceID:       as.ResourceID,
		Timeout:          cfg.RequestTimeout(),
		RetryAttempts:    as.RetryAttempts,
		RetryDelay:       cfg.RetryDelay(),
		TopContainerType: cfg.Import.TopContainerType,
		FallbackEnumerations: map[string][]string{
			cfg.Import.ExtentTypeEnumeration: append([]string(nil), cfg.Import.FallbackExtentTypes...),
		},
	}
}
