package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strings"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// credentialEnv mirrors the environment variables recognised for repository access.
type credentialEnv struct {
	BaseURL      string `env:"ASPACE_BASE_URL"`
	Username     string `env:"ASPACE_USERNAME"`
	Password     string `env:"ASPACE_PASSWORD"`
	RepositoryID string `env:"ASPACE_REPOSITORY_ID"`
	ResourceID   string `env:"ASPACE_RESOURCE_ID"`
}

// loadEnvFiles loads the dotenv files that exist. Variables already present in
// the process environment are never overwritten.
func loadEnvFiles(paths ...string) (int, error) {
	existing := make([]string, 0, len(paths))
	for _, path := range paths {
		path = strings.TrimSpace(path)
		if path == "" {
			continue
		}
		info, err := os.Stat(path)
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				continue
			}
			return 0, fmt.Errorf("stat env file %s: %w", path, err)
		}
		if info.IsDir() {
			continue
		}
		existing = append(existing, path)
	}
	if len(existing) == 0 {
		return 0, nil
	}
	return len(existing), godotenv.Load(existing...)
}

// applyCredentialEnv fills repository settings left empty by the config file
// from dotenv files and the process environment.
func (c *Config) applyCredentialEnv() error {
	if _, err := loadEnvFiles(".env", c.ArchivesSpace.EnvFile); err != nil {
		return fmt.Errorf("archivesspace.env_file: %w", err)
	}
	var creds credentialEnv
	if err := env.Parse(&creds); err != nil {
		return fmt.Errorf("parse credential environment: %w", err)
	}
	fill := func(target *string, value string) {
		if strings.TrimSpace(*target) == "" {
			*target = strings.TrimSpace(value)
		}
	}
	fill(&c.ArchivesSpace.BaseURL, creds.BaseURL)
	fill(&c.ArchivesSpace.Username, creds.Username)
	fill(&c.ArchivesSpace.Password, creds.Password)
	fill(&c.ArchivesSpace.RepositoryID, creds.RepositoryID)
	fill(&c.ArchivesSpace.ResourceID, creds.ResourceID)
	return nil
}
