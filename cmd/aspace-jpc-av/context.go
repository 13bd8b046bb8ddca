package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/spf13/cobra"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/config"
	"github.com/JPC-AV/aspace-jpc-av/internal/history"
	"github.com/JPC-AV/aspace-jpc-av/internal/logging"
	"github.com/JPC-AV/aspace-jpc-av/internal/report"
	"github.com/JPC-AV/aspace-jpc-av/internal/runlock"
)

type globalFlags struct {
	config       string
	repositoryID string
	resourceID   string
	logLevel     string
}

type commandContext struct {
	flags *globalFlags

	configOnce sync.Once
	config     *config.Config
	configPath string
	configErr  error
}

func newCommandContext(flags *globalFlags) *commandContext {
	return &commandContext{flags: flags}
}

func (c *commandContext) ensureConfig() (*config.Config, error) {
	c.configOnce.Do(func() {
		var path string
		if c.flags != nil {
			path = strings.TrimSpace(c.flags.config)
		}
		cfg, resolved, _, err := config.Load(path)
		if err != nil {
			c.configErr = err
			return
		}
		c.applyOverrides(cfg)
		if err := cfg.EnsureDirectories(); err != nil {
			c.configErr = err
			return
		}
		c.config = cfg
		c.configPath = resolved
	})
	return c.config, c.configErr
}

// applyOverrides lets flags win over the file and the environment.
func (c *commandContext) applyOverrides(cfg *config.Config) {
	if c.flags == nil {
		return
	}
	if v := strings.TrimSpace(c.flags.repositoryID); v != "" {
		cfg.ArchivesSpace.RepositoryID = v
	}
	if v := strings.TrimSpace(c.flags.resourceID); v != "" {
		cfg.ArchivesSpace.ResourceID = v
	}
	if v := strings.TrimSpace(c.flags.logLevel); v != "" {
		cfg.Logging.Level = v
	}
}

func (c *commandContext) configValue() *config.Config {
	cfg, _ := c.ensureConfig()
	return cfg
}

// logger builds the console logger for commands that do not keep a run log.
func (c *commandContext) logger(cmd *cobra.Command) (*slog.Logger, error) {
	return logging.NewFromConfig(c.configValue(), cmd.ErrOrStderr(), "")
}

// runLogger adds a per-run log file and prunes expired ones.
func (c *commandContext) runLogger(cmd *cobra.Command, kind string, started time.Time) (*slog.Logger, string, error) {
	cfg := c.configValue()
	path := logging.RunLogPath(cfg.Paths.LogDir, kind, started)
	logger, err := logging.NewFromConfig(cfg, cmd.ErrOrStderr(), path)
	if err != nil {
		return nil, "", err
	}
	if removed := logging.CleanupOldLogs(logger, cfg.Logging.RetentionDays, started, logging.RetentionTarget{
		Dir:     cfg.Paths.LogDir,
		Pattern: "*.log",
		Keep:    []string{path},
	}); removed > 0 {
		logger.Info("old run logs pruned", logging.Int("removed", removed))
	}
	return logger, path, nil
}

// connect logs in and returns a logout func that ignores cancellation.
func (c *commandContext) connect(ctx context.Context, logger *slog.Logger) (*aspace.Client, func(), error) {
	cfg := c.configValue()
	if err := cfg.ValidateRepository(); err != nil {
		return nil, nil, err
	}
	client := aspace.New(aspace.ConfigFrom(cfg), aspace.WithLogger(logger))
	if err := client.Login(ctx); err != nil {
		return nil, nil, fmt.Errorf("log in to %s: %w", cfg.ArchivesSpace.BaseURL, err)
	}
	logout := func() {
		_ = client.Logout(context.WithoutCancel(ctx))
	}
	return client, logout, nil
}

// lock takes the per-resource write lock. Dry runs never write and skip it.
func (c *commandContext) lock(dryRun bool) (func(), error) {
	if dryRun {
		return func() {}, nil
	}
	path := c.configValue().LockPath()
	lock, err := runlock.Acquire(path)
	if err != nil {
		if errors.Is(err, runlock.ErrLocked) {
			return nil, fmt.Errorf("another writing run holds %s; wait for it to finish or use --dry-run", path)
		}
		return nil, err
	}
	return func() { _ = lock.Release() }, nil
}

// openHistory opens the run ledger. A ledger that cannot be opened is logged
// and the run continues without it.
func (c *commandContext) openHistory(logger *slog.Logger) *history.Store {
	store, err := history.Open(c.configValue().HistoryPath())
	if err != nil {
		logging.WarnWithContext(logger, "history ledger unavailable", "history_open_failed",
			logging.Error(err),
			logging.String(logging.FieldImpact, "this run is not recorded in history"),
			logging.String(logging.FieldErrorHint, "check paths.state_dir permissions"),
		)
		return nil
	}
	return store
}

func (c *commandContext) reportFormats(noReports bool) []report.Format {
	if noReports {
		return nil
	}
	formats, err := report.ParseFormats(c.configValue().Reports.Formats)
	if err != nil {
		return []report.Format{report.FormatCSV}
	}
	return formats
}

func shouldSkipConfig(cmd *cobra.Command) bool {
	for c := cmd; c != nil; c = c.Parent() {
		if c.Annotations != nil && c.Annotations["skipConfigLoad"] == "true" {
			return true
		}
	}
	return false
}

func yesNo(value bool) string {
	if value {
		return "yes"
	}
	return "no"
}
