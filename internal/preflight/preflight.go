package preflight

import (
	"context"
	"net/url"

	"github.com/JPC-AV/aspace-jpc-av/internal/aspace"
	"github.com/JPC-AV/aspace-jpc-av/internal/config"
)

// Result reports the outcome of a single preflight check.
type Result struct {
	Name     string
	Passed   bool
	Optional bool
	Detail   string
}

// Repository is the subset of the repository client the checks use.
type Repository interface {
	Login(ctx context.Context) error
	GetJSON(ctx context.Context, path string, query url.Values, target any) error
	ResourceURI() string
	LookupEnumeration(ctx context.Context, name string) (aspace.Enumeration, error)
}

// RunAll executes every check. repo may be nil to skip the network checks.
func RunAll(ctx context.Context, cfg *config.Config, repo Repository) []Result {
	if cfg == nil {
		return nil
	}

	var results []Result
	results = append(results,
		CheckDirectoryAccess("Report directory", cfg.Paths.ReportDir),
		CheckDirectoryAccess("Stamp report directory", cfg.Paths.StampReportDir),
		CheckDirectoryAccess("Log directory", cfg.Paths.LogDir),
		CheckDirectoryAccess("State directory", cfg.Paths.StateDir),
	)
	results = append(results, CheckMediaTools(cfg)...)
	results = append(results, CheckHistory(ctx, cfg.HistoryPath()), CheckLock(cfg.LockPath()))

	if repo != nil {
		login := CheckRepository(ctx, repo)
		results = append(results, login)
		if login.Passed && cfg.Import.ValidateExtentTypes {
			results = append(results, CheckEnumeration(ctx, repo, cfg.Import.ExtentTypeEnumeration))
		}
	}
	return results
}

// Failed reports whether any required check failed.
func Failed(results []Result) bool {
	for _, r := range results {
		if !r.Passed && !r.Optional {
			return true
		}
	}
	return false
}
