package preflight

import (
	"context"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"golang.org/x/sys/unix"

	"github.com/JPC-AV/aspace-jpc-av/internal/config"
	"github.com/JPC-AV/aspace-jpc-av/internal/deps"
	"github.com/JPC-AV/aspace-jpc-av/internal/history"
	"github.com/JPC-AV/aspace-jpc-av/internal/runlock"
	"github.com/JPC-AV/aspace-jpc-av/internal/services"
)

// CheckDirectoryAccess verifies that the directory exists and is readable/writable.
func CheckDirectoryAccess(name, path string) Result {
	if strings.TrimSpace(path) == "" {
		return Result{Name: name, Detail: "not configured"}
	}
	info, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return Result{Name: name, Detail: fmt.Sprintf("%s (error: does not exist)", path)}
		}
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: stat: %v)", path, err)}
	}
	if !info.IsDir() {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: is not a directory)", path)}
	}
	if err := unix.Access(path, unix.R_OK|unix.W_OK|unix.X_OK); err != nil {
		return Result{Name: name, Detail: fmt.Sprintf("%s (error: insufficient permissions: %v)", path, err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("%s (read/write ok)", path)}
}

// CheckMediaTools reports the duration tools used by stamping. The configured
// tool is required; the other one is only a fallback.
func CheckMediaTools(cfg *config.Config) []Result {
	preferMediainfo := cfg.Stamp.DurationTool == "mediainfo"
	statuses := deps.CheckBinaries([]deps.Requirement{
		{
			Name:        "FFprobe",
			Command:     cfg.Stamp.FFprobeBinary,
			Description: "Reads media durations for stamping",
			Optional:    preferMediainfo,
		},
		{
			Name:        "MediaInfo",
			Command:     cfg.Stamp.MediainfoBinary,
			Description: "Reads media durations for stamping",
			Optional:    !preferMediainfo,
		},
	})
	results := make([]Result, 0, len(statuses))
	for _, status := range statuses {
		detail := status.Path
		if !status.Available {
			detail = status.Detail
			if status.Optional {
				detail += " (fallback only)"
			}
		}
		results = append(results, Result{
			Name:     status.Name,
			Passed:   status.Available,
			Optional: status.Optional,
			Detail:   detail,
		})
	}
	return results
}

// CheckHistory opens the run ledger, creating it when missing.
func CheckHistory(_ context.Context, path string) Result {
	const name = "History ledger"
	store, err := history.Open(path)
	if err != nil {
		return Result{Name: name, Detail: err.Error()}
	}
	_ = store.Close()
	return Result{Name: name, Passed: true, Detail: path}
}

// CheckLock reports whether another writing run holds the resource lock.
func CheckLock(path string) Result {
	const name = "Run lock"
	held, err := runlock.Held(path)
	switch {
	case err != nil:
		return Result{Name: name, Optional: true, Detail: fmt.Sprintf("cannot probe %s: %v", path, err)}
	case held:
		return Result{Name: name, Optional: true, Detail: "held by another run (" + path + ")"}
	default:
		return Result{Name: name, Passed: true, Detail: "free"}
	}
}

// CheckRepository logs in and reads the configured resource.
func CheckRepository(ctx context.Context, repo Repository) Result {
	const name = "ArchivesSpace"

	checkCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
	defer cancel()

	if err := repo.Login(checkCtx); err != nil {
		return Result{Name: name, Detail: summarizeRepositoryError("login failed", err)}
	}
	var resource struct {
		Title string `json:"title"`
	}
	if err := repo.GetJSON(checkCtx, repo.ResourceURI(), nil, &resource); err != nil {
		return Result{Name: name, Detail: summarizeRepositoryError("resource "+repo.ResourceURI()+" unavailable", err)}
	}
	return Result{Name: name, Passed: true, Detail: fmt.Sprintf("logged in; resource %q", resource.Title)}
}

// CheckEnumeration confirms the extent vocabulary can be read live. A failure
// is optional because imports fall back to the configured list.
func CheckEnumeration(ctx context.Context, repo Repository, name string) Result {
	label := "Extent vocabulary"
	enum, err := repo.LookupEnumeration(ctx, name)
	if err != nil {
		return Result{Name: label, Optional: true, Detail: summarizeRepositoryError(name+" unavailable, fallback list in use", err)}
	}
	return Result{Name: label, Passed: true, Detail: fmt.Sprintf("%s: %d terms", name, len(enum.Terms()))}
}

func summarizeRepositoryError(prefix string, err error) string {
	if errors.Is(err, context.DeadlineExceeded) {
		return prefix + " (timed out)"
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return prefix + " (unreachable)"
	}
	if kind := services.Kind(err); kind != "" && kind != "error" {
		return fmt.Sprintf("%s (%s): %v", prefix, kind, err)
	}
	return fmt.Sprintf("%s: %v", prefix, err)
}
