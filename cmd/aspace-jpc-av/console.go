package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"sync"

	"github.com/mattn/go-isatty"

	"github.com/JPC-AV/aspace-jpc-av/internal/importer"
)

const (
	ansiReset  = "\x1b[0m"
	ansiRed    = "\x1b[31m"
	ansiGreen  = "\x1b[32m"
	ansiYellow = "\x1b[33m"
	ansiCyan   = "\x1b[36m"
	ansiDim    = "\x1b[2m"
)

// consoleObserver prints one line per processed row.
type consoleObserver struct {
	mu    sync.Mutex
	out   io.Writer
	color bool
}

func newConsoleObserver(out io.Writer) *consoleObserver {
	return &consoleObserver{out: out, color: isTerminal(out)}
}

func (c *consoleObserver) RowCompleted(_ context.Context, result importer.Result) {
	c.mu.Lock()
	defer c.mu.Unlock()
	status := fmt.Sprintf("%-9s", result.Status)
	if c.color {
		status = statusColor(string(result.Status)) + status + ansiReset
	}
	fmt.Fprintf(c.out, "%5d  %-16s %s %s\n", result.RowNumber, result.CatalogNumber, status, result.Message)
}

func (c *consoleObserver) RunCompleted(context.Context, importer.Summary) {}

func statusColor(status string) string {
	switch status {
	case "created", "stamped", "ok":
		return ansiGreen
	case "updated":
		return ansiCyan
	case "skipped", "warn":
		return ansiYellow
	case "error", "fail":
		return ansiRed
	default:
		return ansiDim
	}
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
