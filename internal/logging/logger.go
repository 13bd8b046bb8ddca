package logging

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/mattn/go-isatty"

	"github.com/JPC-AV/aspace-jpc-av/internal/config"
)

// Options describes logger construction parameters.
type Options struct {
	Level  string
	Format string
	// Console receives human-facing output; nil disables the console handler.
	Console io.Writer
	// Color forces ANSI level colors on the console; when false, colors are
	// enabled only if Console is a terminal.
	Color bool
	// FilePaths receive the same records, uncolored.
	FilePaths   []string
	Development bool
}

// New constructs a slog logger using the provided options.
func New(opts Options) (*slog.Logger, error) {
	level := parseLevel(opts.Level)
	levelVar := new(slog.LevelVar)
	levelVar.Set(level)

	addSource := opts.Development || level <= slog.LevelDebug

	format := strings.ToLower(strings.TrimSpace(opts.Format))
	if format == "" {
		format = "console"
	}
	if format != "console" && format != "json" {
		return nil, fmt.Errorf("log format: unsupported value %q", opts.Format)
	}

	var handlers []slog.Handler
	if opts.Console != nil {
		if format == "json" {
			handlers = append(handlers, newJSONHandler(opts.Console, levelVar, addSource))
		} else {
			colorize := opts.Color || isTerminal(opts.Console)
			handlers = append(handlers, newPrettyHandler(opts.Console, levelVar, addSource, colorize))
		}
	}

	files, err := openFiles(opts.FilePaths)
	if err != nil {
		return nil, err
	}
	for _, file := range files {
		if format == "json" {
			handlers = append(handlers, newJSONHandler(file, levelVar, addSource))
			continue
		}
		handlers = append(handlers, newPrettyHandler(file, levelVar, addSource, false))
	}

	if len(handlers) == 0 {
		handlers = append(handlers, newPrettyHandler(os.Stderr, levelVar, addSource, isTerminal(os.Stderr)))
	}
	return slog.New(newFanoutHandler(handlers...)), nil
}

// NewFromConfig creates a logger using application config defaults. Console
// output goes to console, or stderr when nil, so command output on stdout
// stays machine-readable. A non-empty runLog adds a per-run log file.
func NewFromConfig(cfg *config.Config, console io.Writer, runLog string) (*slog.Logger, error) {
	if console == nil {
		console = os.Stderr
	}
	if cfg == nil {
		return New(Options{Level: "info", Format: "console", Console: console})
	}
	var files []string
	if strings.TrimSpace(runLog) != "" {
		files = append(files, runLog)
	}
	return New(Options{
		Level:     cfg.Logging.Level,
		Format:    cfg.Logging.Format,
		Console:   console,
		FilePaths: files,
	})
}

// RunLogPath returns the per-run log file for a command, e.g.
// <log_dir>/import_20250102_150405.log.
func RunLogPath(logDir, kind string, started time.Time) string {
	kind = strings.TrimSpace(kind)
	if kind == "" {
		kind = "run"
	}
	return filepath.Join(logDir, fmt.Sprintf("%s_%s.log", kind, started.Format("20060102_150405")))
}

func parseLevel(level string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(level)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

func openFiles(paths []string) ([]io.Writer, error) {
	seen := map[string]struct{}{}
	var writers []io.Writer
	for _, path := range paths {
		trimmed := strings.TrimSpace(path)
		if trimmed == "" {
			continue
		}
		if _, ok := seen[trimmed]; ok {
			continue
		}
		seen[trimmed] = struct{}{}
		if err := ensureLogDir(trimmed); err != nil {
			return nil, err
		}
		file, err := os.OpenFile(trimmed, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o664)
		if err != nil {
			return nil, fmt.Errorf("open log file %s: %w", trimmed, err)
		}
		writers = append(writers, file)
	}
	return writers, nil
}

func ensureLogDir(path string) error {
	dir := filepath.Dir(path)
	if dir == "." || dir == "" {
		return nil
	}
	return os.MkdirAll(dir, 0o755)
}

func isTerminal(w io.Writer) bool {
	file, ok := w.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}

func newJSONHandler(w io.Writer, lvl *slog.LevelVar, addSource bool) slog.Handler {
	opts := slog.HandlerOptions{
		Level:     lvl,
		AddSource: addSource,
		ReplaceAttr: func(groups []string, attr slog.Attr) slog.Attr {
			switch attr.Key {
			case slog.TimeKey:
				attr.Key = "ts"
				if attr.Value.Kind() == slog.KindTime {
					attr.Value = slog.StringValue(attr.Value.Time().UTC().Format(time.RFC3339))
				}
			case slog.LevelKey:
				attr.Value = slog.StringValue(strings.ToLower(attr.Value.String()))
			case slog.SourceKey:
				if src, ok := attr.Value.Any().(*slog.Source); ok && src != nil {
					attr.Value = slog.StringValue(fmt.Sprintf("%s:%d", filepath.Base(src.File), src.Line))
				}
			}
			return attr
		},
	}
	return slog.NewJSONHandler(w, &opts)
}
