// Package logging assembles structured slog loggers and formatting helpers used
// across aspace-jpc-av.
//
// It owns the console (optionally colored) and JSON handlers, fans records out
// to per-run log files, and exposes context-aware helpers so row processing
// can tag log lines with run IDs, row numbers, and catalog numbers. The package
// also provides a no-op logger for tests and wiring code that cannot fail.
package logging
