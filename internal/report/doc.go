// Package report writes import and stamping reports as CSV, JSON, and XLSX
// files, and import counters as a Prometheus textfile.
package report
