package report

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/JPC-AV/aspace-jpc-av/internal/importer"
)

// WriteMetrics writes the run's counters in the node_exporter textfile
// format. Each run replaces the previous file.
func WriteMetrics(path string, summary importer.Summary) error {
	registry := prometheus.NewRegistry()

	rows := prometheus.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: "aspace_import",
		Name:      "rows",
		Help:      "Rows processed by the last import run, by outcome.",
	}, []string{"status", "mode", "dry_run"})
	duration := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aspace_import",
		Name:      "duration_seconds",
		Help:      "Wall time of the last import run.",
	})
	finished := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aspace_import",
		Name:      "last_run_timestamp_seconds",
		Help:      "Unix time the last import run finished.",
	})
	aborted := prometheus.NewGauge(prometheus.GaugeOpts{
		Namespace: "aspace_import",
		Name:      "aborted",
		Help:      "Whether the last import run stopped before its final row (1/0).",
	})
	registry.MustRegister(rows, duration, finished, aborted)

	dryRun := fmt.Sprint(summary.DryRun)
	for _, st := range importer.Statuses() {
		rows.WithLabelValues(string(st), string(summary.Mode), dryRun).Set(float64(summary.Count(st)))
	}
	duration.Set(summary.Duration().Seconds())
	if !summary.FinishedAt.IsZero() {
		finished.Set(float64(summary.FinishedAt.Unix()))
	}
	if summary.Aborted {
		aborted.Set(1)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("metrics textfile: %w", err)
	}
	return nil
}
