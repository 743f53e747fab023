// Package metrics holds the Prometheus collectors for merge, validation,
// and staleness runs. A CLI process is short-lived, so the collectors are
// written to a node-exporter textfile instead of being scraped.
package metrics

import (
	"fmt"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var registry = prometheus.NewRegistry()

var (
	mergeOperationsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "llmanspec_merge_operations_total",
		Help: "Delta operations applied to specs, by operation kind",
	}, []string{"op"})

	archiveRunsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "llmanspec_archive_runs_total",
		Help: "Archive runs, by result",
	}, []string{"result"})

	validationItemsTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "llmanspec_validation_items_total",
		Help: "Validated items, by item type and outcome",
	}, []string{"type", "valid"})

	validationIssuesTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "llmanspec_validation_issues_total",
		Help: "Validation issues reported, by level",
	}, []string{"level"})

	validationDuration = promauto.With(registry).NewHistogramVec(prometheus.HistogramOpts{
		Name:    "llmanspec_validation_duration_seconds",
		Help:    "Duration of single-item validation",
		Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5, 1, 5},
	}, []string{"type"})

	stalenessStatusTotal = promauto.With(registry).NewCounterVec(prometheus.CounterOpts{
		Name: "llmanspec_staleness_status_total",
		Help: "Staleness evaluations, by resulting status",
	}, []string{"status"})
)

// Registry returns the registry holding every llmanspec collector.
func Registry() *prometheus.Registry {
	return registry
}

// RecordMerge counts the operations applied in one spec merge.
func RecordMerge(added, modified, removed, renamed int) {
	mergeOperationsTotal.WithLabelValues("add").Add(float64(added))
	mergeOperationsTotal.WithLabelValues("modify").Add(float64(modified))
	mergeOperationsTotal.WithLabelValues("remove").Add(float64(removed))
	mergeOperationsTotal.WithLabelValues("rename").Add(float64(renamed))
}

// RecordArchive counts an archive run. result is "archived", "dry_run",
// or "failed".
func RecordArchive(result string) {
	archiveRunsTotal.WithLabelValues(result).Inc()
}

// RecordValidation counts one validated item and observes its duration.
func RecordValidation(itemType string, valid bool, elapsed time.Duration) {
	validationItemsTotal.WithLabelValues(itemType, fmt.Sprint(valid)).Inc()
	validationDuration.WithLabelValues(itemType).Observe(elapsed.Seconds())
}

// RecordIssue counts one issue at level.
func RecordIssue(level string) {
	validationIssuesTotal.WithLabelValues(level).Inc()
}

// RecordStaleness counts one staleness evaluation.
func RecordStaleness(status string) {
	stalenessStatusTotal.WithLabelValues(status).Inc()
}

// WriteTextfile writes every collector to path in the text exposition
// format. The write is atomic.
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
