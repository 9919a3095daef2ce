// Package observability holds the scan metrics and tracer.
package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Registry collects every asset-scan metric. It is separate from the
// default registry so the textfile export holds only scan metrics.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// Metrics definitions
var (
	FilesTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_scan_files_total",
		Help: "Source files processed, by outcome (extracted, cache_hit, failed).",
	}, []string{"status"})

	RecordsTotal = factory.NewCounterVec(prometheus.CounterOpts{
		Name: "asset_scan_records_total",
		Help: "Asset records emitted, by category.",
	}, []string{"category"})

	FileDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "asset_scan_file_seconds",
		Help:    "Time spent extracting and classifying one file.",
		Buckets: prometheus.DefBuckets,
	})

	RunDuration = factory.NewHistogram(prometheus.HistogramOpts{
		Name:    "asset_scan_run_seconds",
		Help:    "Time spent on a full scan.",
		Buckets: prometheus.DefBuckets,
	})

	PolicySuppressedTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "asset_scan_policy_suppressed_total",
		Help: "Records dropped by policy.",
	})

	WatcherEventsTotal = factory.NewCounter(prometheus.CounterOpts{
		Name: "asset_scan_watcher_events_total",
		Help: "Total number of file system events received by the watcher.",
	})
)

// WriteTextfile writes the registry in the node_exporter textfile format
func WriteTextfile(path string) error {
	if err := prometheus.WriteToTextfile(path, Registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
