// Package metrics exports the outcome of one filerecon run in the Prometheus
// text format, for the node_exporter textfile collector.
package metrics

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"filerecon/internal/reconcile"
)

const namespace = "filerecon"

// RunMetrics holds the gauges of a single run. All methods are nil-safe:
// calls on a nil *RunMetrics are no-ops.
type RunMetrics struct {
	registry *prometheus.Registry

	records       *prometheus.GaugeVec
	blobs         prometheus.Gauge
	sizeMismatch  prometheus.Gauge
	deleted       prometheus.Gauge
	deleteFailed  prometheus.Gauge
	relinkApplied prometheus.Gauge
	relinkFailed  prometheus.Gauge
	lastRun       prometheus.Gauge
	lastSuccess   prometheus.Gauge
}

// New creates run metrics on a private registry. Batch runs never share the
// default registry.
func New() *RunMetrics {
	m := &RunMetrics{
		registry: prometheus.NewRegistry(),
		records: prometheus.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "records",
			Help:      "File records per reconciliation class in the last run",
		}, []string{"class"}),
		blobs: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "blobs",
			Help:      "Blobs listed in the upload store in the last run",
		}),
		sizeMismatch: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "size_mismatch",
			Help:      "Matched records whose file_size differs from the blob size",
		}),
		deleted: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cleanup_deleted",
			Help:      "Orphaned records deleted in the last run",
		}),
		deleteFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "cleanup_failed",
			Help:      "Orphaned record deletes that failed in the last run",
		}),
		relinkApplied: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relink_applied",
			Help:      "Records pointed at a relocated blob in the last run",
		}),
		relinkFailed: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "relink_failed",
			Help:      "Record path updates that failed in the last run",
		}),
		lastRun: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_timestamp_seconds",
			Help:      "Unix time the last run finished",
		}),
		lastSuccess: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "last_run_success",
			Help:      "1 when the last run completed without a fatal error",
		}),
	}

	m.registry.MustRegister(
		m.records,
		m.blobs,
		m.sizeMismatch,
		m.deleted,
		m.deleteFailed,
		m.relinkApplied,
		m.relinkFailed,
		m.lastRun,
		m.lastSuccess,
	)
	return m
}

// Registry exposes the underlying registry.
func (m *RunMetrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// ObserveReport records the classification counts of a pass and any cleanup
// folded into it.
func (m *RunMetrics) ObserveReport(report *reconcile.Report) {
	if m == nil || report == nil {
		return
	}
	m.records.WithLabelValues(string(reconcile.Consistent)).Set(float64(report.Summary.Consistent))
	m.records.WithLabelValues(string(reconcile.Relocatable)).Set(float64(report.Summary.Relocatable))
	m.records.WithLabelValues(string(reconcile.Orphaned)).Set(float64(report.Summary.Orphaned))
	m.blobs.Set(float64(report.BlobCount))
	m.sizeMismatch.Set(float64(report.Summary.SizeMismatch))
	if report.Cleanup != nil {
		m.ObserveCleanup(*report.Cleanup)
	}
}

// ObserveCleanup records a cleanup result.
func (m *RunMetrics) ObserveCleanup(result reconcile.CleanupResult) {
	if m == nil {
		return
	}
	m.deleted.Set(float64(len(result.Deleted)))
	m.deleteFailed.Set(float64(len(result.Failed)))
}

// ObserveRelink records a relink result.
func (m *RunMetrics) ObserveRelink(result reconcile.RelinkResult) {
	if m == nil {
		return
	}
	m.relinkApplied.Set(float64(len(result.Applied)))
	m.relinkFailed.Set(float64(len(result.Failed)))
}

// Finish stamps the run end time and outcome.
func (m *RunMetrics) Finish(at time.Time, err error) {
	if m == nil {
		return
	}
	m.lastRun.Set(float64(at.Unix()))
	if err != nil {
		m.lastSuccess.Set(0)
		return
	}
	m.lastSuccess.Set(1)
}

// WriteTextfile atomically writes the gauges to path. An empty path is a no-op.
func (m *RunMetrics) WriteTextfile(path string) error {
	if m == nil || path == "" {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create metrics dir: %w", err)
	}
	if err := prometheus.WriteToTextfile(path, m.registry); err != nil {
		return fmt.Errorf("write metrics textfile: %w", err)
	}
	return nil
}
