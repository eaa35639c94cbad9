package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/remotefile/pkg/file"
)

// fileMetrics is the Prometheus implementation of the file.Metrics sink.
//
// It observes:
//   - Open phase latency ("open", "endopen")
//   - Read/write counts, bytes and latency
//   - Scattered read shape: requests and batches per call
type fileMetrics struct {
	openPhaseDuration *prometheus.HistogramVec
	operationsTotal   *prometheus.CounterVec
	bytesTransferred  *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	vectorRequests    prometheus.Histogram
	vectorBatches     prometheus.Histogram
}

// NewFileMetrics creates a Prometheus-backed file.Metrics sink.
//
// Returns nil if metrics are not enabled (InitRegistry not called), which
// makes file handles fall back to their built-in no-op sink.
func NewFileMetrics() file.Metrics {
	if !IsEnabled() {
		return nil
	}

	reg := GetRegistry()

	return &fileMetrics{
		openPhaseDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remotefile_open_phase_duration_seconds",
				Help:    "Time from open submission to the completion of each open phase",
				Buckets: []float64{0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0, 30.0},
			},
			[]string{"phase"},
		),
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remotefile_operations_total",
				Help: "Total number of file operations by type",
			},
			[]string{"operation"},
		),
		bytesTransferred: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "remotefile_bytes_transferred_total",
				Help: "Total bytes moved through file operations",
			},
			[]string{"operation"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "remotefile_operation_duration_seconds",
				Help:    "Duration of file operations in seconds",
				Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1.0, 2.5, 5.0, 10.0},
			},
			[]string{"operation"},
		),
		vectorRequests: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "remotefile_vector_read_requests",
				Help:    "Number of caller byte ranges per scattered read",
				Buckets: prometheus.ExponentialBuckets(1, 2, 12),
			},
		),
		vectorBatches: promauto.With(reg).NewHistogram(
			prometheus.HistogramOpts{
				Name:    "remotefile_vector_read_batches",
				Help:    "Number of transport batches per scattered read",
				Buckets: prometheus.ExponentialBuckets(1, 2, 8),
			},
		),
	}
}

func (m *fileMetrics) ObserveOpenPhase(phase string, elapsed time.Duration) {
	m.openPhaseDuration.WithLabelValues(phase).Observe(elapsed.Seconds())
}

func (m *fileMetrics) ObserveRead(bytes int64, duration time.Duration) {
	m.operationsTotal.WithLabelValues("read").Inc()
	m.bytesTransferred.WithLabelValues("read").Add(float64(bytes))
	m.operationDuration.WithLabelValues("read").Observe(duration.Seconds())
}

func (m *fileMetrics) ObserveWrite(bytes int64, duration time.Duration) {
	m.operationsTotal.WithLabelValues("write").Inc()
	m.bytesTransferred.WithLabelValues("write").Add(float64(bytes))
	m.operationDuration.WithLabelValues("write").Observe(duration.Seconds())
}

func (m *fileMetrics) ObserveVectorRead(requests, batches int, bytes int64, duration time.Duration) {
	m.operationsTotal.WithLabelValues("vector_read").Inc()
	m.bytesTransferred.WithLabelValues("vector_read").Add(float64(bytes))
	m.operationDuration.WithLabelValues("vector_read").Observe(duration.Seconds())
	m.vectorRequests.Observe(float64(requests))
	m.vectorBatches.Observe(float64(batches))
}
