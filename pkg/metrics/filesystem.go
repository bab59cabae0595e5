package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dfsgate/pkg/filesystem"
	"github.com/marmos91/dfsgate/pkg/fserrors"
)

// filesystemMetrics is the Prometheus implementation of filesystem.Metrics.
type filesystemMetrics struct {
	operationsTotal   *prometheus.CounterVec
	operationDuration *prometheus.HistogramVec
	pages             *prometheus.HistogramVec
}

// NewFilesystemMetrics creates a Prometheus-backed filesystem.Metrics.
//
// Returns nil if metrics are not enabled.
func NewFilesystemMetrics() filesystem.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newFilesystemMetrics(GetRegistry())
}

func newFilesystemMetrics(reg prometheus.Registerer) *filesystemMetrics {
	return &filesystemMetrics{
		operationsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfsgate_filesystem_operations_total",
				Help: "Total number of filesystem operations by operation and outcome",
			},
			[]string{"operation", "status"},
		),
		operationDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dfsgate_filesystem_operation_duration_seconds",
				Help:    "Duration of filesystem operations in seconds",
				Buckets: prometheus.ExponentialBuckets(0.005, 2.5, 10),
			},
			[]string{"operation"},
		),
		pages: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "dfsgate_filesystem_pages",
				Help:    "Store calls issued per paginated operation",
				Buckets: []float64{1, 2, 5, 10, 50, 100, 1000},
			},
			[]string{"operation"},
		),
	}
}

// ObserveOperation implements filesystem.Metrics. The status label is
// "success" or the error classification, e.g. "Timeout".
func (m *filesystemMetrics) ObserveOperation(operation string, duration time.Duration, err error) {
	status := "success"
	if err != nil {
		status = "error"
		if code, ok := fserrors.CodeOf(err); ok {
			status = code.String()
		}
	}
	m.operationsTotal.WithLabelValues(operation, status).Inc()
	m.operationDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// ObservePages implements filesystem.Metrics.
func (m *filesystemMetrics) ObservePages(operation string, pages int) {
	m.pages.WithLabelValues(operation).Observe(float64(pages))
}
