package metrics

import (
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/dfsgate/pkg/store/dfs"
)

// restMetrics is the Prometheus implementation of dfs.Metrics.
type restMetrics struct {
	requestsTotal   *prometheus.CounterVec
	requestDuration *prometheus.HistogramVec
	bytesTotal      *prometheus.CounterVec
}

// NewRESTMetrics creates a Prometheus-backed dfs.Metrics.
//
// Returns nil if metrics are not enabled, which makes the DFS client use
// its built-in no-op implementation.
func NewRESTMetrics() dfs.Metrics {
	if !IsEnabled() {
		return nil
	}
	return newRESTMetrics(GetRegistry())
}

func newRESTMetrics(reg prometheus.Registerer) *restMetrics {
	return &restMetrics{
		requestsTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfsgate_rest_requests_total",
				Help: "Total number of REST requests by operation and HTTP status",
			},
			[]string{"operation", "status"},
		),
		requestDuration: promauto.With(reg).NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "dfsgate_rest_request_duration_seconds",
				Help: "Duration of REST requests in seconds",
				Buckets: []float64{
					0.005, // 5ms
					0.01,  // 10ms
					0.025, // 25ms
					0.05,  // 50ms
					0.1,   // 100ms
					0.25,  // 250ms
					0.5,   // 500ms
					1.0,   // 1s
					2.5,   // 2.5s
					10.0,  // 10s
					30.0,  // 30s
				},
			},
			[]string{"operation"},
		),
		bytesTotal: promauto.With(reg).NewCounterVec(
			prometheus.CounterOpts{
				Name: "dfsgate_rest_bytes_total",
				Help: "Total payload bytes moved by REST requests",
			},
			[]string{"operation"},
		),
	}
}

// ObserveRequest implements dfs.Metrics.
func (m *restMetrics) ObserveRequest(operation string, status int, duration time.Duration) {
	label := "error"
	if status > 0 {
		label = strconv.Itoa(status)
	}
	m.requestsTotal.WithLabelValues(operation, label).Inc()
	m.requestDuration.WithLabelValues(operation).Observe(duration.Seconds())
}

// RecordBytes implements dfs.Metrics.
func (m *restMetrics) RecordBytes(operation string, bytes int64) {
	if bytes <= 0 {
		return
	}
	m.bytesTotal.WithLabelValues(operation).Add(float64(bytes))
}
