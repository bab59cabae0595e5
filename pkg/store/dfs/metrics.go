package dfs

import "time"

// Metrics observes requests issued by a Client.
//
// The Prometheus implementation lives in pkg/metrics. Pass nil to Config to
// disable collection.
type Metrics interface {
	// ObserveRequest records one HTTP exchange. status is the HTTP status
	// code, or 0 when the request failed before a response arrived.
	ObserveRequest(operation string, status int, duration time.Duration)

	// RecordBytes records payload bytes moved by an operation.
	RecordBytes(operation string, bytes int64)
}

type noopMetrics struct{}

func (noopMetrics) ObserveRequest(string, int, time.Duration) {}
func (noopMetrics) RecordBytes(string, int64)                 {}
