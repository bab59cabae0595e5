package filesystem

import "time"

// Metrics observes Service operations.
//
// Implementations must be safe for concurrent use.
type Metrics interface {
	// ObserveOperation records one operation and whether it failed.
	ObserveOperation(op string, duration time.Duration, err error)

	// ObservePages records how many store calls a paginated operation issued.
	ObservePages(op string, pages int)
}

type noopMetrics struct{}

func (noopMetrics) ObserveOperation(string, time.Duration, error) {}
func (noopMetrics) ObservePages(string, int)                      {}
