package file

import "time"

// Metrics receives fire-and-forget notifications about handle activity.
//
// Implementations must never block the I/O path or fail it: a monitoring
// problem is invisible to the caller of Read/Write. The Prometheus-backed
// implementation lives in pkg/metrics; passing nil metrics selects the
// built-in no-op.
//
// Example implementations:
//   - Prometheus metrics
//   - StatsD metrics
//   - In-memory counters for testing
type Metrics interface {
	// ObserveOpenPhase records the completion of one open phase ("open",
	// "endopen") with the time elapsed since the open was issued.
	ObserveOpenPhase(phase string, elapsed time.Duration)

	// ObserveRead records a completed single-range read.
	ObserveRead(bytes int64, duration time.Duration)

	// ObserveWrite records a completed write.
	ObserveWrite(bytes int64, duration time.Duration)

	// ObserveVectorRead records a completed scattered read: the number of
	// caller requests, the number of transport batches they became, and
	// the total bytes moved.
	ObserveVectorRead(requests, batches int, bytes int64, duration time.Duration)
}

// noopMetrics is the default when no sink is injected.
type noopMetrics struct{}

func (noopMetrics) ObserveOpenPhase(phase string, elapsed time.Duration)                  {}
func (noopMetrics) ObserveRead(bytes int64, duration time.Duration)                       {}
func (noopMetrics) ObserveWrite(bytes int64, duration time.Duration)                      {}
func (noopMetrics) ObserveVectorRead(requests, batches int, bytes int64, d time.Duration) {}
