package file

import (
	"context"
	"sync"
)

// OpenStatus tracks the lifecycle of a (possibly asynchronous) open.
//
// Transitions are monotonic for the lifetime of one open attempt:
// NotIssued → InProgress → {Succeeded, Failed}. The InProgress → terminal
// transition happens exactly once, driven by the transport's completion
// callback, and wakes every goroutine blocked in Await. ReOpen starts a
// fresh attempt and therefore resets the status.
type OpenStatus int

const (
	// OpenNotIssued means no open has been submitted yet.
	OpenNotIssued OpenStatus = iota

	// OpenInProgress means an open is in flight.
	OpenInProgress

	// OpenSucceeded means the open completed and the handle is usable.
	OpenSucceeded

	// OpenFailed means the open completed with an error. Terminal for the
	// handle: the caller must construct a new one to retry.
	OpenFailed
)

func (s OpenStatus) String() string {
	switch s {
	case OpenNotIssued:
		return "not-issued"
	case OpenInProgress:
		return "in-progress"
	case OpenSucceeded:
		return "succeeded"
	case OpenFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// openGate is the synchronization barrier between the goroutine issuing an
// open, the transport callback resolving it, and any number of goroutines
// blocked until the outcome is known.
//
// Broadcast is implemented by closing a channel: every waiter in Await
// unblocks at once and observes the same terminal status. The transport
// callback captures only the gate, never the surrounding File, so a
// callback firing after Close cannot touch freed or recycled state.
type openGate struct {
	mu     sync.Mutex
	status OpenStatus
	done   chan struct{}
}

func newOpenGate() *openGate {
	return &openGate{status: OpenNotIssued}
}

// begin marks a new open attempt as in flight. Any previous attempt's
// waiters must have drained first; ReOpen guarantees this by only running
// on a resolved gate.
func (g *openGate) begin() {
	g.mu.Lock()
	defer g.mu.Unlock()

	g.status = OpenInProgress
	g.done = make(chan struct{})
}

// resolve records the terminal status of the in-flight open and wakes all
// waiters. Calls on an already-resolved gate are ignored, which makes a
// late transport callback after a racing ReOpen harmless.
func (g *openGate) resolve(ok bool) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.status != OpenInProgress {
		return
	}

	if ok {
		g.status = OpenSucceeded
	} else {
		g.status = OpenFailed
	}
	close(g.done)
}

// Status returns the current open status without blocking.
func (g *openGate) Status() OpenStatus {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status
}

// Await blocks until the open resolves and returns the terminal status.
// Returns immediately if the open already resolved or was never issued.
//
// The gate itself has no timeout; the wait is bounded by the transport's
// own request timeouts. The context lets the caller abandon the wait, in
// which case the open continues in the background and later callers see
// its outcome.
func (g *openGate) Await(ctx context.Context) (OpenStatus, error) {
	g.mu.Lock()
	status := g.status
	done := g.done
	g.mu.Unlock()

	if status != OpenInProgress {
		return status, nil
	}

	select {
	case <-done:
	case <-ctx.Done():
		return OpenInProgress, ctx.Err()
	}

	g.mu.Lock()
	defer g.mu.Unlock()
	return g.status, nil
}
