package file

import "sync/atomic"

// Counters aggregates I/O statistics across every handle that shares an
// instance. Handles run concurrently, so all updates use atomic increments.
//
// A process typically shares one instance across all handles (see
// DefaultCounters), but tests and multi-tenant embedders can inject their
// own to keep aggregates isolated.
type Counters struct {
	bytesRead    atomic.Int64
	bytesWritten atomic.Int64
	readCalls    atomic.Int64
	writeCalls   atomic.Int64
}

// NewCounters returns a zeroed counter set.
func NewCounters() *Counters {
	return &Counters{}
}

// defaultCounters backs DefaultCounters. Package-level so unrelated handles
// aggregate into the same totals by default, matching the usual
// "process-wide I/O statistics" expectation.
var defaultCounters = NewCounters()

// DefaultCounters returns the process-wide shared counter set used by
// handles that do not inject their own.
func DefaultCounters() *Counters {
	return defaultCounters
}

func (c *Counters) addRead(bytes int64) {
	c.bytesRead.Add(bytes)
	c.readCalls.Add(1)
}

func (c *Counters) addWrite(bytes int64) {
	c.bytesWritten.Add(bytes)
	c.writeCalls.Add(1)
}

// BytesRead returns the total bytes read across all sharing handles.
func (c *Counters) BytesRead() int64 { return c.bytesRead.Load() }

// BytesWritten returns the total bytes written across all sharing handles.
func (c *Counters) BytesWritten() int64 { return c.bytesWritten.Load() }

// ReadCalls returns the total number of read operations.
func (c *Counters) ReadCalls() int64 { return c.readCalls.Load() }

// WriteCalls returns the total number of write operations.
func (c *Counters) WriteCalls() int64 { return c.writeCalls.Load() }
