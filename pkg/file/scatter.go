package file

import (
	"context"
	"fmt"
	"math"
	"sync"
	"time"

	"github.com/marmos91/remotefile/internal/logger"
	"github.com/marmos91/remotefile/pkg/transport"
)

// ReadScattered reads a list of disjoint (offset, length) ranges in one
// logical operation.
//
// The requests are split into transport-legal chunk batches (see
// planChunks), each batch is issued as an independent asynchronous
// VectorRead, and the call blocks until every issued batch has completed.
// buf receives the ranges concatenated in request order and must be at
// least as large as the sum of the request lengths.
//
// Failure model:
//   - If issuing a batch fails, no further batches are submitted, the
//     already-issued ones are still waited for (their handlers reference
//     shared state that must stay live), and the submission error is
//     returned.
//   - If every batch was issued, results are scanned in submission order
//     and the first non-OK status is returned, carrying the transport's
//     message. Bytes of never-completed ranges are undefined.
//   - Counters and the cursor are only touched on full success: the byte
//     and operation counters bump exactly once for the whole call, and the
//     cursor moves to the first requested offset, mirroring a sequential
//     read of the scattered ranges.
func (f *File) ReadScattered(ctx context.Context, requests []ReadRequest, buf []byte) error {
	if err := f.ready(ctx); err != nil {
		return err
	}

	total := 0
	for i, req := range requests {
		if req.Offset < 0 || req.Length < 0 {
			return fmt.Errorf("scattered read %s: request %d has negative offset or length", f.url, i)
		}
		// Chunk lengths and buffer offsets travel as int32 on the wire.
		if req.Length > math.MaxInt32 {
			return fmt.Errorf("scattered read %s: request %d is too large: %d bytes, limit %d",
				f.url, i, req.Length, math.MaxInt32)
		}
		total += req.Length
	}
	if total > math.MaxInt32 {
		return fmt.Errorf("scattered read %s: requests total %d bytes, limit %d", f.url, total, math.MaxInt32)
	}
	if total > len(buf) {
		return fmt.Errorf("scattered read %s: buffer too small: need %d bytes, have %d", f.url, total, len(buf))
	}

	batches := planChunks(requests, f.Limits())
	if len(batches) == 0 {
		return nil
	}

	logger.Debug("scattered read %s: %d requests, %d bytes, %d batches",
		f.url, len(requests), total, len(batches))
	start := time.Now()

	// Fan-in barrier: one pre-sized status slot per batch, written at a
	// fixed index by that batch's completion handler and read only after
	// the WaitGroup join, so no slot is ever observed half-written.
	statuses := make([]transport.Status, len(batches))
	var wg sync.WaitGroup

	var submitErr error
	for i, batch := range batches {
		index := i
		wg.Add(1)
		status := f.remote.VectorRead(ctx, batch, buf, func(st transport.Status) {
			statuses[index] = st
			wg.Done()
		})
		if !status.IsOK() {
			// The handler never fires for a failed submission; balance the
			// Add here and stop issuing. Already-issued batches are still
			// in flight and are waited for below.
			wg.Done()
			submitErr = fmt.Errorf("scattered read %s: batch %d/%d submission: %w",
				f.url, i+1, len(batches), status.AsError())
			logger.Error("scattered read %s: %s", f.url, status)
			break
		}
	}

	wg.Wait()

	if submitErr != nil {
		return submitErr
	}

	for i, status := range statuses {
		if !status.IsOK() {
			logger.Error("scattered read %s: batch %d/%d: %s", f.url, i+1, len(batches), status)
			return fmt.Errorf("scattered read %s: batch %d/%d: %w",
				f.url, i+1, len(batches), status.AsError())
		}
	}

	f.mu.Lock()
	f.offset = requests[0].Offset
	f.bytesRead += int64(total)
	f.readCalls++
	f.mu.Unlock()
	f.counters.addRead(int64(total))

	f.metrics.ObserveVectorRead(len(requests), len(batches), int64(total), time.Since(start))
	return nil
}
