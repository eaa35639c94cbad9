package file

import (
	"github.com/marmos91/remotefile/pkg/transport"
)

// ReadRequest is one (offset, length) byte range of a scattered read. The
// destination buffer is laid out as the concatenation of all requests in
// order, so each request's bytes land at the sum of the preceding lengths.
type ReadRequest struct {
	Offset int64
	Length int
}

// Limits carries the server-imposed vector read limits: the largest single
// chunk the server accepts and the largest number of chunks per request.
// Once resolved for a handle they stay fixed until a ReOpen re-resolves
// them.
type Limits struct {
	MaxChunkBytes     int32
	MaxChunksPerBatch int32
}

// Fallback limits used until (and unless) a live server query succeeds.
// These match the protocol's historical readv_ior_max / readv_iov_max
// defaults, so they are safe against servers that cannot be queried.
const (
	DefaultMaxChunkBytes     int32 = 2097136
	DefaultMaxChunksPerBatch int32 = 1024
)

// DefaultLimits returns the fallback vector read limits.
func DefaultLimits() Limits {
	return Limits{
		MaxChunkBytes:     DefaultMaxChunkBytes,
		MaxChunksPerBatch: DefaultMaxChunksPerBatch,
	}
}

// planChunks splits an ordered list of read requests into transport-legal
// chunk batches.
//
// Requests longer than MaxChunkBytes are split into full-size chunks plus
// one remainder chunk (omitted when the remainder is zero). Chunks
// accumulate into a running batch; whenever the batch reaches
// MaxChunksPerBatch it is closed and a new one started, so no batch ever
// exceeds the server's per-request chunk count. The final partial batch is
// emitted as-is. Empty input yields a nil batch list.
//
// The concatenation of all chunks across all batches, in order,
// reconstructs exactly the requested byte ranges in request order; each
// chunk's BufferOffset is its position in a destination buffer laid out as
// the concatenation of the requests. Violating the server limits would
// reject the whole request rather than truncate it, which is why the split
// happens here and nowhere else.
func planChunks(requests []ReadRequest, limits Limits) [][]transport.Chunk {
	var (
		batches   [][]transport.Chunk
		batch     []transport.Chunk
		bufOffset int32
	)

	maxBytes := limits.MaxChunkBytes
	maxChunks := int(limits.MaxChunksPerBatch)

	push := func(c transport.Chunk) {
		batch = append(batch, c)
		if len(batch) == maxChunks {
			batches = append(batches, batch)
			batch = nil
		}
	}

	for _, req := range requests {
		length := int32(req.Length)

		if length > maxBytes {
			nsplit := length / maxBytes
			rem := length % maxBytes

			for j := int32(0); j < nsplit; j++ {
				push(transport.Chunk{
					Offset:       req.Offset + int64(j)*int64(maxBytes),
					Length:       maxBytes,
					BufferOffset: bufOffset,
				})
				bufOffset += maxBytes
			}

			if rem > 0 {
				push(transport.Chunk{
					Offset:       req.Offset + int64(nsplit)*int64(maxBytes),
					Length:       rem,
					BufferOffset: bufOffset,
				})
				bufOffset += rem
			}
		} else {
			push(transport.Chunk{
				Offset:       req.Offset,
				Length:       length,
				BufferOffset: bufOffset,
			})
			bufOffset += length
		}
	}

	if len(batch) > 0 {
		batches = append(batches, batch)
	}

	return batches
}
