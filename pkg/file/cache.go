package file

import "context"

// CacheReadResult reports the outcome of a cache read probe.
type CacheReadResult int

const (
	// CacheMiss means the cache has no data for the range; the read falls
	// through to the transport.
	CacheMiss CacheReadResult = iota

	// CacheHit means the cache filled the whole buffer; no transport read
	// is needed.
	CacheHit
)

// CacheWriteResult reports the outcome of a cache write probe.
type CacheWriteResult int

const (
	// CachePassThrough means the cache did not absorb the write; the write
	// falls through to the transport.
	CachePassThrough CacheWriteResult = iota

	// CacheStored means the cache absorbed the write; the transport write
	// is skipped and the cache owns eventual flushing.
	CacheStored
)

// Cache is the optional local read/write cache collaborator, consulted
// before every transport read and write.
//
// A returned error short-circuits the whole I/O call: the handle does not
// fall back to the transport, on the assumption that a broken cache means
// the data path cannot be trusted. CacheMiss and CachePassThrough fall
// through to the transport path.
//
// Implementations must be safe for concurrent use; a single cache is
// typically shared by many handles, keyed by URL.
type Cache interface {
	// TryRead attempts to fill buf with len(buf) bytes of url at offset.
	// Partial data must be reported as a miss: a hit means the entire
	// buffer was filled.
	TryRead(ctx context.Context, url string, offset int64, buf []byte) (CacheReadResult, error)

	// TryWrite offers data written to url at offset to the cache.
	TryWrite(ctx context.Context, url string, offset int64, data []byte) (CacheWriteResult, error)
}
