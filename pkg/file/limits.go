package file

import (
	"context"
	"strconv"
	"strings"

	"github.com/marmos91/remotefile/internal/logger"
)

// Config parameter names servers advertise their vector read limits under.
const (
	paramMaxChunkBytes     = "readv_ior_max"
	paramMaxChunksPerBatch = "readv_iov_max"
)

// resolveLimits queries the handle's data server for its vector read
// limits and installs them on the handle.
//
// This is a best-effort optimization, not a correctness dependency: any
// failure (unusable handle, unsupported query, malformed response) keeps
// the defaults, silently except for a debug line. Re-running it, e.g.
// after a ReOpen, simply re-queries and overwrites.
func (f *File) resolveLimits(ctx context.Context) {
	limits := DefaultLimits()

	defer func() {
		f.mu.Lock()
		f.limits = limits
		f.mu.Unlock()
	}()

	if !f.isUsable() {
		return
	}

	serverURL := f.remote.ServerURL()
	if serverURL == "" {
		return
	}

	status, response := f.client.QueryConfig(ctx, serverURL,
		[]string{paramMaxChunkBytes, paramMaxChunksPerBatch})
	if !status.IsOK() {
		logger.Debug("limits query for %s failed, using defaults: %s", f.url, status)
		return
	}

	limits = parseLimits(response)
	logger.Debug("vector read limits for %s: max %d bytes/chunk, %d chunks/batch",
		f.url, limits.MaxChunkBytes, limits.MaxChunksPerBatch)
}

// parseLimits reads the newline-delimited two-value config response:
// first value max chunk bytes, second value max chunk count. Parsing is
// defensive; a malformed or missing value keeps the default for that
// field only.
func parseLimits(response string) Limits {
	limits := DefaultLimits()

	lines := strings.Split(response, "\n")

	if len(lines) > 0 {
		if v, err := strconv.ParseInt(strings.TrimSpace(lines[0]), 10, 32); err == nil && v > 0 {
			limits.MaxChunkBytes = int32(v)
		}
	}
	if len(lines) > 1 {
		if v, err := strconv.ParseInt(strings.TrimSpace(lines[1]), 10, 32); err == nil && v > 0 {
			limits.MaxChunksPerBatch = int32(v)
		}
	}

	return limits
}
