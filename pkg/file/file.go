// Package file implements a local, offset-addressed view of a remote file
// on top of an asynchronous transport client.
//
// The package bridges the transport's callback-driven completion model into
// the synchronous open/read/write/seek/stat/close contract the rest of a
// program expects. The two load-bearing pieces are the open gate, which
// turns an asynchronous open into a blocking "wait until usable" barrier,
// and the scattered read path, which splits arbitrary (offset, length)
// request lists into transport-legal chunk batches, issues them
// concurrently and reassembles the results deterministically.
package file

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/marmos91/remotefile/internal/logger"
	"github.com/marmos91/remotefile/pkg/transport"
)

// State is the liveness of a handle.
type State int

const (
	// StateClosed covers both "not yet open" and "closed"; I/O fails fast.
	StateClosed State = iota

	// StateOpen means the handle is usable.
	StateOpen

	// StateZombie means a fatal error occurred (failed close or reopen).
	// Terminal: the handle must not be used again.
	StateZombie
)

func (s State) String() string {
	switch s {
	case StateOpen:
		return "open"
	case StateZombie:
		return "zombie"
	default:
		return "closed"
	}
}

// ErrNotUsable is returned by every I/O entry point on a handle that is
// closed, zombie, or whose open failed. No transport interaction happens
// in that case.
var ErrNotUsable = errors.New("file handle is not usable")

// ErrOpenFailed is returned by AwaitOpen and subsequent I/O after an
// asynchronous open resolved with a failure. Terminal for the handle.
var ErrOpenFailed = errors.New("remote open failed")

// Config describes one open request. Immutable once passed to Open.
type Config struct {
	// URL locates the remote file.
	URL string

	// Mode is the access mode. See transport.ParseOpenMode for the
	// textual forms.
	Mode transport.OpenMode

	// Async submits the open and returns immediately; the first I/O call
	// (or an explicit AwaitOpen) blocks until the open resolves.
	Async bool

	// Cache is the optional local read/write cache. Nil disables caching.
	Cache Cache

	// Metrics is the optional monitoring sink. Nil selects a no-op.
	Metrics Metrics

	// Counters is the aggregate counter service shared across handles.
	// Nil selects the process-wide default.
	Counters *Counters
}

// File is a handle to a remote file with a session offset cursor.
//
// Per-handle state (mode, cursor, liveness, per-handle counters) is
// guarded by mu and only ever mutated by the goroutines calling the
// handle's methods; transport callbacks touch nothing but the open gate
// and therefore cannot race with it.
type File struct {
	client transport.Client
	remote transport.File
	url    string

	gate     *openGate
	cache    Cache
	metrics  Metrics
	counters *Counters

	mu           sync.Mutex
	mode         transport.OpenMode
	state        State
	openedAt     time.Time
	initDone     bool
	limits       Limits
	offset       int64
	bytesRead    int64
	bytesWritten int64
	readCalls    int64
	writeCalls   int64
}

// Open constructs a handle and opens the remote file.
//
// Synchronous opens block until the transport reports a definitive
// outcome; on failure no handle is returned and the caller retries by
// calling Open again. Asynchronous opens return as soon as the transport
// accepts the request: the handle exists but every I/O call first blocks
// in AwaitOpen until the open resolves. A submission failure (the
// transport refused to even issue the open) is reported immediately in
// both cases.
func Open(ctx context.Context, client transport.Client, cfg Config) (*File, error) {
	if client == nil {
		return nil, fmt.Errorf("open: transport client is required")
	}
	if cfg.URL == "" {
		return nil, fmt.Errorf("open: URL is required")
	}
	if cfg.Mode == transport.ModeNone {
		return nil, fmt.Errorf("open: invalid open mode")
	}

	f := &File{
		client:   client,
		remote:   client.NewFile(),
		url:      cfg.URL,
		gate:     newOpenGate(),
		cache:    cfg.Cache,
		metrics:  cfg.Metrics,
		counters: cfg.Counters,
		mode:     cfg.Mode,
		limits:   DefaultLimits(),
		openedAt: time.Now(),
	}
	if f.metrics == nil {
		f.metrics = noopMetrics{}
	}
	if f.counters == nil {
		f.counters = DefaultCounters()
	}

	f.gate.begin()

	if cfg.Async {
		// The callback captures the gate, not the File, so a late
		// completion after Close resolves the gate and nothing else.
		gate := f.gate
		status := f.remote.Open(ctx, cfg.URL, cfg.Mode, func(st transport.Status) {
			gate.resolve(st.IsOK())
		})
		if !status.IsOK() {
			logger.Error("async open submission failed for %s: %s", cfg.URL, status)
			f.gate.resolve(false)
			return nil, fmt.Errorf("open %s: %w", cfg.URL, status.AsError())
		}
		logger.Debug("async open submitted for %s mode=%s", cfg.URL, cfg.Mode)
		return f, nil
	}

	status := f.remote.Open(ctx, cfg.URL, cfg.Mode, nil)
	f.gate.resolve(status.IsOK())
	if !status.IsOK() {
		logger.Error("open failed for %s: %s", cfg.URL, status)
		return nil, fmt.Errorf("open %s: %w", cfg.URL, status.AsError())
	}

	if err := f.AwaitOpen(ctx); err != nil {
		return nil, err
	}
	return f, nil
}

// AwaitOpen blocks until the open (synchronous or asynchronous) has
// resolved and the handle is initialized. Every I/O entry point calls it
// before touching the transport, so callers only need it when they want
// to surface open errors eagerly.
//
// After a failed open, AwaitOpen keeps returning ErrOpenFailed without
// re-attempting anything: open failure is terminal for the handle.
func (f *File) AwaitOpen(ctx context.Context) error {
	status, err := f.gate.Await(ctx)
	if err != nil {
		return err
	}

	switch status {
	case OpenSucceeded:
		return f.finishOpen(ctx)
	case OpenFailed:
		return ErrOpenFailed
	default:
		return fmt.Errorf("await open: open was never issued (status %s)", status)
	}
}

// finishOpen performs the once-per-open initialization that must happen on
// a caller goroutine rather than in the transport callback: the state
// transition to Open and the server limits query.
func (f *File) finishOpen(ctx context.Context) error {
	f.mu.Lock()
	if f.initDone {
		f.mu.Unlock()
		return nil
	}
	f.initDone = true
	f.state = StateOpen
	openedAt := f.openedAt
	f.mu.Unlock()

	f.metrics.ObserveOpenPhase("open", time.Since(openedAt))

	f.resolveLimits(ctx)

	f.metrics.ObserveOpenPhase("endopen", time.Since(openedAt))
	return nil
}

// isUsable reports whether I/O may proceed. Callers hold no lock.
func (f *File) isUsable() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state == StateOpen
}

// State returns the current liveness state.
func (f *File) State() State {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.state
}

// URL returns the URL the handle was opened with.
func (f *File) URL() string {
	return f.url
}

// Mode returns the current effective open mode.
func (f *File) Mode() transport.OpenMode {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.mode
}

// OpenStatus returns the status of the (possibly asynchronous) open
// without blocking.
func (f *File) OpenStatus() OpenStatus {
	return f.gate.Status()
}

// Limits returns the vector read limits in effect for this handle.
func (f *File) Limits() Limits {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.limits
}

// Offset returns the session offset cursor.
func (f *File) Offset() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.offset
}

// ready gates every I/O entry point: wait for the open, then check
// liveness. Fails fast with no transport interaction on unusable handles.
func (f *File) ready(ctx context.Context) error {
	if err := f.AwaitOpen(ctx); err != nil {
		return err
	}
	if !f.isUsable() {
		return fmt.Errorf("%s %s: %w", f.State(), f.url, ErrNotUsable)
	}
	return nil
}

// Read reads len(buf) bytes at the session cursor and advances it.
func (f *File) Read(ctx context.Context, buf []byte) (int, error) {
	f.mu.Lock()
	offset := f.offset
	f.mu.Unlock()
	return f.ReadAt(ctx, buf, offset)
}

// ReadAt reads len(buf) bytes at the given offset. The session cursor
// advances past the read range. A short read at end of file is reported
// through the returned byte count, not as an error.
func (f *File) ReadAt(ctx context.Context, buf []byte, offset int64) (int, error) {
	if err := f.ready(ctx); err != nil {
		return 0, err
	}

	logger.Debug("read %s offset=%d length=%d", f.url, offset, len(buf))
	start := time.Now()

	if f.cache != nil {
		result, err := f.cache.TryRead(ctx, f.url, offset, buf)
		if err != nil {
			return 0, fmt.Errorf("read %s via cache: %w", f.url, err)
		}
		if result == CacheHit {
			f.recordRead(offset, len(buf), len(buf))
			f.metrics.ObserveRead(int64(len(buf)), time.Since(start))
			return len(buf), nil
		}
	}

	status, n := f.remote.Read(ctx, offset, buf)
	if !status.IsOK() {
		logger.Error("read %s: %s", f.url, status)
		return 0, fmt.Errorf("read %s: %w", f.url, status.AsError())
	}

	f.recordRead(offset, len(buf), n)
	f.metrics.ObserveRead(int64(n), time.Since(start))
	return n, nil
}

// recordRead updates the cursor and counters after a successful read. The
// cursor advances by the requested length, the byte counters by the bytes
// actually delivered.
func (f *File) recordRead(offset int64, requested, delivered int) {
	f.mu.Lock()
	f.offset = offset + int64(requested)
	f.bytesRead += int64(delivered)
	f.readCalls++
	f.mu.Unlock()

	f.counters.addRead(int64(delivered))
}

// Write writes data at the session cursor and advances it.
func (f *File) Write(ctx context.Context, data []byte) (int, error) {
	f.mu.Lock()
	offset := f.offset
	f.mu.Unlock()
	return f.WriteAt(ctx, data, offset)
}

// WriteAt writes data at the given offset. The session cursor advances
// past the written range.
func (f *File) WriteAt(ctx context.Context, data []byte, offset int64) (int, error) {
	if err := f.ready(ctx); err != nil {
		return 0, err
	}

	if !f.Mode().Writable() {
		return 0, fmt.Errorf("write %s: handle is open read-only", f.url)
	}

	logger.Debug("write %s offset=%d length=%d", f.url, offset, len(data))
	start := time.Now()

	if f.cache != nil {
		result, err := f.cache.TryWrite(ctx, f.url, offset, data)
		if err != nil {
			return 0, fmt.Errorf("write %s via cache: %w", f.url, err)
		}
		if result == CacheStored {
			f.recordWrite(offset, len(data))
			f.metrics.ObserveWrite(int64(len(data)), time.Since(start))
			return len(data), nil
		}
	}

	status := f.remote.Write(ctx, offset, data)
	if !status.IsOK() {
		logger.Error("write %s: %s", f.url, status)
		return 0, fmt.Errorf("write %s: %w", f.url, status.AsError())
	}

	f.recordWrite(offset, len(data))
	f.metrics.ObserveWrite(int64(len(data)), time.Since(start))
	return len(data), nil
}

func (f *File) recordWrite(offset int64, length int) {
	f.mu.Lock()
	f.offset = offset + int64(length)
	f.bytesWritten += int64(length)
	f.writeCalls++
	f.mu.Unlock()

	f.counters.addWrite(int64(length))
}

// Whence selects the reference point for Seek.
type Whence int

const (
	// SeekStart seeks relative to the beginning of the file.
	SeekStart Whence = iota

	// SeekCurrent seeks relative to the session cursor.
	SeekCurrent

	// SeekEnd seeks relative to the end of the file; resolving it costs a
	// stat.
	SeekEnd
)

// Seek repositions the session cursor and returns the new absolute offset.
func (f *File) Seek(ctx context.Context, offset int64, whence Whence) (int64, error) {
	if err := f.ready(ctx); err != nil {
		return 0, err
	}

	var base int64
	switch whence {
	case SeekStart:
		base = 0
	case SeekCurrent:
		base = f.Offset()
	case SeekEnd:
		size, err := f.Size(ctx)
		if err != nil {
			return 0, fmt.Errorf("seek %s: %w", f.url, err)
		}
		base = size
	default:
		return 0, fmt.Errorf("seek %s: invalid whence %d", f.url, whence)
	}

	target := base + offset
	if target < 0 {
		return 0, fmt.Errorf("seek %s: negative resulting offset %d", f.url, target)
	}

	f.mu.Lock()
	f.offset = target
	f.mu.Unlock()
	return target, nil
}

// Stat returns the remote file's metadata. Read-only handles allow the
// transport to serve cached attributes; writable handles force a fresh
// server stat because the size may have changed under this very handle.
func (f *File) Stat(ctx context.Context) (transport.StatInfo, error) {
	if err := f.ready(ctx); err != nil {
		return transport.StatInfo{}, err
	}

	force := f.Mode() != transport.ModeRead
	status, info := f.remote.Stat(ctx, force)
	if !status.IsOK() {
		logger.Error("stat %s: %s", f.url, status)
		return transport.StatInfo{}, fmt.Errorf("stat %s: %w", f.url, status.AsError())
	}
	return info, nil
}

// Size returns the remote file size in bytes.
func (f *File) Size(ctx context.Context) (int64, error) {
	info, err := f.Stat(ctx)
	if err != nil {
		return 0, err
	}
	return info.Size, nil
}

// BytesRead returns this handle's total bytes read.
func (f *File) BytesRead() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytesRead
}

// BytesWritten returns this handle's total bytes written.
func (f *File) BytesWritten() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.bytesWritten
}

// ReadCalls returns this handle's total number of read operations.
func (f *File) ReadCalls() int64 {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.readCalls
}

// Close releases the remote handle.
//
// If an asynchronous open is still in flight, Close first waits for it to
// resolve: letting the transport-side request complete is what guarantees
// it is not leaked, and the callback only touches the open gate anyway. A
// transport close failure leaves the handle a zombie.
func (f *File) Close(ctx context.Context) error {
	if status, err := f.gate.Await(ctx); err != nil {
		return err
	} else if status == OpenFailed {
		// Nothing was ever open; there is nothing to close.
		f.mu.Lock()
		f.state = StateClosed
		f.mu.Unlock()
		return nil
	}

	f.mu.Lock()
	if f.state != StateOpen && !f.remote.IsOpen() {
		f.state = StateClosed
		f.mu.Unlock()
		return nil
	}
	f.mu.Unlock()

	status := f.remote.Close(ctx)

	f.mu.Lock()
	defer f.mu.Unlock()
	if !status.IsOK() {
		f.state = StateZombie
		logger.Error("close %s: %s", f.url, status)
		return fmt.Errorf("close %s: %w", f.url, status.AsError())
	}
	f.state = StateClosed
	logger.Debug("closed %s", f.url)
	return nil
}

// ReOpenResult distinguishes a mode change from a no-op.
type ReOpenResult int

const (
	// ReOpenUnchanged means the mode was already effective or the request
	// was not applicable; no transport traffic happened.
	ReOpenUnchanged ReOpenResult = iota

	// ReOpenChanged means the handle was closed and reopened with the new
	// mode.
	ReOpenChanged
)

// ReOpen switches the handle between Read and Update.
//
// Only those two target modes are legal; any other request, or a request
// for the mode already in effect (a fresh-create mode counts as Update),
// is a no-op reported as ReOpenUnchanged. A transport failure while
// closing or reopening leaves the handle a zombie: per the error model,
// a failed reopen is fatal until the caller constructs a new handle.
func (f *File) ReOpen(ctx context.Context, mode transport.OpenMode) (ReOpenResult, error) {
	if err := f.ready(ctx); err != nil {
		return ReOpenUnchanged, err
	}

	if mode != transport.ModeRead && mode != transport.ModeUpdate {
		logger.Warn("reopen %s: mode must be READ or UPDATE, not %s", f.url, mode)
		return ReOpenUnchanged, nil
	}

	current := f.Mode()
	if mode == current || (mode == transport.ModeUpdate && current == transport.ModeNew) {
		return ReOpenUnchanged, nil
	}

	if status := f.remote.Close(ctx); !status.IsOK() {
		f.mu.Lock()
		f.state = StateZombie
		f.mu.Unlock()
		logger.Error("reopen %s: close failed: %s", f.url, status)
		return ReOpenUnchanged, fmt.Errorf("reopen %s: %w", f.url, status.AsError())
	}

	f.gate.begin()
	status := f.remote.Open(ctx, f.url, mode, nil)
	f.gate.resolve(status.IsOK())
	if !status.IsOK() {
		f.mu.Lock()
		f.state = StateZombie
		f.mu.Unlock()
		logger.Error("reopen %s: open failed: %s", f.url, status)
		return ReOpenUnchanged, fmt.Errorf("reopen %s: %w", f.url, status.AsError())
	}

	f.mu.Lock()
	f.mode = mode
	f.initDone = false
	f.openedAt = time.Now()
	f.mu.Unlock()

	// Re-run the once-per-open initialization, including the limits query.
	return ReOpenChanged, f.finishOpen(ctx)
}
