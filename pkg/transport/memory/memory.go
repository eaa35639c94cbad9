// Package memory implements an in-memory transport backend.
//
// It simulates a remote server entirely in process: files live in a map,
// asynchronous completions are delivered from dedicated goroutines, and
// tests can inject delays and failures deterministically. The package is
// the reference implementation of the transport contract and the workhorse
// of the core's test suite.
package memory

import (
	"context"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/marmos91/remotefile/pkg/transport"
)

// Server is an in-process "remote" store shared by any number of handles.
//
// All methods are safe for concurrent use.
type Server struct {
	mu     sync.RWMutex
	files  map[string][]byte
	config map[string]string

	openDelay time.Duration

	// Failure injection for tests. failOpen fails the next open;
	// failVectorCall fails the Nth VectorRead submission or completion.
	failOpen        *transport.Status
	failVectorCall  int64 // 1-based call number, 0 = disabled
	failVectorState transport.Status
	failVectorAt    string // "submit" or "complete"

	vectorCalls atomic.Int64
	configCalls atomic.Int64
}

// NewServer returns an empty in-memory server.
func NewServer() *Server {
	return &Server{
		files:  make(map[string][]byte),
		config: make(map[string]string),
	}
}

// Put seeds (or replaces) a file's contents.
func (s *Server) Put(url string, data []byte) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.files[url] = append([]byte(nil), data...)
}

// Get returns a copy of a file's contents, or nil if absent.
func (s *Server) Get(url string) []byte {
	s.mu.RLock()
	defer s.mu.RUnlock()
	data, ok := s.files[url]
	if !ok {
		return nil
	}
	return append([]byte(nil), data...)
}

// SetConfig sets a server configuration parameter, served by QueryConfig.
func (s *Server) SetConfig(name, value string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.config[name] = value
}

// SetOpenDelay delays every open completion, which keeps asynchronous
// opens observably in progress for tests.
func (s *Server) SetOpenDelay(d time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.openDelay = d
}

// FailNextOpen makes the next open fail with the given status.
func (s *Server) FailNextOpen(status transport.Status) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failOpen = &status
}

// FailVectorRead makes the Nth VectorRead (1-based, counted across all
// handles) fail with the given status. With atSubmit the submission
// itself fails and no handler fires; otherwise the failure is delivered
// through the completion handler.
func (s *Server) FailVectorRead(call int, status transport.Status, atSubmit bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failVectorCall = int64(call)
	s.failVectorState = status
	if atSubmit {
		s.failVectorAt = "submit"
	} else {
		s.failVectorAt = "complete"
	}
}

// VectorReadCalls returns how many VectorRead submissions were accepted
// or attempted.
func (s *Server) VectorReadCalls() int64 {
	return s.vectorCalls.Load()
}

// ConfigQueries returns how many QueryConfig calls the server served.
func (s *Server) ConfigQueries() int64 {
	return s.configCalls.Load()
}

func (s *Server) takeOpenFailure() *transport.Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	st := s.failOpen
	s.failOpen = nil
	return st
}

// doOpen applies open mode semantics against the store.
func (s *Server) doOpen(url string, mode transport.OpenMode) transport.Status {
	if st := s.takeOpenFailure(); st != nil {
		return *st
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	_, exists := s.files[url]
	switch mode {
	case transport.ModeRead, transport.ModeUpdate:
		if !exists {
			return transport.Errorf(transport.CodeNotFound, "no such file: %s", url)
		}
	case transport.ModeNew:
		if exists {
			return transport.Errorf(transport.CodeAlreadyExists, "file exists: %s", url)
		}
		s.files[url] = nil
	case transport.ModeRecreate:
		s.files[url] = nil
	default:
		return transport.Errorf(transport.CodeInvalidArgs, "invalid open mode")
	}
	return transport.OK()
}

// chunkLimits returns the advertised vector read limits, zero when a
// parameter is not configured.
func (s *Server) chunkLimits() (maxBytes, maxChunks int64) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if v, ok := s.config["readv_ior_max"]; ok {
		maxBytes, _ = strconv.ParseInt(v, 10, 64)
	}
	if v, ok := s.config["readv_iov_max"]; ok {
		maxChunks, _ = strconv.ParseInt(v, 10, 64)
	}
	return maxBytes, maxChunks
}

// Client returns a transport client bound to this server.
func (s *Server) Client() transport.Client {
	return &client{server: s}
}

type client struct {
	server *Server
}

func (c *client) NewFile() transport.File {
	return &file{server: c.server}
}

// QueryConfig serves configured parameters, one value per line in request
// order. Unknown parameters produce an empty line, mirroring servers that
// echo blanks for unsupported keys. With no configuration at all the
// query is unsupported.
func (c *client) QueryConfig(ctx context.Context, serverURL string, params []string) (transport.Status, string) {
	if err := ctx.Err(); err != nil {
		return transport.Errorf(transport.CodeUnavailable, "query config: %v", err), ""
	}

	c.server.configCalls.Add(1)

	c.server.mu.RLock()
	defer c.server.mu.RUnlock()

	if len(c.server.config) == 0 {
		return transport.Errorf(transport.CodeNotSupported, "config queries not supported"), ""
	}

	values := make([]string, len(params))
	for i, p := range params {
		values[i] = c.server.config[p]
	}
	return transport.OK(), strings.Join(values, "\n")
}

// file is one handle against the in-memory server.
type file struct {
	server *Server

	mu   sync.Mutex
	url  string
	mode transport.OpenMode
	open bool
}

func (f *file) Open(ctx context.Context, url string, mode transport.OpenMode, handler transport.CompletionHandler) transport.Status {
	if err := ctx.Err(); err != nil {
		return transport.Errorf(transport.CodeUnavailable, "open: %v", err)
	}

	f.server.mu.RLock()
	delay := f.server.openDelay
	f.server.mu.RUnlock()

	complete := func() transport.Status {
		status := f.server.doOpen(url, mode)
		if status.IsOK() {
			f.mu.Lock()
			f.url = url
			f.mode = mode
			f.open = true
			f.mu.Unlock()
		}
		return status
	}

	if handler == nil {
		if delay > 0 {
			time.Sleep(delay)
		}
		return complete()
	}

	// Asynchronous: completion is delivered from a server-owned goroutine,
	// the way a real transport's worker threads would.
	go func() {
		if delay > 0 {
			time.Sleep(delay)
		}
		handler(complete())
	}()
	return transport.OK()
}

func (f *file) Close(ctx context.Context) transport.Status {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return transport.Errorf(transport.CodeNotOpen, "close: handle not open")
	}
	f.open = false
	return transport.OK()
}

func (f *file) snapshot() (string, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.url, f.open
}

func (f *file) Read(ctx context.Context, offset int64, buf []byte) (transport.Status, int) {
	url, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "read: handle not open"), 0
	}
	if offset < 0 {
		return transport.Errorf(transport.CodeInvalidArgs, "read: negative offset"), 0
	}

	f.server.mu.RLock()
	defer f.server.mu.RUnlock()

	data := f.server.files[url]
	if offset >= int64(len(data)) {
		return transport.OK(), 0
	}
	n := copy(buf, data[offset:])
	return transport.OK(), n
}

func (f *file) Write(ctx context.Context, offset int64, data []byte) transport.Status {
	url, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "write: handle not open")
	}
	f.mu.Lock()
	mode := f.mode
	f.mu.Unlock()
	if !mode.Writable() {
		return transport.Errorf(transport.CodeIOError, "write: handle is read-only")
	}
	if offset < 0 {
		return transport.Errorf(transport.CodeInvalidArgs, "write: negative offset")
	}

	f.server.mu.Lock()
	defer f.server.mu.Unlock()

	existing := f.server.files[url]
	end := offset + int64(len(data))
	if int64(len(existing)) < end {
		grown := make([]byte, end)
		copy(grown, existing)
		existing = grown
	}
	copy(existing[offset:end], data)
	f.server.files[url] = existing
	return transport.OK()
}

func (f *file) VectorRead(ctx context.Context, chunks []transport.Chunk, buf []byte, handler transport.CompletionHandler) transport.Status {
	url, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "vector read: handle not open")
	}
	if handler == nil {
		return transport.Errorf(transport.CodeInvalidArgs, "vector read: handler is required")
	}

	call := f.server.vectorCalls.Add(1)

	f.server.mu.RLock()
	failCall := f.server.failVectorCall
	failStatus := f.server.failVectorState
	failAt := f.server.failVectorAt
	f.server.mu.RUnlock()

	if failCall == call && failAt == "submit" {
		return failStatus
	}

	// Enforce advertised limits the way a real server rejects oversized
	// requests outright instead of answering partially.
	maxBytes, maxChunks := f.server.chunkLimits()
	if maxChunks > 0 && int64(len(chunks)) > maxChunks {
		return transport.Errorf(transport.CodeInvalidArgs,
			"vector read: %d chunks exceeds limit %d", len(chunks), maxChunks)
	}
	if maxBytes > 0 {
		for _, c := range chunks {
			if int64(c.Length) > maxBytes {
				return transport.Errorf(transport.CodeInvalidArgs,
					"vector read: chunk of %d bytes exceeds limit %d", c.Length, maxBytes)
			}
		}
	}

	go func() {
		if failCall == call && failAt == "complete" {
			handler(failStatus)
			return
		}

		f.server.mu.RLock()
		data := f.server.files[url]
		for _, c := range chunks {
			if c.Offset >= int64(len(data)) {
				continue
			}
			end := c.Offset + int64(c.Length)
			if end > int64(len(data)) {
				end = int64(len(data))
			}
			copy(buf[c.BufferOffset:int64(c.BufferOffset)+(end-c.Offset)], data[c.Offset:end])
		}
		f.server.mu.RUnlock()
		handler(transport.OK())
	}()
	return transport.OK()
}

func (f *file) Stat(ctx context.Context, force bool) (transport.Status, transport.StatInfo) {
	url, open := f.snapshot()
	if !open {
		return transport.Errorf(transport.CodeNotOpen, "stat: handle not open"), transport.StatInfo{}
	}

	f.server.mu.RLock()
	defer f.server.mu.RUnlock()
	data, ok := f.server.files[url]
	if !ok {
		return transport.Errorf(transport.CodeNotFound, "stat: no such file: %s", url), transport.StatInfo{}
	}
	return transport.OK(), transport.StatInfo{Size: int64(len(data)), ModTime: time.Now()}
}

func (f *file) IsOpen() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.open
}

func (f *file) ServerURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.open {
		return ""
	}
	return "memory://server"
}
