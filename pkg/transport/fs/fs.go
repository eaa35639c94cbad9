// Package fs implements a transport backed by a local directory.
//
// The directory plays the role of the remote server and file URLs are
// paths beneath it. The backend exists for development and tests that
// want real file I/O without a network; it is also the simplest worked
// example of mapping the transport contract onto a concrete store.
//
// Config queries are not supported, so handles opened through this
// transport run with the default vector read limits.
package fs

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"github.com/marmos91/remotefile/pkg/transport"
)

// Client is a transport client rooted at a local directory.
type Client struct {
	root string
}

// New creates a client rooted at the given directory, creating it if
// necessary.
func New(root string) (*Client, error) {
	if root == "" {
		return nil, fmt.Errorf("fs transport: root directory is required")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("fs transport: failed to create root: %w", err)
	}
	return &Client{root: root}, nil
}

// NewFile returns a fresh, unopened handle.
func (c *Client) NewFile() transport.File {
	return &file{root: c.root}
}

// QueryConfig is not supported by the filesystem backend.
func (c *Client) QueryConfig(ctx context.Context, serverURL string, params []string) (transport.Status, string) {
	return transport.Errorf(transport.CodeNotSupported, "fs transport does not support config queries"), ""
}

// resolve maps a file URL onto a path under the root, rejecting escapes.
func resolve(root, url string) (string, error) {
	rel := strings.TrimPrefix(url, "file://")
	rel = strings.TrimPrefix(rel, "/")
	if rel == "" {
		return "", fmt.Errorf("empty path in URL %q", url)
	}

	path := filepath.Join(root, filepath.FromSlash(rel))
	if !strings.HasPrefix(path, filepath.Clean(root)+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes the transport root", url)
	}
	return path, nil
}

type file struct {
	root string

	mu   sync.Mutex
	path string
	mode transport.OpenMode
	fd   *os.File
}

func openFlags(mode transport.OpenMode) (int, bool) {
	switch mode {
	case transport.ModeRead:
		return os.O_RDONLY, true
	case transport.ModeUpdate:
		return os.O_RDWR, true
	case transport.ModeNew:
		return os.O_RDWR | os.O_CREATE | os.O_EXCL, true
	case transport.ModeRecreate:
		return os.O_RDWR | os.O_CREATE | os.O_TRUNC, true
	default:
		return 0, false
	}
}

func (f *file) Open(ctx context.Context, url string, mode transport.OpenMode, handler transport.CompletionHandler) transport.Status {
	if err := ctx.Err(); err != nil {
		return transport.Errorf(transport.CodeUnavailable, "open: %v", err)
	}

	complete := func() transport.Status {
		path, err := resolve(f.root, url)
		if err != nil {
			return transport.Errorf(transport.CodeInvalidArgs, "open: %v", err)
		}

		flags, ok := openFlags(mode)
		if !ok {
			return transport.Errorf(transport.CodeInvalidArgs, "open: invalid mode")
		}

		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return transport.Errorf(transport.CodeIOError, "open: %v", err)
		}

		fd, err := os.OpenFile(path, flags, 0o644)
		if err != nil {
			switch {
			case os.IsNotExist(err):
				return transport.Errorf(transport.CodeNotFound, "open: %v", err)
			case os.IsExist(err):
				return transport.Errorf(transport.CodeAlreadyExists, "open: %v", err)
			default:
				return transport.Errorf(transport.CodeIOError, "open: %v", err)
			}
		}

		f.mu.Lock()
		f.path = path
		f.mode = mode
		f.fd = fd
		f.mu.Unlock()
		return transport.OK()
	}

	if handler == nil {
		return complete()
	}

	go func() {
		handler(complete())
	}()
	return transport.OK()
}

func (f *file) handle() *os.File {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.fd
}

func (f *file) Close(ctx context.Context) transport.Status {
	f.mu.Lock()
	fd := f.fd
	f.fd = nil
	f.mu.Unlock()

	if fd == nil {
		return transport.Errorf(transport.CodeNotOpen, "close: handle not open")
	}
	if err := fd.Close(); err != nil {
		return transport.Errorf(transport.CodeIOError, "close: %v", err)
	}
	return transport.OK()
}

func (f *file) Read(ctx context.Context, offset int64, buf []byte) (transport.Status, int) {
	fd := f.handle()
	if fd == nil {
		return transport.Errorf(transport.CodeNotOpen, "read: handle not open"), 0
	}

	n, err := fd.ReadAt(buf, offset)
	if err != nil && !errors.Is(err, io.EOF) {
		return transport.Errorf(transport.CodeIOError, "read: %v", err), 0
	}
	return transport.OK(), n
}

func (f *file) Write(ctx context.Context, offset int64, data []byte) transport.Status {
	f.mu.Lock()
	fd := f.fd
	mode := f.mode
	f.mu.Unlock()

	if fd == nil {
		return transport.Errorf(transport.CodeNotOpen, "write: handle not open")
	}
	if !mode.Writable() {
		return transport.Errorf(transport.CodeIOError, "write: handle is read-only")
	}

	if _, err := fd.WriteAt(data, offset); err != nil {
		return transport.Errorf(transport.CodeIOError, "write: %v", err)
	}
	return transport.OK()
}

func (f *file) VectorRead(ctx context.Context, chunks []transport.Chunk, buf []byte, handler transport.CompletionHandler) transport.Status {
	fd := f.handle()
	if fd == nil {
		return transport.Errorf(transport.CodeNotOpen, "vector read: handle not open")
	}
	if handler == nil {
		return transport.Errorf(transport.CodeInvalidArgs, "vector read: handler is required")
	}

	go func() {
		for _, c := range chunks {
			n, err := fd.ReadAt(buf[c.BufferOffset:int64(c.BufferOffset)+int64(c.Length)], c.Offset)
			if err != nil && !errors.Is(err, io.EOF) {
				handler(transport.Errorf(transport.CodeIOError,
					"vector read at %d: %v", c.Offset, err))
				return
			}
			_ = n // short chunks at EOF leave the tail of the range untouched
		}
		handler(transport.OK())
	}()
	return transport.OK()
}

func (f *file) Stat(ctx context.Context, force bool) (transport.Status, transport.StatInfo) {
	fd := f.handle()
	if fd == nil {
		return transport.Errorf(transport.CodeNotOpen, "stat: handle not open"), transport.StatInfo{}
	}

	info, err := fd.Stat()
	if err != nil {
		return transport.Errorf(transport.CodeIOError, "stat: %v", err), transport.StatInfo{}
	}
	return transport.OK(), transport.StatInfo{Size: info.Size(), ModTime: info.ModTime()}
}

func (f *file) IsOpen() bool {
	return f.handle() != nil
}

func (f *file) ServerURL() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.fd == nil {
		return ""
	}
	return "file://" + f.root
}
