// Package transport defines the contract between the remotefile core and
// the underlying remote-storage client.
//
// The transport is treated as a black box: wire format, authentication and
// connection pooling are implementation concerns. What this package pins
// down is the call surface the core depends on, the asynchronous completion
// model, and the status taxonomy shared by every implementation.
//
// Asynchronous Model:
// Implementations run their own worker goroutines and deliver completions
// by invoking the CompletionHandler passed to Open or VectorRead. The core
// must treat every handler invocation as concurrent with the issuing
// goroutine and with other handlers. A nil handler on Open requests a
// synchronous open.
package transport

import (
	"context"
	"fmt"
	"strings"
	"time"
)

// ============================================================================
// Status
// ============================================================================

// Code classifies the outcome of a transport operation.
type Code int

const (
	// CodeOK indicates the operation succeeded.
	CodeOK Code = iota

	// CodeInvalidArgs indicates the request was malformed (bad URL, bad
	// offset, nil buffer).
	CodeInvalidArgs

	// CodeNotFound indicates the remote file does not exist.
	CodeNotFound

	// CodeAlreadyExists indicates an exclusive create found an existing file.
	CodeAlreadyExists

	// CodeNotOpen indicates an I/O call on a handle that is not open.
	CodeNotOpen

	// CodeIOError indicates a read, write or stat failed on the server side.
	CodeIOError

	// CodeNotSupported indicates the server or protocol version does not
	// support the requested operation (e.g. config queries).
	CodeNotSupported

	// CodeUnavailable indicates the server could not be reached. Transient;
	// retrying may succeed.
	CodeUnavailable
)

func (c Code) String() string {
	switch c {
	case CodeOK:
		return "OK"
	case CodeInvalidArgs:
		return "InvalidArgs"
	case CodeNotFound:
		return "NotFound"
	case CodeAlreadyExists:
		return "AlreadyExists"
	case CodeNotOpen:
		return "NotOpen"
	case CodeIOError:
		return "IOError"
	case CodeNotSupported:
		return "NotSupported"
	case CodeUnavailable:
		return "Unavailable"
	default:
		return "Unknown"
	}
}

// Status is the outcome of a single transport operation: a code plus a
// human-readable message. Statuses are values; they are safe to copy and
// to read from any goroutine once delivered.
type Status struct {
	Code    Code
	Message string
}

// OK returns a success status.
func OK() Status {
	return Status{Code: CodeOK}
}

// Errorf builds a failure status with a formatted message.
func Errorf(code Code, format string, args ...any) Status {
	return Status{Code: code, Message: fmt.Sprintf(format, args...)}
}

// IsOK reports whether the operation succeeded.
func (s Status) IsOK() bool {
	return s.Code == CodeOK
}

func (s Status) String() string {
	if s.IsOK() {
		return "OK"
	}
	if s.Message == "" {
		return s.Code.String()
	}
	return fmt.Sprintf("%s: %s", s.Code, s.Message)
}

// ============================================================================
// Open Modes
// ============================================================================

// OpenMode selects how a remote file is opened.
type OpenMode int

const (
	// ModeNone is the zero value; opening with it fails.
	ModeNone OpenMode = iota

	// ModeRead opens an existing file read-only.
	ModeRead

	// ModeUpdate opens an existing file for reading and writing.
	ModeUpdate

	// ModeNew creates a new file; the open fails if the file exists.
	ModeNew

	// ModeRecreate creates the file, truncating it if it already exists.
	ModeRecreate
)

func (m OpenMode) String() string {
	switch m {
	case ModeRead:
		return "READ"
	case ModeUpdate:
		return "UPDATE"
	case ModeNew:
		return "NEW"
	case ModeRecreate:
		return "RECREATE"
	default:
		return "NONE"
	}
}

// Writable reports whether the mode permits writes.
func (m OpenMode) Writable() bool {
	return m == ModeUpdate || m == ModeNew || m == ModeRecreate
}

// ParseOpenMode parses a textual open mode, case-insensitively.
// Accepted values: "NEW"/"CREATE", "RECREATE", "UPDATE", "READ".
// Anything else yields ModeNone.
func ParseOpenMode(mode string) OpenMode {
	switch strings.ToUpper(strings.TrimSpace(mode)) {
	case "NEW", "CREATE":
		return ModeNew
	case "RECREATE":
		return ModeRecreate
	case "UPDATE":
		return ModeUpdate
	case "READ":
		return ModeRead
	default:
		return ModeNone
	}
}

// ============================================================================
// Vector Read Chunks
// ============================================================================

// Chunk is one (offset, length) unit of a vectored read, together with the
// position in the caller's destination buffer where its bytes belong.
//
// Length must respect the server's per-chunk byte limit and a single
// request must not carry more chunks than the server's per-request limit.
// Enforcing both is the chunk planner's job, never the transport's caller.
type Chunk struct {
	// Offset is the absolute position in the remote file.
	Offset int64

	// Length is the number of bytes to read at Offset.
	Length int32

	// BufferOffset is the position in the destination buffer where the
	// chunk's bytes are stored on completion.
	BufferOffset int32
}

// ============================================================================
// File Metadata
// ============================================================================

// StatInfo describes a remote file at stat time.
type StatInfo struct {
	// Size is the file size in bytes.
	Size int64

	// ModTime is the last modification time, if the server reports one.
	ModTime time.Time
}

// ============================================================================
// Client Interfaces
// ============================================================================

// CompletionHandler receives the terminal status of an asynchronous
// operation. It is invoked exactly once, from a transport-owned goroutine,
// after the operation completes. Handlers must not block for long; they
// typically record the status and signal a waiting goroutine.
type CompletionHandler func(Status)

// File is a handle to one remote file. A handle is exclusively owned by
// its consumer for its lifetime and is invalid after Close.
//
// All blocking operations take a context; implementations should honor
// cancellation for the synchronous paths. Asynchronous operations return a
// submission status immediately and deliver the terminal status through
// the handler.
type File interface {
	// Open opens the remote file at url with the given mode. A nil handler
	// makes the call synchronous: the returned status is terminal. With a
	// handler, the returned status only reports submission; the terminal
	// status arrives through the handler.
	Open(ctx context.Context, url string, mode OpenMode, handler CompletionHandler) Status

	// Close releases the remote handle. After Close the handle is invalid
	// regardless of the returned status.
	Close(ctx context.Context) Status

	// Read reads len(buf) bytes at the given offset. Returns the number of
	// bytes actually read; a short read at end of file is not an error.
	Read(ctx context.Context, offset int64, buf []byte) (Status, int)

	// Write writes data at the given offset.
	Write(ctx context.Context, offset int64, data []byte) Status

	// VectorRead issues one batched scattered read. Each chunk's bytes are
	// stored at chunk.BufferOffset in buf. The returned status reports
	// submission only; the terminal status arrives through the handler.
	VectorRead(ctx context.Context, chunks []Chunk, buf []byte, handler CompletionHandler) Status

	// Stat returns file metadata. With force set, implementations must
	// bypass any cached attributes and ask the server.
	Stat(ctx context.Context, force bool) (Status, StatInfo)

	// IsOpen reports whether the handle currently holds an open file.
	IsOpen() bool

	// ServerURL returns the URL of the data server actually serving this
	// handle, usable with Client.QueryConfig. Empty until opened.
	ServerURL() string
}

// Client is a factory for file handles plus server-level queries.
type Client interface {
	// NewFile returns a fresh, unopened file handle.
	NewFile() File

	// QueryConfig asks the server at serverURL for the values of the named
	// configuration parameters. The response carries one value per
	// requested name, newline-separated, in request order. Servers that do
	// not support config queries return CodeNotSupported.
	QueryConfig(ctx context.Context, serverURL string, params []string) (Status, string)
}
