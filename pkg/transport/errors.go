package transport

import "errors"

// ============================================================================
// Standard Transport Errors
// ============================================================================

// These sentinels give callers a stable way to classify transport failures
// without string matching. Implementations wrap them with context:
//
//	if os.IsNotExist(err) {
//	    return fmt.Errorf("file %s: %w", url, transport.ErrNotFound)
//	}
//
// The core maps Status codes onto these sentinels when it converts a
// transport status into a Go error (see AsError).

var (
	// ErrNotFound indicates the remote file does not exist.
	ErrNotFound = errors.New("remote file not found")

	// ErrAlreadyExists indicates an exclusive create found an existing file.
	ErrAlreadyExists = errors.New("remote file already exists")

	// ErrNotOpen indicates an I/O call on a handle that is not open.
	ErrNotOpen = errors.New("remote file not open")

	// ErrInvalidArgs indicates a malformed request (bad URL, negative
	// offset, nil buffer).
	ErrInvalidArgs = errors.New("invalid transport arguments")

	// ErrNotSupported indicates the server or protocol version does not
	// support the requested operation. Permanent; retrying won't help.
	ErrNotSupported = errors.New("operation not supported by transport")

	// ErrUnavailable indicates the server could not be reached. Transient;
	// retrying may succeed.
	ErrUnavailable = errors.New("transport unavailable")

	// ErrIO indicates a server-side read, write or stat failure.
	ErrIO = errors.New("transport I/O error")
)

// AsError converts a failure status into a Go error wrapping the matching
// sentinel, preserving the transport's message. Returns nil for OK.
func (s Status) AsError() error {
	if s.IsOK() {
		return nil
	}

	var base error
	switch s.Code {
	case CodeNotFound:
		base = ErrNotFound
	case CodeAlreadyExists:
		base = ErrAlreadyExists
	case CodeNotOpen:
		base = ErrNotOpen
	case CodeInvalidArgs:
		base = ErrInvalidArgs
	case CodeNotSupported:
		base = ErrNotSupported
	case CodeUnavailable:
		base = ErrUnavailable
	default:
		base = ErrIO
	}

	if s.Message == "" {
		return base
	}
	return &statusError{status: s, base: base}
}

// statusError carries the transport message while remaining matchable with
// errors.Is against the sentinel for its code.
type statusError struct {
	status Status
	base   error
}

func (e *statusError) Error() string {
	return e.status.String()
}

func (e *statusError) Unwrap() error {
	return e.base
}
