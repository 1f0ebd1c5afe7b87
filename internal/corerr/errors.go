// Package corerr collects the sentinel errors shared by the buffer, proto,
// mailbox and subscriber layers so callers can use errors.Is against a single
// vocabulary regardless of which layer raised the error.
package corerr

import "errors"

var (
	// ErrAllocFailed reports that a buffer could not be grown or allocated.
	ErrAllocFailed = errors.New("gonats: buffer allocation failed")
	// ErrNotAllocated reports an operation on an Appendable that was never Init'd.
	ErrNotAllocated = errors.New("gonats: buffer not allocated")
	// ErrUnderflow reports Shrink(k) called with k greater than the active length.
	ErrUnderflow = errors.New("gonats: buffer shrink underflow")
	// ErrBadName reports a header name that trimmed to empty.
	ErrBadName = errors.New("gonats: header name empty after trim")
	// ErrBadValue reports a header value that trimmed to empty.
	ErrBadValue = errors.New("gonats: header value empty after trim")
	// ErrNoHeaders reports Iterate called on an empty header block.
	ErrNoHeaders = errors.New("gonats: no headers present")
	// ErrMalformedFrame reports a wire grammar violation.
	ErrMalformedFrame = errors.New("gonats: malformed frame")
	// ErrClosed reports a transport EOF or a mailbox that has been closed.
	ErrClosed = errors.New("gonats: closed")
	// ErrTimeout reports a Fetch or mailbox receive deadline expiring.
	ErrTimeout = errors.New("gonats: timeout")
	// ErrIO reports a transport-level read or write failure.
	ErrIO = errors.New("gonats: io error")
	// ErrConnectFailed reports that dialing or the initial CONNECT handshake failed.
	ErrConnectFailed = errors.New("gonats: connect failed")
	// ErrInvalidState reports a Subscriber method called outside its allowed state.
	ErrInvalidState = errors.New("gonats: invalid subscriber state")
	// ErrDisconnected names a reader-thread exit after a fatal transport or
	// protocol error. No function in this module returns it: Fetch reports
	// that case, like a caller-initiated Disconnect, as ErrClosed.
	ErrDisconnected = errors.New("gonats: disconnected")
)
