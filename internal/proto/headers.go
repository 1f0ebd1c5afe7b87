package proto

import (
	"bytes"
	"strings"

	"github.com/nats-lite/gonats-core/internal/buffer"
	"github.com/nats-lite/gonats-core/internal/corerr"
)

const (
	headerPreface = "NATS/1.0\r\n"
	crlf          = "\r\n"
)

// Headers wraps an Appendable holding a NATS/1.0 header block: the preface
// line, zero or more "name:value\r\n" fields, and a terminating empty line.
// The block is empty (length 0) until the first successful Append.
type Headers struct {
	buf *buffer.Appendable
}

// NewHeaders returns an empty, unallocated Headers value.
func NewHeaders() *Headers {
	return &Headers{buf: buffer.New(buffer.DefaultRound)}
}

func isASCIISpace(r rune) bool {
	switch r {
	case ' ', '\t', '\r', '\n':
		return true
	default:
		return false
	}
}

func (h *Headers) ensureAllocated() error {
	if h.buf.Cap() > 0 {
		return nil
	}
	return h.buf.Init(len(headerPreface))
}

// Append trims ASCII whitespace from name and value, rejects either if it
// becomes empty, and preserves the two-CRLF terminator by shrinking it before
// writing the new field and re-appending it.
func (h *Headers) Append(name, value string) error {
	name = strings.TrimFunc(name, isASCIISpace)
	value = strings.TrimFunc(value, isASCIISpace)
	if name == "" {
		return corerr.ErrBadName
	}
	if value == "" {
		return corerr.ErrBadValue
	}
	if err := h.ensureAllocated(); err != nil {
		return err
	}
	if h.buf.Len() == 0 {
		if err := h.buf.Append([]byte(headerPreface)); err != nil {
			return err
		}
	} else if err := h.buf.Shrink(len(crlf)); err != nil {
		return err
	}
	var line bytes.Buffer
	line.WriteString(name)
	line.WriteByte(':')
	line.WriteString(value)
	line.WriteString(crlf)
	line.WriteString(crlf)
	return h.buf.Append(line.Bytes())
}

// LoadRaw replaces the block contents with raw wire bytes, used by the
// parser after it has read exactly hdr_len bytes from the stream.
func (h *Headers) LoadRaw(raw []byte) error {
	if len(raw) == 0 {
		return h.Reset()
	}
	if h.buf.Cap() == 0 {
		if err := h.buf.Init(len(raw)); err != nil {
			return err
		}
	}
	return h.buf.Copy(raw)
}

// Body returns the active header block, or (nil, false) when empty.
func (h *Headers) Body() ([]byte, bool) {
	return h.buf.Body()
}

// Reset clears the block; the next Append re-emits the NATS/1.0 preface.
func (h *Headers) Reset() error {
	if h.buf.Cap() == 0 {
		return nil
	}
	return h.buf.Reset()
}

// Free releases the underlying buffer.
func (h *Headers) Free() {
	h.buf.Free()
}

// Iterate calls fn for each (name, value) pair in insertion order, skipping
// the NATS/1.0 status line and stopping at the empty terminator line. It
// fails with ErrNoHeaders when the block is empty. Iteration does not
// consume state and can be repeated.
func (h *Headers) Iterate(fn func(name, value string) error) error {
	body, ok := h.buf.Body()
	if !ok {
		return corerr.ErrNoHeaders
	}
	idx := bytes.Index(body, []byte(crlf))
	if idx < 0 {
		return corerr.ErrMalformedFrame
	}
	rest := body[idx+len(crlf):]
	for len(rest) > 0 {
		lineEnd := bytes.Index(rest, []byte(crlf))
		if lineEnd < 0 {
			return corerr.ErrMalformedFrame
		}
		line := rest[:lineEnd]
		rest = rest[lineEnd+len(crlf):]
		if len(line) == 0 {
			return nil
		}
		parts := bytes.SplitN(line, []byte(":"), 2)
		if len(parts) != 2 {
			continue
		}
		name := string(bytes.TrimSpace(parts[0]))
		value := string(bytes.TrimSpace(parts[1]))
		if err := fn(name, value); err != nil {
			return err
		}
	}
	return corerr.ErrMalformedFrame
}
