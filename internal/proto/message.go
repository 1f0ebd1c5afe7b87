package proto

import (
	"github.com/nats-lite/gonats-core/internal/buffer"
	"github.com/nats-lite/gonats-core/internal/corerr"
)

// Message is a parsed or about-to-be-formatted frame. It is allocated once
// and cycled through Reset so the free pool never reallocates the field
// buffers across messages of different kinds.
//
// Queue and MaxMsgs exist to make SUB and UNSUB frames round-trip through
// Parse/Format exactly: the wire grammar carries an optional queue group on
// SUB and an optional max_msgs on UNSUB, and a Message has to be able to
// carry both to satisfy that invariant.
type Message struct {
	Kind    Kind
	Subject *buffer.Appendable
	Sid     *buffer.Appendable
	ReplyTo *buffer.Appendable
	Queue   *buffer.Appendable
	MaxMsgs int
	Headers *Headers
	Payload *buffer.Appendable
}

// NewMessage allocates a Message with unallocated field buffers; each buffer
// is lazily Init'd on first write via copyInto.
func NewMessage() *Message {
	return &Message{
		Kind:    Unknown,
		Subject: buffer.New(buffer.DefaultRound),
		Sid:     buffer.New(buffer.DefaultRound),
		ReplyTo: buffer.New(buffer.DefaultRound),
		Queue:   buffer.New(buffer.DefaultRound),
		Headers: NewHeaders(),
		Payload: buffer.New(buffer.DefaultRound),
	}
}

// Reset clears every field's length to 0, sets MaxMsgs to 0, and sets kind.
// It never touches capacity, so a Message drawn from the free pool keeps its
// allocations across reuse.
func (m *Message) Reset(kind Kind) error {
	m.Kind = kind
	m.MaxMsgs = 0
	for _, a := range []*buffer.Appendable{m.Subject, m.Sid, m.ReplyTo, m.Queue, m.Payload} {
		if a.Cap() == 0 {
			continue
		}
		if err := a.Reset(); err != nil {
			return err
		}
	}
	return m.Headers.Reset()
}

// Free releases every field buffer's memory. Call it only when the Message
// is leaving the free pool for good, e.g. at subscriber teardown.
func (m *Message) Free() {
	m.Subject.Free()
	m.Sid.Free()
	m.ReplyTo.Free()
	m.Queue.Free()
	m.Payload.Free()
	m.Headers.Free()
}

// copyInto writes b into a, allocating a lazily on first use.
func copyInto(a *buffer.Appendable, b []byte) error {
	if a.Cap() == 0 {
		if err := a.Init(len(b)); err != nil {
			return err
		}
		return a.Append(b)
	}
	return a.Copy(b)
}

// SubjectString/SidString/ReplyToString/QueueString return the field body as
// a string, or "" when the field is empty.
func bodyString(a *buffer.Appendable) string {
	b, ok := a.Body()
	if !ok {
		return ""
	}
	return string(b)
}

func (m *Message) SubjectString() string { return bodyString(m.Subject) }
func (m *Message) SidString() string     { return bodyString(m.Sid) }
func (m *Message) ReplyToString() string { return bodyString(m.ReplyTo) }
func (m *Message) QueueString() string   { return bodyString(m.Queue) }

// Validate checks the invariants from the data model: headers/payload only
// populated for kinds that carry them, and subject/sid non-empty where the
// grammar requires them.
func (m *Message) Validate() error {
	if _, ok := m.Headers.Body(); ok && !m.Kind.HasHeader() {
		return corerr.ErrMalformedFrame
	}
	if _, ok := m.Payload.Body(); ok && !m.Kind.HasPayload() {
		return corerr.ErrMalformedFrame
	}
	switch m.Kind {
	case Sub, Unsub, Msg, Hmsg:
		if _, ok := m.Sid.Body(); !ok {
			return corerr.ErrMalformedFrame
		}
	}
	switch m.Kind {
	case Sub, Pub, Hpub, Msg, Hmsg:
		if _, ok := m.Subject.Body(); !ok {
			return corerr.ErrMalformedFrame
		}
	}
	return nil
}
