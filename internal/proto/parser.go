package proto

import (
	"bufio"
	"bytes"
	"io"
	"strconv"

	"github.com/nats-lite/gonats-core/internal/corerr"
)

// Parser decodes one frame at a time from a byte stream. It keeps a small
// bufio.Reader over the transport so control lines can be scanned without a
// syscall per byte; that buffering is internal to the wire codec and carries
// no allocation-per-field cost since bodies are read through one scratch
// slice, reused across frames, and copied into the caller-supplied Message's
// Appendables.
type Parser struct {
	r       *bufio.Reader
	scratch []byte
}

// NewParser wraps r for frame-at-a-time decoding.
func NewParser(r io.Reader) *Parser {
	return &Parser{r: bufio.NewReaderSize(r, 4096)}
}

// ReadMessage fills m according to the next frame on the stream. On a
// grammar violation it returns ErrMalformedFrame; on transport EOF mid-frame
// it returns ErrClosed. m is filled destructively regardless of outcome;
// callers that get an error are responsible for returning m to the free pool
// rather than delivering it.
func (p *Parser) ReadMessage(m *Message) error {
	line, err := p.readLine()
	if err != nil {
		return err
	}
	verb, args := splitVerb(line)
	kind, ok := kindForVerb(verb)
	if !ok {
		return m.Reset(Unknown)
	}
	if err := m.Reset(kind); err != nil {
		return err
	}
	switch kind {
	case Ping, Pong, Ok:
		return nil
	case Err:
		return copyInto(m.Payload, bytes.Trim(args, "'"))
	case Info, Connect:
		return copyInto(m.Payload, args)
	case Sub:
		return p.parseSub(m, args)
	case Unsub:
		return p.parseUnsub(m, args)
	case Pub:
		return p.parsePub(m, args, false)
	case Hpub:
		return p.parsePub(m, args, true)
	case Msg:
		return p.parseMsg(m, args, false)
	case Hmsg:
		return p.parseMsg(m, args, true)
	default:
		return corerr.ErrMalformedFrame
	}
}

func (p *Parser) readLine() ([]byte, error) {
	line, err := p.r.ReadBytes('\n')
	if err != nil {
		if err == io.EOF {
			return nil, corerr.ErrClosed
		}
		return nil, corerr.ErrIO
	}
	if len(line) < 2 || line[len(line)-2] != '\r' {
		return nil, corerr.ErrMalformedFrame
	}
	return line[:len(line)-2], nil
}

func (p *Parser) readExact(n int) ([]byte, error) {
	if n == 0 {
		return nil, nil
	}
	if cap(p.scratch) < n {
		p.scratch = make([]byte, n)
	}
	buf := p.scratch[:n]
	if _, err := io.ReadFull(p.r, buf); err != nil {
		if err == io.EOF || err == io.ErrUnexpectedEOF {
			return nil, corerr.ErrClosed
		}
		return nil, corerr.ErrIO
	}
	return buf, nil
}

func (p *Parser) expectCRLF() error {
	tail, err := p.readExact(2)
	if err != nil {
		return err
	}
	if tail[0] != '\r' || tail[1] != '\n' {
		return corerr.ErrMalformedFrame
	}
	return nil
}

// splitVerb splits a control line on its first run of whitespace, returning
// the verb and the (left-trimmed) remainder.
func splitVerb(line []byte) (verb, rest []byte) {
	i := bytes.IndexAny(line, " \t")
	if i < 0 {
		return line, nil
	}
	return line[:i], bytes.TrimLeft(line[i+1:], " \t")
}

func splitFields(b []byte) [][]byte {
	return bytes.FieldsFunc(b, func(r rune) bool { return r == ' ' || r == '\t' })
}

func (p *Parser) parseSub(m *Message, args []byte) error {
	fields := splitFields(args)
	if len(fields) < 2 || len(fields) > 3 {
		return corerr.ErrMalformedFrame
	}
	if err := copyInto(m.Subject, fields[0]); err != nil {
		return err
	}
	sidIdx := 1
	if len(fields) == 3 {
		if err := copyInto(m.Queue, fields[1]); err != nil {
			return err
		}
		sidIdx = 2
	}
	return copyInto(m.Sid, fields[sidIdx])
}

func (p *Parser) parseUnsub(m *Message, args []byte) error {
	fields := splitFields(args)
	if len(fields) < 1 || len(fields) > 2 {
		return corerr.ErrMalformedFrame
	}
	if err := copyInto(m.Sid, fields[0]); err != nil {
		return err
	}
	if len(fields) == 2 {
		n, err := strconv.Atoi(string(fields[1]))
		if err != nil || n < 0 {
			return corerr.ErrMalformedFrame
		}
		m.MaxMsgs = n
	}
	return nil
}

// parsePub handles PUB and HPUB, which share "subject [reply] <lengths>".
func (p *Parser) parsePub(m *Message, args []byte, hasHeader bool) error {
	fields := splitFields(args)
	minFields, maxFields := 2, 3
	if hasHeader {
		minFields, maxFields = 3, 4
	}
	if len(fields) < minFields || len(fields) > maxFields {
		return corerr.ErrMalformedFrame
	}
	if err := copyInto(m.Subject, fields[0]); err != nil {
		return err
	}
	idx := 1
	if len(fields) == maxFields {
		if err := copyInto(m.ReplyTo, fields[1]); err != nil {
			return err
		}
		idx = 2
	}
	return p.parseLengthsAndBody(m, fields, idx, hasHeader)
}

// parseMsg handles MSG and HMSG, which share "subject sid [reply] <lengths>".
func (p *Parser) parseMsg(m *Message, args []byte, hasHeader bool) error {
	fields := splitFields(args)
	minFields, maxFields := 3, 4
	if hasHeader {
		minFields, maxFields = 4, 5
	}
	if len(fields) < minFields || len(fields) > maxFields {
		return corerr.ErrMalformedFrame
	}
	if err := copyInto(m.Subject, fields[0]); err != nil {
		return err
	}
	if err := copyInto(m.Sid, fields[1]); err != nil {
		return err
	}
	idx := 2
	if len(fields) == maxFields {
		if err := copyInto(m.ReplyTo, fields[2]); err != nil {
			return err
		}
		idx = 3
	}
	return p.parseLengthsAndBody(m, fields, idx, hasHeader)
}

func (p *Parser) parseLengthsAndBody(m *Message, fields [][]byte, idx int, hasHeader bool) error {
	if !hasHeader {
		n, err := strconv.Atoi(string(fields[idx]))
		if err != nil || n < 0 {
			return corerr.ErrMalformedFrame
		}
		payload, err := p.readExact(n)
		if err != nil {
			return err
		}
		if err := copyInto(m.Payload, payload); err != nil {
			return err
		}
		return p.expectCRLF()
	}
	hdrLen, err1 := strconv.Atoi(string(fields[idx]))
	totLen, err2 := strconv.Atoi(string(fields[idx+1]))
	if err1 != nil || err2 != nil || hdrLen < 0 || totLen < hdrLen {
		return corerr.ErrMalformedFrame
	}
	return p.readHeaderedBody(m, hdrLen, totLen)
}

func (p *Parser) readHeaderedBody(m *Message, hdrLen, totLen int) error {
	raw, err := p.readExact(totLen)
	if err != nil {
		return err
	}
	header := raw[:hdrLen]
	if !bytes.HasPrefix(header, []byte("NATS/1.0")) || !bytes.HasSuffix(header, []byte(crlf+crlf)) {
		return corerr.ErrMalformedFrame
	}
	if err := m.Headers.LoadRaw(header); err != nil {
		return err
	}
	if err := copyInto(m.Payload, raw[hdrLen:]); err != nil {
		return err
	}
	return p.expectCRLF()
}
