package proto

import (
	"bytes"
	"strconv"

	"github.com/nats-lite/gonats-core/internal/corerr"
)

// The formatter is a set of pure (kind, fields) -> bytes encoders; it does no
// I/O. Connection.WriteFrame owns the retry-until-complete write loop and the
// per-connection write mutex described in the concurrency model, so the
// encoders here only ever need to build one contiguous frame.

// FormatPing encodes a client-side keepalive probe.
func FormatPing() []byte { return []byte("PING" + crlf) }

// FormatPong encodes a keepalive reply.
func FormatPong() []byte { return []byte("PONG" + crlf) }

// FormatSub encodes a subscription request. queue may be empty.
func FormatSub(subject, queue, sid string) []byte {
	var b bytes.Buffer
	b.WriteString("SUB ")
	b.WriteString(subject)
	b.WriteByte(' ')
	if queue != "" {
		b.WriteString(queue)
		b.WriteByte(' ')
	}
	b.WriteString(sid)
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatUnsub encodes an unsubscribe request. maxMsgs <= 0 omits the field.
func FormatUnsub(sid string, maxMsgs int) []byte {
	var b bytes.Buffer
	b.WriteString("UNSUB ")
	b.WriteString(sid)
	if maxMsgs > 0 {
		b.WriteByte(' ')
		b.WriteString(strconv.Itoa(maxMsgs))
	}
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatConnect encodes the CONNECT control line around a pre-marshaled JSON body.
func FormatConnect(json []byte) []byte {
	var b bytes.Buffer
	b.WriteString("CONNECT ")
	b.Write(json)
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatInfo encodes a server-side INFO line around a pre-marshaled JSON body.
// The client never emits INFO itself; this exists so a test fake server (or
// the round-trip property in the test suite) can produce byte-exact frames.
func FormatInfo(json []byte) []byte {
	var b bytes.Buffer
	b.WriteString("INFO ")
	b.Write(json)
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatErr encodes a server-side -ERR line. Also test/fake-server support.
func FormatErr(reason string) []byte {
	return []byte("-ERR '" + reason + "'" + crlf)
}

// FormatOk encodes a server-side +OK line. Also test/fake-server support.
func FormatOk() []byte { return []byte("+OK" + crlf) }

// FormatPub encodes a PUB frame; reply may be empty.
func FormatPub(subject, reply string, payload []byte) []byte {
	var b bytes.Buffer
	writePubHead(&b, "PUB", subject, reply)
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteString(crlf)
	b.Write(payload)
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatHpub encodes an HPUB frame; reply may be empty.
func FormatHpub(subject, reply string, headerBlock, payload []byte) []byte {
	var b bytes.Buffer
	writePubHead(&b, "HPUB", subject, reply)
	b.WriteString(strconv.Itoa(len(headerBlock)))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(headerBlock) + len(payload)))
	b.WriteString(crlf)
	b.Write(headerBlock)
	b.Write(payload)
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatMsg encodes a server-side MSG frame. Also test/fake-server support:
// the client itself never emits MSG, only decodes it.
func FormatMsg(subject, sid, reply string, payload []byte) []byte {
	var b bytes.Buffer
	writeMsgHead(&b, "MSG", subject, sid, reply)
	b.WriteString(strconv.Itoa(len(payload)))
	b.WriteString(crlf)
	b.Write(payload)
	b.WriteString(crlf)
	return b.Bytes()
}

// FormatHmsg encodes a server-side HMSG frame. Also test/fake-server support.
func FormatHmsg(subject, sid, reply string, headerBlock, payload []byte) []byte {
	var b bytes.Buffer
	writeMsgHead(&b, "HMSG", subject, sid, reply)
	b.WriteString(strconv.Itoa(len(headerBlock)))
	b.WriteByte(' ')
	b.WriteString(strconv.Itoa(len(headerBlock) + len(payload)))
	b.WriteString(crlf)
	b.Write(headerBlock)
	b.Write(payload)
	b.WriteString(crlf)
	return b.Bytes()
}

func writePubHead(b *bytes.Buffer, verb, subject, reply string) {
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(subject)
	b.WriteByte(' ')
	if reply != "" {
		b.WriteString(reply)
		b.WriteByte(' ')
	}
}

func writeMsgHead(b *bytes.Buffer, verb, subject, sid, reply string) {
	b.WriteString(verb)
	b.WriteByte(' ')
	b.WriteString(subject)
	b.WriteByte(' ')
	b.WriteString(sid)
	b.WriteByte(' ')
	if reply != "" {
		b.WriteString(reply)
		b.WriteByte(' ')
	}
}

// FormatMessage dispatches on m.Kind to reproduce the frame it was parsed
// from, byte for byte. It underlies the round-trip testable property:
// format(parse(bytes)) == bytes for every grammatically valid input.
func FormatMessage(m *Message) ([]byte, error) {
	switch m.Kind {
	case Ping:
		return FormatPing(), nil
	case Pong:
		return FormatPong(), nil
	case Ok:
		return FormatOk(), nil
	case Err:
		body, _ := m.Payload.Body()
		return FormatErr(string(body)), nil
	case Info:
		body, _ := m.Payload.Body()
		return FormatInfo(body), nil
	case Connect:
		body, _ := m.Payload.Body()
		return FormatConnect(body), nil
	case Sub:
		return FormatSub(m.SubjectString(), m.QueueString(), m.SidString()), nil
	case Unsub:
		return FormatUnsub(m.SidString(), m.MaxMsgs), nil
	case Pub:
		payload, _ := m.Payload.Body()
		return FormatPub(m.SubjectString(), m.ReplyToString(), payload), nil
	case Hpub:
		payload, _ := m.Payload.Body()
		header, _ := m.Headers.Body()
		return FormatHpub(m.SubjectString(), m.ReplyToString(), header, payload), nil
	case Msg:
		payload, _ := m.Payload.Body()
		return FormatMsg(m.SubjectString(), m.SidString(), m.ReplyToString(), payload), nil
	case Hmsg:
		payload, _ := m.Payload.Body()
		header, _ := m.Headers.Body()
		return FormatHmsg(m.SubjectString(), m.SidString(), m.ReplyToString(), header, payload), nil
	default:
		return nil, corerr.ErrMalformedFrame
	}
}
