package proto

import (
	"bytes"
	"errors"
	"strings"
	"testing"

	"github.com/nats-lite/gonats-core/internal/corerr"
)

func parseOne(t *testing.T, wire string) *Message {
	t.Helper()
	p := NewParser(strings.NewReader(wire))
	m := NewMessage()
	if err := p.ReadMessage(m); err != nil {
		t.Fatalf("ReadMessage(%q): %v", wire, err)
	}
	return m
}

// Scenario 1: PUB no-reply.
func TestParsePubNoReply(t *testing.T) {
	m := parseOne(t, "PUB FOO 11\r\nHello NATS!\r\n")
	if m.Kind != Pub {
		t.Fatalf("Kind = %v, want Pub", m.Kind)
	}
	if m.SubjectString() != "FOO" {
		t.Fatalf("Subject = %q", m.SubjectString())
	}
	if _, ok := m.ReplyTo.Body(); ok {
		t.Fatal("ReplyTo should be empty")
	}
	body, ok := m.Payload.Body()
	if !ok || string(body) != "Hello NATS!" {
		t.Fatalf("Payload = %q, %v", body, ok)
	}
	if _, ok := m.Headers.Body(); ok {
		t.Fatal("Headers should be empty for PUB")
	}
}

// Scenario 2: PUB with reply.
func TestParsePubWithReply(t *testing.T) {
	m := parseOne(t, "PUB FRONT.DOOR JOKE.22 11\r\nKnock Knock\r\n")
	if m.SubjectString() != "FRONT.DOOR" {
		t.Fatalf("Subject = %q", m.SubjectString())
	}
	if m.ReplyToString() != "JOKE.22" {
		t.Fatalf("ReplyTo = %q", m.ReplyToString())
	}
	body, _ := m.Payload.Body()
	if string(body) != "Knock Knock" {
		t.Fatalf("Payload = %q", body)
	}
}

// Scenario 3: empty payload is present-but-zero-length, i.e. Body() absent.
func TestParsePubEmptyPayload(t *testing.T) {
	m := parseOne(t, "PUB NOTIFY 0\r\n\r\n")
	if m.SubjectString() != "NOTIFY" {
		t.Fatalf("Subject = %q", m.SubjectString())
	}
	if _, ok := m.Payload.Body(); ok {
		t.Fatal("Body() should be absent for zero-length payload")
	}
}

// Scenario 4: HMSG with duplicate headers.
func TestParseHmsgDuplicateHeaders(t *testing.T) {
	wire := "HMSG SUBJECT 1 REPLY 48 55\r\nNATS/1.0\r\nHeader1: X\r\nHeader1: Y\r\nHeader2: Z\r\n\r\nPAYLOAD\r\n"
	m := parseOne(t, wire)
	if m.Kind != Hmsg {
		t.Fatalf("Kind = %v, want Hmsg", m.Kind)
	}
	if m.SidString() != "1" {
		t.Fatalf("Sid = %q", m.SidString())
	}
	if m.ReplyToString() != "REPLY" {
		t.Fatalf("ReplyTo = %q", m.ReplyToString())
	}
	type pair struct{ name, value string }
	var got []pair
	if err := m.Headers.Iterate(func(n, v string) error {
		got = append(got, pair{n, v})
		return nil
	}); err != nil {
		t.Fatalf("Iterate: %v", err)
	}
	want := []pair{{"Header1", "X"}, {"Header1", "Y"}, {"Header2", "Z"}}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("pair %d = %+v, want %+v", i, got[i], want[i])
		}
	}
	payload, ok := m.Payload.Body()
	if !ok || string(payload) != "PAYLOAD" {
		t.Fatalf("Payload = %q, %v", payload, ok)
	}
}

// Scenario 5: HMSG with no payload (hdr_len == tot_len).
func TestParseHmsgNoPayload(t *testing.T) {
	wire := "HMSG SUBJECT 1 REPLY 48 48\r\nNATS/1.0\r\nHeader1: X\r\nHeader1: Y\r\nHeader2: Z\r\n\r\n\r\n"
	m := parseOne(t, wire)
	if _, ok := m.Payload.Body(); ok {
		t.Fatal("Payload should be absent")
	}
	if _, ok := m.Headers.Body(); !ok {
		t.Fatal("Headers should still be populated")
	}
}

func TestParseControlOnlyFrames(t *testing.T) {
	cases := map[string]Kind{
		"PING\r\n": Ping,
		"PONG\r\n": Pong,
		"+OK\r\n":  Ok,
	}
	for wire, kind := range cases {
		m := parseOne(t, wire)
		if m.Kind != kind {
			t.Fatalf("%q: Kind = %v, want %v", wire, m.Kind, kind)
		}
	}
}

func TestParseErr(t *testing.T) {
	m := parseOne(t, "-ERR 'Unknown Protocol Operation'\r\n")
	if m.Kind != Err {
		t.Fatalf("Kind = %v, want Err", m.Kind)
	}
	body, ok := m.Payload.Body()
	if !ok || string(body) != "Unknown Protocol Operation" {
		t.Fatalf("Payload = %q, %v", body, ok)
	}
}

func TestParseInfo(t *testing.T) {
	m := parseOne(t, `INFO {"server_id":"abc","version":"2.10.0"}` + "\r\n")
	if m.Kind != Info {
		t.Fatalf("Kind = %v, want Info", m.Kind)
	}
	body, _ := m.Payload.Body()
	if !bytes.Contains(body, []byte(`"server_id":"abc"`)) {
		t.Fatalf("Payload = %q", body)
	}
}

func TestParseSubWithAndWithoutQueue(t *testing.T) {
	m := parseOne(t, "SUB FOO 90\r\n")
	if m.SubjectString() != "FOO" || m.SidString() != "90" {
		t.Fatalf("got subject=%q sid=%q", m.SubjectString(), m.SidString())
	}
	if _, ok := m.Queue.Body(); ok {
		t.Fatal("Queue should be empty")
	}

	m2 := parseOne(t, "SUB BAR G1 91\r\n")
	if m2.QueueString() != "G1" || m2.SidString() != "91" {
		t.Fatalf("got queue=%q sid=%q", m2.QueueString(), m2.SidString())
	}
}

func TestParseUnsubWithMaxMsgs(t *testing.T) {
	m := parseOne(t, "UNSUB 90\r\n")
	if m.SidString() != "90" || m.MaxMsgs != 0 {
		t.Fatalf("got sid=%q maxMsgs=%d", m.SidString(), m.MaxMsgs)
	}
	m2 := parseOne(t, "UNSUB 90 5\r\n")
	if m2.MaxMsgs != 5 {
		t.Fatalf("MaxMsgs = %d, want 5", m2.MaxMsgs)
	}
}

func TestParseMsgWithAndWithoutReply(t *testing.T) {
	m := parseOne(t, "MSG FOO 1 5\r\nhello\r\n")
	if m.SubjectString() != "FOO" || m.SidString() != "1" {
		t.Fatalf("got subject=%q sid=%q", m.SubjectString(), m.SidString())
	}
	payload, _ := m.Payload.Body()
	if string(payload) != "hello" {
		t.Fatalf("Payload = %q", payload)
	}

	m2 := parseOne(t, "MSG FOO 1 INBOX.22 5\r\nhello\r\n")
	if m2.ReplyToString() != "INBOX.22" {
		t.Fatalf("ReplyTo = %q", m2.ReplyToString())
	}
}

func TestParseUnknownVerbIsDropped(t *testing.T) {
	m := parseOne(t, "FROBNICATE a b c\r\n")
	if m.Kind != Unknown {
		t.Fatalf("Kind = %v, want Unknown", m.Kind)
	}
}

func TestParseVerbCaseInsensitive(t *testing.T) {
	m := parseOne(t, "ping\r\n")
	if m.Kind != Ping {
		t.Fatalf("Kind = %v, want Ping for lowercase verb", m.Kind)
	}
}

func TestParseMalformedArity(t *testing.T) {
	cases := []string{
		"PUB FOO\r\n",                 // missing nbytes
		"PUB FOO A B 11\r\n",          // too many args
		"HPUB FOO\r\n",                // missing lengths
		"MSG FOO\r\n",                 // missing sid/nbytes
		"HMSG FOO 1\r\n",              // missing lengths
		"SUB\r\n",                     // missing subject/sid
		"UNSUB\r\n",                   // missing sid
	}
	for _, wire := range cases {
		p := NewParser(strings.NewReader(wire))
		m := NewMessage()
		if err := p.ReadMessage(m); !errors.Is(err, corerr.ErrMalformedFrame) {
			t.Fatalf("%q: got %v, want ErrMalformedFrame", wire, err)
		}
	}
}

func TestParseNegativeHeaderLengthDifference(t *testing.T) {
	// hdr_len (60) > tot_len (55) must fail before any read is attempted.
	wire := "HMSG SUBJECT 1 REPLY 60 55\r\n"
	p := NewParser(strings.NewReader(wire))
	m := NewMessage()
	if err := p.ReadMessage(m); !errors.Is(err, corerr.ErrMalformedFrame) {
		t.Fatalf("got %v, want ErrMalformedFrame", err)
	}
}

func TestParseClosedOnEOFMidFrame(t *testing.T) {
	wire := "PUB FOO 100\r\nshort"
	p := NewParser(strings.NewReader(wire))
	m := NewMessage()
	if err := p.ReadMessage(m); !errors.Is(err, corerr.ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

func TestParseMultipleFramesSequentially(t *testing.T) {
	wire := "PING\r\nPUB A 1\r\nx\r\nPONG\r\n"
	p := NewParser(strings.NewReader(wire))
	kinds := []Kind{Ping, Pub, Pong}
	for _, want := range kinds {
		m := NewMessage()
		if err := p.ReadMessage(m); err != nil {
			t.Fatalf("ReadMessage: %v", err)
		}
		if m.Kind != want {
			t.Fatalf("Kind = %v, want %v", m.Kind, want)
		}
	}
}
