package subscriber

import (
	"errors"
	"net"
	"testing"
	"time"

	"github.com/nats-lite/gonats-core/internal/config"
	"github.com/nats-lite/gonats-core/internal/corerr"
	"github.com/nats-lite/gonats-core/internal/mailbox"
	"github.com/nats-lite/gonats-core/internal/proto"
	"github.com/nats-lite/gonats-core/internal/transport"
	"github.com/nats-lite/gonats-core/internal/wireconn"
)

// fakeServer is the other end of a net.Pipe, driven directly from the test
// goroutine so it can assert on frames the Subscriber writes and inject
// frames as if a real NATS server had sent them.
type fakeServer struct {
	conn *wireconn.Connection
	pool *mailbox.Mailbox[*proto.Message]
}

func (f *fakeServer) read(t *testing.T) *proto.Message {
	t.Helper()
	m, err := f.conn.ReadMessage(f.pool)
	if err != nil {
		t.Fatalf("fake server read: %v", err)
	}
	return m
}

func newFakeServerPair(t *testing.T) (*Subscriber, *fakeServer) {
	t.Helper()
	clientSide, serverSide := net.Pipe()
	srv := &fakeServer{
		conn: wireconn.New(transport.Wrap(serverSide)),
		pool: mailbox.New[*proto.Message](0),
	}

	sub := New("test-sub", nil)
	dialed := make(chan error, 1)
	go func() {
		dialed <- sub.ConnectTransport(transport.Wrap(clientSide), config.ConnectOpts{Name: "test"})
	}()

	handshake := srv.read(t)
	if handshake.Kind != proto.Connect {
		t.Fatalf("first frame kind = %v, want Connect", handshake.Kind)
	}

	if err := <-dialed; err != nil {
		t.Fatalf("ConnectTransport: %v", err)
	}
	return sub, srv
}

func TestSubscribeEmitsSubFrame(t *testing.T) {
	sub, srv := newFakeServerPair(t)
	defer sub.Disconnect()

	// net.Pipe writes block until the peer reads, so the SUB is issued from
	// its own goroutine while the fake server reads it.
	subErr := make(chan error, 1)
	go func() { subErr <- sub.Subscribe("FOO", "", "1") }()

	m := srv.read(t)
	if err := <-subErr; err != nil {
		t.Fatalf("Subscribe: %v", err)
	}
	if m.Kind != proto.Sub || m.SubjectString() != "FOO" || m.SidString() != "1" {
		t.Fatalf("got kind=%v subject=%q sid=%q", m.Kind, m.SubjectString(), m.SidString())
	}
}

func TestUnsubscribeEmitsUnsubFrame(t *testing.T) {
	sub, srv := newFakeServerPair(t)
	defer sub.Disconnect()

	unsubErr := make(chan error, 1)
	go func() { unsubErr <- sub.Unsubscribe("7", 3) }()

	m := srv.read(t)
	if err := <-unsubErr; err != nil {
		t.Fatalf("Unsubscribe: %v", err)
	}
	if m.Kind != proto.Unsub || m.SidString() != "7" || m.MaxMsgs != 3 {
		t.Fatalf("got kind=%v sid=%q maxMsgs=%d", m.Kind, m.SidString(), m.MaxMsgs)
	}
}

func TestFetchDeliversPublishedMessage(t *testing.T) {
	sub, srv := newFakeServerPair(t)
	defer sub.Disconnect()

	if err := srv.conn.WriteFrame(proto.FormatMsg("FOO", "1", "", []byte("hello"))); err != nil {
		t.Fatalf("server write MSG: %v", err)
	}

	m, err := sub.Fetch(time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if m.Kind != proto.Msg || m.SubjectString() != "FOO" {
		t.Fatalf("got kind=%v subject=%q", m.Kind, m.SubjectString())
	}
	body, _ := m.Payload.Body()
	if string(body) != "hello" {
		t.Fatalf("Payload = %q", body)
	}
	if err := sub.Reuse(m); err != nil {
		t.Fatalf("Reuse: %v", err)
	}
}

func TestFetchPreservesServerOrder(t *testing.T) {
	sub, srv := newFakeServerPair(t)
	defer sub.Disconnect()

	for i, sid := range []string{"1", "2", "3"} {
		payload := []byte{byte('a' + i)}
		if err := srv.conn.WriteFrame(proto.FormatMsg("FOO", sid, "", payload)); err != nil {
			t.Fatalf("server write MSG %d: %v", i, err)
		}
	}
	for _, want := range []string{"1", "2", "3"} {
		m, err := sub.Fetch(time.Second)
		if err != nil {
			t.Fatalf("Fetch: %v", err)
		}
		if m.SidString() != want {
			t.Fatalf("got sid=%q, want %q", m.SidString(), want)
		}
		_ = sub.Reuse(m)
	}
}

func TestFetchTimesOutWhenNothingArrives(t *testing.T) {
	sub, _ := newFakeServerPair(t)
	defer sub.Disconnect()

	_, err := sub.Fetch(20 * time.Millisecond)
	if !errors.Is(err, corerr.ErrTimeout) {
		t.Fatalf("got %v, want ErrTimeout", err)
	}
}

func TestDisconnectIsIdempotentAndBoundsShutdownTime(t *testing.T) {
	sub, _ := newFakeServerPair(t)

	start := time.Now()
	if err := sub.Disconnect(); err != nil {
		t.Fatalf("first Disconnect: %v", err)
	}
	if elapsed := time.Since(start); elapsed > time.Second {
		t.Fatalf("Disconnect took too long: %v", elapsed)
	}
	if err := sub.Disconnect(); err != nil {
		t.Fatalf("second Disconnect: %v", err)
	}
	if sub.State() != Stopped {
		t.Fatalf("State = %v, want Stopped", sub.State())
	}
}

func TestFetchAfterDisconnectReturnsClosed(t *testing.T) {
	sub, _ := newFakeServerPair(t)
	_ = sub.Disconnect()

	_, err := sub.Fetch(0)
	if !errors.Is(err, corerr.ErrClosed) {
		t.Fatalf("got %v, want ErrClosed", err)
	}
}

// TestShutdownWhileReaderBlockedOnRead exercises the shutdown-race scenario:
// disconnecting while the reader thread is parked inside a transport read
// must still return within bounded time.
func TestShutdownWhileReaderBlockedOnRead(t *testing.T) {
	sub, _ := newFakeServerPair(t)

	start := time.Now()
	done := make(chan error, 1)
	go func() { done <- sub.Disconnect() }()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Disconnect: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Disconnect did not return while reader was blocked on read")
	}
	if elapsed := time.Since(start); elapsed > 2*time.Second {
		t.Fatalf("Disconnect took too long: %v", elapsed)
	}

	if _, err := sub.Fetch(0); !errors.Is(err, corerr.ErrClosed) {
		t.Fatalf("Fetch after shutdown race: got %v, want ErrClosed", err)
	}
}

func TestSubscribeBeforeConnectFails(t *testing.T) {
	sub := New("test-sub", nil)
	if err := sub.Subscribe("FOO", "", "1"); !errors.Is(err, corerr.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestFetchBeforeConnectFails(t *testing.T) {
	sub := New("test-sub", nil)
	if _, err := sub.Fetch(0); !errors.Is(err, corerr.ErrInvalidState) {
		t.Fatalf("got %v, want ErrInvalidState", err)
	}
}

func TestReuseReturnsMessageToFreePool(t *testing.T) {
	sub, srv := newFakeServerPair(t)
	defer sub.Disconnect()

	if err := srv.conn.WriteFrame(proto.FormatPing()); err != nil {
		t.Fatalf("server write PING: %v", err)
	}
	m, err := sub.Fetch(time.Second)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if err := sub.Reuse(m); err != nil {
		t.Fatalf("Reuse: %v", err)
	}
	if sub.freePool.Len() != 1 {
		t.Fatalf("freePool.Len() = %d, want 1", sub.freePool.Len())
	}
}

func TestFetchReturnsClosedAfterMalformedFrame(t *testing.T) {
	sub, srv := newFakeServerPair(t)
	defer sub.Disconnect()

	if err := srv.conn.WriteFrame([]byte("GARBLED\r\n")); err != nil {
		t.Fatalf("server write garbage: %v", err)
	}
	// GARBLED is an unrecognized verb, not a malformed frame, so the reader
	// keeps running; write a real grammar violation to trigger the fatal path.
	if err := srv.conn.WriteFrame([]byte("PUB\r\n")); err != nil {
		t.Fatalf("server write malformed PUB: %v", err)
	}

	if _, err := sub.Fetch(time.Second); !errors.Is(err, corerr.ErrClosed) {
		t.Fatalf("Fetch after fatal reader error: got %v, want ErrClosed", err)
	}
}
