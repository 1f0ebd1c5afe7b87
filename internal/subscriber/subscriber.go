// Package subscriber orchestrates a connection's lifecycle: dialing,
// issuing SUB/UNSUB, running the background reader loop, and exposing a
// blocking, bounded fetch to the consumer.
package subscriber

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/nats-lite/gonats-core/internal/config"
	"github.com/nats-lite/gonats-core/internal/corerr"
	"github.com/nats-lite/gonats-core/internal/mailbox"
	"github.com/nats-lite/gonats-core/internal/proto"
	"github.com/nats-lite/gonats-core/internal/transport"
	"github.com/nats-lite/gonats-core/internal/wireconn"
)

// State is the Subscriber's lifecycle stage.
type State int

const (
	Fresh State = iota
	Running
	Stopping
	Stopped
)

func (s State) String() string {
	switch s {
	case Fresh:
		return "Fresh"
	case Running:
		return "Running"
	case Stopping:
		return "Stopping"
	case Stopped:
		return "Stopped"
	default:
		return "Unknown"
	}
}

// DeliveryCapacity bounds the delivery mailbox; a full mailbox blocks the
// reader thread, applying backpressure to the underlying transport.
const DeliveryCapacity = 512

// Subscriber is not safe for concurrent Connect/Disconnect calls, but Fetch,
// Reuse, Subscribe, and Unsubscribe may be called from a consumer thread
// concurrently with the background reader thread, per the two-thread model.
type Subscriber struct {
	mu    sync.Mutex
	state State

	name     string
	recorder Recorder

	conn *wireconn.Connection

	freePool *mailbox.Mailbox[*proto.Message]
	delivery *mailbox.Mailbox[*proto.Message]

	attention  chan struct{}
	readerDone chan struct{}
}

// New returns a Subscriber in the Fresh state, identified by name in metrics
// labels. rec may be nil, in which case no instrumentation is recorded.
func New(name string, rec Recorder) *Subscriber {
	return &Subscriber{state: Fresh, name: name, recorder: rec}
}

func (s *Subscriber) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Connect dials the transport, sends CONNECT, spawns the reader thread, and
// transitions Fresh to Running. On failure the Subscriber stays Fresh and no
// background thread exists.
func (s *Subscriber) Connect(ctx context.Context, opts config.ConnectOpts) error {
	tr, err := transport.Dial(ctx, opts.Address, opts.TLSConfig)
	if err != nil {
		return corerr.ErrConnectFailed
	}
	return s.ConnectTransport(tr, opts)
}

// ConnectTransport is Connect minus the dial step, taking an already
// established Transport. Production callers use Connect; tests use this
// seam to drive the Subscriber over a net.Pipe or other in-memory Transport.
func (s *Subscriber) ConnectTransport(tr transport.Transport, opts config.ConnectOpts) error {
	s.mu.Lock()
	if s.state != Fresh {
		s.mu.Unlock()
		return corerr.ErrInvalidState
	}
	s.mu.Unlock()

	conn := wireconn.New(tr)

	payload, err := config.BuildConnectJSON(opts)
	if err != nil {
		_ = conn.Close()
		return corerr.ErrConnectFailed
	}
	if err := conn.WriteFrame(proto.FormatConnect(payload)); err != nil {
		_ = conn.Close()
		return corerr.ErrConnectFailed
	}

	s.mu.Lock()
	s.conn = conn
	s.freePool = mailbox.New[*proto.Message](0)
	s.delivery = mailbox.New[*proto.Message](DeliveryCapacity)
	s.attention = make(chan struct{}, 1)
	s.readerDone = make(chan struct{})
	s.state = Running
	s.mu.Unlock()

	go s.readLoop()
	return nil
}

// raiseAttention posts the edge-triggered stop signal without blocking.
func raiseAttention(ch chan struct{}) {
	select {
	case ch <- struct{}{}:
	default:
	}
}

func attentionRaised(ch chan struct{}) bool {
	select {
	case <-ch:
		return true
	default:
		return false
	}
}

// readLoop is the reader thread's entire body: pull a frame, hand it to the
// consumer via the delivery mailbox, repeat until a fatal error or shutdown.
func (s *Subscriber) readLoop() {
	defer close(s.readerDone)
	for {
		if attentionRaised(s.attention) {
			return
		}
		m, err := s.conn.ReadMessage(s.freePool)
		if err != nil {
			_ = s.freePool.Send(m)
			raiseAttention(s.attention)
			s.failed()
			return
		}
		if s.recorder != nil {
			s.recorder.FrameReceived(s.name, m.Kind.String())
		}
		if m.Kind == proto.Unknown {
			// Grammar allows unrecognized verbs; the frame is consumed and
			// dropped rather than surfaced to the consumer.
			_ = s.freePool.Send(m)
			continue
		}
		if err := s.delivery.Send(m); err != nil {
			_ = s.freePool.Send(m)
			return
		}
		if s.recorder != nil {
			s.recorder.DeliveryDepth(s.name, s.delivery.Len())
			s.recorder.FreePoolDepth(s.name, s.freePool.Len())
		}
	}
}

// failed tears the Subscriber down after a fatal reader error, with no
// caller Disconnect involved. It runs on the reader goroutine itself, so
// unlike Disconnect it cannot join readerDone; the reader is already on its
// way out by the time failed returns. Guarded by state so whichever of
// failed or a concurrent Disconnect gets to the lock first does the actual
// teardown and the other becomes a no-op.
func (s *Subscriber) failed() {
	s.mu.Lock()
	if s.state == Stopping || s.state == Stopped {
		s.mu.Unlock()
		return
	}
	s.state = Stopping
	conn := s.conn
	delivery := s.delivery
	freePool := s.freePool
	s.mu.Unlock()

	_ = conn.Close()

	delivery.Close()
	for _, m := range delivery.Drain() {
		m.Free()
	}
	freePool.Close()
	for _, m := range freePool.Drain() {
		m.Free()
	}

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	if s.recorder != nil {
		s.recorder.Disconnected(s.name)
	}
}

// Subscribe emits SUB. queue may be empty for a non-queue subscription.
func (s *Subscriber) Subscribe(subject, queue, sid string) error {
	conn, err := s.runningConn()
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(proto.FormatSub(subject, queue, sid)); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.FrameSent(s.name, proto.Sub.String())
	}
	return nil
}

// Unsubscribe emits UNSUB. maxMsgs <= 0 unsubscribes immediately.
func (s *Subscriber) Unsubscribe(sid string, maxMsgs int) error {
	conn, err := s.runningConn()
	if err != nil {
		return err
	}
	if err := conn.WriteFrame(proto.FormatUnsub(sid, maxMsgs)); err != nil {
		return err
	}
	if s.recorder != nil {
		s.recorder.FrameSent(s.name, proto.Unsub.String())
	}
	return nil
}

func (s *Subscriber) runningConn() (*wireconn.Connection, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != Running {
		return nil, corerr.ErrInvalidState
	}
	return s.conn, nil
}

// Fetch blocks on the delivery mailbox up to timeout. timeout <= 0 waits
// forever. It returns the next Message, ErrTimeout on an expired deadline,
// or ErrClosed once the reader thread has exited (whether from a caller
// Disconnect or a fatal transport/protocol error) and the mailbox has been
// drained of whatever arrived before that.
func (s *Subscriber) Fetch(timeout time.Duration) (*proto.Message, error) {
	s.mu.Lock()
	state := s.state
	delivery := s.delivery
	s.mu.Unlock()
	if state == Fresh {
		return nil, corerr.ErrInvalidState
	}
	if state == Stopped {
		return nil, corerr.ErrClosed
	}
	m, err := delivery.Receive(timeout)
	if err != nil && s.recorder != nil && errors.Is(err, corerr.ErrTimeout) {
		s.recorder.FetchTimeout(s.name)
	}
	return m, err
}

// Reuse returns m to the free pool. The caller must not touch m afterwards.
func (s *Subscriber) Reuse(m *proto.Message) error {
	s.mu.Lock()
	pool := s.freePool
	s.mu.Unlock()
	if pool == nil {
		return corerr.ErrInvalidState
	}
	return pool.Send(m)
}

// Disconnect is idempotent. It raises the attention signal, closes the
// transport (which unblocks a reader thread parked in a transport read),
// joins the reader, drains and frees both mailboxes, and transitions to
// Stopped. It returns once the reader thread has exited, bounding shutdown
// time even if the reader was blocked on a read when Disconnect was called.
func (s *Subscriber) Disconnect() error {
	s.mu.Lock()
	if s.state == Stopped || s.state == Fresh {
		s.state = Stopped
		s.mu.Unlock()
		return nil
	}
	if s.state == Stopping {
		readerDone := s.readerDone
		s.mu.Unlock()
		<-readerDone
		return nil
	}
	s.state = Stopping
	conn := s.conn
	delivery := s.delivery
	freePool := s.freePool
	attention := s.attention
	readerDone := s.readerDone
	s.mu.Unlock()

	raiseAttention(attention)
	_ = conn.Close()
	<-readerDone

	delivery.Close()
	for _, m := range delivery.Drain() {
		m.Free()
	}
	freePool.Close()
	for _, m := range freePool.Drain() {
		m.Free()
	}

	s.mu.Lock()
	s.state = Stopped
	s.mu.Unlock()
	if s.recorder != nil {
		s.recorder.Disconnected(s.name)
	}
	return nil
}
