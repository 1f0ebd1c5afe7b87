// Package wireconn owns a live Transport plus the framing state layered on
// top of it: a Parser for the read side and a serialized write path for the
// send side. It is the only place a write-mutex or a socket handle exists in
// the client; proto stays pure encode/decode and transport stays a bare
// byte pipe.
package wireconn

import (
	"sync"

	"github.com/nats-lite/gonats-core/internal/corerr"
	"github.com/nats-lite/gonats-core/internal/mailbox"
	"github.com/nats-lite/gonats-core/internal/proto"
	"github.com/nats-lite/gonats-core/internal/transport"
)

// Connection couples one Transport with the frame codec running over it.
type Connection struct {
	tr     transport.Transport
	parser *proto.Parser

	writeMu sync.Mutex
	closed  bool
	closeMu sync.Mutex
}

// New wraps tr for frame-at-a-time reads and mutex-serialized writes.
func New(tr transport.Transport) *Connection {
	return &Connection{
		tr:     tr,
		parser: proto.NewParser(tr),
	}
}

// WriteFrame writes b to the transport in full, retrying on short writes,
// under a mutex so concurrent callers (e.g. an application publish racing
// the subscriber's own SUB/UNSUB traffic) never interleave partial frames.
func (c *Connection) WriteFrame(b []byte) error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	for len(b) > 0 {
		n, err := c.tr.Write(b)
		if err != nil {
			return corerr.ErrIO
		}
		b = b[n:]
	}
	return nil
}

// ReadMessage decodes the next frame into a Message drawn from pool when
// pool has one available, or a freshly allocated Message otherwise. Pool
// acquisition never blocks: an empty pool just means an allocation, matching
// the free pool's "unbounded, lazily populated" contract.
func (c *Connection) ReadMessage(pool *mailbox.Mailbox[*proto.Message]) (*proto.Message, error) {
	m, ok := pool.TryReceive()
	if !ok {
		m = proto.NewMessage()
	}
	if err := c.parser.ReadMessage(m); err != nil {
		return m, err
	}
	return m, nil
}

// Close closes the underlying transport, which unblocks any goroutine
// currently blocked inside a Read call on it. It is safe to call more than
// once.
func (c *Connection) Close() error {
	c.closeMu.Lock()
	defer c.closeMu.Unlock()
	if c.closed {
		return nil
	}
	c.closed = true
	return c.tr.Close()
}
