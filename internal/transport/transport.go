// Package transport abstracts the byte stream a Connection reads frames
// from and writes frames to, so the wire codec and subscriber runtime never
// depend on net or crypto/tls directly and can be driven by net.Pipe or any
// other net.Conn in tests.
package transport

import (
	"context"
	"crypto/tls"
	"net"
	"time"
)

// Transport is the minimal surface Connection needs from a live socket.
// SetReadDeadline lets the reader goroutine be interrupted without closing
// the underlying connection, which Close still guarantees to do.
type Transport interface {
	Read(b []byte) (int, error)
	Write(b []byte) (int, error)
	Close() error
	SetReadDeadline(t time.Time) error
}

// netTransport adapts a net.Conn (plain or TLS) to Transport.
type netTransport struct {
	net.Conn
}

// Dial opens a TCP connection to address, upgrading to TLS when tlsConfig is
// non-nil. It respects ctx for the connect phase only; once established the
// connection's lifetime is controlled by Close and SetReadDeadline.
func Dial(ctx context.Context, address string, tlsConfig *tls.Config) (Transport, error) {
	dialer := &net.Dialer{}
	conn, err := dialer.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, err
	}
	if tlsConfig != nil {
		tlsConn := tls.Client(conn, tlsConfig)
		if err := tlsConn.HandshakeContext(ctx); err != nil {
			_ = conn.Close()
			return nil, err
		}
		return &netTransport{Conn: tlsConn}, nil
	}
	return &netTransport{Conn: conn}, nil
}

// Wrap adapts an already-established net.Conn (e.g. one side of a
// net.Pipe used by tests) to Transport.
func Wrap(conn net.Conn) Transport {
	return &netTransport{Conn: conn}
}
