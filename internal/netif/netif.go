// Package netif defines the socket contracts the resolver and the WSGI
// server are written against, together with an adapter backed by the
// standard net stack. Tests substitute in-memory implementations.
package netif

import (
	"net/netip"
	"time"
)

// Conn is a single established connection (TCP) or datagram exchange
// (UDP). None of its methods are safe for concurrent use.
type Conn interface {
	// Available reports how many bytes can be read without blocking
	// past the implementation's short probe.
	Available() int
	Send(p []byte) (int, error)
	// Recv reads exactly n bytes. With n <= 0 it returns whatever is
	// currently available without waiting for more.
	Recv(n int) ([]byte, error)
	// ReadLine reads up to and including a newline and returns the
	// line with its trailing CRLF stripped.
	ReadLine() ([]byte, error)
	// SetTimeout bounds subsequent blocking reads and writes. Zero
	// means no bound.
	SetTimeout(d time.Duration)
	Close() error
}

// ListenSocket is one bound, listening slot. A slot hands out at most
// one connection in practice: the server closes it after the request
// completes and binds a fresh slot in its place.
type ListenSocket interface {
	// Accept returns a pending client connection, or ok=false when no
	// handshake has completed. It never blocks beyond a short probe.
	Accept() (conn Conn, ok bool, err error)
	Close() error
}

// Interface is the network interface collaborator: it binds listening
// slots, dials UDP peers and knows its own address.
type Interface interface {
	Listen(port int) (ListenSocket, error)
	DialUDP(server netip.Addr, port int) (Conn, error)
	Addr() netip.Addr
}
