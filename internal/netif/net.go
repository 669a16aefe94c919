package netif

import (
	"bufio"
	"bytes"
	"errors"
	"io"
	"net"
	"net/netip"
	"sync"
	"time"
)

// probeWait bounds the deadline used for availability checks and
// non-blocking accepts.
const probeWait = time.Millisecond

// maxDatagram is the receive buffer for a single UDP datagram.
const maxDatagram = 512

// NetInterface adapts the standard net stack to the Interface contract.
// Listening slots for the same port share one underlying TCP listener,
// reference counted so the port is released when the last slot closes.
type NetInterface struct {
	mu        sync.Mutex
	listeners map[int]*sharedListener
}

type sharedListener struct {
	ln   *net.TCPListener
	refs int
}

func NewNetInterface() *NetInterface {
	return &NetInterface{
		listeners: make(map[int]*sharedListener),
	}
}

// Addr returns the first non-loopback IPv4 address of the host, falling
// back to the IPv4 loopback address.
func (n *NetInterface) Addr() netip.Addr {
	addrs, err := net.InterfaceAddrs()
	if err != nil {
		return netip.AddrFrom4([4]byte{127, 0, 0, 1})
	}
	for _, a := range addrs {
		ipNet, ok := a.(*net.IPNet)
		if !ok {
			continue
		}
		ip4 := ipNet.IP.To4()
		if ip4 == nil || ipNet.IP.IsLoopback() {
			continue
		}
		addr, ok := netip.AddrFromSlice(ip4)
		if !ok {
			continue
		}
		return addr
	}
	return netip.AddrFrom4([4]byte{127, 0, 0, 1})
}

func (n *NetInterface) Listen(port int) (ListenSocket, error) {
	n.mu.Lock()
	defer n.mu.Unlock()
	sl, ok := n.listeners[port]
	if !ok {
		ln, err := net.ListenTCP("tcp4", &net.TCPAddr{Port: port})
		if err != nil {
			return nil, err
		}
		sl = &sharedListener{ln: ln}
		n.listeners[port] = sl
	}
	sl.refs++
	return &tcpSlot{iface: n, port: port, shared: sl}, nil
}

func (n *NetInterface) DialUDP(server netip.Addr, port int) (Conn, error) {
	raddr := net.UDPAddrFromAddrPort(netip.AddrPortFrom(server, uint16(port)))
	conn, err := net.DialUDP("udp", nil, raddr)
	if err != nil {
		return nil, err
	}
	return &udpConn{conn: conn}, nil
}

func (n *NetInterface) release(port int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	sl, ok := n.listeners[port]
	if !ok {
		return nil
	}
	sl.refs--
	if sl.refs > 0 {
		return nil
	}
	delete(n.listeners, port)
	return sl.ln.Close()
}

type tcpSlot struct {
	iface  *NetInterface
	port   int
	shared *sharedListener
	closed bool
}

func (s *tcpSlot) Accept() (Conn, bool, error) {
	if s.closed {
		return nil, false, errors.New("accept on closed slot")
	}
	if err := s.shared.ln.SetDeadline(time.Now().Add(probeWait)); err != nil {
		return nil, false, err
	}
	conn, err := s.shared.ln.AcceptTCP()
	if err != nil {
		var ne net.Error
		if errors.As(err, &ne) && ne.Timeout() {
			return nil, false, nil
		}
		return nil, false, err
	}
	return newTCPConn(conn), true, nil
}

func (s *tcpSlot) Close() error {
	if s.closed {
		return nil
	}
	s.closed = true
	return s.iface.release(s.port)
}

type tcpConn struct {
	conn    net.Conn
	br      *bufio.Reader
	timeout time.Duration
}

func newTCPConn(conn net.Conn) *tcpConn {
	return &tcpConn{conn: conn, br: bufio.NewReader(conn)}
}

func (c *tcpConn) Available() int {
	if c.br.Buffered() > 0 {
		return c.br.Buffered()
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(probeWait))
	_, _ = c.br.Peek(1)
	_ = c.conn.SetReadDeadline(time.Time{})
	return c.br.Buffered()
}

func (c *tcpConn) applyReadDeadline() {
	if c.timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
}

func (c *tcpConn) Send(p []byte) (int, error) {
	if c.timeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.timeout))
	}
	return c.conn.Write(p)
}

func (c *tcpConn) Recv(n int) ([]byte, error) {
	if n <= 0 {
		n = c.Available()
		if n == 0 {
			return nil, nil
		}
	}
	c.applyReadDeadline()
	buf := make([]byte, n)
	read, err := io.ReadFull(c.br, buf)
	if err != nil {
		return buf[:read], err
	}
	return buf, nil
}

func (c *tcpConn) ReadLine() ([]byte, error) {
	c.applyReadDeadline()
	line, err := c.br.ReadBytes('\n')
	if err != nil {
		return nil, err
	}
	line = bytes.TrimSuffix(line, []byte("\n"))
	line = bytes.TrimSuffix(line, []byte("\r"))
	return line, nil
}

func (c *tcpConn) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *tcpConn) Close() error {
	return c.conn.Close()
}

type udpConn struct {
	conn    *net.UDPConn
	pending []byte
	timeout time.Duration
}

func (c *udpConn) Available() int {
	if len(c.pending) > 0 {
		return len(c.pending)
	}
	_ = c.conn.SetReadDeadline(time.Now().Add(probeWait))
	buf := make([]byte, maxDatagram)
	n, err := c.conn.Read(buf)
	if err != nil {
		return 0
	}
	c.pending = buf[:n]
	return n
}

func (c *udpConn) Send(p []byte) (int, error) {
	return c.conn.Write(p)
}

// Recv returns one datagram. A datagram probed by Available is handed
// out first; otherwise the read blocks up to the configured timeout.
// The n argument is ignored beyond its sign: datagrams are indivisible.
func (c *udpConn) Recv(int) ([]byte, error) {
	if len(c.pending) > 0 {
		p := c.pending
		c.pending = nil
		return p, nil
	}
	if c.timeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.timeout))
	} else {
		_ = c.conn.SetReadDeadline(time.Time{})
	}
	buf := make([]byte, maxDatagram)
	n, err := c.conn.Read(buf)
	if err != nil {
		return nil, err
	}
	return buf[:n], nil
}

func (c *udpConn) ReadLine() ([]byte, error) {
	return nil, errors.New("readline not supported on datagram sockets")
}

func (c *udpConn) SetTimeout(d time.Duration) {
	c.timeout = d
}

func (c *udpConn) Close() error {
	return c.conn.Close()
}
