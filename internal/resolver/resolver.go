// Package resolver implements a single-shot DNS client: one configured
// server, A records only, a fixed attempt ceiling. Every attempt sends
// a freshly keyed query; stale responses are never re-parsed.
package resolver

import (
	"crypto/rand"
	"encoding/binary"
	"errors"
	"fmt"
	"net/netip"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/zap"

	"picoserve/internal/netif"
	"picoserve/internal/parser"
)

const (
	DefaultPort         = 53
	DefaultTimeout      = time.Second
	DefaultPollInterval = 50 * time.Millisecond
	DefaultAttempts     = 5
)

var (
	// ErrInvalidServer means no DNS server address was configured.
	ErrInvalidServer = errors.New("no DNS server configured")
	// ErrTimedOut means no response arrived within the wait window of
	// one attempt.
	ErrTimedOut = errors.New("no response from DNS server")
)

type Config struct {
	Interface netif.Interface
	// Server is the DNS server to query. The zero value makes every
	// Resolve call fail with ErrInvalidServer.
	Server netip.Addr
	Port   int
	// Timeout is the per-attempt wait window for a response.
	Timeout time.Duration
	// PollInterval is how long to sleep between availability checks
	// while waiting inside the window.
	PollInterval time.Duration
	// Attempts is the total send+receive cycles before giving up.
	Attempts int
	Clock    clockwork.Clock
	Logger   *zap.Logger
}

type Resolver struct {
	iface        netif.Interface
	server       netip.Addr
	port         int
	timeout      time.Duration
	pollInterval time.Duration
	attempts     int
	clock        clockwork.Clock
	logger       *zap.Logger
}

func New(cfg Config) *Resolver {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.PollInterval == 0 {
		cfg.PollInterval = DefaultPollInterval
	}
	if cfg.Attempts == 0 {
		cfg.Attempts = DefaultAttempts
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Resolver{
		iface:        cfg.Interface,
		server:       cfg.Server,
		port:         cfg.Port,
		timeout:      cfg.Timeout,
		pollInterval: cfg.PollInterval,
		attempts:     cfg.Attempts,
		clock:        cfg.Clock,
		logger:       cfg.Logger,
	}
}

// Resolve translates hostname into a raw IPv4 address. One UDP socket
// is opened for the whole call; each attempt is a complete send+receive
// cycle under a fresh transaction ID, and after the configured number
// of failed attempts the last error is returned.
func (r *Resolver) Resolve(hostname string) ([4]byte, error) {
	if !r.server.IsValid() {
		return [4]byte{}, ErrInvalidServer
	}
	if err := parser.ValidateHostname(hostname); err != nil {
		return [4]byte{}, fmt.Errorf("invalid hostname %q: %w", hostname, err)
	}
	conn, err := r.iface.DialUDP(r.server, r.port)
	if err != nil {
		return [4]byte{}, err
	}
	defer conn.Close()
	conn.SetTimeout(r.timeout)
	var lastErr error
	for attempt := 1; attempt <= r.attempts; attempt++ {
		addr, err := r.resolveOnce(conn, hostname)
		if err == nil {
			r.logger.Debug("Resolved",
				zap.String("hostname", hostname),
				zap.Int("attempt", attempt))
			return addr, nil
		}
		lastErr = err
		r.logger.Debug("Attempt failed",
			zap.String("hostname", hostname),
			zap.Int("attempt", attempt),
			zap.Error(err))
	}
	return [4]byte{}, fmt.Errorf("resolving %q failed after %d attempts: %w",
		hostname, r.attempts, lastErr)
}

// resolveOnce runs one send+receive cycle. A response that arrives late
// from an earlier attempt fails the transaction ID check and burns this
// attempt, which is why every attempt re-sends under a fresh ID.
func (r *Resolver) resolveOnce(conn netif.Conn, hostname string) ([4]byte, error) {
	id, err := transactionID()
	if err != nil {
		return [4]byte{}, err
	}
	query, err := parser.BuildQuery(id, hostname)
	if err != nil {
		return [4]byte{}, err
	}
	if _, err := conn.Send(query); err != nil {
		return [4]byte{}, err
	}
	if err := r.waitForPacket(conn); err != nil {
		return [4]byte{}, err
	}
	data, err := conn.Recv(0)
	if err != nil {
		return [4]byte{}, err
	}
	resp, err := parser.ParseResponse(data)
	if err != nil {
		return [4]byte{}, err
	}
	if err := resp.Header.ValidateResponse(id); err != nil {
		r.logger.Debug("Discarding response",
			zap.Uint16("id", resp.Header.ID),
			zap.Uint8("rcode", resp.Header.GetRCode()),
			zap.Bool("truncated", resp.Header.GetTC()),
			zap.Error(err))
		return [4]byte{}, err
	}
	addr, ok := resp.FirstA()
	if !ok {
		return [4]byte{}, errors.New("no A record in answer section")
	}
	return addr, nil
}

// waitForPacket polls the socket until data is available or the window
// elapses.
func (r *Resolver) waitForPacket(conn netif.Conn) error {
	deadline := r.clock.Now().Add(r.timeout)
	for conn.Available() <= 0 {
		if !r.clock.Now().Before(deadline) {
			return ErrTimedOut
		}
		r.clock.Sleep(r.pollInterval)
	}
	return nil
}

// transactionID draws a 16-bit identifier from the system CSPRNG so
// responses cannot be trivially spoofed by guessing the next ID.
func transactionID() (uint16, error) {
	var b [2]byte
	if _, err := rand.Read(b[:]); err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b[:]), nil
}
