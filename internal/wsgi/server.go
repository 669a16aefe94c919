// Package wsgi implements a socket-pool web server driven by an
// external poll loop. A fixed number of listening slots accept one
// connection each; a consumed slot is closed and replaced so the pool
// always holds its configured size. Requests are handed to a
// WSGI-style application callable as an environ mapping plus a
// start-response recorder.
//
// The server spawns no goroutines and must be polled from a single
// goroutine: the caller's loop is the scheduler.
package wsgi

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/jonboulle/clockwork"
	"go.uber.org/multierr"
	"go.uber.org/zap"

	"picoserve/internal/netif"
)

const (
	DefaultPort     = 80
	DefaultPoolSize = 6
	DefaultTimeout  = 20 * time.Second
)

// ServerName is the value of the Server header prepended to every
// response.
const ServerName = "picoserve"

// InputKey is the environ key holding the request body reader.
const InputKey = "wsgi.input"

// Environ carries the request metadata handed to the application. All
// values are strings except the wsgi.* bookkeeping entries and the body
// reader under InputKey.
type Environ map[string]any

// StartResponse records the status line and header list for the
// response. It does not write to the socket; the server serializes the
// recorded state after the application returns. A later call overwrites
// an earlier one.
type StartResponse func(status string, headers [][2]string)

// Application is the WSGI-style callable. It must call start before
// returning. Body chunks may be string (written as UTF-8) or []byte
// (written unchanged). A non-nil error produces a 500 response.
type Application func(env Environ, start StartResponse) ([]any, error)

type Config struct {
	Interface netif.Interface
	Port      int
	// PoolSize is the number of listening slots held open.
	PoolSize int
	// Timeout bounds reads and writes on an accepted connection and
	// how long an accepted client may sit silent before being dropped.
	Timeout     time.Duration
	Clock       clockwork.Clock
	Logger      *zap.Logger
	Application Application
}

// poolEntry is one slot of the pool plus the connection it accepted,
// if any. A connection is held here until it has data to read or its
// deadline passes.
type poolEntry struct {
	slot     netif.ListenSocket
	conn     netif.Conn
	deadline time.Time
}

type Server struct {
	iface    netif.Interface
	port     int
	poolSize int
	timeout  time.Duration
	clock    clockwork.Clock
	logger   *zap.Logger
	app      Application

	pool []poolEntry

	// Response state recorded by startResponse, valid for the request
	// currently being handled only.
	respStatus  string
	respHeaders [][2]string
}

func New(cfg Config) *Server {
	if cfg.Port == 0 {
		cfg.Port = DefaultPort
	}
	if cfg.PoolSize == 0 {
		cfg.PoolSize = DefaultPoolSize
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.Clock == nil {
		cfg.Clock = clockwork.NewRealClock()
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	return &Server{
		iface:    cfg.Interface,
		port:     cfg.Port,
		poolSize: cfg.PoolSize,
		timeout:  cfg.Timeout,
		clock:    cfg.Clock,
		logger:   cfg.Logger,
		app:      cfg.Application,
	}
}

// Start binds and listens the whole pool. Failure to bind any slot is
// fatal: already bound slots are closed and the error is returned.
func (s *Server) Start() error {
	pool := make([]poolEntry, 0, s.poolSize)
	for i := 0; i < s.poolSize; i++ {
		ls, err := s.iface.Listen(s.port)
		if err != nil {
			bindErr := fmt.Errorf("binding socket %d of %d: %w", i+1, s.poolSize, err)
			for _, e := range pool {
				bindErr = multierr.Append(bindErr, e.slot.Close())
			}
			return bindErr
		}
		pool = append(pool, poolEntry{slot: ls})
	}
	s.pool = pool
	s.logger.Info("Server listening",
		zap.String("addr", s.iface.Addr().String()),
		zap.Int("port", s.port),
		zap.Int("sockets", s.poolSize))
	return nil
}

// Poll services at most one request per slot and returns. Slots whose
// accepted client has not sent anything yet are left pending until a
// later poll, or dropped once the timeout passes. Poll never blocks
// waiting for a connection and must be called repeatedly from the
// owning loop. Not safe for concurrent use.
func (s *Server) Poll() error {
	var errs error
	for i := range s.pool {
		e := &s.pool[i]
		if e.slot == nil {
			// A rebind failed on an earlier poll; try again.
			errs = multierr.Append(errs, s.rebind(i))
			continue
		}
		if e.conn == nil {
			conn, ok, err := e.slot.Accept()
			if err != nil {
				errs = multierr.Append(errs, err)
				continue
			}
			if !ok {
				continue
			}
			conn.SetTimeout(s.timeout)
			e.conn = conn
			e.deadline = s.clock.Now().Add(s.timeout)
		}
		if e.conn.Available() <= 0 {
			if s.clock.Now().After(e.deadline) {
				s.logger.Debug("Dropping stalled client", zap.Int("slot", i))
				errs = multierr.Append(errs, s.recycle(i))
			}
			continue
		}
		s.handle(e.conn)
		errs = multierr.Append(errs, s.recycle(i))
	}
	return errs
}

// recycle closes a consumed slot and its connection, then binds a
// fresh slot in its place.
func (s *Server) recycle(i int) error {
	e := &s.pool[i]
	var errs error
	if e.conn != nil {
		errs = multierr.Append(errs, e.conn.Close())
		e.conn = nil
	}
	errs = multierr.Append(errs, e.slot.Close())
	e.slot = nil
	return multierr.Append(errs, s.rebind(i))
}

func (s *Server) rebind(i int) error {
	ls, err := s.iface.Listen(s.port)
	if err != nil {
		s.logger.Error("Rebinding pool socket", zap.Int("slot", i), zap.Error(err))
		return err
	}
	s.pool[i].slot = ls
	return nil
}

// Close releases every slot and pending connection in the pool.
func (s *Server) Close() error {
	var errs error
	for _, e := range s.pool {
		if e.conn != nil {
			errs = multierr.Append(errs, e.conn.Close())
		}
		if e.slot != nil {
			errs = multierr.Append(errs, e.slot.Close())
		}
	}
	s.pool = nil
	return errs
}

// PoolSize reports how many live listening slots the pool holds.
func (s *Server) PoolSize() int {
	n := 0
	for i := range s.pool {
		if s.pool[i].slot != nil {
			n++
		}
	}
	return n
}

// handle runs one request/response cycle. The caller closes the
// connection afterwards via recycle.
func (s *Server) handle(conn netif.Conn) {
	env, err := s.buildEnviron(conn)
	if err != nil {
		s.logger.Debug("Rejecting request", zap.Error(err))
		s.writeError(conn, "400 Bad Request")
		return
	}

	s.respStatus = ""
	s.respHeaders = nil
	body, err := s.invoke(env)
	if err != nil {
		s.logger.Error("Application failed",
			zap.String("path", envString(env, "PATH_INFO")),
			zap.Error(err))
		s.writeError(conn, "500 Internal Server Error")
		return
	}
	if s.respStatus == "" {
		s.logger.Error("Application returned without calling start_response",
			zap.String("path", envString(env, "PATH_INFO")))
		s.writeError(conn, "500 Internal Server Error")
		return
	}
	if err := s.writeResponse(conn, body); err != nil {
		s.logger.Debug("Writing response", zap.Error(err))
	}
}

// invoke calls the application, converting a panic into an error so a
// misbehaving callable cannot leak the slot.
func (s *Server) invoke(env Environ) (body []any, err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("application panic: %v", rec)
		}
	}()
	return s.app(env, s.startResponse)
}

func (s *Server) startResponse(status string, headers [][2]string) {
	s.respStatus = status
	s.respHeaders = append([][2]string{{"Server", ServerName}}, headers...)
}

func (s *Server) writeResponse(conn netif.Conn, body []any) error {
	var b strings.Builder
	b.WriteString("HTTP/1.1 ")
	b.WriteString(s.respStatus)
	b.WriteString("\r\n")
	for _, h := range s.respHeaders {
		b.WriteString(h[0])
		b.WriteString(": ")
		b.WriteString(h[1])
		b.WriteString("\r\n")
	}
	b.WriteString("\r\n")
	if _, err := conn.Send([]byte(b.String())); err != nil {
		return err
	}
	for _, chunk := range body {
		var data []byte
		switch c := chunk.(type) {
		case []byte:
			data = c
		case string:
			data = []byte(c)
		default:
			return fmt.Errorf("unsupported body chunk type %T", chunk)
		}
		if _, err := conn.Send(data); err != nil {
			return err
		}
	}
	return nil
}

func (s *Server) writeError(conn netif.Conn, status string) {
	reason := status
	if i := strings.IndexByte(status, ' '); i >= 0 {
		reason = status[i+1:]
	}
	resp := "HTTP/1.1 " + status + "\r\n" +
		"Server: " + ServerName + "\r\n" +
		"Content-Type: text/plain\r\n" +
		"Content-Length: " + strconv.Itoa(len(reason)+1) + "\r\n" +
		"\r\n" +
		reason + "\n"
	if _, err := conn.Send([]byte(resp)); err != nil {
		s.logger.Debug("Writing error response", zap.Error(err))
	}
}

func envString(env Environ, key string) string {
	v, _ := env[key].(string)
	return v
}
