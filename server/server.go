// Package server accepts TCP connections and runs one decode, resolve and
// respond cycle per connection.
package server

import (
	"bufio"
	"errors"
	"fmt"
	"io"
	"log"
	"net"
	"os"
	"runtime"
	"sync"
	"time"

	httperrors "minihttpd/errors"
	"minihttpd/request"
	"minihttpd/response"
	"minihttpd/sandbox"
)

// State is the lifecycle state of a Server.
type State int

const (
	Stopped State = iota
	Listening
)

func (s State) String() string {
	if s == Listening {
		return "listening"
	}
	return "stopped"
}

const (
	DefaultTimeout        = 5 * time.Second
	DefaultMaxHeaderBytes = 64 << 10

	acceptBackoff = 10 * time.Millisecond
)

// Config holds everything the server needs; zero values get defaults.
type Config struct {
	Addr           string
	Root           string
	Workers        int
	Timeout        time.Duration
	MaxHeaderBytes int
	// Location interprets If-Modified-Since dates; nil means UTC.
	Location *time.Location
	Logger   *log.Logger
}

// Server owns the listener and the worker pool. Start and Stop move it
// between Stopped and Listening; all transitions happen under mu, and
// workers never take mu, so Stop may wait for them while holding it.
type Server struct {
	cfg      Config
	resolver *sandbox.Resolver
	log      *log.Logger

	mu       sync.Mutex
	state    State
	listener net.Listener
	wg       sync.WaitGroup
}

// New validates cfg and canonicalizes the document root.
func New(cfg Config) (*Server, error) {
	if cfg.Workers <= 0 {
		cfg.Workers = runtime.NumCPU()
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.MaxHeaderBytes <= 0 {
		cfg.MaxHeaderBytes = DefaultMaxHeaderBytes
	}
	if cfg.Location == nil {
		cfg.Location = time.UTC
	}
	if cfg.Logger == nil {
		cfg.Logger = log.New(os.Stderr, "", log.LstdFlags)
	}

	resolver, err := sandbox.New(cfg.Root)
	if err != nil {
		return nil, err
	}

	return &Server{cfg: cfg, resolver: resolver, log: cfg.Logger}, nil
}

// State reports whether the server is listening.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound address, or nil when stopped.
func (s *Server) Addr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.listener == nil {
		return nil
	}
	return s.listener.Addr()
}

// Root returns the canonical document root.
func (s *Server) Root() string { return s.resolver.Root() }

// Start binds cfg.Addr and begins serving in the background.
func (s *Server) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startLocked()
}

// Stop closes the listener and waits for in-flight connections to finish.
func (s *Server) Stop() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopLocked()
}

// Restart stops the server if needed and starts it again on addr. No
// other Start or Stop can interleave with it.
func (s *Server) Restart(addr string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == Listening {
		if err := s.stopLocked(); err != nil {
			return err
		}
	}
	s.cfg.Addr = addr
	return s.startLocked()
}

// startLocked and stopLocked must be called with s.mu held.
func (s *Server) startLocked() error {
	if s.state == Listening {
		return httperrors.NewTransportError(httperrors.AlreadyListening, s.listener.Addr().String(), nil)
	}

	listener, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return httperrors.NewTransportError(httperrors.ListenFailure, s.cfg.Addr, err)
	}

	conns := make(chan net.Conn)
	for i := 0; i < s.cfg.Workers; i++ {
		s.wg.Add(1)
		go func(workerID int) {
			defer s.wg.Done()
			for conn := range conns {
				s.log.Printf("Worker %d: handling connection", workerID)
				s.ServeConn(conn)
			}
		}(i)
	}

	s.wg.Add(1)
	go s.acceptLoop(listener, conns)

	s.listener = listener
	s.state = Listening
	s.log.Println("Listening on " + listener.Addr().String())
	return nil
}

func (s *Server) stopLocked() error {
	if s.state != Listening {
		return httperrors.NewTransportError(httperrors.NotListening, "", nil)
	}

	addr := s.listener.Addr().String()
	err := s.listener.Close()
	s.wg.Wait()

	s.state = Stopped
	s.listener = nil
	s.log.Println("Stopped listening on " + addr)
	return err
}

func (s *Server) acceptLoop(listener net.Listener, conns chan<- net.Conn) {
	defer s.wg.Done()
	defer close(conns)

	for {
		conn, err := listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			s.log.Printf("Error: %v", err)
			time.Sleep(acceptBackoff)
			continue
		}
		conn.SetDeadline(time.Now().Add(s.cfg.Timeout))
		conns <- conn
	}
}

// ServeConn answers a single request on conn and closes it.
func (s *Server) ServeConn(conn net.Conn) {
	defer conn.Close()

	if err := s.Handle(conn, conn); err != nil {
		s.log.Printf("Error: %v", err)
	}
}

// Handle runs one request cycle: it reads a header block from r and
// writes the response to w. Decode failures and resolution errors are
// answered on w and also returned.
func (s *Server) Handle(r io.Reader, w io.Writer) error {
	started := time.Now()

	block, err := request.ReadHeaderBlock(bufio.NewReader(r), s.cfg.MaxHeaderBytes)
	if err != nil {
		if !httperrors.IsDecode(err) {
			return httperrors.NewTransportError(httperrors.ReadFailure, "", err)
		}
		return s.fail(w, request.HTTP10, response.StatusBadRequest, err)
	}

	req, err := request.DecodeWithLocation(block, s.cfg.Location)
	if err != nil {
		return s.fail(w, request.HTTP10, response.StatusBadRequest, err)
	}
	if req.Empty() {
		return nil
	}

	s.log.Printf("New Request [Method: %s, Path: %s, Version: %s]", req.Method, req.Target, req.Version)

	var outcome sandbox.Outcome
	if _, ok := response.Check(req); ok {
		outcome, err = s.resolver.Resolve(req)
		if err != nil {
			return s.fail(w, req.Version, response.StatusInternalServerError,
				httperrors.NewTransportError(httperrors.ResolveFailure, req.Target, err))
		}
	}

	resp := response.Build(req, outcome)
	n, err := resp.WriteTo(w)
	if err != nil {
		return httperrors.NewTransportError(httperrors.WriteFailure, "", err)
	}
	s.logAccess(req, resp, n, time.Since(started))
	return nil
}

// fail sends a best-effort error response and returns cause.
func (s *Server) fail(w io.Writer, version request.Version, status response.Status, cause error) error {
	if _, err := response.Failure(version, status).WriteTo(w); err != nil {
		return fmt.Errorf("%w (while reporting: %v)", httperrors.NewTransportError(httperrors.WriteFailure, "", err), cause)
	}
	return cause
}
