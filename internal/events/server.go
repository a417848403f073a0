package events

import (
	"bufio"
	"errors"
	"net"
	"sync"

	"moviehub/pkg/logger"
)

// Server accepts line-oriented TCP listeners for a Hub. Anything a client sends
// is read and discarded.
type Server struct {
	Addr string
	Hub  *Hub

	mu     sync.Mutex
	ln     net.Listener
	closed bool
	log    *logger.Logger
}

func NewServer(addr string, hub *Hub, log *logger.Logger) *Server {
	return &Server{Addr: addr, Hub: hub, log: logger.OrNop(log).With("component", "events-tcp")}
}

// Listen binds Addr. Run calls it when the server is not yet listening.
func (s *Server) Listen() error {
	_, err := s.listen()
	return err
}

// listen returns the bound listener, binding Addr first if needed. After Close
// it fails with net.ErrClosed.
func (s *Server) listen() (net.Listener, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, net.ErrClosed
	}
	if s.ln != nil {
		return s.ln, nil
	}
	ln, err := net.Listen("tcp", s.Addr)
	if err != nil {
		return nil, err
	}
	s.ln = ln
	return ln, nil
}

// ListenAddr is the bound address, or nil before Listen.
func (s *Server) ListenAddr() net.Addr {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return nil
	}
	return s.ln.Addr()
}

// Run accepts clients until Close. It returns nil after Close.
func (s *Server) Run() error {
	ln, err := s.listen()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("listening", "addr", ln.Addr().String())

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("accept failed", "error", err)
			continue
		}

		l := &tcpListener{conn: conn}
		if err := s.Hub.join(l); err != nil {
			s.log.Debug("welcome failed", "remote", l.remote(), "error", err)
			_ = conn.Close()
			continue
		}

		go func() {
			defer s.Hub.leave(l)
			sc := bufio.NewScanner(conn)
			for sc.Scan() {
			}
		}()
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}
