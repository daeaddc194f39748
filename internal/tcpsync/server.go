package tcpsync

import (
	"bufio"
	"encoding/json"
	"errors"
	"net"
	"sync"

	"redstring/pkg/logger"
	"redstring/pkg/models"
)

// Server fans every progress write out to all connected TCP clients as
// newline-delimited JSON. Clients never send anything meaningful.
type Server struct {
	addr string
	log  *logger.Logger

	mu      sync.Mutex
	clients map[net.Conn]struct{}
	ln      net.Listener

	updates <-chan models.ProgressUpdate
}

func New(addr string, updates <-chan models.ProgressUpdate, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		addr:    addr,
		log:     log.With("component", "tcpsync"),
		clients: make(map[net.Conn]struct{}),
		updates: updates,
	}
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.addr)
	if err != nil {
		return err
	}
	return s.Serve(ln)
}

// Serve accepts clients on ln until Close.
func (s *Server) Serve(ln net.Listener) error {
	s.mu.Lock()
	s.ln = ln
	s.mu.Unlock()
	s.log.Info("tcp sync listening", "addr", ln.Addr().String())

	go s.broadcastLoop()

	for {
		conn, err := ln.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("tcp accept", "error", err)
			continue
		}
		s.addClient(conn)
		s.log.Debug("tcp client connected", "remote", conn.RemoteAddr().String())
		go s.readLoop(conn)
	}
}

// Close stops accepting and drops every client.
func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for conn := range s.clients {
		_ = conn.Close()
		delete(s.clients, conn)
	}
	if s.ln == nil {
		return nil
	}
	return s.ln.Close()
}

func (s *Server) Clients() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

func (s *Server) addClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clients[conn] = struct{}{}
}

func (s *Server) removeClient(conn net.Conn) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.clients, conn)
	_ = conn.Close()
}

// readLoop only exists to notice disconnects.
func (s *Server) readLoop(conn net.Conn) {
	sc := bufio.NewScanner(conn)
	for sc.Scan() {
	}
	s.removeClient(conn)
	s.log.Debug("tcp client disconnected", "remote", conn.RemoteAddr().String())
}

func (s *Server) broadcastLoop() {
	for evt := range s.updates {
		b, err := json.Marshal(evt)
		if err != nil {
			s.log.Error("tcp marshal", "error", err)
			continue
		}
		b = append(b, '\n')

		s.mu.Lock()
		for conn := range s.clients {
			if _, err := conn.Write(b); err != nil {
				delete(s.clients, conn)
				_ = conn.Close()
			}
		}
		s.mu.Unlock()
	}
}
