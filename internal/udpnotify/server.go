package udpnotify

import (
	"encoding/json"
	"errors"
	"net"
	"strings"
	"sync"
	"time"

	"redstring/pkg/logger"
	"redstring/pkg/models"
)

const (
	TypeNotification     = "notification"
	TypeChapterPublished = "chapter_published"
	TypeSectionPublished = "section_published"
)

// Server keeps a set of UDP subscribers and pushes announcements to them.
// A client sends SUBSCRIBE or UNSUBSCRIBE as a single datagram.
type Server struct {
	addr string
	log  *logger.Logger
	now  func() time.Time

	mu      sync.Mutex
	clients map[string]*net.UDPAddr
	conn    *net.UDPConn
}

func New(addr string, log *logger.Logger) *Server {
	if log == nil {
		log = logger.Nop()
	}
	return &Server{
		addr:    addr,
		log:     log.With("component", "udpnotify"),
		now:     time.Now,
		clients: make(map[string]*net.UDPAddr),
	}
}

func (s *Server) Start() error {
	udpAddr, err := net.ResolveUDPAddr("udp", s.addr)
	if err != nil {
		return err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return err
	}
	return s.Serve(conn)
}

// Serve reads subscription requests from conn until Close.
func (s *Server) Serve(conn *net.UDPConn) error {
	s.mu.Lock()
	s.conn = conn
	s.mu.Unlock()
	s.log.Info("udp notify listening", "addr", conn.LocalAddr().String())

	buf := make([]byte, 2048)
	for {
		n, clientAddr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			s.log.Warn("udp read", "error", err)
			continue
		}

		switch strings.ToUpper(strings.TrimSpace(string(buf[:n]))) {
		case "SUBSCRIBE":
			s.mu.Lock()
			s.clients[clientAddr.String()] = clientAddr
			s.mu.Unlock()
			s.log.Debug("udp subscribed", "remote", clientAddr.String(), "total", s.Subscribers())
		case "UNSUBSCRIBE":
			s.mu.Lock()
			delete(s.clients, clientAddr.String())
			s.mu.Unlock()
			s.log.Debug("udp unsubscribed", "remote", clientAddr.String(), "total", s.Subscribers())
		}
	}
}

func (s *Server) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *Server) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.clients)
}

// Notify sends a free-form admin message.
func (s *Server) Notify(message string) {
	s.Broadcast(models.Announcement{Type: TypeNotification, Message: message})
}

// Broadcast stamps a and sends it to every subscriber. It is a no-op
// before the server is listening.
func (s *Server) Broadcast(a models.Announcement) {
	if a.Timestamp == 0 {
		a.Timestamp = s.now().Unix()
	}
	b, err := json.Marshal(a)
	if err != nil {
		s.log.Error("udp marshal", "error", err)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.conn == nil {
		s.log.Debug("udp not started, dropping announcement", "type", a.Type)
		return
	}
	for key, addr := range s.clients {
		if _, err := s.conn.WriteToUDP(b, addr); err != nil {
			s.log.Warn("udp send failed", "remote", key, "error", err)
		}
	}
}
