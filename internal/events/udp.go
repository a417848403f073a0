package events

import (
	"encoding/json"
	"errors"
	"net"
	"sync"

	"moviehub/internal/ingest"
	"moviehub/pkg/logger"
)

const (
	SubscribeMessageType   = "subscribe"
	UnsubscribeMessageType = "unsubscribe"
)

// SubscribeMessage is the datagram a UDP listener sends to start or stop receiving
// events. Name identifies the listener; re-subscribing under the same name moves it.
type SubscribeMessage struct {
	Type string `json:"type"`
	Name string `json:"name"`
}

// UDPServer delivers each event as one JSON datagram to every subscribed address.
// Delivery is best effort: a send is retried once, then the subscriber is dropped.
type UDPServer struct {
	Addr string

	mu     sync.RWMutex
	conn   *net.UDPConn
	closed bool
	subs   map[string]*net.UDPAddr
	log    *logger.Logger
}

func NewUDPServer(addr string, log *logger.Logger) *UDPServer {
	return &UDPServer{
		Addr: addr,
		subs: make(map[string]*net.UDPAddr),
		log:  logger.OrNop(log).With("component", "events-udp"),
	}
}

func (s *UDPServer) Listen() error {
	_, err := s.listen()
	return err
}

// listen returns the bound socket, binding Addr first if needed. After Close it
// fails with net.ErrClosed.
func (s *UDPServer) listen() (*net.UDPConn, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.closed {
		return nil, net.ErrClosed
	}
	if s.conn != nil {
		return s.conn, nil
	}
	udpAddr, err := net.ResolveUDPAddr("udp", s.Addr)
	if err != nil {
		return nil, err
	}
	conn, err := net.ListenUDP("udp", udpAddr)
	if err != nil {
		return nil, err
	}
	s.conn = conn
	return conn, nil
}

func (s *UDPServer) ListenAddr() net.Addr {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.conn == nil {
		return nil
	}
	return s.conn.LocalAddr()
}

// Run reads subscription datagrams until Close, then returns nil.
func (s *UDPServer) Run() error {
	conn, err := s.listen()
	if errors.Is(err, net.ErrClosed) {
		return nil
	}
	if err != nil {
		return err
	}
	s.log.Info("listening", "addr", conn.LocalAddr().String())

	buf := make([]byte, 2048)
	for {
		n, addr, err := conn.ReadFromUDP(buf)
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return nil
			}
			return err
		}
		msg, err := parseSubscribe(buf[:n])
		if err != nil {
			s.log.Debug("invalid datagram", "remote", addr.String(), "error", err)
			continue
		}
		switch msg.Type {
		case SubscribeMessageType:
			s.mu.Lock()
			s.subs[msg.Name] = addr
			s.mu.Unlock()
			s.log.Info("subscriber registered", "name", msg.Name, "remote", addr.String())
		case UnsubscribeMessageType:
			s.remove(msg.Name)
		}
	}
}

func (s *UDPServer) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closed = true
	if s.conn == nil {
		return nil
	}
	return s.conn.Close()
}

func (s *UDPServer) Subscribers() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.subs)
}

// Publish implements ingest.Publisher.
func (s *UDPServer) Publish(ev ingest.Event) {
	s.mu.RLock()
	conn := s.conn
	targets := make(map[string]*net.UDPAddr, len(s.subs))
	for name, addr := range s.subs {
		targets[name] = addr
	}
	s.mu.RUnlock()
	if conn == nil || len(targets) == 0 {
		return
	}

	payload, err := json.Marshal(ev)
	if err != nil {
		s.log.Warn("event not encodable", "error", err)
		return
	}
	for name, addr := range targets {
		if _, err := conn.WriteToUDP(payload, addr); err == nil {
			continue
		}
		if _, err := conn.WriteToUDP(payload, addr); err != nil {
			s.log.Warn("dropping udp subscriber", "name", name, "remote", addr.String(), "error", err)
			s.remove(name)
		}
	}
}

func (s *UDPServer) remove(name string) {
	s.mu.Lock()
	delete(s.subs, name)
	s.mu.Unlock()
}

func parseSubscribe(data []byte) (SubscribeMessage, error) {
	var msg SubscribeMessage
	if err := json.Unmarshal(data, &msg); err != nil {
		return msg, err
	}
	if msg.Type == "" || msg.Name == "" {
		return msg, errors.New("missing required fields")
	}
	return msg, nil
}

// Fanout publishes each event to every non-nil publisher in order.
type Fanout []ingest.Publisher

func (f Fanout) Publish(ev ingest.Event) {
	for _, p := range f {
		if p != nil {
			p.Publish(ev)
		}
	}
}
