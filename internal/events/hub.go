package events

import (
	"encoding/json"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"moviehub/internal/ingest"
	"moviehub/pkg/logger"
)

const writeTimeout = 2 * time.Second

// EventWelcome is the first line every listener receives. Its Report is the most
// recent finished cycle the hub has relayed, or absent before the first one.
const EventWelcome = "welcome"

// listener is one live connection the hub writes event lines to.
type listener interface {
	send(line []byte) error
	close() error
	transport() string
	remote() string
}

type tcpListener struct{ conn net.Conn }

func (l *tcpListener) send(line []byte) error {
	_ = l.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	_, err := l.conn.Write(line)
	return err
}

func (l *tcpListener) close() error     { return l.conn.Close() }
func (l *tcpListener) transport() string { return "tcp" }
func (l *tcpListener) remote() string    { return l.conn.RemoteAddr().String() }

type wsListener struct{ ws *websocket.Conn }

func (l *wsListener) send(line []byte) error {
	_ = l.ws.SetWriteDeadline(time.Now().Add(writeTimeout))
	return l.ws.WriteMessage(websocket.TextMessage, line)
}

func (l *wsListener) close() error     { return l.ws.Close() }
func (l *wsListener) transport() string { return "websocket" }
func (l *wsListener) remote() string    { return l.ws.RemoteAddr().String() }

// Hub relays pipeline events to TCP and WebSocket listeners as JSON lines.
// A listener whose write fails is dropped.
type Hub struct {
	mu        sync.Mutex
	listeners map[listener]struct{}
	lastCycle *ingest.CycleReport
	lastEvent ingest.Event
	published uint64
	log       *logger.Logger
}

type Stats struct {
	TCPClients  int       `json:"tcp_clients"`
	WSClients   int       `json:"ws_clients"`
	Published   uint64    `json:"events_published"`
	LastEvent   string    `json:"last_event,omitempty"`
	LastEventAt time.Time `json:"last_event_at,omitempty"`
}

func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		listeners: make(map[listener]struct{}),
		log:       logger.OrNop(log).With("component", "events"),
	}
}

// Publish implements ingest.Publisher.
func (h *Hub) Publish(ev ingest.Event) {
	line, err := encodeLine(ev)
	if err != nil {
		h.log.Warn("event not encodable", "type", ev.Type, "error", err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()

	h.published++
	h.lastEvent = ingest.Event{Type: ev.Type, RunID: ev.RunID, At: ev.At}
	if ev.Type == ingest.EventCycleFinished && ev.Report != nil {
		report := *ev.Report
		h.lastCycle = &report
	}
	for l := range h.listeners {
		if err := l.send(line); err != nil {
			h.log.Debug("dropping listener", "transport", l.transport(), "remote", l.remote(), "error", err)
			_ = l.close()
			delete(h.listeners, l)
		}
	}
}

// join sends the welcome event and registers l. Both happen under the hub lock,
// so the welcome always precedes the first relayed event.
func (h *Hub) join(l listener) error {
	h.mu.Lock()
	defer h.mu.Unlock()

	line, err := encodeLine(ingest.Event{Type: EventWelcome, Report: h.lastCycle, At: time.Now().UTC()})
	if err != nil {
		return err
	}
	if err := l.send(line); err != nil {
		return err
	}
	h.listeners[l] = struct{}{}
	h.log.Debug("listener joined", "transport", l.transport(), "remote", l.remote())
	return nil
}

func (h *Hub) leave(l listener) {
	h.mu.Lock()
	_, ok := h.listeners[l]
	delete(h.listeners, l)
	h.mu.Unlock()
	_ = l.close()
	if ok {
		h.log.Debug("listener left", "transport", l.transport(), "remote", l.remote())
	}
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	s := Stats{
		Published:   h.published,
		LastEvent:   h.lastEvent.Type,
		LastEventAt: h.lastEvent.At,
	}
	for l := range h.listeners {
		switch l.(type) {
		case *tcpListener:
			s.TCPClients++
		case *wsListener:
			s.WSClients++
		}
	}
	return s
}

func encodeLine(ev ingest.Event) ([]byte, error) {
	b, err := json.Marshal(ev)
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}
