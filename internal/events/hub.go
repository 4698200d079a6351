package events

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"streamhub/internal/metrics"
	"streamhub/pkg/logger"
)

// Hub fans catalog events out to TCP line-feed and WebSocket clients.
type Hub struct {
	mu        sync.Mutex
	clients   map[net.Conn]struct{}
	wsClients map[*websocket.Conn]struct{}
	log       *logger.Logger

	queue     chan CatalogEvent
	done      chan struct{}
	closeOnce sync.Once
}

const queueSize = 256

type Stats struct {
	TCPClients int `json:"tcpClients"`
	WSClients  int `json:"wsClients"`
}

// NewHub starts the single broadcaster; Close stops it.
func NewHub(log *logger.Logger) *Hub {
	h := &Hub{
		clients:   make(map[net.Conn]struct{}),
		wsClients: make(map[*websocket.Conn]struct{}),
		log:       logger.OrNop(log).With("component", "events"),
		queue:     make(chan CatalogEvent, queueSize),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case ev := <-h.queue:
			h.BroadcastJSON(ev)
		case <-h.done:
			return
		}
	}
}

func (h *Hub) Close() {
	h.closeOnce.Do(func() { close(h.done) })
}

func (h *Hub) Add(conn net.Conn) {
	h.mu.Lock()
	h.clients[conn] = struct{}{}
	h.observe()
	h.mu.Unlock()
}

func (h *Hub) Remove(conn net.Conn) {
	h.mu.Lock()
	delete(h.clients, conn)
	h.observe()
	h.mu.Unlock()
	_ = conn.Close()
}

func (h *Hub) AddWS(ws *websocket.Conn) {
	h.mu.Lock()
	h.wsClients[ws] = struct{}{}
	h.observe()
	h.mu.Unlock()
}

func (h *Hub) RemoveWS(ws *websocket.Conn) {
	h.mu.Lock()
	delete(h.wsClients, ws)
	h.observe()
	h.mu.Unlock()
	_ = ws.Close()
}

// Publish queues ev for the broadcaster. Events reach clients in publish
// order; a full queue drops the event rather than block the request.
func (h *Hub) Publish(ev CatalogEvent) {
	select {
	case <-h.done:
		return
	default:
	}
	select {
	case h.queue <- ev:
	default:
		metrics.FeedEventsDropped.Inc()
		h.log.Warn("event queue full, dropping", "type", ev.Type, "id", ev.ID)
	}
}

func (h *Hub) BroadcastJSON(v any) {
	b, err := json.Marshal(v)
	if err != nil {
		h.log.Warn("marshal event", "error", err)
		return
	}
	b = append(b, '\n')

	metrics.FeedEvents.Inc()

	h.mu.Lock()
	defer h.mu.Unlock()
	defer h.observe()

	for c := range h.clients {
		_ = c.SetWriteDeadline(time.Now().Add(2 * time.Second))
		w := bufio.NewWriter(c)
		if _, err := w.Write(b); err != nil {
			_ = c.Close()
			delete(h.clients, c)
			continue
		}
		if err := w.Flush(); err != nil {
			_ = c.Close()
			delete(h.clients, c)
			continue
		}
	}

	for ws := range h.wsClients {
		_ = ws.SetWriteDeadline(time.Now().Add(2 * time.Second))
		if err := ws.WriteMessage(websocket.TextMessage, b); err != nil {
			_ = ws.Close()
			delete(h.wsClients, ws)
		}
	}
}

// observe publishes client counts; callers hold h.mu.
func (h *Hub) observe() {
	metrics.FeedClients.WithLabelValues("tcp").Set(float64(len(h.clients)))
	metrics.FeedClients.WithLabelValues("websocket").Set(float64(len(h.wsClients)))
}

func (h *Hub) Count() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Stats() Stats {
	h.mu.Lock()
	defer h.mu.Unlock()
	return Stats{
		TCPClients: len(h.clients),
		WSClients:  len(h.wsClients),
	}
}

func (h *Hub) Welcome(conn net.Conn) {
	msg := fmt.Sprintf("{\"type\":\"welcome\",\"message\":\"connected\",\"clients\":%d}\n", h.Count())
	_, _ = conn.Write([]byte(msg))
}
