package hub

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/gorilla/websocket"
)

// Message types pushed to dashboard clients. A client receives one
// full_sync on connect and deltas afterwards.
const (
	TypeFullSync      = "full_sync"
	TypeMetricsUpdate = "metrics_update"
	TypeAlertNew      = "alert_new"
	TypeAlertResolved = "alert_resolved"
)

// Event is the envelope for every push message.
type Event struct {
	Type    string      `json:"type"`
	Payload interface{} `json:"payload"`
}

// SyncFunc builds the full dashboard state sent to a newly connected
// client before it starts receiving deltas.
type SyncFunc func() interface{}

// Hub owns the set of connected dashboard clients. A single goroutine
// (Run) serializes register, unregister and broadcast, so the client map
// needs no locking. Delivery is non-blocking per recipient: a client whose
// outbound queue is full is disconnected rather than allowed to stall the
// others; on reconnect it replays full state via the initial sync.
type Hub struct {
	clients    map[*Client]bool
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte

	syncState  SyncFunc
	queueDepth int
	upgrader   websocket.Upgrader
	logger     *slog.Logger
}

func New(syncState SyncFunc, queueDepth int) *Hub {
	if queueDepth <= 0 {
		queueDepth = 64
	}
	return &Hub{
		clients:    make(map[*Client]bool),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan []byte, 64),
		syncState:  syncState,
		queueDepth: queueDepth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
			CheckOrigin:     func(*http.Request) bool { return true },
		},
		logger: slog.With("component", "hub"),
	}
}

// Run loops until ctx is done, then closes every client connection.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case client := <-h.register:
			h.clients[client] = true
			h.logger.Info("client connected", "client", client.ID, "total", len(h.clients))
			h.sendInitialSync(client)

		case client := <-h.unregister:
			h.drop(client)

		case message := <-h.broadcast:
			for client := range h.clients {
				select {
				case client.send <- message:
				default:
					h.logger.Warn("client queue full, disconnecting", "client", client.ID)
					h.drop(client)
				}
			}

		case <-ctx.Done():
			for client := range h.clients {
				h.drop(client)
			}
			return
		}
	}
}

func (h *Hub) drop(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	close(client.send)
	h.logger.Info("client disconnected", "client", client.ID, "total", len(h.clients))
}

func (h *Hub) sendInitialSync(client *Client) {
	if h.syncState == nil {
		return
	}
	data, err := json.Marshal(Event{Type: TypeFullSync, Payload: h.syncState()})
	if err != nil {
		h.logger.Error("marshaling full sync", "error", err)
		return
	}
	select {
	case client.send <- data:
	default:
		h.drop(client)
	}
}

// Publish queues an event for delivery to all clients. It never blocks the
// caller: if the hub is saturated the event is dropped and logged, and the
// scheduler's next tick carries fresher state anyway.
func (h *Hub) Publish(ev Event) {
	data, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("marshaling event", "type", ev.Type, "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		h.logger.Warn("broadcast queue full, dropping event", "type", ev.Type)
	}
}

// ServeWS upgrades an HTTP request and hands the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn("websocket upgrade failed", "error", err)
		return
	}

	client := newClient(h, conn, h.queueDepth)
	h.register <- client

	go client.writePump()
	go client.readPump()
}
