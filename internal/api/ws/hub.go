package ws

import (
	"context"
	"encoding/json"
	"log/slog"

	"github.com/gorilla/websocket"

	"github.com/fileflowhq/fileflow-be/internal/events"
)

// eventBuffer absorbs bursts; when it overflows, events are dropped rather
// than blocking job transitions.
const eventBuffer = 256

type client struct {
	conn    *websocket.Conn
	ownerID string
}

// Hub pushes job events to connected websocket clients. Each client only
// sees events for jobs it owns.
type Hub struct {
	clients    map[*client]bool
	register   chan *client
	unregister chan *client
	events     chan events.Event
	done       chan struct{}
	logger     *slog.Logger
}

// NewHub creates a hub; Run must be started for it to deliver anything
func NewHub(logger *slog.Logger) *Hub {
	return &Hub{
		clients:    make(map[*client]bool),
		register:   make(chan *client),
		unregister: make(chan *client),
		events:     make(chan events.Event, eventBuffer),
		done:       make(chan struct{}),
		logger:     logger,
	}
}

// Run owns the client set; nothing else touches it. It exits when the
// context is cancelled, closing every connection.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)

	for {
		select {
		case <-ctx.Done():
			for c := range h.clients {
				c.conn.Close()
				delete(h.clients, c)
			}
			return

		case c := <-h.register:
			h.clients[c] = true
			h.logger.Debug("WebSocket client connected",
				slog.String("owner_id", c.ownerID),
				slog.Int("total_clients", len(h.clients)),
			)

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				delete(h.clients, c)
				c.conn.Close()
			}
			h.logger.Debug("WebSocket client disconnected",
				slog.Int("total_clients", len(h.clients)),
			)

		case ev := <-h.events:
			h.deliver(ev)
		}
	}
}

func (h *Hub) deliver(ev events.Event) {
	payload, err := json.Marshal(ev)
	if err != nil {
		h.logger.Error("Failed to marshal event for websocket delivery",
			slog.String("event_type", ev.Type),
			slog.String("error", err.Error()),
		)
		return
	}

	for c := range h.clients {
		if c.ownerID != ev.OwnerID {
			continue
		}
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			h.logger.Warn("Failed to write to websocket client",
				slog.String("owner_id", c.ownerID),
				slog.String("error", err.Error()),
			)
			c.conn.Close()
			delete(h.clients, c)
		}
	}
}

// Publish implements events.Sink. Delivery is best effort; a full buffer
// drops the event instead of blocking the caller.
func (h *Hub) Publish(_ context.Context, ev events.Event) error {
	select {
	case h.events <- ev:
	default:
		h.logger.Warn("Websocket event buffer full, dropping event",
			slog.String("event_type", ev.Type),
			slog.String("job_id", ev.JobID),
		)
	}
	return nil
}

// Serve attaches an upgraded connection to the hub and blocks until the
// client disconnects. Inbound messages are read and discarded to surface
// connection errors.
func (h *Hub) Serve(conn *websocket.Conn, ownerID string) {
	c := &client{conn: conn, ownerID: ownerID}

	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	defer func() {
		select {
		case h.unregister <- c:
		case <-h.done:
		}
	}()

	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}
