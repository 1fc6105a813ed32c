// Package realtime pushes stored records to live subscribers.
package realtime

import (
	"context"
	"encoding/json"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"wisegate/internal/logger"
	apperrors "wisegate/pkg/errors"
	"wisegate/pkg/metrics"
)

// Message is the frame sent to websocket subscribers.
type Message struct {
	Type  string `json:"type"`
	Event string `json:"event,omitempty"`
	Data  any    `json:"data,omitempty"`
	TS    string `json:"ts"`
}

func newEvent(channel string, payload any, now time.Time) Message {
	return Message{
		Type:  "event",
		Event: channel,
		Data:  payload,
		TS:    now.UTC().Format(time.RFC3339),
	}
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub tracks websocket clients. Only Run mutates the client set.
type Hub struct {
	clients    map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan []byte
	done       chan struct{}
	count      atomic.Int64
	logger     logger.Logger
}

func NewHub(log logger.Logger) *Hub {
	return &Hub{
		clients:    make(map[*Client]struct{}),
		register:   make(chan *Client, 64),
		unregister: make(chan *Client, 64),
		broadcast:  make(chan []byte, 256),
		done:       make(chan struct{}),
		logger:     log,
	}
}

// Run serves registrations and broadcasts until ctx is done, then closes
// every client.
func (h *Hub) Run(ctx context.Context) error {
	defer func() {
		close(h.done)
		for c := range h.clients {
			h.remove(c)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case c := <-h.register:
			h.clients[c] = struct{}{}
			h.setCount()
			h.logger.Debugw("Websocket client registered", "remote_addr", c.remoteAddr())

		case c := <-h.unregister:
			if _, ok := h.clients[c]; ok {
				h.remove(c)
				h.logger.Debugw("Websocket client unregistered", "remote_addr", c.remoteAddr())
			}

		case msg := <-h.broadcast:
			for c := range h.clients {
				select {
				case c.send <- msg:
				default:
					h.remove(c)
					h.logger.Warnw("Websocket client too slow, dropped", "remote_addr", c.remoteAddr())
				}
			}
		}
	}
}

func (h *Hub) remove(c *Client) {
	delete(h.clients, c)
	close(c.send)
	h.setCount()
}

func (h *Hub) setCount() {
	h.count.Store(int64(len(h.clients)))
	metrics.SetRealtimeClients(len(h.clients))
}

func (h *Hub) ClientCount() int {
	return int(h.count.Load())
}

// Publish queues one event frame for every client. It never blocks; a full
// queue drops the frame.
func (h *Hub) Publish(_ context.Context, channel string, payload any) error {
	b, err := json.Marshal(newEvent(channel, payload, time.Now()))
	if err != nil {
		return apperrors.ErrBroadcast.WithCause(err)
	}

	select {
	case <-h.done:
		return apperrors.ErrBroadcast.WithMessage("hub stopped")
	default:
	}

	select {
	case h.broadcast <- b:
		return nil
	default:
		return apperrors.ErrBroadcast.WithMessage("broadcast queue full")
	}
}

// ServeWS upgrades the request and attaches the connection to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warnw("Websocket upgrade failed", "error", err)
		return
	}

	c := newClient(h, conn)
	select {
	case h.register <- c:
	case <-h.done:
		conn.Close()
		return
	}

	go c.writePump()
	go c.readPump()
}
