// Package ws pushes store changes to connected UI surfaces over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"
	"sync/atomic"

	"github.com/kislikjeka/quicktrade/internal/platform/credential"
	"github.com/kislikjeka/quicktrade/internal/platform/metrics"
	"github.com/kislikjeka/quicktrade/pkg/logger"
)

// Message types
const (
	TypeCredentialChange = "credential_change"
	TypePreferenceChange = "preference_change"
)

// Message is the envelope of every frame sent to clients
type Message struct {
	Type string `json:"type"`
	Data any    `json:"data"`
}

// Hub tracks connected clients and fans messages out to them
type Hub struct {
	clients    map[*Client]struct{}
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	done       chan struct{}
	mu         sync.RWMutex

	origins *OriginChecker
	logger  *logger.Logger
	dropped atomic.Int64
}

// NewHub creates a hub accepting connections from allowedOrigins. An empty
// list or "*" allows every origin.
func NewHub(allowedOrigins []string, log *logger.Logger) *Hub {
	if log == nil {
		log = logger.NewDiscard()
	}
	return &Hub{
		clients:    make(map[*Client]struct{}),
		broadcast:  make(chan []byte, 256),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		done:       make(chan struct{}),
		origins:    NewOriginChecker(allowedOrigins),
		logger:     log.WithField("component", "ws_hub"),
	}
}

// Run processes registrations and broadcasts until ctx is cancelled, then
// disconnects every client
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			close(h.done)
			h.mu.Lock()
			for client := range h.clients {
				delete(h.clients, client)
				close(client.send)
				metrics.FeedClients.Dec()
			}
			h.mu.Unlock()
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = struct{}{}
			total := len(h.clients)
			h.mu.Unlock()
			metrics.FeedClients.Inc()
			h.logger.Debug("client connected", "clients", total)

		case client := <-h.unregister:
			h.remove(client)

		case message := <-h.broadcast:
			h.mu.RLock()
			clients := make([]*Client, 0, len(h.clients))
			for client := range h.clients {
				clients = append(clients, client)
			}
			h.mu.RUnlock()

			for _, client := range clients {
				select {
				case client.send <- message:
				default:
					// Slow client: drop it rather than block the others.
					h.remove(client)
				}
			}
		}
	}
}

func (h *Hub) remove(client *Client) {
	h.mu.Lock()
	_, ok := h.clients[client]
	if ok {
		delete(h.clients, client)
		close(client.send)
	}
	total := len(h.clients)
	h.mu.Unlock()

	if ok {
		metrics.FeedClients.Dec()
		h.logger.Debug("client disconnected", "clients", total)
	}
}

// Broadcast queues a message for every client. It never blocks; when the
// queue is full the message is dropped.
func (h *Hub) Broadcast(msgType string, data any) error {
	payload, err := json.Marshal(Message{Type: msgType, Data: data})
	if err != nil {
		return fmt.Errorf("failed to encode %s message: %w", msgType, err)
	}

	select {
	case h.broadcast <- payload:
	default:
		h.dropped.Add(1)
		h.logger.Warn("broadcast queue full, message dropped", "type", msgType)
	}
	return nil
}

// CredentialListener forwards credential store changes to clients
func (h *Hub) CredentialListener() credential.Listener {
	return func(c credential.Change) {
		if err := h.Broadcast(TypeCredentialChange, c); err != nil {
			h.logger.Warn("failed to broadcast credential change", "error", err)
		}
	}
}

// ClientCount returns the number of connected clients
func (h *Hub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// DroppedMessages returns how many broadcasts were dropped
func (h *Hub) DroppedMessages() int64 {
	return h.dropped.Load()
}
