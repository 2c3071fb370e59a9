package network

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/civforge/civsim/internal/events"
	"github.com/civforge/civsim/internal/infra/cache"
	"github.com/civforge/civsim/internal/platform/logger"
	"github.com/civforge/civsim/internal/platform/metrics"
)

// Message envelope kinds pushed to viewers.
const (
	MessageSnapshot = "snapshot"
	MessageEvent    = "event"
	MessageRunEnd   = "run_end"
)

// Envelope wraps every outbound message so viewers can dispatch on kind.
type Envelope struct {
	Kind string      `json:"kind"`
	Data interface{} `json:"data"`
}

// Hub maintains the set of active viewers and broadcasts messages to them.
// Viewers are read-only; a slow viewer gets dropped rather than stalling the
// simulation.
type Hub struct {
	clients    map[*Client]bool
	broadcast  chan []byte
	register   chan *Client
	unregister chan *Client
	mu         sync.Mutex
	logger     *logger.Logger
	state      *cache.StateCache
}

// NewHub initializes a new WebSocket Hub.
func NewHub(log *logger.Logger) *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		clients:    make(map[*Client]bool),
		logger:     log,
	}
}

// SetStateCache makes the hub greet new viewers with the latest snapshot
// instead of leaving them blank until the next tick.
func (h *Hub) SetStateCache(c *cache.StateCache) {
	h.state = c
}

// Run starts the Hub's main loop to handle viewer connections and broadcasts.
func (h *Hub) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			h.logger.Info("WebSocket Hub shutting down.")
			return
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			metrics.Get().RecordWSConnection(1)
			h.logger.Info("New viewer connected")
		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
				metrics.Get().RecordWSConnection(-1)
				h.logger.Info("Viewer disconnected")
			}
			h.mu.Unlock()
		case message := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.send <- message:
					metrics.Get().RecordWSMessage()
				default:
					close(client.send)
					delete(h.clients, client)
					metrics.Get().RecordWSConnection(-1)
				}
			}
			h.mu.Unlock()
		}
	}
}

// Broadcast serializes an envelope and queues it for every viewer.
func (h *Hub) Broadcast(kind string, data interface{}) {
	payload, err := json.Marshal(Envelope{Kind: kind, Data: data})
	if err != nil {
		metrics.Get().RecordWSError()
		h.logger.Errorf("Failed to serialize %s for broadcast: %v", kind, err)
		return
	}
	h.broadcast <- payload
}

// BroadcastEvent pushes a single simulation event to all viewers.
func (h *Hub) BroadcastEvent(event events.Event) {
	h.Broadcast(MessageEvent, event)
}

// StartEventPoller spawns a goroutine that polls the event log and pushes new
// events to the Hub. The Hub runs independently from the scheduler's tick
// loop while picking up the same events.
func (h *Hub) StartEventPoller(ctx context.Context, eventLog *events.Log) {
	go func() {
		poll := time.NewTicker(200 * time.Millisecond)
		defer poll.Stop()

		cursor := 0

		for {
			select {
			case <-ctx.Done():
				return
			case <-poll.C:
				fresh := eventLog.Since(cursor)
				for _, event := range fresh {
					h.BroadcastEvent(event)
				}
				cursor += len(fresh)
			}
		}
	}()
}

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	// Viewers connect from anywhere; there is nothing to protect on a
	// read-only feed.
	CheckOrigin: func(*http.Request) bool { return true },
}

// ServeWS upgrades an HTTP request and attaches the viewer to the hub.
func (h *Hub) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		metrics.Get().RecordWSError()
		h.logger.Errorf("WebSocket upgrade failed: %v", err)
		return
	}
	client := NewClient(h, conn)
	client.Register()

	// Catch-up: a mid-run viewer gets the current state immediately.
	if h.state != nil {
		if snap, ok := h.state.Latest(); ok {
			if payload, err := json.Marshal(Envelope{Kind: MessageSnapshot, Data: snap}); err == nil {
				client.send <- payload
			}
		}
	}

	go client.WritePump()
	go client.ReadPump()
}
