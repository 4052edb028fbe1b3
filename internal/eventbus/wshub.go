package eventbus

import (
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"github.com/bobmcallan/gardensync/internal/common"
	"github.com/bobmcallan/gardensync/internal/models"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// WSHub relays Bus events to connected browser tabs over WebSocket,
// scoped per user address so a tab only receives its own queue's events.
// It generalizes vire/internal/services/jobmanager/websocket.go's JobWSHub
// from a single global broadcast to a per-user fanout.
type WSHub struct {
	clients    map[*wsClient]bool
	register   chan *wsClient
	unregister chan *wsClient
	broadcast  chan taggedEvent
	done       chan struct{}
	mu         sync.RWMutex
	logger     *common.Logger
}

type taggedEvent struct {
	userAddress string
	event       models.QueueEvent
}

type wsClient struct {
	hub         *WSHub
	conn        *websocket.Conn
	send        chan []byte
	userAddress string
}

// NewWSHub creates a hub and subscribes it to every QueueEvent on bus.
// Call Run in its own goroutine before serving WebSocket traffic.
func NewWSHub(bus *Bus, logger *common.Logger) *WSHub {
	h := &WSHub{
		clients:    make(map[*wsClient]bool),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		broadcast:  make(chan taggedEvent, 256),
		done:       make(chan struct{}),
		logger:     logger,
	}

	for _, evt := range []models.QueueEventType{
		models.EventJobAdded,
		models.EventJobProcessing,
		models.EventJobCompleted,
		models.EventJobFailed,
		models.EventJobSkipped,
		models.EventQueueSyncStarted,
		models.EventQueueSyncCompleted,
	} {
		bus.On(evt, h.relay)
	}

	return h
}

// relay is the Bus handler that fans an event out to WebSocket clients.
// QueueEvent carries no explicit userAddress field — the job it wraps does
// — so relay derives the scope from evt.Job when present and broadcasts to
// every client otherwise (e.g. queue_sync_* events without a job).
func (h *WSHub) relay(evt models.QueueEvent) {
	userAddress := ""
	if evt.Job != nil {
		userAddress = evt.Job.UserAddress
	}
	select {
	case h.broadcast <- taggedEvent{userAddress: userAddress, event: evt}:
	default:
		h.logger.Warn().Msg("WebSocket broadcast channel full, dropping event")
	}
}

// Run starts the hub's event loop. Must run as a goroutine.
func (h *WSHub) Run() {
	for {
		select {
		case <-h.done:
			return

		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			h.logger.Debug().Int("clients", len(h.clients)).Msg("WebSocket client connected")

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.send)
			}
			h.mu.Unlock()
			h.logger.Debug().Int("clients", len(h.clients)).Msg("WebSocket client disconnected")

		case tagged := <-h.broadcast:
			data, err := json.Marshal(tagged.event)
			if err != nil {
				h.logger.Warn().Err(err).Msg("Failed to marshal queue event")
				continue
			}

			h.mu.RLock()
			var slow []*wsClient
			for client := range h.clients {
				if tagged.userAddress != "" && client.userAddress != "" && client.userAddress != tagged.userAddress {
					continue
				}
				select {
				case client.send <- data:
				default:
					slow = append(slow, client)
				}
			}
			h.mu.RUnlock()

			if len(slow) > 0 {
				h.mu.Lock()
				for _, c := range slow {
					delete(h.clients, c)
					close(c.send)
				}
				h.mu.Unlock()
			}
		}
	}
}

// Stop signals the event loop to exit.
func (h *WSHub) Stop() {
	select {
	case <-h.done:
	default:
		close(h.done)
	}
}

// ServeWS upgrades the request and registers a client scoped to userAddress.
func (h *WSHub) ServeWS(userAddress string, w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		h.logger.Warn().Err(err).Msg("WebSocket upgrade failed")
		return
	}

	client := &wsClient{hub: h, conn: conn, send: make(chan []byte, 256), userAddress: userAddress}
	h.register <- client

	go client.writePump()
	go client.readPump()
}

// ClientCount returns the number of connected clients.
func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

func (c *wsClient) writePump() {
	ticker := time.NewTicker(30 * time.Second)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case message, ok := <-c.send:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if !ok {
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				return
			}

		case <-ticker.C:
			c.conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}

func (c *wsClient) readPump() {
	defer func() {
		c.hub.unregister <- c
		c.conn.Close()
	}()

	c.conn.SetReadLimit(512)
	c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
	c.conn.SetPongHandler(func(string) error {
		c.conn.SetReadDeadline(time.Now().Add(60 * time.Second))
		return nil
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			break
		}
	}
}
