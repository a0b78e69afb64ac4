package server

import (
	"log"
	"net/http"
	"sync"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"

	"github.com/grabtube/grabtube/internal/model"
)

// broadcastBuffer bounds queued updates; when listeners are slow, older
// updates are dropped rather than blocking the tracker callback.
const broadcastBuffer = 256

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// Hub fans job snapshots out to every connected websocket client. Clients
// are write-only from the server's perspective; a failed write drops the
// client.
type Hub struct {
	mu        sync.Mutex
	clients   map[*websocket.Conn]bool
	broadcast chan model.Snapshot
	done      chan struct{}
}

func NewHub() *Hub {
	h := &Hub{
		clients:   make(map[*websocket.Conn]bool),
		broadcast: make(chan model.Snapshot, broadcastBuffer),
		done:      make(chan struct{}),
	}
	go h.run()
	return h
}

func (h *Hub) run() {
	for {
		select {
		case snapshot := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				if err := client.WriteJSON(snapshot); err != nil {
					client.Close()
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		case <-h.done:
			h.mu.Lock()
			for client := range h.clients {
				client.Close()
				delete(h.clients, client)
			}
			h.mu.Unlock()
			return
		}
	}
}

// Broadcast queues a snapshot for delivery. Never blocks; under backpressure
// the update is dropped and the next one carries the fresher state anyway.
func (h *Hub) Broadcast(snapshot model.Snapshot) {
	select {
	case h.broadcast <- snapshot:
	default:
	}
}

// HandleUpgrade upgrades an HTTP request to a websocket and registers the
// client for job updates.
func (h *Hub) HandleUpgrade(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("Websocket upgrade failed: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[conn] = true
	h.mu.Unlock()

	go h.readLoop(conn)
}

// readLoop discards inbound frames so close and ping control messages are
// processed, and deregisters the client as soon as the connection drops
// instead of waiting for the next failed write.
func (h *Hub) readLoop(conn *websocket.Conn) {
	for {
		if _, _, err := conn.NextReader(); err != nil {
			h.mu.Lock()
			if h.clients[conn] {
				conn.Close()
				delete(h.clients, conn)
			}
			h.mu.Unlock()
			return
		}
	}
}

// ClientCount reports how many clients are connected.
func (h *Hub) ClientCount() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

// Close disconnects every client and stops the fan-out loop.
func (h *Hub) Close() {
	close(h.done)
}
