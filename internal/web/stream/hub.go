package stream

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"
	"time"

	"homehub/internal/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Hub fans merged device documents out to connected websocket clients.
// Slow clients drop messages instead of stalling the pipeline.
type Hub struct {
	mu    sync.Mutex
	conns map[*websocket.Conn]chan []byte
}

func NewHub() *Hub {
	return &Hub{conns: make(map[*websocket.Conn]chan []byte)}
}

// BroadcastState queues a merged device document for every client.
func (h *Hub) BroadcastState(device *models.Device) {
	doc, err := json.Marshal(device)
	if err != nil {
		log.Printf("STREAM: Failed to encode device %s: %v", device.ID, err)
		return
	}

	h.mu.Lock()
	defer h.mu.Unlock()
	for conn, ch := range h.conns {
		select {
		case ch <- doc:
		default:
			log.Printf("STREAM: Client %s lagging, dropping update", conn.RemoteAddr())
		}
	}
}

// ServeHTTP upgrades the connection and streams state updates until the
// client goes away.
func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		log.Printf("STREAM: Upgrade failed: %v", err)
		return
	}

	ch := make(chan []byte, 16)
	h.mu.Lock()
	h.conns[conn] = ch
	h.mu.Unlock()

	defer func() {
		h.mu.Lock()
		delete(h.conns, conn)
		h.mu.Unlock()
		conn.Close()
	}()

	// Reader only consumes control frames; any error means the client left.
	done := make(chan struct{})
	go func() {
		defer close(done)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}()

	for {
		select {
		case doc := <-ch:
			conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
			if err := conn.WriteMessage(websocket.TextMessage, doc); err != nil {
				log.Printf("STREAM: Write to %s failed: %v", conn.RemoteAddr(), err)
				return
			}
		case <-done:
			return
		}
	}
}
