package events

import (
	"log"
	"net/http"
	"sync"
	"time"

	"kb-research-report/internal/models"

	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // CORS is enforced at the HTTP layer
	},
}

// Hub is the live-progress sink: a per-user registry of websocket
// connections. Emit is fire-and-forget with at-most-once delivery; the
// pipeline never depends on delivery success.
type Hub struct {
	mutex       sync.RWMutex
	connections map[string][]*client
}

type client struct {
	conn  *websocket.Conn
	mutex sync.Mutex // gorilla conns allow one concurrent writer
}

// NewHub creates an empty progress hub
func NewHub() *Hub {
	return &Hub{
		connections: make(map[string][]*client),
	}
}

// Subscribe upgrades the HTTP request to a websocket and registers it under
// the user's ID. The connection is dropped on the first read error.
func (h *Hub) Subscribe(userID string, w http.ResponseWriter, r *http.Request) error {
	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		return err
	}

	c := &client{conn: conn}
	h.mutex.Lock()
	h.connections[userID] = append(h.connections[userID], c)
	h.mutex.Unlock()

	log.Printf("Progress subscriber connected for user %s", userID)

	// Reader loop: we never expect client messages, but reading is how
	// close/ping frames get processed.
	go func() {
		defer h.remove(userID, c)
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
					log.Printf("WARNING: progress subscriber for user %s closed abnormally: %v", userID, err)
				}
				return
			}
		}
	}()

	return nil
}

// Emit pushes an event to every live connection of the user. Failed writes
// only drop that connection; they never propagate to the caller.
func (h *Hub) Emit(userID string, event models.ProgressEvent) {
	h.mutex.RLock()
	clients := append([]*client(nil), h.connections[userID]...)
	h.mutex.RUnlock()

	for _, c := range clients {
		c.mutex.Lock()
		c.conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
		err := c.conn.WriteJSON(event)
		c.mutex.Unlock()
		if err != nil {
			log.Printf("WARNING: failed to emit %s to user %s: %v", event.Event, userID, err)
			h.remove(userID, c)
		}
	}
}

func (h *Hub) remove(userID string, target *client) {
	h.mutex.Lock()
	defer h.mutex.Unlock()

	clients := h.connections[userID]
	for i, c := range clients {
		if c == target {
			h.connections[userID] = append(clients[:i], clients[i+1:]...)
			_ = c.conn.Close()
			break
		}
	}
	if len(h.connections[userID]) == 0 {
		delete(h.connections, userID)
	}
}
