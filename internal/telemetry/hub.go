package telemetry

import (
	"context"
	"net/http"
	"sync"
	"time"

	"github.com/golang/glog"
	"github.com/gorilla/websocket"

	"github.com/san-kum/servosteer/internal/steer"
)

const writeWait = time.Second

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

// Hub broadcasts every report to connected websocket clients. Clients that
// fail a write are dropped.
type Hub struct {
	mu      sync.Mutex
	clients map[*websocket.Conn]bool
}

func NewHub() *Hub {
	return &Hub{clients: make(map[*websocket.Conn]bool)}
}

func (h *Hub) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		glog.Warningf("telemetry: upgrade: %v", err)
		return
	}

	h.mu.Lock()
	h.clients[ws] = true
	h.mu.Unlock()

	// Nothing is read from clients; the read only detects a close.
	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			h.drop(ws)
			return
		}
	}
}

func (h *Hub) drop(ws *websocket.Conn) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.clients[ws] {
		delete(h.clients, ws)
		ws.Close()
	}
}

func (h *Hub) Clients() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return len(h.clients)
}

func (h *Hub) Report(_ context.Context, r steer.Report) error {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.clients {
		ws.SetWriteDeadline(time.Now().Add(writeWait))
		if err := ws.WriteJSON(r); err != nil {
			glog.V(1).Infof("telemetry: dropping client %s: %v", ws.RemoteAddr(), err)
			delete(h.clients, ws)
			ws.Close()
		}
	}
	return nil
}

// Close disconnects every client.
func (h *Hub) Close() {
	h.mu.Lock()
	defer h.mu.Unlock()
	for ws := range h.clients {
		ws.Close()
		delete(h.clients, ws)
	}
}
