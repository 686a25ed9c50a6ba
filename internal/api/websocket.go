package api

import (
	"encoding/json"
	"log"
	"net/http"
	"sync"

	"nhooyr.io/websocket"
)

// ──────────────────── WebSocket Hub ────────────────────

type WSHub struct {
	mu         sync.RWMutex
	clients    map[*WSClient]bool
	activeJobs map[string]json.RawMessage // video_id → last detect:progress payload
	jobsMu     sync.RWMutex
}

type WSClient struct {
	conn *websocket.Conn
	send chan []byte
}

type WSMessage struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

func NewWSHub() *WSHub {
	return &WSHub{
		clients:    make(map[*WSClient]bool),
		activeJobs: make(map[string]json.RawMessage),
	}
}

func (h *WSHub) Broadcast(event string, data interface{}) {
	msg, err := json.Marshal(WSMessage{Event: event, Data: data})
	if err != nil {
		return
	}

	// Track in-flight detection state for new client sync
	h.trackJob(event, data, msg)

	h.mu.RLock()
	defer h.mu.RUnlock()
	for client := range h.clients {
		select {
		case client.send <- msg:
		default:
		}
	}
}

// trackJob keeps a snapshot of each running detection so new clients get
// current state; terminal events clear the snapshot.
func (h *WSHub) trackJob(event string, data interface{}, raw []byte) {
	m, ok := data.(map[string]interface{})
	if !ok {
		return
	}
	videoID, _ := m["video_id"].(string)
	if videoID == "" {
		return
	}

	h.jobsMu.Lock()
	defer h.jobsMu.Unlock()
	switch event {
	case "detect:progress":
		h.activeJobs[videoID] = json.RawMessage(raw)
	case "detect:complete", "detect:failed", "detect:cancelled":
		delete(h.activeJobs, videoID)
	}
}

// sendActiveJobs replays current detection state to a newly connected client.
func (h *WSHub) sendActiveJobs(client *WSClient) {
	h.jobsMu.RLock()
	defer h.jobsMu.RUnlock()
	for _, msg := range h.activeJobs {
		select {
		case client.send <- msg:
		default:
		}
	}
}

func (h *WSHub) addClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.clients[c] = true
}

func (h *WSHub) removeClient(c *WSClient) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if _, ok := h.clients[c]; ok {
		close(c.send)
		delete(h.clients, c)
	}
}

func (h *WSHub) ClientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// ──────────────────── WebSocket Handler ────────────────────

func (s *Server) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		InsecureSkipVerify: true,
	})
	if err != nil {
		log.Printf("WebSocket accept error: %v", err)
		return
	}

	client := &WSClient{
		conn: conn,
		send: make(chan []byte, 64),
	}

	s.wsHub.addClient(client)
	s.wsHub.sendActiveJobs(client)
	log.Printf("WebSocket client connected (%d active)", s.wsHub.ClientCount())

	ctx := r.Context()

	// Writer goroutine
	go func() {
		defer conn.Close(websocket.StatusNormalClosure, "")
		for msg := range client.send {
			if err := conn.Write(ctx, websocket.MessageText, msg); err != nil {
				return
			}
		}
	}()

	// Reader goroutine (keep connection alive, handle pings)
	for {
		_, _, err := conn.Read(ctx)
		if err != nil {
			break
		}
	}

	s.wsHub.removeClient(client)
	log.Printf("WebSocket client disconnected")
}
