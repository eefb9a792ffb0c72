package gateway

import (
	"encoding/json"
	"log"
	"sync"
	"time"

	"github.com/gofiber/contrib/websocket"

	"github.com/yapper/campaign/internal/model"
)

// WSClient is one connected frontend.
type WSClient struct {
	Conn *websocket.Conn
	Send chan []byte
}

// Hub fans campaign events out to every connected frontend. There is a
// single campaign, so every client sees every message.
type Hub struct {
	clients map[*WSClient]bool

	register   chan *WSClient
	unregister chan *WSClient
	broadcast  chan []byte

	mu sync.RWMutex
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[*WSClient]bool),
		register:   make(chan *WSClient),
		unregister: make(chan *WSClient),
		broadcast:  make(chan []byte, 256),
	}
}

// Run starts the hub's main loop
func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client] = true
			h.mu.Unlock()
			log.Printf("[Hub] client connected (%d total)", h.clientCount())

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client]; ok {
				delete(h.clients, client)
				close(client.Send)
			}
			h.mu.Unlock()
			log.Printf("[Hub] client disconnected (%d total)", h.clientCount())

		case msg := <-h.broadcast:
			h.mu.Lock()
			for client := range h.clients {
				select {
				case client.Send <- msg:
				default:
					// Slow client; drop it rather than block the hub.
					close(client.Send)
					delete(h.clients, client)
				}
			}
			h.mu.Unlock()
		}
	}
}

func (h *Hub) clientCount() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return len(h.clients)
}

// PublishStage broadcasts a stage transition with the full campaign
// snapshot.
func (h *Hub) PublishStage(state model.CampaignState) {
	h.send(model.WSStageMessage{
		Type:  model.WSMessageTypeStage,
		Stage: state.Stage,
		State: state,
	})
}

// PublishStatus relays one generation status snapshot.
func (h *Hub) PublishStatus(update model.StatusUpdate) {
	h.send(model.WSStatusMessage{
		Type:   model.WSMessageTypeStatus,
		Update: update,
	})
}

// PublishStreamError reports that the status stream gave up and needs an
// explicit restart.
func (h *Hub) PublishStreamError(jobID, message string) {
	h.send(model.WSStreamErrorMessage{
		Type:    model.WSMessageTypeStreamError,
		JobID:   jobID,
		Message: message,
	})
}

func (h *Hub) send(msg interface{}) {
	data, err := json.Marshal(msg)
	if err != nil {
		log.Printf("[Hub] failed to marshal message: %v", err)
		return
	}
	h.broadcast <- data
}

// HandleConnection serves one WebSocket client until it disconnects.
func (h *Hub) HandleConnection(c *websocket.Conn) {
	client := &WSClient{
		Conn: c,
		Send: make(chan []byte, 256),
	}

	h.register <- client
	defer func() { h.unregister <- client }()

	// Writer goroutine
	go func() {
		ticker := time.NewTicker(30 * time.Second)
		defer ticker.Stop()

		for {
			select {
			case message, ok := <-client.Send:
				if !ok {
					c.WriteMessage(websocket.CloseMessage, []byte{})
					return
				}
				if err := c.WriteMessage(websocket.TextMessage, message); err != nil {
					return
				}

			case <-ticker.C:
				// Keep-alive ping
				if err := c.WriteMessage(websocket.PingMessage, nil); err != nil {
					return
				}
			}
		}
	}()

	// Reader loop
	for {
		_, message, err := c.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				log.Printf("[Hub] websocket error: %v", err)
			}
			break
		}

		var msg model.WSMessage
		if err := json.Unmarshal(message, &msg); err != nil {
			continue
		}

		if msg.Type == model.WSMessageTypePing {
			pong := model.WSMessage{Type: model.WSMessageTypePong}
			data, _ := json.Marshal(pong)
			client.Send <- data
		}
	}
}
