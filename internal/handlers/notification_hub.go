package handlers

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true
	},
}

// GlobalHub is the single notification hub of the application.
var GlobalHub = NewHub()

// WorkflowEvent is what subscribers receive whenever a document moves.
type WorkflowEvent struct {
	TypeDoc  string    `json:"typeDoc"`
	ID       uint      `json:"id"`
	Statut   string    `json:"statut"`
	Motif    string    `json:"motif,omitempty"`
	Horodate time.Time `json:"horodate"`
}

type wsClient struct {
	hub    *Hub
	conn   *websocket.Conn
	send   chan []byte
	userID uint
}

// Hub fans workflow events out to connected agents.
type Hub struct {
	clients    map[uint]*wsClient
	broadcast  chan []byte
	register   chan *wsClient
	unregister chan *wsClient
	mu         sync.Mutex
}

func NewHub() *Hub {
	return &Hub{
		broadcast:  make(chan []byte, 64),
		register:   make(chan *wsClient),
		unregister: make(chan *wsClient),
		clients:    make(map[uint]*wsClient),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			h.mu.Lock()
			h.clients[client.userID] = client
			h.mu.Unlock()
			slog.Info("Notification client registered", "user_id", client.userID)

		case client := <-h.unregister:
			h.mu.Lock()
			if _, ok := h.clients[client.userID]; ok {
				delete(h.clients, client.userID)
				close(client.send)
			}
			h.mu.Unlock()
			slog.Info("Notification client unregistered", "user_id", client.userID)

		case data := <-h.broadcast:
			h.mu.Lock()
			for userID, client := range h.clients {
				select {
				case client.send <- data:
				default:
					// Slow consumer: drop it rather than stall the hub.
					delete(h.clients, userID)
					close(client.send)
				}
			}
			h.mu.Unlock()
		}
	}
}

// NotifyWorkflow pushes one workflow event to every connected agent. Never
// blocks the calling handler.
func (h *Hub) NotifyWorkflow(typeDoc string, id uint, statut, motif string) {
	event := WorkflowEvent{
		TypeDoc:  typeDoc,
		ID:       id,
		Statut:   statut,
		Motif:    motif,
		Horodate: time.Now(),
	}
	data, err := json.Marshal(event)
	if err != nil {
		slog.Error("Failed to marshal workflow event", "error", err)
		return
	}
	select {
	case h.broadcast <- data:
	default:
		slog.Warn("Notification buffer full, event dropped", "typeDoc", typeDoc, "id", id)
	}
}

// NotificationsWSHandler upgrades the connection and subscribes the agent to
// workflow events.
func NotificationsWSHandler(c *gin.Context) {
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		slog.Error("WebSocket upgrade failed", "error", err)
		return
	}
	client := &wsClient{
		hub:    GlobalHub,
		conn:   conn,
		send:   make(chan []byte, 16),
		userID: currentUserID(c),
	}
	GlobalHub.register <- client

	go client.writePump()
	go client.readPump()
}

func (cl *wsClient) writePump() {
	defer cl.conn.Close()
	for data := range cl.send {
		if err := cl.conn.WriteMessage(websocket.TextMessage, data); err != nil {
			return
		}
	}
}

// readPump only watches for the close frame; subscribers never send payloads.
func (cl *wsClient) readPump() {
	defer func() {
		cl.hub.unregister <- cl
		cl.conn.Close()
	}()
	for {
		if _, _, err := cl.conn.ReadMessage(); err != nil {
			return
		}
	}
}
