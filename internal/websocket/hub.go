// Package groupws fans study-group messages out to connected members.
package groupws

import (
	"context"
	"encoding/json"
	"log"
	"strconv"
	"sync"
	"time"

	websocket "github.com/gofiber/contrib/websocket"

	"github.com/eduniche/eduniche-backend/internal/models"
)

type Hub struct {
	rooms      map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan *Message
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  int64
	groupID int64

	mu     sync.Mutex
	closed bool
	send   chan []byte
}

// enqueue hands a payload to the client's writer. Returns false when the
// buffer is full or the client has been evicted; the send never panics on a
// closed channel.
func (c *Client) enqueue(payload []byte) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		return false
	}
	select {
	case c.send <- payload:
		return true
	default:
		return false
	}
}

func (c *Client) closeSend() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if !c.closed {
		c.closed = true
		close(c.send)
	}
}

type messagePoster interface {
	PostMessage(ctx context.Context, groupID, senderID int64, content string) (*models.GroupMessage, error)
}

type Message struct {
	Type      string `json:"type"`
	GroupID   string `json:"group_id"`
	SenderID  string `json:"sender_id,omitempty"`
	Content   string `json:"content"`
	Timestamp string `json:"timestamp"`
}

func NewHub() *Hub {
	return &Hub{
		rooms:      make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan *Message, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID, groupID int64) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		groupID: groupID,
		send:    make(chan []byte, 32),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			room, ok := h.rooms[client.groupID]
			if !ok {
				room = make(map[*Client]struct{})
				h.rooms[client.groupID] = room
			}
			room[client] = struct{}{}
		case client := <-h.unregister:
			room, ok := h.rooms[client.groupID]
			if !ok {
				continue
			}
			if _, exists := room[client]; exists {
				delete(room, client)
				client.closeSend()
			}
			if len(room) == 0 {
				delete(h.rooms, client.groupID)
			}
		case message := <-h.broadcast:
			h.deliver(message)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Broadcast fans a stored message out to the group's room. Safe to call from
// request handlers.
func (h *Hub) Broadcast(groupID int64, message *models.GroupMessage) {
	h.broadcast <- &Message{
		Type:      "message",
		GroupID:   strconv.FormatInt(groupID, 10),
		SenderID:  strconv.FormatInt(message.SenderID, 10),
		Content:   message.Content,
		Timestamp: message.CreatedAt.UTC().Format(time.RFC3339),
	}
}

func (h *Hub) deliver(message *Message) {
	groupID, err := strconv.ParseInt(message.GroupID, 10, 64)
	if err != nil {
		return
	}
	encoded, err := json.Marshal(message)
	if err != nil {
		log.Printf("group hub encode message: %v", err)
		return
	}

	room, ok := h.rooms[groupID]
	if !ok {
		return
	}
	for client := range room {
		if !client.enqueue(encoded) {
			delete(room, client)
			client.closeSend()
		}
	}
	if len(room) == 0 {
		delete(h.rooms, groupID)
	}
}

func (c *Client) ReadPump(service messagePoster) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		var incoming struct {
			Type    string `json:"type"`
			Content string `json:"content"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			writeError(c, "unsupported message type")
			continue
		}

		message, err := service.PostMessage(context.Background(), c.groupID, c.userID, incoming.Content)
		if err != nil {
			writeError(c, "failed to send message")
			continue
		}

		c.hub.Broadcast(c.groupID, message)
	}
}

func (c *Client) WritePump() {
	defer func() {
		_ = c.conn.Close()
	}()

	for payload := range c.send {
		if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
			return
		}
	}
}

func writeError(client *Client, message string) {
	payload, err := json.Marshal(Message{
		Type:      "error",
		Content:   message,
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	if !client.enqueue(payload) {
		client.hub.Unregister(client)
	}
}
