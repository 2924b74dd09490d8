package push

import (
	"context"
	"encoding/json"
	"log"
	"time"

	websocket "github.com/gofiber/contrib/websocket"
	"golang.org/x/time/rate"

	"github.com/valzamustafa/TourismHub-sub000/internal/services"
)

// Hub is the address book from user identity to that user's open channels.
// All map access happens on the Run goroutine, so register, unregister and
// dispatch never race; per-user submission order is preserved because both
// the hub loop and each client's send channel are FIFO.
type Hub struct {
	clients    map[int64]map[*Client]struct{}
	register   chan *Client
	unregister chan *Client
	dispatch   chan envelope
}

type envelope struct {
	userID  int64
	payload []byte
}

type Client struct {
	hub     *Hub
	conn    *websocket.Conn
	userID  int64
	send    chan []byte
	limiter *rate.Limiter
}

type sender interface {
	SendMessage(
		ctx context.Context,
		actorID int64,
		conversationID int64,
		body string,
	) (*services.ChatDelivery, error)
}

type errorFrame struct {
	Type   string `json:"type"`
	Error  string `json:"error"`
	SentAt string `json:"sent_at"`
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[int64]map[*Client]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		dispatch:   make(chan envelope, 64),
	}
}

func NewClient(hub *Hub, conn *websocket.Conn, userID int64) *Client {
	return &Client{
		hub:     hub,
		conn:    conn,
		userID:  userID,
		send:    make(chan []byte, 32),
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

func (h *Hub) Run() {
	for {
		select {
		case client := <-h.register:
			set, ok := h.clients[client.userID]
			if !ok {
				set = make(map[*Client]struct{})
				h.clients[client.userID] = set
			}
			set[client] = struct{}{}
		case client := <-h.unregister:
			set, ok := h.clients[client.userID]
			if !ok {
				continue
			}
			if _, exists := set[client]; exists {
				delete(set, client)
				close(client.send)
			}
			if len(set) == 0 {
				delete(h.clients, client.userID)
			}
		case env := <-h.dispatch:
			h.sendToUser(env.userID, env.payload)
		}
	}
}

func (h *Hub) Register(client *Client) {
	h.register <- client
}

func (h *Hub) Unregister(client *Client) {
	h.unregister <- client
}

// Dispatch fans a payload out to every open channel of the target user. A
// user with no open channels is a no-op; durability is the store's job, so
// callers never learn whether anyone was listening.
func (h *Hub) Dispatch(userID int64, payload any) {
	encoded, err := json.Marshal(payload)
	if err != nil {
		log.Printf("push hub encode payload: %v", err)
		return
	}
	h.dispatch <- envelope{userID: userID, payload: encoded}
}

func (h *Hub) sendToUser(userID int64, payload []byte) {
	set, ok := h.clients[userID]
	if !ok {
		return
	}

	for client := range set {
		select {
		case client.send <- payload:
		default:
			// Stale or saturated channel: drop the client, never the event.
			delete(set, client)
			close(client.send)
		}
	}
	if len(set) == 0 {
		delete(h.clients, userID)
	}
}

func (c *Client) ReadPump(service sender) {
	defer func() {
		c.hub.Unregister(c)
		_ = c.conn.Close()
	}()

	for {
		_, payload, err := c.conn.ReadMessage()
		if err != nil {
			return
		}

		if !c.limiter.Allow() {
			writeError(c, "too many messages")
			continue
		}

		var incoming struct {
			Type           string `json:"type"`
			ConversationID int64  `json:"conversation_id"`
			Body           string `json:"body"`
		}
		if err := json.Unmarshal(payload, &incoming); err != nil {
			writeError(c, "invalid message payload")
			continue
		}
		if incoming.Type != "message" {
			writeError(c, "unsupported message type")
			continue
		}
		if incoming.ConversationID <= 0 {
			writeError(c, "invalid conversation id")
			continue
		}

		// The service persists first and dispatches to both participants
		// after commit, so there is nothing to broadcast from here.
		if _, err := service.SendMessage(
			context.Background(),
			c.userID,
			incoming.ConversationID,
			incoming.Body,
		); err != nil {
			writeError(c, "failed to send message")
			continue
		}
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
	payload, err := json.Marshal(errorFrame{
		Type:   "error",
		Error:  message,
		SentAt: time.Now().UTC().Format(time.RFC3339),
	})
	if err != nil {
		return
	}
	select {
	case client.send <- payload:
	default:
		client.hub.Unregister(client)
	}
}
