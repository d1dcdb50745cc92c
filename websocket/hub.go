package websocket

import (
	"context"

	"github.com/anjiri1684/zukih_store/services"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// Conn is the part of a websocket connection the hub writes to.
type Conn interface {
	WriteJSON(v interface{}) error
	Close() error
}

type Client struct {
	UserID uuid.UUID
	Conn   Conn
}

// StatusMessage is what a paying user's browser receives when a payment settles.
type StatusMessage struct {
	Type string `json:"type"`
	services.PaymentUpdate
}

type delivery struct {
	userID  uuid.UUID
	message StatusMessage
}

// Hub fans payment status updates out to every open connection of the paying user.
type Hub struct {
	clients    map[uuid.UUID]map[Conn]struct{}
	register   chan *Client
	unregister chan *Client
	broadcast  chan delivery
	done       chan struct{}
}

func NewHub() *Hub {
	return &Hub{
		clients:    make(map[uuid.UUID]map[Conn]struct{}),
		register:   make(chan *Client),
		unregister: make(chan *Client),
		broadcast:  make(chan delivery, 256),
		done:       make(chan struct{}),
	}
}

// Register adds client to the hub. Once the hub has stopped the connection is closed instead.
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.done:
		client.Conn.Close()
	}
}

// Unregister is a no-op once the hub has stopped.
func (h *Hub) Unregister(client *Client) {
	select {
	case h.unregister <- client:
	case <-h.done:
	}
}

// PaymentStatusChanged queues an update. It never blocks the caller; a full queue drops the update.
func (h *Hub) PaymentStatusChanged(userID uuid.UUID, update services.PaymentUpdate) {
	select {
	case h.broadcast <- delivery{userID: userID, message: StatusMessage{Type: "payment_status", PaymentUpdate: update}}:
	default:
		logrus.WithField("user_id", userID).Warn("Websocket broadcast queue full, dropping payment update")
	}
}

// Run owns the client map until ctx is cancelled.
func (h *Hub) Run(ctx context.Context) {
	defer close(h.done)
	for {
		select {
		case <-ctx.Done():
			for _, conns := range h.clients {
				for conn := range conns {
					conn.Close()
				}
			}
			return

		case client := <-h.register:
			conns, ok := h.clients[client.UserID]
			if !ok {
				conns = make(map[Conn]struct{})
				h.clients[client.UserID] = conns
			}
			conns[client.Conn] = struct{}{}
			logrus.WithField("user_id", client.UserID).Debug("Client registered")

		case client := <-h.unregister:
			h.remove(client.UserID, client.Conn)
			logrus.WithField("user_id", client.UserID).Debug("Client unregistered")

		case d := <-h.broadcast:
			for conn := range h.clients[d.userID] {
				if err := conn.WriteJSON(d.message); err != nil {
					logrus.WithError(err).WithField("user_id", d.userID).Warn("Error sending payment update to client")
					conn.Close()
					h.remove(d.userID, conn)
				}
			}
		}
	}
}

func (h *Hub) remove(userID uuid.UUID, conn Conn) {
	conns, ok := h.clients[userID]
	if !ok {
		return
	}
	delete(conns, conn)
	if len(conns) == 0 {
		delete(h.clients, userID)
	}
}
