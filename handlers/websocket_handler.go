package handlers

import (
	"github.com/anjiri1684/zukih_store/middleware"
	"github.com/anjiri1684/zukih_store/websocket"
	websocketcontrib "github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/sirupsen/logrus"
)

type AuthMessage struct {
	Type  string `json:"type"`
	Token string `json:"token"`
}

type WebsocketHandler struct {
	hub       *websocket.Hub
	jwtSecret string
}

func NewWebsocketHandler(hub *websocket.Hub, jwtSecret string) *WebsocketHandler {
	return &WebsocketHandler{hub: hub, jwtSecret: jwtSecret}
}

// ServeWs authenticates the connection with its first message, then keeps it registered
// for payment status pushes until the client goes away.
func (h *WebsocketHandler) ServeWs(c *websocketcontrib.Conn) {
	var authMsg AuthMessage
	if err := c.ReadJSON(&authMsg); err != nil || authMsg.Type != "auth" {
		logrus.WithError(err).Debug("WebSocket auth failed: invalid or missing auth message")
		_ = c.WriteJSON(fiber.Map{"error": "Invalid or missing auth message"})
		c.Close()
		return
	}

	userID, err := middleware.ParseToken(h.jwtSecret, authMsg.Token)
	if err != nil {
		logrus.WithError(err).Debug("WebSocket auth failed: invalid token")
		_ = c.WriteJSON(fiber.Map{"error": "Invalid token"})
		c.Close()
		return
	}

	// Only the hub writes once the client is registered.
	_ = c.WriteJSON(fiber.Map{"type": "authenticated"})

	client := &websocket.Client{UserID: userID, Conn: c}
	h.hub.Register(client)
	defer func() {
		h.hub.Unregister(client)
		c.Close()
	}()

	for {
		if _, _, err := c.ReadMessage(); err != nil {
			if !websocketcontrib.IsCloseError(err, websocketcontrib.CloseGoingAway, websocketcontrib.CloseNormalClosure) {
				logrus.WithError(err).WithField("user_id", userID).Debug("WebSocket read error")
			}
			return
		}
	}
}
