package ws

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"
)

// Handler upgrades to a WebSocket subscription. ?identity_id=<uuid> limits
// the stream to one identity.
func Handler(hub *Hub) fiber.Handler {
	return websocket.New(func(c *websocket.Conn) {
		var identityID uuid.UUID
		if v, ok := c.Locals("identity_id").(uuid.UUID); ok {
			identityID = v
		}

		client := &Client{
			hub:        hub,
			conn:       c,
			identityID: identityID,
			send:       make(chan []byte, 256),
		}

		if !hub.join(client) {
			_ = c.Close()
			return
		}

		go client.WritePump()
		client.ReadPump()
	})
}

// UpgradeMiddleware rejects plain HTTP requests and validates the filter.
func UpgradeMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if !websocket.IsWebSocketUpgrade(c) {
			return fiber.ErrUpgradeRequired
		}
		if raw := c.Query("identity_id"); raw != "" {
			id, err := uuid.Parse(raw)
			if err != nil {
				return fiber.NewError(fiber.StatusBadRequest, "identity_id must be a UUID")
			}
			c.Locals("identity_id", id)
		}
		return c.Next()
	}
}
