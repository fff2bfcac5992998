package device

import (
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
)

// RegisterRoutes registers the device WebSocket endpoint.
func (b *Bridge) RegisterRoutes(r fiber.Router) {
	r.Use("/ws/device", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			c.Locals("allowed", true)
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})

	r.Get("/ws/device", websocket.New(b.serve))
	r.Get("/ws/device/:id", websocket.New(b.serve))
}

// RegisterAPIRoutes registers device management routes.
func (b *Bridge) RegisterAPIRoutes(api fiber.Router) {
	devices := api.Group("/devices")

	devices.Get("/", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"devices": b.Infos(),
			"count":   b.Count(),
		})
	})

	devices.Get("/stats", func(c *fiber.Ctx) error {
		return c.JSON(b.GetStats())
	})
}
