package web

import (
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/teslashibe/go-jarvis/pkg/hub"
)

// InputRequest is the body of POST /api/input.
type InputRequest struct {
	Text string `json:"text"`
}

func (s *Server) handleHealth(c *fiber.Ctx) error {
	resp := fiber.Map{"status": "ok"}
	if s.devices != nil {
		resp["devices"] = s.devices.Count()
	}
	return c.JSON(resp)
}

// handleState returns the orchestrator state
func (s *Server) handleState(c *fiber.Ctx) error {
	return c.JSON(s.assistant.State())
}

// handleMessages returns the visible message log
func (s *Server) handleMessages(c *fiber.Ctx) error {
	return c.JSON(s.assistant.Messages())
}

// handleInput submits typed text as a user turn
func (s *Server) handleInput(c *fiber.Ctx) error {
	var req InputRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": err.Error()})
	}
	text := strings.TrimSpace(req.Text)
	if text == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "text is required"})
	}

	s.assistant.ManualInput(text)
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

func (s *Server) handleToggleMic(c *fiber.Ctx) error {
	s.assistant.ToggleMic()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

func (s *Server) handleClear(c *fiber.Ctx) error {
	s.assistant.Clear()
	return c.Status(fiber.StatusAccepted).JSON(fiber.Map{"status": "accepted"})
}

// handleVoices lists the synthesis voices
func (s *Server) handleVoices(c *fiber.Ctx) error {
	if s.voices == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "voice catalogue not configured"})
	}
	voices, err := s.voices.Voices(c.UserContext())
	if err != nil {
		s.logger.Warnw("list voices", "error", err)
		return c.Status(fiber.StatusBadGateway).JSON(fiber.Map{"error": err.Error()})
	}
	return c.JSON(fiber.Map{"voices": voices})
}

// handleTools returns available local tools
func (s *Server) handleTools(c *fiber.Ctx) error {
	if s.tools == nil {
		return c.JSON(fiber.Map{"tools": []string{}})
	}
	return c.JSON(fiber.Map{"tools": s.tools.Tags()})
}

func (s *Server) handleLatency(c *fiber.Ctx) error {
	if s.latency == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{"error": "latency tracking disabled"})
	}
	return c.JSON(fiber.Map{
		"current": s.latency.Current(),
		"average": s.latency.Average(),
		"turns":   s.latency.Turns(),
	})
}

// handleStateWS streams dashboard events
func (s *Server) handleStateWS(c *websocket.Conn) {
	client := hub.NewClient(s.stateHub, c)
	if client == nil {
		return
	}
	client.Run()
}
