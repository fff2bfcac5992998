// Package web serves the assistant's dashboard API, the device and dashboard
// websockets, and Prometheus metrics.
package web

import (
	"context"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/websocket/v2"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/teslashibe/go-jarvis/pkg/conversation"
	"github.com/teslashibe/go-jarvis/pkg/device"
	"github.com/teslashibe/go-jarvis/pkg/hub"
	"github.com/teslashibe/go-jarvis/pkg/intent"
	"github.com/teslashibe/go-jarvis/pkg/metrics"
	"github.com/teslashibe/go-jarvis/pkg/orchestrator"
	"github.com/teslashibe/go-jarvis/pkg/tts"
)

const shutdownTimeout = 5 * time.Second

// Assistant is the orchestrator surface exposed over HTTP.
type Assistant interface {
	State() orchestrator.State
	Messages() []conversation.Message
	ManualInput(text string)
	ToggleMic()
	Clear()
}

// ToolLister reports the registered local tools.
type ToolLister interface {
	Tags() []intent.Tag
}

// Server is the web dashboard server
type Server struct {
	app  *fiber.App
	addr string

	assistant Assistant
	voices    tts.VoiceLister
	tools     ToolLister
	latency   *metrics.Collector
	devices   *device.Bridge
	staticDir string

	// Hub for websocket broadcast of state and messages
	stateHub *hub.Hub

	mu        sync.Mutex
	lastMsgID string
	lastCount int

	logger *zap.SugaredLogger
}

// Option configures a Server.
type Option func(*Server)

// WithVoices enables GET /api/voices.
func WithVoices(v tts.VoiceLister) Option {
	return func(s *Server) { s.voices = v }
}

// WithTools enables GET /api/tools.
func WithTools(t ToolLister) Option {
	return func(s *Server) { s.tools = t }
}

// WithLatency enables GET /api/latency and latency events.
func WithLatency(c *metrics.Collector) Option {
	return func(s *Server) { s.latency = c }
}

// WithDevices mounts the device websocket and /api/devices.
func WithDevices(b *device.Bridge) Option {
	return func(s *Server) { s.devices = b }
}

// WithStatic serves a dashboard from dir.
func WithStatic(dir string) Option {
	return func(s *Server) { s.staticDir = dir }
}

// WithLogger sets the logger.
func WithLogger(l *zap.Logger) Option {
	return func(s *Server) {
		if l != nil {
			s.logger = l.Sugar().With("component", "web.server")
		}
	}
}

// NewServer creates a dashboard server for assistant listening on addr.
func NewServer(addr string, assistant Assistant, opts ...Option) *Server {
	s := &Server{
		addr:      addr,
		assistant: assistant,
		logger:    zap.L().Sugar().With("component", "web.server"),
	}
	for _, opt := range opts {
		opt(s)
	}
	s.stateHub = hub.New("state", s.logger.Desugar())
	s.stateHub.OnConnect(s.sendSnapshot)

	app := fiber.New(fiber.Config{
		AppName:               "JARVIS",
		DisableStartupMessage: true,
	})

	// CORS for local development
	app.Use(cors.New())

	if s.staticDir != "" {
		app.Static("/", s.staticDir)
	}

	api := app.Group("/api")
	api.Get("/health", s.handleHealth)
	api.Get("/state", s.handleState)
	api.Get("/messages", s.handleMessages)
	api.Post("/input", s.handleInput)
	api.Post("/mic/toggle", s.handleToggleMic)
	api.Post("/clear", s.handleClear)
	api.Get("/voices", s.handleVoices)
	api.Get("/tools", s.handleTools)
	api.Get("/latency", s.handleLatency)

	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	if s.devices != nil {
		s.devices.RegisterRoutes(app)
		s.devices.RegisterAPIRoutes(api)
	}

	// Dashboard websocket
	app.Use("/ws/state", func(c *fiber.Ctx) error {
		if websocket.IsWebSocketUpgrade(c) {
			return c.Next()
		}
		return fiber.ErrUpgradeRequired
	})
	app.Get("/ws/state", websocket.New(s.handleStateWS))

	s.app = app
	return s
}

// App returns the underlying fiber app.
func (s *Server) App() *fiber.App {
	return s.app
}

// Run serves until ctx is cancelled, then shuts down gracefully.
func (s *Server) Run(ctx context.Context) error {
	go s.stateHub.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		s.logger.Infow("dashboard listening", "addr", s.addr)
		errCh <- s.app.Listen(s.addr)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		if err := s.app.ShutdownWithTimeout(shutdownTimeout); err != nil {
			s.logger.Warnw("shutdown", "error", err)
		}
		return nil
	}
}

// Observe broadcasts a state change, plus the message log when it changed.
// It is meant to be registered with Orchestrator.OnStateChange.
func (s *Server) Observe(st orchestrator.State) {
	s.stateHub.BroadcastEvent(hub.EventState, st)

	msgs := s.assistant.Messages()
	lastID := ""
	if n := len(msgs); n > 0 {
		lastID = msgs[n-1].ID
	}

	s.mu.Lock()
	changed := lastID != s.lastMsgID || len(msgs) != s.lastCount
	s.lastMsgID, s.lastCount = lastID, len(msgs)
	s.mu.Unlock()

	if changed {
		s.stateHub.BroadcastEvent(hub.EventMessages, msgs)
	}
}

// PublishLatency broadcasts a completed turn's latency.
func (s *Server) PublishLatency(l metrics.Latency) {
	s.stateHub.BroadcastEvent(hub.EventLatency, l)
}

// Hub returns the dashboard hub.
func (s *Server) Hub() *hub.Hub {
	return s.stateHub
}

func (s *Server) sendSnapshot(c *hub.Client) {
	if b, err := hub.EncodeEvent(hub.EventState, s.assistant.State()); err == nil {
		c.Send(hub.NewJSONMessage(b))
	}
	if b, err := hub.EncodeEvent(hub.EventMessages, s.assistant.Messages()); err == nil {
		c.Send(hub.NewJSONMessage(b))
	}
}
