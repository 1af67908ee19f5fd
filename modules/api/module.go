package api

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/example/support-chat-relay/config"
	"github.com/example/support-chat-relay/events"
	"github.com/example/support-chat-relay/modules/chat"
	"github.com/example/support-chat-relay/modules/relay"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"
)

// RelayPort is the part of the relay the API drives.
type RelayPort interface {
	Connect(userID string, ch relay.Channel) error
	Dispatch(ctx context.Context, sender relay.Sender, frame []byte) error
	Disconnect(ctx context.Context, userID string, ch relay.Channel) []int64
	TypingSnapshot(roomID int64) []string
	Connections() int
}

// RelayProvider yields the running relay, or nil before its module started.
type RelayProvider interface {
	Relay() *relay.Relay
}

// Module is the HTTP API module with the real-time WebSocket endpoint.
type Module struct {
	app       *fiber.App
	chat      chat.ChatAdapterPort
	relays    RelayProvider
	relay     RelayPort
	verifier  *TokenVerifier
	cfg       *config.Config
	logger    types.Logger
	startTime time.Time
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new API module.
func NewModule(cfg *config.Config, logger types.Logger) *Module {
	m := &Module{
		cfg:    cfg,
		logger: logger,
	}
	if cfg.AuthEnabled() {
		m.verifier = NewTokenVerifier(cfg.JWTSecret, cfg.JWTIssuer)
	}
	return m
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.chat = chat.NewChatAdapter(container, events.SourceAPI)
	}
}

// SetRelay sets the relay provider (called from main.go).
func (m *Module) SetRelay(provider RelayProvider) {
	m.relays = provider
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.chat == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}
	if m.relays == nil && m.relay == nil {
		return fmt.Errorf("relay dependency not set")
	}

	m.app = m.newApp()
	m.startTime = time.Now()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(":" + m.cfg.Port); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("failed to start HTTP server: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on :%s (auth=%t)", m.cfg.Port, m.verifier != nil)
	return nil
}

// Stop shuts down the Fiber HTTP server.
func (m *Module) Stop(ctx context.Context) error {
	if m.app == nil {
		return nil
	}
	log.Println("[api] Shutting down HTTP server...")
	return m.app.ShutdownWithContext(ctx)
}

// Health returns the health status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	details := map[string]any{
		"port": m.cfg.Port,
		"auth": m.verifier != nil,
	}
	if r := m.liveRelay(); r != nil {
		details["connections"] = r.Connections()
	}
	if !m.startTime.IsZero() {
		details["uptime"] = time.Since(m.startTime).Round(time.Second).String()
	}
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: details,
	}
}

// liveRelay returns the relay once it is running. Module start order between
// api and relay is not fixed, so it is resolved per request.
func (m *Module) liveRelay() RelayPort {
	if m.relay != nil {
		return m.relay
	}
	if m.relays == nil {
		return nil
	}
	if r := m.relays.Relay(); r != nil {
		return r
	}
	return nil
}

// newApp builds the Fiber app with middleware and routes.
func (m *Module) newApp() *fiber.App {
	app := fiber.New(fiber.Config{
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
		ReadTimeout:           30 * time.Second,
		WriteTimeout:          60 * time.Second,
		IdleTimeout:           120 * time.Second,
	})

	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins: m.cfg.CORSAllowedOrigins,
		AllowMethods: "GET,POST,PUT,OPTIONS",
		AllowHeaders: "Content-Type,Authorization",
	}))
	app.Use(m.loggerMiddleware())

	m.setupRoutes(app)
	return app
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}

// loggerMiddleware returns a Fiber middleware for request logging.
func (m *Module) loggerMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		// Skip logging for WebSocket upgrade requests
		if c.Get("Upgrade") == "websocket" {
			return c.Next()
		}
		start := time.Now()
		err := c.Next()
		m.logger.Debug("HTTP request",
			"method", c.Method(),
			"path", c.Path(),
			"status", c.Response().StatusCode(),
			"latency", time.Since(start))
		return err
	}
}
