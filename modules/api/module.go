// Package api exposes the activity tracker over HTTP and websocket.
package api

import (
	"context"
	"fmt"
	"log"
	"os"
	"time"

	"github.com/go-monolith/mono"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/logger"
	"github.com/gofiber/fiber/v2/middleware/recover"
	"github.com/google/uuid"

	"github.com/kenrgriggs/whatskennethdoing/modules/activity"
	"github.com/kenrgriggs/whatskennethdoing/modules/broadcast"
)

// Module is the HTTP API module.
type Module struct {
	app       *fiber.App
	service   *activity.Service
	hub       *broadcast.Hub
	addr      string
	subjectID string
	ownerID   string
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the API module. Subject and owner identities come
// from environment stand-ins until a real gateway fronts the service.
// The activity service is injected via SetService before Start.
func NewModule() *Module {
	port := os.Getenv("PORT")
	if port == "" {
		port = "3000"
	}
	subjectID := os.Getenv("WKD_SUBJECT")
	if subjectID == "" {
		subjectID = "kenneth"
	}
	ownerID := os.Getenv("WKD_OWNER")
	if ownerID == "" {
		ownerID = subjectID
	}
	return &Module{
		addr:      ":" + port,
		subjectID: subjectID,
		ownerID:   ownerID,
	}
}

// SetService wires the activity service.
func (m *Module) SetService(service *activity.Service) {
	m.service = service
}

// Name returns the module name.
func (m *Module) Name() string {
	return "api"
}

// SetHub wires the broadcast hub for the websocket stream.
func (m *Module) SetHub(hub *broadcast.Hub) {
	m.hub = hub
}

// Start initializes the Fiber HTTP server.
func (m *Module) Start(_ context.Context) error {
	if m.service == nil {
		return fmt.Errorf("activity service not set")
	}

	m.app = m.buildApp()

	errCh := make(chan error, 1)
	go func() {
		if err := m.app.Listen(m.addr); err != nil {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return fmt.Errorf("HTTP server failed to start: %w", err)
	case <-time.After(100 * time.Millisecond):
	}

	log.Printf("[api] HTTP server started on %s", m.addr)
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

// Health returns the health status of the module.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.app != nil,
		Message: "operational",
		Details: map[string]any{"addr": m.addr},
	}
}

// buildApp constructs the Fiber app and routes. Split from Start so
// handler tests can exercise the app without a listener.
func (m *Module) buildApp() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "whatskennethdoing",
		DisableStartupMessage: true,
		ErrorHandler:          customErrorHandler,
	})

	app.Use(recover.New())
	app.Use(logger.New(logger.Config{
		Format: "[${time}] ${status} - ${latency} ${method} ${path}\n",
	}))
	allowedOrigins := os.Getenv("CORS_ALLOWED_ORIGINS")
	if allowedOrigins == "" {
		app.Use(cors.New())
	} else {
		app.Use(cors.New(cors.Config{AllowOrigins: allowedOrigins}))
	}

	handlers := NewHandlers(m.service)

	app.Get("/health", func(c *fiber.Ctx) error {
		return c.JSON(fiber.Map{
			"status": "healthy",
			"module": "api",
		})
	})

	v1 := app.Group("/api/v1")
	v1.Use(IdentityMiddleware(m.subjectID, m.ownerID))
	v1.Get("/current", handlers.GetCurrent)
	v1.Post("/current", handlers.StartCurrent)
	v1.Post("/current/stop", handlers.StopCurrent)
	v1.Get("/events", handlers.ListEvents)
	v1.Patch("/events/:id", handlers.UpdateEvent)
	v1.Get("/suggestions", handlers.GetSuggestions)
	v1.Get("/analytics", handlers.GetAnalytics)

	if m.hub != nil {
		app.Use("/ws", func(c *fiber.Ctx) error {
			if websocket.IsWebSocketUpgrade(c) {
				return c.Next()
			}
			return fiber.ErrUpgradeRequired
		})
		app.Get("/ws", websocket.New(m.handleStream))
	}

	return app
}

// handleStream registers a dashboard connection with the broadcast hub
// and keeps it open until the peer goes away.
func (m *Module) handleStream(conn *websocket.Conn) {
	client := &broadcast.Client{ID: uuid.New().String(), Conn: conn}
	m.hub.Register(client)
	defer func() {
		m.hub.Unregister(client)
		_ = conn.Close()
	}()

	// The stream is push-only; reads just detect disconnect.
	for {
		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
	}
}

// customErrorHandler handles Fiber errors.
func customErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"
	if e, ok := err.(*fiber.Error); ok {
		code = e.Code
		message = e.Message
	}
	return c.Status(code).JSON(ErrorResponse{
		Error:   "server_error",
		Message: message,
	})
}
