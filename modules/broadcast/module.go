// Package broadcast pushes current-activity changes to connected
// dashboards over websocket.
package broadcast

import (
	"context"
	"log"

	"github.com/go-monolith/mono"
)

// Module owns the websocket hub lifecycle.
type Module struct {
	hub    *Hub
	cancel context.CancelFunc
}

// Compile-time interface checks.
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates the broadcast module.
func NewModule() *Module {
	return &Module{hub: NewHub()}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "broadcast"
}

// Hub returns the hub for wiring into the API module and the activity
// service.
func (m *Module) Hub() *Hub {
	return m.hub
}

// Start launches the hub loop.
func (m *Module) Start(_ context.Context) error {
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	go m.hub.Run(ctx)
	log.Println("[broadcast] Module started successfully")
	return nil
}

// Stop shuts the hub down and waits for it to drain.
func (m *Module) Stop(_ context.Context) error {
	if m.cancel != nil {
		m.cancel()
		m.hub.Wait()
	}
	return nil
}

// Health reports hub status.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	return mono.HealthStatus{
		Healthy: m.hub != nil,
		Message: "operational",
	}
}
