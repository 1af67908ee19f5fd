package relay

import (
	"context"
	"fmt"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/example/support-chat-relay/events"
	"github.com/example/support-chat-relay/modules/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
)

// Module hosts the live-connection relay. It reaches storage through the
// chat module's services and reacts to room changes made elsewhere.
type Module struct {
	relay  *Relay
	cache  RoomCache
	store  chat.ChatAdapterPort
	logger types.Logger
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.DependentModule       = (*Module)(nil)
	_ mono.EventConsumerModule   = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a relay module. cache may be nil.
func NewModule(cache RoomCache, logger types.Logger) *Module {
	return &Module{
		cache:  cache,
		logger: logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "relay"
}

// Dependencies returns the list of module dependencies.
func (m *Module) Dependencies() []string {
	return []string{"chat"}
}

// SetDependencyServiceContainer receives service containers from dependencies.
func (m *Module) SetDependencyServiceContainer(dependency string, container mono.ServiceContainer) {
	switch dependency {
	case "chat":
		m.store = chat.NewChatAdapter(container, events.SourceRelay)
	}
}

// RegisterEventConsumers subscribes to room changes.
func (m *Module) RegisterEventConsumers(registry mono.EventRegistry) error {
	if err := helper.RegisterTypedEventConsumer(
		registry, events.RoomUpdatedV1, m.handleRoomUpdated, m,
	); err != nil {
		return fmt.Errorf("failed to register RoomUpdated consumer: %w", err)
	}

	m.logger.Info("Registered relay event consumers", "events", "RoomUpdated")
	return nil
}

// Start builds the relay over the chat adapter.
func (m *Module) Start(_ context.Context) error {
	if m.store == nil {
		return fmt.Errorf("chat adapter dependency not set")
	}

	var opts []Option
	if m.cache != nil {
		opts = append(opts, WithRoomCache(m.cache))
	}
	m.relay = New(m.store, m.store, m.logger, opts...)

	m.logger.Info("Relay module started", "roomCache", m.cache != nil)
	return nil
}

// Stop closes every live connection.
func (m *Module) Stop(_ context.Context) error {
	if m.relay == nil {
		return nil
	}
	n := m.relay.Shutdown()
	m.logger.Info("Relay module stopped", "closedConnections", n)
	return nil
}

// Health reports live connection and typing counts.
func (m *Module) Health(_ context.Context) mono.HealthStatus {
	if m.relay == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "relay not started",
		}
	}
	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"connections":  m.relay.Connections(),
			"typing_rooms": m.relay.TypingRooms(),
			"room_cache":   m.cache != nil,
		},
	}
}

// Relay returns the running relay, or nil before Start.
func (m *Module) Relay() *Relay {
	return m.relay
}

// handleRoomUpdated evicts the changed room and, when the room was closed
// by someone other than the relay, tells its live participants.
func (m *Module) handleRoomUpdated(ctx context.Context, event events.RoomUpdatedEvent, _ *mono.Msg) error {
	if m.relay == nil {
		return nil
	}

	m.relay.InvalidateRoom(ctx, event.RoomID)

	if event.Source == events.SourceRelay || event.Status != string(domain.RoomStatusClosed) {
		return nil
	}

	delivered, err := m.relay.NotifyRoomClosed(ctx, event.RoomID)
	if err != nil {
		m.logger.Warn("Failed to notify participants of room close",
			"roomID", event.RoomID,
			"error", err)
		return nil
	}
	m.logger.Info("Notified participants of room close",
		"roomID", event.RoomID,
		"delivered", delivered)
	return nil
}
