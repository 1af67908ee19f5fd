package chat

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/example/support-chat-relay/events"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
	"github.com/go-monolith/mono/pkg/types"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// Module persists rooms and messages via GORM + SQLite and exposes them as
// request-reply services.
type Module struct {
	db       *gorm.DB
	service  *Service
	eventBus mono.EventBus
	logger   types.Logger
	dbPath   string
	dbDebug  bool
}

// Compile-time interface checks
var (
	_ mono.Module                = (*Module)(nil)
	_ mono.ServiceProviderModule = (*Module)(nil)
	_ mono.EventBusAwareModule   = (*Module)(nil)
	_ mono.EventEmitterModule    = (*Module)(nil)
	_ mono.HealthCheckableModule = (*Module)(nil)
)

// NewModule creates a new chat module backed by the SQLite file at dbPath.
func NewModule(dbPath string, dbDebug bool, logger types.Logger) *Module {
	return &Module{
		dbPath:  dbPath,
		dbDebug: dbDebug,
		logger:  logger,
	}
}

// Name returns the module name.
func (m *Module) Name() string {
	return "chat"
}

// SetEventBus receives the EventBus from the framework.
func (m *Module) SetEventBus(bus mono.EventBus) {
	m.eventBus = bus
}

// EmitEvents declares the events this module can emit.
func (m *Module) EmitEvents() []mono.BaseEventDefinition {
	return []mono.BaseEventDefinition{
		events.RoomUpdatedV1.ToBase(),
	}
}

// RegisterServices registers request-reply services in the service container.
// The framework automatically prefixes service names with "services.chat.".
func (m *Module) RegisterServices(container mono.ServiceContainer) error {
	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomGet, json.Unmarshal, json.Marshal, m.getRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomGet, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomSetStatus, json.Unmarshal, json.Marshal, m.setRoomStatus,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomSetStatus, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomCreate, json.Unmarshal, json.Marshal, m.createRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomCreate, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomAssign, json.Unmarshal, json.Marshal, m.assignRoom,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomAssign, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceRoomList, json.Unmarshal, json.Marshal, m.listRooms,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceRoomList, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMessageSave, json.Unmarshal, json.Marshal, m.saveMessage,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMessageSave, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMessageList, json.Unmarshal, json.Marshal, m.listMessages,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMessageList, err)
	}

	if err := helper.RegisterTypedRequestReplyService(
		container, ServiceMessageMarkRead, json.Unmarshal, json.Marshal, m.markRead,
	); err != nil {
		return fmt.Errorf("failed to register %s service: %w", ServiceMessageMarkRead, err)
	}

	m.logger.Info("Registered chat services",
		"services", "services.chat.{room-get,room-set-status,room-create,room-assign,room-list,message-save,message-list,message-mark-read}")
	return nil
}

// Start opens the database, runs migrations and builds the service.
func (m *Module) Start(_ context.Context) error {
	m.logger.Info("Connecting to SQLite database", "path", m.dbPath)

	logLevel := logger.Silent
	if m.dbDebug {
		logLevel = logger.Info
	}

	db, err := gorm.Open(sqlite.Open(m.dbPath), &gorm.Config{
		Logger: logger.Default.LogMode(logLevel),
	})
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	m.db = db

	if err := migrate(m.db); err != nil {
		return err
	}

	m.service = NewService(NewRepository(m.db), m.publishRoomUpdated)

	m.logger.Info("Chat module started")
	return nil
}

// Stop closes the database connection.
func (m *Module) Stop(_ context.Context) error {
	if m.db == nil {
		return nil
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get sql.DB: %w", err)
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}

	m.logger.Info("Chat module stopped")
	return nil
}

// Health reports whether the database answers a ping.
func (m *Module) Health(ctx context.Context) mono.HealthStatus {
	if m.db == nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: "database not initialized",
		}
	}

	sqlDB, err := m.db.DB()
	if err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("failed to get sql.DB: %v", err),
		}
	}

	if err := sqlDB.PingContext(ctx); err != nil {
		return mono.HealthStatus{
			Healthy: false,
			Message: fmt.Sprintf("database ping failed: %v", err),
		}
	}

	return mono.HealthStatus{
		Healthy: true,
		Message: "operational",
		Details: map[string]any{
			"driver": "sqlite",
			"path":   m.dbPath,
		},
	}
}

func (m *Module) publishRoomUpdated(_ context.Context, event events.RoomUpdatedEvent) {
	if m.eventBus == nil {
		return
	}
	if err := events.RoomUpdatedV1.Publish(m.eventBus, event, nil); err != nil {
		m.logger.Warn("Failed to publish RoomUpdated event",
			"roomID", event.RoomID,
			"error", err)
	}
}

func migrate(db *gorm.DB) error {
	if err := db.AutoMigrate(&roomRecord{}, &messageRecord{}); err != nil {
		return fmt.Errorf("failed to run migrations: %w", err)
	}
	return nil
}
