package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/go-monolith/mono"
	"github.com/go-monolith/mono/pkg/helper"
)

// ChatAdapterPort defines the interface for interacting with the chat module.
// Consumers should use this interface instead of directly referencing the Module.
type ChatAdapterPort interface {
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, error)
	SetRoomStatus(ctx context.Context, roomID int64, status domain.RoomStatus) (*domain.Room, error)
	CreateRoom(ctx context.Context, customerID string) (*domain.Room, error)
	AssignEmployee(ctx context.Context, roomID int64, employeeID string) (*domain.Room, error)
	ListRooms(ctx context.Context, customerID, employeeID string) ([]*domain.Room, error)
	SaveMessage(ctx context.Context, msg domain.Message) (*domain.Message, error)
	ListMessages(ctx context.Context, roomID int64, since time.Time) ([]*domain.Message, error)
	MarkRead(ctx context.Context, roomID int64, readerID string) (int64, error)
}

// chatAdapter implements ChatAdapterPort using the service container.
type chatAdapter struct {
	container mono.ServiceContainer
	source    string
}

// NewChatAdapter creates a new adapter for the chat services. source is
// recorded on the RoomUpdated events caused by this adapter's writes.
func NewChatAdapter(container mono.ServiceContainer, source string) ChatAdapterPort {
	return &chatAdapter{
		container: container,
		source:    source,
	}
}

// GetRoom retrieves a room by ID.
func (a *chatAdapter) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	var resp RoomResponse
	if err := callService(ctx, a, ServiceRoomGet, &GetRoomRequest{RoomID: roomID}, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// SetRoomStatus changes a room's status.
func (a *chatAdapter) SetRoomStatus(ctx context.Context, roomID int64, status domain.RoomStatus) (*domain.Room, error) {
	req := SetRoomStatusRequest{RoomID: roomID, Status: status, Source: a.source}
	var resp RoomResponse
	if err := callService(ctx, a, ServiceRoomSetStatus, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// CreateRoom opens a room for a customer.
func (a *chatAdapter) CreateRoom(ctx context.Context, customerID string) (*domain.Room, error) {
	req := CreateRoomRequest{CustomerID: customerID, Source: a.source}
	var resp RoomResponse
	if err := callService(ctx, a, ServiceRoomCreate, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// AssignEmployee assigns an employee to a room.
func (a *chatAdapter) AssignEmployee(ctx context.Context, roomID int64, employeeID string) (*domain.Room, error) {
	req := AssignRoomRequest{RoomID: roomID, EmployeeID: employeeID, Source: a.source}
	var resp RoomResponse
	if err := callService(ctx, a, ServiceRoomAssign, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Room, nil
}

// ListRooms lists rooms, optionally filtered by participant.
func (a *chatAdapter) ListRooms(ctx context.Context, customerID, employeeID string) ([]*domain.Room, error) {
	req := ListRoomsRequest{CustomerID: customerID, EmployeeID: employeeID}
	var resp ListRoomsResponse
	if err := callService(ctx, a, ServiceRoomList, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Rooms, nil
}

// SaveMessage persists a message and returns it with its assigned id.
func (a *chatAdapter) SaveMessage(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	var resp MessageResponse
	if err := callService(ctx, a, ServiceMessageSave, &SaveMessageRequest{Message: msg}, &resp); err != nil {
		return nil, err
	}
	return resp.Message, nil
}

// ListMessages returns a room's message history, only messages sent after
// since when it is non-zero.
func (a *chatAdapter) ListMessages(ctx context.Context, roomID int64, since time.Time) ([]*domain.Message, error) {
	req := ListMessagesRequest{RoomID: roomID, Since: since}
	var resp ListMessagesResponse
	if err := callService(ctx, a, ServiceMessageList, &req, &resp); err != nil {
		return nil, err
	}
	return resp.Messages, nil
}

// MarkRead marks the other party's messages in a room as read.
func (a *chatAdapter) MarkRead(ctx context.Context, roomID int64, readerID string) (int64, error) {
	req := MarkReadRequest{RoomID: roomID, ReaderID: readerID}
	var resp MarkReadResponse
	if err := callService(ctx, a, ServiceMessageMarkRead, &req, &resp); err != nil {
		return 0, err
	}
	return resp.Updated, nil
}

// callService invokes a chat service. resp must be typed so the reply can be
// decoded into it.
func callService[Resp any](ctx context.Context, a *chatAdapter, service string, req any, resp *Resp) error {
	err := helper.CallRequestReplyService(
		ctx,
		a.container,
		service,
		json.Marshal,
		json.Unmarshal,
		req,
		resp,
	)
	if err != nil {
		return mapServiceError(service, err)
	}
	return nil
}

// mapServiceError converts service errors back to sentinel errors
// by checking the error message content, since errors lose their type
// information when sent over the service container.
func mapServiceError(service string, err error) error {
	if err == nil {
		return nil
	}

	errMsg := strings.ToLower(err.Error())

	if strings.Contains(errMsg, domain.ErrRoomNotFound.Error()) {
		return fmt.Errorf("%w: %s", domain.ErrRoomNotFound, err)
	}
	if strings.Contains(errMsg, domain.ErrInvalidOperation.Error()) {
		return fmt.Errorf("%w: %s", domain.ErrInvalidOperation, err)
	}

	return fmt.Errorf("%w: %s: %s", domain.ErrStorageUnavailable, service, err)
}
