package chat

import (
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
)

// Service names registered in the service container. The framework prefixes
// them with "services.chat.".
const (
	ServiceRoomGet         = "room-get"
	ServiceRoomSetStatus   = "room-set-status"
	ServiceRoomCreate      = "room-create"
	ServiceRoomAssign      = "room-assign"
	ServiceRoomList        = "room-list"
	ServiceMessageSave     = "message-save"
	ServiceMessageList     = "message-list"
	ServiceMessageMarkRead = "message-mark-read"
)

// GetRoomRequest is the request for fetching one room.
type GetRoomRequest struct {
	RoomID int64 `json:"room_id"`
}

// SetRoomStatusRequest is the request for changing a room's status.
type SetRoomStatusRequest struct {
	RoomID int64             `json:"room_id"`
	Status domain.RoomStatus `json:"status"`
	Source string            `json:"source"`
}

// CreateRoomRequest is the request for opening a room.
type CreateRoomRequest struct {
	CustomerID string `json:"customer_id"`
	Source     string `json:"source"`
}

// AssignRoomRequest is the request for assigning an employee to a room.
type AssignRoomRequest struct {
	RoomID     int64  `json:"room_id"`
	EmployeeID string `json:"employee_id"`
	Source     string `json:"source"`
}

// RoomResponse carries a single room.
type RoomResponse struct {
	Room *domain.Room `json:"room"`
}

// ListRoomsRequest filters rooms. Empty fields match everything.
type ListRoomsRequest struct {
	CustomerID string `json:"customer_id,omitempty"`
	EmployeeID string `json:"employee_id,omitempty"`
}

// ListRoomsResponse carries a list of rooms.
type ListRoomsResponse struct {
	Rooms []*domain.Room `json:"rooms"`
	Total int            `json:"total"`
}

// SaveMessageRequest is the request for persisting a message.
type SaveMessageRequest struct {
	Message domain.Message `json:"message"`
}

// MessageResponse carries a single message.
type MessageResponse struct {
	Message *domain.Message `json:"message"`
}

// ListMessagesRequest is the request for a room's message history.
// A zero Since returns the whole history.
type ListMessagesRequest struct {
	RoomID int64     `json:"room_id"`
	Since  time.Time `json:"since"`
}

// ListMessagesResponse carries a room's messages oldest first.
type ListMessagesResponse struct {
	Messages []*domain.Message `json:"messages"`
	Total    int               `json:"total"`
}

// MarkReadRequest is the request for marking a room's messages read.
type MarkReadRequest struct {
	RoomID   int64  `json:"room_id"`
	ReaderID string `json:"reader_id"`
}

// MarkReadResponse reports how many messages were updated.
type MarkReadResponse struct {
	Updated int64 `json:"updated"`
}
