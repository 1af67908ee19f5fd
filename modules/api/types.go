package api

import domain "github.com/example/support-chat-relay/domain/chat"

// CreateRoomRequest is the API request to open a room.
type CreateRoomRequest struct {
	CustomerID string `json:"customerId"`
}

// SetStatusRequest is the API request to change a room's status.
type SetStatusRequest struct {
	Status domain.RoomStatus `json:"status"`
}

// AssignRequest is the API request to assign an employee.
type AssignRequest struct {
	EmployeeID string `json:"employeeId"`
}

// RoomListResponse is the API response for listing rooms.
type RoomListResponse struct {
	Rooms []*domain.Room `json:"rooms"`
	Total int            `json:"total"`
}

// MessageListResponse is the API response for a room's messages.
type MessageListResponse struct {
	RoomID   int64             `json:"roomId"`
	Messages []*domain.Message `json:"messages"`
	Total    int               `json:"total"`
}

// MarkReadResponse reports how many messages were marked read.
type MarkReadResponse struct {
	RoomID  int64 `json:"roomId"`
	Updated int64 `json:"updated"`
}

// TypingResponse lists the users currently typing in a room.
type TypingResponse struct {
	RoomID int64    `json:"roomId"`
	Users  []string `json:"users"`
}

// ErrorResponse is the API error response.
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
}

// HealthResponse is the API health check response.
type HealthResponse struct {
	Status  string         `json:"status"`
	Details map[string]any `json:"details,omitempty"`
}
