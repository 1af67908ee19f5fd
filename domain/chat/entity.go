package chat

import "time"

// RoomStatus is the lifecycle state of a room.
type RoomStatus string

// Room statuses. CLOSED is terminal.
const (
	RoomStatusOpen     RoomStatus = "OPEN"
	RoomStatusAssigned RoomStatus = "ASSIGNED"
	RoomStatusClosed   RoomStatus = "CLOSED"
)

// Valid reports whether s is one of the known statuses.
func (s RoomStatus) Valid() bool {
	switch s {
	case RoomStatusOpen, RoomStatusAssigned, RoomStatusClosed:
		return true
	}
	return false
}

// SenderRole identifies which side of the conversation sent a message.
type SenderRole string

// Sender roles.
const (
	SenderRoleCustomer SenderRole = "CUSTOMER"
	SenderRoleEmployee SenderRole = "EMPLOYEE"
)

// Valid reports whether r is one of the known roles.
func (r SenderRole) Valid() bool {
	return r == SenderRoleCustomer || r == SenderRoleEmployee
}

// MessageKind is the kind of content a message carries.
type MessageKind string

// Message kinds. The relay only produces TEXT.
const (
	MessageKindText   MessageKind = "TEXT"
	MessageKindSystem MessageKind = "SYSTEM"
)

// Room is a conversation between one customer and at most one employee.
type Room struct {
	ID         int64      `json:"id"`
	CustomerID string     `json:"customerId"`
	EmployeeID string     `json:"employeeId,omitempty"`
	Status     RoomStatus `json:"status"`
	CreatedAt  time.Time  `json:"createdAt"`
	UpdatedAt  time.Time  `json:"updatedAt"`
	Version    int        `json:"version"`
}

// IsClosed reports whether the room reached its terminal status.
func (r *Room) IsClosed() bool {
	return r.Status == RoomStatusClosed
}

// Participants returns the room's participant ids, customer first.
// An unassigned employee is omitted.
func (r *Room) Participants() []string {
	ids := make([]string, 0, 2)
	if r.CustomerID != "" {
		ids = append(ids, r.CustomerID)
	}
	if r.EmployeeID != "" && r.EmployeeID != r.CustomerID {
		ids = append(ids, r.EmployeeID)
	}
	return ids
}

// RoleOf returns the role userID holds in the room, if any.
func (r *Room) RoleOf(userID string) (SenderRole, bool) {
	switch {
	case userID == "":
		return "", false
	case userID == r.CustomerID:
		return SenderRoleCustomer, true
	case userID == r.EmployeeID:
		return SenderRoleEmployee, true
	}
	return "", false
}

// Message is a persisted chat message.
type Message struct {
	ID         int64       `json:"id"`
	RoomID     int64       `json:"roomId"`
	SenderID   string      `json:"senderId"`
	SenderRole SenderRole  `json:"senderType"`
	Content    string      `json:"content"`
	Kind       MessageKind `json:"messageType"`
	Timestamp  time.Time   `json:"timestamp"`
	Read       bool        `json:"read"`
}
