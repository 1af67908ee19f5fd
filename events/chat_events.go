package events

import (
	"time"

	"github.com/go-monolith/mono/pkg/helper"
)

// Sources recorded on RoomUpdatedEvent.
const (
	SourceRelay = "relay"
	SourceAPI   = "api"
)

// RoomUpdatedEvent is emitted when a room is created, assigned or changes status.
type RoomUpdatedEvent struct {
	RoomID     int64     `json:"room_id"`
	Status     string    `json:"status"`
	CustomerID string    `json:"customer_id"`
	EmployeeID string    `json:"employee_id,omitempty"`
	Source     string    `json:"source"`
	Timestamp  time.Time `json:"timestamp"`
}

// Event definitions for the chat domain.
var (
	RoomUpdatedV1 = helper.EventDefinition[RoomUpdatedEvent](
		"chat",
		"RoomUpdated",
		"v1",
	)
)
