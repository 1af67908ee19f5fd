package chat

import "errors"

// Sentinel errors shared by the relay and the storage module.
var (
	// ErrRoomNotFound is returned when the room id is unknown to storage.
	ErrRoomNotFound = errors.New("room not found")

	// ErrInvalidOperation is returned for malformed events and forbidden
	// transitions, such as empty content or writing to a closed room.
	ErrInvalidOperation = errors.New("invalid chat operation")

	// ErrStorageUnavailable is returned when the storage collaborator could
	// not be reached or failed unexpectedly.
	ErrStorageUnavailable = errors.New("storage unavailable")

	// ErrSendFailure is returned when a write to one recipient's channel fails.
	ErrSendFailure = errors.New("send failure")
)
