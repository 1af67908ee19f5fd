package relay

import (
	"encoding/json"
	"fmt"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
)

// EventKind discriminates WireMessage payloads.
type EventKind string

// Inbound event kinds.
const (
	KindSendMessage EventKind = "SEND_MESSAGE"
	KindTyping      EventKind = "TYPING"
	KindStopTyping  EventKind = "STOP_TYPING"
)

// Outbound event kinds. ROOM_CLOSE is used in both directions.
const (
	KindNewMessage        EventKind = "NEW_MESSAGE"
	KindUserTyping        EventKind = "USER_TYPING"
	KindUserStoppedTyping EventKind = "USER_STOPPED_TYPING"
	KindRoomClose         EventKind = "ROOM_CLOSE"
)

// WireMessage is the JSON frame exchanged with clients in both directions.
// Fields that do not apply to a kind are omitted.
type WireMessage struct {
	Type         EventKind         `json:"type"`
	RoomID       int64             `json:"roomId,omitempty"`
	SenderID     string            `json:"senderId,omitempty"`
	SenderType   domain.SenderRole `json:"senderType,omitempty"`
	Content      string            `json:"content,omitempty"`
	Timestamp    *time.Time        `json:"timestamp,omitempty"`
	IsTyping     *bool             `json:"isTyping,omitempty"`
	TypingUserID string            `json:"typingUserId,omitempty"`
}

// Decode parses an inbound frame. It fails only when the frame is not a JSON
// object of the expected shape; unknown kinds decode successfully.
func Decode(frame []byte) (*WireMessage, error) {
	var msg WireMessage
	if err := json.Unmarshal(frame, &msg); err != nil {
		return nil, fmt.Errorf("%w: decode frame: %v", domain.ErrInvalidOperation, err)
	}
	return &msg, nil
}

// Encode serializes an outbound frame.
func (m *WireMessage) Encode() ([]byte, error) {
	data, err := json.Marshal(m)
	if err != nil {
		return nil, fmt.Errorf("encode %s frame: %w", m.Type, err)
	}
	return data, nil
}

func typingFlag(v bool) *bool {
	return &v
}
