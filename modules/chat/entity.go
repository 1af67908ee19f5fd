package chat

import (
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
)

// roomRecord is the GORM model for the chat_room table.
type roomRecord struct {
	ID         int64     `gorm:"primaryKey;autoIncrement"`
	CustomerID string    `gorm:"size:128;not null;index"`
	EmployeeID string    `gorm:"size:128;index"`
	Status     string    `gorm:"size:16;not null;default:OPEN"`
	CreatedAt  time.Time `gorm:"not null"`
	UpdatedAt  time.Time `gorm:"not null"`
	Version    int       `gorm:"not null;default:0"`
}

// TableName returns the table name for roomRecord.
func (roomRecord) TableName() string {
	return "chat_room"
}

func (r *roomRecord) toDomain() *domain.Room {
	return &domain.Room{
		ID:         r.ID,
		CustomerID: r.CustomerID,
		EmployeeID: r.EmployeeID,
		Status:     domain.RoomStatus(r.Status),
		CreatedAt:  r.CreatedAt,
		UpdatedAt:  r.UpdatedAt,
		Version:    r.Version,
	}
}

// messageRecord is the GORM model for the chat_message table.
type messageRecord struct {
	ID          int64     `gorm:"primaryKey;autoIncrement"`
	RoomID      int64     `gorm:"not null;index:idx_message_room_ts,priority:1"`
	SenderID    string    `gorm:"size:128;not null"`
	SenderType  string    `gorm:"size:16;not null"`
	Content     string    `gorm:"type:text;not null"`
	MessageType string    `gorm:"size:16;not null"`
	Timestamp   time.Time `gorm:"column:sent_at;not null;index:idx_message_room_ts,priority:2"`
	Read        bool      `gorm:"column:is_read;not null;default:false"`
}

// TableName returns the table name for messageRecord.
func (messageRecord) TableName() string {
	return "chat_message"
}

func (m *messageRecord) toDomain() *domain.Message {
	return &domain.Message{
		ID:         m.ID,
		RoomID:     m.RoomID,
		SenderID:   m.SenderID,
		SenderRole: domain.SenderRole(m.SenderType),
		Content:    m.Content,
		Kind:       domain.MessageKind(m.MessageType),
		Timestamp:  m.Timestamp,
		Read:       m.Read,
	}
}

func newMessageRecord(msg *domain.Message) *messageRecord {
	return &messageRecord{
		RoomID:      msg.RoomID,
		SenderID:    msg.SenderID,
		SenderType:  string(msg.SenderRole),
		Content:     msg.Content,
		MessageType: string(msg.Kind),
		Timestamp:   msg.Timestamp,
		Read:        msg.Read,
	}
}
