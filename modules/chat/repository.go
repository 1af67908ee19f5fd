package chat

import (
	"context"
	"errors"
	"fmt"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"gorm.io/gorm"
)

// errVersionConflict is returned when a room changed between read and write.
var errVersionConflict = errors.New("room version conflict")

// Repository provides access to room and message storage.
type Repository struct {
	db *gorm.DB
}

// NewRepository creates a new chat repository.
func NewRepository(db *gorm.DB) *Repository {
	return &Repository{db: db}
}

// CreateRoom saves a new room.
func (r *Repository) CreateRoom(ctx context.Context, room *roomRecord) error {
	if err := r.db.WithContext(ctx).Create(room).Error; err != nil {
		return fmt.Errorf("failed to create room: %w", err)
	}
	return nil
}

// FindRoom retrieves a room by its ID.
func (r *Repository) FindRoom(ctx context.Context, id int64) (*roomRecord, error) {
	var room roomRecord
	if err := r.db.WithContext(ctx).First(&room, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, fmt.Errorf("%w: %d", domain.ErrRoomNotFound, id)
		}
		return nil, fmt.Errorf("failed to find room: %w", err)
	}
	return &room, nil
}

// FindRooms retrieves rooms matching the filter, newest activity first.
// Empty filter fields are ignored.
func (r *Repository) FindRooms(ctx context.Context, customerID, employeeID string) ([]*roomRecord, error) {
	q := r.db.WithContext(ctx).Order("updated_at DESC").Order("id DESC")
	if customerID != "" {
		q = q.Where("customer_id = ?", customerID)
	}
	if employeeID != "" {
		q = q.Where("employee_id = ?", employeeID)
	}

	var rooms []*roomRecord
	if err := q.Find(&rooms).Error; err != nil {
		return nil, fmt.Errorf("failed to find rooms: %w", err)
	}
	return rooms, nil
}

// UpdateRoom writes the mutable room fields if the stored version still
// equals expectedVersion, and bumps the version on success.
func (r *Repository) UpdateRoom(ctx context.Context, room *roomRecord, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&roomRecord{}).
		Where("id = ? AND version = ?", room.ID, expectedVersion).
		Updates(map[string]any{
			"employee_id": room.EmployeeID,
			"status":      room.Status,
			"updated_at":  room.UpdatedAt,
			"version":     expectedVersion + 1,
		})
	if err := result.Error; err != nil {
		return fmt.Errorf("failed to update room: %w", err)
	}
	if result.RowsAffected == 0 {
		if _, err := r.FindRoom(ctx, room.ID); err != nil {
			return err
		}
		return errVersionConflict
	}
	room.Version = expectedVersion + 1
	return nil
}

// CreateMessage saves a message and bumps the room's activity timestamp in
// one transaction. Writing into a closed room fails with ErrInvalidOperation.
func (r *Repository) CreateMessage(ctx context.Context, msg *messageRecord, now time.Time) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var room roomRecord
		if err := tx.First(&room, "id = ?", msg.RoomID).Error; err != nil {
			if errors.Is(err, gorm.ErrRecordNotFound) {
				return fmt.Errorf("%w: %d", domain.ErrRoomNotFound, msg.RoomID)
			}
			return fmt.Errorf("failed to find room: %w", err)
		}
		if room.Status == string(domain.RoomStatusClosed) {
			return fmt.Errorf("%w: room %d is closed", domain.ErrInvalidOperation, room.ID)
		}

		if err := tx.Create(msg).Error; err != nil {
			return fmt.Errorf("failed to create message: %w", err)
		}

		if err := tx.Model(&roomRecord{}).
			Where("id = ?", room.ID).
			Update("updated_at", now).Error; err != nil {
			return fmt.Errorf("failed to touch room: %w", err)
		}
		return nil
	})
}

// FindMessages retrieves a room's messages in timestamp order.
func (r *Repository) FindMessages(ctx context.Context, roomID int64, since time.Time) ([]*messageRecord, error) {
	query := r.db.WithContext(ctx).Where("room_id = ?", roomID)
	if !since.IsZero() {
		query = query.Where("sent_at > ?", since.UTC())
	}

	var messages []*messageRecord
	if err := query.
		Order("sent_at ASC").Order("id ASC").
		Find(&messages).Error; err != nil {
		return nil, fmt.Errorf("failed to find messages: %w", err)
	}
	return messages, nil
}

// MarkRead flags every unread message in the room not sent by readerID as
// read and returns how many rows changed.
func (r *Repository) MarkRead(ctx context.Context, roomID int64, readerID string) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&messageRecord{}).
		Where("room_id = ? AND is_read = ? AND sender_id <> ?", roomID, false, readerID).
		Update("is_read", true)
	if err := result.Error; err != nil {
		return 0, fmt.Errorf("failed to mark messages read: %w", err)
	}
	return result.RowsAffected, nil
}
