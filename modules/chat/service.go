package chat

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/example/support-chat-relay/events"
)

// maxUpdateAttempts bounds the optimistic-concurrency retry loop.
const maxUpdateAttempts = 3

// Publisher receives room change notifications after a successful write.
type Publisher func(ctx context.Context, event events.RoomUpdatedEvent)

// Service implements the room and message rules on top of the repository.
type Service struct {
	repo    *Repository
	publish Publisher
	now     func() time.Time
}

// NewService creates a new chat service. publish may be nil.
func NewService(repo *Repository, publish Publisher) *Service {
	return &Service{
		repo:    repo,
		publish: publish,
		now:     func() time.Time { return time.Now().UTC() },
	}
}

// CreateRoom opens a new unassigned room for customerID.
func (s *Service) CreateRoom(ctx context.Context, customerID, source string) (*domain.Room, error) {
	customerID = strings.TrimSpace(customerID)
	if customerID == "" {
		return nil, fmt.Errorf("%w: customer id is required", domain.ErrInvalidOperation)
	}

	now := s.now()
	rec := &roomRecord{
		CustomerID: customerID,
		Status:     string(domain.RoomStatusOpen),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := s.repo.CreateRoom(ctx, rec); err != nil {
		return nil, err
	}

	room := rec.toDomain()
	s.notify(ctx, room, source)
	return room, nil
}

// GetRoom retrieves a room by ID.
func (s *Service) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	if roomID <= 0 {
		return nil, fmt.Errorf("%w: room id must be positive", domain.ErrInvalidOperation)
	}
	rec, err := s.repo.FindRoom(ctx, roomID)
	if err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// ListRooms returns rooms filtered by customer and/or employee.
func (s *Service) ListRooms(ctx context.Context, customerID, employeeID string) ([]*domain.Room, error) {
	recs, err := s.repo.FindRooms(ctx, customerID, employeeID)
	if err != nil {
		return nil, err
	}
	rooms := make([]*domain.Room, 0, len(recs))
	for _, rec := range recs {
		rooms = append(rooms, rec.toDomain())
	}
	return rooms, nil
}

// AssignEmployee attaches employeeID to the room and marks it ASSIGNED.
func (s *Service) AssignEmployee(ctx context.Context, roomID int64, employeeID, source string) (*domain.Room, error) {
	employeeID = strings.TrimSpace(employeeID)
	if employeeID == "" {
		return nil, fmt.Errorf("%w: employee id is required", domain.ErrInvalidOperation)
	}

	return s.mutateRoom(ctx, roomID, source, func(rec *roomRecord) (bool, error) {
		if rec.Status == string(domain.RoomStatusClosed) {
			return false, fmt.Errorf("%w: room %d is closed", domain.ErrInvalidOperation, rec.ID)
		}
		if rec.CustomerID == employeeID {
			return false, fmt.Errorf("%w: customer cannot be assigned as employee", domain.ErrInvalidOperation)
		}
		if rec.EmployeeID == employeeID && rec.Status == string(domain.RoomStatusAssigned) {
			return false, nil
		}
		rec.EmployeeID = employeeID
		rec.Status = string(domain.RoomStatusAssigned)
		return true, nil
	})
}

// SetStatus moves the room to status. CLOSED is terminal: re-closing is a
// no-op, any other change on a closed room fails.
func (s *Service) SetStatus(ctx context.Context, roomID int64, status domain.RoomStatus, source string) (*domain.Room, error) {
	if !status.Valid() {
		return nil, fmt.Errorf("%w: unknown status %q", domain.ErrInvalidOperation, status)
	}

	return s.mutateRoom(ctx, roomID, source, func(rec *roomRecord) (bool, error) {
		current := domain.RoomStatus(rec.Status)
		if current == status {
			return false, nil
		}
		if current == domain.RoomStatusClosed {
			return false, fmt.Errorf("%w: room %d is closed", domain.ErrInvalidOperation, rec.ID)
		}
		if status == domain.RoomStatusAssigned && rec.EmployeeID == "" {
			return false, fmt.Errorf("%w: room %d has no employee", domain.ErrInvalidOperation, rec.ID)
		}
		rec.Status = string(status)
		return true, nil
	})
}

// SaveMessage validates and persists msg, assigning its id. A zero timestamp
// is replaced with the current time.
func (s *Service) SaveMessage(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	msg.Content = strings.TrimSpace(msg.Content)
	if err := domain.ValidateMessage(msg.Content); err != nil {
		return nil, fmt.Errorf("%w: %v", domain.ErrInvalidOperation, err)
	}
	if msg.RoomID <= 0 {
		return nil, fmt.Errorf("%w: room id must be positive", domain.ErrInvalidOperation)
	}
	if strings.TrimSpace(msg.SenderID) == "" {
		return nil, fmt.Errorf("%w: sender id is required", domain.ErrInvalidOperation)
	}
	if !msg.SenderRole.Valid() {
		return nil, fmt.Errorf("%w: unknown sender role %q", domain.ErrInvalidOperation, msg.SenderRole)
	}
	if msg.Kind == "" {
		msg.Kind = domain.MessageKindText
	}

	now := s.now()
	if msg.Timestamp.IsZero() {
		msg.Timestamp = now
	}
	msg.Read = false

	rec := newMessageRecord(&msg)
	if err := s.repo.CreateMessage(ctx, rec, now); err != nil {
		return nil, err
	}
	return rec.toDomain(), nil
}

// ListMessages returns the room's messages oldest first.
func (s *Service) ListMessages(ctx context.Context, roomID int64, since time.Time) ([]*domain.Message, error) {
	if _, err := s.repo.FindRoom(ctx, roomID); err != nil {
		return nil, err
	}
	recs, err := s.repo.FindMessages(ctx, roomID, since)
	if err != nil {
		return nil, err
	}
	messages := make([]*domain.Message, 0, len(recs))
	for _, rec := range recs {
		messages = append(messages, rec.toDomain())
	}
	return messages, nil
}

// MarkRead marks the room's messages from the other party as read.
func (s *Service) MarkRead(ctx context.Context, roomID int64, readerID string) (int64, error) {
	readerID = strings.TrimSpace(readerID)
	if readerID == "" {
		return 0, fmt.Errorf("%w: reader id is required", domain.ErrInvalidOperation)
	}
	if _, err := s.repo.FindRoom(ctx, roomID); err != nil {
		return 0, err
	}
	return s.repo.MarkRead(ctx, roomID, readerID)
}

// mutateRoom loads the room, applies fn and writes it back with a version
// check, retrying on conflicts. fn returns false when nothing changed.
func (s *Service) mutateRoom(
	ctx context.Context,
	roomID int64,
	source string,
	fn func(rec *roomRecord) (bool, error),
) (*domain.Room, error) {
	for attempt := 1; ; attempt++ {
		rec, err := s.repo.FindRoom(ctx, roomID)
		if err != nil {
			return nil, err
		}

		changed, err := fn(rec)
		if err != nil {
			return nil, err
		}
		if !changed {
			return rec.toDomain(), nil
		}

		rec.UpdatedAt = s.now()
		err = s.repo.UpdateRoom(ctx, rec, rec.Version)
		if err == nil {
			room := rec.toDomain()
			s.notify(ctx, room, source)
			return room, nil
		}
		if !errors.Is(err, errVersionConflict) || attempt >= maxUpdateAttempts {
			return nil, err
		}
	}
}

func (s *Service) notify(ctx context.Context, room *domain.Room, source string) {
	if s.publish == nil {
		return
	}
	s.publish(ctx, events.RoomUpdatedEvent{
		RoomID:     room.ID,
		Status:     string(room.Status),
		CustomerID: room.CustomerID,
		EmployeeID: room.EmployeeID,
		Source:     source,
		Timestamp:  room.UpdatedAt,
	})
}
