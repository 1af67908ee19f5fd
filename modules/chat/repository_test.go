package chat

import (
	"context"
	"errors"
	"testing"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

// setupTestDB creates an in-memory SQLite database for testing.
func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
	})
	if err != nil {
		t.Fatalf("failed to open test database: %v", err)
	}

	// Every new connection to :memory: is a fresh database.
	sqlDB, err := db.DB()
	if err != nil {
		t.Fatalf("failed to get sql.DB: %v", err)
	}
	sqlDB.SetMaxOpenConns(1)
	t.Cleanup(func() { _ = sqlDB.Close() })

	if err := migrate(db); err != nil {
		t.Fatalf("failed to migrate test database: %v", err)
	}

	return db
}

func createTestRoom(t *testing.T, repo *Repository, status domain.RoomStatus, employeeID string) *roomRecord {
	t.Helper()

	now := time.Now().UTC()
	room := &roomRecord{
		CustomerID: "customer-1",
		EmployeeID: employeeID,
		Status:     string(status),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if err := repo.CreateRoom(context.Background(), room); err != nil {
		t.Fatalf("failed to create test room: %v", err)
	}
	return room
}

func TestRepository_CreateAndFindRoom(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	room := createTestRoom(t, repo, domain.RoomStatusOpen, "")
	if room.ID == 0 {
		t.Fatal("CreateRoom() should assign an id")
	}

	found, err := repo.FindRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("FindRoom() error = %v", err)
	}
	if found.CustomerID != "customer-1" {
		t.Errorf("expected customer %q, got %q", "customer-1", found.CustomerID)
	}
	if found.Status != string(domain.RoomStatusOpen) {
		t.Errorf("expected status OPEN, got %q", found.Status)
	}
}

func TestRepository_FindRoom_NotFound(t *testing.T) {
	repo := NewRepository(setupTestDB(t))

	_, err := repo.FindRoom(context.Background(), 999)
	if !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRepository_FindRooms_Filters(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	createTestRoom(t, repo, domain.RoomStatusOpen, "")
	createTestRoom(t, repo, domain.RoomStatusAssigned, "employee-1")
	createTestRoom(t, repo, domain.RoomStatusAssigned, "employee-2")

	tests := []struct {
		name       string
		customerID string
		employeeID string
		want       int
	}{
		{"all rooms", "", "", 3},
		{"by customer", "customer-1", "", 3},
		{"by employee", "", "employee-1", 1},
		{"unknown customer", "nobody", "", 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rooms, err := repo.FindRooms(ctx, tt.customerID, tt.employeeID)
			if err != nil {
				t.Fatalf("FindRooms() error = %v", err)
			}
			if len(rooms) != tt.want {
				t.Errorf("expected %d rooms, got %d", tt.want, len(rooms))
			}
		})
	}
}

func TestRepository_UpdateRoom_VersionCheck(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	room := createTestRoom(t, repo, domain.RoomStatusOpen, "")

	room.Status = string(domain.RoomStatusClosed)
	if err := repo.UpdateRoom(ctx, room, 0); err != nil {
		t.Fatalf("UpdateRoom() error = %v", err)
	}
	if room.Version != 1 {
		t.Errorf("expected version 1, got %d", room.Version)
	}

	// A writer still holding version 0 loses.
	stale := *room
	stale.Status = string(domain.RoomStatusOpen)
	if err := repo.UpdateRoom(ctx, &stale, 0); !errors.Is(err, errVersionConflict) {
		t.Errorf("expected errVersionConflict, got %v", err)
	}

	missing := &roomRecord{ID: 999}
	if err := repo.UpdateRoom(ctx, missing, 0); !errors.Is(err, domain.ErrRoomNotFound) {
		t.Errorf("expected ErrRoomNotFound, got %v", err)
	}
}

func TestRepository_CreateMessage(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	room := createTestRoom(t, repo, domain.RoomStatusOpen, "")
	touched := room.UpdatedAt.Add(time.Minute)

	msg := &messageRecord{
		RoomID:      room.ID,
		SenderID:    "customer-1",
		SenderType:  string(domain.SenderRoleCustomer),
		Content:     "hello",
		MessageType: string(domain.MessageKindText),
		Timestamp:   touched,
	}
	if err := repo.CreateMessage(ctx, msg, touched); err != nil {
		t.Fatalf("CreateMessage() error = %v", err)
	}
	if msg.ID == 0 {
		t.Error("CreateMessage() should assign an id")
	}

	found, err := repo.FindRoom(ctx, room.ID)
	if err != nil {
		t.Fatalf("FindRoom() error = %v", err)
	}
	if !found.UpdatedAt.Equal(touched) {
		t.Errorf("expected room updated_at %v, got %v", touched, found.UpdatedAt)
	}
}

func TestRepository_CreateMessage_Rejected(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	closed := createTestRoom(t, repo, domain.RoomStatusClosed, "")

	tests := []struct {
		name    string
		roomID  int64
		wantErr error
	}{
		{"closed room", closed.ID, domain.ErrInvalidOperation},
		{"unknown room", 999, domain.ErrRoomNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := &messageRecord{
				RoomID:      tt.roomID,
				SenderID:    "customer-1",
				SenderType:  string(domain.SenderRoleCustomer),
				Content:     "hello",
				MessageType: string(domain.MessageKindText),
				Timestamp:   time.Now(),
			}
			err := repo.CreateMessage(ctx, msg, time.Now())
			if !errors.Is(err, tt.wantErr) {
				t.Errorf("expected %v, got %v", tt.wantErr, err)
			}
		})
	}

	messages, err := repo.FindMessages(ctx, closed.ID, time.Time{})
	if err != nil {
		t.Fatalf("FindMessages() error = %v", err)
	}
	if len(messages) != 0 {
		t.Errorf("expected no stored messages, got %d", len(messages))
	}
}

func TestRepository_FindMessagesAndMarkRead(t *testing.T) {
	repo := NewRepository(setupTestDB(t))
	ctx := context.Background()

	room := createTestRoom(t, repo, domain.RoomStatusAssigned, "employee-1")
	base := time.Now().UTC().Truncate(time.Second)

	senders := []string{"customer-1", "employee-1", "customer-1"}
	for i, sender := range senders {
		msg := &messageRecord{
			RoomID:      room.ID,
			SenderID:    sender,
			SenderType:  string(domain.SenderRoleCustomer),
			Content:     "message",
			MessageType: string(domain.MessageKindText),
			Timestamp:   base.Add(time.Duration(i) * time.Second),
		}
		if err := repo.CreateMessage(ctx, msg, base); err != nil {
			t.Fatalf("CreateMessage() error = %v", err)
		}
	}

	messages, err := repo.FindMessages(ctx, room.ID, time.Time{})
	if err != nil {
		t.Fatalf("FindMessages() error = %v", err)
	}
	if len(messages) != 3 {
		t.Fatalf("expected 3 messages, got %d", len(messages))
	}
	for i := 1; i < len(messages); i++ {
		if messages[i].Timestamp.Before(messages[i-1].Timestamp) {
			t.Errorf("messages not in timestamp order at %d", i)
		}
	}

	recent, err := repo.FindMessages(ctx, room.ID, base.Add(time.Second))
	if err != nil {
		t.Fatalf("FindMessages() since error = %v", err)
	}
	if len(recent) != 1 {
		t.Fatalf("expected 1 message after the cutoff, got %d", len(recent))
	}
	if !recent[0].Timestamp.Equal(base.Add(2 * time.Second)) {
		t.Errorf("unexpected message after cutoff: %v", recent[0].Timestamp)
	}

	updated, err := repo.MarkRead(ctx, room.ID, "employee-1")
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if updated != 2 {
		t.Errorf("expected 2 messages marked read, got %d", updated)
	}

	// Already read messages are not counted again.
	updated, err = repo.MarkRead(ctx, room.ID, "employee-1")
	if err != nil {
		t.Fatalf("MarkRead() error = %v", err)
	}
	if updated != 0 {
		t.Errorf("expected 0 messages marked read, got %d", updated)
	}
}
