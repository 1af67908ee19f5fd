package api

import (
	"context"
	"sync"
	"time"

	"github.com/example/support-chat-relay/config"
	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/example/support-chat-relay/modules/relay"
	"github.com/go-monolith/mono/pkg/types"
)

// mockLogger implements types.Logger for testing
type mockLogger struct{}

func (m *mockLogger) Debug(_ string, _ ...any) {}
func (m *mockLogger) Info(_ string, _ ...any)  {}
func (m *mockLogger) Warn(_ string, _ ...any)  {}
func (m *mockLogger) Error(_ string, _ ...any) {}
func (m *mockLogger) With(_ ...any) types.Logger {
	return m
}
func (m *mockLogger) WithModule(_ string) types.Logger {
	return m
}
func (m *mockLogger) WithError(_ error) types.Logger {
	return m
}

// mockChat implements chat.ChatAdapterPort. Every call returns err when set;
// setErr fails SetRoomStatus only.
type mockChat struct {
	rooms    map[int64]*domain.Room
	messages []*domain.Message
	err      error
	setErr   error
	filters  [2]string
	nextID   int64
	mu       sync.Mutex
}

func newMockChat(rooms ...*domain.Room) *mockChat {
	c := &mockChat{rooms: make(map[int64]*domain.Room), nextID: 100}
	for _, r := range rooms {
		c.rooms[r.ID] = r
	}
	return c
}

func (c *mockChat) room(roomID int64) (*domain.Room, error) {
	if c.err != nil {
		return nil, c.err
	}
	r, ok := c.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	return r, nil
}

func (c *mockChat) GetRoom(_ context.Context, roomID int64) (*domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.room(roomID)
	if err != nil {
		return nil, err
	}
	cp := *r
	return &cp, nil
}

func (c *mockChat) SetRoomStatus(_ context.Context, roomID int64, status domain.RoomStatus) (*domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.setErr != nil {
		return nil, c.setErr
	}
	r, err := c.room(roomID)
	if err != nil {
		return nil, err
	}
	r.Status = status
	cp := *r
	return &cp, nil
}

func (c *mockChat) CreateRoom(_ context.Context, customerID string) (*domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.nextID++
	r := &domain.Room{ID: c.nextID, CustomerID: customerID, Status: domain.RoomStatusOpen}
	c.rooms[r.ID] = r
	return r, nil
}

func (c *mockChat) AssignEmployee(_ context.Context, roomID int64, employeeID string) (*domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	r, err := c.room(roomID)
	if err != nil {
		return nil, err
	}
	r.EmployeeID = employeeID
	r.Status = domain.RoomStatusAssigned
	return r, nil
}

func (c *mockChat) ListRooms(_ context.Context, customerID, employeeID string) ([]*domain.Room, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.filters = [2]string{customerID, employeeID}
	var out []*domain.Room
	for _, r := range c.rooms {
		if customerID != "" && r.CustomerID != customerID {
			continue
		}
		if employeeID != "" && r.EmployeeID != employeeID {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (c *mockChat) SaveMessage(_ context.Context, msg domain.Message) (*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.err != nil {
		return nil, c.err
	}
	c.messages = append(c.messages, &msg)
	return &msg, nil
}

func (c *mockChat) ListMessages(_ context.Context, roomID int64, since time.Time) ([]*domain.Message, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.room(roomID); err != nil {
		return nil, err
	}
	var out []*domain.Message
	for _, msg := range c.messages {
		if msg.RoomID == roomID && (since.IsZero() || msg.Timestamp.After(since)) {
			out = append(out, msg)
		}
	}
	return out, nil
}

func (c *mockChat) MarkRead(_ context.Context, roomID int64, readerID string) (int64, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := c.room(roomID); err != nil {
		return 0, err
	}
	var n int64
	for _, msg := range c.messages {
		if msg.RoomID == roomID && msg.SenderID != readerID && !msg.Read {
			msg.Read = true
			n++
		}
	}
	return n, nil
}

// mockRelay implements RelayPort.
type mockRelay struct {
	typing      map[int64][]string
	connections int
}

func (r *mockRelay) Connect(_ string, _ relay.Channel) error { return nil }
func (r *mockRelay) Dispatch(_ context.Context, _ relay.Sender, _ []byte) error {
	return nil
}
func (r *mockRelay) Disconnect(_ context.Context, _ string, _ relay.Channel) []int64 {
	return nil
}
func (r *mockRelay) TypingSnapshot(roomID int64) []string { return r.typing[roomID] }
func (r *mockRelay) Connections() int                     { return r.connections }

func testConfig() *config.Config {
	return &config.Config{
		Port:               "0",
		CORSAllowedOrigins: "*",
	}
}

func newTestModule(cfg *config.Config, chat *mockChat, rl *mockRelay) *Module {
	m := NewModule(cfg, &mockLogger{})
	m.chat = chat
	m.relay = rl
	m.app = m.newApp()
	return m
}
