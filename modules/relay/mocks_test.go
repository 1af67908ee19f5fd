package relay

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"github.com/stretchr/testify/require"
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

type mockChannel struct {
	id        string
	received  [][]byte
	closed    bool
	closeCode int
	sendErr   error
	mu        sync.Mutex
}

func newMockChannel(id string) *mockChannel {
	return &mockChannel{id: id}
}

func (m *mockChannel) Send(_ context.Context, data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.sendErr != nil {
		return m.sendErr
	}
	if m.closed {
		return errors.New("send on closed channel")
	}
	m.received = append(m.received, data)
	return nil
}

func (m *mockChannel) Close(code int, _ string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	m.closeCode = code
	return nil
}

func (m *mockChannel) IsOpen() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return !m.closed
}

func (m *mockChannel) isClosed() (bool, int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed, m.closeCode
}

// frames decodes everything the channel received.
func (m *mockChannel) frames(t *testing.T) []WireMessage {
	t.Helper()
	m.mu.Lock()
	defer m.mu.Unlock()

	out := make([]WireMessage, 0, len(m.received))
	for _, data := range m.received {
		var msg WireMessage
		require.NoError(t, json.Unmarshal(data, &msg))
		out = append(out, msg)
	}
	return out
}

// mockStore is an in-memory RoomStore and MessageStore.
type mockStore struct {
	rooms      map[int64]*domain.Room
	messages   []domain.Message
	getCalls   int
	saveCalls  int
	closeCalls int
	getErr     error
	setErr     error
	saveErr    error
	getDelay   time.Duration
	afterRead  func()
	mu         sync.Mutex
}

func newMockStore(rooms ...*domain.Room) *mockStore {
	s := &mockStore{rooms: make(map[int64]*domain.Room)}
	for _, r := range rooms {
		s.rooms[r.ID] = r
	}
	return s
}

func (s *mockStore) GetRoom(_ context.Context, roomID int64) (*domain.Room, error) {
	s.mu.Lock()
	s.getCalls++
	delay, getErr := s.getDelay, s.getErr
	s.mu.Unlock()

	if delay > 0 {
		time.Sleep(delay)
	}

	s.mu.Lock()
	if getErr != nil {
		s.mu.Unlock()
		return nil, getErr
	}
	room, ok := s.rooms[roomID]
	if !ok {
		s.mu.Unlock()
		return nil, domain.ErrRoomNotFound
	}
	cp := *room
	hook := s.afterRead
	s.mu.Unlock()

	// hook runs after the snapshot was taken, like a slow reply in flight.
	if hook != nil {
		hook()
	}
	return &cp, nil
}

// stallNextRead makes the next GetRoom take its snapshot, signal read, and
// then wait for release before returning.
func (s *mockStore) stallNextRead() (read <-chan struct{}, release func()) {
	readCh, releaseCh := make(chan struct{}), make(chan struct{})
	var stalled atomic.Bool
	s.mu.Lock()
	s.afterRead = func() {
		if stalled.CompareAndSwap(false, true) {
			close(readCh)
			<-releaseCh
		}
	}
	s.mu.Unlock()
	return readCh, func() { close(releaseCh) }
}

func (s *mockStore) setStatus(roomID int64, status domain.RoomStatus) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.rooms[roomID].Status = status
}

func (s *mockStore) SetRoomStatus(_ context.Context, roomID int64, status domain.RoomStatus) (*domain.Room, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.closeCalls++
	if s.setErr != nil {
		return nil, s.setErr
	}
	room, ok := s.rooms[roomID]
	if !ok {
		return nil, domain.ErrRoomNotFound
	}
	if room.Status != status {
		room.Status = status
		room.Version++
	}
	cp := *room
	return &cp, nil
}

func (s *mockStore) SaveMessage(_ context.Context, msg domain.Message) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saveCalls++
	if s.saveErr != nil {
		return nil, s.saveErr
	}
	msg.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, msg)
	return &msg, nil
}

func (s *mockStore) counts() (get, save, closeCalls int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getCalls, s.saveCalls, s.closeCalls
}

func (s *mockStore) saved() []domain.Message {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.Message(nil), s.messages...)
}

func (s *mockStore) status(roomID int64) domain.RoomStatus {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.rooms[roomID].Status
}

// mockCache is an in-memory RoomCache.
type mockCache struct {
	rooms   map[int64]domain.Room
	getErr  error
	deletes int
	mu      sync.Mutex
}

func newMockCache() *mockCache {
	return &mockCache{rooms: make(map[int64]domain.Room)}
}

func (c *mockCache) GetRoom(_ context.Context, roomID int64) (*domain.Room, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.getErr != nil {
		return nil, false, c.getErr
	}
	room, ok := c.rooms[roomID]
	if !ok {
		return nil, false, nil
	}
	return &room, true, nil
}

func (c *mockCache) SetRoom(_ context.Context, room *domain.Room) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rooms[room.ID] = *room
	return nil
}

func (c *mockCache) DeleteRoom(_ context.Context, roomID int64) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.deletes++
	delete(c.rooms, roomID)
	return nil
}

func (c *mockCache) has(roomID int64) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.rooms[roomID]
	return ok
}

var fixedNow = time.Date(2024, 6, 1, 10, 30, 0, 0, time.UTC)

func openRoom(id int64, customerID, employeeID string) *domain.Room {
	status := domain.RoomStatusOpen
	if employeeID != "" {
		status = domain.RoomStatusAssigned
	}
	return &domain.Room{
		ID:         id,
		CustomerID: customerID,
		EmployeeID: employeeID,
		Status:     status,
	}
}

func closedRoom(id int64, customerID, employeeID string) *domain.Room {
	r := openRoom(id, customerID, employeeID)
	r.Status = domain.RoomStatusClosed
	return r
}

func newTestRelay(store *mockStore, opts ...Option) *Relay {
	opts = append([]Option{WithClock(func() time.Time { return fixedNow })}, opts...)
	return New(store, store, &mockLogger{}, opts...)
}
