package relay

import (
	"slices"
	"sync"
)

// TypingTracker holds the per-room set of users currently typing.
// Typing state is process-local and starts empty.
type TypingTracker struct {
	rooms map[int64]map[string]struct{}
	mu    sync.Mutex
}

// NewTypingTracker creates an empty TypingTracker.
func NewTypingTracker() *TypingTracker {
	return &TypingTracker{
		rooms: make(map[int64]map[string]struct{}),
	}
}

// MarkTyping adds userID to roomID's typing set. Repeated calls are no-ops.
func (t *TypingTracker) MarkTyping(roomID int64, userID string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	users, ok := t.rooms[roomID]
	if !ok {
		users = make(map[string]struct{})
		t.rooms[roomID] = users
	}
	users[userID] = struct{}{}
}

// ClearTyping removes userID from roomID's typing set and reports whether it
// was present.
func (t *TypingTracker) ClearTyping(roomID int64, userID string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.removeLocked(roomID, userID)
}

// PurgeUser removes userID from every room and returns the affected room
// ids in ascending order.
func (t *TypingTracker) PurgeUser(userID string) []int64 {
	t.mu.Lock()
	defer t.mu.Unlock()

	var affected []int64
	for roomID := range t.rooms {
		if t.removeLocked(roomID, userID) {
			affected = append(affected, roomID)
		}
	}
	slices.Sort(affected)
	return affected
}

// Snapshot returns the users typing in roomID, sorted.
func (t *TypingTracker) Snapshot(roomID int64) []string {
	t.mu.Lock()
	defer t.mu.Unlock()

	users := make([]string, 0, len(t.rooms[roomID]))
	for userID := range t.rooms[roomID] {
		users = append(users, userID)
	}
	slices.Sort(users)
	return users
}

// Rooms returns the number of rooms with at least one typing user.
func (t *TypingTracker) Rooms() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.rooms)
}

func (t *TypingTracker) removeLocked(roomID int64, userID string) bool {
	users, ok := t.rooms[roomID]
	if !ok {
		return false
	}
	if _, ok := users[userID]; !ok {
		return false
	}
	delete(users, userID)
	if len(users) == 0 {
		delete(t.rooms, roomID)
	}
	return true
}
