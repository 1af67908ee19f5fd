package relay

import (
	"context"
	"sync"
)

// Close codes used by the relay.
const (
	CloseNormal   = 1000
	CloseInternal = 1011
)

// Channel is one user's live bidirectional connection. Implementations must
// be safe for concurrent Send calls and must be comparable, since the
// registry matches channels by identity.
type Channel interface {
	Send(ctx context.Context, data []byte) error
	Close(code int, reason string) error
	IsOpen() bool
}

// Registry maps user ids to their live channel. At most one channel is held
// per user; a newer registration supersedes the older one.
type Registry struct {
	channels map[string]Channel
	mu       sync.RWMutex
}

// NewRegistry creates an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		channels: make(map[string]Channel),
	}
}

// Register stores ch for userID, replacing any prior channel. The replaced
// channel is not closed.
func (r *Registry) Register(userID string, ch Channel) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.channels[userID] = ch
}

// Deregister removes the mapping for userID if present.
func (r *Registry) Deregister(userID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.channels, userID)
}

// DeregisterChannel removes the mapping for userID only while it still points
// at ch. It reports whether a mapping was removed.
func (r *Registry) DeregisterChannel(userID string, ch Channel) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	current, ok := r.channels[userID]
	if !ok || current != ch {
		return false
	}
	delete(r.channels, userID)
	return true
}

// Lookup returns the channel registered for userID.
func (r *Registry) Lookup(userID string) (Channel, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	ch, ok := r.channels[userID]
	return ch, ok
}

// Len returns the number of registered users.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.channels)
}

// CloseAll closes every registered channel and empties the registry.
// It returns the number of channels closed.
func (r *Registry) CloseAll(code int, reason string) int {
	r.mu.Lock()
	channels := r.channels
	r.channels = make(map[string]Channel)
	r.mu.Unlock()

	for _, ch := range channels {
		_ = ch.Close(code, reason)
	}
	return len(channels)
}
