package relay

import (
	"context"
	"time"

	"github.com/go-monolith/mono/pkg/types"
)

// CloseGoingAway is sent to every channel on shutdown.
const CloseGoingAway = 1001

type options struct {
	cache RoomCache
	now   func() time.Time
}

// Option configures a Relay.
type Option func(*options)

// WithRoomCache fronts room lookups with cache.
func WithRoomCache(cache RoomCache) Option {
	return func(o *options) {
		o.cache = cache
	}
}

// WithClock overrides the clock used to stamp messages and outbound events.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

// Relay wires the connection registry, typing tracker, gateway, broadcaster,
// dispatcher and lifecycle together. Each Relay owns its own state.
type Relay struct {
	registry    *Registry
	typing      *TypingTracker
	gateway     *Gateway
	broadcaster *Broadcaster
	dispatcher  *Dispatcher
	lifecycle   *Lifecycle
	logger      types.Logger
	now         func() time.Time
}

// New creates a Relay over the given stores.
func New(rooms RoomStore, messages MessageStore, logger types.Logger, opts ...Option) *Relay {
	o := options{
		now: func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(&o)
	}

	registry := NewRegistry()
	typing := NewTypingTracker()
	gateway := NewGateway(rooms, messages, o.cache, logger)
	broadcaster := NewBroadcaster(gateway, registry, logger)

	return &Relay{
		registry:    registry,
		typing:      typing,
		gateway:     gateway,
		broadcaster: broadcaster,
		dispatcher:  NewDispatcher(gateway, typing, broadcaster, logger, o.now),
		lifecycle:   NewLifecycle(registry, typing, gateway, broadcaster, logger, o.now),
		logger:      logger,
		now:         o.now,
	}
}

// Connect registers a new live channel for userID.
func (r *Relay) Connect(userID string, ch Channel) error {
	return r.lifecycle.Connect(userID, ch)
}

// Dispatch handles one inbound frame. See Dispatcher.Dispatch.
func (r *Relay) Dispatch(ctx context.Context, sender Sender, frame []byte) error {
	return r.dispatcher.Dispatch(ctx, sender, frame)
}

// Disconnect cleans up after a channel went away.
func (r *Relay) Disconnect(ctx context.Context, userID string, ch Channel) []int64 {
	return r.lifecycle.Disconnect(ctx, userID, ch)
}

// NotifyRoomClosed tells the live participants of a room closed outside the
// relay. Their channels stay open; a later event for the room is refused by
// the forced-close path.
func (r *Relay) NotifyRoomClosed(ctx context.Context, roomID int64) (int, error) {
	r.gateway.Invalidate(ctx, roomID)
	ts := r.now()
	return r.broadcaster.Broadcast(ctx, roomID, &WireMessage{
		Type:      KindRoomClose,
		RoomID:    roomID,
		Timestamp: &ts,
	})
}

// InvalidateRoom drops any cached snapshot of roomID.
func (r *Relay) InvalidateRoom(ctx context.Context, roomID int64) {
	r.gateway.Invalidate(ctx, roomID)
}

// TypingSnapshot returns the users currently typing in roomID.
func (r *Relay) TypingSnapshot(roomID int64) []string {
	return r.typing.Snapshot(roomID)
}

// Connections returns the number of live channels.
func (r *Relay) Connections() int {
	return r.registry.Len()
}

// TypingRooms returns the number of rooms with someone typing.
func (r *Relay) TypingRooms() int {
	return r.typing.Rooms()
}

// Shutdown closes every live channel.
func (r *Relay) Shutdown() int {
	n := r.registry.CloseAll(CloseGoingAway, "server shutting down")
	ConnectionsActive.Set(0)
	if n > 0 {
		r.logger.Info("Closed live connections", "count", n)
	}
	return n
}
