package relay

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
	"golang.org/x/sync/singleflight"
)

// RoomStore is the storage port for rooms.
type RoomStore interface {
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, error)
	SetRoomStatus(ctx context.Context, roomID int64, status domain.RoomStatus) (*domain.Room, error)
}

// MessageStore is the storage port for messages.
type MessageStore interface {
	SaveMessage(ctx context.Context, msg domain.Message) (*domain.Message, error)
}

// RoomCache is an optional read-through cache of room snapshots.
type RoomCache interface {
	GetRoom(ctx context.Context, roomID int64) (*domain.Room, bool, error)
	SetRoom(ctx context.Context, room *domain.Room) error
	DeleteRoom(ctx context.Context, roomID int64) error
}

// Gateway is the relay's only path to room and message storage.
type Gateway struct {
	rooms    RoomStore
	messages MessageStore
	cache    RoomCache
	group    singleflight.Group
	logger   types.Logger

	// gens counts evictions per room. A load only fills the cache when no
	// eviction happened since it started.
	mu   sync.Mutex
	gens map[int64]uint64
}

// NewGateway creates a Gateway. cache may be nil.
func NewGateway(rooms RoomStore, messages MessageStore, cache RoomCache, logger types.Logger) *Gateway {
	return &Gateway{
		rooms:    rooms,
		messages: messages,
		cache:    cache,
		logger:   logger,
		gens:     make(map[int64]uint64),
	}
}

// GetRoom returns the room, consulting the cache first when one is set.
// Concurrent misses for the same room share one storage call.
func (g *Gateway) GetRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	if roomID <= 0 {
		return nil, fmt.Errorf("%w: room id must be positive", domain.ErrInvalidOperation)
	}

	if g.cache != nil {
		room, ok, err := g.cache.GetRoom(ctx, roomID)
		switch {
		case err != nil:
			RoomCacheLookups.WithLabelValues("error").Inc()
			g.logger.Warn("Room cache read failed", "roomID", roomID, "error", err)
		case ok:
			RoomCacheLookups.WithLabelValues("hit").Inc()
			return room, nil
		default:
			RoomCacheLookups.WithLabelValues("miss").Inc()
		}
	}

	v, err, _ := g.group.Do(strconv.FormatInt(roomID, 10), func() (any, error) {
		gen := g.generation(roomID)
		room, err := g.rooms.GetRoom(ctx, roomID)
		if err != nil {
			return nil, storageError("get room", err)
		}
		g.fill(ctx, roomID, room, gen)
		return room, nil
	})
	if err != nil {
		return nil, err
	}

	room := *v.(*domain.Room)
	return &room, nil
}

// Participants returns the room's customer id and, when assigned, its
// employee id.
func (g *Gateway) Participants(ctx context.Context, roomID int64) (customerID, employeeID string, err error) {
	room, err := g.GetRoom(ctx, roomID)
	if err != nil {
		return "", "", err
	}
	return room.CustomerID, room.EmployeeID, nil
}

// IsClosed reports whether the room is CLOSED.
func (g *Gateway) IsClosed(ctx context.Context, roomID int64) (bool, error) {
	room, err := g.GetRoom(ctx, roomID)
	if err != nil {
		return false, err
	}
	return room.IsClosed(), nil
}

// CloseRoom moves the room to CLOSED. Closing a closed room succeeds without
// changing it.
func (g *Gateway) CloseRoom(ctx context.Context, roomID int64) (*domain.Room, error) {
	room, err := g.rooms.SetRoomStatus(ctx, roomID, domain.RoomStatusClosed)
	if err != nil {
		return nil, storageError("close room", err)
	}
	g.Invalidate(ctx, roomID)
	return room, nil
}

// PersistMessage stores msg and returns it with its assigned id.
func (g *Gateway) PersistMessage(ctx context.Context, msg domain.Message) (*domain.Message, error) {
	saved, err := g.messages.SaveMessage(ctx, msg)
	if err != nil {
		return nil, storageError("save message", err)
	}
	return saved, nil
}

// Invalidate drops any cached snapshot of the room. Loads already in flight
// are detached so later callers read storage again, and their results are
// not written back to the cache.
func (g *Gateway) Invalidate(ctx context.Context, roomID int64) {
	g.mu.Lock()
	g.gens[roomID]++
	g.mu.Unlock()
	g.group.Forget(strconv.FormatInt(roomID, 10))

	if g.cache == nil {
		return
	}
	if err := g.cache.DeleteRoom(ctx, roomID); err != nil {
		g.logger.Warn("Room cache eviction failed", "roomID", roomID, "error", err)
	}
}

func (g *Gateway) generation(roomID int64) uint64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.gens[roomID]
}

// fill caches room if it was loaded at generation gen. The lock is held
// across the write so an eviction cannot slip between the check and the set.
func (g *Gateway) fill(ctx context.Context, roomID int64, room *domain.Room, gen uint64) {
	if g.cache == nil {
		return
	}
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.gens[roomID] != gen {
		return
	}
	if err := g.cache.SetRoom(ctx, room); err != nil {
		g.logger.Warn("Room cache write failed", "roomID", roomID, "error", err)
	}
}

// storageError keeps known sentinels and classifies anything else as
// ErrStorageUnavailable.
func storageError(op string, err error) error {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound),
		errors.Is(err, domain.ErrInvalidOperation),
		errors.Is(err, domain.ErrStorageUnavailable):
		return fmt.Errorf("%s: %w", op, err)
	default:
		return fmt.Errorf("%s: %w: %v", op, domain.ErrStorageUnavailable, err)
	}
}
