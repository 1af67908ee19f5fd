package relay

import (
	"context"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// Lifecycle registers connections and cleans up after them.
type Lifecycle struct {
	registry    *Registry
	typing      *TypingTracker
	gateway     *Gateway
	broadcaster *Broadcaster
	logger      types.Logger
	now         func() time.Time
}

// NewLifecycle creates a Lifecycle.
func NewLifecycle(
	registry *Registry,
	typing *TypingTracker,
	gateway *Gateway,
	broadcaster *Broadcaster,
	logger types.Logger,
	now func() time.Time,
) *Lifecycle {
	return &Lifecycle{
		registry:    registry,
		typing:      typing,
		gateway:     gateway,
		broadcaster: broadcaster,
		logger:      logger,
		now:         now,
	}
}

// Connect registers ch as userID's live channel, superseding any earlier one.
func (l *Lifecycle) Connect(userID string, ch Channel) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", domain.ErrInvalidOperation)
	}

	l.registry.Register(userID, ch)
	ConnectionsActive.Set(float64(l.registry.Len()))
	l.logger.Info("User connected", "userID", userID)
	return nil
}

// Disconnect deregisters ch, clears userID's typing state and tells each
// affected room the user stopped typing. Cleanup is best effort and never
// fails; the affected room ids are returned.
func (l *Lifecycle) Disconnect(ctx context.Context, userID string, ch Channel) []int64 {
	if !l.registry.DeregisterChannel(userID, ch) {
		l.logger.Debug("Channel already superseded", "userID", userID)
	}
	ConnectionsActive.Set(float64(l.registry.Len()))

	rooms := l.typing.PurgeUser(userID)
	for _, roomID := range rooms {
		ts := l.now()
		_, err := l.broadcaster.Broadcast(ctx, roomID, &WireMessage{
			Type:         KindUserStoppedTyping,
			RoomID:       roomID,
			SenderID:     userID,
			SenderType:   l.roleIn(ctx, roomID, userID),
			IsTyping:     typingFlag(false),
			TypingUserID: userID,
			Timestamp:    &ts,
		})
		if err != nil {
			l.logger.Warn("Stop-typing cleanup broadcast failed",
				"userID", userID,
				"roomID", roomID,
				"error", err)
		}
	}

	l.logger.Info("User disconnected", "userID", userID, "typingRooms", len(rooms))
	return rooms
}

// roleIn returns userID's role in the room, or "" when the room cannot be
// read or the user is not a participant.
func (l *Lifecycle) roleIn(ctx context.Context, roomID int64, userID string) domain.SenderRole {
	room, err := l.gateway.GetRoom(ctx, roomID)
	if err != nil {
		return ""
	}
	role, _ := room.RoleOf(userID)
	return role
}
