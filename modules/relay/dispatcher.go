package relay

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// ErrChannelClosed is returned by Dispatch after the sender's channel was
// closed because its room is closed. The caller must stop reading frames.
var ErrChannelClosed = errors.New("channel closed by relay")

// Sender identifies the connection an inbound frame arrived on. UserID comes
// from the handshake and is never taken from the payload.
type Sender struct {
	UserID  string
	Channel Channel
}

// Dispatcher routes inbound frames by event kind.
type Dispatcher struct {
	gateway     *Gateway
	typing      *TypingTracker
	broadcaster *Broadcaster
	logger      types.Logger
	now         func() time.Time
}

// NewDispatcher creates a Dispatcher.
func NewDispatcher(
	gateway *Gateway,
	typing *TypingTracker,
	broadcaster *Broadcaster,
	logger types.Logger,
	now func() time.Time,
) *Dispatcher {
	return &Dispatcher{
		gateway:     gateway,
		typing:      typing,
		broadcaster: broadcaster,
		logger:      logger,
		now:         now,
	}
}

// Dispatch handles one inbound frame from sender.
//
// It returns nil when the event was handled or dropped; the connection stays
// open either way. It returns ErrChannelClosed once the room was found closed
// (or closed on request) and the sender's channel has been closed. Any other
// error means the forced close itself failed and the caller should close the
// connection abnormally.
func (d *Dispatcher) Dispatch(ctx context.Context, sender Sender, frame []byte) (err error) {
	kind := "invalid"
	defer func() {
		if r := recover(); r != nil {
			d.logger.Error("Recovered panic while dispatching event",
				"userID", sender.UserID,
				"type", kind,
				"panic", r)
			EventsDispatched.WithLabelValues(kind, outcomeDropped).Inc()
			err = nil
		}
	}()

	msg, err := Decode(frame)
	if err != nil {
		d.drop(kind, sender, 0, err)
		return nil
	}
	kind = kindLabel(msg.Type)

	if msg.RoomID <= 0 {
		d.drop(kind, sender, msg.RoomID, fmt.Errorf("%w: missing room id", domain.ErrInvalidOperation))
		return nil
	}

	room, err := d.gateway.GetRoom(ctx, msg.RoomID)
	if err != nil {
		d.drop(kind, sender, msg.RoomID, err)
		return nil
	}

	if room.IsClosed() {
		return d.forceClose(ctx, kind, sender, room, msg)
	}

	switch msg.Type {
	case KindSendMessage:
		err = d.sendMessage(ctx, sender, room, msg)
	case KindTyping:
		err = d.startTyping(ctx, sender, room, msg)
	case KindStopTyping:
		err = d.stopTyping(ctx, sender, room, msg)
	case KindRoomClose:
		return d.forceClose(ctx, kind, sender, room, msg)
	default:
		d.logger.Debug("Ignoring unknown event kind", "userID", sender.UserID, "type", msg.Type)
		EventsDispatched.WithLabelValues(kind, outcomeDropped).Inc()
		return nil
	}

	if err != nil {
		d.drop(kind, sender, room.ID, err)
		return nil
	}
	EventsDispatched.WithLabelValues(kind, outcomeHandled).Inc()
	return nil
}

func (d *Dispatcher) sendMessage(ctx context.Context, sender Sender, room *domain.Room, msg *WireMessage) error {
	content := strings.TrimSpace(msg.Content)
	if err := domain.ValidateMessage(content); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrInvalidOperation, err)
	}

	role, ok := resolveRole(room, sender.UserID, msg.SenderType)
	if !ok {
		return fmt.Errorf("%w: no sender role for %q in room %d", domain.ErrInvalidOperation, sender.UserID, room.ID)
	}

	saved, err := d.gateway.PersistMessage(ctx, domain.Message{
		RoomID:     room.ID,
		SenderID:   sender.UserID,
		SenderRole: role,
		Content:    content,
		Kind:       domain.MessageKindText,
		Timestamp:  d.now(),
		Read:       false,
	})
	if err != nil {
		return err
	}

	// The new message supersedes the sender's typing indicator.
	d.typing.ClearTyping(room.ID, sender.UserID)

	ts := saved.Timestamp
	_, err = d.broadcaster.Broadcast(ctx, room.ID, &WireMessage{
		Type:       KindNewMessage,
		RoomID:     room.ID,
		SenderID:   saved.SenderID,
		SenderType: saved.SenderRole,
		Content:    saved.Content,
		Timestamp:  &ts,
	})
	return err
}

func (d *Dispatcher) startTyping(ctx context.Context, sender Sender, room *domain.Room, msg *WireMessage) error {
	d.typing.MarkTyping(room.ID, sender.UserID)

	role, _ := resolveRole(room, sender.UserID, msg.SenderType)
	ts := d.now()
	_, err := d.broadcaster.Broadcast(ctx, room.ID, &WireMessage{
		Type:         KindUserTyping,
		RoomID:       room.ID,
		SenderID:     sender.UserID,
		SenderType:   role,
		IsTyping:     typingFlag(true),
		TypingUserID: sender.UserID,
		Timestamp:    &ts,
	})
	return err
}

func (d *Dispatcher) stopTyping(ctx context.Context, sender Sender, room *domain.Room, msg *WireMessage) error {
	if !d.typing.ClearTyping(room.ID, sender.UserID) {
		return nil
	}

	role, _ := resolveRole(room, sender.UserID, msg.SenderType)
	ts := d.now()
	_, err := d.broadcaster.Broadcast(ctx, room.ID, &WireMessage{
		Type:         KindUserStoppedTyping,
		RoomID:       room.ID,
		SenderID:     sender.UserID,
		SenderType:   role,
		IsTyping:     typingFlag(false),
		TypingUserID: sender.UserID,
		Timestamp:    &ts,
	})
	return err
}

// forceClose closes the room, tells its participants and closes the sender's
// channel. A storage failure aborts the sequence before anything is sent.
func (d *Dispatcher) forceClose(ctx context.Context, kind string, sender Sender, room *domain.Room, msg *WireMessage) error {
	closed, err := d.gateway.CloseRoom(ctx, room.ID)
	if err != nil {
		EventsDispatched.WithLabelValues(kind, outcomeDropped).Inc()
		return fmt.Errorf("force close room %d: %w", room.ID, err)
	}

	role, _ := resolveRole(closed, sender.UserID, msg.SenderType)
	ts := d.now()
	delivered, err := d.broadcaster.Broadcast(ctx, closed.ID, &WireMessage{
		Type:       KindRoomClose,
		RoomID:     closed.ID,
		SenderID:   sender.UserID,
		SenderType: role,
		Timestamp:  &ts,
	})
	if err != nil {
		EventsDispatched.WithLabelValues(kind, outcomeDropped).Inc()
		return fmt.Errorf("force close room %d: %w", closed.ID, err)
	}

	if err := sender.Channel.Close(CloseNormal, "room closed"); err != nil {
		d.logger.Debug("Closing sender channel failed", "userID", sender.UserID, "error", err)
	}

	d.logger.Info("Room closed",
		"roomID", closed.ID,
		"userID", sender.UserID,
		"notified", delivered)
	EventsDispatched.WithLabelValues(kind, outcomeClosed).Inc()
	return ErrChannelClosed
}

func (d *Dispatcher) drop(kind string, sender Sender, roomID int64, err error) {
	d.logger.Warn("Dropping event",
		"userID", sender.UserID,
		"type", kind,
		"roomID", roomID,
		"error", err)
	EventsDispatched.WithLabelValues(kind, outcomeDropped).Inc()
}

// resolveRole derives the sender's role from room membership, falling back to
// a valid claimed role for non-participants.
func resolveRole(room *domain.Room, userID string, claimed domain.SenderRole) (domain.SenderRole, bool) {
	if role, ok := room.RoleOf(userID); ok {
		return role, true
	}
	if claimed.Valid() {
		return claimed, true
	}
	return "", false
}

// kindLabel bounds metric label cardinality to the known kinds.
func kindLabel(kind EventKind) string {
	switch kind {
	case KindSendMessage, KindTyping, KindStopTyping, KindRoomClose:
		return string(kind)
	}
	return "unknown"
}
