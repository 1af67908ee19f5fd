package relay

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/go-monolith/mono/pkg/types"
)

// Broadcaster fans an outbound event out to the live channels of a room's
// participants.
type Broadcaster struct {
	gateway  *Gateway
	registry *Registry
	logger   types.Logger
}

// NewBroadcaster creates a Broadcaster.
func NewBroadcaster(gateway *Gateway, registry *Registry, logger types.Logger) *Broadcaster {
	return &Broadcaster{
		gateway:  gateway,
		registry: registry,
		logger:   logger,
	}
}

// Broadcast delivers event to every participant of roomID that has a live
// channel and returns how many writes succeeded. Per-recipient failures are
// logged and skipped. An error is returned only when the room or the event
// could not be resolved, in which case nothing is sent.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID int64, event *WireMessage) (int, error) {
	start := time.Now()
	defer func() {
		BroadcastDuration.Observe(time.Since(start).Seconds())
	}()

	room, err := b.gateway.GetRoom(ctx, roomID)
	if err != nil {
		return 0, fmt.Errorf("broadcast %s to room %d: %w", event.Type, roomID, err)
	}

	data, err := event.Encode()
	if err != nil {
		return 0, err
	}

	var (
		wg        sync.WaitGroup
		delivered atomic.Int64
	)
	for _, userID := range room.Participants() {
		ch, ok := b.registry.Lookup(userID)
		if !ok {
			continue
		}

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := b.send(ctx, ch, data); err != nil {
				BroadcastDeliveries.WithLabelValues(string(event.Type), "failed").Inc()
				b.logger.Warn("Failed to deliver event",
					"type", event.Type,
					"roomID", roomID,
					"userID", userID,
					"error", err)
				return
			}
			BroadcastDeliveries.WithLabelValues(string(event.Type), "sent").Inc()
			delivered.Add(1)
		}()
	}
	wg.Wait()

	return int(delivered.Load()), nil
}

func (b *Broadcaster) send(ctx context.Context, ch Channel, data []byte) error {
	if !ch.IsOpen() {
		return fmt.Errorf("%w: channel closed", domain.ErrSendFailure)
	}
	if err := ch.Send(ctx, data); err != nil {
		return fmt.Errorf("%w: %v", domain.ErrSendFailure, err)
	}
	return nil
}
