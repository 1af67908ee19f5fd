package chat

import (
	"context"

	"github.com/go-monolith/mono"
)

// getRoom handles the chat.room-get service request.
func (m *Module) getRoom(ctx context.Context, req GetRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.GetRoom(ctx, req.RoomID)
	if err != nil {
		return RoomResponse{}, err
	}
	return RoomResponse{Room: room}, nil
}

// setRoomStatus handles the chat.room-set-status service request.
func (m *Module) setRoomStatus(ctx context.Context, req SetRoomStatusRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.SetStatus(ctx, req.RoomID, req.Status, req.Source)
	if err != nil {
		return RoomResponse{}, err
	}
	return RoomResponse{Room: room}, nil
}

// createRoom handles the chat.room-create service request.
func (m *Module) createRoom(ctx context.Context, req CreateRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.CreateRoom(ctx, req.CustomerID, req.Source)
	if err != nil {
		return RoomResponse{}, err
	}
	m.logger.Info("Room created", "roomID", room.ID, "customerID", room.CustomerID)
	return RoomResponse{Room: room}, nil
}

// assignRoom handles the chat.room-assign service request.
func (m *Module) assignRoom(ctx context.Context, req AssignRoomRequest, _ *mono.Msg) (RoomResponse, error) {
	room, err := m.service.AssignEmployee(ctx, req.RoomID, req.EmployeeID, req.Source)
	if err != nil {
		return RoomResponse{}, err
	}
	m.logger.Info("Room assigned", "roomID", room.ID, "employeeID", room.EmployeeID)
	return RoomResponse{Room: room}, nil
}

// listRooms handles the chat.room-list service request.
func (m *Module) listRooms(ctx context.Context, req ListRoomsRequest, _ *mono.Msg) (ListRoomsResponse, error) {
	rooms, err := m.service.ListRooms(ctx, req.CustomerID, req.EmployeeID)
	if err != nil {
		return ListRoomsResponse{}, err
	}
	return ListRoomsResponse{Rooms: rooms, Total: len(rooms)}, nil
}

// saveMessage handles the chat.message-save service request.
func (m *Module) saveMessage(ctx context.Context, req SaveMessageRequest, _ *mono.Msg) (MessageResponse, error) {
	msg, err := m.service.SaveMessage(ctx, req.Message)
	if err != nil {
		return MessageResponse{}, err
	}
	m.logger.Debug("Message saved", "roomID", msg.RoomID, "messageID", msg.ID)
	return MessageResponse{Message: msg}, nil
}

// listMessages handles the chat.message-list service request.
func (m *Module) listMessages(ctx context.Context, req ListMessagesRequest, _ *mono.Msg) (ListMessagesResponse, error) {
	messages, err := m.service.ListMessages(ctx, req.RoomID, req.Since)
	if err != nil {
		return ListMessagesResponse{}, err
	}
	return ListMessagesResponse{Messages: messages, Total: len(messages)}, nil
}

// markRead handles the chat.message-mark-read service request.
func (m *Module) markRead(ctx context.Context, req MarkReadRequest, _ *mono.Msg) (MarkReadResponse, error) {
	updated, err := m.service.MarkRead(ctx, req.RoomID, req.ReaderID)
	if err != nil {
		return MarkReadResponse{}, err
	}
	return MarkReadResponse{Updated: updated}, nil
}
