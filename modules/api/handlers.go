package api

import (
	"errors"
	"strconv"
	"strings"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/gofiber/contrib/websocket"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// setupRoutes configures all HTTP routes.
func (m *Module) setupRoutes(app *fiber.App) {
	app.Get("/health", m.healthHandler)
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))

	// WebSocket endpoint
	app.Use("/ws", m.handshake)
	app.Get("/ws", websocket.New(m.handleWebSocket))

	api := app.Group("/api/v1")

	api.Get("/rooms", m.listRooms)
	api.Post("/rooms", m.createRoom)
	api.Get("/rooms/customer/:customerId", m.listCustomerRooms)
	api.Get("/rooms/employee/:employeeId", m.listEmployeeRooms)
	api.Get("/rooms/:id", m.getRoom)
	api.Put("/rooms/:id", m.setRoomStatus)
	api.Put("/rooms/:id/assign", m.assignRoom)
	api.Get("/rooms/:id/messages", m.listMessages)
	api.Put("/rooms/:id/read", m.markRead)
	api.Get("/rooms/:id/typing", m.typingSnapshot)
}

// healthHandler handles GET /health.
func (m *Module) healthHandler(c *fiber.Ctx) error {
	details := map[string]any{"module": "api"}
	if r := m.liveRelay(); r != nil {
		details["connections"] = r.Connections()
	}
	return c.JSON(HealthResponse{
		Status:  "healthy",
		Details: details,
	})
}

// listRooms handles GET /api/v1/rooms.
func (m *Module) listRooms(c *fiber.Ctx) error {
	return m.respondRooms(c, "", "")
}

// listCustomerRooms handles GET /api/v1/rooms/customer/:customerId.
func (m *Module) listCustomerRooms(c *fiber.Ctx) error {
	return m.respondRooms(c, c.Params("customerId"), "")
}

// listEmployeeRooms handles GET /api/v1/rooms/employee/:employeeId.
func (m *Module) listEmployeeRooms(c *fiber.Ctx) error {
	return m.respondRooms(c, "", c.Params("employeeId"))
}

func (m *Module) respondRooms(c *fiber.Ctx, customerID, employeeID string) error {
	rooms, err := m.chat.ListRooms(c.UserContext(), customerID, employeeID)
	if err != nil {
		return writeError(c, err)
	}
	if rooms == nil {
		rooms = []*domain.Room{}
	}
	return c.JSON(RoomListResponse{Rooms: rooms, Total: len(rooms)})
}

// createRoom handles POST /api/v1/rooms.
func (m *Module) createRoom(c *fiber.Ctx) error {
	var req CreateRoomRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.CustomerID) == "" {
		return badRequest(c, "customerId is required")
	}

	room, err := m.chat.CreateRoom(c.UserContext(), req.CustomerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.Status(fiber.StatusCreated).JSON(room)
}

// getRoom handles GET /api/v1/rooms/:id.
func (m *Module) getRoom(c *fiber.Ctx) error {
	roomID, err := roomIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	room, err := m.chat.GetRoom(c.UserContext(), roomID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(room)
}

// setRoomStatus handles PUT /api/v1/rooms/:id.
func (m *Module) setRoomStatus(c *fiber.Ctx) error {
	roomID, err := roomIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req SetStatusRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if !req.Status.Valid() {
		return badRequest(c, "status must be OPEN, ASSIGNED or CLOSED")
	}

	room, err := m.chat.SetRoomStatus(c.UserContext(), roomID, req.Status)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(room)
}

// assignRoom handles PUT /api/v1/rooms/:id/assign.
func (m *Module) assignRoom(c *fiber.Ctx) error {
	roomID, err := roomIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	var req AssignRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest(c, "Invalid request body")
	}
	if strings.TrimSpace(req.EmployeeID) == "" {
		return badRequest(c, "employeeId is required")
	}

	room, err := m.chat.AssignEmployee(c.UserContext(), roomID, req.EmployeeID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(room)
}

// listMessages handles GET /api/v1/rooms/:id/messages[?since=].
func (m *Module) listMessages(c *fiber.Ctx) error {
	roomID, err := roomIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}

	var since time.Time
	if raw := c.Query("since"); raw != "" {
		since, err = time.Parse(time.RFC3339, raw)
		if err != nil {
			return badRequest(c, "since must be an RFC 3339 timestamp")
		}
	}

	messages, err := m.chat.ListMessages(c.UserContext(), roomID, since)
	if err != nil {
		return writeError(c, err)
	}
	if messages == nil {
		messages = []*domain.Message{}
	}
	return c.JSON(MessageListResponse{RoomID: roomID, Messages: messages, Total: len(messages)})
}

// markRead handles PUT /api/v1/rooms/:id/read?readerId=.
func (m *Module) markRead(c *fiber.Ctx) error {
	roomID, err := roomIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	readerID := strings.TrimSpace(c.Query("readerId"))
	if readerID == "" {
		return badRequest(c, "readerId is required")
	}

	updated, err := m.chat.MarkRead(c.UserContext(), roomID, readerID)
	if err != nil {
		return writeError(c, err)
	}
	return c.JSON(MarkReadResponse{RoomID: roomID, Updated: updated})
}

// typingSnapshot handles GET /api/v1/rooms/:id/typing.
func (m *Module) typingSnapshot(c *fiber.Ctx) error {
	roomID, err := roomIDParam(c)
	if err != nil {
		return badRequest(c, err.Error())
	}
	r := m.liveRelay()
	if r == nil {
		return relayUnavailable(c)
	}
	users := r.TypingSnapshot(roomID)
	if users == nil {
		users = []string{}
	}
	return c.JSON(TypingResponse{RoomID: roomID, Users: users})
}

func roomIDParam(c *fiber.Ctx) (int64, error) {
	id, err := strconv.ParseInt(c.Params("id"), 10, 64)
	if err != nil || id <= 0 {
		return 0, errors.New("room id must be a positive integer")
	}
	return id, nil
}

func badRequest(c *fiber.Ctx, message string) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		Error:   "validation_error",
		Message: message,
	})
}

func relayUnavailable(c *fiber.Ctx) error {
	return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
		Error:   "unavailable",
		Message: "Relay not started",
	})
}

// writeError maps a chat error onto an HTTP status.
func writeError(c *fiber.Ctx, err error) error {
	switch {
	case errors.Is(err, domain.ErrRoomNotFound):
		return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
			Error:   "not_found",
			Message: "Room not found",
		})
	case errors.Is(err, domain.ErrInvalidOperation):
		return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
			Error:   "invalid_operation",
			Message: err.Error(),
		})
	default:
		return c.Status(fiber.StatusInternalServerError).JSON(ErrorResponse{
			Error:   "internal_error",
			Message: "Storage unavailable",
		})
	}
}
