package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	domain "github.com/example/support-chat-relay/domain/chat"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func doRequest(t *testing.T, m *Module, method, target, body string) (int, []byte) {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, target, reader)
	if body != "" {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := m.app.Test(req, -1)
	require.NoError(t, err)
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	return resp.StatusCode, data
}

func decodeError(t *testing.T, data []byte) ErrorResponse {
	t.Helper()
	var e ErrorResponse
	require.NoError(t, json.Unmarshal(data, &e))
	return e
}

func assignedRoom(id int64) *domain.Room {
	return &domain.Room{ID: id, CustomerID: "c1", EmployeeID: "e1", Status: domain.RoomStatusAssigned}
}

func TestGetRoom_ErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		path       string
		chatErr    error
		wantStatus int
		wantError  string
	}{
		{"found", "/api/v1/rooms/1", nil, http.StatusOK, ""},
		{"unknown room", "/api/v1/rooms/404", nil, http.StatusNotFound, "not_found"},
		{"bad id", "/api/v1/rooms/abc", nil, http.StatusBadRequest, "validation_error"},
		{"zero id", "/api/v1/rooms/0", nil, http.StatusBadRequest, "validation_error"},
		{"invalid operation", "/api/v1/rooms/1", fmt.Errorf("room-get: %w", domain.ErrInvalidOperation), http.StatusBadRequest, "invalid_operation"},
		{"storage down", "/api/v1/rooms/1", fmt.Errorf("room-get: %w", domain.ErrStorageUnavailable), http.StatusInternalServerError, "internal_error"},
		{"unknown failure", "/api/v1/rooms/1", errors.New("boom"), http.StatusInternalServerError, "internal_error"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := newMockChat(assignedRoom(1))
			chat.err = tt.chatErr
			m := newTestModule(testConfig(), chat, &mockRelay{})

			status, body := doRequest(t, m, http.MethodGet, tt.path, "")
			assert.Equal(t, tt.wantStatus, status)
			if tt.wantError != "" {
				assert.Equal(t, tt.wantError, decodeError(t, body).Error)
				return
			}

			var room domain.Room
			require.NoError(t, json.Unmarshal(body, &room))
			assert.Equal(t, "c1", room.CustomerID)
		})
	}
}

func TestCreateRoom(t *testing.T) {
	m := newTestModule(testConfig(), newMockChat(), &mockRelay{})

	status, body := doRequest(t, m, http.MethodPost, "/api/v1/rooms", `{"customerId":"c7"}`)
	require.Equal(t, http.StatusCreated, status)

	var room domain.Room
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "c7", room.CustomerID)
	assert.Equal(t, domain.RoomStatusOpen, room.Status)

	status, body = doRequest(t, m, http.MethodPost, "/api/v1/rooms", `{"customerId":"  "}`)
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Contains(t, decodeError(t, body).Message, "customerId")

	status, _ = doRequest(t, m, http.MethodPost, "/api/v1/rooms", `{not json`)
	assert.Equal(t, http.StatusBadRequest, status)
}

func TestSetRoomStatus(t *testing.T) {
	chat := newMockChat(assignedRoom(1))
	m := newTestModule(testConfig(), chat, &mockRelay{})

	status, _ := doRequest(t, m, http.MethodPut, "/api/v1/rooms/1", `{"status":"PAUSED"}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doRequest(t, m, http.MethodPut, "/api/v1/rooms/1", `{"status":"CLOSED"}`)
	require.Equal(t, http.StatusOK, status)
	var room domain.Room
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, domain.RoomStatusClosed, room.Status)

	status, _ = doRequest(t, m, http.MethodPut, "/api/v1/rooms/9", `{"status":"CLOSED"}`)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestAssignRoom(t *testing.T) {
	chat := newMockChat(&domain.Room{ID: 1, CustomerID: "c1", Status: domain.RoomStatusOpen})
	m := newTestModule(testConfig(), chat, &mockRelay{})

	status, _ := doRequest(t, m, http.MethodPut, "/api/v1/rooms/1/assign", `{}`)
	assert.Equal(t, http.StatusBadRequest, status)

	status, body := doRequest(t, m, http.MethodPut, "/api/v1/rooms/1/assign", `{"employeeId":"e5"}`)
	require.Equal(t, http.StatusOK, status)
	var room domain.Room
	require.NoError(t, json.Unmarshal(body, &room))
	assert.Equal(t, "e5", room.EmployeeID)
}

func TestListRooms_Filters(t *testing.T) {
	tests := []struct {
		name        string
		path        string
		wantFilters [2]string
	}{
		{"all", "/api/v1/rooms", [2]string{"", ""}},
		{"by customer", "/api/v1/rooms/customer/c1", [2]string{"c1", ""}},
		{"by employee", "/api/v1/rooms/employee/e1", [2]string{"", "e1"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chat := newMockChat(assignedRoom(1))
			m := newTestModule(testConfig(), chat, &mockRelay{})

			status, body := doRequest(t, m, http.MethodGet, tt.path, "")
			require.Equal(t, http.StatusOK, status)
			assert.Equal(t, tt.wantFilters, chat.filters)

			var resp RoomListResponse
			require.NoError(t, json.Unmarshal(body, &resp))
			assert.Equal(t, 1, resp.Total)
		})
	}
}

func TestListRooms_EmptyIsArray(t *testing.T) {
	m := newTestModule(testConfig(), newMockChat(), &mockRelay{})

	status, body := doRequest(t, m, http.MethodGet, "/api/v1/rooms/customer/nobody", "")
	require.Equal(t, http.StatusOK, status)
	assert.JSONEq(t, `{"rooms":[],"total":0}`, string(body))
}

func TestMessagesAndMarkRead(t *testing.T) {
	chat := newMockChat(assignedRoom(1))
	base := time.Date(2024, 6, 1, 10, 0, 0, 0, time.UTC)
	chat.messages = []*domain.Message{
		{ID: 1, RoomID: 1, SenderID: "c1", Content: "hi", Timestamp: base},
		{ID: 2, RoomID: 1, SenderID: "e1", Content: "hello", Timestamp: base.Add(time.Minute)},
		{ID: 3, RoomID: 2, SenderID: "c2", Content: "elsewhere", Timestamp: base},
	}
	m := newTestModule(testConfig(), chat, &mockRelay{})

	status, body := doRequest(t, m, http.MethodGet, "/api/v1/rooms/1/messages", "")
	require.Equal(t, http.StatusOK, status)
	var list MessageListResponse
	require.NoError(t, json.Unmarshal(body, &list))
	assert.Equal(t, 2, list.Total)

	status, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/1/messages?since=2024-06-01T10:00:30Z", "")
	require.Equal(t, http.StatusOK, status)
	require.NoError(t, json.Unmarshal(body, &list))
	require.Equal(t, 1, list.Total)
	assert.Equal(t, "hello", list.Messages[0].Content)

	status, _ = doRequest(t, m, http.MethodGet, "/api/v1/rooms/1/messages?since=yesterday", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, _ = doRequest(t, m, http.MethodPut, "/api/v1/rooms/1/read", "")
	assert.Equal(t, http.StatusBadRequest, status)

	status, body = doRequest(t, m, http.MethodPut, "/api/v1/rooms/1/read?readerId=e1", "")
	require.Equal(t, http.StatusOK, status)
	var read MarkReadResponse
	require.NoError(t, json.Unmarshal(body, &read))
	assert.Equal(t, int64(1), read.Updated)
}

func TestTypingSnapshot(t *testing.T) {
	rl := &mockRelay{typing: map[int64][]string{1: {"c1"}}}
	m := newTestModule(testConfig(), newMockChat(), rl)

	_, body := doRequest(t, m, http.MethodGet, "/api/v1/rooms/1/typing", "")
	assert.JSONEq(t, `{"roomId":1,"users":["c1"]}`, string(body))

	_, body = doRequest(t, m, http.MethodGet, "/api/v1/rooms/2/typing", "")
	assert.JSONEq(t, `{"roomId":2,"users":[]}`, string(body))
}

func TestHealthAndMetrics(t *testing.T) {
	m := newTestModule(testConfig(), newMockChat(), &mockRelay{connections: 3})

	status, body := doRequest(t, m, http.MethodGet, "/health", "")
	require.Equal(t, http.StatusOK, status)
	var health HealthResponse
	require.NoError(t, json.Unmarshal(body, &health))
	assert.Equal(t, "healthy", health.Status)
	assert.Equal(t, float64(3), health.Details["connections"])

	status, body = doRequest(t, m, http.MethodGet, "/metrics", "")
	require.Equal(t, http.StatusOK, status)
	assert.Contains(t, string(body), "chatrelay_connections_active")
}

func TestUnknownRoute(t *testing.T) {
	m := newTestModule(testConfig(), newMockChat(), &mockRelay{})

	status, body := doRequest(t, m, http.MethodGet, "/nope", "")
	assert.Equal(t, http.StatusNotFound, status)
	assert.Equal(t, "server_error", decodeError(t, body).Error)
}
