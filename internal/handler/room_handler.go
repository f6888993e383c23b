package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/weiawesome/wes-io-live/chat-client/internal/hub"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/response"
)

// RoomHandler serves room and membership queries.
type RoomHandler struct {
	hub *hub.Hub
}

func NewRoomHandler(h *hub.Hub) *RoomHandler {
	return &RoomHandler{hub: h}
}

// CreateRoomRequest is the body of POST /ws/createRoom.
type CreateRoomRequest struct {
	ID   string `json:"id"`
	Name string `json:"name"`
}

// CreateRoom handles POST /ws/createRoom
func (h *RoomHandler) CreateRoom(w http.ResponseWriter, r *http.Request) {
	var req CreateRoomRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		response.BadRequest(w, r, "invalid request body")
		return
	}

	room, err := h.hub.CreateRoom(req.ID, req.Name)
	switch {
	case errors.Is(err, hub.ErrInvalidRoom):
		response.BadRequest(w, r, err.Error())
	case errors.Is(err, hub.ErrRoomExists):
		response.Conflict(w, r, err.Error())
	case err != nil:
		response.InternalError(w, r, "failed to create room")
	default:
		response.JSON(w, r, http.StatusOK, room)
	}
}

// GetRooms handles GET /ws/getRooms
func (h *RoomHandler) GetRooms(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, h.hub.Rooms())
}

// GetClients handles GET /ws/getClients/{roomId}
func (h *RoomHandler) GetClients(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	response.JSON(w, r, http.StatusOK, h.hub.Members(roomID))
}

// HealthCheck handles GET /health
func (h *RoomHandler) HealthCheck(w http.ResponseWriter, r *http.Request) {
	response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
}
