package handler

import (
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/weiawesome/wes-io-live/chat-client/internal/channel"
	"github.com/weiawesome/wes-io-live/chat-client/internal/hub"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/middleware"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/response"
)

// WSHandler upgrades room join requests to websocket clients.
type WSHandler struct {
	hub      *hub.Hub
	wsCfg    channel.Config
	upgrader websocket.Upgrader
}

func NewWSHandler(h *hub.Hub, wsCfg channel.Config) *WSHandler {
	return &WSHandler{
		hub:   h,
		wsCfg: wsCfg,
		upgrader: websocket.Upgrader{
			ReadBufferSize:   1024,
			WriteBufferSize:  1024,
			HandshakeTimeout: wsCfg.HandshakeTimeout,
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
		},
	}
}

// JoinRoom handles GET /ws/joinRoom/{roomId}?userId=&username=
// A bearer token, when present, overrides the query identity.
func (h *WSHandler) JoinRoom(w http.ResponseWriter, r *http.Request) {
	roomID := mux.Vars(r)["roomId"]
	if !h.hub.HasRoom(roomID) {
		response.NotFound(w, r, "room not found")
		return
	}

	userID := r.URL.Query().Get("userId")
	username := r.URL.Query().Get("username")
	if claims, ok := middleware.GetClaims(r.Context()); ok {
		userID, username = claims.UserID, claims.Username
	}
	if username == "" {
		response.BadRequest(w, r, "username is required")
		return
	}
	if userID == "" {
		userID = uuid.New().String()
	}

	l := log.Ctx(r.Context())
	ws, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		l.Warn().Err(err).Msg("websocket upgrade failed")
		return
	}

	client := hub.NewClient(uuid.New().String(), userID, username, roomID, channel.New(ws, roomID, h.wsCfg))
	l.Debug().
		Str(log.FieldClientID, client.ID).
		Str(log.FieldRoomID, roomID).
		Str(log.FieldUserID, userID).
		Msg("websocket connected")

	go client.Serve(h.hub)
}
