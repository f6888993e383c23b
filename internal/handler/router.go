package handler

import (
	"net/http"

	"github.com/gorilla/mux"
	"github.com/rs/zerolog"

	"github.com/weiawesome/wes-io-live/chat-client/internal/channel"
	"github.com/weiawesome/wes-io-live/chat-client/internal/hub"
	"github.com/weiawesome/wes-io-live/chat-client/internal/service"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/jwt"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/middleware"
)

// NewRouter wires every dev server route.
func NewRouter(h *hub.Hub, users *service.UserService, tokens *jwt.Manager, wsCfg channel.Config, logger zerolog.Logger) http.Handler {
	wsHandler := NewWSHandler(h, wsCfg)
	roomHandler := NewRoomHandler(h)
	authHandler := NewAuthHandler(users, tokens)
	auth := middleware.NewAuthMiddleware(tokens)

	router := mux.NewRouter()

	// WebSocket endpoint
	router.Handle("/ws/joinRoom/{roomId}", auth.OptionalAuth(http.HandlerFunc(wsHandler.JoinRoom))).Methods("GET")

	// HTTP API endpoints
	router.HandleFunc("/ws/createRoom", roomHandler.CreateRoom).Methods("POST")
	router.HandleFunc("/ws/getRooms", roomHandler.GetRooms).Methods("GET")
	router.HandleFunc("/ws/getClients/{roomId}", roomHandler.GetClients).Methods("GET")
	router.HandleFunc("/login", authHandler.Login).Methods("POST")
	router.Handle("/logout", auth.RequireAuth(http.HandlerFunc(authHandler.Logout))).Methods("GET")
	router.HandleFunc("/health", roomHandler.HealthCheck).Methods("GET")

	return log.HTTPMiddleware(logger)(router)
}
