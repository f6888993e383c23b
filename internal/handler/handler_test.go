package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/weiawesome/wes-io-live/chat-client/internal/channel"
	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-client/internal/hub"
	"github.com/weiawesome/wes-io-live/chat-client/internal/service"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/jwt"
	"github.com/weiawesome/wes-io-live/chat-client/pkg/response"
)

type testServer struct {
	*httptest.Server
	hub     *hub.Hub
	tokens  *jwt.Manager
	stopHub func()
}

func newTestServer(t *testing.T) *testServer {
	t.Helper()
	h := hub.NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	go h.Run(ctx)

	tokens, err := jwt.NewManager("test-secret", time.Hour, "test")
	require.NoError(t, err)

	users := service.NewUserService(bcrypt.MinCost)
	srv := httptest.NewServer(NewRouter(h, users, tokens, channel.DefaultConfig(), zerolog.Nop()))
	t.Cleanup(func() {
		cancel()
		<-h.Done()
		srv.Close()
	})
	stop := func() {
		cancel()
		<-h.Done()
	}
	return &testServer{Server: srv, hub: h, tokens: tokens, stopHub: stop}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) *http.Response {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	t.Cleanup(func() { resp.Body.Close() })
	return resp
}

func decode[T any](t *testing.T, resp *http.Response) T {
	t.Helper()
	var v T
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&v))
	return v
}

func (s *testServer) wsURL(path string) string {
	return "ws" + strings.TrimPrefix(s.URL, "http") + path
}

func TestRooms(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/ws/createRoom", "", CreateRoomRequest{ID: "r1", Name: "Lobby"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Equal(t, hub.RoomInfo{ID: "r1", Name: "Lobby"}, decode[hub.RoomInfo](t, resp))

	resp = srv.do(t, http.MethodPost, "/ws/createRoom", "", CreateRoomRequest{ID: "r1"})
	require.Equal(t, http.StatusConflict, resp.StatusCode)
	errResp := decode[response.Response](t, resp)
	require.False(t, errResp.Success)
	require.Equal(t, "CONFLICT", errResp.Error.Code)

	resp = srv.do(t, http.MethodPost, "/ws/createRoom", "", CreateRoomRequest{})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/ws/getRooms", "", nil)
	require.Equal(t, []hub.RoomInfo{{ID: "r1", Name: "Lobby"}}, decode[[]hub.RoomInfo](t, resp))

	resp = srv.do(t, http.MethodGet, "/ws/getClients/nope", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	require.Empty(t, decode[[]domain.MemberEntry](t, resp))

	resp = srv.do(t, http.MethodGet, "/health", "", nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestJoinRoom_Rejected(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.hub.CreateRoom("r1", "")
	require.NoError(t, err)

	_, err = channel.Dial(context.Background(), srv.wsURL("/ws/joinRoom/missing?username=a"), nil, channel.DefaultConfig())
	require.ErrorContains(t, err, "404")

	_, err = channel.Dial(context.Background(), srv.wsURL("/ws/joinRoom/r1"), nil, channel.DefaultConfig())
	require.ErrorContains(t, err, "400")

	header := http.Header{"Authorization": []string{"Bearer garbage"}}
	_, err = channel.Dial(context.Background(), srv.wsURL("/ws/joinRoom/r1?username=a"), header, channel.DefaultConfig())
	require.ErrorContains(t, err, "401")
}

func TestJoinRoom_TokenIdentity(t *testing.T) {
	srv := newTestServer(t)
	_, err := srv.hub.CreateRoom("r1", "")
	require.NoError(t, err)

	token, err := srv.tokens.GenerateToken("u7", "grace")
	require.NoError(t, err)

	header := http.Header{"Authorization": []string{"Bearer " + token}}
	conn, err := channel.Dial(context.Background(), srv.wsURL("/ws/joinRoom/r1?userId=spoof&username=spoof"), header, channel.DefaultConfig())
	require.NoError(t, err)
	defer conn.Close()
	conn.Subscribe(func([]byte) {})

	require.Eventually(t, func() bool {
		resp := srv.do(t, http.MethodGet, "/ws/getClients/r1", "", nil)
		members := decode[[]domain.MemberEntry](t, resp)
		return len(members) == 1 && members[0] == domain.MemberEntry{ID: "u7", Username: "grace"}
	}, 2*time.Second, 10*time.Millisecond)
}

func TestLoginLogout(t *testing.T) {
	srv := newTestServer(t)

	resp := srv.do(t, http.MethodPost, "/login", "", LoginRequest{Username: "  ", Password: "pw"})
	require.Equal(t, http.StatusBadRequest, resp.StatusCode)

	resp = srv.do(t, http.MethodPost, "/login", "", LoginRequest{Username: "alice", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Success bool          `json:"success"`
		Data    LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	require.True(t, body.Success)
	require.Equal(t, "alice", body.Data.Username)
	require.NotEmpty(t, body.Data.ID)

	claims, err := srv.tokens.ValidateToken(body.Data.AccessToken)
	require.NoError(t, err)
	require.Equal(t, body.Data.ID, claims.UserID)

	resp = srv.do(t, http.MethodGet, "/logout", "", nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/logout", body.Data.AccessToken, nil)
	require.Equal(t, http.StatusOK, resp.StatusCode)

	resp = srv.do(t, http.MethodGet, "/logout", body.Data.AccessToken, nil)
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	// Same account, new session.
	resp = srv.do(t, http.MethodPost, "/login", "", LoginRequest{Username: "alice", Password: "pw"})
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var again struct {
		Data LoginResponse `json:"data"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&again))
	require.Equal(t, body.Data.ID, again.Data.ID)
	_, err = srv.tokens.ValidateToken(again.Data.AccessToken)
	require.NoError(t, err)

	resp = srv.do(t, http.MethodPost, "/login", "", LoginRequest{Username: "alice", Password: "nope"})
	require.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}
