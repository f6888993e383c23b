package channel

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"
)

var testUpgrader = websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }}

// echoServer writes every frame back to its sender.
func echoServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		for {
			mt, msg, err := ws.ReadMessage()
			if err != nil {
				return
			}
			if err := ws.WriteMessage(mt, msg); err != nil {
				return
			}
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func wsURL(srv *httptest.Server, path string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + path
}

func testConfig() Config {
	cfg := DefaultConfig()
	cfg.WriteWait = time.Second
	return cfg
}

func TestRoomIDFromURL(t *testing.T) {
	cases := map[string]string{
		"ws://localhost:8080/ws/joinRoom/r1?userId=1&username=a": "r1",
		"wss://chat.example/ws/joinRoom/room%20two":              "room two",
		"ws://localhost/rooms/lobby":                             "lobby",
		"ws://localhost/ws/joinRoom/r9/":                         "r9",
	}
	for in, want := range cases {
		got, err := RoomIDFromURL(in)
		require.NoError(t, err, in)
		require.Equal(t, want, got, in)
	}

	_, err := RoomIDFromURL("ws://localhost/")
	require.ErrorIs(t, err, ErrNoRoom)
	_, err = RoomIDFromURL("ws://localhost/ws/joinRoom")
	require.ErrorIs(t, err, ErrNoRoom)
}

func TestJoinURL(t *testing.T) {
	got, err := JoinURL("http://localhost:8080", "r1", "u1", "alice smith")
	require.NoError(t, err)
	require.Equal(t, "ws://localhost:8080/ws/joinRoom/r1?userId=u1&username=alice+smith", got)

	got, err = JoinURL("https://chat.example/api", "r1", "u1", "a")
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(got, "wss://chat.example/api/ws/joinRoom/r1?"))

	roomID, err := RoomIDFromURL(got)
	require.NoError(t, err)
	require.Equal(t, "r1", roomID)

	_, err = JoinURL("ftp://x", "r1", "u1", "a")
	require.Error(t, err)
	_, err = JoinURL("http://x", "", "u1", "a")
	require.ErrorIs(t, err, ErrNoRoom)
}

func TestConn_SendAndReceive(t *testing.T) {
	srv := echoServer(t)
	c, err := Dial(context.Background(), wsURL(srv, "/ws/joinRoom/r1"), nil, testConfig())
	require.NoError(t, err)
	defer c.Close()
	require.Equal(t, "r1", c.RoomID())

	got := make(chan string, 4)
	unsubscribe := c.Subscribe(func(b []byte) { got <- string(b) })
	defer unsubscribe()

	require.NoError(t, c.Send("one"))
	require.NoError(t, c.Send("two"))

	require.Equal(t, "one", receive(t, got))
	require.Equal(t, "two", receive(t, got))
}

func TestConn_SubscribeReplacesHandler(t *testing.T) {
	srv := echoServer(t)
	c, err := Dial(context.Background(), wsURL(srv, "/ws/joinRoom/r1"), nil, testConfig())
	require.NoError(t, err)
	defer c.Close()

	first := make(chan string, 4)
	second := make(chan string, 4)
	unsubscribeFirst := c.Subscribe(func(b []byte) { first <- string(b) })
	c.Subscribe(func(b []byte) { second <- string(b) })

	// A stale unsubscribe must not remove the newer handler.
	unsubscribeFirst()

	require.NoError(t, c.Send("hello"))
	require.Equal(t, "hello", receive(t, second))
	require.Empty(t, first)
}

func TestConn_DoneWhenServerCloses(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		ws.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseGoingAway, "bye"))
		ws.Close()
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv, "/ws/joinRoom/r1"), nil, testConfig())
	require.NoError(t, err)
	c.Subscribe(func([]byte) {})

	select {
	case <-c.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("connection never reported done")
	}
	require.Error(t, c.Err())
	require.ErrorIs(t, c.Send("late"), ErrClosed)
}

func TestConn_FramesWaitForFirstSubscriber(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ws, err := testUpgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer ws.Close()
		ws.WriteMessage(websocket.TextMessage, []byte("early"))
		for {
			if _, _, err := ws.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer srv.Close()

	c, err := Dial(context.Background(), wsURL(srv, "/ws/joinRoom/r1"), nil, testConfig())
	require.NoError(t, err)
	defer c.Close()

	time.Sleep(50 * time.Millisecond)
	got := make(chan string, 1)
	c.Subscribe(func(b []byte) { got <- string(b) })
	require.Equal(t, "early", receive(t, got))
}

func TestConn_CloseIsClean(t *testing.T) {
	srv := echoServer(t)
	c, err := Dial(context.Background(), wsURL(srv, "/ws/joinRoom/r1"), nil, testConfig())
	require.NoError(t, err)

	require.NoError(t, c.Close())
	<-c.Done()
	require.NoError(t, c.Err())
	require.ErrorIs(t, c.Send("x"), ErrClosed)
	require.NoError(t, c.Close())
}

func TestDial_HandshakeRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "no such room", http.StatusNotFound)
	}))
	defer srv.Close()

	_, err := Dial(context.Background(), wsURL(srv, "/ws/joinRoom/r1"), nil, testConfig())
	require.Error(t, err)
	require.Contains(t, err.Error(), "404")
}

func receive(t *testing.T, ch <-chan string) string {
	t.Helper()
	select {
	case s := <-ch:
		return s
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for frame")
		return ""
	}
}
