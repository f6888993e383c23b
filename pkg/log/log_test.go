package log

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	cases := map[string]zerolog.Level{
		"debug":    zerolog.DebugLevel,
		" WARN ":   zerolog.WarnLevel,
		"warning":  zerolog.WarnLevel,
		"error":    zerolog.ErrorLevel,
		"off":      zerolog.Disabled,
		"":         zerolog.InfoLevel,
		"nonsense": zerolog.InfoLevel,
	}
	for in, want := range cases {
		require.Equal(t, want, parseLevel(in), in)
	}
}

func TestNew_ServiceField(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{Level: "info", ServiceName: "chat-client"}, &buf)
	logger.Info().Msg("hello")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "chat-client", entry[FieldService])
	require.Equal(t, "hello", entry["message"])
}

func TestWithRoom(t *testing.T) {
	var buf bytes.Buffer
	ctx := WithLogger(context.Background(), New(Config{}, &buf))
	ctx = WithRoom(ctx, "r1")

	l := Ctx(ctx)
	l.Info().Msg("joined")

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "r1", entry[FieldRoomID])
}

func TestHTTPMiddleware_PropagatesRequestID(t *testing.T) {
	var buf bytes.Buffer
	logger := New(Config{}, &buf)

	var seen bool
	h := HTTPMiddleware(logger)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		l := Ctx(r.Context())
		l.Debug().Msg("inside")
		seen = true
		w.WriteHeader(http.StatusTeapot)
	}))

	req := httptest.NewRequest(http.MethodGet, "/ws/getClients/r1", nil)
	req.Header.Set(HeaderRequestID, "req-42")
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)

	require.True(t, seen)
	require.Equal(t, "req-42", rec.Header().Get(HeaderRequestID))

	var entry map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &entry))
	require.Equal(t, "req-42", entry[FieldRequestID])
	require.EqualValues(t, http.StatusTeapot, entry[FieldStatus])
	require.Equal(t, "/ws/getClients/r1", entry[FieldPath])
}

func TestHTTPMiddleware_GeneratesRequestID(t *testing.T) {
	h := HTTPMiddleware(zerolog.Nop())(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/health", nil))
	require.NotEmpty(t, rec.Header().Get(HeaderRequestID))
}

func TestClientIP(t *testing.T) {
	req := httptest.NewRequest(http.MethodGet, "/", nil)
	req.RemoteAddr = "10.0.0.9:5555"
	require.Equal(t, "10.0.0.9", clientIP(req))

	req.Header.Set("X-Real-IP", "10.0.0.2")
	require.Equal(t, "10.0.0.2", clientIP(req))

	req.Header.Set("X-Forwarded-For", "10.0.0.1, 10.0.0.3")
	require.Equal(t, "10.0.0.1", clientIP(req))
}
