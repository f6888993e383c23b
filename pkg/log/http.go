package log

import (
	"bufio"
	"errors"
	"net"
	"net/http"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// HeaderRequestID is the header carrying the request id in both
// directions.
const HeaderRequestID = "X-Request-ID"

// NewRequestID returns a fresh request id.
func NewRequestID() string {
	return uuid.New().String()
}

// HTTPMiddleware returns a net/http middleware compatible with
// gorilla/mux (router.Use) and plain http.Handler wrapping.
func HTTPMiddleware(logger zerolog.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()

			reqID := r.Header.Get(HeaderRequestID)
			if reqID == "" {
				reqID = NewRequestID()
			}

			child := logger.With().
				Str(FieldRequestID, reqID).
				Str(FieldMethod, r.Method).
				Str(FieldPath, r.URL.Path).
				Str(FieldClientIP, clientIP(r)).
				Logger()

			w.Header().Set(HeaderRequestID, reqID)
			r = r.WithContext(WithLogger(r.Context(), child))

			rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
			next.ServeHTTP(rec, r)

			child.Info().
				Int(FieldStatus, rec.status).
				Float64(FieldLatency, float64(time.Since(start).Milliseconds())).
				Msg("request completed")
		})
	}
}

// statusRecorder wraps http.ResponseWriter to capture the status code.
// It must stay hijackable so websocket upgrades pass through.
type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(code int) {
	r.status = code
	r.ResponseWriter.WriteHeader(code)
}

func (r *statusRecorder) Hijack() (net.Conn, *bufio.ReadWriter, error) {
	h, ok := r.ResponseWriter.(http.Hijacker)
	if !ok {
		return nil, nil, errors.New("response writer does not implement http.Hijacker")
	}
	r.status = http.StatusSwitchingProtocols
	return h.Hijack()
}

func (r *statusRecorder) Flush() {
	if f, ok := r.ResponseWriter.(http.Flusher); ok {
		f.Flush()
	}
}

// clientIP extracts the client IP from X-Forwarded-For, X-Real-IP, or RemoteAddr.
func clientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		if ip := strings.TrimSpace(strings.SplitN(xff, ",", 2)[0]); ip != "" {
			return ip
		}
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return strings.TrimSpace(xri)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
