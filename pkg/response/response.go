package response

import (
	"encoding/json"
	"net/http"

	"github.com/weiawesome/wes-io-live/chat-client/pkg/log"
)

// Response represents a standard API response.
type Response struct {
	Success bool        `json:"success"`
	Data    interface{} `json:"data,omitempty"`
	Error   *ErrorInfo  `json:"error,omitempty"`
}

// ErrorInfo contains error details.
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// JSON writes v as the whole body. Routes whose clients expect a bare
// payload (arrays, plain objects) use this instead of the envelope.
func JSON(w http.ResponseWriter, r *http.Request, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		l := log.Ctx(r.Context())
		l.Warn().Err(err).Msg("failed to write response")
	}
}

// Success sends a successful response.
func Success(w http.ResponseWriter, r *http.Request, data interface{}) {
	JSON(w, r, http.StatusOK, Response{
		Success: true,
		Data:    data,
	})
}

// Error sends an error response.
func Error(w http.ResponseWriter, r *http.Request, statusCode int, code, message string) {
	JSON(w, r, statusCode, Response{
		Success: false,
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	})
}

// BadRequest sends a 400 error response.
func BadRequest(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusBadRequest, "BAD_REQUEST", message)
}

// Unauthorized sends a 401 error response.
func Unauthorized(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusUnauthorized, "UNAUTHORIZED", message)
}

// NotFound sends a 404 error response.
func NotFound(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusNotFound, "NOT_FOUND", message)
}

// Conflict sends a 409 error response.
func Conflict(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusConflict, "CONFLICT", message)
}

// InternalError sends a 500 error response.
func InternalError(w http.ResponseWriter, r *http.Request, message string) {
	Error(w, r, http.StatusInternalServerError, "INTERNAL_ERROR", message)
}
