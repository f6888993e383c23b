package log

const (
	// Request
	FieldRequestID = "request_id"
	FieldMethod    = "method"
	FieldPath      = "path"
	FieldStatus    = "status"
	FieldLatency   = "latency_ms"
	FieldClientIP  = "client_ip"

	// Actor
	FieldUserID   = "user_id"
	FieldUsername = "username"

	// Service
	FieldService = "service"

	// Chat
	FieldRoomID    = "room_id"
	FieldSenderID  = "sender_id"
	FieldClientID  = "client_id"
	FieldEventKind = "event_kind"
	FieldStatusTo  = "status_to"
)
