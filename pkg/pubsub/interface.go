package pubsub

import (
	"context"
	"encoding/json"
	"time"
)

// Event represents a message published to the event bus.
type Event struct {
	Type      string          `json:"type"`
	RoomID    string          `json:"room_id"`
	Origin    string          `json:"origin,omitempty"`
	Payload   json.RawMessage `json:"payload"`
	Timestamp time.Time       `json:"timestamp"`
}

// NewRoomEvent wraps an already encoded room frame.
func NewRoomEvent(roomID, origin string, frame []byte) *Event {
	return &Event{
		Type:      EventRoomMessage,
		RoomID:    roomID,
		Origin:    origin,
		Payload:   json.RawMessage(frame),
		Timestamp: time.Now(),
	}
}

// Publisher publishes events to the event bus.
type Publisher interface {
	Publish(ctx context.Context, channel string, event *Event) error
}

// Subscriber subscribes to events from the event bus. The returned
// channel is closed once ctx is done or the bus is closed.
type Subscriber interface {
	SubscribePattern(ctx context.Context, pattern string) (<-chan *Event, error)
}

// PubSub combines Publisher and Subscriber interfaces.
type PubSub interface {
	Publisher
	Subscriber
	Close() error
}
