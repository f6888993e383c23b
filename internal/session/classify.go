package session

import (
	"bytes"
	"encoding/json"
	"fmt"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
)

// EventKind is the classification of one inbound payload.
type EventKind int

const (
	EventChat EventKind = iota
	EventJoin
	EventLeave
)

func (k EventKind) String() string {
	switch k {
	case EventJoin:
		return domain.KindJoin
	case EventLeave:
		return domain.KindLeave
	default:
		return domain.KindChat
	}
}

// Event is a classified inbound payload.
type Event struct {
	Kind    EventKind
	Payload domain.InboundPayload
}

// Decode parses a raw frame. Anything but a JSON object is rejected
// with ErrMalformedPayload.
func Decode(raw []byte) (domain.InboundPayload, error) {
	var p domain.InboundPayload
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '{' {
		return p, fmt.Errorf("%w: not a JSON object", ErrMalformedPayload)
	}
	if err := json.Unmarshal(trimmed, &p); err != nil {
		return p, fmt.Errorf("%w: %v", ErrMalformedPayload, err)
	}
	return p, nil
}

// Classify sorts a payload into exactly one kind. An explicit kind
// wins; otherwise the legacy notice strings are matched exactly, and
// everything else is chat. A chat message whose text is exactly a
// notice string and that carries no kind is read as the notice.
func Classify(p domain.InboundPayload) Event {
	switch p.Kind {
	case domain.KindJoin:
		return Event{Kind: EventJoin, Payload: p}
	case domain.KindLeave:
		return Event{Kind: EventLeave, Payload: p}
	case domain.KindChat:
		return Event{Kind: EventChat, Payload: p}
	}

	switch p.Content {
	case domain.JoinNotice:
		return Event{Kind: EventJoin, Payload: p}
	case domain.LeaveNotice:
		return Event{Kind: EventLeave, Payload: p}
	default:
		return Event{Kind: EventChat, Payload: p}
	}
}

// NewMessage builds the message for a chat payload, fixing its
// provenance against the identity given.
func NewMessage(p domain.InboundPayload, id domain.Identity) domain.Message {
	return domain.Message{
		Content:    p.Content,
		SenderID:   p.SenderID,
		Username:   p.Username,
		RoomID:     p.RoomID,
		Provenance: id.ProvenanceOf(p.SenderID),
	}
}
