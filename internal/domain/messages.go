package domain

// Event kinds carried in the "kind" field of server -> client payloads.
const (
	KindJoin  = "join"
	KindLeave = "leave"
	KindChat  = "chat"
)

// Legacy system notices. Servers that do not send a kind mark
// membership changes only through these exact content strings.
const (
	JoinNotice  = "A new user has joined the room"
	LeaveNotice = "A user left the chat"
)

// InboundPayload is the JSON object the server sends for every event.
type InboundPayload struct {
	Kind     string `json:"kind,omitempty"`
	Content  string `json:"content"`
	Username string `json:"username"`
	SenderID string `json:"senderId,omitempty"`
	RoomID   string `json:"roomId,omitempty"`
}

// MemberEntry is one element of the membership query response.
type MemberEntry struct {
	ID       string `json:"id,omitempty"`
	Username string `json:"username"`
}

// Provenance tells whether a message was authored by the current user.
type Provenance int

const (
	ProvenanceReceived Provenance = iota
	ProvenanceSelf
)

func (p Provenance) String() string {
	if p == ProvenanceSelf {
		return "self"
	}
	return "received"
}

// Message is a chat message as held by the session. Provenance is
// fixed when the message is appended.
type Message struct {
	Content    string
	SenderID   string
	Username   string
	RoomID     string
	Provenance Provenance
}

// IsSelf reports whether the current user authored the message.
func (m Message) IsSelf() bool {
	return m.Provenance == ProvenanceSelf
}
