package domain

// Identity is the current user as seen by the chat client.
type Identity struct {
	ID       string
	Username string
}

// ProvenanceOf classifies a sender id against this identity. An empty
// sender id never matches, so system events stay "received" even for an
// anonymous identity.
func (i Identity) ProvenanceOf(senderID string) Provenance {
	if senderID != "" && senderID == i.ID {
		return ProvenanceSelf
	}
	return ProvenanceReceived
}
