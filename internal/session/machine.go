package session

import (
	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
)

// Status is the connection status of a session.
type Status int

const (
	StatusAbsent Status = iota
	StatusActive
)

func (s Status) String() string {
	if s == StatusActive {
		return "active"
	}
	return "absent"
}

// Snapshot is a read-only copy of session state.
type Snapshot struct {
	RoomID   string
	Status   Status
	Messages []domain.Message
	Members  []string
}

// Machine holds session state and applies transitions to it. It is not
// safe for concurrent use; Session serialises every call.
type Machine struct {
	roomID   string
	status   Status
	messages []domain.Message
	members  domain.MemberSet

	// Bootstrap bookkeeping. gen identifies the latest query issued;
	// journal records membership events applied while it is in flight.
	gen     uint64
	pending bool
	journal []Event
}

// NewMachine returns a machine in the absent state.
func NewMachine() *Machine {
	return &Machine{members: domain.NewMemberSet()}
}

// Activate moves to Active for roomID with fresh state and returns the
// generation of the bootstrap query the caller must issue.
func (m *Machine) Activate(roomID string) uint64 {
	m.reset()
	m.roomID = roomID
	m.status = StatusActive
	m.pending = true
	return m.gen
}

// Deactivate moves to Absent and discards messages and members. Any
// bootstrap in flight becomes stale.
func (m *Machine) Deactivate() {
	m.reset()
}

func (m *Machine) reset() {
	m.gen++
	m.roomID = ""
	m.status = StatusAbsent
	m.messages = nil
	m.members = domain.NewMemberSet()
	m.pending = false
	m.journal = nil
}

// Status returns the connection status.
func (m *Machine) Status() Status {
	return m.status
}

// Apply folds one classified event into state. Chat provenance is
// computed against id now and never revisited.
func (m *Machine) Apply(ev Event, id domain.Identity) {
	if m.status != StatusActive {
		return
	}
	switch ev.Kind {
	case EventJoin, EventLeave:
		m.applyMembership(ev)
		if m.pending {
			m.journal = append(m.journal, ev)
		}
	default:
		m.messages = append(m.messages, NewMessage(ev.Payload, id))
	}
}

func (m *Machine) applyMembership(ev Event) {
	if ev.Kind == EventJoin {
		m.members.Add(ev.Payload.Username)
		return
	}
	m.members.Remove(ev.Payload.Username)
}

// ApplyBootstrap installs the result of the query with generation gen.
// The returned set replaces members, then membership events seen since
// the query was issued are replayed on top so they are not lost. A
// stale or unexpected result is ignored and false is returned.
func (m *Machine) ApplyBootstrap(gen uint64, members domain.MemberSet) bool {
	if !m.acceptsBootstrap(gen) {
		return false
	}
	m.members = members.Clone()
	for _, ev := range m.journal {
		m.applyMembership(ev)
	}
	m.pending = false
	m.journal = nil
	return true
}

// FailBootstrap ends the query with generation gen without touching
// members. It reports whether gen was current.
func (m *Machine) FailBootstrap(gen uint64) bool {
	if !m.acceptsBootstrap(gen) {
		return false
	}
	m.pending = false
	m.journal = nil
	return true
}

func (m *Machine) acceptsBootstrap(gen uint64) bool {
	return m.status == StatusActive && m.pending && gen == m.gen
}

// Snapshot copies the current state.
func (m *Machine) Snapshot() Snapshot {
	msgs := make([]domain.Message, len(m.messages))
	copy(msgs, m.messages)
	return Snapshot{
		RoomID:   m.roomID,
		Status:   m.status,
		Messages: msgs,
		Members:  m.members.Sorted(),
	}
}
