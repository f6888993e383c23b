package ui

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/require"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-client/internal/session"
)

type fakeSession struct {
	updates chan session.Update

	mu      sync.Mutex
	sent    []string
	sendErr error
}

func newFakeSession() *fakeSession {
	return &fakeSession{updates: make(chan session.Update, 1)}
}

func (s *fakeSession) Send(_ context.Context, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if strings.TrimSpace(text) == "" {
		return session.ErrEmptyMessage
	}
	if s.sendErr != nil {
		return s.sendErr
	}
	s.sent = append(s.sent, text)
	return nil
}

func (s *fakeSession) Updates() <-chan session.Update { return s.updates }

var me = domain.Identity{ID: "u1", Username: "alice"}

func sized(t *testing.T, s Session) Model {
	t.Helper()
	next, _ := NewModel(s, me).Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return next.(Model)
}

func step(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()
	next, cmd := m.Update(msg)
	return next.(Model), cmd
}

func typeText(t *testing.T, m Model, text string) Model {
	t.Helper()
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)})
	return m
}

func activeUpdate(msgs ...domain.Message) session.Update {
	return session.Update{Snapshot: session.Snapshot{
		RoomID:   "r1",
		Status:   session.StatusActive,
		Messages: msgs,
		Members:  []string{"alice", "bob"},
	}}
}

func lineWith(t *testing.T, rendered, needle string) string {
	t.Helper()
	for _, line := range strings.Split(rendered, "\n") {
		if strings.Contains(line, needle) {
			return line
		}
	}
	t.Fatalf("%q not found in\n%s", needle, rendered)
	return ""
}

func TestRenderMessages_Alignment(t *testing.T) {
	out := RenderMessages([]domain.Message{
		{Content: "from bob", Username: "bob", Provenance: domain.ProvenanceReceived},
		{Content: "from me", Username: "alice", Provenance: domain.ProvenanceSelf},
	}, 40)

	received := lineWith(t, out, "from bob")
	require.Less(t, strings.Index(received, "from bob"), 3)

	self := lineWith(t, out, "from me")
	require.Greater(t, strings.Index(self, "from me"), 20)

	require.Less(t, strings.Index(out, "from bob"), strings.Index(out, "from me"))
}

func TestRenderMessages_WrapsLongContent(t *testing.T) {
	long := strings.Repeat("word ", 20)
	out := RenderMessages([]domain.Message{{Content: long, Username: "bob"}}, 40)
	for _, line := range strings.Split(out, "\n") {
		require.LessOrEqual(t, len([]rune(line)), 40)
	}
	require.Empty(t, RenderMessages(nil, 40))
	require.Empty(t, RenderMessages([]domain.Message{{Content: "x"}}, 0))
}

func TestRenderMembers(t *testing.T) {
	out := RenderMembers([]string{"alice", "a-very-long-member-name-indeed"}, 12)
	require.Contains(t, out, "Members (2)")
	require.Contains(t, out, "alice")
	require.Contains(t, out, "…")
}

func TestModel_AppliesUpdates(t *testing.T) {
	fs := newFakeSession()
	m := sized(t, fs)

	m, cmd := step(t, m, updateMsg{update: activeUpdate(domain.Message{Content: "hello", Username: "bob"})})
	require.NotNil(t, cmd)
	require.Equal(t, "r1", m.Snapshot().RoomID)

	view := m.View()
	require.Contains(t, view, "hello")
	require.Contains(t, view, "Members (2)")
	require.Contains(t, view, "#r1")
}

func TestModel_ListensForUpdates(t *testing.T) {
	fs := newFakeSession()
	fs.updates <- activeUpdate()
	msg := listenForUpdate(fs.Updates())()
	require.IsType(t, updateMsg{}, msg)

	close(fs.updates)
	require.Nil(t, listenForUpdate(fs.Updates())())
}

func TestModel_RedirectQuits(t *testing.T) {
	m := sized(t, newFakeSession())

	m, cmd := step(t, m, updateMsg{update: session.Update{Redirect: true}})
	require.NotNil(t, cmd)
	require.Equal(t, tea.QuitMsg{}, cmd())
	require.NotEmpty(t, m.ExitReason())
}

func TestModel_EnterSendsAndClears(t *testing.T) {
	fs := newFakeSession()
	m := typeText(t, sized(t, fs), "hello")

	m, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	msg := cmd()
	require.Equal(t, sentMsg{text: "hello"}, msg)
	require.Equal(t, []string{"hello"}, fs.sent)

	m, _ = step(t, m, msg)
	require.Empty(t, m.composer.Value())
}

func TestModel_CtrlSSends(t *testing.T) {
	fs := newFakeSession()
	m := typeText(t, sized(t, fs), "hey")

	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyCtrlS})
	require.NotNil(t, cmd)
	cmd()
	require.Equal(t, []string{"hey"}, fs.sent)
}

func TestModel_AltEnterInsertsNewline(t *testing.T) {
	fs := newFakeSession()
	m := typeText(t, sized(t, fs), "line one")
	m, _ = step(t, m, tea.KeyMsg{Type: tea.KeyEnter, Alt: true})
	m = typeText(t, m, "line two")

	require.Equal(t, "line one\nline two", m.composer.Value())
	require.Empty(t, fs.sent)
}

func TestModel_FailedSendKeepsText(t *testing.T) {
	fs := newFakeSession()
	fs.sendErr = fmt.Errorf("%w: %w", session.ErrTransmit, errors.New("send buffer full"))
	m := typeText(t, sized(t, fs), "retry me")

	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, cmd())

	require.Equal(t, "retry me", m.composer.Value())
	require.Contains(t, m.View(), "send buffer full")
}

func TestModel_BlankSendIsQuiet(t *testing.T) {
	fs := newFakeSession()
	m := sized(t, fs)

	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m, _ = step(t, m, cmd())

	require.Nil(t, m.err)
	require.Empty(t, fs.sent)
}

func TestModel_TypingDuringSendIsKept(t *testing.T) {
	fs := newFakeSession()
	m := typeText(t, sized(t, fs), "first")

	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEnter})
	m = typeText(t, m, " more")
	m, _ = step(t, m, cmd())

	require.Equal(t, "first more", m.composer.Value())
}

func TestModel_Quit(t *testing.T) {
	m := sized(t, newFakeSession())
	_, cmd := step(t, m, tea.KeyMsg{Type: tea.KeyEsc})
	require.Equal(t, tea.QuitMsg{}, cmd())
	require.Empty(t, m.ExitReason())
}

func TestModel_ViewBeforeSize(t *testing.T) {
	m := NewModel(newFakeSession(), me)
	require.Equal(t, "Connecting...", m.View())
}
