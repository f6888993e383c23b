package ui

import (
	"context"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
	"github.com/weiawesome/wes-io-live/chat-client/internal/session"
)

// Session is what the chat view needs from the chat core.
type Session interface {
	Send(ctx context.Context, text string) error
	Updates() <-chan session.Update
}

const (
	sendTimeout    = 5 * time.Second
	membersWidth   = 22
	minSplitWidth  = 60
	composerHeight = 3
)

// updateMsg carries a settled session state into the program.
type updateMsg struct {
	update session.Update
}

// sentMsg reports the outcome of one send.
type sentMsg struct {
	text string
	err  error
}

// Model is the chat view. It only renders session snapshots and turns
// key presses into send requests.
type Model struct {
	session  Session
	identity domain.Identity
	keys     KeyMap

	viewport viewport.Model
	composer textarea.Model

	snapshot session.Snapshot
	err      error
	width    int
	height   int
	ready    bool

	exitReason string
}

// NewModel creates the chat view for identity.
func NewModel(s Session, identity domain.Identity) Model {
	composer := textarea.New()
	composer.Placeholder = "Type your message here"
	composer.ShowLineNumbers = false
	composer.CharLimit = 0
	composer.SetHeight(composerHeight)
	composer.KeyMap.InsertNewline = DefaultKeyMap.Newline
	composer.Focus()

	return Model{
		session:  s,
		identity: identity,
		keys:     DefaultKeyMap,
		viewport: viewport.New(0, 0),
		composer: composer,
	}
}

// ExitReason explains why the view closed itself; empty when the user
// quit.
func (model Model) ExitReason() string {
	return model.exitReason
}

// Snapshot returns the state last rendered.
func (model Model) Snapshot() session.Snapshot {
	return model.snapshot
}

func (model Model) Init() tea.Cmd {
	return tea.Batch(textarea.Blink, listenForUpdate(model.session.Updates()))
}

// listenForUpdate blocks until the session publishes, then delivers the
// update as an updateMsg.
func listenForUpdate(updates <-chan session.Update) tea.Cmd {
	return func() tea.Msg {
		update, ok := <-updates
		if !ok {
			return nil
		}
		return updateMsg{update: update}
	}
}

func sendCmd(s Session, text string) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), sendTimeout)
		defer cancel()
		return sentMsg{text: text, err: s.Send(ctx, text)}
	}
}

func (model Model) Update(message tea.Msg) (tea.Model, tea.Cmd) {
	switch message := message.(type) {
	case tea.WindowSizeMsg:
		model.width, model.height = message.Width, message.Height
		model.ready = true
		model.layout()
		return model, nil

	case updateMsg:
		model.snapshot = message.update.Snapshot
		if message.update.Redirect {
			model.exitReason = "no connection to the room"
			return model, tea.Quit
		}
		model.refreshMessages()
		return model, listenForUpdate(model.session.Updates())

	case sentMsg:
		switch {
		case message.err == nil:
			// Keep anything typed while the send was in flight.
			if model.composer.Value() == message.text {
				model.composer.Reset()
			}
			model.err = nil
		case session.IsSilent(message.err):
		default:
			// The composer keeps its text so the user can retry.
			model.err = message.err
		}
		return model, nil

	case tea.KeyMsg:
		switch {
		case key.Matches(message, model.keys.Quit):
			return model, tea.Quit
		case key.Matches(message, model.keys.Send):
			return model, sendCmd(model.session, model.composer.Value())
		case key.Matches(message, model.keys.ScrollUp), key.Matches(message, model.keys.ScrollDown):
			var cmd tea.Cmd
			model.viewport, cmd = model.viewport.Update(message)
			return model, cmd
		}
	}

	var cmd tea.Cmd
	model.composer, cmd = model.composer.Update(message)
	return model, cmd
}

func (model *Model) layout() {
	chatWidth := model.width
	if model.showMembers() {
		chatWidth -= membersWidth
	}
	// Header line, composer with its border, help line.
	chatHeight := model.height - 1 - (composerHeight + 2) - 1
	if chatHeight < 1 {
		chatHeight = 1
	}
	model.viewport.Width = chatWidth
	model.viewport.Height = chatHeight
	model.composer.SetWidth(model.width - 2)
	model.refreshMessages()
}

// refreshMessages re-renders the transcript and keeps the newest
// message in view.
func (model *Model) refreshMessages() {
	model.viewport.SetContent(RenderMessages(model.snapshot.Messages, model.viewport.Width))
	model.viewport.GotoBottom()
}

func (model Model) showMembers() bool {
	return model.width >= minSplitWidth
}

func (model Model) View() string {
	if !model.ready {
		return "Connecting..."
	}

	status := model.snapshot.Status.String()
	header := headerStyle.Render("#" + model.snapshot.RoomID + " · " + model.identity.Username + " · " + status)

	body := model.viewport.View()
	if model.showMembers() {
		members := membersStyle.
			Width(membersWidth - 1).
			Height(model.viewport.Height).
			Render(RenderMembers(model.snapshot.Members, membersWidth-2))
		body = lipgloss.JoinHorizontal(lipgloss.Top, body, members)
	}

	footer := helpStyle.Render(strings.Join([]string{
		model.keys.Send.Help().Key + " " + model.keys.Send.Help().Desc,
		model.keys.Newline.Help().Key + " " + model.keys.Newline.Help().Desc,
		model.keys.Quit.Help().Key + " " + model.keys.Quit.Help().Desc,
	}, " • "))
	if model.err != nil {
		footer = errorStyle.Render(model.err.Error())
	}

	return lipgloss.JoinVertical(lipgloss.Left,
		header,
		body,
		composerStyle.Render(model.composer.View()),
		footer,
	)
}
