package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/weiawesome/wes-io-live/chat-client/internal/domain"
)

var (
	usernameStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	selfBubble    = lipgloss.NewStyle().
			Foreground(lipgloss.Color("231")).
			Background(lipgloss.Color("33")).
			Padding(0, 1)
	receivedBubble = lipgloss.NewStyle().
			Foreground(lipgloss.Color("236")).
			Background(lipgloss.Color("252")).
			Padding(0, 1)
	headerStyle  = lipgloss.NewStyle().Bold(true).Padding(0, 1)
	membersStyle = lipgloss.NewStyle().
			Border(lipgloss.NormalBorder(), false, false, false, true).
			BorderForeground(lipgloss.Color("240")).
			PaddingLeft(1)
	composerStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("33"))
	helpStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	errorStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("203"))
)

// bubbleShare is the widest a message bubble may get, as a fraction of
// the pane.
const bubbleShare = 0.7

// RenderMessages lays the messages out top to bottom in arrival order.
// Messages from the current user sit on the right.
func RenderMessages(messages []domain.Message, width int) string {
	if width <= 0 {
		return ""
	}
	maxBubble := int(float64(width) * bubbleShare)
	if maxBubble < 4 {
		maxBubble = width
	}

	blocks := make([]string, 0, len(messages))
	for _, message := range messages {
		blocks = append(blocks, renderMessage(message, width, maxBubble))
	}
	return strings.Join(blocks, "\n\n")
}

func renderMessage(message domain.Message, width, maxBubble int) string {
	style, align := receivedBubble, lipgloss.Left
	if message.IsSelf() {
		style, align = selfBubble, lipgloss.Right
	}

	bubbleWidth := lipgloss.Width(message.Content) + style.GetHorizontalPadding()
	if bubbleWidth > maxBubble {
		bubbleWidth = maxBubble
	}
	bubble := style.Width(bubbleWidth).Render(message.Content)
	name := usernameStyle.Render(message.Username)

	block := lipgloss.JoinVertical(align, name, bubble)
	return lipgloss.PlaceHorizontal(width, align, block)
}

// RenderMembers lists the room members, one per line.
func RenderMembers(members []string, width int) string {
	lines := make([]string, 0, len(members)+1)
	lines = append(lines, headerStyle.Render(fmt.Sprintf("Members (%d)", len(members))))
	for _, member := range members {
		lines = append(lines, truncate(member, width-1))
	}
	return strings.Join(lines, "\n")
}

func truncate(s string, width int) string {
	if width <= 0 || lipgloss.Width(s) <= width {
		return s
	}
	runes := []rune(s)
	for len(runes) > 0 && lipgloss.Width(string(runes))+1 > width {
		runes = runes[:len(runes)-1]
	}
	return string(runes) + "…"
}
