package main

import (
	"errors"
	"fmt"
	"log"
	"os"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/joho/godotenv"

	"HarborChat/config"
	"HarborChat/models"
	"HarborChat/services"
	"HarborChat/store"
)

// envCredentials reads the bearer token from the environment. A real
// deployment plugs in the platform's session/token provider here; the
// sync layer only cares about the CredentialSource interface.
type envCredentials struct{}

func (envCredentials) Active() (models.SessionCredential, error) {
	token := os.Getenv("HARBOR_TOKEN")
	if token == "" {
		return models.SessionCredential{}, errors.New("HARBOR_TOKEN is not set")
	}
	return models.CredentialFromToken(token)
}

func (envCredentials) Refresh() (models.SessionCredential, error) {
	return models.SessionCredential{}, errors.New("token refresh is not available from the environment")
}

func main() {
	// Load environment variables from .env file
	if err := godotenv.Load(); err != nil {
		log.Println("Error loading .env file, using environment variables")
	}

	cfg := config.Load()
	sync := services.Shared(cfg, envCredentials{})
	if err := sync.Start(); err != nil {
		// Reconnection keeps trying in the background; the UI shows
		// the connection state either way.
		log.Printf("initial connect: %v", err)
	}

	snapshots, cancel := sync.Store().Subscribe()
	defer cancel()

	p := tea.NewProgram(newAppModel(sync), tea.WithAltScreen())
	go func() {
		for snapshot := range snapshots {
			p.Send(snapshotMsg{snapshot})
		}
	}()

	if _, err := p.Run(); err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	sync.Stop()
}

type snapshotMsg struct {
	snapshot store.Snapshot
}

type sendResultMsg struct {
	err error
}

var (
	headerStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205"))
	statusStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	channelStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("39"))
	activeStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("213"))
	badgeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	senderStyle  = lipgloss.NewStyle().Bold(true)
	typingStyle  = lipgloss.NewStyle().Italic(true).Foreground(lipgloss.Color("241"))
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

type appModel struct {
	sync     *services.SyncService
	snapshot store.Snapshot
	viewport viewport.Model
	textarea textarea.Model
	width    int
	height   int
	typing   bool
	lastErr  error
}

func newAppModel(sync *services.SyncService) appModel {
	vp := viewport.New(80, 20)

	ta := textarea.New()
	ta.Placeholder = "Type a message..."
	ta.CharLimit = 2000
	ta.SetHeight(2)
	ta.ShowLineNumbers = false
	ta.Focus()

	return appModel{
		sync:     sync,
		viewport: vp,
		textarea: ta,
		width:    80,
		height:   24,
	}
}

func (m appModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m appModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.viewport.Width = msg.Width - 2
		m.viewport.Height = msg.Height - 8
		m.textarea.SetWidth(msg.Width - 2)
		m.updateViewportContent()
		return m, nil

	case snapshotMsg:
		m.snapshot = msg.snapshot
		m.updateViewportContent()
		m.viewport.GotoBottom()
		return m, nil

	case sendResultMsg:
		m.lastErr = msg.err
		return m, nil

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c":
			return m, tea.Quit
		case "tab":
			return m, m.activateNextChannelCmd()
		case "enter":
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" {
				return m, nil
			}
			m.textarea.Reset()
			if m.typing {
				m.typing = false
				m.sync.StopTyping(m.snapshot.ActiveChannelID)
			}
			return m, m.sendMessageCmd(content)
		default:
			if !m.typing && m.snapshot.ActiveChannelID != "" {
				m.typing = true
				m.sync.StartTyping(m.snapshot.ActiveChannelID)
			}
		}
	}

	var taCmd, vpCmd tea.Cmd
	m.textarea, taCmd = m.textarea.Update(msg)
	m.viewport, vpCmd = m.viewport.Update(msg)
	return m, tea.Batch(taCmd, vpCmd)
}

func (m appModel) sendMessageCmd(content string) tea.Cmd {
	return func() tea.Msg {
		return sendResultMsg{err: m.sync.SendMessage(content, "")}
	}
}

func (m appModel) activateNextChannelCmd() tea.Cmd {
	channels := m.snapshot.Channels
	if len(channels) == 0 {
		return nil
	}
	next := channels[0].ID
	for i, channel := range channels {
		if channel.ID == m.snapshot.ActiveChannelID {
			next = channels[(i+1)%len(channels)].ID
			break
		}
	}
	return func() tea.Msg {
		return sendResultMsg{err: m.sync.ActivateChannel(next)}
	}
}

func (m *appModel) updateViewportContent() {
	channelID := m.snapshot.ActiveChannelID
	messages := m.snapshot.Messages[channelID]
	var b strings.Builder
	for _, message := range messages {
		sender := message.SenderID
		if message.Sender != nil && message.Sender.Name != "" {
			sender = message.Sender.Name
		}
		marker := ""
		if message.Provisional {
			marker = " (sending)"
		}
		b.WriteString(senderStyle.Render(sender))
		b.WriteString(statusStyle.Render(" " + message.CreatedAt.Format("15:04")))
		b.WriteString(marker + "\n")
		b.WriteString(message.Content + "\n\n")
	}
	m.viewport.SetContent(b.String())
}

func (m appModel) View() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render("HarborChat"))
	b.WriteString(statusStyle.Render("  " + string(m.snapshot.Status)))
	b.WriteString("\n")
	b.WriteString(m.channelBar())
	b.WriteString("\n")
	b.WriteString(m.viewport.View())
	b.WriteString("\n")
	b.WriteString(m.typingLine())
	b.WriteString("\n")
	b.WriteString(m.textarea.View())
	b.WriteString("\n")
	if m.lastErr != nil {
		b.WriteString(errorStyle.Render(m.lastErr.Error()))
	} else {
		b.WriteString(statusStyle.Render("tab: switch channel • enter: send • ctrl+c: quit"))
	}
	return b.String()
}

func (m appModel) channelBar() string {
	parts := make([]string, 0, len(m.snapshot.Channels))
	for _, channel := range m.snapshot.Channels {
		label := "#" + channel.Name
		if unread := m.snapshot.Unread[channel.ID]; unread > 0 {
			label += badgeStyle.Render(fmt.Sprintf(" (%d)", unread))
		}
		if mentions := m.snapshot.Mentions[channel.ID]; mentions > 0 {
			label += badgeStyle.Render(fmt.Sprintf(" @%d", mentions))
		}
		if channel.ID == m.snapshot.ActiveChannelID {
			parts = append(parts, activeStyle.Render(label))
		} else {
			parts = append(parts, channelStyle.Render(label))
		}
	}
	if len(parts) == 0 {
		return statusStyle.Render("no channels yet")
	}
	return strings.Join(parts, "  ")
}

func (m appModel) typingLine() string {
	var names []string
	for _, presence := range m.snapshot.Typing {
		if presence.ChannelID != m.snapshot.ActiveChannelID {
			continue
		}
		if presence.UserID == m.snapshot.CurrentUser.ID {
			continue
		}
		names = append(names, presence.UserID)
	}
	if len(names) == 0 {
		return ""
	}
	return typingStyle.Render(strings.Join(names, ", ") + " typing...")
}
