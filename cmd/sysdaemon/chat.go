package main

import (
	"context"
	"fmt"
	"strings"

	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"github.com/codeready-toolchain/sysdaemon/pkg/meta"
	"github.com/codeready-toolchain/sysdaemon/pkg/orchestrator"
	"github.com/codeready-toolchain/sysdaemon/pkg/session"
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Open an interactive chat session with the Meta Reasoner",
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		o, err := buildOrchestrator(ctx)
		if err != nil {
			dieRuntime("sysdaemon chat: %v", err)
		}
		defer o.Shutdown(context.Background())

		p := tea.NewProgram(newChatModel(ctx, o))
		if _, err := p.Run(); err != nil {
			dieRuntime("sysdaemon chat: %v", err)
		}
	},
}

var (
	userStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("12")).Bold(true)
	assistantStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("10"))
	systemStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8")).Italic(true)
	statusStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("8"))
)

// chatModel drives an interactive session with the Meta Reasoner,
// reusing the teacher's textarea+viewport layout (pkg/tui/model.go)
// adapted to pkg/session's per-session message log instead of the
// teacher's streaming assistant client.
type chatModel struct {
	ctx       context.Context
	meta      *meta.Reasoner
	sessionID string

	viewport viewport.Model
	textarea textarea.Model
	ready    bool
	waiting  bool
	status   string
}

type chatReplyMsg struct {
	sess *session.Session
	err  error
}

func newChatModel(ctx context.Context, o *orchestrator.Orchestrator) chatModel {
	ta := textarea.New()
	ta.Placeholder = "Ask about the host's state..."
	ta.Focus()
	ta.SetWidth(80)
	ta.SetHeight(3)
	ta.ShowLineNumbers = false

	vp := viewport.New(80, 20)

	return chatModel{
		ctx:      ctx,
		meta:     o.Meta(),
		textarea: ta,
		viewport: vp,
		status:   "Ready. Enter to send, Ctrl+C to quit.",
	}
}

func (m chatModel) Init() tea.Cmd {
	return textarea.Blink
}

func (m chatModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.viewport.Width = msg.Width
		m.viewport.Height = msg.Height - 6
		m.textarea.SetWidth(msg.Width)
		m.ready = true

	case tea.KeyMsg:
		switch msg.Type {
		case tea.KeyCtrlC, tea.KeyEsc:
			return m, tea.Quit
		case tea.KeyEnter:
			if m.waiting {
				return m, nil
			}
			content := strings.TrimSpace(m.textarea.Value())
			if content == "" {
				return m, nil
			}
			m.textarea.Reset()
			m.waiting = true
			m.status = "Waiting for the meta reasoner..."
			cmds = append(cmds, m.sendMessage(content))
		}

	case chatReplyMsg:
		m.waiting = false
		if msg.err != nil {
			m.status = fmt.Sprintf("error: %v", msg.err)
		} else {
			m.sessionID = msg.sess.ID
			m.status = "Ready. Enter to send, Ctrl+C to quit."
		}
		m.viewport.SetContent(m.renderTranscript(msg.sess))
		m.viewport.GotoBottom()
		return m, nil
	}

	var cmd tea.Cmd
	m.textarea, cmd = m.textarea.Update(msg)
	cmds = append(cmds, cmd)
	m.viewport, cmd = m.viewport.Update(msg)
	cmds = append(cmds, cmd)

	return m, tea.Batch(cmds...)
}

func (m chatModel) sendMessage(content string) tea.Cmd {
	return func() tea.Msg {
		if m.sessionID == "" {
			sess, err := m.meta.StartChat(m.ctx, content)
			return chatReplyMsg{sess: sess, err: err}
		}
		sess, err := m.meta.ContinueChat(m.ctx, m.sessionID, content)
		return chatReplyMsg{sess: sess, err: err}
	}
}

func (m chatModel) renderTranscript(sess *session.Session) string {
	if sess == nil {
		return ""
	}
	clone := sess.Clone()
	var sb strings.Builder
	for _, msg := range clone.Messages {
		switch msg.Role {
		case session.RoleSystem:
			sb.WriteString(systemStyle.Render(msg.Content))
		case session.RoleUser:
			sb.WriteString(userStyle.Render("you: ") + msg.Content)
		case session.RoleAssistant:
			sb.WriteString(assistantStyle.Render("assistant: ") + msg.Content)
		}
		sb.WriteString("\n\n")
	}
	return sb.String()
}

func (m chatModel) View() string {
	if !m.ready {
		return "initializing..."
	}
	return fmt.Sprintf("%s\n%s\n%s", m.viewport.View(), m.textarea.View(), statusStyle.Render(m.status))
}
