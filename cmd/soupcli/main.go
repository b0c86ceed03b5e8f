// souproom TUI - join a deduction room from the terminal
package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textinput"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"github.com/soupnight/souproom/internal/chatview"
	"github.com/soupnight/souproom/internal/client"
	"github.com/soupnight/souproom/internal/domain"
	"github.com/soupnight/souproom/internal/polling"
	"github.com/soupnight/souproom/internal/progress"
)

const askTimeout = 90 * time.Second

type appConfig struct {
	serverURL string
	sessionID string
	soupID    string
}

type sessionMsg struct {
	info *client.SessionInfo
}

type syncErrMsg struct {
	err error
}

type joinedMsg struct {
	info *client.SessionInfo
	err  error
}

type askDoneMsg struct {
	result *client.AskResult
	err    error
}

type uiTheme struct {
	header    lipgloss.Style
	status    lipgloss.Style
	errStatus lipgloss.Style
	hostMsg   lipgloss.Style
	playerMsg lipgloss.Style
	badge     lipgloss.Style
	footer    lipgloss.Style
}

func newTheme() uiTheme {
	teal := lipgloss.Color("6")
	yellow := lipgloss.Color("3")
	red := lipgloss.Color("1")
	gray := lipgloss.Color("8")

	return uiTheme{
		header:    lipgloss.NewStyle().Bold(true).Foreground(teal),
		status:    lipgloss.NewStyle().Foreground(gray),
		errStatus: lipgloss.NewStyle().Foreground(red),
		hostMsg:   lipgloss.NewStyle().Foreground(teal),
		playerMsg: lipgloss.NewStyle().Foreground(lipgloss.Color("7")),
		badge:     lipgloss.NewStyle().Bold(true).Foreground(yellow),
		footer:    lipgloss.NewStyle().Foreground(gray),
	}
}

type model struct {
	cfg     appConfig
	api     *client.Client
	engine  *polling.Engine
	updates chan *client.SessionInfo
	syncErr chan error

	sessionID string
	soup      domain.SoupSummary
	history   []domain.Turn

	vp       viewport.Model
	input    textinput.Model
	spin     spinner.Model
	tracker  *chatview.Tracker
	progress progress.Tracker
	theme    uiTheme

	ready   bool
	asking  bool
	lastErr string
	width   int
	height  int
}

func newModel(cfg appConfig) *model {
	api := client.New(cfg.serverURL, nil)

	updates := make(chan *client.SessionInfo, 8)
	syncErr := make(chan error, 8)
	engine := polling.NewEngine(polling.DefaultConfig(), api,
		func(info *client.SessionInfo) { updates <- info },
		func(err error) { syncErr <- err },
	)

	input := textinput.New()
	input.Placeholder = "ask the host a yes/no question (\"progress\" for a progress check)"
	input.CharLimit = 500
	input.Focus()

	sp := spinner.New()
	sp.Spinner = spinner.Dot

	return &model{
		cfg:     cfg,
		api:     api,
		engine:  engine,
		updates: updates,
		syncErr: syncErr,
		vp:      viewport.New(0, 0),
		input:   input,
		spin:    sp,
		tracker: chatview.NewTracker(0),
		theme:   newTheme(),
	}
}

func (m *model) Init() tea.Cmd {
	return tea.Batch(m.spin.Tick, m.joinCmd(), m.waitForUpdate(), m.waitForSyncErr())
}

// joinCmd creates a room or joins an existing one.
func (m *model) joinCmd() tea.Cmd {
	cfg := m.cfg
	api := m.api
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
		defer cancel()

		if cfg.sessionID != "" {
			info, err := api.GetSession(ctx, cfg.sessionID)
			return joinedMsg{info: info, err: err}
		}
		info, err := api.CreateSession(ctx, cfg.soupID)
		return joinedMsg{info: info, err: err}
	}
}

// waitForUpdate bridges engine callbacks into the tea loop.
func (m *model) waitForUpdate() tea.Cmd {
	return func() tea.Msg {
		return sessionMsg{info: <-m.updates}
	}
}

func (m *model) waitForSyncErr() tea.Cmd {
	return func() tea.Msg {
		return syncErrMsg{err: <-m.syncErr}
	}
}

func (m *model) askCmd(question string) tea.Cmd {
	api := m.api
	id := m.sessionID
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), askTimeout)
		defer cancel()
		result, err := api.Ask(ctx, id, question)
		return askDoneMsg{result: result, err: err}
	}
}

func (m *model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.vp.Width = msg.Width
		m.vp.Height = msg.Height - 6
		if m.vp.Height < 3 {
			m.vp.Height = 3
		}
		m.input.Width = msg.Width - 4
		m.renderHistory()
		m.ready = true

	case tea.FocusMsg:
		m.engine.SetVisible(true)

	case tea.BlurMsg:
		m.engine.SetVisible(false)

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "esc":
			m.engine.Stop()
			return m, tea.Quit
		case "enter":
			question := strings.TrimSpace(m.input.Value())
			if question != "" && !m.asking && m.sessionID != "" {
				m.asking = true
				m.lastErr = ""
				m.input.Reset()
				cmds = append(cmds, m.askCmd(question))
			}
		case "pgup", "pgdown", "up", "down":
			var cmd tea.Cmd
			m.vp, cmd = m.vp.Update(msg)
			m.tracker.SetViewport(m.vp.YOffset, m.vp.Height)
			cmds = append(cmds, cmd)
		case "end":
			m.vp.GotoBottom()
			m.tracker.SetViewport(m.vp.YOffset, m.vp.Height)
			m.tracker.MarkRead()
		default:
			var cmd tea.Cmd
			m.input, cmd = m.input.Update(msg)
			cmds = append(cmds, cmd)
		}

	case joinedMsg:
		if msg.err != nil {
			m.lastErr = "room missing or expired: " + msg.err.Error()
			break
		}
		m.applySession(msg.info)
		m.engine.SetSession(m.sessionID)
		m.engine.Start()

	case sessionMsg:
		m.applySession(msg.info)
		cmds = append(cmds, m.waitForUpdate())

	case syncErrMsg:
		if msg.err != nil {
			m.lastErr = msg.err.Error()
		}
		cmds = append(cmds, m.waitForSyncErr())

	case askDoneMsg:
		m.asking = false
		if msg.err != nil {
			m.lastErr = msg.err.Error()
			break
		}
		m.history = msg.result.History
		m.progress.Observe(msg.result.Answer)
		m.renderHistory()
		m.engine.ForceSync()

	case spinner.TickMsg:
		var cmd tea.Cmd
		m.spin, cmd = m.spin.Update(msg)
		cmds = append(cmds, cmd)
	}

	return m, tea.Batch(cmds...)
}

func (m *model) applySession(info *client.SessionInfo) {
	if info == nil {
		return
	}
	m.sessionID = info.SessionID
	m.soup = info.Soup
	if len(info.History) != len(m.history) {
		m.history = info.History
		m.renderHistory()
	}
}

// renderHistory rebuilds the viewport content and applies the
// near-bottom auto-scroll rule.
func (m *model) renderHistory() {
	var b strings.Builder
	if m.soup.Opening != "" {
		b.WriteString(m.theme.status.Render("Opening: "+m.soup.Opening) + "\n\n")
	}
	for _, turn := range m.history {
		switch turn.Role {
		case domain.RoleAssistant:
			b.WriteString(m.theme.hostMsg.Render("host> ") + turn.Content + "\n")
		default:
			b.WriteString(m.theme.playerMsg.Render("you>  ") + turn.Content + "\n")
		}
	}

	content := b.String()
	wasNearBottom := m.tracker.NearBottom()
	m.vp.SetContent(content)
	m.tracker.SetTotal(strings.Count(content, "\n") + 1)
	if wasNearBottom {
		m.vp.GotoBottom()
		m.tracker.MarkRead()
	}
	m.tracker.SetViewport(m.vp.YOffset, m.vp.Height)
}

func (m *model) statusLine() string {
	state := m.engine.State()
	parts := []string{"room " + shortID(m.sessionID), string(state)}

	if last := m.engine.LastSyncTime(); !last.IsZero() {
		parts = append(parts, "synced "+humanAgo(time.Since(last)))
	}
	parts = append(parts, fmt.Sprintf("poll %s", m.engine.Interval()))
	if n := m.engine.RetryCount(); n > 0 {
		parts = append(parts, fmt.Sprintf("retry %d", n))
	}
	if value, ok := m.progress.Value(); ok {
		parts = append(parts, fmt.Sprintf("progress %d%%", value))
	}
	return strings.Join(parts, " · ")
}

func (m *model) View() string {
	if !m.ready {
		return "loading..."
	}

	header := m.theme.header.Render("souproom · " + m.soup.Title)
	status := m.theme.status.Render(m.statusLine())
	if m.lastErr != "" {
		status = m.theme.errStatus.Render(m.lastErr)
	}

	inputLine := m.input.View()
	if m.asking {
		inputLine = m.spin.View() + " waiting for the host..."
	}

	unread := ""
	if n := m.tracker.Unread(); n > 0 {
		unread = m.theme.badge.Render(fmt.Sprintf(" %d new message(s) below ", n))
	}

	footer := m.theme.footer.Render("enter ask · end jump to latest · esc quit")

	return strings.Join([]string{
		header,
		status,
		m.vp.View(),
		unread,
		inputLine,
		footer,
	}, "\n")
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	if id == "" {
		return "-"
	}
	return id
}

func humanAgo(d time.Duration) string {
	switch {
	case d < 10*time.Second:
		return "just now"
	case d < time.Minute:
		return fmt.Sprintf("%ds ago", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	}
}

func envOr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func main() {
	cfg := appConfig{}
	flag.StringVar(&cfg.serverURL, "server", envOr("SOUPROOM_SERVER", "http://localhost:8080/api"), "API base URL")
	flag.StringVar(&cfg.sessionID, "session", "", "join an existing room by id")
	flag.StringVar(&cfg.soupID, "soup", "", "riddle id for a new room (random when empty)")
	flag.Parse()

	p := tea.NewProgram(newModel(cfg), tea.WithAltScreen(), tea.WithReportFocus())
	if _, err := p.Run(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
