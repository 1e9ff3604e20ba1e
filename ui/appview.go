// Package ui is the interactive chat view: a scrolling transcript, an input
// box and a status bar, driven by an agent session.
package ui

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/bubbles/spinner"
	"github.com/charmbracelet/bubbles/textarea"
	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	"go.uber.org/zap"

	"datachat/agent"
	"datachat/config"
	"datachat/model"
	"datachat/provider"
)

type Options struct {
	Keys   config.KeyBindings
	Logger *zap.Logger
	// Copy writes text to the clipboard. Defaults to clipboard.WriteAll.
	Copy func(text string) error
}

// sessionChangedMsg is forwarded from the session's change listener.
type sessionChangedMsg struct {
	session *agent.Session
}

type turnFinishedMsg struct {
	session *agent.Session
	summary agent.Summary
	err     error
}

type AppView struct {
	agent   *agent.Agent
	session *agent.Session
	send    func(tea.Msg)
	copy    func(string) error
	logger  *zap.Logger
	keys    keyMap

	viewport viewport.Model
	textarea textarea.Model
	spinner  spinner.Model

	width  int
	height int
	ready  bool
	busy   bool
	status string
	help   bool

	rendered map[string]markdownRenderedMsg
	pending  map[string]bool
}

func NewAppView(ag *agent.Agent, opts Options) *AppView {
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	copyFn := opts.Copy
	if copyFn == nil {
		copyFn = clipboard.WriteAll
	}

	ta := textarea.New()
	ta.Placeholder = "Ask about your data..."
	ta.Focus()
	ta.CharLimit = 0
	ta.ShowLineNumbers = false
	ta.SetHeight(3)
	ta.SetWidth(80)
	// Enter is the send key; alt+enter inserts a newline.
	ta.KeyMap.InsertNewline = key.NewBinding(key.WithKeys("alt+enter"))
	ta.SetPromptFunc(2, func(lineIdx int) string {
		if lineIdx == 0 {
			return "> "
		}
		return "| "
	})

	sp := spinner.New()
	sp.Spinner = spinner.Dot
	sp.Style = ProgressStyle

	a := &AppView{
		agent:    ag,
		copy:     copyFn,
		logger:   logger.Named("ui"),
		keys:     newKeyMap(opts.Keys),
		viewport: viewport.New(0, 0),
		textarea: ta,
		spinner:  sp,
		rendered: map[string]markdownRenderedMsg{},
		pending:  map[string]bool{},
	}
	a.bindSession(ag.NewSession())
	return a
}

// Run starts the full-screen chat and blocks until the user quits.
func Run(ag *agent.Agent, opts Options) error {
	view := NewAppView(ag, opts)
	p := tea.NewProgram(view, tea.WithAltScreen())
	view.attach(p.Send)

	_, err := p.Run()
	view.session.Cancel()
	return err
}

// attach routes session change notifications into the running program.
// It must be called before the program starts.
func (a *AppView) attach(send func(tea.Msg)) {
	a.send = send
	a.bindSession(a.session)
}

func (a *AppView) bindSession(s *agent.Session) {
	a.session = s
	send := a.send
	s.OnChange(func() {
		if send != nil {
			send(sessionChangedMsg{session: s})
		}
	})
}

func (a *AppView) Init() tea.Cmd {
	return tea.Batch(
		textarea.Blink,
		a.spinner.Tick,
		provider.PingProvider(a.agent.Config().Model),
	)
}

func (a *AppView) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	var cmds []tea.Cmd

	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		a.resize(msg.Width, msg.Height)
		cmds = append(cmds, a.refresh(true))

	case tea.KeyMsg:
		if a.help {
			switch {
			case key.Matches(msg, a.keys.Quit):
				a.session.Cancel()
				return a, tea.Quit
			case key.Matches(msg, a.keys.Help), msg.Type == tea.KeyEsc:
				a.help = false
			}
			return a, nil
		}
		switch {
		case key.Matches(msg, a.keys.Quit):
			a.session.Cancel()
			return a, tea.Quit
		case key.Matches(msg, a.keys.Cancel):
			if a.busy {
				a.session.Cancel()
				a.status = "Cancelling..."
			}
			return a, nil
		case key.Matches(msg, a.keys.Copy):
			a.copyLastReply()
			return a, nil
		case key.Matches(msg, a.keys.Clear):
			a.newSession()
			return a, a.refresh(true)
		case key.Matches(msg, a.keys.ScrollUp):
			a.viewport.PageUp()
			return a, nil
		case key.Matches(msg, a.keys.ScrollDown):
			a.viewport.PageDown()
			return a, nil
		case key.Matches(msg, a.keys.Help):
			a.help = true
			return a, nil
		case key.Matches(msg, a.keys.Send):
			return a, a.submit()
		}
		var cmd tea.Cmd
		a.textarea, cmd = a.textarea.Update(msg)
		cmds = append(cmds, cmd)

	case sessionChangedMsg:
		if msg.session == a.session {
			cmds = append(cmds, a.refresh(a.viewport.AtBottom()))
		}

	case turnFinishedMsg:
		if msg.session != a.session {
			return a, nil
		}
		a.busy = false
		a.status = turnStatus(msg.summary, msg.err)
		cmds = append(cmds, a.refresh(true))

	case markdownRenderedMsg:
		delete(a.pending, msg.ID)
		if msg.Width == a.width {
			a.rendered[msg.ID] = msg
			cmds = append(cmds, a.refresh(a.viewport.AtBottom()))
		}

	case spinner.TickMsg:
		var cmd tea.Cmd
		a.spinner, cmd = a.spinner.Update(msg)
		cmds = append(cmds, cmd)
		if a.busy {
			a.setContent(a.viewport.AtBottom())
		}

	case provider.PingProviderMsg:
		if msg.Err != nil {
			a.status = fmt.Sprintf("%s unreachable: %v", msg.Model, msg.Err)
		} else {
			a.status = "Connected to " + msg.Model
		}
	}

	return a, tea.Batch(cmds...)
}

func (a *AppView) resize(width, height int) {
	a.width, a.height = width, height
	a.textarea.SetWidth(width - 2)

	// header, blank line, status bar and footer
	vpHeight := max(height-a.textarea.Height()-4, 1)
	if !a.ready {
		a.viewport = viewport.New(width, vpHeight)
		a.ready = true
		return
	}
	a.viewport.Width = width
	a.viewport.Height = vpHeight
}

// submit sends the input box content as a new question.
func (a *AppView) submit() tea.Cmd {
	text := a.textarea.Value()
	if len(text) == 0 || isBlank(text) {
		return nil
	}
	if a.busy {
		a.status = agent.ErrBusy.Error()
		return nil
	}
	a.textarea.Reset()
	a.busy = true
	a.status = "Thinking..."

	s := a.session
	return func() tea.Msg {
		sum, err := s.TrySend(context.Background(), text)
		return turnFinishedMsg{session: s, summary: sum, err: err}
	}
}

func (a *AppView) newSession() {
	if a.busy {
		a.session.Cancel()
	}
	a.busy = false
	a.rendered = map[string]markdownRenderedMsg{}
	a.pending = map[string]bool{}
	a.bindSession(a.agent.NewSession())
	a.status = "New chat"
}

func (a *AppView) copyLastReply() {
	reply, ok := lastReply(a.session.Messages())
	if !ok {
		a.status = "Nothing to copy yet"
		return
	}
	if err := a.copy(reply); err != nil {
		a.logger.Warn("clipboard write failed", zap.Error(err))
		a.status = "Copy failed: " + err.Error()
		return
	}
	a.status = "Copied last reply"
}

// refresh redraws the transcript and starts markdown rendering for
// finished assistant replies that have none at the current width.
func (a *AppView) refresh(gotoBottom bool) tea.Cmd {
	msgs := a.session.Messages()

	var cmds []tea.Cmd
	if a.ready {
		for _, m := range msgs {
			if !needsMarkdown(m) || a.pending[m.ID] {
				continue
			}
			if r, ok := a.rendered[m.ID]; ok && r.Width == a.width {
				continue
			}
			a.pending[m.ID] = true
			cmds = append(cmds, renderMarkdownAsync(m.ID, m.Display, a.width, a.logger))
		}
	}

	a.setContent(gotoBottom)
	return tea.Batch(cmds...)
}

func (a *AppView) setContent(gotoBottom bool) {
	rendered := make(map[string]string, len(a.rendered))
	for id, r := range a.rendered {
		if r.Width == a.width {
			rendered[id] = r.Rendered
		}
	}
	a.viewport.SetContent(renderTranscript(a.session.Messages(), rendered, a.width, a.spinner.View()))
	if gotoBottom {
		a.viewport.GotoBottom()
	}
}

func (a *AppView) View() string {
	if !a.ready {
		return "Loading..."
	}
	if a.help {
		return a.renderHelpModal(a.width, a.height)
	}

	cfg := a.agent.Config()
	title := TitleStyle.Render("datachat") + DimStyle.Render(" | "+cfg.Model.GetDisplayName())
	if a.busy {
		title += " " + a.spinner.View()
	}

	return lipgloss.JoinVertical(
		lipgloss.Left,
		title,
		"",
		a.viewport.View(),
		a.textarea.View(),
		StatusStyle.Render(a.status),
		StatusStyle.Render(a.keys.footer(a.busy)),
	)
}

func turnStatus(sum agent.Summary, err error) string {
	switch {
	case errors.Is(err, agent.ErrBusy):
		return err.Error()
	case err != nil:
		return "Error: " + err.Error()
	case sum.Err != nil:
		return "Reply failed"
	case sum.Invocations == 0:
		return "Ready"
	case sum.Final:
		return fmt.Sprintf("Ready (%d tool calls, limit reached)", sum.Invocations)
	}
	return fmt.Sprintf("Ready (%d tool calls)", sum.Invocations)
}

// lastReply returns the most recent finished assistant answer.
func lastReply(msgs []model.Message) (string, bool) {
	for i := len(msgs) - 1; i >= 0; i-- {
		m := msgs[i]
		if m.Role == model.RoleAssistant && m.Kind == model.KindText && !m.Streaming && !isBlank(m.Display) {
			return m.Display, true
		}
	}
	return "", false
}
