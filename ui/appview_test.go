package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/agent"
	"datachat/model"
	"datachat/pipeline"
	"datachat/provider/testutil"
)

func newTestView(t *testing.T, turns ...[]string) (*AppView, *string) {
	t.Helper()
	ag, err := agent.New(agent.Config{AgentConfig: pipeline.AgentConfig{
		Model:            testutil.NewScriptedProvider(turns...),
		IterationCeiling: agent.DefaultIterationCeiling,
	}})
	require.NoError(t, err)

	var copied string
	view := NewAppView(ag, Options{Copy: func(s string) error { copied = s; return nil }})
	view.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	return view, &copied
}

func TestSubmitRunsTurn(t *testing.T) {
	view, copied := newTestView(t, []string{"Hello ", "**there**"})

	view.textarea.SetValue("hi")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.True(t, view.busy)
	assert.Empty(t, view.textarea.Value())

	finished, ok := cmd().(turnFinishedMsg)
	require.True(t, ok)
	require.NoError(t, finished.err)
	view.Update(finished)
	assert.False(t, view.busy)
	assert.Equal(t, "Ready", view.status)

	msgs := view.session.Messages()
	require.Len(t, msgs, 2)
	assert.Equal(t, "Hello **there**", msgs[1].Display)

	view.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Equal(t, "Hello **there**", *copied)
	assert.Equal(t, "Copied last reply", view.status)
}

func TestSubmitIgnoresBlankInput(t *testing.T) {
	view, _ := newTestView(t, []string{"unused"})
	view.textarea.SetValue("   ")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	assert.Nil(t, cmd)
	assert.False(t, view.busy)
}

func TestClearStartsNewSession(t *testing.T) {
	view, _ := newTestView(t, []string{"ok"})
	view.textarea.SetValue("hi")
	_, cmd := view.Update(tea.KeyMsg{Type: tea.KeyEnter})
	old := view.session
	view.Update(cmd())

	view.Update(tea.KeyMsg{Type: tea.KeyCtrlL})
	assert.NotSame(t, old, view.session)
	assert.Empty(t, view.session.Messages())

	// a late notification from the old session is ignored
	view.Update(turnFinishedMsg{session: old, summary: agent.Summary{Invocations: 3}})
	assert.Equal(t, "New chat", view.status)
}

func TestCopyWithoutReply(t *testing.T) {
	view, copied := newTestView(t, []string{"ok"})
	view.Update(tea.KeyMsg{Type: tea.KeyCtrlY})
	assert.Empty(t, *copied)
	assert.Equal(t, "Nothing to copy yet", view.status)
}

func TestRenderTranscript(t *testing.T) {
	now := time.Now()
	msgs := []model.Message{
		{ID: "1", Role: model.RoleUser, Display: "show sales", Timestamp: now, Kind: model.KindText},
		{ID: "2", Role: model.RoleAssistant, Display: "Fetching.\n", Timestamp: now, Kind: model.KindText},
		{ID: "3", Role: model.RolePipeline, Display: "✓ fetch_data  Loaded 2 of 5 rows.", Status: "success", Timestamp: now, Kind: model.KindText},
		{ID: "4", Role: model.RolePipeline, Display: "Computing statistics", Timestamp: now, Kind: model.KindProgress},
		{ID: "5", Role: model.RolePipeline, Display: "Sales by region", Timestamp: now, Kind: model.KindChart},
		{ID: "6", Role: model.RoleAssistant, Display: "North le", Timestamp: now, Kind: model.KindText, Streaming: true},
		{ID: "7", Role: model.RoleAssistant, Display: "", Timestamp: now, Kind: model.KindText},
	}

	out := stripANSI(renderTranscript(msgs, map[string]string{"2": "RENDERED"}, 80, "*"))
	assert.Contains(t, out, "┃ show sales")
	assert.Contains(t, out, "RENDERED")
	assert.NotContains(t, out, "Fetching.")
	assert.Contains(t, out, "✓ fetch_data  Loaded 2 of 5 rows.")
	assert.Contains(t, out, "* Computing statistics")
	assert.Contains(t, out, "chart ready: Sales by region")
	assert.Contains(t, out, "North le"+streamCursor)
	assert.Equal(t, 2, strings.Count(out, "Assistant"))
}

func TestPipelineLineTruncates(t *testing.T) {
	m := model.Message{Role: model.RolePipeline, Display: strings.Repeat("x", 200), Status: "success"}
	line := stripANSI(pipelineLine(m, 40, ""))
	assert.LessOrEqual(t, len([]rune(line)), 38)
	assert.True(t, strings.HasSuffix(line, "…"))
}

func TestRenderMarkdown(t *testing.T) {
	out := stripANSI(renderMarkdown("# Totals\n\nSee [docs](https://example.com) for `sum`.", 60))
	assert.Contains(t, out, "Totals")
	assert.Contains(t, out, "https://example.com")
	assert.NotContains(t, out, "[docs]")
	assert.Contains(t, out, "sum")
}

func TestFrameCodeBlocks(t *testing.T) {
	out := frameCodeBlocks("before\n┃ x := 1\n┃ y := 2\nafter", 30)
	plain := stripANSI(out)
	assert.Contains(t, plain, "[code]")
	assert.Contains(t, plain, "\nx := 1\ny := 2\n")
	assert.NotContains(t, plain, "┃")
	assert.True(t, strings.HasSuffix(plain, "after"))
}

func TestHelpOverlayToggles(t *testing.T) {
	view, _ := newTestView(t, []string{"ok"})

	view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'h'}, Alt: true})
	require.True(t, view.help)
	assert.Contains(t, stripANSI(view.View()), "Keyboard Shortcuts")

	// keys other than help and esc do not reach the input box
	view.Update(tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{'x'}})
	assert.Empty(t, view.textarea.Value())

	view.Update(tea.KeyMsg{Type: tea.KeyEsc})
	assert.False(t, view.help)
}

func TestErrorModalQuitsOnEnter(t *testing.T) {
	m := NewErrorModal("Configuration Error", "no model configured")
	updated, _ := m.Update(tea.WindowSizeMsg{Width: 80, Height: 24})
	assert.Contains(t, stripANSI(updated.View()), "no model configured")

	_, cmd := updated.Update(tea.KeyMsg{Type: tea.KeyEnter})
	require.NotNil(t, cmd)
	assert.IsType(t, tea.QuitMsg{}, cmd())
}
