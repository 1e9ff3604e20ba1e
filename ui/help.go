package ui

import (
	"fmt"

	"github.com/charmbracelet/bubbles/key"
	"github.com/charmbracelet/lipgloss"
)

func (a *AppView) renderHelpModal(width, height int) string {
	k := a.keys

	green := lipgloss.NewStyle().
		Bold(true).
		Foreground(successColor)
	blue := lipgloss.NewStyle().Foreground(accentColor)

	line := func(b key.Binding) string {
		h := b.Help()
		return fmt.Sprintf("• %-13s %s", h.Key, h.Desc)
	}

	chat := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Chat"),
		line(k.Send),
		"• Alt+Enter     New line",
		line(k.Cancel),
		line(k.Copy),
		line(k.Clear),
		line(k.ScrollUp),
		line(k.ScrollDown),
		line(k.Help),
		line(k.Quit),
	)

	tips := lipgloss.JoinVertical(
		lipgloss.Left,
		blue.Render("## Tips"),
		"• Import data first: datachat import file.csv",
		"• Ask for totals, trends or a chart",
		fmt.Sprintf("• The model may call up to %d tools per question", a.agent.Config().IterationCeiling+1),
	)

	footer := lipgloss.NewStyle().
		Foreground(dimColor).
		Render(fmt.Sprintf("Press %s or Esc to close this help", k.Help.Help().Key))

	content := lipgloss.JoinVertical(
		lipgloss.Center,
		green.Render("datachat - Keyboard Shortcuts"),
		"",
		lipgloss.NewStyle().Width(56).Render(lipgloss.JoinVertical(lipgloss.Left, chat, "", tips)),
		"",
		footer,
	)

	helpBox := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(lipgloss.Color("8")).
		Padding(1, 2)

	return lipgloss.Place(
		width,
		height,
		lipgloss.Center,
		lipgloss.Center,
		helpBox.Render(content),
	)
}
