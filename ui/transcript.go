package ui

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	"datachat/model"
)

const streamCursor = "▋"

func isBlank(s string) bool { return strings.TrimSpace(s) == "" }

// needsMarkdown reports whether m is a finished reply rendered as markdown.
func needsMarkdown(m model.Message) bool {
	return m.Role == model.RoleAssistant && m.Kind == model.KindText && !m.Streaming && !isBlank(m.Display)
}

// renderTranscript lays out the conversation. rendered holds markdown output
// by message id; replies without an entry are shown as plain text.
func renderTranscript(msgs []model.Message, rendered map[string]string, width int, spin string) string {
	if len(msgs) == 0 {
		return DimStyle.Render("No messages yet. Import a CSV with `datachat import` and ask a question.")
	}

	var b strings.Builder
	for _, m := range msgs {
		timestamp := DimStyle.Render(m.Timestamp.Format("[15:04]"))

		switch m.Role {
		case model.RoleUser:
			b.WriteString(formatUserMessage(timestamp, UserStyle.Render("You"), m.Display))

		case model.RoleAssistant:
			body := assistantBody(m, rendered, width, spin)
			if body == "" {
				continue
			}
			fmt.Fprintf(&b, "%s %s\n%s\n\n", timestamp, AssistantStyle.Render("Assistant"), body)

		case model.RolePipeline:
			b.WriteString(pipelineLine(m, width, spin))
			b.WriteString("\n\n")
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func assistantBody(m model.Message, rendered map[string]string, width int, spin string) string {
	switch {
	case m.Kind == model.KindError:
		return ErrorStyle.Render(m.Display)
	case m.Streaming && isBlank(m.Display):
		return spin
	case m.Streaming:
		return wrap(strings.TrimSpace(m.Display), width) + streamCursor
	}
	if r, ok := rendered[m.ID]; ok {
		return r
	}
	if isBlank(m.Display) {
		return ""
	}
	return wrap(strings.TrimSpace(m.Display), width)
}

// pipelineLine renders a tool message as a single status line.
func pipelineLine(m model.Message, width int, spin string) string {
	line := m.Display
	style := DimStyle
	switch {
	case m.Kind == model.KindProgress:
		line = spin + " " + line
		style = ProgressStyle
	case m.Kind == model.KindChart:
		line = "▤ chart ready: " + line
		style = ChartStyle
	case m.Kind == model.KindError || m.Status == "error":
		style = ErrorStyle
	case m.Status == "success":
		style = SuccessStyle
	}
	line = strings.ReplaceAll(line, "\n", " ")
	if width > 4 {
		line = runewidth.Truncate(line, width-2, "…")
	}
	return style.Render(line)
}

func formatUserMessage(timestamp, role, content string) string {
	bar := UserStyle.Render("┃")

	var b strings.Builder
	fmt.Fprintf(&b, "%s %s %s\n", bar, timestamp, role)
	for _, line := range strings.Split(content, "\n") {
		fmt.Fprintf(&b, "%s %s\n", bar, line)
	}
	b.WriteString("\n")
	return b.String()
}

func wrap(s string, width int) string {
	if width <= 4 {
		return s
	}
	return runewidth.Wrap(s, width-2)
}
