package ui

import (
	"regexp"
	"strings"
	"time"

	markdown "github.com/MichaelMure/go-term-markdown"
	tea "github.com/charmbracelet/bubbletea"
	gomarkdown "github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/parser"
	"go.uber.org/zap"
)

const codeBar = "┃"

var (
	inlineCodeRegex = regexp.MustCompile(`(?s)\x1b\[44;3m(.*?)\x1b\[0m`)
	mdLinkRegex     = regexp.MustCompile(`\[([^\]]+)\]\((https?://[^\)]+)\)`)
	urlRegex        = regexp.MustCompile(`(https?://[^\s]+)`)
	ansiRegex       = regexp.MustCompile(`\x1b\[[0-9;]*m`)
)

type markdownRenderedMsg struct {
	ID       string
	Width    int
	Rendered string
}

// renderMarkdown renders content for a terminal of the given width.
func renderMarkdown(content string, width int) string {
	if width < 20 {
		width = 20
	}
	content = preprocessLinks(content)

	// Autolink stays off so the terminal handles plain URLs itself.
	ext := markdown.Extensions() &^ parser.Autolink
	p := parser.NewWithExtensions(ext)
	r := markdown.NewRenderer(width-4, 0)
	rendered := gomarkdown.Render(p.Parse([]byte(content)), r)

	return postProcessMarkdown(strings.TrimRight(string(rendered), "\n"), width)
}

func renderMarkdownAsync(id, content string, width int, logger *zap.Logger) tea.Cmd {
	return func() tea.Msg {
		start := time.Now()
		out := renderMarkdown(content, width)
		logger.Debug("markdown rendered",
			zap.String("id", id),
			zap.Int("chars", len(content)),
			zap.Duration("elapsed", time.Since(start)))
		return markdownRenderedMsg{ID: id, Width: width, Rendered: out}
	}
}

func postProcessMarkdown(rendered string, width int) string {
	rendered = fixInlineCode(rendered)
	rendered = colorURLs(rendered)
	return frameCodeBlocks(rendered, width)
}

// preprocessLinks reduces [text](url) to the bare url.
func preprocessLinks(content string) string {
	return mdLinkRegex.ReplaceAllString(content, "$2")
}

// fixInlineCode turns the renderer's blue-background inline code into red
// text.
func fixInlineCode(s string) string {
	return inlineCodeRegex.ReplaceAllString(s, "\x1b[31m$1\x1b[0m")
}

func colorURLs(s string) string {
	lines := strings.Split(s, "\n")
	for i, line := range lines {
		if !strings.Contains(line, codeBar) {
			lines[i] = urlRegex.ReplaceAllString(line, "\x1b[31m$1\x1b[0m")
		}
	}
	return strings.Join(lines, "\n")
}

// frameCodeBlocks replaces the renderer's bar-prefixed code lines with a
// block framed by horizontal rules.
func frameCodeBlocks(s string, width int) string {
	const (
		darkGray = "\x1b[90m"
		reset    = "\x1b[0m"
		label    = "[code]"
	)
	ruleLen := max(width-4, len(label)+2)
	left := (ruleLen - len(label)) / 2
	top := darkGray + strings.Repeat("━", left) + reset + label + darkGray + strings.Repeat("━", ruleLen-len(label)-left) + reset
	bottom := darkGray + strings.Repeat("━", ruleLen) + reset

	var out []string
	inBlock := false
	for _, line := range strings.Split(s, "\n") {
		if strings.Contains(line, codeBar) {
			if !inBlock {
				inBlock = true
				out = append(out, "", top, "")
			}
			out = append(out, stripCodeBlockPrefix(line))
			continue
		}
		if inBlock {
			out = append(out, "", bottom, "")
			inBlock = false
		}
		out = append(out, line)
	}
	if inBlock {
		out = append(out, "", bottom, "")
	}
	return strings.Join(out, "\n")
}

func stripCodeBlockPrefix(line string) string {
	idx := strings.Index(line, codeBar)
	if idx < 0 {
		return line
	}
	rest := line[idx+len(codeBar):]
	return strings.TrimPrefix(rest, " ")
}

func stripANSI(s string) string {
	return ansiRegex.ReplaceAllString(s, "")
}
