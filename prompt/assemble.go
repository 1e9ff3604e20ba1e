package prompt

import (
	"encoding/json"
	"fmt"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/mattn/go-runewidth"

	"datachat/datastore"
	"datachat/directive"
)

// MaxCellWidth bounds the display width of a string cell in the fetched data
// preview.
const MaxCellWidth = 80

// Ambient is the per-turn session state the model is told about.
type Ambient struct {
	CurrentDataset string
	FetchedData    []datastore.Preview
}

type Input struct {
	SystemPrompt string
	Tools        []mcptypes.Tool
	Ambient      Ambient
}

const toolPolicy = `You can call tools to work with data. To call a tool, end your reply with exactly one block in this format:

%s

Rules:
- Never describe or announce a tool call in prose; just emit the block.
- Emit at most one tool call per reply, and put it at the very end.
- Parameter values must be valid JSON. Keys may be left unquoted.
- After a tool runs you will see its result as a "Pipeline result" message.`

const finalPolicy = `Tools are disabled for this reply. Summarize or react to the most recent pipeline result in plain prose for the user. Do not emit a tool call block.`

// Assemble builds the system message for a tool-enabled turn.
func Assemble(in Input) string {
	var b strings.Builder
	writeSystemPrompt(&b, in.SystemPrompt)

	b.WriteString("## Tools\n\n")
	if len(in.Tools) == 0 {
		b.WriteString("No tools are available. Answer in prose.\n\n")
	} else {
		fmt.Fprintf(&b, toolPolicy, example(in.Tools[0]))
		b.WriteString("\n\n")
		for _, tool := range in.Tools {
			writeTool(&b, tool)
			b.WriteString("\n")
		}
	}

	writeContext(&b, in.Ambient)
	return strings.TrimRight(b.String(), "\n")
}

// FinalTurnSystem builds the system message for the forced last turn of a
// cycle. It carries no catalog.
func FinalTurnSystem(systemPrompt string, ambient Ambient) string {
	var b strings.Builder
	writeSystemPrompt(&b, systemPrompt)
	b.WriteString(finalPolicy)
	b.WriteString("\n\n")
	writeContext(&b, ambient)
	return strings.TrimRight(b.String(), "\n")
}

func writeSystemPrompt(b *strings.Builder, systemPrompt string) {
	if s := strings.TrimSpace(systemPrompt); s != "" {
		b.WriteString(s)
		b.WriteString("\n\n")
	}
}

// example renders a directive for tool with placeholder values for its
// required parameters.
func example(tool mcptypes.Tool) string {
	params := make(map[string]any)
	for _, name := range tool.InputSchema.Required {
		params[name] = placeholder(propertyField(tool.InputSchema, name, "type"))
	}
	return directive.FormatRelaxed(directive.Directive{Name: tool.Name, Parameters: params})
}

func writeContext(b *strings.Builder, ambient Ambient) {
	b.WriteString("## Context\n\n")

	current := ambient.CurrentDataset
	if current == "" {
		current = "none"
	}
	fmt.Fprintf(b, "current_dataset: %s\n", current)
	fmt.Fprintf(b, "fetched_data: %s\n", FetchedDataJSON(ambient.FetchedData))
}

// FetchedDataJSON is the compact JSON form of the previews, with long string
// cells truncated.
func FetchedDataJSON(previews []datastore.Preview) string {
	if len(previews) == 0 {
		return "[]"
	}
	out := make([]datastore.Preview, len(previews))
	for i, p := range previews {
		rows := make([][]any, len(p.Rows))
		for r, row := range p.Rows {
			cells := make([]any, len(row))
			for c, cell := range row {
				if s, ok := cell.(string); ok {
					cell = runewidth.Truncate(s, MaxCellWidth, "…")
				}
				cells[c] = cell
			}
			rows[r] = cells
		}
		p.Rows = rows
		out[i] = p
	}

	data, err := json.Marshal(out)
	if err != nil {
		return "[]"
	}
	return string(data)
}
