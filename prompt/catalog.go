// Package prompt turns the pipeline registry and the session's ambient
// state into the system message sent at the start of every turn.
package prompt

import (
	"cmp"
	"fmt"
	"slices"
	"strings"

	mcptypes "github.com/mark3labs/mcp-go/mcp"

	"datachat/pipeline"
)

// orderKey records an input's position in its descriptor, since schema
// properties are a map.
const orderKey = "x-order"

// BuildCatalog converts pipeline descriptors into tool descriptors, keeping
// the descriptor order.
func BuildCatalog(descs []pipeline.Descriptor) []mcptypes.Tool {
	tools := make([]mcptypes.Tool, 0, len(descs))
	for _, d := range descs {
		schema := mcptypes.ToolInputSchema{
			Type:       "object",
			Properties: make(map[string]any, len(d.Inputs)),
			Required:   []string{},
		}
		for i, in := range d.Inputs {
			prop := map[string]any{"type": in.Type, orderKey: i}
			if in.Description != "" {
				prop["description"] = in.Description
			}
			if in.Type == pipeline.TypeArray {
				prop["items"] = map[string]any{"type": "object"}
			}
			schema.Properties[in.Name] = prop
			if in.Required {
				schema.Required = append(schema.Required, in.Name)
			}
		}
		tools = append(tools, mcptypes.Tool{
			Name:        string(d.Name),
			Description: d.Description,
			InputSchema: schema,
		})
	}
	return tools
}

// propertyNames lists required properties first, then the rest, each group in
// descriptor order. Properties without a recorded position sort last by name.
func propertyNames(schema mcptypes.ToolInputSchema) []string {
	names := make([]string, 0, len(schema.Properties))
	for name := range schema.Properties {
		names = append(names, name)
	}
	slices.SortFunc(names, func(a, b string) int {
		ra, rb := slices.Contains(schema.Required, a), slices.Contains(schema.Required, b)
		if ra != rb {
			if ra {
				return -1
			}
			return 1
		}
		if c := cmp.Compare(propertyOrder(schema, a), propertyOrder(schema, b)); c != 0 {
			return c
		}
		return strings.Compare(a, b)
	})
	return names
}

func propertyOrder(schema mcptypes.ToolInputSchema, name string) int {
	prop, _ := schema.Properties[name].(map[string]any)
	if i, ok := prop[orderKey].(int); ok {
		return i
	}
	return len(schema.Properties)
}

func propertyField(schema mcptypes.ToolInputSchema, name, field string) string {
	prop, ok := schema.Properties[name].(map[string]any)
	if !ok {
		return ""
	}
	s, _ := prop[field].(string)
	return s
}

// writeTool renders one catalog entry.
func writeTool(b *strings.Builder, tool mcptypes.Tool) {
	fmt.Fprintf(b, "### %s\n", tool.Name)
	if tool.Description != "" {
		b.WriteString(tool.Description)
		b.WriteString("\n")
	}

	names := propertyNames(tool.InputSchema)
	if len(names) == 0 {
		b.WriteString("Parameters: none\n")
		return
	}
	b.WriteString("Parameters:\n")
	for _, name := range names {
		typ := propertyField(tool.InputSchema, name, "type")
		if typ == "" {
			typ = "any"
		}
		if slices.Contains(tool.InputSchema.Required, name) {
			typ += ", required"
		}
		fmt.Fprintf(b, "- %s (%s)", name, typ)
		if desc := propertyField(tool.InputSchema, name, "description"); desc != "" {
			fmt.Fprintf(b, ": %s", desc)
		}
		b.WriteString("\n")
	}
}

// placeholder returns an example value for a parameter of the given type.
func placeholder(typ string) any {
	switch typ {
	case pipeline.TypeInteger:
		return int64(10)
	case pipeline.TypeNumber:
		return 1.5
	case pipeline.TypeBoolean:
		return true
	case pipeline.TypeArray:
		return []any{}
	case pipeline.TypeObject:
		return map[string]any{}
	default:
		return "..."
	}
}
