package directive

import (
	"encoding/json"
	"math"
	"slices"
	"strconv"
	"strings"
)

// Format renders d in the wire grammar with strict JSON parameters.
func Format(d Directive) string {
	return format(d, false)
}

// FormatRelaxed renders d with bare identifier keys, the way models most
// often write it. Keys that are not identifiers stay quoted.
func FormatRelaxed(d Directive) string {
	return format(d, true)
}

func format(d Directive, bare bool) string {
	var b strings.Builder
	b.WriteString(OpenMarker)
	b.WriteString("\n")
	b.WriteString(nameField + " " + d.Name + "\n")
	b.WriteString(parametersField + " ")
	writeObject(&b, d.Parameters, bare)
	b.WriteString("\n")
	b.WriteString(CloseMarker)
	return b.String()
}

func writeObject(b *strings.Builder, obj map[string]any, bare bool) {
	keys := make([]string, 0, len(obj))
	for k := range obj {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	b.WriteString("{")
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		if bare && isIdentifier(k) {
			b.WriteString(k)
		} else {
			writeJSON(b, k)
		}
		b.WriteString(": ")
		writeValue(b, obj[k], bare)
	}
	b.WriteString("}")
}

func writeValue(b *strings.Builder, v any, bare bool) {
	switch v := v.(type) {
	case map[string]any:
		writeObject(b, v, bare)
	case []any:
		b.WriteString("[")
		for i, elem := range v {
			if i > 0 {
				b.WriteString(", ")
			}
			writeValue(b, elem, bare)
		}
		b.WriteString("]")
	case float64:
		// integral floats keep a fraction so they decode as float64 again
		if v == math.Trunc(v) && math.Abs(v) < 1e21 {
			b.WriteString(strconv.FormatFloat(v, 'f', -1, 64))
			b.WriteString(".0")
			return
		}
		writeJSON(b, v)
	default:
		writeJSON(b, v)
	}
}

func writeJSON(b *strings.Builder, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		b.WriteString("null")
		return
	}
	b.Write(data)
}
