package pipelines

import (
	"context"
	"encoding/json"
	"fmt"
	"slices"
	"strings"
	"time"

	"go.uber.org/zap"

	"datachat/datastore"
	"datachat/model"
	"datachat/pipeline"
	"datachat/storage"
)

// VegaLiteSchema is the schema URL stamped on every chart spec.
const VegaLiteSchema = "https://vega.github.io/schema/vega-lite/v5.json"

// maxChartPoints caps the rows inlined into a chart spec.
const maxChartPoints = 500

var chartTypes = []string{"bar", "line", "scatter", "pie"}

type GenerateChart struct {
	logger *zap.Logger
}

func NewGenerateChart(logger *zap.Logger) *GenerateChart {
	return &GenerateChart{logger: orNop(logger)}
}

func (p *GenerateChart) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:        pipeline.GenerateChart,
		Description: "Draw a chart of fetched data and show it to the user.",
		Inputs: []pipeline.Input{
			{Name: "data_id", Type: pipeline.TypeString, Description: "id of the data to chart; defaults to the current dataset"},
			{Name: "chart_type", Type: pipeline.TypeString, Description: "bar, line, scatter or pie"},
			{Name: "x", Type: pipeline.TypeString, Description: "column for the x axis (categories for pie)"},
			{Name: "y", Type: pipeline.TypeString, Description: "numeric column for the y axis (values for pie)"},
			{Name: "title", Type: pipeline.TypeString, Description: "chart title"},
		},
	}
}

type chartPayload struct {
	DataID    string `json:"data_id"`
	ChartType string `json:"chart_type"`
	X         string `json:"x"`
	Y         string `json:"y"`
	Points    int    `json:"points"`
	MessageID string `json:"message_id"`
}

func (p *GenerateChart) Run(ctx context.Context, actions pipeline.Actions, params pipeline.Params, cfg *pipeline.AgentConfig) pipeline.Record {
	rec, err := resolveRecord(actions, params)
	if err != nil {
		return pipeline.Failure(pipeline.GenerateChart, err.Error())
	}

	chartType, _ := params.String("chart_type")
	chartType = strings.ToLower(strings.TrimSpace(chartType))
	if chartType == "" {
		chartType = "bar"
	}
	if !slices.Contains(chartTypes, chartType) {
		return pipeline.Failure(pipeline.GenerateChart,
			fmt.Sprintf("unsupported chart_type %q; use one of %s", chartType, strings.Join(chartTypes, ", ")))
	}

	x, _ := params.String("x")
	y, _ := params.String("y")
	if x == "" || y == "" {
		x, y = p.chooseAxes(ctx, cfg, rec, x, y)
	}
	if x == "" || y == "" {
		return pipeline.Failure(pipeline.GenerateChart, "could not pick columns to chart; pass x and y")
	}
	xi, yi := rec.ColumnIndex(x), rec.ColumnIndex(y)
	if xi < 0 || yi < 0 {
		return pipeline.Failure(pipeline.GenerateChart, fmt.Sprintf("unknown column in x=%q y=%q", x, y))
	}

	title, _ := params.String("title")
	if title == "" {
		title = fmt.Sprintf("%s by %s", y, x)
	}

	spec := BuildChartSpec(rec, chartType, xi, yi, title)
	values := spec["data"].(map[string]any)["values"].([]map[string]any)

	id := actions.NextMessageID()
	actions.AddMessage(model.Message{
		ID:         id,
		Role:       model.RolePipeline,
		Display:    title,
		Kind:       model.KindChart,
		Timestamp:  time.Now(),
		Attachment: spec,
	})

	p.logger.Debug("chart", zap.String("data_id", rec.ID), zap.String("type", chartType), zap.Int("points", len(values)))
	return pipeline.Success(pipeline.GenerateChart, chartPayload{
		DataID:    rec.ID,
		ChartType: chartType,
		X:         x,
		Y:         y,
		Points:    len(values),
		MessageID: id,
	}, "The chart is shown to the user.")
}

// BuildChartSpec renders a Vega-Lite v5 spec with the data inlined.
func BuildChartSpec(rec datastore.Record, chartType string, xi, yi int, title string) map[string]any {
	x, y := rec.Columns[xi].Name, rec.Columns[yi].Name

	values := make([]map[string]any, 0, min(len(rec.Rows), maxChartPoints))
	for _, row := range rec.Rows {
		if len(values) == maxChartPoints {
			break
		}
		if xi >= len(row) || yi >= len(row) {
			continue
		}
		values = append(values, map[string]any{x: row[xi], y: row[yi]})
	}

	xType := "nominal"
	switch {
	case isNumericType(columnType(rec, xi)) && chartType != "bar":
		xType = "quantitative"
	case chartType == "line":
		xType = "ordinal"
	}

	spec := map[string]any{
		"$schema": VegaLiteSchema,
		"title":   title,
		"data":    map[string]any{"values": values},
	}
	switch chartType {
	case "pie":
		spec["mark"] = "arc"
		spec["encoding"] = map[string]any{
			"theta": map[string]any{"field": y, "type": "quantitative"},
			"color": map[string]any{"field": x, "type": "nominal"},
		}
	default:
		mark := chartType
		if mark == "scatter" {
			mark = "point"
		}
		spec["mark"] = mark
		spec["encoding"] = map[string]any{
			"x": map[string]any{"field": x, "type": xType},
			"y": map[string]any{"field": y, "type": "quantitative"},
		}
	}
	return spec
}

const axisPrompt = `You pick chart axes. Reply with only a JSON object {"x": "<column>", "y": "<column>"} using the given column names. y must be numeric.`

// chooseAxes fills in missing axes, asking the model first and falling back
// to the first text column for x and the first numeric column for y.
func (p *GenerateChart) chooseAxes(ctx context.Context, cfg *pipeline.AgentConfig, rec datastore.Record, x, y string) (string, string) {
	if cfg != nil && cfg.Model != nil {
		var b strings.Builder
		b.WriteString("Columns:\n")
		for i, c := range rec.Columns {
			fmt.Fprintf(&b, "- %s (%s)\n", c.Name, columnType(rec, i))
		}
		if x != "" {
			fmt.Fprintf(&b, "x is fixed to %s.\n", x)
		}
		if y != "" {
			fmt.Fprintf(&b, "y is fixed to %s.\n", y)
		}

		reply, err := cfg.Model.CompleteOnce(ctx, []model.Message{
			model.SystemMessage(axisPrompt),
			model.NewMessage(model.RoleUser, b.String(), b.String()),
		})
		if err == nil {
			mx, my := parseAxes(reply)
			if x == "" && rec.ColumnIndex(mx) >= 0 {
				x = mx
			}
			if y == "" && rec.ColumnIndex(my) >= 0 {
				y = my
			}
		} else {
			p.logger.Debug("axis selection failed", zap.Error(err))
		}
	}

	for i, c := range rec.Columns {
		typ := columnType(rec, i)
		if x == "" && typ == storage.TypeString {
			x = c.Name
		}
		if y == "" && isNumericType(typ) && c.Name != x {
			y = c.Name
		}
	}
	if x == "" {
		for _, c := range rec.Columns {
			if c.Name != y {
				x = c.Name
				break
			}
		}
	}
	return x, y
}

func parseAxes(reply string) (string, string) {
	start := strings.IndexByte(reply, '{')
	end := strings.LastIndexByte(reply, '}')
	if start < 0 || end < start {
		return "", ""
	}
	var axes struct {
		X string `json:"x"`
		Y string `json:"y"`
	}
	if err := json.Unmarshal([]byte(reply[start:end+1]), &axes); err != nil {
		return "", ""
	}
	return axes.X, axes.Y
}
