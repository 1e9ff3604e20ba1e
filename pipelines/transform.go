package pipelines

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"strings"

	"go.uber.org/zap"

	"datachat/datastore"
	"datachat/pipeline"
)

type TransformData struct {
	logger *zap.Logger
}

func NewTransformData(logger *zap.Logger) *TransformData {
	return &TransformData{logger: orNop(logger)}
}

func (p *TransformData) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name: pipeline.TransformData,
		Description: "Derive new data from fetched data by applying operations in order. Each operation is an object with an op field: " +
			`{op: "filter", column, operator ("=", "!=", ">", ">=", "<", "<=", "contains"), value}, ` +
			`{op: "sort", column, descending}, {op: "select", columns}, {op: "limit", count}.`,
		Inputs: []pipeline.Input{
			{Name: "operations", Type: pipeline.TypeArray, Description: "operations to apply in order", Required: true},
			{Name: "data_id", Type: pipeline.TypeString, Description: "id of the input data; defaults to the current dataset"},
		},
	}
}

func (p *TransformData) Run(ctx context.Context, actions pipeline.Actions, params pipeline.Params, cfg *pipeline.AgentConfig) pipeline.Record {
	if err := params.Require("operations"); err != nil {
		return pipeline.Failure(pipeline.TransformData, err.Error())
	}
	ops, ok := params.Objects("operations")
	if !ok || len(ops) == 0 {
		return pipeline.Failure(pipeline.TransformData, "operations must be a non-empty array of objects")
	}
	parent, err := resolveRecord(actions, params)
	if err != nil {
		return pipeline.Failure(pipeline.TransformData, err.Error())
	}

	frame := table{columns: slices.Clone(parent.Columns), rows: slices.Clone(parent.Rows)}
	applied := make([]any, 0, len(ops))
	for i, op := range ops {
		if err := ctx.Err(); err != nil {
			return pipeline.Failure(pipeline.TransformData, err.Error())
		}
		if err := frame.apply(op); err != nil {
			return pipeline.Failure(pipeline.TransformData, fmt.Sprintf("operation %d: %v", i+1, err))
		}
		applied = append(applied, op)
	}

	rec := actions.SetFetchedData(datastore.Record{
		Columns: frame.columns,
		Rows:    frame.rows,
		Source:  datastore.Source{Type: datastore.SourceDerived, Dataset: parent.Source.Dataset},
		Provenance: map[string]any{
			"parent":      parent.ID,
			"parent_hash": parent.ContentHash,
			"operations":  applied,
		},
	})
	actions.SetCurrentDataset(rec.ID)

	p.logger.Debug("transformed", zap.String("parent", parent.ID), zap.String("data_id", rec.ID), zap.Int("rows", len(frame.rows)))
	return pipeline.Success(pipeline.TransformData, newDataPayload(rec, cfg),
		fmt.Sprintf("Derived %d rows from %d.", len(frame.rows), len(parent.Rows)))
}

type table struct {
	columns []datastore.Column
	rows    [][]any
}

func (t *table) index(name string) (int, error) {
	i := slices.IndexFunc(t.columns, func(c datastore.Column) bool { return c.Name == name })
	if i < 0 {
		return -1, fmt.Errorf("unknown column %q", name)
	}
	return i, nil
}

func (t *table) apply(op map[string]any) error {
	params := pipeline.Params(op)
	kind, _ := params.String("op")

	switch kind {
	case "filter":
		return t.filter(params)
	case "sort":
		return t.sort(params)
	case "select":
		return t.selectColumns(params)
	case "limit":
		n, ok := params.Int("count")
		if !ok || n < 0 {
			return fmt.Errorf("limit needs a non-negative count")
		}
		if n < len(t.rows) {
			t.rows = t.rows[:n]
		}
		return nil
	case "":
		return fmt.Errorf("missing op")
	}
	return fmt.Errorf("unsupported op %q", kind)
}

func (t *table) filter(params pipeline.Params) error {
	if err := params.Require("column", "value"); err != nil {
		return err
	}
	name, _ := params.String("column")
	col, err := t.index(name)
	if err != nil {
		return err
	}
	operator, ok := params.String("operator")
	if !ok {
		operator = "="
	}
	want := params["value"]

	var keep func(v any) bool
	switch operator {
	case "=", "==":
		keep = func(v any) bool { return compareValues(v, want) == 0 }
	case "!=", "<>":
		keep = func(v any) bool { return compareValues(v, want) != 0 }
	case ">":
		keep = func(v any) bool { return v != nil && compareValues(v, want) > 0 }
	case ">=":
		keep = func(v any) bool { return v != nil && compareValues(v, want) >= 0 }
	case "<":
		keep = func(v any) bool { return v != nil && compareValues(v, want) < 0 }
	case "<=":
		keep = func(v any) bool { return v != nil && compareValues(v, want) <= 0 }
	case "contains":
		needle := strings.ToLower(fmt.Sprint(want))
		keep = func(v any) bool { return v != nil && strings.Contains(strings.ToLower(fmt.Sprint(v)), needle) }
	default:
		return fmt.Errorf("unsupported operator %q", operator)
	}

	out := make([][]any, 0, len(t.rows))
	for _, row := range t.rows {
		if col < len(row) && keep(row[col]) {
			out = append(out, row)
		}
	}
	t.rows = out
	return nil
}

func (t *table) sort(params pipeline.Params) error {
	if err := params.Require("column"); err != nil {
		return err
	}
	name, _ := params.String("column")
	col, err := t.index(name)
	if err != nil {
		return err
	}
	desc, _ := params.Bool("descending")

	rows := slices.Clone(t.rows)
	slices.SortStableFunc(rows, func(a, b []any) int {
		av, bv := cell(a, col), cell(b, col)
		// nulls and missing cells sort last either way
		switch {
		case av == nil && bv == nil:
			return 0
		case av == nil:
			return 1
		case bv == nil:
			return -1
		}
		c := compareValues(av, bv)
		if desc {
			return -c
		}
		return c
	})
	t.rows = rows
	return nil
}

func cell(row []any, col int) any {
	if col < len(row) {
		return row[col]
	}
	return nil
}

func (t *table) selectColumns(params pipeline.Params) error {
	names, ok := params.StringSlice("columns")
	if !ok || len(names) == 0 {
		return fmt.Errorf("select needs a non-empty columns list")
	}
	idx := make([]int, len(names))
	cols := make([]datastore.Column, len(names))
	for i, name := range names {
		j, err := t.index(name)
		if err != nil {
			return err
		}
		idx[i] = j
		cols[i] = t.columns[j]
	}

	rows := make([][]any, len(t.rows))
	for r, row := range t.rows {
		out := make([]any, len(idx))
		for i, j := range idx {
			if j < len(row) {
				out[i] = row[j]
			}
		}
		rows[r] = out
	}
	t.columns, t.rows = cols, rows
	return nil
}

// compareValues orders two cell values numerically when both are numbers
// and by their text otherwise.
func compareValues(a, b any) int {
	if a == nil || b == nil {
		switch {
		case a == nil && b == nil:
			return 0
		case a == nil:
			return -1
		default:
			return 1
		}
	}
	af, aok := toFloat(a)
	bf, bok := toFloat(b)
	if aok && bok {
		return cmp.Compare(af, bf)
	}
	if ab, ok := a.(bool); ok {
		if bb, ok := b.(bool); ok {
			return cmp.Compare(boolRank(ab), boolRank(bb))
		}
	}
	return strings.Compare(fmt.Sprint(a), fmt.Sprint(b))
}

func boolRank(b bool) int {
	if b {
		return 1
	}
	return 0
}
