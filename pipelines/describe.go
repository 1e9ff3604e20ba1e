package pipelines

import (
	"context"
	"fmt"
	"math"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"datachat/datastore"
	"datachat/pipeline"
)

// maxStatWorkers bounds the columns summarized at once.
const maxStatWorkers = 4

type DescribeData struct {
	logger *zap.Logger
}

func NewDescribeData(logger *zap.Logger) *DescribeData {
	return &DescribeData{logger: orNop(logger)}
}

func (p *DescribeData) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:        pipeline.DescribeData,
		Description: "Summarize fetched data column by column: type, non-null and distinct counts, and min/max/mean for numbers.",
		Inputs: []pipeline.Input{
			{Name: "data_id", Type: pipeline.TypeString, Description: "id of the fetched data; defaults to the current dataset"},
		},
	}
}

type ColumnStats struct {
	Name     string   `json:"name"`
	Type     string   `json:"type"`
	NonNull  int      `json:"non_null"`
	Distinct int      `json:"distinct"`
	Min      *float64 `json:"min,omitempty"`
	Max      *float64 `json:"max,omitempty"`
	Mean     *float64 `json:"mean,omitempty"`
}

type describePayload struct {
	DataID         string        `json:"data_id"`
	RowsAnalyzed   int           `json:"rows_analyzed"`
	TotalAvailable int           `json:"total_available"`
	Columns        []ColumnStats `json:"columns"`
}

func (p *DescribeData) Run(ctx context.Context, actions pipeline.Actions, params pipeline.Params, cfg *pipeline.AgentConfig) pipeline.Record {
	rec, err := resolveRecord(actions, params)
	if err != nil {
		return pipeline.Failure(pipeline.DescribeData, err.Error())
	}

	progress := startProgress(actions, fmt.Sprintf("Describing %d columns…", len(rec.Columns)))
	defer actions.RemoveMessage(progress)

	stats := make([]ColumnStats, len(rec.Columns))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(maxStatWorkers)
	for i := range rec.Columns {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			stats[i] = describeColumn(rec, i)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return pipeline.Failure(pipeline.DescribeData, err.Error())
	}

	p.logger.Debug("described", zap.String("data_id", rec.ID), zap.Int("columns", len(stats)))
	msg := fmt.Sprintf("Statistics cover the %d loaded rows.", rec.CurrentlyLoaded)
	if rec.CurrentlyLoaded < rec.TotalAvailable {
		msg = fmt.Sprintf("Statistics cover the %d loaded rows of %d.", rec.CurrentlyLoaded, rec.TotalAvailable)
	}
	return pipeline.Success(pipeline.DescribeData, describePayload{
		DataID:         rec.ID,
		RowsAnalyzed:   len(rec.Rows),
		TotalAvailable: rec.TotalAvailable,
		Columns:        stats,
	}, msg)
}

func describeColumn(rec datastore.Record, i int) ColumnStats {
	st := ColumnStats{Name: rec.Columns[i].Name, Type: columnType(rec, i)}
	numeric := isNumericType(st.Type)

	seen := make(map[string]struct{})
	var sum float64
	var n int
	lo, hi := math.Inf(1), math.Inf(-1)

	for _, row := range rec.Rows {
		if i >= len(row) || row[i] == nil {
			continue
		}
		st.NonNull++
		seen[fmt.Sprint(row[i])] = struct{}{}

		if !numeric {
			continue
		}
		if f, ok := toFloat(row[i]); ok {
			sum += f
			n++
			lo = math.Min(lo, f)
			hi = math.Max(hi, f)
		}
	}
	st.Distinct = len(seen)

	if n > 0 {
		mean := sum / float64(n)
		st.Min, st.Max, st.Mean = &lo, &hi, &mean
	}
	return st
}
