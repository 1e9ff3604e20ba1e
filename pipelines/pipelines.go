// Package pipelines holds the built-in data pipelines: fetching rows from the
// dataset database, paging, describing, transforming and charting them.
package pipelines

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
	"time"

	"go.uber.org/zap"

	"datachat/datastore"
	"datachat/model"
	"datachat/pipeline"
	"datachat/storage"
)

const (
	defaultFetchLimit  = 100
	defaultPreviewRows = 20
)

// Datasets is the dataset database as the fetch pipelines use it.
type Datasets interface {
	List(ctx context.Context) ([]storage.DatasetInfo, error)
	Schema(ctx context.Context, name string) (storage.DatasetInfo, error)
	Query(ctx context.Context, query string, limit int) (storage.QueryResult, error)
	Count(ctx context.Context, query string) (int, error)
}

// Builtin returns every built-in pipeline in catalog order.
func Builtin(datasets Datasets, logger *zap.Logger) []pipeline.Pipeline {
	return []pipeline.Pipeline{
		NewFetchData(datasets, logger),
		NewFetchMore(datasets, logger),
		NewDescribeData(logger),
		NewTransformData(logger),
		NewGenerateChart(logger),
	}
}

func orNop(logger *zap.Logger) *zap.Logger {
	if logger == nil {
		return zap.NewNop()
	}
	return logger
}

// dataPayload is the result shape shared by pipelines that produce a
// fetched-data record.
type dataPayload struct {
	DataID         string             `json:"data_id"`
	Columns        []datastore.Column `json:"columns"`
	RowsLoaded     int                `json:"rows_loaded"`
	TotalAvailable int                `json:"total_available"`
	Preview        [][]any            `json:"preview"`
}

func newDataPayload(rec datastore.Record, cfg *pipeline.AgentConfig) dataPayload {
	p := datastore.NewPreview(rec, previewRows(cfg))
	return dataPayload{
		DataID:         rec.ID,
		Columns:        rec.Columns,
		RowsLoaded:     rec.CurrentlyLoaded,
		TotalAvailable: rec.TotalAvailable,
		Preview:        p.Rows,
	}
}

func previewRows(cfg *pipeline.AgentConfig) int {
	if cfg == nil || cfg.MaxRowsExposedToModel <= 0 {
		return defaultPreviewRows
	}
	return cfg.MaxRowsExposedToModel
}

var errNoData = errors.New("no data has been fetched yet; call fetch_data first")

// resolveRecord finds the record named by the data_id parameter, falling
// back to the session's current dataset.
func resolveRecord(actions pipeline.Actions, params pipeline.Params) (datastore.Record, error) {
	id, _ := params.String("data_id")
	if id == "" {
		id = actions.CurrentDataset()
	}
	if id == "" {
		return datastore.Record{}, errNoData
	}
	rec, ok := actions.FetchedData(id)
	if !ok {
		return datastore.Record{}, fmt.Errorf("no fetched data with id %q", id)
	}
	return rec, nil
}

// startProgress adds a transient progress note and returns its id.
func startProgress(actions pipeline.Actions, text string) string {
	id := actions.NextMessageID()
	actions.AddMessage(model.Message{
		ID:        id,
		Role:      model.RolePipeline,
		Display:   text,
		Kind:      model.KindProgress,
		Timestamp: time.Now(),
	})
	return id
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int64:
		return float64(n), true
	case float64:
		return n, !math.IsNaN(n)
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case string:
		f, err := strconv.ParseFloat(n, 64)
		return f, err == nil
	}
	return 0, false
}

func isNumericType(typ string) bool {
	return typ == storage.TypeInteger || typ == storage.TypeNumber
}

// columnType returns the declared type of column i, or one inferred from
// the values when the declaration is missing.
func columnType(rec datastore.Record, i int) string {
	if t := rec.Columns[i].Type; t != "" && t != storage.TypeUnknown {
		return t
	}
	for _, row := range rec.Rows {
		if i >= len(row) || row[i] == nil {
			continue
		}
		switch row[i].(type) {
		case int, int64:
			return storage.TypeInteger
		case float64, json.Number:
			return storage.TypeNumber
		case bool:
			return storage.TypeBoolean
		default:
			return storage.TypeString
		}
	}
	return storage.TypeUnknown
}
