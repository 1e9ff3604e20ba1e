package pipelines

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"datachat/datastore"
	"datachat/model"
	"datachat/pipeline"
	"datachat/storage"
)

type FetchData struct {
	datasets Datasets
	logger   *zap.Logger
}

func NewFetchData(datasets Datasets, logger *zap.Logger) *FetchData {
	return &FetchData{datasets: datasets, logger: orNop(logger)}
}

func (p *FetchData) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:        pipeline.FetchData,
		Description: "Load rows from the dataset database. Describe what you need in query; the SQL is written for you unless you pass sql.",
		Inputs: []pipeline.Input{
			{Name: "query", Type: pipeline.TypeString, Description: "what data to fetch, in plain words", Required: true},
			{Name: "dataset", Type: pipeline.TypeString, Description: "table to read from, if known"},
			{Name: "sql", Type: pipeline.TypeString, Description: "a single read-only SQLite SELECT"},
			{Name: "limit", Type: pipeline.TypeInteger, Description: "maximum rows to load"},
		},
	}
}

func (p *FetchData) Run(ctx context.Context, actions pipeline.Actions, params pipeline.Params, cfg *pipeline.AgentConfig) pipeline.Record {
	if err := params.Require("query"); err != nil {
		return pipeline.Failure(pipeline.FetchData, err.Error())
	}
	query, _ := params.String("query")
	dataset, _ := params.String("dataset")
	sqlText, _ := params.String("sql")

	limit, ok := params.Int("limit")
	if !ok || limit <= 0 {
		limit = cfg.Fetch.DefaultLimit
	}
	if limit <= 0 {
		limit = defaultFetchLimit
	}

	progress := startProgress(actions, "Fetching data…")
	defer actions.RemoveMessage(progress)

	if strings.TrimSpace(sqlText) == "" {
		generated, err := p.writeSQL(ctx, cfg, query, dataset)
		if err != nil {
			p.logger.Warn("sql generation failed", zap.String("query", query), zap.Error(err))
			return pipeline.Failure(pipeline.FetchData, "could not write a query: "+err.Error())
		}
		sqlText = generated
	}

	total, err := p.datasets.Count(ctx, sqlText)
	if err != nil {
		p.logger.Warn("fetch count failed", zap.String("sql", sqlText), zap.Error(err))
		return pipeline.Failure(pipeline.FetchData, err.Error())
	}
	res, err := p.datasets.Query(ctx, sqlText, limit)
	if err != nil {
		p.logger.Warn("fetch failed", zap.String("sql", sqlText), zap.Error(err))
		return pipeline.Failure(pipeline.FetchData, err.Error())
	}

	rec := actions.SetFetchedData(datastore.Record{
		Columns:        res.Columns,
		Rows:           res.Rows,
		Source:         datastore.Source{Type: datastore.SourceSQLite, Dataset: dataset, Query: sqlText},
		TotalAvailable: total,
	})
	actions.SetCurrentDataset(rec.ID)

	p.logger.Debug("fetched", zap.String("data_id", rec.ID), zap.Int("rows", rec.CurrentlyLoaded), zap.Int("total", total))
	return pipeline.Success(pipeline.FetchData, newDataPayload(rec, cfg),
		fmt.Sprintf("Loaded %d of %d rows.", rec.CurrentlyLoaded, rec.TotalAvailable))
}

const sqlWriterPrompt = `You translate data requests into SQLite. Reply with exactly one read-only SELECT statement and nothing else.`

// writeSQL asks the model for a query answering request over the known
// schemas.
func (p *FetchData) writeSQL(ctx context.Context, cfg *pipeline.AgentConfig, request, dataset string) (string, error) {
	if cfg.Model == nil {
		return "", errors.New("no model configured")
	}

	var infos []storage.DatasetInfo
	if dataset != "" {
		info, err := p.datasets.Schema(ctx, dataset)
		if err != nil {
			return "", err
		}
		infos = append(infos, info)
	} else {
		all, err := p.datasets.List(ctx)
		if err != nil {
			return "", err
		}
		infos = all
	}
	if len(infos) == 0 {
		return "", errors.New("no datasets have been imported")
	}

	var b strings.Builder
	b.WriteString("Tables:\n")
	for _, info := range infos {
		cols := make([]string, len(info.Columns))
		for i, c := range info.Columns {
			cols[i] = c.Name + " " + c.Type
		}
		fmt.Fprintf(&b, "- %s(%s), %d rows\n", info.Name, strings.Join(cols, ", "), info.Rows)
	}
	fmt.Fprintf(&b, "\nRequest: %s", request)

	reply, err := cfg.Model.CompleteOnce(ctx, []model.Message{
		model.SystemMessage(sqlWriterPrompt),
		model.NewMessage(model.RoleUser, b.String(), b.String()),
	})
	if err != nil {
		return "", err
	}
	sqlText := ExtractSQL(reply)
	if _, err := storage.ValidateReadOnly(sqlText); err != nil {
		return "", err
	}
	return sqlText, nil
}

// ExtractSQL pulls the statement out of a model reply, dropping a markdown
// code fence if there is one.
func ExtractSQL(reply string) string {
	s := strings.TrimSpace(reply)
	if start := strings.Index(s, "```"); start >= 0 {
		body := s[start+3:]
		if nl := strings.IndexByte(body, '\n'); nl >= 0 {
			lang := strings.TrimSpace(body[:nl])
			keyword := strings.EqualFold(lang, "select") || strings.EqualFold(lang, "with")
			if !keyword && !strings.ContainsAny(lang, " \t(") {
				body = body[nl+1:]
			}
		}
		if end := strings.Index(body, "```"); end >= 0 {
			body = body[:end]
		}
		s = body
	}
	return strings.TrimSpace(s)
}

type FetchMore struct {
	datasets Datasets
	logger   *zap.Logger
}

func NewFetchMore(datasets Datasets, logger *zap.Logger) *FetchMore {
	return &FetchMore{datasets: datasets, logger: orNop(logger)}
}

func (p *FetchMore) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:        pipeline.FetchMore,
		Description: "Load more rows for data fetched earlier. The data keeps its id.",
		Inputs: []pipeline.Input{
			{Name: "data_id", Type: pipeline.TypeString, Description: "id of the fetched data", Required: true},
			{Name: "count", Type: pipeline.TypeInteger, Description: "how many more rows to load"},
		},
	}
}

func (p *FetchMore) Run(ctx context.Context, actions pipeline.Actions, params pipeline.Params, cfg *pipeline.AgentConfig) pipeline.Record {
	rec, err := resolveRecord(actions, params)
	if err != nil {
		return pipeline.Failure(pipeline.FetchMore, err.Error())
	}
	if rec.Source.Type != datastore.SourceSQLite {
		return pipeline.Failure(pipeline.FetchMore, "only data fetched from a dataset can be extended; fetch it again instead")
	}
	if rec.CurrentlyLoaded >= rec.TotalAvailable {
		return pipeline.Success(pipeline.FetchMore, newDataPayload(rec, cfg), "All rows are already loaded.")
	}

	count, ok := params.Int("count")
	if !ok || count <= 0 {
		count = cfg.Fetch.PageSize
	}
	if count <= 0 {
		count = defaultFetchLimit
	}
	if remaining := rec.TotalAvailable - rec.CurrentlyLoaded; count > remaining {
		count = remaining
	}

	progress := startProgress(actions, "Loading more rows…")
	defer actions.RemoveMessage(progress)

	res, err := p.datasets.Query(ctx, rec.Source.Query, rec.CurrentlyLoaded+count)
	if err != nil {
		p.logger.Warn("fetch more failed", zap.String("data_id", rec.ID), zap.Error(err))
		return pipeline.Failure(pipeline.FetchMore, err.Error())
	}

	rec.Rows = res.Rows
	rec.CurrentlyLoaded = len(res.Rows)
	if rec.TotalAvailable < rec.CurrentlyLoaded {
		rec.TotalAvailable = rec.CurrentlyLoaded
	}
	stored := actions.SetFetchedData(rec)
	actions.SetCurrentDataset(stored.ID)

	return pipeline.Success(pipeline.FetchMore, newDataPayload(stored, cfg),
		fmt.Sprintf("Now %d of %d rows are loaded.", stored.CurrentlyLoaded, stored.TotalAvailable))
}
