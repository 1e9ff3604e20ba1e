package pipeline

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"datachat/directive"
)

type funcPipeline struct {
	desc Descriptor
	run  func(ctx context.Context, actions Actions, params Params, cfg *AgentConfig) Record
	runs int
}

func (f *funcPipeline) Descriptor() Descriptor { return f.desc }

func (f *funcPipeline) Run(ctx context.Context, actions Actions, params Params, cfg *AgentConfig) Record {
	f.runs++
	return f.run(ctx, actions, params, cfg)
}

func echo(name Name) *funcPipeline {
	return &funcPipeline{
		desc: Descriptor{Name: name, Description: "echo"},
		run: func(_ context.Context, _ Actions, params Params, _ *AgentConfig) Record {
			return Success(name, map[string]any(params), "")
		},
	}
}

func TestNewRegistryDuplicate(t *testing.T) {
	_, err := NewRegistry(nil, echo(FetchData), echo(DescribeData), echo(FetchData))
	require.ErrorIs(t, err, ErrDuplicate)
	assert.Contains(t, err.Error(), "fetch_data")
}

func TestNewRegistryEmptyName(t *testing.T) {
	_, err := NewRegistry(nil, echo(""))
	require.Error(t, err)
}

func TestRegistryOrder(t *testing.T) {
	r, err := NewRegistry(nil, echo(TransformData), echo(FetchData), echo(DescribeData))
	require.NoError(t, err)

	var names []Name
	for _, d := range r.Descriptors() {
		names = append(names, d.Name)
	}
	assert.Equal(t, []Name{TransformData, FetchData, DescribeData}, names)
	assert.Equal(t, []string{"describe_data", "fetch_data", "transform_data"}, r.Names())

	_, ok := r.Get(FetchData)
	assert.True(t, ok)
	_, ok = r.Get("nope")
	assert.False(t, ok)
}

func TestDispatchHit(t *testing.T) {
	p := echo(FetchData)
	r, err := NewRegistry(nil, p)
	require.NoError(t, err)

	rec, ok := r.Dispatch(context.Background(), nil, directive.Directive{
		Name:       "fetch_data",
		Parameters: map[string]any{"query": "Q1 sales"},
	}, &AgentConfig{})

	require.True(t, ok)
	assert.Equal(t, 1, p.runs)
	assert.Equal(t, StatusSuccess, rec.Status)
	assert.Equal(t, map[string]any{"query": "Q1 sales"}, rec.Payload)
}

func TestDispatchMissLogsSuggestion(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	p := echo(FetchData)
	r, err := NewRegistry(zap.New(core), p)
	require.NoError(t, err)

	rec, ok := r.Dispatch(context.Background(), nil, directive.Directive{Name: "fetchdata"}, &AgentConfig{})

	assert.False(t, ok)
	assert.Equal(t, Record{}, rec)
	assert.Equal(t, 0, p.runs)

	entries := logs.FilterMessage("dispatch miss").All()
	require.Len(t, entries, 1)
	assert.Equal(t, "fetch_data", entries[0].ContextMap()["closest"])
}

func TestDispatchRecoversPanic(t *testing.T) {
	p := &funcPipeline{
		desc: Descriptor{Name: GenerateChart},
		run: func(context.Context, Actions, Params, *AgentConfig) Record {
			panic("nil map write")
		},
	}
	r, err := NewRegistry(nil, p)
	require.NoError(t, err)

	rec, ok := r.Dispatch(context.Background(), nil, directive.Directive{Name: "generate_chart"}, &AgentConfig{})

	require.True(t, ok)
	assert.Equal(t, StatusError, rec.Status)
	assert.Equal(t, GenerateChart, rec.Tool)
}

func TestDispatchFillsToolAndStatus(t *testing.T) {
	p := &funcPipeline{
		desc: Descriptor{Name: DescribeData},
		run:  func(context.Context, Actions, Params, *AgentConfig) Record { return Record{Payload: 1} },
	}
	r, err := NewRegistry(nil, p)
	require.NoError(t, err)

	rec, ok := r.Dispatch(context.Background(), nil, directive.Directive{Name: "describe_data"}, &AgentConfig{})
	require.True(t, ok)
	assert.Equal(t, DescribeData, rec.Tool)
	assert.Equal(t, StatusSuccess, rec.Status)
}

func TestRecordJSON(t *testing.T) {
	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(Failure(FetchData, "no such table").JSON()), &decoded))
	assert.Equal(t, map[string]any{"tool": "fetch_data", "status": "error", "message": "no such table"}, decoded)

	bad := Success(FetchData, map[string]any{"ch": make(chan int)}, "")
	require.NoError(t, json.Unmarshal([]byte(bad.JSON()), &decoded))
	assert.Equal(t, "error", decoded["status"])
}

func TestParams(t *testing.T) {
	p := Params{
		"s":      "sales",
		"i":      int64(10),
		"f":      float64(3),
		"frac":   2.5,
		"numstr": " 42 ",
		"b":      true,
		"bs":     "false",
		"arr":    []any{"a", "b"},
		"csv":    "a, b ,,c",
		"mixed":  []any{"a", 1},
		"objs":   []any{map[string]any{"op": "sort"}},
		"null":   nil,
	}

	s, ok := p.String("s")
	assert.True(t, ok)
	assert.Equal(t, "sales", s)

	for key, want := range map[string]int{"i": 10, "f": 3, "numstr": 42} {
		got, ok := p.Int(key)
		assert.True(t, ok, key)
		assert.Equal(t, want, got, key)
	}
	_, ok = p.Int("frac")
	assert.False(t, ok)

	b, ok := p.Bool("b")
	assert.True(t, ok && b)
	b, ok = p.Bool("bs")
	assert.True(t, ok)
	assert.False(t, b)

	arr, ok := p.StringSlice("arr")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b"}, arr)
	csv, ok := p.StringSlice("csv")
	assert.True(t, ok)
	assert.Equal(t, []string{"a", "b", "c"}, csv)
	_, ok = p.StringSlice("mixed")
	assert.False(t, ok)

	objs, ok := p.Objects("objs")
	assert.True(t, ok)
	assert.Equal(t, "sort", objs[0]["op"])

	assert.False(t, p.Has("null"))
	assert.False(t, p.Has("missing"))

	err := p.Require("s", "null", "missing")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "null, missing")
	assert.NoError(t, p.Require("s", "i"))
}
