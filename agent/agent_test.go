package agent

import (
	"context"
	"errors"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"datachat/datastore"
	"datachat/model"
	"datachat/pipeline"
	"datachat/provider/testutil"
	"datachat/stream"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

const fetchCall = "<tool_call>\nname: fetch_data\nparameters: {\"query\": \"sales for Q1\"}\n</tool_call>"

// countingPipeline records every run and stores a small record.
type countingPipeline struct {
	name pipeline.Name
	runs atomic.Int32
	last pipeline.Params
	mu   sync.Mutex
}

func (p *countingPipeline) Descriptor() pipeline.Descriptor {
	return pipeline.Descriptor{
		Name:        p.name,
		Description: "test pipeline",
		Inputs:      []pipeline.Input{{Name: "query", Type: pipeline.TypeString, Required: true}},
	}
}

func (p *countingPipeline) Run(ctx context.Context, actions pipeline.Actions, params pipeline.Params, cfg *pipeline.AgentConfig) pipeline.Record {
	p.runs.Add(1)
	p.mu.Lock()
	p.last = params
	p.mu.Unlock()

	rec := actions.SetFetchedData(datastore.Record{
		Columns: []datastore.Column{{Name: "region", Type: "string"}, {Name: "total", Type: "integer"}},
		Rows:    [][]any{{"north", int64(10)}, {"south", int64(7)}, {"east", int64(3)}},
		Source:  datastore.Source{Type: datastore.SourceSQLite, Dataset: "sales"},
	})
	actions.SetCurrentDataset(rec.ID)
	return pipeline.Success(p.name, map[string]any{"data_id": rec.ID}, "Loaded 3 rows.")
}

func newTestAgent(t *testing.T, provider model.Provider, pipes ...pipeline.Pipeline) *Agent {
	t.Helper()
	a, err := New(Config{
		AgentConfig: pipeline.AgentConfig{
			Name:                  "test",
			SystemPrompt:          "You analyse data.",
			Model:                 provider,
			MaxRowsExposedToModel: 2,
			IterationCeiling:      DefaultIterationCeiling,
		},
		Pipelines: pipes,
	})
	require.NoError(t, err)
	return a
}

func roles(msgs []model.Message) []model.Role {
	out := make([]model.Role, len(msgs))
	for i, m := range msgs {
		out[i] = m.Role
	}
	return out
}

func TestNewRejectsBadConfig(t *testing.T) {
	provider := testutil.NewMockProvider("m")

	_, err := New(Config{AgentConfig: pipeline.AgentConfig{IterationCeiling: 2}})
	assert.Error(t, err)

	_, err = New(Config{AgentConfig: pipeline.AgentConfig{Model: provider}})
	assert.Error(t, err)

	_, err = New(Config{AgentConfig: pipeline.AgentConfig{Model: provider, IterationCeiling: -1}})
	assert.Error(t, err)

	dup := &countingPipeline{name: pipeline.FetchData}
	_, err = New(Config{
		AgentConfig: pipeline.AgentConfig{Model: provider, IterationCeiling: 2},
		Pipelines:   []pipeline.Pipeline{dup, dup},
	})
	assert.ErrorIs(t, err, pipeline.ErrDuplicate)
}

func TestSingleToolRoundTrip(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		[]string{"Let me fetch that.\n<tool_", "call>\nname: fetch_data\nparameters: {query: \"sales for Q1\"}\n</tool_call>"},
		[]string{"North led Q1 ", "with 10."},
	)
	fetch := &countingPipeline{name: pipeline.FetchData}
	sess := newTestAgent(t, provider, fetch).NewSession()

	sum := sess.Send(context.Background(), "fetch sales for Q1")
	require.NoError(t, sum.Err)
	assert.Equal(t, 1, sum.Invocations)
	assert.Equal(t, 1, sum.Iterations)
	assert.False(t, sum.Final)
	assert.EqualValues(t, 1, fetch.runs.Load())
	assert.Equal(t, "sales for Q1", fetch.last["query"])

	msgs := sess.Messages()
	require.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant, model.RolePipeline, model.RoleAssistant}, roles(msgs))
	assert.Equal(t, "Let me fetch that.", strings.TrimSpace(msgs[1].Display))
	assert.Contains(t, msgs[1].Raw, "<tool_call>")
	assert.Equal(t, string(pipeline.StatusSuccess), msgs[2].Status)
	assert.Contains(t, msgs[2].Display, "fetch_data")
	assert.Equal(t, "North led Q1 with 10.", msgs[3].Display)
	for _, m := range msgs {
		assert.False(t, m.Streaming)
	}

	calls := provider.Calls()
	require.Len(t, calls, 2)
	second := calls[1]
	require.Len(t, second, 4, "system plus user, assistant and pipeline messages")
	assert.Equal(t, model.RoleSystem, second[0].Role)
	assert.Equal(t, model.RolePipeline, second[3].Role)
	assert.Contains(t, second[3].Raw, `"tool":"fetch_data"`)
	assert.Contains(t, second[0].Raw, "current_dataset: "+sess.CurrentDataset())
}

func TestMalformedDirective(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		[]string{"<tool_call>\nname: fetch_data\nparameters: {query: \"x\",, }\n</tool_call>"},
	)
	fetch := &countingPipeline{name: pipeline.FetchData}
	sess := newTestAgent(t, provider, fetch).NewSession()

	sum := sess.Send(context.Background(), "fetch")
	require.NoError(t, sum.Err)
	assert.Zero(t, sum.Invocations)
	assert.Zero(t, sum.Iterations)
	assert.Zero(t, fetch.runs.Load())
	assert.Len(t, provider.Calls(), 1)

	msgs := sess.Messages()
	last := msgs[len(msgs)-1]
	assert.Equal(t, model.RolePipeline, last.Role)
	assert.Equal(t, model.KindError, last.Kind)
	assert.True(t, strings.HasPrefix(last.Display, "I couldn't understand that tool request"))
}

func TestBoundedRecursion(t *testing.T) {
	provider := testutil.NewScriptedProvider([]string{"Again.\n" + fetchCall})
	fetch := &countingPipeline{name: pipeline.FetchData}
	sess := newTestAgent(t, provider, fetch).NewSession()

	sum := sess.Send(context.Background(), "loop forever")
	require.NoError(t, sum.Err)
	assert.Equal(t, DefaultIterationCeiling+1, sum.Invocations)
	assert.Equal(t, DefaultIterationCeiling, sum.Iterations)
	assert.True(t, sum.Final)
	assert.EqualValues(t, DefaultIterationCeiling+1, fetch.runs.Load())

	calls := provider.Calls()
	require.Len(t, calls, DefaultIterationCeiling+2)
	final := calls[len(calls)-1][0].Raw
	assert.Contains(t, final, "Tools are disabled")
	assert.NotContains(t, final, "### fetch_data")
}

func TestOnlyFirstDirectiveDispatched(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		[]string{fetchCall + "\n" + strings.Replace(fetchCall, "fetch_data", "describe_data", 1)},
		[]string{"Done."},
	)
	fetch := &countingPipeline{name: pipeline.FetchData}
	describe := &countingPipeline{name: pipeline.DescribeData}
	sess := newTestAgent(t, provider, fetch, describe).NewSession()

	sum := sess.Send(context.Background(), "both")
	assert.Equal(t, 1, sum.Invocations)
	assert.EqualValues(t, 1, fetch.runs.Load())
	assert.Zero(t, describe.runs.Load())
}

func TestUnknownToolEndsTurn(t *testing.T) {
	provider := testutil.NewScriptedProvider(
		[]string{strings.Replace(fetchCall, "fetch_data", "delete_everything", 1)},
	)
	sess := newTestAgent(t, provider, &countingPipeline{name: pipeline.FetchData}).NewSession()

	sum := sess.Send(context.Background(), "hi")
	require.NoError(t, sum.Err)
	assert.Zero(t, sum.Invocations)
	assert.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant}, roles(sess.Messages()))
}

func TestStreamErrorKeepsPartialReply(t *testing.T) {
	provider := testutil.NewMockProvider("m")
	provider.StreamFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		if err := cb("Partial ans"); err != nil {
			return err
		}
		return errors.New("connection reset")
	}
	sess := newTestAgent(t, provider).NewSession()

	var finished []Summary
	sess.OnFinished(func(s Summary) { finished = append(finished, s) })

	sum := sess.Send(context.Background(), "hi")
	require.Error(t, sum.Err)
	require.Len(t, finished, 1)
	assert.Equal(t, sum.Err, finished[0].Err)

	msgs := sess.Messages()
	require.Len(t, msgs, 3)
	assert.Equal(t, "Partial ans", msgs[1].Display)
	assert.False(t, msgs[1].Streaming)
	assert.False(t, msgs[1].InHistory())
	assert.Equal(t, model.KindError, msgs[2].Kind)
	assert.Contains(t, msgs[2].Display, "connection reset")
}

func TestIdleTimeout(t *testing.T) {
	provider := testutil.NewMockProvider("m")
	provider.StreamFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		<-ctx.Done()
		return ctx.Err()
	}
	a, err := New(Config{AgentConfig: pipeline.AgentConfig{
		Model:             provider,
		IterationCeiling:  2,
		StreamIdleTimeout: 20 * time.Millisecond,
	}})
	require.NoError(t, err)
	sess := a.NewSession()

	sum := sess.Send(context.Background(), "hi")
	assert.ErrorIs(t, sum.Err, stream.ErrIdleTimeout)

	msgs := sess.Messages()
	require.Equal(t, []model.Role{model.RoleUser, model.RoleAssistant}, roles(msgs))
	assert.Equal(t, model.KindError, msgs[1].Kind)
}

func TestCancelAndBusy(t *testing.T) {
	started := make(chan struct{})
	provider := testutil.NewMockProvider("m")
	provider.StreamFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}
	sess := newTestAgent(t, provider).NewSession()

	result := make(chan Summary, 1)
	go func() { result <- sess.Send(context.Background(), "slow") }()
	<-started

	assert.True(t, sess.Running())
	_, err := sess.TrySend(context.Background(), "again")
	assert.ErrorIs(t, err, ErrBusy)

	sess.Cancel()
	sum := <-result
	assert.ErrorIs(t, sum.Err, context.Canceled)
	assert.False(t, sess.Running())

	msgs := sess.Messages()
	assert.Equal(t, "Cancelled.", msgs[len(msgs)-1].Display)
}

func TestTurnTimeout(t *testing.T) {
	provider := testutil.NewMockProvider("m")
	provider.StreamFunc = func(ctx context.Context, _ []model.Message, cb model.StreamCallback) error {
		<-ctx.Done()
		return ctx.Err()
	}
	a, err := New(Config{AgentConfig: pipeline.AgentConfig{
		Model:            provider,
		IterationCeiling: 2,
		TurnTimeout:      20 * time.Millisecond,
	}})
	require.NoError(t, err)

	sum := a.NewSession().Send(context.Background(), "hi")
	assert.ErrorIs(t, sum.Err, context.DeadlineExceeded)
}

func TestUpdateMessageMerges(t *testing.T) {
	sess := newTestAgent(t, testutil.NewMockProvider("m")).NewSession()

	var changes atomic.Int32
	sess.OnChange(func() { changes.Add(1) })

	id := sess.NextMessageID()
	sess.AddMessage(model.Message{ID: id, Role: model.RolePipeline, Display: "Working", Kind: model.KindProgress, Streaming: true})
	sess.UpdateMessage(model.Message{ID: id, Status: "success"})

	msgs := sess.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "Working", msgs[0].Display)
	assert.Equal(t, "success", msgs[0].Status)
	assert.Equal(t, model.KindProgress, msgs[0].Kind)
	assert.False(t, msgs[0].Streaming)
	assert.False(t, msgs[0].Timestamp.IsZero())

	sess.UpdateMessage(model.Message{ID: "missing", Display: "x"})
	sess.RemoveMessage(id)
	sess.RemoveMessage(id)
	assert.Empty(t, sess.Messages())
	assert.EqualValues(t, 3, changes.Load())
}

func TestAmbientExposesCappedRows(t *testing.T) {
	provider := testutil.NewScriptedProvider([]string{fetchCall}, []string{"ok"})
	sess := newTestAgent(t, provider, &countingPipeline{name: pipeline.FetchData}).NewSession()
	sess.Send(context.Background(), "go")

	system := provider.Calls()[1][0].Raw
	assert.Contains(t, system, `"north"`)
	assert.Contains(t, system, `"south"`)
	assert.NotContains(t, system, `"east"`)
}
