package testutil

import (
	"context"
	"fmt"
	"sync"

	"datachat/model"
	"datachat/ollama"
)

// MockProvider implements model.Provider for testing
type MockProvider struct {
	// Configurable responses
	StreamFunc     func(ctx context.Context, messages []model.Message, callback model.StreamCallback) error
	CompleteFunc   func(ctx context.Context, messages []model.Message) (string, error)
	ListModelsFunc func(ctx context.Context) ([]ollama.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	// State
	currentModel string
}

// NewMockProvider creates a mock provider with default implementations
func NewMockProvider(modelName string) *MockProvider {
	mock := &MockProvider{
		currentModel: modelName,
	}
	mock.StreamFunc = mock.defaultStream
	mock.CompleteFunc = mock.defaultComplete
	mock.ListModelsFunc = mock.defaultListModels
	mock.PingFunc = mock.defaultPing
	return mock
}

func (m *MockProvider) defaultStream(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	if len(messages) > 0 {
		return callback("Mock response")
	}
	return nil
}

func (m *MockProvider) defaultComplete(ctx context.Context, messages []model.Message) (string, error) {
	return "Mock completion", nil
}

func (m *MockProvider) defaultListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return []ollama.ModelInfo{
		{Name: "mock-model-1", Size: 1000},
		{Name: "mock-model-2", Size: 2000},
	}, nil
}

func (m *MockProvider) defaultPing(ctx context.Context) error {
	return nil
}

func (m *MockProvider) StreamCompletion(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	return m.StreamFunc(ctx, messages, callback)
}

func (m *MockProvider) CompleteOnce(ctx context.Context, messages []model.Message) (string, error) {
	return m.CompleteFunc(ctx, messages)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return m.ListModelsFunc(ctx)
}

func (m *MockProvider) GetModel() string {
	return m.currentModel
}

func (m *MockProvider) GetDisplayName() string {
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.currentModel = model
}

func (m *MockProvider) Ping(ctx context.Context) error {
	return m.PingFunc(ctx)
}

// ScriptedProvider streams a pre-scripted chunk sequence per turn and records
// the messages it was called with. Once the script runs out, the last turn
// repeats.
type ScriptedProvider struct {
	*MockProvider

	mu    sync.Mutex
	turns [][]string
	calls [][]model.Message
}

// NewScriptedProvider creates a provider whose n-th StreamCompletion call
// emits turns[n] chunk by chunk.
func NewScriptedProvider(turns ...[]string) *ScriptedProvider {
	sp := &ScriptedProvider{
		MockProvider: NewMockProvider("scripted"),
		turns:        turns,
	}
	sp.StreamFunc = sp.stream
	return sp
}

func (sp *ScriptedProvider) stream(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	sp.mu.Lock()
	idx := len(sp.calls)
	sp.calls = append(sp.calls, append([]model.Message(nil), messages...))
	if len(sp.turns) == 0 {
		sp.mu.Unlock()
		return fmt.Errorf("scripted provider has no turns")
	}
	if idx >= len(sp.turns) {
		idx = len(sp.turns) - 1
	}
	chunks := sp.turns[idx]
	sp.mu.Unlock()

	for _, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return err
		}
		if err := callback(chunk); err != nil {
			return err
		}
	}
	return nil
}

// Calls returns the message lists passed to each StreamCompletion call.
func (sp *ScriptedProvider) Calls() [][]model.Message {
	sp.mu.Lock()
	defer sp.mu.Unlock()
	return append([][]model.Message(nil), sp.calls...)
}
