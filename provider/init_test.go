package provider

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"datachat/config"
	"datachat/ollama"
	"datachat/provider/testutil"
)

func TestFromSettings(t *testing.T) {
	tests := []struct {
		name    string
		cfg     config.ProviderConfig
		wantErr string
	}{
		{name: "ollama", cfg: config.ProviderConfig{Type: "ollama", Model: "llama3.1"}},
		{name: "case insensitive", cfg: config.ProviderConfig{Type: "OpenAI", Model: "gpt-4o-mini", APIKey: "k"}},
		{name: "anthropic", cfg: config.ProviderConfig{Type: "anthropic", APIKey: "k"}},
		{name: "missing key", cfg: config.ProviderConfig{Type: "openrouter"}, wantErr: "OpenRouter needs an API key"},
		{name: "unknown", cfg: config.ProviderConfig{Type: "bard"}, wantErr: "bard"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, err := FromSettings(tt.cfg, nil)
			if tt.wantErr != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.NotNil(t, p)
		})
	}
}

func TestDefaultBaseURL(t *testing.T) {
	assert.Equal(t, "http://localhost:11434", DefaultBaseURL(ProviderTypeOllama))
	assert.Equal(t, "https://openrouter.ai/api/v1", DefaultBaseURL(ProviderTypeOpenRouter))
	assert.Empty(t, DefaultBaseURL("other"))
}

func TestPingProvider(t *testing.T) {
	mock := testutil.NewMockProvider("llama3.1")
	msg := PingProvider(mock)().(PingProviderMsg)
	assert.NoError(t, msg.Err)
	assert.Equal(t, "llama3.1", msg.Model)

	mock.PingFunc = func(ctx context.Context) error { return errors.New("refused") }
	msg = PingProvider(mock)().(PingProviderMsg)
	assert.ErrorContains(t, msg.Err, "refused")
}

func TestAvailableModels(t *testing.T) {
	mock := testutil.NewMockProvider("m")
	mock.ListModelsFunc = func(ctx context.Context) ([]ollama.ModelInfo, error) {
		return []ollama.ModelInfo{{Name: "zeta"}, {Name: "alpha"}}, nil
	}
	models, err := AvailableModels(context.Background(), mock)
	require.NoError(t, err)
	require.Len(t, models, 2)
	assert.Equal(t, "alpha", models[0].Name)

	mock.PingFunc = func(ctx context.Context) error { return errors.New("down") }
	_, err = AvailableModels(context.Background(), mock)
	assert.ErrorContains(t, err, "connection failed")
}
