// Package provider implements model.Provider for the supported LLM backends.
//
// datachat talks to local Ollama servers and to cloud APIs (OpenAI,
// OpenRouter, Anthropic) through a common Provider interface. The agent and
// the pipelines only ever see model.Provider, so swapping the backend is a
// configuration change.
//
// # Type Conversions
//
// The provider layer handles all conversions between datachat's
// provider-agnostic messages and provider-specific types. Pipeline messages
// have no counterpart in any provider API; they are replayed as user
// messages prefixed with PipelineResultPrefix. See conversions.go.
//
// # Usage
//
//	cfg := provider.Config{
//	    Type:    provider.ProviderTypeOllama,
//	    BaseURL: "http://localhost:11434",
//	    Model:   "llama3.1",
//	}
//	p, err := provider.NewProvider(cfg)
//	if err != nil {
//	    // handle error
//	}
//	err = p.StreamCompletion(ctx, messages, callback)
package provider

// Note: The Provider interface and StreamCallback are defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType
	BaseURL string
	Model   string
	APIKey  string // For OpenAI/OpenRouter/Anthropic (unused for Ollama)
}
