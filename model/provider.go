package model

import (
	"context"

	"datachat/ollama"
)

// Provider abstracts LLM provider implementations (Ollama, OpenAI, OpenRouter,
// Anthropic) using provider-agnostic types from the model layer.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the agent can use the
// Provider interface without importing the provider package.
type Provider interface {
	// StreamCompletion sends messages and streams text back via callback.
	// Returning an error from the callback aborts the stream.
	StreamCompletion(ctx context.Context, messages []Message, callback StreamCallback) error

	// CompleteOnce sends messages and returns the full reply. Used by
	// pipelines for short non-streaming steps such as SQL generation.
	CompleteOnce(ctx context.Context, messages []Message) (string, error)

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ollama.ModelInfo, error)

	// GetModel returns the currently selected model name used for API calls.
	GetModel() string

	// GetDisplayName returns the model name formatted for UI display.
	// For OpenRouter, this strips the vendor prefix (e.g., "qwen/qwen3-coder:free" → "qwen3-coder:free").
	GetDisplayName() string

	// SetModel changes the active model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}

// StreamCallback is called for each chunk of streamed response.
type StreamCallback func(chunk string) error
