package provider

import (
	"context"
	"fmt"

	"datachat/model"
	"datachat/ollama"
)

// OllamaProvider wraps ollama.Client to implement the Provider interface.
//
// This provider handles the conversion from datachat messages to Ollama's
// api.Message; the streaming itself is delegated to the client.
type OllamaProvider struct {
	client *ollama.Client
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// Parameters:
//   - baseURL: The Ollama server URL (e.g., "http://localhost:11434").
//     If empty, defaults to "http://localhost:11434".
//   - model: The model name to use (e.g., "llama3.1:latest").
//     If empty, defaults to "llama3.1:latest".
//
// Returns an error if the baseURL is invalid.
func NewOllamaProvider(baseURL, model string) (*OllamaProvider, error) {
	client, err := ollama.NewClient(baseURL, model)
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{
		client: client,
	}, nil
}

// StreamCompletion implements Provider.StreamCompletion.
//
// Example:
//
//	messages := []model.Message{model.NewMessage(model.RoleUser, "Hello!", "Hello!")}
//	err := provider.StreamCompletion(ctx, messages, func(chunk string) error {
//	    fmt.Print(chunk)
//	    return nil
//	})
func (p *OllamaProvider) StreamCompletion(ctx context.Context, messages []model.Message, callback model.StreamCallback) error {
	err := p.client.Chat(ctx, ConvertToOllamaMessages(messages), ollama.StreamCallback(callback))
	if err != nil {
		return fmt.Errorf("Ollama streaming error: %w", err)
	}
	return nil
}

// CompleteOnce implements Provider.CompleteOnce with a non-streaming request.
func (p *OllamaProvider) CompleteOnce(ctx context.Context, messages []model.Message) (string, error) {
	reply, err := p.client.Complete(ctx, ConvertToOllamaMessages(messages))
	if err != nil {
		return "", fmt.Errorf("Ollama completion error: %w", err)
	}
	return reply, nil
}

// ListModels implements Provider.ListModels (direct passthrough).
func (p *OllamaProvider) ListModels(ctx context.Context) ([]ollama.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// GetModel implements Provider.GetModel (direct passthrough).
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// GetDisplayName implements Provider.GetDisplayName.
// For Ollama, the display name is the same as the model name.
func (p *OllamaProvider) GetDisplayName() string {
	return p.client.GetModel()
}

// SetModel implements Provider.SetModel (direct passthrough).
func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(model)
}

// Ping implements Provider.Ping by listing local models with a short timeout.
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
