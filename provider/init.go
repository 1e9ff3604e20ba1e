package provider

import (
	"fmt"
	"strings"

	"go.uber.org/zap"

	"datachat/config"
	"datachat/model"
)

// FromSettings creates the configured provider.
//
// This is the single entry point the commands use. It maps the config
// provider type to a factory type, fills in the provider's default base URL
// when none is configured, and checks that cloud providers have an API key.
func FromSettings(cfg config.ProviderConfig, logger *zap.Logger) (model.Provider, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	providerType := MapProviderIDToType(strings.ToLower(cfg.Type))
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL(providerType)
	}
	if providerType != ProviderTypeOllama && cfg.APIKey == "" {
		return nil, fmt.Errorf("%s needs an API key: set provider.api_key or DATACHAT_API_KEY", DisplayName(providerType))
	}

	p, err := NewProvider(Config{
		Type:    providerType,
		BaseURL: baseURL,
		APIKey:  cfg.APIKey,
		Model:   cfg.Model,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to initialize provider %s: %w", cfg.Type, err)
	}

	logger.Debug("provider initialized",
		zap.String("type", string(providerType)),
		zap.String("base_url", baseURL),
		zap.String("model", cfg.Model))
	return p, nil
}

// DisplayName returns the display name for a provider
func DisplayName(t ProviderType) string {
	switch t {
	case ProviderTypeOllama:
		return "Ollama"
	case ProviderTypeOpenRouter:
		return "OpenRouter"
	case ProviderTypeAnthropic:
		return "Anthropic"
	case ProviderTypeOpenAI:
		return "OpenAI"
	default:
		return string(t)
	}
}

// DefaultBaseURL returns the default base URL for a provider
func DefaultBaseURL(t ProviderType) string {
	switch t {
	case ProviderTypeOllama:
		return "http://localhost:11434"
	case ProviderTypeOpenRouter:
		return "https://openrouter.ai/api/v1"
	case ProviderTypeAnthropic:
		return "https://api.anthropic.com"
	case ProviderTypeOpenAI:
		return "https://api.openai.com/v1"
	default:
		return ""
	}
}
