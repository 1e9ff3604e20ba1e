package provider

import (
	"context"
	"fmt"
	"sort"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"datachat/model"
	"datachat/ollama"
)

const pingTimeout = 10 * time.Second

// PingProviderMsg is sent when provider ping completes
type PingProviderMsg struct {
	Model string
	Err   error
}

// PingProvider checks that the provider is reachable. The chat view runs it
// at startup and shows the result in the status bar.
func PingProvider(p model.Provider) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), pingTimeout)
		defer cancel()

		msg := PingProviderMsg{Model: p.GetDisplayName()}
		if err := p.Ping(ctx); err != nil {
			msg.Err = fmt.Errorf("connection failed: %w", err)
		}
		return msg
	}
}

// AvailableModels pings the provider and lists its models sorted by name.
func AvailableModels(ctx context.Context, p model.Provider) ([]ollama.ModelInfo, error) {
	if err := p.Ping(ctx); err != nil {
		return nil, fmt.Errorf("connection failed: %w", err)
	}
	models, err := p.ListModels(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}
	sort.Slice(models, func(i, j int) bool { return models[i].Name < models[j].Name })
	return models, nil
}
