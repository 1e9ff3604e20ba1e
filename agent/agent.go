// Package agent runs conversations: it owns the per-session history and
// fetched data, and drives the turn loop that streams model replies,
// dispatches at most one pipeline per reply and recurses under an iteration
// ceiling.
package agent

import (
	"errors"
	"fmt"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"go.uber.org/zap"

	"datachat/pipeline"
	"datachat/prompt"
)

// DefaultIterationCeiling is the number of tool-use turns allowed before the
// forced final reply.
const DefaultIterationCeiling = 2

// ErrBusy is returned by TrySend while the session is running a turn.
var ErrBusy = errors.New("a reply is already in progress")

type Config struct {
	pipeline.AgentConfig

	Pipelines []pipeline.Pipeline
	Logger    *zap.Logger
}

// Agent is immutable after New and may serve many sessions.
type Agent struct {
	cfg      pipeline.AgentConfig
	registry *pipeline.Registry
	tools    []mcptypes.Tool
	logger   *zap.Logger
}

func New(cfg Config) (*Agent, error) {
	if cfg.Model == nil {
		return nil, errors.New("agent needs a model provider")
	}
	if cfg.IterationCeiling <= 0 {
		return nil, fmt.Errorf("iteration ceiling must be positive, got %d", cfg.IterationCeiling)
	}
	if cfg.MaxRowsExposedToModel < 0 {
		return nil, fmt.Errorf("max rows exposed to model must not be negative, got %d", cfg.MaxRowsExposedToModel)
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Name != "" {
		logger = logger.Named(cfg.Name)
	}

	registry, err := pipeline.NewRegistry(logger, cfg.Pipelines...)
	if err != nil {
		return nil, fmt.Errorf("failed to register pipelines: %w", err)
	}

	return &Agent{
		cfg:      cfg.AgentConfig,
		registry: registry,
		tools:    prompt.BuildCatalog(registry.Descriptors()),
		logger:   logger,
	}, nil
}

// Config returns a copy of the agent configuration.
func (a *Agent) Config() pipeline.AgentConfig { return a.cfg }

// Tools returns the catalog the model is shown.
func (a *Agent) Tools() []mcptypes.Tool { return a.tools }

func (a *Agent) Registry() *pipeline.Registry { return a.registry }

// SystemPrompt renders the tool-enabled system message for the given
// ambient state.
func (a *Agent) SystemPrompt(ambient prompt.Ambient) string {
	return prompt.Assemble(prompt.Input{
		SystemPrompt: a.cfg.SystemPrompt,
		Tools:        a.tools,
		Ambient:      ambient,
	})
}
