// Package cmd holds the datachat command line.
package cmd

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"datachat/agent"
	"datachat/config"
	"datachat/pipeline"
	"datachat/pipelines"
	"datachat/provider"
	"datachat/storage"
	"datachat/ui"
)

const Version = "v0.1.0"

var (
	configDir    string
	dataDir      string
	modelFlag    string
	providerFlag string
	debugFlag    bool
)

var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("#EF4444"))
	successStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("#10B981"))
	warnStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("#F59E0B"))
	dimStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("#9CA3AF"))
	headerStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("#7C3AED")).Bold(true)
)

var rootCmd = &cobra.Command{
	Use:   "datachat",
	Short: "Chat with your datasets",
	Long: `datachat answers questions about tabular data with a language model.

The model fetches, describes, transforms and charts your data through
built-in pipelines. Import CSV files first, then ask away.

Usage:
  datachat import sales.csv
  datachat ask "Which region sold the most in Q1?"
  datachat`,
	Version:       Version,
	SilenceUsage:  true,
	SilenceErrors: true,
	Args:          cobra.NoArgs,
	RunE: func(cmd *cobra.Command, args []string) error {
		env, err := setup(true)
		if err != nil {
			if modalErr := ui.ShowError("Configuration Error", err); modalErr != nil {
				return errors.Join(err, modalErr)
			}
			return err
		}
		defer env.Close()
		return ui.Run(env.agent, ui.Options{Keys: env.cfg.Keys, Logger: env.logger})
	},
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, errorStyle.Render("Error: "+err.Error()))
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configDir, "config-dir", "", "directory holding settings.toml (default ~/.config/datachat)")
	rootCmd.PersistentFlags().StringVar(&dataDir, "data-dir", "", "data directory (overrides settings.toml)")
	rootCmd.PersistentFlags().StringVar(&modelFlag, "model", "", "model to use")
	rootCmd.PersistentFlags().StringVar(&providerFlag, "provider", "", "provider type: ollama, openai, openrouter or anthropic")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false, "write a debug log to <data-dir>/debug.log")

	rootCmd.AddCommand(askCmd)
	rootCmd.AddCommand(importCmd)
	rootCmd.AddCommand(datasetsCmd)
	rootCmd.AddCommand(pipelinesCmd)
	rootCmd.AddCommand(modelsCmd)
	rootCmd.AddCommand(configCmd)
}

// loadConfig loads the configuration and applies the command line flags.
func loadConfig() (*config.Config, error) {
	if dataDir != "" {
		if err := os.Setenv("DATACHAT_DATA_DIR", dataDir); err != nil {
			return nil, err
		}
	}
	cfg, err := config.Load(configDir)
	if err != nil {
		return nil, err
	}
	if providerFlag != "" {
		cfg.Provider.Type = providerFlag
		if cfg.Provider.BaseURL == provider.DefaultBaseURL(provider.ProviderTypeOllama) {
			cfg.Provider.BaseURL = ""
		}
	}
	if modelFlag != "" {
		cfg.Provider.Model = modelFlag
	}
	if debugFlag {
		cfg.Debug = true
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// environment is everything a chat needs, opened from the configuration.
type environment struct {
	cfg      *config.Config
	logger   *zap.Logger
	datasets *storage.DatasetStore
	agent    *agent.Agent
}

func (e *environment) Close() {
	if e.datasets != nil {
		if err := e.datasets.Close(); err != nil {
			e.logger.Warn("failed to close dataset database", zap.Error(err))
		}
	}
	_ = e.logger.Sync()
}

// setup opens the dataset database and builds the agent. withModel=false
// skips the provider for commands that never talk to a model.
func setup(withModel bool) (*environment, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	logger, err := config.NewLogger(cfg.DataDir(), cfg.Debug)
	if err != nil {
		return nil, err
	}
	env := &environment{cfg: cfg, logger: logger}

	env.datasets, err = storage.NewDatasetStore(cfg.DataDir(), cfg.DatabasePath(), logger.Named("storage"))
	if err != nil {
		env.Close()
		return nil, err
	}
	if !withModel {
		return env, nil
	}

	p, err := provider.FromSettings(cfg.Provider, logger)
	if err != nil {
		env.Close()
		return nil, err
	}

	env.agent, err = agent.New(agent.Config{
		AgentConfig: pipeline.AgentConfig{
			Name:                  cfg.Agent.Name,
			SystemPrompt:          cfg.SystemPrompt,
			Model:                 p,
			MaxRowsExposedToModel: cfg.Agent.MaxRowsExposed,
			Fetch: pipeline.FetchDefaults{
				DefaultLimit: cfg.Fetch.DefaultLimit,
				PageSize:     cfg.Fetch.PageSize,
			},
			IterationCeiling:  cfg.Agent.IterationCeiling,
			StreamIdleTimeout: cfg.Agent.StreamIdleTimeout.Duration,
			TurnTimeout:       cfg.Agent.TurnTimeout.Duration,
		},
		Pipelines: pipelines.Builtin(env.datasets, logger.Named("pipelines")),
		Logger:    logger,
	})
	if err != nil {
		env.Close()
		return nil, err
	}
	return env, nil
}

func formatAge(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.Local().Format("2006-01-02 15:04")
}
