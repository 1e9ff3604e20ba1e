package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Provider types accepted in [provider].type.
const (
	ProviderOllama     = "ollama"
	ProviderOpenAI     = "openai"
	ProviderOpenRouter = "openrouter"
	ProviderAnthropic  = "anthropic"
)

type SystemConfig struct {
	DataDirectory string `toml:"data_directory"`
}

type ProviderConfig struct {
	Type    string `toml:"type"`
	BaseURL string `toml:"base_url"`
	Model   string `toml:"model"`
	APIKey  string `toml:"api_key,omitempty"`
}

type AgentConfig struct {
	Name              string   `toml:"name"`
	IterationCeiling  int      `toml:"iteration_ceiling"`
	MaxRowsExposed    int      `toml:"max_rows_exposed"`
	StreamIdleTimeout Duration `toml:"stream_idle_timeout"`
	TurnTimeout       Duration `toml:"turn_timeout"`
}

type FetchConfig struct {
	Database     string `toml:"database"`
	DefaultLimit int    `toml:"default_limit"`
	PageSize     int    `toml:"page_size"`
}

// UserConfig is the content of <data_dir>/config.toml.
type UserConfig struct {
	SystemPrompt string         `toml:"system_prompt"`
	Debug        bool           `toml:"debug"`
	Provider     ProviderConfig `toml:"provider"`
	Agent        AgentConfig    `toml:"agent"`
	Fetch        FetchConfig    `toml:"fetch"`
	Keys         KeyBindings    `toml:"keys"`
}

// Config is the effective configuration after files and environment are
// merged.
type Config struct {
	DataDirectory string
	UserConfig
}

// Duration is a time.Duration written as a Go duration string in TOML.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalText(text []byte) error {
	v, err := time.ParseDuration(string(text))
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", text, err)
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// DatabasePath resolves the dataset database location. Relative paths live
// in the data directory.
func (c *Config) DatabasePath() string {
	return ResolveInDataDir(c.DataDir(), c.Fetch.Database)
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("DATACHAT_DATA_DIR"); v != "" {
		c.DataDirectory = v
	}
	c.applyUserEnvOverrides()
}

// applyUserEnvOverrides covers the variables that override config.toml.
func (c *Config) applyUserEnvOverrides() {
	if v := os.Getenv("DATACHAT_PROVIDER"); v != "" {
		c.Provider.Type = v
	}
	if v := os.Getenv("DATACHAT_BASE_URL"); v != "" {
		c.Provider.BaseURL = v
	}
	if v := os.Getenv("DATACHAT_MODEL"); v != "" {
		c.Provider.Model = v
	}
	if v := os.Getenv("DATACHAT_API_KEY"); v != "" {
		c.Provider.APIKey = v
	}
	if CheckDebug() {
		c.Debug = true
	}
}

func CheckDebug() bool {
	debug, _ := strconv.ParseBool(os.Getenv("DATACHAT_DEBUG"))
	return debug
}

// Validate reports the first setting that cannot work.
func (c *Config) Validate() error {
	switch strings.ToLower(c.Provider.Type) {
	case ProviderOllama, ProviderOpenAI, ProviderOpenRouter, ProviderAnthropic:
	default:
		return fmt.Errorf("unknown provider type %q", c.Provider.Type)
	}
	if c.Provider.Model == "" {
		return fmt.Errorf("no model configured for provider %s", c.Provider.Type)
	}
	if c.Agent.IterationCeiling <= 0 {
		return fmt.Errorf("agent.iteration_ceiling must be positive, got %d", c.Agent.IterationCeiling)
	}
	if c.Agent.MaxRowsExposed < 0 {
		return fmt.Errorf("agent.max_rows_exposed must not be negative, got %d", c.Agent.MaxRowsExposed)
	}
	if c.Agent.StreamIdleTimeout.Duration < 0 || c.Agent.TurnTimeout.Duration < 0 {
		return fmt.Errorf("agent timeouts must not be negative")
	}
	if c.Fetch.DefaultLimit < 0 || c.Fetch.PageSize < 0 {
		return fmt.Errorf("fetch limits must not be negative")
	}
	if ok, msg := c.Keys.Validate(); !ok {
		return fmt.Errorf("keys: %s", msg)
	}
	return nil
}

// Load reads settings.toml from configDir and config.toml from the data
// directory, creating either from its template when missing, then applies
// DATACHAT_* environment overrides. An empty configDir means the default
// location.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = GetConfigDir()
	}

	systemCfg, err := LoadSystemConfig(configDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load system config: %w", err)
	}
	cfg := &Config{DataDirectory: systemCfg.DataDirectory}
	cfg.applyEnvOverrides()

	dataDir := cfg.DataDir()
	if err := EnsureDataDirPermissions(dataDir); err != nil {
		return nil, fmt.Errorf("failed to prepare data directory: %w", err)
	}

	userCfg, err := LoadUserConfig(dataDir)
	if err != nil {
		return nil, fmt.Errorf("failed to load user config: %w", err)
	}
	cfg.UserConfig = *userCfg
	cfg.applyUserEnvOverrides()
	cfg.fillDefaults()

	return cfg, nil
}

// fillDefaults replaces settings left out of config.toml.
func (c *Config) fillDefaults() {
	def := DefaultUserConfig()
	if c.Provider.Type == "" {
		c.Provider.Type = def.Provider.Type
	}
	if c.Provider.Model == "" && c.Provider.Type == ProviderOllama {
		c.Provider.Model = def.Provider.Model
	}
	if c.Agent.Name == "" {
		c.Agent.Name = def.Agent.Name
	}
	if c.Agent.IterationCeiling == 0 {
		c.Agent.IterationCeiling = def.Agent.IterationCeiling
	}
	if c.Fetch.Database == "" {
		c.Fetch.Database = def.Fetch.Database
	}
	if c.Fetch.DefaultLimit == 0 {
		c.Fetch.DefaultLimit = def.Fetch.DefaultLimit
	}
	if c.Fetch.PageSize == 0 {
		c.Fetch.PageSize = def.Fetch.PageSize
	}
}
