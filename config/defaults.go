package config

import "time"

const DefaultSystemPrompt = "You are a careful data analyst. Answer from the data you fetch, and say so when the data cannot answer the question."

func DefaultSystemConfig() *SystemConfig {
	return &SystemConfig{
		DataDirectory: "~/.local/share/datachat",
	}
}

func DefaultUserConfig() *UserConfig {
	return &UserConfig{
		SystemPrompt: DefaultSystemPrompt,
		Provider: ProviderConfig{
			Type:    ProviderOllama,
			BaseURL: "http://localhost:11434",
			Model:   "llama3.1:latest",
		},
		Agent: AgentConfig{
			Name:              "datachat",
			IterationCeiling:  2,
			MaxRowsExposed:    20,
			StreamIdleTimeout: Duration{60 * time.Second},
			TurnTimeout:       Duration{5 * time.Minute},
		},
		Fetch: FetchConfig{
			Database:     "datasets.db",
			DefaultLimit: 100,
			PageSize:     100,
		},
	}
}

func GenerateSystemConfigTemplate() string {
	return `# datachat System Configuration
# Location: ~/.config/datachat/settings.toml
# This file uses TOML format: https://toml.io

# Directory where datasets, user config and the debug log are stored
data_directory = "~/.local/share/datachat"
`
}

func GenerateUserConfigTemplate() string {
	return `# datachat User Configuration
# Location: <data_directory>/config.toml
# This file uses TOML format: https://toml.io

# System prompt placed ahead of the tool catalog on every turn
system_prompt = "` + DefaultSystemPrompt + `"

# Write a JSON debug log to <data_directory>/debug.log (or set DATACHAT_DEBUG=1)
debug = false

[provider]
# ollama | openai | openrouter | anthropic
type = "ollama"
base_url = "http://localhost:11434"
model = "llama3.1:latest"
# Cloud providers only. DATACHAT_API_KEY takes precedence.
api_key = ""

[agent]
name = "datachat"
# Tool-use turns allowed before the model must answer without tools
iteration_ceiling = 2
# Rows per fetched dataset shown to the model
max_rows_exposed = 20
# Abort a reply when the model sends nothing for this long
stream_idle_timeout = "60s"
# Upper bound for one question, tool calls included
turn_timeout = "5m"

[fetch]
# SQLite database holding imported datasets, relative to the data directory
database = "datasets.db"
default_limit = 100
page_size = 100

[keys]
# Override any of: send, cancel, copy, clear, quit, scroll_up, scroll_down, help
# copy = "alt+y"
`
}
