package config

func Defaults() *Config {
	return &Config{
		DataDirectory:  GetDefaultDataDir(),
		Model:          "llama3.1:latest",
		MaxTurns:       100,
		Temperature:    1.0,
		MaxRetries:     3,
		TimeoutSeconds: 120,
		ThinkingMode:   "tags",
	}
}

func DefaultSettingsTemplate() string {
	return `# byom settings
# Location: ~/.config/byom/settings.toml
# This file uses TOML format: https://toml.io
# Every key can be overridden with a BYOM_<KEY> environment variable.

# Directory for transcripts and the debug log
data_directory = "~/.local/share/byom"

# Backend name: openai, openrouter, anthropic, gemini or ollama.
# Leave empty to pick the backend from the model id.
# provider = ""

# Model id, e.g. "gpt-4o", "claude-sonnet-4-5", "gemini-2.5-pro", "qwen3:8b"
model = "llama3.1:latest"

# Endpoint override. Defaults depend on the backend.
# base_url = ""

# API key. When empty, OPENAI_API_KEY, ANTHROPIC_API_KEY, GEMINI_API_KEY,
# GOOGLE_API_KEY or OPENROUTER_API_KEY is used for the matching backend.
# api_key = ""

# Upper bound on model turns per run (minimum 1)
max_turns = 100

# Sampling temperature, 0 to 2
temperature = 1.0

# Output token cap per turn. 0 uses the backend default.
max_output_tokens = 0

# Retries for rate-limit and connectivity failures. 0 never retries.
max_retries = 3

# Per-request timeout in seconds
timeout_seconds = 120

# Reasoning handling: disabled, tags or native
thinking_mode = "tags"

# Token budget for native extended thinking
# thinking_budget = 4096

# system_prompt = "You are a careful coding assistant."
# working_directory = "~/src/project"

# Recover tool calls written as plain text when the model emits none
extract_text_tool_calls = false

# YAML file with sub-agent definitions. Built-in sub-agents are used when unset.
# subagents_file = "~/.config/byom/subagents.yaml"

# MCP servers. Each needs either command (stdio) or url (sse/streamable-http).
# [[mcp_servers]]
# name = "filesystem"
# command = "npx"
# args = ["-y", "@modelcontextprotocol/server-filesystem", "."]
#
# [[mcp_servers]]
# name = "docs"
# url = "https://example.com/mcp"
# transport = "streamable-http"
# headers = { Authorization = "Bearer ..." }
`
}
