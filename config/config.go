// Package config loads byom settings from defaults, an optional .env file,
// settings.toml and BYOM_* environment variables, in that order.
package config

import (
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
)

const Version = "0.1.0"

const (
	DefaultOpenAIBaseURL     = "https://api.openai.com/v1"
	DefaultOpenRouterBaseURL = "https://openrouter.ai/api/v1"
	DefaultAnthropicBaseURL  = "https://api.anthropic.com"
	DefaultOllamaBaseURL     = "http://localhost:11434"
)

// MCPServerConfig describes one MCP server. Exactly one of Command (stdio)
// and URL (sse or streamable-http) must be set.
type MCPServerConfig struct {
	Name                  string            `toml:"name"`
	Disabled              bool              `toml:"disabled,omitempty"`
	Command               string            `toml:"command,omitempty"`
	Args                  []string          `toml:"args,omitempty"`
	Env                   map[string]string `toml:"env,omitempty"`
	Cwd                   string            `toml:"cwd,omitempty"`
	URL                   string            `toml:"url,omitempty"`
	Transport             string            `toml:"transport,omitempty"` // sse (default) or streamable-http
	Headers               map[string]string `toml:"headers,omitempty"`
	StartupTimeoutSeconds int               `toml:"startup_timeout_seconds,omitempty"`
}

func (m MCPServerConfig) Validate() error {
	if m.Name == "" {
		return fmt.Errorf("MCP server: name is required")
	}
	if strings.Contains(m.Name, "__") {
		return fmt.Errorf("MCP server %s: name must not contain \"__\"", m.Name)
	}
	hasCommand := m.Command != ""
	hasURL := m.URL != ""
	if !hasCommand && !hasURL {
		return fmt.Errorf("MCP server %s: must have either command (stdio) or url (sse/http)", m.Name)
	}
	if hasCommand && hasURL {
		return fmt.Errorf("MCP server %s: cannot have both command and url", m.Name)
	}
	return nil
}

type Config struct {
	DataDirectory string `toml:"data_directory"`

	// Provider names a registry entry. Empty selects the backend by Model.
	Provider string `toml:"provider,omitempty"`
	Model    string `toml:"model"`
	BaseURL  string `toml:"base_url,omitempty"`
	APIKey   string `toml:"api_key,omitempty"`

	MaxTurns        int     `toml:"max_turns"`
	Temperature     float64 `toml:"temperature"`
	MaxOutputTokens int     `toml:"max_output_tokens"`
	MaxRetries      int     `toml:"max_retries"`
	TimeoutSeconds  int     `toml:"timeout_seconds"`

	ThinkingMode   string `toml:"thinking_mode"` // disabled, tags or native
	ThinkingBudget int    `toml:"thinking_budget,omitempty"`

	SystemPrompt         string `toml:"system_prompt,omitempty"`
	WorkingDirectory     string `toml:"working_directory,omitempty"`
	ExtractTextToolCalls bool   `toml:"extract_text_tool_calls"`
	SubagentsFile        string `toml:"subagents_file,omitempty"`

	MCPServers []MCPServerConfig `toml:"mcp_servers,omitempty"`
}

var Debug = false
var DebugLog *log.Logger

func (c *Config) DataDir() string {
	return ExpandPath(c.DataDirectory)
}

// WorkDir returns the directory tools resolve relative paths against.
func (c *Config) WorkDir() string {
	if c.WorkingDirectory != "" {
		return ExpandPath(c.WorkingDirectory)
	}
	wd, err := os.Getwd()
	if err != nil {
		return "."
	}
	return wd
}

// APIKeyFor returns the configured key, falling back to the vendor's usual
// environment variable for backend.
func (c *Config) APIKeyFor(backend string) string {
	if c.APIKey != "" {
		return c.APIKey
	}
	var names []string
	switch backend {
	case "openai":
		names = []string{"OPENAI_API_KEY"}
	case "anthropic":
		names = []string{"ANTHROPIC_API_KEY"}
	case "gemini":
		names = []string{"GEMINI_API_KEY", "GOOGLE_API_KEY"}
	case "openrouter":
		names = []string{"OPENROUTER_API_KEY"}
	}
	for _, name := range names {
		if v := os.Getenv(name); v != "" {
			return v
		}
	}
	return ""
}

// BaseURLFor returns the configured base URL or the backend's default.
// Gemini has no default; the SDK picks its own endpoint.
func (c *Config) BaseURLFor(backend string) string {
	if c.BaseURL != "" {
		return c.BaseURL
	}
	switch backend {
	case "openai":
		return DefaultOpenAIBaseURL
	case "openrouter":
		return DefaultOpenRouterBaseURL
	case "anthropic":
		return DefaultAnthropicBaseURL
	case "ollama":
		if host := os.Getenv("OLLAMA_HOST"); host != "" {
			return host
		}
		return DefaultOllamaBaseURL
	}
	return ""
}

func (c *Config) Validate() error {
	if c.Model == "" {
		return fmt.Errorf("model is required")
	}
	switch c.ThinkingMode {
	case "", "disabled", "tags", "native":
	default:
		return fmt.Errorf("thinking_mode must be disabled, tags or native (got %q)", c.ThinkingMode)
	}
	if c.Temperature < 0 || c.Temperature > 2 {
		return fmt.Errorf("temperature must be between 0 and 2 (got %v)", c.Temperature)
	}
	if c.MaxRetries < 0 {
		return fmt.Errorf("max_retries must not be negative")
	}
	seen := make(map[string]bool, len(c.MCPServers))
	for _, server := range c.MCPServers {
		if err := server.Validate(); err != nil {
			return err
		}
		if seen[server.Name] {
			return fmt.Errorf("MCP server %s: duplicate name", server.Name)
		}
		seen[server.Name] = true
	}
	return nil
}

func CheckDebug() bool {
	debug := os.Getenv("BYOM_DEBUG")
	return debug == "true" || debug == "1"
}

func InitDebugLog(dataDir string) {
	if !CheckDebug() {
		return
	}

	logPath := filepath.Join(dataDir, "debug.log")

	// 0600: prompts and tool output end up in the log
	f, err := os.OpenFile(logPath, os.O_RDWR|os.O_CREATE|os.O_APPEND, 0600)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Could not open debug log at %s: %v\n", logPath, err)
		return
	}

	Debug = true
	DebugLog = log.New(f, "", log.Ldate|log.Ltime|log.Lmicroseconds|log.Lshortfile)
	DebugLog.Printf("=== Debug logging started (BYOM_DEBUG=%s) ===", os.Getenv("BYOM_DEBUG"))
	DebugLog.Printf("Log path: %s", logPath)
}
