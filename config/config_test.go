package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func writeSettings(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "settings.toml")
	if err := os.WriteFile(path, []byte(content), 0600); err != nil {
		t.Fatalf("write settings: %v", err)
	}
	return path
}

func TestLoadFromDefaults(t *testing.T) {
	cfg, err := LoadFrom(filepath.Join(t.TempDir(), "missing.toml"))
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.MaxTurns != 100 {
		t.Errorf("MaxTurns: got %d, want 100", cfg.MaxTurns)
	}
	if cfg.MaxRetries != 3 {
		t.Errorf("MaxRetries: got %d, want 3", cfg.MaxRetries)
	}
	if cfg.Temperature != 1.0 {
		t.Errorf("Temperature: got %v, want 1.0", cfg.Temperature)
	}
	if cfg.ThinkingMode != "tags" {
		t.Errorf("ThinkingMode: got %q, want tags", cfg.ThinkingMode)
	}
	if cfg.TimeoutSeconds != 120 {
		t.Errorf("TimeoutSeconds: got %d, want 120", cfg.TimeoutSeconds)
	}
}

func TestLoadFromFile(t *testing.T) {
	path := writeSettings(t, `
provider = "anthropic"
model = "claude-sonnet-4-5"
max_turns = 0
temperature = 0.2
max_retries = 0
thinking_mode = "native"
thinking_budget = 2048

[[mcp_servers]]
name = "fs"
command = "mcp-fs"
args = ["--root", "."]

[[mcp_servers]]
name = "docs"
url = "https://example.com/mcp"
transport = "streamable-http"
headers = { Authorization = "Bearer x" }
`)

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Provider != "anthropic" || cfg.Model != "claude-sonnet-4-5" {
		t.Errorf("provider/model: got %s/%s", cfg.Provider, cfg.Model)
	}
	if cfg.MaxTurns != 1 {
		t.Errorf("MaxTurns: got %d, want clamped to 1", cfg.MaxTurns)
	}
	if cfg.MaxRetries != 0 {
		t.Errorf("MaxRetries: got %d, want 0", cfg.MaxRetries)
	}
	if cfg.Temperature != 0.2 {
		t.Errorf("Temperature: got %v, want 0.2", cfg.Temperature)
	}
	if len(cfg.MCPServers) != 2 {
		t.Fatalf("MCPServers: got %d, want 2", len(cfg.MCPServers))
	}
	if !reflect.DeepEqual(cfg.MCPServers[0].Args, []string{"--root", "."}) {
		t.Errorf("Args: got %v", cfg.MCPServers[0].Args)
	}
	if cfg.MCPServers[1].Headers["Authorization"] != "Bearer x" {
		t.Errorf("Headers: got %v", cfg.MCPServers[1].Headers)
	}
}

func TestLoadFromEnvOverrides(t *testing.T) {
	path := writeSettings(t, `model = "gpt-4o"`)
	t.Setenv("BYOM_MODEL", "qwen3:8b")
	t.Setenv("BYOM_MAX_TURNS", "7")
	t.Setenv("BYOM_TEMPERATURE", "0.5")
	t.Setenv("BYOM_EXTRACT_TEXT_TOOL_CALLS", "true")

	cfg, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if cfg.Model != "qwen3:8b" {
		t.Errorf("Model: got %q, want qwen3:8b", cfg.Model)
	}
	if cfg.MaxTurns != 7 {
		t.Errorf("MaxTurns: got %d, want 7", cfg.MaxTurns)
	}
	if cfg.Temperature != 0.5 {
		t.Errorf("Temperature: got %v, want 0.5", cfg.Temperature)
	}
	if !cfg.ExtractTextToolCalls {
		t.Error("ExtractTextToolCalls: got false, want true")
	}
}

func TestLoadFromInvalid(t *testing.T) {
	tests := []struct {
		name     string
		settings string
		env      map[string]string
	}{
		{"bad toml", `model = `, nil},
		{"bad thinking mode", `thinking_mode = "loud"`, nil},
		{"temperature out of range", `temperature = 3.5`, nil},
		{"bad int override", ``, map[string]string{"BYOM_MAX_TURNS": "many"}},
		{"server without transport", "[[mcp_servers]]\nname = \"x\"", nil},
		{"server with both", "[[mcp_servers]]\nname = \"x\"\ncommand = \"a\"\nurl = \"http://b\"", nil},
		{"duplicate servers", "[[mcp_servers]]\nname = \"x\"\ncommand = \"a\"\n[[mcp_servers]]\nname = \"x\"\ncommand = \"b\"", nil},
		{"separator in server name", "[[mcp_servers]]\nname = \"a__b\"\ncommand = \"a\"", nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			for k, v := range tt.env {
				t.Setenv(k, v)
			}
			if _, err := LoadFrom(writeSettings(t, tt.settings)); err == nil {
				t.Error("expected error")
			}
		})
	}
}

func TestAPIKeyFor(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-openai")
	t.Setenv("ANTHROPIC_API_KEY", "")
	t.Setenv("GEMINI_API_KEY", "")
	t.Setenv("GOOGLE_API_KEY", "g-key")
	t.Setenv("OPENROUTER_API_KEY", "or-key")

	cfg := Defaults()
	tests := []struct {
		backend string
		want    string
	}{
		{"openai", "sk-openai"},
		{"anthropic", ""},
		{"gemini", "g-key"},
		{"openrouter", "or-key"},
		{"ollama", ""},
	}
	for _, tt := range tests {
		if got := cfg.APIKeyFor(tt.backend); got != tt.want {
			t.Errorf("APIKeyFor(%s): got %q, want %q", tt.backend, got, tt.want)
		}
	}

	cfg.APIKey = "explicit"
	if got := cfg.APIKeyFor("openai"); got != "explicit" {
		t.Errorf("explicit key: got %q", got)
	}
}

func TestBaseURLFor(t *testing.T) {
	t.Setenv("OLLAMA_HOST", "")
	cfg := Defaults()

	tests := []struct {
		backend string
		want    string
	}{
		{"openai", DefaultOpenAIBaseURL},
		{"openrouter", DefaultOpenRouterBaseURL},
		{"anthropic", DefaultAnthropicBaseURL},
		{"ollama", DefaultOllamaBaseURL},
		{"gemini", ""},
	}
	for _, tt := range tests {
		if got := cfg.BaseURLFor(tt.backend); got != tt.want {
			t.Errorf("BaseURLFor(%s): got %q, want %q", tt.backend, got, tt.want)
		}
	}
}

func TestSaveSettingsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "settings.toml")
	cfg := Defaults()
	cfg.Model = "gemini-2.5-pro"
	cfg.MCPServers = []MCPServerConfig{{Name: "fs", Command: "mcp-fs"}}

	if err := SaveSettings(cfg, path); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}
	info, err := os.Stat(path)
	if err != nil {
		t.Fatalf("stat: %v", err)
	}
	if info.Mode().Perm() != 0600 {
		t.Errorf("permissions: got %v, want 0600", info.Mode().Perm())
	}

	loaded, err := LoadFrom(path)
	if err != nil {
		t.Fatalf("LoadFrom: %v", err)
	}
	if loaded.Model != "gemini-2.5-pro" || len(loaded.MCPServers) != 1 {
		t.Errorf("loaded: model %q, %d servers", loaded.Model, len(loaded.MCPServers))
	}
}

func TestDefaultSettingsTemplateParses(t *testing.T) {
	cfg, err := LoadFrom(writeSettings(t, DefaultSettingsTemplate()))
	if err != nil {
		t.Fatalf("template does not load: %v", err)
	}
	if cfg.Model != "llama3.1:latest" {
		t.Errorf("Model: got %q", cfg.Model)
	}
}

func TestLoadDotEnv(t *testing.T) {
	if err := LoadDotEnv(filepath.Join(t.TempDir(), ".env")); err != nil {
		t.Errorf("missing file: %v", err)
	}

	path := filepath.Join(t.TempDir(), ".env")
	if err := os.WriteFile(path, []byte("BYOM_TEST_DOTENV=from-file\n"), 0600); err != nil {
		t.Fatal(err)
	}
	t.Setenv("BYOM_TEST_DOTENV", "")
	os.Unsetenv("BYOM_TEST_DOTENV")
	if err := LoadDotEnv(path); err != nil {
		t.Fatalf("LoadDotEnv: %v", err)
	}
	if got := os.Getenv("BYOM_TEST_DOTENV"); got != "from-file" {
		t.Errorf("BYOM_TEST_DOTENV: got %q", got)
	}
}

func TestParseSubagents(t *testing.T) {
	defs, err := ParseSubagents([]byte(`
subagents:
  - name: test_writer
    description: Writes tests
    goal_prompt: You write tests.
    allowed_tools: [read_file, grep]
  - name: quick
    description: Fast lookups
    max_turns: 3
    timeout_seconds: 30
`))
	if err != nil {
		t.Fatalf("ParseSubagents: %v", err)
	}
	if len(defs) != 2 {
		t.Fatalf("got %d definitions, want 2", len(defs))
	}
	if defs[0].MaxTurns != DefaultSubagentMaxTurns || defs[0].TimeoutSeconds != DefaultSubagentTimeoutSeconds {
		t.Errorf("defaults not applied: %+v", defs[0])
	}
	if !reflect.DeepEqual(defs[0].AllowedTools, []string{"read_file", "grep"}) {
		t.Errorf("AllowedTools: got %v", defs[0].AllowedTools)
	}
	if defs[1].MaxTurns != 3 || defs[1].TimeoutSeconds != 30 {
		t.Errorf("explicit values lost: %+v", defs[1])
	}

	if _, err := ParseSubagents([]byte("subagents:\n  - description: nameless\n")); err == nil {
		t.Error("expected error for missing name")
	}
}

func TestLoadSubagentsDefaults(t *testing.T) {
	defs, err := LoadSubagents("")
	if err != nil {
		t.Fatalf("LoadSubagents: %v", err)
	}
	names := []string{defs[0].Name, defs[1].Name}
	if !reflect.DeepEqual(names, []string{"codebase_investigator", "code_reviewer"}) {
		t.Errorf("names: got %v", names)
	}
}
