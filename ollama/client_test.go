package ollama

import (
	"reflect"
	"testing"
)

func TestModelSupportsToolCalling(t *testing.T) {
	tests := []struct {
		model string
		want  bool
	}{
		{"llama3.1:latest", true},
		{"llama3.2:3b", true},
		{"llama3:8b", false},
		{"llama3-gradient:8b", false},
		{"qwen2.5-coder:7b", true},
		{"Qwen3:14b", true},
		{"ollama/qwen3-coder:30b", true},
		{"codellama:13b", false},
		{"deepseek-r1:8b", false},
		{"gpt-oss:20b", true},
		{"some-unknown-model", false},
	}

	for _, tt := range tests {
		if got := ModelSupportsToolCalling(tt.model); got != tt.want {
			t.Errorf("ModelSupportsToolCalling(%q) = %v, want %v", tt.model, got, tt.want)
		}
	}
}

func TestChatOptionsToMap(t *testing.T) {
	temp := 0.2

	tests := []struct {
		name string
		opts ChatOptions
		want map[string]any
	}{
		{"empty", ChatOptions{}, nil},
		{"temperature", ChatOptions{Temperature: &temp}, map[string]any{"temperature": 0.2}},
		{"both", ChatOptions{Temperature: &temp, NumPredict: 512}, map[string]any{"temperature": 0.2, "num_predict": 512}},
		{"think only", ChatOptions{Think: true}, nil},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.opts.toMap(); !reflect.DeepEqual(got, tt.want) {
				t.Errorf("toMap() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestNewClientDefaults(t *testing.T) {
	c, err := NewClient("", "")
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	if c.baseURL != DefaultBaseURL {
		t.Errorf("baseURL = %q, want %q", c.baseURL, DefaultBaseURL)
	}
	if c.GetModel() != "llama3.1:latest" {
		t.Errorf("model = %q", c.GetModel())
	}
	c.SetModel("qwen3:8b")
	if !c.SupportsToolCalling() {
		t.Error("qwen3:8b should support tool calling")
	}
}
