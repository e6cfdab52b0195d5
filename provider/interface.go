// Package provider implements the bridges between the agent and each model
// backend.
//
// Every backend speaks its own streaming wire format, tool-calling convention
// and error taxonomy. A bridge hides all of that behind model.Provider: one
// request in, one channel of canonical model.StreamEvent values out, ending in
// exactly one Done or Error.
//
// # What every bridge does
//
//   - Converts the transcript and tool schemas into the native request shape
//     (see conversions.go and mcp/tool_converter.go)
//   - Reassembles streamed tool calls per position index (accumulator.go) and
//     resolves their arguments through the toolcall package
//   - Retains the latest usage report and surfaces it once, before Done
//   - Splits reasoning out of the text according to the thinking mode
//     (thinking.go)
//   - Retries rate-limit and connectivity failures with exponential backoff,
//     but only while nothing has been delivered (stream.go, retry.go)
//
// # Architecture
//
//   - model.Provider defines the contract (interface)
//   - OpenAIProvider serves OpenAI and every OpenAI-compatible endpoint,
//     including OpenRouter
//   - AnthropicProvider, OllamaProvider and GeminiProvider wrap their vendor SDKs
//   - Registry picks a bridge by explicit name or by model pattern
//
// # Usage
//
//	reg := provider.DefaultRegistry()
//	p, err := reg.New(provider.Config{Model: "claude-sonnet-4-5"})
//	if err != nil {
//	    // handle error
//	}
//	for ev := range p.Stream(ctx, model.Request{Messages: msgs}) {
//	    // handle event
//	}
package provider

import (
	"time"

	"byom/model"
)

// Note: The Provider interface is defined in the model package
// (model/provider.go) to avoid import cycles. This package implements model.Provider.

// ProviderType identifies the provider implementation.
type ProviderType string

const (
	ProviderTypeOllama     ProviderType = "ollama"
	ProviderTypeOpenRouter ProviderType = "openrouter"
	ProviderTypeOpenAI     ProviderType = "openai"
	ProviderTypeAnthropic  ProviderType = "anthropic"
	ProviderTypeGemini     ProviderType = "gemini"
)

// Config holds provider-specific configuration.
type Config struct {
	Type    ProviderType // empty selects by Model
	BaseURL string
	Model   string
	APIKey  string // unused for Ollama

	// MaxRetries is the retry ceiling for rate-limit and connectivity
	// failures. Zero means DefaultMaxRetries; negative disables retries.
	MaxRetries int
	// RetryBaseDelay overrides the first backoff delay (default 1s).
	RetryBaseDelay time.Duration
	// OnRetry observes every scheduled retry.
	OnRetry func(err *Error, attempt int, delay time.Duration)

	ThinkingMode   model.ThinkingMode
	ThinkingBudget int // Anthropic extended thinking budget in tokens
}

func (c Config) retryPolicy() RetryPolicy {
	policy := DefaultRetryPolicy()
	switch {
	case c.MaxRetries < 0:
		policy.MaxRetries = 0
	case c.MaxRetries > 0:
		policy.MaxRetries = c.MaxRetries
	}
	if c.RetryBaseDelay > 0 {
		policy.BaseDelay = c.RetryBaseDelay
	}
	policy.OnRetry = c.OnRetry
	return policy
}

func (c Config) thinkingMode() model.ThinkingMode {
	if c.ThinkingMode == "" {
		return model.ThinkingTags
	}
	return c.ThinkingMode
}
