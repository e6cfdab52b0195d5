package model

import (
	"context"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ThinkingMode selects how a bridge surfaces model reasoning.
type ThinkingMode string

const (
	// ThinkingDisabled passes text through untouched and drops native reasoning.
	ThinkingDisabled ThinkingMode = "disabled"
	// ThinkingTags splits <think>-style inline markers out of the text channel.
	ThinkingTags ThinkingMode = "tags"
	// ThinkingNative uses the backend's own reasoning channel.
	ThinkingNative ThinkingMode = "native"
)

// ParseThinkingMode maps a config value to a ThinkingMode, defaulting to tags.
func ParseThinkingMode(s string) ThinkingMode {
	switch s {
	case "disabled", "off", "none":
		return ThinkingDisabled
	case "native", "streaming", "native-streaming":
		return ThinkingNative
	default:
		return ThinkingTags
	}
}

// Request is one completion request sent to a provider bridge.
type Request struct {
	// Model overrides the provider's configured model when set.
	Model       string
	Messages    []Message
	Tools       []mcptypes.Tool
	Temperature *float64
	// MaxTokens caps output tokens; zero means the backend default.
	MaxTokens int
}

// ModelInfo describes a model a provider can serve.
type ModelInfo struct {
	Name         string // Display name (vendor prefix stripped)
	Size         int64
	Provider     string
	InternalName string // Full API name
}

// Provider abstracts one backend family behind the canonical event stream.
//
// This interface is defined in the model package (not provider package) to avoid
// import cycles: provider implementations import model, and the agent only
// needs model.
type Provider interface {
	// Name returns the registry name of the backend ("openai", "anthropic", ...).
	Name() string

	// Stream starts a request and returns its events. The channel yields
	// exactly one StreamDone or StreamError and is then closed. Callers must
	// drain it until it is closed.
	Stream(ctx context.Context, req Request) <-chan StreamEvent

	// ListModels returns available models for this provider.
	ListModels(ctx context.Context) ([]ModelInfo, error)

	// GetModel returns the model used when a request does not name one.
	GetModel() string

	// SetModel changes the default model.
	SetModel(model string)

	// Ping checks if the provider is reachable.
	Ping(ctx context.Context) error
}
