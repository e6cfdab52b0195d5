package provider

import (
	"fmt"

	"byom/config"

	"github.com/openai/openai-go/v3/option"
)

// NewOpenRouterProvider creates a bridge to OpenRouter, which is
// OpenAI-compatible. Model ids keep their vendor prefix
// ("meta-llama/llama-3.2-90b-instruct"); a leading "openrouter/" used for
// routing is stripped before the request.
func NewOpenRouterProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("OpenRouter API key is required")
	}

	return newOpenAICompatible(
		string(ProviderTypeOpenRouter),
		cfg,
		config.DefaultOpenRouterBaseURL,
		"meta-llama/llama-3.2-90b-instruct",
		"openrouter/",
		// App attribution header recognized by OpenRouter
		option.WithHeader("X-Title", "byom"),
	)
}
