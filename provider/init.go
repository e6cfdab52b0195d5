package provider

import (
	"fmt"
	"time"

	"byom/config"
	"byom/model"
)

// InitializeProvider creates the provider selected by the application config.
//
// The backend comes from the explicit provider name or, failing that, from the
// model id (see Registry.Resolve). The API key and base URL are then looked up
// for that backend, so vendor-specific environment fallbacks apply.
func InitializeProvider(reg *Registry, cfg *config.Config, onRetry func(err *Error, attempt int, delay time.Duration)) (model.Provider, error) {
	name, err := reg.Resolve(cfg.Provider, cfg.Model)
	if err != nil {
		return nil, err
	}

	// The settings file uses 0 to mean "never retry".
	retries := cfg.MaxRetries
	if retries == 0 {
		retries = -1
	}

	p, err := reg.New(Config{
		Type:           ProviderType(name),
		BaseURL:        cfg.BaseURLFor(name),
		Model:          cfg.Model,
		APIKey:         cfg.APIKeyFor(name),
		MaxRetries:     retries,
		OnRetry:        onRetry,
		ThinkingMode:   model.ParseThinkingMode(cfg.ThinkingMode),
		ThinkingBudget: cfg.ThinkingBudget,
	})
	if err != nil {
		return nil, fmt.Errorf("initialize provider: %w", err)
	}

	if config.Debug {
		config.DebugLog.Printf("[Provider] Initialized provider: %s (model: %s)", name, p.GetModel())
	}
	return p, nil
}
