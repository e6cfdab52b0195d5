package provider

import (
	"fmt"
	"regexp"
	"strings"
	"sync"

	"byom/model"
)

// Constructor builds a bridge from a Config.
type Constructor func(cfg Config) (model.Provider, error)

type registryEntry struct {
	name     string
	patterns []*regexp.Regexp
	ctor     Constructor
}

// Registry maps backend names and model-id patterns to bridge constructors.
// Entries are kept in priority order; the first matching pattern wins.
type Registry struct {
	mu      sync.RWMutex
	entries []*registryEntry
}

// NewRegistry returns an empty registry.
func NewRegistry() *Registry {
	return &Registry{}
}

// Register adds a backend at position priority (0 is checked first). A
// priority outside the current range appends. Registering an existing name
// replaces that entry. Patterns are matched case-insensitively.
func (r *Registry) Register(name string, patterns []string, ctor Constructor, priority int) error {
	if name == "" {
		return fmt.Errorf("provider name is required")
	}
	if ctor == nil {
		return fmt.Errorf("provider %s: constructor is required", name)
	}

	compiled := make([]*regexp.Regexp, 0, len(patterns))
	for _, p := range patterns {
		re, err := regexp.Compile("(?i)" + p)
		if err != nil {
			return fmt.Errorf("provider %s: invalid model pattern %q: %w", name, p, err)
		}
		compiled = append(compiled, re)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for i, e := range r.entries {
		if e.name == name {
			r.entries = append(r.entries[:i], r.entries[i+1:]...)
			break
		}
	}

	entry := &registryEntry{name: name, patterns: compiled, ctor: ctor}
	if priority < 0 || priority >= len(r.entries) {
		r.entries = append(r.entries, entry)
		return nil
	}
	r.entries = append(r.entries, nil)
	copy(r.entries[priority+1:], r.entries[priority:])
	r.entries[priority] = entry
	return nil
}

// Names returns the registered backend names in priority order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, len(r.entries))
	for i, e := range r.entries {
		names[i] = e.name
	}
	return names
}

// Resolve picks the backend for an explicit name or a model id.
//
// An explicit name must be registered. Otherwise the first entry with a
// pattern matching modelID wins, falling back to the first-registered entry.
func (r *Registry) Resolve(name, modelID string) (string, error) {
	entry, err := r.resolve(name, modelID)
	if err != nil {
		return "", err
	}
	return entry.name, nil
}

func (r *Registry) resolve(name, modelID string) (*registryEntry, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if len(r.entries) == 0 {
		return nil, fmt.Errorf("no providers registered")
	}

	if name != "" {
		for _, e := range r.entries {
			if strings.EqualFold(e.name, name) {
				return e, nil
			}
		}
		return nil, fmt.Errorf("unknown provider: %s", name)
	}

	if modelID != "" {
		for _, e := range r.entries {
			for _, re := range e.patterns {
				if re.MatchString(modelID) {
					return e, nil
				}
			}
		}
	}

	return r.entries[0], nil
}

// New resolves cfg.Type and cfg.Model to a backend and constructs its bridge.
func (r *Registry) New(cfg Config) (model.Provider, error) {
	entry, err := r.resolve(string(cfg.Type), cfg.Model)
	if err != nil {
		return nil, err
	}
	cfg.Type = ProviderType(entry.name)

	p, err := entry.ctor(cfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create %s provider: %w", entry.name, err)
	}
	return p, nil
}

// DefaultRegistry returns a registry with every built-in backend.
func DefaultRegistry() *Registry {
	r := NewRegistry()
	must := func(err error) {
		if err != nil {
			panic(err)
		}
	}

	must(r.Register(string(ProviderTypeOllama),
		[]string{`^ollama/`, `^[\w.\-]+:[\w.\-]+$`},
		func(cfg Config) (model.Provider, error) { return NewOllamaProvider(cfg) }, -1))
	must(r.Register(string(ProviderTypeOpenRouter),
		[]string{`^openrouter/`},
		func(cfg Config) (model.Provider, error) { return NewOpenRouterProvider(cfg) }, -1))
	must(r.Register(string(ProviderTypeAnthropic),
		[]string{`^claude-`, `^anthropic/claude-`},
		func(cfg Config) (model.Provider, error) { return NewAnthropicProvider(cfg) }, -1))
	must(r.Register(string(ProviderTypeGemini),
		[]string{`^gemini-`, `^google/gemini-`},
		func(cfg Config) (model.Provider, error) { return NewGeminiProvider(cfg) }, -1))
	// Last among the pattern owners: ".*/.*" would otherwise claim
	// anthropic/ and google/ ids.
	must(r.Register(string(ProviderTypeOpenAI),
		[]string{`^gpt-`, `^o1`, `^o3`, `^o4`, `^chatgpt-`, `^text-`, `^davinci`,
			`^mistral`, `^mixtral`, `^llama`, `^codellama`, `^deepseek`, `^qwen`, `^phi-`, `^gemma`, `.*/.*`},
		func(cfg Config) (model.Provider, error) { return NewOpenAIProvider(cfg) }, -1))

	return r
}
