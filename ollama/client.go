package ollama

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"byom/model"

	"github.com/ollama/ollama/api"
)

// DefaultBaseURL is where a local Ollama server listens.
const DefaultBaseURL = "http://localhost:11434"

type Client struct {
	client  *api.Client
	model   string
	baseURL string
}

// ResponseCallback receives every streamed chat response chunk.
type ResponseCallback func(resp api.ChatResponse) error

// ChatOptions are the per-request sampling settings.
type ChatOptions struct {
	Temperature *float64
	NumPredict  int
	Think       bool
}

func NewClient(baseURL, model string) (*Client, error) {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if model == "" {
		model = "llama3.1:latest"
	}

	parsedURL, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("invalid Ollama URL: %w", err)
	}

	client := api.NewClient(parsedURL, http.DefaultClient)

	return &Client{
		client:  client,
		model:   model,
		baseURL: baseURL,
	}, nil
}

// ChatWithTools sends a streaming chat request with optional tool definitions.
// An empty modelName uses the client's current model.
func (c *Client) ChatWithTools(ctx context.Context, modelName string, messages []api.Message, tools []api.Tool, opts ChatOptions, callback ResponseCallback) error {
	if modelName == "" {
		modelName = c.model
	}

	req := &api.ChatRequest{
		Model:    modelName,
		Messages: messages,
		Tools:    tools,
		Stream:   func(b bool) *bool { return &b }(true),
		Options:  opts.toMap(),
	}
	if opts.Think {
		req.Think = &api.ThinkValue{Value: true}
	}

	return c.client.Chat(ctx, req, func(resp api.ChatResponse) error {
		if callback != nil {
			return callback(resp)
		}
		return nil
	})
}

func (o ChatOptions) toMap() map[string]any {
	options := make(map[string]any)
	if o.Temperature != nil {
		options["temperature"] = *o.Temperature
	}
	if o.NumPredict > 0 {
		options["num_predict"] = o.NumPredict
	}
	if len(options) == 0 {
		return nil
	}
	return options
}

func (c *Client) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	resp, err := c.client.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list models: %w", err)
	}

	models := make([]model.ModelInfo, len(resp.Models))
	for i, m := range resp.Models {
		models[i] = model.ModelInfo{
			Name:         m.Name,
			Size:         m.Size,
			Provider:     "ollama",
			InternalName: m.Name, // Ollama uses same name for display and API
		}
	}

	return models, nil
}

func (c *Client) SetModel(model string) {
	c.model = model
}

func (c *Client) GetModel() string {
	return c.model
}

func (c *Client) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()

	_, err := c.client.List(ctx)
	return err
}

// toolCallingModels tracks which model families support native tool calling.
// This is a curated list based on Ollama documentation and community testing.
var toolCallingModels = map[string]bool{
	"qwen":      true, // qwen2.5-coder, qwen3, qwen3-coder
	"llama3.1":  true,
	"llama3.2":  true,
	"llama3.3":  true,
	"llama4":    true,
	"mistral":   true, // mistral, mistral-nemo, mistral-small
	"command-r": true,
	"nemotron":  true,
	"granite3":  true,
	"gpt-oss":   true,
	"devstral":  true,

	"llama3-gradient": false,
	"llama3":          false, // original llama3 (not 3.1+)
	"phi":             false,
	"gemma":           false,
	"codellama":       false,
	"deepseek":        false,
}

// orderedPrefixes is the lookup order for toolCallingModels.
// Most specific first, so "llama3.2" is checked before "llama3".
var orderedPrefixes = []string{
	"llama3.3", "llama3.2", "llama3.1", "llama4",
	"llama3-gradient",
	"command-r", "qwen", "mistral", "nemotron", "granite3", "gpt-oss", "devstral",
	"codellama",
	"llama3",
	"deepseek", "phi", "gemma",
}

// SupportsToolCalling checks if the current model supports Ollama's tool calling API.
func (c *Client) SupportsToolCalling() bool {
	return ModelSupportsToolCalling(c.model)
}

// ModelSupportsToolCalling reports whether modelName is known to support
// native tool calling. Unknown models report false.
func ModelSupportsToolCalling(modelName string) bool {
	modelName = strings.ToLower(strings.TrimPrefix(modelName, "ollama/"))

	for _, prefix := range orderedPrefixes {
		if strings.HasPrefix(modelName, prefix) {
			if supported, exists := toolCallingModels[prefix]; exists {
				return supported
			}
		}
	}

	return false
}
