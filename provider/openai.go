package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"byom/config"
	"byom/mcp"
	"byom/model"

	"github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"
)

// OpenAIProvider implements the Provider interface using OpenAI's official Go SDK.
// It serves OpenAI itself and any OpenAI-compatible endpoint (OpenRouter,
// vLLM, LM Studio, ...) selected through the base URL.
type OpenAIProvider struct {
	name     string
	client   openai.Client
	model    string
	baseURL  string
	prefix   string // registry prefix stripped from model ids
	retry    RetryPolicy
	thinking model.ThinkingMode
}

// NewOpenAIProvider creates a new OpenAI provider instance.
//
// BaseURL defaults to config.DefaultOpenAIBaseURL and Model to "gpt-4o-mini".
// An API key is required unless a custom base URL points at a local server.
func NewOpenAIProvider(cfg Config) (*OpenAIProvider, error) {
	if cfg.APIKey == "" && (cfg.BaseURL == "" || cfg.BaseURL == config.DefaultOpenAIBaseURL) {
		return nil, fmt.Errorf("OpenAI API key is required")
	}
	return newOpenAICompatible(string(ProviderTypeOpenAI), cfg, config.DefaultOpenAIBaseURL, "gpt-4o-mini", "")
}

// newOpenAICompatible builds a bridge for any endpoint speaking the chat
// completions API.
func newOpenAICompatible(name string, cfg Config, defaultBaseURL, defaultModel, prefix string, extra ...option.RequestOption) (*OpenAIProvider, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultBaseURL
	}
	modelName := cfg.Model
	if modelName == "" {
		modelName = defaultModel
	}

	// Retries are handled by runStream so they follow our policy.
	opts := []option.RequestOption{
		option.WithBaseURL(baseURL),
		option.WithMaxRetries(0),
	}
	if cfg.APIKey != "" {
		opts = append(opts, option.WithAPIKey(cfg.APIKey))
	}
	opts = append(opts, extra...)

	return &OpenAIProvider{
		name:     name,
		client:   openai.NewClient(opts...),
		model:    modelName,
		baseURL:  baseURL,
		prefix:   prefix,
		retry:    cfg.retryPolicy(),
		thinking: cfg.thinkingMode(),
	}, nil
}

// Name implements Provider.Name.
func (p *OpenAIProvider) Name() string {
	return p.name
}

// Stream implements Provider.Stream over the streaming chat completions API.
func (p *OpenAIProvider) Stream(ctx context.Context, req model.Request) <-chan model.StreamEvent {
	params := p.buildParams(req)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] %s request: model=%s messages=%d tools=%d", p.name, params.Model, len(params.Messages), len(params.Tools))
	}

	return runStream(ctx, p.name, p.retry, func(ctx context.Context, sink *eventSink) error {
		stream := p.client.Chat.Completions.NewStreaming(ctx, params)
		defer stream.Close()

		state := newOpenAIStreamState(p.name, p.thinking)
		for stream.Next() {
			sink.sendAll(state.handle(stream.Current()))
		}
		if err := stream.Err(); err != nil {
			return err
		}

		sink.sendAll(state.finish())
		sink.done(state.finishReason, state.usage)
		return nil
	})
}

func (p *OpenAIProvider) buildParams(req model.Request) openai.ChatCompletionNewParams {
	params := openai.ChatCompletionNewParams{
		Model:    openai.ChatModel(p.requestModel(req)),
		Messages: ConvertToOpenAIMessages(req.Messages),
		StreamOptions: openai.ChatCompletionStreamOptionsParam{
			IncludeUsage: openai.Bool(true),
		},
	}

	if req.Temperature != nil {
		params.Temperature = openai.Float(*req.Temperature)
	}
	if req.MaxTokens > 0 {
		// OpenAI reasoning models only accept max_completion_tokens; other
		// compatible servers only know max_tokens.
		if p.name == string(ProviderTypeOpenAI) {
			params.MaxCompletionTokens = openai.Int(int64(req.MaxTokens))
		} else {
			params.MaxTokens = openai.Int(int64(req.MaxTokens))
		}
	}
	if len(req.Tools) > 0 {
		params.Tools = mcp.ConvertToolsToOpenAI(req.Tools)
	}
	return params
}

func (p *OpenAIProvider) requestModel(req model.Request) string {
	m := req.Model
	if m == "" {
		m = p.model
	}
	if p.prefix != "" {
		m = strings.TrimPrefix(m, p.prefix)
	}
	return m
}

// openAIStreamState turns chat completion chunks into canonical events for
// one request.
type openAIStreamState struct {
	router       *textRouter
	calls        *toolCallAccumulator
	usage        *model.Usage
	finishReason string
}

func newOpenAIStreamState(name string, mode model.ThinkingMode) *openAIStreamState {
	return &openAIStreamState{
		router: newTextRouter(mode),
		calls:  newToolCallAccumulator(name),
	}
}

func (s *openAIStreamState) handle(chunk openai.ChatCompletionChunk) []model.StreamEvent {
	var events []model.StreamEvent

	// Usage usually rides on a final chunk with no choices.
	if chunk.Usage.TotalTokens > 0 || chunk.Usage.PromptTokens > 0 {
		s.usage = &model.Usage{
			PromptTokens:     int(chunk.Usage.PromptTokens),
			CompletionTokens: int(chunk.Usage.CompletionTokens),
			TotalTokens:      int(chunk.Usage.TotalTokens),
			CachedTokens:     int(chunk.Usage.PromptTokensDetails.CachedTokens),
		}
	}

	for _, choice := range chunk.Choices {
		delta := choice.Delta
		events = append(events, s.router.reasoning(reasoningContent(delta))...)
		events = append(events, s.router.text(delta.Content)...)
		for _, tc := range delta.ToolCalls {
			events = append(events, s.calls.add(int(tc.Index), tc.ID, tc.Function.Name, tc.Function.Arguments)...)
		}
		if reason := string(choice.FinishReason); reason != "" {
			s.finishReason = reason
		}
	}
	return events
}

// finish flushes held-back text and finalizes buffered tool calls.
func (s *openAIStreamState) finish() []model.StreamEvent {
	events := s.router.flush()
	events = append(events, s.calls.flush()...)
	if s.finishReason == "" {
		s.finishReason = "stop"
	}
	return events
}

// reasoningContent reads the non-standard reasoning field that DeepSeek,
// vLLM and OpenRouter add to deltas. The SDK keeps unknown fields as raw
// JSON and never marks them valid, so presence is judged from the raw text.
func reasoningContent(delta openai.ChatCompletionChunkChoiceDelta) string {
	for _, key := range []string{"reasoning_content", "reasoning"} {
		field, ok := delta.JSON.ExtraFields[key]
		if !ok {
			continue
		}
		raw := field.Raw()
		if raw == "" || raw == "null" {
			continue
		}
		var text string
		if err := json.Unmarshal([]byte(raw), &text); err == nil && text != "" {
			return text
		}
	}
	return ""
}

// ListModels implements Provider.ListModels.
func (p *OpenAIProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	modelsPage, err := p.client.Models.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list %s models: %w", p.name, err)
	}

	result := make([]model.ModelInfo, 0, len(modelsPage.Data))
	for _, m := range modelsPage.Data {
		result = append(result, model.ModelInfo{
			Name:         stripVendorPrefix(m.ID),
			InternalName: m.ID,
			Provider:     p.name,
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *OpenAIProvider) GetModel() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *OpenAIProvider) SetModel(model string) {
	p.model = model
}

// Ping implements Provider.Ping by attempting to list models.
func (p *OpenAIProvider) Ping(ctx context.Context) error {
	_, err := p.client.Models.List(ctx)
	if err != nil {
		return fmt.Errorf("%s ping failed: %w", p.name, err)
	}
	return nil
}

// stripVendorPrefix removes the vendor prefix from a model id for display.
// Example: "qwen/qwen3-coder:free" → "qwen3-coder:free"
func stripVendorPrefix(modelID string) string {
	if i := strings.LastIndex(modelID, "/"); i >= 0 {
		return modelID[i+1:]
	}
	return modelID
}
