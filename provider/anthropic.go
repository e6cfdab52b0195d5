package provider

import (
	"context"
	"fmt"
	"strings"

	"byom/config"
	"byom/mcp"
	"byom/model"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
)

const (
	anthropicDefaultMaxTokens      = 8192
	anthropicDefaultThinkingBudget = 4096
	anthropicMinThinkingBudget     = 1024
)

// AnthropicProvider implements the Provider interface using Anthropic's official API.
// It uses the official Anthropic Go SDK for direct Claude API access.
type AnthropicProvider struct {
	client   anthropic.Client
	model    anthropic.Model
	baseURL  string
	retry    RetryPolicy
	thinking model.ThinkingMode
	budget   int
}

// NewAnthropicProvider creates a new Anthropic provider instance.
//
// BaseURL defaults to config.DefaultAnthropicBaseURL and Model to Claude
// Sonnet 4.5. Returns an error if the API key is missing.
func NewAnthropicProvider(cfg Config) (*AnthropicProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Anthropic API key is required")
	}
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultAnthropicBaseURL
	}

	anthropicModel := anthropic.ModelClaudeSonnet4_5_20250929
	if cfg.Model != "" {
		anthropicModel = anthropic.Model(cfg.Model)
	}

	budget := cfg.ThinkingBudget
	if budget == 0 {
		budget = anthropicDefaultThinkingBudget
	}
	if budget < anthropicMinThinkingBudget {
		budget = anthropicMinThinkingBudget
	}

	client := anthropic.NewClient(
		option.WithBaseURL(baseURL),
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	)

	return &AnthropicProvider{
		client:   client,
		model:    anthropicModel,
		baseURL:  baseURL,
		retry:    cfg.retryPolicy(),
		thinking: cfg.thinkingMode(),
		budget:   budget,
	}, nil
}

// Name implements Provider.Name.
func (p *AnthropicProvider) Name() string {
	return string(ProviderTypeAnthropic)
}

// Stream implements Provider.Stream over the Messages streaming API.
func (p *AnthropicProvider) Stream(ctx context.Context, req model.Request) <-chan model.StreamEvent {
	params := p.buildParams(req)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] anthropic request: model=%s messages=%d tools=%d", params.Model, len(params.Messages), len(params.Tools))
	}

	return runStream(ctx, p.Name(), p.retry, func(ctx context.Context, sink *eventSink) error {
		stream := p.client.Messages.NewStreaming(ctx, params)
		defer stream.Close()

		state := newAnthropicStreamState(p.thinking)
		for stream.Next() {
			sink.sendAll(state.handle(stream.Current()))
		}
		if err := stream.Err(); err != nil {
			return err
		}

		sink.sendAll(state.finish())
		sink.done(state.stopReason, state.usage())
		return nil
	})
}

func (p *AnthropicProvider) buildParams(req model.Request) anthropic.MessageNewParams {
	messages, system := ConvertToAnthropicMessages(req.Messages)

	maxTokens := int64(req.MaxTokens)
	if maxTokens <= 0 {
		maxTokens = anthropicDefaultMaxTokens
	}

	params := anthropic.MessageNewParams{
		Model:     p.requestModel(req),
		Messages:  messages,
		MaxTokens: maxTokens,
	}
	if len(system) > 0 {
		params.System = system
	}
	if len(req.Tools) > 0 {
		params.Tools = mcp.ConvertToolsToAnthropic(req.Tools)
	}

	if p.useExtendedThinking(req.Messages) {
		budget := int64(p.budget)
		if params.MaxTokens <= budget {
			params.MaxTokens = budget + anthropicDefaultMaxTokens
		}
		// Extended thinking requires the default temperature.
		params.Thinking = anthropic.ThinkingConfigParamOfEnabled(budget)
	} else if req.Temperature != nil {
		params.Temperature = anthropic.Float(*req.Temperature)
	}

	return params
}

// useExtendedThinking reports whether native thinking is requested for this
// call. Thinking blocks are not kept in the transcript, so it is only enabled
// when a turn starts from a user message and never inside a tool loop.
func (p *AnthropicProvider) useExtendedThinking(messages []model.Message) bool {
	if p.thinking != model.ThinkingNative || len(messages) == 0 {
		return false
	}
	return messages[len(messages)-1].Role == model.RoleUser
}

func (p *AnthropicProvider) requestModel(req model.Request) anthropic.Model {
	m := req.Model
	if m == "" {
		return p.model
	}
	return anthropic.Model(strings.TrimPrefix(m, "anthropic/"))
}

// anthropicStreamState turns Messages stream events into canonical events.
type anthropicStreamState struct {
	router       *textRouter
	calls        *toolCallAccumulator
	inputTokens  int
	cachedTokens int
	outputTokens int
	stopReason   string
}

func newAnthropicStreamState(mode model.ThinkingMode) *anthropicStreamState {
	return &anthropicStreamState{
		router: newTextRouter(mode),
		calls:  newToolCallAccumulator(string(ProviderTypeAnthropic)),
	}
}

func (s *anthropicStreamState) handle(event anthropic.MessageStreamEventUnion) []model.StreamEvent {
	switch ev := event.AsAny().(type) {
	case anthropic.MessageStartEvent:
		s.inputTokens = int(ev.Message.Usage.InputTokens)
		s.cachedTokens = int(ev.Message.Usage.CacheReadInputTokens)
		s.outputTokens = int(ev.Message.Usage.OutputTokens)

	case anthropic.ContentBlockStartEvent:
		if ev.ContentBlock.Type == "tool_use" {
			return s.calls.add(int(ev.Index), ev.ContentBlock.ID, ev.ContentBlock.Name, "")
		}

	case anthropic.ContentBlockDeltaEvent:
		switch delta := ev.Delta.AsAny().(type) {
		case anthropic.TextDelta:
			return s.router.text(delta.Text)
		case anthropic.ThinkingDelta:
			return s.router.reasoning(delta.Thinking)
		case anthropic.InputJSONDelta:
			return s.calls.add(int(ev.Index), "", "", delta.PartialJSON)
		}

	case anthropic.MessageDeltaEvent:
		if ev.Delta.StopReason != "" {
			s.stopReason = string(ev.Delta.StopReason)
		}
		if ev.Usage.OutputTokens > 0 {
			s.outputTokens = int(ev.Usage.OutputTokens)
		}
	}
	return nil
}

func (s *anthropicStreamState) finish() []model.StreamEvent {
	events := s.router.flush()
	events = append(events, s.calls.flush()...)
	if s.stopReason == "" {
		s.stopReason = "end_turn"
	}
	return events
}

func (s *anthropicStreamState) usage() *model.Usage {
	if s.inputTokens == 0 && s.outputTokens == 0 {
		return nil
	}
	return &model.Usage{
		PromptTokens:     s.inputTokens,
		CompletionTokens: s.outputTokens,
		TotalTokens:      s.inputTokens + s.outputTokens,
		CachedTokens:     s.cachedTokens,
	}
}

// ListModels implements Provider.ListModels.
func (p *AnthropicProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	// Curated list of Claude models known to the SDK version in use
	models := []anthropic.Model{
		anthropic.ModelClaudeSonnet4_5_20250929,
		anthropic.ModelClaude3_5Haiku20241022,
		anthropic.ModelClaude_3_Opus_20240229,
		anthropic.ModelClaude_3_Haiku_20240307,
	}

	result := make([]model.ModelInfo, 0, len(models))
	for _, m := range models {
		result = append(result, model.ModelInfo{
			Name:         string(m),
			InternalName: string(m),
			Provider:     p.Name(),
		})
	}

	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *AnthropicProvider) GetModel() string {
	return string(p.model)
}

// SetModel implements Provider.SetModel.
func (p *AnthropicProvider) SetModel(model string) {
	p.model = anthropic.Model(model)
}

// Ping implements Provider.Ping by attempting to create a minimal request.
func (p *AnthropicProvider) Ping(ctx context.Context) error {
	// Anthropic doesn't have a ping/health endpoint, so we make a minimal request
	_, err := p.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     p.model,
		MaxTokens: 1,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock("ping")),
		},
	})
	if err != nil {
		return fmt.Errorf("Anthropic ping failed: %w", err)
	}
	return nil
}
