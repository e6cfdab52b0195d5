package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"byom/config"
	"byom/mcp"
	"byom/model"
	"byom/ollama"

	"github.com/ollama/ollama/api"
)

// OllamaProvider wraps ollama.Client to implement the Provider interface.
//
// Ollama streams complete tool calls rather than fragments and does not assign
// call ids, so every call gets a synthesized one.
type OllamaProvider struct {
	client   *ollama.Client
	retry    RetryPolicy
	thinking model.ThinkingMode
}

// NewOllamaProvider creates a new Ollama provider instance.
//
// BaseURL defaults to "http://localhost:11434" and Model to
// "llama3.1:latest". No API key is needed.
func NewOllamaProvider(cfg Config) (*OllamaProvider, error) {
	client, err := ollama.NewClient(cfg.BaseURL, strings.TrimPrefix(cfg.Model, "ollama/"))
	if err != nil {
		return nil, fmt.Errorf("failed to create Ollama client: %w", err)
	}

	return &OllamaProvider{
		client:   client,
		retry:    cfg.retryPolicy(),
		thinking: cfg.thinkingMode(),
	}, nil
}

// Name implements Provider.Name.
func (p *OllamaProvider) Name() string {
	return string(ProviderTypeOllama)
}

// Stream implements Provider.Stream.
func (p *OllamaProvider) Stream(ctx context.Context, req model.Request) <-chan model.StreamEvent {
	modelName := strings.TrimPrefix(req.Model, "ollama/")
	if modelName == "" {
		modelName = p.client.GetModel()
	}
	messages := ConvertToOllamaMessages(req.Messages)

	var tools []api.Tool
	if len(req.Tools) > 0 {
		tools = mcp.ConvertToolsToOllama(req.Tools)
		if !ollama.ModelSupportsToolCalling(modelName) && config.DebugLog != nil {
			config.DebugLog.Printf("[Provider] ollama model %s is not known to support native tool calling", modelName)
		}
	}

	opts := ollama.ChatOptions{
		Temperature: req.Temperature,
		NumPredict:  req.MaxTokens,
		Think:       p.thinking == model.ThinkingNative,
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] ollama request: model=%s messages=%d tools=%d", modelName, len(messages), len(tools))
	}

	return runStream(ctx, p.Name(), p.retry, func(ctx context.Context, sink *eventSink) error {
		state := newOllamaStreamState(p.thinking)
		err := p.client.ChatWithTools(ctx, modelName, messages, tools, opts, func(resp api.ChatResponse) error {
			sink.sendAll(state.handle(resp))
			return nil
		})
		if err != nil {
			return err
		}

		sink.sendAll(state.finish())
		sink.done(state.doneReason, state.usage)
		return nil
	})
}

// ollamaStreamState turns Ollama chat chunks into canonical events.
type ollamaStreamState struct {
	router     *textRouter
	calls      *toolCallAccumulator
	next       int // position index for the next tool call
	usage      *model.Usage
	doneReason string
}

func newOllamaStreamState(mode model.ThinkingMode) *ollamaStreamState {
	return &ollamaStreamState{
		router: newTextRouter(mode),
		calls:  newToolCallAccumulator(string(ProviderTypeOllama)),
	}
}

func (s *ollamaStreamState) handle(resp api.ChatResponse) []model.StreamEvent {
	events := s.router.reasoning(resp.Message.Thinking)
	events = append(events, s.router.text(resp.Message.Content)...)

	for _, tc := range resp.Message.ToolCalls {
		args, err := json.Marshal(tc.Function.Arguments)
		if err != nil {
			args = []byte("{}")
		}
		events = append(events, s.calls.add(s.next, "", tc.Function.Name, string(args))...)
		s.next++
	}

	if resp.Done {
		s.doneReason = resp.DoneReason
		if resp.PromptEvalCount > 0 || resp.EvalCount > 0 {
			s.usage = &model.Usage{
				PromptTokens:     resp.PromptEvalCount,
				CompletionTokens: resp.EvalCount,
				TotalTokens:      resp.PromptEvalCount + resp.EvalCount,
			}
		}
	}
	return events
}

func (s *ollamaStreamState) finish() []model.StreamEvent {
	events := s.router.flush()
	events = append(events, s.calls.flush()...)
	if s.doneReason == "" {
		s.doneReason = "stop"
	}
	return events
}

// ListModels implements Provider.ListModels (direct passthrough).
func (p *OllamaProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	return p.client.ListModels(ctx)
}

// GetModel implements Provider.GetModel (direct passthrough).
func (p *OllamaProvider) GetModel() string {
	return p.client.GetModel()
}

// SetModel implements Provider.SetModel (direct passthrough).
func (p *OllamaProvider) SetModel(model string) {
	p.client.SetModel(strings.TrimPrefix(model, "ollama/"))
}

// Ping implements Provider.Ping (direct passthrough).
func (p *OllamaProvider) Ping(ctx context.Context) error {
	return p.client.Ping(ctx)
}
