package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"byom/config"
	"byom/mcp"
	"byom/model"

	"google.golang.org/genai"
)

// GeminiProvider implements the Provider interface using the Google Gen AI SDK
// against the Gemini API.
type GeminiProvider struct {
	client   *genai.Client
	model    string
	retry    RetryPolicy
	thinking model.ThinkingMode
	budget   int
}

// NewGeminiProvider creates a new Gemini provider instance.
// Model defaults to "gemini-2.5-flash". Returns an error if the API key is missing.
func NewGeminiProvider(cfg Config) (*GeminiProvider, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("Gemini API key is required")
	}

	clientCfg := &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if cfg.BaseURL != "" {
		clientCfg.HTTPOptions = genai.HTTPOptions{BaseURL: cfg.BaseURL}
	}

	client, err := genai.NewClient(context.Background(), clientCfg)
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	modelName := cfg.Model
	if modelName == "" {
		modelName = "gemini-2.5-flash"
	}

	return &GeminiProvider{
		client:   client,
		model:    modelName,
		retry:    cfg.retryPolicy(),
		thinking: cfg.thinkingMode(),
		budget:   cfg.ThinkingBudget,
	}, nil
}

// Name implements Provider.Name.
func (p *GeminiProvider) Name() string {
	return string(ProviderTypeGemini)
}

// Stream implements Provider.Stream over GenerateContentStream.
func (p *GeminiProvider) Stream(ctx context.Context, req model.Request) <-chan model.StreamEvent {
	modelName := p.requestModel(req)
	contents, genCfg := p.buildRequest(req)

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Provider] gemini request: model=%s contents=%d tools=%d", modelName, len(contents), len(req.Tools))
	}

	return runStream(ctx, p.Name(), p.retry, func(ctx context.Context, sink *eventSink) error {
		state := newGeminiStreamState(p.thinking)
		for resp, err := range p.client.Models.GenerateContentStream(ctx, modelName, contents, genCfg) {
			if err != nil {
				return err
			}
			sink.sendAll(state.handle(resp))
		}

		sink.sendAll(state.finish())
		sink.done(state.finishReason, state.usage)
		return nil
	})
}

func (p *GeminiProvider) buildRequest(req model.Request) ([]*genai.Content, *genai.GenerateContentConfig) {
	contents, system := ConvertToGeminiContents(req.Messages)

	genCfg := &genai.GenerateContentConfig{
		SystemInstruction: system,
	}
	if req.Temperature != nil {
		genCfg.Temperature = genai.Ptr(float32(*req.Temperature))
	}
	if req.MaxTokens > 0 {
		genCfg.MaxOutputTokens = int32(req.MaxTokens)
	}
	if len(req.Tools) > 0 {
		genCfg.Tools = mcp.ConvertToolsToGemini(req.Tools)
	}
	if p.thinking == model.ThinkingNative {
		genCfg.ThinkingConfig = &genai.ThinkingConfig{IncludeThoughts: true}
		if p.budget > 0 {
			genCfg.ThinkingConfig.ThinkingBudget = genai.Ptr(int32(p.budget))
		}
	}
	return contents, genCfg
}

func (p *GeminiProvider) requestModel(req model.Request) string {
	m := req.Model
	if m == "" {
		m = p.model
	}
	return strings.TrimPrefix(m, "google/")
}

// geminiStreamState turns GenerateContent responses into canonical events.
type geminiStreamState struct {
	router       *textRouter
	calls        *toolCallAccumulator
	next         int
	usage        *model.Usage
	finishReason string
}

func newGeminiStreamState(mode model.ThinkingMode) *geminiStreamState {
	return &geminiStreamState{
		router: newTextRouter(mode),
		calls:  newToolCallAccumulator(string(ProviderTypeGemini)),
	}
}

func (s *geminiStreamState) handle(resp *genai.GenerateContentResponse) []model.StreamEvent {
	if resp == nil {
		return nil
	}

	var events []model.StreamEvent
	if u := resp.UsageMetadata; u != nil {
		s.usage = &model.Usage{
			PromptTokens:     int(u.PromptTokenCount),
			CompletionTokens: int(u.CandidatesTokenCount),
			TotalTokens:      int(u.TotalTokenCount),
			CachedTokens:     int(u.CachedContentTokenCount),
		}
	}

	for _, cand := range resp.Candidates {
		if cand == nil {
			continue
		}
		if cand.FinishReason != "" {
			s.finishReason = strings.ToLower(string(cand.FinishReason))
		}
		if cand.Content == nil {
			continue
		}
		for _, part := range cand.Content.Parts {
			if part == nil {
				continue
			}
			switch {
			case part.FunctionCall != nil:
				args, err := json.Marshal(part.FunctionCall.Args)
				if err != nil || part.FunctionCall.Args == nil {
					args = []byte("{}")
				}
				events = append(events, s.calls.add(s.next, part.FunctionCall.ID, part.FunctionCall.Name, string(args))...)
				s.next++
			case part.Thought:
				events = append(events, s.router.reasoning(part.Text)...)
			default:
				events = append(events, s.router.text(part.Text)...)
			}
		}
	}
	return events
}

func (s *geminiStreamState) finish() []model.StreamEvent {
	events := s.router.flush()
	events = append(events, s.calls.flush()...)
	if s.finishReason == "" {
		s.finishReason = "stop"
	}
	return events
}

// ListModels implements Provider.ListModels.
func (p *GeminiProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	var result []model.ModelInfo
	for m, err := range p.client.Models.All(ctx) {
		if err != nil {
			return nil, fmt.Errorf("failed to list gemini models: %w", err)
		}
		name := strings.TrimPrefix(m.Name, "models/")
		result = append(result, model.ModelInfo{
			Name:         name,
			InternalName: name,
			Provider:     p.Name(),
		})
	}
	return result, nil
}

// GetModel implements Provider.GetModel.
func (p *GeminiProvider) GetModel() string {
	return p.model
}

// SetModel implements Provider.SetModel.
func (p *GeminiProvider) SetModel(model string) {
	p.model = model
}

// Ping implements Provider.Ping by fetching the configured model.
func (p *GeminiProvider) Ping(ctx context.Context) error {
	if _, err := p.client.Models.Get(ctx, p.model, nil); err != nil {
		return fmt.Errorf("Gemini ping failed: %w", err)
	}
	return nil
}
