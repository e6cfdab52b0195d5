package testutil

import (
	"context"
	"sync"

	"byom/model"
)

// MockProvider implements model.Provider for testing by replaying scripted
// event sequences, one per Stream call.
type MockProvider struct {
	// StreamFunc overrides scripted playback when set.
	StreamFunc     func(ctx context.Context, req model.Request) []model.StreamEvent
	ListModelsFunc func(ctx context.Context) ([]model.ModelInfo, error)
	PingFunc       func(ctx context.Context) error

	mu           sync.Mutex
	script       [][]model.StreamEvent
	requests     []model.Request
	currentModel string
}

// NewMockProvider creates a mock that plays turns in order. Once the script
// is exhausted every call answers "Mock response".
func NewMockProvider(modelName string, turns ...[]model.StreamEvent) *MockProvider {
	return &MockProvider{
		script:       turns,
		currentModel: modelName,
	}
}

// Name implements model.Provider.
func (m *MockProvider) Name() string {
	return "mock"
}

// Stream implements model.Provider. Cancellation of ctx ends the stream with
// a cancelled error.
func (m *MockProvider) Stream(ctx context.Context, req model.Request) <-chan model.StreamEvent {
	m.mu.Lock()
	m.requests = append(m.requests, cloneRequest(req))
	var events []model.StreamEvent
	switch {
	case m.StreamFunc != nil:
	case len(m.script) > 0:
		events = m.script[0]
		m.script = m.script[1:]
	default:
		events = TextTurn("Mock response")
	}
	streamFunc := m.StreamFunc
	m.mu.Unlock()

	out := make(chan model.StreamEvent)
	go func() {
		defer close(out)
		if streamFunc != nil {
			events = streamFunc(ctx, req)
		}
		for _, ev := range events {
			if ctx.Err() != nil {
				out <- model.ErrorEvent("cancelled", "request to mock cancelled: "+ctx.Err().Error())
				return
			}
			out <- ev
			if ev.Terminal() {
				return
			}
		}
	}()
	return out
}

// Requests returns every request received so far.
func (m *MockProvider) Requests() []model.Request {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]model.Request(nil), m.requests...)
}

// Calls returns how many times Stream was invoked.
func (m *MockProvider) Calls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.requests)
}

func (m *MockProvider) ListModels(ctx context.Context) ([]model.ModelInfo, error) {
	if m.ListModelsFunc != nil {
		return m.ListModelsFunc(ctx)
	}
	return []model.ModelInfo{
		{Name: "mock-model-1", Size: 1000, Provider: "mock"},
		{Name: "mock-model-2", Size: 2000, Provider: "mock"},
	}, nil
}

func (m *MockProvider) Ping(ctx context.Context) error {
	if m.PingFunc != nil {
		return m.PingFunc(ctx)
	}
	return nil
}

func (m *MockProvider) GetModel() string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.currentModel
}

func (m *MockProvider) SetModel(model string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.currentModel = model
}

func cloneRequest(req model.Request) model.Request {
	req.Messages = append([]model.Message(nil), req.Messages...)
	return req
}

// TextTurn scripts a plain text answer.
func TextTurn(text string) []model.StreamEvent {
	return []model.StreamEvent{
		model.TextDelta(text),
		model.DoneEvent("stop", nil),
	}
}

// ToolTurn scripts a turn that requests calls, optionally preceded by text.
func ToolTurn(text string, calls ...model.ToolCall) []model.StreamEvent {
	var events []model.StreamEvent
	if text != "" {
		events = append(events, model.TextDelta(text))
	}
	for _, c := range calls {
		events = append(events,
			model.ToolCallStart(c.ID, c.Name),
			model.ToolCallArgDelta(c.ID, c.ArgumentsJSON()),
			model.ToolCallComplete(c),
		)
	}
	return append(events, model.DoneEvent("tool_calls", &model.Usage{PromptTokens: 10, CompletionTokens: 5, TotalTokens: 15}))
}

// ErrorTurn scripts a failed request.
func ErrorTurn(kind, message string) []model.StreamEvent {
	return []model.StreamEvent{model.ErrorEvent(kind, message)}
}
