// Package agent drives the request/act/observe loop: it streams a completion
// from a provider bridge, executes the tool calls the model asks for, feeds
// the results back and repeats until the model answers without tools or the
// turn budget runs out.
//
// A run is observed through a channel of lifecycle Events. The channel is
// unbuffered and closes after exactly one EventRunEnd; callers must drain it.
package agent

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
	"time"

	"byom/config"
	"byom/model"
	"byom/provider"
	"byom/toolcall"

	"github.com/google/uuid"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

const DefaultMaxTurns = 100

// ToolExecutor runs one tool call. It never panics through to the caller and
// reports every failure in the result.
type ToolExecutor interface {
	Invoke(ctx context.Context, name string, args map[string]any, workDir string) model.ToolResult
}

// ToolSource lists the tool declarations sent with each request.
type ToolSource interface {
	List() []mcptypes.Tool
}

type Config struct {
	// Provider selects and configures the bridge when the agent is built
	// from a registry.
	Provider provider.Config

	// MaxTurns bounds model requests per run. Zero means DefaultMaxTurns;
	// values below one are raised to one.
	MaxTurns    int
	Temperature *float64
	MaxTokens   int

	// RequestTimeout bounds each model request. Zero means no limit.
	RequestTimeout time.Duration

	WorkingDirectory string
	SystemPrompt     string

	// ExtractTextToolCalls recovers calls written as plain text when a turn
	// produced no structured calls.
	ExtractTextToolCalls bool

	// AllowedTools restricts the tools offered and dispatched. Empty allows all.
	AllowedTools []string
}

func (c Config) maxTurns() int {
	switch {
	case c.MaxTurns == 0:
		return DefaultMaxTurns
	case c.MaxTurns < 1:
		return 1
	}
	return c.MaxTurns
}

// Agent owns one conversation. Runs on the same Agent must not overlap.
type Agent struct {
	provider model.Provider
	cfg      Config
	executor ToolExecutor
	schemas  ToolSource
	conv     ConversationContext
	allowed  map[string]bool

	running       atomic.Bool
	stopRequested atomic.Bool
}

// New builds an agent whose bridge comes from reg. A nil schemas source means
// no tools are offered; a nil conv starts an empty in-memory transcript.
func New(reg *provider.Registry, cfg Config, executor ToolExecutor, schemas ToolSource, conv ConversationContext) (*Agent, error) {
	p, err := reg.New(cfg.Provider)
	if err != nil {
		return nil, fmt.Errorf("create agent: %w", err)
	}
	return NewWithProvider(p, cfg, executor, schemas, conv), nil
}

// NewWithProvider builds an agent around an existing bridge.
func NewWithProvider(p model.Provider, cfg Config, executor ToolExecutor, schemas ToolSource, conv ConversationContext) *Agent {
	if conv == nil {
		conv = NewMemoryContext()
	}
	a := &Agent{
		provider: p,
		cfg:      cfg,
		executor: executor,
		schemas:  schemas,
		conv:     conv,
	}
	if len(cfg.AllowedTools) > 0 {
		a.allowed = make(map[string]bool, len(cfg.AllowedTools))
		for _, name := range cfg.AllowedTools {
			a.allowed[name] = true
		}
	}
	return a
}

func (a *Agent) Provider() model.Provider {
	return a.provider
}

func (a *Agent) Conversation() ConversationContext {
	return a.conv
}

// Stop asks the current run to end with ReasonExplicitStop at the next turn
// boundary. Text already streamed stays valid.
func (a *Agent) Stop() {
	a.stopRequested.Store(true)
}

// Run appends input as a user message and starts the loop.
func (a *Agent) Run(ctx context.Context, input string) <-chan Event {
	out := make(chan Event)
	r := &run{
		agent: a,
		id:    uuid.NewString(),
		out:   out,
	}

	if !a.running.CompareAndSwap(false, true) {
		go func() {
			defer close(out)
			r.fail("", "agent is already running")
			r.end(ReasonError, "")
		}()
		return out
	}
	a.stopRequested.Store(false)

	go func() {
		defer close(out)
		defer a.running.Store(false)
		r.loop(ctx, input)
	}()
	return out
}

// RunSync drains Run. The error is set when the run ended with ReasonError.
func (a *Agent) RunSync(ctx context.Context, input string) (RunResult, error) {
	var result RunResult
	for ev := range a.Run(ctx, input) {
		switch ev.Kind {
		case EventRunStart:
			result.RunID = ev.RunID
		case EventToolCallStart:
			result.ToolsCalled = append(result.ToolsCalled, ev.ToolCall.Name)
		case EventRunError:
			result.Errors = append(result.Errors, ev.Error)
		case EventRunEnd:
			result.RunID = ev.RunID
			result.Reason = ev.Reason
			result.FinalText = ev.FinalText
			result.Turns = ev.Turns
			if ev.Usage != nil {
				result.Usage = *ev.Usage
			}
		}
	}
	if result.Reason == ReasonError {
		return result, errors.New(strings.Join(result.Errors, "; "))
	}
	return result, nil
}

// run is the state of one Run call.
type run struct {
	agent *Agent
	id    string
	out   chan<- Event
	turn  int
	usage model.Usage
}

func (r *run) emit(ev Event) {
	ev.RunID = r.id
	ev.Turn = r.turn
	r.out <- ev
}

func (r *run) fail(kind, message string) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Agent] Run %s turn %d failed (%s): %s", r.id, r.turn, kind, message)
	}
	r.emit(Event{Kind: EventRunError, Error: message, ErrorKind: kind})
}

func (r *run) end(reason Reason, finalText string) {
	if config.DebugLog != nil {
		config.DebugLog.Printf("[Agent] Run %s ended: %s after %d turns", r.id, reason, r.turn)
	}
	usage := r.usage
	r.emit(Event{Kind: EventRunEnd, Reason: reason, FinalText: finalText, Turns: r.turn, Usage: &usage})
}

func (r *run) loop(ctx context.Context, input string) {
	a := r.agent
	r.emit(Event{Kind: EventRunStart, Text: input})

	if a.cfg.SystemPrompt != "" && len(a.conv.Snapshot()) == 0 {
		if err := a.conv.Append(model.NewSystemMessage(a.cfg.SystemPrompt)); err != nil {
			r.fail("", fmt.Sprintf("append system prompt: %v", err))
			r.end(ReasonError, "")
			return
		}
	}
	if err := a.conv.Append(model.NewUserMessage(input)); err != nil {
		r.fail("", fmt.Sprintf("append user message: %v", err))
		r.end(ReasonError, "")
		return
	}

	maxTurns := a.cfg.maxTurns()
	for {
		if ctx.Err() != nil {
			r.end(ReasonCancelled, "")
			return
		}
		if a.stopRequested.Load() {
			r.end(ReasonExplicitStop, "")
			return
		}
		if r.turn >= maxTurns {
			r.end(ReasonMaxTurns, "")
			return
		}
		r.turn++

		text, calls, streamErr := r.streamTurn(ctx)
		if streamErr != nil {
			if ctx.Err() != nil {
				r.end(ReasonCancelled, "")
				return
			}
			r.fail(streamErr.ErrorKind, streamErr.Message)
			r.end(ReasonError, "")
			return
		}

		if len(calls) == 0 && a.cfg.ExtractTextToolCalls {
			calls = toolcall.ExtractFromText(text)
			if len(calls) > 0 && config.DebugLog != nil {
				config.DebugLog.Printf("[Agent] Recovered %d tool calls from text", len(calls))
			}
		}

		if text != "" || len(calls) > 0 {
			if err := a.conv.Append(model.NewAssistantMessage(text, calls)); err != nil {
				r.fail("", fmt.Sprintf("append assistant message: %v", err))
				r.end(ReasonError, "")
				return
			}
		}

		if len(calls) == 0 {
			r.emit(Event{Kind: EventTextFinal, Text: text})
			r.end(ReasonNoToolCalls, text)
			return
		}
		if text != "" {
			r.emit(Event{Kind: EventTextFinal, Text: text})
		}

		if config.DebugLog != nil {
			config.DebugLog.Printf("[Agent] Turn %d: executing %d tool calls", r.turn, len(calls))
		}

		// Results go into the transcript only after every call ran, in call order.
		messages := make([]model.Message, 0, len(calls))
		for _, call := range calls {
			result := r.execute(ctx, call)
			messages = append(messages, model.NewToolMessage(call.ID, result.ModelOutput(), !result.Success))
		}
		for _, msg := range messages {
			if err := a.conv.Append(msg); err != nil {
				r.fail("", fmt.Sprintf("append tool result: %v", err))
				r.end(ReasonError, "")
				return
			}
		}
	}
}

// streamTurn sends the transcript and collects one response. Text and
// thinking fragments are forwarded as they arrive. The provider stream is
// always drained.
func (r *run) streamTurn(ctx context.Context) (string, []model.ToolCall, *model.StreamEvent) {
	a := r.agent
	if a.cfg.RequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, a.cfg.RequestTimeout)
		defer cancel()
	}
	req := model.Request{
		Messages:    a.conv.Snapshot(),
		Tools:       a.tools(),
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}

	var text strings.Builder
	var calls []model.ToolCall
	var streamErr *model.StreamEvent
	var usage *model.Usage

	for ev := range a.provider.Stream(ctx, req) {
		switch ev.Kind {
		case model.StreamTextDelta:
			text.WriteString(ev.Text)
			r.emit(Event{Kind: EventTextDelta, Text: ev.Text})
		case model.StreamThinkingDelta:
			r.emit(Event{Kind: EventThinkingDelta, Text: ev.Text})
		case model.StreamToolCallComplete:
			if ev.ToolCall != nil {
				calls = append(calls, *ev.ToolCall)
			}
		case model.StreamUsage:
			usage = ev.Usage
		case model.StreamDone:
			if usage == nil {
				usage = ev.Usage
			}
		case model.StreamError:
			e := ev
			streamErr = &e
		}
	}

	if usage != nil {
		r.usage.Add(*usage)
		u := *usage
		r.emit(Event{Kind: EventUsage, Usage: &u})
	}
	if streamErr == nil && ctx.Err() != nil {
		streamErr = &model.StreamEvent{Kind: model.StreamError, ErrorKind: "cancelled", Message: ctx.Err().Error()}
	}
	if streamErr != nil {
		return "", nil, streamErr
	}
	return text.String(), calls, nil
}

// execute validates and dispatches one call, emitting its lifecycle events.
func (r *run) execute(ctx context.Context, call model.ToolCall) model.ToolResult {
	a := r.agent
	c := call
	r.emit(Event{Kind: EventToolCallStart, ToolCall: &c})

	var result model.ToolResult
	switch problems := toolcall.Validate(call); {
	case len(problems) > 0:
		result = model.ErrorResult("invalid tool call: "+strings.Join(problems, "; "), "")
		result.Metadata = map[string]any{MetaValidationErrors: problems}
	case a.allowed != nil && !a.allowed[call.Name]:
		result = model.ErrorResult(fmt.Sprintf("tool %s is not available", call.Name), "")
	case a.executor == nil:
		result = model.ErrorResult(fmt.Sprintf("no tool executor configured for %s", call.Name), "")
	default:
		result = a.executor.Invoke(ctx, call.Name, call.Arguments, a.cfg.WorkingDirectory)
	}

	if call.ParseDegraded {
		if result.Metadata == nil {
			result.Metadata = map[string]any{}
		}
		result.Metadata[MetaParseDegraded] = true
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Agent] Tool %s (%s) success=%v", call.Name, call.ID, result.Success)
	}
	res := result
	r.emit(Event{Kind: EventToolCallComplete, ToolCall: &c, Result: &res})
	return result
}

func (a *Agent) tools() []mcptypes.Tool {
	if a.schemas == nil {
		return nil
	}
	list := a.schemas.List()
	if a.allowed == nil {
		return list
	}
	filtered := make([]mcptypes.Tool, 0, len(list))
	for _, tool := range list {
		if a.allowed[tool.Name] {
			filtered = append(filtered, tool)
		}
	}
	return filtered
}
