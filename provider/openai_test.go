package provider

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"byom/model"
	"byom/provider/testutil"

	"github.com/openai/openai-go/v3"
)

func chunk(t *testing.T, raw string) openai.ChatCompletionChunk {
	t.Helper()
	var c openai.ChatCompletionChunk
	if err := json.Unmarshal([]byte(raw), &c); err != nil {
		t.Fatalf("unmarshal chunk: %v", err)
	}
	return c
}

func TestOpenAIStreamState(t *testing.T) {
	state := newOpenAIStreamState("openai", model.ThinkingTags)

	raws := []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"role":"assistant","content":"Let me look."}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"id":"call_abc","type":"function","function":{"name":"read_file","arguments":""}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"{\"path\":"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"tool_calls":[{"index":0,"function":{"arguments":"\"main.go\"}"}}]}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{},"finish_reason":"tool_calls"}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":12,"completion_tokens":8,"total_tokens":20}}`,
	}

	var events []model.StreamEvent
	for _, raw := range raws {
		events = append(events, state.handle(chunk(t, raw))...)
	}
	events = append(events, state.finish()...)

	if events[0].Kind != model.StreamTextDelta || events[0].Text != "Let me look." {
		t.Errorf("first event: got %+v", events[0])
	}

	last := events[len(events)-1]
	if last.Kind != model.StreamToolCallComplete {
		t.Fatalf("last event: got %v, want tool call complete", last.Kind)
	}
	if last.ToolCall.ID != "call_abc" || last.ToolCall.Arguments["path"] != "main.go" {
		t.Errorf("tool call: got %+v", last.ToolCall)
	}
	if state.finishReason != "tool_calls" {
		t.Errorf("finish reason: got %q", state.finishReason)
	}
	if state.usage == nil || state.usage.TotalTokens != 20 {
		t.Errorf("usage: got %+v", state.usage)
	}
}

func TestOpenAIReasoningContent(t *testing.T) {
	raw := `{"id":"1","object":"chat.completion.chunk","created":1,"model":"deepseek-r1","choices":[{"index":0,"delta":{"reasoning_content":"thinking hard"}}]}`

	native := newOpenAIStreamState("openai", model.ThinkingNative)
	events := native.handle(chunk(t, raw))
	if len(events) != 1 || events[0].Kind != model.StreamThinkingDelta || events[0].Text != "thinking hard" {
		t.Errorf("native mode: got %+v", events)
	}

	tags := newOpenAIStreamState("openai", model.ThinkingTags)
	if events := tags.handle(chunk(t, raw)); len(events) != 0 {
		t.Errorf("tags mode should drop native reasoning, got %+v", events)
	}
}

func TestOpenAIReasoningFields(t *testing.T) {
	tests := []struct {
		name  string
		delta string
		want  string
	}{
		{"reasoning_content", `{"reasoning_content":"step one"}`, "step one"},
		{"openrouter reasoning", `{"reasoning":"step two"}`, "step two"},
		{"null reasoning", `{"reasoning_content":null,"content":"hi"}`, ""},
		{"no reasoning", `{"content":"hi"}`, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw := `{"id":"1","object":"chat.completion.chunk","created":1,"model":"m","choices":[{"index":0,"delta":` + tt.delta + `}]}`
			c := chunk(t, raw)
			if got := reasoningContent(c.Choices[0].Delta); got != tt.want {
				t.Errorf("reasoningContent: got %q, want %q", got, tt.want)
			}
		})
	}
}

func sseServer(t *testing.T, chunks []string) *httptest.Server {
	t.Helper()
	return httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "text/event-stream")
		for _, c := range chunks {
			fmt.Fprintf(w, "data: %s\n\n", c)
		}
		fmt.Fprint(w, "data: [DONE]\n\n")
	}))
}

func TestOpenAIProviderStream(t *testing.T) {
	srv := sseServer(t, []string{
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"<think>hm</think>Hel"}}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[{"index":0,"delta":{"content":"lo"},"finish_reason":"stop"}]}`,
		`{"id":"1","object":"chat.completion.chunk","created":1,"model":"gpt-4o","choices":[],"usage":{"prompt_tokens":5,"completion_tokens":2,"total_tokens":7}}`,
	})
	defer srv.Close()

	p, err := NewOpenAIProvider(Config{BaseURL: srv.URL, APIKey: "test-key", Model: "gpt-4o"})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	var text, thinking string
	var terminal []model.StreamEvent
	for ev := range p.Stream(ctx, model.Request{Messages: testutil.SingleUserMessage("hi")}) {
		switch ev.Kind {
		case model.StreamTextDelta:
			text += ev.Text
		case model.StreamThinkingDelta:
			thinking += ev.Text
		case model.StreamDone, model.StreamError:
			terminal = append(terminal, ev)
		}
	}

	if text != "Hello" || thinking != "hm" {
		t.Errorf("got text=%q thinking=%q", text, thinking)
	}
	if len(terminal) != 1 || terminal[0].Kind != model.StreamDone {
		t.Fatalf("terminal events: got %+v", terminal)
	}
	if terminal[0].FinishReason != "stop" || terminal[0].Usage == nil || terminal[0].Usage.TotalTokens != 7 {
		t.Errorf("done: got %+v", terminal[0])
	}
}

func TestOpenAIProviderRetriesRateLimit(t *testing.T) {
	var hits atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusTooManyRequests)
		fmt.Fprint(w, `{"error":{"message":"slow down","type":"rate_limit"}}`)
	}))
	defer srv.Close()

	var retries atomic.Int32
	p, err := NewOpenAIProvider(Config{
		BaseURL:        srv.URL,
		APIKey:         "test-key",
		MaxRetries:     2,
		RetryBaseDelay: time.Millisecond,
		OnRetry:        func(*Error, int, time.Duration) { retries.Add(1) },
	})
	if err != nil {
		t.Fatalf("NewOpenAIProvider: %v", err)
	}

	events := collect(p.Stream(context.Background(), model.Request{Messages: testutil.SingleUserMessage("hi")}))

	if hits.Load() != 3 || retries.Load() != 2 {
		t.Errorf("hits=%d retries=%d, want 3 and 2", hits.Load(), retries.Load())
	}
	if len(events) != 1 || events[0].ErrorKind != string(ErrorRateLimited) {
		t.Errorf("events: got %+v", events)
	}
}

func TestOpenAIRequiresKey(t *testing.T) {
	if _, err := NewOpenAIProvider(Config{}); err == nil {
		t.Error("expected an error without API key")
	}
	if _, err := NewOpenAIProvider(Config{BaseURL: "http://localhost:8000/v1"}); err != nil {
		t.Errorf("local endpoint should not need a key: %v", err)
	}
	if _, err := NewOpenRouterProvider(Config{}); err == nil {
		t.Error("expected an error without OpenRouter API key")
	}
}

func TestOpenRouterStripsRoutingPrefix(t *testing.T) {
	p, err := NewOpenRouterProvider(Config{APIKey: "k"})
	if err != nil {
		t.Fatalf("NewOpenRouterProvider: %v", err)
	}
	if got := p.requestModel(model.Request{Model: "openrouter/qwen/qwen3-coder:free"}); got != "qwen/qwen3-coder:free" {
		t.Errorf("requestModel: got %q", got)
	}
	if got := stripVendorPrefix("qwen/qwen3-coder:free"); got != "qwen3-coder:free" {
		t.Errorf("stripVendorPrefix: got %q", got)
	}
}
