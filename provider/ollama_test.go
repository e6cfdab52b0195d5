package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"byom/model"
	"byom/provider/testutil"

	"github.com/ollama/ollama/api"
)

func TestOllamaStreamState(t *testing.T) {
	state := newOllamaStreamState(model.ThinkingTags)

	var events []model.StreamEvent
	events = append(events, state.handle(api.ChatResponse{Message: api.Message{Role: "assistant", Content: "<think>hmm</think>Sure"}})...)
	events = append(events, state.handle(api.ChatResponse{Message: api.Message{
		Role: "assistant",
		ToolCalls: []api.ToolCall{
			{Function: api.ToolCallFunction{Name: "read_file", Arguments: api.ToolCallFunctionArguments{"path": "a.go"}}},
			{Function: api.ToolCallFunction{Name: "read_file", Arguments: api.ToolCallFunctionArguments{"path": "b.go"}}},
		},
	}})...)
	events = append(events, state.handle(api.ChatResponse{
		Done:       true,
		DoneReason: "stop",
		Metrics:    api.Metrics{PromptEvalCount: 30, EvalCount: 12},
	})...)
	events = append(events, state.finish()...)

	var completes []*model.ToolCall
	var text, thinking string
	for _, ev := range events {
		switch ev.Kind {
		case model.StreamTextDelta:
			text += ev.Text
		case model.StreamThinkingDelta:
			thinking += ev.Text
		case model.StreamToolCallComplete:
			completes = append(completes, ev.ToolCall)
		}
	}

	if text != "Sure" || thinking != "hmm" {
		t.Errorf("got text=%q thinking=%q", text, thinking)
	}
	if len(completes) != 2 {
		t.Fatalf("completes: got %d, want 2", len(completes))
	}
	if completes[0].ID == completes[1].ID {
		t.Errorf("synthesized ids collide: %q", completes[0].ID)
	}
	if !strings.HasPrefix(completes[1].ID, "ollama_read_file_1_") {
		t.Errorf("synthesized id: got %q", completes[1].ID)
	}
	if completes[1].Arguments["path"] != "b.go" {
		t.Errorf("arguments: got %v", completes[1].Arguments)
	}
	if state.usage == nil || state.usage.TotalTokens != 42 || state.doneReason != "stop" {
		t.Errorf("usage=%+v reason=%q", state.usage, state.doneReason)
	}
}

func TestOllamaProviderStream(t *testing.T) {
	var got api.ChatRequest
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/chat" {
			http.NotFound(w, r)
			return
		}
		if err := json.NewDecoder(r.Body).Decode(&got); err != nil {
			http.Error(w, err.Error(), http.StatusBadRequest)
			return
		}
		w.Header().Set("Content-Type", "application/x-ndjson")
		enc := json.NewEncoder(w)
		enc.Encode(api.ChatResponse{Model: got.Model, Message: api.Message{Role: "assistant", Content: "Hi"}})
		enc.Encode(api.ChatResponse{Model: got.Model, Message: api.Message{Role: "assistant", Content: " there"}})
		enc.Encode(api.ChatResponse{Model: got.Model, Done: true, DoneReason: "stop", Metrics: api.Metrics{PromptEvalCount: 4, EvalCount: 2}})
	}))
	defer srv.Close()

	p, err := NewOllamaProvider(Config{BaseURL: srv.URL, Model: "ollama/qwen3:8b"})
	if err != nil {
		t.Fatalf("NewOllamaProvider: %v", err)
	}

	temp := 0.5
	events := collect(p.Stream(context.Background(), model.Request{
		Messages:    testutil.SingleUserMessage("hello"),
		Tools:       testutil.TestTools(),
		Temperature: &temp,
	}))

	var text string
	for _, ev := range events {
		if ev.Kind == model.StreamTextDelta {
			text += ev.Text
		}
	}
	if text != "Hi there" {
		t.Errorf("text: got %q", text)
	}
	last := events[len(events)-1]
	if last.Kind != model.StreamDone || last.Usage == nil || last.Usage.TotalTokens != 6 {
		t.Errorf("terminal: got %+v", last)
	}

	if got.Model != "qwen3:8b" {
		t.Errorf("request model: got %q, want prefix stripped", got.Model)
	}
	if len(got.Tools) != 2 {
		t.Errorf("request tools: got %d, want 2", len(got.Tools))
	}
	if got.Options["temperature"] != 0.5 {
		t.Errorf("request temperature: got %v", got.Options["temperature"])
	}
}
