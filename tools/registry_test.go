package tools

import (
	"context"
	"strings"
	"testing"

	"byom/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

func echoTool() mcptypes.Tool {
	return mcptypes.NewTool("echo",
		mcptypes.WithDescription("Echo text back"),
		mcptypes.WithString("text", mcptypes.Required()),
		mcptypes.WithNumber("times"),
	)
}

func echoHandler(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	return model.SuccessResult(strings.Repeat(args["text"].(string), max(1, intArg(args, "times"))))
}

func TestRegistryInvoke(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(echoTool(), echoHandler); err != nil {
		t.Fatalf("Register: %v", err)
	}

	tests := []struct {
		name        string
		tool        string
		args        map[string]any
		wantSuccess bool
		wantText    string
	}{
		{"valid", "echo", map[string]any{"text": "hi", "times": 2.0}, true, "hihi"},
		{"missing required", "echo", map[string]any{}, false, "text"},
		{"wrong type", "echo", map[string]any{"text": 5.0}, false, "invalid arguments"},
		{"unknown tool", "nope", nil, false, "unknown tool: nope"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := r.Invoke(context.Background(), tt.tool, tt.args, "")
			if res.Success != tt.wantSuccess {
				t.Fatalf("success: got %v, want %v (%+v)", res.Success, tt.wantSuccess, res)
			}
			got := res.Output
			if !res.Success {
				got = res.Error
			}
			if !strings.Contains(got, tt.wantText) {
				t.Errorf("result: got %q, want it to contain %q", got, tt.wantText)
			}
		})
	}
}

func TestRegistryRecoversPanics(t *testing.T) {
	r := NewRegistry()
	r.Register(mcptypes.NewTool("boom"), func(context.Context, map[string]any, string) model.ToolResult {
		panic("kaboom")
	})

	res := r.Invoke(context.Background(), "boom", nil, "")
	if res.Success || !strings.Contains(res.Error, "kaboom") {
		t.Errorf("result: got %+v", res)
	}
}

func TestRegistryCancelledContext(t *testing.T) {
	r := NewRegistry()
	r.Register(echoTool(), echoHandler)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if res := r.Invoke(ctx, "echo", map[string]any{"text": "x"}, ""); res.Success {
		t.Error("cancelled context should fail the call")
	}
}

func TestRegistryOrderAndFilter(t *testing.T) {
	r := NewRegistry()
	for _, name := range []string{"c", "a", "b"} {
		if err := r.Register(mcptypes.NewTool(name), echoHandler); err != nil {
			t.Fatalf("Register(%s): %v", name, err)
		}
	}
	// Re-registering keeps the original position.
	r.Register(mcptypes.NewTool("a", mcptypes.WithDescription("v2")), echoHandler)

	if got := strings.Join(r.Names(), ","); got != "c,a,b" {
		t.Errorf("names: got %s, want c,a,b", got)
	}
	if r.List()[1].Description != "v2" {
		t.Errorf("replacement not applied")
	}

	sub := r.Filter([]string{"b", "missing", "c"})
	if got := strings.Join(sub.Names(), ","); got != "c,b" {
		t.Errorf("filtered names: got %s, want c,b", got)
	}
	if res := sub.Invoke(context.Background(), "a", nil, ""); res.Success {
		t.Error("filtered-out tool should be unknown")
	}

	r.Unregister("c")
	if r.Has("c") || len(r.Names()) != 2 {
		t.Errorf("unregister failed: %v", r.Names())
	}
	if len(r.Filter(nil).Names()) != 2 {
		t.Error("empty allow list should keep everything")
	}
}

func TestRegisterRejectsBadInput(t *testing.T) {
	r := NewRegistry()
	if err := r.Register(mcptypes.Tool{}, echoHandler); err == nil {
		t.Error("expected error for empty name")
	}
	if err := r.Register(mcptypes.NewTool("x"), nil); err == nil {
		t.Error("expected error for nil handler")
	}
}
