package mcp

import (
	"context"
	"errors"
	"testing"

	"byom/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

type fakeCaller struct {
	requests []mcptypes.CallToolRequest
	result   *mcptypes.CallToolResult
	err      error
}

func (f *fakeCaller) CallTool(ctx context.Context, request mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error) {
	f.requests = append(f.requests, request)
	return f.result, f.err
}

type fakeRegistrar struct {
	names    []string
	handlers map[string]model.ToolHandler
	failOn   string
}

func (f *fakeRegistrar) Register(tool mcptypes.Tool, handler model.ToolHandler) error {
	if tool.Name == f.failOn {
		return errors.New("rejected")
	}
	if f.handlers == nil {
		f.handlers = make(map[string]model.ToolHandler)
	}
	f.names = append(f.names, tool.Name)
	f.handlers[tool.Name] = handler
	return nil
}

func TestParseToolName(t *testing.T) {
	tests := []struct {
		input      string
		wantServer string
		wantTool   string
	}{
		{"github__search_issues", "github", "search_issues"},
		{"fs__read__file", "fs", "read__file"},
		{"read_file", "", "read_file"},
	}

	for _, tt := range tests {
		server, tool := parseToolName(tt.input)
		if server != tt.wantServer || tool != tt.wantTool {
			t.Errorf("parseToolName(%q) = (%q, %q), want (%q, %q)", tt.input, server, tool, tt.wantServer, tt.wantTool)
		}
	}
}

func TestConvertResult(t *testing.T) {
	tests := []struct {
		name        string
		result      *mcptypes.CallToolResult
		wantSuccess bool
		wantOutput  string
		wantError   string
	}{
		{
			name:        "nil result",
			result:      nil,
			wantSuccess: true,
		},
		{
			name: "text parts joined",
			result: &mcptypes.CallToolResult{
				Content: []mcptypes.Content{
					mcptypes.NewTextContent("first"),
					mcptypes.NewTextContent("second"),
				},
			},
			wantSuccess: true,
			wantOutput:  "first\nsecond",
		},
		{
			name: "error result",
			result: &mcptypes.CallToolResult{
				Content: []mcptypes.Content{mcptypes.NewTextContent("no such repo")},
				IsError: true,
			},
			wantSuccess: false,
			wantError:   "no such repo",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ConvertResult(tt.result)
			if got.Success != tt.wantSuccess {
				t.Errorf("Success = %v, want %v", got.Success, tt.wantSuccess)
			}
			if got.Output != tt.wantOutput {
				t.Errorf("Output = %q, want %q", got.Output, tt.wantOutput)
			}
			if got.Error != tt.wantError {
				t.Errorf("Error = %q, want %q", got.Error, tt.wantError)
			}
		})
	}
}

func TestRegisterServerTools(t *testing.T) {
	caller := &fakeCaller{
		result: &mcptypes.CallToolResult{
			Content: []mcptypes.Content{mcptypes.NewTextContent("42 issues")},
		},
	}
	reg := &fakeRegistrar{}
	tools := []mcptypes.Tool{
		mcptypes.NewTool("search_issues", mcptypes.WithString("query", mcptypes.Required())),
		mcptypes.NewTool("get_issue"),
	}

	n, err := registerServerTools(reg, caller, "github", tools)
	if err != nil {
		t.Fatalf("registerServerTools: %v", err)
	}
	if n != 2 {
		t.Fatalf("registered %d tools, want 2", n)
	}
	if reg.names[0] != "github__search_issues" || reg.names[1] != "github__get_issue" {
		t.Fatalf("registered names = %v", reg.names)
	}

	result := reg.handlers["github__search_issues"](context.Background(), map[string]any{"query": "bug"}, "/tmp")
	if !result.Success || result.Output != "42 issues" {
		t.Fatalf("handler result = %+v", result)
	}
	if len(caller.requests) != 1 {
		t.Fatalf("got %d calls, want 1", len(caller.requests))
	}
	req := caller.requests[0]
	if req.Params.Name != "search_issues" {
		t.Errorf("remote tool name = %q, want search_issues", req.Params.Name)
	}
	if args, ok := req.Params.Arguments.(map[string]any); !ok || args["query"] != "bug" {
		t.Errorf("remote arguments = %#v", req.Params.Arguments)
	}
}

func TestRegisterServerToolsStopsOnError(t *testing.T) {
	reg := &fakeRegistrar{failOn: "fs__write"}
	tools := []mcptypes.Tool{mcptypes.NewTool("read"), mcptypes.NewTool("write"), mcptypes.NewTool("list")}

	n, err := registerServerTools(reg, &fakeCaller{}, "fs", tools)
	if err == nil {
		t.Fatal("expected error")
	}
	if n != 1 {
		t.Errorf("registered %d tools before failing, want 1", n)
	}
}

func TestToolHandlerTransportError(t *testing.T) {
	caller := &fakeCaller{err: errors.New("connection reset")}
	result := toolHandler(caller, "github", "get_issue")(context.Background(), nil, "")
	if result.Success {
		t.Fatal("expected failure")
	}
	if result.Error != "MCP server github: connection reset" {
		t.Errorf("Error = %q", result.Error)
	}
}

func TestProcessManagerUnknownServer(t *testing.T) {
	pm := NewProcessManager()
	if _, err := pm.GetClient("missing"); err == nil {
		t.Error("GetClient: expected error for unknown server")
	}
	if err := pm.StopServer(context.Background(), "missing"); err == nil {
		t.Error("StopServer: expected error for unknown server")
	}
	if err := pm.Shutdown(context.Background()); err != nil {
		t.Errorf("Shutdown on empty manager: %v", err)
	}

	ta := NewToolAggregator(pm)
	if _, err := ta.ExecuteTool(context.Background(), "plain_tool", nil); err == nil {
		t.Error("ExecuteTool: expected error for unprefixed name")
	}
}
