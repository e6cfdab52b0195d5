package mcp

import (
	"context"
	"os/exec"

	"byom/model"

	"github.com/mark3labs/mcp-go/client"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// serverProcess is one connected MCP server.
type serverProcess struct {
	Name     string
	Process  *exec.Cmd // nil for remote servers
	Client   *client.Client
	Tools    []mcptypes.Tool
	Running  bool
	IsRemote bool
}

// ToolRegistrar receives MCP tools as local tools. tools.Registry satisfies it.
type ToolRegistrar interface {
	Register(tool mcptypes.Tool, handler model.ToolHandler) error
}

// toolCaller is the part of *client.Client used to execute tools.
type toolCaller interface {
	CallTool(ctx context.Context, request mcptypes.CallToolRequest) (*mcptypes.CallToolResult, error)
}
