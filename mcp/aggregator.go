package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"byom/config"
	"byom/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ToolSeparator joins server and tool names. Dots are not allowed in tool
// names by every backend, so a double underscore is used instead.
const ToolSeparator = "__"

// NamespacedName returns the name a server tool is registered under.
func NamespacedName(server, tool string) string {
	return server + ToolSeparator + tool
}

// parseToolName splits a namespaced tool name into server and tool.
func parseToolName(toolName string) (server, tool string) {
	parts := strings.SplitN(toolName, ToolSeparator, 2)
	if len(parts) == 2 {
		return parts[0], parts[1]
	}
	return "", toolName
}

type ToolAggregator struct {
	processManager *ProcessManager
}

func NewToolAggregator(pm *ProcessManager) *ToolAggregator {
	return &ToolAggregator{
		processManager: pm,
	}
}

// ToolsForServers returns the tools of the given servers under namespaced names.
// Servers that are not running are skipped.
func (ta *ToolAggregator) ToolsForServers(servers []string) []mcptypes.Tool {
	var allTools []mcptypes.Tool

	for _, server := range servers {
		tools, err := ta.processManager.GetTools(server)
		if err != nil {
			continue
		}

		for _, tool := range tools {
			namespacedTool := tool
			namespacedTool.Name = NamespacedName(server, tool.Name)
			allTools = append(allTools, namespacedTool)
		}
	}

	return allTools
}

// ExecuteTool calls a namespaced tool on its server.
func (ta *ToolAggregator) ExecuteTool(ctx context.Context, toolName string, args map[string]any) (*mcptypes.CallToolResult, error) {
	server, actualToolName := parseToolName(toolName)
	if server == "" {
		return nil, fmt.Errorf("tool %s has no server prefix", toolName)
	}

	c, err := ta.processManager.GetClient(server)
	if err != nil {
		return nil, err
	}
	return callTool(ctx, c, actualToolName, args)
}

func callTool(ctx context.Context, caller toolCaller, name string, args map[string]any) (*mcptypes.CallToolResult, error) {
	return caller.CallTool(ctx, mcptypes.CallToolRequest{
		Params: mcptypes.CallToolParams{
			Name:      name,
			Arguments: args,
		},
	})
}

// toolHandler adapts one remote tool to a local handler. The working
// directory is not forwarded; MCP servers resolve paths themselves.
func toolHandler(caller toolCaller, server, tool string) model.ToolHandler {
	return func(ctx context.Context, args map[string]any, _ string) model.ToolResult {
		res, err := callTool(ctx, caller, tool, args)
		if err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] Tool %s on '%s' failed: %v", tool, server, err)
			}
			return model.ErrorResult(fmt.Sprintf("MCP server %s: %v", server, err), "")
		}
		return ConvertResult(res)
	}
}

// ConvertResult flattens a CallToolResult into a tool result. Text content is
// joined with newlines; other content types are rendered as JSON.
func ConvertResult(res *mcptypes.CallToolResult) model.ToolResult {
	if res == nil {
		return model.SuccessResult("")
	}

	var parts []string
	for _, content := range res.Content {
		if text, ok := mcptypes.AsTextContent(content); ok {
			parts = append(parts, text.Text)
			continue
		}
		data, err := json.Marshal(content)
		if err != nil {
			parts = append(parts, fmt.Sprintf("%v", content))
			continue
		}
		parts = append(parts, string(data))
	}
	if len(parts) == 0 && res.StructuredContent != nil {
		if data, err := json.Marshal(res.StructuredContent); err == nil {
			parts = append(parts, string(data))
		}
	}

	output := strings.Join(parts, "\n")
	if res.IsError {
		return model.ErrorResult(output, "")
	}
	return model.SuccessResult(output)
}
