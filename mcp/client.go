// Package mcp connects byom to Model Context Protocol servers and converts
// tool declarations into each backend's wire format.
package mcp

import (
	"context"
	"fmt"

	"byom/config"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// Client starts the configured MCP servers and exposes their tools.
type Client struct {
	processManager *ProcessManager
	aggregator     *ToolAggregator
}

func NewClient() *Client {
	pm := NewProcessManager()
	return &Client{
		processManager: pm,
		aggregator:     NewToolAggregator(pm),
	}
}

func (c *Client) Start(ctx context.Context, cfg config.MCPServerConfig) error {
	return c.processManager.StartServer(ctx, cfg)
}

// StartAll starts every server. A server that fails to start is logged and
// skipped; the returned error lists the failures.
func (c *Client) StartAll(ctx context.Context, servers []config.MCPServerConfig) error {
	var errs []error
	for _, server := range servers {
		if err := c.Start(ctx, server); err != nil {
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] %v", err)
			}
			errs = append(errs, err)
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%d MCP server(s) failed to start: %v", len(errs), errs)
	}
	return nil
}

func (c *Client) Stop(ctx context.Context, server string) error {
	return c.processManager.StopServer(ctx, server)
}

// RegisterTools registers every tool of every running server as
// <server>__<tool>. It returns the number of tools registered.
func (c *Client) RegisterTools(reg ToolRegistrar) (int, error) {
	count := 0
	for _, server := range c.processManager.ServerNames() {
		mcpClient, err := c.processManager.GetClient(server)
		if err != nil {
			continue
		}
		tools, err := c.processManager.GetTools(server)
		if err != nil {
			continue
		}
		n, err := registerServerTools(reg, mcpClient, server, tools)
		count += n
		if err != nil {
			return count, err
		}
	}
	return count, nil
}

// Tools returns every running server's tools under namespaced names.
func (c *Client) Tools() []mcptypes.Tool {
	return c.aggregator.ToolsForServers(c.processManager.ServerNames())
}

func (c *Client) Shutdown(ctx context.Context) error {
	return c.processManager.Shutdown(ctx)
}

func registerServerTools(reg ToolRegistrar, caller toolCaller, server string, tools []mcptypes.Tool) (int, error) {
	for i, tool := range tools {
		namespaced := tool
		namespaced.Name = NamespacedName(server, tool.Name)
		if err := reg.Register(namespaced, toolHandler(caller, server, tool.Name)); err != nil {
			return i, fmt.Errorf("register %s: %w", namespaced.Name, err)
		}
	}
	return len(tools), nil
}
