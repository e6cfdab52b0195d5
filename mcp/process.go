package mcp

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"sync"
	"time"

	"byom/config"

	"github.com/mark3labs/mcp-go/client"
	"github.com/mark3labs/mcp-go/client/transport"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// ProcessManager owns the connections to configured MCP servers.
type ProcessManager struct {
	processes map[string]*serverProcess
	mu        sync.RWMutex
}

func NewProcessManager() *ProcessManager {
	return &ProcessManager{
		processes: make(map[string]*serverProcess),
	}
}

// StartServer connects to one server, initializes the session and lists its
// tools. Servers with a URL are remote; otherwise Command is spawned over stdio.
func (pm *ProcessManager) StartServer(ctx context.Context, cfg config.MCPServerConfig) error {
	pm.mu.RLock()
	proc := pm.processes[cfg.Name]
	pm.mu.RUnlock()
	if proc != nil && proc.Running {
		return fmt.Errorf("MCP server %s already running", cfg.Name)
	}

	var mcpClient *client.Client
	var capturedCmd *exec.Cmd
	var err error

	isRemote := cfg.URL != ""
	if isRemote {
		mcpClient, err = pm.createRemoteClient(ctx, cfg)
		if err != nil {
			return fmt.Errorf("failed to connect to MCP server %s: %w", cfg.Name, err)
		}
	} else {
		if cfg.Command == "" {
			return fmt.Errorf("MCP server %s: command or url is required", cfg.Name)
		}
		mcpClient, capturedCmd, err = pm.createLocalClient(cfg)
		if err != nil {
			return fmt.Errorf("failed to start MCP server %s: %w", cfg.Name, err)
		}
	}

	return pm.attach(ctx, cfg.Name, mcpClient, capturedCmd, isRemote)
}

// attach initializes a started client and records it under name.
func (pm *ProcessManager) attach(ctx context.Context, name string, mcpClient *client.Client, cmd *exec.Cmd, isRemote bool) error {
	initReq := mcptypes.InitializeRequest{
		Params: mcptypes.InitializeParams{
			ProtocolVersion: "2025-06-18",
			Capabilities:    mcptypes.ClientCapabilities{},
			ClientInfo: mcptypes.Implementation{
				Name:    "byom",
				Version: config.Version,
			},
		},
	}

	if _, err := mcpClient.Initialize(ctx, initReq); err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to initialize MCP server %s: %w", name, err)
	}

	toolsResult, err := mcpClient.ListTools(ctx, mcptypes.ListToolsRequest{})
	if err != nil {
		mcpClient.Close()
		return fmt.Errorf("failed to list tools for %s: %w", name, err)
	}

	pm.mu.Lock()
	pm.processes[name] = &serverProcess{
		Name:     name,
		Process:  cmd,
		Client:   mcpClient,
		Tools:    toolsResult.Tools,
		Running:  true,
		IsRemote: isRemote,
	}
	pm.mu.Unlock()

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Server '%s' ready with %d tools (remote: %v)", name, len(toolsResult.Tools), isRemote)
	}
	return nil
}

// StopServer closes the client and kills a local process that does not exit.
func (pm *ProcessManager) StopServer(ctx context.Context, name string) error {
	pm.mu.Lock()
	proc, exists := pm.processes[name]
	if !exists {
		pm.mu.Unlock()
		return fmt.Errorf("MCP server %s not found", name)
	}
	proc.Running = false
	delete(pm.processes, name)
	pm.mu.Unlock()

	clientClosed := false
	if proc.Client != nil {
		closeCtx, cancel := context.WithTimeout(ctx, 1*time.Second)
		defer cancel()

		closeDone := make(chan error, 1)
		go func() {
			closeDone <- proc.Client.Close()
		}()

		select {
		case err := <-closeDone:
			if err != nil && config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] StopServer: Error closing client for '%s': %v", name, err)
			}
			clientClosed = err == nil
		case <-closeCtx.Done():
			if config.DebugLog != nil {
				config.DebugLog.Printf("[MCP] StopServer: Close timeout for '%s'", name)
			}
		}
	}

	if !clientClosed && !proc.IsRemote && proc.Process != nil && proc.Process.Process != nil {
		if config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] StopServer: Killing process for '%s' (PID: %d)", name, proc.Process.Process.Pid)
		}
		if err := proc.Process.Process.Kill(); err != nil && config.DebugLog != nil {
			config.DebugLog.Printf("[MCP] StopServer: Error killing process for '%s': %v", name, err)
		}
	}

	return nil
}

func (pm *ProcessManager) GetClient(name string) (*client.Client, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[name]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("MCP server %s not running", name)
	}
	return proc.Client, nil
}

func (pm *ProcessManager) GetTools(name string) ([]mcptypes.Tool, error) {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	proc, exists := pm.processes[name]
	if !exists || !proc.Running {
		return nil, fmt.Errorf("MCP server %s not running", name)
	}
	return proc.Tools, nil
}

// ServerNames returns the running servers.
func (pm *ProcessManager) ServerNames() []string {
	pm.mu.RLock()
	defer pm.mu.RUnlock()

	names := make([]string, 0, len(pm.processes))
	for name, proc := range pm.processes {
		if proc.Running {
			names = append(names, name)
		}
	}
	return names
}

// Shutdown stops every server in parallel.
func (pm *ProcessManager) Shutdown(ctx context.Context) error {
	pm.mu.RLock()
	names := make([]string, 0, len(pm.processes))
	for name := range pm.processes {
		names = append(names, name)
	}
	pm.mu.RUnlock()

	var wg sync.WaitGroup
	errChan := make(chan error, len(names))
	for _, name := range names {
		wg.Add(1)
		go func(name string) {
			defer wg.Done()
			if err := pm.StopServer(ctx, name); err != nil {
				errChan <- err
			}
		}(name)
	}
	wg.Wait()
	close(errChan)

	var errs []error
	for err := range errChan {
		errs = append(errs, err)
	}
	if len(errs) > 0 {
		return fmt.Errorf("shutdown errors: %v", errs)
	}
	return nil
}

// createRemoteClient connects over SSE (default) or streamable HTTP.
func (pm *ProcessManager) createRemoteClient(ctx context.Context, cfg config.MCPServerConfig) (*client.Client, error) {
	var mcpClient *client.Client
	var err error

	switch cfg.Transport {
	case "", "sse":
		var opts []transport.ClientOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHeaders(cfg.Headers))
		}
		mcpClient, err = client.NewSSEMCPClient(cfg.URL, opts...)
	case "streamable-http", "http":
		var opts []transport.StreamableHTTPCOption
		if len(cfg.Headers) > 0 {
			opts = append(opts, transport.WithHTTPHeaders(cfg.Headers))
		}
		mcpClient, err = client.NewStreamableHttpClient(cfg.URL, opts...)
	default:
		return nil, fmt.Errorf("unknown transport type: %s", cfg.Transport)
	}
	if err != nil {
		return nil, err
	}

	// Remote transports must be started before Initialize.
	if err := mcpClient.Start(ctx); err != nil {
		return nil, fmt.Errorf("failed to start %s transport: %w", cfg.Transport, err)
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Connected to remote server '%s' at %s", cfg.Name, cfg.URL)
	}
	return mcpClient, nil
}

// createLocalClient spawns the server over stdio and returns its command.
func (pm *ProcessManager) createLocalClient(cfg config.MCPServerConfig) (*client.Client, *exec.Cmd, error) {
	var capturedCmd *exec.Cmd

	cmdFunc := func(ctx context.Context, command string, env []string, args []string) (*exec.Cmd, error) {
		cmd := exec.CommandContext(ctx, command, args...)
		cmd.Env = env
		if cfg.Cwd != "" {
			cmd.Dir = config.ExpandPath(cfg.Cwd)
		}
		capturedCmd = cmd
		return cmd, nil
	}

	mcpClient, err := client.NewStdioMCPClientWithOptions(
		cfg.Command,
		configToEnv(cfg.Env),
		cfg.Args,
		transport.WithCommandFunc(cmdFunc),
	)
	if err != nil {
		return nil, nil, err
	}

	if capturedCmd != nil && capturedCmd.Process != nil && config.DebugLog != nil {
		config.DebugLog.Printf("[MCP] Started local server '%s' with PID %d", cfg.Name, capturedCmd.Process.Pid)
	}
	return mcpClient, capturedCmd, nil
}

func configToEnv(envMap map[string]string) []string {
	// Start with current process environment to preserve PATH and other system vars
	env := os.Environ()
	for k, v := range envMap {
		env = append(env, fmt.Sprintf("%s=%s", k, v))
	}
	return env
}
