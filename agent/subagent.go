package agent

import (
	"context"
	"fmt"
	"strings"
	"time"

	"byom/config"
	"byom/model"
	"byom/tools"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// SubagentPrefix starts the tool name of every sub-agent.
const SubagentPrefix = "subagent_"

const subagentPrompt = `You are a specialized sub-agent with a specific task to complete.

%s

YOUR TASK:
%s

IMPORTANT:
- Focus only on completing the specified task
- Do not engage in unrelated actions
- Once you have completed the task or have the answer, provide your final response
- Be concise and direct in your output`

// SubagentTool exposes a nested agent as a tool. Each invocation starts a
// fresh transcript with the parent's provider, restricted to the definition's
// tools and bounded by its own turn limit and deadline.
type SubagentTool struct {
	def      config.SubagentDefinition
	provider model.Provider
	base     Config
	registry *tools.Registry
}

func NewSubagentTool(def config.SubagentDefinition, p model.Provider, base Config, registry *tools.Registry) *SubagentTool {
	return &SubagentTool{def: def, provider: p, base: base, registry: registry}
}

func (s *SubagentTool) Name() string {
	return SubagentPrefix + s.def.Name
}

func (s *SubagentTool) Tool() mcptypes.Tool {
	return mcptypes.NewTool(s.Name(),
		mcptypes.WithDescription(s.def.Description),
		mcptypes.WithString("goal",
			mcptypes.Required(),
			mcptypes.Description("The specific task or goal for the sub-agent to accomplish"),
		),
	)
}

// Handle runs the nested agent for args["goal"].
func (s *SubagentTool) Handle(ctx context.Context, args map[string]any, workDir string) model.ToolResult {
	goal, _ := args["goal"].(string)
	if strings.TrimSpace(goal) == "" {
		return model.ErrorResult("no goal specified for sub-agent", "")
	}

	timeout := time.Duration(s.def.TimeoutSeconds) * time.Second
	if timeout <= 0 {
		timeout = config.DefaultSubagentTimeoutSeconds * time.Second
	}
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	cfg := s.base
	cfg.MaxTurns = s.def.MaxTurns
	if cfg.MaxTurns <= 0 {
		cfg.MaxTurns = config.DefaultSubagentMaxTurns
	}
	cfg.AllowedTools = nil
	if workDir != "" {
		cfg.WorkingDirectory = workDir
	}

	// Sub-agents never see other sub-agents.
	scoped := s.registry.Filter(s.def.AllowedTools)
	for _, name := range scoped.Names() {
		if strings.HasPrefix(name, SubagentPrefix) {
			scoped.Unregister(name)
		}
	}

	if config.DebugLog != nil {
		config.DebugLog.Printf("[Agent] Sub-agent '%s' starting with %d tools, %d max turns, %s timeout",
			s.def.Name, len(scoped.Names()), cfg.MaxTurns, timeout)
	}

	nested := NewWithProvider(s.provider, cfg, scoped, scoped, nil)
	result, err := nested.RunSync(ctx, fmt.Sprintf(subagentPrompt, s.def.GoalPrompt, goal))

	summary := s.summarize(result)
	if err != nil {
		return model.ErrorResult(summary, "")
	}
	return model.SuccessResult(summary)
}

func (s *SubagentTool) summarize(result RunResult) string {
	toolsCalled := "None"
	if len(result.ToolsCalled) > 0 {
		toolsCalled = strings.Join(result.ToolsCalled, ", ")
	}

	response := result.FinalText
	if result.Reason == ReasonError && len(result.Errors) > 0 {
		response = "Sub-agent error: " + strings.Join(result.Errors, "; ")
	}
	if response == "" {
		response = "No response"
	}

	return fmt.Sprintf("Sub-agent '%s' completed.\nTermination: %s\nTools called: %s\n\nResult:\n%s",
		s.def.Name, result.Reason, toolsCalled, response)
}

// RegisterSubagents adds one tool per definition to registry.
func RegisterSubagents(registry *tools.Registry, defs []config.SubagentDefinition, p model.Provider, base Config) error {
	for _, def := range defs {
		sub := NewSubagentTool(def, p, base, registry)
		if registry.Has(sub.Name()) {
			return fmt.Errorf("register sub-agent %s: tool %s already exists", def.Name, sub.Name())
		}
		if err := registry.Register(sub.Tool(), sub.Handle); err != nil {
			return fmt.Errorf("register sub-agent %s: %w", def.Name, err)
		}
	}
	return nil
}
