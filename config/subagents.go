package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// SubagentDefinition describes a delegated agent exposed as a tool.
type SubagentDefinition struct {
	Name           string   `yaml:"name"`
	Description    string   `yaml:"description"`
	GoalPrompt     string   `yaml:"goal_prompt"`
	AllowedTools   []string `yaml:"allowed_tools,omitempty"`
	MaxTurns       int      `yaml:"max_turns,omitempty"`
	TimeoutSeconds int      `yaml:"timeout_seconds,omitempty"`
}

type subagentsFile struct {
	Subagents []SubagentDefinition `yaml:"subagents"`
}

const (
	DefaultSubagentMaxTurns       = 20
	DefaultSubagentTimeoutSeconds = 600
)

// DefaultSubagents returns the built-in sub-agents. Both are read-only.
func DefaultSubagents() []SubagentDefinition {
	return []SubagentDefinition{
		{
			Name:        "codebase_investigator",
			Description: "Investigates the codebase to answer questions about code structure, patterns, and implementations",
			GoalPrompt: `You are a codebase investigation specialist.
Your job is to explore and understand code to answer questions.
Use read_file, grep, glob, and list_dir to investigate.
Do NOT modify any files.`,
			AllowedTools:   []string{"read_file", "grep", "glob", "list_dir", "find_file"},
			MaxTurns:       DefaultSubagentMaxTurns,
			TimeoutSeconds: DefaultSubagentTimeoutSeconds,
		},
		{
			Name:        "code_reviewer",
			Description: "Reviews code changes and provides feedback on quality, bugs, and improvements",
			GoalPrompt: `You are a code review specialist.
Your job is to review code and provide constructive feedback.
Look for bugs, code smells, security issues, and improvement opportunities.
Use read_file, list_dir and grep to examine the code.
Do NOT modify any files.`,
			AllowedTools:   []string{"read_file", "grep", "list_dir"},
			MaxTurns:       10,
			TimeoutSeconds: 300,
		},
	}
}

// LoadSubagents reads sub-agent definitions from a YAML file. An empty path
// returns the built-in definitions.
func LoadSubagents(path string) ([]SubagentDefinition, error) {
	if path == "" {
		return DefaultSubagents(), nil
	}

	data, err := os.ReadFile(ExpandPath(path))
	if err != nil {
		return nil, fmt.Errorf("failed to read subagents file: %w", err)
	}
	return ParseSubagents(data)
}

// ParseSubagents decodes a YAML document with a top-level "subagents" list
// and fills in defaults.
func ParseSubagents(data []byte) ([]SubagentDefinition, error) {
	var file subagentsFile
	if err := yaml.Unmarshal(data, &file); err != nil {
		return nil, fmt.Errorf("failed to parse subagents: %w", err)
	}

	seen := make(map[string]bool, len(file.Subagents))
	for i := range file.Subagents {
		def := &file.Subagents[i]
		if def.Name == "" {
			return nil, fmt.Errorf("subagent %d: name is required", i+1)
		}
		if seen[def.Name] {
			return nil, fmt.Errorf("subagent %s: duplicate name", def.Name)
		}
		seen[def.Name] = true
		if def.MaxTurns <= 0 {
			def.MaxTurns = DefaultSubagentMaxTurns
		}
		if def.TimeoutSeconds <= 0 {
			def.TimeoutSeconds = DefaultSubagentTimeoutSeconds
		}
	}
	return file.Subagents, nil
}
