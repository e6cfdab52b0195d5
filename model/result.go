package model

import "context"

// ToolResult is what a tool executor reports for one invocation.
type ToolResult struct {
	Success  bool
	Output   string
	Error    string
	Metadata map[string]any
}

func SuccessResult(output string) ToolResult {
	return ToolResult{Success: true, Output: output}
}

func ErrorResult(errText, output string) ToolResult {
	return ToolResult{Success: false, Error: errText, Output: output}
}

// ModelOutput renders the result as the content of a tool message.
func (r ToolResult) ModelOutput() string {
	if r.Success {
		return r.Output
	}
	out := "Error: " + r.Error
	if r.Output != "" {
		out += "\n\nOutput:\n" + r.Output
	}
	return out
}

// ToolHandler executes one tool call. workDir is the directory relative paths
// resolve against. Implementations report failures in the result.
type ToolHandler func(ctx context.Context, args map[string]any, workDir string) ToolResult
