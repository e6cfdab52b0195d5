package toolcall

import (
	"fmt"
	"strings"

	"byom/model"
)

// Validate reports why a finalized tool call cannot be dispatched. An empty
// result means the call is valid.
func Validate(call model.ToolCall) []string {
	var problems []string
	if strings.TrimSpace(call.ID) == "" {
		problems = append(problems, "call_id is empty")
	}
	if strings.TrimSpace(call.Name) == "" {
		problems = append(problems, "tool name is empty")
	}
	if IsParseError(call.Arguments) {
		raw, _ := call.Arguments[RawArgumentsKey].(string)
		problems = append(problems, fmt.Sprintf("arguments are not valid JSON: %s", truncate(raw, 100)))
	}
	return problems
}

// ValidateRequest checks a tool call in its transcript form, where arguments
// are still a string. Arguments pass if they parse directly or after repair.
func ValidateRequest(req model.ToolCallRequest) []string {
	var problems []string
	if strings.TrimSpace(req.ID) == "" {
		problems = append(problems, "call_id is empty")
	}
	if strings.TrimSpace(req.Name) == "" {
		problems = append(problems, "tool name is empty")
	}
	if strings.TrimSpace(req.Arguments) != "" {
		if _, ok := parseObject(req.Arguments); !ok {
			if _, ok := parseObject(RepairJSON(req.Arguments)); !ok {
				problems = append(problems, fmt.Sprintf("arguments are not valid JSON: %s", truncate(req.Arguments, 100)))
			}
		}
	}
	return problems
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
