package model

import "encoding/json"

// ToolCall is a finalized tool invocation requested by the model.
//
// Arguments is always a keyed structure. ParseDegraded is set when the
// argument text could only be recovered heuristically.
type ToolCall struct {
	ID            string
	Name          string
	Arguments     map[string]any
	ParseDegraded bool
}

// ArgumentsJSON serializes Arguments, falling back to "{}".
func (c ToolCall) ArgumentsJSON() string {
	if len(c.Arguments) == 0 {
		return "{}"
	}
	data, err := json.Marshal(c.Arguments)
	if err != nil {
		return "{}"
	}
	return string(data)
}

// Request converts the call into its transcript form.
func (c ToolCall) Request() ToolCallRequest {
	return ToolCallRequest{ID: c.ID, Name: c.Name, Arguments: c.ArgumentsJSON()}
}
