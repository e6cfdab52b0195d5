package toolcall

import (
	"encoding/json"
	"fmt"
	"regexp"

	"byom/model"
)

// taggedCallRe matches <tool_call>{...}</tool_call> blocks holding a whole
// call object.
var taggedCallRe = regexp.MustCompile(`(?s)<tool_call>\s*(\{.*?\})\s*</tool_call>`)

// Shapes some models use when they write a tool call as plain text instead
// of using the structured channel.
var textCallPatterns = []*regexp.Regexp{
	regexp.MustCompile(`(?s)(\w+)\s*\(\s*(\{[^}]*\})\s*\)`),
	regexp.MustCompile(`(?s)\[(\w+)\|(\{[^}]*\})\]`),
	regexp.MustCompile(`(?s)"(\w+)"\s*:\s*(\{[^}]*\})`),
}

// ExtractFromText finds tool calls written inline in text, such as
// search({"q": "x"}), [search|{"q": "x"}] or a <tool_call> block holding a
// call object in any shape Normalize accepts. Calls without an id get
// fallback_0, fallback_1, ... in discovery order.
func ExtractFromText(text string) []model.ToolCall {
	var calls []model.ToolCall
	for _, m := range taggedCallRe.FindAllStringSubmatch(text, -1) {
		var raw map[string]any
		if err := json.Unmarshal([]byte(RepairJSON(m[1])), &raw); err != nil {
			continue
		}
		call := Normalize(raw)
		if call.Name == "" {
			continue
		}
		if call.ID == "" {
			call.ID = fmt.Sprintf("fallback_%d", len(calls))
		}
		calls = append(calls, call)
	}
	// The inner object would otherwise match the "name": {...} shape below.
	text = taggedCallRe.ReplaceAllString(text, "")

	for _, re := range textCallPatterns {
		for _, m := range re.FindAllStringSubmatch(text, -1) {
			args, strategy := ParseArguments(m[2])
			if len(args) == 0 {
				continue
			}
			calls = append(calls, model.ToolCall{
				ID:            fmt.Sprintf("fallback_%d", len(calls)),
				Name:          m[1],
				Arguments:     args,
				ParseDegraded: strategy.Degraded(),
			})
		}
	}
	return calls
}

// Normalize converts a decoded tool call in any common wire shape into a
// ToolCall. It understands OpenAI's {id, function: {name, arguments}},
// Anthropic's {type: tool_use, id, name, input} and flat
// {id|call_id, name, arguments|parameters} maps.
func Normalize(raw map[string]any) model.ToolCall {
	if fn, ok := raw["function"].(map[string]any); ok {
		return newCall(stringField(raw, "id"), stringField(fn, "name"), fn["arguments"])
	}
	if raw["type"] == "tool_use" {
		return newCall(stringField(raw, "id"), stringField(raw, "name"), raw["input"])
	}

	id := stringField(raw, "call_id")
	if id == "" {
		id = stringField(raw, "id")
	}
	args := raw["arguments"]
	if args == nil {
		args = raw["parameters"]
	}
	return newCall(id, stringField(raw, "name"), args)
}

func newCall(id, name string, args any) model.ToolCall {
	var text string
	switch v := args.(type) {
	case nil:
	case string:
		text = v
	default:
		data, err := json.Marshal(v)
		if err == nil {
			text = string(data)
		}
	}
	parsed, strategy := ParseArguments(text)
	return model.ToolCall{ID: id, Name: name, Arguments: parsed, ParseDegraded: strategy.Degraded()}
}

func stringField(m map[string]any, key string) string {
	s, _ := m[key].(string)
	return s
}
