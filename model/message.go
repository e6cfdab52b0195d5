package model

import "time"

// Role identifies who authored a transcript entry.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
	RoleTool      Role = "tool"
)

// Message is one entry of the conversation transcript.
//
// Assistant messages may carry ToolCalls; tool messages answer exactly one of
// them through ToolCallID. Content is empty when absent.
type Message struct {
	Role       Role
	Content    string
	ToolCalls  []ToolCallRequest
	ToolCallID string
	IsError    bool
	Timestamp  time.Time
}

// ToolCallRequest is a tool call as recorded in an assistant message, with
// arguments kept in serialized form.
type ToolCallRequest struct {
	ID        string
	Name      string
	Arguments string
}

func NewSystemMessage(content string) Message {
	return Message{Role: RoleSystem, Content: content, Timestamp: time.Now()}
}

func NewUserMessage(content string) Message {
	return Message{Role: RoleUser, Content: content, Timestamp: time.Now()}
}

// NewAssistantMessage builds an assistant turn. Content may be empty when the
// turn only requested tools.
func NewAssistantMessage(content string, calls []ToolCall) Message {
	msg := Message{Role: RoleAssistant, Content: content, Timestamp: time.Now()}
	for _, call := range calls {
		msg.ToolCalls = append(msg.ToolCalls, call.Request())
	}
	return msg
}

// NewToolMessage builds the transcript entry answering callID.
func NewToolMessage(callID, content string, isError bool) Message {
	return Message{
		Role:       RoleTool,
		Content:    content,
		ToolCallID: callID,
		IsError:    isError,
		Timestamp:  time.Now(),
	}
}

// ToolNameForCall finds the tool name of callID in the assistant messages
// preceding index i. Backends that key tool results by name need it.
func ToolNameForCall(messages []Message, i int, callID string) string {
	for j := i - 1; j >= 0; j-- {
		if messages[j].Role != RoleAssistant {
			continue
		}
		for _, call := range messages[j].ToolCalls {
			if call.ID == callID {
				return call.Name
			}
		}
	}
	return ""
}
