package agent

import (
	"fmt"
	"sync"

	"byom/model"
	"byom/toolcall"
)

// ConversationContext holds the transcript a run reads and appends to.
// Truncation to a token budget, if any, belongs to the implementation.
type ConversationContext interface {
	Append(msg model.Message) error
	Snapshot() []model.Message
}

// MemoryContext is an in-process ConversationContext.
type MemoryContext struct {
	mu       sync.RWMutex
	messages []model.Message
}

func NewMemoryContext(initial ...model.Message) *MemoryContext {
	return &MemoryContext{messages: append([]model.Message(nil), initial...)}
}

func (c *MemoryContext) Append(msg model.Message) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.messages = append(c.messages, msg)
	return nil
}

// Snapshot returns a copy; callers may keep it across later appends.
func (c *MemoryContext) Snapshot() []model.Message {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return append([]model.Message(nil), c.messages...)
}

func (c *MemoryContext) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.messages)
}

// CheckTranscript lists recorded tool calls a backend would reject on replay,
// such as calls without an id or with arguments that are not JSON.
func CheckTranscript(messages []model.Message) []string {
	var problems []string
	for i, msg := range messages {
		if msg.Role != model.RoleAssistant {
			continue
		}
		for _, call := range msg.ToolCalls {
			for _, p := range toolcall.ValidateRequest(call) {
				problems = append(problems, fmt.Sprintf("message %d, tool call %q: %s", i, call.Name, p))
			}
		}
	}
	return problems
}
