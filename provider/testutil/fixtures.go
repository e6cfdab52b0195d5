package testutil

import (
	"time"

	"byom/model"

	mcptypes "github.com/mark3labs/mcp-go/mcp"
)

// TestMessages returns a sample conversation for testing
func TestMessages() []model.Message {
	return []model.Message{
		{Role: model.RoleSystem, Content: "You are a coding assistant.", Timestamp: time.Now()},
		{Role: model.RoleUser, Content: "List the files in src.", Timestamp: time.Now()},
		{
			Role:      model.RoleAssistant,
			Content:   "",
			ToolCalls: []model.ToolCallRequest{{ID: "call_1", Name: "list_dir", Arguments: `{"path":"src"}`}},
			Timestamp: time.Now(),
		},
		{Role: model.RoleTool, Content: "main.go\nutil.go", ToolCallID: "call_1", Timestamp: time.Now()},
		{Role: model.RoleAssistant, Content: "There are two files.", Timestamp: time.Now()},
	}
}

// SingleUserMessage returns a single user message for simple tests
func SingleUserMessage(content string) []model.Message {
	return []model.Message{model.NewUserMessage(content)}
}

// TestTools returns sample tool definitions for testing
func TestTools() []mcptypes.Tool {
	return []mcptypes.Tool{
		mcptypes.NewTool("read_file",
			mcptypes.WithDescription("Read a file from disk"),
			mcptypes.WithString("path", mcptypes.Required(), mcptypes.Description("File path")),
		),
		mcptypes.NewTool("list_dir",
			mcptypes.WithDescription("List a directory"),
			mcptypes.WithString("path", mcptypes.Description("Directory path")),
		),
	}
}
