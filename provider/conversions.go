package provider

import (
	"strings"

	"byom/model"
	"byom/toolcall"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ConvertToOpenAIMessages converts transcript messages to chat completion
// message params.
//
// An assistant turn that only requested tools is sent without content.
func ConvertToOpenAIMessages(messages []model.Message) []openai.ChatCompletionMessageParamUnion {
	result := make([]openai.ChatCompletionMessageParamUnion, 0, len(messages))

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			result = append(result, openai.SystemMessage(msg.Content))

		case model.RoleUser:
			result = append(result, openai.UserMessage(msg.Content))

		case model.RoleAssistant:
			assistant := openai.ChatCompletionAssistantMessageParam{}
			if msg.Content != "" {
				assistant.Content.OfString = openai.String(msg.Content)
			}
			for _, call := range msg.ToolCalls {
				assistant.ToolCalls = append(assistant.ToolCalls, openai.ChatCompletionMessageToolCallUnionParam{
					OfFunction: &openai.ChatCompletionMessageFunctionToolCallParam{
						ID: call.ID,
						Function: openai.ChatCompletionMessageFunctionToolCallFunctionParam{
							Name:      call.Name,
							Arguments: argumentsOrEmpty(call.Arguments),
						},
					},
				})
			}
			result = append(result, openai.ChatCompletionMessageParamUnion{OfAssistant: &assistant})

		case model.RoleTool:
			result = append(result, openai.ToolMessage(msg.Content, msg.ToolCallID))
		}
	}

	return result
}

// ConvertToAnthropicMessages converts transcript messages to Anthropic format.
// Returns the message array and the system prompt blocks, which Anthropic
// takes as a separate parameter.
//
// Tool results become tool_result blocks; consecutive results are merged into
// one user message so they directly follow the assistant's tool_use blocks.
func ConvertToAnthropicMessages(messages []model.Message) ([]anthropic.MessageParam, []anthropic.TextBlockParam) {
	var systemBlocks []anthropic.TextBlockParam
	anthropicMsgs := make([]anthropic.MessageParam, 0, len(messages))
	var pendingResults []anthropic.ContentBlockParamUnion

	flushResults := func() {
		if len(pendingResults) > 0 {
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(pendingResults...))
			pendingResults = nil
		}
	}

	for _, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			systemBlocks = append(systemBlocks, anthropic.TextBlockParam{Text: msg.Content})

		case model.RoleUser:
			flushResults()
			anthropicMsgs = append(anthropicMsgs, anthropic.NewUserMessage(anthropic.NewTextBlock(msg.Content)))

		case model.RoleAssistant:
			flushResults()
			var blocks []anthropic.ContentBlockParamUnion
			if msg.Content != "" {
				blocks = append(blocks, anthropic.NewTextBlock(msg.Content))
			}
			for _, call := range msg.ToolCalls {
				blocks = append(blocks, anthropic.NewToolUseBlock(call.ID, toolcall.ParseJSONSafe(call.Arguments), call.Name))
			}
			// Anthropic rejects empty assistant turns.
			if len(blocks) == 0 {
				continue
			}
			anthropicMsgs = append(anthropicMsgs, anthropic.NewAssistantMessage(blocks...))

		case model.RoleTool:
			pendingResults = append(pendingResults, anthropic.NewToolResultBlock(msg.ToolCallID, msg.Content, msg.IsError))
		}
	}
	flushResults()

	return anthropicMsgs, systemBlocks
}

// ConvertToOllamaMessages converts transcript messages to Ollama api.Message.
// Tool results carry the tool name since Ollama does not use call ids.
func ConvertToOllamaMessages(messages []model.Message) []api.Message {
	result := make([]api.Message, 0, len(messages))

	for i, msg := range messages {
		out := api.Message{
			Role:    string(msg.Role),
			Content: msg.Content,
		}

		for _, call := range msg.ToolCalls {
			out.ToolCalls = append(out.ToolCalls, api.ToolCall{
				Function: api.ToolCallFunction{
					Name:      call.Name,
					Arguments: api.ToolCallFunctionArguments(toolcall.ParseJSONSafe(call.Arguments)),
				},
			})
		}

		if msg.Role == model.RoleTool {
			out.ToolName = model.ToolNameForCall(messages, i, msg.ToolCallID)
		}

		result = append(result, out)
	}

	return result
}

// ConvertToGeminiContents converts transcript messages to Gemini contents.
// Returns the contents and the system instruction (nil when absent).
//
// Assistant turns use the "model" role. Tool results are function responses
// keyed by tool name; consecutive results share one user content.
func ConvertToGeminiContents(messages []model.Message) ([]*genai.Content, *genai.Content) {
	var system *genai.Content
	contents := make([]*genai.Content, 0, len(messages))
	var pending *genai.Content

	flushResults := func() {
		if pending != nil {
			contents = append(contents, pending)
			pending = nil
		}
	}

	for i, msg := range messages {
		switch msg.Role {
		case model.RoleSystem:
			if system == nil {
				system = &genai.Content{}
			}
			system.Parts = append(system.Parts, &genai.Part{Text: msg.Content})

		case model.RoleUser:
			flushResults()
			contents = append(contents, &genai.Content{
				Role:  "user",
				Parts: []*genai.Part{{Text: msg.Content}},
			})

		case model.RoleAssistant:
			flushResults()
			content := &genai.Content{Role: "model"}
			if msg.Content != "" {
				content.Parts = append(content.Parts, &genai.Part{Text: msg.Content})
			}
			for _, call := range msg.ToolCalls {
				content.Parts = append(content.Parts, &genai.Part{
					FunctionCall: &genai.FunctionCall{
						ID:   geminiCallID(call.ID),
						Name: call.Name,
						Args: toolcall.ParseJSONSafe(call.Arguments),
					},
				})
			}
			if len(content.Parts) == 0 {
				continue
			}
			contents = append(contents, content)

		case model.RoleTool:
			key := "output"
			if msg.IsError {
				key = "error"
			}
			if pending == nil {
				pending = &genai.Content{Role: "user"}
			}
			pending.Parts = append(pending.Parts, &genai.Part{
				FunctionResponse: &genai.FunctionResponse{
					ID:       geminiCallID(msg.ToolCallID),
					Name:     model.ToolNameForCall(messages, i, msg.ToolCallID),
					Response: map[string]any{key: msg.Content},
				},
			})
		}
	}
	flushResults()

	return contents, system
}

// geminiCallID drops ids we synthesized ourselves; Gemini only understands
// the ones it issued.
func geminiCallID(id string) string {
	if strings.HasPrefix(id, string(ProviderTypeGemini)+"_") {
		return ""
	}
	return id
}

func argumentsOrEmpty(args string) string {
	if strings.TrimSpace(args) == "" {
		return "{}"
	}
	return args
}
