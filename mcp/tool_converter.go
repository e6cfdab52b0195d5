package mcp

import (
	"encoding/json"

	"github.com/anthropics/anthropic-sdk-go"
	mcptypes "github.com/mark3labs/mcp-go/mcp"
	"github.com/ollama/ollama/api"
	"github.com/openai/openai-go/v3"
	"google.golang.org/genai"
)

// ParameterSchema returns a tool's parameter JSON schema as a map. A tool
// without parameters gets {"type": "object", "properties": {}}; nothing else
// is added.
func ParameterSchema(tool mcptypes.Tool) map[string]any {
	schema := map[string]any{}

	switch {
	case len(tool.RawInputSchema) > 0:
		if err := json.Unmarshal(tool.RawInputSchema, &schema); err != nil || schema == nil {
			schema = map[string]any{}
		}
	default:
		if tool.InputSchema.Type != "" {
			schema["type"] = tool.InputSchema.Type
		}
		if tool.InputSchema.Properties != nil {
			schema["properties"] = tool.InputSchema.Properties
		}
		if len(tool.InputSchema.Required) > 0 {
			schema["required"] = tool.InputSchema.Required
		}
		if tool.InputSchema.Defs != nil {
			schema["$defs"] = tool.InputSchema.Defs
		}
	}

	if _, ok := schema["type"]; !ok {
		schema["type"] = "object"
	}
	if _, ok := schema["properties"]; !ok {
		schema["properties"] = map[string]any{}
	}
	return schema
}

// SchemaJSON is ParameterSchema encoded as JSON.
func SchemaJSON(tool mcptypes.Tool) []byte {
	data, err := json.Marshal(ParameterSchema(tool))
	if err != nil {
		return []byte(`{"type":"object","properties":{}}`)
	}
	return data
}

// ConvertToolsToOllama converts tools to Ollama API tool format
func ConvertToolsToOllama(tools []mcptypes.Tool) []api.Tool {
	if len(tools) == 0 {
		return nil
	}

	ollamaTools := make([]api.Tool, 0, len(tools))
	for _, tool := range tools {
		ollamaTools = append(ollamaTools, api.Tool{
			Type: "function",
			Function: api.ToolFunction{
				Name:        tool.Name,
				Description: tool.Description,
				Parameters:  convertSchemaToParameters(ParameterSchema(tool)),
			},
		})
	}

	return ollamaTools
}

// convertSchemaToParameters converts a parameter schema to Ollama ToolFunctionParameters
func convertSchemaToParameters(schema map[string]any) api.ToolFunctionParameters {
	params := api.ToolFunctionParameters{
		Properties: make(map[string]api.ToolProperty),
	}
	params.Type, _ = schema["type"].(string)
	params.Required = stringList(schema["required"])

	if defs, ok := schema["$defs"]; ok {
		params.Defs = defs
	}

	if props, ok := schema["properties"].(map[string]any); ok {
		for propName, propValue := range props {
			params.Properties[propName] = convertPropertyValue(propValue)
		}
	}

	return params
}

// convertPropertyValue converts a property value from JSON schema to Ollama ToolProperty
func convertPropertyValue(propValue any) api.ToolProperty {
	toolProp := api.ToolProperty{}

	propMap, ok := propValue.(map[string]any)
	if !ok {
		// If it's not a map, try to marshal and unmarshal it
		bytes, err := json.Marshal(propValue)
		if err != nil {
			return toolProp
		}
		var m map[string]any
		if err := json.Unmarshal(bytes, &m); err != nil {
			return toolProp
		}
		propMap = m
	}

	// Type can be string or list of strings
	switch t := propMap["type"].(type) {
	case string:
		toolProp.Type = api.PropertyType{t}
	case []string:
		toolProp.Type = api.PropertyType(t)
	case []any:
		toolProp.Type = api.PropertyType(stringList(t))
	}

	if desc, ok := propMap["description"].(string); ok {
		toolProp.Description = desc
	}

	if enumSlice, ok := propMap["enum"].([]any); ok {
		toolProp.Enum = enumSlice
	}

	if items, ok := propMap["items"]; ok {
		toolProp.Items = items
	}

	if anyOfSlice, ok := propMap["anyOf"].([]any); ok {
		anyOfProps := make([]api.ToolProperty, 0, len(anyOfSlice))
		for _, item := range anyOfSlice {
			anyOfProps = append(anyOfProps, convertPropertyValue(item))
		}
		toolProp.AnyOf = anyOfProps
	}

	return toolProp
}

// ConvertToolsToOpenAI converts tools to the OpenAI chat completions format,
// shared by every OpenAI-compatible backend.
//
//	{
//	  "type": "function",
//	  "function": {
//	    "name": "get_weather",
//	    "description": "Get weather data",
//	    "parameters": {...}
//	  }
//	}
func ConvertToolsToOpenAI(tools []mcptypes.Tool) []openai.ChatCompletionToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]openai.ChatCompletionToolUnionParam, len(tools))
	for i, tool := range tools {
		def := openai.FunctionDefinitionParam{
			Name:       tool.Name,
			Parameters: openai.FunctionParameters(ParameterSchema(tool)),
		}
		if tool.Description != "" {
			def.Description = openai.String(tool.Description)
		}
		result[i] = openai.ChatCompletionFunctionTool(def)
	}

	return result
}

// ConvertToolsToAnthropic converts tools to Anthropic tool definitions.
// Schema keys other than properties and required travel in ExtraFields.
func ConvertToolsToAnthropic(tools []mcptypes.Tool) []anthropic.ToolUnionParam {
	if len(tools) == 0 {
		return nil
	}

	result := make([]anthropic.ToolUnionParam, len(tools))
	for i, tool := range tools {
		schema := ParameterSchema(tool)

		// Type defaults to "object" when omitted
		inputSchema := anthropic.ToolInputSchemaParam{
			Properties: schema["properties"],
			Required:   stringList(schema["required"]),
		}

		extra := map[string]any{}
		for key, value := range schema {
			switch key {
			case "type", "properties", "required":
			default:
				extra[key] = value
			}
		}
		if len(extra) > 0 {
			inputSchema.ExtraFields = extra
		}

		result[i] = anthropic.ToolUnionParamOfTool(inputSchema, tool.Name)
		if tool.Description != "" {
			result[i].OfTool.Description = anthropic.String(tool.Description)
		}
	}

	return result
}

// ConvertToolsToGemini converts tools to Gemini function declarations, all
// grouped under a single genai.Tool.
func ConvertToolsToGemini(tools []mcptypes.Tool) []*genai.Tool {
	if len(tools) == 0 {
		return nil
	}

	decls := make([]*genai.FunctionDeclaration, 0, len(tools))
	for _, tool := range tools {
		decls = append(decls, &genai.FunctionDeclaration{
			Name:                 tool.Name,
			Description:          tool.Description,
			ParametersJsonSchema: ParameterSchema(tool),
		})
	}

	return []*genai.Tool{{FunctionDeclarations: decls}}
}

func stringList(v any) []string {
	switch list := v.(type) {
	case []string:
		return list
	case []any:
		out := make([]string, 0, len(list))
		for _, item := range list {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	default:
		return nil
	}
}
