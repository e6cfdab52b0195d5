package model

// StreamEventKind tags the variant carried by a StreamEvent.
type StreamEventKind string

const (
	StreamTextDelta        StreamEventKind = "text_delta"
	StreamThinkingDelta    StreamEventKind = "thinking_delta"
	StreamToolCallStart    StreamEventKind = "tool_call_start"
	StreamToolCallArgDelta StreamEventKind = "tool_call_arg_delta"
	StreamToolCallComplete StreamEventKind = "tool_call_complete"
	StreamUsage            StreamEventKind = "usage"
	StreamDone             StreamEventKind = "done"
	StreamError            StreamEventKind = "error"
)

// Usage is the token accounting reported by a backend for one request.
type Usage struct {
	PromptTokens     int
	CompletionTokens int
	TotalTokens      int
	CachedTokens     int
}

// Add accumulates other into u.
func (u *Usage) Add(other Usage) {
	u.PromptTokens += other.PromptTokens
	u.CompletionTokens += other.CompletionTokens
	u.TotalTokens += other.TotalTokens
	u.CachedTokens += other.CachedTokens
}

// StreamEvent is the backend-agnostic event every provider bridge produces.
// Only the fields belonging to Kind are meaningful.
//
// A request's stream ends with exactly one StreamDone or StreamError event.
type StreamEvent struct {
	Kind StreamEventKind

	// Text holds the fragment for text and thinking deltas.
	Text string

	// ToolCallID and ToolName identify the call for tool events.
	ToolCallID string
	ToolName   string
	Fragment   string
	ToolCall   *ToolCall

	Usage        *Usage
	FinishReason string

	// ErrorKind is the category of a StreamError (rate_limited, connectivity,
	// rejected, cancelled).
	ErrorKind string
	Message   string
}

func TextDelta(text string) StreamEvent {
	return StreamEvent{Kind: StreamTextDelta, Text: text}
}

func ThinkingDelta(text string) StreamEvent {
	return StreamEvent{Kind: StreamThinkingDelta, Text: text}
}

func ToolCallStart(id, name string) StreamEvent {
	return StreamEvent{Kind: StreamToolCallStart, ToolCallID: id, ToolName: name}
}

func ToolCallArgDelta(id, fragment string) StreamEvent {
	return StreamEvent{Kind: StreamToolCallArgDelta, ToolCallID: id, Fragment: fragment}
}

func ToolCallComplete(call ToolCall) StreamEvent {
	return StreamEvent{Kind: StreamToolCallComplete, ToolCallID: call.ID, ToolName: call.Name, ToolCall: &call}
}

func UsageEvent(u Usage) StreamEvent {
	return StreamEvent{Kind: StreamUsage, Usage: &u}
}

func DoneEvent(finishReason string, u *Usage) StreamEvent {
	return StreamEvent{Kind: StreamDone, FinishReason: finishReason, Usage: u}
}

func ErrorEvent(kind, message string) StreamEvent {
	return StreamEvent{Kind: StreamError, ErrorKind: kind, Message: message}
}

// Terminal reports whether e ends a request's stream.
func (e StreamEvent) Terminal() bool {
	return e.Kind == StreamDone || e.Kind == StreamError
}
