package agent

import "byom/model"

// EventKind tags the variant carried by an Event.
type EventKind string

const (
	EventRunStart         EventKind = "run_start"
	EventTextDelta        EventKind = "text_delta"
	EventThinkingDelta    EventKind = "thinking_delta"
	EventTextFinal        EventKind = "text_final"
	EventToolCallStart    EventKind = "tool_call_start"
	EventToolCallComplete EventKind = "tool_call_complete"
	EventUsage            EventKind = "usage"
	EventRunError         EventKind = "run_error"
	EventRunEnd           EventKind = "run_end"
)

// Reason says why a run ended.
type Reason string

const (
	ReasonNoToolCalls  Reason = "no_tool_calls"
	ReasonMaxTurns     Reason = "max_turns_reached"
	ReasonError        Reason = "error"
	ReasonExplicitStop Reason = "explicit_stop"
	ReasonCancelled    Reason = "cancelled"
)

// Event is one lifecycle notification of a run. Only the fields belonging to
// Kind are meaningful; RunID and Turn are always set.
type Event struct {
	Kind  EventKind
	RunID string
	Turn  int

	// Text holds the fragment for deltas and the turn's text for EventTextFinal.
	Text string

	ToolCall *model.ToolCall
	Result   *model.ToolResult

	Usage *model.Usage

	// Error and ErrorKind describe an EventRunError.
	Error     string
	ErrorKind string

	// Reason, FinalText and Turns describe an EventRunEnd. Usage is the total.
	Reason    Reason
	FinalText string
	Turns     int
}

// RunResult is a drained run.
type RunResult struct {
	RunID       string
	Reason      Reason
	FinalText   string
	Turns       int
	Usage       model.Usage
	ToolsCalled []string
	Errors      []string
}

// Metadata keys set on tool results by the loop.
const (
	MetaParseDegraded    = "parse_degraded"
	MetaValidationErrors = "validation_errors"
)
