package provider

import (
	"strings"

	"byom/config"
	"byom/model"
	"byom/toolcall"
)

// toolCallBuffer collects one tool call's fragments during a request.
type toolCallBuffer struct {
	id      string
	name    string
	args    strings.Builder
	started bool
}

// toolCallAccumulator assembles streamed tool calls keyed by the backend's
// position index. Ids may arrive before the name, or never.
type toolCallAccumulator struct {
	backend string
	order   []int
	buffers map[int]*toolCallBuffer
}

func newToolCallAccumulator(backend string) *toolCallAccumulator {
	return &toolCallAccumulator{
		backend: backend,
		buffers: make(map[int]*toolCallBuffer),
	}
}

// add records a fragment for index and returns the events it produces.
// ToolCallStart is emitted the first time a name is seen for the index.
func (a *toolCallAccumulator) add(index int, id, name, args string) []model.StreamEvent {
	b, ok := a.buffers[index]
	if !ok {
		b = &toolCallBuffer{}
		a.buffers[index] = b
		a.order = append(a.order, index)
	}
	if id != "" && b.id == "" {
		b.id = id
	}

	var events []model.StreamEvent
	if name != "" && !b.started {
		b.name = name
		b.started = true
		if b.id == "" {
			b.id = toolcall.SynthesizeID(a.backend, name, index, b.args.String()+args)
		}
		events = append(events, model.ToolCallStart(b.id, b.name))
		// Arguments that arrived ahead of the name.
		if b.args.Len() > 0 {
			events = append(events, model.ToolCallArgDelta(b.id, b.args.String()))
		}
	}

	if args != "" {
		b.args.WriteString(args)
		if b.started {
			events = append(events, model.ToolCallArgDelta(b.id, args))
		}
	}
	return events
}

// pending reports whether any tool call is buffered.
func (a *toolCallAccumulator) pending() bool {
	return len(a.order) > 0
}

// flush finalizes every buffered call in index order and resets the
// accumulator.
func (a *toolCallAccumulator) flush() []model.StreamEvent {
	events := make([]model.StreamEvent, 0, len(a.order))
	for _, index := range a.order {
		b := a.buffers[index]
		raw := b.args.String()
		args, strategy := toolcall.ParseArguments(raw)

		id := b.id
		if id == "" {
			id = toolcall.SynthesizeID(a.backend, b.name, index, raw)
		}
		if strategy != toolcall.StrategyDirect && config.DebugLog != nil {
			config.DebugLog.Printf("[Provider] %s tool call %s (%s) arguments recovered via %s strategy", a.backend, id, b.name, strategy)
		}

		events = append(events, model.ToolCallComplete(model.ToolCall{
			ID:            id,
			Name:          b.name,
			Arguments:     args,
			ParseDegraded: strategy.Degraded(),
		}))
	}

	a.order = nil
	a.buffers = make(map[int]*toolCallBuffer)
	return events
}
