package provider

import (
	"reflect"
	"strings"
	"testing"

	"byom/model"
)

func TestAccumulatorAssemblesFragments(t *testing.T) {
	acc := newToolCallAccumulator("openai")

	var events []model.StreamEvent
	events = append(events, acc.add(0, "call_1", "search", "")...)
	for _, frag := range []string{`{"q"`, `:"x`, `"}`} {
		events = append(events, acc.add(0, "", "", frag)...)
	}
	events = append(events, acc.flush()...)

	var starts, deltas, completes int
	var args strings.Builder
	var done *model.ToolCall
	for _, ev := range events {
		switch ev.Kind {
		case model.StreamToolCallStart:
			starts++
		case model.StreamToolCallArgDelta:
			deltas++
			args.WriteString(ev.Fragment)
		case model.StreamToolCallComplete:
			completes++
			done = ev.ToolCall
		}
	}

	if starts != 1 || completes != 1 || deltas != 3 {
		t.Fatalf("events: starts=%d deltas=%d completes=%d, want 1/3/1", starts, deltas, completes)
	}
	if args.String() != `{"q":"x"}` {
		t.Errorf("concatenated fragments: got %q", args.String())
	}
	if done.ID != "call_1" || done.Name != "search" {
		t.Errorf("call identity: got %s/%s", done.ID, done.Name)
	}
	if !reflect.DeepEqual(done.Arguments, map[string]any{"q": "x"}) {
		t.Errorf("arguments: got %v", done.Arguments)
	}
	if acc.pending() {
		t.Error("accumulator should be empty after flush")
	}
}

func TestAccumulatorKeepsIndexOrder(t *testing.T) {
	acc := newToolCallAccumulator("openai")
	acc.add(1, "b", "second", `{}`)
	acc.add(0, "a", "first", `{}`)
	acc.add(1, "", "", "")

	events := acc.flush()
	if len(events) != 2 {
		t.Fatalf("completes: got %d, want 2", len(events))
	}
	// First-seen order, not numeric order.
	if events[0].ToolCall.Name != "second" || events[1].ToolCall.Name != "first" {
		t.Errorf("order: got %s, %s", events[0].ToolCall.Name, events[1].ToolCall.Name)
	}
}

func TestAccumulatorArgsBeforeName(t *testing.T) {
	acc := newToolCallAccumulator("openai")
	if evs := acc.add(0, "", "", `{"a":`); len(evs) != 0 {
		t.Fatalf("events before name: got %d, want 0", len(evs))
	}

	evs := acc.add(0, "", "read_file", `1}`)
	if len(evs) != 3 {
		t.Fatalf("events: got %d, want start plus two deltas", len(evs))
	}
	if evs[0].Kind != model.StreamToolCallStart || evs[1].Fragment != `{"a":` || evs[2].Fragment != `1}` {
		t.Errorf("events: got %+v", evs)
	}
	if !strings.HasPrefix(evs[0].ToolCallID, "openai_read_file_0_") {
		t.Errorf("synthesized id: got %q", evs[0].ToolCallID)
	}

	done := acc.flush()[0].ToolCall
	if done.ID != evs[0].ToolCallID {
		t.Errorf("complete id %q differs from start id %q", done.ID, evs[0].ToolCallID)
	}
}

func TestAccumulatorRepairsAndDegrades(t *testing.T) {
	acc := newToolCallAccumulator("ollama")
	acc.add(0, "x", "edit", `{"path": "a.go",`)
	acc.add(1, "y", "run", `cmd: ls, verbose: true`)

	events := acc.flush()
	first, second := events[0].ToolCall, events[1].ToolCall

	if first.ParseDegraded || first.Arguments["path"] != "a.go" {
		t.Errorf("repaired call: got %+v", first)
	}
	if !second.ParseDegraded || second.Arguments["cmd"] != "ls" {
		t.Errorf("heuristic call: got %+v", second)
	}
}
