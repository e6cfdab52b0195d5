package toolcall

import (
	"encoding/json"
	"reflect"
	"testing"
)

func TestRepairJSON(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  map[string]any
	}{
		{"empty string", "", map[string]any{}},
		{"whitespace only", "   ", map[string]any{}},
		{"trailing comma", `{"a": 1,}`, map[string]any{"a": 1.0}},
		{"trailing comma in array", `{"a": [1, 2,]}`, map[string]any{"a": []any{1.0, 2.0}}},
		{"unterminated nested object", `{"a": {"b": 1`, map[string]any{"a": map[string]any{"b": 1.0}}},
		{"unterminated array", `{"a": [1, 2`, map[string]any{"a": []any{1.0, 2.0}}},
		{"unterminated string", `{"q": "hel`, map[string]any{"q": "hel"}},
		{"cut after colon", `{"q":`, map[string]any{"q": nil}},
		{"cut after comma", `{"a": 1,`, map[string]any{"a": 1.0}},
		{"single quotes", `{'path': 'main.go'}`, map[string]any{"path": "main.go"}},
		{"bare keys", `{path: "main.go", line: 3}`, map[string]any{"path": "main.go", "line": 3.0}},
		{"raw newline in string", "{\"text\": \"a\nb\"}", map[string]any{"text": "a b"}},
		{"control character", "{\"a\": \"x\x01y\"}", map[string]any{"a": "xy"}},
		{"key-like text in string", `{"msg": "hi, there: yes",}`, map[string]any{"msg": "hi, there: yes"}},
		{"comma before bracket in string", `{"pattern": "a,]", "n": 1,}`, map[string]any{"pattern": "a,]", "n": 1.0}},
		{"escaped backslashes in string", `{"path": "C:\\new\\x",}`, map[string]any{"path": `C:\new\x`}},
		{"escaped newline in string", `{"text": "a\nb", n: 1}`, map[string]any{"text": "a\nb", "n": 1.0}},
		{"literal backslash n between tokens", `{"a": 1,\n"b": 2}`, map[string]any{"a": 1.0, "b": 2.0}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repaired := RepairJSON(tt.input)
			var got map[string]any
			if err := json.Unmarshal([]byte(repaired), &got); err != nil {
				t.Fatalf("RepairJSON(%q) = %q, which does not parse: %v", tt.input, repaired, err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("RepairJSON(%q) parsed to %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}

func TestRepairIsIdentityOnValidJSON(t *testing.T) {
	inputs := []string{
		`{}`,
		`{"a": 1}`,
		`{"text": "line one\nline two", "n": 2.5}`,
		`{"nested": {"list": [1, "two", {"three": 3}]}, "ok": true, "none": null}`,
		`{"quote": "it's \"fine\""}`,
		`{"url": "http://example.com/a,b:c"}`,
	}

	for _, input := range inputs {
		if got := RepairJSON(input); got != input {
			t.Errorf("RepairJSON(%q) = %q, want input unchanged", input, got)
		}

		var direct map[string]any
		if err := json.Unmarshal([]byte(input), &direct); err != nil {
			t.Fatalf("test input %q is not valid JSON: %v", input, err)
		}
		parsed, strategy := ParseArguments(input)
		if strategy != StrategyDirect {
			t.Errorf("ParseArguments(%q) strategy = %v, want direct", input, strategy)
		}
		if !reflect.DeepEqual(parsed, direct) {
			t.Errorf("ParseArguments(%q) = %v, want %v", input, parsed, direct)
		}
	}
}

func TestParseArgumentsStrategies(t *testing.T) {
	tests := []struct {
		name         string
		input        string
		wantStrategy Strategy
		want         map[string]any
	}{
		{
			name:         "empty",
			input:        "",
			wantStrategy: StrategyDirect,
			want:         map[string]any{},
		},
		{
			name:         "valid",
			input:        `{"q": "x"}`,
			wantStrategy: StrategyDirect,
			want:         map[string]any{"q": "x"},
		},
		{
			name:         "repairable",
			input:        `{"q": "x",}`,
			wantStrategy: StrategyRepaired,
			want:         map[string]any{"q": "x"},
		},
		{
			name:         "string content kept when repairing",
			input:        `{"msg": "hi, there: yes",}`,
			wantStrategy: StrategyRepaired,
			want:         map[string]any{"msg": "hi, there: yes"},
		},
		{
			name:         "embedded in prose",
			input:        `Sure! The arguments are {"path": "a.go",} as requested.`,
			wantStrategy: StrategyExtracted,
			want:         map[string]any{"path": "a.go"},
		},
		{
			name:         "key value text",
			input:        `path: main.go, line: 3, force: true`,
			wantStrategy: StrategyHeuristic,
			want:         map[string]any{"path": "main.go", "line": 3.0, "force": true},
		},
		{
			name:         "unrecoverable",
			input:        `not json at all`,
			wantStrategy: StrategyRaw,
			want:         map[string]any{RawArgumentsKey: "not json at all", ParseErrorKey: true},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, strategy := ParseArguments(tt.input)
			if strategy != tt.wantStrategy {
				t.Errorf("strategy: got %v, want %v", strategy, tt.wantStrategy)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("arguments: got %v, want %v", got, tt.want)
			}
		})
	}
}

func TestParseArgumentsRejectsNonObjects(t *testing.T) {
	for _, input := range []string{"null", "[1, 2]", `"just a string"`, "42"} {
		got, strategy := ParseArguments(input)
		if strategy != StrategyRaw || !IsParseError(got) {
			t.Errorf("ParseArguments(%q) = %v (%v), want last-resort map", input, got, strategy)
		}
	}
}

func TestStrategyDegraded(t *testing.T) {
	tests := []struct {
		strategy Strategy
		want     bool
	}{
		{StrategyDirect, false},
		{StrategyRepaired, false},
		{StrategyExtracted, false},
		{StrategyHeuristic, true},
		{StrategyRaw, true},
	}

	for _, tt := range tests {
		if got := tt.strategy.Degraded(); got != tt.want {
			t.Errorf("%v.Degraded() = %v, want %v", tt.strategy, got, tt.want)
		}
	}
}
