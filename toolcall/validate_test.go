package toolcall

import (
	"strings"
	"testing"

	"byom/model"
)

func TestValidate(t *testing.T) {
	tests := []struct {
		name     string
		call     model.ToolCall
		wantSubs []string
	}{
		{
			name: "valid call",
			call: model.ToolCall{ID: "call_1", Name: "read_file", Arguments: map[string]any{"path": "a.go"}},
		},
		{
			name:     "empty name",
			call:     model.ToolCall{ID: "call_1", Arguments: map[string]any{}},
			wantSubs: []string{"name"},
		},
		{
			name:     "empty id",
			call:     model.ToolCall{Name: "read_file", Arguments: map[string]any{}},
			wantSubs: []string{"call_id"},
		},
		{
			name:     "blank id and name",
			call:     model.ToolCall{ID: "  ", Name: " "},
			wantSubs: []string{"call_id", "name"},
		},
		{
			name:     "last resort arguments",
			call:     model.ToolCall{ID: "call_1", Name: "grep", Arguments: ParseJSONSafe("not json")},
			wantSubs: []string{"not valid JSON: not json"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			problems := Validate(tt.call)
			if len(tt.wantSubs) == 0 && len(problems) != 0 {
				t.Fatalf("expected no problems, got %v", problems)
			}
			if len(problems) != len(tt.wantSubs) {
				t.Fatalf("got %d problems %v, want %d", len(problems), problems, len(tt.wantSubs))
			}
			for i, sub := range tt.wantSubs {
				if !strings.Contains(problems[i], sub) {
					t.Errorf("problem %d: got %q, want it to contain %q", i, problems[i], sub)
				}
			}
		})
	}
}

func TestValidateRequest(t *testing.T) {
	tests := []struct {
		name string
		req  model.ToolCallRequest
		want int
	}{
		{"valid", model.ToolCallRequest{ID: "1", Name: "ls", Arguments: `{"path": "."}`}, 0},
		{"repairable arguments", model.ToolCallRequest{ID: "1", Name: "ls", Arguments: `{"path": ".",}`}, 0},
		{"empty arguments", model.ToolCallRequest{ID: "1", Name: "ls"}, 0},
		{"broken arguments", model.ToolCallRequest{ID: "1", Name: "ls", Arguments: `{"path": ".", oops}`}, 1},
		{"everything missing", model.ToolCallRequest{Arguments: "}{"}, 3},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ValidateRequest(tt.req); len(got) != tt.want {
				t.Errorf("got %d problems %v, want %d", len(got), got, tt.want)
			}
		})
	}
}

func TestValidateTruncatesLongArguments(t *testing.T) {
	long := strings.Repeat("x", 300)
	problems := Validate(model.ToolCall{ID: "1", Name: "n", Arguments: ParseJSONSafe(long)})
	if len(problems) != 1 {
		t.Fatalf("got %v, want one problem", problems)
	}
	want := "arguments are not valid JSON: " + strings.Repeat("x", 100)
	if problems[0] != want {
		t.Errorf("got %q, want %q", problems[0], want)
	}
}
