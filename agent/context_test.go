package agent

import (
	"strings"
	"testing"

	"byom/model"
)

func TestCheckTranscript(t *testing.T) {
	good := model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCallRequest{
		{ID: "call_1", Name: "read_file", Arguments: `{"path": "main.go"}`},
		{ID: "call_2", Name: "list_dir", Arguments: `{"path": ".",}`},
	}}
	bad := model.Message{Role: model.RoleAssistant, ToolCalls: []model.ToolCallRequest{
		{ID: "", Name: "grep", Arguments: `{}`},
		{ID: "call_4", Name: "glob", Arguments: `not json`},
	}}

	tests := []struct {
		name     string
		messages []model.Message
		want     []string
	}{
		{"empty", nil, nil},
		{"valid and repairable calls", []model.Message{model.NewUserMessage("hi"), good}, nil},
		{
			"broken calls",
			[]model.Message{model.NewUserMessage("hi"), good, bad},
			[]string{`message 2, tool call "grep": call_id is empty`, `message 2, tool call "glob": arguments are not valid JSON`},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := CheckTranscript(tt.messages)
			if len(got) != len(tt.want) {
				t.Fatalf("got %d problems %v, want %d", len(got), got, len(tt.want))
			}
			for i := range got {
				if !strings.HasPrefix(got[i], tt.want[i]) {
					t.Errorf("problem %d: got %q, want prefix %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}
