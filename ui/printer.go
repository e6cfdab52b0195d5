// Package ui prints agent lifecycle events to a terminal.
package ui

import (
	"fmt"
	"io"
	"sort"
	"strings"

	"byom/agent"

	"github.com/mattn/go-runewidth"
)

// Printer renders a run as it streams. It is not safe for concurrent use.
type Printer struct {
	out   io.Writer
	width int

	// Markdown renders each final text block instead of streaming raw deltas.
	Markdown bool
	// ShowThinking prints reasoning deltas.
	ShowThinking bool
	// Verbose adds per-turn usage lines.
	Verbose bool
	// Color disables styling when false.
	Color bool

	midLine  bool
	thinking bool
}

func NewPrinter(out io.Writer, width int) *Printer {
	if width <= 0 {
		width = 80
	}
	return &Printer{out: out, width: width, Color: true}
}

func (p *Printer) style(render func(...string) string, s string) string {
	if !p.Color {
		return s
	}
	return render(s)
}

func (p *Printer) newline() {
	if p.midLine {
		fmt.Fprintln(p.out)
		p.midLine = false
	}
}

func (p *Printer) write(s string) {
	if s == "" {
		return
	}
	fmt.Fprint(p.out, s)
	p.midLine = !strings.HasSuffix(s, "\n")
}

func (p *Printer) endThinking() {
	if p.thinking {
		p.newline()
		p.thinking = false
	}
}

// Handle prints one event.
func (p *Printer) Handle(ev agent.Event) {
	switch ev.Kind {
	case agent.EventRunStart:
		p.midLine = false
		p.thinking = false

	case agent.EventThinkingDelta:
		if !p.ShowThinking {
			return
		}
		if !p.thinking {
			p.newline()
			p.write(p.style(DimStyle.Render, "thinking: "))
			p.thinking = true
		}
		p.write(p.style(ThinkingStyle.Render, ev.Text))

	case agent.EventTextDelta:
		p.endThinking()
		if !p.Markdown {
			p.write(p.style(AssistantStyle.Render, ev.Text))
		}

	case agent.EventTextFinal:
		p.endThinking()
		if p.Markdown && ev.Text != "" {
			p.newline()
			rendered := RenderMarkdown(ev.Text, p.width)
			if !p.Color {
				rendered = stripANSI(rendered)
			}
			p.write(rendered + "\n")
		}
		p.newline()

	case agent.EventToolCallStart:
		p.endThinking()
		p.newline()
		if ev.ToolCall == nil {
			return
		}
		line := fmt.Sprintf("→ %s(%s)", ev.ToolCall.Name, formatArgs(ev.ToolCall.Arguments))
		p.write(p.style(ToolStyle.Render, p.truncate(line)) + "\n")

	case agent.EventToolCallComplete:
		if ev.Result == nil {
			return
		}
		var line string
		if ev.Result.Success {
			line = p.style(SuccessStyle.Render, "  ✓ ") + p.truncate(firstLine(ev.Result.Output))
		} else {
			line = p.style(ErrorStyle.Render, "  ✗ ") + p.truncate(firstLine(ev.Result.Error))
		}
		if degraded, _ := ev.Result.Metadata[agent.MetaParseDegraded].(bool); degraded {
			line += p.style(WarningStyle.Render, " (arguments recovered heuristically)")
		}
		p.write(line + "\n")

	case agent.EventUsage:
		if p.Verbose && ev.Usage != nil {
			p.newline()
			p.write(p.style(DimStyle.Render, fmt.Sprintf("  turn %d: %d prompt + %d completion tokens",
				ev.Turn, ev.Usage.PromptTokens, ev.Usage.CompletionTokens)) + "\n")
		}

	case agent.EventRunError:
		p.endThinking()
		p.newline()
		msg := "Error: " + ev.Error
		if ev.ErrorKind != "" {
			msg = fmt.Sprintf("Error (%s): %s", ev.ErrorKind, ev.Error)
		}
		p.write(p.style(ErrorStyle.Render, msg) + "\n")

	case agent.EventRunEnd:
		p.endThinking()
		p.newline()
		p.write(p.style(DimStyle.Render, Summary(ev)) + "\n")
	}
}

// Summary describes how a run ended in one line.
func Summary(ev agent.Event) string {
	parts := []string{string(ev.Reason), fmt.Sprintf("%d turns", ev.Turns)}
	if ev.Turns == 1 {
		parts[1] = "1 turn"
	}
	if ev.Usage != nil && ev.Usage.TotalTokens > 0 {
		parts = append(parts, fmt.Sprintf("%d tokens", ev.Usage.TotalTokens))
	}
	return "run ended: " + strings.Join(parts, " · ")
}

func (p *Printer) truncate(s string) string {
	if runewidth.StringWidth(s) > p.width {
		return runewidth.Truncate(s, p.width, "...")
	}
	return s
}

func firstLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i] + " ..."
	}
	return s
}

// formatArgs renders arguments as key=value pairs in key order.
func formatArgs(args map[string]any) string {
	keys := make([]string, 0, len(args))
	for k := range args {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		switch v := args[k].(type) {
		case string:
			parts = append(parts, fmt.Sprintf("%s=%q", k, v))
		default:
			parts = append(parts, fmt.Sprintf("%s=%v", k, v))
		}
	}
	return strings.Join(parts, ", ")
}
