package provider

import (
	"strings"

	"byom/model"
)

// thinkingTags are the inline reasoning markers recognized in tag mode.
var thinkingTags = []string{"<think>", "<thinking>", "<reasoning>"}

// ThinkingFilter splits inline reasoning markers out of a text stream.
//
// Text inside a marker pair is held back and emitted as one ThinkingDelta
// when the closing marker arrives. Markers may be split across fragments. A
// filter belongs to a single request.
type ThinkingFilter struct {
	inside   bool
	closeTag string
	thought  strings.Builder
	pending  string
}

// NewThinkingFilter returns a filter in its initial state.
func NewThinkingFilter() *ThinkingFilter {
	return &ThinkingFilter{}
}

// Feed processes one text fragment and returns the events it completes.
func (f *ThinkingFilter) Feed(text string) []model.StreamEvent {
	var events []model.StreamEvent
	text = f.pending + text
	f.pending = ""

	for text != "" {
		if !f.inside {
			idx, tag := findOpenTag(text)
			if idx >= 0 {
				if idx > 0 {
					events = append(events, model.TextDelta(text[:idx]))
				}
				f.inside = true
				f.closeTag = "</" + tag[1:]
				text = text[idx+len(tag):]
				continue
			}

			keep := partialSuffix(text, thinkingTags)
			if emit := text[:len(text)-keep]; emit != "" {
				events = append(events, model.TextDelta(emit))
			}
			f.pending = text[len(text)-keep:]
			return events
		}

		if idx := strings.Index(text, f.closeTag); idx >= 0 {
			f.thought.WriteString(text[:idx])
			if f.thought.Len() > 0 {
				events = append(events, model.ThinkingDelta(f.thought.String()))
			}
			f.thought.Reset()
			f.inside = false
			text = text[idx+len(f.closeTag):]
			continue
		}

		keep := partialSuffix(text, []string{f.closeTag})
		f.thought.WriteString(text[:len(text)-keep])
		f.pending = text[len(text)-keep:]
		return events
	}
	return events
}

// Flush emits whatever is held back at the end of a stream. An unterminated
// reasoning span is surfaced as thinking.
func (f *ThinkingFilter) Flush() []model.StreamEvent {
	var events []model.StreamEvent
	if f.inside {
		f.thought.WriteString(f.pending)
		if f.thought.Len() > 0 {
			events = append(events, model.ThinkingDelta(f.thought.String()))
		}
	} else if f.pending != "" {
		events = append(events, model.TextDelta(f.pending))
	}
	f.Reset()
	return events
}

// Reset returns the filter to its initial state.
func (f *ThinkingFilter) Reset() {
	f.inside = false
	f.closeTag = ""
	f.thought.Reset()
	f.pending = ""
}

// findOpenTag returns the earliest opening marker in s.
func findOpenTag(s string) (int, string) {
	best, bestTag := -1, ""
	for _, tag := range thinkingTags {
		if i := strings.Index(s, tag); i >= 0 && (best < 0 || i < best) {
			best, bestTag = i, tag
		}
	}
	return best, bestTag
}

// partialSuffix returns the length of the longest suffix of s that is a
// proper prefix of one of tags.
func partialSuffix(s string, tags []string) int {
	longest := 0
	for _, tag := range tags {
		limit := len(tag) - 1
		if len(s) < limit {
			limit = len(s)
		}
		for n := limit; n > longest; n-- {
			if strings.HasSuffix(s, tag[:n]) {
				longest = n
				break
			}
		}
	}
	return longest
}

// textRouter applies the thinking mode to a request's text and reasoning
// channels.
type textRouter struct {
	mode   model.ThinkingMode
	filter *ThinkingFilter
}

func newTextRouter(mode model.ThinkingMode) *textRouter {
	return &textRouter{mode: mode, filter: NewThinkingFilter()}
}

// text handles a fragment of the visible text channel.
func (r *textRouter) text(s string) []model.StreamEvent {
	if s == "" {
		return nil
	}
	if r.mode == model.ThinkingTags {
		return r.filter.Feed(s)
	}
	return []model.StreamEvent{model.TextDelta(s)}
}

// reasoning handles a fragment of a backend's native reasoning channel, which
// is only surfaced in native mode.
func (r *textRouter) reasoning(s string) []model.StreamEvent {
	if s == "" || r.mode != model.ThinkingNative {
		return nil
	}
	return []model.StreamEvent{model.ThinkingDelta(s)}
}

func (r *textRouter) flush() []model.StreamEvent {
	if r.mode == model.ThinkingTags {
		return r.filter.Flush()
	}
	return nil
}
