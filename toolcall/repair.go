// Package toolcall recovers structured tool-call arguments from the text a
// model actually produced.
//
// Backends stream arguments as JSON fragments, and weaker models routinely
// emit trailing commas, single quotes, bare keys or truncated objects. Parsing
// here never fails: ParseArguments walks an ordered list of strategies and, if
// everything else fails, returns the raw text under "raw_arguments" with a
// "_parse_error" flag so the caller can report it without aborting.
package toolcall

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	// RawArgumentsKey holds the original text when nothing could be parsed.
	RawArgumentsKey = "raw_arguments"
	// ParseErrorKey marks a last-resort argument map.
	ParseErrorKey = "_parse_error"
)

var (
	trailingCommaRe = regexp.MustCompile(`,\s*([}\]])`)
	bareKeyRe       = regexp.MustCompile(`([{,]\s*)([A-Za-z_][A-Za-z0-9_]*)(\s*:)`)
	objectSpanRe    = regexp.MustCompile(`(?s)\{.*\}`)
	keyValueRe      = regexp.MustCompile(`["']?([a-zA-Z_][a-zA-Z0-9_]*)["']?\s*:\s*([^,}\]]+)`)
)

// RepairJSON applies syntactic fixes to a malformed JSON object string.
// Valid input is returned unchanged and blank input becomes "{}".
func RepairJSON(s string) string {
	if strings.TrimSpace(s) == "" {
		return "{}"
	}
	if json.Valid([]byte(s)) {
		return s
	}

	repaired := s
	if strings.Contains(repaired, "'") && !strings.Contains(repaired, `"`) {
		repaired = strings.ReplaceAll(repaired, "'", `"`)
	}
	repaired = stripControlChars(repaired)
	repaired = outsideStrings(repaired, func(seg string) string {
		seg = strings.ReplaceAll(seg, `\n`, " ")
		return bareKeyRe.ReplaceAllString(seg, `$1"$2"$3`)
	})
	repaired = closeOpenStructures(repaired)
	// After closing, so "{"a": 1," ends up as {"a": 1}.
	repaired = outsideStrings(repaired, func(seg string) string {
		return trailingCommaRe.ReplaceAllString(seg, "$1")
	})
	return repaired
}

// outsideStrings applies fix to every stretch of s that is not inside a
// double-quoted string literal. String contents pass through untouched.
func outsideStrings(s string, fix func(string) string) string {
	var b strings.Builder
	b.Grow(len(s))
	start := 0
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
				b.WriteString(s[start : i+1])
				start = i + 1
			}
			continue
		}
		if c == '"' {
			b.WriteString(fix(s[start:i]))
			start = i
			inString = true
		}
	}

	if inString {
		b.WriteString(s[start:])
	} else {
		b.WriteString(fix(s[start:]))
	}
	return b.String()
}

// stripControlChars drops ASCII control characters. Whitespace controls
// become a plain space so adjacent tokens stay separated.
func stripControlChars(s string) string {
	return strings.Map(func(r rune) rune {
		switch {
		case r == '\n' || r == '\r' || r == '\t':
			return ' '
		case r < 0x20 || r == 0x7f:
			return -1
		default:
			return r
		}
	}, s)
}

// closeOpenStructures terminates an open string and appends the closers for
// every unbalanced brace or bracket, innermost first.
func closeOpenStructures(s string) string {
	var stack []byte
	inString := false
	escaped := false

	for i := 0; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			stack = append(stack, '}')
		case '[':
			stack = append(stack, ']')
		case '}', ']':
			if len(stack) > 0 && stack[len(stack)-1] == c {
				stack = stack[:len(stack)-1]
			}
		}
	}

	if len(stack) == 0 && !inString {
		return s
	}

	var b strings.Builder
	b.Grow(len(s) + len(stack) + 6)
	switch {
	case inString && escaped:
		b.WriteString(s[:len(s)-1])
		b.WriteByte('"')
	case inString:
		b.WriteString(s)
		b.WriteByte('"')
	default:
		b.WriteString(s)
	}

	// A key cut off right after its colon gets a null value.
	if strings.HasSuffix(strings.TrimRight(b.String(), " "), ":") {
		b.WriteString(" null")
	}
	for i := len(stack) - 1; i >= 0; i-- {
		b.WriteByte(stack[i])
	}
	return b.String()
}
