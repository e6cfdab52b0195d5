package toolcall

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Strategy records which step of ParseArguments produced the result.
type Strategy int

const (
	StrategyDirect Strategy = iota + 1
	StrategyRepaired
	StrategyExtracted
	StrategyHeuristic
	StrategyRaw
)

func (s Strategy) String() string {
	switch s {
	case StrategyDirect:
		return "direct"
	case StrategyRepaired:
		return "repaired"
	case StrategyExtracted:
		return "extracted"
	case StrategyHeuristic:
		return "heuristic"
	case StrategyRaw:
		return "raw"
	default:
		return "unknown"
	}
}

// Degraded reports whether the arguments were only recovered heuristically.
func (s Strategy) Degraded() bool {
	return s >= StrategyHeuristic
}

// ParseArguments turns an argument string into a keyed structure. It never
// fails; see the package documentation for the strategy order.
func ParseArguments(s string) (map[string]any, Strategy) {
	if strings.TrimSpace(s) == "" {
		return map[string]any{}, StrategyDirect
	}

	if args, ok := parseObject(s); ok {
		return args, StrategyDirect
	}

	if args, ok := parseObject(RepairJSON(s)); ok {
		return args, StrategyRepaired
	}

	if span := objectSpan(s); span != "" {
		if args, ok := parseObject(RepairJSON(span)); ok {
			return args, StrategyExtracted
		}
	}

	if args := extractKeyValues(s); len(args) > 0 {
		return args, StrategyHeuristic
	}

	return map[string]any{
		RawArgumentsKey: s,
		ParseErrorKey:   true,
	}, StrategyRaw
}

// ParseJSONSafe is ParseArguments without the strategy.
func ParseJSONSafe(s string) map[string]any {
	args, _ := ParseArguments(s)
	return args
}

// IsParseError reports whether args is a last-resort map.
func IsParseError(args map[string]any) bool {
	flag, _ := args[ParseErrorKey].(bool)
	return flag
}

func parseObject(s string) (map[string]any, bool) {
	var out map[string]any
	if err := json.Unmarshal([]byte(s), &out); err != nil || out == nil {
		return nil, false
	}
	return out, true
}

// objectSpan returns the outermost {...} span embedded in s. A span that was
// cut off before its closing brace runs to the end of s.
func objectSpan(s string) string {
	if span := objectSpanRe.FindString(s); span != "" {
		return span
	}
	if i := strings.Index(s, "{"); i >= 0 {
		return s[i:]
	}
	return ""
}

// extractKeyValues scans for key: value pairs in text that is too broken for
// any JSON repair.
func extractKeyValues(s string) map[string]any {
	out := make(map[string]any)
	for _, m := range keyValueRe.FindAllStringSubmatch(s, -1) {
		key := m[1]
		raw := strings.TrimSpace(m[2])
		out[key] = heuristicValue(raw)
	}
	return out
}

func heuristicValue(raw string) any {
	switch {
	case len(raw) >= 2 && raw[0] == '"' && raw[len(raw)-1] == '"':
		return raw[1 : len(raw)-1]
	case len(raw) >= 2 && raw[0] == '\'' && raw[len(raw)-1] == '\'':
		return raw[1 : len(raw)-1]
	}

	switch strings.ToLower(raw) {
	case "true":
		return true
	case "false":
		return false
	case "null":
		return nil
	}

	// Numbers decode as float64, the same as encoding/json.
	if f, err := strconv.ParseFloat(raw, 64); err == nil {
		return f
	}
	return strings.Trim(raw, `"'`)
}
