package tools

import (
	"encoding/json"
	"fmt"
	"math"
	"strconv"
	"strings"
	"unicode/utf8"
)

// isMissing reports whether a required argument value counts as absent.
func isMissing(v any, present bool) bool {
	if !present || v == nil {
		return true
	}
	switch val := v.(type) {
	case string:
		return strings.TrimSpace(val) == ""
	case []any:
		return len(val) == 0
	case []string:
		return len(val) == 0
	}
	return false
}

// stringArg returns the trimmed string form of args[key], capped at max runes.
// Non-string scalars are formatted; absent values yield "".
func stringArg(args map[string]any, key string, max int) string {
	v, ok := args[key]
	if !ok || v == nil {
		return ""
	}
	var s string
	switch val := v.(type) {
	case string:
		s = val
	case float64:
		s = strconv.FormatFloat(val, 'f', -1, 64)
	default:
		s = fmt.Sprint(val)
	}
	return truncate(strings.TrimSpace(s), max)
}

// optionalStringArg is stringArg that distinguishes absent (nil) from present.
func optionalStringArg(args map[string]any, key string, max int) *string {
	if v, ok := args[key]; !ok || v == nil {
		return nil
	}
	s := stringArg(args, key, max)
	return &s
}

// intArg extracts an integer, clamped into [min, max]. JSON numbers arrive as
// float64 and numeric strings are accepted. Absent or unparseable values
// yield def.
func intArg(args map[string]any, key string, def, min, max int) int {
	n, ok := toInt(args[key])
	if !ok {
		return def
	}
	return clamp(n, min, max)
}

// boolArg reports whether args[key] is true. JSON booleans and the strings
// "true", "yes" and "1" count; anything else is false.
func boolArg(args map[string]any, key string) bool {
	switch val := args[key].(type) {
	case bool:
		return val
	case string:
		switch strings.ToLower(strings.TrimSpace(val)) {
		case "true", "yes", "1":
			return true
		}
	case float64:
		return val == 1
	}
	return false
}

// optionalIntArg is intArg that returns nil when the value is absent or unparseable.
func optionalIntArg(args map[string]any, key string, min, max int) *int {
	n, ok := toInt(args[key])
	if !ok {
		return nil
	}
	n = clamp(n, min, max)
	return &n
}

// stringSliceArg extracts a list of non-blank strings, each capped at maxLen
// runes, keeping at most maxItems entries. A single string is split on newlines.
func stringSliceArg(args map[string]any, key string, maxItems, maxLen int) []string {
	var raw []string
	switch val := args[key].(type) {
	case []any:
		for _, item := range val {
			if item == nil {
				continue
			}
			if s, ok := item.(string); ok {
				raw = append(raw, s)
			} else {
				raw = append(raw, fmt.Sprint(item))
			}
		}
	case []string:
		raw = val
	case string:
		raw = strings.Split(val, "\n")
	}

	out := make([]string, 0, len(raw))
	for _, s := range raw {
		s = truncate(strings.TrimSpace(s), maxLen)
		if s == "" {
			continue
		}
		out = append(out, s)
		if len(out) == maxItems {
			break
		}
	}
	return out
}

func toInt(v any) (int, bool) {
	switch n := v.(type) {
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return 0, false
		}
		if n > math.MaxInt32 {
			return math.MaxInt32, true
		}
		if n < math.MinInt32 {
			return math.MinInt32, true
		}
		return int(n), true
	case int:
		return n, true
	case int64:
		if n > math.MaxInt32 {
			return math.MaxInt32, true
		}
		if n < math.MinInt32 {
			return math.MinInt32, true
		}
		return int(n), true
	case json.Number:
		f, err := n.Float64()
		if err != nil {
			return 0, false
		}
		return toInt(f)
	case string:
		s := strings.TrimSpace(n)
		if i, err := strconv.Atoi(s); err == nil {
			return i, true
		}
		// Try parsing as float then converting (e.g. "1.0")
		if f, err := strconv.ParseFloat(s, 64); err == nil {
			return toInt(f)
		}
	}
	return 0, false
}

func clamp(n, min, max int) int {
	if n < min {
		return min
	}
	if n > max {
		return max
	}
	return n
}

// truncate caps s at max runes without splitting a multi-byte character.
func truncate(s string, max int) string {
	if max <= 0 || utf8.RuneCountInString(s) <= max {
		return s
	}
	runes := []rune(s)
	return string(runes[:max])
}
