// Package render substitutes {{name}} placeholders in template bodies and
// in the string leaves of nested step parameters.
//
// Rendering never fails: a placeholder with no matching value is left in the
// output verbatim, so missing data shows up in the rendered note instead of
// disappearing. Rendering has no side effects and is deterministic for fixed
// inputs.
package render

import (
	"encoding/json"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"
)

// placeholderPattern matches {{name}}, tolerating spaces inside the braces.
// Names may be dotted to reach into nested maps ({{note.title}}).
var placeholderPattern = regexp.MustCompile(`\{\{\s*([A-Za-z_][A-Za-z0-9_\-]*(?:\.[A-Za-z0-9_\-]+)*)\s*\}\}`)

// Render replaces every resolvable placeholder in body with the string form
// of its value.
func Render(body string, values map[string]any) string {
	if !strings.Contains(body, "{{") {
		return body
	}
	return placeholderPattern.ReplaceAllStringFunc(body, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := Lookup(values, name)
		if !ok {
			return match
		}
		return Format(value)
	})
}

// Resolve walks maps and sequences depth-first and renders every string leaf.
// A string that consists of exactly one resolvable placeholder yields the
// referenced value itself, so lists and numbers survive resolution intact.
// The input is never mutated.
func Resolve(v any, values map[string]any) any {
	switch val := v.(type) {
	case string:
		if name, ok := pureRef(val); ok {
			if raw, found := Lookup(values, name); found {
				return raw
			}
		}
		return Render(val, values)
	case map[string]any:
		out := make(map[string]any, len(val))
		for k, item := range val {
			out[k] = Resolve(item, values)
		}
		return out
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = Resolve(item, values)
		}
		return out
	case []string:
		out := make([]string, len(val))
		for i, item := range val {
			out[i] = Render(item, values)
		}
		return out
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = Resolve(item, values).(map[string]any)
		}
		return out
	default:
		return v
	}
}

// ResolveMap is Resolve for a parameter map. A nil map resolves to an empty one.
func ResolveMap(params map[string]any, values map[string]any) map[string]any {
	if params == nil {
		return map[string]any{}
	}
	return Resolve(params, values).(map[string]any)
}

// Placeholders returns the distinct placeholder names in body, in the order
// they first appear.
func Placeholders(body string) []string {
	var names []string
	seen := make(map[string]bool)
	for _, m := range placeholderPattern.FindAllStringSubmatch(body, -1) {
		if !seen[m[1]] {
			seen[m[1]] = true
			names = append(names, m[1])
		}
	}
	return names
}

// Lookup finds name in values. An exact key wins; otherwise a dotted name is
// followed through nested maps.
func Lookup(values map[string]any, name string) (any, bool) {
	if v, ok := values[name]; ok {
		return v, true
	}
	if !strings.Contains(name, ".") {
		return nil, false
	}
	var current any = values
	for _, part := range strings.Split(name, ".") {
		m, ok := current.(map[string]any)
		if !ok {
			return nil, false
		}
		if current, ok = m[part]; !ok {
			return nil, false
		}
	}
	return current, true
}

// Format returns the string form used when a value is substituted.
func Format(value any) string {
	switch v := value.(type) {
	case nil:
		return ""
	case string:
		return v
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(v), 'f', -1, 32)
	case json.Number:
		return v.String()
	case time.Time:
		return v.Format(time.RFC3339)
	case []string:
		return strings.Join(v, ", ")
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = Format(item)
		}
		return strings.Join(parts, ", ")
	case map[string]any:
		data, err := json.Marshal(v)
		if err != nil {
			return fmt.Sprint(v)
		}
		return string(data)
	case fmt.Stringer:
		return v.String()
	default:
		return fmt.Sprint(v)
	}
}

// pureRef reports whether s is exactly one placeholder and returns its name.
func pureRef(s string) (string, bool) {
	trimmed := strings.TrimSpace(s)
	loc := placeholderPattern.FindStringSubmatchIndex(trimmed)
	if loc == nil || loc[0] != 0 || loc[1] != len(trimmed) {
		return "", false
	}
	return trimmed[loc[2]:loc[3]], true
}
