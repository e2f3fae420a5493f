package expression

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/render"
)

// placeholderPattern matches {{name}} placeholders inside a condition.
var placeholderPattern = regexp.MustCompile(`\{\{\s*([^{}\s]+)\s*\}\}`)

// Substitute replaces every {{name}} in expression with a literal for the
// value found in env. It is a single pass: substituted values are never
// re-scanned. An unresolvable placeholder is an error.
//
//	Substitute(`{{mood}} == "good"`, map[string]any{"mood": "good"})
//	=> `"good" == "good"`
func Substitute(expression string, env map[string]any) (string, error) {
	var missing []string
	result := placeholderPattern.ReplaceAllStringFunc(expression, func(match string) string {
		name := placeholderPattern.FindStringSubmatch(match)[1]
		value, ok := render.Lookup(env, name)
		if !ok {
			missing = append(missing, name)
			return match
		}
		return literal(value)
	})

	if len(missing) > 0 {
		return "", &errors.ValidationError{
			Field:   "condition",
			Message: fmt.Sprintf("unresolved placeholder(s) in condition: %s", strings.Join(missing, ", ")),
		}
	}
	return result, nil
}

// literal converts a value to expression source.
func literal(value any) string {
	switch v := value.(type) {
	case nil:
		return "nil"
	case bool:
		return strconv.FormatBool(v)
	case int:
		return strconv.Itoa(v)
	case int64:
		return strconv.FormatInt(v, 10)
	case float64:
		return strconv.FormatFloat(v, 'f', -1, 64)
	case string:
		return strconv.Quote(v)
	case time.Time:
		return strconv.Quote(v.Format(time.RFC3339))
	case []string:
		parts := make([]string, len(v))
		for i, s := range v {
			parts[i] = strconv.Quote(s)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	case []any:
		parts := make([]string, len(v))
		for i, item := range v {
			parts[i] = literal(item)
		}
		return "[" + strings.Join(parts, ", ") + "]"
	default:
		return strconv.Quote(render.Format(v))
	}
}
