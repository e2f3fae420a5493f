// Package variables checks supplied values against declared variable
// specifications and fills defaults for absent optional variables.
package variables

import (
	"encoding/json"
	"fmt"
	"reflect"
	"regexp"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// Result is the outcome of Validate. Errors holds every violation found.
type Result struct {
	Valid  bool
	Errors []string
}

// Err converts the result into a *errors.ValidationError, or nil when valid.
func (r Result) Err() error {
	if r.Valid {
		return nil
	}
	return &errors.ValidationError{
		Field:      "variables",
		Violations: append([]string(nil), r.Errors...),
		Suggestion: "supply every required variable with a value of the declared type",
	}
}

// dateLayouts are the string forms accepted for date variables.
var dateLayouts = []string{
	time.RFC3339Nano,
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02",
}

// Validate checks values against specs. It never stops at the first problem:
// the returned Result lists every violation in spec order.
func Validate(specs []model.Variable, values map[string]any) Result {
	var errs []string
	for _, spec := range specs {
		value, present := lookup(values, spec.Name)
		if !present {
			if spec.Required {
				errs = append(errs, fmt.Sprintf("missing required variable: %s", spec.Name))
			}
			continue
		}
		errs = append(errs, checkValue(spec, value)...)
	}
	return Result{Valid: len(errs) == 0, Errors: errs}
}

// ApplyDefaults returns a copy of values with the default of every absent
// optional variable filled in. Present values are never replaced.
func ApplyDefaults(specs []model.Variable, values map[string]any) map[string]any {
	out := make(map[string]any, len(values)+len(specs))
	for k, v := range values {
		out[k] = v
	}
	for _, spec := range specs {
		if spec.Required || spec.DefaultValue == nil {
			continue
		}
		if _, present := lookup(values, spec.Name); !present {
			out[spec.Name] = model.CloneValue(spec.DefaultValue)
		}
	}
	return out
}

// lookup treats nil and empty strings as absent.
func lookup(values map[string]any, name string) (any, bool) {
	v, ok := values[name]
	if !ok || v == nil {
		return nil, false
	}
	if s, isString := v.(string); isString && s == "" {
		return nil, false
	}
	return v, true
}

func checkValue(spec model.Variable, value any) []string {
	var errs []string
	name := spec.Name

	switch spec.Type {
	case model.VariableNumber:
		if _, ok := toFloat(value); !ok {
			errs = append(errs, fmt.Sprintf("variable %s must be a number, got %s", name, describe(value)))
		}
	case model.VariableBoolean:
		if _, ok := value.(bool); !ok {
			errs = append(errs, fmt.Sprintf("variable %s must be a boolean, got %s", name, describe(value)))
		}
	case model.VariableDate:
		if !isDate(value) {
			errs = append(errs, fmt.Sprintf("variable %s must be a valid date, got %s", name, describe(value)))
		}
	case model.VariableSelect:
		s, ok := value.(string)
		if !ok || !contains(spec.Options, s) {
			errs = append(errs, fmt.Sprintf("variable %s must be one of [%s], got %v", name, strings.Join(spec.Options, ", "), value))
		}
	case model.VariableMultiSelect:
		items, ok := toStrings(value)
		if !ok {
			errs = append(errs, fmt.Sprintf("variable %s must be a list of options, got %s", name, describe(value)))
			break
		}
		for _, item := range items {
			if !contains(spec.Options, item) {
				errs = append(errs, fmt.Sprintf("variable %s contains invalid option %q (allowed: %s)", name, item, strings.Join(spec.Options, ", ")))
			}
		}
	}

	if spec.Validation != nil {
		errs = append(errs, checkBounds(spec, value)...)
	}
	return errs
}

func checkBounds(spec model.Variable, value any) []string {
	var errs []string
	v := spec.Validation
	name := spec.Name

	switch spec.Type {
	case model.VariableText:
		s, ok := value.(string)
		if !ok {
			return nil
		}
		length := utf8.RuneCountInString(s)
		if v.MinLength != nil && length < *v.MinLength {
			errs = append(errs, fmt.Sprintf("variable %s must be at least %d characters", name, *v.MinLength))
		}
		if v.MaxLength != nil && length > *v.MaxLength {
			errs = append(errs, fmt.Sprintf("variable %s must be at most %d characters", name, *v.MaxLength))
		}
		if v.Pattern != "" {
			re, err := regexp.Compile(`^(?:` + v.Pattern + `)$`)
			switch {
			case err != nil:
				errs = append(errs, fmt.Sprintf("variable %s has invalid pattern %q: %v", name, v.Pattern, err))
			case !re.MatchString(s):
				errs = append(errs, fmt.Sprintf("variable %s does not match pattern %q", name, v.Pattern))
			}
		}
	case model.VariableNumber:
		f, ok := toFloat(value)
		if !ok {
			return nil
		}
		if v.Min != nil && f < *v.Min {
			errs = append(errs, fmt.Sprintf("variable %s must be >= %v", name, *v.Min))
		}
		if v.Max != nil && f > *v.Max {
			errs = append(errs, fmt.Sprintf("variable %s must be <= %v", name, *v.Max))
		}
	}
	return errs
}

func toFloat(value any) (float64, bool) {
	switch n := value.(type) {
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	case float64:
		return n, true
	case float32:
		return float64(n), true
	}
	rv := reflect.ValueOf(value)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), true
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), true
	}
	return 0, false
}

func isDate(value any) bool {
	switch d := value.(type) {
	case time.Time:
		return !d.IsZero()
	case string:
		for _, layout := range dateLayouts {
			if _, err := time.Parse(layout, d); err == nil {
				return true
			}
		}
	}
	return false
}

func toStrings(value any) ([]string, bool) {
	switch items := value.(type) {
	case []string:
		return items, true
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	}
	return nil, false
}

func contains(options []string, s string) bool {
	for _, o := range options {
		if o == s {
			return true
		}
	}
	return false
}

func describe(value any) string {
	switch value.(type) {
	case string:
		return "string"
	case bool:
		return "boolean"
	case []any, []string:
		return "list"
	case map[string]any:
		return "object"
	}
	if _, ok := toFloat(value); ok {
		return "number"
	}
	return fmt.Sprintf("%T", value)
}
