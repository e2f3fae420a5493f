// Package model defines the records owned by the registry and consumed by
// the validator, renderer and interpreter. Every record is plain data and
// serializes to the camelCase JSON form the host application persists.
package model

// VariableType is the declared type of a template or step variable.
type VariableType string

const (
	VariableText        VariableType = "text"
	VariableNumber      VariableType = "number"
	VariableDate        VariableType = "date"
	VariableSelect      VariableType = "select"
	VariableMultiSelect VariableType = "multiselect"
	VariableBoolean     VariableType = "boolean"
)

// Valid reports whether t is one of the known variable types.
func (t VariableType) Valid() bool {
	switch t {
	case VariableText, VariableNumber, VariableDate, VariableSelect, VariableMultiSelect, VariableBoolean:
		return true
	}
	return false
}

// HasOptions reports whether values of this type are drawn from Options.
func (t VariableType) HasOptions() bool {
	return t == VariableSelect || t == VariableMultiSelect
}

// Validation holds optional bounds applied when the value's type matches.
type Validation struct {
	MinLength *int     `json:"minLength,omitempty" yaml:"minLength,omitempty"`
	MaxLength *int     `json:"maxLength,omitempty" yaml:"maxLength,omitempty"`
	Min       *float64 `json:"min,omitempty" yaml:"min,omitempty"`
	Max       *float64 `json:"max,omitempty" yaml:"max,omitempty"`
	// Pattern must match the whole string value.
	Pattern string `json:"pattern,omitempty" yaml:"pattern,omitempty"`
}

// Variable is a TemplateVariable: one declared input of a template or step.
type Variable struct {
	Name         string       `json:"name" yaml:"name"`
	Type         VariableType `json:"type" yaml:"type"`
	Label        string       `json:"label,omitempty" yaml:"label,omitempty"`
	Description  string       `json:"description,omitempty" yaml:"description,omitempty"`
	Required     bool         `json:"required" yaml:"required"`
	DefaultValue any          `json:"defaultValue,omitempty" yaml:"defaultValue,omitempty"`
	Options      []string     `json:"options,omitempty" yaml:"options,omitempty"`
	Validation   *Validation  `json:"validation,omitempty" yaml:"validation,omitempty"`
}

// Clone returns a deep copy of v.
func (v Variable) Clone() Variable {
	out := v
	out.DefaultValue = CloneValue(v.DefaultValue)
	if v.Options != nil {
		out.Options = append([]string(nil), v.Options...)
	}
	if v.Validation != nil {
		val := *v.Validation
		if val.MinLength != nil {
			n := *val.MinLength
			val.MinLength = &n
		}
		if val.MaxLength != nil {
			n := *val.MaxLength
			val.MaxLength = &n
		}
		if val.Min != nil {
			f := *val.Min
			val.Min = &f
		}
		if val.Max != nil {
			f := *val.Max
			val.Max = &f
		}
		out.Validation = &val
	}
	return out
}

// CloneVariables deep-copies a variable list.
func CloneVariables(vars []Variable) []Variable {
	if vars == nil {
		return nil
	}
	out := make([]Variable, len(vars))
	for i, v := range vars {
		out[i] = v.Clone()
	}
	return out
}

// CloneValue deep-copies the closed set of container shapes used for
// parameters and variable values. Scalars are returned as-is.
func CloneValue(v any) any {
	switch val := v.(type) {
	case map[string]any:
		return CloneMap(val)
	case []any:
		out := make([]any, len(val))
		for i, item := range val {
			out[i] = CloneValue(item)
		}
		return out
	case []string:
		return append([]string(nil), val...)
	case []map[string]any:
		out := make([]map[string]any, len(val))
		for i, item := range val {
			out[i] = CloneMap(item)
		}
		return out
	default:
		return v
	}
}

// CloneMap deep-copies m. A nil map stays nil.
func CloneMap(m map[string]any) map[string]any {
	if m == nil {
		return nil
	}
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = CloneValue(v)
	}
	return out
}
