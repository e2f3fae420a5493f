package variables

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	quillerrors "github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

func intPtr(n int) *int           { return &n }
func floatPtr(f float64) *float64 { return &f }

func TestValidate_NumberTypeMismatch(t *testing.T) {
	res := Validate([]model.Variable{{Name: "n", Type: model.VariableNumber, Required: true}}, map[string]any{"n": "not a number"})

	assert.False(t, res.Valid)
	require.Len(t, res.Errors, 1)
	assert.Contains(t, res.Errors[0], "n")
	assert.Contains(t, res.Errors[0], "number")
}

func TestValidate_CollectsEveryViolation(t *testing.T) {
	specs := []model.Variable{
		{Name: "title", Type: model.VariableText, Required: true},
		{Name: "count", Type: model.VariableNumber, Validation: &model.Validation{Max: floatPtr(5)}},
		{Name: "mood", Type: model.VariableSelect, Options: []string{"good", "bad"}},
		{Name: "done", Type: model.VariableBoolean},
	}
	values := map[string]any{
		"count": 9,
		"mood":  "meh",
		"done":  "yes",
	}

	res := Validate(specs, values)

	assert.False(t, res.Valid)
	assert.Equal(t, []string{
		"missing required variable: title",
		"variable count must be <= 5",
		"variable mood must be one of [good, bad], got meh",
		"variable done must be a boolean, got string",
	}, res.Errors)
}

func TestValidate_Types(t *testing.T) {
	tests := []struct {
		name  string
		spec  model.Variable
		value any
		valid bool
	}{
		{"int is number", model.Variable{Name: "v", Type: model.VariableNumber}, 3, true},
		{"float is number", model.Variable{Name: "v", Type: model.VariableNumber}, 3.5, true},
		{"json number", model.Variable{Name: "v", Type: model.VariableNumber}, json.Number("12"), true},
		{"numeric string is not number", model.Variable{Name: "v", Type: model.VariableNumber}, "12", false},
		{"bool", model.Variable{Name: "v", Type: model.VariableBoolean}, true, true},
		{"time value", model.Variable{Name: "v", Type: model.VariableDate}, time.Now(), true},
		{"iso date", model.Variable{Name: "v", Type: model.VariableDate}, "2026-10-17", true},
		{"rfc3339", model.Variable{Name: "v", Type: model.VariableDate}, "2026-10-17T08:30:00Z", true},
		{"bad date", model.Variable{Name: "v", Type: model.VariableDate}, "tomorrow", false},
		{"select member", model.Variable{Name: "v", Type: model.VariableSelect, Options: []string{"a"}}, "a", true},
		{"multiselect members", model.Variable{Name: "v", Type: model.VariableMultiSelect, Options: []string{"a", "b"}}, []any{"a", "b"}, true},
		{"multiselect string slice", model.Variable{Name: "v", Type: model.VariableMultiSelect, Options: []string{"a"}}, []string{"a"}, true},
		{"multiselect non member", model.Variable{Name: "v", Type: model.VariableMultiSelect, Options: []string{"a"}}, []any{"a", "z"}, false},
		{"multiselect scalar", model.Variable{Name: "v", Type: model.VariableMultiSelect, Options: []string{"a"}}, "a", false},
		{"text any", model.Variable{Name: "v", Type: model.VariableText}, "hello", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			res := Validate([]model.Variable{tt.spec}, map[string]any{"v": tt.value})
			assert.Equal(t, tt.valid, res.Valid, res.Errors)
		})
	}
}

func TestValidate_TextBounds(t *testing.T) {
	spec := model.Variable{
		Name: "slug",
		Type: model.VariableText,
		Validation: &model.Validation{
			MinLength: intPtr(3),
			MaxLength: intPtr(8),
			Pattern:   `[a-z-]+`,
		},
	}

	assert.True(t, Validate([]model.Variable{spec}, map[string]any{"slug": "my-note"}).Valid)

	res := Validate([]model.Variable{spec}, map[string]any{"slug": "AB"})
	assert.Equal(t, []string{
		"variable slug must be at least 3 characters",
		`variable slug does not match pattern "[a-z-]+"`,
	}, res.Errors)

	// pattern must match the whole value
	res = Validate([]model.Variable{spec}, map[string]any{"slug": "abc DEF"})
	assert.False(t, res.Valid)
}

func TestValidate_BoundsSkippedOnTypeMismatch(t *testing.T) {
	spec := model.Variable{Name: "n", Type: model.VariableNumber, Validation: &model.Validation{Min: floatPtr(1)}}

	res := Validate([]model.Variable{spec}, map[string]any{"n": "x"})
	assert.Len(t, res.Errors, 1)
}

func TestValidate_OptionalAbsentIsFine(t *testing.T) {
	specs := []model.Variable{{Name: "opt", Type: model.VariableNumber}}
	res := Validate(specs, map[string]any{})

	assert.True(t, res.Valid)
	assert.NoError(t, res.Err())
}

func TestResult_Err(t *testing.T) {
	res := Validate([]model.Variable{{Name: "a", Required: true, Type: model.VariableText}}, nil)

	err := res.Err()
	require.Error(t, err)
	var ve *quillerrors.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, []string{"missing required variable: a"}, ve.Violations)
}

func TestApplyDefaults(t *testing.T) {
	specs := []model.Variable{
		{Name: "greeting", Type: model.VariableText, DefaultValue: "Hello"},
		{Name: "name", Type: model.VariableText, Required: true, DefaultValue: "ignored"},
		{Name: "tags", Type: model.VariableMultiSelect, Options: []string{"a"}, DefaultValue: []any{"a"}},
	}
	in := map[string]any{"name": "Ada"}

	out := ApplyDefaults(specs, in)

	assert.Equal(t, "Hello", out["greeting"])
	assert.Equal(t, "Ada", out["name"])
	assert.Equal(t, []any{"a"}, out["tags"])
	assert.NotContains(t, in, "greeting", "input must not be mutated")

	out = ApplyDefaults(specs, map[string]any{"greeting": "Hi"})
	assert.Equal(t, "Hi", out["greeting"])
}

func TestCheckDefinitions(t *testing.T) {
	specs := []model.Variable{
		{Name: "a", Type: model.VariableText},
		{Name: "a", Type: model.VariableText},
		{Name: "mood", Type: model.VariableSelect},
		{Name: "n", Type: model.VariableNumber, DefaultValue: "x"},
		{Name: "weird", Type: "color"},
		{Type: model.VariableText},
	}

	errs := CheckDefinitions(specs)

	assert.Equal(t, []string{
		"duplicate variable name: a",
		"variable mood: options are required for select variables",
		"default value: variable n must be a number, got string",
		`variable weird: invalid type "color" (must be text, number, date, select, multiselect or boolean)`,
		"variable #6: name is required",
	}, errs)
}
