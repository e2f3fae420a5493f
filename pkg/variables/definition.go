package variables

import (
	"fmt"
	"regexp"

	"github.com/tombee/quill/pkg/model"
)

// CheckDefinitions reports problems in a list of variable specifications:
// missing or duplicate names, unknown types, select types without options,
// bad patterns and defaults that would not pass their own spec.
func CheckDefinitions(specs []model.Variable) []string {
	var errs []string
	seen := make(map[string]bool, len(specs))

	for i, spec := range specs {
		if spec.Name == "" {
			errs = append(errs, fmt.Sprintf("variable #%d: name is required", i+1))
			continue
		}
		if seen[spec.Name] {
			errs = append(errs, fmt.Sprintf("duplicate variable name: %s", spec.Name))
		}
		seen[spec.Name] = true

		if !spec.Type.Valid() {
			errs = append(errs, fmt.Sprintf("variable %s: invalid type %q (must be text, number, date, select, multiselect or boolean)", spec.Name, spec.Type))
			continue
		}
		if spec.Type.HasOptions() && len(spec.Options) == 0 {
			errs = append(errs, fmt.Sprintf("variable %s: options are required for %s variables", spec.Name, spec.Type))
		}
		if spec.Validation != nil && spec.Validation.Pattern != "" {
			if _, err := regexp.Compile(spec.Validation.Pattern); err != nil {
				errs = append(errs, fmt.Sprintf("variable %s: invalid pattern: %v", spec.Name, err))
			}
		}
		if spec.DefaultValue != nil {
			for _, e := range checkValue(spec, spec.DefaultValue) {
				errs = append(errs, fmt.Sprintf("default value: %s", e))
			}
		}
	}
	return errs
}
