// Copyright 2025 Tom Barlow
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package shared

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/pflag"
	"gopkg.in/yaml.v3"

	"github.com/tombee/quill/pkg/model"
)

// ValueFlags holds the raw --set and --values flags of a command.
type ValueFlags struct {
	Sets []string
	File string
}

// AddValueFlags registers --set and --values on fs.
func AddValueFlags(fs *pflag.FlagSet, v *ValueFlags) {
	fs.StringArrayVar(&v.Sets, "set", nil, "Set a variable (key=value), repeatable")
	fs.StringVar(&v.File, "values", "", "YAML or JSON file of variable values")
}

// Parse converts the flags against the declared variables.
func (v ValueFlags) Parse(declared []model.Variable) (map[string]any, error) {
	return ParseValues(v.File, v.Sets, declared)
}

// ParseValues builds a variable map from a YAML or JSON values file and
// key=value pairs. Pairs override the file. A pair naming a declared
// variable is converted to that variable's type; other pairs stay strings.
func ParseValues(file string, pairs []string, declared []model.Variable) (map[string]any, error) {
	values := map[string]any{}

	if file != "" {
		data, err := os.ReadFile(file)
		if err != nil {
			return nil, NewInvalidInputError("failed to read values file", err)
		}
		if err := yaml.Unmarshal(data, &values); err != nil {
			return nil, NewInvalidInputError(fmt.Sprintf("failed to parse values file %s", file), err)
		}
		if values == nil {
			values = map[string]any{}
		}
	}

	types := make(map[string]model.VariableType, len(declared))
	for _, v := range declared {
		types[v.Name] = v.Type
	}

	for _, pair := range pairs {
		key, raw, ok := strings.Cut(pair, "=")
		if !ok || key == "" {
			return nil, NewInvalidInputError(fmt.Sprintf("invalid --set %q, expected key=value", pair), nil)
		}
		value, err := coerce(types[key], raw)
		if err != nil {
			return nil, NewInvalidInputError(fmt.Sprintf("invalid value for %s", key), err)
		}
		values[key] = value
	}
	return values, nil
}

func coerce(t model.VariableType, raw string) (any, error) {
	switch t {
	case model.VariableNumber:
		return strconv.ParseFloat(raw, 64)
	case model.VariableBoolean:
		return strconv.ParseBool(raw)
	case model.VariableMultiSelect:
		if raw == "" {
			return []any{}, nil
		}
		parts := strings.Split(raw, ",")
		out := make([]any, len(parts))
		for i, p := range parts {
			out[i] = strings.TrimSpace(p)
		}
		return out, nil
	default:
		return raw, nil
	}
}
