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

// Package starters embeds starter definition files that 'quill init'
// copies into a definitions directory.
package starters

import (
	"embed"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/tombee/quill/internal/definitions"
)

//go:embed *.yaml
var embeddedFS embed.FS

// Starter describes one embedded definition file.
type Starter struct {
	Name        string
	Description string
	FilePath    string
	// Kinds lists the record kinds the file defines, in file order.
	Kinds []string
}

// List returns all embedded starters.
func List() ([]Starter, error) {
	entries, err := embeddedFS.ReadDir(".")
	if err != nil {
		return nil, fmt.Errorf("failed to read embedded starters: %w", err)
	}

	var starters []Starter
	for _, entry := range entries {
		if entry.IsDir() || !strings.HasSuffix(entry.Name(), ".yaml") {
			continue
		}

		content, err := embeddedFS.ReadFile(entry.Name())
		if err != nil {
			return nil, err
		}
		defs, err := definitions.Parse(entry.Name(), content)
		if err != nil {
			return nil, err
		}

		s := Starter{Name: strings.TrimSuffix(entry.Name(), ".yaml"), FilePath: entry.Name()}
		for _, d := range defs {
			s.Kinds = append(s.Kinds, d.Kind)
			if s.Description == "" {
				s.Description = describe(d)
			}
		}
		starters = append(starters, s)
	}

	return starters, nil
}

func describe(d *definitions.Definition) string {
	switch {
	case d.Template != nil:
		return d.Template.Description
	case d.Workflow != nil:
		return d.Workflow.Description
	}
	return ""
}

// Get returns the content of a starter by name.
func Get(name string) ([]byte, error) {
	content, err := embeddedFS.ReadFile(name + ".yaml")
	if err != nil {
		return nil, fmt.Errorf("starter %q not found: %w", name, err)
	}
	return content, nil
}

// CopyTo writes a starter into dir and returns the written path. An
// existing file is left alone unless overwrite is set.
func CopyTo(name, dir string, overwrite bool) (string, bool, error) {
	content, err := Get(name)
	if err != nil {
		return "", false, err
	}

	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", false, fmt.Errorf("failed to create destination directory: %w", err)
	}

	dest := filepath.Join(dir, name+".yaml")
	if !overwrite {
		if _, err := os.Stat(dest); err == nil {
			return dest, false, nil
		}
	}
	if err := os.WriteFile(dest, content, 0o644); err != nil {
		return "", false, fmt.Errorf("failed to write starter file: %w", err)
	}
	return dest, true, nil
}
