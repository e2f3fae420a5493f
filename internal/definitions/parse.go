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

// Package definitions loads template, workflow and category definitions
// from YAML files into a registry and keeps them in sync as the files
// change.
//
// A definition file holds one or more YAML documents separated by "---".
// Each document names its kind and otherwise uses the record's own fields:
//
//	kind: template
//	id: daily
//	name: Daily note
//	content: "# {{date}}"
package definitions

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/tombee/quill/pkg/model"
)

// Kind values accepted in definition documents.
const (
	KindTemplate = "template"
	KindWorkflow = "workflow"
	KindCategory = "category"
)

// Definition is one decoded document.
type Definition struct {
	Kind     string
	Source   string
	Index    int
	Template *model.Template
	Workflow *model.Workflow
	Category *model.Category
}

// ID returns the id of the record the definition holds.
func (d *Definition) ID() string {
	switch {
	case d.Template != nil:
		return d.Template.ID
	case d.Workflow != nil:
		return d.Workflow.ID
	case d.Category != nil:
		return d.Category.ID
	}
	return ""
}

// ParseError reports a document that could not be decoded.
type ParseError struct {
	Source string
	Index  int
	Err    error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("%s: document %d: %v", e.Source, e.Index, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ParseFile reads and decodes every document in path.
func ParseFile(path string) ([]*Definition, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return Parse(path, data)
}

// Parse decodes every document in data. source names the data in errors.
// Decoding stops at the first bad document.
func Parse(source string, data []byte) ([]*Definition, error) {
	dec := yaml.NewDecoder(bytes.NewReader(data))

	var defs []*Definition
	for index := 0; ; index++ {
		var node yaml.Node
		err := dec.Decode(&node)
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, &ParseError{Source: source, Index: index, Err: err}
		}
		if isEmpty(&node) {
			continue
		}

		def, err := decodeDocument(&node)
		if err != nil {
			return nil, &ParseError{Source: source, Index: index, Err: err}
		}
		def.Source = source
		def.Index = index
		defs = append(defs, def)
	}
	return defs, nil
}

func isEmpty(node *yaml.Node) bool {
	if node.Kind == yaml.DocumentNode {
		return len(node.Content) == 0 || isEmpty(node.Content[0])
	}
	return node.Kind == yaml.ScalarNode && node.Tag == "!!null"
}

type header struct {
	Kind     string `yaml:"kind"`
	ID       string `yaml:"id"`
	Metadata struct {
		IsActive *bool `yaml:"isActive"`
	} `yaml:"metadata"`
}

func decodeDocument(node *yaml.Node) (*Definition, error) {
	var h header
	if err := node.Decode(&h); err != nil {
		return nil, err
	}
	if h.ID == "" {
		return nil, fmt.Errorf("%s definition has no id", nonEmpty(h.Kind, "untyped"))
	}

	def := &Definition{Kind: h.Kind}
	switch h.Kind {
	case KindTemplate:
		var t model.Template
		if err := node.Decode(&t); err != nil {
			return nil, err
		}
		def.Template = &t
	case KindWorkflow:
		var w model.Workflow
		if err := node.Decode(&w); err != nil {
			return nil, err
		}
		// Workflows written by hand are active unless they say otherwise.
		w.Metadata.IsActive = h.Metadata.IsActive == nil || *h.Metadata.IsActive
		def.Workflow = &w
	case KindCategory:
		var c model.Category
		if err := node.Decode(&c); err != nil {
			return nil, err
		}
		def.Category = &c
	case "":
		return nil, fmt.Errorf("missing kind (want %s, %s or %s)", KindTemplate, KindWorkflow, KindCategory)
	default:
		return nil, fmt.Errorf("unknown kind %q", h.Kind)
	}
	return def, nil
}

func nonEmpty(s, fallback string) string {
	if s == "" {
		return fallback
	}
	return s
}
