package model

import "time"

// InitialVersion is the semantic version assigned on creation.
const InitialVersion = "1.0.0"

// TemplateMetadata is registry-maintained bookkeeping for a template.
type TemplateMetadata struct {
	CreatedAt  time.Time `json:"createdAt" yaml:"createdAt"`
	UpdatedAt  time.Time `json:"updatedAt" yaml:"updatedAt"`
	UsageCount int       `json:"usageCount" yaml:"usageCount"`
	Rating     float64   `json:"rating" yaml:"rating"`
	IsPublic   bool      `json:"isPublic" yaml:"isPublic"`
	Author     string    `json:"author,omitempty" yaml:"author,omitempty"`
	Version    string    `json:"version" yaml:"version"`
}

// Template is a NoteTemplate: a parameterized body plus its variable specs.
type Template struct {
	ID          string           `json:"id" yaml:"id"`
	Name        string           `json:"name" yaml:"name"`
	Description string           `json:"description,omitempty" yaml:"description,omitempty"`
	Category    string           `json:"category,omitempty" yaml:"category,omitempty"`
	Tags        []string         `json:"tags,omitempty" yaml:"tags,omitempty"`
	Content     string           `json:"content" yaml:"content"`
	Variables   []Variable       `json:"variables,omitempty" yaml:"variables,omitempty"`
	Metadata    TemplateMetadata `json:"metadata" yaml:"metadata"`
}

// Clone returns a deep copy of t.
func (t *Template) Clone() *Template {
	if t == nil {
		return nil
	}
	out := *t
	if t.Tags != nil {
		out.Tags = append([]string(nil), t.Tags...)
	}
	out.Variables = CloneVariables(t.Variables)
	return &out
}

// HasTag reports whether the template carries tag.
func (t *Template) HasTag(tag string) bool {
	for _, have := range t.Tags {
		if have == tag {
			return true
		}
	}
	return false
}

// Category groups templates and workflows for the host's navigation.
type Category struct {
	ID          string `json:"id" yaml:"id"`
	Name        string `json:"name" yaml:"name"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	Color       string `json:"color,omitempty" yaml:"color,omitempty"`
	Icon        string `json:"icon,omitempty" yaml:"icon,omitempty"`
}

// Clone returns a copy of c.
func (c *Category) Clone() *Category {
	if c == nil {
		return nil
	}
	out := *c
	return &out
}
