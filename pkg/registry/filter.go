package registry

import (
	"sort"
	"strings"

	"golang.org/x/text/cases"

	"github.com/tombee/quill/pkg/model"
)

// TemplateFilter selects templates. Zero-valued fields match everything.
type TemplateFilter struct {
	Category string
	// Tags matches templates carrying at least one of the listed tags.
	Tags     []string
	IsPublic *bool
	Author   string
	// Query is a case-insensitive substring matched against name,
	// description and tags.
	Query string
}

func (f TemplateFilter) matches(t *model.Template) bool {
	if f.Category != "" && t.Category != f.Category {
		return false
	}
	if f.IsPublic != nil && t.Metadata.IsPublic != *f.IsPublic {
		return false
	}
	if f.Author != "" && t.Metadata.Author != f.Author {
		return false
	}
	if len(f.Tags) > 0 {
		found := false
		for _, tag := range f.Tags {
			if t.HasTag(tag) {
				found = true
				break
			}
		}
		if !found {
			return false
		}
	}
	if f.Query != "" {
		fields := append([]string{t.Name, t.Description}, t.Tags...)
		return containsFold(fields, f.Query)
	}
	return true
}

// WorkflowFilter selects workflows. Zero-valued fields match everything.
type WorkflowFilter struct {
	Category string
	IsActive *bool
	// Query is a case-insensitive substring matched against name and
	// description.
	Query string
}

func (f WorkflowFilter) matches(w *model.Workflow) bool {
	if f.Category != "" && w.Category != f.Category {
		return false
	}
	if f.IsActive != nil && w.Metadata.IsActive != *f.IsActive {
		return false
	}
	if f.Query != "" {
		return containsFold([]string{w.Name, w.Description}, f.Query)
	}
	return true
}

// containsFold reports whether any field contains query under Unicode
// case folding.
func containsFold(fields []string, query string) bool {
	folder := cases.Fold()
	q := folder.String(query)
	for _, field := range fields {
		if strings.Contains(folder.String(field), q) {
			return true
		}
	}
	return false
}

func sortByName[T any](items []T, key func(T) (name, id string)) {
	folder := cases.Fold()
	sort.SliceStable(items, func(i, j int) bool {
		ni, idi := key(items[i])
		nj, idj := key(items[j])
		fi, fj := folder.String(ni), folder.String(nj)
		if fi != fj {
			return fi < fj
		}
		return idi < idj
	})
}
