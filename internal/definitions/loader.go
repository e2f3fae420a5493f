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

package definitions

import (
	"context"
	"fmt"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/bmatcuk/doublestar/v4"

	"github.com/tombee/quill/pkg/model"
)

// Sink receives loaded definitions. *registry.Registry implements it.
type Sink interface {
	UpsertTemplate(ctx context.Context, t *model.Template) error
	UpsertWorkflow(ctx context.Context, w *model.Workflow) error
	UpsertCategory(ctx context.Context, c *model.Category) error
	DeleteTemplate(ctx context.Context, id string) bool
	DeleteWorkflow(ctx context.Context, id string) bool
	DeleteCategory(ctx context.Context, id string) bool
}

// FileError records a file or record that failed to load.
type FileError struct {
	Path string `json:"path"`
	ID   string `json:"id,omitempty"`
	Err  string `json:"error"`
}

// Report summarizes a load.
type Report struct {
	Files      int         `json:"files"`
	Templates  int         `json:"templates"`
	Workflows  int         `json:"workflows"`
	Categories int         `json:"categories"`
	Removed    int         `json:"removed"`
	Errors     []FileError `json:"errors,omitempty"`
}

// OK reports whether everything loaded.
func (r *Report) OK() bool { return len(r.Errors) == 0 }

type ref struct {
	kind string
	id   string
}

// Loader loads definition files under a directory into a Sink. It
// remembers which records each file produced so that editing or deleting
// a file removes the records it no longer defines.
type Loader struct {
	dir     string
	include []string
	exclude []string
	sink    Sink
	logger  *slog.Logger

	mu    sync.Mutex
	files map[string][]ref
}

// LoaderOption configures a Loader.
type LoaderOption func(*Loader)

// WithLogger sets the loader's logger.
func WithLogger(logger *slog.Logger) LoaderOption {
	return func(l *Loader) { l.logger = logger }
}

// WithPatterns sets the include and exclude globs, matched against paths
// relative to the directory using doublestar syntax. With no include
// patterns every .yaml and .yml file is included.
func WithPatterns(include, exclude []string) LoaderOption {
	return func(l *Loader) {
		if len(include) > 0 {
			l.include = include
		}
		l.exclude = exclude
	}
}

// NewLoader creates a loader for dir. Paths are tracked in absolute form.
func NewLoader(dir string, sink Sink, opts ...LoaderOption) *Loader {
	if abs, err := filepath.Abs(dir); err == nil {
		dir = abs
	}
	l := &Loader{
		dir:     dir,
		include: []string{"**/*.yaml", "**/*.yml"},
		sink:    sink,
		logger:  slog.Default(),
		files:   make(map[string][]ref),
	}
	for _, opt := range opts {
		opt(l)
	}
	l.logger = l.logger.With(slog.String("component", "definitions"), slog.String("dir", dir))
	return l
}

// Dir returns the directory the loader reads.
func (l *Loader) Dir() string { return l.dir }

// Matches reports whether path, absolute or relative to the directory, is
// a definition file.
func (l *Loader) Matches(path string) bool {
	rel := path
	if filepath.IsAbs(path) {
		r, err := filepath.Rel(l.dir, path)
		if err != nil {
			return false
		}
		rel = r
	}
	rel = filepath.ToSlash(rel)

	included := false
	for _, pattern := range l.include {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			included = true
			break
		}
	}
	if !included {
		return false
	}
	for _, pattern := range l.exclude {
		if ok, _ := doublestar.Match(pattern, rel); ok {
			return false
		}
	}
	return true
}

// Load walks the directory and loads every matching file. Files that
// disappeared since the previous Load have their records removed.
func (l *Loader) Load(ctx context.Context) (*Report, error) {
	var paths []string
	err := filepath.WalkDir(l.dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() || !l.Matches(path) {
			return nil
		}
		paths = append(paths, path)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to scan %s: %w", l.dir, err)
	}

	l.mu.Lock()
	for path := range l.files {
		paths = appendMissing(paths, path)
	}
	l.mu.Unlock()

	return l.Reload(ctx, paths), nil
}

// Reload loads the given files. A path that no longer exists removes the
// records it defined.
func (l *Loader) Reload(ctx context.Context, paths []string) *Report {
	sort.Strings(paths)
	report := &Report{}
	for _, path := range paths {
		l.reloadFile(ctx, path, report)
	}

	l.logger.Info("definitions loaded",
		"files", report.Files,
		"templates", report.Templates,
		"workflows", report.Workflows,
		"categories", report.Categories,
		"removed", report.Removed,
		"errors", len(report.Errors),
	)
	return report
}

func (l *Loader) reloadFile(ctx context.Context, path string, report *Report) {
	defs, err := ParseFile(path)
	switch {
	case err == nil:
		report.Files++
	case fileExists(path):
		report.Errors = append(report.Errors, FileError{Path: path, Err: err.Error()})
		l.logger.Warn("failed to parse definition file", "path", path, "error", err)
		// Keep the previous records until the file parses again.
		return
	default:
		l.logger.Debug("definition file removed", "path", path)
	}

	var loaded []ref
	// Categories first so the rest of the file can refer to them.
	sort.SliceStable(defs, func(i, j int) bool {
		return defs[i].Kind == KindCategory && defs[j].Kind != KindCategory
	})
	for _, def := range defs {
		if err := l.apply(ctx, def); err != nil {
			report.Errors = append(report.Errors, FileError{Path: path, ID: def.ID(), Err: err.Error()})
			l.logger.Warn("failed to load definition", "path", path, "id", def.ID(), "error", err)
			continue
		}
		loaded = append(loaded, ref{kind: def.Kind, id: def.ID()})
		switch def.Kind {
		case KindTemplate:
			report.Templates++
		case KindWorkflow:
			report.Workflows++
		case KindCategory:
			report.Categories++
		}
	}

	l.mu.Lock()
	previous := l.files[path]
	if len(loaded) > 0 {
		l.files[path] = loaded
	} else {
		delete(l.files, path)
	}
	l.mu.Unlock()

	for _, old := range previous {
		if containsRef(loaded, old) {
			continue
		}
		if l.remove(ctx, old) {
			report.Removed++
		}
	}
}

func (l *Loader) apply(ctx context.Context, def *Definition) error {
	switch def.Kind {
	case KindTemplate:
		return l.sink.UpsertTemplate(ctx, def.Template)
	case KindWorkflow:
		return l.sink.UpsertWorkflow(ctx, def.Workflow)
	case KindCategory:
		return l.sink.UpsertCategory(ctx, def.Category)
	}
	return fmt.Errorf("unknown kind %q", def.Kind)
}

func (l *Loader) remove(ctx context.Context, r ref) bool {
	switch r.kind {
	case KindTemplate:
		return l.sink.DeleteTemplate(ctx, r.id)
	case KindWorkflow:
		return l.sink.DeleteWorkflow(ctx, r.id)
	case KindCategory:
		return l.sink.DeleteCategory(ctx, r.id)
	}
	return false
}

func fileExists(path string) bool {
	_, err := os.Stat(path)
	return err == nil
}

func containsRef(refs []ref, r ref) bool {
	for _, x := range refs {
		if x == r {
			return true
		}
	}
	return false
}

func appendMissing(paths []string, path string) []string {
	for _, p := range paths {
		if p == path {
			return paths
		}
	}
	return append(paths, path)
}
