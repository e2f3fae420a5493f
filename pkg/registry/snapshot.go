package registry

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/tombee/quill/pkg/errors"
	"github.com/tombee/quill/pkg/model"
)

// SnapshotVersion identifies the export format.
const SnapshotVersion = "1"

// Snapshot is the serialized form of a registry.
type Snapshot struct {
	Version    string            `json:"version" yaml:"version"`
	ExportedAt time.Time         `json:"exportedAt" yaml:"exportedAt"`
	Templates  []*model.Template `json:"templates" yaml:"templates"`
	Workflows  []*model.Workflow `json:"workflows" yaml:"workflows"`
	Categories []*model.Category `json:"categories" yaml:"categories"`
}

// SkippedRecord describes a record Import could not accept.
type SkippedRecord struct {
	Kind   Kind   `json:"kind"`
	Index  int    `json:"index"`
	ID     string `json:"id,omitempty"`
	Reason string `json:"reason"`
}

// ImportReport summarizes an import.
type ImportReport struct {
	Templates  int             `json:"templates"`
	Workflows  int             `json:"workflows"`
	Categories int             `json:"categories"`
	Skipped    []SkippedRecord `json:"skipped,omitempty"`
	// Failed is set when the payload as a whole could not be read.
	Failed string `json:"failed,omitempty"`
}

// OK reports whether every record was imported.
func (r *ImportReport) OK() bool {
	return r.Failed == "" && len(r.Skipped) == 0
}

// Snapshot returns a point-in-time copy of every record.
func (r *Registry) Snapshot(ctx context.Context) *Snapshot {
	return &Snapshot{
		Version:    SnapshotVersion,
		ExportedAt: r.now().UTC(),
		Templates:  r.ListTemplates(ctx, TemplateFilter{}),
		Workflows:  r.ListWorkflows(ctx, WorkflowFilter{}),
		Categories: r.ListCategories(ctx),
	}
}

// Export serializes the registry as indented JSON.
func (r *Registry) Export(ctx context.Context) ([]byte, error) {
	data, err := json.MarshalIndent(r.Snapshot(ctx), "", "  ")
	if err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return data, nil
}

// ExportYAML serializes the registry as YAML.
func (r *Registry) ExportYAML(ctx context.Context) ([]byte, error) {
	var buf bytes.Buffer
	enc := yaml.NewEncoder(&buf)
	enc.SetIndent(2)
	if err := enc.Encode(r.Snapshot(ctx)); err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	if err := enc.Close(); err != nil {
		return nil, fmt.Errorf("failed to marshal snapshot: %w", err)
	}
	return buf.Bytes(), nil
}

// rawSnapshot defers decoding of individual records so one bad record does
// not reject the whole payload.
type rawSnapshot struct {
	Version    string            `json:"version"`
	Templates  []json.RawMessage `json:"templates"`
	Workflows  []json.RawMessage `json:"workflows"`
	Categories []json.RawMessage `json:"categories"`
}

// Import upserts the records in data, which may be JSON or YAML in the
// Export format. A payload that cannot be read at all returns an
// *errors.ImportError. Records that fail to decode or validate are skipped
// and listed in the report; the rest are stored, replacing any record with
// the same id.
func (r *Registry) Import(ctx context.Context, data []byte) (*ImportReport, error) {
	report := &ImportReport{}

	raw, err := decodeSnapshot(data)
	if err != nil {
		report.Failed = err.Error()
		return report, err
	}
	if raw.Version != "" && raw.Version != SnapshotVersion {
		err := &errors.ImportError{Message: fmt.Sprintf("unsupported snapshot version %q", raw.Version)}
		report.Failed = err.Error()
		return report, err
	}

	// Categories first so templates and workflows can reference them.
	for i, msg := range raw.Categories {
		var c model.Category
		if err := json.Unmarshal(msg, &c); err != nil {
			report.skip(KindCategory, i, "", err)
			continue
		}
		if err := checkCategory(&c); err != nil {
			report.skip(KindCategory, i, c.ID, err)
			continue
		}
		r.putCategory(ctx, &c)
		report.Categories++
	}

	for i, msg := range raw.Templates {
		var t model.Template
		if err := json.Unmarshal(msg, &t); err != nil {
			report.skip(KindTemplate, i, "", err)
			continue
		}
		if err := r.checkTemplate(&t); err != nil {
			report.skip(KindTemplate, i, t.ID, err)
			continue
		}
		if err := checkTemplateCounters(&t.Metadata); err != nil {
			report.skip(KindTemplate, i, t.ID, err)
			continue
		}
		r.putTemplate(ctx, &t)
		report.Templates++
	}

	for i, msg := range raw.Workflows {
		var w model.Workflow
		if err := json.Unmarshal(msg, &w); err != nil {
			report.skip(KindWorkflow, i, "", err)
			continue
		}
		if err := r.checkWorkflow(&w); err != nil {
			report.skip(KindWorkflow, i, w.ID, err)
			continue
		}
		if err := checkWorkflowCounters(&w.Metadata); err != nil {
			report.skip(KindWorkflow, i, w.ID, err)
			continue
		}
		r.putWorkflow(ctx, &w)
		report.Workflows++
	}

	r.logger.Info("registry import finished",
		"templates", report.Templates,
		"workflows", report.Workflows,
		"categories", report.Categories,
		"skipped", len(report.Skipped),
	)
	return report, nil
}

func (rep *ImportReport) skip(kind Kind, index int, id string, err error) {
	rep.Skipped = append(rep.Skipped, SkippedRecord{Kind: kind, Index: index, ID: id, Reason: err.Error()})
}

func decodeSnapshot(data []byte) (*rawSnapshot, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, &errors.ImportError{Message: "empty payload"}
	}

	if trimmed[0] != '{' {
		// YAML: decode generically, then reuse the JSON record path.
		var doc map[string]any
		if err := yaml.Unmarshal(trimmed, &doc); err != nil {
			return nil, &errors.ImportError{Message: "payload is neither JSON nor YAML", Cause: err}
		}
		converted, err := json.Marshal(doc)
		if err != nil {
			return nil, &errors.ImportError{Message: "failed to convert YAML payload", Cause: err}
		}
		trimmed = converted
	}

	var raw rawSnapshot
	if err := json.Unmarshal(trimmed, &raw); err != nil {
		return nil, &errors.ImportError{Message: "malformed snapshot", Cause: err}
	}
	return &raw, nil
}

// putTemplate inserts or replaces a template as-is under the template's
// lock, filling in missing bookkeeping fields.
func (r *Registry) putTemplate(ctx context.Context, t *model.Template) {
	r.fillTemplate(t)

	unlock := r.locks.Lock(lockKey(KindTemplate, t.ID))
	existed := r.storeTemplate(t)
	unlock()

	r.emit(ctx, KindTemplate, eventFor(existed), t.ID, t.Clone())
}

func (r *Registry) putWorkflow(ctx context.Context, w *model.Workflow) {
	r.fillWorkflow(w)

	unlock := r.locks.Lock(lockKey(KindWorkflow, w.ID))
	existed := r.storeWorkflow(w)
	unlock()

	r.emit(ctx, KindWorkflow, eventFor(existed), w.ID, w.Clone())
}

func (r *Registry) fillTemplate(t *model.Template) {
	if t.ID == "" {
		t.ID = r.newID()
	}
	now := r.now()
	if t.Metadata.CreatedAt.IsZero() {
		t.Metadata.CreatedAt = now
	}
	if t.Metadata.UpdatedAt.IsZero() {
		t.Metadata.UpdatedAt = now
	}
	if t.Metadata.Version == "" {
		t.Metadata.Version = model.InitialVersion
	}
}

func (r *Registry) fillWorkflow(w *model.Workflow) {
	if w.ID == "" {
		w.ID = r.newID()
	}
	now := r.now()
	if w.Metadata.CreatedAt.IsZero() {
		w.Metadata.CreatedAt = now
	}
	if w.Metadata.UpdatedAt.IsZero() {
		w.Metadata.UpdatedAt = now
	}
	if w.Metadata.UsageCount == 0 && w.Metadata.SuccessRate == 0 {
		w.Metadata.SuccessRate = 1.0
	}
}

// storeTemplate writes t to the map. The caller holds the template's lock.
func (r *Registry) storeTemplate(t *model.Template) (existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed = r.templates[t.ID]
	r.templates[t.ID] = t.Clone()
	return existed
}

// storeWorkflow writes w to the map. The caller holds the workflow's lock.
func (r *Registry) storeWorkflow(w *model.Workflow) (existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, existed = r.workflows[w.ID]
	r.workflows[w.ID] = w.Clone()
	return existed
}

func (r *Registry) putCategory(ctx context.Context, c *model.Category) {
	if c.ID == "" {
		c.ID = r.newID()
	}

	r.mu.Lock()
	_, existed := r.categories[c.ID]
	r.categories[c.ID] = c.Clone()
	r.mu.Unlock()

	r.emit(ctx, KindCategory, eventFor(existed), c.ID, c.Clone())
}

func eventFor(existed bool) EventType {
	if existed {
		return EventUpdated
	}
	return EventCreated
}

// UpsertTemplate validates t and stores it, replacing any template with the
// same id. Replacing an existing template keeps its usage count and
// creation time and bumps its version. The existing record is read and
// replaced under the template's lock, so concurrent usage records are kept.
func (r *Registry) UpsertTemplate(ctx context.Context, t *model.Template) error {
	t = t.Clone()
	if err := r.checkTemplate(t); err != nil {
		return err
	}
	r.fillTemplate(t)

	unlock := r.locks.Lock(lockKey(KindTemplate, t.ID))
	if existing, err := r.GetTemplate(ctx, t.ID); err == nil {
		t.Metadata.UsageCount = existing.Metadata.UsageCount
		t.Metadata.CreatedAt = existing.Metadata.CreatedAt
		t.Metadata.UpdatedAt = r.now()
		t.Metadata.Version = bumpPatch(existing.Metadata.Version)
	}
	existed := r.storeTemplate(t)
	unlock()

	r.emit(ctx, KindTemplate, eventFor(existed), t.ID, t.Clone())
	return nil
}

// UpsertWorkflow validates w and stores it, replacing any workflow with the
// same id. Run statistics of an existing workflow are kept; the active flag
// comes from w.
func (r *Registry) UpsertWorkflow(ctx context.Context, w *model.Workflow) error {
	w = w.Clone()
	if err := r.checkWorkflow(w); err != nil {
		return err
	}
	r.fillWorkflow(w)

	unlock := r.locks.Lock(lockKey(KindWorkflow, w.ID))
	if existing, err := r.GetWorkflow(ctx, w.ID); err == nil {
		active := w.Metadata.IsActive
		w.Metadata = existing.Metadata
		w.Metadata.IsActive = active
		w.Metadata.UpdatedAt = r.now()
	}
	existed := r.storeWorkflow(w)
	unlock()

	r.emit(ctx, KindWorkflow, eventFor(existed), w.ID, w.Clone())
	return nil
}

// UpsertCategory validates c and stores it, replacing any category with the
// same id.
func (r *Registry) UpsertCategory(ctx context.Context, c *model.Category) error {
	c = c.Clone()
	if err := checkCategory(c); err != nil {
		return err
	}
	r.putCategory(ctx, c)
	return nil
}
