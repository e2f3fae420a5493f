// Package registry owns the templates, workflows and categories of a quill
// instance.
//
// A Registry is an explicitly constructed value; there is no package-level
// instance. All reads return copies, so callers can never alias stored
// records. Counter updates go through MutateTemplateMetadata and
// MutateWorkflowMetadata, which hold a per-entity lock for the whole
// read-modify-write.
package registry

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tombee/quill/pkg/model"
)

// Registry stores templates, workflows and categories in memory.
// It is safe for concurrent use.
type Registry struct {
	mu         sync.RWMutex
	templates  map[string]*model.Template
	workflows  map[string]*model.Workflow
	categories map[string]*model.Category

	locks  *keyedMutex
	events *emitter
	logger *slog.Logger
	now    func() time.Time
	newID  func() string
}

// Option configures a Registry.
type Option func(*Registry)

// WithLogger sets the registry's logger.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Registry) { r.logger = logger }
}

// WithClock overrides the time source used for timestamps.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) { r.now = now }
}

// WithIDGenerator overrides how ids are assigned to records created
// without one.
func WithIDGenerator(fn func() string) Option {
	return func(r *Registry) { r.newID = fn }
}

// New creates an empty registry.
func New(opts ...Option) *Registry {
	r := &Registry{
		templates:  make(map[string]*model.Template),
		workflows:  make(map[string]*model.Workflow),
		categories: make(map[string]*model.Category),
		locks:      newKeyedMutex(),
		logger:     slog.Default(),
		now:        time.Now,
		newID:      uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.events = newEmitter(r.logger)
	return r
}

// On registers a listener for events on entities of kind.
func (r *Registry) On(kind Kind, listener Listener) {
	r.events.on(kind, listener)
}

// ListenerCount returns the number of listeners registered for kind.
func (r *Registry) ListenerCount(kind Kind) int {
	return r.events.count(kind)
}

func (r *Registry) emit(ctx context.Context, kind Kind, typ EventType, id string, entity any) {
	r.events.emit(ctx, Event{
		Kind:      kind,
		Type:      typ,
		ID:        id,
		Entity:    entity,
		Timestamp: r.now(),
	})
}

// lockKey scopes per-entity locks by kind so ids may repeat across kinds.
func lockKey(kind Kind, id string) string {
	return string(kind) + ":" + id
}
