package registry

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

// Kind identifies the entity kind an event refers to.
type Kind string

const (
	KindTemplate Kind = "template"
	KindWorkflow Kind = "workflow"
	KindCategory Kind = "category"
)

// EventType identifies what happened to the entity.
type EventType string

const (
	EventCreated EventType = "created"
	EventUpdated EventType = "updated"
	EventDeleted EventType = "deleted"
)

// Event describes a change to a registry entity. Entity holds a copy of the
// record after the change, or the removed record for deletions.
type Event struct {
	Kind      Kind
	Type      EventType
	ID        string
	Entity    any
	Timestamp time.Time
}

// Listener handles registry events. A returned error or panic is logged and
// never reaches the operation that triggered the event.
type Listener func(ctx context.Context, event Event) error

// emitter keeps an observer list per entity kind.
type emitter struct {
	mu        sync.RWMutex
	listeners map[Kind][]Listener
	logger    *slog.Logger
}

func newEmitter(logger *slog.Logger) *emitter {
	return &emitter{
		listeners: make(map[Kind][]Listener),
		logger:    logger,
	}
}

func (e *emitter) on(kind Kind, l Listener) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.listeners[kind] = append(e.listeners[kind], l)
}

func (e *emitter) count(kind Kind) int {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return len(e.listeners[kind])
}

func (e *emitter) emit(ctx context.Context, event Event) {
	e.mu.RLock()
	listeners := make([]Listener, len(e.listeners[event.Kind]))
	copy(listeners, e.listeners[event.Kind])
	e.mu.RUnlock()

	for _, l := range listeners {
		if err := e.call(ctx, l, event); err != nil {
			e.logger.Warn("registry listener failed",
				"event", string(event.Type),
				"kind", string(event.Kind),
				"id", event.ID,
				"error", err,
			)
		}
	}
}

// call runs one listener inside its own recover boundary.
func (e *emitter) call(ctx context.Context, l Listener, event Event) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("listener panicked: %v", r)
		}
	}()
	return l(ctx, event)
}
