package workflow

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// ActionHandler performs a named side effect for an action step.
//
// params holds the step parameters with placeholders already resolved; env
// is a private copy of the run's variable environment. The returned map is
// merged into the environment. Returning (nil, nil) yields an empty output.
type ActionHandler func(ctx context.Context, params map[string]any, env map[string]any) (map[string]any, error)

// ActionRegistry maps action names to handlers.
// It is safe for concurrent use.
type ActionRegistry struct {
	mu       sync.RWMutex
	handlers map[string]ActionHandler
}

// NewActionRegistry creates an empty action registry.
func NewActionRegistry() *ActionRegistry {
	return &ActionRegistry{
		handlers: make(map[string]ActionHandler),
	}
}

// Register adds a handler under name.
func (r *ActionRegistry) Register(name string, handler ActionHandler) error {
	if name == "" {
		return fmt.Errorf("action name is required")
	}
	if handler == nil {
		return fmt.Errorf("action %s: handler is nil", name)
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.handlers[name]; exists {
		return fmt.Errorf("action %s already registered", name)
	}
	r.handlers[name] = handler
	return nil
}

// MustRegister is Register that panics on error. Intended for wiring builtin
// actions at startup.
func (r *ActionRegistry) MustRegister(name string, handler ActionHandler) {
	if err := r.Register(name, handler); err != nil {
		panic(err)
	}
}

// Unregister removes the handler for name, if any.
func (r *ActionRegistry) Unregister(name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, name)
}

// Get returns the handler registered under name.
func (r *ActionRegistry) Get(name string) (ActionHandler, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	h, ok := r.handlers[name]
	return h, ok
}

// Names returns the registered action names in sorted order.
func (r *ActionRegistry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.handlers))
	for name := range r.handlers {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// invoke calls handler and converts a panic into an error.
func invoke(ctx context.Context, name string, handler ActionHandler, params, env map[string]any) (output map[string]any, err error) {
	defer func() {
		if r := recover(); r != nil {
			output = nil
			err = fmt.Errorf("action %s panicked: %v", name, r)
		}
	}()

	output, err = handler(ctx, params, env)
	if err != nil {
		return nil, err
	}
	if output == nil {
		output = map[string]any{}
	}
	return output, nil
}
