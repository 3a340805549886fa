package registry

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/GriffinCanCode/nodegraph/internal/client/component"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// Registry caches loaded components and their capability functions by id.
type Registry struct {
	mu         sync.RWMutex
	components map[string]component.Component
	functions  map[string]component.CapabilityFunc
}

// New creates an empty registry
func New() *Registry {
	return &Registry{
		components: make(map[string]component.Component),
		functions:  make(map[string]component.CapabilityFunc),
	}
}

// Get returns the cached component for id
func (r *Registry) Get(id string) (component.Component, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.components[id]
	return c, ok
}

// Put caches a component, replacing any previous one
func (r *Registry) Put(id string, c component.Component) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components[id] = c
}

// Evict forgets the component and capability function of id
func (r *Registry) Evict(id string) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	_, hadComponent := r.components[id]
	_, hadFunction := r.functions[id]
	delete(r.components, id)
	delete(r.functions, id)
	return hadComponent || hadFunction
}

// GetFunction returns the capability function registered for id
func (r *Registry) GetFunction(id string) (component.CapabilityFunc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	fn, ok := r.functions[id]
	return fn, ok
}

// SetFunction registers a capability function for id
func (r *Registry) SetFunction(id string, fn component.CapabilityFunc) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.functions[id] = fn
}

// GetAllFunctions returns a copy of every registered capability function
func (r *Registry) GetAllFunctions() map[string]component.CapabilityFunc {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]component.CapabilityFunc, len(r.functions))
	for id, fn := range r.functions {
		out[id] = fn
	}
	return out
}

// IsLoaded reports whether a component is cached for id
func (r *Registry) IsLoaded(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.components[id]
	return ok
}

// IDs returns the ids of all cached components, sorted
func (r *Registry) IDs() []string {
	r.mu.RLock()
	ids := make([]string, 0, len(r.components))
	for id := range r.components {
		ids = append(ids, id)
	}
	r.mu.RUnlock()
	sort.Strings(ids)
	return ids
}

// Clear empties the registry
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.components = make(map[string]component.Component)
	r.functions = make(map[string]component.CapabilityFunc)
}

// Call invokes the capability function registered for id.
func (r *Registry) Call(ctx context.Context, id string, args ...any) (any, error) {
	fn, ok := r.GetFunction(id)
	if !ok {
		return nil, fmt.Errorf("%w: %s", types.ErrNotLoaded, id)
	}
	return fn(ctx, args...)
}
