// Package component defines the client-side contract of a loaded module.
package component

import "context"

// Component is an instantiated UI component served by a remote module.
type Component interface {
	// ID is the catalog identifier the component was loaded from
	ID() string
	// Render invokes the component with props and returns its exported output
	Render(ctx context.Context, props map[string]any) (any, error)
}

// CapabilityFunc is the function a component contributes to the host.
type CapabilityFunc func(ctx context.Context, args ...any) (any, error)

// Description is what a capability reports about itself when described.
type Description struct {
	Name          string         `json:"name,omitempty"`
	Description   string         `json:"description,omitempty"`
	HasInitialize bool           `json:"hasInitialize"`
	Fields        map[string]any `json:"fields,omitempty"`
}

// Activatable is implemented by components that expose a capability.
type Activatable interface {
	Component
	// Capability returns the function to register for the component
	Capability() CapabilityFunc
	// Describe queries the capability once and caches the result
	Describe(ctx context.Context) (Description, error)
	// Activate runs the capability's initialize hook if it declares one
	Activate(ctx context.Context) error
}
