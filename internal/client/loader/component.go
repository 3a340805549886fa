package loader

import (
	"context"
	"fmt"
	"sync"

	"github.com/dop251/goja"

	"github.com/GriffinCanCode/nodegraph/internal/client/component"
)

// jsComponent is a component backed by a function or render method in a module runtime.
type jsComponent struct {
	module *moduleRuntime
	target *goja.Object
	render goja.Callable
	this   goja.Value
}

func (c *jsComponent) ID() string {
	return c.module.id
}

func (c *jsComponent) Render(ctx context.Context, props map[string]any) (any, error) {
	c.module.mu.Lock()
	defer c.module.mu.Unlock()

	if props == nil {
		props = map[string]any{}
	}
	v, err := c.module.call(ctx, c.render, c.this, props)
	if err != nil {
		return nil, fmt.Errorf("render %s: %w", c.module.id, err)
	}
	return c.module.export(v)
}

// activatable is a component whose module exposes a capability function.
type activatable struct {
	*jsComponent
	capability goja.Callable

	once       sync.Once
	desc       component.Description
	descErr    error
	descObj    *goja.Object
	initialize goja.Callable
}

func (a *activatable) Capability() component.CapabilityFunc {
	return func(ctx context.Context, args ...any) (any, error) {
		a.module.mu.Lock()
		defer a.module.mu.Unlock()

		v, err := a.module.call(ctx, a.capability, a.target, args...)
		if err != nil {
			return nil, fmt.Errorf("capability %s: %w", a.module.id, err)
		}
		return a.module.export(v)
	}
}

func (a *activatable) Describe(ctx context.Context) (component.Description, error) {
	a.once.Do(func() {
		a.module.mu.Lock()
		defer a.module.mu.Unlock()
		a.desc, a.descErr = a.describe(ctx)
	})
	return a.desc, a.descErr
}

func (a *activatable) describe(ctx context.Context) (component.Description, error) {
	v, err := a.module.call(ctx, a.capability, a.target)
	if err != nil {
		return component.Description{}, fmt.Errorf("describe %s: %w", a.module.id, err)
	}
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return component.Description{}, nil
	}

	desc := component.Description{Fields: map[string]any{}}
	err = protect(func() error {
		obj := v.ToObject(a.module.vm)
		for _, key := range obj.Keys() {
			prop := obj.Get(key)
			if fn, ok := goja.AssertFunction(prop); ok {
				if key == "initialize" {
					a.initialize = fn
					desc.HasInitialize = true
				}
				continue
			}
			switch key {
			case "name":
				desc.Name = prop.String()
			case "description":
				desc.Description = prop.String()
			default:
				desc.Fields[key] = exportValue(prop)
			}
		}
		a.descObj = obj
		return nil
	})
	if err != nil {
		a.initialize = nil
		return component.Description{}, fmt.Errorf("describe %s: %w", a.module.id, err)
	}
	return desc, nil
}

func (a *activatable) Activate(ctx context.Context) error {
	if _, err := a.Describe(ctx); err != nil {
		return err
	}
	if a.initialize == nil {
		return nil
	}

	a.module.mu.Lock()
	defer a.module.mu.Unlock()
	if _, err := a.module.call(ctx, a.initialize, a.descObj); err != nil {
		return fmt.Errorf("initialize %s: %w", a.module.id, err)
	}
	return nil
}

var (
	_ component.Component   = (*jsComponent)(nil)
	_ component.Activatable = (*activatable)(nil)
)
