package loader

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/client/component"
)

// ComponentExpose is the name requested from a module's get export
const ComponentExpose = "./Component"

// moduleRuntime is one evaluated module. goja runtimes are not goroutine
// safe, so every call into the VM holds mu.
type moduleRuntime struct {
	id      string
	vm      *goja.Runtime
	mu      sync.Mutex
	exports *goja.Object
}

// evaluate runs source as a CommonJS-style module. Shared dependencies are
// only reachable through the require argument.
func evaluate(id, name string, source []byte, shared map[string]any, log *zap.Logger) (*moduleRuntime, error) {
	vm := goja.New()
	vm.SetFieldNameMapper(goja.TagFieldNameMapper("json", true))
	installConsole(vm, log.With(zap.String("module", id)))

	wrapped := "(function (exports, module, require) {\n" + string(source) + "\n})"
	prog, err := goja.Compile(name, wrapped, false)
	if err != nil {
		return nil, fmt.Errorf("compile: %w", err)
	}
	fnVal, err := vm.RunProgram(prog)
	if err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}
	fn, ok := goja.AssertFunction(fnVal)
	if !ok {
		return nil, errors.New("module wrapper is not callable")
	}

	exports := vm.NewObject()
	module := vm.NewObject()
	if err := module.Set("exports", exports); err != nil {
		return nil, err
	}

	require := func(call goja.FunctionCall) goja.Value {
		name := call.Argument(0).String()
		dep, ok := shared[name]
		if !ok {
			panic(vm.NewGoError(fmt.Errorf("module %q is not provided by the host (available: %s)", name, sharedNames(shared))))
		}
		return vm.ToValue(dep)
	}

	if _, err := fn(goja.Undefined(), exports, module, vm.ToValue(require)); err != nil {
		return nil, fmt.Errorf("evaluate: %w", err)
	}

	var out *goja.Object
	err = protect(func() error {
		v := module.Get("exports")
		if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
			return errors.New("module has no exports")
		}
		out = v.ToObject(vm)
		return nil
	})
	if err != nil {
		return nil, err
	}
	return &moduleRuntime{id: id, vm: vm, exports: out}, nil
}

// instantiate resolves get("./Component"), calls the factory and wraps the result.
func (m *moduleRuntime) instantiate(ctx context.Context) (c component.Component, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	defer m.guard(ctx)()

	err = protect(func() error {
		var err error
		c, err = m.resolveComponent()
		return err
	})
	return c, err
}

func (m *moduleRuntime) resolveComponent() (component.Component, error) {
	get, ok := goja.AssertFunction(m.exports.Get("get"))
	if !ok {
		return nil, errors.New(`module does not export a "get" function`)
	}

	factoryVal, err := get(m.exports, m.vm.ToValue(ComponentExpose))
	if err != nil {
		return nil, fmt.Errorf("get(%q): %w", ComponentExpose, err)
	}
	if factoryVal, err = settle(factoryVal); err != nil {
		return nil, fmt.Errorf("get(%q): %w", ComponentExpose, err)
	}

	factory, ok := goja.AssertFunction(factoryVal)
	if !ok {
		return nil, fmt.Errorf("get(%q) did not yield a factory", ComponentExpose)
	}
	modVal, err := factory(goja.Undefined())
	if err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	if modVal, err = settle(modVal); err != nil {
		return nil, fmt.Errorf("factory: %w", err)
	}
	if modVal == nil || goja.IsUndefined(modVal) || goja.IsNull(modVal) {
		return nil, errors.New("factory returned nothing")
	}

	target := modVal.ToObject(m.vm)
	if def := target.Get("default"); def != nil && !goja.IsUndefined(def) && !goja.IsNull(def) {
		target = def.ToObject(m.vm)
	}

	base := &jsComponent{module: m, target: target}
	if fn, ok := goja.AssertFunction(target); ok {
		base.render = fn
		base.this = goja.Undefined()
	} else if fn, ok := goja.AssertFunction(target.Get("render")); ok {
		base.render = fn
		base.this = target
	} else {
		return nil, errors.New("component is neither a function nor an object with render")
	}

	if capability, ok := goja.AssertFunction(target.Get("capability")); ok {
		return &activatable{jsComponent: base, capability: capability}, nil
	}
	return base, nil
}

// guard interrupts the VM when ctx ends; the returned func must be deferred.
func (m *moduleRuntime) guard(ctx context.Context) func() {
	if ctx.Done() == nil {
		return func() {}
	}
	done := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			m.vm.Interrupt(ctx.Err())
		case <-done:
		}
	}()
	return func() {
		close(done)
		m.vm.ClearInterrupt()
	}
}

// call invokes fn with Go arguments and exports the settled result.
func (m *moduleRuntime) call(ctx context.Context, fn goja.Callable, this goja.Value, args ...any) (goja.Value, error) {
	defer m.guard(ctx)()

	var out goja.Value
	err := protect(func() error {
		jsArgs := make([]goja.Value, len(args))
		for i, a := range args {
			jsArgs[i] = m.vm.ToValue(a)
		}
		v, err := fn(this, jsArgs...)
		if err != nil {
			return err
		}
		out, err = settle(v)
		return err
	})
	return out, err
}

// export converts v to a Go value; getters run during the conversion.
func (m *moduleRuntime) export(v goja.Value) (out any, err error) {
	err = protect(func() error {
		out = exportValue(v)
		return nil
	})
	return out, err
}

// protect turns a panic raised while touching module values into an error.
// goja throws exceptions from getters and toString overrides as panics.
func protect(fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			if ex, ok := r.(*goja.Exception); ok {
				err = fmt.Errorf("module threw: %w", ex)
				return
			}
			err = fmt.Errorf("module panicked: %v", r)
		}
	}()
	return fn()
}

// settle unwraps an already-settled promise. Jobs queued by a call run before
// the call returns, so a promise still pending here never resolves on its own.
func settle(v goja.Value) (goja.Value, error) {
	if v == nil {
		return v, nil
	}
	p, ok := v.Export().(*goja.Promise)
	if !ok {
		return v, nil
	}
	switch p.State() {
	case goja.PromiseStateFulfilled:
		return p.Result(), nil
	case goja.PromiseStateRejected:
		return nil, fmt.Errorf("promise rejected: %v", p.Result())
	default:
		return nil, errors.New("promise did not settle")
	}
}

func exportValue(v goja.Value) any {
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return nil
	}
	return v.Export()
}

func installConsole(vm *goja.Runtime, log *zap.Logger) {
	console := vm.NewObject()
	for _, level := range []string{"log", "info", "warn", "error", "debug"} {
		level := level
		console.Set(level, func(call goja.FunctionCall) goja.Value {
			parts := make([]string, len(call.Arguments))
			for i, arg := range call.Arguments {
				parts[i] = arg.String()
			}
			msg := strings.Join(parts, " ")
			switch level {
			case "warn":
				log.Warn(msg)
			case "error":
				log.Error(msg)
			default:
				log.Debug(msg, zap.String("level", level))
			}
			return goja.Undefined()
		})
	}
	vm.Set("console", console)
}

func sharedNames(shared map[string]any) string {
	names := make([]string, 0, len(shared))
	for n := range shared {
		names = append(names, n)
	}
	sort.Strings(names)
	if len(names) == 0 {
		return "none"
	}
	return strings.Join(names, ", ")
}
