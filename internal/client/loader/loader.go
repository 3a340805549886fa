package loader

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/client/component"
	"github.com/GriffinCanCode/nodegraph/internal/client/registry"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// Component and capability types re-exported for callers of the loader
type (
	Component      = component.Component
	Activatable    = component.Activatable
	CapabilityFunc = component.CapabilityFunc
)

// HostContext selects how module URLs are addressed
type HostContext int

const (
	// Embedded hosts serve modules through the extension:// scheme
	Embedded HostContext = iota
	// Browser hosts fetch modules over plain HTTP paths
	Browser
)

func (h HostContext) String() string {
	if h == Browser {
		return "browser"
	}
	return "embedded"
}

// EmbeddedScheme is the custom URL scheme used by embedded hosts
const EmbeddedScheme = "extension"

// MetadataSource returns the catalog entry for an id
type MetadataSource interface {
	Metadata(ctx context.Context, id string) (*types.CatalogEntry, error)
}

// ModuleFetcher returns module source for a resolved URL
type ModuleFetcher interface {
	Fetch(ctx context.Context, moduleURL string) ([]byte, error)
}

// Options configures a Loader
type Options struct {
	Kind     types.Kind
	Host     HostContext
	BaseURL  string
	Metadata MetadataSource
	Fetcher  ModuleFetcher
	Registry *registry.Registry

	// Shared holds the host's single instances of shared libraries; modules
	// reach them through require(name)
	Shared map[string]any

	Logger  *zap.Logger
	Metrics *monitoring.Metrics
}

// Loader fetches, evaluates and caches remote components.
type Loader struct {
	opts Options
	reg  *registry.Registry
	log  *zap.Logger
}

// New creates a loader
func New(opts Options) (*Loader, error) {
	if opts.Metadata == nil {
		return nil, errors.New("metadata source is required")
	}
	if opts.Fetcher == nil {
		return nil, errors.New("module fetcher is required")
	}
	if opts.Kind == "" {
		opts.Kind = types.KindExtension
	}
	if opts.Registry == nil {
		opts.Registry = registry.New()
	}
	return &Loader{
		opts: opts,
		reg:  opts.Registry,
		log:  logging.OrNop(opts.Logger),
	}, nil
}

// Registry returns the registry the loader caches into
func (l *Loader) Registry() *registry.Registry {
	return l.reg
}

// Load returns the component for id, or nil when it is unknown, disabled,
// broken or fails to load. Failures are logged, never returned.
func (l *Loader) Load(ctx context.Context, id string) Component {
	log := l.log.With(zap.String("id", id), zap.String("host", l.opts.Host.String()))

	meta, err := l.opts.Metadata.Metadata(ctx, id)
	if err != nil || meta == nil {
		if errors.Is(err, types.ErrNotFound) || (err == nil && meta == nil) {
			l.reg.Evict(id)
		}
		log.Warn("Component metadata unavailable", zap.Error(err))
		l.opts.Metrics.RecordModuleLoad("unavailable")
		return nil
	}

	if !meta.Status.Loadable() {
		if l.reg.Evict(id) {
			log.Info("Evicted component", zap.String("status", string(meta.Status)))
		}
		l.opts.Metrics.RecordModuleLoad("skipped")
		return nil
	}

	if c, ok := l.reg.Get(id); ok {
		l.opts.Metrics.RecordModuleLoad("cached")
		return c
	}

	c, err := l.load(ctx, *meta, log)
	if err != nil {
		log.Error("Failed to load component", zap.Error(err))
		l.opts.Metrics.RecordModuleLoad("failure")
		return nil
	}

	l.reg.Put(id, c)
	l.opts.Metrics.RecordModuleLoad("success")
	log.Info("Loaded component", zap.String("version", meta.Version))
	return c
}

// Unload evicts id from the registry
func (l *Loader) Unload(id string) bool {
	return l.reg.Evict(id)
}

func (l *Loader) load(ctx context.Context, meta types.CatalogEntry, log *zap.Logger) (c Component, err error) {
	defer func() {
		if r := recover(); r != nil {
			l.reg.Evict(meta.ID)
			c, err = nil, fmt.Errorf("%w: panic: %v", types.ErrLoadFailure, r)
		}
	}()

	moduleURL, err := Resolve(l.opts.Host, l.opts.Kind, l.opts.BaseURL, meta)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLoadFailure, err)
	}

	source, err := l.opts.Fetcher.Fetch(ctx, moduleURL)
	if err != nil {
		return nil, fmt.Errorf("%w: fetch %s: %v", types.ErrLoadFailure, moduleURL, err)
	}

	mod, err := evaluate(meta.ID, moduleURL, source, l.opts.Shared, log)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLoadFailure, err)
	}

	c, err = mod.instantiate(ctx)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrLoadFailure, err)
	}

	if act, ok := c.(Activatable); ok {
		l.reg.SetFunction(meta.ID, act.Capability())
		desc, err := act.Describe(ctx)
		if err == nil {
			err = act.Activate(ctx)
		}
		if err != nil {
			l.reg.Evict(meta.ID)
			return nil, fmt.Errorf("%w: %v", types.ErrLoadFailure, err)
		}
		log.Debug("Activated capability", zap.String("capability", desc.Name), zap.Bool("initialized", desc.HasInitialize))
	}
	return c, nil
}

// Resolve builds the module URL for an entry in the given host context.
func Resolve(host HostContext, kind types.Kind, baseURL string, e types.CatalogEntry) (string, error) {
	main := e.File
	if main == "" {
		main = e.Main
	}
	if e.ID == "" || main == "" {
		return "", fmt.Errorf("entry %q has no module file", e.ID)
	}
	if kind == "" {
		kind = e.Kind
	}

	if host == Embedded {
		u := url.URL{Scheme: EmbeddedScheme, Host: e.ID, Path: "/" + main}
		return u.String(), nil
	}

	// main may contain slashes; escape it as one segment so it maps onto a single route parameter
	rel := "/" + kind.Prefix() + "/" + url.PathEscape(e.ID) + "/" + url.PathEscape(main)
	if baseURL == "" {
		return rel, nil
	}
	base, err := url.Parse(strings.TrimRight(baseURL, "/") + "/")
	if err != nil {
		return "", fmt.Errorf("invalid base URL %q: %w", baseURL, err)
	}
	ref, err := url.Parse(rel)
	if err != nil {
		return "", err
	}
	return base.ResolveReference(ref).String(), nil
}
