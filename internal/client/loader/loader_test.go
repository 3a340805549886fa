package loader

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nodegraph/internal/client/registry"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

const greeterModule = `
module.exports.get = function (name) {
	if (name !== "./Component") throw new Error("unknown expose " + name);
	return Promise.resolve(function () {
		return { default: function (props) { return "hello " + props.name; } };
	});
};
`

const capabilityModule = `
module.exports.get = function () {
	return function () {
		return {
			render: function (props) { return props.value * 2; },
			capability: function (a, b) {
				if (arguments.length === 0) {
					return {
						name: "adder",
						description: "adds numbers",
						arity: 2,
						initialize: function () { require("host").ready(this.name); }
					};
				}
				return a + b;
			}
		};
	};
};
`

type fakeMetadata struct {
	mu      sync.Mutex
	entries map[string]types.CatalogEntry
}

func (f *fakeMetadata) Metadata(_ context.Context, id string) (*types.CatalogEntry, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e, ok := f.entries[id]
	if !ok {
		return nil, types.ErrNotFound
	}
	return &e, nil
}

func (f *fakeMetadata) setStatus(id string, st types.Status) {
	f.mu.Lock()
	defer f.mu.Unlock()
	e := f.entries[id]
	e.Status = st
	f.entries[id] = e
}

type fakeFetcher struct {
	mu      sync.Mutex
	sources map[string]string
	fetches int
	urls    []string
}

func (f *fakeFetcher) Fetch(_ context.Context, moduleURL string) ([]byte, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.fetches++
	f.urls = append(f.urls, moduleURL)
	src, ok := f.sources[moduleURL]
	if !ok {
		return nil, errors.New("404")
	}
	return []byte(src), nil
}

func entry(id string, st types.Status) types.CatalogEntry {
	return types.CatalogEntry{ID: id, Kind: types.KindExtension, Main: "index.js", File: "index.js", Status: st, Version: "1.0.0"}
}

func newTestLoader(t *testing.T, sources map[string]string, entries ...types.CatalogEntry) (*Loader, *fakeMetadata, *fakeFetcher) {
	t.Helper()
	meta := &fakeMetadata{entries: map[string]types.CatalogEntry{}}
	for _, e := range entries {
		meta.entries[e.ID] = e
	}
	fetcher := &fakeFetcher{sources: sources}
	l, err := New(Options{Metadata: meta, Fetcher: fetcher})
	require.NoError(t, err)
	return l, meta, fetcher
}

func TestLoadIsIdempotent(t *testing.T) {
	l, _, fetcher := newTestLoader(t,
		map[string]string{"extension://foo/index.js": greeterModule},
		entry("foo", types.StatusInstalled))

	first := l.Load(context.Background(), "foo")
	require.NotNil(t, first)
	second := l.Load(context.Background(), "foo")
	assert.Same(t, first, second)
	assert.Equal(t, 1, fetcher.fetches)
	assert.Equal(t, []string{"extension://foo/index.js"}, fetcher.urls)

	out, err := first.Render(context.Background(), map[string]any{"name": "graph"})
	require.NoError(t, err)
	assert.Equal(t, "hello graph", out)
	assert.Equal(t, "foo", first.ID())
}

func TestDisabledIsNotLoadedEvenIfCached(t *testing.T) {
	l, meta, _ := newTestLoader(t,
		map[string]string{"extension://foo/index.js": greeterModule},
		entry("foo", types.StatusInstalled))

	meta.setStatus("foo", types.StatusEnabled)
	require.NotNil(t, l.Load(context.Background(), "foo"))
	assert.True(t, l.Registry().IsLoaded("foo"))

	meta.setStatus("foo", types.StatusDisabled)
	assert.Nil(t, l.Load(context.Background(), "foo"))
	assert.False(t, l.Registry().IsLoaded("foo"))
}

func TestUnloadableEntries(t *testing.T) {
	l, _, fetcher := newTestLoader(t,
		map[string]string{"extension://broken/index.js": greeterModule},
		entry("broken", types.StatusError))

	assert.Nil(t, l.Load(context.Background(), "broken"))
	assert.Nil(t, l.Load(context.Background(), "unknown"))
	assert.Zero(t, fetcher.fetches)
}

func TestCapabilityActivation(t *testing.T) {
	var (
		mu    sync.Mutex
		ready []string
	)
	meta := &fakeMetadata{entries: map[string]types.CatalogEntry{"adder": entry("adder", types.StatusEnabled)}}
	reg := registry.New()
	l, err := New(Options{
		Metadata: meta,
		Fetcher:  &fakeFetcher{sources: map[string]string{"extension://adder/index.js": capabilityModule}},
		Registry: reg,
		Shared: map[string]any{
			"host": map[string]any{
				"ready": func(name string) {
					mu.Lock()
					ready = append(ready, name)
					mu.Unlock()
				},
			},
		},
	})
	require.NoError(t, err)

	c := l.Load(context.Background(), "adder")
	require.NotNil(t, c)

	act, ok := c.(Activatable)
	require.True(t, ok)

	desc, err := act.Describe(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "adder", desc.Name)
	assert.Equal(t, "adds numbers", desc.Description)
	assert.True(t, desc.HasInitialize)
	assert.EqualValues(t, 2, desc.Fields["arity"])

	mu.Lock()
	assert.Equal(t, []string{"adder"}, ready)
	mu.Unlock()

	out, err := reg.Call(context.Background(), "adder", 2, 3)
	require.NoError(t, err)
	assert.EqualValues(t, 5, out)
	assert.Contains(t, reg.GetAllFunctions(), "adder")

	rendered, err := c.Render(context.Background(), map[string]any{"value": 21})
	require.NoError(t, err)
	assert.EqualValues(t, 42, rendered)

	require.NotNil(t, l.Load(context.Background(), "adder"))
	mu.Lock()
	assert.Len(t, ready, 1, "activation runs once per load")
	mu.Unlock()
}

func TestMalformedModulesReturnNil(t *testing.T) {
	tests := []struct {
		name   string
		source string
	}{
		{"syntax error", `module.exports.get = function( {`},
		{"no get export", `module.exports.other = 1;`},
		{"exports replaced by null", `module.exports = null;`},
		{"get returns non function", `module.exports.get = function () { return 42; };`},
		{"rejected promise", `module.exports.get = function () { return Promise.reject(new Error("nope")); };`},
		{"factory throws", `module.exports.get = function () { return function () { throw new Error("boom"); }; };`},
		{"not a component", `module.exports.get = function () { return function () { return { name: "x" }; }; };`},
		{"missing shared module", `var ui = require("react"); module.exports.get = function () {};`},
		{"top level throw", `throw new Error("bad module");`},
		{"get getter throws", `Object.defineProperty(module.exports, "get", { get: function () { throw new Error("boom"); } });`},
		{"exports getter throws", `Object.defineProperty(module, "exports", { get: function () { throw new Error("gone"); } });`},
		{"default getter throws", `module.exports.get = function () { return function () {
			return Object.defineProperty({}, "default", { get: function () { throw new Error("x"); } });
		}; };`},
		{"description getter throws", `module.exports.get = function () { return function () { return {
			render: function () {},
			capability: function () { return { get name() { throw new Error("no name"); } }; }
		}; }; };`},
		{"description toString throws", `module.exports.get = function () { return function () { return {
			render: function () {},
			capability: function () { return { name: { toString: function () { throw new Error("str"); } } }; }
		}; }; };`},
		{"initialize throws", `module.exports.get = function () { return function () { return {
			render: function () {},
			capability: function () { return { initialize: function () { throw new Error("init"); } }; }
		}; }; };`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			l, _, _ := newTestLoader(t,
				map[string]string{"extension://foo/index.js": tt.source},
				entry("foo", types.StatusInstalled))

			assert.Nil(t, l.Load(context.Background(), "foo"))
			assert.False(t, l.Registry().IsLoaded("foo"))
			_, ok := l.Registry().GetFunction("foo")
			assert.False(t, ok)
		})
	}
}

func TestThrowingOutputsBecomeErrors(t *testing.T) {
	source := `module.exports.get = function () { return function () { return {
		render: function () { return { get value() { throw new Error("render getter"); } }; },
		capability: function (a) {
			if (arguments.length === 0) { return { name: "bad" }; }
			return { get value() { throw new Error("call getter"); } };
		}
	}; }; };`
	l, _, _ := newTestLoader(t, map[string]string{"extension://foo/index.js": source}, entry("foo", types.StatusInstalled))

	c := l.Load(context.Background(), "foo")
	require.NotNil(t, c)

	_, err := c.Render(context.Background(), nil)
	assert.ErrorContains(t, err, "render getter")

	_, err = l.Registry().Call(context.Background(), "foo", 1)
	assert.ErrorContains(t, err, "call getter")
}

func TestFetchFailureIsNotCached(t *testing.T) {
	l, _, fetcher := newTestLoader(t, map[string]string{}, entry("foo", types.StatusInstalled))

	assert.Nil(t, l.Load(context.Background(), "foo"))
	fetcher.sources["extension://foo/index.js"] = greeterModule
	assert.NotNil(t, l.Load(context.Background(), "foo"))
	assert.Equal(t, 2, fetcher.fetches)
}

func TestRenderHonorsContext(t *testing.T) {
	l, _, _ := newTestLoader(t,
		map[string]string{"extension://spin/index.js": `module.exports.get = function () { return function () { return function () { while (true) {} }; }; };`},
		entry("spin", types.StatusInstalled))

	c := l.Load(context.Background(), "spin")
	require.NotNil(t, c)

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()
	_, err := c.Render(ctx, nil)
	assert.Error(t, err)
}

func TestResolve(t *testing.T) {
	e := types.CatalogEntry{ID: "foo", File: "dist/index.js"}

	tests := []struct {
		name string
		host HostContext
		kind types.Kind
		base string
		want string
	}{
		{"embedded", Embedded, types.KindExtension, "", "extension://foo/dist/index.js"},
		{"browser relative", Browser, types.KindExtension, "", "/extensions/foo/dist%2Findex.js"},
		{"browser node", Browser, types.KindNode, "", "/nodes/foo/dist%2Findex.js"},
		{"browser absolute", Browser, types.KindExtension, "http://localhost:8000/", "http://localhost:8000/extensions/foo/dist%2Findex.js"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := Resolve(tt.host, tt.kind, tt.base, e)
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}

	_, err := Resolve(Browser, types.KindExtension, "", types.CatalogEntry{ID: "foo"})
	assert.Error(t, err)
}

func TestHTTPFetcher(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.EscapedPath() == "/extensions/foo/dist%2Findex.js" {
			w.Header().Set("Content-Type", "application/javascript")
			w.Write([]byte(greeterModule))
			return
		}
		http.NotFound(w, r)
	}))
	defer srv.Close()

	f := NewHTTPFetcher(srv.URL)
	body, err := f.Fetch(context.Background(), "/extensions/foo/dist%2Findex.js")
	require.NoError(t, err)
	assert.Equal(t, greeterModule, string(body))

	_, err = f.Fetch(context.Background(), "/extensions/missing/index.js")
	assert.Error(t, err)
}

type fakeAssets map[string]string

func (f fakeAssets) ReadAsset(id, rel string) ([]byte, string, error) {
	body, ok := f[id+"/"+rel]
	if !ok {
		return nil, "", types.ErrNotFound
	}
	return []byte(body), rel, nil
}

func TestEmbeddedFetcher(t *testing.T) {
	f := NewEmbeddedFetcher(fakeAssets{"foo/dist/index.js": "src"})

	body, err := f.Fetch(context.Background(), "extension://foo/dist/index.js")
	require.NoError(t, err)
	assert.Equal(t, "src", string(body))

	_, err = f.Fetch(context.Background(), "https://foo/dist/index.js")
	assert.Error(t, err)
	_, err = f.Fetch(context.Background(), "extension://foo/missing.js")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestNewRequiresSources(t *testing.T) {
	_, err := New(Options{Fetcher: &fakeFetcher{}})
	assert.Error(t, err)
	_, err = New(Options{Metadata: &fakeMetadata{}})
	assert.Error(t, err)
}
