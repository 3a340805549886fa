package cli

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/config"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/server"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

const adderModule = `
module.exports.get = function () {
	return function () {
		return {
			render: function (props) { return props.value * 2; },
			capability: function (a, b) {
				if (arguments.length === 0) {
					return {
						name: "adder",
						description: "adds numbers",
						initialize: function () { require("host").ready(this.name); }
					};
				}
				return a + b;
			}
		};
	};
};
`

func startServer(t *testing.T) string {
	t.Helper()
	color.NoColor = true

	cfg := config.Default()
	cfg.Extensions.ExtensionsPath = t.TempDir()
	cfg.Extensions.NodesPath = t.TempDir()
	cfg.Extensions.PublicURL = "http://localhost:8000"
	cfg.Extensions.WatchEnabled = false
	cfg.RateLimit.Enabled = false

	srv := server.New(cfg, logging.NewNop())
	require.NoError(t, srv.Start(context.Background()))
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(func() {
		ts.Close()
		srv.Close()
	})
	return ts.URL
}

func writeArchive(t *testing.T, files map[string]string) string {
	t.Helper()
	var buf bytes.Buffer
	w := zip.NewWriter(&buf)
	for name, body := range files {
		fw, err := w.Create(name)
		require.NoError(t, err)
		_, err = fw.Write([]byte(body))
		require.NoError(t, err)
	}
	require.NoError(t, w.Close())

	path := filepath.Join(t.TempDir(), "adder.zip")
	require.NoError(t, os.WriteFile(path, buf.Bytes(), 0644))
	return path
}

func run(t *testing.T, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCommand()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetErr(&out)
	cmd.SetArgs(args)
	err := cmd.ExecuteContext(context.Background())
	return out.String(), err
}

func TestLifecycle(t *testing.T) {
	url := startServer(t)
	archive := writeArchive(t, map[string]string{
		"manifest.json": `{"name":"Adder","componentName":"Adder","version":"1.2.0","author":"A","description":"adds","main":"dist/index.js"}`,
		"dist/index.js": adderModule,
	})

	out, err := run(t, "--server", url, "install", archive)
	require.NoError(t, err, out)
	assert.Contains(t, out, "Installed Adder")

	out, err = run(t, "--server", url, "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Adder")
	assert.Contains(t, out, "1.2.0")
	assert.Contains(t, out, "installed")

	out, err = run(t, "--server", url, "--json", "list")
	require.NoError(t, err, out)
	var entries []types.CatalogEntry
	require.NoError(t, json.Unmarshal([]byte(out), &entries))
	require.Len(t, entries, 1)
	assert.Equal(t, "dist/index.js", entries[0].File)

	out, err = run(t, "--server", url, "info", "Adder")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Version: 1.2.0")
	assert.Contains(t, out, "Main: dist/index.js")

	out, err = run(t, "--server", url, "load", "Adder", "--props", `{"value":21}`, "--call", "[2,3]")
	require.NoError(t, err, out)
	var loaded struct {
		ID         string         `json:"id"`
		Output     any            `json:"output"`
		Capability map[string]any `json:"capability"`
		Result     any            `json:"result"`
	}
	require.NoError(t, json.Unmarshal([]byte(out), &loaded), out)
	assert.Equal(t, "Adder", loaded.ID)
	assert.EqualValues(t, 42, loaded.Output)
	assert.EqualValues(t, 5, loaded.Result)
	assert.Equal(t, "adder", loaded.Capability["name"])
	assert.Equal(t, true, loaded.Capability["hasInitialize"])

	out, err = run(t, "--server", url, "disable", "Adder")
	require.NoError(t, err, out)
	assert.Contains(t, out, "disabled")

	_, err = run(t, "--server", url, "load", "Adder")
	assert.ErrorContains(t, err, "could not be loaded")

	out, err = run(t, "--server", url, "enable", "Adder")
	require.NoError(t, err, out)

	out, err = run(t, "--server", url, "remove", "Adder")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Removed Adder")

	_, err = run(t, "--server", url, "info", "Adder")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestCommandErrors(t *testing.T) {
	url := startServer(t)

	tests := []struct {
		name string
		args []string
		want string
	}{
		{"unknown kind", []string{"--kind", "widget", "list"}, "unknown kind"},
		{"missing archive", []string{"install", filepath.Join(t.TempDir(), "nope.zip")}, "failed to read archive"},
		{"bad props", []string{"load", "x", "--props", "[1"}, "invalid --props"},
		{"call needs array", []string{"load", "x", "--call", `{"a":1}`}, "invalid --call"},
		{"status of unknown id", []string{"enable", "Ghost"}, "failed to enable Ghost"},
		{"missing argument", []string{"info"}, "accepts 1 arg"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := run(t, append([]string{"--server", url}, tt.args...)...)
			assert.ErrorContains(t, err, tt.want)
		})
	}
}

func TestNodesAndRescan(t *testing.T) {
	url := startServer(t)

	out, err := run(t, "--server", url, "--kind", "nodes", "list")
	require.NoError(t, err, out)
	assert.Contains(t, out, "No components installed")

	out, err = run(t, "--server", url, "--kind", "node", "rescan")
	require.NoError(t, err, out)
	assert.Contains(t, out, "Found 0 nodes")

	out, err = run(t, "--server", url, "--kind", "node", "--json", "path")
	require.NoError(t, err, out)
	var info map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &info))
	assert.Equal(t, true, info["exists"])
}

func TestEvents(t *testing.T) {
	url := startServer(t)

	out, err := run(t, "--server", url, "--json", "events", "--count", "1")
	require.NoError(t, err, out)

	var ev map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &ev), out)
	assert.Equal(t, "catalog", ev["type"])
	assert.Equal(t, "extension", ev["kind"])
}

func TestEventsURL(t *testing.T) {
	tests := []struct {
		server string
		want   string
	}{
		{"http://localhost:8000", "ws://localhost:8000/extensions/events"},
		{"https://graph.example.com/", "wss://graph.example.com/extensions/events"},
		{"http://host/api", "ws://host/api/extensions/events"},
	}
	for _, tt := range tests {
		got, err := eventsURL(tt.server, "extensions")
		require.NoError(t, err)
		assert.Equal(t, tt.want, got)
	}
}
