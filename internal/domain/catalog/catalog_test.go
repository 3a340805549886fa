package catalog

import (
	"bytes"
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/klauspost/compress/zip"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

func writeComponent(t *testing.T, root, dir, desc string, files map[string]string) {
	t.Helper()
	base := filepath.Join(root, dir)
	require.NoError(t, os.MkdirAll(base, 0755))
	if desc != "" {
		require.NoError(t, os.WriteFile(filepath.Join(base, "manifest.json"), []byte(desc), 0644))
	}
	for name, body := range files {
		full := filepath.Join(base, name)
		require.NoError(t, os.MkdirAll(filepath.Dir(full), 0755))
		require.NoError(t, os.WriteFile(full, []byte(body), 0644))
	}
}

func manifestFor(id string) string {
	return `{"name":"` + id + ` ext","componentName":"` + id + `","version":"1.0.0","author":"A","description":"d","main":"index.js"}`
}

func zipOf(t *testing.T, files map[string]string) []byte {
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
	return buf.Bytes()
}

func startService(t *testing.T, root string, kind types.Kind) *Service {
	t.Helper()
	svc := New(Options{Root: root, Kind: kind, BaseURL: "http://localhost:8000/"})
	require.NoError(t, svc.Start(context.Background()))
	t.Cleanup(func() { svc.Close() })
	return svc
}

func TestScanMissingRootIsEmpty(t *testing.T) {
	s := NewScanner(ScannerOptions{Root: filepath.Join(t.TempDir(), "absent")})
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)
	assert.NotNil(t, entries)
	assert.Empty(t, entries)
}

func TestScanOneRowPerDirectory(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	writeComponent(t, root, "noauthor", `{"name":"N","componentName":"noauthor","version":"1","main":"index.js"}`, map[string]string{"index.js": "x"})
	writeComponent(t, root, "nomanifest", "", map[string]string{"index.js": "x"})
	writeComponent(t, root, "badjson", `{"name":`, nil)
	writeComponent(t, root, "nomain", manifestFor("nomain"), nil)
	writeComponent(t, root, ".hidden", manifestFor("hidden"), map[string]string{"index.js": "x"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "stray.txt"), []byte("x"), 0644))

	s := NewScanner(ScannerOptions{Root: root, BaseURL: "http://localhost:8000"})
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 5)

	ids := make([]string, len(entries))
	for i, e := range entries {
		ids[i] = e.ID
	}
	assert.Equal(t, []string{"badjson", "foo", "noauthor", "nomain", "nomanifest"}, ids)

	foo := entries[1]
	assert.Equal(t, types.StatusInstalled, foo.Status)
	assert.Equal(t, "http://localhost:8000/extensions/foo", foo.URL)
	assert.Equal(t, "index.js", foo.File)
	assert.Equal(t, "foo", foo.ComponentName)
	assert.False(t, foo.UpdatedAt.IsZero())
	assert.Positive(t, foo.Size)
	assert.Empty(t, foo.ErrorMessage)

	for _, e := range []types.CatalogEntry{entries[0], entries[2], entries[3], entries[4]} {
		assert.Equal(t, types.StatusError, e.Status, e.ID)
		assert.NotEmpty(t, e.ErrorMessage, e.ID)
		assert.Equal(t, "Invalid Extension ("+e.ID+")", e.Name)
		assert.Empty(t, e.URL)
		assert.Empty(t, e.File)
	}
	assert.Contains(t, entries[2].ErrorMessage, "author")
}

func TestScanNodes(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "adder", `{"component":"adder","name":"Adder","version":"0.1.0","category":"math"}`, map[string]string{"index.js": "x"})
	writeComponent(t, root, "broken", `{"name":"Broken","version":"0.1.0"}`, map[string]string{"index.js": "x"})

	s := NewScanner(ScannerOptions{Root: root, Kind: types.KindNode})
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	assert.Equal(t, "index.js", entries[0].File)
	assert.Equal(t, "math", entries[0].Category)
	assert.Equal(t, "/nodes/adder", entries[0].URL)
	assert.Equal(t, "Invalid Node (broken)", entries[1].Name)
}

func TestScanSanitizesText(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo",
		`{"name":"<b>Foo</b>","componentName":"foo","version":"1.0.0","author":"<script>x</script>Ann","description":"<i>nice</i>","main":"index.js","minAppVersion":"9.0.0"}`,
		map[string]string{"index.js": "x"})

	s := NewScanner(ScannerOptions{Root: root, AppVersion: "1.0.0"})
	entries, err := s.Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, types.StatusInstalled, entries[0].Status)
	assert.Equal(t, "Foo", entries[0].Name)
	assert.Equal(t, "nice", entries[0].Description)
	assert.NotContains(t, entries[0].Author, "<script>")
}

func TestServiceInstallThenList(t *testing.T) {
	svc := startService(t, filepath.Join(t.TempDir(), "ext"), types.KindExtension)
	assert.Equal(t, 0, svc.Snapshot().Len())

	res, err := svc.Install(context.Background(), zipOf(t, map[string]string{
		"manifest.json": `{"name":"Foo","componentName":"foo","version":"1.0.0","author":"A","main":"index.js"}`,
		"index.js":      "module.exports = {}",
	}), "foo.zip")
	require.NoError(t, err)
	assert.Equal(t, "foo", res.ExtensionID)

	list := svc.List()
	require.Len(t, list, 1)
	assert.Equal(t, "foo", list[0].ID)
	assert.Equal(t, types.StatusInstalled, list[0].Status)
	assert.Equal(t, res.Digest, list[0].Digest)

	body, err := svc.ReadFile("foo")
	require.NoError(t, err)
	assert.Equal(t, "module.exports = {}", string(body))
}

func TestServiceErrorEntryStaysListed(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	writeComponent(t, root, "bar", `{"name":"Bar","componentName":"bar","version":"1","main":"index.js"}`, map[string]string{"index.js": "x"})

	svc := startService(t, root, types.KindExtension)
	require.Len(t, svc.List(), 2)

	bar, err := svc.Get("bar")
	require.NoError(t, err)
	assert.Equal(t, types.StatusError, bar.Status)
	assert.NotEmpty(t, bar.ErrorMessage)

	_, err = svc.ReadFile("bar")
	assert.ErrorIs(t, err, types.ErrNotFound)
	assert.ErrorIs(t, svc.SetStatus("bar", types.StatusEnabled), types.ErrInvalidStatus)
}

func TestServiceSetStatus(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	svc := startService(t, root, types.KindExtension)

	before := svc.Snapshot()
	require.NoError(t, svc.SetStatus("foo", types.StatusEnabled))

	after := svc.Snapshot()
	assert.Greater(t, after.Version, before.Version)
	e, _ := after.Get("foo")
	assert.Equal(t, types.StatusEnabled, e.Status)

	old, _ := before.Get("foo")
	assert.Equal(t, types.StatusInstalled, old.Status, "published snapshots are immutable")

	assert.ErrorIs(t, svc.SetStatus("missing", types.StatusEnabled), types.ErrNotFound)
	assert.ErrorIs(t, svc.SetStatus("foo", types.StatusError), types.ErrInvalidStatus)
	assert.ErrorIs(t, svc.SetStatus("foo", "bogus"), types.ErrInvalidStatus)
}

func TestStatusSurvivesRescanAndRestart(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	svc := startService(t, root, types.KindExtension)

	require.NoError(t, svc.SetStatus("foo", types.StatusDisabled))
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	e, err := svc.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDisabled, e.Status)
	assert.FileExists(t, filepath.Join(root, paths.StatusFile))

	restarted := startService(t, root, types.KindExtension)
	e, err = restarted.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, types.StatusDisabled, e.Status)
}

func TestServiceDelete(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	svc := startService(t, root, types.KindExtension)
	require.NoError(t, svc.SetStatus("foo", types.StatusEnabled))

	require.NoError(t, svc.Delete(context.Background(), "foo"))
	assert.NoDirExists(t, filepath.Join(root, "foo"))
	assert.Empty(t, svc.List())

	assert.ErrorIs(t, svc.Delete(context.Background(), "foo"), types.ErrNotFound)

	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)
	e, err := svc.Get("foo")
	require.NoError(t, err)
	assert.Equal(t, types.StatusInstalled, e.Status, "status of a deleted component is forgotten")
}

func TestReadAssetContainment(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x", "dist/chunk.js": "chunk"})
	require.NoError(t, os.WriteFile(filepath.Join(root, "secret.txt"), []byte("s"), 0644))
	svc := startService(t, root, types.KindExtension)

	data, full, err := svc.ReadAsset("foo", "dist/chunk.js")
	require.NoError(t, err)
	assert.Equal(t, "chunk", string(data))
	assert.Equal(t, filepath.Join(root, "foo", "dist", "chunk.js"), full)

	_, _, err = svc.ReadAsset("foo", "../secret.txt")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, _, err = svc.ReadAsset("foo", "dist")
	assert.ErrorIs(t, err, types.ErrNotFound)
	_, _, err = svc.ReadAsset("nope", "index.js")
	assert.ErrorIs(t, err, types.ErrNotFound)
}

func TestSubscribeReceivesEvents(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	svc := startService(t, root, types.KindNode)

	events, cancel := svc.Subscribe()
	defer cancel()

	_, err := svc.Rescan(context.Background())
	require.NoError(t, err)

	select {
	case ev := <-events:
		assert.Equal(t, "catalog", ev.Type)
		assert.Equal(t, types.KindNode, ev.Kind)
		assert.Equal(t, svc.Snapshot().Version, ev.Version)
	case <-time.After(time.Second):
		t.Fatal("no event received")
	}

	cancel()
	cancel()
	_, ok := <-events
	assert.False(t, ok)
}

func TestEventsArriveInVersionOrder(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	svc := startService(t, root, types.KindExtension)

	events, cancel := svc.Subscribe()
	defer cancel()

	var wg sync.WaitGroup
	for i := 0; i < 3; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			svc.SetStatus("foo", types.StatusEnabled)
		}()
		go func() {
			defer wg.Done()
			svc.Rescan(context.Background())
		}()
	}
	wg.Wait()

	var last uint64
	for n := 0; n < 6; n++ {
		select {
		case ev := <-events:
			assert.Greater(t, ev.Version, last)
			last = ev.Version
		case <-time.After(time.Second):
			t.Fatalf("received %d of 6 events", n)
		}
	}
	assert.Equal(t, svc.Snapshot().Version, last)
}

func TestInstalledAtComesFromRecord(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{
		"index.js":              "x",
		paths.InstallRecordFile: `{"digest":"blake2b-256:abc","sourceFile":"foo.zip","installedAt":"2024-03-01T10:00:00Z"}`,
	})
	writeComponent(t, root, "bar", manifestFor("bar"), map[string]string{"index.js": "x"})

	entries, err := NewScanner(ScannerOptions{Root: root}).Scan(context.Background())
	require.NoError(t, err)
	require.Len(t, entries, 2)

	bar, foo := entries[0], entries[1]
	assert.True(t, foo.InstalledAt.Equal(time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC)))
	assert.Equal(t, "blake2b-256:abc", foo.Digest)
	assert.True(t, foo.UpdatedAt.After(foo.InstalledAt), "updatedAt follows the manifest")

	assert.False(t, bar.InstalledAt.IsZero())
	assert.Equal(t, bar.InstalledAt, bar.UpdatedAt)
}

func TestWatchTriggersRescan(t *testing.T) {
	root := t.TempDir()
	svc := New(Options{Root: root, Watch: true, Debounce: 50 * time.Millisecond})
	require.NoError(t, svc.Start(context.Background()))
	defer svc.Close()

	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})

	assert.Eventually(t, func() bool {
		e, err := svc.Get("foo")
		return err == nil && e.Status == types.StatusInstalled
	}, 3*time.Second, 20*time.Millisecond)
}

func TestStats(t *testing.T) {
	root := t.TempDir()
	writeComponent(t, root, "foo", manifestFor("foo"), map[string]string{"index.js": "x"})
	writeComponent(t, root, "bad", "", nil)
	svc := startService(t, root, types.KindExtension)

	stats := svc.Stats()
	assert.Equal(t, 2, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[types.StatusInstalled])
	assert.Equal(t, 1, stats.ByStatus[types.StatusError])
	assert.NotNil(t, stats.Scanned)
}
