package paths

import (
	"errors"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDataDir(t *testing.T) {
	env := map[string]string{}
	getenv := func(k string) string { return env[k] }
	home := func() (string, error) { return "/home/u", nil }

	tests := []struct {
		name string
		goos string
		env  map[string]string
		want string
	}{
		{"linux default", "linux", nil, filepath.Join("/home/u", ".local", "share", "app")},
		{"linux xdg", "linux", map[string]string{"XDG_DATA_HOME": "/xdg"}, filepath.Join("/xdg", "app")},
		{"darwin", "darwin", nil, filepath.Join("/home/u", "Library", "Application Support", "app")},
		{"windows appdata", "windows", map[string]string{"APPDATA": "/roaming"}, filepath.Join("/roaming", "app")},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env = tt.env
			assert.Equal(t, tt.want, dataDir(tt.goos, "app", getenv, home))
		})
	}
}

func TestDataDirWithoutHome(t *testing.T) {
	got := dataDir("darwin", "app", func(string) string { return "" }, func() (string, error) {
		return "", errors.New("no home")
	})
	assert.Equal(t, "app", filepath.Base(got))
}

func TestValidateID(t *testing.T) {
	assert.NoError(t, ValidateID("my-ext_1.2"))

	for _, bad := range []string{"", ".", "..", ".hidden", "a/b", `a\b`, "c:x"} {
		assert.Error(t, ValidateID(bad), bad)
	}
}

func TestWithin(t *testing.T) {
	root := t.TempDir()

	full, err := Within(root, "dist/index.js")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(root, "dist", "index.js"), full)

	for _, bad := range []string{"", "../x", "/etc/passwd", "a/../../x"} {
		_, err := Within(root, bad)
		assert.Error(t, err, bad)
	}
}
