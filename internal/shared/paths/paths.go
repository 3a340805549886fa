package paths

import (
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"strings"
)

// Install root directory names under the application data directory
const (
	Extensions = "extensions"
	Nodes      = "nodes"
)

// StatusFile holds operator-chosen enabled/disabled states inside an install root
const StatusFile = ".status.json"

// InstallRecordFile is written by the installer inside each component directory
const InstallRecordFile = ".install.json"

// DataDir returns the per-OS application-data directory for appName.
//
//	windows: %APPDATA%\<app>
//	darwin:  ~/Library/Application Support/<app>
//	other:   $XDG_DATA_HOME/<app> or ~/.local/share/<app>
func DataDir(appName string) string {
	return dataDir(runtime.GOOS, appName, os.Getenv, os.UserHomeDir)
}

func dataDir(goos, appName string, getenv func(string) string, home func() (string, error)) string {
	base := ""
	switch goos {
	case "windows":
		base = getenv("APPDATA")
		if base == "" {
			if h, err := home(); err == nil {
				base = filepath.Join(h, "AppData", "Roaming")
			}
		}
	case "darwin":
		if h, err := home(); err == nil {
			base = filepath.Join(h, "Library", "Application Support")
		}
	default:
		base = getenv("XDG_DATA_HOME")
		if base == "" {
			if h, err := home(); err == nil {
				base = filepath.Join(h, ".local", "share")
			}
		}
	}
	if base == "" {
		base = os.TempDir()
	}
	return filepath.Join(base, appName)
}

// ExtensionsDir returns the default extension install root
func ExtensionsDir(appName string) string {
	return filepath.Join(DataDir(appName), Extensions)
}

// NodesDir returns the default node install root
func NodesDir(appName string) string {
	return filepath.Join(DataDir(appName), Nodes)
}

// ValidateID checks that id is usable as a single directory name
func ValidateID(id string) error {
	if id == "" {
		return fmt.Errorf("id cannot be empty")
	}
	if id == "." || id == ".." || strings.HasPrefix(id, ".") {
		return fmt.Errorf("id cannot start with a dot")
	}
	if strings.ContainsAny(id, `/\:`) || filepath.IsAbs(id) {
		return fmt.Errorf("id cannot contain path separators")
	}
	return nil
}

// Within joins rel onto root and reports an error if the result escapes root.
func Within(root, rel string) (string, error) {
	if rel == "" {
		return "", fmt.Errorf("empty path")
	}
	if filepath.IsAbs(rel) || strings.HasPrefix(rel, "/") || strings.HasPrefix(rel, `\`) {
		return "", fmt.Errorf("absolute path %q not allowed", rel)
	}
	cleanRoot := filepath.Clean(root)
	full := filepath.Join(cleanRoot, filepath.FromSlash(rel))
	if full != cleanRoot && !strings.HasPrefix(full, cleanRoot+string(os.PathSeparator)) {
		return "", fmt.Errorf("path %q escapes %s", rel, root)
	}
	return full, nil
}
