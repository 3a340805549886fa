package manifest

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// CheckMain verifies that main names a regular file inside dir.
func CheckMain(dir, main string) error {
	full, err := paths.Within(dir, main)
	if err != nil {
		return fmt.Errorf("%w: %s: %v", types.ErrMainFileMissing, main, err)
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return fmt.Errorf("%w: %s", types.ErrMainFileMissing, main)
	}
	return nil
}

// InferNodeMain returns the first existing candidate of index.js and <dir>.js.
func InferNodeMain(dir string) (string, error) {
	candidates := []string{"index.js", filepath.Base(dir) + ".js"}
	for _, c := range candidates {
		if CheckMain(dir, c) == nil {
			return c, nil
		}
	}
	return "", fmt.Errorf("%w: none of %v", types.ErrMainFileMissing, candidates)
}

// ResolveMain returns the main file of m inside dir, inferring it for nodes.
func ResolveMain(dir string, m *Manifest) (string, error) {
	if m.Main == "" {
		if m.Kind == types.KindNode {
			return InferNodeMain(dir)
		}
		return "", types.MissingField("main")
	}
	if err := CheckMain(dir, m.Main); err != nil {
		return "", err
	}
	return m.Main, nil
}
