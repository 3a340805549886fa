package catalog

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync/atomic"

	"github.com/Masterminds/semver/v3"
	"github.com/charlievieth/fastwalk"
	"github.com/microcosm-cc/bluemonday"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/domain/installer"
	"github.com/GriffinCanCode/nodegraph/internal/domain/manifest"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// ScannerOptions configures a Scanner
type ScannerOptions struct {
	Root       string
	Kind       types.Kind
	BaseURL    string
	AppVersion string
	Logger     *zap.Logger
}

// Scanner builds catalog entries from the install root, one per directory.
type Scanner struct {
	opts   ScannerOptions
	policy *bluemonday.Policy
	host   *semver.Version
	log    *zap.Logger
}

// NewScanner creates a scanner
func NewScanner(opts ScannerOptions) *Scanner {
	if opts.Kind == "" {
		opts.Kind = types.KindExtension
	}
	s := &Scanner{
		opts:   opts,
		policy: bluemonday.StrictPolicy(),
		log:    logging.OrNop(opts.Logger),
	}
	if opts.AppVersion != "" {
		if v, err := semver.NewVersion(opts.AppVersion); err == nil {
			s.host = v
		} else {
			s.log.Warn("Host version is not semver", zap.String("version", opts.AppVersion))
		}
	}
	return s
}

// Scan lists the immediate subdirectories of the root. A missing root yields
// an empty catalog. Broken directories become error entries.
func (s *Scanner) Scan(ctx context.Context) ([]types.CatalogEntry, error) {
	dirents, err := os.ReadDir(s.opts.Root)
	if errors.Is(err, os.ErrNotExist) {
		return []types.CatalogEntry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read install root: %w", err)
	}

	entries := make([]types.CatalogEntry, 0, len(dirents))
	for _, d := range dirents {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !d.IsDir() || strings.HasPrefix(d.Name(), ".") {
			continue
		}
		entries = append(entries, s.ScanDir(d.Name()))
	}

	sort.Slice(entries, func(i, j int) bool { return entries[i].ID < entries[j].ID })
	return entries, nil
}

// ScanDir builds the entry for a single directory under the root.
func (s *Scanner) ScanDir(name string) types.CatalogEntry {
	dir := filepath.Join(s.opts.Root, name)
	descPath := filepath.Join(dir, manifest.FileName)

	info, err := os.Stat(descPath)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return s.errorEntry(name, dir, fmt.Sprintf("%s not found", manifest.FileName))
		}
		return s.errorEntry(name, dir, fmt.Sprintf("failed to stat %s: %v", manifest.FileName, err))
	}

	raw, err := os.ReadFile(descPath)
	if err != nil {
		return s.errorEntry(name, dir, fmt.Sprintf("failed to read %s: %v", manifest.FileName, err))
	}

	m, err := manifest.ParseFor(s.opts.Kind, raw)
	if err != nil {
		return s.errorEntry(name, dir, err.Error())
	}

	main, err := manifest.ResolveMain(dir, m)
	if err != nil {
		return s.errorEntry(name, dir, err.Error())
	}

	s.checkAppVersion(name, m.MinAppVersion)

	entry := types.CatalogEntry{
		ID:            name,
		Kind:          s.opts.Kind,
		Name:          s.sanitize(m.Name),
		ComponentName: m.ID,
		Version:       m.Version,
		Author:        s.sanitize(m.Author),
		Description:   s.sanitize(m.Description),
		Main:          main,
		Tags:          m.Tags,
		MinAppVersion: m.MinAppVersion,
		Icon:          m.Icon,
		Category:      m.Category,
		URL:           s.entryURL(name),
		File:          main,
		InstalledAt:   info.ModTime().UTC(),
		UpdatedAt:     info.ModTime().UTC(),
		Status:        types.StatusInstalled,
	}

	if rec, err := installer.ReadRecord(dir); err == nil {
		entry.Digest = rec.Digest
		if !rec.InstalledAt.IsZero() {
			entry.InstalledAt = rec.InstalledAt.UTC()
		}
	}
	if size, err := dirSize(dir); err == nil {
		entry.Size = size
	} else {
		s.log.Debug("Failed to compute size", zap.String("id", name), zap.Error(err))
	}

	return entry
}

func (s *Scanner) errorEntry(name, dir, reason string) types.CatalogEntry {
	s.log.Warn("Invalid component directory", zap.String("id", name), zap.String("reason", reason))

	entry := types.CatalogEntry{
		ID:           name,
		Kind:         s.opts.Kind,
		Name:         fmt.Sprintf("Invalid %s (%s)", s.opts.Kind.Label(), name),
		Status:       types.StatusError,
		ErrorMessage: reason,
	}
	if info, err := os.Stat(dir); err == nil {
		entry.InstalledAt = info.ModTime().UTC()
		entry.UpdatedAt = info.ModTime().UTC()
	}
	return entry
}

func (s *Scanner) sanitize(text string) string {
	return strings.TrimSpace(s.policy.Sanitize(text))
}

func (s *Scanner) entryURL(id string) string {
	base := strings.TrimRight(s.opts.BaseURL, "/")
	return base + "/" + s.opts.Kind.Prefix() + "/" + url.PathEscape(id)
}

// checkAppVersion warns when a component asks for a newer host. It is never enforced.
func (s *Scanner) checkAppVersion(id, minVersion string) {
	if minVersion == "" || s.host == nil {
		return
	}
	want, err := semver.NewVersion(minVersion)
	if err != nil {
		s.log.Warn("Unparseable minAppVersion", zap.String("id", id), zap.String("minAppVersion", minVersion))
		return
	}
	if s.host.LessThan(want) {
		s.log.Warn("Component targets a newer host version",
			zap.String("id", id),
			zap.String("minAppVersion", want.String()),
			zap.String("hostVersion", s.host.String()))
	}
}

// dirSize totals regular file sizes below dir
func dirSize(dir string) (int64, error) {
	var total int64
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil || !d.Type().IsRegular() {
			return nil
		}
		if info, err := d.Info(); err == nil {
			atomic.AddInt64(&total, info.Size())
		}
		return nil
	})
	return total, err
}
