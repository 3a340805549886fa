package installer

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/bytedance/sonic"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/domain/manifest"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodegraph/internal/shared/id"
	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
	"github.com/GriffinCanCode/nodegraph/internal/shared/utils"
)

const (
	// DefaultMaxFileSize is the per-entry ceiling
	DefaultMaxFileSize int64 = 10 * 1024 * 1024
	// DefaultMaxTotalSize bounds the uncompressed size of a whole archive
	DefaultMaxTotalSize int64 = 256 * 1024 * 1024
)

// Options configures an Installer
type Options struct {
	Root         string
	Kind         types.Kind
	MaxFileSize  int64
	MaxTotalSize int64
	Hasher       *utils.Hasher
	Logger       *zap.Logger
	Metrics      *monitoring.Metrics

	// OnChange runs after a successful install or uninstall, typically a catalog rescan
	OnChange func(ctx context.Context) error
}

// Result describes a completed install
type Result struct {
	ExtensionID string `json:"extensionId"`
	Digest      string `json:"digest"`
	Format      Format `json:"format"`
	Main        string `json:"main"`
	Files       int    `json:"files"`
}

// Installer extracts uploaded archives into the install root
type Installer struct {
	opts  Options
	locks *keyedMutex
	log   *zap.Logger
}

// New creates an installer
func New(opts Options) *Installer {
	if opts.Kind == "" {
		opts.Kind = types.KindExtension
	}
	if opts.MaxFileSize <= 0 {
		opts.MaxFileSize = DefaultMaxFileSize
	}
	if opts.MaxTotalSize <= 0 {
		opts.MaxTotalSize = DefaultMaxTotalSize
	}
	if opts.Hasher == nil {
		opts.Hasher = utils.DefaultHasher()
	}
	return &Installer{
		opts:  opts,
		locks: newKeyedMutex(),
		log:   logging.OrNop(opts.Logger),
	}
}

// SetOnChange replaces the post-change hook
func (i *Installer) SetOnChange(fn func(ctx context.Context) error) {
	i.opts.OnChange = fn
}

// Root returns the install root
func (i *Installer) Root() string {
	return i.opts.Root
}

// Install validates and extracts an archive, returning the new identifier.
func (i *Installer) Install(ctx context.Context, data []byte, declaredName string) (*Result, error) {
	timer := monitoring.NewTimer()
	installID := id.NewInstallID()
	log := i.log.With(zap.String("install_id", string(installID)), zap.String("file", declaredName))

	res, err := i.install(ctx, data, declaredName, log)
	i.opts.Metrics.RecordInstall(string(i.opts.Kind), Outcome(err), timer.Elapsed())
	if err != nil {
		log.Warn("Install failed", zap.Error(err), zap.Duration("duration", timer.Elapsed()))
		return nil, err
	}

	log.Info("Installed component",
		zap.String("id", res.ExtensionID),
		zap.String("format", string(res.Format)),
		zap.Int("files", res.Files),
		zap.Duration("duration", timer.Elapsed()))

	if i.opts.OnChange != nil {
		if err := i.opts.OnChange(ctx); err != nil {
			log.Error("Rescan after install failed", zap.Error(err))
		}
	}
	return res, nil
}

func (i *Installer) install(ctx context.Context, data []byte, declaredName string, log *zap.Logger) (*Result, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	a, err := openArchive(data, declaredName, i.opts.MaxFileSize, i.opts.MaxTotalSize)
	if err != nil {
		return nil, err
	}

	descEntry, prefix, err := a.locateManifest()
	if err != nil {
		return nil, err
	}

	raw, err := readEntry(descEntry, i.opts.MaxFileSize)
	if err != nil {
		return nil, err
	}

	m, err := manifest.ParseFor(i.opts.Kind, raw)
	if err != nil {
		return nil, err
	}

	// componentName is the single source of truth for the directory name
	compID := m.ID
	if err := paths.ValidateID(compID); err != nil {
		return nil, &types.ManifestError{Field: "componentName", Reason: err.Error()}
	}

	unlock := i.locks.Lock(compID)
	defer unlock()

	target := filepath.Join(i.opts.Root, compID)
	if _, err := os.Lstat(target); err == nil {
		return nil, fmt.Errorf("%w: %s", types.ErrAlreadyExists, compID)
	} else if !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("failed to stat %s: %w", target, err)
	}

	a.strip(prefix)
	if err := a.checkSizes(i.opts.MaxFileSize); err != nil {
		return nil, err
	}

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	if err := os.MkdirAll(i.opts.Root, 0755); err != nil {
		return nil, fmt.Errorf("failed to create install root: %w", err)
	}
	if err := os.Mkdir(target, 0755); err != nil {
		if errors.Is(err, os.ErrExist) {
			return nil, fmt.Errorf("%w: %s", types.ErrAlreadyExists, compID)
		}
		return nil, fmt.Errorf("failed to create %s: %w", target, err)
	}

	rollback := func(cause error) error {
		if rmErr := os.RemoveAll(target); rmErr != nil {
			log.Error("Rollback failed", zap.String("path", target), zap.Error(rmErr))
		}
		return cause
	}

	files, err := a.extract(target, i.opts.MaxFileSize)
	if err != nil {
		return nil, rollback(err)
	}

	main, err := manifest.ResolveMain(target, m)
	if err != nil {
		if errors.Is(err, types.ErrMainFileMissing) {
			return nil, rollback(err)
		}
		return nil, rollback(fmt.Errorf("%w: %v", types.ErrMainFileMissing, err))
	}

	digest := i.opts.Hasher.Digest(data)
	record := types.InstallRecord{
		Digest:      digest,
		SourceFile:  filepath.Base(declaredName),
		InstalledAt: time.Now().UTC(),
	}
	if err := writeRecord(target, record); err != nil {
		return nil, rollback(err)
	}

	return &Result{
		ExtensionID: compID,
		Digest:      digest,
		Format:      a.format,
		Main:        main,
		Files:       files,
	}, nil
}

// Uninstall removes an installed component directory.
func (i *Installer) Uninstall(ctx context.Context, compID string) error {
	if err := paths.ValidateID(compID); err != nil {
		return fmt.Errorf("%w: %s", types.ErrNotFound, compID)
	}

	unlock := i.locks.Lock(compID)
	target := filepath.Join(i.opts.Root, compID)
	info, err := os.Lstat(target)
	if err != nil || !info.IsDir() {
		unlock()
		return fmt.Errorf("%w: %s", types.ErrNotFound, compID)
	}
	err = os.RemoveAll(target)
	unlock()
	if err != nil {
		return fmt.Errorf("failed to remove %s: %w", compID, err)
	}

	i.log.Info("Uninstalled component", zap.String("id", compID))

	if i.opts.OnChange != nil {
		if err := i.opts.OnChange(ctx); err != nil {
			i.log.Error("Rescan after uninstall failed", zap.Error(err))
		}
	}
	return nil
}

// ReadRecord loads the install record of a component directory, if present.
func ReadRecord(dir string) (*types.InstallRecord, error) {
	raw, err := os.ReadFile(filepath.Join(dir, paths.InstallRecordFile))
	if err != nil {
		return nil, err
	}
	var rec types.InstallRecord
	if err := sonic.Unmarshal(raw, &rec); err != nil {
		return nil, fmt.Errorf("failed to decode install record: %w", err)
	}
	return &rec, nil
}

func writeRecord(dir string, rec types.InstallRecord) error {
	raw, err := sonic.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode install record: %w", err)
	}
	if err := os.WriteFile(filepath.Join(dir, paths.InstallRecordFile), raw, 0644); err != nil {
		return fmt.Errorf("failed to write install record: %w", err)
	}
	return nil
}

func readEntry(e *entry, limit int64) ([]byte, error) {
	if e.size > limit {
		return nil, &types.FileTooLargeError{Entry: e.name, Size: e.size, Limit: limit}
	}
	r, err := e.reader()
	if err != nil {
		return nil, invalidArchive("open %s: %v", e.name, err)
	}
	defer r.Close()

	raw, err := io.ReadAll(io.LimitReader(r, limit+1))
	if err != nil {
		return nil, invalidArchive("read %s: %v", e.name, err)
	}
	if int64(len(raw)) > limit {
		return nil, &types.FileTooLargeError{Entry: e.name, Size: int64(len(raw)), Limit: limit}
	}
	return raw, nil
}

// Outcome classifies an install error for metrics labels.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case errors.Is(err, types.ErrInvalidManifest):
		return "invalid_manifest"
	case errors.Is(err, types.ErrMissingManifest):
		return "missing_manifest"
	case errors.Is(err, types.ErrAlreadyExists):
		return "already_exists"
	case errors.Is(err, types.ErrFileTooLarge):
		return "file_too_large"
	case errors.Is(err, types.ErrMainFileMissing):
		return "main_missing"
	case errors.Is(err, types.ErrInvalidArchive):
		return "invalid_archive"
	default:
		return "error"
	}
}
