package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/domain/installer"
	"github.com/GriffinCanCode/nodegraph/internal/domain/watcher"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/monitoring"
	"github.com/GriffinCanCode/nodegraph/internal/shared/paths"
	"github.com/GriffinCanCode/nodegraph/internal/shared/types"
)

// Options configures a catalog Service
type Options struct {
	Root        string
	Kind        types.Kind
	BaseURL     string
	AppVersion  string
	MaxFileSize int64
	Watch       bool
	Debounce    time.Duration
	Patterns    []string
	Logger      *zap.Logger
	Metrics     *monitoring.Metrics
}

// Event announces a newly published snapshot
type Event struct {
	Type    string     `json:"type"`
	Kind    types.Kind `json:"kind"`
	Version uint64     `json:"version"`
	Count   int        `json:"count"`
}

// Service owns the catalog of one install root.
type Service struct {
	opts      Options
	log       *zap.Logger
	scanner   *Scanner
	installer *installer.Installer

	// mu serializes snapshot writers; readers only load snap
	mu       sync.Mutex
	snap     atomic.Pointer[Snapshot]
	statuses *statusStore
	watcher  *watcher.Watcher

	subsMu sync.Mutex
	subs   map[chan Event]struct{}
}

// New creates a stopped catalog service
func New(opts Options) *Service {
	if opts.Kind == "" {
		opts.Kind = types.KindExtension
	}
	log := logging.OrNop(opts.Logger)

	s := &Service{
		opts: opts,
		log:  log,
		scanner: NewScanner(ScannerOptions{
			Root:       opts.Root,
			Kind:       opts.Kind,
			BaseURL:    opts.BaseURL,
			AppVersion: opts.AppVersion,
			Logger:     log.Named("scanner"),
		}),
		statuses: &statusStore{path: filepath.Join(opts.Root, paths.StatusFile), values: map[string]types.Status{}},
		subs:     make(map[chan Event]struct{}),
	}
	s.installer = installer.New(installer.Options{
		Root:        opts.Root,
		Kind:        opts.Kind,
		MaxFileSize: opts.MaxFileSize,
		Logger:      log.Named("installer"),
		Metrics:     opts.Metrics,
		OnChange: func(ctx context.Context) error {
			_, err := s.Rescan(ctx)
			return err
		},
	})
	s.snap.Store(newSnapshot(0, time.Time{}, nil))
	return s
}

// Start ensures the root exists, performs the initial scan and starts the watcher.
func (s *Service) Start(ctx context.Context) error {
	if err := os.MkdirAll(s.opts.Root, 0755); err != nil {
		return fmt.Errorf("failed to create install root: %w", err)
	}

	store, err := loadStatusStore(s.opts.Root)
	if err != nil {
		s.log.Warn("Ignoring unreadable status file", zap.Error(err))
	}
	s.mu.Lock()
	s.statuses = store
	s.mu.Unlock()

	snap, err := s.Rescan(ctx)
	if err != nil {
		return fmt.Errorf("initial scan failed: %w", err)
	}

	if s.opts.Watch {
		w, err := watcher.New(watcher.Options{
			Root:     s.opts.Root,
			Patterns: s.opts.Patterns,
			Debounce: s.opts.Debounce,
			Logger:   s.log.Named("watcher"),
			OnEvent: func(op string) {
				s.opts.Metrics.RecordWatcherEvent(string(s.opts.Kind), op)
			},
		}, s.rescanFromWatcher)
		if err != nil {
			return fmt.Errorf("failed to create watcher: %w", err)
		}
		if err := w.Start(context.WithoutCancel(ctx)); err != nil {
			return fmt.Errorf("failed to start watcher: %w", err)
		}
		s.watcher = w
	}

	s.log.Info("Catalog ready",
		zap.String("root", s.opts.Root),
		zap.Int("entries", snap.Len()),
		zap.Bool("watch", s.opts.Watch))
	return nil
}

// Close stops the watcher and closes every subscription
func (s *Service) Close() error {
	var err error
	if s.watcher != nil {
		err = s.watcher.Close()
	}

	s.subsMu.Lock()
	for ch := range s.subs {
		close(ch)
		delete(s.subs, ch)
	}
	s.subsMu.Unlock()
	return err
}

func (s *Service) rescanFromWatcher() {
	if _, err := s.Rescan(context.Background()); err != nil {
		s.log.Error("Rescan after change failed", zap.Error(err))
	}
}

// Kind returns the component kind served by this catalog
func (s *Service) Kind() types.Kind {
	return s.opts.Kind
}

// Path returns the install root
func (s *Service) Path() string {
	return s.opts.Root
}

// Exists reports whether the install root is present on disk
func (s *Service) Exists() bool {
	info, err := os.Stat(s.opts.Root)
	return err == nil && info.IsDir()
}

// Snapshot returns the current published snapshot
func (s *Service) Snapshot() *Snapshot {
	return s.snap.Load()
}

// List returns the entries of the most recent snapshot
func (s *Service) List() []types.CatalogEntry {
	return s.snap.Load().Entries()
}

// Get returns the entry for id
func (s *Service) Get(id string) (types.CatalogEntry, error) {
	e, ok := s.snap.Load().Get(id)
	if !ok {
		return types.CatalogEntry{}, fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	return e, nil
}

// Stats summarizes the current snapshot
func (s *Service) Stats() types.CatalogStats {
	return s.snap.Load().Stats(s.opts.Kind)
}

// ReadFile returns the bytes of the entry's main module. Error entries and
// missing files report ErrNotFound.
func (s *Service) ReadFile(id string) ([]byte, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, err
	}
	if !e.Usable() {
		return nil, fmt.Errorf("%w: %s has no readable module", types.ErrNotFound, id)
	}
	data, _, err := s.ReadAsset(id, e.File)
	return data, err
}

// ReadAsset returns a file inside the entry's directory along with its path on disk.
func (s *Service) ReadAsset(id, rel string) ([]byte, string, error) {
	e, err := s.Get(id)
	if err != nil {
		return nil, "", err
	}
	if e.Status == types.StatusError {
		return nil, "", fmt.Errorf("%w: %s is invalid", types.ErrNotFound, id)
	}

	full, err := paths.Within(filepath.Join(s.opts.Root, id), rel)
	if err != nil {
		return nil, "", fmt.Errorf("%w: %v", types.ErrNotFound, err)
	}
	info, err := os.Stat(full)
	if err != nil || info.IsDir() {
		return nil, "", fmt.Errorf("%w: %s/%s", types.ErrNotFound, id, rel)
	}

	data, err := os.ReadFile(full)
	if err != nil {
		return nil, "", fmt.Errorf("failed to read %s/%s: %w", id, rel, err)
	}
	return data, full, nil
}

// SetStatus records an operator choice of enabled or disabled. It is metadata
// only and never loads or unloads code.
func (s *Service) SetStatus(id string, status types.Status) error {
	if !status.Toggleable() {
		return fmt.Errorf("%w: %q", types.ErrInvalidStatus, status)
	}

	s.mu.Lock()
	cur := s.snap.Load()
	e, ok := cur.Get(id)
	if !ok {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s", types.ErrNotFound, id)
	}
	if e.Status == types.StatusError {
		s.mu.Unlock()
		return fmt.Errorf("%w: %s is in error state", types.ErrInvalidStatus, id)
	}

	if err := s.statuses.set(id, status); err != nil {
		s.mu.Unlock()
		return err
	}

	e.Status = status
	e.UpdatedAt = time.Now().UTC()
	next := cur.with(e)
	s.snap.Store(next)
	s.publish(next)
	s.mu.Unlock()

	s.log.Info("Status changed", zap.String("id", id), zap.String("status", string(status)))
	return nil
}

// Delete removes an installed component and rescans
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(id); err != nil {
		return err
	}
	return s.installer.Uninstall(ctx, id)
}

// Install delegates to the archive installer
func (s *Service) Install(ctx context.Context, data []byte, declaredName string) (*installer.Result, error) {
	return s.installer.Install(ctx, data, declaredName)
}

// Rescan replaces the catalog with a fresh scan of the root.
func (s *Service) Rescan(ctx context.Context) (*Snapshot, error) {
	timer := monitoring.NewTimer()

	s.mu.Lock()
	entries, err := s.scanner.Scan(ctx)
	if err != nil {
		s.mu.Unlock()
		s.opts.Metrics.RecordScan(string(s.opts.Kind), timer.Elapsed(), nil, err)
		return nil, err
	}

	ids := make(map[string]struct{}, len(entries))
	for i := range entries {
		ids[entries[i].ID] = struct{}{}
		if entries[i].Status == types.StatusError {
			continue
		}
		if st, ok := s.statuses.get(entries[i].ID); ok {
			entries[i].Status = st
		}
	}
	if err := s.statuses.retain(ids); err != nil && !errors.Is(err, os.ErrNotExist) {
		s.log.Warn("Failed to prune status file", zap.Error(err))
	}

	next := newSnapshot(s.snap.Load().Version+1, time.Now().UTC(), entries)
	s.snap.Store(next)
	s.publish(next)
	s.mu.Unlock()

	byStatus := make(map[string]int)
	for _, e := range entries {
		byStatus[string(e.Status)]++
	}
	s.opts.Metrics.RecordScan(string(s.opts.Kind), timer.Elapsed(), byStatus, nil)
	s.log.Debug("Catalog rescanned",
		zap.Uint64("version", next.Version),
		zap.Int("entries", next.Len()),
		zap.Duration("duration", timer.Elapsed()))

	return next, nil
}

// Subscribe returns a channel of snapshot events and a function to stop
// receiving them. Slow subscribers miss events rather than blocking writers.
func (s *Service) Subscribe() (<-chan Event, func()) {
	ch := make(chan Event, 8)
	s.subsMu.Lock()
	s.subs[ch] = struct{}{}
	s.subsMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subsMu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.subsMu.Unlock()
		})
	}
}

// publish must be called with mu held so subscribers see versions in order.
// It never blocks: subscribers only take subsMu.
func (s *Service) publish(snap *Snapshot) {
	ev := Event{Type: "catalog", Kind: s.opts.Kind, Version: snap.Version, Count: snap.Len()}

	s.subsMu.Lock()
	defer s.subsMu.Unlock()
	for ch := range s.subs {
		select {
		case ch <- ev:
		default:
		}
	}
}
