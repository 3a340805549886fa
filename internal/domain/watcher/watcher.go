package watcher

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/charlievieth/fastwalk"
	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"github.com/GriffinCanCode/nodegraph/internal/infrastructure/logging"
)

// DefaultDebounce is the quiet period before a rescan runs
const DefaultDebounce = 500 * time.Millisecond

// DefaultPatterns match descriptor and module changes below the install root
var DefaultPatterns = []string{"*/manifest.json", "*/**/*.js", "*/**/*.mjs"}

// Options configures a Watcher
type Options struct {
	Root     string
	Patterns []string
	Debounce time.Duration
	Logger   *zap.Logger

	// OnEvent observes every event that scheduled the task
	OnEvent func(op string)
}

// Watcher schedules a task whenever files under Root matching Patterns change.
type Watcher struct {
	opts  Options
	task  func()
	sched *Scheduler
	log   *zap.Logger

	mu        sync.Mutex
	fs        *fsnotify.Watcher
	cancel    context.CancelFunc
	wg        sync.WaitGroup
	closeOnce sync.Once
}

// New validates the patterns and creates a stopped watcher
func New(opts Options, task func()) (*Watcher, error) {
	if opts.Root == "" {
		return nil, fmt.Errorf("watch root is required")
	}
	if task == nil {
		return nil, fmt.Errorf("task is required")
	}
	if len(opts.Patterns) == 0 {
		opts.Patterns = DefaultPatterns
	}
	for _, p := range opts.Patterns {
		if !doublestar.ValidatePattern(p) {
			return nil, fmt.Errorf("invalid watch pattern %q", p)
		}
	}
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}

	return &Watcher{
		opts:  opts,
		task:  task,
		sched: NewScheduler(),
		log:   logging.OrNop(opts.Logger),
	}, nil
}

// Start begins watching the root and every directory below it.
func (w *Watcher) Start(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("failed to create watcher: %w", err)
	}

	w.mu.Lock()
	w.fs = fw
	w.mu.Unlock()

	if err := w.addTree(w.opts.Root); err != nil {
		fw.Close()
		return fmt.Errorf("failed to watch %s: %w", w.opts.Root, err)
	}

	ctx, cancel := context.WithCancel(ctx)
	w.cancel = cancel

	w.wg.Add(1)
	go w.loop(ctx, fw)

	w.log.Info("Watching for changes",
		zap.String("root", w.opts.Root),
		zap.Strings("patterns", w.opts.Patterns),
		zap.Duration("debounce", w.opts.Debounce))
	return nil
}

// Close stops watching and drops any pending run
func (w *Watcher) Close() error {
	var err error
	w.closeOnce.Do(func() {
		w.sched.Close()
		if w.cancel != nil {
			w.cancel()
		}
		w.mu.Lock()
		if w.fs != nil {
			err = w.fs.Close()
		}
		w.mu.Unlock()
		w.wg.Wait()
	})
	return err
}

// Matches reports whether a root-relative slash path matches any pattern
func (w *Watcher) Matches(rel string) bool {
	for _, p := range w.opts.Patterns {
		if ok, _ := doublestar.Match(p, rel); ok {
			return true
		}
	}
	return false
}

func (w *Watcher) loop(ctx context.Context, fw *fsnotify.Watcher) {
	defer w.wg.Done()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-fw.Events:
			if !ok {
				return
			}
			w.handle(ev)
		case err, ok := <-fw.Errors:
			if !ok {
				return
			}
			w.log.Warn("Watcher error", zap.Error(err))
		}
	}
}

func (w *Watcher) handle(ev fsnotify.Event) {
	rel, err := filepath.Rel(w.opts.Root, ev.Name)
	if err != nil || rel == "." || strings.HasPrefix(rel, "..") {
		return
	}
	rel = filepath.ToSlash(rel)

	if ev.Has(fsnotify.Create) {
		if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
			if err := w.addTree(ev.Name); err != nil {
				w.log.Debug("Failed to watch new directory", zap.String("path", ev.Name), zap.Error(err))
			}
		}
	}

	// Top-level entries appearing or vanishing change the set of catalog rows
	topLevel := !strings.Contains(rel, "/") && !strings.HasPrefix(rel, ".")
	if !topLevel && !w.Matches(rel) {
		return
	}

	w.log.Debug("Change detected", zap.String("path", rel), zap.String("op", ev.Op.String()))
	if w.opts.OnEvent != nil {
		w.opts.OnEvent(opName(ev.Op))
	}
	w.sched.Schedule(w.task, w.opts.Debounce)
}

// addTree registers dir and all of its non-hidden subdirectories.
func (w *Watcher) addTree(dir string) error {
	var mu sync.Mutex
	dirs := []string{dir}
	conf := fastwalk.Config{Follow: false}
	err := fastwalk.Walk(&conf, dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if !d.IsDir() || path == dir {
			return nil
		}
		if strings.HasPrefix(d.Name(), ".") {
			return filepath.SkipDir
		}
		mu.Lock()
		dirs = append(dirs, path)
		mu.Unlock()
		return nil
	})
	if err != nil {
		return err
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fs == nil {
		return errors.New("watcher not started")
	}
	for _, d := range dirs {
		if err := w.fs.Add(d); err != nil && d == dir {
			return err
		}
	}
	return nil
}

func opName(op fsnotify.Op) string {
	switch {
	case op.Has(fsnotify.Create):
		return "create"
	case op.Has(fsnotify.Write):
		return "write"
	case op.Has(fsnotify.Remove):
		return "remove"
	case op.Has(fsnotify.Rename):
		return "rename"
	default:
		return "chmod"
	}
}
