package watch

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/log"
	"github.com/fsnotify/fsnotify"

	"github.com/bgricker/taptree/internal/filter"
	"github.com/bgricker/taptree/internal/logging"
)

// DefaultDebounce coalesces bursts of writes from editors and formatters.
const DefaultDebounce = 200 * time.Millisecond

// Target receives the triggers produced by the watcher.
type Target interface {
	Refresh(ctx context.Context, root, path string) error
	Forget(path string) int
}

// Options configure a Watcher.
type Options struct {
	Roots []string
	// Filter selects files by slash-separated path relative to their root.
	Filter   filter.Set
	Debounce time.Duration
	Logger   log.Logger
	// OnChange is called after the tree changed because of a batch of events.
	OnChange func()
}

// Watcher turns filesystem events under the workspace roots into refreshes
// and removals. All triggers run on the goroutine calling Run.
type Watcher struct {
	target Target
	opts   Options
	fs     *fsnotify.Watcher
	log    log.Logger

	pending map[string]string // path -> root
}

// New creates a watcher covering every directory below opts.Roots, skipping
// node_modules and dot-directories.
func New(target Target, opts Options) (*Watcher, error) {
	if opts.Debounce <= 0 {
		opts.Debounce = DefaultDebounce
	}
	if opts.Logger == nil {
		opts.Logger = logging.Discard()
	}
	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("create fsnotify watcher: %w", err)
	}
	w := &Watcher{
		target:  target,
		opts:    opts,
		fs:      fsw,
		log:     opts.Logger,
		pending: make(map[string]string),
	}
	w.opts.Roots = make([]string, 0, len(opts.Roots))
	for _, root := range opts.Roots {
		root = filepath.Clean(root)
		w.opts.Roots = append(w.opts.Roots, root)
		if err := w.addTree(root); err != nil {
			_ = fsw.Close()
			return nil, err
		}
	}
	return w, nil
}

func (w *Watcher) addTree(dir string) error {
	return filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			if path != dir && errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return fmt.Errorf("walk %s: %w", path, err)
		}
		if !d.IsDir() {
			return nil
		}
		if path != dir && skipDir(d.Name()) {
			return filepath.SkipDir
		}
		if err := w.fs.Add(path); err != nil {
			return fmt.Errorf("watch %s: %w", path, err)
		}
		return nil
	})
}

func skipDir(name string) bool {
	return name == "node_modules" || strings.HasPrefix(name, ".")
}

// Run processes events until ctx is done, then closes the watcher.
func (w *Watcher) Run(ctx context.Context) error {
	defer w.fs.Close()

	var timer *time.Timer
	var fire <-chan time.Time
	defer func() {
		if timer != nil {
			timer.Stop()
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case event, ok := <-w.fs.Events:
			if !ok {
				return nil
			}
			if w.handle(event) {
				if timer == nil {
					timer = time.NewTimer(w.opts.Debounce)
				} else {
					timer.Reset(w.opts.Debounce)
				}
				fire = timer.C
			}
		case err, ok := <-w.fs.Errors:
			if !ok {
				return nil
			}
			w.log.Error("Watcher error", "err", err)
		case <-fire:
			fire = nil
			w.flush(ctx)
		}
	}
}

// handle reacts to one event and reports whether a refresh is now pending.
func (w *Watcher) handle(event fsnotify.Event) bool {
	root, rel, ok := w.locate(event.Name)
	if !ok {
		return false
	}
	w.log.Debug("Watch event", "op", event.Op.String(), "path", rel)

	switch {
	case event.Has(fsnotify.Remove) || event.Has(fsnotify.Rename):
		delete(w.pending, event.Name)
		if w.opts.Filter.Match(rel) && w.target.Forget(event.Name) > 0 {
			w.changed()
		}
		return false
	case event.Has(fsnotify.Create) || event.Has(fsnotify.Write):
		info, err := os.Stat(event.Name)
		if err != nil {
			return false
		}
		if info.IsDir() {
			if event.Has(fsnotify.Create) && !skipDir(filepath.Base(event.Name)) {
				if err := w.addTree(event.Name); err != nil {
					w.log.Warn("Cannot watch new directory", "path", rel, "err", err)
				}
			}
			return false
		}
		if !w.opts.Filter.Match(rel) {
			return false
		}
		w.pending[event.Name] = root
		return true
	}
	return false
}

func (w *Watcher) locate(path string) (root, rel string, ok bool) {
	for _, r := range w.opts.Roots {
		candidate, err := filepath.Rel(r, path)
		if err != nil || candidate == "." || candidate == ".." || strings.HasPrefix(candidate, ".."+string(filepath.Separator)) {
			continue
		}
		if len(r) > len(root) {
			root, rel = r, filepath.ToSlash(candidate)
		}
	}
	return root, rel, root != ""
}

func (w *Watcher) flush(ctx context.Context) {
	if len(w.pending) == 0 {
		return
	}
	paths := make([]string, 0, len(w.pending))
	for p := range w.pending {
		paths = append(paths, p)
	}
	sort.Strings(paths)

	for _, path := range paths {
		root := w.pending[path]
		delete(w.pending, path)
		w.log.Info("Refreshing changed file", "path", path)
		if err := w.target.Refresh(ctx, root, path); err != nil {
			w.log.Warn("Refresh failed", "path", path, "err", err)
		}
		if ctx.Err() != nil {
			return
		}
	}
	w.changed()
}

func (w *Watcher) changed() {
	if w.opts.OnChange != nil {
		w.opts.OnChange()
	}
}
