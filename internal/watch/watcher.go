// SPDX-License-Identifier: MPL-2.0

// Package watch re-runs a callback when watched files change. It backs the
// --watch mode of `anyenv run`: filesystem events under a base directory
// are filtered through doublestar globs, coalesced over a debounce window,
// and delivered as one callback with the full set of changed paths.
package watch

import (
	"context"
	"fmt"
	"io"
	"maps"
	"os"
	"path/filepath"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/fsnotify/fsnotify"
)

// defaultDebounce absorbs editor write-then-rename bursts into one callback.
const defaultDebounce = 500 * time.Millisecond

// defaultIgnores are always excluded: VCS metadata, dependency caches,
// editor swap files, and OS noise.
var defaultIgnores = []string{
	"**/.git/**",
	"**/node_modules/**",
	"**/__pycache__/**",
	"**/*.swp",
	"**/*.swo",
	"**/*~",
	"**/.DS_Store",
}

type (
	// Config holds the parameters for a Watcher.
	Config struct {
		// Patterns are doublestar globs selecting which files trigger the
		// callback (e.g. "**/*.py"). Empty matches every non-ignored file.
		Patterns []string

		// Ignore are extra globs merged with the built-in defaults.
		Ignore []string

		// Debounce is the quiet period after the last event before the
		// callback fires. Non-positive values use defaultDebounce.
		Debounce time.Duration

		// ClearScreen clears the terminal before each callback. No terminal
		// detection is done.
		ClearScreen bool

		// BaseDir is the watched root; patterns resolve relative to it.
		// Empty means the current working directory.
		BaseDir string

		// OnChange receives the deduplicated changed paths, relative to
		// BaseDir. A nil callback is a no-op.
		OnChange func(ctx context.Context, changed []string) error

		// Stdout and Stderr default to os.Stdout / os.Stderr when nil.
		Stdout io.Writer
		Stderr io.Writer
	}

	// Watcher fires a debounced callback when matching files change.
	// Run may be called at most once per Watcher.
	Watcher struct {
		cfg      Config
		fsw      *fsnotify.Watcher
		ignores  []string
		stdout   io.Writer
		stderr   io.Writer
		debounce time.Duration
		baseDir  string
		started  atomic.Bool
	}
)

// New builds a Watcher: it resolves BaseDir, validates the globs, and
// registers every non-ignored directory under BaseDir with fsnotify.
func New(cfg Config) (*Watcher, error) {
	baseDir := cfg.BaseDir
	if baseDir == "" {
		wd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("watch: determine working directory: %w", err)
		}
		baseDir = wd
	}

	absBase, err := filepath.Abs(baseDir)
	if err != nil {
		return nil, fmt.Errorf("watch: resolve base directory: %w", err)
	}

	fsw, err := fsnotify.NewWatcher()
	if err != nil {
		return nil, fmt.Errorf("watch: create fsnotify watcher: %w", err)
	}

	debounce := cfg.Debounce
	if debounce <= 0 {
		debounce = defaultDebounce
	}

	stdout := cfg.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}
	stderr := cfg.Stderr
	if stderr == nil {
		stderr = os.Stderr
	}

	// Bad globs fail here instead of silently never matching.
	if err := checkGlobs(cfg.Patterns, "watch"); err != nil {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}
	if err := checkGlobs(cfg.Ignore, "ignore"); err != nil {
		fsw.Close() //nolint:errcheck // best-effort cleanup
		return nil, err
	}

	ignores := make([]string, 0, len(defaultIgnores)+len(cfg.Ignore))
	ignores = append(ignores, defaultIgnores...)
	ignores = append(ignores, cfg.Ignore...)

	w := &Watcher{
		cfg:      cfg,
		fsw:      fsw,
		ignores:  ignores,
		stdout:   stdout,
		stderr:   stderr,
		debounce: debounce,
		baseDir:  absBase,
	}

	if err := w.watchTree(); err != nil {
		if closeErr := fsw.Close(); closeErr != nil {
			fmt.Fprintf(stderr, "watch: close after init failure: %v\n", closeErr)
		}
		return nil, err
	}

	return w, nil
}

// Run blocks processing events until ctx is cancelled. It returns nil on
// clean cancellation and an error for fatal watcher failures or a second
// call.
func (w *Watcher) Run(ctx context.Context) error {
	if !w.started.CompareAndSwap(false, true) {
		return fmt.Errorf("watch: Run called more than once")
	}

	var (
		mu      sync.Mutex
		dirty   = make(map[string]struct{})
		timer   *time.Timer
		running atomic.Bool
	)

	// flush hands the dirty set to OnChange. It can still be scheduled by
	// time.AfterFunc after cancellation, so ctx.Err is checked first; the
	// callback receives ctx for anything cancellation-sensitive. The
	// skip-if-busy guard keeps a slow callback from overlapping itself.
	flush := func() {
		if ctx.Err() != nil {
			return
		}
		if !running.CompareAndSwap(false, true) {
			fmt.Fprintf(w.stderr, "watch: skipping re-execution (previous run still in progress)\n")
			// Reschedule so the accumulated dirty set is not lost when no
			// further events arrive.
			mu.Lock()
			if timer != nil {
				timer.Reset(w.debounce)
			}
			mu.Unlock()
			return
		}
		defer running.Store(false)

		mu.Lock()
		if len(dirty) == 0 {
			mu.Unlock()
			return
		}
		changed := slices.Collect(maps.Keys(dirty))
		clear(dirty)
		mu.Unlock()

		if w.cfg.ClearScreen {
			// ANSI clear screen, cursor home.
			fmt.Fprint(w.stdout, "\033[2J\033[H")
		}

		if w.cfg.OnChange != nil {
			if err := w.cfg.OnChange(ctx, changed); err != nil {
				fmt.Fprintf(w.stderr, "watch: callback error: %v\n", err)
			}
		}
	}

	defer func() {
		mu.Lock()
		localTimer := timer
		mu.Unlock()
		if localTimer != nil && !localTimer.Stop() {
			select {
			case <-localTimer.C:
			default:
			}
		}
		if closeErr := w.fsw.Close(); closeErr != nil {
			fmt.Fprintf(w.stderr, "watch: close fsnotify: %v\n", closeErr)
		}
	}()

	for {
		select {
		case <-ctx.Done():
			return nil

		case evt, ok := <-w.fsw.Events:
			if !ok {
				return fmt.Errorf("watch: fsnotify event channel closed unexpectedly")
			}

			rel, err := filepath.Rel(w.baseDir, evt.Name)
			if err != nil {
				rel = evt.Name
			}

			if w.isIgnored(rel) || !w.matches(rel) {
				continue
			}

			// New directories join the watch so recursive coverage extends
			// past the initial walk.
			if evt.Has(fsnotify.Create) {
				w.watchNewDir(evt.Name)
			}

			mu.Lock()
			dirty[rel] = struct{}{}
			if timer == nil {
				timer = time.AfterFunc(w.debounce, flush)
			} else {
				timer.Reset(w.debounce)
			}
			mu.Unlock()

		case err, ok := <-w.fsw.Errors:
			if !ok {
				return fmt.Errorf("watch: fsnotify error channel closed unexpectedly")
			}
			// Resource exhaustion (inotify/fd limits) means the watcher is
			// broken; isFatalFsnotifyError is per-platform.
			if isFatalFsnotifyError(err) {
				return fmt.Errorf("watch: fatal fsnotify error: %w", err)
			}
			fmt.Fprintf(w.stderr, "watch: fsnotify error: %v\n", err)
		}
	}
}

// watchTree registers every non-ignored directory under baseDir. Pattern
// filtering happens at event time, so all directories are watched.
func (w *Watcher) watchTree() error {
	walkErr := filepath.WalkDir(w.baseDir, func(path string, d os.DirEntry, walkDirErr error) error {
		if walkDirErr != nil {
			// Inaccessible directories (.git/objects/pack and friends) are
			// skipped, not fatal.
			fmt.Fprintf(w.stderr, "watch: skipping inaccessible path %q: %v\n", path, walkDirErr)
			return nil //nolint:nilerr // intentional skip
		}
		if !d.IsDir() {
			return nil
		}

		rel, relErr := filepath.Rel(w.baseDir, path)
		if relErr != nil {
			return nil //nolint:nilerr // skip paths that cannot be made relative
		}

		// Skip ignored directories entirely rather than descending.
		if w.isIgnored(rel) || w.isIgnored(rel+"/") {
			return filepath.SkipDir
		}

		if addErr := w.fsw.Add(path); addErr != nil {
			return fmt.Errorf("watch: add directory %q: %w", path, addErr)
		}
		return nil
	})
	if walkErr != nil {
		return fmt.Errorf("watch: walk directory tree: %w", walkErr)
	}
	return nil
}

// watchNewDir adds path to the watch if it is a non-ignored directory.
func (w *Watcher) watchNewDir(path string) {
	info, err := os.Stat(path)
	if err != nil || !info.IsDir() {
		return
	}

	rel, err := filepath.Rel(w.baseDir, path)
	if err != nil {
		return
	}

	if w.isIgnored(rel) || w.isIgnored(rel+"/") {
		return
	}

	if addErr := w.fsw.Add(path); addErr != nil {
		fmt.Fprintf(w.stderr, "watch: add new directory %q: %v\n", path, addErr)
	}
}

func (w *Watcher) isIgnored(rel string) bool {
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.ignores {
		if matched, matchErr := doublestar.Match(pat, normalized); matchErr == nil && matched {
			return true
		}
	}
	return false
}

// matches reports whether rel matches a watch pattern. No patterns means
// everything matches.
func (w *Watcher) matches(rel string) bool {
	if len(w.cfg.Patterns) == 0 {
		return true
	}
	normalized := filepath.ToSlash(rel)
	for _, pat := range w.cfg.Patterns {
		if matched, matchErr := doublestar.Match(pat, normalized); matchErr == nil && matched {
			return true
		}
	}
	return false
}

// DefaultIgnores returns a copy of the built-in ignore patterns.
func DefaultIgnores() []string {
	out := make([]string, len(defaultIgnores))
	copy(out, defaultIgnores)
	return out
}

// checkGlobs validates doublestar patterns; label names the flag the
// patterns came from.
func checkGlobs(patterns []string, label string) error {
	for _, pat := range patterns {
		if _, err := doublestar.Match(pat, ""); err != nil {
			return fmt.Errorf("watch: invalid %s pattern %q: %w", label, pat, err)
		}
	}
	return nil
}
