// Package watch turns bursts of filesystem events into single incremental
// updates.
package watch

import (
	"context"
	"errors"
	"io/fs"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/0x5457/repograph/internal/constants"
	"github.com/0x5457/repograph/internal/indexer/pipeline"
	"github.com/0x5457/repograph/internal/logging"
)

type Options struct {
	Debounce time.Duration
	// Exclude holds doublestar globs over repository-relative paths.
	Exclude []string
	Logger  *slog.Logger
}

// Handler receives the repository-relative paths touched since the last
// call. Errors are logged and do not stop the watcher.
type Handler func(ctx context.Context, changed []string) error

type Watcher struct {
	root string
	opt  Options
	log  *slog.Logger
	fn   Handler
}

func New(root string, fn Handler, opt Options) *Watcher {
	if opt.Debounce <= 0 {
		opt.Debounce = constants.DefaultDebounce
	}
	return &Watcher{root: filepath.Clean(root), opt: opt, log: logging.OrDiscard(opt.Logger), fn: fn}
}

// Run blocks until ctx is done or the underlying watcher fails.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer func() { _ = fw.Close() }()

	if err := w.addRecursive(fw, w.root); err != nil {
		return err
	}
	w.log.Info("watching", "root", w.root, "debounce", w.opt.Debounce)

	timer := time.NewTimer(time.Hour)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()
	pending := map[string]bool{}

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-fw.Events:
			if !ok {
				return nil
			}
			rel, skip := w.relevant(ev.Name)
			if skip {
				continue
			}
			if ev.Op.Has(fsnotify.Create) {
				if info, err := os.Stat(ev.Name); err == nil && info.IsDir() {
					if err := w.addRecursive(fw, ev.Name); err != nil {
						w.log.Warn("watch directory", "path", rel, "err", err)
					}
				}
			}
			if !ev.Op.Has(fsnotify.Create) && !ev.Op.Has(fsnotify.Write) &&
				!ev.Op.Has(fsnotify.Remove) && !ev.Op.Has(fsnotify.Rename) {
				continue
			}
			pending[rel] = true
			timer.Reset(w.opt.Debounce)
		case <-timer.C:
			if len(pending) == 0 {
				continue
			}
			changed := make([]string, 0, len(pending))
			for p := range pending {
				changed = append(changed, p)
			}
			sort.Strings(changed)
			pending = map[string]bool{}
			if err := w.fn(ctx, changed); err != nil {
				if errors.Is(err, context.Canceled) && ctx.Err() != nil {
					return nil
				}
				w.log.Error("update after change", "files", len(changed), "err", err)
			}
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			return err
		}
	}
}

func (w *Watcher) addRecursive(fw *fsnotify.Watcher, dir string) error {
	return filepath.WalkDir(dir, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if p == dir {
				return err
			}
			return nil
		}
		if !e.IsDir() {
			return nil
		}
		if p != w.root {
			if _, skip := w.relevant(p); skip {
				return filepath.SkipDir
			}
		}
		return fw.Add(p)
	})
}

// relevant maps an event path to its repository-relative form and reports
// whether it should be ignored.
func (w *Watcher) relevant(p string) (string, bool) {
	rel, err := filepath.Rel(w.root, p)
	if err != nil || strings.HasPrefix(rel, "..") {
		return "", true
	}
	rel = filepath.ToSlash(rel)
	for _, part := range strings.Split(rel, "/") {
		if pipeline.SkipDirs[part] {
			return rel, true
		}
	}
	base := filepath.Base(p)
	if strings.HasSuffix(base, ".swp") || strings.HasSuffix(base, "~") || strings.HasPrefix(base, ".#") {
		return rel, true
	}
	return rel, pipeline.Excluded(w.opt.Exclude, rel)
}
