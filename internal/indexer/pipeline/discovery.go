package pipeline

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path"
	"path/filepath"
	"sort"

	"github.com/bmatcuk/doublestar/v4"
	"golang.org/x/mod/modfile"
)

// SkipDirs are never descended into.
var SkipDirs = map[string]bool{
	".git":         true,
	".hg":          true,
	".svn":         true,
	"node_modules": true,
	"vendor":       true,
	"venv":         true,
	".venv":        true,
	"__pycache__":  true,
	"dist":         true,
	"build":        true,
	".repograph":   true,
}

type goModule struct {
	dir  string // slash-separated, "." for the root
	path string
}

type sourceTree struct {
	paths   []string
	modules []goModule
}

// Excluded reports whether rel matches any of the doublestar globs.
func Excluded(globs []string, rel string) bool {
	for _, g := range globs {
		if ok, err := doublestar.Match(g, rel); err == nil && ok {
			return true
		}
	}
	return false
}

// discover lists the indexable files under root as sorted slash-separated
// relative paths, together with the Go modules declared in the tree.
func (i *Indexer) discover(ctx context.Context, root string) (*sourceTree, error) {
	tree := &sourceTree{}
	err := filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			i.log.Warn("skip unreadable path", "file", p, "err", err)
			if d != nil && d.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return err
		}
		rel = filepath.ToSlash(rel)
		if d.IsDir() {
			if p != root && (SkipDirs[d.Name()] || Excluded(i.opt.Exclude, rel)) {
				return filepath.SkipDir
			}
			return nil
		}
		if !d.Type().IsRegular() || Excluded(i.opt.Exclude, rel) {
			return nil
		}
		if d.Name() == "go.mod" {
			if m, ok := readModule(p); ok {
				tree.modules = append(tree.modules, goModule{dir: path.Dir(rel), path: m})
			}
			return nil
		}
		if !i.reg.Supports(rel) {
			return nil
		}
		info, err := d.Info()
		if err != nil {
			return nil
		}
		if info.Size() > i.opt.MaxFileBytes {
			i.log.Debug("skip large file", "file", rel, "bytes", info.Size())
			return nil
		}
		tree.paths = append(tree.paths, rel)
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("walk %s: %w", root, err)
	}
	sort.Strings(tree.paths)
	// Longest directory first so nested modules win.
	sort.Slice(tree.modules, func(a, b int) bool {
		if len(tree.modules[a].dir) != len(tree.modules[b].dir) {
			return len(tree.modules[a].dir) > len(tree.modules[b].dir)
		}
		return tree.modules[a].dir < tree.modules[b].dir
	})
	return tree, nil
}

func readModule(p string) (string, bool) {
	data, err := os.ReadFile(p)
	if err != nil {
		return "", false
	}
	m := modfile.ModulePath(data)
	return m, m != ""
}
