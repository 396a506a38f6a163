package staleness

import (
	"context"
	"errors"
	"io/fs"
	"os"
	"path/filepath"

	"github.com/0x5457/repograph/internal/indexer/pipeline"
	"github.com/0x5457/repograph/internal/models"
)

var errNoTimestamps = errors.New("no readable file timestamps")

// mtimeChanges walks the tree and compares modification times with the
// generation time.
func (d *Detector) mtimeChanges(ctx context.Context, root string, idx *models.Index) (*changeSet, error) {
	cs := newChangeSet()
	seen := map[string]bool{}
	readable := 0
	err := filepath.WalkDir(root, func(p string, e fs.DirEntry, err error) error {
		if err != nil {
			if p == root {
				return err
			}
			return nil
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if e.IsDir() {
			if p != root && pipeline.SkipDirs[e.Name()] {
				return filepath.SkipDir
			}
			return nil
		}
		rel, err := filepath.Rel(root, p)
		if err != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)
		if _, indexed := idx.Files[rel]; !indexed && !d.supports(rel) {
			return nil
		}
		info, err := e.Info()
		if err != nil {
			return nil
		}
		readable++
		seen[rel] = true
		if _, indexed := idx.Files[rel]; !indexed || info.ModTime().After(idx.Metadata.GeneratedAt) {
			d.classify(cs, root, rel, idx, false)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	for _, p := range idx.SortedFiles() {
		if !seen[p] && missing(root, p) {
			d.classify(cs, root, p, idx, false)
		}
	}
	if readable == 0 && len(idx.Files) > 0 && len(cs.deleted) < len(idx.Files) {
		return nil, errNoTimestamps
	}
	return cs, nil
}

func missing(root, rel string) bool {
	_, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	return errors.Is(err, fs.ErrNotExist)
}
