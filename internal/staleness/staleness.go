// Package staleness decides whether a stored index is older than the
// repository it describes.
package staleness

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/0x5457/repograph/internal/indexer/pipeline"
	"github.com/0x5457/repograph/internal/logging"
	"github.com/0x5457/repograph/internal/models"
)

type Status string

const (
	StatusFresh   Status = "fresh"
	StatusStale   Status = "stale"
	StatusUnknown Status = "unknown"
)

type Method string

const (
	MethodGit   Method = "git"
	MethodMtime Method = "mtime"
	MethodNone  Method = "none"
)

type Report struct {
	Status      Status        `json:"status"`
	Stale       bool          `json:"stale"`
	Method      Method        `json:"method"`
	GeneratedAt time.Time     `json:"generated_at"`
	Age         time.Duration `json:"-"`
	AgeSeconds  int64         `json:"age_seconds"`
	Changed     []string      `json:"changed"`
	Added       []string      `json:"added"`
	Deleted     []string      `json:"deleted"`
	Reason      string        `json:"reason,omitempty"`
}

type Options struct {
	// Artifacts are files written by the tool itself (snapshot, databases).
	// Absolute paths or paths relative to the repository root.
	Artifacts []string
	// Exclude holds doublestar globs over repository-relative paths.
	Exclude []string
	// Supports limits added files to those the indexer would pick up.
	Supports func(rel string) bool
	Logger   *slog.Logger
}

type Detector struct {
	opt Options
	log *slog.Logger
	now func() time.Time
	git func(ctx context.Context, dir string, args ...string) ([]byte, error)
}

func New(opt Options) *Detector {
	return &Detector{opt: opt, log: logging.OrDiscard(opt.Logger), now: time.Now, git: runGit}
}

// Check compares idx against the working tree under its root.
func (d *Detector) Check(ctx context.Context, idx *models.Index) (*Report, error) {
	rep := &Report{
		Status:  StatusUnknown,
		Method:  MethodNone,
		Changed: []string{},
		Added:   []string{},
		Deleted: []string{},
	}
	if idx == nil || idx.Metadata.GeneratedAt.IsZero() {
		rep.Reason = "index has no generation timestamp"
		return rep, nil
	}
	rep.GeneratedAt = idx.Metadata.GeneratedAt
	rep.Age = d.now().Sub(rep.GeneratedAt)
	rep.AgeSeconds = int64(rep.Age / time.Second)

	root := idx.Metadata.Repository.Root
	if _, err := os.Stat(root); err != nil {
		rep.Reason = "repository root is not readable: " + err.Error()
		return rep, nil
	}

	cs, err := d.gitChanges(ctx, root, idx)
	if err == nil {
		rep.Method = MethodGit
	} else {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		d.log.Debug("git staleness unavailable, using mtimes", "err", err)
		cs, err = d.mtimeChanges(ctx, root, idx)
		if err != nil {
			if ctx.Err() != nil {
				return nil, ctx.Err()
			}
			rep.Reason = err.Error()
			return rep, nil
		}
		rep.Method = MethodMtime
	}

	rep.Changed, rep.Added, rep.Deleted = cs.sorted()
	rep.Stale = len(rep.Changed)+len(rep.Added)+len(rep.Deleted) > 0
	rep.Status = StatusFresh
	if rep.Stale {
		rep.Status = StatusStale
	}
	return rep, nil
}

type changeSet struct {
	changed, added, deleted map[string]bool
}

func newChangeSet() *changeSet {
	return &changeSet{changed: map[string]bool{}, added: map[string]bool{}, deleted: map[string]bool{}}
}

func (c *changeSet) sorted() (changed, added, deleted []string) {
	keys := func(m map[string]bool) []string {
		out := make([]string, 0, len(m))
		for k := range m {
			out = append(out, k)
		}
		sort.Strings(out)
		return out
	}
	return keys(c.changed), keys(c.added), keys(c.deleted)
}

// classify places rel by comparing the disk against the index.
func (d *Detector) classify(cs *changeSet, root, rel string, idx *models.Index, onlyIfNewer bool) {
	if d.ignored(root, rel) {
		return
	}
	_, indexed := idx.Files[rel]
	info, err := os.Stat(filepath.Join(root, filepath.FromSlash(rel)))
	switch {
	case err != nil && indexed:
		cs.deleted[rel] = true
	case err != nil:
	case info.IsDir():
	case onlyIfNewer && !info.ModTime().After(idx.Metadata.GeneratedAt):
	case indexed:
		cs.changed[rel] = true
	case d.supports(rel):
		cs.added[rel] = true
	}
}

func (d *Detector) supports(rel string) bool {
	return d.opt.Supports == nil || d.opt.Supports(rel)
}

// ignored drops artifacts the tool writes itself along with skipped
// directories and user globs.
func (d *Detector) ignored(root, rel string) bool {
	for _, part := range strings.Split(rel, "/")[:strings.Count(rel, "/")] {
		if pipeline.SkipDirs[part] {
			return true
		}
	}
	if pipeline.Excluded(d.opt.Exclude, rel) {
		return true
	}
	for _, a := range d.opt.Artifacts {
		if filepath.IsAbs(a) {
			r, err := filepath.Rel(root, a)
			if err != nil {
				continue
			}
			a = r
		}
		if filepath.ToSlash(a) == rel {
			return true
		}
	}
	return false
}
