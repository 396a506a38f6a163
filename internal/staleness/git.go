package staleness

import (
	"bytes"
	"context"
	"fmt"
	"os/exec"
	"strings"
	"time"

	"github.com/0x5457/repograph/internal/models"
)

func runGit(ctx context.Context, dir string, args ...string) ([]byte, error) {
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	out, err := cmd.Output()
	if err != nil {
		return nil, fmt.Errorf("git %s: %w", strings.Join(args, " "), err)
	}
	return out, nil
}

// gitChanges collects commits since generation plus the uncommitted state.
// Paths from git are relative to the work tree top level and are rebased
// onto the index root.
func (d *Detector) gitChanges(ctx context.Context, root string, idx *models.Index) (*changeSet, error) {
	out, err := d.git(ctx, root, "rev-parse", "--is-inside-work-tree", "--show-prefix")
	if err != nil {
		return nil, err
	}
	lines := strings.Split(strings.TrimRight(string(out), "\n"), "\n")
	if len(lines) == 0 || strings.TrimSpace(lines[0]) != "true" {
		return nil, fmt.Errorf("%s is not inside a git work tree", root)
	}
	prefix := ""
	if len(lines) > 1 {
		prefix = strings.TrimSpace(lines[1])
	}
	rebase := func(p string) (string, bool) {
		if !strings.HasPrefix(p, prefix) {
			return "", false
		}
		return strings.TrimPrefix(p, prefix), true
	}

	since := idx.Metadata.GeneratedAt.UTC().Format(time.RFC3339)
	logOut, err := d.git(ctx, root, "log", "--since="+since, "--name-status", "-z", "--pretty=format:")
	if err != nil {
		return nil, err
	}
	statusOut, err := d.git(ctx, root, "status", "--porcelain", "-z", "--untracked-files=all")
	if err != nil {
		return nil, err
	}

	cs := newChangeSet()
	for _, p := range parseNameStatus(logOut) {
		if rel, ok := rebase(p); ok {
			d.classify(cs, root, rel, idx, false)
		}
	}
	for _, p := range parsePorcelain(statusOut) {
		if rel, ok := rebase(p); ok {
			d.classify(cs, root, rel, idx, true)
		}
	}
	// A file that vanished without git noticing (ignored, never committed)
	// is still gone.
	for _, p := range idx.SortedFiles() {
		if !cs.deleted[p] && missing(root, p) {
			d.classify(cs, root, p, idx, false)
		}
	}
	return cs, nil
}

// parseNameStatus reads `--name-status -z` output. Renames and copies carry
// two paths.
func parseNameStatus(out []byte) []string {
	var paths []string
	parts := bytes.Split(out, []byte{0})
	for i := 0; i < len(parts); {
		status := strings.TrimSpace(string(parts[i]))
		if status == "" {
			i++
			continue
		}
		n := 1
		if strings.HasPrefix(status, "R") || strings.HasPrefix(status, "C") {
			n = 2
		}
		for j := 1; j <= n && i+j < len(parts); j++ {
			if p := string(parts[i+j]); p != "" {
				paths = append(paths, p)
			}
		}
		i += n + 1
	}
	return paths
}

// parsePorcelain reads `status --porcelain -z`: "XY path" entries, with the
// original path of a rename in the following field.
func parsePorcelain(out []byte) []string {
	var paths []string
	parts := bytes.Split(out, []byte{0})
	for i := 0; i < len(parts); i++ {
		entry := string(parts[i])
		if len(entry) < 4 {
			continue
		}
		paths = append(paths, entry[3:])
		if entry[0] == 'R' || entry[0] == 'C' {
			if i+1 < len(parts) && len(parts[i+1]) > 0 {
				paths = append(paths, string(parts[i+1]))
			}
			i++
		}
	}
	return paths
}
