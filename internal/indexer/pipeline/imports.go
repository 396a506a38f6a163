package pipeline

import (
	"path"
	"sort"
	"strings"

	"github.com/0x5457/repograph/internal/models"
)

var scriptExtensions = []string{".ts", ".tsx", ".js", ".jsx", ".mjs", ".cjs"}

// resolver partitions raw imports into repository files and external
// packages.
type resolver struct {
	files   map[string]bool
	byDir   map[string][]string
	modules []goModule
}

func newResolver(idx *models.Index, modules []goModule) *resolver {
	r := &resolver{files: map[string]bool{}, byDir: map[string][]string{}, modules: modules}
	for _, p := range idx.SortedFiles() {
		r.files[p] = true
		if strings.HasSuffix(p, ".go") {
			r.byDir[path.Dir(p)] = append(r.byDir[path.Dir(p)], p)
		}
	}
	return r
}

func (r *resolver) resolve(f models.FileRecord) (internal, external []string) {
	in := map[string]bool{}
	ex := map[string]bool{}
	for _, imp := range f.Imports {
		var hits []string
		var pkg string
		switch f.Language {
		case "python":
			hits, pkg = r.python(f.Path, imp)
		case "typescript", "javascript":
			hits, pkg = r.script(f.Path, imp)
		case "go":
			hits, pkg = r.golang(imp)
		}
		for _, h := range hits {
			if h != f.Path {
				in[h] = true
			}
		}
		if len(hits) == 0 && pkg != "" {
			ex[pkg] = true
		}
	}
	return sortedKeys(in), sortedKeys(ex)
}

func (r *resolver) python(file string, imp models.Import) ([]string, string) {
	parts := splitNonEmpty(imp.Module, ".")
	var bases []string
	if imp.Relative > 0 {
		base := path.Dir(file)
		for n := 1; n < imp.Relative; n++ {
			base = path.Dir(base)
		}
		bases = []string{base}
	} else {
		bases = []string{".", "src"}
	}
	var hits []string
	for _, base := range bases {
		p := path.Join(append([]string{base}, parts...)...)
		if len(parts) > 0 {
			hits = append(hits, r.firstKnown(p+".py", p+".pyi", p+"/__init__.py")...)
		}
		for _, name := range imp.Names {
			if name == "*" {
				continue
			}
			sub := path.Join(p, name)
			hits = append(hits, r.firstKnown(sub+".py", sub+".pyi", sub+"/__init__.py")...)
		}
		if len(hits) > 0 {
			break
		}
	}
	if imp.Relative > 0 || len(parts) == 0 {
		return hits, ""
	}
	return hits, parts[0]
}

func (r *resolver) script(file string, imp models.Import) ([]string, string) {
	mod := imp.Module
	if strings.HasPrefix(mod, ".") {
		p := path.Join(path.Dir(file), mod)
		candidates := []string{p}
		for _, ext := range scriptExtensions {
			candidates = append(candidates, p+ext)
		}
		for _, ext := range scriptExtensions {
			candidates = append(candidates, p+"/index"+ext)
		}
		for _, c := range candidates {
			if r.files[c] {
				return []string{c}, ""
			}
		}
		return nil, ""
	}
	mod = strings.TrimPrefix(mod, "node:")
	parts := splitNonEmpty(mod, "/")
	if len(parts) == 0 {
		return nil, ""
	}
	if strings.HasPrefix(parts[0], "@") && len(parts) > 1 {
		return nil, parts[0] + "/" + parts[1]
	}
	return nil, parts[0]
}

func (r *resolver) golang(imp models.Import) ([]string, string) {
	for _, m := range r.modules {
		if imp.Module != m.path && !strings.HasPrefix(imp.Module, m.path+"/") {
			continue
		}
		dir := path.Join(m.dir, strings.TrimPrefix(imp.Module, m.path))
		hits := make([]string, len(r.byDir[dir]))
		copy(hits, r.byDir[dir])
		return hits, ""
	}
	parts := splitNonEmpty(imp.Module, "/")
	if len(parts) == 0 {
		return nil, ""
	}
	if !strings.Contains(parts[0], ".") {
		return nil, parts[0]
	}
	if len(parts) > 3 {
		parts = parts[:3]
	}
	return nil, strings.Join(parts, "/")
}

func (r *resolver) firstKnown(candidates ...string) []string {
	for _, c := range candidates {
		if r.files[c] {
			return []string{c}
		}
	}
	return nil
}

func splitNonEmpty(s, sep string) []string {
	var out []string
	for _, p := range strings.Split(s, sep) {
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}

func sortedKeys(m map[string]bool) []string {
	out := make([]string, 0, len(m))
	for k := range m {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
