// Package impact estimates what a change to one file can break by walking the
// reverse call graph.
package impact

import (
	"regexp"
	"sort"
	"strings"

	"github.com/0x5457/repograph/internal/analysis/testmap"
	"github.com/0x5457/repograph/internal/callgraph"
	"github.com/0x5457/repograph/internal/models"
)

const DefaultDepth = 2

type Options struct {
	// Depth bounds the traversal; 1 reports direct callers only.
	Depth int
	// Fuzzy also follows substring matches, trading precision for recall.
	Fuzzy bool
}

type Caller struct {
	QualifiedName string `json:"qualified_name"`
	File          string `json:"file"`
	Line          int    `json:"line"`
	Depth         int    `json:"depth"`
	// Via is the symbol this caller reaches the file through.
	Via string `json:"via"`
}

type Endpoint struct {
	QualifiedName string `json:"qualified_name"`
	File          string `json:"file"`
	Line          int    `json:"line"`
	Reason        string `json:"reason"`
}

type Report struct {
	File              string     `json:"file"`
	Symbols           []string   `json:"symbols"`
	DirectCallers     []Caller   `json:"direct_callers"`
	TransitiveCallers []Caller   `json:"transitive_callers"`
	Tests             []string   `json:"tests"`
	Endpoints         []Endpoint `json:"endpoints"`
}

var routeDecorator = regexp.MustCompile(
	`(?i)(^|[@.\s])(route|get|post|put|patch|delete|head|options|api_view|websocket|` +
		`(get|post|put|patch|delete|request)mapping)\s*\(`)

var handlerParamTypes = []string{"http.ResponseWriter", "*gin.Context", "echo.Context", "*fiber.Ctx"}

// Analyze seeds a breadth-first walk with every symbol defined in file.
func Analyze(g *callgraph.Graph, file string, opt Options) (*Report, error) {
	idx := g.Index()
	if _, ok := idx.Files[file]; !ok {
		return nil, models.ErrFileNotIndexed
	}
	if opt.Depth <= 0 {
		opt.Depth = DefaultDepth
	}

	seeds := idx.SymbolsInFile(file)
	rep := &Report{
		File:              file,
		Symbols:           make([]string, 0, len(seeds)),
		DirectCallers:     []Caller{},
		TransitiveCallers: []Caller{},
		Tests:             []string{},
		Endpoints:         []Endpoint{},
	}
	visited := map[string]bool{}
	frontier := make([]string, 0, len(seeds))
	for _, s := range seeds {
		rep.Symbols = append(rep.Symbols, s.QualifiedName)
		visited[s.QualifiedName] = true
		frontier = append(frontier, s.QualifiedName)
	}

	var reached []Caller
	for depth := 1; depth <= opt.Depth && len(frontier) > 0; depth++ {
		var next []string
		for _, q := range frontier {
			for _, c := range callersOf(g, q, opt.Fuzzy) {
				if visited[c] {
					continue
				}
				visited[c] = true
				entry := idx.CallGraph[c]
				reached = append(reached, Caller{QualifiedName: c, File: entry.File, Line: entry.Line, Depth: depth, Via: q})
				next = append(next, c)
			}
		}
		sort.Strings(next)
		frontier = next
	}
	sort.Slice(reached, func(i, j int) bool {
		if reached[i].Depth != reached[j].Depth {
			return reached[i].Depth < reached[j].Depth
		}
		return reached[i].QualifiedName < reached[j].QualifiedName
	})

	tests := map[string]bool{}
	for _, c := range reached {
		if c.Depth == 1 {
			rep.DirectCallers = append(rep.DirectCallers, c)
		} else {
			rep.TransitiveCallers = append(rep.TransitiveCallers, c)
		}
		if testmap.IsTestFile(c.File) {
			tests[c.File] = true
		}
	}
	for _, p := range idx.SortedFiles() {
		if p == file || !testmap.IsTestFile(p) {
			continue
		}
		for _, imp := range idx.Files[p].InternalImports {
			if imp == file {
				tests[p] = true
			}
		}
	}
	for p := range tests {
		rep.Tests = append(rep.Tests, p)
	}
	sort.Strings(rep.Tests)

	candidates := append([]string{}, rep.Symbols...)
	for _, c := range reached {
		candidates = append(candidates, c.QualifiedName)
	}
	for _, q := range candidates {
		s, ok := idx.Symbols[q]
		if !ok {
			continue
		}
		if reason, ok := EndpointReason(s); ok {
			rep.Endpoints = append(rep.Endpoints, Endpoint{QualifiedName: q, File: s.File, Line: s.Line, Reason: reason})
		}
	}
	return rep, nil
}

func callersOf(g *callgraph.Graph, q string, fuzzy bool) []string {
	s, ok := g.Index().Symbols[q]
	if !ok {
		return nil
	}
	if !fuzzy {
		return g.ExactCallers(s.ShortName())
	}
	var out []string
	for _, c := range g.Callers(q) {
		out = append(out, c.QualifiedName)
	}
	return out
}

// EndpointReason reports whether s is reachable from outside the process: a
// route-decorated function or an HTTP handler signature.
func EndpointReason(s models.SymbolRecord) (string, bool) {
	for _, d := range s.Decorators {
		if routeDecorator.MatchString(d) {
			return "decorator " + strings.TrimSpace(d), true
		}
	}
	for _, p := range s.Signature.Params {
		for _, t := range handlerParamTypes {
			if p.Type == t {
				return "handler parameter " + t, true
			}
		}
	}
	return "", false
}
