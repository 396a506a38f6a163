package parser

import (
	"regexp"
	"strconv"
	"strings"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/util"
)

// FallbackRules configures the line-pattern extractor for one language.
// Definition patterns use the named groups name, params, returns and recv.
type FallbackRules struct {
	// Indent selects indentation-delimited blocks; otherwise blocks are braces.
	Indent       bool
	LineComment  string
	BlockComment bool
	TripleQuotes bool
	Defs         []*regexp.Regexp
	// Methods are tried only directly inside a class block.
	Methods   []*regexp.Regexp
	Class     *regexp.Regexp
	Decorator *regexp.Regexp
	// Imports receives the raw line.
	Imports   func(line string) []models.Import
	Param     func(text string) (models.Param, bool)
	Keywords  map[string]bool
}

var (
	callPattern   = regexp.MustCompile(`[A-Za-z_$][\w$]*(?:\.[A-Za-z_$][\w$]*)*\s*\(`)
	stringPattern = regexp.MustCompile("\"(?:\\\\.|[^\"\\\\])*\"|'(?:\\\\.|[^'\\\\])*'|`(?:\\\\.|[^`\\\\])*`")
	tokenPattern  = regexp.MustCompile(`[A-Za-z_$][\w$]*|\d+(?:\.\d+)?|\S`)
)

type fbScope struct {
	sym    int
	kind   models.SymbolKind
	path   string
	indent int
	depth  int
	opened bool
	start  int
	body   []string
}

type fallback struct {
	rules      *FallbackRules
	symbols    []models.SymbolRecord
	imports    []models.Import
	scopes     []*fbScope
	decorators []string
	depth      int
	parens     int
	inBlock    bool
	inTriple   string
	lastCode   int
}

// RunFallback recognizes definitions line by line. It never fails; unknown
// constructs are ignored.
func RunFallback(rules *FallbackRules, code []byte) ([]models.SymbolRecord, []models.Import) {
	text := strings.ReplaceAll(string(code), "\r\n", "\n")
	lines := strings.Split(text, "\n")
	fb := &fallback{rules: rules}
	for i, raw := range lines {
		fb.line(i+1, raw)
	}
	end := fb.lastCode
	for len(fb.scopes) > 0 {
		fb.pop(end)
	}
	return fb.symbols, fb.imports
}

func (fb *fallback) line(n int, raw string) {
	inString := fb.inTriple != "" || fb.inBlock
	clean, skip := fb.clean(raw)
	continuation := inString || fb.parens > 0
	// A definition keyword ends an unbalanced bracket from broken code.
	if continuation && !inString && fb.startsDefinition(clean) {
		fb.parens = 0
		continuation = false
	}
	blank := strings.TrimSpace(raw) == ""
	if !blank && !continuation && fb.rules.Indent {
		fb.closeIndented(indentOf(raw))
	}
	if !blank && !continuation && !fb.rules.Indent && !skip {
		fb.closeUnopened(clean)
	}
	for _, s := range fb.scopes {
		s.body = append(s.body, raw)
	}
	if !blank {
		fb.lastCode = n
	}
	// Grouped import lists continue over several lines.
	if continuation && !inString && len(fb.scopes) == 0 && fb.rules.Imports != nil {
		fb.imports = append(fb.imports, fb.rules.Imports(raw)...)
	}
	if skip {
		return
	}
	if continuation {
		fb.calls(clean)
	} else {
		fb.header(n, raw, clean)
	}
	fb.balance(n, clean)
}

func (fb *fallback) header(n int, raw, clean string) {
	if fb.rules.Imports != nil {
		if imps := fb.rules.Imports(raw); len(imps) > 0 {
			fb.imports = append(fb.imports, imps...)
			fb.decorators = nil
			return
		}
	}
	if r := fb.rules.Decorator; r != nil {
		if r.MatchString(clean) {
			if m := r.FindStringSubmatch(strings.TrimSpace(raw)); m != nil {
				fb.decorators = append(fb.decorators, strings.TrimSpace(group(r, m, "name")))
			}
			return
		}
	}
	if r := fb.rules.Class; r != nil {
		if m := r.FindStringSubmatch(clean); m != nil {
			fb.open(n, raw, models.SymbolClass, r, m)
			return
		}
	}
	patterns := fb.rules.Defs
	if top := fb.top(); top != nil && top.kind == models.SymbolClass {
		patterns = append(append([]*regexp.Regexp{}, fb.rules.Methods...), patterns...)
	}
	for _, r := range patterns {
		loc := r.FindStringSubmatchIndex(clean)
		if loc == nil {
			continue
		}
		m := submatches(clean, loc)
		if fb.rules.Keywords[group(r, m, "name")] {
			continue
		}
		fb.open(n, raw, models.SymbolFunction, r, m)
		fb.calls(clean[loc[1]:])
		return
	}
	fb.decorators = nil
	fb.calls(clean)
}

func (fb *fallback) startsDefinition(clean string) bool {
	if fb.rules.Class != nil && fb.rules.Class.MatchString(clean) {
		return true
	}
	for _, r := range fb.rules.Defs {
		if r.MatchString(clean) {
			return true
		}
	}
	return false
}

func (fb *fallback) open(n int, raw string, kind models.SymbolKind, r *regexp.Regexp, m []string) {
	name := group(r, m, "name")
	if name == "" {
		return
	}
	parent := fb.top()
	path, class := name, ""
	if recv := group(r, m, "recv"); recv != "" {
		path, class, kind = recv+"."+name, recv, models.SymbolMethod
	} else if parent != nil {
		path = parent.path + "." + name
		if parent.kind == models.SymbolClass && kind != models.SymbolClass {
			kind, class = models.SymbolMethod, parent.path
		}
	}
	sym := models.SymbolRecord{
		Name:       path,
		Kind:       kind,
		Line:       n,
		EndLine:    n,
		Class:      class,
		Decorators: fb.decorators,
		Signature: models.Signature{
			Params:  fb.params(group(r, m, "params")),
			Returns: cleanReturns(group(r, m, "returns")),
		},
	}
	fb.decorators = nil
	fb.symbols = append(fb.symbols, sym)
	fb.scopes = append(fb.scopes, &fbScope{
		sym:    len(fb.symbols) - 1,
		kind:   kind,
		path:   path,
		indent: indentOf(raw),
		depth:  fb.depth,
		start:  n,
		body:   []string{raw},
	})
}

func (fb *fallback) params(s string) []models.Param {
	out := []models.Param{}
	if fb.rules.Param == nil {
		return out
	}
	for _, part := range SplitParams(s) {
		if p, ok := fb.rules.Param(part); ok {
			out = append(out, p)
		}
	}
	return out
}

func (fb *fallback) calls(clean string) {
	owner := fb.top()
	if owner == nil || owner.kind == models.SymbolClass {
		return
	}
	sym := &fb.symbols[owner.sym]
	for _, loc := range callPattern.FindAllStringIndex(clean, -1) {
		target := strings.TrimSpace(strings.TrimSuffix(clean[loc[0]:loc[1]], "("))
		head := target
		if i := strings.IndexByte(head, '.'); i >= 0 {
			head = head[:i]
		}
		if fb.rules.Keywords[head] {
			continue
		}
		sym.Calls = append(sym.Calls, target)
	}
}

// balance updates brace and paren depth and closes brace blocks.
func (fb *fallback) balance(n int, clean string) {
	peak := fb.depth
	for _, c := range clean {
		switch c {
		case '(', '[':
			fb.parens++
		case ')', ']':
			if fb.parens > 0 {
				fb.parens--
			}
		case '{':
			if fb.rules.Indent {
				fb.parens++
				continue
			}
			fb.depth++
			if fb.depth > peak {
				peak = fb.depth
			}
		case '}':
			if fb.rules.Indent {
				if fb.parens > 0 {
					fb.parens--
				}
				continue
			}
			if fb.depth > 0 {
				fb.depth--
			}
		}
	}
	if fb.rules.Indent {
		return
	}
	for len(fb.scopes) > 0 {
		s := fb.top()
		if peak > s.depth {
			s.opened = true
		}
		if !s.opened || fb.depth > s.depth {
			break
		}
		fb.pop(n)
	}
}

// closeUnopened ends brace-language definitions that never opened a block,
// such as arrow functions with expression bodies.
func (fb *fallback) closeUnopened(clean string) {
	if strings.HasPrefix(strings.TrimSpace(clean), "{") {
		return
	}
	for len(fb.scopes) > 0 {
		s := fb.top()
		if s.opened {
			return
		}
		fb.pop(s.start)
	}
}

func (fb *fallback) closeIndented(indent int) {
	for len(fb.scopes) > 0 {
		s := fb.top()
		if indent > s.indent {
			return
		}
		fb.pop(fb.lastCode)
	}
}

func (fb *fallback) pop(end int) {
	s := fb.scopes[len(fb.scopes)-1]
	fb.scopes = fb.scopes[:len(fb.scopes)-1]
	if end < s.start {
		end = s.start
	}
	body := s.body
	if keep := end - s.start + 1; keep < len(body) {
		body = body[:keep]
	}
	sym := &fb.symbols[s.sym]
	sym.EndLine = end
	text := strings.Join(body, "\n")
	sym.BodyHash = util.ContentHashString(text)
	sym.StructuralHash = util.StructuralHash(fb.canonical(text, sym.Name))
}

func (fb *fallback) top() *fbScope {
	if len(fb.scopes) == 0 {
		return nil
	}
	return fb.scopes[len(fb.scopes)-1]
}

// canonical tokenizes a definition, dropping its own name and numbering every
// other identifier that is neither a keyword nor an attribute.
func (fb *fallback) canonical(text, path string) []string {
	name := path
	if i := strings.LastIndexByte(name, '.'); i >= 0 {
		name = name[i+1:]
	}
	ids := map[string]string{}
	var out []string
	skippedName := false
	prev := ""
	for _, tok := range tokenPattern.FindAllString(text, -1) {
		ident := tok[0] == '_' || tok[0] == '$' || (tok[0] >= 'A' && tok[0] <= 'Z') || (tok[0] >= 'a' && tok[0] <= 'z')
		switch {
		case !ident || fb.rules.Keywords[tok] || prev == ".":
			out = append(out, tok)
		case tok == name && !skippedName:
			skippedName = true
		default:
			id, ok := ids[tok]
			if !ok {
				id = "$" + strconv.Itoa(len(ids))
				ids[tok] = id
			}
			out = append(out, id)
		}
		prev = tok
	}
	return out
}

// clean strips comments and string contents, tracking multi-line comment and
// string state. skip reports a line with nothing left to analyze.
func (fb *fallback) clean(raw string) (string, bool) {
	line := raw
	var b strings.Builder
	for line != "" {
		if fb.inTriple != "" {
			i := strings.Index(line, fb.inTriple)
			if i < 0 {
				line = ""
				break
			}
			line = line[i+len(fb.inTriple):]
			fb.inTriple = ""
			b.WriteString(`""`)
			continue
		}
		if fb.inBlock {
			i := strings.Index(line, "*/")
			if i < 0 {
				line = ""
				break
			}
			line = line[i+2:]
			fb.inBlock = false
			continue
		}
		next, kind := fb.nextOpener(line)
		if next < 0 {
			b.WriteString(line)
			break
		}
		b.WriteString(line[:next])
		switch kind {
		case "/*":
			fb.inBlock = true
			line = line[next+2:]
		default:
			fb.inTriple = kind
			line = line[next+3:]
		}
	}
	out := stringPattern.ReplaceAllString(b.String(), `""`)
	if lc := fb.rules.LineComment; lc != "" {
		if i := strings.Index(out, lc); i >= 0 {
			out = out[:i]
		}
	}
	return out, strings.TrimSpace(out) == "" || strings.TrimSpace(out) == `""`
}

func (fb *fallback) nextOpener(line string) (int, string) {
	best, kind := -1, ""
	try := func(tok string) {
		if i := strings.Index(line, tok); i >= 0 && (best < 0 || i < best) {
			best, kind = i, tok
		}
	}
	if fb.rules.TripleQuotes {
		try(`"""`)
		try(`'''`)
	}
	if fb.rules.BlockComment {
		try("/*")
	}
	if best >= 0 && fb.rules.LineComment != "" {
		// An opener after a line comment marker is part of the comment.
		if lc := strings.Index(stringPattern.ReplaceAllString(line[:best], `""`), fb.rules.LineComment); lc >= 0 {
			return -1, ""
		}
	}
	return best, kind
}

// SplitParams splits a parameter list on top-level commas.
func SplitParams(s string) []string {
	var out []string
	depth, start := 0, 0
	for i, c := range s {
		switch c {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case ',':
			if depth == 0 {
				out = appendParam(out, s[start:i])
				start = i + 1
			}
		}
	}
	return appendParam(out, s[start:])
}

func appendParam(out []string, p string) []string {
	if p = strings.TrimSpace(p); p != "" {
		return append(out, p)
	}
	return out
}

// ParseAnnotatedParam reads `name: type = default` with optional rest markers
// (`*args`, `**kw`, `...rest`) and optional-parameter marks (`name?: T`).
func ParseAnnotatedParam(text string) (models.Param, bool) {
	var p models.Param
	if i := topLevelIndex(text, '='); i >= 0 {
		p.Default = strings.TrimSpace(text[i+1:])
		text = text[:i]
	}
	if i := topLevelIndex(text, ':'); i >= 0 {
		p.Type = strings.TrimSpace(text[i+1:])
		text = text[:i]
	}
	p.Name = strings.TrimSuffix(strings.TrimSpace(text), "?")
	if p.Name == "" || p.Name == "*" || p.Name == "/" {
		return p, false
	}
	return p, true
}

func topLevelIndex(s string, sep byte) int {
	depth := 0
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '(', '[', '{', '<':
			depth++
		case ')', ']', '}', '>':
			if depth > 0 {
				depth--
			}
		case sep:
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}

func cleanReturns(s string) string {
	s = strings.TrimSpace(s)
	s = strings.TrimSuffix(s, "{")
	s = strings.TrimSuffix(strings.TrimSpace(s), ":")
	return strings.TrimSpace(s)
}

func indentOf(s string) int {
	n := 0
	for _, c := range s {
		switch c {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}

func group(r *regexp.Regexp, m []string, name string) string {
	i := r.SubexpIndex(name)
	if i < 0 || i >= len(m) {
		return ""
	}
	return m[i]
}

func submatches(s string, loc []int) []string {
	out := make([]string, len(loc)/2)
	for i := range out {
		if loc[2*i] >= 0 {
			out[i] = s[loc[2*i]:loc[2*i+1]]
		}
	}
	return out
}

// KeywordSet builds a FallbackRules.Keywords table.
func KeywordSet(words ...string) map[string]bool {
	out := make(map[string]bool, len(words))
	for _, w := range words {
		out[w] = true
	}
	return out
}
