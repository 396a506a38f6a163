package pyparser

import (
	"regexp"
	"strings"

	"github.com/0x5457/repograph/internal/models"
	"github.com/0x5457/repograph/internal/parser"
	"github.com/0x5457/repograph/internal/util"
	tree_sitter "github.com/tree-sitter/go-tree-sitter"
	tree_sitter_python "github.com/tree-sitter/tree-sitter-python/bindings/go"
)

var language = tree_sitter.NewLanguage(tree_sitter_python.Language())

type PyParser struct{}

func New() *PyParser { return &PyParser{} }

func (p *PyParser) Language() string { return "python" }

func (p *PyParser) Extensions() []string { return []string{".py", ".pyi"} }

func (p *PyParser) Precise(path string, code []byte) (*parser.Result, error) {
	tree, err := parser.ParseTree(language, code)
	if err != nil {
		return nil, err
	}
	defer tree.Close()

	w := &walker{code: code}
	w.visit(tree.RootNode(), scope{sym: -1})
	return &parser.Result{
		File:    models.FileRecord{Imports: w.imports},
		Symbols: w.symbols,
	}, nil
}

func (p *PyParser) Fallback(path string, code []byte) *parser.Result {
	symbols, imports := parser.RunFallback(fallbackRules, code)
	return &parser.Result{
		File:    models.FileRecord{Imports: imports},
		Symbols: symbols,
	}
}

type scope struct {
	path string
	kind models.SymbolKind
	sym  int
}

type walker struct {
	code    []byte
	symbols []models.SymbolRecord
	imports []models.Import
}

func (w *walker) visit(n *tree_sitter.Node, sc scope) {
	switch n.Kind() {
	case "decorated_definition":
		var decorators []string
		for i := uint(0); i < n.ChildCount(); i++ {
			c := n.Child(i)
			if c != nil && c.Kind() == "decorator" {
				decorators = append(decorators, strings.TrimSpace(strings.TrimPrefix(parser.Text(c, w.code), "@")))
			}
		}
		if def := n.ChildByFieldName("definition"); def != nil {
			w.define(def, n, sc, decorators)
		}
		return
	case "function_definition", "class_definition":
		w.define(n, n, sc, nil)
		return
	case "import_statement", "import_from_statement":
		w.imports = append(w.imports, w.importsOf(n)...)
		return
	case "call":
		if sc.sym >= 0 && sc.kind != models.SymbolClass {
			if target := callTarget(n.ChildByFieldName("function"), w.code); target != "" {
				w.symbols[sc.sym].Calls = append(w.symbols[sc.sym].Calls, target)
			}
		}
	}
	for i := uint(0); i < n.ChildCount(); i++ {
		if c := n.Child(i); c != nil {
			w.visit(c, sc)
		}
	}
}

// define records a function or class; outer spans its decorators too.
func (w *walker) define(def, outer *tree_sitter.Node, sc scope, decorators []string) {
	name := parser.Text(def.ChildByFieldName("name"), w.code)
	if name == "" {
		return
	}
	path := name
	if sc.path != "" {
		path = sc.path + "." + name
	}
	kind := models.SymbolClass
	class := ""
	if def.Kind() == "function_definition" {
		kind = models.SymbolFunction
		if sc.kind == models.SymbolClass {
			kind, class = models.SymbolMethod, sc.path
		}
	}

	body := def.ChildByFieldName("body")
	doc := docstringNode(body)
	params := def.ChildByFieldName("parameters")
	returns := def.ChildByFieldName("return_type")

	sym := models.SymbolRecord{
		Name:       path,
		Kind:       kind,
		Line:       parser.StartLine(def),
		EndLine:    parser.EndLine(def),
		Class:      class,
		Decorators: decorators,
		Signature: models.Signature{
			Params:  paramsOf(params, w.code),
			Returns: parser.Text(returns, w.code),
		},
		Docstring: docstringText(doc, w.code),
		BodyHash:  util.ContentHashString(parser.Text(outer, w.code)),
	}
	hashed := []*tree_sitter.Node{params, returns, body}
	if kind == models.SymbolClass {
		hashed = []*tree_sitter.Node{def.ChildByFieldName("superclasses"), body}
	}
	sym.StructuralHash = util.StructuralHash(parser.CanonicalTokens(w.code, classifier(doc), hashed...))

	w.symbols = append(w.symbols, sym)
	if body != nil {
		w.visit(body, scope{path: path, kind: kind, sym: len(w.symbols) - 1})
	}
}

func (w *walker) importsOf(n *tree_sitter.Node) []models.Import {
	if n.Kind() == "import_statement" {
		var out []models.Import
		for i := uint(0); i < n.NamedChildCount(); i++ {
			c := n.NamedChild(i)
			switch c.Kind() {
			case "dotted_name":
				out = append(out, models.Import{Module: parser.Text(c, w.code)})
			case "aliased_import":
				out = append(out, models.Import{
					Module: parser.Text(c.ChildByFieldName("name"), w.code),
					Alias:  parser.Text(c.ChildByFieldName("alias"), w.code),
				})
			}
		}
		return out
	}

	imp := models.Import{}
	module := n.ChildByFieldName("module_name")
	if module != nil {
		if module.Kind() == "relative_import" {
			for i := uint(0); i < module.ChildCount(); i++ {
				c := module.Child(i)
				switch c.Kind() {
				case "import_prefix":
					imp.Relative = strings.Count(parser.Text(c, w.code), ".")
				case "dotted_name":
					imp.Module = parser.Text(c, w.code)
				}
			}
		} else {
			imp.Module = parser.Text(module, w.code)
		}
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		if parser.SameNode(c, module) {
			continue
		}
		switch c.Kind() {
		case "dotted_name":
			imp.Names = append(imp.Names, parser.Text(c, w.code))
		case "aliased_import":
			imp.Names = append(imp.Names, parser.Text(c.ChildByFieldName("name"), w.code))
		case "wildcard_import":
			imp.Names = append(imp.Names, "*")
		}
	}
	return []models.Import{imp}
}

func paramsOf(n *tree_sitter.Node, code []byte) []models.Param {
	out := []models.Param{}
	if n == nil {
		return out
	}
	for i := uint(0); i < n.NamedChildCount(); i++ {
		c := n.NamedChild(i)
		switch c.Kind() {
		case "identifier", "list_splat_pattern", "dictionary_splat_pattern":
			out = append(out, models.Param{Name: parser.Text(c, code)})
		case "typed_parameter":
			p := models.Param{Type: parser.Text(c.ChildByFieldName("type"), code)}
			if first := c.NamedChild(0); first != nil {
				p.Name = parser.Text(first, code)
			}
			out = append(out, p)
		case "default_parameter", "typed_default_parameter":
			out = append(out, models.Param{
				Name:    parser.Text(c.ChildByFieldName("name"), code),
				Type:    parser.Text(c.ChildByFieldName("type"), code),
				Default: parser.Text(c.ChildByFieldName("value"), code),
			})
		}
	}
	return out
}

// callTarget renders the callee of a call: a dotted name when the receiver is
// a plain name chain, the attribute alone otherwise.
func callTarget(fn *tree_sitter.Node, code []byte) string {
	if fn == nil {
		return ""
	}
	if s, ok := dotted(fn, code); ok {
		return s
	}
	if fn.Kind() == "attribute" {
		return parser.Text(fn.ChildByFieldName("attribute"), code)
	}
	return ""
}

func dotted(n *tree_sitter.Node, code []byte) (string, bool) {
	switch n.Kind() {
	case "identifier":
		return parser.Text(n, code), true
	case "attribute":
		obj := n.ChildByFieldName("object")
		if obj == nil {
			return "", false
		}
		left, ok := dotted(obj, code)
		if !ok {
			return "", false
		}
		return left + "." + parser.Text(n.ChildByFieldName("attribute"), code), true
	}
	return "", false
}

func docstringNode(body *tree_sitter.Node) *tree_sitter.Node {
	if body == nil || body.NamedChildCount() == 0 {
		return nil
	}
	first := body.NamedChild(0)
	if first.Kind() != "expression_statement" || first.NamedChildCount() == 0 {
		return nil
	}
	if first.NamedChild(0).Kind() != "string" {
		return nil
	}
	return first
}

func docstringText(n *tree_sitter.Node, code []byte) string {
	if n == nil {
		return ""
	}
	s := strings.TrimSpace(parser.Text(n, code))
	s = strings.TrimLeft(s, "rRbBuUfF")
	for _, q := range []string{`"""`, `'''`, `"`, `'`} {
		if strings.HasPrefix(s, q) && strings.HasSuffix(s, q) && len(s) >= 2*len(q) {
			s = s[len(q) : len(s)-len(q)]
			break
		}
	}
	return strings.TrimSpace(s)
}

// classifier keeps attribute and keyword-argument names literal and drops
// comments and the docstring.
func classifier(doc *tree_sitter.Node) func(*tree_sitter.Node) parser.TokenClass {
	return func(n *tree_sitter.Node) parser.TokenClass {
		if n.Kind() == "comment" || parser.SameNode(n, doc) {
			return parser.TokenSkip
		}
		if n.Kind() != "identifier" {
			return parser.TokenLiteral
		}
		if parent := n.Parent(); parent != nil {
			switch parent.Kind() {
			case "attribute":
				if parser.SameNode(parent.ChildByFieldName("attribute"), n) {
					return parser.TokenLiteral
				}
			case "keyword_argument":
				if parser.SameNode(parent.ChildByFieldName("name"), n) {
					return parser.TokenLiteral
				}
			}
		}
		return parser.TokenIdentifier
	}
}

var (
	importPattern     = regexp.MustCompile(`^\s*import\s+(.+)$`)
	fromImportPattern = regexp.MustCompile(`^\s*from\s+(\.*)([\w.]*)\s+import\s+(.+)$`)
)

var fallbackRules = &parser.FallbackRules{
	Indent:       true,
	LineComment:  "#",
	TripleQuotes: true,
	Defs: []*regexp.Regexp{
		regexp.MustCompile(`^\s*(?:async\s+)?def\s+(?P<name>[A-Za-z_]\w*)\s*\((?P<params>[^)]*)\)?(?:\s*->\s*(?P<returns>[^:]+))?`),
	},
	Class:     regexp.MustCompile(`^\s*class\s+(?P<name>[A-Za-z_]\w*)`),
	Decorator: regexp.MustCompile(`^\s*@(?P<name>[\w.]+(?:\(.*\))?)`),
	Imports:   fallbackImports,
	Param:     parser.ParseAnnotatedParam,
	Keywords: parser.KeywordSet(
		"and", "as", "assert", "async", "await", "break", "class", "continue", "def", "del",
		"elif", "else", "except", "finally", "for", "from", "global", "if", "import", "in",
		"is", "lambda", "nonlocal", "not", "or", "pass", "raise", "return", "try", "while",
		"with", "yield", "None", "True", "False",
	),
}

func fallbackImports(line string) []models.Import {
	if i := strings.IndexByte(line, '#'); i >= 0 {
		line = line[:i]
	}
	if m := fromImportPattern.FindStringSubmatch(line); m != nil {
		imp := models.Import{Module: m[2], Relative: len(m[1])}
		for _, name := range strings.Split(strings.Trim(strings.TrimSpace(m[3]), "()"), ",") {
			name = strings.TrimSpace(name)
			if i := strings.Index(name, " as "); i >= 0 {
				name = strings.TrimSpace(name[:i])
			}
			if name != "" {
				imp.Names = append(imp.Names, name)
			}
		}
		return []models.Import{imp}
	}
	if m := importPattern.FindStringSubmatch(line); m != nil {
		var out []models.Import
		for _, part := range strings.Split(m[1], ",") {
			fields := strings.Fields(part)
			if len(fields) == 0 {
				continue
			}
			imp := models.Import{Module: fields[0]}
			if len(fields) == 3 && fields[1] == "as" {
				imp.Alias = fields[2]
			}
			out = append(out, imp)
		}
		return out
	}
	return nil
}

var _ parser.Extractor = (*PyParser)(nil)
