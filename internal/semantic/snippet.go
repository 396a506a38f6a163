package semantic

import (
	"os"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/0x5457/repograph/internal/models"
)

const (
	DefaultSnippetLines = 20
	MaxSnippetChars     = 2000
)

// Source returns the content of a repository-relative file.
type Source func(rel string) ([]byte, error)

// DirSource reads files below root.
func DirSource(root string) Source {
	return func(rel string) ([]byte, error) {
		return os.ReadFile(filepath.Join(root, filepath.FromSlash(rel)))
	}
}

// lineCache splits each file once per run.
type lineCache struct {
	src   Source
	files map[string][]string
}

func newLineCache(src Source) *lineCache {
	return &lineCache{src: src, files: map[string][]string{}}
}

func (c *lineCache) lines(rel string) ([]string, error) {
	if ls, ok := c.files[rel]; ok {
		return ls, nil
	}
	b, err := c.src(rel)
	if err != nil {
		return nil, err
	}
	ls := strings.Split(strings.ReplaceAll(string(b), "\r\n", "\n"), "\n")
	c.files[rel] = ls
	return ls, nil
}

// Snippet is the declaration of sym plus at most bodyLines following lines,
// preceded by decorators and followed by the docstring when they are not
// already part of the excerpt.
func Snippet(sym models.SymbolRecord, lines []string, bodyLines int) string {
	if bodyLines < 0 {
		bodyLines = 0
	}
	start := sym.Line - 1
	if start < 0 {
		start = 0
	}
	end := sym.EndLine
	if end < sym.Line {
		end = sym.Line
	}
	if limit := sym.Line + bodyLines; end > limit {
		end = limit
	}
	if end > len(lines) {
		end = len(lines)
	}

	var b strings.Builder
	var excerpt string
	if start < end {
		excerpt = strings.Join(lines[start:end], "\n")
	}
	for _, d := range sym.Decorators {
		if !strings.Contains(excerpt, d) {
			b.WriteString(d)
			b.WriteByte('\n')
		}
	}
	if excerpt == "" {
		excerpt = string(sym.Kind) + " " + sym.Name
	}
	b.WriteString(excerpt)
	if sym.Docstring != "" && !strings.Contains(excerpt, sym.Docstring) {
		b.WriteByte('\n')
		b.WriteString(sym.Docstring)
	}
	return truncate(b.String(), MaxSnippetChars)
}

// Text is the embedding input for sym: its snippet plus detected tags.
func Text(sym models.SymbolRecord, lines []string, bodyLines int) string {
	return Enrich(Snippet(sym, lines, bodyLines))
}

// Enrich appends the tags detected in s. Symbols and queries both pass
// through it, so a query equal to a snippet embeds like that snippet.
func Enrich(s string) string {
	if tags := Tags(s); len(tags) > 0 {
		s += "\ntags: " + strings.Join(tags, ", ")
	}
	return s
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	s = s[:n]
	for !utf8.ValidString(s) {
		s = s[:len(s)-1]
	}
	return s
}
