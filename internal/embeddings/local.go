package embeddings

import (
	"context"
	"math"
	"strings"
	"unicode"

	"github.com/cespare/xxhash/v2"
	"github.com/surgebase/porter2"
)

const DefaultLocalDimension = 256

// LocalEmbedder is a model-free bag-of-stems embedder. Identifiers are split
// on case and underscores, stemmed, and hashed into signed buckets together
// with adjacent-token bigrams. Identical texts always embed identically.
type LocalEmbedder struct {
	dim int
}

func NewLocal(dim int) *LocalEmbedder {
	if dim <= 0 {
		dim = DefaultLocalDimension
	}
	return &LocalEmbedder{dim: dim}
}

func (e *LocalEmbedder) ModelName() string { return "local-stem-hash" }

func (e *LocalEmbedder) EmbedTexts(ctx context.Context, texts []string) ([][]float32, error) {
	vecs := make([][]float32, len(texts))
	for i, t := range texts {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		vecs[i] = e.vector(t)
	}
	return vecs, nil
}

func (e *LocalEmbedder) EmbedQuery(ctx context.Context, text string) ([]float32, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return e.vector(text), nil
}

func (e *LocalEmbedder) vector(text string) []float32 {
	vec := make([]float32, e.dim)
	tokens := Tokenize(text)
	add := func(feature string, weight float32) {
		h := xxhash.Sum64String(feature)
		sign := float32(1)
		if h>>63 == 1 {
			sign = -1
		}
		vec[h%uint64(e.dim)] += sign * weight
	}
	for i, t := range tokens {
		add(t, 1)
		if i > 0 {
			add(tokens[i-1]+" "+t, 0.5)
		}
	}
	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm > 0 {
		inv := float32(1 / math.Sqrt(norm))
		for i := range vec {
			vec[i] *= inv
		}
	}
	return vec
}

// Tokenize splits text into lower-case stems. camelCase and snake_case
// identifiers yield one token per word.
func Tokenize(text string) []string {
	var out []string
	var word []rune
	flush := func() {
		if len(word) == 0 {
			return
		}
		w := strings.ToLower(string(word))
		word = word[:0]
		if len(w) < 2 && !unicode.IsDigit(rune(w[0])) {
			return
		}
		out = append(out, porter2.Stem(w))
	}
	rs := []rune(text)
	for i, r := range rs {
		switch {
		case unicode.IsLetter(r) || unicode.IsDigit(r):
			if unicode.IsUpper(r) && len(word) > 0 {
				prev := rs[i-1]
				nextLower := i+1 < len(rs) && unicode.IsLower(rs[i+1])
				if unicode.IsLower(prev) || unicode.IsDigit(prev) || (unicode.IsUpper(prev) && nextLower) {
					flush()
				}
			}
			word = append(word, r)
		default:
			flush()
		}
	}
	flush()
	return out
}
