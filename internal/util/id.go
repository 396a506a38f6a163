package util

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"strings"

	"github.com/cespare/xxhash/v2"
)

// QualifiedName joins a repository-relative file path and a symbol path
// (`name` or `Class.method`).
func QualifiedName(file, name string) string {
	return file + ":" + name
}

// SplitQualified returns the file and symbol path of a qualified name. A bare
// name yields an empty file.
func SplitQualified(q string) (file, name string) {
	if i := strings.LastIndexByte(q, ':'); i >= 0 {
		return q[:i], q[i+1:]
	}
	return "", q
}

// Disambiguate appends the definition line to a qualified name that is already taken.
func Disambiguate(q string, line int) string {
	return q + "@" + strconv.Itoa(line)
}

// ContentHash is the fast change-detection hash used for files and symbol bodies.
func ContentHash(b []byte) string {
	return strconv.FormatUint(xxhash.Sum64(b), 16)
}

func ContentHashString(s string) string {
	return strconv.FormatUint(xxhash.Sum64String(s), 16)
}

// BodyHash covers a symbol's source and the doc comment written above it, so
// editing either one changes the hash.
func BodyHash(doc, text string) string {
	if doc == "" {
		return ContentHashString(text)
	}
	return ContentHashString(doc + "\x00" + text)
}

// StructuralHash hashes a canonical token stream.
func StructuralHash(tokens []string) string {
	h := sha256.New()
	for _, t := range tokens {
		h.Write([]byte(t))
		h.Write([]byte{0})
	}
	return hex.EncodeToString(h.Sum(nil))
}
