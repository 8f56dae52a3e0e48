// Package recall picks the context notes most relevant to a prompt.
//
// Notes are ranked by how many prompt keywords they mention, found in one
// pass with an Aho-Corasick automaton, with ties broken by cosine similarity
// of hashed term vectors held in an HNSW index.
package recall

import (
	"hash/fnv"
	"math"
	"strings"
	"unicode"

	"github.com/orsinium-labs/stopwords"
)

// Dim is the length of hashed term vectors.
const Dim = 64

// minTermLen drops single letters, which are mostly noise.
const minTermLen = 2

var english = stopwords.MustGet("en")

// tokenize splits text into lowercase words.
func tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

// Keywords returns the distinct non-stop-words of text in first-seen order.
func Keywords(text string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, w := range tokenize(text) {
		if len(w) < minTermLen || english.Contains(w) || seen[w] {
			continue
		}
		seen[w] = true
		out = append(out, w)
	}
	return out
}

// Embed hashes the keywords of text into a unit-length vector.
// Text without keywords yields the zero vector.
func Embed(text string) []float32 {
	vec := make([]float32, Dim)
	for _, w := range tokenize(text) {
		if len(w) < minTermLen || english.Contains(w) {
			continue
		}
		h := fnv.New32a()
		h.Write([]byte(w))
		sum := h.Sum32()
		// The high bit picks the sign so collisions tend to cancel.
		if sum&0x80000000 != 0 {
			vec[sum%Dim]--
		} else {
			vec[sum%Dim]++
		}
	}

	var norm float64
	for _, v := range vec {
		norm += float64(v) * float64(v)
	}
	if norm == 0 {
		return vec
	}
	inv := float32(1 / math.Sqrt(norm))
	for i := range vec {
		vec[i] *= inv
	}
	return vec
}

func isZero(vec []float32) bool {
	for _, v := range vec {
		if v != 0 {
			return false
		}
	}
	return true
}
