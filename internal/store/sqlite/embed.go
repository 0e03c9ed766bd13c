package sqlite

import (
	"hash/fnv"
	"strings"
	"unicode"
)

// embedDim is the size of the hashed token vector. Collisions at this size
// are rare for sentence-length documents and only soften the ranking.
const embedDim = 256

// embedText hashes each lowercased token of text into a fixed-length count
// vector. The same text always produces the same vector.
func embedText(text string) []float32 {
	vec := make([]float32, embedDim)
	tokens := strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
	for _, token := range tokens {
		h := fnv.New32a()
		_, _ = h.Write([]byte(token))
		vec[h.Sum32()%embedDim]++
	}
	return vec
}

// overlapDistance scores how much of the query's token mass appears in the
// document: 0 means every query token occurs, 1 means none do. Query-centric
// coverage keeps short queries ("drx", a team name) close to the long summary
// sentences they reference, which plain cosine over token counts does not.
func overlapDistance(query, doc []float32) float64 {
	var total, covered float64
	for i, q := range query {
		if q == 0 {
			continue
		}
		total += float64(q)
		if i < len(doc) && doc[i] > 0 {
			covered += float64(q)
		}
	}
	if total == 0 {
		return 1
	}
	return 1 - covered/total
}
