package textutil

import (
	"regexp"
	"strings"

	"github.com/antzucaro/matchr"
)

var whitespaceRegex = regexp.MustCompile(`\s+`)

// NormalizeName lowercases the name and strips every whitespace character.
func NormalizeName(name string) string {
	name = strings.ToLower(name)
	return whitespaceRegex.ReplaceAllString(name, "")
}

// MatchName reports whether the normalized name contains any of the matchers.
func MatchName(name string, matchers []string) bool {
	name = NormalizeName(name)
	for _, m := range matchers {
		if strings.Contains(name, NormalizeName(m)) {
			return true
		}
	}
	return false
}

// BestMatch returns the index of the candidate most similar to query and its
// similarity in [0, 1]. a candidate containing the query scores 1, the rest
// are scored with jaro-winkler. returns -1 when no candidate reaches threshold.
func BestMatch(query string, candidates []string, threshold float64) (int, float64) {
	query = NormalizeName(query)
	if query == "" {
		return -1, 0
	}

	best := -1
	var bestSimilarity float64
	for i, candidate := range candidates {
		normalized := NormalizeName(candidate)

		var similarity float64
		if strings.Contains(normalized, query) {
			similarity = 1
		} else {
			similarity = matchr.JaroWinkler(query, normalized, false)
		}

		if similarity > bestSimilarity {
			bestSimilarity = similarity
			best = i
		}
	}

	if best < 0 || bestSimilarity < threshold {
		return -1, bestSimilarity
	}
	return best, bestSimilarity
}
