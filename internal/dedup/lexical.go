package dedup

import "strings"

// wordSet tokenizes text into a set of lowercased words with surrounding
// punctuation trimmed.
func wordSet(text string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(text) {
		cleaned := strings.ToLower(strings.Trim(w, ".,!?;:'\"-()[]{}"))
		if cleaned != "" {
			set[cleaned] = true
		}
	}
	return set
}

// jaccard computes the Jaccard similarity of two word sets: the size of the
// intersection over the size of the union. Two empty sets score zero.
func jaccard(a, b map[string]bool) float64 {
	if len(a) == 0 || len(b) == 0 {
		return 0
	}
	intersection := 0
	for w := range a {
		if b[w] {
			intersection++
		}
	}
	union := len(a) + len(b) - intersection
	return float64(intersection) / float64(union)
}

// ContentOverlap scores the lexical similarity of two texts in [0,1].
func ContentOverlap(a, b string) float64 {
	return jaccard(wordSet(a), wordSet(b))
}
