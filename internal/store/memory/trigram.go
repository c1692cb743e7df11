package memory

import "strings"

// trigramSet extracts the trigram set of a string the way Postgres pg_trgm
// does: lowercase, split into alphanumeric words, each word padded with two
// leading spaces and one trailing space.
func trigramSet(s string) map[string]struct{} {
	set := make(map[string]struct{})
	for _, word := range splitAlnum(strings.ToLower(s)) {
		padded := "  " + word + " "
		for i := 0; i+3 <= len(padded); i++ {
			set[padded[i:i+3]] = struct{}{}
		}
	}
	return set
}

func splitAlnum(s string) []string {
	return strings.FieldsFunc(s, func(r rune) bool {
		isDigit := r >= '0' && r <= '9'
		isLower := r >= 'a' && r <= 'z'
		isUpper := r >= 'A' && r <= 'Z'
		return !isDigit && !isLower && !isUpper
	})
}

// similarity is |trigrams(a) ∩ trigrams(b)| / |trigrams(a) ∪ trigrams(b)|,
// the same measure pg_trgm's similarity() computes.
func similarity(a, b string) float64 {
	setA := trigramSet(a)
	setB := trigramSet(b)
	if len(setA) == 0 || len(setB) == 0 {
		return 0
	}

	shared := 0
	for t := range setA {
		if _, ok := setB[t]; ok {
			shared++
		}
	}
	union := len(setA) + len(setB) - shared
	if union == 0 {
		return 0
	}
	return float64(shared) / float64(union)
}
