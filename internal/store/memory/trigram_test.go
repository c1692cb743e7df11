package memory

import "testing"

func TestSimilarityBounds(t *testing.T) {
	if got := similarity("maggi", "maggi"); got != 1.0 {
		t.Fatalf("expected identical strings to score 1.0, got %v", got)
	}
	if got := similarity("abc", "xyz"); got != 0 {
		t.Fatalf("expected disjoint strings to score 0, got %v", got)
	}
	if got := similarity("", "maggi"); got != 0 {
		t.Fatalf("expected empty string to score 0, got %v", got)
	}
}

func TestSimilaritySurvivesTypos(t *testing.T) {
	typo := similarity("maggi noodles", "maggi noodels")
	if typo <= 0.3 {
		t.Fatalf("expected a transposition to stay above the resolve floor, got %v", typo)
	}
	unrelated := similarity("maggi noodles", "coca cola")
	if unrelated >= typo {
		t.Fatalf("expected unrelated text to score below a typo: %v vs %v", unrelated, typo)
	}
}

func TestTrigramSetMatchesPgTrgmPadding(t *testing.T) {
	set := trigramSet("ab")
	for _, want := range []string{"  a", " ab", "ab "} {
		if _, ok := set[want]; !ok {
			t.Fatalf("expected trigram %q in set", want)
		}
	}
	if len(set) != 3 {
		t.Fatalf("expected 3 trigrams for a two-letter word, got %d", len(set))
	}
}
