package qdrant

import "testing"

func TestEncodeSparseQueryDeterministic(t *testing.T) {
	v1 := encodeSparseQuery("Robotics workshop in Hall A 2024")
	v2 := encodeSparseQuery("Robotics workshop in Hall A 2024")
	if len(v1.Indices) != len(v2.Indices) || len(v1.Values) != len(v2.Values) {
		t.Fatalf("vector sizes mismatch: v1=%d/%d v2=%d/%d", len(v1.Indices), len(v1.Values), len(v2.Indices), len(v2.Values))
	}
	for i := range v1.Indices {
		if v1.Indices[i] != v2.Indices[i] || v1.Values[i] != v2.Values[i] {
			t.Fatalf("mismatch at %d", i)
		}
	}
}

func TestEncodeSparseQuerySortsIndices(t *testing.T) {
	v := encodeSparseQuery("zulu alpha beta gamma")
	if len(v.Indices) == 0 {
		t.Fatalf("expected non-empty sparse vector")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] > v.Indices[i] {
			t.Fatalf("indices not sorted at %d: %d > %d", i, v.Indices[i-1], v.Indices[i])
		}
	}
}

func TestEncodeSparseQueryDropsNoiseAndStopWords(t *testing.T) {
	v := encodeSparseQuery("___ the --- of !!!")
	if len(v.Indices) != 0 || len(v.Values) != 0 {
		t.Fatalf("expected empty sparse vector, got %+v", v)
	}
}

func TestEncodeSparseDocumentBoostsEventName(t *testing.T) {
	plain := encodeSparseDocument("robotics", "")
	boosted := encodeSparseDocument("robotics", "Robotics")
	if len(plain.Values) != 1 || len(boosted.Values) != 1 {
		t.Fatalf("expected single term, got %+v / %+v", plain, boosted)
	}
	if boosted.Values[0] <= plain.Values[0] {
		t.Fatalf("expected name boost, got %v <= %v", boosted.Values[0], plain.Values[0])
	}
}

func TestTokenizeAlphaNumUnicodeAndDigitsStability(t *testing.T) {
	tokens := tokenizeAlphaNum("Hackathon EVT_2024 café-night")
	want := map[string]bool{"hackathon": false, "evt": false, "2024": false, "café": false}
	for _, tok := range tokens {
		if _, ok := want[tok]; ok {
			want[tok] = true
		}
	}
	for tok, found := range want {
		if !found {
			t.Fatalf("expected token %q in %v", tok, tokens)
		}
	}
}

func TestTokenizeAlphaNumSplitsGluedYears(t *testing.T) {
	got := tokenizeAlphaNum("Hackathon2023 recap")
	want := []string{"hackathon2023", "hackathon", "2023", "recap"}
	if len(got) != len(want) {
		t.Fatalf("tokenizeAlphaNum() = %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("tokenizeAlphaNum() = %v, want %v", got, want)
		}
	}

	doc := encodeSparseDocument("Hackathon2023 recap", "")
	query := encodeSparseQuery("hackathon 2023")
	shared := 0
	for _, q := range query.Indices {
		for _, d := range doc.Indices {
			if q == d {
				shared++
			}
		}
	}
	if shared != 2 {
		t.Fatalf("expected both query terms to hit the glued document, got %d", shared)
	}
}

func TestSaturateKeepsHeaviestTerms(t *testing.T) {
	tf := make(map[uint32]float64, maxSparseTerms+10)
	for i := uint32(1); i <= maxSparseTerms+9; i++ {
		tf[i] = 1
	}
	tf[maxSparseTerms+10] = 5

	v := saturate(tf)
	if len(v.Indices) != maxSparseTerms {
		t.Fatalf("expected %d terms, got %d", maxSparseTerms, len(v.Indices))
	}
	if v.Indices[len(v.Indices)-1] != maxSparseTerms+10 {
		t.Fatalf("expected the heaviest term to survive truncation")
	}
	for i := 1; i < len(v.Indices); i++ {
		if v.Indices[i-1] >= v.Indices[i] {
			t.Fatalf("indices not sorted at %d", i)
		}
	}
}
