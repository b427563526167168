package qdrant

import (
	"cmp"
	"hash/fnv"
	"slices"
	"strings"
	"unicode"
)

// sparseVector is the keyword side of a hybrid point: hashed terms with a
// saturated term frequency, scored by qdrant as a dot product.
type sparseVector struct {
	Indices []uint32  `json:"indices"`
	Values  []float32 `json:"values"`
}

const (
	tfSaturation   = 1.2
	nameBoost      = 1.5
	maxSparseTerms = 256
)

// stopWords mirrors the common English words dropped by the postgres
// english text search configuration, so both keyword paths agree.
var stopWords = map[string]struct{}{
	"a": {}, "an": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "by": {},
	"did": {}, "do": {}, "for": {}, "from": {}, "how": {}, "in": {}, "is": {}, "it": {},
	"of": {}, "on": {}, "or": {}, "the": {}, "this": {}, "to": {}, "was": {}, "what": {},
	"when": {}, "where": {}, "which": {}, "who": {}, "with": {},
}

// encodeSparseDocument weighs terms of the event name above the body so an
// exact title hit outranks a passing mention.
func encodeSparseDocument(text, eventName string) sparseVector {
	tf := make(map[uint32]float64, 64)
	addTerms(tf, text, 1)
	addTerms(tf, eventName, nameBoost)
	return saturate(tf)
}

func encodeSparseQuery(query string) sparseVector {
	tf := make(map[uint32]float64, 16)
	addTerms(tf, query, 1)
	return saturate(tf)
}

func addTerms(tf map[uint32]float64, text string, weight float64) {
	for _, token := range tokenizeAlphaNum(text) {
		if _, stop := stopWords[token]; stop {
			continue
		}
		tf[hashToken(token)] += weight
	}
}

// saturate keeps the maxSparseTerms heaviest terms and returns them in
// index order.
func saturate(tf map[uint32]float64) sparseVector {
	if len(tf) == 0 {
		return sparseVector{}
	}
	indices := make([]uint32, 0, len(tf))
	for idx := range tf {
		indices = append(indices, idx)
	}
	if len(indices) > maxSparseTerms {
		slices.SortFunc(indices, func(a, b uint32) int {
			if c := cmp.Compare(tf[b], tf[a]); c != 0 {
				return c
			}
			return cmp.Compare(a, b)
		})
		indices = indices[:maxSparseTerms]
	}
	slices.Sort(indices)

	out := sparseVector{Indices: indices, Values: make([]float32, len(indices))}
	for i, idx := range indices {
		f := tf[idx]
		out.Values[i] = float32(f * (tfSaturation + 1) / (f + tfSaturation))
	}
	return out
}

func hashToken(token string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(token))
	// Index 0 is reserved by some sparse encoders; keep clear of it.
	return max(h.Sum32(), 1)
}

// tokenizeAlphaNum lowercases and splits on anything but letters and digits.
// A token that glues letters to digits ("hackathon2023") is kept whole and
// also split, so it matches both spellings.
func tokenizeAlphaNum(s string) []string {
	var out []string
	var b strings.Builder
	flush := func() {
		if b.Len() == 0 {
			return
		}
		token := b.String()
		b.Reset()
		out = append(out, token)
		if parts := splitLetterDigit(token); len(parts) > 1 {
			out = append(out, parts...)
		}
	}
	for _, r := range s {
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(unicode.ToLower(r))
			continue
		}
		flush()
	}
	flush()
	return out
}

func splitLetterDigit(token string) []string {
	var parts []string
	start := 0
	prevDigit := false
	for i, r := range token {
		digit := unicode.IsDigit(r)
		if i > 0 && digit != prevDigit {
			parts = append(parts, token[start:i])
			start = i
		}
		prevDigit = digit
	}
	return append(parts, token[start:])
}
