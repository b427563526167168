// Package lexical scores passages by query token overlap. It is the local
// fallback when no cross-encoder service is configured.
package lexical

import (
	"context"
	"strings"
	"unicode"
)

const (
	overlapWeight = 0.8
	headerWeight  = 0.2
)

type Reranker struct{}

func New() *Reranker {
	return &Reranker{}
}

// Rerank returns one score in [0, 1] per candidate, in input order.
func (r *Reranker) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	queryTokens := toTokenSet(query)
	scores := make([]float64, len(candidates))
	for i, text := range candidates {
		overlap := tokenOverlap(queryTokens, toTokenSet(text))
		scores[i] = overlapWeight*overlap + headerWeight*headerTokenHit(queryTokens, firstLine(text))
	}
	return scores, nil
}

func tokenOverlap(query, chunk map[string]struct{}) float64 {
	if len(query) == 0 || len(chunk) == 0 {
		return 0
	}
	matches := 0
	for token := range query {
		if _, ok := chunk[token]; ok {
			matches++
		}
	}
	return float64(matches) / float64(len(query))
}

// headerTokenHit rewards passages whose first line (the event name for
// whole-event passages) mentions any query token.
func headerTokenHit(query map[string]struct{}, header string) float64 {
	if len(query) == 0 || header == "" {
		return 0
	}
	header = strings.ToLower(header)
	for token := range query {
		if len(token) > 2 && strings.Contains(header, token) {
			return 1
		}
	}
	return 0
}

func firstLine(text string) string {
	if i := strings.IndexByte(text, '\n'); i >= 0 {
		return text[:i]
	}
	return text
}

func toTokenSet(s string) map[string]struct{} {
	tokens := splitAlphaNumLower(s)
	out := make(map[string]struct{}, len(tokens))
	for _, token := range tokens {
		out[token] = struct{}{}
	}
	return out
}

func splitAlphaNumLower(s string) []string {
	if s == "" {
		return nil
	}

	tokens := make([]string, 0, 16)
	var b strings.Builder
	for _, r := range s {
		r = unicode.ToLower(r)
		if unicode.IsLetter(r) || unicode.IsDigit(r) {
			b.WriteRune(r)
			continue
		}
		if b.Len() > 0 {
			tokens = append(tokens, b.String())
			b.Reset()
		}
	}
	if b.Len() > 0 {
		tokens = append(tokens, b.String())
	}
	return tokens
}
