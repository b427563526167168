package domain

type PassageSource string

const (
	SourceVector  PassageSource = "vector"
	SourceKeyword PassageSource = "keyword"
	SourceBoth    PassageSource = "both"
)

// Passage is a retrieval candidate. Score semantics depend on the stage:
// vector distance, keyword rank, then reranker relevance.
type Passage struct {
	EventID string        `json:"event_id"`
	ChunkID int           `json:"chunk_id"`
	Text    string        `json:"text"`
	Source  PassageSource `json:"source"`
	Score   float64       `json:"score"`
}

type RetrievalOutcome string

const (
	RetrievalFound     RetrievalOutcome = "found"
	RetrievalNoMatches RetrievalOutcome = "no_matches"
)

// RetrievalResult separates "nothing relevant" from retrieval errors, which
// are returned as errors instead.
type RetrievalResult struct {
	Outcome  RetrievalOutcome `json:"outcome"`
	Passages []Passage        `json:"passages"`
}

func NoMatches() RetrievalResult {
	return RetrievalResult{Outcome: RetrievalNoMatches}
}

func (r RetrievalResult) Empty() bool {
	return r.Outcome == RetrievalNoMatches || len(r.Passages) == 0
}
