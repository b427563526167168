package usecase

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

// DefaultQueryInstruction is prepended to query text before embedding.
// Stored passages are embedded without it.
const DefaultQueryInstruction = "Represent this sentence for searching relevant passages: "

type RetrievalLimits struct {
	VectorTopK       int
	KeywordTopK      int
	TopK             int
	QueryInstruction string
}

type HybridRetriever struct {
	embedder ports.Embedder
	index    ports.PassageIndex
	reranker ports.Reranker
	limits   RetrievalLimits
}

func NewHybridRetriever(
	embedder ports.Embedder,
	index ports.PassageIndex,
	reranker ports.Reranker,
	limits RetrievalLimits,
) *HybridRetriever {
	if limits.VectorTopK <= 0 {
		limits.VectorTopK = 25
	}
	if limits.KeywordTopK <= 0 {
		limits.KeywordTopK = 25
	}
	if limits.TopK <= 0 {
		limits.TopK = 5
	}
	if limits.QueryInstruction == "" {
		limits.QueryInstruction = DefaultQueryInstruction
	}

	return &HybridRetriever{
		embedder: embedder,
		index:    index,
		reranker: reranker,
		limits:   limits,
	}
}

// Search returns at most TopK passages ordered by descending reranker score.
// An empty candidate union is reported as no_matches, never as an error.
func (r *HybridRetriever) Search(ctx context.Context, query string) (domain.RetrievalResult, error) {
	queryVector, err := r.embedder.EmbedQuery(ctx, r.limits.QueryInstruction+query)
	if err != nil {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrEmbedding, "embed query", err)
	}

	var vectorHits, keywordHits []domain.Passage
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		hits, err := r.index.VectorSearch(gctx, queryVector, r.limits.VectorTopK)
		if err != nil {
			return fmt.Errorf("vector search: %w", err)
		}
		vectorHits = hits
		return nil
	})
	g.Go(func() error {
		hits, err := r.index.KeywordSearch(gctx, query, r.limits.KeywordTopK)
		if err != nil {
			return fmt.Errorf("keyword search: %w", err)
		}
		keywordHits = hits
		return nil
	})
	if err := g.Wait(); err != nil {
		return domain.RetrievalResult{}, domain.WrapError(domain.ErrSearch, "hybrid search", err)
	}

	candidates := unionByText(vectorHits, keywordHits)
	if len(candidates) == 0 {
		return domain.NoMatches(), nil
	}

	ranked, err := r.rerank(ctx, query, candidates)
	if err != nil {
		return domain.RetrievalResult{}, err
	}

	return domain.RetrievalResult{
		Outcome:  domain.RetrievalFound,
		Passages: trimPassages(ranked, r.limits.TopK),
	}, nil
}

func (r *HybridRetriever) rerank(ctx context.Context, query string, candidates []domain.Passage) ([]domain.Passage, error) {
	texts := make([]string, len(candidates))
	for i, c := range candidates {
		texts[i] = c.Text
	}

	scores, err := r.reranker.Rerank(ctx, query, texts)
	if err != nil {
		return nil, domain.WrapError(domain.ErrRerank, "rerank candidates", err)
	}
	if len(scores) != len(candidates) {
		return nil, domain.WrapError(
			domain.ErrRerank,
			"rerank candidates",
			fmt.Errorf("scores/candidates mismatch: %d/%d", len(scores), len(candidates)),
		)
	}

	out := make([]domain.Passage, len(candidates))
	copy(out, candidates)
	for i := range out {
		out[i].Score = scores[i]
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].Score > out[j].Score
	})
	return out, nil
}
