// Package crossencoder calls a text-embeddings-inference compatible
// /rerank endpoint hosting a cross-encoder model.
package crossencoder

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

type Client struct {
	baseURL    string
	httpClient *http.Client
	executor   *resilience.Executor
}

func New(baseURL string, executor *resilience.Executor) *Client {
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		executor:   executor,
	}
}

type rerankRequest struct {
	Query     string   `json:"query"`
	Texts     []string `json:"texts"`
	RawScores bool     `json:"raw_scores"`
}

type rerankHit struct {
	Index int     `json:"index"`
	Score float64 `json:"score"`
}

// Rerank returns one relevance score per candidate, in input order.
func (c *Client) Rerank(ctx context.Context, query string, candidates []string) ([]float64, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	var hits []rerankHit
	call := func(callCtx context.Context) error {
		hits = hits[:0]
		return resilience.PostJSON(callCtx, c.httpClient, "cross-encoder", "rerank", c.baseURL+"/rerank",
			rerankRequest{Query: query, Texts: candidates}, &hits)
	}

	var err error
	if c.executor != nil {
		err = c.executor.Execute(ctx, "crossencoder.rerank", call, resilience.ClassifyHTTP)
	} else {
		err = call(ctx)
	}
	if err != nil {
		return nil, rerankError(len(candidates), err)
	}

	scores := make([]float64, len(candidates))
	seen := make([]bool, len(candidates))
	for _, hit := range hits {
		if hit.Index < 0 || hit.Index >= len(candidates) {
			return nil, domain.WrapError(domain.ErrRerank, "cross-encoder rerank",
				fmt.Errorf("score index %d out of range", hit.Index))
		}
		scores[hit.Index] = hit.Score
		seen[hit.Index] = true
	}
	for i, ok := range seen {
		if !ok {
			return nil, domain.WrapError(domain.ErrRerank, "cross-encoder rerank",
				fmt.Errorf("missing score for candidate %d", i))
		}
	}
	return scores, nil
}
