package usecase

import (
	"strings"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// unionByText collapses candidates with identical text. Vector hits keep
// their order and come first; keyword-only hits follow in their own order.
func unionByText(vector, keyword []domain.Passage) []domain.Passage {
	index := make(map[string]int, len(vector)+len(keyword))
	out := make([]domain.Passage, 0, len(vector)+len(keyword))

	add := func(passages []domain.Passage, source domain.PassageSource) {
		for _, p := range passages {
			if strings.TrimSpace(p.Text) == "" {
				continue
			}
			if pos, ok := index[p.Text]; ok {
				if out[pos].Source != source {
					out[pos].Source = domain.SourceBoth
				}
				out[pos] = preferRicherPassage(out[pos], p)
				continue
			}
			p.Source = source
			index[p.Text] = len(out)
			out = append(out, p)
		}
	}

	add(vector, domain.SourceVector)
	add(keyword, domain.SourceKeyword)
	return out
}

func trimPassages(passages []domain.Passage, limit int) []domain.Passage {
	if limit <= 0 || len(passages) <= limit {
		return passages
	}
	return passages[:limit]
}

func preferRicherPassage(current, candidate domain.Passage) domain.Passage {
	if current.EventID == "" && candidate.EventID != "" {
		current.EventID = candidate.EventID
		current.ChunkID = candidate.ChunkID
	}
	return current
}
