package usecase

import (
	"context"
	"errors"
	"fmt"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

// IndexEventUseCase mirrors a stored event and its chunks into a secondary
// passage index. Stored embeddings are reused; nothing is re-embedded unless
// a row predates embedding.
type IndexEventUseCase struct {
	store    ports.EventStore
	embedder ports.Embedder
	index    ports.PassageIndexWriter
}

func NewIndexEventUseCase(
	store ports.EventStore,
	embedder ports.Embedder,
	index ports.PassageIndexWriter,
) *IndexEventUseCase {
	return &IndexEventUseCase{
		store:    store,
		embedder: embedder,
		index:    index,
	}
}

func (uc *IndexEventUseCase) IndexByID(ctx context.Context, eventID string) error {
	event, err := uc.store.GetEvent(ctx, eventID)
	if err != nil {
		return fmt.Errorf("fetch event by id: %w", err)
	}

	chunks, err := uc.store.ListChunks(ctx, eventID)
	if err != nil {
		return fmt.Errorf("list event chunks: %w", err)
	}

	if err := uc.fillMissingEmbeddings(ctx, event, chunks); err != nil {
		return err
	}

	if err := uc.index.UpsertEvent(ctx, event, chunks); err != nil {
		return fmt.Errorf("upsert event into passage index: %w", err)
	}
	return nil
}

func (uc *IndexEventUseCase) fillMissingEmbeddings(ctx context.Context, event *domain.Event, chunks []domain.Chunk) error {
	var (
		texts   []string
		targets []*[]float32
	)
	if len(event.Embedding) == 0 {
		if event.SearchText == "" {
			event.SearchText = domain.BuildSearchText(*event)
		}
		texts = append(texts, event.SearchText)
		targets = append(targets, &event.Embedding)
	}
	for i := range chunks {
		if len(chunks[i].Embedding) == 0 {
			texts = append(texts, chunks[i].Text)
			targets = append(targets, &chunks[i].Embedding)
		}
	}
	if len(texts) == 0 {
		return nil
	}
	if uc.embedder == nil {
		return domain.WrapError(domain.ErrEmbedding, "embed missing vectors", errors.New("no embedder configured"))
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err != nil {
		return domain.WrapError(domain.ErrEmbedding, "embed missing vectors", err)
	}
	if len(vectors) != len(texts) {
		return domain.WrapError(
			domain.ErrEmbedding,
			"embed missing vectors",
			fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts)),
		)
	}
	for i, target := range targets {
		*target = vectors[i]
	}
	return nil
}
