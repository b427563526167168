package usecase

import (
	"context"
	"errors"
	"testing"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

type indexWriterFake struct {
	event  *domain.Event
	chunks []domain.Chunk
	err    error
}

func (f *indexWriterFake) UpsertEvent(_ context.Context, event *domain.Event, chunks []domain.Chunk) error {
	if f.err != nil {
		return f.err
	}
	f.event = event
	f.chunks = chunks
	return nil
}

func TestIndexByIDReusesStoredEmbeddings(t *testing.T) {
	store := &storeFake{
		events: map[string]domain.Event{"e1": {EventID: "e1", SearchText: "Event: e1", Embedding: []float32{1, 2}}},
		chunks: map[string][]domain.Chunk{"e1": {{EventID: "e1", ChunkID: 0, Text: "c", Embedding: []float32{3}}}},
	}
	embedder := &embedderFake{}
	writer := &indexWriterFake{}
	uc := NewIndexEventUseCase(store, embedder, writer)

	if err := uc.IndexByID(context.Background(), "e1"); err != nil {
		t.Fatalf("IndexByID() error = %v", err)
	}
	if embedder.embedCalls != 0 {
		t.Fatalf("stored embeddings must be reused")
	}
	if writer.event == nil || writer.event.EventID != "e1" || len(writer.chunks) != 1 {
		t.Fatalf("unexpected upsert: %+v %+v", writer.event, writer.chunks)
	}
}

func TestIndexByIDEmbedsMissingVectors(t *testing.T) {
	store := &storeFake{
		events: map[string]domain.Event{"e1": {EventID: "e1", Name: "E", Description: "d"}},
		chunks: map[string][]domain.Chunk{"e1": {{EventID: "e1", ChunkID: 0, Text: "chunk"}}},
	}
	embedder := &embedderFake{}
	writer := &indexWriterFake{}
	uc := NewIndexEventUseCase(store, embedder, writer)

	if err := uc.IndexByID(context.Background(), "e1"); err != nil {
		t.Fatalf("IndexByID() error = %v", err)
	}
	if embedder.embedCalls != 1 {
		t.Fatalf("expected one batch embed, got %d", embedder.embedCalls)
	}
	if len(writer.event.Embedding) == 0 || len(writer.chunks[0].Embedding) == 0 {
		t.Fatalf("expected embeddings to be filled")
	}
}

func TestIndexByIDNotFound(t *testing.T) {
	uc := NewIndexEventUseCase(&storeFake{}, &embedderFake{}, &indexWriterFake{})
	err := uc.IndexByID(context.Background(), "missing")
	if !domain.IsKind(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestIndexByIDUpsertError(t *testing.T) {
	store := &storeFake{events: map[string]domain.Event{"e1": {EventID: "e1", Embedding: []float32{1}}}}
	uc := NewIndexEventUseCase(store, &embedderFake{}, &indexWriterFake{err: errors.New("qdrant down")})
	if err := uc.IndexByID(context.Background(), "e1"); err == nil {
		t.Fatalf("expected error")
	}
}
