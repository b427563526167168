package ports

import (
	"context"
	"io"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// EventStore is the relational store of events and chunks.
type EventStore interface {
	ExecuteSQL(ctx context.Context, query string, args ...any) domain.QueryResult
	InsertEvent(ctx context.Context, event *domain.Event, chunks []domain.Chunk) error
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
	ListChunks(ctx context.Context, eventID string) ([]domain.Chunk, error)
}

// ReportQueries are the templated statements behind report answers. Every
// method is funnelled through ExecuteSQL and returns its tagged result.
type ReportQueries interface {
	EventsInYear(ctx context.Context, year int) domain.QueryResult
	CountByDimension(ctx context.Context, year int, dim domain.Dimension) domain.QueryResult
	RunStructured(ctx context.Context, q domain.StructuredQuery) domain.QueryResult
}

// PassageIndex exposes the two retrieval primitives.
type PassageIndex interface {
	VectorSearch(ctx context.Context, vector []float32, limit int) ([]domain.Passage, error)
	KeywordSearch(ctx context.Context, text string, limit int) ([]domain.Passage, error)
}

// PassageIndexWriter is implemented by secondary indexes kept in sync from
// the event store.
type PassageIndexWriter interface {
	UpsertEvent(ctx context.Context, event *domain.Event, chunks []domain.Chunk) error
}

// Embedder builds vectors for stored text and query text.
type Embedder interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
	EmbedQuery(ctx context.Context, text string) ([]float32, error)
}

// Reranker scores candidates against a query. The result is parallel to
// candidates.
type Reranker interface {
	Rerank(ctx context.Context, query string, candidates []string) ([]float64, error)
}

// Generator is the generative-language oracle.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
	GenerateJSON(ctx context.Context, prompt string) (string, error)
}

// Chunker splits text into retrieval-sized pieces.
type Chunker interface {
	Split(text string) []string
}

// BrochureArchive keeps the original uploaded brochure files.
type BrochureArchive interface {
	Save(ctx context.Context, key string, data io.Reader) error
	Open(ctx context.Context, key string) (io.ReadCloser, error)
}

// BrochureExtractor turns an uploaded brochure into plain text.
type BrochureExtractor interface {
	Extract(ctx context.Context, filename, mimeType string, body io.Reader) (string, error)
}

// MessageQueue publishes and consumes event-ingested notifications.
type MessageQueue interface {
	PublishEventIngested(ctx context.Context, eventID string) error
	SubscribeEventIngested(ctx context.Context, handler func(context.Context, string) error) error
}

// PipelineObserver receives per-question and per-ingest telemetry.
type PipelineObserver interface {
	ObserveIntent(kind domain.IntentKind, fallback bool)
	ObserveRetrieval(candidates int, outcome domain.RetrievalOutcome)
	ObserveAnswer(kind domain.IntentKind, outcome string, elapsed time.Duration)
	ObserveIngest(status domain.IngestStatus)
}
