package ports

import (
	"context"
	"io"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// QuestionAnswerer is the sole upward entry point for questions. It always
// returns displayable text.
type QuestionAnswerer interface {
	Answer(ctx context.Context, question string) string
}

// EventIngestor is the inbound contract for new event submissions.
type EventIngestor interface {
	Ingest(ctx context.Context, form domain.EventForm) domain.IngestResult
	IngestWithBrochure(ctx context.Context, form domain.EventForm, brochure *domain.Brochure) domain.IngestResult
}

// BrochureReader serves the archived brochure of an event.
type BrochureReader interface {
	OpenBrochure(ctx context.Context, eventID string) (io.ReadCloser, error)
}

// EventReader is the inbound read model for stored events.
type EventReader interface {
	GetEvent(ctx context.Context, eventID string) (*domain.Event, error)
}

// ReportBuilder renders the annual report for a year.
type ReportBuilder interface {
	AnnualReport(ctx context.Context, year int) (domain.AnnualReport, error)
}

// EventIndexer mirrors a stored event into the secondary passage index.
type EventIndexer interface {
	IndexByID(ctx context.Context, eventID string) error
}
