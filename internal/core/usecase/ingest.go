package usecase

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"unicode/utf8"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

// IngestEventUseCase is the single writer of the event corpus. Concurrent
// submissions are refused with a busy result instead of queuing.
type IngestEventUseCase struct {
	store          ports.EventStore
	embedder       ports.Embedder
	chunker        ports.Chunker
	extractor      ports.BrochureExtractor
	archive        ports.BrochureArchive
	queue          ports.MessageQueue
	logger         *slog.Logger
	observer       ports.PipelineObserver
	chunkThreshold int

	writeMu sync.Mutex
}

func NewIngestEventUseCase(
	store ports.EventStore,
	embedder ports.Embedder,
	chunker ports.Chunker,
	extractor ports.BrochureExtractor,
	queue ports.MessageQueue,
	chunkThreshold int,
	logger *slog.Logger,
	observer ports.PipelineObserver,
) *IngestEventUseCase {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	if chunkThreshold <= 0 {
		chunkThreshold = 900
	}
	return &IngestEventUseCase{
		store:          store,
		embedder:       embedder,
		chunker:        chunker,
		extractor:      extractor,
		queue:          queue,
		logger:         logger,
		observer:       observer,
		chunkThreshold: chunkThreshold,
	}
}

// WithArchive keeps a copy of every brochure attached to a stored event.
func (uc *IngestEventUseCase) WithArchive(archive ports.BrochureArchive) *IngestEventUseCase {
	uc.archive = archive
	return uc
}

func (uc *IngestEventUseCase) Ingest(ctx context.Context, form domain.EventForm) domain.IngestResult {
	result := uc.ingest(ctx, form)
	uc.observer.ObserveIngest(result.Status)
	return result
}

// IngestWithBrochure appends the brochure text to the description before
// ingesting. An unreadable brochure rejects the submission.
func (uc *IngestEventUseCase) IngestWithBrochure(ctx context.Context, form domain.EventForm, brochure *domain.Brochure) domain.IngestResult {
	if brochure == nil || brochure.Body == nil || uc.extractor == nil {
		return uc.Ingest(ctx, form)
	}

	raw, err := io.ReadAll(brochure.Body)
	if err != nil {
		uc.logger.Warn("brochure_read_failed", "filename", brochure.Filename, "error", err.Error())
		result := ingestFailure("could not read the brochure")
		uc.observer.ObserveIngest(result.Status)
		return result
	}

	text, err := uc.extractor.Extract(ctx, brochure.Filename, brochure.MimeType, bytes.NewReader(raw))
	if err != nil {
		uc.logger.Warn("brochure_extract_failed", "filename", brochure.Filename, "error", err.Error())
		result := ingestFailure("could not read the brochure")
		uc.observer.ObserveIngest(result.Status)
		return result
	}
	if text = strings.TrimSpace(text); text != "" {
		form.Description = strings.TrimSpace(form.Description + "\n\n" + text)
	}

	result := uc.Ingest(ctx, form)
	if result.Status == domain.IngestSuccess && uc.archive != nil {
		if err := uc.archive.Save(ctx, brochureKey(result.EventID), bytes.NewReader(raw)); err != nil {
			uc.logger.Warn("brochure_archive_failed", "event_id", result.EventID, "error", err.Error())
		}
	}
	return result
}

// OpenBrochure returns the archived brochure of a stored event.
func (uc *IngestEventUseCase) OpenBrochure(ctx context.Context, eventID string) (io.ReadCloser, error) {
	if uc.archive == nil {
		return nil, domain.WrapError(domain.ErrEventNotFound, "open brochure", fmt.Errorf("no brochure archive configured"))
	}
	rc, err := uc.archive.Open(ctx, brochureKey(eventID))
	if err != nil {
		return nil, domain.WrapError(domain.ErrEventNotFound, "open brochure", err)
	}
	return rc, nil
}

func brochureKey(eventID string) string {
	return eventID + "/brochure"
}

func (uc *IngestEventUseCase) ingest(ctx context.Context, form domain.EventForm) domain.IngestResult {
	if err := form.Validate(); err != nil {
		result := ingestFailure(ValidationReason(err))
		result.Invalid = true
		return result
	}

	if !uc.writeMu.TryLock() {
		return domain.IngestResult{Status: domain.IngestBusy, Message: MsgBusy}
	}
	defer uc.writeMu.Unlock()

	event := form.ToEvent()
	event.SearchText = domain.BuildSearchText(event)

	chunks := uc.chunk(event)
	texts := make([]string, 0, len(chunks)+1)
	texts = append(texts, event.SearchText)
	for _, c := range chunks {
		texts = append(texts, c.Text)
	}

	vectors, err := uc.embedder.Embed(ctx, texts)
	if err == nil && len(vectors) != len(texts) {
		err = fmt.Errorf("vectors/texts mismatch: %d/%d", len(vectors), len(texts))
	}
	if err != nil {
		uc.logger.Error("ingest_embed_failed", "event_id", event.EventID, "error", err.Error())
		return ingestFailure("embedding service unavailable")
	}
	event.Embedding = vectors[0]
	for i := range chunks {
		chunks[i].Embedding = vectors[i+1]
	}

	if err := uc.store.InsertEvent(ctx, &event, chunks); err != nil {
		uc.logger.Error("ingest_insert_failed", "event_id", event.EventID, "error", err.Error())
		switch {
		case domain.IsKind(err, domain.ErrValidation):
			return ingestFailure("event already exists")
		case domain.IsKind(err, domain.ErrConnectionUnavailable):
			return ingestFailure("database unavailable")
		default:
			return ingestFailure("could not store the event")
		}
	}

	if uc.queue != nil {
		if err := uc.queue.PublishEventIngested(ctx, event.EventID); err != nil {
			uc.logger.Warn("ingest_publish_failed", "event_id", event.EventID, "error", err.Error())
		}
	}

	uc.logger.Info("event_ingested", "event_id", event.EventID, "chunks", len(chunks))
	return domain.IngestResult{
		Status:  domain.IngestSuccess,
		Message: MsgIngestSuccess,
		EventID: event.EventID,
	}
}

func (uc *IngestEventUseCase) chunk(event domain.Event) []domain.Chunk {
	if uc.chunker == nil || utf8.RuneCountInString(event.Description) <= uc.chunkThreshold {
		return nil
	}
	parts := uc.chunker.Split(event.Description)
	out := make([]domain.Chunk, 0, len(parts))
	for _, part := range parts {
		if strings.TrimSpace(part) == "" {
			continue
		}
		out = append(out, domain.Chunk{EventID: event.EventID, ChunkID: len(out), Text: part})
	}
	return out
}

func ingestFailure(reason string) domain.IngestResult {
	return domain.IngestResult{Status: domain.IngestError, Message: MsgIngestFailedPrefix + reason}
}

// ValidationReason returns the innermost message of a validation error.
func ValidationReason(err error) string {
	for {
		switch u := err.(type) {
		case interface{ Unwrap() []error }:
			errs := u.Unwrap()
			if len(errs) == 0 {
				return err.Error()
			}
			err = errs[len(errs)-1]
		case interface{ Unwrap() error }:
			next := u.Unwrap()
			if next == nil {
				return err.Error()
			}
			err = next
		default:
			return err.Error()
		}
	}
}
