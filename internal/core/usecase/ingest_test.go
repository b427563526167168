package usecase

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

func validForm() domain.EventForm {
	return domain.EventForm{
		Title:       "Intro to AI Agents",
		Domain:      "AI",
		Date:        "2024-03-10",
		Venue:       "Hall A",
		Perks:       "Certificates",
		Description: "A hands-on session on building agents.",
	}
}

func newIngest(store *storeFake, embedder *embedderFake, queue *queueFake, observer *observerFake) *IngestEventUseCase {
	if queue == nil {
		queue = &queueFake{}
	}
	if observer == nil {
		observer = &observerFake{}
	}
	return NewIngestEventUseCase(store, embedder, &chunkerFake{chunks: []string{"part one", "part two"}}, &extractorFake{text: "Brochure text"}, queue, 20, nil, observer)
}

func TestIngestSuccessBuildsSearchTextAndPublishes(t *testing.T) {
	store := &storeFake{}
	queue := &queueFake{}
	observer := &observerFake{}
	uc := newIngest(store, &embedderFake{}, queue, observer)

	res := uc.Ingest(context.Background(), validForm())
	if res.Status != domain.IngestSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.EventID != "Intro_to_AI_Agents" {
		t.Fatalf("expected normalized id, got %q", res.EventID)
	}
	if len(store.inserted) != 1 {
		t.Fatalf("expected one insert, got %d", len(store.inserted))
	}
	ev := store.inserted[0]
	if ev.SearchText != domain.BuildSearchText(ev) {
		t.Fatalf("search text must be reconstructible from stored fields")
	}
	want := "Event: Intro to AI Agents\nDomain: AI\nDescription: A hands-on session on building agents.\nPerks: Certificates"
	if ev.SearchText != want {
		t.Fatalf("unexpected search text %q", ev.SearchText)
	}
	if len(ev.Embedding) == 0 || ev.Embedding[0] != float32(len(ev.SearchText)) {
		t.Fatalf("embedding must be derived from search text, got %v", ev.Embedding)
	}
	if ev.Time != domain.NotAvailable || ev.RegistrationFee != "0" {
		t.Fatalf("expected defaults for optional fields, got time=%q fee=%q", ev.Time, ev.RegistrationFee)
	}
	if len(queue.published) != 1 || queue.published[0] != res.EventID {
		t.Fatalf("expected publish of %s, got %v", res.EventID, queue.published)
	}
	if observer.ingests[0] != domain.IngestSuccess {
		t.Fatalf("expected success to be observed")
	}
}

func TestIngestChunksLongDescriptions(t *testing.T) {
	store := &storeFake{}
	uc := newIngest(store, &embedderFake{}, nil, nil)

	form := validForm()
	form.Description = strings.Repeat("long text ", 10)
	if res := uc.Ingest(context.Background(), form); res.Status != domain.IngestSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	chunks := store.chunks["Intro_to_AI_Agents"]
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}
	if chunks[1].ChunkID != 1 || len(chunks[1].Embedding) == 0 {
		t.Fatalf("unexpected chunk %+v", chunks[1])
	}
}

func TestIngestValidationRejectsBeforeAnyWork(t *testing.T) {
	tests := []struct {
		name string
		form domain.EventForm
		want string
	}{
		{"missing description", domain.EventForm{Title: "X"}, "description is required"},
		{"missing id and title", domain.EventForm{Description: "d"}, "event id or title is required"},
		{"bad date", domain.EventForm{Title: "X", Description: "d", Date: "10/03/2024"}, "date must be YYYY-MM-DD"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			store := &storeFake{}
			embedder := &embedderFake{}
			uc := newIngest(store, embedder, nil, nil)

			res := uc.Ingest(context.Background(), tt.form)
			if res.Status != domain.IngestError {
				t.Fatalf("expected error status, got %+v", res)
			}
			if res.Message != MsgIngestFailedPrefix+tt.want || !res.Invalid {
				t.Fatalf("unexpected result %+v", res)
			}
			if embedder.embedCalls != 0 || len(store.inserted) != 0 {
				t.Fatalf("validation failure must not embed or write")
			}
		})
	}
}

func TestIngestConcurrentSubmissionIsBusy(t *testing.T) {
	store := &storeFake{block: make(chan struct{}), entered: make(chan struct{}, 1)}
	uc := newIngest(store, &embedderFake{}, nil, nil)

	done := make(chan domain.IngestResult, 1)
	go func() {
		done <- uc.Ingest(context.Background(), validForm())
	}()
	<-store.entered

	second := validForm()
	second.Title = "Another Event"
	res := uc.Ingest(context.Background(), second)
	if res.Status != domain.IngestBusy || res.Message != MsgBusy {
		t.Fatalf("expected busy, got %+v", res)
	}

	close(store.block)
	first := <-done
	if first.Status != domain.IngestSuccess {
		t.Fatalf("first ingestion must complete, got %+v", first)
	}
	if len(store.inserted) != 1 || store.inserted[0].EventID != "Intro_to_AI_Agents" {
		t.Fatalf("unexpected inserts: %+v", store.inserted)
	}
}

func TestIngestDuplicateEvent(t *testing.T) {
	store := &storeFake{insertErr: domain.WrapError(domain.ErrValidation, "insert event", errors.New("duplicate key"))}
	uc := newIngest(store, &embedderFake{}, nil, nil)

	res := uc.Ingest(context.Background(), validForm())
	if res.Status != domain.IngestError || res.Message != MsgIngestFailedPrefix+"event already exists" {
		t.Fatalf("unexpected result %+v", res)
	}
}

func TestIngestEmbeddingFailureWritesNothing(t *testing.T) {
	store := &storeFake{}
	uc := newIngest(store, &embedderFake{err: errors.New("connection refused")}, nil, nil)

	res := uc.Ingest(context.Background(), validForm())
	if res.Status != domain.IngestError {
		t.Fatalf("expected error, got %+v", res)
	}
	if strings.Contains(res.Message, "refused") {
		t.Fatalf("raw error leaked: %q", res.Message)
	}
	if len(store.inserted) != 0 {
		t.Fatalf("no write expected")
	}
}

func TestIngestWithBrochureAppendsText(t *testing.T) {
	store := &storeFake{}
	uc := newIngest(store, &embedderFake{}, nil, nil)

	res := uc.IngestWithBrochure(context.Background(), validForm(), &domain.Brochure{
		Filename: "flyer.txt",
		MimeType: "text/plain",
		Body:     strings.NewReader("ignored by fake"),
	})
	if res.Status != domain.IngestSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if !strings.HasSuffix(store.inserted[0].Description, "\n\nBrochure text") {
		t.Fatalf("expected brochure text appended, got %q", store.inserted[0].Description)
	}
}

func TestIngestWithBrochureSuppliesMissingDescription(t *testing.T) {
	form := validForm()
	form.Description = ""

	store := &storeFake{}
	res := newIngest(store, &embedderFake{}, nil, nil).IngestWithBrochure(context.Background(), form, &domain.Brochure{
		Filename: "flyer.pdf",
		Body:     strings.NewReader("%PDF"),
	})
	if res.Status != domain.IngestSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if store.inserted[0].Description != "Brochure text" {
		t.Fatalf("expected brochure text as description, got %q", store.inserted[0].Description)
	}

	blank := NewIngestEventUseCase(&storeFake{}, &embedderFake{}, &chunkerFake{}, &extractorFake{text: "  "}, &queueFake{}, 20, nil, &observerFake{})
	res = blank.IngestWithBrochure(context.Background(), form, &domain.Brochure{Filename: "empty.pdf", Body: strings.NewReader("%PDF")})
	if res.Status != domain.IngestError || !res.Invalid || res.Message != MsgIngestFailedPrefix+"description is required" {
		t.Fatalf("expected invalid submission, got %+v", res)
	}
}

func TestIngestWithBrochureArchivesOriginalOnSuccess(t *testing.T) {
	archive := &archiveFake{files: map[string]string{}}
	uc := newIngest(&storeFake{}, &embedderFake{}, nil, nil).WithArchive(archive)

	res := uc.IngestWithBrochure(context.Background(), validForm(), &domain.Brochure{
		Filename: "flyer.txt",
		Body:     strings.NewReader("original bytes"),
	})
	if res.Status != domain.IngestSuccess {
		t.Fatalf("expected success, got %+v", res)
	}
	if archive.files["Intro_to_AI_Agents/brochure"] != "original bytes" {
		t.Fatalf("expected brochure archived, got %v", archive.files)
	}

	rc, err := uc.OpenBrochure(context.Background(), "Intro_to_AI_Agents")
	if err != nil {
		t.Fatalf("OpenBrochure() error = %v", err)
	}
	_ = rc.Close()

	if _, err := uc.OpenBrochure(context.Background(), "missing"); !domain.IsKind(err, domain.ErrEventNotFound) {
		t.Fatalf("expected ErrEventNotFound, got %v", err)
	}
}

func TestIngestWithBrochureSkipsArchiveOnFailure(t *testing.T) {
	archive := &archiveFake{files: map[string]string{}}
	store := &storeFake{insertErr: domain.WrapError(domain.ErrValidation, "insert event", errors.New("event already exists"))}
	uc := newIngest(store, &embedderFake{}, nil, nil).WithArchive(archive)

	res := uc.IngestWithBrochure(context.Background(), validForm(), &domain.Brochure{Filename: "a.txt", Body: strings.NewReader("x")})
	if res.Status != domain.IngestError {
		t.Fatalf("expected error, got %+v", res)
	}
	if len(archive.files) != 0 {
		t.Fatalf("nothing should be archived, got %v", archive.files)
	}
}
