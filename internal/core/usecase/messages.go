package usecase

import (
	"time"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

// User-facing texts. Raw error detail never reaches these.
const (
	MsgNotFound           = "I couldn't find this information."
	MsgBusy               = "Server busy, try again shortly."
	MsgQueryFailed        = "I couldn't run that query against the events database."
	MsgSearchUnavailable  = "Search is temporarily unavailable, try again shortly."
	MsgEmptyQuestion      = "Please ask a question about club events."
	MsgUnexpected         = "Something went wrong while answering, try again shortly."
	MsgIngestSuccess      = "Event saved successfully."
	MsgIngestFailedPrefix = "Ingestion failed: "
)

// messageFor maps a typed failure to its fixed user message.
func messageFor(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrConnectionUnavailable), domain.IsKind(err, domain.ErrTemporary):
		return MsgBusy
	case domain.IsKind(err, domain.ErrQuery):
		return MsgQueryFailed
	case domain.IsKind(err, domain.ErrEmbedding),
		domain.IsKind(err, domain.ErrSearch),
		domain.IsKind(err, domain.ErrRerank):
		return MsgSearchUnavailable
	case domain.IsKind(err, domain.ErrEventNotFound):
		return MsgNotFound
	default:
		return MsgUnexpected
	}
}

// outcomeFor labels a failure by the stage that failed. Retrieval stages win
// over transport kinds, which any stage may carry as well.
func outcomeFor(err error) string {
	switch {
	case domain.IsKind(err, domain.ErrEmbedding):
		return "embedding_error"
	case domain.IsKind(err, domain.ErrRerank):
		return "rerank_error"
	case domain.IsKind(err, domain.ErrSearch):
		return "search_error"
	case domain.IsKind(err, domain.ErrConnectionUnavailable):
		return "connection_unavailable"
	case domain.IsKind(err, domain.ErrTemporary):
		return "temporary"
	case domain.IsKind(err, domain.ErrQuery):
		return "query_error"
	default:
		return "internal_error"
	}
}

type noopObserver struct{}

func (noopObserver) ObserveIntent(domain.IntentKind, bool) {}
func (noopObserver) ObserveRetrieval(int, domain.RetrievalOutcome) {}
func (noopObserver) ObserveAnswer(domain.IntentKind, string, time.Duration) {}
func (noopObserver) ObserveIngest(domain.IngestStatus) {}
