package usecase

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

// QueryPipeline runs classify, then report or retrieval, then compose. It
// performs no retries of its own.
type QueryPipeline struct {
	router    *IntentRouter
	retriever *HybridRetriever
	composer  *AnswerComposer
	logger    *slog.Logger
	observer  ports.PipelineObserver
}

func NewQueryPipeline(
	router *IntentRouter,
	retriever *HybridRetriever,
	composer *AnswerComposer,
	logger *slog.Logger,
	observer ports.PipelineObserver,
) *QueryPipeline {
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &QueryPipeline{
		router:    router,
		retriever: retriever,
		composer:  composer,
		logger:    logger,
		observer:  observer,
	}
}

// Answer always returns displayable text.
func (p *QueryPipeline) Answer(ctx context.Context, question string) (answer string) {
	started := time.Now()
	kind := domain.IntentKind("")
	outcome := "answered"

	defer func() {
		if rec := recover(); rec != nil {
			p.logger.Error("pipeline_panic", "panic", rec, "intent", string(kind))
			answer = MsgUnexpected
			outcome = "panic"
		}
		p.observer.ObserveAnswer(kind, outcome, time.Since(started))
	}()

	question = strings.TrimSpace(question)
	if question == "" {
		outcome = "empty_question"
		return MsgEmptyQuestion
	}

	intent := p.router.Classify(ctx, question)
	kind = intent.Kind

	if intent.Kind.UsesReport() {
		text, err := p.composer.ComposeReport(ctx, intent)
		if err != nil {
			outcome = outcomeFor(err)
			p.logger.Error("report_failed", "intent", string(kind), "year", intent.Year, "error", err.Error())
			return messageFor(err)
		}
		return text
	}

	query := question
	if intent.Kind == domain.IntentSemantic && strings.TrimSpace(intent.SearchText) != "" {
		query = intent.SearchText
	}

	retrieval, err := p.retriever.Search(ctx, query)
	if err != nil {
		outcome = outcomeFor(err)
		p.logger.Error("retrieval_failed", "intent", string(kind), "error", err.Error())
		return messageFor(err)
	}
	p.observer.ObserveRetrieval(len(retrieval.Passages), retrieval.Outcome)

	answer = p.composer.ComposeGrounded(ctx, question, intent, retrieval)
	if answer == MsgNotFound {
		outcome = "not_found"
	}
	return answer
}
