package usecase

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

// AnswerComposer builds the final text either from relational rows or from
// retrieved passages via grounded generation.
type AnswerComposer struct {
	reports   *ReportService
	queries   ports.ReportQueries
	generator ports.Generator
	logger    *slog.Logger
}

func NewAnswerComposer(
	reports *ReportService,
	queries ports.ReportQueries,
	generator ports.Generator,
	logger *slog.Logger,
) *AnswerComposer {
	if logger == nil {
		logger = slog.Default()
	}
	return &AnswerComposer{
		reports:   reports,
		queries:   queries,
		generator: generator,
		logger:    logger,
	}
}

// ComposeReport answers MULTI, ANALYTICS and STRUCTURED intents without the
// generative oracle.
func (c *AnswerComposer) ComposeReport(ctx context.Context, intent domain.ParsedIntent) (string, error) {
	switch intent.Kind {
	case domain.IntentMulti:
		report, err := c.reports.AnnualReport(ctx, intent.Year)
		if err != nil {
			return "", err
		}
		return RenderAnnualReport(report), nil
	case domain.IntentAnalytics:
		res := c.queries.CountByDimension(ctx, intent.Year, domain.DimensionDomain)
		if err := res.Err(); err != nil {
			c.logger.Error("analytics_query_failed", "year", intent.Year, "status", string(res.Status), "detail", res.Detail)
			return "", domain.WrapError(err, "count events by domain", fmt.Errorf("status %s", res.Status))
		}
		return renderAnalytics(intent.Year, toCountRows(res)), nil
	case domain.IntentStructured:
		if intent.Structured == nil {
			return "", domain.WrapError(domain.ErrQuery, "run structured query", fmt.Errorf("missing structured query"))
		}
		res := c.queries.RunStructured(ctx, *intent.Structured)
		if err := res.Err(); err != nil {
			c.logger.Error("structured_query_failed", "report", string(intent.Structured.Report), "status", string(res.Status), "detail", res.Detail)
			return "", domain.WrapError(err, "run structured query", fmt.Errorf("status %s", res.Status))
		}
		if !res.HasRows() {
			return noEventsFor(intent.Structured), nil
		}
		return renderTable(res), nil
	default:
		return "", domain.WrapError(domain.ErrQuery, "compose report", fmt.Errorf("intent %s has no report", intent.Kind))
	}
}

func noEventsFor(q *domain.StructuredQuery) string {
	if q.Year != nil {
		return fmt.Sprintf("No events found for %d.", *q.Year)
	}
	return "No events found for the requested filters."
}

// ComposeGrounded never returns an error. A no_matches retrieval is answered
// locally and an oracle failure degrades to an extractive answer.
func (c *AnswerComposer) ComposeGrounded(
	ctx context.Context,
	question string,
	intent domain.ParsedIntent,
	retrieval domain.RetrievalResult,
) string {
	if retrieval.Empty() {
		return MsgNotFound
	}

	passages := selectContext(intent.Kind, retrieval.Passages)
	answer, err := c.generator.Generate(ctx, buildGroundedPrompt(question, intent, passages))
	if err != nil {
		c.logger.Warn("grounded_generation_failed", "intent", string(intent.Kind), "error", err.Error())
		return extractiveAnswer(intent, passages)
	}

	answer = strings.TrimSpace(answer)
	if answer == "" || strings.HasPrefix(strings.Trim(answer, "`*\"' "), NotFoundSentinel) {
		return MsgNotFound
	}
	return answer
}

func selectContext(kind domain.IntentKind, passages []domain.Passage) []domain.Passage {
	switch kind {
	case domain.IntentSingle, domain.IntentDescribe:
		return trimPassages(passages, 1)
	case domain.IntentRecommend:
		return trimPassages(passages, 3)
	default:
		return passages
	}
}

func extractiveAnswer(intent domain.ParsedIntent, passages []domain.Passage) string {
	if len(passages) == 0 {
		return MsgNotFound
	}
	if intent.Kind == domain.IntentSingle {
		return filterAttributeLines(passages[0].Text, intent)
	}
	texts := make([]string, 0, len(passages))
	for _, p := range passages {
		texts = append(texts, strings.TrimSpace(p.Text))
	}
	return strings.Join(texts, "\n\n")
}

var attributeLinePrefixes = map[domain.Attribute][]string{
	domain.AttrName:    {"event:", "name:"},
	domain.AttrDomain:  {"domain:"},
	domain.AttrDate:    {"date:"},
	domain.AttrTime:    {"time:"},
	domain.AttrVenue:   {"venue:"},
	domain.AttrDetails: {"description:", "details:", "perks:"},
}

// filterAttributeLines keeps the lines of a passage that carry the requested
// attributes, or the whole passage when nothing matches.
func filterAttributeLines(block string, intent domain.ParsedIntent) string {
	if intent.WantsAll() {
		return block
	}
	var kept []string
	for _, line := range strings.Split(block, "\n") {
		lower := strings.ToLower(strings.TrimSpace(line))
		for _, attr := range intent.Attributes {
			if hasAnyPrefix(lower, attributeLinePrefixes[attr]) {
				kept = append(kept, line)
				break
			}
		}
	}
	if len(kept) == 0 {
		return block
	}
	return strings.Join(kept, "\n")
}

func hasAnyPrefix(s string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(s, p) {
			return true
		}
	}
	return false
}
