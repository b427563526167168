package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
)

type RouterMode string

const (
	RouterCategories RouterMode = "categories"
	RouterStructured RouterMode = "structured"
)

var (
	// A year may be glued to letters or underscores ("FY2025", "events_2024")
	// but not to other digits.
	yearPattern = regexp.MustCompile(`(?:^|\D)((?:19|20)\d{2})(?:\D|$)`)

	// Label priority when the oracle answers with more than one word.
	categoryPriority = []struct {
		kind    domain.IntentKind
		pattern *regexp.Regexp
	}{
		{domain.IntentMulti, regexp.MustCompile(`\bMULTI\b`)},
		{domain.IntentAnalytics, regexp.MustCompile(`\bANALYTICS\b`)},
		{domain.IntentFilter, regexp.MustCompile(`\bFILTER\b`)},
		{domain.IntentDescribe, regexp.MustCompile(`\bDESCRIBE\b`)},
		{domain.IntentRecommend, regexp.MustCompile(`\bRECOMMEND\b`)},
		{domain.IntentSingle, regexp.MustCompile(`\bSINGLE\b`)},
	}
)

// ExtractYear returns the first plausible calendar year in text, or the year
// of now when there is none.
func ExtractYear(text string, now time.Time) (int, bool) {
	if m := yearPattern.FindStringSubmatch(text); m != nil {
		if year, err := strconv.Atoi(m[1]); err == nil {
			return year, true
		}
	}
	return now.Year(), false
}

// IntentRouter classifies questions with the generative oracle. Classify
// never fails: unusable oracle output degrades to a semantic lookup.
type IntentRouter struct {
	generator ports.Generator
	mode      RouterMode
	logger    *slog.Logger
	observer  ports.PipelineObserver
	now       func() time.Time
}

func NewIntentRouter(
	generator ports.Generator,
	mode RouterMode,
	logger *slog.Logger,
	observer ports.PipelineObserver,
) *IntentRouter {
	if mode != RouterStructured {
		mode = RouterCategories
	}
	if logger == nil {
		logger = slog.Default()
	}
	if observer == nil {
		observer = noopObserver{}
	}
	return &IntentRouter{
		generator: generator,
		mode:      mode,
		logger:    logger,
		observer:  observer,
		now:       time.Now,
	}
}

// WithClock replaces the clock used for the default year.
func (r *IntentRouter) WithClock(now func() time.Time) *IntentRouter {
	if now != nil {
		r.now = now
	}
	return r
}

func (r *IntentRouter) Classify(ctx context.Context, question string) domain.ParsedIntent {
	year, explicit := ExtractYear(question, r.now())
	intent := domain.ParsedIntent{Year: year, YearExplicit: explicit}

	var (
		kind     domain.IntentKind
		err      error
		fallback bool
	)
	if r.mode == RouterStructured {
		kind, err = r.classifyStructured(ctx, question, &intent)
	} else {
		kind, err = r.classifyCategory(ctx, question)
	}
	if err != nil {
		r.logger.Warn("intent_fallback", "mode", string(r.mode), "error", err.Error())
		kind = domain.IntentSemantic
		intent.Structured = nil
		fallback = true
	}
	intent.Kind = kind

	if kind == domain.IntentSemantic && strings.TrimSpace(intent.SearchText) == "" {
		intent.SearchText = question
	}
	if kind == domain.IntentSingle {
		intent.Attributes = r.extractAttributes(ctx, question)
	}

	r.observer.ObserveIntent(kind, fallback)
	return intent
}

func (r *IntentRouter) classifyCategory(ctx context.Context, question string) (domain.IntentKind, error) {
	raw, err := r.generator.Generate(ctx, buildIntentPrompt(question))
	if err != nil {
		return "", domain.WrapError(domain.ErrOracle, "classify intent", err)
	}
	kind, ok := parseCategory(raw)
	if !ok {
		return "", domain.WrapError(domain.ErrOracleParse, "classify intent", errors.New("no known intent label in response"))
	}
	return kind, nil
}

func parseCategory(raw string) (domain.IntentKind, bool) {
	upper := strings.ToUpper(raw)
	for _, c := range categoryPriority {
		if c.pattern.MatchString(upper) {
			return c.kind, true
		}
	}
	return "", false
}

type structuredRoute struct {
	Intent string                  `json:"intent"`
	Query  *domain.StructuredQuery `json:"query"`
	Search string                  `json:"search"`
}

func (r *IntentRouter) classifyStructured(ctx context.Context, question string, intent *domain.ParsedIntent) (domain.IntentKind, error) {
	raw, err := r.generator.GenerateJSON(ctx, buildStructuredIntentPrompt(question))
	if err != nil {
		return "", domain.WrapError(domain.ErrOracle, "route question", err)
	}

	var route structuredRoute
	if err := json.Unmarshal([]byte(extractJSONSpan(raw, '{', '}')), &route); err != nil {
		return "", domain.WrapError(domain.ErrOracleParse, "route question", err)
	}

	switch domain.IntentKind(strings.ToUpper(strings.TrimSpace(route.Intent))) {
	case domain.IntentStructured:
		if route.Query == nil || !route.Query.Normalize() {
			return "", domain.WrapError(domain.ErrOracleParse, "route question", errors.New("unknown structured report"))
		}
		q := sanitizeStructured(*route.Query)
		if q.Year == nil && intent.YearExplicit {
			y := intent.Year
			q.Year = &y
		}
		intent.Structured = &q
		return domain.IntentStructured, nil
	case domain.IntentSemantic:
		intent.SearchText = strings.TrimSpace(route.Search)
		return domain.IntentSemantic, nil
	default:
		return "", domain.WrapError(domain.ErrOracleParse, "route question", errors.New("unknown intent "+route.Intent))
	}
}

// sanitizeStructured keeps only plausible filter values.
func sanitizeStructured(q domain.StructuredQuery) domain.StructuredQuery {
	const maxFilterLen = 120
	clean := func(v string) string {
		v = strings.TrimSpace(v)
		if len(v) > maxFilterLen || strings.EqualFold(v, "null") {
			return ""
		}
		return v
	}
	q.Domain = clean(q.Domain)
	q.Venue = clean(q.Venue)
	q.Mode = clean(q.Mode)
	q.NameContains = clean(q.NameContains)
	if q.Year != nil && (*q.Year < 1900 || *q.Year > 2099) {
		q.Year = nil
	}
	return q
}

func (r *IntentRouter) extractAttributes(ctx context.Context, question string) []domain.Attribute {
	all := []domain.Attribute{domain.AttrAll}

	raw, err := r.generator.Generate(ctx, buildAttributePrompt(question))
	if err != nil {
		r.logger.Warn("attribute_fallback", "error", err.Error())
		return all
	}

	var keys []string
	if err := json.Unmarshal([]byte(extractJSONSpan(raw, '[', ']')), &keys); err != nil {
		r.logger.Warn("attribute_fallback", "error", err.Error())
		return all
	}

	seen := make(map[domain.Attribute]struct{}, len(keys))
	out := make([]domain.Attribute, 0, len(keys))
	for _, k := range keys {
		a, ok := domain.ParseAttribute(strings.ToLower(strings.TrimSpace(k)))
		if !ok {
			continue
		}
		if _, dup := seen[a]; dup {
			continue
		}
		seen[a] = struct{}{}
		out = append(out, a)
	}
	if len(out) == 0 {
		return all
	}
	return out
}

// extractJSONSpan strips prose or code fences around the outermost JSON value.
func extractJSONSpan(raw string, open, close byte) string {
	start := strings.IndexByte(raw, open)
	end := strings.LastIndexByte(raw, close)
	if start < 0 || end <= start {
		return strings.TrimSpace(raw)
	}
	return raw[start : end+1]
}
