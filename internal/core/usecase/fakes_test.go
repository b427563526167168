package usecase

import (
	"context"
	"errors"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

type embedderFake struct {
	mu          sync.Mutex
	vectors     [][]float32
	err         error
	embedCalls  int
	queryInputs []string
}

func (f *embedderFake) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.embedCalls++
	if f.err != nil {
		return nil, f.err
	}
	if f.vectors != nil {
		return f.vectors, nil
	}
	out := make([][]float32, len(texts))
	for i, text := range texts {
		out[i] = []float32{float32(len(text)), 1}
	}
	return out, nil
}

func (f *embedderFake) EmbedQuery(_ context.Context, text string) ([]float32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.queryInputs = append(f.queryInputs, text)
	if f.err != nil {
		return nil, f.err
	}
	return []float32{0.1, 0.2}, nil
}

type indexFake struct {
	mu           sync.Mutex
	vectorHits   []domain.Passage
	keywordHits  []domain.Passage
	vectorErr    error
	keywordErr   error
	keywordQuery string
	vectorLimit  int
	keywordLimit int
}

func (f *indexFake) VectorSearch(_ context.Context, _ []float32, limit int) ([]domain.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.vectorLimit = limit
	if f.vectorErr != nil {
		return nil, f.vectorErr
	}
	return f.vectorHits, nil
}

func (f *indexFake) KeywordSearch(_ context.Context, text string, limit int) ([]domain.Passage, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keywordQuery = text
	f.keywordLimit = limit
	if f.keywordErr != nil {
		return nil, f.keywordErr
	}
	return f.keywordHits, nil
}

// rerankerFake scores by a fixed table keyed on candidate text.
type rerankerFake struct {
	scores     map[string]float64
	err        error
	short      bool
	query      string
	candidates []string
	calls      int
}

func (f *rerankerFake) Rerank(_ context.Context, query string, candidates []string) ([]float64, error) {
	f.calls++
	f.query = query
	f.candidates = append([]string(nil), candidates...)
	if f.err != nil {
		return nil, f.err
	}
	out := make([]float64, len(candidates))
	for i, c := range candidates {
		out[i] = f.scores[c]
	}
	if f.short && len(out) > 0 {
		out = out[:len(out)-1]
	}
	return out, nil
}

// generatorFake answers by the first rule whose marker appears in the prompt.
type generatorFake struct {
	mu      sync.Mutex
	rules   []generatorRule
	err     error
	prompts []string
}

type generatorRule struct {
	marker string
	reply  string
	err    error
}

func (f *generatorFake) Generate(_ context.Context, prompt string) (string, error) {
	return f.answer(prompt)
}

func (f *generatorFake) GenerateJSON(_ context.Context, prompt string) (string, error) {
	return f.answer(prompt)
}

func (f *generatorFake) answer(prompt string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prompts = append(f.prompts, prompt)
	if f.err != nil {
		return "", f.err
	}
	for _, r := range f.rules {
		if strings.Contains(prompt, r.marker) {
			return r.reply, r.err
		}
	}
	return "", errors.New("no scripted reply")
}

func (f *generatorFake) callsWith(marker string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, p := range f.prompts {
		if strings.Contains(p, marker) {
			n++
		}
	}
	return n
}

const (
	intentMarker    = "Classify the user's question"
	attributeMarker = "Determine which event attributes"
	groundedMarker  = "Answer the user question only from the context"
	routeMarker     = "You route questions about club events"
)

type reportQueriesFake struct {
	events     domain.QueryResult
	byDim      map[domain.Dimension]domain.QueryResult
	structured domain.QueryResult
	lastQuery  *domain.StructuredQuery
	yearAsked  int
}

func (f *reportQueriesFake) EventsInYear(_ context.Context, year int) domain.QueryResult {
	f.yearAsked = year
	return f.events
}

func (f *reportQueriesFake) CountByDimension(_ context.Context, year int, dim domain.Dimension) domain.QueryResult {
	f.yearAsked = year
	if res, ok := f.byDim[dim]; ok {
		return res
	}
	return domain.QueryResult{Status: domain.QueryEmpty}
}

func (f *reportQueriesFake) RunStructured(_ context.Context, q domain.StructuredQuery) domain.QueryResult {
	f.lastQuery = &q
	return f.structured
}

type storeFake struct {
	mu        sync.Mutex
	inserted  []domain.Event
	chunks    map[string][]domain.Chunk
	insertErr error
	getErr    error
	events    map[string]domain.Event
	block     chan struct{}
	entered   chan struct{}
}

func (f *storeFake) ExecuteSQL(context.Context, string, ...any) domain.QueryResult {
	return domain.QueryResult{Status: domain.QueryEmpty}
}

func (f *storeFake) InsertEvent(_ context.Context, event *domain.Event, chunks []domain.Chunk) error {
	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.insertErr != nil {
		return f.insertErr
	}
	f.inserted = append(f.inserted, *event)
	if f.chunks == nil {
		f.chunks = map[string][]domain.Chunk{}
	}
	f.chunks[event.EventID] = chunks
	return nil
}

func (f *storeFake) GetEvent(_ context.Context, id string) (*domain.Event, error) {
	if f.getErr != nil {
		return nil, f.getErr
	}
	ev, ok := f.events[id]
	if !ok {
		return nil, domain.WrapError(domain.ErrEventNotFound, "get event", errors.New(id))
	}
	return &ev, nil
}

func (f *storeFake) ListChunks(_ context.Context, id string) ([]domain.Chunk, error) {
	return f.chunks[id], nil
}

type chunkerFake struct {
	chunks []string
}

func (f *chunkerFake) Split(string) []string { return f.chunks }

type queueFake struct {
	published []string
	err       error
}

func (f *queueFake) PublishEventIngested(_ context.Context, id string) error {
	if f.err != nil {
		return f.err
	}
	f.published = append(f.published, id)
	return nil
}

func (f *queueFake) SubscribeEventIngested(context.Context, func(context.Context, string) error) error {
	return errors.New("not implemented")
}

type extractorFake struct {
	text string
	err  error
}

func (f *extractorFake) Extract(_ context.Context, _, _ string, body io.Reader) (string, error) {
	if f.err != nil {
		return "", f.err
	}
	if _, err := io.Copy(io.Discard, body); err != nil {
		return "", err
	}
	return f.text, nil
}

type observerFake struct {
	mu        sync.Mutex
	intents   []domain.IntentKind
	fallbacks int
	outcomes  []string
	ingests   []domain.IngestStatus
}

func (f *observerFake) ObserveIntent(kind domain.IntentKind, fallback bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.intents = append(f.intents, kind)
	if fallback {
		f.fallbacks++
	}
}

func (f *observerFake) ObserveRetrieval(int, domain.RetrievalOutcome) {}

func (f *observerFake) ObserveAnswer(_ domain.IntentKind, outcome string, _ time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.outcomes = append(f.outcomes, outcome)
}

func (f *observerFake) ObserveIngest(status domain.IngestStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ingests = append(f.ingests, status)
}

func fixedClock(year int) func() time.Time {
	return func() time.Time { return time.Date(year, time.June, 1, 12, 0, 0, 0, time.UTC) }
}

type archiveFake struct {
	files map[string]string
}

func (f *archiveFake) Save(_ context.Context, key string, data io.Reader) error {
	raw, err := io.ReadAll(data)
	if err != nil {
		return err
	}
	f.files[key] = string(raw)
	return nil
}

func (f *archiveFake) Open(_ context.Context, key string) (io.ReadCloser, error) {
	body, ok := f.files[key]
	if !ok {
		return nil, errors.New("no such file")
	}
	return io.NopCloser(strings.NewReader(body)), nil
}
