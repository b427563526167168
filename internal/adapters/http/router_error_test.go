package httpadapter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/kirillkom/club-events-assistant/internal/config"
	"github.com/kirillkom/club-events-assistant/internal/core/domain"
)

type eventsFake struct {
	event *domain.Event
	err   error
}

func (f eventsFake) GetEvent(context.Context, string) (*domain.Event, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.event, nil
}

type brochuresFake struct {
	files map[string]string
}

func (f brochuresFake) OpenBrochure(_ context.Context, eventID string) (io.ReadCloser, error) {
	body, ok := f.files[eventID]
	if !ok {
		return nil, domain.WrapError(domain.ErrEventNotFound, "open brochure", errors.New(eventID))
	}
	return io.NopCloser(strings.NewReader(body)), nil
}

type reportsFake struct {
	report domain.AnnualReport
	err    error
	year   int
}

func (f *reportsFake) AnnualReport(_ context.Context, year int) (domain.AnnualReport, error) {
	f.year = year
	if f.err != nil {
		return domain.AnnualReport{}, f.err
	}
	r := f.report
	r.Year = year
	return r, nil
}

func TestAskReturnsPipelineAnswer(t *testing.T) {
	answerer := &answererFake{answer: "Please ask a question about club events."}
	handler := NewRouter(config.Config{}, Dependencies{Answerer: answerer}).Handler()

	payload, _ := json.Marshal(map[string]any{"question": ""})
	req := httptest.NewRequest(http.MethodPost, "/v1/ask", bytes.NewReader(payload))
	req.Header.Set("Content-Type", "application/json")
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]string
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["answer"] != answerer.answer {
		t.Fatalf("unexpected answer %q", body["answer"])
	}
}

func TestGetEventReturns404ForNotFound(t *testing.T) {
	handler := NewRouter(config.Config{}, Dependencies{
		Events: eventsFake{err: domain.WrapError(domain.ErrEventNotFound, "get event", errors.New("id=missing"))},
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/events/missing", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "id=missing") {
		t.Fatalf("raw error leaked to client: %s", res.Body.String())
	}
}

func TestGetEventMapsConnectionUnavailableTo503(t *testing.T) {
	handler := NewRouter(config.Config{}, Dependencies{
		Events: eventsFake{err: domain.WrapError(domain.ErrConnectionUnavailable, "get event", errors.New("dial tcp: refused"))},
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/events/e1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d", res.Code)
	}
	if strings.Contains(res.Body.String(), "dial tcp") || !strings.Contains(res.Body.String(), "event database is unavailable") {
		t.Fatalf("unexpected body %s", res.Body.String())
	}
}

func TestGetEventReturnsStoredEvent(t *testing.T) {
	handler := NewRouter(config.Config{}, Dependencies{
		Events: eventsFake{event: &domain.Event{EventID: "e1", Name: "Robotics", Embedding: []float32{1, 2}}},
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/events/e1", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)

	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	var body map[string]any
	if err := json.NewDecoder(res.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if body["event_id"] != "e1" {
		t.Fatalf("unexpected body %+v", body)
	}
	if _, ok := body["embedding"]; ok {
		t.Fatalf("embedding must not be serialized")
	}
}

func TestGetBrochure(t *testing.T) {
	handler := NewRouter(config.Config{}, Dependencies{
		Brochures: brochuresFake{files: map[string]string{"e1": "%PDF-1.4 brochure"}},
	}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/events/e1/brochure", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK || res.Body.String() != "%PDF-1.4 brochure" {
		t.Fatalf("unexpected response %d %q", res.Code, res.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/events/e2/brochure", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusNotFound {
		t.Fatalf("expected 404 for missing brochure, got %d", res.Code)
	}
}

func TestAnnualReportFormats(t *testing.T) {
	date := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	reports := &reportsFake{report: domain.AnnualReport{
		Events:   []domain.ReportEvent{{Date: &date, Name: "Robotics", Domain: "AI", Venue: "Hall A", Time: "10:00"}},
		Earliest: &date,
		Latest:   &date,
		Domains:  []domain.CountRow{{Label: "AI", Count: 1}},
		Venues:   []domain.CountRow{{Label: "Hall A", Count: 1}},
	}}
	handler := NewRouter(config.Config{}, Dependencies{Reports: reports}).Handler()

	req := httptest.NewRequest(http.MethodGet, "/v1/reports/2024", nil)
	res := httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", res.Code)
	}
	if reports.year != 2024 {
		t.Fatalf("expected year 2024, got %d", reports.year)
	}
	if !strings.Contains(res.Body.String(), "ANNUAL ACTIVITY REPORT (2024)") || !strings.Contains(res.Body.String(), "Robotics") {
		t.Fatalf("unexpected markdown report: %s", res.Body.String())
	}

	req = httptest.NewRequest(http.MethodGet, "/v1/reports/2024?format=xlsx", nil)
	res = httptest.NewRecorder()
	handler.ServeHTTP(res, req)
	if res.Code != http.StatusOK {
		t.Fatalf("expected 200 for xlsx, got %d", res.Code)
	}
	if res.Header().Get("Content-Type") != xlsxContentType {
		t.Fatalf("unexpected content type %q", res.Header().Get("Content-Type"))
	}
	if !bytes.HasPrefix(res.Body.Bytes(), []byte("PK")) {
		t.Fatalf("expected a zip container for xlsx")
	}
}

func TestAnnualReportRejectsBadInput(t *testing.T) {
	handler := NewRouter(config.Config{}, Dependencies{Reports: &reportsFake{}}).Handler()

	for _, target := range []string{"/v1/reports/next", "/v1/reports/24", "/v1/reports/2024?format=pdf"} {
		req := httptest.NewRequest(http.MethodGet, target, nil)
		res := httptest.NewRecorder()
		handler.ServeHTTP(res, req)
		if res.Code != http.StatusBadRequest {
			t.Fatalf("%s: expected 400, got %d", target, res.Code)
		}
	}
}

func TestMapErrorToHTTPStatus(t *testing.T) {
	cases := []struct {
		kind error
		want int
	}{
		{domain.ErrValidation, http.StatusBadRequest},
		{domain.ErrUnauthorized, http.StatusUnauthorized},
		{domain.ErrEventNotFound, http.StatusNotFound},
		{domain.ErrTemporary, http.StatusServiceUnavailable},
		{domain.ErrConnectionUnavailable, http.StatusServiceUnavailable},
		{domain.ErrQuery, http.StatusInternalServerError},
	}
	for _, tc := range cases {
		err := domain.WrapError(tc.kind, "op", errors.New("cause"))
		if got := mapErrorToHTTPStatus(err); got != tc.want {
			t.Fatalf("mapErrorToHTTPStatus(%v) = %d, want %d", tc.kind, got, tc.want)
		}
	}
}
