package httpadapter

import (
	"bytes"
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/oapi-codegen/runtime"

	"github.com/kirillkom/club-events-assistant/internal/config"
	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/core/ports"
	"github.com/kirillkom/club-events-assistant/internal/core/usecase"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/export/xlsx"
	"github.com/kirillkom/club-events-assistant/internal/observability/metrics"
)

const (
	defaultModelID          = "club-events-rag-v1"
	defaultStreamChunkChars = 120
	defaultBrochureMaxBytes = 10 << 20
	backpressureWait        = 250 * time.Millisecond
	busyRetryAfterSeconds   = "2"
	maxJSONBodyBytes        = 1 << 20
	xlsxContentType         = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"
)

// Dependencies are the inbound ports served over HTTP. Nil ports disable
// their routes with 503.
type Dependencies struct {
	Answerer    ports.QuestionAnswerer
	Ingestor    ports.EventIngestor
	Events      ports.EventReader
	Brochures   ports.BrochureReader
	Reports     ports.ReportBuilder
	HTTPMetrics *metrics.HTTPServerMetrics
}

type Router struct {
	answerer  ports.QuestionAnswerer
	ingestor  ports.EventIngestor
	events    ports.EventReader
	brochures ports.BrochureReader
	reports   ports.ReportBuilder

	httpMetrics *metrics.HTTPServerMetrics
	contract    *contract

	openAICompatAPIKey           string
	openAICompatModelID          string
	openAICompatStreamChunkChars int

	rateLimitRPS     float64
	rateLimitBurst   int
	maxInFlight      int
	brochureMaxBytes int64
}

// NewRouter panics if the embedded OpenAPI contract does not load, which can
// only happen when api/openapi.yaml is broken at build time.
func NewRouter(cfg config.Config, deps Dependencies) *Router {
	contract, err := loadContract()
	if err != nil {
		panic(err)
	}
	httpMetrics := deps.HTTPMetrics
	if httpMetrics == nil {
		httpMetrics = metrics.NewHTTPServerMetrics("api")
	}
	modelID := strings.TrimSpace(cfg.OpenAICompatModelID)
	if modelID == "" {
		modelID = defaultModelID
	}
	brochureMax := cfg.BrochureMaxSize
	if brochureMax <= 0 {
		brochureMax = defaultBrochureMaxBytes
	}

	return &Router{
		answerer:                     deps.Answerer,
		ingestor:                     deps.Ingestor,
		events:                       deps.Events,
		brochures:                    deps.Brochures,
		reports:                      deps.Reports,
		httpMetrics:                  httpMetrics,
		contract:                     contract,
		openAICompatAPIKey:           strings.TrimSpace(cfg.OpenAICompatAPIKey),
		openAICompatModelID:          modelID,
		openAICompatStreamChunkChars: defaultStreamChunkChars,
		rateLimitRPS:                 cfg.APIRateLimitRPS,
		rateLimitBurst:               cfg.APIRateLimitBurst,
		maxInFlight:                  cfg.APIMaxInFlight,
		brochureMaxBytes:             brochureMax,
	}
}

func (rt *Router) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", rt.healthz)
	mux.Handle("GET /metrics", rt.httpMetrics.Handler())

	validated := func(h http.HandlerFunc) http.Handler { return rt.contract.validate(h) }
	mux.Handle("POST /v1/ask", validated(rt.ask))
	mux.Handle("POST /v1/events", validated(rt.createEvent))
	mux.Handle("GET /v1/events/{event_id}", validated(rt.getEvent))
	mux.Handle("GET /v1/events/{event_id}/brochure", validated(rt.getBrochure))
	mux.Handle("GET /v1/reports/{year}", validated(rt.annualReport))

	mux.Handle("GET /v1/models", rt.requireBearer(validated(rt.listModels)))
	mux.Handle("POST /v1/chat/completions", rt.requireBearer(validated(rt.chatCompletions)))

	var handler http.Handler = mux
	handler = backpressureMiddleware(handler, rt.maxInFlight, backpressureWait, rt.httpMetrics)
	handler = rateLimitMiddleware(handler, rt.rateLimitRPS, rt.rateLimitBurst, rt.httpMetrics)
	handler = rt.httpMetrics.Middleware("api", handler)
	handler = accessLogMiddleware(handler)
	return requestIDMiddleware(handler)
}

func (rt *Router) healthz(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (rt *Router) ask(w http.ResponseWriter, r *http.Request) {
	if rt.answerer == nil {
		writeError(w, http.StatusServiceUnavailable, "question answering is not configured")
		return
	}

	var req struct {
		Question string `json:"question"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid json")
		return
	}

	// Empty questions are answered with guidance rather than rejected.
	answer := rt.answerer.Answer(r.Context(), req.Question)
	writeJSON(w, http.StatusOK, map[string]string{"answer": answer})
}

func (rt *Router) createEvent(w http.ResponseWriter, r *http.Request) {
	if rt.ingestor == nil {
		writeError(w, http.StatusServiceUnavailable, "ingestion is not configured")
		return
	}

	form, brochure, err := rt.decodeEventSubmission(w, r)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	// A brochure may supply the description, so the full check waits for
	// the use case to merge its text.
	validate := form.Validate
	if brochure != nil {
		validate = form.ValidateIdentity
	}
	if err := validate(); err != nil {
		writeJSON(w, http.StatusBadRequest, domain.IngestResult{
			Status:  domain.IngestError,
			Message: usecase.MsgIngestFailedPrefix + usecase.ValidationReason(err),
		})
		return
	}

	var result domain.IngestResult
	if brochure != nil {
		result = rt.ingestor.IngestWithBrochure(r.Context(), form, brochure)
	} else {
		result = rt.ingestor.Ingest(r.Context(), form)
	}

	switch {
	case result.Status == domain.IngestSuccess:
		writeJSON(w, http.StatusCreated, result)
	case result.Status == domain.IngestBusy:
		w.Header().Set("Retry-After", busyRetryAfterSeconds)
		writeJSON(w, http.StatusServiceUnavailable, result)
	case result.Invalid:
		writeJSON(w, http.StatusBadRequest, result)
	default:
		writeJSON(w, http.StatusInternalServerError, result)
	}
}

// decodeEventSubmission accepts a JSON form or a multipart form whose
// optional "brochure" part is buffered in memory.
func (rt *Router) decodeEventSubmission(w http.ResponseWriter, r *http.Request) (domain.EventForm, *domain.Brochure, error) {
	var form domain.EventForm
	mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))

	if mediaType != "multipart/form-data" {
		if err := json.NewDecoder(r.Body).Decode(&form); err != nil {
			return form, nil, errors.New("invalid json")
		}
		return form, nil, nil
	}

	r.Body = http.MaxBytesReader(w, r.Body, rt.brochureMaxBytes+maxJSONBodyBytes)
	if err := r.ParseMultipartForm(rt.brochureMaxBytes); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return form, nil, errors.New("brochure is too large")
		}
		return form, nil, errors.New("invalid multipart form")
	}

	form = domain.EventForm{
		EventID:             r.FormValue("event_id"),
		Title:               r.FormValue("title"),
		Domain:              r.FormValue("domain"),
		Date:                r.FormValue("date"),
		Time:                r.FormValue("time"),
		FacultyCoordinators: r.FormValue("faculty_coordinators"),
		StudentCoordinators: r.FormValue("student_coordinators"),
		Venue:               r.FormValue("venue"),
		Mode:                r.FormValue("mode"),
		RegistrationFee:     r.FormValue("registration_fee"),
		Speakers:            r.FormValue("speakers"),
		Perks:               r.FormValue("perks"),
		Description:         r.FormValue("description"),
	}

	file, header, err := r.FormFile("brochure")
	if errors.Is(err, http.ErrMissingFile) {
		return form, nil, nil
	}
	if err != nil {
		return form, nil, errors.New("invalid brochure upload")
	}
	defer file.Close()

	if header.Size > rt.brochureMaxBytes {
		return form, nil, errors.New("brochure is too large")
	}
	raw, err := io.ReadAll(io.LimitReader(file, rt.brochureMaxBytes+1))
	if err != nil {
		return form, nil, errors.New("invalid brochure upload")
	}
	if int64(len(raw)) > rt.brochureMaxBytes {
		return form, nil, errors.New("brochure is too large")
	}

	return form, &domain.Brochure{
		Filename: header.Filename,
		MimeType: header.Header.Get("Content-Type"),
		Body:     bytes.NewReader(raw),
	}, nil
}

func (rt *Router) getEvent(w http.ResponseWriter, r *http.Request) {
	if rt.events == nil {
		writeError(w, http.StatusServiceUnavailable, "event store is not configured")
		return
	}
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}

	event, err := rt.events.GetEvent(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, "get_event", err)
		return
	}
	writeJSON(w, http.StatusOK, event)
}

func (rt *Router) getBrochure(w http.ResponseWriter, r *http.Request) {
	if rt.brochures == nil {
		writeError(w, http.StatusNotFound, "brochure not found")
		return
	}
	id, ok := eventIDParam(w, r)
	if !ok {
		return
	}

	body, err := rt.brochures.OpenBrochure(r.Context(), id)
	if err != nil {
		rt.writeDomainError(w, r, "get_brochure", err)
		return
	}
	defer body.Close()

	w.Header().Set("Content-Type", "application/octet-stream")
	w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{"filename": id + "-brochure"}))
	w.WriteHeader(http.StatusOK)
	if _, err := io.Copy(w, body); err != nil {
		slog.Warn("brochure_stream_failed", "request_id", requestIDFromContext(r.Context()), "event_id", id, "error", err.Error())
	}
}

func (rt *Router) annualReport(w http.ResponseWriter, r *http.Request) {
	if rt.reports == nil {
		writeError(w, http.StatusServiceUnavailable, "reports are not configured")
		return
	}
	var year int
	if err := runtime.BindStyledParameterWithOptions("simple", "year", r.PathValue("year"), &year,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true}); err != nil {
		writeError(w, http.StatusBadRequest, "year must be a four digit number")
		return
	}
	var format *string
	if err := runtime.BindQueryParameter("form", true, false, "format", r.URL.Query(), &format); err != nil {
		writeError(w, http.StatusBadRequest, "format must be markdown or xlsx")
		return
	}

	report, err := rt.reports.AnnualReport(r.Context(), year)
	if err != nil {
		rt.writeDomainError(w, r, "annual_report", err)
		return
	}

	kind := "markdown"
	if format != nil {
		kind = strings.ToLower(*format)
	}
	switch kind {
	case "markdown", "md":
		w.Header().Set("Content-Type", "text/markdown; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = io.WriteString(w, usecase.RenderAnnualReport(report))
	case "xlsx":
		var buf bytes.Buffer
		if err := xlsx.WriteAnnualReport(&buf, report); err != nil {
			rt.writeDomainError(w, r, "annual_report_xlsx", err)
			return
		}
		w.Header().Set("Content-Type", xlsxContentType)
		w.Header().Set("Content-Disposition", mime.FormatMediaType("attachment", map[string]string{
			"filename": "club-events-" + strconv.Itoa(year) + ".xlsx",
		}))
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(buf.Bytes())
	default:
		writeError(w, http.StatusBadRequest, "format must be markdown or xlsx")
	}
}

func eventIDParam(w http.ResponseWriter, r *http.Request) (string, bool) {
	var id string
	err := runtime.BindStyledParameterWithOptions("simple", "event_id", r.PathValue("event_id"), &id,
		runtime.BindStyledParameterOptions{ParamLocation: runtime.ParamLocationPath, Required: true})
	if id = strings.TrimSpace(id); err != nil || id == "" {
		writeError(w, http.StatusBadRequest, "event id is required")
		return "", false
	}
	return id, true
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

func writeError(w http.ResponseWriter, status int, message string) {
	writeJSON(w, status, map[string]string{"error": message})
}
