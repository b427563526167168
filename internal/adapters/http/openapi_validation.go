package httpadapter

import (
	"errors"
	"fmt"
	"log/slog"
	"mime"
	"net/http"
	"strings"
	"sync"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/getkin/kin-openapi/openapi3filter"
	"github.com/getkin/kin-openapi/routers"
	"github.com/getkin/kin-openapi/routers/legacy"

	"github.com/kirillkom/club-events-assistant/api"
)

// contract validates requests against api/openapi.yaml before they reach a
// handler. Bearer auth stays with requireBearer, and multipart bodies are
// left to the handler, which streams the brochure under its own size cap.
type contract struct {
	router routers.Router
}

var loadContract = sync.OnceValues(func() (*contract, error) {
	return newContract(api.OpenAPI)
})

func newContract(spec []byte) (*contract, error) {
	loader := openapi3.NewLoader()
	doc, err := loader.LoadFromData(spec)
	if err != nil {
		return nil, fmt.Errorf("load openapi contract: %w", err)
	}
	if err := doc.Validate(loader.Context); err != nil {
		return nil, fmt.Errorf("validate openapi contract: %w", err)
	}
	router, err := legacy.NewRouter(doc)
	if err != nil {
		return nil, fmt.Errorf("build openapi router: %w", err)
	}
	return &contract{router: router}, nil
}

func (c *contract) validate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		route, pathParams, err := c.router.FindRoute(r)
		if err != nil {
			// The mux only dispatches routes the contract declares.
			slog.Error("openapi_route_missing", "method", r.Method, "path", r.URL.Path, "error", err.Error())
			writeError(w, http.StatusInternalServerError, "internal error")
			return
		}

		mediaType, _, _ := mime.ParseMediaType(r.Header.Get("Content-Type"))
		multipartBody := mediaType == "multipart/form-data"
		if r.Body != nil && !multipartBody {
			r.Body = http.MaxBytesReader(w, r.Body, maxJSONBodyBytes)
		}

		input := &openapi3filter.RequestValidationInput{
			Request:    r,
			PathParams: pathParams,
			Route:      route,
			Options: &openapi3filter.Options{
				ExcludeRequestBody: multipartBody,
				AuthenticationFunc: openapi3filter.NoopAuthenticationFunc,
			},
		}
		if err := openapi3filter.ValidateRequest(r.Context(), input); err != nil {
			writeError(w, http.StatusBadRequest, contractViolation(err))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// contractViolation names the offending parameter or body field without
// echoing schema dumps back to the client.
func contractViolation(err error) string {
	var reqErr *openapi3filter.RequestError
	if !errors.As(err, &reqErr) {
		return "invalid request"
	}
	var schemaErr *openapi3.SchemaError
	switch {
	case reqErr.Parameter != nil:
		return fmt.Sprintf("invalid %s parameter %q", reqErr.Parameter.In, reqErr.Parameter.Name)
	case reqErr.RequestBody != nil && errors.As(reqErr.Err, &schemaErr):
		if field := strings.Join(schemaErr.JSONPointer(), "."); field != "" {
			return fmt.Sprintf("invalid request body: %s: %s", field, schemaErr.Reason)
		}
		return "invalid request body: " + schemaErr.Reason
	case reqErr.RequestBody != nil:
		return "invalid request body"
	default:
		return "invalid request"
	}
}
