package ollama

import (
	"fmt"
	"net/http"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

// Ollama answers 404 when the requested model has not been pulled. Retrying
// cannot fix that, but it should still trip the breaker.
func classifyOllamaError(err error) resilience.ErrorClassification {
	if resilience.StatusCode(err) == http.StatusNotFound {
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
	return resilience.ClassifyHTTP(err)
}

// callError tags a failed call with its stage kind, ErrOracle for generation
// and ErrEmbedding for embeddings. Failures worth retrying later are also
// ErrTemporary.
func callError(kind error, operation, model string, err error) error {
	if err == nil {
		return nil
	}
	switch {
	case resilience.StatusCode(err) == http.StatusNotFound:
		err = fmt.Errorf("model %q is not available: %w", model, err)
	case domain.IsKind(err, domain.ErrTemporary):
	case classifyOllamaError(err).Retryable:
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(kind, operation, err)
}
