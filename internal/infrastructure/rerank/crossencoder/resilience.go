package crossencoder

import (
	"fmt"
	"net/http"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

// rerankError tags every failure with ErrRerank. TEI answers 413 when the
// batch exceeds its max-client-batch-size, and 422 when a candidate is longer
// than the model input; neither improves on retry.
func rerankError(candidates int, err error) error {
	switch code := resilience.StatusCode(err); {
	case code == http.StatusRequestEntityTooLarge || code == http.StatusUnprocessableEntity:
		err = fmt.Errorf("batch of %d candidates rejected: %w", candidates, err)
	case domain.IsKind(err, domain.ErrTemporary):
	case resilience.ClassifyHTTP(err).Retryable:
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(domain.ErrRerank, "cross-encoder rerank", err)
}
