package openai

import (
	"errors"
	"fmt"

	"github.com/openai/openai-go/v2"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

// classifyOpenAIError reads the status off SDK errors and otherwise
// classifies like any other HTTP model server.
func classifyOpenAIError(err error) resilience.ErrorClassification {
	var apiErr *openai.Error
	if errors.As(err, &apiErr) {
		return resilience.ClassifyHTTP(&resilience.StatusError{Service: "openai", StatusCode: apiErr.StatusCode})
	}
	return resilience.ClassifyHTTP(err)
}

// callError tags a failed call with its stage kind and marks failures worth
// retrying later as ErrTemporary.
func callError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	if !domain.IsKind(err, domain.ErrTemporary) && classifyOpenAIError(err).Retryable {
		err = fmt.Errorf("%w: %w", domain.ErrTemporary, err)
	}
	return domain.WrapError(kind, operation, err)
}
