package domain

import (
	"errors"
	"fmt"
)

var (
	ErrEventNotFound         = errors.New("event not found")
	ErrValidation            = errors.New("validation failed")
	ErrConnectionUnavailable = errors.New("connection unavailable")
	ErrQuery                 = errors.New("query error")
	ErrEmbedding             = errors.New("embedding failure")
	ErrSearch                = errors.New("search failure")
	ErrRerank                = errors.New("rerank failure")
	ErrOracle                = errors.New("generative oracle failure")
	ErrOracleParse           = errors.New("oracle output not parseable")
	ErrUnauthorized          = errors.New("unauthorized")
	ErrTemporary             = errors.New("temporary failure")
)

// WrapError preserves typed semantic errors with operation context.
func WrapError(kind error, operation string, err error) error {
	if err == nil {
		return nil
	}
	return fmt.Errorf("%s: %w: %w", operation, kind, err)
}

func IsKind(err error, kind error) bool {
	return errors.Is(err, kind)
}
