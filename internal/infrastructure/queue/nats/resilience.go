package nats

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

// Connection churn is retried; the client buffers publishes while it
// reconnects. Permission and subject errors are account configuration and
// never heal on their own.
func classifyNATSError(err error) resilience.ErrorClassification {
	switch {
	case err == nil:
		return resilience.ErrorClassification{}
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	case resilience.IsCircuitOpen(err),
		errors.Is(err, nats.ErrNoServers),
		errors.Is(err, nats.ErrTimeout),
		errors.Is(err, nats.ErrConnectionClosed),
		errors.Is(err, nats.ErrConnectionReconnecting),
		errors.Is(err, nats.ErrDisconnected):
		return resilience.ErrorClassification{Retryable: true, RecordFailure: true}
	case isPermissionError(err), errors.Is(err, nats.ErrBadSubject):
		return resilience.ErrorClassification{Retryable: false, RecordFailure: false}
	default:
		return resilience.ErrorClassification{Retryable: false, RecordFailure: true}
	}
}

func isPermissionError(err error) bool {
	return errors.Is(err, nats.ErrPermissionViolation) || errors.Is(err, nats.ErrAuthorization)
}

func publishError(subject string, err error) error {
	op := "publish " + subject
	switch {
	case isPermissionError(err):
		return domain.WrapError(domain.ErrUnauthorized, op, err)
	case domain.IsKind(err, domain.ErrTemporary):
		return err
	case classifyNATSError(err).Retryable:
		return domain.WrapError(domain.ErrTemporary, op, err)
	default:
		return fmt.Errorf("%s: %w", op, err)
	}
}

// asyncErrorHandler reports failures the server raises outside any call. A
// slow consumer means the worker is dropping ingest notifications, so those
// events stay out of the vector index until re-published.
func asyncErrorHandler(logger *slog.Logger) nats.ErrHandler {
	return func(_ *nats.Conn, sub *nats.Subscription, err error) {
		subject := ""
		if sub != nil {
			subject = sub.Subject
		}
		switch {
		case errors.Is(err, nats.ErrSlowConsumer):
			var dropped int
			if sub != nil {
				dropped, _ = sub.Dropped()
			}
			logger.Warn("nats_slow_consumer", "subject", subject, "dropped", dropped)
		case isPermissionError(err):
			logger.Error("nats_permission_denied", "subject", subject, "error", err.Error())
		default:
			logger.Error("nats_async_error", "subject", subject, "error", err.Error())
		}
	}
}
