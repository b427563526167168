package nats

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"testing"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/club-events-assistant/internal/core/domain"
	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

func TestClassifyNATSError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want resilience.ErrorClassification
	}{
		{"no servers", fmt.Errorf("publish: %w", nats.ErrNoServers), resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{"reconnecting", nats.ErrConnectionReconnecting, resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{"closed", nats.ErrConnectionClosed, resilience.ErrorClassification{Retryable: true, RecordFailure: true}},
		{"canceled", context.Canceled, resilience.ErrorClassification{}},
		{"bad subject", nats.ErrBadSubject, resilience.ErrorClassification{}},
		{"permission", fmt.Errorf("%w: publish to events.ingested", nats.ErrPermissionViolation), resilience.ErrorClassification{}},
		{"max payload", nats.ErrMaxPayload, resilience.ErrorClassification{RecordFailure: true}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := classifyNATSError(tt.err); got != tt.want {
				t.Fatalf("classifyNATSError() = %+v, want %+v", got, tt.want)
			}
		})
	}
}

func TestPublishErrorKinds(t *testing.T) {
	if err := publishError("events.ingested", nats.ErrDisconnected); !domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected temporary error, got %v", err)
	}
	err := publishError("events.ingested", nats.ErrAuthorization)
	if !domain.IsKind(err, domain.ErrUnauthorized) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected unauthorized error, got %v", err)
	}
	if !strings.Contains(err.Error(), "publish events.ingested") {
		t.Fatalf("expected subject in error, got %v", err)
	}
	permanent := errors.New("payload rejected")
	if err := publishError("events.ingested", permanent); !errors.Is(err, permanent) || domain.IsKind(err, domain.ErrTemporary) {
		t.Fatalf("expected permanent error kept, got %v", err)
	}
}

func TestAsyncErrorHandlerNamesFailure(t *testing.T) {
	tests := []struct {
		err   error
		event string
	}{
		{nats.ErrSlowConsumer, "nats_slow_consumer"},
		{fmt.Errorf("%w: subscription to events.ingested", nats.ErrPermissionViolation), "nats_permission_denied"},
		{errors.New("stale connection"), "nats_async_error"},
	}
	for _, tt := range tests {
		var buf bytes.Buffer
		handler := asyncErrorHandler(slog.New(slog.NewJSONHandler(&buf, nil)))
		handler(nil, nil, tt.err)
		if !strings.Contains(buf.String(), `"msg":"`+tt.event+`"`) {
			t.Fatalf("expected %s for %v, got %s", tt.event, tt.err, buf.String())
		}
	}
}
