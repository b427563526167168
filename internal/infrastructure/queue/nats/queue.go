// Package nats carries "event ingested" notifications from the API to the
// indexing workers.
package nats

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/club-events-assistant/internal/infrastructure/resilience"
)

const (
	indexerGroup = "event-indexers"
	eventIDKey   = "Event-Id"
)

type Options struct {
	// HandlerTimeout bounds the indexing of one event. Zero means 2 minutes.
	HandlerTimeout time.Duration
	// DrainTimeout bounds delivery of in-flight notifications on shutdown.
	DrainTimeout       time.Duration
	ResilienceExecutor *resilience.Executor
	Logger             *slog.Logger
}

// Queue publishes and consumes event ids on one subject. Notifications are
// best effort: the relational store stays the source of truth and a lost
// notification only delays the vector index.
type Queue struct {
	conn           *nats.Conn
	subject        string
	handlerTimeout time.Duration
	drainTimeout   time.Duration
	executor       *resilience.Executor
	logger         *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	q := &Queue{
		subject:        subject,
		handlerTimeout: options.HandlerTimeout,
		drainTimeout:   options.DrainTimeout,
		executor:       options.ResilienceExecutor,
		logger:         options.Logger,
	}
	if q.handlerTimeout <= 0 {
		q.handlerTimeout = 2 * time.Minute
	}
	if q.drainTimeout <= 0 {
		q.drainTimeout = 5 * time.Second
	}
	if q.logger == nil {
		q.logger = slog.Default()
	}

	// The API may start before NATS; publishes buffer while the client
	// keeps reconnecting.
	conn, err := nats.Connect(
		url,
		nats.Name("club-events-assistant"),
		nats.Timeout(2*time.Second),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.RetryOnFailedConnect(true),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				q.logger.Warn("nats_disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			q.logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
		nats.ErrorHandler(asyncErrorHandler(q.logger)),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	q.conn = conn
	return q, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

// PublishEventIngested announces a committed event so workers can mirror it
// into secondary indexes. The id travels in the body and in a header.
func (q *Queue) PublishEventIngested(ctx context.Context, eventID string) error {
	msg := nats.NewMsg(q.subject)
	msg.Header.Set(eventIDKey, eventID)
	msg.Data = []byte(eventID)

	publish := func(context.Context) error { return q.conn.PublishMsg(msg) }

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, "nats.publish", publish, classifyNATSError)
	} else {
		err = publish(ctx)
	}
	if err != nil {
		return publishError(q.subject, err)
	}
	return nil
}

// SubscribeEventIngested blocks until ctx is done, delivering each event id to
// handler. Workers share one queue group so each event is indexed once.
func (q *Queue) SubscribeEventIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, indexerGroup, func(msg *nats.Msg) {
		q.deliver(ctx, msg, handler)
	})
	if err != nil {
		return fmt.Errorf("nats subscribe %s: %w", q.subject, err)
	}
	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}
	q.logger.Info("nats_subscribed", "subject", q.subject, "group", indexerGroup)

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(q.drainTimeout); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func (q *Queue) deliver(ctx context.Context, msg *nats.Msg, handler func(context.Context, string) error) {
	if ctx.Err() != nil {
		return
	}
	eventID := messageEventID(msg)
	if eventID == "" {
		q.logger.Warn("nats_empty_event_id", "subject", msg.Subject)
		return
	}

	handlerCtx, cancel := context.WithTimeout(ctx, q.handlerTimeout)
	defer cancel()
	started := time.Now()
	if err := handler(handlerCtx, eventID); err != nil {
		q.logger.Error("event_ingested_handler_failed",
			"event_id", eventID,
			"duration_ms", time.Since(started).Milliseconds(),
			"error", err.Error(),
		)
	}
}

// messageEventID prefers the header and falls back to the body, which is all
// older publishers sent.
func messageEventID(msg *nats.Msg) string {
	if msg.Header != nil {
		if id := strings.TrimSpace(msg.Header.Get(eventIDKey)); id != "" {
			return id
		}
	}
	return strings.TrimSpace(string(msg.Data))
}
