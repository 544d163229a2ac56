package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/kirillkom/tradeflow/internal/core/domain"
	"github.com/kirillkom/tradeflow/internal/infrastructure/resilience"
)

const (
	queueGroup      = "workers"
	publishedAtHdr  = "Tradeflow-Published-At"
	eventTypeHeader = "Tradeflow-Event"
)

type Queue struct {
	conn          *nats.Conn
	subject       string
	eventsSubject string
	executor      *resilience.Executor
	onDelivery    func(lag time.Duration)
	logger        *slog.Logger
}

func New(url, subject string) (*Queue, error) {
	return NewWithOptions(url, subject, Options{})
}

type Options struct {
	// EventsSubject receives transaction-updated events; empty disables publishing.
	EventsSubject string

	ConnectTimeout       time.Duration
	ReconnectWait        time.Duration
	MaxReconnects        int
	RetryOnFailedConnect *bool
	ResilienceExecutor   *resilience.Executor

	// OnDelivery is called with the publish-to-delivery lag of each ingest message.
	OnDelivery func(lag time.Duration)
	Logger     *slog.Logger
}

func NewWithOptions(url, subject string, options Options) (*Queue, error) {
	connectTimeout := options.ConnectTimeout
	if connectTimeout <= 0 {
		connectTimeout = 2 * time.Second
	}
	reconnectWait := options.ReconnectWait
	if reconnectWait <= 0 {
		reconnectWait = 2 * time.Second
	}
	maxReconnects := options.MaxReconnects
	if maxReconnects <= 0 {
		maxReconnects = 60
	}
	retryOnFailedConnect := true
	if options.RetryOnFailedConnect != nil {
		retryOnFailedConnect = *options.RetryOnFailedConnect
	}
	logger := options.Logger
	if logger == nil {
		logger = slog.Default()
	}

	conn, err := nats.Connect(
		url,
		nats.Name("tradeflow"),
		nats.Timeout(connectTimeout),
		nats.ReconnectWait(reconnectWait),
		nats.MaxReconnects(maxReconnects),
		nats.RetryOnFailedConnect(retryOnFailedConnect),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			logger.Warn("nats_disconnected", "error", err)
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats_reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats: %w", err)
	}
	return &Queue{
		conn:          conn,
		subject:       subject,
		eventsSubject: strings.TrimSpace(options.EventsSubject),
		executor:      options.ResilienceExecutor,
		onDelivery:    options.OnDelivery,
		logger:        logger,
	}, nil
}

func (q *Queue) Close() {
	if q.conn != nil {
		q.conn.Close()
	}
}

func (q *Queue) PublishDocumentIngested(ctx context.Context, documentID string) error {
	return q.publish(ctx, "nats.publish", newIngestMessage(q.subject, documentID, time.Now().UTC()))
}

// PublishTransactionUpdated announces a transaction change as JSON on the events subject.
func (q *Queue) PublishTransactionUpdated(ctx context.Context, event domain.TransactionEvent) error {
	if q.eventsSubject == "" {
		return nil
	}
	msg, err := newEventMessage(q.eventsSubject, event)
	if err != nil {
		return err
	}
	return q.publish(ctx, "nats.publish_event", msg)
}

func (q *Queue) publish(ctx context.Context, operation string, msg *nats.Msg) error {
	call := func(_ context.Context) error {
		if err := q.conn.PublishMsg(msg); err != nil {
			return fmt.Errorf("nats publish %s: %w", msg.Subject, err)
		}
		return nil
	}

	var err error
	if q.executor != nil {
		err = q.executor.Execute(ctx, operation, call, classifyNATSError)
	} else {
		err = call(ctx)
	}
	return resilience.WrapTemporary("nats publish", err, classifyNATSError)
}

func (q *Queue) SubscribeDocumentIngested(ctx context.Context, handler func(context.Context, string) error) error {
	sub, err := q.conn.QueueSubscribe(q.subject, queueGroup, func(msg *nats.Msg) {
		if errors.Is(ctx.Err(), context.Canceled) {
			return
		}

		documentID := strings.TrimSpace(string(msg.Data))
		if q.onDelivery != nil {
			if publishedAt, ok := publishedAtOf(msg); ok {
				q.onDelivery(time.Since(publishedAt))
			}
		}

		handlerCtx, cancel := context.WithCancel(ctx)
		defer cancel()
		if err := handler(handlerCtx, documentID); err != nil {
			q.logger.Error("worker_handler_failed", "document_id", documentID, "error", err)
		}
	})
	if err != nil {
		return fmt.Errorf("nats subscribe: %w", err)
	}

	if err := q.conn.Flush(); err != nil {
		return fmt.Errorf("nats flush: %w", err)
	}

	<-ctx.Done()
	if err := sub.Drain(); err != nil {
		return fmt.Errorf("nats drain subscription: %w", err)
	}
	if err := q.conn.FlushTimeout(5 * time.Second); err != nil {
		return fmt.Errorf("nats flush after drain: %w", err)
	}
	return nil
}

func newIngestMessage(subject, documentID string, publishedAt time.Time) *nats.Msg {
	msg := nats.NewMsg(subject)
	msg.Data = []byte(documentID)
	msg.Header.Set(publishedAtHdr, publishedAt.Format(time.RFC3339Nano))
	return msg
}

func newEventMessage(subject string, event domain.TransactionEvent) (*nats.Msg, error) {
	payload, err := json.Marshal(event)
	if err != nil {
		return nil, fmt.Errorf("marshal transaction event: %w", err)
	}
	msg := nats.NewMsg(subject)
	msg.Data = payload
	msg.Header.Set(eventTypeHeader, "transaction.updated")
	msg.Header.Set(publishedAtHdr, event.OccurredAt.UTC().Format(time.RFC3339Nano))
	return msg, nil
}

func publishedAtOf(msg *nats.Msg) (time.Time, bool) {
	if msg == nil || msg.Header == nil {
		return time.Time{}, false
	}
	raw := msg.Header.Get(publishedAtHdr)
	if raw == "" {
		return time.Time{}, false
	}
	t, err := time.Parse(time.RFC3339Nano, raw)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}
