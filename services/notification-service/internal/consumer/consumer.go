package consumer

import (
	"context"
	"log/slog"
	"time"

	"github.com/lancerhub/marketplace/libs/kafkax"
	"github.com/segmentio/kafka-go"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

type Handler func(ctx context.Context, msg kafka.Message) error

// Inbox remembers events that were fully handled.
type Inbox interface {
	Seen(ctx context.Context, eventID string) (bool, error)
	Record(ctx context.Context, eventID string, eventType string) error
}

// MessageReader is the part of *kafka.Reader the consumer uses. Offsets are
// committed explicitly, so a message is acknowledged only after it has been
// handled or recognised as a duplicate.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Consumer struct {
	reader     MessageReader
	logger     *slog.Logger
	inbox      Inbox
	handler    Handler
	minBackoff time.Duration
	maxBackoff time.Duration
}

type Config struct {
	Brokers []string
	GroupID string
	Topics  []string
}

func New(logger *slog.Logger, inbox Inbox, cfg Config, handler Handler) *Consumer {
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:     cfg.Brokers,
		GroupID:     cfg.GroupID,
		GroupTopics: cfg.Topics,
		MinBytes:    1,
		MaxBytes:    10e6,
	})
	return NewWithReader(logger, inbox, reader, handler)
}

func NewWithReader(logger *slog.Logger, inbox Inbox, reader MessageReader, handler Handler) *Consumer {
	return &Consumer{
		reader:     reader,
		logger:     logger,
		inbox:      inbox,
		handler:    handler,
		minBackoff: time.Second,
		maxBackoff: 30 * time.Second,
	}
}

func (c *Consumer) Run(ctx context.Context) {
	defer func() { _ = c.reader.Close() }()

	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			c.logger.Error("kafka fetch error", "err", err)
			if !c.sleep(ctx, c.minBackoff) {
				return
			}
			continue
		}
		if !c.process(ctx, msg) {
			return
		}
		if err := c.reader.CommitMessages(ctx, msg); err != nil && ctx.Err() == nil {
			c.logger.Error("kafka commit error", "err", err, "topic", msg.Topic, "offset", msg.Offset)
		}
	}
}

// process handles msg until it succeeds, retrying with backoff so the
// partition does not move past a failed event. It returns false only when
// ctx is done before the message was handled.
func (c *Consumer) process(ctx context.Context, msg kafka.Message) bool {
	ctxMsg := kafkax.ExtractTraceContext(ctx, msg)
	ctxSpan, span := otel.Tracer("kafka").Start(ctxMsg, "kafka.consume",
		trace.WithAttributes(
			attribute.String("messaging.system", "kafka"),
			attribute.String("messaging.destination", msg.Topic),
		),
	)
	defer span.End()

	meta := kafkax.ExtractEventMeta(msg)
	backoff := c.minBackoff
	for attempt := 1; ; attempt++ {
		err := c.handleOnce(ctxSpan, msg, meta)
		if err == nil {
			return true
		}
		c.logger.Error("handler error", "err", err, "event_id", meta.EventID, "event_type", meta.EventType, "attempt", attempt)
		span.RecordError(err)
		if !c.sleep(ctx, backoff) {
			return false
		}
		backoff = min(backoff*2, c.maxBackoff)
	}
}

func (c *Consumer) handleOnce(ctx context.Context, msg kafka.Message, meta kafkax.EventMeta) error {
	seen, err := c.inbox.Seen(ctx, meta.EventID)
	if err != nil {
		return err
	}
	if seen {
		c.logger.Info("duplicate event ignored", "event_id", meta.EventID, "event_type", meta.EventType)
		return nil
	}
	if err := c.handler(ctx, msg); err != nil {
		return err
	}
	if err := c.inbox.Record(ctx, meta.EventID, meta.EventType); err != nil {
		// The handler skips work it already did, so a redelivery is harmless.
		c.logger.Warn("inbox record failed", "err", err, "event_id", meta.EventID)
	}
	return nil
}

func (c *Consumer) sleep(ctx context.Context, d time.Duration) bool {
	select {
	case <-ctx.Done():
		return false
	case <-time.After(d):
		return true
	}
}
