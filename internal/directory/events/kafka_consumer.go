package events

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

type KafkaReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Handler func(context.Context, Event) error

type Consumer struct {
	reader  KafkaReader
	logger  *zap.Logger
	handler Handler
}

// NewConsumer reads directory events from topic as part of groupID.
func NewConsumer(brokers []string, groupID, topic string, logger *zap.Logger) *Consumer {
	return newConsumer(kafka.NewReader(kafka.ReaderConfig{
		Brokers: brokers,
		GroupID: groupID,
		Topic:   topic,
		Dialer:  kafka.DefaultDialer,
	}), logger)
}

func newConsumer(r KafkaReader, logger *zap.Logger) *Consumer {
	return &Consumer{
		reader: r,
		logger: logger.Named("kafka_consumer"),
	}
}

func (c *Consumer) RegisterHandler(fn Handler) {
	c.handler = fn
}

// Run fetches, handles and commits messages until ctx is done. A message
// whose handler fails is left uncommitted and will be redelivered.
func (c *Consumer) Run(ctx context.Context) error {
	if c.handler == nil {
		return errors.New("no event handler registered")
	}
	for {
		msg, err := c.reader.FetchMessage(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			c.logger.Error("Failed to fetch message", zap.Error(err))
			continue
		}

		var event Event
		if err := json.Unmarshal(msg.Value, &event); err != nil {
			c.logger.Error("Failed to parse event",
				zap.Error(err),
				zap.ByteString("value", msg.Value),
			)
			c.commit(ctx, msg, "")
			continue
		}

		if err := c.handler(ctx, event); err != nil {
			c.logger.Error("Failed to handle event",
				zap.Error(err),
				zap.String("event_type", string(event.Type)),
			)
			continue
		}

		c.commit(ctx, msg, event.Type)
	}
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message, eventType EventType) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		c.logger.Error("Failed to commit message",
			zap.Error(err),
			zap.String("event_type", string(eventType)),
		)
	}
}

func (c *Consumer) Close() {
	if err := c.reader.Close(); err != nil {
		c.logger.Error("Failed to close Kafka reader", zap.Error(err))
	}
}

// AuditLogHandler writes every directory event to logger.
func AuditLogHandler(logger *zap.Logger) Handler {
	logger = logger.Named("audit")
	return func(_ context.Context, event Event) error {
		fields := []zap.Field{
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.CompanyID.String()),
		}
		if event.Company != nil && event.Company.Name != "" {
			fields = append(fields, zap.String("company_name", event.Company.Name))
		}
		if event.Deed != nil {
			fields = append(fields,
				zap.String("deed_id", event.Deed.ID.String()),
				zap.String("deed_title", event.Deed.Title),
			)
		}
		logger.Info("directory event", fields...)
		return nil
	}
}
