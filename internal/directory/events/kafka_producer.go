package events

import (
	"context"
	"encoding/json"

	"github.com/gartstein/dexapp/internal/directory/models"
	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
)

var jsonMarshal = json.Marshal

type EventType string

const (
	CompanyCreated EventType = "company_created"
	CompanyUpdated EventType = "company_updated"
	CompanyDeleted EventType = "company_deleted"
	DeedAppended   EventType = "deed_appended"
)

// Event is the message written to the topic, keyed by company id.
type Event struct {
	Type      EventType       `json:"type"`
	CompanyID uuid.UUID       `json:"company_id"`
	Company   *models.Company `json:"company,omitempty"`
	Deed      *models.Deed    `json:"deed,omitempty"`
}

type KafkaWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

type Producer struct {
	writer    KafkaWriter
	events    chan Event
	logger    *zap.Logger
	closeChan chan struct{}
	done      chan struct{}
}

// NewProducer creates the topic when missing and starts the send loop.
func NewProducer(brokers []string, logger *zap.Logger, topic string) (*Producer, error) {
	conn, err := kafka.Dial("tcp", brokers[0])
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	topicConfigs := []kafka.TopicConfig{
		{
			Topic:             topic,
			NumPartitions:     3,
			ReplicationFactor: 1,
		},
	}

	err = conn.CreateTopics(topicConfigs...)
	if err != nil {
		logger.Warn("failed to create topic (may already exist)", zap.Error(err))
	}

	w := &kafka.Writer{
		Addr:     kafka.TCP(brokers...),
		Balancer: &kafka.Hash{},
		Topic:    topic,
	}
	return newProducer(w, logger, 1000), nil
}

func newProducer(w KafkaWriter, logger *zap.Logger, queue int) *Producer {
	p := &Producer{
		writer:    w,
		events:    make(chan Event, queue),
		logger:    logger.Named("kafka_producer"),
		closeChan: make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.eventLoop()
	return p
}

// Produce enqueues a company event without blocking.
func (p *Producer) Produce(eventType EventType, company *models.Company) {
	p.enqueue(Event{Type: eventType, CompanyID: company.ID, Company: company})
}

// ProduceDeed enqueues a deed_appended event without blocking.
func (p *Producer) ProduceDeed(deed *models.Deed) {
	p.enqueue(Event{Type: DeedAppended, CompanyID: deed.CompanyID, Deed: deed})
}

func (p *Producer) enqueue(event Event) {
	select {
	case p.events <- event:
	default:
		p.logger.Warn("Kafka producer queue full, dropping event",
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.CompanyID.String()),
		)
	}
}

func (p *Producer) eventLoop() {
	defer close(p.done)
	for {
		select {
		case event := <-p.events:
			p.sendEvent(context.Background(), event)
		case <-p.closeChan:
			return
		}
	}
}

func (p *Producer) sendEvent(ctx context.Context, event Event) {
	value, err := jsonMarshal(event)
	if err != nil {
		p.logger.Error("Failed to serialize event",
			zap.Error(err),
			zap.String("company_id", event.CompanyID.String()),
		)
		return
	}
	err = p.writer.WriteMessages(ctx, kafka.Message{
		Key:   []byte(event.CompanyID.String()),
		Value: value,
	})
	if err != nil {
		p.logger.Error("Failed to produce event",
			zap.Error(err),
			zap.String("event_type", string(event.Type)),
			zap.String("company_id", event.CompanyID.String()),
		)
		return
	}
}

// Close stops the send loop and closes the writer. Events still queued
// are dropped.
func (p *Producer) Close() {
	close(p.closeChan)
	<-p.done
	if err := p.writer.Close(); err != nil {
		p.logger.Error("Failed to close Kafka writer", zap.Error(err))
	}
}

// NopProducer discards events. It is used when no brokers are configured.
type NopProducer struct {
	logger *zap.Logger
}

func NewNopProducer(logger *zap.Logger) *NopProducer {
	return &NopProducer{logger: logger.Named("nop_producer")}
}

func (n *NopProducer) Produce(eventType EventType, company *models.Company) {
	n.logger.Debug("event discarded",
		zap.String("event_type", string(eventType)),
		zap.String("company_id", company.ID.String()),
	)
}

func (n *NopProducer) ProduceDeed(deed *models.Deed) {
	n.logger.Debug("event discarded",
		zap.String("event_type", string(DeedAppended)),
		zap.String("company_id", deed.CompanyID.String()),
	)
}

func (n *NopProducer) Close() {}
