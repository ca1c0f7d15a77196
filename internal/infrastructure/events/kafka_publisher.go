package events

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/segmentio/kafka-go"

	"TenderScanner/internal/config"
	"TenderScanner/internal/domain"
	"TenderScanner/internal/logging"
	"TenderScanner/internal/ports"
)

// EventTenderCreated is carried in the event-type header.
const EventTenderCreated = "tender.created"

type messageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// KafkaPublisher emits one message per stored tender, keyed by source URL.
type KafkaPublisher struct {
	writer messageWriter
	topic  string
	logger *slog.Logger
}

var _ ports.EventPublisher = (*KafkaPublisher)(nil)

// NewKafkaPublisher builds a hash-balanced writer so one URL always lands on one partition.
func NewKafkaPublisher(cfg config.KafkaConfig, log *slog.Logger) *KafkaPublisher {
	if log == nil {
		log = logging.Discard()
	}
	writer := kafka.NewWriter(kafka.WriterConfig{
		Brokers:      cfg.Brokers,
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		MaxAttempts:  3,
		BatchTimeout: 50 * time.Millisecond,
	})
	return &KafkaPublisher{writer: writer, topic: cfg.Topic, logger: log}
}

// PublishTenderCreated writes the tender document to the configured topic.
func (p *KafkaPublisher) PublishTenderCreated(ctx context.Context, record domain.TenderRecord) error {
	msg, err := encodeTenderCreated(record)
	if err != nil {
		return err
	}
	if err := p.writer.WriteMessages(ctx, msg); err != nil {
		return fmt.Errorf("write %s message: %w", p.topic, err)
	}
	p.logger.Debug("tender event published", "topic", p.topic, "source_url", record.SourceURL)
	return nil
}

// Close flushes pending messages.
func (p *KafkaPublisher) Close() error {
	return p.writer.Close()
}

func encodeTenderCreated(record domain.TenderRecord) (kafka.Message, error) {
	payload, err := json.Marshal(domain.NewTenderDocument(record))
	if err != nil {
		return kafka.Message{}, fmt.Errorf("marshal tender event: %w", err)
	}
	return kafka.Message{
		Key:   []byte(record.SourceURL),
		Value: payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(EventTenderCreated)},
			{Key: "tender_id", Value: []byte(record.ID)},
		},
		Time: time.Now().UTC(),
	}, nil
}
