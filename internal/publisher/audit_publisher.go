package publisher

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/confluentinc/confluent-kafka-go/v2/kafka"
	log "github.com/sirupsen/logrus"

	"project-service/internal/domain"
)

const (
	deliveryTimeout = 10 * time.Second
	flushTimeoutMs  = 15 * 1000
)

// producer is the part of *kafka.Producer the publisher uses.
type producer interface {
	Produce(msg *kafka.Message, deliveryChan chan kafka.Event) error
	Flush(timeoutMs int) int
	Close()
}

// AuditPublisher fans stored audit entries out to a Kafka topic. Messages are keyed by
// the audited entity so that one entity's history stays on one partition.
type AuditPublisher struct {
	producer producer
	topic    string
}

func NewAuditPublisher(bootstrapServers, topic string) (*AuditPublisher, error) {
	p, err := kafka.NewProducer(&kafka.ConfigMap{
		"bootstrap.servers":  bootstrapServers,
		"enable.idempotence": true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create kafka producer: %w", err)
	}

	log.WithField("topic", topic).Info("Audit Kafka producer created for project-service")

	return &AuditPublisher{producer: p, topic: topic}, nil
}

func (p *AuditPublisher) Publish(ctx context.Context, event domain.AuditEvent) error {
	if event.OccurredAt.IsZero() {
		event.OccurredAt = time.Now().UTC()
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal audit event: %w", err)
	}

	// Not closed: a report may still arrive after we gave up waiting.
	deliveryChan := make(chan kafka.Event, 1)

	if err := p.producer.Produce(&kafka.Message{
		TopicPartition: kafka.TopicPartition{Topic: &p.topic, Partition: kafka.PartitionAny},
		Key:            []byte(event.EntityID),
		Value:          payload,
		Headers: []kafka.Header{
			{Key: "event_type", Value: []byte(event.EventType)},
			{Key: "service", Value: []byte(event.Service)},
		},
	}, deliveryChan); err != nil {
		return fmt.Errorf("failed to produce message: %w", err)
	}

	timer := time.NewTimer(deliveryTimeout)
	defer timer.Stop()

	select {
	case e := <-deliveryChan:
		msg, ok := e.(*kafka.Message)
		if !ok {
			return fmt.Errorf("unexpected event type: %T", e)
		}
		if msg.TopicPartition.Error != nil {
			return fmt.Errorf("delivery failed: %w", msg.TopicPartition.Error)
		}
		return nil
	case <-timer.C:
		return fmt.Errorf("delivery timeout")
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (p *AuditPublisher) Close() {
	log.Info("Closing audit Kafka producer for project-service...")
	if remaining := p.producer.Flush(flushTimeoutMs); remaining > 0 {
		log.WithField("remaining", remaining).Warn("Audit events left unflushed")
	}
	p.producer.Close()
}
