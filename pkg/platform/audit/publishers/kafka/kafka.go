// Package kafka publishes security audit events to a Kafka topic for
// downstream SIEM consumers. The sink is optional; without configured
// brokers the service keeps only the store copy of the audit trail.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/twmb/franz-go/pkg/kgo"

	audit "keyhaven/pkg/platform/audit"
)

// Sink produces audit events to a Kafka topic, keyed by account address so
// one account's events stay ordered within a partition.
type Sink struct {
	client *kgo.Client
	topic  string
}

// NewSink connects a producer to the given brokers.
func NewSink(brokers []string, topic string) (*Sink, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(brokers...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka sink: %w", err)
	}
	return &Sink{client: client, topic: topic}, nil
}

// Publish produces one event synchronously. Callers treat failures as
// non-fatal; the durable audit copy lives in the store.
func (s *Sink) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("kafka sink: marshal event: %w", err)
	}
	record := &kgo.Record{
		Key:   []byte(event.Address),
		Value: value,
	}
	if err := s.client.ProduceSync(ctx, record).FirstErr(); err != nil {
		return fmt.Errorf("kafka sink: produce: %w", err)
	}
	return nil
}

// Close flushes outstanding records and releases the client.
func (s *Sink) Close() {
	s.client.Close()
}
