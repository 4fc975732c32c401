// Package kafka publishes audit events to a Kafka topic, keyed by gateway
// ID so one gateway's history stays ordered within a partition.
package kafka

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/twmb/franz-go/pkg/kgo"

	"syndic/internal/registry/audit"
)

// Publisher is a Kafka-backed audit publisher.
type Publisher struct {
	client *kgo.Client
	topic  string
}

var _ audit.Publisher = (*Publisher)(nil)

// New connects to the given seed brokers and publishes to topic.
func New(seeds []string, topic string) (*Publisher, error) {
	client, err := kgo.NewClient(
		kgo.SeedBrokers(seeds...),
		kgo.DefaultProduceTopic(topic),
		kgo.ProducerBatchCompression(kgo.SnappyCompression()),
	)
	if err != nil {
		return nil, fmt.Errorf("kafka client: %w", err)
	}
	return &Publisher{client: client, topic: topic}, nil
}

// Publish produces one event asynchronously. Delivery failures are the
// broker client's to retry; audit never fails the originating mutation.
func (p *Publisher) Publish(ctx context.Context, event audit.Event) error {
	value, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode audit event: %w", err)
	}
	record := &kgo.Record{
		Topic: p.topic,
		Key:   []byte(strconv.FormatInt(event.GatewayID, 10)),
		Value: value,
	}
	p.client.Produce(ctx, record, nil)
	return nil
}

// Close flushes pending records and releases the client.
func (p *Publisher) Close(ctx context.Context) error {
	if err := p.client.Flush(ctx); err != nil {
		return err
	}
	p.client.Close()
	return nil
}
