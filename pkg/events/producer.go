/*
Copyright 2026.

Licensed under the Apache License, Version 2.0 (the "License");
you may not use this file except in compliance with the License.
You may obtain a copy of the License at

    http://www.apache.org/licenses/LICENSE-2.0

Unless required by applicable law or agreed to in writing, software
distributed under the License is distributed on an "AS IS" BASIS,
WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
See the License for the specific language governing permissions and
limitations under the License.
*/

package events

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"

	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/metrics"
)

// Header names attached to every published event.
const (
	HeaderEventType = "event-type"
	HeaderEventID   = "event-id"
	HeaderTimestamp = "timestamp"
)

// MessageWriter is the subset of *kafka.Writer the producer needs.
type MessageWriter interface {
	WriteMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Producer publishes lifecycle events to the configured topic. Messages are
// keyed by account id and the writer uses a hash balancer, so every event of
// one account lands on the same partition.
type Producer struct {
	writer MessageWriter
	topic  string
	log    *zap.SugaredLogger

	mu     sync.Mutex
	closed bool
}

// NewProducer creates a Kafka backed producer.
func NewProducer(cfg config.Kafka, log *zap.SugaredLogger) (*Producer, error) {
	if len(cfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if cfg.Topic == "" {
		return nil, fmt.Errorf("kafka topic is required")
	}

	transport, err := NewTransport(cfg)
	if err != nil {
		return nil, err
	}

	writer := &kafka.Writer{
		Addr:         kafka.TCP(cfg.Brokers...),
		Topic:        cfg.Topic,
		Balancer:     &kafka.Hash{},
		BatchTimeout: cfg.BatchTimeout,
		WriteTimeout: cfg.WriteTimeout,
		RequiredAcks: kafka.RequiredAcks(cfg.RequiredAcks),
		Compression:  compressionCodec(cfg.Compression),
		Transport:    transport,
	}

	log.Infow("Kafka producer initialized",
		"brokers", cfg.Brokers,
		"topic", cfg.Topic,
		"tls", cfg.TLS.Enabled,
		"sasl", cfg.SASL.Mechanism != "")

	return NewProducerWithWriter(writer, cfg.Topic, log), nil
}

// NewProducerWithWriter wraps an existing writer. The writer must already be
// bound to topic; topic is only used for logging.
func NewProducerWithWriter(w MessageWriter, topic string, log *zap.SugaredLogger) *Producer {
	return &Producer{
		writer: w,
		topic:  topic,
		log:    log.Named("producer"),
	}
}

// Publish hands one event to the broker client. It returns once the writer
// accepted the message; delivery to consumers is not awaited.
func (p *Producer) Publish(ctx context.Context, ev LifecycleEvent) error {
	p.mu.Lock()
	closed := p.closed
	p.mu.Unlock()
	if closed {
		return fmt.Errorf("producer is closed")
	}

	msg, err := toMessage(ev)
	if err != nil {
		metrics.EventPublishErrors.WithLabelValues(string(ev.Kind), "encode").Inc()
		return err
	}

	start := time.Now()
	err = p.writer.WriteMessages(ctx, msg)
	metrics.EventPublishLatency.Observe(time.Since(start).Seconds())
	if err != nil {
		errType := classifyKafkaError(err)
		metrics.EventPublishErrors.WithLabelValues(string(ev.Kind), errType).Inc()
		p.log.Errorw("Failed to publish lifecycle event",
			"topic", p.topic,
			"eventType", ev.Kind,
			"accountId", ev.AccountID,
			"errorType", errType,
			"error", err)
		return fmt.Errorf("failed to publish %s event for account %d: %w", ev.Kind, ev.AccountID, err)
	}

	metrics.EventsPublished.WithLabelValues(string(ev.Kind)).Inc()
	p.log.Debugw("Published lifecycle event",
		"topic", p.topic,
		"eventType", ev.Kind,
		"accountId", ev.AccountID)
	return nil
}

// Close flushes and closes the underlying writer. It is safe to call twice.
func (p *Producer) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil
	}
	p.closed = true
	if err := p.writer.Close(); err != nil {
		return fmt.Errorf("failed to close Kafka writer: %w", err)
	}
	return nil
}

func toMessage(ev LifecycleEvent) (kafka.Message, error) {
	payload, err := ev.Encode()
	if err != nil {
		return kafka.Message{}, err
	}
	return kafka.Message{
		Key:   []byte(ev.Key()),
		Value: payload,
		Time:  ev.Timestamp,
		Headers: []kafka.Header{
			{Key: HeaderEventType, Value: []byte(ev.Kind)},
			{Key: HeaderEventID, Value: []byte(uuid.NewString())},
			{Key: HeaderTimestamp, Value: []byte(ev.Timestamp.Format(time.RFC3339))},
		},
	}, nil
}

// header returns the value of the named header or "".
func header(msg kafka.Message, key string) string {
	for _, h := range msg.Headers {
		if h.Key == key {
			return string(h.Value)
		}
	}
	return ""
}
