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
	"errors"
	"fmt"
	"io"
	"strconv"
	"time"

	"github.com/segmentio/kafka-go"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/telekom/account-notifier/pkg/config"
	"github.com/telekom/account-notifier/pkg/metrics"
)

// ErrUnknownKind is returned by handlers for events they do not dispatch on.
// The consumer drops such events without retrying or dead-lettering them.
var ErrUnknownKind = errors.New("unknown event kind")

// Dead-letter headers added on top of the original message headers.
const (
	HeaderDLQError       = "dlq-error"
	HeaderDLQSourceTopic = "dlq-source-topic"
	HeaderDLQPartition   = "dlq-partition"
	HeaderDLQOffset      = "dlq-offset"
	HeaderDLQAttempts    = "dlq-attempts"
)

// workerQueueSize bounds how many fetched messages may wait per worker.
const workerQueueSize = 16

// MessageReader is the subset of *kafka.Reader the consumer needs.
type MessageReader interface {
	FetchMessage(ctx context.Context) (kafka.Message, error)
	CommitMessages(ctx context.Context, msgs ...kafka.Message) error
	Close() error
}

// Handler processes one decoded event.
type Handler interface {
	HandleEvent(ctx context.Context, ev LifecycleEvent) error
}

// HandlerFunc adapts a function to Handler.
type HandlerFunc func(ctx context.Context, ev LifecycleEvent) error

func (f HandlerFunc) HandleEvent(ctx context.Context, ev LifecycleEvent) error {
	return f(ctx, ev)
}

// Consumer is the subscription loop. Messages are spread over workers by
// partition so that events sharing a key are handled in order by one worker
// and offsets of a partition are committed in order.
//
// The offset of a message is committed once it has been handled, whatever
// the outcome. The only exception is a retry backoff interrupted by
// shutdown: that message stays uncommitted and is redelivered.
type Consumer struct {
	reader     MessageReader
	deadLetter MessageWriter
	dlqTopic   string
	handler    Handler
	log        *zap.SugaredLogger

	workers      int
	maxAttempts  int
	retryBackoff time.Duration
	maxBackoff   time.Duration

	sleep func(ctx context.Context, d time.Duration) error
}

// NewConsumer creates a Kafka consumer group member for cfg.Topic. A
// dead-letter writer is created only when ccfg.DeadLetterTopic is set.
func NewConsumer(kcfg config.Kafka, ccfg config.Consumer, handler Handler, log *zap.SugaredLogger) (*Consumer, error) {
	if len(kcfg.Brokers) == 0 {
		return nil, fmt.Errorf("at least one Kafka broker is required")
	}
	if kcfg.Topic == "" || kcfg.GroupID == "" {
		return nil, fmt.Errorf("kafka topic and group ID are required")
	}

	dialer, err := NewDialer(kcfg)
	if err != nil {
		return nil, err
	}
	reader := kafka.NewReader(kafka.ReaderConfig{
		Brokers:  kcfg.Brokers,
		GroupID:  kcfg.GroupID,
		Topic:    kcfg.Topic,
		Dialer:   dialer,
		MinBytes: 1,
		MaxBytes: 10e6,
	})

	var dlq MessageWriter
	if ccfg.DeadLetterTopic != "" {
		transport, err := NewTransport(kcfg)
		if err != nil {
			_ = reader.Close()
			return nil, err
		}
		dlq = &kafka.Writer{
			Addr:         kafka.TCP(kcfg.Brokers...),
			Topic:        ccfg.DeadLetterTopic,
			Balancer:     &kafka.Hash{},
			WriteTimeout: kcfg.WriteTimeout,
			RequiredAcks: kafka.RequireAll,
			Transport:    transport,
		}
	}

	log.Infow("Kafka consumer initialized",
		"brokers", kcfg.Brokers,
		"topic", kcfg.Topic,
		"groupID", kcfg.GroupID,
		"workers", ccfg.Workers,
		"maxAttempts", ccfg.MaxAttempts,
		"deadLetterTopic", ccfg.DeadLetterTopic)

	return NewConsumerWithReader(reader, dlq, ccfg, handler, log), nil
}

// NewConsumerWithReader builds a consumer around an existing reader.
// deadLetter may be nil.
func NewConsumerWithReader(reader MessageReader, deadLetter MessageWriter, cfg config.Consumer, handler Handler, log *zap.SugaredLogger) *Consumer {
	c := &Consumer{
		reader:       reader,
		deadLetter:   deadLetter,
		dlqTopic:     cfg.DeadLetterTopic,
		handler:      handler,
		log:          log.Named("consumer"),
		workers:      cfg.Workers,
		maxAttempts:  cfg.MaxAttempts,
		retryBackoff: cfg.RetryBackoff,
		maxBackoff:   cfg.MaxRetryBackoff,
		sleep:        sleepContext,
	}
	if c.workers < 1 {
		c.workers = 1
	}
	if c.maxAttempts < 1 {
		c.maxAttempts = 1
	}
	if c.maxBackoff <= 0 {
		c.maxBackoff = 30 * time.Second
	}
	return c
}

// Run fetches and handles messages until ctx is cancelled or the reader
// fails. Cancellation is a clean shutdown and returns nil.
func (c *Consumer) Run(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)

	queues := make([]chan kafka.Message, c.workers)
	for i := range queues {
		q := make(chan kafka.Message, workerQueueSize)
		queues[i] = q
		g.Go(func() error {
			for msg := range q {
				// Anything still queued at shutdown is left uncommitted.
				if ctx.Err() != nil {
					continue
				}
				c.process(ctx, msg)
			}
			return nil
		})
	}

	g.Go(func() error {
		defer func() {
			for _, q := range queues {
				close(q)
			}
		}()
		for {
			msg, err := c.reader.FetchMessage(gctx)
			if err != nil {
				if gctx.Err() != nil || errors.Is(err, io.EOF) {
					return nil
				}
				c.log.Errorw("Failed to fetch message", "errorType", classifyKafkaError(err), "error", err)
				return fmt.Errorf("failed to fetch message: %w", err)
			}
			select {
			case queues[msg.Partition%c.workers] <- msg:
			case <-gctx.Done():
				return nil
			}
		}
	})

	c.log.Infow("Consumer started", "workers", c.workers)
	err := g.Wait()
	c.log.Infow("Consumer stopped", "error", err)
	return err
}

// Close releases the reader and the dead-letter writer.
func (c *Consumer) Close() error {
	var errs []error
	if err := c.reader.Close(); err != nil {
		errs = append(errs, fmt.Errorf("failed to close Kafka reader: %w", err))
	}
	if c.deadLetter != nil {
		if err := c.deadLetter.Close(); err != nil {
			errs = append(errs, fmt.Errorf("failed to close dead-letter writer: %w", err))
		}
	}
	return errors.Join(errs...)
}

func (c *Consumer) process(ctx context.Context, msg kafka.Message) {
	// Handling and committing outlive cancellation so that an in-flight send
	// is not aborted half way.
	workCtx := context.WithoutCancel(ctx)
	log := c.log.With("partition", msg.Partition, "offset", msg.Offset)

	ev, err := Decode(msg.Value)
	if err != nil {
		log.Warnw("Dropping undecodable message", "error", err)
		metrics.EventsConsumed.WithLabelValues("unknown", "malformed").Inc()
		c.commit(workCtx, msg)
		return
	}
	log = log.With("eventType", ev.Kind, "accountId", ev.AccountID)
	kind := kindLabel(ev.Kind)

	for attempt := 1; ; attempt++ {
		err = c.handler.HandleEvent(workCtx, ev)
		if err == nil {
			metrics.EventsConsumed.WithLabelValues(kind, "handled").Inc()
			break
		}
		if errors.Is(err, ErrUnknownKind) {
			log.Warnw("Dropping event of unknown kind", "error", err)
			metrics.EventsConsumed.WithLabelValues(kind, "dropped").Inc()
			break
		}
		if attempt >= c.maxAttempts {
			log.Errorw("Failed to handle event", "attempts", attempt, "error", err)
			if c.deadLetter != nil {
				c.sendToDeadLetter(workCtx, log, msg, attempt, err)
				metrics.EventsConsumed.WithLabelValues(kind, "dead_lettered").Inc()
			} else {
				metrics.EventsConsumed.WithLabelValues(kind, "failed").Inc()
			}
			break
		}

		delay := c.backoff(attempt)
		log.Warnw("Handling event failed, retrying", "attempt", attempt, "retryIn", delay, "error", err)
		if err := c.sleep(ctx, delay); err != nil {
			log.Infow("Shutdown during retry backoff, leaving message uncommitted", "attempt", attempt)
			return
		}
	}

	c.commit(workCtx, msg)
}

func (c *Consumer) commit(ctx context.Context, msg kafka.Message) {
	if err := c.reader.CommitMessages(ctx, msg); err != nil {
		metrics.ConsumerCommitErrors.Inc()
		c.log.Errorw("Failed to commit offset",
			"partition", msg.Partition,
			"offset", msg.Offset,
			"error", err)
	}
}

func (c *Consumer) sendToDeadLetter(ctx context.Context, log *zap.SugaredLogger, msg kafka.Message, attempts int, cause error) {
	headers := make([]kafka.Header, 0, len(msg.Headers)+5)
	headers = append(headers, msg.Headers...)
	headers = append(headers,
		kafka.Header{Key: HeaderDLQError, Value: []byte(cause.Error())},
		kafka.Header{Key: HeaderDLQSourceTopic, Value: []byte(msg.Topic)},
		kafka.Header{Key: HeaderDLQPartition, Value: []byte(strconv.Itoa(msg.Partition))},
		kafka.Header{Key: HeaderDLQOffset, Value: []byte(strconv.FormatInt(msg.Offset, 10))},
		kafka.Header{Key: HeaderDLQAttempts, Value: []byte(strconv.Itoa(attempts))},
	)
	dlqMsg := kafka.Message{
		Key:     msg.Key,
		Value:   msg.Value,
		Headers: headers,
	}
	if err := c.deadLetter.WriteMessages(ctx, dlqMsg); err != nil {
		log.Errorw("Failed to write event to dead-letter topic",
			"deadLetterTopic", c.dlqTopic,
			"errorType", classifyKafkaError(err),
			"error", err)
		return
	}
	metrics.EventsDeadLettered.Inc()
	log.Warnw("Event routed to dead-letter topic", "deadLetterTopic", c.dlqTopic)
}

// backoff returns retryBackoff doubled per previous attempt, capped at maxBackoff.
func (c *Consumer) backoff(attempt int) time.Duration {
	d := c.retryBackoff
	for i := 1; i < attempt && d < c.maxBackoff; i++ {
		d *= 2
	}
	if d > c.maxBackoff {
		d = c.maxBackoff
	}
	return d
}

func kindLabel(k Kind) string {
	if k.Known() {
		return string(k)
	}
	return "unknown"
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
