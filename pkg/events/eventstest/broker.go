// Package eventstest provides an in-memory stand-in for the Kafka topic used
// by the producer and consumer in tests.
package eventstest

import (
	"context"
	"hash/fnv"
	"io"
	"sync"

	"github.com/segmentio/kafka-go"
)

// Broker is a single-topic, in-memory log. It satisfies both
// events.MessageWriter and events.MessageReader. Messages are assigned a
// partition by hashing their key, so equal keys share a partition.
type Broker struct {
	topic      string
	partitions int

	mu        sync.Mutex
	log       []kafka.Message
	offsets   map[int]int64
	cursor    int
	committed []kafka.Message
	closed    bool
	wake      chan struct{}
}

// NewBroker creates a broker for topic with the given number of partitions.
func NewBroker(topic string, partitions int) *Broker {
	if partitions < 1 {
		partitions = 1
	}
	return &Broker{
		topic:      topic,
		partitions: partitions,
		offsets:    make(map[int]int64),
		wake:       make(chan struct{}),
	}
}

// WriteMessages appends msgs to the log.
func (b *Broker) WriteMessages(_ context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return io.ErrClosedPipe
	}
	for _, m := range msgs {
		p := b.partitionFor(m.Key)
		m.Topic = b.topic
		m.Partition = p
		m.Offset = b.offsets[p]
		b.offsets[p]++
		b.log = append(b.log, m)
	}
	b.broadcast()
	return nil
}

// FetchMessage returns the next message, blocking until one is written or
// ctx is done. It returns io.EOF once the broker is closed.
func (b *Broker) FetchMessage(ctx context.Context) (kafka.Message, error) {
	for {
		b.mu.Lock()
		if b.closed {
			b.mu.Unlock()
			return kafka.Message{}, io.EOF
		}
		if b.cursor < len(b.log) {
			m := b.log[b.cursor]
			b.cursor++
			b.mu.Unlock()
			return m, nil
		}
		wait := b.wake
		b.mu.Unlock()

		select {
		case <-ctx.Done():
			return kafka.Message{}, ctx.Err()
		case <-wait:
		}
	}
}

// CommitMessages records msgs as committed.
func (b *Broker) CommitMessages(_ context.Context, msgs ...kafka.Message) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.committed = append(b.committed, msgs...)
	return nil
}

// Close makes pending and future fetches return io.EOF.
func (b *Broker) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if !b.closed {
		b.closed = true
		b.broadcast()
	}
	return nil
}

// Rewind moves the read position back to the start of the log so every
// message is delivered again, as after a consumer restart without commits.
func (b *Broker) Rewind() {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.cursor = 0
	b.broadcast()
}

// Messages returns a copy of everything written so far.
func (b *Broker) Messages() []kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]kafka.Message(nil), b.log...)
}

// Committed returns a copy of every committed message in commit order.
func (b *Broker) Committed() []kafka.Message {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]kafka.Message(nil), b.committed...)
}

func (b *Broker) partitionFor(key []byte) int {
	h := fnv.New32a()
	_, _ = h.Write(key)
	return int(h.Sum32() % uint32(b.partitions))
}

// broadcast wakes every blocked fetcher. Caller holds b.mu.
func (b *Broker) broadcast() {
	close(b.wake)
	b.wake = make(chan struct{})
}

// FailingWriter rejects every write with Err.
type FailingWriter struct {
	Err error

	mu    sync.Mutex
	calls int
}

func (w *FailingWriter) WriteMessages(_ context.Context, _ ...kafka.Message) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.calls++
	return w.Err
}

func (w *FailingWriter) Close() error { return nil }

// Calls returns how many times WriteMessages was invoked.
func (w *FailingWriter) Calls() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.calls
}
