package nats

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/acorlabs/approval/service/messaging"
)

// Queue is a messaging.Queue backed by a NATS JetStream stream. Delivery is
// at-least-once: unsettled or nacked messages are redelivered by the server,
// so consumers must tolerate duplicates.
type Queue[T any] struct {
	js      nats.JetStreamContext
	subject string
	sub     *nats.Subscription
	config  Config
}

// Config for the NATS queue vendor.
type Config struct {
	// Stream is the JetStream stream name; it is created when missing.
	Stream string

	// Subject the queue publishes and consumes on.
	Subject string

	// Durable is the pull consumer's durable name.
	Durable string

	// FetchWait bounds a single server poll while consuming.
	FetchWait time.Duration

	// MaxDeliver caps redeliveries before the server stops retrying.
	MaxDeliver int
}

// DefaultConfig returns a standard configuration for the supplied stream,
// subject and durable names.
func DefaultConfig(stream, subject, durable string) Config {
	return Config{
		Stream:     stream,
		Subject:    subject,
		Durable:    durable,
		FetchWait:  time.Second,
		MaxDeliver: 5,
	}
}

// Message wraps a JetStream message.
type Message[T any] struct {
	payload T
	msg     *nats.Msg
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.payload
}

// Ack acknowledges the message with the server.
func (m *Message[T]) Ack() error {
	return m.msg.Ack()
}

// Nack asks the server to redeliver the message.
func (m *Message[T]) Nack(error) error {
	return m.msg.Nak()
}

// NewQueue binds a queue to a JetStream stream, creating the stream and the
// durable pull consumer when they do not exist yet.
func NewQueue[T any](conn *nats.Conn, config Config) (*Queue[T], error) {
	if config.Stream == "" || config.Subject == "" || config.Durable == "" {
		return nil, fmt.Errorf("nats queue requires stream, subject and durable names")
	}
	if config.FetchWait <= 0 {
		config.FetchWait = time.Second
	}
	js, err := conn.JetStream()
	if err != nil {
		return nil, fmt.Errorf("failed to acquire jetstream context: %w", err)
	}
	_, err = js.StreamInfo(config.Stream)
	if errors.Is(err, nats.ErrStreamNotFound) {
		_, err = js.AddStream(&nats.StreamConfig{
			Name:     config.Stream,
			Subjects: []string{config.Subject},
		})
	}
	if err != nil {
		return nil, fmt.Errorf("failed to ensure stream %v: %w", config.Stream, err)
	}
	sub, err := js.PullSubscribe(config.Subject, config.Durable,
		nats.AckExplicit(),
		nats.MaxDeliver(config.MaxDeliver))
	if err != nil {
		return nil, fmt.Errorf("failed to subscribe to %v: %w", config.Subject, err)
	}
	return &Queue[T]{js: js, subject: config.Subject, sub: sub, config: config}, nil
}

// Publish marshals the payload as JSON and publishes it on the queue subject.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	data, err := json.Marshal(t)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	_, err = q.js.Publish(q.subject, data, nats.Context(ctx))
	if err != nil {
		return fmt.Errorf("failed to publish to %v: %w", q.subject, err)
	}
	return nil
}

// Consume fetches a single message, polling the server until one arrives or
// the context is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		msgs, err := q.sub.Fetch(1, nats.MaxWait(q.config.FetchWait))
		if err != nil {
			if errors.Is(err, nats.ErrTimeout) {
				select {
				case <-ctx.Done():
					return nil, ctx.Err()
				default:
					continue
				}
			}
			return nil, fmt.Errorf("failed to fetch from %v: %w", q.subject, err)
		}
		if len(msgs) == 0 {
			continue
		}
		ret := &Message[T]{msg: msgs[0]}
		if err = json.Unmarshal(msgs[0].Data, &ret.payload); err != nil {
			// Poison payload: settle it so the server stops redelivering.
			_ = msgs[0].Term()
			return nil, fmt.Errorf("failed to unmarshal message from %v: %w", q.subject, err)
		}
		return ret, nil
	}
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
