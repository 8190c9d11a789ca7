// Package messaging defines the queue abstraction the approval engine runs
// on. Vendors are interchangeable: an in-memory queue for tests and
// single-binary setups, a filesystem queue for durable local processing and a
// NATS JetStream queue for fleet deployments.
package messaging

import (
	"context"
)

// Vendor names a messaging vendor implementation.
type Vendor string

const (
	VendorMemory Vendor = "memory"
	VendorFs     Vendor = "fs"
	VendorNats   Vendor = "nats"
)

// Queue is an abstract at-least-once message queue for any payload type.
type Queue[T any] interface {
	// Publish adds a new message with payload to the queue.
	Publish(ctx context.Context, t *T) error

	// Consume retrieves a single message from the queue, blocking until one
	// is available or the context is done.
	Consume(ctx context.Context) (Message[T], error)
}

// Message represents a message retrieved from a queue. Consumers must settle
// every message exactly once: Ack on success, Nack to trigger redelivery.
type Message[T any] interface {
	// T returns the payload of this message.
	T() *T

	// Ack acknowledges successful processing of this message.
	Ack() error

	// Nack indicates failure in processing this message.
	Nack(err error) error
}
