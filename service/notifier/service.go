// Package notifier publishes status-change notifications to interested
// subscribers. Delivery is fire-and-forget and at-least-once: a failed
// publication is logged and never rolls back the already-persisted state
// transition, and subscribers are expected to tolerate duplicates.
package notifier

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/service/messaging"
)

// Service publishes StatusUpdated events on an outbound queue.
type Service struct {
	queue   messaging.Queue[message.StatusUpdated]
	logger  zerolog.Logger
	timeout time.Duration
}

// Option configures the notifier.
type Option func(*Service)

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// WithTimeout bounds how long a single publication may block the caller.
func WithTimeout(timeout time.Duration) Option {
	return func(s *Service) { s.timeout = timeout }
}

// New creates a notifier over the supplied outbound queue.
func New(queue messaging.Queue[message.StatusUpdated], options ...Option) *Service {
	ret := &Service{
		queue:   queue,
		logger:  zerolog.Nop(),
		timeout: 5 * time.Second,
	}
	for _, option := range options {
		option(ret)
	}
	return ret
}

// StatusUpdated publishes the supplied notification. Errors are logged, never
// returned: by the time a notification is built the transition is durable and
// authoritative.
func (s *Service) StatusUpdated(ctx context.Context, update *message.StatusUpdated) {
	if update == nil {
		return
	}
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	if err := s.queue.Publish(ctx, update); err != nil {
		s.logger.Warn().Err(err).
			Str("correlation_id", update.CorrelationID).
			Str("status", update.Status).
			Msg("failed to publish status notification")
		return
	}
	s.logger.Debug().
		Str("correlation_id", update.CorrelationID).
		Str("status", update.Status).
		Msg("status notification published")
}
