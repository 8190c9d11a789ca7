// Package router consumes inbound approval events from a message queue and
// dispatches them to the saga state machine. Workers process events for
// different correlation ids concurrently, while a keyed lock group serialises
// events targeting the same instance; the store's revision check remains the
// safety net when several router processes share one queue.
package router

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/service/messaging"
	"github.com/acorlabs/approval/service/saga"
)

// Handler applies one inbound event; satisfied by *saga.Service.
type Handler interface {
	Handle(ctx context.Context, env *message.Envelope) error
}

// Config represents router configuration.
type Config struct {
	// WorkerCount is the number of workers consuming the inbound queue.
	WorkerCount int
}

// DefaultConfig returns the default router configuration.
func DefaultConfig() Config {
	return Config{WorkerCount: 5}
}

// Service routes inbound events to the saga.
type Service struct {
	config  Config
	queue   messaging.Queue[message.Envelope]
	handler Handler
	logger  zerolog.Logger
	keys    *keyGroup

	workers    []*worker
	workerWg   sync.WaitGroup
	shutdownCh chan struct{}
}

type worker struct {
	id       int
	service  *Service
	ctx      context.Context
	cancelFn context.CancelFunc
}

// Option configures the router service.
type Option func(*Service)

// WithConfig sets the router configuration.
func WithConfig(config Config) Option {
	return func(s *Service) { s.config = config }
}

// WithLogger sets the structured logger.
func WithLogger(logger zerolog.Logger) Option {
	return func(s *Service) { s.logger = logger }
}

// New creates a router over the supplied inbound queue and handler.
func New(queue messaging.Queue[message.Envelope], handler Handler, options ...Option) (*Service, error) {
	if queue == nil {
		return nil, errors.New("inbound queue is required")
	}
	if handler == nil {
		return nil, errors.New("handler is required")
	}
	ret := &Service{
		config:     DefaultConfig(),
		queue:      queue,
		handler:    handler,
		logger:     zerolog.Nop(),
		keys:       newKeyGroup(),
		shutdownCh: make(chan struct{}),
	}
	for _, option := range options {
		option(ret)
	}
	if ret.config.WorkerCount <= 0 {
		ret.config.WorkerCount = DefaultConfig().WorkerCount
	}
	return ret, nil
}

// Start launches the worker pool.
func (s *Service) Start(ctx context.Context) error {
	for i := 0; i < s.config.WorkerCount; i++ {
		workerCtx, cancel := context.WithCancel(ctx)
		w := &worker{id: i, service: s, ctx: workerCtx, cancelFn: cancel}
		s.workers = append(s.workers, w)
		s.workerWg.Add(1)
		go w.run()
	}
	return nil
}

// Shutdown stops all workers and waits for in-flight events to settle.
func (s *Service) Shutdown() {
	select {
	case <-s.shutdownCh:
		return
	default:
		close(s.shutdownCh)
	}
	for _, w := range s.workers {
		w.cancelFn()
	}
	s.workerWg.Wait()
}

// run consumes messages from the queue until the worker context is cancelled.
func (w *worker) run() {
	defer w.service.workerWg.Done()

	for {
		msg, err := w.service.queue.Consume(w.ctx)
		if err != nil {
			if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
				return
			}
			// Transient queue error, back off a bit.
			w.service.logger.Warn().Err(err).Int("worker", w.id).Msg("consume failed")
			time.Sleep(100 * time.Millisecond)
			continue
		}
		if msg == nil {
			continue
		}
		w.service.process(w.ctx, msg)
	}
}

// process applies one event while holding the per-correlation-id lock and
// settles the message according to the outcome. Business-rule violations are
// absorbed here: they are logged and acknowledged so that the transport never
// redelivers an event that can no longer apply.
func (s *Service) process(ctx context.Context, msg messaging.Message[message.Envelope]) {
	env := msg.T()

	unlock := s.keys.lock(env.CorrelationID)
	err := s.handler.Handle(ctx, env)
	unlock()

	switch {
	case err == nil:
		if ackErr := msg.Ack(); ackErr != nil {
			s.logger.Warn().Err(ackErr).Str("correlation_id", env.CorrelationID).Msg("ack failed")
		}
	case errors.Is(err, saga.ErrUnknownInstance),
		errors.Is(err, saga.ErrUnknownProcess),
		errors.Is(err, saga.ErrInvalidTransition),
		errors.Is(err, saga.ErrInvalidMessage):
		s.logger.Warn().Err(err).
			Str("correlation_id", env.CorrelationID).
			Str("kind", string(env.Kind)).
			Msg("event dropped")
		if ackErr := msg.Ack(); ackErr != nil {
			s.logger.Warn().Err(ackErr).Str("correlation_id", env.CorrelationID).Msg("ack failed")
		}
	default:
		// Transient (store conflict budget exhausted, I/O failure): let the
		// transport redeliver.
		s.logger.Error().Err(err).
			Str("correlation_id", env.CorrelationID).
			Str("kind", string(env.Kind)).
			Msg("event failed, requeueing")
		if nackErr := msg.Nack(err); nackErr != nil {
			s.logger.Warn().Err(nackErr).Str("correlation_id", env.CorrelationID).Msg("nack failed")
		}
	}
}
