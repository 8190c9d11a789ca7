// Package client provides typed helpers for originating approval events.
// Hosts embed a Publisher next to their record storage: request an approval
// when a record is submitted, then forward the approve/reject/return/cancel
// actions their users take. All helpers are thin constructors over the
// engine's inbound queue.
package client

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/service/messaging"
)

// Publisher publishes inbound approval events.
type Publisher struct {
	queue messaging.Queue[message.Envelope]
}

// New creates a publisher over the engine's inbound queue.
func New(queue messaging.Queue[message.Envelope]) *Publisher {
	return &Publisher{queue: queue}
}

// RequestApproval originates a new approval process and returns the minted
// correlation id identifying the instance across all subsequent events.
func (p *Publisher) RequestApproval(ctx context.Context, request *message.Request) (string, error) {
	correlationID := uuid.New().String()
	err := p.publish(ctx, &message.Envelope{
		Kind:          message.KindRequest,
		CorrelationID: correlationID,
		Request:       request,
	})
	if err != nil {
		return "", err
	}
	return correlationID, nil
}

// Approve records an approval of the currently open level of a sequential
// instance.
func (p *Publisher) Approve(ctx context.Context, correlationID, userID, comment string) error {
	return p.ApproveLevel(ctx, correlationID, "", userID, comment)
}

// ApproveLevel records an approval of a specific level.
func (p *Publisher) ApproveLevel(ctx context.Context, correlationID, levelID, userID, comment string) error {
	return p.publish(ctx, &message.Envelope{
		Kind:          message.KindApprove,
		CorrelationID: correlationID,
		Approve:       &message.Approve{UserID: userID, LevelID: levelID, Comment: comment},
	})
}

// Reject rejects the request at the currently open level of a sequential
// instance; rejection halts the whole process.
func (p *Publisher) Reject(ctx context.Context, correlationID, userID, reason string) error {
	return p.RejectLevel(ctx, correlationID, "", userID, reason)
}

// RejectLevel rejects the request at a specific level.
func (p *Publisher) RejectLevel(ctx context.Context, correlationID, levelID, userID, reason string) error {
	return p.publish(ctx, &message.Envelope{
		Kind:          message.KindReject,
		CorrelationID: correlationID,
		Reject:        &message.Reject{UserID: userID, LevelID: levelID, Reason: reason},
	})
}

// Return sends the request back to its owner for more information.
func (p *Publisher) Return(ctx context.Context, correlationID, userID, reason string) error {
	return p.ReturnLevel(ctx, correlationID, "", userID, reason)
}

// ReturnLevel sends the request back from a specific level.
func (p *Publisher) ReturnLevel(ctx context.Context, correlationID, levelID, userID, reason string) error {
	return p.publish(ctx, &message.Envelope{
		Kind:          message.KindReturn,
		CorrelationID: correlationID,
		Return:        &message.Return{UserID: userID, LevelID: levelID, Reason: reason},
	})
}

// Resubmit re-enters a returned request into the approval flow.
func (p *Publisher) Resubmit(ctx context.Context, correlationID, userID, comment string) error {
	return p.publish(ctx, &message.Envelope{
		Kind:          message.KindResubmit,
		CorrelationID: correlationID,
		Resubmit:      &message.Resubmit{UserID: userID, Comment: comment},
	})
}

// Cancel withdraws the request; cancellation is irreversible.
func (p *Publisher) Cancel(ctx context.Context, correlationID, userID, reason string) error {
	return p.publish(ctx, &message.Envelope{
		Kind:          message.KindCancel,
		CorrelationID: correlationID,
		Cancel:        &message.Cancel{UserID: userID, Reason: reason},
	})
}

func (p *Publisher) publish(ctx context.Context, env *message.Envelope) error {
	env.ID = uuid.New().String()
	env.CreatedAt = time.Now()
	if err := env.Validate(); err != nil {
		return err
	}
	return p.queue.Publish(ctx, env)
}
