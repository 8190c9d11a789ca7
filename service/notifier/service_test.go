package notifier

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/service/messaging"
	"github.com/acorlabs/approval/service/messaging/memory"
)

// failingQueue rejects every publication.
type failingQueue struct{}

func (q *failingQueue) Publish(context.Context, *message.StatusUpdated) error {
	return errors.New("broker unavailable")
}

func (q *failingQueue) Consume(context.Context) (messaging.Message[message.StatusUpdated], error) {
	return nil, errors.New("not implemented")
}

func TestService_StatusUpdated(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue[message.StatusUpdated](memory.DefaultConfig())
	service := New(queue)

	service.StatusUpdated(ctx, &message.StatusUpdated{
		CorrelationID: "c-1",
		Status:        "approved",
		UpdatedAt:     time.Now(),
	})

	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "c-1", msg.T().CorrelationID)
	assert.Equal(t, "approved", msg.T().Status)
	require.NoError(t, msg.Ack())
}

func TestService_StatusUpdated_Failure(t *testing.T) {
	// Delivery is fire-and-forget: a broken queue must not panic or surface
	// an error to the saga.
	service := New(&failingQueue{}, WithTimeout(50*time.Millisecond))
	service.StatusUpdated(context.Background(), &message.StatusUpdated{CorrelationID: "c-1"})
	service.StatusUpdated(context.Background(), nil)
}
