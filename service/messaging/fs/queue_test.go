package fs

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/viant/afs"
	"github.com/viant/afs/option"
)

type payload struct {
	Value string
}

func newTestQueue(t *testing.T, maxRetries int) (*Queue[payload], afs.Service, string) {
	t.Helper()
	fsService := afs.New()
	baseURL := t.TempDir()
	config := DefaultConfig(baseURL)
	config.MaxRetries = maxRetries
	config.PollInterval = 5 * time.Millisecond
	queue, err := NewQueue[payload](fsService, config)
	require.NoError(t, err)
	return queue, fsService, baseURL
}

func listState(t *testing.T, fsService afs.Service, baseURL, state string) int {
	t.Helper()
	objects, err := fsService.List(context.Background(), baseURL+"/"+state, option.NewRecursive(false))
	if err != nil {
		return 0
	}
	count := 0
	for _, object := range objects {
		if !object.IsDir() {
			count++
		}
	}
	return count
}

func TestQueue_PublishConsumeAck(t *testing.T) {
	ctx := context.Background()
	queue, fsService, baseURL := newTestQueue(t, 3)

	require.NoError(t, queue.Publish(ctx, &payload{Value: "first"}))
	require.NoError(t, queue.Publish(ctx, &payload{Value: "second"}))
	assert.Equal(t, 2, listState(t, fsService, baseURL, "pending"))

	// Arrival order survives the round trip through the pending folder.
	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "first", msg.T().Value)
	assert.Equal(t, 1, listState(t, fsService, baseURL, "processing"))

	require.NoError(t, msg.Ack())
	assert.Equal(t, 1, listState(t, fsService, baseURL, "completed"))
	assert.Equal(t, 0, listState(t, fsService, baseURL, "processing"))
	assert.Error(t, msg.Ack(), "double settlement must fail")

	msg, err = queue.Consume(ctx)
	require.NoError(t, err)
	assert.Equal(t, "second", msg.T().Value)
	require.NoError(t, msg.Ack())
}

func TestQueue_NackRedelivery(t *testing.T) {
	ctx := context.Background()
	queue, fsService, baseURL := newTestQueue(t, 1)

	require.NoError(t, queue.Publish(ctx, &payload{Value: "poison"}))

	// First delivery plus one retry; the second Nack parks the document in
	// the failed folder.
	msg, err := queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, msg.Nack(errors.New("handler failed")))
	assert.Equal(t, 1, listState(t, fsService, baseURL, "pending"))

	msg, err = queue.Consume(ctx)
	require.NoError(t, err)
	require.NoError(t, msg.Nack(errors.New("handler failed again")))
	assert.Equal(t, 0, listState(t, fsService, baseURL, "pending"))
	assert.Equal(t, 1, listState(t, fsService, baseURL, "failed"))
}

func TestQueue_ConsumeCancelled(t *testing.T) {
	queue, _, _ := newTestQueue(t, 3)
	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	_, err := queue.Consume(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
}

func TestNewQueue_Validation(t *testing.T) {
	_, err := NewQueue[payload](afs.New(), Config{})
	assert.Error(t, err)
}
