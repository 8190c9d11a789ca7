package router

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/acorlabs/approval/model/message"
	"github.com/acorlabs/approval/service/messaging/memory"
	"github.com/acorlabs/approval/service/saga"
)

// recordingHandler captures handled envelopes and answers with a scripted
// error per correlation id.
type recordingHandler struct {
	mux      sync.Mutex
	handled  []*message.Envelope
	inflight map[string]int
	overlap  bool
	errs     map[string]error
	delay    time.Duration
}

func newRecordingHandler() *recordingHandler {
	return &recordingHandler{inflight: map[string]int{}, errs: map[string]error{}}
}

func (h *recordingHandler) Handle(_ context.Context, env *message.Envelope) error {
	h.mux.Lock()
	h.inflight[env.CorrelationID]++
	if h.inflight[env.CorrelationID] > 1 {
		h.overlap = true
	}
	h.mux.Unlock()

	if h.delay > 0 {
		time.Sleep(h.delay)
	}

	h.mux.Lock()
	h.inflight[env.CorrelationID]--
	h.handled = append(h.handled, env)
	err := h.errs[env.CorrelationID]
	h.mux.Unlock()
	return err
}

func (h *recordingHandler) count() int {
	h.mux.Lock()
	defer h.mux.Unlock()
	return len(h.handled)
}

func cancelEnvelope(id, correlationID string) *message.Envelope {
	return &message.Envelope{
		ID:            id,
		Kind:          message.KindCancel,
		CorrelationID: correlationID,
		Cancel:        &message.Cancel{UserID: "owner"},
	}
}

func waitFor(t *testing.T, condition func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if condition() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatal("condition not met in time")
}

func TestService_Dispatch(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue[message.Envelope](memory.DefaultConfig())
	handler := newRecordingHandler()

	service, err := New(queue, handler, WithConfig(Config{WorkerCount: 3}))
	require.NoError(t, err)
	require.NoError(t, service.Start(ctx))
	defer service.Shutdown()

	for i := 0; i < 5; i++ {
		env := cancelEnvelope("e-"+string(rune('a'+i)), "c-1")
		require.NoError(t, queue.Publish(ctx, env))
	}
	waitFor(t, func() bool { return handler.count() == 5 })
	assert.Zero(t, queue.Size())
}

func TestService_PerKeyExclusivity(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue[message.Envelope](memory.DefaultConfig())
	handler := newRecordingHandler()
	handler.delay = 20 * time.Millisecond

	service, err := New(queue, handler, WithConfig(Config{WorkerCount: 4}))
	require.NoError(t, err)
	require.NoError(t, service.Start(ctx))
	defer service.Shutdown()

	// All events target the same instance; with 4 workers the keyed lock is
	// the only thing preventing overlapping handling.
	for i := 0; i < 8; i++ {
		require.NoError(t, queue.Publish(ctx, cancelEnvelope("e-"+string(rune('a'+i)), "c-1")))
	}
	waitFor(t, func() bool { return handler.count() == 8 })
	assert.False(t, handler.overlap, "events of one correlation id must not be handled concurrently")
}

func TestService_ErrorSettlement(t *testing.T) {
	ctx := context.Background()

	testCases := []struct {
		name      string
		err       error
		redeliver bool
	}{
		{name: "unknown instance is dropped", err: saga.ErrUnknownInstance},
		{name: "unknown process is dropped", err: saga.ErrUnknownProcess},
		{name: "invalid transition is dropped", err: saga.ErrInvalidTransition},
		{name: "invalid message is dropped", err: saga.ErrInvalidMessage},
		{name: "transient failure is redelivered", err: errors.New("store down"), redeliver: true},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			config := memory.DefaultConfig()
			config.RetryDelay = time.Millisecond
			queue := memory.NewQueue[message.Envelope](config)
			handler := newRecordingHandler()
			handler.errs["c-1"] = tc.err

			service, err := New(queue, handler, WithConfig(Config{WorkerCount: 1}))
			require.NoError(t, err)
			require.NoError(t, service.Start(ctx))
			defer service.Shutdown()

			require.NoError(t, queue.Publish(ctx, cancelEnvelope("e-1", "c-1")))

			if tc.redeliver {
				// Retry budget plus the original delivery.
				waitFor(t, func() bool { return handler.count() == config.MaxRetries+1 })
				waitFor(t, func() bool { return queue.DLQSize() == 1 })
			} else {
				waitFor(t, func() bool { return handler.count() == 1 })
				time.Sleep(20 * time.Millisecond)
				assert.Equal(t, 1, handler.count())
				assert.Zero(t, queue.DLQSize())
			}
		})
	}
}

func TestService_Shutdown(t *testing.T) {
	ctx := context.Background()
	queue := memory.NewQueue[message.Envelope](memory.DefaultConfig())
	handler := newRecordingHandler()

	service, err := New(queue, handler)
	require.NoError(t, err)
	require.NoError(t, service.Start(ctx))

	require.NoError(t, queue.Publish(ctx, cancelEnvelope("e-1", "c-1")))
	waitFor(t, func() bool { return handler.count() == 1 })

	service.Shutdown()
	// Idempotent.
	service.Shutdown()
}

func TestNew_Validation(t *testing.T) {
	queue := memory.NewQueue[message.Envelope](memory.DefaultConfig())

	_, err := New(nil, newRecordingHandler())
	assert.Error(t, err)
	_, err = New(queue, nil)
	assert.Error(t, err)

	// A non-positive worker count falls back to the default.
	service, err := New(queue, newRecordingHandler(), WithConfig(Config{WorkerCount: 0}))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig().WorkerCount, service.config.WorkerCount)
}
