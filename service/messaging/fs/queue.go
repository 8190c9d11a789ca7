package fs

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/viant/afs"
	"github.com/viant/afs/file"
	"github.com/viant/afs/option"
	"github.com/viant/afs/url"

	"github.com/acorlabs/approval/service/messaging"
)

// Queue is a durable filesystem-backed messaging.Queue. Messages are JSON
// documents moved between state folders (pending -> processing ->
// completed/failed), which survives process restarts and keeps an audit trail
// of everything consumed. It is intended for single-consumer-group setups;
// claim exclusivity across goroutines is guarded by a local mutex.
type Queue[T any] struct {
	fs       afs.Service
	config   Config
	mu       sync.Mutex
	pollDone chan struct{}
}

// Config for the filesystem queue vendor.
type Config struct {
	// BaseURL is the root folder of the queue state directories.
	BaseURL string

	// MaxRetries before a message lands in the failed folder.
	MaxRetries int

	// PollInterval between listings while waiting for messages.
	PollInterval time.Duration
}

// DefaultConfig returns a standard configuration for the fs queue.
func DefaultConfig(baseURL string) Config {
	return Config{
		BaseURL:      baseURL,
		MaxRetries:   3,
		PollInterval: 100 * time.Millisecond,
	}
}

type envelope[T any] struct {
	ID        string    `json:"id"`
	Data      T         `json:"data"`
	Retries   int       `json:"retries"`
	Error     string    `json:"error,omitempty"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// Message implements messaging.Message for the filesystem queue.
type Message[T any] struct {
	envelope  envelope[T]
	location  string
	queue     *Queue[T]
	mu        sync.Mutex
	processed bool
}

// T returns the message payload.
func (m *Message[T]) T() *T {
	return &m.envelope.Data
}

// Ack moves the message document to the completed folder.
func (m *Message[T]) Ack() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %v already settled", m.envelope.ID)
	}
	m.processed = true
	m.envelope.UpdatedAt = time.Now()
	return m.queue.move(context.Background(), m, "completed")
}

// Nack returns the message to the pending folder for redelivery, or parks it
// in the failed folder once the retry budget is exhausted.
func (m *Message[T]) Nack(err error) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.processed {
		return fmt.Errorf("message %v already settled", m.envelope.ID)
	}
	m.processed = true
	m.envelope.Retries++
	m.envelope.UpdatedAt = time.Now()
	if err != nil {
		m.envelope.Error = err.Error()
	}
	if m.envelope.Retries > m.queue.config.MaxRetries {
		return m.queue.move(context.Background(), m, "failed")
	}
	return m.queue.move(context.Background(), m, "pending")
}

// NewQueue creates a filesystem queue rooted at config.BaseURL.
func NewQueue[T any](fs afs.Service, config Config) (*Queue[T], error) {
	if config.BaseURL == "" {
		return nil, fmt.Errorf("fs queue requires a base URL")
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 100 * time.Millisecond
	}
	return &Queue[T]{fs: fs, config: config}, nil
}

// Publish stores the payload as a pending message document.
func (q *Queue[T]) Publish(ctx context.Context, t *T) error {
	now := time.Now()
	env := envelope[T]{
		ID:        fmt.Sprintf("%d-%v", now.UnixNano(), uuid.New().String()),
		Data:      *t,
		CreatedAt: now,
		UpdatedAt: now,
	}
	data, err := json.Marshal(env)
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}
	location := q.stateURL("pending", env.ID)
	if err = q.fs.Upload(ctx, location, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to publish message to %v: %w", location, err)
	}
	return nil
}

// Consume claims the oldest pending message, moving it to the processing
// folder, and blocks polling until one is available or ctx is done.
func (q *Queue[T]) Consume(ctx context.Context) (messaging.Message[T], error) {
	for {
		msg, err := q.claim(ctx)
		if err != nil {
			return nil, err
		}
		if msg != nil {
			return msg, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(q.config.PollInterval):
		}
	}
}

func (q *Queue[T]) claim(ctx context.Context) (*Message[T], error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	pendingURL := q.stateURL("pending", "")
	objects, err := q.fs.List(ctx, pendingURL, option.NewRecursive(false))
	if err != nil {
		// The pending folder may not exist until the first publish.
		return nil, nil
	}
	names := make([]string, 0, len(objects))
	for _, object := range objects {
		if object.IsDir() || !strings.HasSuffix(object.Name(), ".json") {
			continue
		}
		names = append(names, object.Name())
	}
	if len(names) == 0 {
		return nil, nil
	}
	// Message ids are prefixed with the publish timestamp, so lexical order is
	// arrival order.
	sort.Strings(names)

	name := names[0]
	source := url.Join(pendingURL, name)
	data, err := q.fs.DownloadWithURL(ctx, source)
	if err != nil {
		return nil, fmt.Errorf("failed to read message %v: %w", source, err)
	}
	msg := &Message[T]{queue: q}
	if err = json.Unmarshal(data, &msg.envelope); err != nil {
		return nil, fmt.Errorf("failed to unmarshal message %v: %w", source, err)
	}
	msg.location = q.stateURL("processing", msg.envelope.ID)
	if err = q.fs.Move(ctx, source, msg.location); err != nil {
		return nil, fmt.Errorf("failed to claim message %v: %w", source, err)
	}
	return msg, nil
}

func (q *Queue[T]) move(ctx context.Context, m *Message[T], state string) error {
	data, err := json.Marshal(m.envelope)
	if err != nil {
		return fmt.Errorf("failed to marshal message %v: %w", m.envelope.ID, err)
	}
	dest := q.stateURL(state, m.envelope.ID)
	if err = q.fs.Upload(ctx, dest, file.DefaultFileOsMode, bytes.NewReader(data)); err != nil {
		return fmt.Errorf("failed to move message %v to %v: %w", m.envelope.ID, state, err)
	}
	return q.fs.Delete(ctx, m.location)
}

func (q *Queue[T]) stateURL(state, id string) string {
	if id == "" {
		return url.Join(q.config.BaseURL, state)
	}
	return url.Join(q.config.BaseURL, state, id+".json")
}

var _ messaging.Queue[any] = (*Queue[any])(nil)
