package queue

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	appErrors "github.com/truesoulcoder/dealpig-sub000/internal/errors"
)

// Handler processes one message; a non-nil error asks for redelivery.
type Handler func(ctx context.Context, payload []byte) error

// Queue interface
type Queue interface {
	Publish(ctx context.Context, topic string, payload []byte) error
	Subscribe(ctx context.Context, topic string, handler Handler) error
	Close() error
}

// ErrNoSubscribers is returned by the in-memory queue when nothing listens on a topic.
var ErrNoSubscribers = appErrors.New("no subscribers for topic")

// InMemoryQueue delivers to in-process subscribers with retry
type InMemoryQueue struct {
	MaxRetries int
	Backoff    time.Duration
	Log        zerolog.Logger

	mu       sync.Mutex
	handlers map[string][]Handler
	wg       sync.WaitGroup
}

// NewInMemoryQueue creates a new queue
func NewInMemoryQueue(log zerolog.Logger) *InMemoryQueue {
	return &InMemoryQueue{
		MaxRetries: 3,
		Backoff:    500 * time.Millisecond,
		Log:        log,
		handlers:   make(map[string][]Handler),
	}
}

// Publish hands the payload to every subscriber of topic
func (q *InMemoryQueue) Publish(ctx context.Context, topic string, payload []byte) error {
	q.mu.Lock()
	handlers := append([]Handler(nil), q.handlers[topic]...)
	q.mu.Unlock()

	if len(handlers) == 0 {
		return appErrors.Wrapf(ErrNoSubscribers, "publish %s", topic)
	}

	for _, handler := range handlers {
		q.wg.Add(1)
		go q.processJob(context.WithoutCancel(ctx), topic, handler, payload)
	}
	return nil
}

// processJob handles retries and errors
func (q *InMemoryQueue) processJob(ctx context.Context, topic string, handler Handler, payload []byte) {
	defer q.wg.Done()
	for attempt := 0; attempt <= q.MaxRetries; attempt++ {
		err := handler(ctx, payload)
		if err == nil {
			return // ACK
		}
		q.Log.Warn().Err(err).Str("topic", topic).Int("attempt", attempt+1).Msg("job failed")

		if attempt == q.MaxRetries {
			q.Log.Error().Str("topic", topic).Int("attempts", attempt+1).Msg("job permanently failed")
			return
		}
		// linear backoff before retry
		time.Sleep(time.Duration(attempt+1) * q.Backoff)
	}
}

// Subscribe adds a handler for a topic
func (q *InMemoryQueue) Subscribe(_ context.Context, topic string, handler Handler) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	q.handlers[topic] = append(q.handlers[topic], handler)
	return nil
}

// Close waits for in-flight deliveries.
func (q *InMemoryQueue) Close() error {
	q.wg.Wait()
	return nil
}
