package queue

import (
	"context"
	"errors"
	"sync"

	"github.com/simaogato/settlement-engine/internal/domain"
	"github.com/simaogato/settlement-engine/internal/telemetry"
)

// ErrQueueClosed is returned by Enqueue after Close
var ErrQueueClosed = errors.New("request queue is closed")

// Channel is an unbounded in-process FIFO of request envelopes.
// Producers never block; a single consumer drains it with Dequeue.
type Channel struct {
	mu     sync.Mutex
	items  []domain.Envelope
	closed bool

	// ready holds at most one wake-up token for the consumer
	ready chan struct{}
}

// NewChannel creates an empty queue
func NewChannel() *Channel {
	return &Channel{
		ready: make(chan struct{}, 1),
	}
}

// Enqueue appends env without blocking
func (c *Channel) Enqueue(env domain.Envelope) error {
	if env.Request == nil {
		return domain.ErrNilRequest
	}

	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return ErrQueueClosed
	}
	c.items = append(c.items, env)
	telemetry.QueueDepth.Set(float64(len(c.items)))
	c.mu.Unlock()

	c.signal()
	return nil
}

// Dequeue removes the oldest envelope, blocking until one is available.
// It returns ctx.Err() if ctx is done first, and ErrQueueClosed once the
// queue is closed and drained.
func (c *Channel) Dequeue(ctx context.Context) (domain.Envelope, error) {
	for {
		if err := ctx.Err(); err != nil {
			return domain.Envelope{}, err
		}

		c.mu.Lock()
		if len(c.items) > 0 {
			env := c.items[0]
			c.items[0] = domain.Envelope{}
			c.items = c.items[1:]
			remaining := len(c.items)
			telemetry.QueueDepth.Set(float64(remaining))
			c.mu.Unlock()

			// Pass the wake-up on if more items are waiting
			if remaining > 0 {
				c.signal()
			}
			return env, nil
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return domain.Envelope{}, ErrQueueClosed
		}

		select {
		case <-ctx.Done():
			return domain.Envelope{}, ctx.Err()
		case <-c.ready:
		}
	}
}

// Len returns the number of queued envelopes
func (c *Channel) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Close stops accepting new envelopes. Queued envelopes can still be dequeued.
func (c *Channel) Close() {
	c.mu.Lock()
	c.closed = true
	c.mu.Unlock()
	c.signal()
}

func (c *Channel) signal() {
	select {
	case c.ready <- struct{}{}:
	default:
	}
}
