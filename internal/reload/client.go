package reload

import (
	"context"
	"sync"
	"sync/atomic"
)

// nextClientID is shared by every registry in the process so client ids are
// unique and increasing even across servers.
var nextClientID atomic.Uint64

// Outcome is the result of waiting on a client's queue.
type Outcome int

const (
	// OutcomeMessage means a message was taken from the queue.
	OutcomeMessage Outcome = iota
	// OutcomeClosed means the wait ended without a message: the client was
	// closed or the context ended.
	OutcomeClosed
)

// String returns the string representation of the Outcome
func (o Outcome) String() string {
	switch o {
	case OutcomeMessage:
		return "message"
	case OutcomeClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Client is one registered control connection's inbox.
//
// The queue is unbounded: enqueue appends under a mutex and signals a
// one-slot channel, so a broadcaster never waits on a slow consumer.
type Client struct {
	id uint64

	mu     sync.Mutex
	queue  [][]byte
	closed bool

	notify    chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

func newClient() *Client {
	return &Client{
		id:     nextClientID.Add(1),
		notify: make(chan struct{}, 1),
		done:   make(chan struct{}),
	}
}

// ID returns the client's process-wide unique id.
func (c *Client) ID() uint64 {
	return c.id
}

// enqueue appends msg and wakes a waiting Next. It reports false when the
// client is already closed.
func (c *Client) enqueue(msg []byte) bool {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return false
	}
	c.queue = append(c.queue, msg)
	c.mu.Unlock()

	select {
	case c.notify <- struct{}{}:
	default:
		// A wakeup is already pending.
	}

	return true
}

// Next blocks until a message is queued, the client is closed, or ctx ends.
// Queued messages are returned before a close is reported.
func (c *Client) Next(ctx context.Context) ([]byte, Outcome) {
	for {
		c.mu.Lock()
		if len(c.queue) > 0 {
			msg := c.queue[0]
			c.queue[0] = nil
			c.queue = c.queue[1:]
			c.mu.Unlock()
			return msg, OutcomeMessage
		}
		closed := c.closed
		c.mu.Unlock()

		if closed {
			return nil, OutcomeClosed
		}

		select {
		case <-c.notify:
		case <-c.done:
		case <-ctx.Done():
			return nil, OutcomeClosed
		}
	}
}

// Done is closed when the client is closed.
func (c *Client) Done() <-chan struct{} {
	return c.done
}

func (c *Client) close() {
	c.closeOnce.Do(func() {
		c.mu.Lock()
		c.closed = true
		c.mu.Unlock()
		close(c.done)
	})
}
