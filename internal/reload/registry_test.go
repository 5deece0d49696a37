package reload

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pending returns the number of messages queued for c.
func (c *Client) pending() int {
	c.mu.Lock()
	defer c.mu.Unlock()

	return len(c.queue)
}

func TestRegistryRegisterAssignsIncreasingIDs(t *testing.T) {
	r := NewRegistry()
	other := NewRegistry()

	a := r.Register()
	b := other.Register()
	c := r.Register()

	assert.Less(t, a.ID(), b.ID())
	assert.Less(t, b.ID(), c.ID())
	assert.Equal(t, 2, r.Len())
	assert.Equal(t, 1, other.Len())
}

func TestRegistryUnregisterIsIdempotent(t *testing.T) {
	r := NewRegistry()
	c := r.Register()

	r.Unregister(c.ID())
	r.Unregister(c.ID())
	r.Unregister(987654321)

	assert.Equal(t, 0, r.Len())
	select {
	case <-c.Done():
	default:
		t.Fatal("unregistered client was not closed")
	}
}

func TestRegistryBroadcastSnapshot(t *testing.T) {
	r := NewRegistry()
	clients := []*Client{r.Register(), r.Register(), r.Register()}

	delivered := r.Broadcast([]byte("refresh"))
	assert.Equal(t, 3, delivered)

	late := r.Register()

	for _, c := range clients {
		msg, outcome := c.Next(context.Background())
		assert.Equal(t, OutcomeMessage, outcome)
		assert.Equal(t, []byte("refresh"), msg)
		assert.Equal(t, 0, c.pending())
	}

	assert.Equal(t, 0, late.pending(), "late client must not receive an earlier broadcast")
}

func TestRegistryBroadcastSkipsUnregistered(t *testing.T) {
	r := NewRegistry()
	gone := r.Register()
	kept := r.Register()
	r.Unregister(gone.ID())

	assert.Equal(t, 1, r.Broadcast([]byte("x")))
	assert.Equal(t, 0, gone.pending())
	assert.Equal(t, 1, kept.pending())
}

func TestRegistryBroadcastNeverBlocks(t *testing.T) {
	r := NewRegistry()
	c := r.Register()

	done := make(chan struct{})
	go func() {
		for i := 0; i < 10000; i++ {
			r.Broadcast([]byte("x"))
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("broadcast blocked on a client that never reads")
	}
	assert.Equal(t, 10000, c.pending())
}

func TestRegistryCloseEndsClients(t *testing.T) {
	r := NewRegistry()
	c := r.Register()

	result := make(chan Outcome, 1)
	go func() {
		_, outcome := c.Next(context.Background())
		result <- outcome
	}()

	r.Close()

	select {
	case outcome := <-result:
		assert.Equal(t, OutcomeClosed, outcome)
	case <-time.After(2 * time.Second):
		t.Fatal("Next did not return after Close")
	}

	assert.Equal(t, 0, r.Len())

	after := r.Register()
	_, outcome := after.Next(context.Background())
	assert.Equal(t, OutcomeClosed, outcome)
	assert.Equal(t, 0, r.Len())
}

func TestClientNextPrefersQueuedMessageOverClose(t *testing.T) {
	r := NewRegistry()
	c := r.Register()

	r.Broadcast([]byte("last"))
	r.Unregister(c.ID())

	msg, outcome := c.Next(context.Background())
	assert.Equal(t, OutcomeMessage, outcome)
	assert.Equal(t, []byte("last"), msg)

	_, outcome = c.Next(context.Background())
	assert.Equal(t, OutcomeClosed, outcome)
}

func TestClientNextHonoursContext(t *testing.T) {
	c := NewRegistry().Register()

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	_, outcome := c.Next(ctx)
	assert.Equal(t, OutcomeClosed, outcome)
}

func TestRegistryConcurrentAccess(t *testing.T) {
	r := NewRegistry()

	var wg sync.WaitGroup
	for i := 0; i < 50; i++ {
		wg.Add(2)
		go func() {
			defer wg.Done()
			c := r.Register()
			r.Broadcast([]byte("x"))
			r.Unregister(c.ID())
		}()
		go func() {
			defer wg.Done()
			r.Broadcast([]byte("y"))
		}()
	}
	wg.Wait()

	require.Equal(t, 0, r.Len())
}

func TestOutcomeAndStateStrings(t *testing.T) {
	assert.Equal(t, "message", OutcomeMessage.String())
	assert.Equal(t, "closed", OutcomeClosed.String())
	assert.Equal(t, "awaiting_signal", StateAwaitingSignal.String())
	assert.Equal(t, "unknown", State(42).String())
}
