package jsonrpc

import (
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func (c *Client) deferredLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.deferred)
}

func (c *Client) pendingLen() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.pending)
}

// snapshot reads the retry state of cl under the client lock.
func (c *Client) snapshot(cl *call) (retries int, parked, armed bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return cl.retries, c.deferred[cl.id] == cl, cl.timer != nil
}

func TestPollIgnoresStaleTimer(t *testing.T) {
	t.Parallel()

	c := newTestClient(t, "ws://127.0.0.1:1/never-opened", func(cfg *Config) {
		cfg.PollInterval = time.Hour
	})

	cl := &call{id: 7, assigned: true, force: true, method: "status"}
	c.mu.Lock()
	c.deferLocked(cl)
	stale := cl.gen
	// A refused send defers the same call again while the first timer is due.
	delete(c.deferred, cl.id)
	c.deferLocked(cl)
	current := cl.gen
	c.mu.Unlock()
	require.NotEqual(t, stale, current)

	c.poll(cl, stale)
	retries, parked, armed := c.snapshot(cl)
	require.Equal(t, 0, retries, "a stale timer must not spend a retry")
	require.True(t, parked)
	require.True(t, armed)

	c.poll(cl, current)
	retries, parked, armed = c.snapshot(cl)
	require.Equal(t, 1, retries)
	require.True(t, parked, "still not ready, so deferred again")
	require.True(t, armed)
}
