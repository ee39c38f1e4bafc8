package websocket

import (
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/kephasrpc"
)

func TestRegistryReplaysInOrder(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	var fired []string
	tagged := func(tag string) kephasrpc.Listener {
		return func(kephasrpc.Event) { fired = append(fired, tag) }
	}

	reg.Add(kephasrpc.EventOpen, tagged("open-1"))
	reg.Add(kephasrpc.EventClose, tagged("close-1"))
	reg.Add(kephasrpc.EventOpen, tagged("open-2"))
	reg.Add(kephasrpc.EventMessage, tagged("message-1"))
	reg.Add(kephasrpc.EventError, tagged("error-1"))
	reg.Add(kephasrpc.EventOpen, tagged("open-3"))
	reg.Add(kephasrpc.EventOpen, nil)
	reg.Add(kephasrpc.EventKind(9), tagged("bogus"))

	require.Equal(t, 3, reg.Len(kephasrpc.EventOpen))
	require.Equal(t, 1, reg.Len(kephasrpc.EventError))
	require.Equal(t, 0, reg.Len(kephasrpc.EventKind(9)))

	tr := NewTransport("ws://unused", nil)
	reg.AttachTo(tr)

	tr.emit(kephasrpc.Event{Kind: kephasrpc.EventOpen})
	require.Equal(t, []string{"open-1", "open-2", "open-3"}, fired)

	fired = nil
	tr.emit(kephasrpc.Event{Kind: kephasrpc.EventClose})
	tr.emit(kephasrpc.Event{Kind: kephasrpc.EventError})
	tr.emit(kephasrpc.Event{Kind: kephasrpc.EventMessage})
	require.Equal(t, []string{"close-1", "error-1", "message-1"}, fired)
}

func TestRegistryAttachToSeveralTransports(t *testing.T) {
	t.Parallel()

	reg := NewRegistry()
	count := 0
	reg.Add(kephasrpc.EventOpen, func(kephasrpc.Event) { count++ })

	first := NewTransport("ws://unused", nil)
	second := NewTransport("ws://unused", nil)
	reg.AttachTo(first)
	reg.AttachTo(second)

	first.emit(kephasrpc.Event{Kind: kephasrpc.EventOpen})
	second.emit(kephasrpc.Event{Kind: kephasrpc.EventOpen})
	require.Equal(t, 2, count)

	require.Equal(t, 1, reg.Len(kephasrpc.EventOpen), "attaching must not grow the registry")
}
