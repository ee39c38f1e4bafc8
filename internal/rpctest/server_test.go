package rpctest

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/require"

	"github.com/luciancaetano/kephasrpc"
)

func dial(t *testing.T, s *Server) *websocket.Conn {
	t.Helper()
	conn, _, err := websocket.DefaultDialer.Dial(s.URL(), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn) map[string]json.RawMessage {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg map[string]json.RawMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestServerEcho(t *testing.T) {
	t.Parallel()

	s := NewServer()
	defer s.Close()
	s.Echo("echo")

	conn := dial(t, s)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":5,"method":"echo","params":[1,2]}`)))

	msg := readJSON(t, conn)
	require.JSONEq(t, `5`, string(msg["id"]))
	require.JSONEq(t, `[1,2]`, string(msg["result"]))

	reqs := s.RequestsFor("echo")
	require.Len(t, reqs, 1)
	require.Equal(t, "5", string(DecodeID(reqs[0])))
}

func TestServerMethodNotFound(t *testing.T) {
	t.Parallel()

	s := NewServer()
	defer s.Close()

	conn := dial(t, s)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte(`{"jsonrpc":"2.0","id":"a","method":"missing"}`)))

	msg := readJSON(t, conn)
	var rpcErr kephasrpc.Error
	require.NoError(t, json.Unmarshal(msg["error"], &rpcErr))
	require.Equal(t, kephasrpc.JSONRPCMethodNotFound, rpcErr.Code)
}

func TestServerNotifyAndHold(t *testing.T) {
	t.Parallel()

	s := NewServer()
	defer s.Close()
	s.Hold()

	dialed := make(chan *websocket.Conn, 1)
	go func() {
		conn, _, err := websocket.DefaultDialer.Dial(s.URL(), nil)
		if err != nil {
			close(dialed)
			return
		}
		dialed <- conn
	}()

	select {
	case <-dialed:
		t.Fatal("upgrade should be held")
	case <-time.After(50 * time.Millisecond):
	}
	require.Equal(t, 0, s.Accepted())

	s.Release()
	conn := <-dialed
	require.NotNil(t, conn)
	defer conn.Close()

	require.True(t, s.WaitFor(time.Second, func(s *Server) bool { return len(s.Conns()) == 1 }))
	s.Notify("tick", []int{1})

	msg := readJSON(t, conn)
	require.JSONEq(t, `"tick"`, string(msg["method"]))
	require.JSONEq(t, `[1]`, string(msg["params"]))
	_, hasID := msg["id"]
	require.False(t, hasID)
}
