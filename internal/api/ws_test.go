package api

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/roadagent/internal/sim"
)

func TestServeFramesStreamsTicks(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	srv := httptest.NewServer(LoggingMiddleware(f.handler))
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return f.server.Hub().Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)
	f.step(t, 2)

	for want := uint64(1); want <= 2; want++ {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var frame sim.Frame
		require.NoError(t, json.Unmarshal(msg, &frame))
		assert.Equal(t, want, frame.Tick)
		assert.Len(t, frame.Agents, 2)
	}

	f.server.Hub().Close()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway), "got %v", err)
}

func TestServeFramesClientLeaves(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	srv := httptest.NewServer(f.handler)
	defer srv.Close()

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	require.Eventually(t, func() bool { return f.server.Hub().Subscribers() == 1 }, 2*time.Second, 5*time.Millisecond)

	conn.Close()
	assert.Eventually(t, func() bool { return f.server.Hub().Subscribers() == 0 }, 2*time.Second, 5*time.Millisecond)
}

func TestServeFramesRejectsPlainHTTP(t *testing.T) {
	t.Parallel()
	f := newFixture(t, false)
	w := f.do(t, "GET", "/ws", "")
	assert.Equal(t, 400, w.Code)
}
