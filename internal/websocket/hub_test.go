package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func startHub(t *testing.T) (*Hub, *httptest.Server) {
	t.Helper()
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	go hub.Run(ctx)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := hub.Serve(w, r, r.URL.Query().Get("session")); err != nil {
			t.Logf("serve: %v", err)
		}
	}))
	t.Cleanup(func() {
		cancel()
		srv.Close()
	})
	return hub, srv
}

func dial(t *testing.T, hub *Hub, srv *httptest.Server, session string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/?session=" + session
	before := hub.Count(session)
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	require.Eventually(t, func() bool { return hub.Count(session) == before+1 }, 2*time.Second, 10*time.Millisecond)
	return conn
}

func TestPublishReachesSessionClients(t *testing.T) {
	hub, srv := startHub(t)
	a := dial(t, hub, srv, "alpha")
	b := dial(t, hub, srv, "beta")

	require.True(t, hub.Publish(&Message{Type: MsgStateChange, SessionID: "alpha", State: "in_flight", Generation: 3}))

	require.NoError(t, a.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := a.ReadMessage()
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, MsgStateChange, got["type"])
	assert.Equal(t, "in_flight", got["state"])
	assert.EqualValues(t, 3, got["generation"])
	assert.NotContains(t, got, "SessionID")

	require.NoError(t, b.SetReadDeadline(time.Now().Add(150*time.Millisecond)))
	_, _, err = b.ReadMessage()
	require.Error(t, err)
	var netErr interface{ Timeout() bool }
	require.ErrorAs(t, err, &netErr)
	assert.True(t, netErr.Timeout())
}

func TestDisconnectSessionClosesConnections(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv, "alpha")

	hub.DisconnectSession("alpha")

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Eventually(t, func() bool { return hub.Count("alpha") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestClientCloseUnregisters(t *testing.T) {
	hub, srv := startHub(t)
	conn := dial(t, hub, srv, "alpha")

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.Count("alpha") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestPublishAfterStop(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	hub := NewHub()
	stopped := make(chan struct{})
	go func() {
		hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	assert.False(t, hub.Publish(&Message{Type: MsgStateChange, SessionID: "alpha"}))
	hub.DisconnectSession("alpha")
}
