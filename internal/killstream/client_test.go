package killstream

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var upgrader = websocket.Upgrader{
	CheckOrigin: func(r *http.Request) bool { return true },
}

func wsURL(server *httptest.Server) string {
	return "ws" + strings.TrimPrefix(server.URL, "http")
}

func testConfig() *Config {
	cfg := DefaultConfig()
	cfg.ReconnectDelay = 10 * time.Millisecond
	cfg.MaxReconnectDelay = 50 * time.Millisecond
	cfg.ReadTimeout = 5 * time.Second
	return &cfg
}

func receive(t *testing.T, c *Client) []byte {
	t.Helper()
	select {
	case msg := <-c.Messages():
		return msg
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for message")
		return nil
	}
}

func TestClient_SubscribeAndReceive(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()

		_, msg, err := conn.ReadMessage()
		if err != nil {
			return
		}
		var req subscribeRequest
		if err := json.Unmarshal(msg, &req); err != nil || req.Action != "sub" || req.Channel != "killstream" {
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte(`{"action":"sub","channel":"killstream"}`))
		conn.WriteMessage(websocket.TextMessage, []byte(sampleKillmail))

		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), testConfig(), nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Subscribe("killstream"))

	msg := receive(t, client)
	km, _, err := Decode(msg)
	require.NoError(t, err)
	assert.Equal(t, int64(118000001), km.KillmailID)
}

func TestClient_ReconnectResubscribes(t *testing.T) {
	var connections atomic.Int32

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		n := connections.Add(1)

		if _, _, err := conn.ReadMessage(); err != nil {
			return
		}
		if n == 1 {
			// Drop the first connection right after the subscription.
			return
		}

		conn.WriteMessage(websocket.TextMessage, []byte(sampleKillmail))
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), testConfig(), nil)
	require.NoError(t, err)
	defer client.Close()

	require.NoError(t, client.Subscribe("killstream"))

	msg := receive(t, client)
	assert.Contains(t, string(msg), "118000001")
	assert.GreaterOrEqual(t, connections.Load(), int32(2))
}

func TestClient_Close(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		defer conn.Close()
		for {
			if _, _, err := conn.ReadMessage(); err != nil {
				return
			}
		}
	}))
	defer server.Close()

	client, err := NewClient(context.Background(), wsURL(server), testConfig(), nil)
	require.NoError(t, err)

	require.NoError(t, client.Close())
	require.NoError(t, client.Close())

	_, open := <-client.Messages()
	assert.False(t, open)
	assert.ErrorIs(t, client.Subscribe("killstream"), ErrClosed)
}

func TestClient_DialError(t *testing.T) {
	_, err := NewClient(context.Background(), "ws://127.0.0.1:1/none", testConfig(), nil)
	assert.Error(t, err)
}
