package services

import (
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

func TestWebSocketHub_DeliversSubscribedTopics(t *testing.T) {
	hub := NewWebSocketHub()
	go hub.Run()
	defer hub.Stop()

	upgrader := websocket.Upgrader{}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		client := NewClient(hub, conn, r.URL.Query().Get("topic"))
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer server.Close()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?topic=" + SelectionTopic("run-1")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.ClientCount() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, hub.BroadcastToTopic(SelectionTopic("other"), MessageImprovement, map[string]int{"n": 0}))
	require.NoError(t, hub.BroadcastToTopic(SelectionTopic("run-1"), MessageImprovement, map[string]int{"n": 1}))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg WebSocketMessage
	require.NoError(t, json.Unmarshal(raw, &msg))
	assert.Equal(t, MessageImprovement, msg.Type)
	assert.Equal(t, SelectionTopic("run-1"), msg.Topic)
	assert.JSONEq(t, `{"n":1}`, string(msg.Data))
}

func TestClient_Subscriptions(t *testing.T) {
	c := NewClient(NewWebSocketHub(), nil, "a")
	assert.True(t, c.IsSubscribedTo("a"))
	assert.False(t, c.IsSubscribedTo("b"))

	c.Subscribe("*")
	assert.True(t, c.IsSubscribedTo("b"))

	c.Unsubscribe("*", "a")
	assert.False(t, c.IsSubscribedTo("a"))
}
