package realtime

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialHub(t *testing.T, hub *Hub) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(hub)
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) map[string]interface{} {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var msg map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &msg))
	return msg
}

func writeMessage(t *testing.T, conn *websocket.Conn, msg clientMessage) {
	t.Helper()
	require.NoError(t, conn.WriteJSON(msg))
}

func TestHub_SubscribeAndReceive(t *testing.T) {
	bus := NewBus()
	hub := NewHub(bus, nil)
	conn := dialHub(t, hub)

	welcome := readMessage(t, conn)
	assert.Equal(t, "welcome", welcome["type"])

	writeMessage(t, conn, clientMessage{Type: "subscribe", MetricTypes: []string{MetricRoutingDecision}})
	subscribed := readMessage(t, conn)
	assert.Equal(t, "subscribed", subscribed["type"])

	// The subscribed ack is sent after registration, so the broadcast
	// cannot race the subscription.
	bus.Broadcast(MetricRoutingDecision, map[string]string{"project": "weather"})

	update := readMessage(t, conn)
	assert.Equal(t, MetricRoutingDecision, update["type"])
	assert.NotNil(t, update["data"])
	assert.NotEmpty(t, update["timestamp"])
}

func TestHub_UnsubscribedTypesNotDelivered(t *testing.T) {
	bus := NewBus()
	hub := NewHub(bus, nil)
	conn := dialHub(t, hub)

	readMessage(t, conn) // welcome

	writeMessage(t, conn, clientMessage{Type: "subscribe", MetricTypes: []string{MetricRoutingFailure}})
	readMessage(t, conn) // subscribed

	bus.Broadcast(MetricRoutingDecision, map[string]string{"project": "weather"})
	bus.Broadcast(MetricRoutingFailure, map[string]string{"error": "boom"})

	update := readMessage(t, conn)
	assert.Equal(t, MetricRoutingFailure, update["type"], "only the subscribed type arrives")
}

func TestHub_Unsubscribe(t *testing.T) {
	bus := NewBus()
	hub := NewHub(bus, nil)
	conn := dialHub(t, hub)

	readMessage(t, conn) // welcome

	writeMessage(t, conn, clientMessage{Type: "subscribe", MetricTypes: []string{MetricRoutingDecision}})
	readMessage(t, conn) // subscribed

	writeMessage(t, conn, clientMessage{Type: "unsubscribe", MetricTypes: []string{MetricRoutingDecision}})
	unsubscribed := readMessage(t, conn)
	assert.Equal(t, "unsubscribed", unsubscribed["type"])

	bus.Broadcast(MetricRoutingDecision, nil)

	conn.SetReadDeadline(time.Now().Add(200 * time.Millisecond))
	_, _, err := conn.ReadMessage()
	assert.Error(t, err, "no update should arrive after unsubscribe")
}

func TestHub_PingPong(t *testing.T) {
	hub := NewHub(NewBus(), nil)
	conn := dialHub(t, hub)

	readMessage(t, conn) // welcome

	writeMessage(t, conn, clientMessage{Type: "ping"})
	pong := readMessage(t, conn)
	assert.Equal(t, "pong", pong["type"])
}

func TestHub_InvalidMessage(t *testing.T) {
	hub := NewHub(NewBus(), nil)
	conn := dialHub(t, hub)

	readMessage(t, conn) // welcome

	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	errMsg := readMessage(t, conn)
	assert.Equal(t, "error", errMsg["type"])

	writeMessage(t, conn, clientMessage{Type: "bogus"})
	errMsg = readMessage(t, conn)
	assert.Equal(t, "error", errMsg["type"])
}

func TestHub_SlowClientDroppedWithoutBlockingBroadcast(t *testing.T) {
	bus := NewBus()
	hub := NewHub(bus, nil)

	// Unbuffered send channel with no reader: every frame is refused,
	// which is how a stalled connection looks to Deliver.
	client := &wsClient{
		hub:           hub,
		send:          make(chan []byte),
		subscriptions: map[string]bool{MetricRoutingDecision: true},
	}
	hub.mu.Lock()
	hub.clients[client] = struct{}{}
	hub.mu.Unlock()
	bus.Attach(client)

	done := make(chan struct{})
	go func() {
		bus.Broadcast(MetricRoutingDecision, map[string]string{"project": "weather"})
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Broadcast blocked while dropping a slow client")
	}
	assert.Equal(t, 0, bus.SubscriberCount())
	assert.Equal(t, 0, hub.Stats().ConnectedClients)
}

func TestHub_Stats(t *testing.T) {
	bus := NewBus()
	hub := NewHub(bus, nil)
	conn := dialHub(t, hub)

	readMessage(t, conn) // welcome

	require.Eventually(t, func() bool {
		return hub.Stats().ConnectedClients == 1
	}, time.Second, 10*time.Millisecond)
	assert.GreaterOrEqual(t, hub.Stats().MessagesSent, int64(1))

	conn.Close()
	require.Eventually(t, func() bool {
		return hub.Stats().ConnectedClients == 0
	}, time.Second, 10*time.Millisecond)
}
