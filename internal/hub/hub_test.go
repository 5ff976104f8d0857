package hub

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

func startHub(t *testing.T, sync SyncFunc, queueDepth int) (*Hub, *httptest.Server) {
	t.Helper()
	h := New(sync, queueDepth)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()
	t.Cleanup(func() {
		cancel()
		<-done
	})

	srv := httptest.NewServer(http.HandlerFunc(h.ServeWS))
	t.Cleanup(srv.Close)
	return h, srv
}

func dial(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	var ev Event
	require.NoError(t, json.Unmarshal(data, &ev))
	return ev
}

func TestClientReceivesInitialSync(t *testing.T) {
	_, srv := startHub(t, func() interface{} {
		return map[string]interface{}{"alerts": []string{}, "tenants": 2.0}
	}, 8)

	conn := dial(t, srv)

	ev := readEvent(t, conn)
	assert.Equal(t, TypeFullSync, ev.Type)
	payload, ok := ev.Payload.(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, 2.0, payload["tenants"])
}

// dialSynced connects and reads the initial full sync. The hub sends it only
// after the client is in its map, so once it arrives the client is registered
// and later broadcasts will reach it.
func dialSynced(t *testing.T, srv *httptest.Server) *websocket.Conn {
	t.Helper()
	conn := dial(t, srv)
	ev := readEvent(t, conn)
	require.Equal(t, TypeFullSync, ev.Type)
	return conn
}

func TestBroadcastReachesAllClients(t *testing.T) {
	h, srv := startHub(t, func() interface{} { return "state" }, 8)

	first := dialSynced(t, srv)
	second := dialSynced(t, srv)

	h.Publish(Event{Type: TypeAlertNew, Payload: map[string]interface{}{"rule_id": "occupancy-high"}})

	for _, conn := range []*websocket.Conn{first, second} {
		ev := readEvent(t, conn)
		assert.Equal(t, TypeAlertNew, ev.Type)
	}
}

// A client that stops draining its queue is disconnected; the remaining
// clients keep receiving.
func TestSlowClientIsDisconnected(t *testing.T) {
	h, srv := startHub(t, func() interface{} { return "state" }, 8)

	healthy := dialSynced(t, srv)

	// Register a client with no reader behind it and a one-slot queue: the
	// initial sync fills the slot, so the next broadcast it cannot take
	// disconnects it. The register send returns only once the hub goroutine
	// has taken it, so the broadcast below is processed after registration.
	stuck := &Client{ID: "stuck", hub: h, send: make(chan []byte, 1)}
	h.register <- stuck
	h.Publish(Event{Type: TypeMetricsUpdate, Payload: "x"})

	// Drain the buffered sync message before observing the close.
	select {
	case <-stuck.send:
	case <-time.After(2 * time.Second):
		t.Fatal("stuck client never received its initial sync")
	}

	select {
	case _, open := <-stuck.send:
		assert.False(t, open, "expected the stuck client's queue to be closed")
	case <-time.After(2 * time.Second):
		t.Fatal("stuck client was not disconnected")
	}

	ev := readEvent(t, healthy)
	assert.Equal(t, TypeMetricsUpdate, ev.Type)
}

func TestRunClosesClientsOnShutdown(t *testing.T) {
	h := New(nil, 8)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		h.Run(ctx)
	}()

	client := &Client{ID: "c", hub: h, send: make(chan []byte, 1)}
	h.register <- client

	cancel()
	<-done

	_, open := <-client.send
	assert.False(t, open)
}
