package api

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/tieline-bridge/internal/codec"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/config"
	"github.com/nerrad567/tieline-bridge/internal/infrastructure/logging"
)

const testChannel = "codec.state"

func testHub(t *testing.T) *Hub {
	t.Helper()
	log := logging.New(config.LoggingConfig{Level: "error", Format: "text", Output: "stdout"}, "test")
	hub := NewHub(config.WebSocketConfig{MaxMessageSize: 8192, PingInterval: 30, PongTimeout: 10}, log)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func newMockClient(hub *Hub, channels ...string) *WSClient {
	subs := make(map[string]struct{}, len(channels))
	for _, ch := range channels {
		subs[ch] = struct{}{}
	}
	return &WSClient{
		hub:           hub,
		send:          make(chan []byte, wsSendBufferSize),
		subscriptions: subs,
	}
}

func TestHub_BroadcastToSubscribed(t *testing.T) {
	hub := testHub(t)
	client := newMockClient(hub, testChannel)
	hub.Register(client)

	hub.Broadcast(testChannel, map[string]any{"isConnected": true})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent {
			t.Errorf("type = %q, want %q", wsMsg.Type, WSTypeEvent)
		}
		if wsMsg.EventType != testChannel {
			t.Errorf("event_type = %q, want %q", wsMsg.EventType, testChannel)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)
	client := newMockClient(hub, "bridge.health")
	hub.Register(client)

	hub.Broadcast(testChannel, map[string]any{"isConnected": true})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_ClientCount(t *testing.T) {
	hub := testHub(t)

	if hub.ClientCount() != 0 {
		t.Errorf("initial client count = %d, want 0", hub.ClientCount())
	}

	client := newMockClient(hub)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Errorf("after register count = %d, want 1", hub.ClientCount())
	}

	hub.Unregister(client)
	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}

	// Second unregister must not double-close the send channel
	hub.Unregister(client)
}

func TestHub_RetainsLastEvent(t *testing.T) {
	hub := testHub(t)

	if hub.lastEvent(testChannel) != nil {
		t.Fatal("lastEvent() before any broadcast should be nil")
	}

	hub.Broadcast(testChannel, map[string]any{"activeProfile": "Voice"})
	hub.Broadcast(testChannel, map[string]any{"activeProfile": "Music HQ"})

	var msg WSMessage
	if err := json.Unmarshal(hub.lastEvent(testChannel), &msg); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	payload, ok := msg.Payload.(map[string]any)
	if !ok || payload["activeProfile"] != "Music HQ" {
		t.Errorf("retained payload = %v, want the latest broadcast", msg.Payload)
	}
}

func TestWSClient_HandleMessage(t *testing.T) {
	hub := testHub(t)
	hub.Broadcast(testChannel, map[string]any{"isConnected": false})

	client := newMockClient(hub)
	hub.Register(client)

	read := func() WSMessage {
		t.Helper()
		select {
		case data := <-client.send:
			var msg WSMessage
			if err := json.Unmarshal(data, &msg); err != nil {
				t.Fatalf("unmarshal: %v", err)
			}
			return msg
		case <-time.After(time.Second):
			t.Fatal("timed out waiting for client message")
			return WSMessage{}
		}
	}

	client.handleMessage([]byte(`{"type":"subscribe","id":"sub-1","payload":{"channels":["codec.state"]}}`))
	if msg := read(); msg.Type != WSTypeResponse || msg.ID != "sub-1" {
		t.Errorf("subscribe response = %+v", msg)
	}
	// Retained state follows the subscribe response
	if msg := read(); msg.Type != WSTypeEvent || msg.EventType != testChannel {
		t.Errorf("replayed event = %+v", msg)
	}
	if !client.isSubscribed(testChannel) {
		t.Error("client not subscribed after subscribe message")
	}

	client.handleMessage([]byte(`{"type":"ping","id":"p-1"}`))
	if msg := read(); msg.Type != WSTypePong || msg.ID != "p-1" {
		t.Errorf("ping response = %+v", msg)
	}

	client.handleMessage([]byte(`{"type":"unsubscribe","id":"u-1","payload":{"channels":["codec.state"]}}`))
	if msg := read(); msg.Type != WSTypeResponse {
		t.Errorf("unsubscribe response = %+v", msg)
	}
	if client.isSubscribed(testChannel) {
		t.Error("client still subscribed after unsubscribe")
	}

	client.handleMessage([]byte(`{"type":"command"}`))
	if msg := read(); msg.Type != WSTypeError {
		t.Errorf("unknown type response = %+v", msg)
	}

	client.handleMessage([]byte(`not json`))
	if msg := read(); msg.Type != WSTypeError {
		t.Errorf("invalid JSON response = %+v", msg)
	}
}

func TestWebSocket_FullConnection(t *testing.T) {
	srv, _, _ := testServer(t)
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	defer ws.Close()

	if err := ws.WriteJSON(WSMessage{
		Type:    WSTypeSubscribe,
		ID:      "sub-1",
		Payload: WSSubscribePayload{Channels: []string{testChannel}},
	}); err != nil {
		t.Fatalf("write subscribe message: %v", err)
	}

	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))
	var response WSMessage
	if err := ws.ReadJSON(&response); err != nil {
		t.Fatalf("read response: %v", err)
	}
	if response.Type != WSTypeResponse || response.ID != "sub-1" {
		t.Errorf("response = %+v", response)
	}

	if srv.hub.ClientCount() != 1 {
		t.Errorf("hub client count = %d, want 1", srv.hub.ClientCount())
	}

	srv.hub.Broadcast(testChannel, codec.Export(connectedState(), time.Now()))

	var event struct {
		Type      string              `json:"type"`
		EventType string              `json:"event_type"`
		Payload   codec.OverlayExport `json:"payload"`
	}
	if err := ws.ReadJSON(&event); err != nil {
		t.Fatalf("read event: %v", err)
	}
	if event.Type != WSTypeEvent || event.EventType != testChannel {
		t.Errorf("event = %+v", event)
	}
	if !event.Payload.IsConnected || event.Payload.CodecType != "Merlin PLUS" {
		t.Errorf("payload = %+v", event.Payload)
	}
}

func TestWebSocket_CustomPath(t *testing.T) {
	srv, _, _ := testServer(t)
	srv.wsCfg.Path = "/stream"
	ts := httptest.NewServer(srv.buildRouter())
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/stream"
	ws, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial on custom path failed: %v", err)
	}
	ws.Close()
}
