package api

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/nerrad567/findmy-core/internal/fleet"
)

// ─── WebSocket Hub Tests ───────────────────────────────────────────

func testHub(t *testing.T) *Hub {
	t.Helper()
	hub := NewHub(testWSConfig(), testLogger(), testBroker(t))
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)
	return hub
}

func testClient(hub *Hub, channels ...string) *WSClient {
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
	client := testClient(hub, ChannelNotifications)
	hub.Register(client)

	hub.Broadcast(ChannelNotifications, EventNotification, Notification{ID: "n-1", Message: "hi"})

	select {
	case msg := <-client.send:
		var wsMsg WSMessage
		if err := json.Unmarshal(msg, &wsMsg); err != nil {
			t.Fatalf("unmarshal: %v", err)
		}
		if wsMsg.Type != WSTypeEvent || wsMsg.EventType != EventNotification {
			t.Errorf("message = %s/%s, want event/%s", wsMsg.Type, wsMsg.EventType, EventNotification)
		}
	case <-time.After(time.Second):
		t.Error("timed out waiting for broadcast message")
	}
}

func TestHub_NoMessageForUnsubscribed(t *testing.T) {
	hub := testHub(t)
	client := testClient(hub, ChannelDevices)
	hub.Register(client)

	hub.Broadcast(ChannelNotifications, EventNotification, Notification{ID: "n-1"})

	select {
	case <-client.send:
		t.Error("unsubscribed client should not receive message")
	case <-time.After(100 * time.Millisecond):
	}
}

func TestHub_UnregisterReleasesFleet(t *testing.T) {
	broker := testBroker(t)
	hub := NewHub(testWSConfig(), testLogger(), broker)

	client := testClient(hub, ChannelDevices)
	hub.Register(client)
	if hub.ClientCount() != 1 {
		t.Fatalf("after register count = %d, want 1", hub.ClientCount())
	}

	if err := client.watchFleet(); err != nil {
		t.Fatalf("watchFleet() error = %v", err)
	}
	if err := client.watchFleet(); err != nil {
		t.Fatalf("second watchFleet() error = %v", err)
	}
	if broker.SubscriberCount() != 1 {
		t.Fatalf("SubscriberCount() = %d, want 1", broker.SubscriberCount())
	}

	hub.Unregister(client)
	hub.Unregister(client)

	if hub.ClientCount() != 0 {
		t.Errorf("after unregister count = %d, want 0", hub.ClientCount())
	}
	if broker.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after unregister = %d, want 0", broker.SubscriberCount())
	}
	if broker.Running() {
		t.Error("simulation loop still running with no clients")
	}

	// A released client never resubscribes.
	if err := client.watchFleet(); err != nil {
		t.Fatalf("watchFleet() after release error = %v", err)
	}
	if broker.SubscriberCount() != 0 {
		t.Errorf("released client resubscribed")
	}
}

func TestHub_WatchFleetClosedBroker(t *testing.T) {
	broker := testBroker(t)
	broker.Close()
	hub := NewHub(testWSConfig(), testLogger(), broker)

	if err := testClient(hub).watchFleet(); !errors.Is(err, fleet.ErrBrokerClosed) {
		t.Errorf("watchFleet() error = %v, want ErrBrokerClosed", err)
	}
}

// ─── WebSocket Connection Tests ────────────────────────────────────

// dialWS starts an HTTP test server for srv and connects a WebSocket client.
func dialWS(t *testing.T, srv *Server) *websocket.Conn {
	t.Helper()
	ts := httptest.NewServer(srv.buildRouter())
	t.Cleanup(ts.Close)

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/api/v1/ws"
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("websocket dial failed: %v (resp: %v)", err, resp)
	}
	t.Cleanup(func() { ws.Close() })
	return ws
}

// readMessage reads the next message, decoding the payload into payload
// when non-nil.
func readMessage(t *testing.T, ws *websocket.Conn, payload any) WSMessage {
	t.Helper()
	//nolint:errcheck // test deadline
	ws.SetReadDeadline(time.Now().Add(2 * time.Second))

	var raw struct {
		WSMessage
		Payload json.RawMessage `json:"payload"`
	}
	if err := ws.ReadJSON(&raw); err != nil {
		t.Fatalf("read message: %v", err)
	}
	if payload != nil && len(raw.Payload) > 0 {
		if err := json.Unmarshal(raw.Payload, payload); err != nil {
			t.Fatalf("decode payload: %v", err)
		}
	}
	return raw.WSMessage
}

func send(t *testing.T, ws *websocket.Conn, msg WSMessage) {
	t.Helper()
	if err := ws.WriteJSON(msg); err != nil {
		t.Fatalf("write message: %v", err)
	}
}

func subscribe(channels ...string) WSMessage {
	return WSMessage{Type: WSTypeSubscribe, ID: "sub-1", Payload: WSSubscribePayload{Channels: channels}}
}

func TestWebSocket_DevicesChannel(t *testing.T) {
	srv, broker := testServer(t)
	ws := dialWS(t, srv)

	send(t, ws, subscribe(ChannelDevices))

	resp := readMessage(t, ws, nil)
	if resp.Type != WSTypeResponse || resp.ID != "sub-1" {
		t.Fatalf("first message = %+v, want response to sub-1", resp)
	}

	var snapshot DevicesUpdatedPayload
	event := readMessage(t, ws, &snapshot)
	if event.EventType != EventDevicesUpdated {
		t.Fatalf("event_type = %q, want %q", event.EventType, EventDevicesUpdated)
	}
	if len(snapshot.Devices) != 7 || snapshot.Stats.Total != 7 {
		t.Errorf("snapshot = %d devices, stats %+v", len(snapshot.Devices), snapshot.Stats)
	}
	if !broker.Running() {
		t.Error("simulation loop not running while a client watches")
	}

	// An action reaches the watcher as a fresh snapshot.
	if w := do(t, srv.buildRouter(), http.MethodPut, "/api/v1/devices/3/lost-mode", `{"enabled":true}`); w.Code != http.StatusOK {
		t.Fatalf("lost-mode status = %d", w.Code)
	}
	readMessage(t, ws, &snapshot)
	if !snapshot.Devices[2].LostMode {
		t.Error("snapshot after lost-mode does not show device 3 lost")
	}

	send(t, ws, WSMessage{Type: WSTypeUnsubscribe, ID: "unsub-1", Payload: WSSubscribePayload{Channels: []string{ChannelDevices}}})
	if resp := readMessage(t, ws, nil); resp.ID != "unsub-1" {
		t.Fatalf("unsubscribe response = %+v", resp)
	}
	if broker.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after unsubscribe = %d, want 0", broker.SubscriberCount())
	}
}

func TestWebSocket_DisconnectReleasesFleet(t *testing.T) {
	srv, broker := testServer(t)
	ws := dialWS(t, srv)

	send(t, ws, subscribe(ChannelDevices))
	readMessage(t, ws, nil)
	readMessage(t, ws, nil)

	ws.Close()

	deadline := time.Now().Add(2 * time.Second)
	for broker.SubscriberCount() != 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if broker.SubscriberCount() != 0 {
		t.Errorf("SubscriberCount() after disconnect = %d, want 0", broker.SubscriberCount())
	}
}

func TestWebSocket_NotificationsChannel(t *testing.T) {
	srv, _ := testServer(t)
	ws := dialWS(t, srv)

	send(t, ws, subscribe(ChannelNotifications))
	readMessage(t, ws, nil)

	if w := do(t, srv.buildRouter(), http.MethodPost, "/api/v1/devices/2/sound", ""); w.Code != http.StatusOK {
		t.Fatalf("sound status = %d", w.Code)
	}

	var n Notification
	event := readMessage(t, ws, &n)
	if event.EventType != EventNotification {
		t.Fatalf("event_type = %q, want %q", event.EventType, EventNotification)
	}
	if n.Level != LevelSuccess || !strings.Contains(n.Message, "Ario X2 - Narges") {
		t.Errorf("notification = %+v", n)
	}
}

func TestWebSocket_PingAndErrors(t *testing.T) {
	srv, _ := testServer(t)
	ws := dialWS(t, srv)

	send(t, ws, WSMessage{Type: WSTypePing, ID: "p-1"})
	if msg := readMessage(t, ws, nil); msg.Type != WSTypePong || msg.ID != "p-1" {
		t.Errorf("ping reply = %+v, want pong p-1", msg)
	}

	send(t, ws, subscribe("device.state_changed"))
	if msg := readMessage(t, ws, nil); msg.Type != WSTypeError {
		t.Errorf("unknown channel reply type = %q, want error", msg.Type)
	}

	send(t, ws, WSMessage{Type: "shout", ID: "x-1"})
	if msg := readMessage(t, ws, nil); msg.Type != WSTypeError || msg.ID != "x-1" {
		t.Errorf("unknown type reply = %+v, want error x-1", msg)
	}

	if err := ws.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatalf("write: %v", err)
	}
	if msg := readMessage(t, ws, nil); msg.Type != WSTypeError {
		t.Errorf("invalid JSON reply type = %q, want error", msg.Type)
	}
}
