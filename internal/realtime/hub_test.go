package realtime

import (
	"net/http"
	"net/http/httptest"
	"sort"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func startHubServer(t *testing.T) (*Hub, *Registry, *httptest.Server) {
	t.Helper()
	registry := NewRegistry()
	hub := NewHub(registry, nil)

	upgrader := websocket.Upgrader{
		CheckOrigin: func(*http.Request) bool { return true },
	}
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		hub.Connect(r.URL.Query().Get("userId"), conn)
	}))
	t.Cleanup(server.Close)
	return hub, registry, server
}

func dialHub(t *testing.T, server *httptest.Server, userID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/?userId=" + userID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("failed to dial hub as %s: %v", userID, err)
	}
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readEnvelope(t *testing.T, conn *websocket.Conn) Envelope {
	t.Helper()
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var envelope Envelope
	if err := conn.ReadJSON(&envelope); err != nil {
		t.Fatalf("failed to read envelope: %v", err)
	}
	return envelope
}

func presenceSet(t *testing.T, envelope Envelope) []string {
	t.Helper()
	if envelope.Channel != ChannelPresence {
		t.Fatalf("expected presence envelope, got channel %q", envelope.Channel)
	}
	raw, ok := envelope.Payload.([]interface{})
	if !ok {
		t.Fatalf("unexpected presence payload: %#v", envelope.Payload)
	}
	online := make([]string, 0, len(raw))
	for _, entry := range raw {
		value, ok := entry.(string)
		if !ok {
			t.Fatalf("unexpected presence entry: %#v", entry)
		}
		online = append(online, value)
	}
	sort.Strings(online)
	return online
}

func waitForSnapshotSize(t *testing.T, registry *Registry, size int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if len(registry.Snapshot()) == size {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("registry never reached %d entries: %v", size, registry.Snapshot())
}

func TestPresenceBroadcastOnConnect(t *testing.T) {
	_, registry, server := startHubServer(t)

	connA := dialHub(t, server, "u1")
	if got := presenceSet(t, readEnvelope(t, connA)); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected presence {u1}, got %v", got)
	}
	if got := registry.Snapshot(); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected registry {u1}, got %v", got)
	}

	connB := dialHub(t, server, "u2")
	if got := presenceSet(t, readEnvelope(t, connB)); len(got) != 2 {
		t.Fatalf("expected presence {u1,u2}, got %v", got)
	}
	if got := presenceSet(t, readEnvelope(t, connA)); len(got) != 2 || got[0] != "u1" || got[1] != "u2" {
		t.Fatalf("expected updated presence {u1,u2} on first connection, got %v", got)
	}
}

func TestPresenceBroadcastOnDisconnect(t *testing.T) {
	_, registry, server := startHubServer(t)

	connA := dialHub(t, server, "u1")
	presenceSet(t, readEnvelope(t, connA))

	connB := dialHub(t, server, "u2")
	presenceSet(t, readEnvelope(t, connA))

	_ = connB.Close()
	waitForSnapshotSize(t, registry, 1)

	if got := presenceSet(t, readEnvelope(t, connA)); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected presence back to {u1}, got %v", got)
	}
}

func TestReconnectDisplacesPriorConnection(t *testing.T) {
	_, registry, server := startHubServer(t)
	dispatcher := NewDispatcher(registry, nil)

	connA := dialHub(t, server, "u1")
	presenceSet(t, readEnvelope(t, connA))

	connB := dialHub(t, server, "u1")
	presenceSet(t, readEnvelope(t, connB))

	// The displaced connection is force-closed by the hub.
	_ = connA.SetReadDeadline(time.Now().Add(2 * time.Second))
	for {
		if _, _, err := connA.ReadMessage(); err != nil {
			break
		}
	}

	// Membership never dropped below one entry for u1.
	if got := registry.Snapshot(); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected registry {u1}, got %v", got)
	}

	if outcome := dispatcher.Dispatch("u1", Event{Type: EventNewMessage, ActorID: "u2", Payload: "hello"}); outcome != OutcomeDelivered {
		t.Fatalf("expected delivery to the replacing connection, got %s", outcome)
	}
	envelope := readEnvelope(t, connB)
	if envelope.Channel != ChannelNewMessage {
		t.Fatalf("expected newMessage envelope, got %q", envelope.Channel)
	}
}

func TestAnonymousConnectionSeesPresenceButIsNotMember(t *testing.T) {
	_, registry, server := startHubServer(t)

	spectator := dialHub(t, server, "")
	if got := presenceSet(t, readEnvelope(t, spectator)); len(got) != 0 {
		t.Fatalf("expected empty presence, got %v", got)
	}
	if got := registry.Snapshot(); len(got) != 0 {
		t.Fatalf("expected empty registry, got %v", got)
	}

	dialHub(t, server, "u1")
	if got := presenceSet(t, readEnvelope(t, spectator)); len(got) != 1 || got[0] != "u1" {
		t.Fatalf("expected presence {u1} relayed to spectator, got %v", got)
	}
}
