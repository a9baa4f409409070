package feed

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestPublishToNilHub(t *testing.T) {
	var hub *Hub
	// Must be a safe no-op so callers never need to branch.
	hub.Publish(NewEvent(EventReplySent, 1, "ok"))
}

func TestHubBroadcast(t *testing.T) {
	hub := NewHub()
	go hub.Run()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			t.Errorf("upgrade: %v", err)
			return
		}
		client := NewClient(hub, conn)
		hub.Register(client)
		go client.WritePump()
		go client.ReadPump()
	}))
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	// Let the register round-trip finish before publishing.
	deadline := time.Now().Add(2 * time.Second)
	for hub.observerCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("observer never registered")
		}
		time.Sleep(5 * time.Millisecond)
	}

	hub.Publish(NewEvent(EventMessageReceived, 42, "привет"))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var event Event
	if err := json.Unmarshal(data, &event); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if event.Type != EventMessageReceived || event.ChatID != 42 || event.Detail != "привет" {
		t.Fatalf("event = %+v, want message.received for chat 42", event)
	}
	if event.At.IsZero() {
		t.Fatal("event timestamp not set")
	}
}
