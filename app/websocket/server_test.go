package websocket

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	gws "github.com/gorilla/websocket"
)

func dialTestClient(t *testing.T, s *Server) *gws.Conn {
	t.Helper()

	ts := httptest.NewServer(http.HandlerFunc(s.handleWebSocket))
	t.Cleanup(ts.Close)

	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := gws.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestPublishReachesClient(t *testing.T) {
	s := NewServer(":0")
	go s.run()

	conn := dialTestClient(t, s)

	// Wait for the register channel to be drained
	deadline := time.Now().Add(2 * time.Second)
	for s.ClientCount() == 0 {
		if time.Now().After(deadline) {
			t.Fatal("client never registered")
		}
		time.Sleep(10 * time.Millisecond)
	}

	s.Publish("stock_changed", map[string]int{"product_id": 7, "quantity": 3})

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, raw, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}

	var msg Message
	if err := json.Unmarshal(raw, &msg); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if msg.Type != "stock_changed" {
		t.Fatalf("type = %q, want stock_changed", msg.Type)
	}
	var payload map[string]int
	if err := json.Unmarshal(msg.Data, &payload); err != nil {
		t.Fatalf("decode payload: %v", err)
	}
	if payload["product_id"] != 7 || payload["quantity"] != 3 {
		t.Fatalf("payload = %v", payload)
	}
}

func TestHealthEndpoint(t *testing.T) {
	s := NewServer(":0")

	req := httptest.NewRequest("GET", "/health", nil)
	rec := httptest.NewRecorder()
	s.handleHealth(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d", rec.Code)
	}
	var body map[string]interface{}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "healthy" {
		t.Fatalf("body = %v", body)
	}
}

func TestPublishWithoutClientsDoesNotBlock(t *testing.T) {
	s := NewServer(":0")
	// No run loop; the buffered broadcast channel absorbs the events
	for i := 0; i < 10; i++ {
		s.Publish("stock_changed", map[string]int{"i": i})
	}
}
