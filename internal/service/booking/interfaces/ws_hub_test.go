package interfaces

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"staybook/internal/service/booking/domain"
)

func waitForClients(t *testing.T, hub *Hub, want int) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for hub.ClientCount() != want {
		if time.Now().After(deadline) {
			t.Fatalf("hub has %d clients, want %d", hub.ClientCount(), want)
		}
		time.Sleep(10 * time.Millisecond)
	}
}

func TestHub_BroadcastsCatalogEvents(t *testing.T) {
	env := newTestEnv(t, nil)
	cookie := env.login(t, "watcher")
	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	header := http.Header{"Cookie": {cookie.String()}}
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL, header)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("handshake status %d", resp.StatusCode)
	}
	waitForClients(t, env.hub, 1)

	body := `{"title":"Loft","description":"d","imageUrl":"/l.png","price":120,"tags":["city"]}`
	req, _ := http.NewRequest(http.MethodPost, srv.URL+"/api/posts", bytes.NewReader([]byte(body)))
	req.Header.Set("Content-Type", "application/json")
	req.AddCookie(cookie)
	created, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("POST /api/posts: %v", err)
	}
	created.Body.Close()
	if created.StatusCode != http.StatusCreated {
		t.Fatalf("POST /api/posts: %d", created.StatusCode)
	}

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, msg, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read event: %v", err)
	}
	var event domain.CatalogEvent
	if err := json.Unmarshal(msg, &event); err != nil {
		t.Fatalf("decode event %s: %v", msg, err)
	}
	if event.Type != domain.EventPostCreated || event.EntityID == "" {
		t.Errorf("unexpected event %+v", event)
	}

	conn.Close()
	waitForClients(t, env.hub, 0)
}

func TestHub_RejectsAnonymousConnections(t *testing.T) {
	env := newTestEnv(t, nil)
	srv := httptest.NewServer(env.mux)
	defer srv.Close()

	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/api/events"
	_, resp, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err == nil {
		t.Fatal("anonymous dial should fail")
	}
	if resp == nil || resp.StatusCode != http.StatusUnauthorized {
		t.Fatalf("expected 401 handshake response, got %+v", resp)
	}
	if env.hub.ClientCount() != 0 {
		t.Error("anonymous client was registered")
	}
}

func TestHub_PublishAfterShutdown(t *testing.T) {
	hub := NewHub()
	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = hub.Run(ctx)
		close(stopped)
	}()
	cancel()
	<-stopped

	// 队列未满时仍然接受，满了之后返回错误而不是阻塞
	var lastErr error
	for i := 0; i < 300 && lastErr == nil; i++ {
		lastErr = hub.Publish(context.Background(), &domain.CatalogEvent{EventID: "e"})
	}
	if lastErr != errBroadcastFull {
		t.Fatalf("got %v, want errBroadcastFull", lastErr)
	}
}
