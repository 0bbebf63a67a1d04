package main

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
	"go.uber.org/goleak"
)

func TestStreamURL(t *testing.T) {
	tests := []struct {
		address, participant, want string
	}{
		{"localhost:10007", "", "ws://localhost:10007/ws/yos"},
		{"http://node-a:8080", "NodeB", "ws://node-a:8080/ws/yos?participant=NodeB"},
		{"https://node-a", "", "wss://node-a/ws/yos"},
	}
	for _, tt := range tests {
		got, err := streamURL(tt.address, tt.participant)
		if err != nil {
			t.Fatalf("streamURL(%q): %v", tt.address, err)
		}
		if got != tt.want {
			t.Errorf("streamURL(%q, %q) = %q, want %q", tt.address, tt.participant, got, tt.want)
		}
	}
}

func TestWatchReleasesConnectionOnDrop(t *testing.T) {
	ignore := goleak.IgnoreCurrent()

	upgrader := websocket.Upgrader{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		conn, err := upgrader.Upgrade(w, r, nil)
		if err != nil {
			return
		}
		conn.WriteMessage(websocket.TextMessage, []byte(`{}`))
		conn.Close()
	}))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	wsURL := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/yos"
	for i := 0; i < 3; i++ {
		if err := watch(ctx, wsURL); err == nil {
			t.Fatal("expected watch to end with the dropped connection")
		}
	}
	srv.Close()

	// ctx is still live: nothing may be left waiting on it.
	goleak.VerifyNone(t, ignore)
}
