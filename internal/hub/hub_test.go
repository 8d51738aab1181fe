package hub

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/arcadeops/ledarcade/internal/game"
	"github.com/coder/websocket"
)

func TestNotifyNeverBlocks(t *testing.T) {
	h := NewHub(context.Background(), nil)
	defer h.Close()

	// No observers and far more notifications than the queue holds.
	done := make(chan struct{})
	go func() {
		for i := 0; i < queueSize*4; i++ {
			h.Notify(game.Notification{Type: game.NotifStatus, Text: "tick"})
		}
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Notify blocked with no observers")
	}
}

func TestBroadcastReachesObserver(t *testing.T) {
	h := NewHub(context.Background(), nil)
	defer h.Close()

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "test done")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.ObserverCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if h.ObserverCount() != 1 {
		t.Fatal("observer never registered")
	}

	h.Notify(game.Notification{Type: game.NotifLEDOn, LED: 7})

	_, payload, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}

	var got game.Notification
	if err := json.Unmarshal(payload, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Type != game.NotifLEDOn || got.LED != 7 {
		t.Errorf("notification = %+v, want led_on for index 7", got)
	}
}

func TestCloseDisconnectsObservers(t *testing.T) {
	h := NewHub(context.Background(), nil)

	srv := httptest.NewServer(h)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	url := "ws" + strings.TrimPrefix(srv.URL, "http")
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		t.Fatalf("Dial: %v", err)
	}
	defer func() {
		_ = conn.Close(websocket.StatusNormalClosure, "test done")
	}()

	deadline := time.Now().Add(2 * time.Second)
	for h.ObserverCount() == 0 && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}

	h.Close()

	if got := h.ObserverCount(); got != 0 {
		t.Errorf("observers = %d after Close, want 0", got)
	}
	if _, _, err := conn.Read(ctx); err == nil {
		t.Error("observer read succeeded after Close, want connection closed")
	}
}
