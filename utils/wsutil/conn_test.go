package wsutil

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

// Close must flush the events channel so a read loop blocked on delivering a
// frame to an abandoned reader can exit, instead of leaking.
func TestCloseUnblocksReadLoop(t *testing.T) {
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			c, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				t.Error("failed to upgrade:", err)
				return
			}
			// Stack up more frames than the events buffer holds.
			for i := 0; i < 8; i++ {
				if err := c.WriteMessage(websocket.TextMessage, []byte(`{}`)); err != nil {
					return
				}
			}
		},
	))
	t.Cleanup(srv.Close)

	c := NewConn()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := c.Dial(ctx, "ws"+strings.TrimPrefix(srv.URL, "http")); err != nil {
		t.Fatal("failed to dial:", err)
	}

	ev := c.Listen()

	// Let the read loop fill its buffer and block on the next delivery.
	time.Sleep(100 * time.Millisecond)

	done := make(chan error, 1)
	go func() { done <- c.Close() }()

	select {
	case err := <-done:
		if err != nil {
			t.Error("close failed:", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("Close blocked behind an abandoned read loop")
	}

	// By the time Close returns, the channel is drained and closed.
	select {
	case _, ok := <-ev:
		if ok {
			t.Error("frame left undrained after close")
		}
	default:
		t.Error("events channel still open after close")
	}
}
