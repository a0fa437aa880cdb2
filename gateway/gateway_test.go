package gateway

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/aojiaoxiaolinlin/bot-go/api"
	"github.com/aojiaoxiaolinlin/bot-go/internal/backoff"
)

// wsServer is a scripted gateway peer. Each accepted connection is delivered
// on Conns; the test body drives the conversation.
type wsServer struct {
	*httptest.Server
	Conns chan *websocket.Conn
}

func newWSServer(t *testing.T) *wsServer {
	t.Helper()

	conns := make(chan *websocket.Conn, 4)
	upgrader := websocket.Upgrader{}

	srv := httptest.NewServer(http.HandlerFunc(
		func(w http.ResponseWriter, r *http.Request) {
			c, err := upgrader.Upgrade(w, r, nil)
			if err != nil {
				t.Error("failed to upgrade:", err)
				return
			}
			conns <- c
		},
	))
	t.Cleanup(srv.Close)

	return &wsServer{Server: srv, Conns: conns}
}

func (s *wsServer) URL() string {
	return "ws" + strings.TrimPrefix(s.Server.URL, "http")
}

// accept waits for the next client connection.
func (s *wsServer) accept(t *testing.T) *websocket.Conn {
	t.Helper()

	select {
	case c := <-s.Conns:
		return c
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for a connection")
		return nil
	}
}

func writeJSON(t *testing.T, c *websocket.Conn, v interface{}) {
	t.Helper()

	if err := c.WriteJSON(v); err != nil {
		t.Fatal("failed to write frame:", err)
	}
}

func readOp(t *testing.T, c *websocket.Conn) *Op {
	t.Helper()

	c.SetReadDeadline(time.Now().Add(5 * time.Second))

	_, b, err := c.ReadMessage()
	if err != nil {
		t.Fatal("failed to read frame:", err)
	}

	op, err := DecodeOp(b)
	if err != nil {
		t.Fatal("failed to decode frame:", err)
	}

	return op
}

func sendHello(t *testing.T, c *websocket.Conn, interval uint64) {
	t.Helper()

	writeJSON(t, c, map[string]interface{}{
		"op": HelloOP,
		"d":  map[string]uint64{"heartbeat_interval": interval},
	})
}

func sendReady(t *testing.T, c *websocket.Conn, sessionID string, seq uint64) {
	t.Helper()

	writeJSON(t, c, map[string]interface{}{
		"op": DispatchOP,
		"s":  seq,
		"t":  EventReady,
		"d": map[string]interface{}{
			"session_id": sessionID,
			"user":       map[string]string{"id": "42", "username": "testbot"},
		},
	})
}

// fastBackoff keeps reconnect tests quick.
func fastBackoff() *backoff.Backoff {
	return &backoff.Backoff{
		Base:       10 * time.Millisecond,
		Max:        20 * time.Millisecond,
		Jitter:     0.1,
		MaxRetries: 25,
		LongPause:  50 * time.Millisecond,
	}
}

func newTestGateway(srv *wsServer) *Gateway {
	g := NewGateway(srv.URL(), StaticToken("test_token"))
	g.Backoff = fastBackoff()
	g.Log = zerolog.Nop()
	return g
}

// startGateway runs Start on its own goroutine and returns its error channel.
func startGateway(ctx context.Context, g *Gateway) <-chan error {
	errCh := make(chan error, 1)
	go func() { errCh <- g.Start(ctx) }()
	return errCh
}

func waitStopped(t *testing.T, errCh <-chan error) {
	t.Helper()

	select {
	case err := <-errCh:
		if err != nil && err != context.Canceled {
			t.Fatal("gateway stopped with unexpected error:", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for gateway to stop")
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()

	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}

	t.Fatal("timed out waiting for " + what)
}

func TestIdentify(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)

	op := readOp(t, c)
	if op.Code != IdentifyOP {
		t.Fatalf("expected identify, got op %d", op.Code)
	}

	var id IdentifyData
	if err := op.UnmarshalData(&id); err != nil {
		t.Fatal("failed to decode identify:", err)
	}

	if id.Token != "QQBot test_token" {
		t.Errorf("wrong identify token: %q", id.Token)
	}
	if id.Intents != DefaultIntents {
		t.Errorf("wrong intents: %d", id.Intents)
	}
	if id.Shard != DefaultShard() {
		t.Errorf("wrong shard: %v", id.Shard)
	}

	sendReady(t, c, "session_1", 1)

	waitFor(t, "ready state", func() bool {
		seq, ok := g.State.Seq()
		return g.State.SessionID() == "session_1" && ok && seq == 1
	})

	cancel()
	waitStopped(t, errCh)
}

func TestHeartbeat(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 100)

	op := readOp(t, c)
	if op.Code != IdentifyOP {
		t.Fatalf("expected identify, got op %d", op.Code)
	}
	sendReady(t, c, "session_1", 1)

	// Each heartbeat must carry the last seq and must be ACKed to keep the
	// connection alive.
	for i := 0; i < 3; i++ {
		hb := readOp(t, c)
		if hb.Code != HeartbeatOP {
			t.Fatalf("expected heartbeat, got op %d", hb.Code)
		}

		var seq uint64
		if err := hb.UnmarshalData(&seq); err != nil {
			t.Fatal("heartbeat has no seq:", err)
		}
		if seq != 1 {
			t.Errorf("heartbeat carried seq %d, expected 1", seq)
		}

		writeJSON(t, c, map[string]interface{}{"op": HeartbeatAckOP})
	}

	// ACKed heartbeats must not trigger a reconnect.
	select {
	case <-srv.Conns:
		t.Fatal("gateway reconnected despite healthy heartbeats")
	case <-time.After(150 * time.Millisecond):
	}

	cancel()
	waitStopped(t, errCh)
}

func TestHeartbeatTimeout(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)
	g.AckTimeout = 150 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 100)
	readOp(t, c) // identify

	// Swallow heartbeats without ever ACKing; the watchdog must give up and
	// redial.
	go func() {
		for {
			if _, _, err := c.ReadMessage(); err != nil {
				return
			}
		}
	}()

	c2 := srv.accept(t)
	sendHello(t, c2, 60_000)

	// No READY was delivered, so the fresh connection identifies again.
	op := readOp(t, c2)
	if op.Code != IdentifyOP {
		t.Fatalf("expected identify on reconnect, got op %d", op.Code)
	}

	cancel()
	waitStopped(t, errCh)
}

func TestResume(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify
	sendReady(t, c, "session_1", 1)

	waitFor(t, "ready state", func() bool {
		return g.State.SessionID() == "session_1"
	})

	// Kill the connection without a close frame.
	c.Close()

	c2 := srv.accept(t)
	sendHello(t, c2, 60_000)

	op := readOp(t, c2)
	if op.Code != ResumeOP {
		t.Fatalf("expected resume, got op %d", op.Code)
	}

	var resume ResumeData
	if err := op.UnmarshalData(&resume); err != nil {
		t.Fatal("failed to decode resume:", err)
	}

	expect := ResumeData{
		Token:     "QQBot test_token",
		SessionID: "session_1",
		Seq:       1,
	}
	if resume != expect {
		t.Errorf("wrong resume data: got %+v, expected %+v", resume, expect)
	}

	writeJSON(t, c2, map[string]interface{}{
		"op": DispatchOP,
		"t":  EventResumed,
	})

	cancel()
	waitStopped(t, errCh)
}

func TestReconnectRequest(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify
	sendReady(t, c, "session_1", 3)

	waitFor(t, "ready state", func() bool {
		return g.State.SessionID() == "session_1"
	})

	writeJSON(t, c, map[string]interface{}{"op": ReconnectOP})

	// A server-requested reconnect keeps the session; the next connection
	// resumes.
	c2 := srv.accept(t)
	sendHello(t, c2, 60_000)

	op := readOp(t, c2)
	if op.Code != ResumeOP {
		t.Fatalf("expected resume after reconnect request, got op %d", op.Code)
	}

	var resume ResumeData
	if err := op.UnmarshalData(&resume); err != nil {
		t.Fatal("failed to decode resume:", err)
	}
	if resume.Seq != 3 {
		t.Errorf("resume carried seq %d, expected 3", resume.Seq)
	}

	cancel()
	waitStopped(t, errCh)
}

func TestInvalidSession(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify
	sendReady(t, c, "session_1", 1)

	waitFor(t, "ready state", func() bool {
		return g.State.SessionID() == "session_1"
	})

	writeJSON(t, c, map[string]interface{}{"op": InvalidSessionOP})

	// The session is gone; the next connection must identify from scratch.
	c2 := srv.accept(t)
	sendHello(t, c2, 60_000)

	op := readOp(t, c2)
	if op.Code != IdentifyOP {
		t.Fatalf("expected identify after invalid session, got op %d", op.Code)
	}

	if g.State.SessionID() != "" {
		t.Error("session state not cleared")
	}
	if _, ok := g.State.Seq(); ok {
		t.Error("sequence not cleared")
	}

	cancel()
	waitStopped(t, errCh)
}

func TestServerHeartbeatRequest(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify

	// The peer may ask for an immediate heartbeat, well before the interval.
	writeJSON(t, c, map[string]interface{}{"op": HeartbeatOP})

	hb := readOp(t, c)
	if hb.Code != HeartbeatOP {
		t.Fatalf("expected heartbeat, got op %d", hb.Code)
	}

	// No dispatch has been seen, so the heartbeat carries null.
	if string(hb.Data) != "null" {
		t.Errorf("expected null heartbeat data, got %q", hb.Data)
	}

	writeJSON(t, c, map[string]interface{}{"op": HeartbeatAckOP})

	cancel()
	waitStopped(t, errCh)
}

func TestHeartbeatRequestWhileUnacked(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify

	writeJSON(t, c, map[string]interface{}{"op": HeartbeatOP})

	hb := readOp(t, c)
	if hb.Code != HeartbeatOP {
		t.Fatalf("expected heartbeat, got op %d", hb.Code)
	}

	// A second request with the first heartbeat still unacknowledged means
	// the peer never saw it; the connection must be abandoned, not kept
	// alive by rearming the watchdog.
	writeJSON(t, c, map[string]interface{}{"op": HeartbeatOP})

	c2 := srv.accept(t)
	sendHello(t, c2, 60_000)

	if op := readOp(t, c2); op.Code != IdentifyOP {
		t.Fatalf("expected identify on reconnect, got op %d", op.Code)
	}

	cancel()
	waitStopped(t, errCh)
}

func TestRunSkipsBadFrames(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	h := chanHandler{group: make(chan *GroupMessage, 1)}
	g.Dispatcher = NewDispatcher(h, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify
	sendReady(t, c, "session_1", 1)

	// Garbage, a stray hello and an unknown opcode are all logged and
	// skipped; none of them may terminate the connection.
	if err := c.WriteMessage(websocket.TextMessage, []byte("not json")); err != nil {
		t.Fatal("failed to write garbage frame:", err)
	}
	sendHello(t, c, 45_000)
	writeJSON(t, c, map[string]interface{}{"op": 4})

	writeJSON(t, c, map[string]interface{}{
		"op": DispatchOP,
		"s":  2,
		"t":  EventGroupAtMessageCreate,
		"d": map[string]interface{}{
			"author":       map[string]string{"member_openid": "member_1"},
			"content":      "still alive",
			"group_openid": "group_1",
			"id":           "msg_2",
		},
	})

	select {
	case msg := <-h.group:
		if msg.Content != "still alive" {
			t.Errorf("wrong content: %q", msg.Content)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("session did not survive skippable frames")
	}

	select {
	case <-srv.Conns:
		t.Fatal("gateway reconnected over skippable frames")
	default:
	}

	cancel()
	waitStopped(t, errCh)
}

type chanHandler struct {
	NopHandler
	group chan *GroupMessage
}

func (h chanHandler) OnGroupAtMessageCreate(
	ctx context.Context, msg *GroupMessage, _ *api.Client) error {

	h.group <- msg
	return nil
}

func TestDispatch(t *testing.T) {
	srv := newWSServer(t)
	g := newTestGateway(srv)

	h := chanHandler{group: make(chan *GroupMessage, 1)}
	g.Dispatcher = NewDispatcher(h, nil, zerolog.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := startGateway(ctx, g)

	c := srv.accept(t)
	sendHello(t, c, 60_000)
	readOp(t, c) // identify
	sendReady(t, c, "session_1", 1)

	writeJSON(t, c, map[string]interface{}{
		"op": DispatchOP,
		"s":  2,
		"t":  EventGroupAtMessageCreate,
		"d": map[string]interface{}{
			"author":       map[string]string{"member_openid": "member_1"},
			"content":      " hello",
			"group_openid": "group_1",
			"id":           "msg_1",
		},
	})

	select {
	case msg := <-h.group:
		if msg.Content != " hello" {
			t.Errorf("wrong content: %q", msg.Content)
		}
		if msg.GroupOpenID != "group_1" {
			t.Errorf("wrong group openid: %q", msg.GroupOpenID)
		}
		if msg.Author.MemberOpenID != "member_1" {
			t.Errorf("wrong author: %q", msg.Author.MemberOpenID)
		}
	case <-time.After(5 * time.Second):
		t.Fatal("timed out waiting for dispatch")
	}

	// The dispatch sequence must have been recorded.
	waitFor(t, "seq update", func() bool {
		seq, ok := g.State.Seq()
		return ok && seq == 2
	})

	cancel()
	waitStopped(t, errCh)
}
