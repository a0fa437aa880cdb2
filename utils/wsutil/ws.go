// Package wsutil provides abstractions around the websocket, including send
// rate limits.
package wsutil

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"golang.org/x/time/rate"
)

// DefaultTimeout is the default handshake timeout.
const DefaultTimeout = time.Minute

// NewSendLimiter returns the limiter for outbound gateway frames. The gateway
// tolerates at most 120 frames a minute; the full burst is available up
// front, so sends only ever block once the per-minute budget is spent.
func NewSendLimiter() *rate.Limiter {
	return rate.NewLimiter(rate.Every(time.Minute/120), 120)
}

// Websocket wraps a Connection with an address and a send limiter. The
// limiter is reset on each dial, as frame budgets are per-connection.
type Websocket struct {
	Conn Connection
	Addr string

	SendLimiter *rate.Limiter
}

func New(addr string) *Websocket {
	return NewCustom(NewConn(), addr)
}

// NewCustom creates a new undialed Websocket.
func NewCustom(conn Connection, addr string) *Websocket {
	return &Websocket{
		Conn: conn,
		Addr: addr,

		SendLimiter: NewSendLimiter(),
	}
}

func (ws *Websocket) Dial(ctx context.Context) error {
	if err := ws.Conn.Dial(ctx, ws.Addr); err != nil {
		return errors.Wrap(err, "failed to dial")
	}

	ws.SendLimiter = NewSendLimiter()
	return nil
}

func (ws *Websocket) Listen() <-chan Event {
	return ws.Conn.Listen()
}

func (ws *Websocket) Send(ctx context.Context, b []byte) error {
	if err := ws.SendLimiter.Wait(ctx); err != nil {
		return errors.Wrap(err, "send limiter failed")
	}

	return ws.Conn.Send(ctx, b)
}

func (ws *Websocket) Close() error {
	return ws.Conn.Close()
}
