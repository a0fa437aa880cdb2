// Package gateway implements the websocket side of the QQ bot open platform:
// the connection handshake, heartbeating, session resumption and event
// dispatch.
//
// A Gateway owns one logical session across any number of underlying
// websocket connections. Start blocks, reconnecting with jittered backoff
// until its context is canceled.
package gateway

import (
	"context"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/atomic"

	"github.com/aojiaoxiaolinlin/bot-go/internal/backoff"
	"github.com/aojiaoxiaolinlin/bot-go/internal/lazytime"
	"github.com/aojiaoxiaolinlin/bot-go/utils/json"
	"github.com/aojiaoxiaolinlin/bot-go/utils/wsutil"

	"github.com/rs/zerolog"
)

var (
	// ErrMissingHeartbeatInterval is returned when Hello carries no usable
	// heartbeat interval.
	ErrMissingHeartbeatInterval = errors.New("heartbeat interval not given in hello")
	// ErrHeartbeatTimeout is returned when a heartbeat goes unacknowledged
	// for longer than AckTimeout.
	ErrHeartbeatTimeout = errors.New("no heartbeat ACK received in time")
	// ErrInvalidSession is returned when the server rejects the session.
	// The session state is cleared before it is returned.
	ErrInvalidSession = errors.New("server invalidated the session")
	// ErrConnectionClosed is returned when the server closes the websocket
	// without asking for a reconnect.
	ErrConnectionClosed = errors.New("connection closed by server")
)

// TokenSource yields the current access token. The gateway reads it at every
// Identify and Resume, so a refreshing implementation keeps reconnects
// authorized.
type TokenSource interface {
	AccessToken() string
}

// StaticToken is a TokenSource that never changes.
type StaticToken string

func (t StaticToken) AccessToken() string { return string(t) }

// Gateway drives one logical gateway session. Exported fields may be set
// after NewGateway and before Start; they must not change afterwards.
type Gateway struct {
	WS *wsutil.Websocket

	// State survives reconnects and carries the resume identity.
	State      *SessionState
	Identifier *Identifier
	Dispatcher *Dispatcher

	// AckTimeout bounds how long a heartbeat may go unacknowledged.
	AckTimeout time.Duration
	// HelloTimeout bounds the wait for the Hello frame after dialing.
	HelloTimeout time.Duration

	Backoff *backoff.Backoff
	Log     zerolog.Logger

	token   TokenSource
	running *atomic.Bool
}

// NewGateway makes a Gateway that connects to the given websocket URL. The
// returned Gateway uses the default identifier and reconnect policy.
func NewGateway(url string, token TokenSource) *Gateway {
	return &Gateway{
		WS:           wsutil.New(url),
		State:        &SessionState{},
		Identifier:   DefaultIdentifier(),
		AckTimeout:   7 * time.Second,
		HelloTimeout: 10 * time.Second,
		Backoff:      backoff.NewReconnect(),
		Log:          zerolog.Nop(),
		token:        token,
		running:      atomic.NewBool(false),
	}
}

// Start runs the session until ctx is canceled. It dials, handshakes and
// pumps events, reconnecting on every failure with the gateway's backoff
// policy. Only one Start may run at a time.
func (g *Gateway) Start(ctx context.Context) error {
	if !g.running.CompareAndSwap(false, true) {
		return errors.New("gateway is already running")
	}
	defer g.running.Store(false)

	for {
		err := g.connect(ctx)
		switch {
		case err == nil:
			// Graceful close, usually a server-side Reconnect request.
			// Redial immediately.
			g.Backoff.Reset()
			g.Log.Info().Msg("reconnecting gateway")

		case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
			return ctx.Err()

		default:
			wait := g.Backoff.Next()
			g.Log.Warn().Err(err).
				Int("attempt", g.Backoff.Attempt()).
				Dur("wait", wait).
				Msg("gateway connection failed")

			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(wait):
			}
		}
	}
}

// connect runs one websocket connection to completion: dial, Hello,
// Identify or Resume, then the event loop. A nil return means the peer asked
// for a clean reconnect.
func (g *Gateway) connect(ctx context.Context) error {
	dialCtx, cancel := context.WithTimeout(ctx, g.HelloTimeout)
	err := g.WS.Dial(dialCtx)
	cancel()
	if err != nil {
		return errors.Wrap(err, "failed to dial gateway")
	}
	defer g.WS.Close()

	ch := g.WS.Listen()

	hello, err := g.awaitHello(ctx, ch)
	if err != nil {
		return err
	}
	if hello.HeartbeatInterval == 0 {
		return ErrMissingHeartbeatInterval
	}

	token := "QQBot " + g.token.AccessToken()

	if sessionID, seq, ok := g.State.ResumeInfo(); ok {
		g.Log.Info().
			Str("session_id", sessionID).
			Uint64("seq", seq).
			Msg("resuming gateway session")

		err = g.send(ctx, ResumeOP, ResumeData{
			Token:     token,
			SessionID: sessionID,
			Seq:       seq,
		})
	} else {
		g.Log.Info().Msg("identifying gateway session")

		err = g.send(ctx, IdentifyOP, IdentifyData{
			Token:   token,
			Intents: g.Identifier.Intents,
			Shard:   g.Identifier.Shard,
		})
	}
	if err != nil {
		return err
	}

	// The handshake made it through; this connection counts as a success
	// for the reconnect policy.
	g.Backoff.Reset()

	interval := time.Duration(hello.HeartbeatInterval) * time.Millisecond
	return g.run(ctx, ch, interval)
}

// awaitHello reads frames until the Hello (op 10) arrives. Anything else
// this early is noise and gets discarded.
func (g *Gateway) awaitHello(ctx context.Context, ch <-chan wsutil.Event) (*HelloData, error) {
	var timeout lazytime.Timer
	timeout.Reset(g.HelloTimeout)
	defer timeout.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()

		case <-timeout.C:
			return nil, errors.New("timed out waiting for hello")

		case ev, ok := <-ch:
			if !ok {
				return nil, ErrConnectionClosed
			}
			if ev.Error != nil {
				return nil, errors.Wrap(ev.Error, "connection error before hello")
			}

			op, err := DecodeOp(ev.Data)
			if err != nil {
				return nil, err
			}
			if op.Code != HelloOP {
				g.Log.Debug().
					Uint8("op", uint8(op.Code)).
					Msg("discarding pre-hello frame")
				continue
			}

			var hello HelloData
			if err := op.UnmarshalData(&hello); err != nil {
				return nil, err
			}
			return &hello, nil
		}
	}
}

// run is the steady-state loop: inbound frames, the heartbeat ticker and the
// ACK watchdog.
func (g *Gateway) run(ctx context.Context, ch <-chan wsutil.Event, interval time.Duration) error {
	var heart lazytime.Ticker
	heart.Reset(interval)
	defer heart.Stop()

	var ackTimer lazytime.Timer
	defer ackTimer.Stop()

	awaitingAck := false

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case ev, ok := <-ch:
			if !ok {
				return ErrConnectionClosed
			}
			if ev.Error != nil {
				return errors.Wrap(ev.Error, "connection error")
			}

			op, err := DecodeOp(ev.Data)
			if err != nil {
				g.Log.Warn().Err(err).Msg("dropping undecodable frame")
				continue
			}

			if op.Sequence != nil {
				if !g.State.SetSeq(*op.Sequence) {
					g.Log.Debug().
						Uint64("seq", *op.Sequence).
						Msg("out of order or repeated sequence number")
				}
			}

			switch op.Code {
			case DispatchOP:
				g.handleDispatch(ctx, op)

			case HeartbeatOP:
				// Server-requested heartbeat. The previous one must have
				// been acknowledged by now; a still-pending ACK means the
				// connection is not healthy.
				if awaitingAck {
					return ErrHeartbeatTimeout
				}
				if err := g.sendHeartbeat(ctx); err != nil {
					return err
				}
				awaitingAck = true
				ackTimer.Reset(g.AckTimeout)

			case HeartbeatAckOP:
				awaitingAck = false
				ackTimer.Stop()

			case ReconnectOP:
				g.Log.Info().Msg("server requested reconnect")
				return nil

			case InvalidSessionOP:
				g.State.Clear()
				return ErrInvalidSession

			default:
				g.Log.Debug().
					Uint8("op", uint8(op.Code)).
					Msg("unexpected opcode")
			}

		case <-heart.C:
			// An unacknowledged heartbeat at the next tick means the ACK
			// never came; rearming the watchdog here would let a dead peer
			// linger whenever the interval is shorter than AckTimeout.
			if awaitingAck {
				return ErrHeartbeatTimeout
			}
			if err := g.sendHeartbeat(ctx); err != nil {
				return err
			}
			awaitingAck = true
			ackTimer.Reset(g.AckTimeout)

		case <-ackTimer.C:
			if awaitingAck {
				return ErrHeartbeatTimeout
			}
		}
	}
}

func (g *Gateway) handleDispatch(ctx context.Context, op *Op) {
	switch op.EventName {
	case EventReady:
		var ready ReadyData
		if err := op.UnmarshalData(&ready); err != nil {
			g.Log.Error().Err(err).Msg("failed to decode ready payload")
			return
		}

		g.State.SetSessionID(ready.SessionID)
		g.Log.Info().
			Str("session_id", ready.SessionID).
			Str("username", ready.User.Username).
			Msg("gateway session ready")

	case EventResumed:
		g.Log.Info().Msg("gateway session resumed")

	default:
		if g.Dispatcher != nil {
			g.Dispatcher.Dispatch(ctx, op)
		}
	}
}

func (g *Gateway) send(ctx context.Context, code OpCode, v interface{}) error {
	op, err := NewOp(code, v)
	if err != nil {
		return err
	}

	b, err := json.Marshal(op)
	if err != nil {
		return errors.Wrap(err, "failed to encode op")
	}

	return g.WS.Send(ctx, b)
}

// sendHeartbeat sends op 1 with the last known sequence number, or a null
// data field before the first dispatch.
func (g *Gateway) sendHeartbeat(ctx context.Context) error {
	op := Op{Code: HeartbeatOP, Data: json.Raw("null")}

	if seq, ok := g.State.Seq(); ok {
		b, err := json.Marshal(seq)
		if err != nil {
			return errors.Wrap(err, "failed to encode heartbeat seq")
		}
		op.Data = b
	}

	b, err := json.Marshal(&op)
	if err != nil {
		return errors.Wrap(err, "failed to encode heartbeat")
	}

	return g.WS.Send(ctx, b)
}
