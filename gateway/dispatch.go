package gateway

import (
	"context"

	"github.com/rs/zerolog"

	"github.com/aojiaoxiaolinlin/bot-go/api"
)

// Handler receives dispatched events. Implementations get the API client so
// replies don't need to thread it through themselves. Handlers run on their
// own goroutine per event; blocking in one never stalls the gateway read
// loop.
type Handler interface {
	OnGroupAtMessageCreate(ctx context.Context, msg *GroupMessage, client *api.Client) error
	OnC2CMessageCreate(ctx context.Context, msg *C2CMessage, client *api.Client) error
}

// NopHandler ignores every event. Embed it to implement only the callbacks
// you care about.
type NopHandler struct{}

var _ Handler = NopHandler{}

func (NopHandler) OnGroupAtMessageCreate(context.Context, *GroupMessage, *api.Client) error {
	return nil
}

func (NopHandler) OnC2CMessageCreate(context.Context, *C2CMessage, *api.Client) error {
	return nil
}

// Dispatcher routes Dispatch (op 0) envelopes to a Handler. Both the
// websocket read loop and the webhook intake feed it.
type Dispatcher struct {
	Handler Handler
	Client  *api.Client
	Log     zerolog.Logger
}

func NewDispatcher(h Handler, client *api.Client, log zerolog.Logger) *Dispatcher {
	return &Dispatcher{
		Handler: h,
		Client:  client,
		Log:     log,
	}
}

// Dispatch decodes the event payload by its name tag and hands it to the
// handler on a new goroutine. Unknown event names are logged at debug level
// and dropped.
func (d *Dispatcher) Dispatch(ctx context.Context, op *Op) {
	switch op.EventName {
	case EventGroupAtMessageCreate:
		var msg GroupMessage
		if err := op.UnmarshalData(&msg); err != nil {
			d.Log.Error().Err(err).
				Str("event", op.EventName).
				Msg("failed to decode event payload")
			return
		}
		go d.handle(op.EventName, func() error {
			return d.Handler.OnGroupAtMessageCreate(ctx, &msg, d.Client)
		})

	case EventC2CMessageCreate:
		var msg C2CMessage
		if err := op.UnmarshalData(&msg); err != nil {
			d.Log.Error().Err(err).
				Str("event", op.EventName).
				Msg("failed to decode event payload")
			return
		}
		go d.handle(op.EventName, func() error {
			return d.Handler.OnC2CMessageCreate(ctx, &msg, d.Client)
		})

	default:
		d.Log.Debug().
			Str("event", op.EventName).
			Msg("no handler for event, dropping")
	}
}

func (d *Dispatcher) handle(event string, fn func() error) {
	if err := fn(); err != nil {
		d.Log.Error().Err(err).
			Str("event", event).
			Msg("event handler returned an error")
	}
}
