// Package webhook implements the HTTP intake side of the QQ bot open
// platform: the signature validation challenge and event delivery.
package webhook

import (
	"context"
	"io"
	"net/http"
	"strconv"

	"github.com/rs/zerolog"

	"github.com/aojiaoxiaolinlin/bot-go/gateway"
	"github.com/aojiaoxiaolinlin/bot-go/utils/json"
)

// ErrorFunc is called on errors that the handler cannot return anywhere.
type ErrorFunc func(err error)

// Server is an http.Handler that accepts platform callbacks. Dispatch events
// are acked immediately and handled on their own goroutine; validation
// challenges are answered inline.
type Server struct {
	// ErrorFunc is called on dispatch errors. Defaults to logging.
	ErrorFunc ErrorFunc

	Log zerolog.Logger

	secret     string
	dispatcher *gateway.Dispatcher
}

var _ http.Handler = (*Server)(nil)

func NewServer(secret string, dispatcher *gateway.Dispatcher, log zerolog.Logger) *Server {
	s := &Server{
		Log:        log,
		secret:     secret,
		dispatcher: dispatcher,
	}
	s.ErrorFunc = func(err error) {
		s.Log.Error().Err(err).Msg("webhook dispatch error")
	}
	return s
}

func (s *Server) writeError(w http.ResponseWriter, code int, err string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)

	json.EncodeStream(w, map[string]string{"error": err})
}

func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		s.writeError(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body, err := io.ReadAll(r.Body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "failed to read body")
		return
	}

	op, err := gateway.DecodeOp(body)
	if err != nil {
		s.writeError(w, http.StatusBadRequest, "invalid payload")
		return
	}

	switch op.Code {
	case gateway.DispatchOP:
		// Ack first; handlers run detached from the request lifetime.
		s.dispatcher.Dispatch(context.Background(), op)

		w.Header().Set("Content-Type", "application/json")
		json.EncodeStream(w, gateway.Op{Code: gateway.CallbackAckOP})

	case gateway.WebhookValidateOP:
		var req ValidationRequest
		if err := op.UnmarshalData(&req); err != nil {
			s.writeError(w, http.StatusBadRequest, "invalid validation payload")
			return
		}

		s.Log.Info().Msg("answering webhook validation challenge")

		w.Header().Set("Content-Type", "application/json")
		json.EncodeStream(w, Validate(s.secret, req))

	default:
		s.writeError(w, http.StatusBadRequest,
			"unsupported opcode "+strconv.Itoa(int(op.Code)))
	}
}
