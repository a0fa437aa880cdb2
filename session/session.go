// Package session wires the API client, the websocket gateway and the
// webhook intake into one runnable bot.
package session

import (
	"context"
	"net/http"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pkg/errors"
	"github.com/rs/zerolog"

	"github.com/aojiaoxiaolinlin/bot-go/api"
	"github.com/aojiaoxiaolinlin/bot-go/gateway"
	"github.com/aojiaoxiaolinlin/bot-go/webhook"
)

// Config holds everything a Session needs. Zero values fall back to platform
// defaults.
type Config struct {
	AppID        string
	ClientSecret string

	// Addr is the webhook listen address. Defaults to ":8080".
	Addr string

	// Intents defaults to gateway.DefaultIntents.
	Intents gateway.Intents

	// AckTimeout overrides the gateway heartbeat ACK timeout when non-zero.
	AckTimeout time.Duration
}

// ConfigFromEnv reads the configuration from the environment, loading a .env
// file first if one is present.
//
//	QQ_APP_ID                   required
//	QQ_CLIENT_SECRET            required
//	QQ_BIND_ADDR                default ":8080"
//	QQ_INTENTS                  optional, decimal bitmask
//	QQ_HEARTBEAT_ACK_TIMEOUT    optional, Go duration
func ConfigFromEnv() (*Config, error) {
	godotenv.Load()

	cfg := Config{
		AppID:        os.Getenv("QQ_APP_ID"),
		ClientSecret: os.Getenv("QQ_CLIENT_SECRET"),
		Addr:         os.Getenv("QQ_BIND_ADDR"),
	}

	if cfg.AppID == "" {
		return nil, errors.New("missing $QQ_APP_ID")
	}
	if cfg.ClientSecret == "" {
		return nil, errors.New("missing $QQ_CLIENT_SECRET")
	}
	if cfg.Addr == "" {
		cfg.Addr = ":8080"
	}

	if v := os.Getenv("QQ_INTENTS"); v != "" {
		i, err := strconv.ParseUint(v, 10, 32)
		if err != nil {
			return nil, errors.Wrap(err, "invalid $QQ_INTENTS")
		}
		cfg.Intents = gateway.Intents(i)
	}

	if v := os.Getenv("QQ_HEARTBEAT_ACK_TIMEOUT"); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			return nil, errors.Wrap(err, "invalid $QQ_HEARTBEAT_ACK_TIMEOUT")
		}
		cfg.AckTimeout = d
	}

	return &cfg, nil
}

// Session runs a bot over both transports at once: the websocket gateway and
// the webhook intake server.
type Session struct {
	Client  *api.Client
	Webhook *webhook.Server
	Log     zerolog.Logger

	cfg        *Config
	dispatcher *gateway.Dispatcher

	// Gateway is built in Open, once the gateway URL is known.
	Gateway *gateway.Gateway
}

// New assembles a Session from the configuration and the event handler.
func New(cfg *Config, h gateway.Handler) *Session {
	log := zerolog.New(os.Stderr).With().Timestamp().Logger()

	client := api.NewClient(cfg.AppID, cfg.ClientSecret)
	dispatcher := gateway.NewDispatcher(h, client, log)

	return &Session{
		Client:     client,
		Webhook:    webhook.NewServer(cfg.ClientSecret, dispatcher, log),
		Log:        log,
		cfg:        cfg,
		dispatcher: dispatcher,
	}
}

// Open authenticates, connects the gateway and serves the webhook intake
// until ctx is canceled.
func (s *Session) Open(ctx context.Context) error {
	if err := s.Client.Authenticate(ctx); err != nil {
		return err
	}

	url, err := s.Client.GatewayURL(ctx)
	if err != nil {
		return err
	}

	g := gateway.NewGateway(url, s.Client)
	g.Dispatcher = s.dispatcher
	g.Log = s.Log
	if s.cfg.Intents != 0 {
		g.Identifier.Intents = s.cfg.Intents
	}
	if s.cfg.AckTimeout != 0 {
		g.AckTimeout = s.cfg.AckTimeout
	}
	s.Gateway = g

	go func() {
		if err := g.Start(ctx); err != nil && !errors.Is(err, context.Canceled) {
			s.Log.Error().Err(err).Msg("gateway stopped")
		}
	}()

	srv := http.Server{
		Addr:    s.cfg.Addr,
		Handler: s.Webhook,
	}

	go func() {
		<-ctx.Done()

		shutCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()

		srv.Shutdown(shutCtx)
	}()

	s.Log.Info().Str("addr", s.cfg.Addr).Msg("serving webhook intake")

	if err := srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "webhook server failed")
	}

	return ctx.Err()
}
