// Package botgo is a Go client library for the QQ bot open platform. It
// covers both delivery transports the platform offers: a websocket gateway
// session with heartbeating and resumption, and an Ed25519-validated webhook
// intake.
//
// Most bots only need the session package:
//
//	cfg, _ := session.ConfigFromEnv()
//	s := session.New(cfg, handler)
//	s.Open(ctx)
//
// The api, gateway and webhook packages are usable on their own for bots
// that want only one transport or a custom assembly.
package botgo

import (
	// Blank imports for package documentation purposes.
	_ "github.com/aojiaoxiaolinlin/bot-go/api"
	_ "github.com/aojiaoxiaolinlin/bot-go/gateway"
	_ "github.com/aojiaoxiaolinlin/bot-go/session"
	_ "github.com/aojiaoxiaolinlin/bot-go/webhook"
)
