// Package main demonstrates a minimal echo bot: it repeats every group
// at-message and direct message back to the sender.
package main

import (
	"context"
	"log"
	"os/signal"
	"syscall"

	"github.com/aojiaoxiaolinlin/bot-go/api"
	"github.com/aojiaoxiaolinlin/bot-go/gateway"
	"github.com/aojiaoxiaolinlin/bot-go/session"
)

type echoHandler struct {
	gateway.NopHandler
}

func (echoHandler) OnGroupAtMessageCreate(
	ctx context.Context, msg *gateway.GroupMessage, client *api.Client) error {

	return client.PostGroupMessage(ctx, msg.GroupOpenID, api.SendMessageData{
		MsgType: api.MessageTypeText,
		Content: msg.Content,
		MsgID:   msg.ID,
	})
}

func (echoHandler) OnC2CMessageCreate(
	ctx context.Context, msg *gateway.C2CMessage, client *api.Client) error {

	return client.PostC2CMessage(ctx, msg.Author.UserOpenID, api.SendMessageData{
		MsgType: api.MessageTypeText,
		Content: msg.Content,
		MsgID:   msg.ID,
	})
}

func main() {
	ctx, cancel := signal.NotifyContext(
		context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	cfg, err := session.ConfigFromEnv()
	if err != nil {
		log.Fatalln("config:", err)
	}

	s := session.New(cfg, echoHandler{})
	if err := s.Open(ctx); err != nil && ctx.Err() == nil {
		log.Fatalln("session:", err)
	}
}
