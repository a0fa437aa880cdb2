package api

import (
	"context"
	"net/url"

	"github.com/aojiaoxiaolinlin/bot-go/utils/httputil"
)

// Message types accepted by the send endpoints.
const (
	MessageTypeText     uint8 = 0
	MessageTypeMarkdown uint8 = 2
	MessageTypeArk      uint8 = 3
	MessageTypeEmbed    uint8 = 4
	MessageTypeMedia    uint8 = 7
)

// SendMessageData is the body of the v2 message send endpoints. MsgID links
// the message to the inbound event it replies to; without it the platform
// treats the message as proactive and rate limits it much harder.
type SendMessageData struct {
	MsgType uint8  `json:"msg_type"`
	Content string `json:"content,omitempty"`

	MsgID   string `json:"msg_id,omitempty"`
	EventID string `json:"event_id,omitempty"`
	MsgSeq  string `json:"msg_seq,omitempty"`

	IsWakeup *bool `json:"is_wakeup,omitempty"`
}

// PostGroupMessage sends a message into a group, addressed by its openid.
func (c *Client) PostGroupMessage(ctx context.Context, groupOpenID string, data SendMessageData) error {
	return c.postMessage(ctx, "/v2/groups/"+url.PathEscape(groupOpenID)+"/messages", data)
}

// PostC2CMessage sends a direct message to a user, addressed by their openid.
func (c *Client) PostC2CMessage(ctx context.Context, userOpenID string, data SendMessageData) error {
	return c.postMessage(ctx, "/v2/users/"+url.PathEscape(userOpenID)+"/messages", data)
}

func (c *Client) postMessage(ctx context.Context, path string, data SendMessageData) error {
	token, err := c.ensureToken(ctx)
	if err != nil {
		return PostMessageError{err}
	}

	err = c.FastRequest(ctx, "POST", c.Base+path,
		httputil.WithAuthorization("QQBot "+token),
		httputil.WithJSONBody(data),
	)
	if err != nil {
		return PostMessageError{err}
	}

	return nil
}
