package gateway

// Event name tags carried in the "t" field of Dispatch envelopes.
const (
	EventReady                = "READY"
	EventResumed              = "RESUMED"
	EventGroupAtMessageCreate = "GROUP_AT_MESSAGE_CREATE"
	EventC2CMessageCreate     = "C2C_MESSAGE_CREATE"
)

// HelloData is the payload of the Hello (op 10) frame.
type HelloData struct {
	HeartbeatInterval uint64 `json:"heartbeat_interval"` // milliseconds
}

// BotUser identifies the bot itself in the READY payload.
type BotUser struct {
	ID       string `json:"id"`
	Username string `json:"username"`
}

// ReadyData is the payload of the READY dispatch; it carries the session id
// needed for resuming.
type ReadyData struct {
	Version   int     `json:"version,omitempty"`
	SessionID string  `json:"session_id"`
	User      BotUser `json:"user"`
	Shard     *Shard  `json:"shard,omitempty"`
}

// Author identifies the sender of a chat message. The platform fills a
// different openid field depending on the message scene.
type Author struct {
	ID           string `json:"id,omitempty"`
	MemberOpenID string `json:"member_openid,omitempty"`
	UnionOpenID  string `json:"union_openid,omitempty"`
	UserOpenID   string `json:"user_openid,omitempty"`
}

// MessageScene describes where a message originated.
type MessageScene struct {
	Source string `json:"source"`
}

// GroupMessage is the payload of a GROUP_AT_MESSAGE_CREATE dispatch.
type GroupMessage struct {
	Author       Author       `json:"author"`
	Content      string       `json:"content"`
	GroupID      string       `json:"group_id"`
	GroupOpenID  string       `json:"group_openid"`
	ID           string       `json:"id"`
	MessageScene MessageScene `json:"message_scene"`
	MessageType  uint8        `json:"message_type"`
	Timestamp    string       `json:"timestamp"`
}

// C2CMessage is the payload of a C2C_MESSAGE_CREATE dispatch. Replies go to
// Author.UserOpenID.
type C2CMessage struct {
	Author    Author `json:"author"`
	Content   string `json:"content"`
	ID        string `json:"id"`
	Timestamp string `json:"timestamp,omitempty"`
}
