package gateway

// Intents is the bitmask negotiated at Identify selecting which event classes
// the server will deliver.
type Intents uint32

const (
	IntentGuilds                Intents = 1 << 0
	IntentGuildMembers          Intents = 1 << 1
	IntentGuildMessages         Intents = 1 << 9 // private-domain bots only
	IntentGuildMessageReactions Intents = 1 << 10
	IntentDirectMessage         Intents = 1 << 12
	IntentGroupAndC2CEvent      Intents = 1 << 25
	IntentInteraction           Intents = 1 << 26
	IntentMessageAudit          Intents = 1 << 27
	IntentForumsEvent           Intents = 1 << 28
	IntentAudioAction           Intents = 1 << 29
	IntentPublicGuildMessages   Intents = 1 << 30
)

// DefaultIntents subscribes to the public message stream.
const DefaultIntents = IntentPublicGuildMessages
