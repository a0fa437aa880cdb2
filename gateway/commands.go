package gateway

// Shard is the [index, count] pair negotiated at Identify. The platform
// assigns this library a single shard.
type Shard [2]int

func DefaultShard() Shard {
	return Shard{0, 1}
}

// IdentifyData is the payload of the Identify (op 2) command. Token is the
// full authorization string, "QQBot <access_token>".
type IdentifyData struct {
	Token   string  `json:"token"`
	Intents Intents `json:"intents"`
	Shard   Shard   `json:"shard"`
}

// ResumeData is the payload of the Resume (op 6) command.
type ResumeData struct {
	Token     string `json:"token"`
	SessionID string `json:"session_id"`
	Seq       uint64 `json:"seq"`
}

// Identifier holds the negotiable parts of the Identify command; the token is
// read from the token source at send time, since it may have been refreshed.
type Identifier struct {
	Intents Intents
	Shard   Shard
}

func DefaultIdentifier() *Identifier {
	return &Identifier{
		Intents: DefaultIntents,
		Shard:   DefaultShard(),
	}
}
