package webhook

import (
	"crypto/ed25519"
	"encoding/hex"
)

// signingKey derives the Ed25519 private key from the bot secret. The seed is
// the secret repeated until it reaches the seed size, then truncated; this is
// the derivation the platform documents.
func signingKey(secret string) ed25519.PrivateKey {
	seed := secret
	for len(seed) < ed25519.SeedSize {
		seed += secret
	}
	return ed25519.NewKeyFromSeed([]byte(seed)[:ed25519.SeedSize])
}

// PublicKey returns the verification key matching the secret-derived signing
// key. The platform holds the same key pair and verifies our signatures with
// it.
func PublicKey(secret string) ed25519.PublicKey {
	return signingKey(secret).Public().(ed25519.PublicKey)
}

// ValidationRequest is the payload of a WebhookValidate (op 13) challenge.
type ValidationRequest struct {
	EventTS    string `json:"event_ts"`
	PlainToken string `json:"plain_token"`
}

// ValidationResponse answers the challenge with a hex signature over
// event_ts followed by plain_token.
type ValidationResponse struct {
	PlainToken string `json:"plain_token"`
	Signature  string `json:"signature"`
}

// Validate signs the challenge with the secret-derived key.
func Validate(secret string, req ValidationRequest) ValidationResponse {
	key := signingKey(secret)
	sig := ed25519.Sign(key, []byte(req.EventTS+req.PlainToken))

	return ValidationResponse{
		PlainToken: req.PlainToken,
		Signature:  hex.EncodeToString(sig),
	}
}
