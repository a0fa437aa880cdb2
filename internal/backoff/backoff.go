// Package backoff implements the reconnect delay policy for the gateway:
// a jittered base delay scaled by the number of consecutive failures, with a
// long pause once the retry ceiling is hit.
package backoff

import (
	"math/rand"
	"time"
)

// Backoff is a delay counter for consecutive connection failures. It is not
// safe for concurrent use; the gateway owns one per reconnect loop.
type Backoff struct {
	// Base is the nominal delay before the first retry. Each consecutive
	// failure scales the jittered base linearly.
	Base time.Duration
	// Max caps the scaled delay.
	Max time.Duration
	// Jitter is the fraction of Base that each sample may deviate by in
	// either direction.
	Jitter float64
	// MaxRetries is how many consecutive failures are delayed normally
	// before a single LongPause is slept and the counter resets.
	MaxRetries int
	// LongPause is the cooldown after MaxRetries consecutive failures.
	LongPause time.Duration

	attempt int
}

// NewReconnect returns the gateway reconnect policy: 1s base with ±20%
// jitter, capped at 5s, and a 30s pause after 3 consecutive failures.
func NewReconnect() *Backoff {
	return &Backoff{
		Base:       time.Second,
		Max:        5 * time.Second,
		Jitter:     0.2,
		MaxRetries: 3,
		LongPause:  30 * time.Second,
	}
}

// Next returns the delay to sleep before the next attempt and advances the
// failure counter. Once MaxRetries consecutive failures have been delayed, it
// returns LongPause and resets the counter.
func (b *Backoff) Next() time.Duration {
	if b.attempt >= b.MaxRetries {
		b.attempt = 0
		return b.LongPause
	}

	lo := float64(b.Base) * (1 - b.Jitter)
	hi := float64(b.Base) * (1 + b.Jitter)
	base := lo + rand.Float64()*(hi-lo)

	d := time.Duration(base * float64(b.attempt+1))
	if d > b.Max {
		d = b.Max
	}

	b.attempt++
	return d
}

// Reset clears the failure counter. Call it after any successful connection.
func (b *Backoff) Reset() {
	b.attempt = 0
}

// Attempt returns the current consecutive-failure count.
func (b *Backoff) Attempt() int {
	return b.attempt
}
