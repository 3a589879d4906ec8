package gateway

import (
	"math/rand/v2"
	"time"
)

const (
	DefaultBaseDelay   = 1000 * time.Millisecond
	DefaultMaxDelay    = 16000 * time.Millisecond
	DefaultJitter      = 0.25
	DefaultMaxAttempts = 5
	DefaultHeartbeat   = 10000 * time.Millisecond
)

// Backoff computes exponential reconnect delays with uniform jitter.
type Backoff struct {
	Base   time.Duration
	Max    time.Duration
	Jitter float64        // fraction of the delay, applied as ±Jitter
	Rand   func() float64 // [0,1); nil uses math/rand
}

// DefaultBackoff is 1s doubling to 16s with ±25% jitter.
func DefaultBackoff() Backoff {
	return Backoff{Base: DefaultBaseDelay, Max: DefaultMaxDelay, Jitter: DefaultJitter}
}

// Delay returns the wait before reconnect attempt n (0-based). The result
// never exceeds Max.
func (b Backoff) Delay(n int) time.Duration {
	base := b.Base
	if base <= 0 {
		base = DefaultBaseDelay
	}
	limit := b.Max
	if limit <= 0 {
		limit = DefaultMaxDelay
	}
	if n < 0 {
		n = 0
	}

	d := base
	for i := 0; i < n && d < limit; i++ {
		d *= 2
	}
	if d > limit {
		d = limit
	}

	if b.Jitter > 0 {
		r := rand.Float64
		if b.Rand != nil {
			r = b.Rand
		}
		d = time.Duration(float64(d) * (1 + b.Jitter*(2*r()-1)))
	}
	if d > limit {
		d = limit
	}
	if d < 0 {
		d = 0
	}
	return d
}
