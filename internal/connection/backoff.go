package connection

import (
	"math/rand"
	"time"
)

// Backoff computes reconnect delays: exponential growth from Base by
// Factor, capped at Cap, with a symmetric random jitter fraction applied
// last. The zero value is not usable; construct with DefaultBackoff.
type Backoff struct {
	Base   time.Duration
	Factor float64
	Cap    time.Duration
	Jitter float64
}

// DefaultBackoff is the reconnect policy: 2s base, doubling, 60s cap,
// +/-20% jitter.
func DefaultBackoff() Backoff {
	return Backoff{
		Base:   2 * time.Second,
		Factor: 2,
		Cap:    60 * time.Second,
		Jitter: 0.2,
	}
}

// Delay returns the wait before attempt n (1-based), jitter applied.
func (b Backoff) Delay(attempt int) time.Duration {
	base := b.delay(attempt)
	if b.Jitter <= 0 {
		return base
	}
	spread := float64(base) * b.Jitter
	jittered := float64(base) + (rand.Float64()*2-1)*spread
	if jittered < 0 {
		jittered = 0
	}
	return time.Duration(jittered)
}

// delay is the deterministic pre-jitter curve.
func (b Backoff) delay(attempt int) time.Duration {
	if attempt < 1 {
		attempt = 1
	}
	d := float64(b.Base)
	for i := 1; i < attempt; i++ {
		d *= b.Factor
		if time.Duration(d) >= b.Cap {
			return b.Cap
		}
	}
	if time.Duration(d) > b.Cap {
		return b.Cap
	}
	return time.Duration(d)
}
