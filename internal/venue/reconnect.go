package venue

import (
	"time"

	"github.com/cenkalti/backoff/v4"
)

// reconnectWindow is the length of the window over which reconnect attempts
// are counted toward the max-attempts limit. The window is fixed, not
// sliding: it opens at the first attempt and restarts, with a zero count,
// at the first attempt made after it has elapsed.
const reconnectWindow = 5 * time.Minute

// maxReconnectAttempts is the number of attempts allowed within
// reconnectWindow before the client gives up and transitions to ERROR.
const maxReconnectAttempts = 10

// ReconnectPolicy wraps an exponential backoff (base 1s, factor 2, jitter
// ±20%, capped at 30s) with a fixed-window attempt counter. Exceeding
// maxReconnectAttempts within one reconnectWindow makes Next report
// exhaustion.
type ReconnectPolicy struct {
	backoff     backoff.BackOff
	windowStart time.Time
	attempts    int
}

// NewReconnectPolicy builds a fresh policy.
func NewReconnectPolicy() *ReconnectPolicy {
	return &ReconnectPolicy{backoff: newExponentialBackoff()}
}

func newExponentialBackoff() *backoff.ExponentialBackOff {
	eb := backoff.NewExponentialBackOff()
	eb.InitialInterval = 1 * time.Second
	eb.Multiplier = 2
	eb.RandomizationFactor = 0.2
	eb.MaxInterval = 30 * time.Second
	eb.MaxElapsedTime = 0 // unbounded by elapsed time; bounded by attempt count below
	eb.Reset()
	return eb
}

// Next returns the delay before the next reconnect attempt, or false when
// the current window's attempt budget is exhausted (caller should transition
// to ERROR).
func (p *ReconnectPolicy) Next() (time.Duration, bool) {
	now := time.Now()
	if p.windowStart.IsZero() || now.Sub(p.windowStart) > reconnectWindow {
		p.windowStart = now
		p.attempts = 0
		p.backoff.Reset()
	}

	if p.attempts >= maxReconnectAttempts {
		return 0, false
	}
	p.attempts++

	d := p.backoff.NextBackOff()
	if d == backoff.Stop {
		return 0, false
	}
	return d, true
}

// Reset clears the attempt window, used after a successful connect.
func (p *ReconnectPolicy) Reset() {
	p.windowStart = time.Time{}
	p.attempts = 0
	p.backoff.Reset()
}
