package hyperliquid

import (
	"math"
	"time"
)

// ReconnectPolicy decides whether and when the websocket transport dials
// again after losing its connection. attempt counts from 1 and resets once
// a connection reaches Open.
type ReconnectPolicy interface {
	NextDelay(attempt int) (time.Duration, bool)
}

// Reconnect settings
const (
	DefaultReconnectInitial     = 500 * time.Millisecond
	DefaultReconnectMax         = 30 * time.Second
	DefaultReconnectMultiplier  = 2.0
	DefaultMaxReconnectAttempts = 10
)

// ExponentialBackoff waits Initial*Multiplier^(attempt-1), capped at Max.
// MaxAttempts of zero retries forever.
type ExponentialBackoff struct {
	Initial     time.Duration
	Max         time.Duration
	Multiplier  float64
	MaxAttempts int
}

// DefaultReconnectPolicy returns the policy used when WSConfig has none
func DefaultReconnectPolicy() *ExponentialBackoff {
	return &ExponentialBackoff{
		Initial:     DefaultReconnectInitial,
		Max:         DefaultReconnectMax,
		Multiplier:  DefaultReconnectMultiplier,
		MaxAttempts: DefaultMaxReconnectAttempts,
	}
}

func (b *ExponentialBackoff) NextDelay(attempt int) (time.Duration, bool) {
	if b.MaxAttempts > 0 && attempt > b.MaxAttempts {
		return 0, false
	}
	if attempt < 1 {
		attempt = 1
	}
	mult := b.Multiplier
	if mult < 1 {
		mult = 1
	}
	delay := float64(b.Initial) * math.Pow(mult, float64(attempt-1))
	if b.Max > 0 && delay > float64(b.Max) {
		return b.Max, true
	}
	return time.Duration(delay), true
}

type noReconnect struct{}

func (noReconnect) NextDelay(int) (time.Duration, bool) { return 0, false }

// NoReconnect abandons the transport on the first disconnect
var NoReconnect ReconnectPolicy = noReconnect{}
