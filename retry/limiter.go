package retry

import (
	"context"

	"golang.org/x/time/rate"
)

// Limiter composes a steady-state rate cap with the backoff policy above.
// It is purely additive: most callers use Do directly, but provider
// adapters that must also respect a request-per-second budget wrap their
// operation with Limiter.Wait before calling Do.
type Limiter struct {
	limiter *rate.Limiter
}

// NewLimiter constructs a Limiter allowing ratePerSecond requests per
// second with the given burst capacity.
func NewLimiter(ratePerSecond float64, burst int) *Limiter {
	return &Limiter{limiter: rate.NewLimiter(rate.Limit(ratePerSecond), burst)}
}

// Wait blocks until a token is available or ctx is canceled.
func (l *Limiter) Wait(ctx context.Context) error {
	return l.limiter.Wait(ctx)
}
